// Package testutil provides the shared harness for pipeline tests: an
// in-memory source tree, a parse entry point and log capture.
package testutil

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/spf13/afero"

	"github.com/vk/playparse/internal/loader"
	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/playbook"
	"github.com/vk/playparse/internal/template"
	"github.com/vk/playparse/internal/vault"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// ParseResult holds the outcome of one harness parse.
type ParseResult struct {
	Playbook    *model.ParsedPlaybook
	Diagnostics hcl.Diagnostics
	Err         error
}

// ParseOptions tweaks the harness parse.
type ParseOptions struct {
	Entry     string
	Facts     template.FactSeed
	Decryptor vault.Decryptor
	MaxDepth  int
}

// Fs builds an in-memory filesystem from a path -> content map.
func Fs(files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for path, content := range files {
		_ = afero.WriteFile(fs, path, []byte(content), 0o644)
	}
	return fs
}

// ParsePlaybook runs the playbook pipeline over an in-memory tree. The entry
// file defaults to "site.yml".
func ParsePlaybook(t *testing.T, files map[string]string) *ParseResult {
	t.Helper()
	return ParsePlaybookWith(t, files, ParseOptions{})
}

// ParsePlaybookWith is ParsePlaybook with explicit options.
func ParsePlaybookWith(t *testing.T, files map[string]string, opts ParseOptions) *ParseResult {
	t.Helper()

	entry := opts.Entry
	if entry == "" {
		entry = "site.yml"
	}

	pb, diags, err := playbook.Parse(context.Background(), playbook.Options{
		Path:            entry,
		Loader:          loader.NewFSLoader(Fs(files)),
		Facts:           opts.Facts,
		Decryptor:       opts.Decryptor,
		MaxIncludeDepth: opts.MaxDepth,
	})
	return &ParseResult{Playbook: pb, Diagnostics: diags, Err: err}
}
