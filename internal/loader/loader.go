// Package loader implements the source-loading collaborator of the parsing
// core. The core supplies relative-path resolution rules; byte access goes
// through an afero filesystem so tests can run against an in-memory tree.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Source is one successfully loaded source text.
type Source struct {
	// ID is the canonical identity of the source, used for inclusion-path
	// cycle tracking and provenance.
	ID string
	// Bytes is the full content.
	Bytes []byte
	// Checksum is the hex sha256 over Bytes, exposed so external result
	// caching can key on content.
	Checksum string
}

// Loader fetches named sources for the playbook and inventory pipelines.
type Loader interface {
	Load(ctx context.Context, ref string) (*Source, error)
}

// NotFoundError reports a reference that names no source.
type NotFoundError struct{ Ref string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("source not found: %s", e.Ref) }

// UnreadableError reports a reference that exists but cannot be read.
type UnreadableError struct {
	Ref string
	Err error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("source unreadable: %s: %s", e.Ref, e.Err)
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// CancelledError reports a load aborted by the caller's cancellation signal.
type CancelledError struct {
	Ref string
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("load of %s cancelled: %s", e.Ref, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// FSLoader loads sources from an afero filesystem.
type FSLoader struct {
	fs afero.Fs
}

// NewFSLoader creates a loader over the given filesystem.
func NewFSLoader(fs afero.Fs) *FSLoader {
	return &FSLoader{fs: fs}
}

// NewOSLoader creates a loader over the host filesystem.
func NewOSLoader() *FSLoader {
	return &FSLoader{fs: afero.NewOsFs()}
}

// Load reads the source named by ref. The canonical id is the cleaned path,
// so two references spelling the same file differently share an identity.
func (l *FSLoader) Load(ctx context.Context, ref string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Ref: ref, Err: err}
	}

	canonical := path.Clean(ref)
	data, err := afero.ReadFile(l.fs, canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Ref: ref}
		}
		return nil, &UnreadableError{Ref: ref, Err: err}
	}

	sum := sha256.Sum256(data)
	return &Source{
		ID:       canonical,
		Bytes:    data,
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// ResolveRelative resolves ref against the directory of the including file,
// the rule every include/import target follows. Absolute references pass
// through untouched.
func ResolveRelative(includingFile, ref string) string {
	if path.IsAbs(ref) {
		return path.Clean(ref)
	}
	return path.Join(path.Dir(includingFile), ref)
}

// RoleTasksPath returns the conventional task-file location for a named
// role, relative to the playbook's directory.
func RoleTasksPath(playbookFile, role string) string {
	return path.Join(path.Dir(playbookFile), "roles", role, "tasks", "main.yml")
}

// RoleDefaultsPath returns the conventional defaults location for a named
// role.
func RoleDefaultsPath(playbookFile, role string) string {
	return path.Join(path.Dir(playbookFile), "roles", role, "defaults", "main.yml")
}
