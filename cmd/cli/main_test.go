package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	// --- Act ---
	// The run function should see `shouldExit=true` and return a nil error.
	err := run(out, errOut, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Providing an unknown flag will cause cli.Parse to return an error.
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	// --- Act ---
	// The run function should propagate the error from cli.Parse.
	err := run(out, errOut, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_ParsesPlaybook(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	playbook := `
- name: smoke
  hosts: all
  tasks:
    - name: say hello
      debug:
        msg: hello
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "site.yml")
	err := os.WriteFile(filePath, []byte(playbook), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{"-log-level", "error", filePath}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, errOut, args)

	// --- Assert ---
	require.NoError(t, runErr)
	require.Contains(t, out.String(), `"module": "debug"`)
	require.Contains(t, out.String(), `"facts_required": false`)
}

func TestRun_SyntaxCheckFails(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A play without hosts is an error-severity diagnostic.
	playbook := `
- name: broken
  tasks:
    - debug:
        msg: hi
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "site.yml")
	err := os.WriteFile(filePath, []byte(playbook), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{"-syntax-check", "-log-level", "error", filePath}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, errOut, args)

	// --- Assert ---
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "syntax check failed")
}
