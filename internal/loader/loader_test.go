package loader

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memLoader(t *testing.T, files map[string]string) *FSLoader {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return NewFSLoader(fs)
}

func TestLoad_CanonicalID(t *testing.T) {
	t.Parallel()

	l := memLoader(t, map[string]string{"tasks/common.yml": "- debug:\n"})

	a, err := l.Load(context.Background(), "tasks/common.yml")
	require.NoError(t, err)
	b, err := l.Load(context.Background(), "tasks/../tasks/common.yml")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "two spellings of the same file share one identity")
	assert.Equal(t, a.Checksum, b.Checksum)
	assert.Len(t, a.Checksum, 64)
	assert.Equal(t, "- debug:\n", string(a.Bytes))
}

func TestLoad_NotFound(t *testing.T) {
	t.Parallel()

	l := memLoader(t, nil)
	_, err := l.Load(context.Background(), "missing.yml")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing.yml", nf.Ref)
}

func TestLoad_Cancelled(t *testing.T) {
	t.Parallel()

	l := memLoader(t, map[string]string{"site.yml": "[]"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, "site.yml")
	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolveRelative(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plays/tasks/setup.yml", ResolveRelative("plays/site.yml", "tasks/setup.yml"))
	assert.Equal(t, "plays/setup.yml", ResolveRelative("plays/site.yml", "setup.yml"))
	assert.Equal(t, "/abs/setup.yml", ResolveRelative("plays/site.yml", "/abs/setup.yml"))
	assert.Equal(t, "setup.yml", ResolveRelative("site.yml", "setup.yml"))
}

func TestRolePaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "deploy/roles/web/tasks/main.yml", RoleTasksPath("deploy/site.yml", "web"))
	assert.Equal(t, "deploy/roles/web/defaults/main.yml", RoleDefaultsPath("deploy/site.yml", "web"))
	assert.Equal(t, "roles/db/tasks/main.yml", RoleTasksPath("site.yml", "db"))
}
