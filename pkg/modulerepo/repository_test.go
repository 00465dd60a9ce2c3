package modulerepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemRepositoryReadsExistingModule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.wasm"), []byte{1, 2, 3}, 0o600))

	repo := NewFilesystemRepository(dir)
	data, err := repo.Read("module.wasm")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestFilesystemRepositoryRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	repo := NewFilesystemRepository(dir)

	_, err := repo.Read("../outside.wasm")
	require.Error(t, err)
}

func TestFilesystemRepositoryRejectsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	repo := NewFilesystemRepository(dir)

	_, err := repo.Read("/etc/passwd")
	require.Error(t, err)
}

func TestFilesystemRepositorySurfacesMissingFile(t *testing.T) {
	dir := t.TempDir()
	repo := NewFilesystemRepository(dir)

	_, err := repo.Read("missing.wasm")
	require.Error(t, err)
}

func TestFilesystemRepositoryManifestNamesModule(t *testing.T) {
	repo := NewFilesystemRepository(t.TempDir())

	manifest, err := repo.Manifest("module.wasm")
	require.NoError(t, err)
	require.Len(t, manifest.Wasm, 1)
}
