// Package modulerepo is the module repository external collaborator named
// in the sandbox engine's surrounding system: it resolves a module id to
// guest wasm bytes, and validates a process::start entrypoint invocation
// against the bytes it served before the engine ever instantiates them.
package modulerepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extism/go-sdk"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// ReadCapability is implemented by anything that can resolve a module id to
// its wasm bytes. The kernel depends on this, not on a filesystem directly,
// so a test double or a future network-backed repository can stand in for
// FilesystemRepository.
type ReadCapability interface {
	Read(moduleID string) ([]byte, error)
}

// FilesystemRepository resolves module ids to files under a fixed base
// directory, rejecting any id that would resolve outside of it.
type FilesystemRepository struct {
	baseDir string
}

// NewFilesystemRepository builds a repository rooted at baseDir.
func NewFilesystemRepository(baseDir string) *FilesystemRepository {
	return &FilesystemRepository{baseDir: baseDir}
}

// Manifest describes where a module's bytes live, using extism's addressing
// types independently of Extism's own plugin runtime. It returns a manifest
// naming exactly one extism.WasmFile whose path and name are moduleID as
// given; the path is not joined with the repository's base directory and
// is not checked for existence.
func (r *FilesystemRepository) Manifest(moduleID string) (extism.Manifest, error) {
	return extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: moduleID, Name: moduleID},
		},
	}, nil
}

// Read resolves moduleID to a path under the repository's base directory
// and returns its contents. moduleID must be a relative path with no
// parent-directory segments; the resolved path is re-checked against the
// base directory after cleaning, so a crafted id cannot escape it even via
// an absolute-looking or traversal-heavy string.
func (r *FilesystemRepository) Read(moduleID string) ([]byte, error) {
	full, err := r.resolve(moduleID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full) //nolint:gosec // full is validated to stay under r.baseDir
	if err != nil {
		return nil, kernelerr.NewDriverError(fmt.Sprintf("modulerepo: reading %s: %s", moduleID, err))
	}
	return data, nil
}

func (r *FilesystemRepository) resolve(moduleID string) (string, error) {
	if moduleID == "" {
		return "", kernelerr.NewDriverError("modulerepo: empty module id")
	}

	clean := filepath.Clean(moduleID)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", kernelerr.NewDriverError(fmt.Sprintf("modulerepo: module id %q escapes the repository", moduleID))
	}

	absBase, err := filepath.Abs(r.baseDir)
	if err != nil {
		return "", kernelerr.NewDriverError(fmt.Sprintf("modulerepo: resolving base directory: %s", err))
	}
	full := filepath.Join(absBase, clean)

	absBaseWithSep := absBase + string(filepath.Separator)
	if !strings.HasPrefix(full+string(filepath.Separator), absBaseWithSep) {
		return "", kernelerr.NewDriverError(fmt.Sprintf("modulerepo: module id %q escapes the repository", moduleID))
	}
	return full, nil
}
