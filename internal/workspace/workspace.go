// Package workspace owns the ephemeral directory a single harness run writes
// its intermediate artifacts into.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is a scratch directory scoped to one invocation. Acquire with
// New, release with Release on every exit path. An artifact the user pinned
// with --out lives outside the workspace, so releasing never touches it.
type Workspace struct {
	dir string
}

// New creates the scratch directory.
func New() (*Workspace, error) {
	dir, err := os.MkdirTemp("", "obfucc-test-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// Path returns the workspace-relative path for name.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// OutputFor returns the default transformed-output path for a test case,
// derived from the case filename stem ("foo.ll" -> "foo.out.ll").
func (w *Workspace) OutputFor(casePath string) string {
	base := filepath.Base(casePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(w.dir, stem+".out.ll")
}

// Release removes the workspace. Best-effort: a failed removal is not worth
// failing the run over.
func (w *Workspace) Release() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir)
		w.dir = ""
	}
}
