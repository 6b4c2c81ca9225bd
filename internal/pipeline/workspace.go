package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a uniquely named temporary directory owned by exactly
// one delivery operation. It holds the intermediate files of a merge
// and is removed, with everything in it, before the operation returns.
type Workspace struct {
	dir string
}

// WorkspaceFactory creates workspaces under a root directory.
type WorkspaceFactory struct {
	root string
}

// NewWorkspaceFactory returns a factory rooted at dir; an empty dir
// falls back to the system temp directory.
func NewWorkspaceFactory(dir string) *WorkspaceFactory {
	if dir == "" {
		dir = os.TempDir()
	}
	return &WorkspaceFactory{root: dir}
}

// New creates a fresh workspace directory.
func (f *WorkspaceFactory) New() (*Workspace, error) {
	dir := filepath.Join(f.root, "delivery-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Remove deletes the workspace directory and all its contents.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
