package media

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a per-run scratch directory for extracted frames and audio.
type Workspace struct {
	Dir       string
	FramesDir string
	AudioPath string
}

// NewWorkspace creates a scratch directory under root (the system temp dir when empty).
func NewWorkspace(root, runID string) (*Workspace, error) {
	dir, err := os.MkdirTemp(root, "retention-"+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	frames := filepath.Join(dir, "frames")
	if err := os.MkdirAll(frames, 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create frames dir: %w", err)
	}
	return &Workspace{
		Dir:       dir,
		FramesDir: frames,
		AudioPath: filepath.Join(dir, "audio.mp3"),
	}, nil
}

// DiscardFrames removes every extracted frame, keeping the workspace itself.
func (w *Workspace) DiscardFrames() error {
	if err := os.RemoveAll(w.FramesDir); err != nil {
		return err
	}
	return os.MkdirAll(w.FramesDir, 0o755)
}

// Cleanup removes the workspace and everything in it
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.Dir)
}
