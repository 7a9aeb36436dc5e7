// Package workspace manages the working area a job runs in: staged inputs
// under input/, one directory per stage output, and an exclusive lock so
// two jobs never share the area.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	InputDir  = "input"
	OutputDir = "output"
	lockFile  = ".lock"
)

type Workspace struct {
	root string
	lock *os.File
}

// Open creates the working area if needed and locks it.
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, InputDir), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(abs, lockFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("working area %s is in use: %w", abs, err)
	}
	ws := &Workspace{root: abs, lock: f}
	if free, err := ws.FreeBytes(); err == nil {
		log.Debugf("[Workspace] %s opened, %d bytes free", abs, free)
	}
	return ws, nil
}

// Close releases the lock.
func (w *Workspace) Close() error {
	if w.lock == nil {
		return nil
	}
	_ = unix.Flock(int(w.lock.Fd()), unix.LOCK_UN)
	err := w.lock.Close()
	w.lock = nil
	return err
}

func (w *Workspace) Root() string {
	return w.root
}

// Path resolves a name inside the working area.
func (w *Workspace) Path(name ...string) string {
	return filepath.Join(append([]string{w.root}, name...)...)
}

// Stage copies local files into input/, overwriting earlier copies, and
// returns their staged paths in the same order. Files sharing a base name get
// a numeric prefix.
func (w *Workspace) Stage(paths ...string) ([]string, error) {
	staged := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for i, p := range paths {
		name := filepath.Base(p)
		if seen[name] {
			name = fmt.Sprintf("%d-%s", i, name)
		}
		seen[name] = true
		dst := w.Path(InputDir, name)
		if err := copyFile(p, dst); err != nil {
			return nil, fmt.Errorf("stage %s: %w", p, err)
		}
		staged = append(staged, dst)
	}
	return staged, nil
}

// ResetOutput removes an earlier output directory so a stage can write it.
func (w *Workspace) ResetOutput(name string) error {
	dir := w.Path(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	log.Infof("[Workspace] Delete %s folder in working area", name)
	return os.RemoveAll(dir)
}

// RemoveInput deletes the staged input files.
func (w *Workspace) RemoveInput() error {
	return os.RemoveAll(w.Path(InputDir))
}

// CopyOut replaces dst/<name> with a copy of the named output directory and
// returns the copied file paths. Hidden files are skipped. Files left in
// dst/<name> by an earlier run do not survive.
func (w *Workspace) CopyOut(name, dst string) ([]string, error) {
	src := w.Path(name)
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, err
	}
	staging, err := os.MkdirTemp(dst, "."+name+"-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(staging, e.Name())); err != nil {
			return nil, err
		}
		names = append(names, e.Name())
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, err
	}

	target := filepath.Join(dst, name)
	if err := os.RemoveAll(target); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, target); err != nil {
		return nil, err
	}
	copied := make([]string, 0, len(names))
	for _, n := range names {
		copied = append(copied, filepath.Join(target, n))
	}
	return copied, nil
}

// FreeBytes reports the space available to the working area.
func (w *Workspace) FreeBytes() (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(w.root, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
