package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStageAndCopyOut(t *testing.T) {
	local := t.TempDir()
	src := filepath.Join(local, "business.json")
	if err := os.WriteFile(src, []byte("{\"business_id\":\"b1\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := Open(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	staged, err := ws.Stage(src)
	if err != nil {
		t.Fatal(err)
	}
	if staged[0] != ws.Path(InputDir, "business.json") {
		t.Fatalf("unexpected staged path %s", staged[0])
	}
	// staging again overwrites
	if _, err := ws.Stage(src); err != nil {
		t.Fatal(err)
	}

	out := ws.Path(OutputDir)
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "part-r-00000"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, ".part-r-00001.tmp"), []byte("y\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	copied, err := ws.CopyOut(OutputDir, dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(copied) != 1 || copied[0] != filepath.Join(dst, OutputDir, "part-r-00000") {
		t.Fatalf("unexpected copied files %v", copied)
	}

	if err := ws.ResetOutput(OutputDir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output should be removed, stat err=%v", err)
	}
	if err := ws.ResetOutput("never_written"); err != nil {
		t.Fatal(err)
	}
	if err := ws.RemoveInput(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(staged[0]); !os.IsNotExist(err) {
		t.Fatalf("staged input should be removed, stat err=%v", err)
	}
}

func TestOpenLocksWorkingArea(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	first, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root); err == nil {
		t.Fatal("expected second open to fail while locked")
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	second, err := Open(root)
	if err != nil {
		t.Fatalf("expected open after close to succeed: %v", err)
	}
	second.Close()
}

func TestFreeBytes(t *testing.T) {
	ws, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	if free, err := ws.FreeBytes(); err != nil || free == 0 {
		t.Fatalf("expected free space, got %d (%v)", free, err)
	}
}

func TestStageMissingFile(t *testing.T) {
	ws, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	if _, err := ws.Stage(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStageSameBaseName(t *testing.T) {
	ws, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	var srcs []string
	for _, dir := range []string{t.TempDir(), t.TempDir()} {
		p := filepath.Join(dir, "part-r-00000")
		if err := os.WriteFile(p, []byte(dir+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		srcs = append(srcs, p)
	}
	staged, err := ws.Stage(srcs...)
	if err != nil {
		t.Fatal(err)
	}
	if staged[0] == staged[1] {
		t.Fatalf("inputs with one base name must not overwrite each other: %v", staged)
	}
	b, err := os.ReadFile(staged[1])
	if err != nil || string(b) != filepath.Dir(srcs[1])+"\n" {
		t.Fatalf("unexpected staged content %q (%v)", b, err)
	}
}

func TestCopyOutReplacesEarlierCopy(t *testing.T) {
	ws, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	dst := t.TempDir()
	stale := filepath.Join(dst, OutputDir, "part-r-00005")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := ws.Path(OutputDir)
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "part-r-00000"), []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.CopyOut(OutputDir, dst); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != OutputDir {
		t.Fatalf("staging directory left behind: %v", entries)
	}
	files, err := os.ReadDir(filepath.Join(dst, OutputDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name() != "part-r-00000" {
		t.Fatalf("expected only the new part file, got %v", files)
	}
}
