package worker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitFileLineAligned(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "in.json")
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, strings.Repeat("x", i%7+1))
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	splits, err := splitFile(name, 16, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) < 2 {
		t.Fatalf("expected several splits, got %d", len(splits))
	}
	var rebuilt strings.Builder
	var prevTo int64
	for _, s := range splits {
		if s.From != prevTo {
			t.Fatalf("gap between splits at %d", s.From)
		}
		prevTo = s.To
		part, err := partialContent(s)
		if err != nil {
			t.Fatal(err)
		}
		if s.To != int64(len(content)) && !strings.HasSuffix(part, "\n") {
			t.Fatalf("split %v does not end on a line boundary", s)
		}
		rebuilt.WriteString(part)
	}
	if rebuilt.String() != content {
		t.Fatal("splits do not cover the file")
	}
}

func TestSplitEmptyFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(name, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	splits, err := splitFile(name, 16, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) != 0 {
		t.Fatalf("expected no splits, got %d", len(splits))
	}
}
