package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocate_ExplicitPathWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Locate(path, "ignored.pdf")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != path {
		t.Errorf("Locate = %q, want %q", got, path)
	}
}

func TestLocate_ExplicitPathMissing(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "absent.pdf"), "guide.pdf")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestLocate_SearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "guide.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got, err := Locate("", "guide.pdf")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if filepath.Base(got) != "guide.pdf" {
		t.Errorf("Locate = %q, want a guide.pdf path", got)
	}
}

func TestLocate_PrefersDocsSubdirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	docsCopy := filepath.Join(dir, "docs", "guide.pdf")
	if err := os.WriteFile(docsCopy, []byte("docs"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "guide.pdf"), []byte("root"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got, err := Locate("", "guide.pdf")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != filepath.Join("docs", "guide.pdf") {
		t.Errorf("Locate = %q, want the docs copy", got)
	}
}

func TestLocate_NotFoundAnywhere(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Locate("", "definitely-not-here.pdf")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("err = %v, want ErrSourceNotFound", err)
	}
}
