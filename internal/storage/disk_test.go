package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexDiskUsage(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"desc.json":   `{"name":"a"}`,
		"docstore.db": "0123456789",
		"index.vec":   "vec",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "x"), []byte("xy"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := IndexDiskUsage(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(12 + 10 + 3 + 2); got != want {
		t.Errorf("IndexDiskUsage() = %d, want %d", got, want)
	}
}

func TestIndexDiskUsage_missingDir(t *testing.T) {
	got, err := IndexDiskUsage(filepath.Join(t.TempDir(), "gone"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if got != 0 {
		t.Errorf("IndexDiskUsage() = %d, want 0", got)
	}
}
