package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/models"
)

func touchVectors(t *testing.T, l *layout.Layout, name string) {
	t.Helper()
	dir := l.IndexDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{layout.DocstoreFile, layout.VectorFiles["flat"]} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFileStore_ReadWrite(t *testing.T) {
	l := layout.New(t.TempDir())
	s := NewFileStore(l)

	_, err := s.Read("Default Index")
	var nf *IndexNotFoundError
	if !errors.As(err, &nf) || nf.Name != "Default Index" || !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("expected IndexNotFoundError, got %v", err)
	}

	m := &models.Manifest{Name: "Default Index", About: "", FileNames: []string{"b.pdf", "a.pdf"}}
	if err := s.Write("Default Index", m); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read("Default Index")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != m.Name || len(got.FileNames) != 2 || got.FileNames[0] != "b.pdf" {
		t.Errorf("got %+v", got)
	}

	m.FileNames = []string{"c.pdf"}
	if err := s.Write("Default Index", m); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Read("Default Index")
	if len(got.FileNames) != 1 || got.FileNames[0] != "c.pdf" {
		t.Errorf("write should overwrite, got %+v", got)
	}

	entries, _ := os.ReadDir(l.IndexDir("Default Index"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileStore_onDiskShape(t *testing.T) {
	l := layout.New(t.TempDir())
	s := NewFileStore(l)
	if err := s.Write("x", &models.Manifest{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(l.ManifestPath("x"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 {
		t.Errorf("expected exactly name, about, file_names: %v", raw)
	}
	if fn, ok := raw["file_names"].([]any); !ok || len(fn) != 0 {
		t.Errorf("file_names should be an empty list, got %v", raw["file_names"])
	}
}

func TestFileStore_ListAll(t *testing.T) {
	l := layout.New(t.TempDir())
	s := NewFileStore(l)

	for _, name := range []string{"zeta", "alpha", "manifest-only"} {
		if err := s.Write(name, &models.Manifest{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	touchVectors(t, l, "zeta")
	touchVectors(t, l, "alpha")
	touchVectors(t, l, "vectors-only")
	if err := os.MkdirAll(filepath.Join(l.Root, ".staging", "abc"), 0755); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Errorf("ListAll: %+v", list)
	}

	empty, err := NewFileStore(layout.New(filepath.Join(l.Root, "missing"))).ListAll()
	if err != nil || len(empty) != 0 {
		t.Errorf("missing root: %v, %v", empty, err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	l := layout.New(t.TempDir())
	s := NewFileStore(l)
	if err := s.Delete("nope"); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
	_ = s.Write("x", &models.Manifest{Name: "x"})
	touchVectors(t, l, "x")
	if err := s.Delete("x"); err != nil {
		t.Fatal(err)
	}
	if l.HasManifest("x") {
		t.Error("manifest should be gone")
	}
	if !l.HasVectors("x") {
		t.Error("delete must only remove the manifest")
	}
}
