package vector

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		indexType string
		dim       int
		wantErr   bool
	}{
		{"flat", 3, false},
		{"", 3, false},
		{"unknown", 3, true},
		{"flat", 0, true},
	}
	for _, tt := range tests {
		idx, err := New(tt.indexType, tt.dim)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %d) err=%v, wantErr=%v", tt.indexType, tt.dim, err, tt.wantErr)
			continue
		}
		if err == nil {
			if idx.Type() != "flat" || idx.Dimensions() != tt.dim {
				t.Errorf("New(%q): type=%s dim=%d", tt.indexType, idx.Type(), idx.Dimensions())
			}
			_ = idx.Close()
		}
	}
}

func TestNew_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		if _, err := New("faiss", 3); err == nil {
			t.Error("expected error when FAISS is not compiled in")
		}
		t.Skip("FAISS not available (build with -tags=faiss)")
	}
	idx, err := New("faiss", 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}
