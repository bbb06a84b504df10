package fileid

import (
	"strings"
	"testing"
)

func TestDigest(t *testing.T) {
	d1 := Digest("Hello world")
	d2 := Digest("Hello world")
	if d1 != d2 {
		t.Errorf("same text should give same digest: %q vs %q", d1, d2)
	}
	if !strings.HasPrefix(d1, digestPrefix) {
		t.Errorf("digest should have prefix %q: got %q", digestPrefix, d1)
	}
	if Digest("Hello world!") == d1 {
		t.Error("different text should give different digest")
	}
}

func TestNameKey(t *testing.T) {
	k := NameKey("Default Index")
	if k != NameKey("Default Index") {
		t.Error("NameKey should be deterministic")
	}
	if len(k) != 32 {
		t.Errorf("NameKey length = %d, want 32", len(k))
	}
	if strings.ContainsAny(k, " /\\") {
		t.Errorf("NameKey should be filesystem safe: %q", k)
	}
	if NameKey("a") == NameKey("b") {
		t.Error("different names should give different keys")
	}
}
