package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	for _, length := range []int{0, 1, 16, 32} {
		got := GenerateRandomHex(length)
		if len(got) != length {
			t.Errorf("GenerateRandomHex(%d) length = %d", length, len(got))
		}
		for _, c := range got {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Errorf("GenerateRandomHex(%d) contains non-hex character %q", length, c)
			}
		}
	}
	if GenerateRandomHex(-1) != "" {
		t.Error("expected empty string for negative length")
	}
}

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("dp_", 16)
	if !strings.HasPrefix(id, "dp_") {
		t.Errorf("expected prefix dp_, got %q", id)
	}
	if len(id) != len("dp_")+16 {
		t.Errorf("unexpected id length: %q", id)
	}

	// Two ids should essentially never collide.
	if GenerateRandomID("dp_", 16) == id {
		t.Error("expected distinct ids across calls")
	}
}
