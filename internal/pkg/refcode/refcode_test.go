package refcode_test

import (
	"testing"

	"github.com/pointloop/loyalty-api/internal/pkg/refcode"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := refcode.Generate()
		if len(code) != refcode.Length {
			t.Fatalf("expected length %d, got %q", refcode.Length, code)
		}
		if !refcode.Alphabet(code) {
			t.Fatalf("code %q violates the alphabet", code)
		}
	}
}

func TestGenerateLong(t *testing.T) {
	code := refcode.GenerateLong()
	if len(code) != refcode.FallbackLength {
		t.Fatalf("expected length %d, got %q", refcode.FallbackLength, code)
	}
	if !refcode.Alphabet(code) {
		t.Fatalf("code %q violates the alphabet", code)
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[refcode.Generate()] = true
	}
	// The counter advances every call, so a run of 50 should not collapse
	// to a handful of values.
	if len(seen) < 25 {
		t.Fatalf("expected varied codes, got %d distinct of 50", len(seen))
	}
}

func TestAlphabetRejectsAmbiguous(t *testing.T) {
	for _, code := range []string{"O2A4B6", "A1B3C5", "ab2cd4", "", "A2B4C0"} {
		if refcode.Alphabet(code) {
			t.Errorf("expected %q to be rejected", code)
		}
	}
	if !refcode.Alphabet("A2B4C6") {
		t.Error("expected A2B4C6 to be accepted")
	}
}
