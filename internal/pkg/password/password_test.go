package password_test

import (
	"strings"
	"testing"

	"github.com/pointloop/loyalty-api/internal/pkg/password"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := password.Hash("member-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$12$") {
		t.Fatalf("expected bcrypt hash at cost 12, got %q", hash)
	}
	if !password.Verify("member-secret", hash) {
		t.Fatal("correct password rejected")
	}
	if password.Verify("wrong-secret", hash) {
		t.Fatal("wrong password accepted")
	}
	if password.Verify("member-secret", "not-a-hash") {
		t.Fatal("garbage hash accepted")
	}
}
