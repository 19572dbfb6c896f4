package password_test

import (
	"testing"
	"unicode/utf8"

	"github.com/vibast-solutions/ms-go-accounts/app/password"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 20; i++ {
		generated, err := password.Generate()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if utf8.RuneCountInString(generated) != 20 {
			t.Fatalf("expected 20 characters, got %d (%q)", utf8.RuneCountInString(generated), generated)
		}
		if !password.IsStrong(generated) {
			t.Fatalf("generated password %q is not strong", generated)
		}
		if seen[generated] {
			t.Fatalf("generator produced a duplicate password")
		}
		seen[generated] = true
	}
}
