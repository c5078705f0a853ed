package passphrase

import (
	"strings"
	"testing"
)

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("PUZZLE_TEST_PASS", "open sesame")
	src := NewSource("PUZZLE_TEST_PASS", "operator keystore")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "open sesame" {
		t.Fatalf("unexpected passphrase %q", got)
	}

	t.Setenv("PUZZLE_TEST_PASS", "changed")
	again, err := src.Get()
	if err != nil || again != "open sesame" {
		t.Fatalf("expected cached passphrase, got %q err=%v", again, err)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("PUZZLE_TEST_PASS", "   ")
	_, err := NewSource("PUZZLE_TEST_PASS", "").Get()
	if err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected blank passphrase error, got %v", err)
	}
}
