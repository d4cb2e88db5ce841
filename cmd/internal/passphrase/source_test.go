package passphrase

import (
	"errors"
	"io"
	"testing"
)

func scripted(entries ...string) func() ([]byte, error) {
	return func() ([]byte, error) {
		if len(entries) == 0 {
			return nil, io.EOF
		}
		next := entries[0]
		entries = entries[1:]
		return []byte(next), nil
	}
}

func interactive(envVar string, entries ...string) *Source {
	s := NewSource(envVar)
	s.readSecret = scripted(entries...)
	s.isTerminal = func() bool { return true }
	s.out = io.Discard
	return s
}

func TestEnvironmentWins(t *testing.T) {
	t.Setenv("TIP_TEST_PASS", "from-env")
	s := interactive("TIP_TEST_PASS", "typed")
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestEmptyEnvironmentRejected(t *testing.T) {
	t.Setenv("TIP_TEST_PASS", "  ")
	if _, err := interactive("TIP_TEST_PASS").Get(); err == nil {
		t.Fatalf("expected error for blank variable")
	}
}

func TestPromptIsCached(t *testing.T) {
	s := interactive("", "secret")
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "secret" {
			t.Fatalf("call %d: got %q, %v", i, got, err)
		}
	}
}

func TestConfirmation(t *testing.T) {
	if got, err := interactive("", "abc", "abc").WithConfirmation().Get(); err != nil || got != "abc" {
		t.Fatalf("matching entries: %q, %v", got, err)
	}
	if _, err := interactive("", "abc", "abd").WithConfirmation().Get(); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestNoTerminal(t *testing.T) {
	s := interactive("")
	s.isTerminal = func() bool { return false }
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without a terminal")
	}
}
