package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestKeygenAddressAndToken(t *testing.T) {
	t.Setenv(keystorePassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "fan.keystore")

	code, out, errOut := runCLI("keygen", "--out", path)
	if code != 0 {
		t.Fatalf("keygen failed: %s", errOut)
	}
	first := strings.SplitN(out, "\n", 2)[0]
	addr := strings.TrimSpace(strings.TrimPrefix(first, "Address:"))
	if addr == "" {
		t.Fatalf("keygen did not print an address: %q", out)
	}

	if code, _, errOut := runCLI("keygen", "--out", path); code == 0 || !strings.Contains(errOut, "already exists") {
		t.Fatalf("expected overwrite refusal, got %d %q", code, errOut)
	}

	code, out, errOut = runCLI("address", "--keystore", path)
	if code != 0 {
		t.Fatalf("address failed: %s", errOut)
	}
	if strings.TrimSpace(out) != addr {
		t.Fatalf("address mismatch: keygen %s, address %s", addr, strings.TrimSpace(out))
	}

	code, out, errOut = runCLI("token", "--keystore", path, "--secret", "s3cret", "--audience", "tipd")
	if code != 0 {
		t.Fatalf("token failed: %s", errOut)
	}
	if parts := strings.Split(strings.TrimSpace(out), "."); len(parts) != 3 {
		t.Fatalf("expected a compact JWT, got %q", out)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("TIP_AUTH_SECRET", "")
	if code, _, errOut := runCLI("token", "--addr", "0x01"); code == 0 || !strings.Contains(errOut, "--secret") {
		t.Fatalf("expected missing secret error, got %d %q", code, errOut)
	}
}

func TestAddressWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.keystore")
	t.Setenv(keystorePassEnv, "one")
	if code, _, errOut := runCLI("keygen", "--out", path); code != 0 {
		t.Fatalf("keygen failed: %s", errOut)
	}
	t.Setenv(keystorePassEnv, "two")
	if code, _, _ := runCLI("address", "--keystore", path); code == 0 {
		t.Fatalf("expected decrypt failure with the wrong passphrase")
	}
}
