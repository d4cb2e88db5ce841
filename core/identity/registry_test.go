package identity

import (
	"context"
	"errors"
	"testing"

	"tipchain/crypto"
)

func TestIsActiveArtist(t *testing.T) {
	artist := crypto.Address{1}
	banned := crypto.Address{2}
	fan := crypto.Address{3}
	registry := StaticRegistry{
		artist: {Address: artist, Role: RoleArtist},
		banned: {Address: banned, Role: RoleArtist, Banned: true},
		fan:    {Address: fan, Role: RoleFan},
	}
	cases := map[crypto.Address]bool{artist: true, banned: false, fan: false, {9}: false}
	for addr, want := range cases {
		got, err := IsActiveArtist(context.Background(), registry, addr)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got != want {
			t.Fatalf("address %x: expected %t, got %t", addr[:1], want, got)
		}
	}
	if _, err := IsActiveArtist(context.Background(), nil, artist); err == nil {
		t.Fatalf("expected error for missing registry")
	}
}

func TestParseRole(t *testing.T) {
	if role, err := ParseRole(" Artist "); err != nil || role != RoleArtist {
		t.Fatalf("expected artist, got %q %v", role, err)
	}
	if role, err := ParseRole(""); err != nil || role != RoleFan {
		t.Fatalf("expected default fan, got %q %v", role, err)
	}
	if _, err := ParseRole("admin"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestNormalizeHandle(t *testing.T) {
	if got, err := NormalizeHandle("  DJ.Tips "); err != nil || got != "dj.tips" {
		t.Fatalf("unexpected normalisation %q %v", got, err)
	}
	for _, bad := range []string{"ab", "has space", "emoji🎵"} {
		if _, err := NormalizeHandle(bad); !errors.Is(err, ErrInvalidHandle) {
			t.Fatalf("expected ErrInvalidHandle for %q, got %v", bad, err)
		}
	}
}
