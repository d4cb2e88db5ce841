package tipping

import (
	"errors"
	"testing"

	"tipchain/crypto"
)

func TestAdminRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ops := map[string]func(caller crypto.Address) error{
		"pause":    func(c crypto.Address) error { return f.engine.SetPaused(c, true) },
		"min":      func(c crypto.Address) error { return f.engine.SetMinTipAmount(c, 1) },
		"fee":      func(c crypto.Address) error { return f.engine.SetFeePermille(c, 10) },
		"transfer": func(c crypto.Address) error { return f.engine.TransferOwnership(c, c) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(tipper); !errors.Is(err, ErrNotAuthorized) {
				t.Fatalf("expected ErrNotAuthorized, got %v", err)
			}
		})
	}
	cfg, _ := f.engine.Config()
	if cfg != DefaultConfig(owner) {
		t.Fatalf("config changed by non-owner: %+v", cfg)
	}
}

func TestSetFeePermilleBounds(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetFeePermille(owner, 101); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if err := f.engine.SetFeePermille(owner, 100); err != nil {
		t.Fatalf("set fee at maximum: %v", err)
	}
	id := f.send(tipper, artist, 1_000)
	tip, _ := f.engine.Tip(id)
	if tip.CapturedFee != 100 {
		t.Fatalf("new fee must apply to the next send, got %d", tip.CapturedFee)
	}
	evt := f.lastEvent()
	if evt.Type != EventTypeTipSent {
		t.Fatalf("unexpected last event %s", evt.Type)
	}
}

func TestConfigUpdatedEvent(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetMinTipAmount(owner, 250); err != nil {
		t.Fatalf("set min: %v", err)
	}
	evt := f.lastEvent()
	if evt.Type != EventTypeConfigUpdated || evt.Attributes["operation"] != "set_min_tip" || evt.Attributes["minTipAmount"] != "250" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	next := testAddr(0xb0)
	if err := f.engine.TransferOwnership(owner, crypto.Address{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero owner, got %v", err)
	}
	if err := f.engine.TransferOwnership(owner, next); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if ok, _ := f.engine.IsOwner(owner); ok {
		t.Fatalf("previous owner must lose control")
	}
	if ok, _ := f.engine.IsOwner(next); !ok {
		t.Fatalf("new owner must gain control")
	}
	if err := f.engine.SetPaused(owner, true); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for previous owner, got %v", err)
	}
	if err := f.engine.SetPaused(next, true); err != nil {
		t.Fatalf("new owner pause: %v", err)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetFeePermille(owner, 20); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if err := f.engine.Initialize(DefaultConfig(testAddr(0xcc))); err != nil {
		t.Fatalf("re-initialize: %v", err)
	}
	cfg, _ := f.engine.Config()
	if cfg.Owner != owner || cfg.FeePermille != 20 {
		t.Fatalf("re-initialisation must keep stored config, got %+v", cfg)
	}
	bad := DefaultConfig(owner)
	bad.FeePermille = 500
	if err := f.engine.Initialize(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseHistoryPolicy("reject"); err != nil || p != HistoryPolicyReject {
		t.Fatalf("unexpected policy %v %v", p, err)
	}
	if p, err := ParseHistoryPolicy(""); err != nil || p != HistoryPolicyEvict {
		t.Fatalf("unexpected default policy %v %v", p, err)
	}
	if _, err := ParseHistoryPolicy("drop"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	if r, err := ParseHistoryRole("artist"); err != nil || r != HistoryReceived {
		t.Fatalf("unexpected role %v %v", r, err)
	}
}
