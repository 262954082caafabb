package keys

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	d, err := NewDeriver("test-shared-secret")
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}
	return d
}

func TestNewDeriverRequiresSecret(t *testing.T) {
	_, err := NewDeriver("")
	if !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	d := newTestDeriver(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	k1, err := d.DeriveKey("SN-001", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := d.DeriveKey("SN-001", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if k1 != k2 {
		t.Errorf("identical inputs produced different keys: %q vs %q", k1, k2)
	}
}

func TestDeriveKeyDivergesAcrossCycles(t *testing.T) {
	d := newTestDeriver(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	k1, err := d.DeriveKey("SN-001", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey cycle 1 failed: %v", err)
	}
	k2, err := d.DeriveKey("SN-001", 2, at)
	if err != nil {
		t.Fatalf("DeriveKey cycle 2 failed: %v", err)
	}

	if k1 == k2 {
		t.Error("different key cycles produced identical keys")
	}
}

func TestDeriveKeyDivergesAcrossSerials(t *testing.T) {
	d := newTestDeriver(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	k1, err := d.DeriveKey("SN-001", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := d.DeriveKey("SN-002", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if k1 == k2 {
		t.Error("different serials produced identical keys")
	}
}

func TestDeriveKeyIVVariesWithPairTime(t *testing.T) {
	// Keys that differ only by pairing timestamp must not share a
	// ciphertext prefix; the IV is derived from the timestamp.
	d := newTestDeriver(t)

	k1, err := d.DeriveKey("SN-001", 1, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := d.DeriveKey("SN-001", 1, time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if k1[:32] == k2[:32] {
		t.Error("first ciphertext block identical across pairing timestamps")
	}
}

func TestDeriveKeyOutputIsHex(t *testing.T) {
	d := newTestDeriver(t)

	key, err := d.DeriveKey("SN-001", 1, time.Now())
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	raw, err := hex.DecodeString(key)
	if err != nil {
		t.Fatalf("key is not valid hex: %v", err)
	}
	if len(raw)%16 != 0 {
		t.Errorf("ciphertext length %d is not a whole number of AES blocks", len(raw))
	}
}

func TestDeriveKeyInputValidation(t *testing.T) {
	d := newTestDeriver(t)
	at := time.Now()

	if _, err := d.DeriveKey("", 1, at); !errors.Is(err, ErrEmptySerial) {
		t.Errorf("empty serial: expected ErrEmptySerial, got %v", err)
	}
	if _, err := d.DeriveKey("SN-001", -1, at); !errors.Is(err, ErrNegativeCycle) {
		t.Errorf("negative cycle: expected ErrNegativeCycle, got %v", err)
	}
}

func TestDeriveKeyDifferentSecretsDiverge(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d1, err := NewDeriver("secret-a")
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}
	d2, err := NewDeriver("secret-b")
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	k1, err := d1.DeriveKey("SN-001", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := d2.DeriveKey("SN-001", 1, at)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if k1 == k2 {
		t.Error("different deployment secrets produced identical keys")
	}
}
