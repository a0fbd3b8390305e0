package credentials

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/teachassist/internal/store"
)

func strPtr(s string) *string { return &s }

func newTestProvider(t *testing.T) (*Provider, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewProvider(s), s
}

func TestSetKeysMerges(t *testing.T) {
	p, _ := newTestProvider(t)

	if err := p.SetKeys(Update{GenKey: strPtr("gen-1")}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	if err := p.SetKeys(Update{StorageKey: strPtr("store-1")}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	got := p.Keys()
	if got.GenKey != "gen-1" {
		t.Errorf("GenKey = %q, want gen-1", got.GenKey)
	}
	if got.StorageKey != "store-1" {
		t.Errorf("StorageKey = %q, want store-1", got.StorageKey)
	}

	// Explicit empty value clears a key.
	if err := p.SetKeys(Update{GenKey: strPtr("")}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	if p.GenKey() != "" {
		t.Errorf("expected generation key cleared, got %q", p.GenKey())
	}
	if p.StorageKey() != "store-1" {
		t.Errorf("storage key should survive, got %q", p.StorageKey())
	}
}

func TestKeysReadThrough(t *testing.T) {
	p, s := newTestProvider(t)

	// A second provider on the same store simulates another session.
	other := NewProvider(s)
	if err := other.SetKeys(Update{GenKey: strPtr("from-other")}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	if got := p.GenKey(); got != "from-other" {
		t.Errorf("GenKey = %q, want from-other", got)
	}
}

func TestKeysUnparsableFallsBackToMemory(t *testing.T) {
	p, s := newTestProvider(t)

	if err := p.SetKeys(Update{GenKey: strPtr("mem")}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	if err := s.SetMetadata(RecordKey, "{not json"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	if got := p.GenKey(); got != "mem" {
		t.Errorf("GenKey = %q, want in-memory fallback 'mem'", got)
	}
}

type failingDurable struct{}

func (failingDurable) GetMetadata(string) (string, error) { return "", errors.New("disk gone") }
func (failingDurable) SetMetadata(string, string) error { return errors.New("disk gone") }

func TestDurableFailureIsSoft(t *testing.T) {
	p := NewProvider(failingDurable{})

	if err := p.SetKeys(Update{StorageKey: strPtr("s")}); err == nil {
		t.Error("expected persist error")
	}
	if got := p.StorageKey(); got != "s" {
		t.Errorf("StorageKey = %q, want in-memory 's'", got)
	}
}

func TestNilDurable(t *testing.T) {
	p := NewProvider(nil)
	if err := p.SetKeys(Update{GenKey: strPtr(" padded ")}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	if got := p.GenKey(); got != "padded" {
		t.Errorf("GenKey = %q, want trimmed 'padded'", got)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "********"},
		{"AIzaSyExample1234", "********"},
		{"ключ-секрет-1234", "********"},
	}
	for _, tt := range tests {
		got := Mask(tt.in)
		if got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(tt.in) > 4 && strings.Contains(got, tt.in[len(tt.in)-4:]) {
			t.Errorf("Mask(%q) = %q reveals part of the secret", tt.in, got)
		}
	}
}
