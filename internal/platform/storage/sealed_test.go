package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestNewSealed_KeySize(t *testing.T) {
	for _, n := range []int{0, 16, 64} {
		if _, err := NewSealed(NewMemory(), make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
}

func TestParseKey(t *testing.T) {
	if _, err := ParseKey(strings.Repeat("ab", 32)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseKey("zz"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := ParseKey(strings.Repeat("ab", 16)); err == nil {
		t.Error("expected error for short key")
	}
}

func TestSealed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s, err := NewSealed(mem, testKey(t))
	if err != nil {
		t.Fatalf("NewSealed: %v", err)
	}

	plain := []byte(`[{"id":"INV-001","amount":150}]`)
	if err := s.Set(ctx, "healthcare_bills", plain); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, _, _ := mem.Get(ctx, "healthcare_bills")
	if !bytes.HasPrefix(raw, sealedPrefix) || bytes.Contains(raw, []byte("INV-001")) {
		t.Fatalf("expected sealed value at rest, got %q", raw)
	}

	got, ok, err := s.Get(ctx, "healthcare_bills")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("expected %q, got %q", plain, got)
	}
}

func TestSealed_PlainValuesPassThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Set(ctx, "k", []byte(`["legacy"]`))
	s, _ := NewSealed(mem, testKey(t))

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != `["legacy"]` {
		t.Errorf("expected plain value, got %q ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := s.Get(ctx, "absent"); ok || err != nil {
		t.Errorf("expected absent key, got ok=%v err=%v", ok, err)
	}
}

func TestSealed_WrongKeyIsStorageError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	writer, _ := NewSealed(mem, testKey(t))
	reader, _ := NewSealed(mem, testKey(t))

	if err := NewCollection[string](writer, "k", zerolog.Nop()).Save(ctx, []string{"a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, found, err := NewCollection[string](reader, "k", zerolog.Nop()).Load(ctx)
	if found || !IsStorageError(err) {
		t.Errorf("expected storage error for a value sealed with another key, got found=%v err=%v", found, err)
	}
}

func TestSealed_ValueBoundToKey(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s, _ := NewSealed(mem, testKey(t))

	if err := s.Set(ctx, "healthcare_bills", []byte(`[{"id":"INV-001"}]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _, _ := mem.Get(ctx, "healthcare_bills")
	mem.Set(ctx, "healthcare_medicines", raw)

	if _, ok, err := s.Get(ctx, "healthcare_medicines"); ok || err == nil {
		t.Errorf("a value copied to another key must not open, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.Get(ctx, "healthcare_bills"); !ok || err != nil {
		t.Errorf("original key should still open, got ok=%v err=%v", ok, err)
	}
}

func TestSealed_LegacyValuesOpen(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s, _ := NewSealed(mem, testKey(t))

	nonce := make([]byte, s.aead.NonceSize())
	rand.Read(nonce)
	ct := s.aead.Seal(nonce, nonce, []byte(`["old"]`), nil)
	mem.Set(ctx, "k", append(append([]byte{}, legacyPrefix...), base64.StdEncoding.EncodeToString(ct)...))

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != `["old"]` {
		t.Errorf("expected legacy value to open, got %q ok=%v err=%v", got, ok, err)
	}
}
