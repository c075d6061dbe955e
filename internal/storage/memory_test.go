package storage

import (
	"errors"
	"testing"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	s := NewMemoryStorage()

	if _, ok, err := s.GetItem("users"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := s.SetItem("users", "[]"); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}
	v, ok, err := s.GetItem("users")
	if err != nil || !ok || v != "[]" {
		t.Fatalf("unexpected GetItem() result: %q ok=%v err=%v", v, ok, err)
	}
	if err := s.RemoveItem("users"); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if err := s.RemoveItem("users"); err != nil {
		t.Fatalf("second RemoveItem() error: %v", err)
	}
	if _, ok, _ := s.GetItem("users"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestMemoryStorageRejectsBlankKey(t *testing.T) {
	s := NewMemoryStorage()
	if err := s.SetItem("  ", "x"); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("expected ErrKeyRequired, got %v", err)
	}
}
