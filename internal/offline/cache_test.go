package offline

import (
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cache := NewCache(t.TempDir())

	snap := &Snapshot{
		UserID:        "user-1",
		Email:         "user@example.com",
		FullName:      "Test User",
		LicenseKey:    "3F0A1-9BC42-D77E0-15AF8",
		ExpiresAt:     time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		LastValidated: time.Now().UTC().Truncate(time.Second),
	}
	if err := cache.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := cache.Load()
	if got == nil {
		t.Fatal("load returned nil after save")
	}
	if *got != *snap {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, snap)
	}
}

func TestLoadMissing(t *testing.T) {
	cache := NewCache(t.TempDir())
	if got := cache.Load(); got != nil {
		t.Fatalf("expected nil snapshot, got %+v", got)
	}
	if cache.IsCurrentlyValid() {
		t.Fatal("empty cache must not be valid")
	}
}

func TestIsCurrentlyValid(t *testing.T) {
	cache := NewCache(t.TempDir())

	snap := &Snapshot{
		UserID:     "user-1",
		LicenseKey: "3F0A1-9BC42-D77E0-15AF8",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	if err := cache.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !cache.IsCurrentlyValid() {
		t.Fatal("unexpired snapshot must be valid")
	}

	snap.ExpiresAt = time.Now().Add(-time.Second)
	if err := cache.Save(snap); err != nil {
		t.Fatalf("save expired: %v", err)
	}
	if cache.IsCurrentlyValid() {
		t.Fatal("expired snapshot must not be valid")
	}
}

func TestClear(t *testing.T) {
	cache := NewCache(t.TempDir())

	if err := cache.Clear(); err != nil {
		t.Fatalf("clear on empty cache: %v", err)
	}

	snap := &Snapshot{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := cache.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := cache.Load(); got != nil {
		t.Fatalf("expected nil after clear, got %+v", got)
	}
}
