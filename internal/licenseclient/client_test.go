package licenseclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/licensedesk/backend/internal/offline"
)

func newTestServer(t *testing.T, validateBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/validate-license", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(validateBody))
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":"user-1","email":"user@example.com","full_name":"Test User"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateAndSyncSavesSnapshot(t *testing.T) {
	expires := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	srv := newTestServer(t, `{"isValid":true,"expiresAt":"`+expires+`","license":{"license_key":"3F0A1-9BC42-D77E0-15AF8"}}`)

	cache := offline.NewCache(t.TempDir())
	client := New(Config{ServerURL: srv.URL, Token: "tok"}, cache)

	status, err := client.ValidateAndSync()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !status.IsValid || status.Offline {
		t.Fatalf("expected online valid status, got %+v", status)
	}
	if status.LicenseKey != "3F0A1-9BC42-D77E0-15AF8" {
		t.Fatalf("wrong license key: %s", status.LicenseKey)
	}

	snap := cache.Load()
	if snap == nil {
		t.Fatal("snapshot not written after successful sync")
	}
	if snap.UserID != "user-1" || snap.Email != "user@example.com" {
		t.Fatalf("snapshot missing profile info: %+v", snap)
	}
	if !cache.IsCurrentlyValid() {
		t.Fatal("fresh snapshot must be valid")
	}
}

func TestValidateAndSyncClearsOnServerInvalid(t *testing.T) {
	srv := newTestServer(t, `{"isValid":false}`)

	cache := offline.NewCache(t.TempDir())
	stale := &offline.Snapshot{
		UserID:     "user-1",
		LicenseKey: "3F0A1-9BC42-D77E0-15AF8",
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}
	if err := cache.Save(stale); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	client := New(Config{ServerURL: srv.URL, Token: "tok"}, cache)
	status, err := client.ValidateAndSync()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if status.IsValid {
		t.Fatal("server said invalid, status must be invalid")
	}
	if status.Offline {
		t.Fatal("server answered, status must not be offline")
	}
	if cache.Load() != nil {
		t.Fatal("stale snapshot must be cleared when server says invalid")
	}
}

func TestOfflineFallback(t *testing.T) {
	cache := offline.NewCache(t.TempDir())
	snap := &offline.Snapshot{
		UserID:     "user-1",
		LicenseKey: "3F0A1-9BC42-D77E0-15AF8",
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}
	if err := cache.Save(snap); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	// Unreachable server
	client := New(Config{ServerURL: "http://127.0.0.1:1", Token: "tok"}, cache)
	status, err := client.ValidateAndSync()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !status.Offline {
		t.Fatal("expected offline status when server is unreachable")
	}
	if !status.IsValid {
		t.Fatal("unexpired snapshot must keep the device valid offline")
	}
	if status.LicenseKey != snap.LicenseKey {
		t.Fatalf("offline status missing license key: %+v", status)
	}
}

func TestOfflineFallbackExpiredSnapshot(t *testing.T) {
	cache := offline.NewCache(t.TempDir())
	snap := &offline.Snapshot{
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := cache.Save(snap); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	client := New(Config{ServerURL: "http://127.0.0.1:1", Token: "tok"}, cache)
	status, err := client.ValidateAndSync()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !status.Offline {
		t.Fatal("expected offline status")
	}
	if status.IsValid {
		t.Fatal("expired snapshot must not keep the device valid")
	}
}

func TestClearOffline(t *testing.T) {
	cache := offline.NewCache(t.TempDir())
	if err := cache.Save(&offline.Snapshot{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	client := New(Config{ServerURL: "http://127.0.0.1:1", Token: "tok"}, cache)
	if err := client.ClearOffline(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cache.Load() != nil {
		t.Fatal("snapshot must be gone after logout clear")
	}
	if client.Status().IsValid {
		t.Fatal("status must reset after logout clear")
	}
}
