package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	s := &Session{
		ID:        "abc",
		UserID:    "alice",
		Token:     testToken("token"),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := m.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	s.Token.AccessToken = "mutated"

	got, err := m.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Token.AccessToken != "token" {
		t.Errorf("AccessToken = %q, want %q", got.Token.AccessToken, "token")
	}

	if err := m.UpdateToken(ctx, "abc", testToken("refreshed")); err != nil {
		t.Fatalf("UpdateToken() error = %v", err)
	}
	got, _ = m.Load(ctx, "abc")
	if got.Token.AccessToken != "refreshed" {
		t.Errorf("AccessToken = %q, want %q", got.Token.AccessToken, "refreshed")
	}

	if err := m.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Load(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_Expired(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	_ = m.Save(ctx, &Session{
		ID:        "old",
		Token:     testToken("t"),
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	if _, err := m.Load(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_UpdateUnknown(t *testing.T) {
	m := NewMemoryBackend()
	if err := m.UpdateToken(context.Background(), "missing", testToken("t")); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateToken() error = %v, want ErrNotFound", err)
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now}

	if !s.Expired(now) {
		t.Error("Expired() at ExpiresAt = false, want true")
	}
	if s.Expired(now.Add(-time.Second)) {
		t.Error("Expired() before ExpiresAt = true, want false")
	}
}
