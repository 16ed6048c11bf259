package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidationErrorKeepsFirstMessage(t *testing.T) {
	verr := NewValidationError()
	if verr.OrNil() != nil {
		t.Fatal("empty validation error should be nil")
	}

	verr.Add("title", "first")
	verr.Add("title", "second")
	verr.Add("description", "other")

	if verr.Fields["title"] != "first" {
		t.Errorf("expected first message kept, got %q", verr.Fields["title"])
	}
	if got := verr.Error(); got != "validation failed: description: other; title: first" {
		t.Errorf("unexpected message %q", got)
	}

	wrapped := fmt.Errorf("create: %w", verr.OrNil())
	var target *ValidationError
	if !errors.As(wrapped, &target) || target != verr {
		t.Error("expected errors.As to find the validation error")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := Session{ExpiresAt: now}
	if !sess.Expired(now) {
		t.Error("session expiring now should be expired")
	}
	if sess.Expired(now.Add(-time.Second)) {
		t.Error("session should be valid before expiry")
	}
}

func TestIdentityAnonymous(t *testing.T) {
	if !(Identity{}).Anonymous() {
		t.Error("zero identity should be anonymous")
	}
	if (Identity{UserID: 1}).Anonymous() {
		t.Error("identity with user should not be anonymous")
	}
}
