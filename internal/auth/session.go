// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session is the server-side record of a login. It is created active and
// transitions to expired exactly once, on logout.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	IsExpired bool
	CreatedAt time.Time
}

// NewSession creates an active session owned by userID.
func NewSession(userID ulid.ULID) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}, nil
}

// IsActive reports whether the session has not been invalidated.
func (s *Session) IsActive() bool {
	return !s.IsExpired
}

// SessionRepository manages session persistence. Sessions are never deleted.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by its ID, active or not.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// Invalidate marks an active session expired. Returns an error wrapping
	// ErrNotFound if the session is unknown or already expired.
	Invalidate(ctx context.Context, id ulid.ULID) error
}
