// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshRecord tracks whether the refresh token paired with a session is
// still usable. Its ID is the jti of the refresh token.
type RefreshRecord struct {
	ID        ulid.ULID
	SessionID ulid.ULID
	IsExpired bool
	CreatedAt time.Time
}

// NewRefreshRecord creates a live record bound to sessionID.
func NewRefreshRecord(sessionID ulid.ULID) (*RefreshRecord, error) {
	if sessionID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("REFRESH_INVALID_SESSION").Errorf("session ID cannot be zero")
	}
	return &RefreshRecord{
		ID:        ulid.Make(),
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}, nil
}

// RefreshRecordRepository manages refresh record persistence. At most one
// live record exists per session.
type RefreshRecordRepository interface {
	// Create stores a new refresh record. The referenced session must exist.
	Create(ctx context.Context, record *RefreshRecord) error

	// GetByID retrieves a record by its ID.
	GetByID(ctx context.Context, id ulid.ULID) (*RefreshRecord, error)

	// InvalidateBySession expires the live record of a session. A session
	// without a live record is not an error.
	InvalidateBySession(ctx context.Context, sessionID ulid.ULID) error

	// Invalidate expires a single live record. Returns an error wrapping
	// ErrNotFound if the record is unknown or already expired.
	Invalidate(ctx context.Context, id ulid.ULID) error
}

// Transactor runs fn inside a unit of work. Repository calls made with the
// context passed to fn join the same transaction; fn's error rolls it back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
