// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

var _ auth.SessionRepository = (*SessionRepository)(nil)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO sessions (id, user_id, is_expired, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.ID.String(),
		session.UserID.String(),
		session.IsExpired,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID, expired or not.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	var (
		idStr, userIDStr string
		session          auth.Session
		createdAt        time.Time
	)
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, is_expired, created_at
		FROM sessions
		WHERE id = $1
	`, id.String()).Scan(&idStr, &userIDStr, &session.IsExpired, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by id").
			With("id", id.String()).
			Wrap(err)
	}

	if session.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("operation", "parse session id").With("id", idStr).Wrap(err)
	}
	if session.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("operation", "parse user id").With("user_id", userIDStr).Wrap(err)
	}
	session.CreatedAt = createdAt
	return &session, nil
}

// Invalidate marks a live session expired. Unknown or already expired
// sessions fail with ErrNotFound, so of two racing calls only one succeeds.
func (r *SessionRepository) Invalidate(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE sessions SET is_expired = TRUE
		WHERE id = $1 AND NOT is_expired
	`, id.String())
	if err != nil {
		return oops.Code("SESSION_INVALIDATE_FAILED").
			With("operation", "expire session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}
