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

var _ auth.RefreshRecordRepository = (*RefreshRecordRepository)(nil)

// RefreshRecordRepository implements auth.RefreshRecordRepository using PostgreSQL.
type RefreshRecordRepository struct {
	db DBTX
}

// NewRefreshRecordRepository creates a new RefreshRecordRepository.
func NewRefreshRecordRepository(db DBTX) *RefreshRecordRepository {
	return &RefreshRecordRepository{db: db}
}

// Create stores a new refresh record. A session can hold one live record.
func (r *RefreshRecordRepository) Create(ctx context.Context, record *auth.RefreshRecord) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO refresh_records (id, session_id, is_expired, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		record.ID.String(),
		record.SessionID.String(),
		record.IsExpired,
		record.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok && constraint == constraintLiveRefreshKey {
		return oops.Code("REFRESH_LIVE_EXISTS").
			With("session_id", record.SessionID.String()).
			Wrapf(auth.ErrAlreadyExists, "session already has a live refresh record")
	}
	return oops.Code("REFRESH_CREATE_FAILED").
		With("operation", "insert refresh record").
		With("session_id", record.SessionID.String()).
		Wrap(err)
}

// GetByID retrieves a refresh record by its ID.
func (r *RefreshRecordRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.RefreshRecord, error) {
	var (
		idStr, sessionIDStr string
		record              auth.RefreshRecord
		createdAt           time.Time
	)
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, session_id, is_expired, created_at
		FROM refresh_records
		WHERE id = $1
	`, id.String()).Scan(&idStr, &sessionIDStr, &record.IsExpired, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_GET_FAILED").
			With("operation", "get refresh record by id").
			With("id", id.String()).
			Wrap(err)
	}

	if record.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("REFRESH_SCAN_FAILED").With("operation", "parse refresh id").With("id", idStr).Wrap(err)
	}
	if record.SessionID, err = ulid.Parse(sessionIDStr); err != nil {
		return nil, oops.Code("REFRESH_SCAN_FAILED").With("operation", "parse session id").With("session_id", sessionIDStr).Wrap(err)
	}
	record.CreatedAt = createdAt
	return &record, nil
}

// InvalidateBySession expires every live record of a session. Finding none
// is not an error.
func (r *RefreshRecordRepository) InvalidateBySession(ctx context.Context, sessionID ulid.ULID) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE refresh_records SET is_expired = TRUE
		WHERE session_id = $1 AND NOT is_expired
	`, sessionID.String())
	if err != nil {
		return oops.Code("REFRESH_INVALIDATE_FAILED").
			With("operation", "expire refresh records by session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return nil
}

// Invalidate expires one live record. Unknown or already expired records
// fail with ErrNotFound.
func (r *RefreshRecordRepository) Invalidate(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE refresh_records SET is_expired = TRUE
		WHERE id = $1 AND NOT is_expired
	`, id.String())
	if err != nil {
		return oops.Code("REFRESH_INVALIDATE_FAILED").
			With("operation", "expire refresh record").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REFRESH_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}
