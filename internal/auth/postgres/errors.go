// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Unique constraints the repositories translate into domain errors.
const (
	constraintUsersLogin     = "users_login_key"
	constraintUsersEmail     = "users_email_key"
	constraintLiveRefreshKey = "refresh_records_live_session_key"
)

// uniqueViolation returns the violated constraint name if err is a unique
// violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
