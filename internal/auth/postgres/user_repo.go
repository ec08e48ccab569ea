// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

var _ auth.UserRepository = (*UserRepository)(nil)

const userColumns = `id, firstname, lastname, age, login, email, password_hash, photo_id, created_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Unique violations on login or email become
// the matching AlreadyExists error.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO users (id, firstname, lastname, age, login, email, password_hash, photo_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Firstname,
		user.Lastname,
		user.Age,
		user.Login,
		user.Email,
		user.PasswordHash,
		uuidToStringPtr(user.PhotoID),
		user.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case constraintUsersLogin:
			return auth.LoginTakenError(user.Login)
		case constraintUsersEmail:
			if user.Email != nil {
				return auth.EmailTakenError(*user.Email)
			}
		}
	}
	return oops.Code("USER_CREATE_FAILED").
		With("operation", "insert user").
		With("login", user.Login).
		Wrap(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	return r.get(row, "id", id.String())
}

// GetByLogin retrieves a user by login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE login = $1`, login)
	return r.get(row, "login", login)
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return r.get(row, "email", email)
}

func (r *UserRepository) get(row pgx.Row, field, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With(field, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+field).
			With(field, value).
			Wrap(err)
	}
	return user, nil
}

// AssociatePhoto sets photo_id only while it is NULL. The statement returns
// the reference left on the row, so a different value means another image
// was associated first.
func (r *UserRepository) AssociatePhoto(ctx context.Context, id ulid.ULID, photoID uuid.UUID) error {
	var current string
	err := conn(ctx, r.db).QueryRow(ctx, `
		UPDATE users SET photo_id = COALESCE(photo_id, $2) WHERE id = $1
		RETURNING photo_id
	`, id.String(), photoID.String()).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_PHOTO_FAILED").
			With("operation", "associate photo_id").
			With("id", id.String()).
			Wrap(err)
	}
	if current != photoID.String() {
		return auth.ImageExistsError(id)
	}
	return nil
}

// ClearPhoto sets photo_id to NULL.
func (r *UserRepository) ClearPhoto(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET photo_id = NULL WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_UPDATE_PHOTO_FAILED").
			With("operation", "clear photo_id").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password_hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser propagates pgx.ErrNoRows unchanged.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		user      auth.User
		photoStr  *string
		createdAt time.Time
	)
	err := row.Scan(&idStr, &user.Firstname, &user.Lastname, &user.Age, &user.Login,
		&user.Email, &user.PasswordHash, &photoStr, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user").Wrap(err)
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	if photoStr != nil {
		photoID, err := uuid.Parse(*photoStr)
		if err != nil {
			return nil, oops.Code("USER_SCAN_FAILED").
				With("operation", "parse photo_id").
				With("photo_id", *photoStr).
				Wrap(err)
		}
		user.PhotoID = &photoID
	}
	user.CreatedAt = createdAt
	return &user, nil
}

func uuidToStringPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
