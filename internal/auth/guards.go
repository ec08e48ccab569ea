// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"mime"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// JPEGContentType is the only accepted profile image media type.
const JPEGContentType = "image/jpeg"

// RegistrationGuard rejects registrations whose login or email is taken.
// It only reads; the unique constraints in storage remain the final check.
type RegistrationGuard struct {
	users UserRepository
}

// NewRegistrationGuard creates a RegistrationGuard.
func NewRegistrationGuard(users UserRepository) *RegistrationGuard {
	return &RegistrationGuard{users: users}
}

// ValidateLoginIsFree fails with ErrAlreadyExists if login is registered.
func (g *RegistrationGuard) ValidateLoginIsFree(ctx context.Context, login string) error {
	_, err := g.users.GetByLogin(ctx, login)
	switch {
	case err == nil:
		return LoginTakenError(login)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code("REGISTER_GUARD_FAILED").
			With("operation", "get user by login").
			Wrap(err)
	}
}

// ValidateEmailIsFree fails with ErrAlreadyExists if email is registered.
func (g *RegistrationGuard) ValidateEmailIsFree(ctx context.Context, email string) error {
	_, err := g.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return EmailTakenError(email)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code("REGISTER_GUARD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
}

// LoginTakenError is the AlreadyExists failure for a registered login.
func LoginTakenError(login string) error {
	return oops.Code("USER_LOGIN_EXISTS").
		With("login", login).
		Wrapf(ErrAlreadyExists, "user with login %q already exists", login)
}

// EmailTakenError is the AlreadyExists failure for a registered email.
func EmailTakenError(email string) error {
	return oops.Code("USER_EMAIL_EXISTS").
		With("email", email).
		Wrapf(ErrAlreadyExists, "user with email %q already exists", email)
}

// SessionGuard rejects sessions that are unknown or expired.
type SessionGuard struct {
	sessions SessionRepository
}

// NewSessionGuard creates a SessionGuard.
func NewSessionGuard(sessions SessionRepository) *SessionGuard {
	return &SessionGuard{sessions: sessions}
}

// ValidateActive returns the session if it exists and is not expired.
// Both failure cases wrap ErrNotFound.
func (g *SessionGuard) ValidateActive(ctx context.Context, sessionID ulid.ULID) (*Session, error) {
	session, err := g.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, SessionNotFoundError(sessionID)
		}
		return nil, oops.Code("SESSION_GUARD_FAILED").
			With("operation", "get session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	if session.IsExpired {
		return nil, oops.Code("SESSION_EXPIRED").
			With("session_id", sessionID.String()).
			Wrapf(ErrNotFound, "session is no longer active")
	}
	return session, nil
}

// SessionNotFoundError is the NotFound failure for an unknown session.
func SessionNotFoundError(sessionID ulid.ULID) error {
	return oops.Code("SESSION_NOT_FOUND").
		With("session_id", sessionID.String()).
		Wrapf(ErrNotFound, "session not found")
}

// ImageGuard validates profile image operations.
type ImageGuard struct {
	users UserRepository
}

// NewImageGuard creates an ImageGuard.
func NewImageGuard(users UserRepository) *ImageGuard {
	return &ImageGuard{users: users}
}

// ValidateFormat accepts only JPEG content.
func (g *ImageGuard) ValidateFormat(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != JPEGContentType {
		return oops.Code("IMAGE_INVALID_FORMAT").
			With("content_type", contentType).
			Wrapf(ErrCannotBeCreated, "invalid media type, only jpeg images are allowed")
	}
	return nil
}

// ValidateNoImage returns the user if no profile image is associated yet.
func (g *ImageGuard) ValidateNoImage(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := g.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.HasPhoto() {
		return nil, ImageExistsError(userID)
	}
	return user, nil
}

// ValidateHasImage returns the user if a profile image is associated.
func (g *ImageGuard) ValidateHasImage(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := g.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasPhoto() {
		return nil, oops.Code("IMAGE_NOT_FOUND").
			With("user_id", userID.String()).
			Wrapf(ErrNotFound, "profile image does not exist")
	}
	return user, nil
}

func (g *ImageGuard) loadUser(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, UserNotFoundError("id", userID.String())
		}
		return nil, oops.Code("IMAGE_GUARD_FAILED").
			With("operation", "get user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// ImageExistsError is the AlreadyExists failure for a user who already has a
// profile image.
func ImageExistsError(userID ulid.ULID) error {
	return oops.Code("IMAGE_EXISTS").
		With("user_id", userID.String()).
		Wrapf(ErrAlreadyExists, "profile image already exists")
}

// UserNotFoundError is the NotFound failure for a user lookup by field.
func UserNotFoundError(field, value string) error {
	return oops.Code("USER_NOT_FOUND").
		With(field, value).
		Wrapf(ErrNotFound, "no user found with %s %s", field, value)
}
