// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Login validation constraints.
const (
	MinLoginLength = 3
	MaxLoginLength = 32
)

// Age bounds accepted at registration.
const (
	MinAge = 1
	MaxAge = 150
)

// MaxNameLength bounds firstname and lastname in runes.
const MaxNameLength = 64

// loginRegex matches logins that start with a letter and continue with
// letters, digits, dots, dashes or underscores.
var loginRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Firstname    string
	Lastname     string
	Age          int
	Login        string
	Email        *string
	PasswordHash string
	PhotoID      *uuid.UUID
	CreatedAt    time.Time
}

// NewUserParams holds the fields needed to build a User.
type NewUserParams struct {
	Firstname    string
	Lastname     string
	Age          int
	Login        string
	Email        *string
	PasswordHash string
	PhotoID      *uuid.UUID
}

// Validate checks every field except the password hash.
func (p NewUserParams) Validate() error {
	if err := ValidateLogin(p.Login); err != nil {
		return err
	}
	if p.Email != nil {
		if err := ValidateEmail(*p.Email); err != nil {
			return err
		}
	}
	if err := validateName("firstname", p.Firstname); err != nil {
		return err
	}
	if err := validateName("lastname", p.Lastname); err != nil {
		return err
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return oops.Code("USER_INVALID_AGE").
			With("age", p.Age).
			Wrapf(ErrCannotBeCreated, "age must be between %d and %d", MinAge, MaxAge)
	}
	return nil
}

// NewUser creates a validated User with a fresh identity.
// Names are expected to be normalized already.
func NewUser(p NewUserParams) (*User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.PasswordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}

	return &User{
		ID:           ulid.Make(),
		Firstname:    p.Firstname,
		Lastname:     p.Lastname,
		Age:          p.Age,
		Login:        p.Login,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		PhotoID:      p.PhotoID,
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateLogin checks login length and character set.
func ValidateLogin(login string) error {
	if login == "" {
		return oops.Code("USER_INVALID_LOGIN").
			With("login", login).
			Wrapf(ErrCannotBeCreated, "login cannot be empty")
	}
	if len(login) < MinLoginLength || len(login) > MaxLoginLength {
		return oops.Code("USER_INVALID_LOGIN").
			With("login", login).
			With("min", MinLoginLength).
			With("max", MaxLoginLength).
			Wrapf(ErrCannotBeCreated, "login must be %d to %d characters", MinLoginLength, MaxLoginLength)
	}
	if !loginRegex.MatchString(login) {
		return oops.Code("USER_INVALID_LOGIN").
			With("login", login).
			Wrapf(ErrCannotBeCreated, "login must start with a letter and contain only letters, digits, '.', '-' or '_'")
	}
	return nil
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("USER_INVALID_EMAIL").
			With("email", email).
			Wrapf(ErrCannotBeCreated, "invalid email address")
	}
	return nil
}

func validateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return oops.Code("USER_INVALID_NAME").
			With("field", field).
			Wrapf(ErrCannotBeCreated, "%s cannot be empty", field)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return oops.Code("USER_INVALID_NAME").
			With("field", field).
			With("max", MaxNameLength).
			Wrapf(ErrCannotBeCreated, "%s cannot exceed %d characters", field, MaxNameLength)
	}
	return nil
}

// NormalizeName lowercases name and upper-cases its first letter.
// "mcDONALD" becomes "Mcdonald".
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	first, size := utf8.DecodeRuneInString(lower)
	if first == utf8.RuneError {
		return lower
	}
	return string(unicode.ToUpper(first)) + lower[size:]
}

// FullName returns "Firstname Lastname".
func (u *User) FullName() string {
	return u.Firstname + " " + u.Lastname
}

// DisplayContext returns the presentation fields embedded in access tokens.
func (u *User) DisplayContext() DisplayContext {
	return DisplayContext{Name: u.FullName(), PhotoID: u.PhotoID}
}

// HasPhoto reports whether a profile image is associated with the user.
func (u *User) HasPhoto() bool {
	return u.PhotoID != nil
}

// UserProjection is the public view of a User. It never carries the password hash.
type UserProjection struct {
	ID        string     `json:"id"`
	Firstname string     `json:"firstname"`
	Lastname  string     `json:"lastname"`
	Age       int        `json:"age"`
	Login     string     `json:"login"`
	Email     *string    `json:"email,omitempty"`
	PhotoID   *uuid.UUID `json:"photo_id,omitempty"`
}

// Projection maps u to its public view.
func (u *User) Projection() *UserProjection {
	return &UserProjection{
		ID:        u.ID.String(),
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Age:       u.Age,
		Login:     u.Login,
		Email:     u.Email,
		PhotoID:   u.PhotoID,
	}
}

// UserRepository manages user persistence.
//
// Create must map a storage-level uniqueness violation on login or email to an
// error wrapping ErrAlreadyExists with the offending field in its context.
// Lookups return an error wrapping ErrNotFound when no row matches.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByLogin retrieves a user by login.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// AssociatePhoto sets the profile image reference of a user who has none.
	// It fails with an error wrapping ErrAlreadyExists when a reference is
	// already set, so concurrent associations cannot overwrite each other.
	AssociatePhoto(ctx context.Context, id ulid.ULID, photoID uuid.UUID) error

	// ClearPhoto removes the profile image reference.
	ClearPhoto(ctx context.Context, id ulid.ULID) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
