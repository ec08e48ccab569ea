// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Kind classifies an error for callers that must react to it, such as the
// HTTP layer choosing a status code.
type Kind int

// Error kinds. KindInternal covers everything that is not a domain failure.
const (
	KindInternal Kind = iota
	KindAlreadyExists
	KindNotFound
	KindInvalidToken
	KindUnauthorized
	KindCannotBeCreated
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAlreadyExists:
		return "already_exists"
	case KindNotFound:
		return "not_found"
	case KindInvalidToken:
		return "invalid_token"
	case KindUnauthorized:
		return "unauthorized"
	case KindCannotBeCreated:
		return "cannot_be_created"
	default:
		return "internal"
	}
}

// Sentinel errors wrapped by every coded domain error.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a uniqueness rule would be violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidToken is returned when a token fails signature, expiry or type checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthorized is returned when supplied credentials do not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCannotBeCreated is returned for malformed input that cannot be persisted.
	ErrCannotBeCreated = errors.New("cannot be created")
)

// KindOf reports the kind of err. Errors that wrap none of the sentinels are
// KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrCannotBeCreated):
		return KindCannotBeCreated
	default:
		return KindInternal
	}
}

// internalContextKeys are oops context entries meant for logs, not clients.
var internalContextKeys = map[string]struct{}{
	"operation": {},
}

// Payload returns the structured fields attached to err for client display.
// Internal diagnostics are omitted. The result is never nil.
func Payload(err error) map[string]any {
	payload := map[string]any{}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return payload
	}
	for k, v := range oopsErr.Context() {
		if _, internal := internalContextKeys[k]; internal {
			continue
		}
		payload[k] = v
	}
	return payload
}

// Code returns the machine-readable code of err, or fallback when err
// carries none.
func Code(err error, fallback string) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return fallback
	}
	if code, ok := oopsErr.Code().(string); ok && code != "" {
		return code
	}
	return fallback
}
