// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements account registration and the session lifecycle.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with validated login, email, names and age
//   - NewSession - creates an active Session owned by a user
//   - NewRefreshRecord - creates a live RefreshRecord bound to a session
//
// A Session and its RefreshRecord are written and expired together inside a
// Transactor unit of work. Sessions are never deleted; logout only marks them
// expired.
//
// # Services
//
//   - Service - register, login, logout, refresh and access token authentication
//   - UserService - profile reads and profile image changes
//
// Guards (RegistrationGuard, SessionGuard, ImageGuard) read current state and
// fail before any write is attempted.
//
// # Errors
//
// Every domain failure is an oops error wrapping one of ErrAlreadyExists,
// ErrNotFound, ErrInvalidToken, ErrUnauthorized or ErrCannotBeCreated. KindOf
// classifies an error and Payload returns its client-facing fields.
package auth
