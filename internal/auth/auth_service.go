// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/pkg/errutil"
)

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Users          UserRepository
	Sessions       SessionRepository
	RefreshRecords RefreshRecordRepository
	Transactor     Transactor
	Hasher         PasswordHasher
	Tokens         *TokenIssuer
	// Images is optional; registering with an image fails without it.
	Images ImageStore
	// Logger defaults to slog.Default(). A logger stored in the request
	// context with logging.WithLogger takes precedence.
	Logger *slog.Logger
}

// Service provides registration, login, logout and token refresh.
type Service struct {
	users        UserRepository
	sessions     SessionRepository
	refresh      RefreshRecordRepository
	tx           Transactor
	hasher       PasswordHasher
	tokens       *TokenIssuer
	images       ImageStore
	registration *RegistrationGuard
	sessionGuard *SessionGuard
	imageGuard   *ImageGuard
	logger       *slog.Logger
}

// NewService creates a new Service with the given configuration.
// Returns an error if any required dependency is nil.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("users repository is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("sessions repository is required")
	}
	if cfg.RefreshRecords == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("refresh records repository is required")
	}
	if cfg.Transactor == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("transactor is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token issuer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:        cfg.Users,
		sessions:     cfg.Sessions,
		refresh:      cfg.RefreshRecords,
		tx:           cfg.Transactor,
		hasher:       cfg.Hasher,
		tokens:       cfg.Tokens,
		images:       cfg.Images,
		registration: NewRegistrationGuard(cfg.Users),
		sessionGuard: NewSessionGuard(cfg.Sessions),
		imageGuard:   NewImageGuard(cfg.Users),
		logger:       logger,
	}, nil
}

// Credentials is a login attempt. The password is discarded after verification.
type Credentials struct {
	Login    string
	Password string
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	UserID        ulid.ULID
	SessionID     ulid.ULID
	AccessToken   string
	RefreshToken  string
	RefreshCookie *http.Cookie
}

// Principal identifies the caller behind a validated access token.
type Principal struct {
	UserID    ulid.ULID
	SessionID ulid.ULID
	Claims    *Claims
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// beforeWrite fails if the caller is gone before any write was issued.
// Writes that follow run on a context detached from the caller's cancellation.
func beforeWrite(ctx context.Context, operation string) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("AUTH_CANCELLED").
			With("operation", operation).
			Wrap(err)
	}
	return context.WithoutCancel(ctx), nil
}

// Login verifies credentials and opens a session with its refresh record.
func (s *Service) Login(ctx context.Context, creds Credentials) (result *LoginResult, err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationLogin, err, time.Since(start)) }()

	user, err := s.users.GetByLogin(ctx, creds.Login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, UserNotFoundError("login", creds.Login)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by login").
			Wrap(err)
	}

	ok, err := s.hasher.Verify(creds.Password, user.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !ok {
		return nil, oops.Code("AUTH_PASSWORD_MISMATCH").
			With("login", creds.Login).
			Wrapf(ErrUnauthorized, "password does not match")
	}

	session, err := NewSession(user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "new session").Wrap(err)
	}
	record, err := NewRefreshRecord(session.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "new refresh record").Wrap(err)
	}
	result, err = s.issue(user, session.ID, record.ID)
	if err != nil {
		return nil, err
	}

	writeCtx, err := beforeWrite(ctx, "login")
	if err != nil {
		return nil, err
	}
	err = s.tx.InTransaction(writeCtx, func(txCtx context.Context) error {
		if err := s.sessions.Create(txCtx, session); err != nil {
			return oops.With("operation", "persist session").Wrap(err)
		}
		if err := s.refresh.Create(txCtx, record); err != nil {
			return oops.With("operation", "persist refresh record").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("session_id", session.ID.String()).
			Wrap(err)
	}

	s.upgradePasswordHash(writeCtx, user, creds.Password)

	s.log(ctx).InfoContext(ctx, "user logged in",
		"user_id", user.ID.String(),
		"session_id", session.ID.String())
	return result, nil
}

// upgradePasswordHash re-hashes legacy hashes after a successful login.
// Failure is logged and never fails the login.
func (s *Service) upgradePasswordHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		errutil.LogWarn(ctx, s.log(ctx), "password hash upgrade failed",
			oops.With("user_id", user.ID.String()).Wrap(err))
	}
}

func (s *Service) issue(user *User, sessionID, refreshID ulid.ULID) (*LoginResult, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, sessionID, user.DisplayContext())
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, sessionID, refreshID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		UserID:        user.ID,
		SessionID:     sessionID,
		AccessToken:   access,
		RefreshToken:  refresh,
		RefreshCookie: s.tokens.RefreshCookie(refresh),
	}, nil
}

// Logout expires the session referenced by an access or refresh token
// together with its refresh record. A session that is already expired
// fails with ErrNotFound.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationLogout, err, time.Since(start)) }()

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	sessionID, err := s.tokens.SessionID(claims)
	if err != nil {
		return err
	}
	if _, err := s.sessionGuard.ValidateActive(ctx, sessionID); err != nil {
		return err
	}

	writeCtx, err := beforeWrite(ctx, "logout")
	if err != nil {
		return err
	}
	// The refresh record goes first so a racing refresh cannot see a live
	// record for a session that is being closed.
	err = s.tx.InTransaction(writeCtx, func(txCtx context.Context) error {
		if err := s.refresh.InvalidateBySession(txCtx, sessionID); err != nil {
			return oops.With("operation", "invalidate refresh record").Wrap(err)
		}
		if err := s.sessions.Invalidate(txCtx, sessionID); err != nil {
			return oops.With("operation", "invalidate session").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	s.log(ctx).InfoContext(ctx, "user logged out",
		"user_id", claims.UserID,
		"session_id", sessionID.String())
	return nil
}

// Refresh rotates the refresh record of an active session and issues a new
// token pair. Refresh tokens whose record or session is no longer live fail
// with ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (result *LoginResult, err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationRefresh, err, time.Since(start)) }()

	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	sessionID, err := s.tokens.SessionID(claims)
	if err != nil {
		return nil, err
	}
	userID, err := s.tokens.UserID(claims)
	if err != nil {
		return nil, err
	}
	refreshID, err := s.tokens.RefreshID(claims)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionGuard.ValidateActive(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, revokedTokenError(sessionID, "session is no longer active")
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, revokedTokenError(sessionID, "session belongs to another user")
	}

	record, err := s.refresh.GetByID(ctx, refreshID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, revokedTokenError(sessionID, "refresh record not found")
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get refresh record").
			Wrap(err)
	}
	if record.IsExpired || record.SessionID != sessionID {
		return nil, revokedTokenError(sessionID, "refresh token has been revoked")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	next, err := NewRefreshRecord(sessionID)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "new refresh record").Wrap(err)
	}
	result, err = s.issue(user, sessionID, next.ID)
	if err != nil {
		return nil, err
	}

	writeCtx, err := beforeWrite(ctx, "refresh")
	if err != nil {
		return nil, err
	}
	err = s.tx.InTransaction(writeCtx, func(txCtx context.Context) error {
		if err := s.refresh.Invalidate(txCtx, refreshID); err != nil {
			return oops.With("operation", "invalidate refresh record").Wrap(err)
		}
		if err := s.refresh.Create(txCtx, next); err != nil {
			return oops.With("operation", "persist refresh record").Wrap(err)
		}
		return nil
	})
	if err != nil {
		// A concurrent rotation won the race for the same record.
		if errors.Is(err, ErrNotFound) {
			return nil, revokedTokenError(sessionID, "refresh token has been revoked")
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	s.log(ctx).DebugContext(ctx, "refresh token rotated",
		"user_id", userID.String(),
		"session_id", sessionID.String())
	return result, nil
}

func revokedTokenError(sessionID ulid.ULID, reason string) error {
	return oops.Code("TOKEN_REVOKED").
		With("session_id", sessionID.String()).
		With("reason", reason).
		Wrapf(ErrInvalidToken, "refresh token is no longer valid")
}

// Authenticate validates an access token and checks that its session is
// still active. Tokens of closed sessions fail with ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, err
	}
	sessionID, err := s.tokens.SessionID(claims)
	if err != nil {
		return nil, err
	}
	userID, err := s.tokens.UserID(claims)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessionGuard.ValidateActive(ctx, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_SESSION_CLOSED").
				With("session_id", sessionID.String()).
				Wrapf(ErrInvalidToken, "session is no longer active")
		}
		return nil, err
	}
	return &Principal{UserID: userID, SessionID: sessionID, Claims: claims}, nil
}
