// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token defaults.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultCookieName      = "refresh_token"
	DefaultCookiePath      = "/api/auth"

	// MinSecretLength is the minimum HMAC key size in bytes.
	MinSecretLength = 32
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// DisplayContext is presentation data embedded in access tokens so
// downstream consumers can render the user without a lookup.
type DisplayContext struct {
	Name    string
	PhotoID *uuid.UUID
}

// Claims is the payload of both token types. ID (jti) is the refresh record
// ID on refresh tokens and empty on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type      TokenType `json:"typ"`
	UserID    string    `json:"uid"`
	SessionID string    `json:"sid"`
	Name      string    `json:"name,omitempty"`
	PhotoID   string    `json:"photo_id,omitempty"`
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Secret       []byte
	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CookieName   string
	CookiePath   string
	CookieSecure bool
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenIssuer signs and validates HS256 tokens and builds the refresh cookie.
type TokenIssuer struct {
	secret       []byte
	issuer       string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	cookieName   string
	cookiePath   string
	cookieSecure bool
	now          func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. Zero durations and cookie settings
// fall back to the package defaults.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	t := &TokenIssuer{
		secret:       cfg.Secret,
		issuer:       cfg.Issuer,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		cookieName:   cfg.CookieName,
		cookiePath:   cfg.CookiePath,
		cookieSecure: cfg.CookieSecure,
		now:          cfg.Now,
	}
	if t.accessTTL <= 0 {
		t.accessTTL = DefaultAccessTokenTTL
	}
	if t.refreshTTL <= 0 {
		t.refreshTTL = DefaultRefreshTokenTTL
	}
	if t.accessTTL >= t.refreshTTL {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("access_ttl", t.accessTTL.String()).
			With("refresh_ttl", t.refreshTTL.String()).
			Errorf("access token lifetime must be shorter than refresh token lifetime")
	}
	if t.cookieName == "" {
		t.cookieName = DefaultCookieName
	}
	if t.cookiePath == "" {
		t.cookiePath = DefaultCookiePath
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// CookieName returns the name of the refresh cookie.
func (t *TokenIssuer) CookieName() string {
	return t.cookieName
}

// IssueAccessToken signs a short-lived token bound to userID and sessionID.
func (t *TokenIssuer) IssueAccessToken(userID, sessionID ulid.ULID, dc DisplayContext) (string, error) {
	claims := t.baseClaims(TokenTypeAccess, userID, sessionID, t.accessTTL)
	claims.Name = dc.Name
	if dc.PhotoID != nil {
		claims.PhotoID = dc.PhotoID.String()
	}
	return t.sign(claims)
}

// IssueRefreshToken signs a long-lived token bound to userID and sessionID.
// refreshID identifies the refresh record that keeps the token usable.
func (t *TokenIssuer) IssueRefreshToken(userID, sessionID, refreshID ulid.ULID) (string, error) {
	claims := t.baseClaims(TokenTypeRefresh, userID, sessionID, t.refreshTTL)
	claims.ID = refreshID.String()
	return t.sign(claims)
}

func (t *TokenIssuer) baseClaims(typ TokenType, userID, sessionID ulid.ULID, ttl time.Duration) *Claims {
	now := t.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type:      typ,
		UserID:    userID.String(),
		SessionID: sessionID.String(),
	}
}

func (t *TokenIssuer) sign(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("token_type", string(claims.Type)).
			Wrap(err)
	}
	return signed, nil
}

// RefreshCookie wraps a refresh token in an HttpOnly cookie scoped to the
// auth endpoints and living as long as the token.
func (t *TokenIssuer) RefreshCookie(refreshToken string) *http.Cookie {
	return &http.Cookie{
		Name:     t.cookieName,
		Value:    refreshToken,
		Path:     t.cookiePath,
		MaxAge:   int(t.refreshTTL / time.Second),
		Expires:  t.now().Add(t.refreshTTL),
		HttpOnly: true,
		Secure:   t.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearRefreshCookie returns a cookie that removes the refresh cookie.
func (t *TokenIssuer) ClearRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Path:     t.cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Validate checks signature, issuer and expiry of a token of either type.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, oops.Code("TOKEN_EMPTY").Wrapf(ErrInvalidToken, "token cannot be empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, oops.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, opts...)
	if err != nil {
		code := "TOKEN_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		// The jwt error is kept out of the chain so callers only see ErrInvalidToken.
		return nil, oops.Code(code).
			With("reason", err.Error()).
			Wrapf(ErrInvalidToken, "token validation failed")
	}
	if !token.Valid {
		return nil, oops.Code("TOKEN_INVALID").Wrapf(ErrInvalidToken, "token validation failed")
	}

	switch claims.Type {
	case TokenTypeAccess, TokenTypeRefresh:
	default:
		return nil, oops.Code("TOKEN_INVALID").
			With("token_type", string(claims.Type)).
			Wrapf(ErrInvalidToken, "unknown token type")
	}
	if _, err := t.SessionID(claims); err != nil {
		return nil, err
	}
	if _, err := t.UserID(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateAccess validates tokenString and requires an access token.
func (t *TokenIssuer) ValidateAccess(tokenString string) (*Claims, error) {
	return t.validateType(tokenString, TokenTypeAccess)
}

// ValidateRefresh validates tokenString and requires a refresh token.
func (t *TokenIssuer) ValidateRefresh(tokenString string) (*Claims, error) {
	claims, err := t.validateType(tokenString, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if _, err := t.RefreshID(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenIssuer) validateType(tokenString string, want TokenType) (*Claims, error) {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, oops.Code("TOKEN_WRONG_TYPE").
			With("token_type", string(claims.Type)).
			With("expected_type", string(want)).
			Wrapf(ErrInvalidToken, "expected %s token", want)
	}
	return claims, nil
}

// SessionID extracts the session the token is bound to.
func (t *TokenIssuer) SessionID(claims *Claims) (ulid.ULID, error) {
	return parseClaimID("sid", claims.SessionID)
}

// UserID extracts the user the token was issued to.
func (t *TokenIssuer) UserID(claims *Claims) (ulid.ULID, error) {
	return parseClaimID("uid", claims.UserID)
}

// RefreshID extracts the refresh record ID of a refresh token.
func (t *TokenIssuer) RefreshID(claims *Claims) (ulid.ULID, error) {
	return parseClaimID("jti", claims.ID)
}

func parseClaimID(claim, value string) (ulid.ULID, error) {
	id, err := ulid.Parse(value)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_INVALID_CLAIM").
			With("claim", claim).
			Wrapf(ErrInvalidToken, "malformed %s claim", claim)
	}
	return id, nil
}
