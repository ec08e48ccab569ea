// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, clock *fakeClock) *auth.TokenIssuer {
	t.Helper()
	cfg := auth.TokenConfig{
		Secret:       testSecret,
		Issuer:       "accounts-test",
		AccessTTL:    5 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		CookiePath:   "/api/auth",
		CookieSecure: true,
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	issuer, err := auth.NewTokenIssuer(cfg)
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte("short")})
		errutil.AssertErrorCode(t, err, "TOKEN_CONFIG_INVALID")
	})

	t.Run("rejects access ttl not shorter than refresh ttl", func(t *testing.T) {
		_, err := auth.NewTokenIssuer(auth.TokenConfig{
			Secret:     testSecret,
			AccessTTL:  time.Hour,
			RefreshTTL: time.Hour,
		})
		errutil.AssertErrorCode(t, err, "TOKEN_CONFIG_INVALID")
	})

	t.Run("applies defaults", func(t *testing.T) {
		issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret})
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultCookieName, issuer.CookieName())
		cookie := issuer.RefreshCookie("x")
		assert.Equal(t, auth.DefaultCookiePath, cookie.Path)
		assert.Equal(t, int(auth.DefaultRefreshTokenTTL/time.Second), cookie.MaxAge)
	})
}

func TestTokenIssuer_AccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	userID, sessionID := ulid.Make(), ulid.Make()
	photo := uuid.New()

	token, err := issuer.IssueAccessToken(userID, sessionID, auth.DisplayContext{Name: "Bob Builder", PhotoID: &photo})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)

	gotSession, err := issuer.SessionID(claims)
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotSession)

	gotUser, err := issuer.UserID(claims)
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)

	assert.Equal(t, auth.TokenTypeAccess, claims.Type)
	assert.Equal(t, "Bob Builder", claims.Name)
	assert.Equal(t, photo.String(), claims.PhotoID)
	assert.Equal(t, "accounts-test", claims.Issuer)
	assert.Empty(t, claims.ID)

	_, err = issuer.ValidateAccess(token)
	require.NoError(t, err)
}

func TestTokenIssuer_RefreshTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	userID, sessionID, refreshID := ulid.Make(), ulid.Make(), ulid.Make()

	token, err := issuer.IssueRefreshToken(userID, sessionID, refreshID)
	require.NoError(t, err)

	claims, err := issuer.ValidateRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeRefresh, claims.Type)

	gotRefresh, err := issuer.RefreshID(claims)
	require.NoError(t, err)
	assert.Equal(t, refreshID, gotRefresh)

	gotSession, err := issuer.SessionID(claims)
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotSession)
}

func TestTokenIssuer_TypeEnforcement(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	access, err := issuer.IssueAccessToken(ulid.Make(), ulid.Make(), auth.DisplayContext{Name: "A B"})
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken(ulid.Make(), ulid.Make(), ulid.Make())
	require.NoError(t, err)

	_, err = issuer.ValidateRefresh(access)
	errutil.AssertErrorCode(t, err, "TOKEN_WRONG_TYPE")
	errutil.AssertErrorIs(t, err, auth.ErrInvalidToken)

	_, err = issuer.ValidateAccess(refresh)
	errutil.AssertErrorCode(t, err, "TOKEN_WRONG_TYPE")
}

func TestTokenIssuer_RejectsBadTokens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	token, err := issuer.IssueAccessToken(ulid.Make(), ulid.Make(), auth.DisplayContext{Name: "A B"})
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := issuer.Validate("")
		errutil.AssertErrorCode(t, err, "TOKEN_EMPTY")
		errutil.AssertErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not.a.token")
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"typ": "access"}).
			SignedString([]byte("another-secret-another-secret-xx"))
		require.NoError(t, err)
		tampered := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

		_, err = issuer.Validate(tampered)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("signed with another key", func(t *testing.T) {
		other, err := auth.NewTokenIssuer(auth.TokenConfig{
			Secret: []byte("ffffffffffffffffffffffffffffffff"),
			Issuer: "accounts-test",
		})
		require.NoError(t, err)
		foreign, err := other.IssueAccessToken(ulid.Make(), ulid.Make(), auth.DisplayContext{})
		require.NoError(t, err)

		_, err = issuer.Validate(foreign)
		errutil.AssertErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, Issuer: "someone-else"})
		require.NoError(t, err)
		foreign, err := other.IssueAccessToken(ulid.Make(), ulid.Make(), auth.DisplayContext{})
		require.NoError(t, err)

		_, err = issuer.Validate(foreign)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"typ": "access",
			"uid": ulid.Make().String(),
			"sid": ulid.Make().String(),
			"iss": "accounts-test",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Validate(unsigned)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("malformed session claim", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"typ": "access",
			"uid": ulid.Make().String(),
			"sid": "not-a-ulid",
			"iss": "accounts-test",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(testSecret)
		require.NoError(t, err)

		_, err = issuer.Validate(forged)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID_CLAIM")
		errutil.AssertErrorContext(t, err, "claim", "sid")
	})

	t.Run("unknown type", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"typ": "id",
			"uid": ulid.Make().String(),
			"sid": ulid.Make().String(),
			"iss": "accounts-test",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(testSecret)
		require.NoError(t, err)

		_, err = issuer.Validate(forged)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("expired", func(t *testing.T) {
		clock.now = clock.now.Add(10 * time.Minute)
		t.Cleanup(func() { clock.now = clock.now.Add(-10 * time.Minute) })

		_, err := issuer.Validate(token)
		errutil.AssertErrorCode(t, err, "TOKEN_EXPIRED")
		errutil.AssertErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestTokenIssuer_RefreshCookie(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	cookie := issuer.RefreshCookie("refresh-value")
	assert.Equal(t, auth.DefaultCookieName, cookie.Name)
	assert.Equal(t, "refresh-value", cookie.Value)
	assert.Equal(t, "/api/auth", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
	assert.Equal(t, clock.now.Add(24*time.Hour), cookie.Expires)

	cleared := issuer.ClearRefreshCookie()
	assert.Equal(t, cookie.Name, cleared.Name)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.True(t, cleared.HttpOnly)
}
