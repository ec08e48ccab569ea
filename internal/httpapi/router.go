// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the account services over HTTP.
//
// Every failure is rendered as {"code", "kind", "message", "payload"} with the
// status chosen by StatusFor from the error kind.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/unrolled/secure"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
)

// AuthService is the session lifecycle used by the API.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.UserProjection, error)
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, refreshToken string) (*auth.LoginResult, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error)
}

// UserService is the profile API used by the API.
type UserService interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.UserProjection, error)
	GetByLogin(ctx context.Context, login string) (*auth.UserProjection, error)
	GetByEmail(ctx context.Context, email string) (*auth.UserProjection, error)
	AddImage(ctx context.Context, userID ulid.ULID, img auth.Image) (uuid.UUID, error)
	ReplaceImage(ctx context.Context, userID ulid.ULID, img auth.Image) (uuid.UUID, error)
	DeleteImage(ctx context.Context, userID ulid.ULID) error
}

// RefreshCookies names and clears the refresh token cookie.
// *auth.TokenIssuer implements it.
type RefreshCookies interface {
	CookieName() string
	ClearRefreshCookie() *http.Cookie
}

// Config holds the router dependencies.
type Config struct {
	Auth    AuthService
	Users   UserService
	Cookies RefreshCookies
	Logger  *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string
	// MaxImageBytes bounds uploaded images. Zero means DefaultMaxImageBytes.
	MaxImageBytes int64
	// Development relaxes security headers that break local HTTP use.
	Development bool
}

// DefaultMaxImageBytes bounds uploaded images when Config leaves it unset.
const DefaultMaxImageBytes = 5 << 20

type handler struct {
	auth          AuthService
	users         UserService
	cookies       RefreshCookies
	validate      *validator.Validate
	maxImageBytes int64
}

// NewRouter builds the API handler.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("auth service is required")
	}
	if cfg.Users == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("user service is required")
	}
	if cfg.Cookies == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("refresh cookies are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		auth:          cfg.Auth,
		users:         cfg.Users,
		cookies:       cfg.Cookies,
		validate:      newValidator(),
		maxImageBytes: cfg.MaxImageBytes,
	}
	if h.maxImageBytes <= 0 {
		h.maxImageBytes = DefaultMaxImageBytes
	}

	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimid.Recoverer)
	if cfg.Metrics != nil {
		r.Use(requestMetrics(cfg.Metrics))
	}
	r.Use(secure.New(secureOptions(cfg.Development)).Handler)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Post("/refresh", h.refresh)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(bearerAuth(h.auth))
		r.Get("/me", h.me)
		r.Post("/me/image", h.addImage)
		r.Put("/me/image", h.replaceImage)
		r.Delete("/me/image", h.deleteImage)
		r.Get("/login/{login}", h.userByLogin)
		r.Get("/email/{email}", h.userByEmail)
		r.Get("/{id}", h.userByID)
	})

	return r, nil
}

func secureOptions(development bool) secure.Options {
	return secure.Options{
		IsDevelopment:         development,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
	}
}
