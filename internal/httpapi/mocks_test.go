// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/auth"
)

type mockAuthService struct {
	mock.Mock
}

func newMockAuthService(t *testing.T) *mockAuthService {
	m := &mockAuthService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.UserProjection, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*auth.UserProjection)
	return user, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error) {
	args := m.Called(ctx, creds)
	result, _ := args.Get(0).(*auth.LoginResult)
	return result, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.LoginResult, error) {
	args := m.Called(ctx, refreshToken)
	result, _ := args.Get(0).(*auth.LoginResult)
	return result, args.Error(1)
}

func (m *mockAuthService) Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error) {
	args := m.Called(ctx, accessToken)
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

type mockUserService struct {
	mock.Mock
}

func newMockUserService(t *testing.T) *mockUserService {
	m := &mockUserService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockUserService) GetByID(ctx context.Context, id ulid.ULID) (*auth.UserProjection, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.UserProjection)
	return user, args.Error(1)
}

func (m *mockUserService) GetByLogin(ctx context.Context, login string) (*auth.UserProjection, error) {
	args := m.Called(ctx, login)
	user, _ := args.Get(0).(*auth.UserProjection)
	return user, args.Error(1)
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*auth.UserProjection, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.UserProjection)
	return user, args.Error(1)
}

func (m *mockUserService) AddImage(ctx context.Context, userID ulid.ULID, img auth.Image) (uuid.UUID, error) {
	args := m.Called(ctx, userID, img)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockUserService) ReplaceImage(ctx context.Context, userID ulid.ULID, img auth.Image) (uuid.UUID, error) {
	args := m.Called(ctx, userID, img)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockUserService) DeleteImage(ctx context.Context, userID ulid.ULID) error {
	return m.Called(ctx, userID).Error(0)
}

type stubCookies struct{}

func (stubCookies) CookieName() string { return "refresh_token" }

func (stubCookies) ClearRefreshCookie() *http.Cookie {
	return &http.Cookie{Name: "refresh_token", Value: "", Path: "/api/auth", MaxAge: -1, HttpOnly: true}
}
