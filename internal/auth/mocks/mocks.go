// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

var (
	_ auth.UserRepository          = (*MockUserRepository)(nil)
	_ auth.SessionRepository       = (*MockSessionRepository)(nil)
	_ auth.RefreshRecordRepository = (*MockRefreshRecordRepository)(nil)
	_ auth.Transactor              = (*MockTransactor)(nil)
	_ auth.PasswordHasher          = (*MockPasswordHasher)(nil)
	_ auth.ImageStore              = (*MockImageStore)(nil)
)

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	args := m.Called(ctx, login)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserRepository) AssociatePhoto(ctx context.Context, id ulid.ULID, photoID uuid.UUID) error {
	return m.Called(ctx, id, photoID).Error(0)
}

func (m *MockUserRepository) ClearPhoto(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func userArg(args mock.Arguments, i int) *auth.User {
	if v := args.Get(i); v != nil {
		return v.(*auth.User)
	}
	return nil
}

// MockSessionRepository is a mock auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t TestingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*auth.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) Invalidate(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockRefreshRecordRepository is a mock auth.RefreshRecordRepository.
type MockRefreshRecordRepository struct {
	mock.Mock
}

// NewMockRefreshRecordRepository creates a mock that asserts its expectations on cleanup.
func NewMockRefreshRecordRepository(t TestingT) *MockRefreshRecordRepository {
	m := &MockRefreshRecordRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRefreshRecordRepository) Create(ctx context.Context, record *auth.RefreshRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRefreshRecordRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.RefreshRecord, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*auth.RefreshRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshRecordRepository) InvalidateBySession(ctx context.Context, sessionID ulid.ULID) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockRefreshRecordRepository) Invalidate(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockTransactor is a mock auth.Transactor. Unless an expectation returns
// an error of its own, InTransaction runs fn and returns its result.
type MockTransactor struct {
	mock.Mock
}

// NewMockTransactor creates a mock that asserts its expectations on cleanup.
func NewMockTransactor(t TestingT) *MockTransactor {
	m := &MockTransactor{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockImageStore is a mock auth.ImageStore.
type MockImageStore struct {
	mock.Mock
}

// NewMockImageStore creates a mock that asserts its expectations on cleanup.
func NewMockImageStore(t TestingT) *MockImageStore {
	m := &MockImageStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockImageStore) Store(ctx context.Context, img auth.Image) (uuid.UUID, error) {
	args := m.Called(ctx, img)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockImageStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockImageStore) Replace(ctx context.Context, id uuid.UUID, img auth.Image) error {
	return m.Called(ctx, id, img).Error(0)
}
