// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// memStore is an in-memory implementation of the three repositories and the
// transactor. It enforces the same uniqueness rules as the postgres schema.
type memStore struct {
	mu       sync.Mutex
	users    map[ulid.ULID]auth.User
	sessions map[ulid.ULID]auth.Session
	records  map[ulid.ULID]auth.RefreshRecord

	failRecordCreate error
	failUserCreate   error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[ulid.ULID]auth.User{},
		sessions: map[ulid.ULID]auth.Session{},
		records:  map[ulid.ULID]auth.RefreshRecord{},
	}
}

func (m *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	users, sessions, records := maps.Clone(m.users), maps.Clone(m.sessions), maps.Clone(m.records)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.users, m.sessions, m.records = users, sessions, records
		m.mu.Unlock()
		return err
	}
	return nil
}

// users

type memUsers struct{ *memStore }

func (m memUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUserCreate != nil {
		return m.failUserCreate
	}
	for _, u := range m.users {
		if u.Login == user.Login {
			return auth.LoginTakenError(user.Login)
		}
		if u.Email != nil && user.Email != nil && strings.EqualFold(*u.Email, *user.Email) {
			return auth.EmailTakenError(*user.Email)
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m memUsers) find(match func(auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

func (m memUsers) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return m.find(func(u auth.User) bool { return u.ID == id })
}

func (m memUsers) GetByLogin(_ context.Context, login string) (*auth.User, error) {
	return m.find(func(u auth.User) bool { return u.Login == login })
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return m.find(func(u auth.User) bool { return u.Email != nil && strings.EqualFold(*u.Email, email) })
}

func (m memUsers) AssociatePhoto(_ context.Context, id ulid.ULID, photoID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if u.PhotoID != nil {
		return auth.ImageExistsError(id)
	}
	u.PhotoID = &photoID
	m.users[id] = u
	return nil
}

func (m memUsers) ClearPhoto(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	u.PhotoID = nil
	m.users[id] = u
	return nil
}

func (m memUsers) UpdatePassword(_ context.Context, id ulid.ULID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

// sessions

type memSessions struct{ *memStore }

func (m memSessions) Create(_ context.Context, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m memSessions) GetByID(_ context.Context, id ulid.ULID) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &s, nil
}

func (m memSessions) Invalidate(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.IsExpired {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	s.IsExpired = true
	m.sessions[id] = s
	return nil
}

// refresh records

type memRecords struct{ *memStore }

func (m memRecords) Create(_ context.Context, r *auth.RefreshRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecordCreate != nil {
		return m.failRecordCreate
	}
	if _, ok := m.sessions[r.SessionID]; !ok {
		return oops.Code("REFRESH_SESSION_MISSING").Errorf("foreign key violation")
	}
	for _, existing := range m.records {
		if existing.SessionID == r.SessionID && !existing.IsExpired {
			return oops.Code("REFRESH_LIVE_EXISTS").Errorf("unique violation")
		}
	}
	m.records[r.ID] = *r
	return nil
}

func (m memRecords) GetByID(_ context.Context, id ulid.ULID) (*auth.RefreshRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, oops.Code("REFRESH_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &r, nil
}

func (m memRecords) InvalidateBySession(_ context.Context, sessionID ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.SessionID == sessionID && !r.IsExpired {
			r.IsExpired = true
			m.records[id] = r
		}
	}
	return nil
}

func (m memRecords) Invalidate(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.IsExpired {
		return oops.Code("REFRESH_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	r.IsExpired = true
	m.records[id] = r
	return nil
}

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *memStore) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memStore) recordsFor(sessionID ulid.ULID) []auth.RefreshRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.RefreshRecord
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out
}

// plainHasher keeps service tests fast. It is not a real hash.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain$" + password, nil
}

func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain$"+password, nil
}

func (plainHasher) NeedsUpgrade(string) bool { return false }

type serviceFixture struct {
	store  *memStore
	tokens *auth.TokenIssuer
	svc    *auth.Service
}

func newServiceFixture(t interface {
	Helper()
	Fatalf(string, ...any)
}, hasher auth.PasswordHasher, images auth.ImageStore) *serviceFixture {
	t.Helper()
	store := newMemStore()
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, Issuer: "accounts-test"})
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	svc, err := auth.NewService(auth.ServiceConfig{
		Users:          memUsers{store},
		Sessions:       memSessions{store},
		RefreshRecords: memRecords{store},
		Transactor:     store,
		Hasher:         hasher,
		Tokens:         tokens,
		Images:         images,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &serviceFixture{store: store, tokens: tokens, svc: svc}
}
