// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/postgres"
)

func newIntegrationUser(login string, email *string) *auth.User {
	user, err := auth.NewUser(auth.NewUserParams{
		Firstname:    "Bob",
		Lastname:     "Builder",
		Age:          30,
		Login:        login,
		Email:        email,
		PasswordHash: "$argon2id$hash",
	})
	Expect(err).NotTo(HaveOccurred())
	return user
}

var _ = Describe("Auth repositories", func() {
	var (
		ctx      context.Context
		users    *postgres.UserRepository
		sessions *postgres.SessionRepository
		records  *postgres.RefreshRecordRepository
		tx       *postgres.Transactor
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = postgres.NewUserRepository(testPool)
		sessions = postgres.NewSessionRepository(testPool)
		records = postgres.NewRefreshRecordRepository(testPool)
		tx = postgres.NewTransactor(testPool)
	})

	createUser := func(login string, email *string) *auth.User {
		user := newIntegrationUser(login, email)
		Expect(users.Create(ctx, user)).To(Succeed())
		DeferCleanup(func() {
			_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, user.ID.String())
		})
		return user
	}

	Describe("UserRepository", func() {
		It("round trips a user", func() {
			email := "rt_" + ulid.Make().String() + "@x.io"
			user := createUser("rt_"+ulid.Make().String()[:10], &email)

			got, err := users.GetByEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
			Expect(got.PhotoID).To(BeNil())
		})

		It("maps a duplicate login to AlreadyExists", func() {
			login := "dup_" + ulid.Make().String()[:10]
			createUser(login, nil)

			err := users.Create(ctx, newIntegrationUser(login, nil))
			Expect(auth.KindOf(err)).To(Equal(auth.KindAlreadyExists))
			Expect(auth.Payload(err)).To(HaveKeyWithValue("login", login))
		})

		It("maps a duplicate email to AlreadyExists ignoring case", func() {
			email := "dup_" + ulid.Make().String() + "@x.io"
			createUser("a_"+ulid.Make().String()[:10], &email)

			upper := "DUP_" + email[4:]
			err := users.Create(ctx, newIntegrationUser("b_"+ulid.Make().String()[:10], &upper))
			Expect(auth.KindOf(err)).To(Equal(auth.KindAlreadyExists))
			Expect(auth.Payload(err)).To(HaveKey("email"))
		})

		It("lets exactly one of two racing registrations win", func() {
			login := "race_" + ulid.Make().String()[:10]
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					errs[i] = users.Create(ctx, newIntegrationUser(login, nil))
				}()
			}
			wg.Wait()
			DeferCleanup(func() {
				_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE login = $1`, login)
			})

			failures := 0
			for _, err := range errs {
				if err != nil {
					failures++
					Expect(auth.KindOf(err)).To(Equal(auth.KindAlreadyExists))
				}
			}
			Expect(failures).To(Equal(1))
		})

		It("sets and clears the photo reference", func() {
			user := createUser("photo_"+ulid.Make().String()[:10], nil)
			photo := uuid.New()

			Expect(users.AssociatePhoto(ctx, user.ID, photo)).To(Succeed())
			got, err := users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PhotoID).To(HaveValue(Equal(photo)))

			err = users.AssociatePhoto(ctx, user.ID, uuid.New())
			Expect(auth.KindOf(err)).To(Equal(auth.KindAlreadyExists))
			got, err = users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PhotoID).To(HaveValue(Equal(photo)))

			Expect(users.ClearPhoto(ctx, user.ID)).To(Succeed())
			got, err = users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PhotoID).To(BeNil())
		})
	})

	Describe("sessions and refresh records", func() {
		var user *auth.User

		BeforeEach(func() {
			user = createUser("sess_"+ulid.Make().String()[:10], nil)
		})

		openSession := func() (*auth.Session, *auth.RefreshRecord) {
			session, err := auth.NewSession(user.ID)
			Expect(err).NotTo(HaveOccurred())
			record, err := auth.NewRefreshRecord(session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.InTransaction(ctx, func(ctx context.Context) error {
				if err := sessions.Create(ctx, session); err != nil {
					return err
				}
				return records.Create(ctx, record)
			})).To(Succeed())
			return session, record
		}

		It("creates a session with its record atomically", func() {
			session, record := openSession()

			got, err := records.GetByID(ctx, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SessionID).To(Equal(session.ID))
		})

		It("rolls back the session when the record insert fails", func() {
			session, err := auth.NewSession(user.ID)
			Expect(err).NotTo(HaveOccurred())

			err = tx.InTransaction(ctx, func(ctx context.Context) error {
				if err := sessions.Create(ctx, session); err != nil {
					return err
				}
				return errors.New("refresh insert failed")
			})
			Expect(err).To(HaveOccurred())

			_, err = sessions.GetByID(ctx, session.ID)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("allows one live record per session", func() {
			session, _ := openSession()
			second, err := auth.NewRefreshRecord(session.ID)
			Expect(err).NotTo(HaveOccurred())

			err = records.Create(ctx, second)
			Expect(auth.KindOf(err)).To(Equal(auth.KindAlreadyExists))
		})

		It("invalidates a session once", func() {
			session, record := openSession()

			Expect(tx.InTransaction(ctx, func(ctx context.Context) error {
				if err := records.InvalidateBySession(ctx, session.ID); err != nil {
					return err
				}
				return sessions.Invalidate(ctx, session.ID)
			})).To(Succeed())

			got, err := records.GetByID(ctx, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsExpired).To(BeTrue())

			err = sessions.Invalidate(ctx, session.ID)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("rotates a record exactly once under contention", func() {
			session, record := openSession()

			var wg sync.WaitGroup
			errs := make([]error, 4)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					next, err := auth.NewRefreshRecord(session.ID)
					Expect(err).NotTo(HaveOccurred())
					errs[i] = tx.InTransaction(ctx, func(ctx context.Context) error {
						if err := records.Invalidate(ctx, record.ID); err != nil {
							return err
						}
						return records.Create(ctx, next)
					})
				}()
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
				}
			}
			Expect(wins).To(Equal(1))
		})
	})
})
