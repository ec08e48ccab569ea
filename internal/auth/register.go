// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	"github.com/holomush/accounts/pkg/errutil"
)

// RegisterInput is a registration request. Image is optional.
type RegisterInput struct {
	Firstname string
	Lastname  string
	Age       int
	Login     string
	Email     *string
	Password  string
	Image     *Image
}

// Register creates a user after checking that login and email are free.
// Password hashing runs concurrently with the uniqueness checks. Nothing is
// written unless every check passes.
func (s *Service) Register(ctx context.Context, in RegisterInput) (projection *UserProjection, err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationRegister, err, time.Since(start)) }()

	params := NewUserParams{
		Firstname: NormalizeName(in.Firstname),
		Lastname:  NormalizeName(in.Lastname),
		Age:       in.Age,
		Login:     in.Login,
		Email:     in.Email,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, ErrEmptyPassword
	}
	if in.Image != nil {
		if err := s.imageGuard.ValidateFormat(in.Image.ContentType); err != nil {
			return nil, err
		}
		if s.images == nil {
			return nil, oops.Code("IMAGE_STORE_UNAVAILABLE").Errorf("image storage is not configured")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return oops.Code("REGISTER_FAILED").With("operation", "hash password").Wrap(err)
		}
		params.PasswordHash = hash
		return nil
	})
	g.Go(func() error {
		if err := s.registration.ValidateLoginIsFree(gctx, params.Login); err != nil {
			return err
		}
		if params.Email != nil {
			return s.registration.ValidateEmailIsFree(gctx, *params.Email)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	writeCtx, err := beforeWrite(ctx, "register")
	if err != nil {
		return nil, err
	}

	if in.Image != nil {
		photoID, err := s.images.Store(writeCtx, *in.Image)
		if err != nil {
			return nil, oops.Code("REGISTER_FAILED").With("operation", "store image").Wrap(err)
		}
		params.PhotoID = &photoID
	}

	user, err := NewUser(params)
	if err != nil {
		s.discardImage(writeCtx, params.PhotoID)
		return nil, err
	}
	if err := s.users.Create(writeCtx, user); err != nil {
		s.discardImage(writeCtx, params.PhotoID)
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.log(ctx).InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"with_image", user.HasPhoto())
	return user.Projection(), nil
}

// discardImage deletes an image stored for a registration that did not
// complete. A failed delete leaves an orphan object and is reported.
func (s *Service) discardImage(ctx context.Context, photoID *uuid.UUID) {
	if photoID == nil {
		return
	}
	if err := s.images.Delete(ctx, *photoID); err != nil {
		RecordInconsistency(InconsistencyOrphanImage)
		errutil.LogError(ctx, s.log(ctx), "orphan profile image after failed registration",
			oops.With("photo_id", photoID.String()).Wrap(err))
	}
}
