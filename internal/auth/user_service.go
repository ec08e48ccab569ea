// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/pkg/errutil"
)

// UserServiceConfig holds dependencies for UserService.
type UserServiceConfig struct {
	Users  UserRepository
	Images ImageStore
	Logger *slog.Logger
}

// UserService serves profile reads and profile image changes.
type UserService struct {
	users      UserRepository
	images     ImageStore
	imageGuard *ImageGuard
	logger     *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(cfg UserServiceConfig) (*UserService, error) {
	if cfg.Users == nil {
		return nil, oops.Code("USER_SERVICE_CONFIG_INVALID").Errorf("users repository is required")
	}
	if cfg.Images == nil {
		return nil, oops.Code("USER_SERVICE_CONFIG_INVALID").Errorf("image store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:      cfg.Users,
		images:     cfg.Images,
		imageGuard: NewImageGuard(cfg.Users),
		logger:     logger,
	}, nil
}

func (s *UserService) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// GetByID returns the profile of the user with the given ID.
func (s *UserService) GetByID(ctx context.Context, id ulid.ULID) (*UserProjection, error) {
	user, err := s.users.GetByID(ctx, id)
	return projectOrNotFound(user, err, "id", id.String())
}

// GetByLogin returns the profile of the user with the given login.
func (s *UserService) GetByLogin(ctx context.Context, login string) (*UserProjection, error) {
	user, err := s.users.GetByLogin(ctx, login)
	return projectOrNotFound(user, err, "login", login)
}

// GetByEmail returns the profile of the user with the given email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*UserProjection, error) {
	user, err := s.users.GetByEmail(ctx, email)
	return projectOrNotFound(user, err, "email", email)
}

func projectOrNotFound(user *User, err error, field, value string) (*UserProjection, error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, UserNotFoundError(field, value)
		}
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+field).
			Wrap(err)
	}
	return user.Projection(), nil
}

// AddImage stores img and associates it with a user who has no image yet.
func (s *UserService) AddImage(ctx context.Context, userID ulid.ULID, img Image) (photoID uuid.UUID, err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationAddImage, err, time.Since(start)) }()

	if err := s.imageGuard.ValidateFormat(img.ContentType); err != nil {
		return uuid.Nil, err
	}
	if _, err := s.imageGuard.ValidateNoImage(ctx, userID); err != nil {
		return uuid.Nil, err
	}

	writeCtx, err := beforeWrite(ctx, "add image")
	if err != nil {
		return uuid.Nil, err
	}
	photoID, err = s.images.Store(writeCtx, img)
	if err != nil {
		return uuid.Nil, oops.Code("IMAGE_ADD_FAILED").
			With("operation", "store image").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if err := s.users.AssociatePhoto(writeCtx, userID, photoID); err != nil {
		if delErr := s.images.Delete(writeCtx, photoID); delErr != nil {
			RecordInconsistency(InconsistencyOrphanImage)
			errutil.LogError(ctx, s.log(ctx), "orphan profile image after failed association",
				oops.With("photo_id", photoID.String()).Wrap(delErr))
		}
		if errors.Is(err, ErrAlreadyExists) {
			return uuid.Nil, err
		}
		return uuid.Nil, oops.Code("IMAGE_ADD_FAILED").
			With("operation", "associate image").
			With("user_id", userID.String()).
			Wrap(err)
	}

	s.log(ctx).InfoContext(ctx, "profile image added",
		"user_id", userID.String(),
		"photo_id", photoID.String())
	return photoID, nil
}

// ReplaceImage overwrites the content of the user's existing image. The
// image ID does not change.
func (s *UserService) ReplaceImage(ctx context.Context, userID ulid.ULID, img Image) (photoID uuid.UUID, err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationReplaceImage, err, time.Since(start)) }()

	if err := s.imageGuard.ValidateFormat(img.ContentType); err != nil {
		return uuid.Nil, err
	}
	user, err := s.imageGuard.ValidateHasImage(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	writeCtx, err := beforeWrite(ctx, "replace image")
	if err != nil {
		return uuid.Nil, err
	}
	photoID = *user.PhotoID
	if err := s.images.Replace(writeCtx, photoID, img); err != nil {
		return uuid.Nil, oops.Code("IMAGE_REPLACE_FAILED").
			With("operation", "replace image").
			With("user_id", userID.String()).
			With("photo_id", photoID.String()).
			Wrap(err)
	}

	s.log(ctx).InfoContext(ctx, "profile image replaced",
		"user_id", userID.String(),
		"photo_id", photoID.String())
	return photoID, nil
}

// DeleteImage removes the user's image. The reference is cleared before the
// object is deleted so a failed delete never leaves a dangling reference;
// such a failure is logged and counted as an inconsistency.
func (s *UserService) DeleteImage(ctx context.Context, userID ulid.ULID) (err error) {
	start := time.Now()
	defer func() { RecordOperation(OperationDeleteImage, err, time.Since(start)) }()

	user, err := s.imageGuard.ValidateHasImage(ctx, userID)
	if err != nil {
		return err
	}

	writeCtx, err := beforeWrite(ctx, "delete image")
	if err != nil {
		return err
	}
	photoID := *user.PhotoID
	if err := s.users.ClearPhoto(writeCtx, userID); err != nil {
		return oops.Code("IMAGE_DELETE_FAILED").
			With("operation", "clear image reference").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if err := s.images.Delete(writeCtx, photoID); err != nil {
		RecordInconsistency(InconsistencyOrphanImage)
		errutil.LogError(ctx, s.log(ctx), "profile image object not deleted",
			oops.With("user_id", userID.String()).With("photo_id", photoID.String()).Wrap(err))
	}

	s.log(ctx).InfoContext(ctx, "profile image deleted",
		"user_id", userID.String(),
		"photo_id", photoID.String())
	return nil
}
