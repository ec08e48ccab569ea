// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Image is an uploaded profile image. The core never reads Body; it only
// forwards it to the ImageStore.
type Image struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageStore is the object storage holding profile images.
type ImageStore interface {
	// Store saves img and returns its new ID.
	Store(ctx context.Context, img Image) (uuid.UUID, error)

	// Delete removes the image with the given ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// Replace overwrites the content of an existing image, keeping its ID.
	Replace(ctx context.Context, id uuid.UUID, img Image) error
}
