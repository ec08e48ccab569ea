// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// formOverhead is the multipart allowance on top of the image itself.
const formOverhead = 64 << 10

type imageForm struct {
	req   *http.Request
	max   int64
	files []multipart.File
}

// parseImageForm parses a bounded multipart body held in memory.
func (h *handler) parseImageForm(w http.ResponseWriter, r *http.Request) (*imageForm, error) {
	limit := h.maxImageBytes + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, imageTooLarge(h.maxImageBytes)
		}
		return nil, malformedRequest(err)
	}
	return &imageForm{req: r, max: h.maxImageBytes}, nil
}

// image returns the file in field. A missing file is nil unless required.
func (f *imageForm) image(field string, required bool) (*auth.Image, error) {
	file, header, err := f.req.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil
		}
		return nil, oops.Code("IMAGE_MISSING").
			With("field", field).
			Wrapf(auth.ErrCannotBeCreated, "multipart field %q must contain an image", field)
	}
	f.files = append(f.files, file)
	if header.Size > f.max {
		return nil, imageTooLarge(f.max)
	}
	return &auth.Image{
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

func (f *imageForm) close() {
	for _, file := range f.files {
		//nolint:errcheck // in-memory parts
		file.Close()
	}
	if f.req.MultipartForm != nil {
		//nolint:errcheck // temp files are best-effort
		f.req.MultipartForm.RemoveAll()
	}
}

func imageTooLarge(limit int64) error {
	return oops.Code("IMAGE_TOO_LARGE").
		With("max_bytes", limit).
		Wrapf(auth.ErrCannotBeCreated, "image exceeds %d bytes", limit)
}
