// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// imageField is the multipart field carrying a profile image.
const imageField = "image"

type imageResponse struct {
	PhotoID uuid.UUID `json:"photo_id"`
}

func (h *handler) userByID(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		writeError(w, r, oops.Code("REQUEST_INVALID").
			With("id", raw).
			Wrapf(auth.ErrCannotBeCreated, "user id is malformed"))
		return
	}
	h.writeUser(w, r, func(ctx context.Context) (*auth.UserProjection, error) {
		return h.users.GetByID(ctx, id)
	})
}

func (h *handler) userByLogin(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")
	h.writeUser(w, r, func(ctx context.Context) (*auth.UserProjection, error) {
		return h.users.GetByLogin(ctx, login)
	})
}

func (h *handler) userByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	h.writeUser(w, r, func(ctx context.Context) (*auth.UserProjection, error) {
		return h.users.GetByEmail(ctx, email)
	})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeUser(w, r, func(ctx context.Context) (*auth.UserProjection, error) {
		return h.users.GetByID(ctx, p.UserID)
	})
}

func (h *handler) writeUser(w http.ResponseWriter, r *http.Request, get func(context.Context) (*auth.UserProjection, error)) {
	user, err := get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handler) addImage(w http.ResponseWriter, r *http.Request) {
	h.uploadImage(w, r, http.StatusCreated, h.users.AddImage)
}

func (h *handler) replaceImage(w http.ResponseWriter, r *http.Request) {
	h.uploadImage(w, r, http.StatusOK, h.users.ReplaceImage)
}

type imageWriter func(ctx context.Context, userID ulid.ULID, img auth.Image) (uuid.UUID, error)

func (h *handler) uploadImage(w http.ResponseWriter, r *http.Request, status int, store imageWriter) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.parseImageForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.close()

	img, err := form.image(imageField, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	photoID, err := store(r.Context(), p.UserID, *img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, imageResponse{PhotoID: photoID})
}

func (h *handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.DeleteImage(r.Context(), p.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
