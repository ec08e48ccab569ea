// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

type registerRequest struct {
	Firstname string  `json:"firstname" validate:"required,max=64"`
	Lastname  string  `json:"lastname" validate:"required,max=64"`
	Age       int     `json:"age" validate:"required,min=1,max=150"`
	Login     string  `json:"login" validate:"required,min=3,max=32"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Password  string  `json:"password" validate:"required,max=128"`
}

type loginRequest struct {
	Login    string `json:"login" validate:"required,max=32"`
	Password string `json:"password" validate:"required,max=128"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

// Multipart field names of the register form.
const (
	registerUserField  = "user"
	registerImageField = "image"
)

// register accepts a JSON body, or a multipart form whose "user" field holds
// the JSON document and whose optional "image" file is the profile image.
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	var image *auth.Image

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, err := h.parseImageForm(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer form.close()

		if err := json.Unmarshal([]byte(r.FormValue(registerUserField)), &req); err != nil {
			writeError(w, r, malformedRequest(err))
			return
		}
		if err := h.validateStruct(&req); err != nil {
			writeError(w, r, err)
			return
		}
		image, err = form.image(registerImageField, false)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Age:       req.Age,
		Login:     req.Login,
		Email:     req.Email,
		Password:  req.Password,
		Image:     image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), auth.Credentials{Login: req.Login, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTokens(w, http.StatusOK, result)
}

// logout closes the session of the bearer token, or of the refresh cookie
// when no bearer token is sent.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		token, ok = h.refreshCookie(r)
	}
	if !ok {
		writeError(w, r, missingToken("bearer token or refresh cookie"))
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, h.cookies.ClearRefreshCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshCookie(r)
	if !ok {
		writeError(w, r, missingToken("refresh cookie"))
		return
	}

	result, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		if auth.KindOf(err) == auth.KindInvalidToken {
			http.SetCookie(w, h.cookies.ClearRefreshCookie())
		}
		writeError(w, r, err)
		return
	}
	writeTokens(w, http.StatusOK, result)
}

func (h *handler) refreshCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(h.cookies.CookieName())
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

func writeTokens(w http.ResponseWriter, status int, result *auth.LoginResult) {
	if result.RefreshCookie != nil {
		http.SetCookie(w, result.RefreshCookie)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		UserID:      result.UserID.String(),
	})
}

// requirePrincipal returns the caller set by bearerAuth.
func requirePrincipal(r *http.Request) (*auth.Principal, error) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		return nil, oops.Code("AUTH_PRINCIPAL_MISSING").Wrapf(auth.ErrInvalidToken, "request is not authenticated")
	}
	return p, nil
}
