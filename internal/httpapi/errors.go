// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/pkg/errutil"
)

// codeInternal is the code returned for failures that are not domain errors.
const codeInternal = "INTERNAL_ERROR"

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Code    string         `json:"code"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindAlreadyExists:
		return http.StatusConflict
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindInvalidToken, auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindCannotBeCreated:
		return http.StatusBadRequest
	case auth.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal failures are logged and reported without
// detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status := StatusFor(kind)

	body := errorBody{Kind: kind.String()}
	if kind == auth.KindInternal {
		errutil.LogError(r.Context(), logging.FromContext(r.Context(), nil), "request failed", err)
		body.Code = codeInternal
		body.Message = http.StatusText(status)
		body.Payload = map[string]any{}
	} else {
		body.Code = auth.Code(err, kind.String())
		body.Message = err.Error()
		body.Payload = auth.Payload(err)
	}
	writeJSON(w, status, body)
}

// malformedRequest reports a body that could not be decoded.
func malformedRequest(err error) error {
	return oops.Code("REQUEST_MALFORMED").
		With("reason", err.Error()).
		Wrapf(auth.ErrCannotBeCreated, "request body is malformed")
}

// invalidRequest reports validator failures with one payload entry per field.
func invalidRequest(err error) error {
	builder := oops.Code("REQUEST_INVALID")
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			builder = builder.With(fe.Field(), fe.Tag())
		}
	}
	return builder.Wrapf(auth.ErrCannotBeCreated, "request failed validation")
}

// missingToken reports a request without the credential a route needs.
func missingToken(carrier string) error {
	return oops.Code("TOKEN_MISSING").
		With("carrier", carrier).
		Wrapf(auth.ErrInvalidToken, "%s is required", carrier)
}
