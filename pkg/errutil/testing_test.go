// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/accounts/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("login", "bob").Errorf("test error")
	errutil.AssertErrorContext(t, err, "login", "bob")
}

func TestAssertErrorIs_WrappedSentinel(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := oops.Code("OUTER").With("operation", "wrap").Wrap(oops.Code("INNER").Wrap(sentinel))
	errutil.AssertErrorIs(t, err, sentinel)
}
