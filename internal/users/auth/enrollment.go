// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"strings"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/sec"
)

// AdminEnroller gates administrator self-registration behind a shared passphrase.
//
// The passphrase comes from configuration and is compared in constant time, so
// it can be rotated without a release.
type AdminEnroller struct {
	passphrase string
}

// NewAdminEnroller creates an enroller. A blank passphrase rejects every attempt.
func NewAdminEnroller(passphrase string) *AdminEnroller {
	return &AdminEnroller{passphrase: strings.TrimSpace(passphrase)}
}

// Verify returns [apperr.ErrForbidden] unless presented matches the configured passphrase.
func (enroller *AdminEnroller) Verify(presented string) error {
	if enroller == nil || enroller.passphrase == "" {
		return apperr.Forbidden("Administrator enrollment is disabled")
	}

	if !sec.ConstantTimeEqual(presented, enroller.passphrase) {
		return apperr.Forbidden("Administrator passphrase does not match")
	}

	return nil
}
