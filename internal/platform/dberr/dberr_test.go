// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/dberr"
)

/*
TestWrap verifies the classification of driver errors.
*/
func TestWrap(t *testing.T) {
	unique := &pgconn.PgError{Code: dberr.UniqueViolation, ConstraintName: "uq_promotionrequest_userid"}

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"no_rows", pgx.ErrNoRows, apperr.ErrNotFound},
		{"wrapped_no_rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), apperr.ErrNotFound},
		{"unique", unique, apperr.ErrConflict},
		{"foreign_key", &pgconn.PgError{Code: dberr.ForeignKeyViolation}, apperr.ErrNotFound},
		{"other", errors.New("connection reset"), apperr.Internal(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, dberr.Wrap(tt.err, "Account", "test"), tt.target)
		})
	}

	assert.NoError(t, dberr.Wrap(nil, "Account", "test"))
	assert.True(t, dberr.IsUniqueViolation(unique, "uq_promotionrequest_userid"))
	assert.True(t, dberr.IsUniqueViolation(unique, ""))
	assert.False(t, dberr.IsUniqueViolation(unique, "uq_account_email"))
}
