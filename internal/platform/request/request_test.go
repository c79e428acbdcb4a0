// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package requestutil_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	requestutil "github.com/taibuivan/fitclub/internal/platform/request"
	"github.com/taibuivan/fitclub/internal/platform/validate"
)

/*
TestAccessToken verifies header precedence and cookie decoding.
*/
func TestAccessToken(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer header-token")
		r.AddCookie(&http.Cookie{Name: "Authorization", Value: url.QueryEscape("Bearer cookie-token")})

		assert.Equal(t, "Bearer header-token", requestutil.AccessToken(r))
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "Authorization", Value: url.QueryEscape("Bearer cookie-token")})

		assert.Equal(t, "Bearer cookie-token", requestutil.AccessToken(r))
	})

	t.Run("absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(t, requestutil.AccessToken(r))
		assert.Empty(t, requestutil.RefreshToken(r))
	})
}

func TestRequiredPrincipal_Unauthenticated(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := requestutil.RequiredPrincipal(r)
	assert.Error(t, err)
	assert.Nil(t, requestutil.Principal(r))
}

/*
TestPathID verifies that only UUID path parameters reach the handlers.
*/
func TestPathID(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{"uuid", "/registrations/0b7e4c1e-8f0a-4a53-9d8e-2c1b5f6a7d90", false},
		{"not_uuid", "/registrations/42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var err error

			router := chi.NewRouter()
			router.Get("/registrations/{id}", func(_ http.ResponseWriter, r *http.Request) {
				got, err = requestutil.PathID(r)
			})
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.target, nil))

			if tt.wantErr {
				require.NotNil(t, apperr.As(err))
				assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "0b7e4c1e-8f0a-4a53-9d8e-2c1b5f6a7d90", got)
		})
	}
}

/*
TestDecodeJSON rejects empty and oversized bodies.
*/
func TestDecodeJSON(t *testing.T) {
	var target struct {
		Introduction string `json:"introduction"`
	}

	ok := httptest.NewRequest(http.MethodPost, "/promote", strings.NewReader(`{"introduction":"Coach"}`))
	require.NoError(t, requestutil.DecodeJSON(ok, &target))
	assert.Equal(t, "Coach", target.Introduction)

	empty := httptest.NewRequest(http.MethodPost, "/promote", http.NoBody)
	assert.ErrorIs(t, requestutil.DecodeJSON(empty, &target), validate.ErrInvalidJSON)

	huge := `{"introduction":"` + strings.Repeat("x", requestutil.MaxBodyBytes) + `"}`
	oversized := httptest.NewRequest(http.MethodPost, "/promote", strings.NewReader(huge))
	assert.ErrorIs(t, requestutil.DecodeJSON(oversized, &target), validate.ErrInvalidJSON)
}
