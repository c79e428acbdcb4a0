// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fitclub/internal/platform/sec"
)

/*
TestPasswordHash verifies the bcrypt round trip.
*/
func TestPasswordHash(t *testing.T) {
	hash, err := sec.HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, sec.CheckPasswordHash("correct horse", hash))
	assert.False(t, sec.CheckPasswordHash("battery staple", hash))
}

/*
TestHashToken checks that digests are stable and hex encoded.
*/
func TestHashToken(t *testing.T) {
	assert.Equal(t, sec.HashToken("abc"), sec.HashToken("abc"))
	assert.NotEqual(t, sec.HashToken("abc"), sec.HashToken("abd"))
	assert.Len(t, sec.HashToken("abc"), 64)
}

/*
TestTempPassword produces passwords of the fixed length.
*/
func TestTempPassword(t *testing.T) {
	first, err := sec.TempPassword()
	require.NoError(t, err)
	second, err := sec.TempPassword()
	require.NoError(t, err)

	assert.Len(t, first, sec.TempPasswordLength)
	assert.NotEqual(t, first, second)
}

/*
TestConstantTimeEqual compares secrets of equal and unequal length.
*/
func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, sec.ConstantTimeEqual("enroll-me", "enroll-me"))
	assert.False(t, sec.ConstantTimeEqual("enroll-me", "enroll-m"))
	assert.False(t, sec.ConstantTimeEqual("", "x"))
}

func TestStripBearer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "prefixed", input: "Bearer abc", want: "abc"},
		{name: "lower_case", input: "bearer abc", want: "abc"},
		{name: "bare_token", input: "abc", want: "abc"},
		{name: "scheme_only", input: "Bearer ", want: ""},
		{name: "scheme_without_space", input: "Bearer", want: ""},
		{name: "padded", input: "  Bearer \tabc  ", want: "abc"},
		{name: "glued_to_scheme", input: "Bearerabc", want: "Bearerabc"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sec.StripBearer(tt.input))
		})
	}
}
