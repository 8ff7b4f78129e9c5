package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPasswordPolicy(t *testing.T) {
	policy := DefaultPasswordPolicy()

	cases := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "pw123456", ""},
		{"unicode letters", "pässwört1", ""},
		{"too short", "pw1234", "at least 8"},
		{"too long", strings.Repeat("a1", 37), "at most 72"},
		{"no digit", "password", "digit"},
		{"no letter", "12345678", "letter"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Validate(tc.password)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrWeakPassword)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestPasswordPolicyCapsMaxBytes(t *testing.T) {
	policy := PasswordPolicy{MinLength: 1, MaxBytes: 500}
	require.ErrorIs(t, policy.Validate(strings.Repeat("x", 73)), ErrWeakPassword)
	require.NoError(t, policy.Validate(strings.Repeat("x", 72)))
}
