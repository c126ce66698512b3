package services

import (
	"strings"
	"testing"

	"salome-be/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		code := GenerateInviteCode()
		require.Len(t, code, inviteCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(inviteCodeCharset, r), "unexpected rune %q", r)
		}
		assert.False(t, seen[code], "duplicate code %s after %d draws", code, i)
		seen[code] = true
	}
}

func TestParseInviteCode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare code", "AB12CD34", "AB12CD34", false},
		{"lowercase normalized", "ab12cd34", "AB12CD34", false},
		{"surrounding whitespace", "  AB12CD34 ", "AB12CD34", false},
		{"join path", "/join/AB12CD34", "AB12CD34", false},
		{"full link", "https://salome.id/join/AB12CD34", "AB12CD34", false},
		{"link with trailing slash", "https://salome.id/join/AB12CD34/", "AB12CD34", false},
		{"too short", "AB12", "", true},
		{"too long", "AB12CD34EF", "", true},
		{"illegal characters", "AB12CD3!", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInviteCode(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateInviteCodeUniformCharacters(t *testing.T) {
	counts := make(map[byte]int, len(inviteCodeCharset))
	const codes = 5000
	for i := 0; i < codes; i++ {
		for _, b := range []byte(GenerateInviteCode()) {
			counts[b]++
		}
	}

	// 40000 draws over 36 characters: roughly 1111 each. The bounds are
	// generous, many standard deviations wide, so the test cannot flake
	// while still catching a skewed sampler.
	mean := codes * inviteCodeLength / len(inviteCodeCharset)
	for _, ch := range []byte(inviteCodeCharset) {
		n := counts[ch]
		if n < mean/2 || n > mean*2 {
			t.Fatalf("character %q drawn %d times, expected around %d", ch, n, mean)
		}
	}
}
