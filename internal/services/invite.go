package services

import (
	"crypto/rand"
	"strings"

	"salome-be/internal/apperrors"
)

const (
	inviteCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength  = 8
)

// GenerateInviteCode produces an opaque join token. Uniqueness is enforced by
// the invite_code unique index; callers retry on collision.
func GenerateInviteCode() string {
	// Rejection sampling keeps the character distribution uniform:
	// 252 is the largest multiple of len(charset) below 256.
	const limit = 256 - 256%len(inviteCodeCharset)

	code := make([]byte, 0, inviteCodeLength)
	buf := make([]byte, inviteCodeLength)
	for len(code) < inviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand failing means the process is in serious trouble;
			// there is no weaker source worth falling back to.
			panic(err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, inviteCodeCharset[int(b)%len(inviteCodeCharset)])
			if len(code) == inviteCodeLength {
				break
			}
		}
	}
	return string(code)
}

// ParseInviteCode accepts both the raw code and the shared join-link forms
// ("/join/CODE", "https://host/join/CODE") and normalizes to the bare code.
func ParseInviteCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if idx := strings.LastIndex(code, "/join/"); idx >= 0 {
		code = code[idx+len("/join/"):]
	}
	code = strings.TrimSuffix(code, "/")
	code = strings.ToUpper(code)

	if len(code) != inviteCodeLength {
		return "", apperrors.New(apperrors.KindValidation, "invalid invite code")
	}
	for _, r := range code {
		if !strings.ContainsRune(inviteCodeCharset, r) {
			return "", apperrors.New(apperrors.KindValidation, "invalid invite code")
		}
	}
	return code, nil
}
