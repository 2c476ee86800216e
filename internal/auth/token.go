package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrNotConfigured means the server was started without the required
	// token. This is an operator fault, not a caller fault.
	ErrNotConfigured = errors.New("token not configured on server")

	// ErrUnauthorized means the caller presented a missing or wrong token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Token gates mutating calls with a single static bearer credential.
type Token struct {
	expected string
}

func NewToken(expected string) Token {
	return Token{expected: expected}
}

func (t Token) Verify(presented string) error {
	if t.expected == "" {
		return ErrNotConfigured
	}
	if presented == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(t.expected)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FromHeader extracts the credential from an "Authorization: Bearer <token>"
// header. Anything else yields an empty credential.
func FromHeader(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}
