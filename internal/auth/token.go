package auth

import (
	nanoid "github.com/jaevor/go-nanoid"
)

// TokenLength is the length of issued session tokens.
const TokenLength = 40

// TokenGenerator returns a fresh opaque session token.
type TokenGenerator func() (string, error)

// WellFormedToken reports whether token has the shape NewTokenGenerator issues.
func WellFormedToken(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func NewTokenGenerator() (TokenGenerator, error) {
	gen, err := nanoid.Standard(TokenLength)
	if err != nil {
		return nil, err
	}
	return func() (string, error) { return gen(), nil }, nil
}
