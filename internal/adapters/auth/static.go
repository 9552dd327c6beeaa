package auth

import (
	"context"

	"github.com/dkeye/chatrelay/internal/domain"
)

// StaticVerifier maps fixed tokens to users. Development only.
type StaticVerifier map[string]domain.UserID

func NewStaticVerifier(tokens map[string]string) StaticVerifier {
	v := make(StaticVerifier, len(tokens))
	for tok, user := range tokens {
		v[tok] = domain.UserID(user)
	}
	return v
}

func (v StaticVerifier) Verify(ctx context.Context, token string) (domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrMissingToken
	}
	user, ok := v[token]
	if !ok || user == "" {
		return "", ErrInvalidToken
	}
	return user, nil
}
