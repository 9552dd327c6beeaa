package auth

import (
	"fmt"

	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/core"
)

func New(cfg config.AuthConfig) (core.IdentityVerifier, error) {
	switch cfg.Mode {
	case "jwt":
		return NewJWTVerifier(JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
		}), nil
	case "static":
		return NewStaticVerifier(cfg.StaticTokens), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}
