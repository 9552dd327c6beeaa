// Command token prints a signed development token for the configured JWT secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/chatrelay/internal/adapters/auth"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/domain"
)

func main() {
	user := flag.String("user", "", "user id to put in the subject claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	uid, err := domain.ParseUserID(*user)
	if err != nil {
		log.Fatal().Err(err).Msg("-user is required")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Auth.Mode != "jwt" {
		log.Fatal().Str("mode", cfg.Auth.Mode).Msg("auth.mode is not jwt")
	}

	token, err := auth.NewJWTVerifier(auth.JWTConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}).Issue(uid, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(token)
}
