// Package main mints an operator token for the mutating API endpoints
// using the configured OPERATOR_TOKEN_KEY.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiforecast/internal/auth"
	"github.com/breatheroute/aqiforecast/internal/config"
)

func main() {
	subject := flag.String("sub", "", "operator identity recorded in the token (required)")
	ttl := flag.Duration("ttl", auth.DefaultTokenExpiry, "token lifetime")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	tokens := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.OperatorTokenKey,
		Issuer:     cfg.TokenIssuer,
		Audience:   cfg.TokenAudience,
	})

	token, expiresAt, err := tokens.GenerateOperatorToken(*subject, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint operator token")
	}

	log.Info().Str("sub", *subject).Time("expires_at", expiresAt).Msg("operator token minted")
	fmt.Println(token)
}
