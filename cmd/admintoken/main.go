// Command admintoken prints a bearer token for the admin API.
//
//	admintoken -user 100000000000000001 [-ttl 30m]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/config"
	"warden/pkg/domain"
)

func main() {
	user := flag.String("user", "", "operator user id (snowflake)")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to ADMIN_TOKEN_TTL")
	flag.Parse()

	if err := run(*user, *ttl); err != nil {
		slog.Error("admintoken failed", "error", err)
		os.Exit(1)
	}
}

func run(rawUser string, ttl time.Duration) error {
	userID, err := domain.ParseUserID(rawUser)
	if err != nil {
		return fmt.Errorf("-user: %w", err)
	}
	auth, err := config.LoadAuth()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = auth.AdminTokenTTL
	}

	token, err := jwttoken.NewJWTService(auth.JWTSigningKey, auth.Issuer).GenerateAdminToken(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
