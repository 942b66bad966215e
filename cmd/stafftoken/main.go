// stafftoken issues a verifier (staff) JWT signed with JWT_PRIVATE_KEY.
//
//	go run ./cmd/stafftoken --staff alice --site main
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"geoqueue/backend/internal/config"
	"geoqueue/backend/internal/security"
)

func main() {
	staffID := pflag.String("staff", "", "Staff member id (required)")
	siteID := pflag.String("site", "", "Restrict the token to one site; empty allows every site")
	ttl := pflag.Duration("ttl", 0, "Token lifetime; defaults to JWT_STAFF_TTL")
	pflag.Parse()

	if *staffID == "" {
		fmt.Fprintln(os.Stderr, "stafftoken: --staff is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTPrivateKey == "" {
		log.Fatal("stafftoken: JWT_PRIVATE_KEY is not set")
	}
	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("stafftoken: JWT_PRIVATE_KEY: %v", err)
	}
	lifetime := cfg.StaffTTL()
	if *ttl > 0 {
		lifetime = *ttl
	}
	tokens := security.NewTokenProvider(signer, signer.Public(), cfg.JWTIssuer, cfg.JWTAudience, lifetime)
	token, expiresAt, err := tokens.IssueStaff(*staffID, *siteID)
	if err != nil {
		log.Fatalf("stafftoken: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
