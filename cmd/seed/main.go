// seed registers a site (administrative seeding) and optionally attaches a Rego admission policy.
// Idempotent: the site is upserted and the policy with the same id is replaced.
//
//	go run ./cmd/seed --id main --name "Main Hall" --lat 37.5665 --lon 126.978 --radius 500
//	go run ./cmd/seed --id main --name "Main Hall" --lat 37.5665 --lon 126.978 --radius 500 --policy-file admission.rego
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"geoqueue/backend/internal/config"
	"geoqueue/backend/internal/db"
	"geoqueue/backend/internal/policy/domain"
	"geoqueue/backend/internal/policy/engine"
	policyrepo "geoqueue/backend/internal/policy/repository"
	sitedomain "geoqueue/backend/internal/site/domain"
	siterepo "geoqueue/backend/internal/site/repository"
)

func main() {
	var (
		site       sitedomain.Site
		policyFile string
		policyID   string
		disabled   bool
	)
	pflag.StringVar(&site.ID, "id", "", "Site id (required)")
	pflag.StringVar(&site.Name, "name", "", "Site display name (required)")
	pflag.Float64Var(&site.Latitude, "lat", 0, "Site center latitude")
	pflag.Float64Var(&site.Longitude, "lon", 0, "Site center longitude")
	pflag.Float64Var(&site.RadiusMeters, "radius", 500, "Admission radius in meters")
	pflag.StringVar(&policyFile, "policy-file", "", "Optional Rego file (package geoqueue.admission) to attach to the site")
	pflag.StringVar(&policyID, "policy-id", "", "Policy id; defaults to <site id>-admission")
	pflag.BoolVar(&disabled, "policy-disabled", false, "Store the policy disabled")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := site.Validate(); err != nil {
		log.Fatalf("seed: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	site.CreatedAt = time.Now().UTC()
	if err := siterepo.NewSQLRepository(conn).Upsert(ctx, &site); err != nil {
		log.Fatalf("seed site: %v", err)
	}
	log.Printf("seed: site %s (%s) at %.6f,%.6f radius %.0fm", site.ID, site.Name, site.Latitude, site.Longitude, site.RadiusMeters)

	if policyFile == "" {
		return
	}
	raw, err := os.ReadFile(policyFile)
	if err != nil {
		log.Fatalf("seed policy: %v", err)
	}
	rules := string(raw)
	if err := engine.ValidatePolicy(rules); err != nil {
		log.Fatalf("seed policy %s: %v", policyFile, err)
	}
	if policyID == "" {
		policyID = site.ID + "-admission"
	}
	policies := policyrepo.NewSQLRepository(conn)
	p := &domain.Policy{ID: policyID, SiteID: site.ID, Rules: rules, Enabled: !disabled, CreatedAt: time.Now().UTC()}
	existing, err := policies.GetByID(ctx, policyID)
	if err != nil {
		log.Fatalf("seed policy: %v", err)
	}
	if existing != nil {
		if existing.SiteID != site.ID {
			log.Fatalf("seed policy: %s already belongs to site %s", policyID, existing.SiteID)
		}
		err = policies.Update(ctx, p)
	} else {
		err = policies.Create(ctx, p)
	}
	if err != nil {
		log.Fatalf("seed policy: %v", err)
	}
	log.Printf("seed: policy %s for site %s (enabled=%v)", policyID, site.ID, p.Enabled)
}
