package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"geoqueue/backend/internal/policy/repository"
	sitedomain "geoqueue/backend/internal/site/domain"
)

const (
	policyPackage = "data.geoqueue.admission"
	// maxAccuracyCapMeters bounds what any policy may grant.
	maxAccuracyCapMeters = 5000
)

// Default Rego policy that mirrors the deployment configuration.
const defaultRegoPolicy = `package geoqueue.admission

default location_bypass := false
default accuracy_cap_meters := 150

location_bypass if {
	input.deployment.location_bypass
}

accuracy_cap_meters := input.deployment.accuracy_cap_meters if {
	input.deployment.accuracy_cap_meters > 0
}
`

// OPAEvaluator evaluates per-site admission policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	deployment Deployment
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be nil, in which case
// only the default policy is used.
func NewOPAEvaluator(policyRepo repository.Repository, deployment Deployment) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo, deployment: deployment}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": defaultRegoPolicy})
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	input := e.buildInput(&sitedomain.Site{ID: "health", RadiusMeters: 1}, "1970-01-01", time.Unix(0, 0).UTC())
	if _, ok, err := evalValue(ctx, compiler, input, "location_bypass"); err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	} else if !ok {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// ValidatePolicy checks that rules parse, declare the geoqueue.admission package and compile.
func ValidatePolicy(rules string) error {
	mod, err := ast.ParseModule("policy.rego", rules)
	if err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}
	if mod == nil {
		return fmt.Errorf("parse policy: empty module")
	}
	if got := mod.Package.Path.String(); got != policyPackage {
		return fmt.Errorf("policy package is %s, want %s", got, policyPackage)
	}
	if _, err := ast.CompileModules(map[string]string{"policy.rego": rules}); err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}
	return nil
}

// EvaluateAdmission evaluates the site's enabled policies, or the default policy when it has none.
// Load or evaluation failures are logged and the configuration fallback is returned with a nil error.
func (e *OPAEvaluator) EvaluateAdmission(ctx context.Context, site *sitedomain.Site, day string, at time.Time) (Decision, error) {
	if site == nil {
		return e.fallback(), fmt.Errorf("policy: site is required")
	}
	var policies []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.GetEnabledPoliciesBySite(ctx, site.ID)
		if err != nil {
			log.Printf("policy: failed to load policies for site %s: %v", site.ID, err)
		}
		for _, p := range enabled {
			if p.Enabled && p.Rules != "" {
				policies = append(policies, p.Rules)
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	decision, err := e.evaluatePolicies(ctx, policies, e.buildInput(site, day, at))
	if err != nil {
		log.Printf("policy: evaluation failed for site %s: %v, using configuration", site.ID, err)
		return e.fallback(), nil
	}
	return e.enforce(decision), nil
}

func (e *OPAEvaluator) buildInput(site *sitedomain.Site, day string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"deployment": map[string]interface{}{
			"location_bypass":     e.deployment.LocationBypass,
			"accuracy_cap_meters": e.deployment.AccuracyCapMeters,
			"env":                 e.deployment.Env,
		},
		"site": map[string]interface{}{
			"id":            site.ID,
			"radius_meters": site.RadiusMeters,
		},
		"request": map[string]interface{}{
			"day":     day,
			"weekday": at.Weekday().String(),
			"hour":    at.Hour(),
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (Decision, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return Decision{}, fmt.Errorf("compile policies: %w", err)
	}

	out := e.fallback()
	out.FromPolicy = true

	v, ok, err := evalValue(ctx, compiler, input, "location_bypass")
	if err != nil {
		return Decision{}, err
	}
	if b, isBool := v.(bool); ok && isBool {
		out.LocationBypass = b
	}

	v, ok, err = evalValue(ctx, compiler, input, "accuracy_cap_meters")
	if err != nil {
		return Decision{}, err
	}
	if ok {
		if capMeters, isNum := toFloat(v); isNum {
			out.AccuracyCapMeters = capMeters
		}
	}
	return out, nil
}

// enforce applies limits no policy can override.
func (e *OPAEvaluator) enforce(d Decision) Decision {
	if e.deployment.Production {
		d.LocationBypass = false
	}
	if !(d.AccuracyCapMeters > 0) || d.AccuracyCapMeters > maxAccuracyCapMeters || math.IsInf(d.AccuracyCapMeters, 0) {
		d.AccuracyCapMeters = e.deployment.AccuracyCapMeters
	}
	return d
}

func (e *OPAEvaluator) fallback() Decision {
	return Decision{
		LocationBypass:    e.deployment.LocationBypass && !e.deployment.Production,
		AccuracyCapMeters: e.deployment.AccuracyCapMeters,
	}
}

func evalValue(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, rule string) (interface{}, bool, error) {
	q := rego.New(
		rego.Query(policyPackage+"."+rule),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("eval %s: %w", rule, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, false, nil
	}
	return rs[0].Expressions[0].Value, true, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
