package engine

import (
	"context"
	"time"

	sitedomain "geoqueue/backend/internal/site/domain"
)

// Deployment holds the operator configuration a policy starts from.
type Deployment struct {
	LocationBypass    bool
	AccuracyCapMeters float64
	Env               string
	Production        bool
}

// Decision is the admission override in effect for one request.
type Decision struct {
	// LocationBypass skips coordinate validation and the proximity gate, using the site center.
	LocationBypass bool
	// AccuracyCapMeters bounds the accuracy tolerance the proximity gate grants.
	AccuracyCapMeters float64
	// FromPolicy is false when the decision is the configuration fallback.
	FromPolicy bool
}

// Evaluator evaluates admission override policies using OPA or other engines.
type Evaluator interface {
	// EvaluateAdmission returns the override for site at the given instant in the site zone.
	EvaluateAdmission(ctx context.Context, site *sitedomain.Site, day string, at time.Time) (Decision, error)
}
