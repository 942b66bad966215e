package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"geoqueue/backend/internal/clock"
	"geoqueue/backend/internal/device"
	devicedomain "geoqueue/backend/internal/device/domain"
	"geoqueue/backend/internal/geofence"
	"geoqueue/backend/internal/identity"
	"geoqueue/backend/internal/policy/engine"
	sitedomain "geoqueue/backend/internal/site/domain"
	"geoqueue/backend/internal/telemetry"
	"geoqueue/backend/internal/ticket/domain"
	"geoqueue/backend/internal/ticket/repository"
)

const meterName = "geoqueue/ticket"

// DefaultMaxAttempts bounds how often the ledger phase of one allocation is tried.
const DefaultMaxAttempts = 3

// SiteRepo is the minimal site repository needed by the ticket services.
type SiteRepo interface {
	GetByID(ctx context.Context, id string) (*sitedomain.Site, error)
	GetDefault(ctx context.Context) (*sitedomain.Site, error)
	List(ctx context.Context) ([]*sitedomain.Site, error)
}

// Outcome says whether an allocation created a ticket or returned the caller's existing one.
type Outcome string

const (
	OutcomeAllocated Outcome = "ALLOCATED"
	OutcomeExisting  Outcome = "EXISTING"
)

// AllocateRequest is one applicant's ticket request.
type AllocateRequest struct {
	// SiteID may be empty; the configured active site or the only site is used.
	SiteID        string
	IdentityClaim string
	// Latitude and Longitude are nil when the client sent no position.
	Latitude       *float64
	Longitude      *float64
	AccuracyMeters *float64
	Device         devicedomain.Attributes
	// NetworkAddress is the client address hint taken from the transport.
	NetworkAddress string
}

// AllocateResult is a successful allocation.
type AllocateResult struct {
	Ticket   *domain.Ticket
	SiteName string
	Outcome  Outcome
}

// AllocatorConfig holds the deployment settings the allocator reads.
type AllocatorConfig struct {
	ActiveSiteID string
	Location     *time.Location
	// LocationBypass is used when no policy evaluator is configured.
	LocationBypass bool
	MaxAttempts    int
}

// Allocator issues day-scoped tickets. All cross-request coordination goes through the ledger.
type Allocator struct {
	sites   SiteRepo
	ledger  repository.Ledger
	claims  *identity.ClaimValidator
	devices *device.Resolver
	gate    *geofence.Gate
	policy  engine.Evaluator
	clock   clock.Clock
	emitter telemetry.EventEmitter
	cfg     AllocatorConfig

	outcomes metric.Int64Counter
}

// NewAllocator returns an Allocator. policy and emitter may be nil.
func NewAllocator(
	sites SiteRepo,
	ledger repository.Ledger,
	claims *identity.ClaimValidator,
	devices *device.Resolver,
	gate *geofence.Gate,
	policy engine.Evaluator,
	clk clock.Clock,
	emitter telemetry.EventEmitter,
	cfg AllocatorConfig,
) *Allocator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clk == nil {
		clk = clock.Real()
	}
	outcomes, err := otel.Meter(meterName).Int64Counter("geoqueue.allocations",
		metric.WithDescription("Ticket allocation requests by outcome"))
	if err != nil {
		log.Printf("ticket: allocation counter: %v", err)
	}
	return &Allocator{
		sites:    sites,
		ledger:   ledger,
		claims:   claims,
		devices:  devices,
		gate:     gate,
		policy:   policy,
		clock:    clk,
		emitter:  emitter,
		cfg:      cfg,
		outcomes: outcomes,
	}
}

// position is where the ticket is recorded as issued.
type position struct {
	lat, lon, accuracy float64
}

// Allocate runs the ordered admission checks and returns the applicant's ticket.
// Refusals are *domain.DenialError; ErrSiteNotFound means the site does not exist.
func (a *Allocator) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	res, err := a.allocate(ctx, req)
	a.record(ctx, req, res, err)
	return res, err
}

func (a *Allocator) allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	claim, err := a.claims.Validate(req.IdentityClaim)
	if err != nil {
		return nil, domain.Deny(domain.KindInvalidFormat, "identity claim has an invalid format", nil)
	}

	site, err := a.resolveSite(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	day := clock.Day(now, a.cfg.Location)
	decision := a.admission(ctx, site, day, now.In(a.cfg.Location))

	pos, err := a.locate(req, site, decision)
	if err != nil {
		return nil, err
	}

	id, err := a.devices.Resolve(req.Device, req.NetworkAddress)
	if err != nil {
		var inc *device.IncompleteError
		if errors.As(err, &inc) {
			return nil, domain.Deny(domain.KindIncompleteDeviceInfo, "required device attributes are missing",
				map[string]any{"missing": inc.Missing})
		}
		return nil, domain.Deny(domain.KindIncompleteDeviceInfo, err.Error(), nil)
	}

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		t, outcome, err := a.decide(ctx, site, day, claim, id, pos, now)
		if err == nil {
			return &AllocateResult{Ticket: t, SiteName: site.Name, Outcome: outcome}, nil
		}
		var denial *domain.DenialError
		if errors.As(err, &denial) {
			return nil, denial
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Printf("ticket: allocation attempt %d/%d at site %s failed: %v", attempt, a.cfg.MaxAttempts, site.ID, err)
	}
	if errors.Is(lastErr, repository.ErrConflict) {
		return nil, domain.DenyCause(domain.KindAllocationContention, "too many concurrent requests, try again", lastErr)
	}
	return nil, domain.DenyCause(domain.KindStoreUnavailable, "ticket ledger unavailable", lastErr)
}

// decide runs steps five to seven in one transaction, serialized per (site, day) by LockDay.
func (a *Allocator) decide(ctx context.Context, site *sitedomain.Site, day, claim string, id devicedomain.Identity, pos position, now time.Time) (*domain.Ticket, Outcome, error) {
	var (
		out     *domain.Ticket
		outcome Outcome
	)
	err := a.ledger.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockDay(ctx, site.ID, day); err != nil {
			return err
		}

		byDevice, err := tx.FindByDeviceSignals(ctx, site.ID, day, id)
		if err != nil {
			return err
		}
		if byDevice != nil {
			if byDevice.IdentityClaim != claim {
				return domain.Deny(domain.KindDeviceAlreadyUsed, "this device already holds a ticket for another identity today",
					map[string]any{
						"existingSequence":      byDevice.Sequence,
						"existingIdentityClaim": byDevice.IdentityClaim,
						"matchedSignals":        byDevice.Device().MatchedSignals(id),
					})
			}
			out, outcome = byDevice, OutcomeExisting
			return nil
		}

		byClaim, err := tx.FindByIdentity(ctx, site.ID, day, claim)
		if err != nil {
			return err
		}
		if byClaim != nil {
			if !byClaim.Device().Matches(id) {
				return domain.Deny(domain.KindIdentityAlreadyUsed, "this identity already holds a ticket from another device today", nil)
			}
			out, outcome = byClaim, OutcomeExisting
			return nil
		}

		seq, err := tx.NextSequence(ctx, site.ID, day)
		if err != nil {
			return err
		}
		t := &domain.Ticket{
			ID:             uuid.New().String(),
			SiteID:         site.ID,
			Day:            day,
			Sequence:       seq,
			IdentityClaim:  claim,
			StrictFP:       id.Strict,
			StableFP:       id.Stable,
			NetworkAddress: id.NetworkAddress,
			Latitude:       pos.lat,
			Longitude:      pos.lon,
			AccuracyMeters: pos.accuracy,
			Status:         domain.StatusActive,
			CreatedAt:      now.UTC(),
		}
		if err := tx.Insert(ctx, t); err != nil {
			return err
		}
		out, outcome = t, OutcomeAllocated
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, outcome, nil
}

func (a *Allocator) resolveSite(ctx context.Context, requested string) (*sitedomain.Site, error) {
	id := strings.TrimSpace(requested)
	if id == "" {
		id = a.cfg.ActiveSiteID
	}
	var (
		site *sitedomain.Site
		err  error
	)
	if id != "" {
		site, err = a.sites.GetByID(ctx, id)
	} else {
		site, err = a.sites.GetDefault(ctx)
	}
	if err != nil {
		return nil, domain.DenyCause(domain.KindStoreUnavailable, "site store unavailable", err)
	}
	if site == nil {
		return nil, domain.ErrSiteNotFound
	}
	return site, nil
}

func (a *Allocator) admission(ctx context.Context, site *sitedomain.Site, day string, at time.Time) engine.Decision {
	fallback := engine.Decision{LocationBypass: a.cfg.LocationBypass, AccuracyCapMeters: a.gate.CapMeters()}
	if a.policy == nil {
		return fallback
	}
	d, err := a.policy.EvaluateAdmission(ctx, site, day, at)
	if err != nil {
		log.Printf("ticket: admission policy for site %s: %v", site.ID, err)
		return fallback
	}
	return d
}

// locate applies steps two and three: coordinate validation and the proximity gate.
func (a *Allocator) locate(req AllocateRequest, site *sitedomain.Site, decision engine.Decision) (position, error) {
	if decision.LocationBypass {
		return position{lat: site.Latitude, lon: site.Longitude}, nil
	}
	if req.Latitude == nil || req.Longitude == nil || !geofence.ValidCoordinates(*req.Latitude, *req.Longitude) {
		return position{}, domain.Deny(domain.KindInvalidLocation, "a valid position is required", nil)
	}
	var accuracy float64
	if req.AccuracyMeters != nil {
		accuracy = *req.AccuracyMeters
	}
	v := a.gate.EvaluateWithCap(*req.Latitude, *req.Longitude, site, accuracy, decision.AccuracyCapMeters)
	if !v.Admit {
		return position{}, domain.Deny(domain.KindOutsideGeofence, "position is outside the site admission area",
			map[string]any{
				"distanceMeters":           round(v.DistanceMeters),
				"effectiveDistanceMeters":  round(v.EffectiveDistanceMeters),
				"accuracyAdjustmentMeters": round(v.AccuracyAdjustmentMeters),
				"radiusMeters":             v.RadiusMeters,
			})
	}
	return position{lat: *req.Latitude, lon: *req.Longitude, accuracy: v.AccuracyAdjustmentMeters}, nil
}

// record emits the outcome counter and a telemetry event. Best-effort.
func (a *Allocator) record(ctx context.Context, req AllocateRequest, res *AllocateResult, err error) {
	outcome := string(domain.KindOf(err))
	switch {
	case res != nil:
		outcome = string(res.Outcome)
	case errors.Is(err, domain.ErrSiteNotFound):
		outcome = "SITE_NOT_FOUND"
	case outcome == "":
		outcome = "ERROR"
	}
	if a.outcomes != nil {
		a.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if a.emitter == nil {
		return
	}

	meta := map[string]any{"outcome": outcome, "identity": identity.Mask(identity.Normalize(req.IdentityClaim))}
	eventType := telemetry.EventTicketDenied
	siteID := req.SiteID
	var ticketID string
	if res != nil {
		eventType = telemetry.EventTicketAllocated
		if res.Outcome == OutcomeExisting {
			eventType = telemetry.EventTicketReissued
		}
		siteID = res.Ticket.SiteID
		ticketID = res.Ticket.ID
		meta["sequence"] = res.Ticket.Sequence
		meta["day"] = res.Ticket.Day
	} else if err != nil {
		meta["error"] = err.Error()
	}
	event := telemetry.NewEvent(eventType, "allocator", siteID, meta)
	event.TicketID = ticketID
	telemetry.EmitAsync(a.emitter, event)
}

func round(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
