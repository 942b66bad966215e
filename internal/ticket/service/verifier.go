package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"geoqueue/backend/internal/audit"
	auditdomain "geoqueue/backend/internal/audit/domain"
	"geoqueue/backend/internal/clock"
	"geoqueue/backend/internal/telemetry"
	"geoqueue/backend/internal/ticket/domain"
	"geoqueue/backend/internal/ticket/repository"
)

// Verifier looks up tickets for staff and performs the ACTIVE to USED transition.
type Verifier struct {
	sites   SiteRepo
	ledger  repository.Ledger
	clock   clock.Clock
	loc     *time.Location
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
}

// NewVerifier returns a Verifier. auditLogger and emitter may be nil.
func NewVerifier(sites SiteRepo, ledger repository.Ledger, clk clock.Clock, loc *time.Location, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Verifier {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Verifier{sites: sites, ledger: ledger, clock: clk, loc: loc, audit: auditLogger, emitter: emitter}
}

type verifyOptions struct {
	actorID string
	siteID  string
}

// VerifyOption adjusts a single Verify call.
type VerifyOption func(*verifyOptions)

// AsActor records actorID as the staff member performing the lookup.
func AsActor(actorID string) VerifyOption {
	return func(o *verifyOptions) { o.actorID = actorID }
}

// ScopedToSite hides tickets that belong to any other site.
func ScopedToSite(siteID string) VerifyOption {
	return func(o *verifyOptions) { o.siteID = siteID }
}

// Verify returns the view of ticket id. With markUsed an ACTIVE ticket becomes USED in the
// same transaction as the lookup; an already USED ticket is reported unchanged.
// Returns domain.ErrNotFound or domain.ErrExpired as denials.
func (v *Verifier) Verify(ctx context.Context, id string, markUsed bool, opts ...VerifyOption) (*domain.TicketView, error) {
	var o verifyOptions
	for _, opt := range opts {
		opt(&o)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	today := clock.Today(v.clock, v.loc)

	var (
		before, after *domain.Ticket
		transitioned  bool
	)
	if !markUsed {
		t, err := v.ledger.GetByID(ctx, id)
		if err != nil {
			return nil, domain.DenyCause(domain.KindStoreUnavailable, "ticket ledger unavailable", err)
		}
		if err := v.check(t, today, o); err != nil {
			return nil, err
		}
		before, after = t, t
	} else {
		err := v.ledger.WithinTx(ctx, func(tx repository.Tx) error {
			t, err := tx.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := v.check(t, today, o); err != nil {
				return err
			}
			before, after = t, t
			if t.Status != domain.StatusActive {
				return nil
			}
			used, err := tx.MarkUsed(ctx, id, v.clock.Now().UTC())
			if err != nil {
				return err
			}
			if used == nil {
				return domain.ErrNotFound
			}
			after, transitioned = used, used.Status == domain.StatusUsed
			return nil
		})
		if err != nil {
			var denial *domain.DenialError
			if errors.As(err, &denial) {
				return nil, denial
			}
			return nil, domain.DenyCause(domain.KindStoreUnavailable, "ticket ledger unavailable", err)
		}
	}

	view := &domain.TicketView{
		ID:            after.ID,
		Sequence:      after.Sequence,
		IdentityClaim: after.IdentityClaim,
		SiteID:        after.SiteID,
		SiteName:      v.siteName(ctx, after.SiteID),
		Status:        after.Status,
		Day:           after.Day,
		CreatedAt:     after.CreatedAt,
		UsedAt:        after.UsedAt,
		Valid:         before.Status == domain.StatusActive,
		AlreadyUsed:   before.Status == domain.StatusUsed,
	}
	v.record(ctx, view, o, transitioned)
	return view, nil
}

// check applies scope and day validity. A ticket outside the caller's site scope is not found.
func (v *Verifier) check(t *domain.Ticket, today string, o verifyOptions) error {
	if t == nil || (o.siteID != "" && t.SiteID != o.siteID) {
		return domain.ErrNotFound
	}
	if t.Day != today {
		return domain.Deny(domain.KindExpired, "ticket is not valid today", map[string]any{"day": t.Day, "today": today})
	}
	return nil
}

func (v *Verifier) siteName(ctx context.Context, siteID string) string {
	if v.sites == nil {
		return ""
	}
	s, err := v.sites.GetByID(ctx, siteID)
	if err != nil || s == nil {
		return ""
	}
	return s.Name
}

func (v *Verifier) record(ctx context.Context, view *domain.TicketView, o verifyOptions, transitioned bool) {
	meta := map[string]any{"sequence": view.Sequence, "day": view.Day, "status": string(view.Status)}
	if transitioned && v.audit != nil {
		raw, _ := json.Marshal(map[string]any{"ticketId": view.ID, "sequence": view.Sequence, "day": view.Day})
		v.audit.LogEvent(ctx, view.SiteID, o.actorID, auditdomain.ActionTicketUsed, auditdomain.ResourceTicket, string(raw))
	}
	if v.emitter == nil {
		return
	}
	eventType := telemetry.EventTicketVerified
	if transitioned {
		eventType = telemetry.EventTicketUsed
	}
	event := telemetry.NewEvent(eventType, "verifier", view.SiteID, meta)
	event.TicketID = view.ID
	event.ActorID = o.actorID
	telemetry.EmitAsync(v.emitter, event)
}
