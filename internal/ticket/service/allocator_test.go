package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"geoqueue/backend/internal/clock"
	"geoqueue/backend/internal/db"
	"geoqueue/backend/internal/device"
	devicedomain "geoqueue/backend/internal/device/domain"
	"geoqueue/backend/internal/geofence"
	"geoqueue/backend/internal/identity"
	"geoqueue/backend/internal/policy/engine"
	sitedomain "geoqueue/backend/internal/site/domain"
	siterepo "geoqueue/backend/internal/site/repository"
	"geoqueue/backend/internal/ticket/domain"
	"geoqueue/backend/internal/ticket/repository"
)

const (
	siteLat = 37.5
	siteLon = 127.0
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	conn   *db.DB
	sites  *siterepo.SQLRepository
	ledger *repository.SQLLedger
	clock  *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "tickets.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	sites := siterepo.NewSQLRepository(conn)
	site := &sitedomain.Site{ID: "site-1", Name: "Main Hall", Latitude: siteLat, Longitude: siteLon, RadiusMeters: 500}
	if err := sites.Upsert(context.Background(), site); err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return &fixture{conn: conn, sites: sites, ledger: repository.NewSQLLedger(conn), clock: clock.NewFake(testNow)}
}

func (f *fixture) allocator(t *testing.T, cfg AllocatorConfig) *Allocator {
	t.Helper()
	claims, err := identity.NewClaimValidator("")
	if err != nil {
		t.Fatalf("NewClaimValidator: %v", err)
	}
	return NewAllocator(f.sites, f.ledger, claims, device.NewResolver(), geofence.NewGate(150), nil, f.clock, nil, cfg)
}

func ptr(v float64) *float64 { return &v }

func attrs(n int) devicedomain.Attributes {
	return devicedomain.Attributes{
		UserAgent:        fmt.Sprintf("agent-%d", n),
		Platform:         fmt.Sprintf("platform-%d", n),
		ScreenResolution: fmt.Sprintf("%dx900", 1000+n),
		Timezone:         "Asia/Seoul",
		Language:         "ko-KR",
		ColorDepth:       24,
	}
}

func request(n int) AllocateRequest {
	return AllocateRequest{
		IdentityClaim:  fmt.Sprintf("%016d", n),
		Latitude:       ptr(siteLat + 0.001),
		Longitude:      ptr(siteLon),
		AccuracyMeters: ptr(20),
		Device:         attrs(n),
		NetworkAddress: fmt.Sprintf("198.51.100.%d", n),
	}
}

func TestAllocate_NewThenIdempotent(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t).allocator(t, AllocatorConfig{})

	first, err := a.Allocate(ctx, request(1))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if first.Outcome != OutcomeAllocated || first.Ticket.Sequence != 1 || first.SiteName != "Main Hall" {
		t.Errorf("first = %+v", first)
	}
	if first.Ticket.Day != "2026-03-14" || first.Ticket.Status != domain.StatusActive {
		t.Errorf("ticket day/status = %s/%s", first.Ticket.Day, first.Ticket.Status)
	}

	again, err := a.Allocate(ctx, request(1))
	if err != nil {
		t.Fatalf("Allocate again: %v", err)
	}
	if again.Outcome != OutcomeExisting || again.Ticket.ID != first.Ticket.ID || again.Ticket.Sequence != 1 {
		t.Errorf("again = %+v, want existing ticket %s", again, first.Ticket.ID)
	}

	// Formatting differences in the claim normalize to the same identity.
	req := request(1)
	req.IdentityClaim = "0000-0000-0000-0001"
	dashed, err := a.Allocate(ctx, req)
	if err != nil || dashed.Ticket.ID != first.Ticket.ID {
		t.Errorf("dashed claim = %+v, %v", dashed, err)
	}

	second, err := a.Allocate(ctx, request(2))
	if err != nil || second.Ticket.Sequence != 2 {
		t.Errorf("second = %+v, %v; want sequence 2", second, err)
	}
}

func TestAllocate_ConcurrentRequestsGetContiguousSequences(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t).allocator(t, AllocatorConfig{MaxAttempts: 10})

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int
		errs []error
	)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := a.Allocate(ctx, request(i))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seqs = append(seqs, res.Ticket.Sequence)
		}(i)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("allocation errors: %v", errs)
	}
	sort.Ints(seqs)
	for i, s := range seqs {
		if s != i+1 {
			t.Fatalf("sequences = %v, want 1..%d", seqs, n)
		}
	}
}

func TestAllocate_DeviceAlreadyUsedOnAnySignal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AllocateRequest)
		signal string
	}{
		{"strict fingerprint", func(r *AllocateRequest) {
			r.Device.ColorDepth = 30
			r.NetworkAddress = "203.0.113.9"
		}, "strict"},
		{"stable fingerprint", func(r *AllocateRequest) {
			r.Device.UserAgent = "other-browser"
			r.NetworkAddress = "203.0.113.9"
		}, "stable"},
		{"network address", func(r *AllocateRequest) {
			r.Device = attrs(99)
		}, "network"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := newFixture(t).allocator(t, AllocatorConfig{})
			first, err := a.Allocate(ctx, request(1))
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}

			req := request(1)
			req.IdentityClaim = fmt.Sprintf("%016d", 42)
			tt.mutate(&req)
			res, err := a.Allocate(ctx, req)
			if res != nil {
				t.Fatalf("allocated %+v, want denial", res.Ticket)
			}
			var denial *domain.DenialError
			if !errors.As(err, &denial) || denial.Kind != domain.KindDeviceAlreadyUsed {
				t.Fatalf("err = %v, want DEVICE_ALREADY_USED", err)
			}
			if denial.Details["existingSequence"] != first.Ticket.Sequence {
				t.Errorf("existingSequence = %v", denial.Details["existingSequence"])
			}
			if denial.Details["existingIdentityClaim"] != first.Ticket.IdentityClaim {
				t.Errorf("existingIdentityClaim = %v", denial.Details["existingIdentityClaim"])
			}
			signals, _ := denial.Details["matchedSignals"].([]string)
			if len(signals) != 1 || signals[0] != tt.signal {
				t.Errorf("matchedSignals = %v, want [%s]", signals, tt.signal)
			}
		})
	}
}

func TestAllocate_IdentityAlreadyUsedFromOtherDevice(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t).allocator(t, AllocatorConfig{})
	if _, err := a.Allocate(ctx, request(1)); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	req := request(2)
	req.IdentityClaim = request(1).IdentityClaim
	_, err := a.Allocate(ctx, req)
	if domain.KindOf(err) != domain.KindIdentityAlreadyUsed {
		t.Fatalf("err = %v, want IDENTITY_ALREADY_USED", err)
	}

	// The other device can still take a ticket under its own identity.
	res, err := a.Allocate(ctx, request(2))
	if err != nil || res.Ticket.Sequence != 2 {
		t.Errorf("request(2) = %+v, %v", res, err)
	}
}

func TestAllocate_OrderedDenials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AllocateRequest)
		want   domain.Kind
	}{
		{"bad claim beats bad location", func(r *AllocateRequest) {
			r.IdentityClaim = "12ab"
			r.Latitude = nil
		}, domain.KindInvalidFormat},
		{"missing position", func(r *AllocateRequest) { r.Latitude = nil }, domain.KindInvalidLocation},
		{"out of range", func(r *AllocateRequest) { r.Latitude = ptr(91) }, domain.KindInvalidLocation},
		{"outside geofence beats device", func(r *AllocateRequest) {
			r.Latitude = ptr(siteLat + 0.01)
			r.Device = devicedomain.Attributes{}
		}, domain.KindOutsideGeofence},
		{"incomplete device", func(r *AllocateRequest) { r.Device.Timezone = "" }, domain.KindIncompleteDeviceInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFixture(t).allocator(t, AllocatorConfig{})
			req := request(1)
			tt.mutate(&req)
			_, err := a.Allocate(context.Background(), req)
			if got := domain.KindOf(err); got != tt.want {
				t.Errorf("kind = %q (%v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestAllocate_OutsideGeofenceDetails(t *testing.T) {
	a := newFixture(t).allocator(t, AllocatorConfig{})
	req := request(1)
	req.Latitude = ptr(siteLat + 0.01)
	req.AccuracyMeters = ptr(1000)
	_, err := a.Allocate(context.Background(), req)
	var denial *domain.DenialError
	if !errors.As(err, &denial) || denial.Kind != domain.KindOutsideGeofence {
		t.Fatalf("err = %v, want OUTSIDE_GEOFENCE", err)
	}
	if denial.Details["accuracyAdjustmentMeters"] != 150.0 {
		t.Errorf("accuracyAdjustmentMeters = %v, want clamped 150", denial.Details["accuracyAdjustmentMeters"])
	}
	if denial.Details["radiusMeters"] != 500.0 {
		t.Errorf("radiusMeters = %v", denial.Details["radiusMeters"])
	}
	raw, _ := denial.Details["distanceMeters"].(float64)
	eff, _ := denial.Details["effectiveDistanceMeters"].(float64)
	if raw < 1100 || raw > 1125 || eff < raw-150.2 || eff > raw-149.8 {
		t.Errorf("distance = %v, effective = %v", raw, eff)
	}
}

func TestAllocate_LocationBypassUsesSiteCenter(t *testing.T) {
	a := newFixture(t).allocator(t, AllocatorConfig{LocationBypass: true})
	req := request(1)
	req.Latitude, req.Longitude = nil, nil
	res, err := a.Allocate(context.Background(), req)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if res.Ticket.Latitude != siteLat || res.Ticket.Longitude != siteLon {
		t.Errorf("position = %v,%v, want site center", res.Ticket.Latitude, res.Ticket.Longitude)
	}
}

type stubPolicy struct{ decision engine.Decision }

func (p stubPolicy) EvaluateAdmission(context.Context, *sitedomain.Site, string, time.Time) (engine.Decision, error) {
	return p.decision, nil
}

func TestAllocate_PolicyDecisionOverridesConfig(t *testing.T) {
	f := newFixture(t)
	claims, _ := identity.NewClaimValidator("")
	policy := stubPolicy{decision: engine.Decision{AccuracyCapMeters: 1000, FromPolicy: true}}
	a := NewAllocator(f.sites, f.ledger, claims, device.NewResolver(), geofence.NewGate(150), policy, f.clock, nil, AllocatorConfig{})

	// About 1112 m out: admitted only with the policy's wider cap.
	req := request(1)
	req.Latitude = ptr(siteLat + 0.01)
	req.AccuracyMeters = ptr(700)
	if _, err := a.Allocate(context.Background(), req); err != nil {
		t.Errorf("Allocate with policy cap: %v", err)
	}
}

func TestAllocate_SiteResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.allocator(t, AllocatorConfig{ActiveSiteID: "missing"}).Allocate(ctx, request(1)); !errors.Is(err, domain.ErrSiteNotFound) {
		t.Errorf("configured missing site: err = %v, want ErrSiteNotFound", err)
	}
	req := request(1)
	req.SiteID = "site-1"
	if _, err := f.allocator(t, AllocatorConfig{ActiveSiteID: "missing"}).Allocate(ctx, req); err != nil {
		t.Errorf("explicit site: %v", err)
	}

	second := &sitedomain.Site{ID: "site-2", Name: "Annex", Latitude: siteLat, Longitude: siteLon, RadiusMeters: 300}
	if err := f.sites.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := f.allocator(t, AllocatorConfig{}).Allocate(ctx, request(2)); !errors.Is(err, domain.ErrSiteNotFound) {
		t.Errorf("ambiguous default site: err = %v, want ErrSiteNotFound", err)
	}
}

func TestAllocate_NewDayRestartsSequence(t *testing.T) {
	f := newFixture(t)
	a := f.allocator(t, AllocatorConfig{})
	ctx := context.Background()
	if _, err := a.Allocate(ctx, request(1)); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	f.clock.Advance(24 * time.Hour)
	res, err := a.Allocate(ctx, request(1))
	if err != nil {
		t.Fatalf("Allocate next day: %v", err)
	}
	if res.Outcome != OutcomeAllocated || res.Ticket.Sequence != 1 || res.Ticket.Day != "2026-03-15" {
		t.Errorf("next day = %+v", res.Ticket)
	}
}

// flakyLedger fails every transaction with err.
type flakyLedger struct {
	repository.Ledger
	err   error
	calls atomic.Int32
}

func (l *flakyLedger) WithinTx(context.Context, func(repository.Tx) error) error {
	l.calls.Add(1)
	return l.err
}

func TestAllocate_RetryExhaustion(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"conflict", fmt.Errorf("%w: busy", repository.ErrConflict), domain.KindAllocationContention},
		{"store", errors.New("connection refused"), domain.KindStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ledger := &flakyLedger{Ledger: f.ledger, err: tt.err}
			claims, _ := identity.NewClaimValidator("")
			a := NewAllocator(f.sites, ledger, claims, device.NewResolver(), geofence.NewGate(150), nil, f.clock, nil, AllocatorConfig{MaxAttempts: 3})

			_, err := a.Allocate(context.Background(), request(1))
			if got := domain.KindOf(err); got != tt.want {
				t.Errorf("kind = %q, want %q", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want it to wrap %v", err, tt.err)
			}
			if got := ledger.calls.Load(); got != 3 {
				t.Errorf("attempts = %d, want 3", got)
			}
		})
	}
}
