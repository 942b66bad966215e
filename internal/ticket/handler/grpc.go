package handler

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ticketv1 "geoqueue/backend/api/ticket/v1"
	devicedomain "geoqueue/backend/internal/device/domain"
	"geoqueue/backend/internal/server/interceptors"
	"geoqueue/backend/internal/ticket/domain"
	"geoqueue/backend/internal/ticket/service"
)

// Server implements TicketService: applicant allocation plus the staff verification and stats surface.
// Policy denials are returned in the response body; only infrastructure failures become status errors.
type Server struct {
	ticketv1.UnimplementedTicketServiceServer
	allocator *service.Allocator
	verifier  *service.Verifier
	stats     *service.Stats
}

// NewServer returns a new Ticket gRPC server. A nil dependency leaves its RPC Unimplemented.
func NewServer(allocator *service.Allocator, verifier *service.Verifier, stats *service.Stats) *Server {
	return &Server{allocator: allocator, verifier: verifier, stats: stats}
}

// AllocateTicket issues, or re-issues, the caller's ticket for today.
func (s *Server) AllocateTicket(ctx context.Context, req *ticketv1.AllocateTicketRequest) (*ticketv1.AllocateTicketResponse, error) {
	if s.allocator == nil {
		return nil, status.Error(codes.Unimplemented, "method AllocateTicket not implemented")
	}
	res, err := s.allocator.Allocate(ctx, service.AllocateRequest{
		SiteID:         req.SiteId,
		IdentityClaim:  req.IdentityClaim,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		Device:         deviceFromRequest(req.Device),
		NetworkAddress: networkAddress(ctx),
	})
	if err != nil {
		denial, serr := denialOrStatus(err)
		if serr != nil {
			return nil, serr
		}
		return &ticketv1.AllocateTicketResponse{Denial: denial}, nil
	}
	return &ticketv1.AllocateTicketResponse{
		Ticket: &ticketv1.IssuedTicket{
			Reference: res.Ticket.ID,
			Sequence:  res.Ticket.Sequence,
			SiteName:  res.SiteName,
			Status:    string(res.Ticket.Status),
			Day:       res.Ticket.Day,
		},
		Existing: res.Outcome == service.OutcomeExisting,
	}, nil
}

// VerifyTicket looks a ticket up for staff and optionally marks it used.
// Staff tokens scoped to a site only see that site's tickets.
func (s *Server) VerifyTicket(ctx context.Context, req *ticketv1.VerifyTicketRequest) (*ticketv1.VerifyTicketResponse, error) {
	if s.verifier == nil {
		return nil, status.Error(codes.Unimplemented, "method VerifyTicket not implemented")
	}
	var opts []service.VerifyOption
	if staffID, ok := interceptors.GetStaffID(ctx); ok {
		opts = append(opts, service.AsActor(staffID))
	}
	if siteID, ok := interceptors.GetSiteID(ctx); ok && siteID != "" {
		opts = append(opts, service.ScopedToSite(siteID))
	}
	view, err := s.verifier.Verify(ctx, req.Reference, req.MarkUsed, opts...)
	if err != nil {
		denial, serr := denialOrStatus(err)
		if serr != nil {
			return nil, serr
		}
		return &ticketv1.VerifyTicketResponse{Denial: denial}, nil
	}
	return &ticketv1.VerifyTicketResponse{Valid: view.Valid, Ticket: viewToResponse(view)}, nil
}

// GetTodayStats returns per-site counts for the current site-local day.
func (s *Server) GetTodayStats(ctx context.Context, _ *ticketv1.GetTodayStatsRequest) (*ticketv1.GetTodayStatsResponse, error) {
	if s.stats == nil {
		return nil, status.Error(codes.Unimplemented, "method GetTodayStats not implemented")
	}
	rows, err := s.stats.Today(ctx)
	if err != nil {
		log.Printf("ticket: stats: %v", err)
		return nil, status.Error(codes.Unavailable, "ticket ledger unavailable")
	}
	scope, _ := interceptors.GetSiteID(ctx)
	out := make([]*ticketv1.SiteStats, 0, len(rows))
	for _, r := range rows {
		if scope != "" && r.SiteID != scope {
			continue
		}
		out = append(out, &ticketv1.SiteStats{
			SiteId:   r.SiteID,
			SiteName: r.SiteName,
			Day:      r.Day,
			Total:    r.Total,
			Active:   r.Active,
			Used:     r.Used,
		})
	}
	return &ticketv1.GetTodayStatsResponse{Sites: out}, nil
}

// denialOrStatus turns a service error into a response denial or a gRPC status error.
func denialOrStatus(err error) (*ticketv1.Denial, error) {
	if errors.Is(err, domain.ErrSiteNotFound) {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	var denial *domain.DenialError
	if !errors.As(err, &denial) {
		log.Printf("ticket: unexpected error: %v", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	switch denial.Kind {
	case domain.KindAllocationContention, domain.KindStoreUnavailable:
		log.Printf("ticket: %v", err)
		return nil, status.Error(codes.Unavailable, denial.Message)
	}
	return &ticketv1.Denial{Kind: string(denial.Kind), Message: denial.Message, Details: denial.Details}, nil
}

func networkAddress(ctx context.Context) string {
	ip := interceptors.ClientIP(ctx)
	if ip == "unknown" {
		return ""
	}
	return ip
}

func deviceFromRequest(d ticketv1.DeviceInfo) devicedomain.Attributes {
	return devicedomain.Attributes{
		UserAgent:           d.UserAgent,
		Platform:            d.Platform,
		ScreenResolution:    d.ScreenResolution,
		Timezone:            d.Timezone,
		Language:            d.Language,
		ColorDepth:          d.ColorDepth,
		HardwareConcurrency: d.HardwareConcurrency,
		DeviceMemory:        d.DeviceMemory,
		MaxTouchPoints:      d.MaxTouchPoints,
		CanvasSignature:     d.CanvasSignature,
	}
}

func viewToResponse(v *domain.TicketView) *ticketv1.TicketView {
	return &ticketv1.TicketView{
		Reference:     v.ID,
		Sequence:      v.Sequence,
		IdentityClaim: v.IdentityClaim,
		SiteId:        v.SiteID,
		SiteName:      v.SiteName,
		Status:        string(v.Status),
		Day:           v.Day,
		CreatedAt:     v.CreatedAt,
		UsedAt:        v.UsedAt,
		AlreadyUsed:   v.AlreadyUsed,
	}
}
