// Package ticketv1 declares the geoqueue.ticket.v1.TicketService messages, server interface,
// service descriptor and client. Messages travel on the JSON codec (internal/server/codec).
package ticketv1

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"geoqueue/backend/internal/server/codec"
)

const (
	TicketService_ServiceName                   = "geoqueue.ticket.v1.TicketService"
	TicketService_AllocateTicket_FullMethodName = "/geoqueue.ticket.v1.TicketService/AllocateTicket"
	TicketService_VerifyTicket_FullMethodName   = "/geoqueue.ticket.v1.TicketService/VerifyTicket"
	TicketService_GetTodayStats_FullMethodName  = "/geoqueue.ticket.v1.TicketService/GetTodayStats"
)

// DeviceInfo is the device attribute bag collected by the client.
type DeviceInfo struct {
	UserAgent           string  `json:"userAgent"`
	Platform            string  `json:"platform"`
	ScreenResolution    string  `json:"screenResolution"`
	Timezone            string  `json:"timezone"`
	Language            string  `json:"language,omitempty"`
	ColorDepth          int     `json:"colorDepth,omitempty"`
	HardwareConcurrency int     `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        float64 `json:"deviceMemory,omitempty"`
	MaxTouchPoints      int     `json:"maxTouchPoints,omitempty"`
	CanvasSignature     string  `json:"canvasSignature,omitempty"`
}

// Denial is a structured refusal returned in the response body.
type Denial struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type AllocateTicketRequest struct {
	// SiteId is optional; the server's active site is used when empty.
	SiteId         string     `json:"siteId,omitempty"`
	IdentityClaim  string     `json:"identityClaim"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	AccuracyMeters *float64   `json:"accuracyMeters,omitempty"`
	Device         DeviceInfo `json:"device"`
}

// IssuedTicket is the applicant-facing part of a ticket.
type IssuedTicket struct {
	Reference string `json:"reference"`
	Sequence  int    `json:"sequence"`
	SiteName  string `json:"siteName"`
	Status    string `json:"status"`
	Day       string `json:"day"`
}

// AllocateTicketResponse carries either Ticket or Denial.
type AllocateTicketResponse struct {
	Ticket *IssuedTicket `json:"ticket,omitempty"`
	// Existing is true when the caller already held this ticket.
	Existing bool    `json:"existing,omitempty"`
	Denial   *Denial `json:"denial,omitempty"`
}

type VerifyTicketRequest struct {
	Reference string `json:"reference"`
	MarkUsed  bool   `json:"markUsed,omitempty"`
}

type TicketView struct {
	Reference     string     `json:"reference"`
	Sequence      int        `json:"sequence"`
	IdentityClaim string     `json:"identityClaim"`
	SiteId        string     `json:"siteId"`
	SiteName      string     `json:"siteName"`
	Status        string     `json:"status"`
	Day           string     `json:"day"`
	CreatedAt     time.Time  `json:"createdAt"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
	AlreadyUsed   bool       `json:"alreadyUsed,omitempty"`
}

// VerifyTicketResponse carries the view, or a NOT_FOUND/EXPIRED denial.
type VerifyTicketResponse struct {
	Valid  bool        `json:"valid"`
	Ticket *TicketView `json:"ticket,omitempty"`
	Denial *Denial     `json:"denial,omitempty"`
}

type GetTodayStatsRequest struct{}

type SiteStats struct {
	SiteId   string `json:"siteId"`
	SiteName string `json:"siteName"`
	Day      string `json:"day"`
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	Used     int    `json:"used"`
}

type GetTodayStatsResponse struct {
	Sites []*SiteStats `json:"sites"`
}

// TicketServiceServer is the server API for TicketService.
type TicketServiceServer interface {
	AllocateTicket(context.Context, *AllocateTicketRequest) (*AllocateTicketResponse, error)
	VerifyTicket(context.Context, *VerifyTicketRequest) (*VerifyTicketResponse, error)
	GetTodayStats(context.Context, *GetTodayStatsRequest) (*GetTodayStatsResponse, error)
}

// UnimplementedTicketServiceServer returns Unimplemented for every method.
type UnimplementedTicketServiceServer struct{}

func (UnimplementedTicketServiceServer) AllocateTicket(context.Context, *AllocateTicketRequest) (*AllocateTicketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AllocateTicket not implemented")
}

func (UnimplementedTicketServiceServer) VerifyTicket(context.Context, *VerifyTicketRequest) (*VerifyTicketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyTicket not implemented")
}

func (UnimplementedTicketServiceServer) GetTodayStats(context.Context, *GetTodayStatsRequest) (*GetTodayStatsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTodayStats not implemented")
}

func RegisterTicketServiceServer(s grpc.ServiceRegistrar, srv TicketServiceServer) {
	s.RegisterService(&TicketService_ServiceDesc, srv)
}

func _TicketService_AllocateTicket_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AllocateTicketRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TicketServiceServer).AllocateTicket(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TicketService_AllocateTicket_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TicketServiceServer).AllocateTicket(ctx, req.(*AllocateTicketRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TicketService_VerifyTicket_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(VerifyTicketRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TicketServiceServer).VerifyTicket(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TicketService_VerifyTicket_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TicketServiceServer).VerifyTicket(ctx, req.(*VerifyTicketRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TicketService_GetTodayStats_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetTodayStatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TicketServiceServer).GetTodayStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TicketService_GetTodayStats_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TicketServiceServer).GetTodayStats(ctx, req.(*GetTodayStatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TicketService_ServiceDesc is the grpc.ServiceDesc for TicketService.
var TicketService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: TicketService_ServiceName,
	HandlerType: (*TicketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AllocateTicket", Handler: _TicketService_AllocateTicket_Handler},
		{MethodName: "VerifyTicket", Handler: _TicketService_VerifyTicket_Handler},
		{MethodName: "GetTodayStats", Handler: _TicketService_GetTodayStats_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ticket/v1/ticket.json",
}

// TicketServiceClient is the client API for TicketService. Every call uses the JSON codec.
type TicketServiceClient interface {
	AllocateTicket(ctx context.Context, in *AllocateTicketRequest, opts ...grpc.CallOption) (*AllocateTicketResponse, error)
	VerifyTicket(ctx context.Context, in *VerifyTicketRequest, opts ...grpc.CallOption) (*VerifyTicketResponse, error)
	GetTodayStats(ctx context.Context, in *GetTodayStatsRequest, opts ...grpc.CallOption) (*GetTodayStatsResponse, error)
}

type ticketServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTicketServiceClient(cc grpc.ClientConnInterface) TicketServiceClient {
	return &ticketServiceClient{cc}
}

func (c *ticketServiceClient) AllocateTicket(ctx context.Context, in *AllocateTicketRequest, opts ...grpc.CallOption) (*AllocateTicketResponse, error) {
	out := new(AllocateTicketResponse)
	if err := c.cc.Invoke(ctx, TicketService_AllocateTicket_FullMethodName, in, out, append([]grpc.CallOption{codec.CallOption()}, opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ticketServiceClient) VerifyTicket(ctx context.Context, in *VerifyTicketRequest, opts ...grpc.CallOption) (*VerifyTicketResponse, error) {
	out := new(VerifyTicketResponse)
	if err := c.cc.Invoke(ctx, TicketService_VerifyTicket_FullMethodName, in, out, append([]grpc.CallOption{codec.CallOption()}, opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ticketServiceClient) GetTodayStats(ctx context.Context, in *GetTodayStatsRequest, opts ...grpc.CallOption) (*GetTodayStatsResponse, error) {
	out := new(GetTodayStatsResponse)
	if err := c.cc.Invoke(ctx, TicketService_GetTodayStats_FullMethodName, in, out, append([]grpc.CallOption{codec.CallOption()}, opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}
