// Package auditv1 declares the geoqueue.audit.v1.AuditService messages, server interface,
// service descriptor and client, carried on the JSON codec.
package auditv1

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"geoqueue/backend/internal/server/codec"
)

const (
	AuditService_ServiceName                  = "geoqueue.audit.v1.AuditService"
	AuditService_ListAuditLogs_FullMethodName = "/geoqueue.audit.v1.AuditService/ListAuditLogs"
)

type ListAuditLogsRequest struct {
	// SiteId defaults to the caller's site and must match it when set.
	SiteId   string  `json:"siteId,omitempty"`
	PageSize int32   `json:"pageSize,omitempty"`
	Offset   int32   `json:"offset,omitempty"`
	ActorId  *string `json:"actorId,omitempty"`
	Action   *string `json:"action,omitempty"`
	Resource *string `json:"resource,omitempty"`
}

type AuditLog struct {
	Id        string    `json:"id"`
	SiteId    string    `json:"siteId"`
	ActorId   string    `json:"actorId"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Ip        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListAuditLogsResponse struct {
	Logs []*AuditLog `json:"logs"`
	// NextOffset is set when another page may exist.
	NextOffset int32 `json:"nextOffset,omitempty"`
}

// AuditServiceServer is the server API for AuditService.
type AuditServiceServer interface {
	ListAuditLogs(context.Context, *ListAuditLogsRequest) (*ListAuditLogsResponse, error)
}

// UnimplementedAuditServiceServer returns Unimplemented for every method.
type UnimplementedAuditServiceServer struct{}

func (UnimplementedAuditServiceServer) ListAuditLogs(context.Context, *ListAuditLogsRequest) (*ListAuditLogsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAuditLogs not implemented")
}

func RegisterAuditServiceServer(s grpc.ServiceRegistrar, srv AuditServiceServer) {
	s.RegisterService(&AuditService_ServiceDesc, srv)
}

func _AuditService_ListAuditLogs_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAuditLogsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServiceServer).ListAuditLogs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AuditService_ListAuditLogs_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuditServiceServer).ListAuditLogs(ctx, req.(*ListAuditLogsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AuditService_ServiceDesc is the grpc.ServiceDesc for AuditService.
var AuditService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuditService_ServiceName,
	HandlerType: (*AuditServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAuditLogs", Handler: _AuditService_ListAuditLogs_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "audit/v1/audit.json",
}

// AuditServiceClient is the client API for AuditService. Every call uses the JSON codec.
type AuditServiceClient interface {
	ListAuditLogs(ctx context.Context, in *ListAuditLogsRequest, opts ...grpc.CallOption) (*ListAuditLogsResponse, error)
}

type auditServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuditServiceClient(cc grpc.ClientConnInterface) AuditServiceClient {
	return &auditServiceClient{cc}
}

func (c *auditServiceClient) ListAuditLogs(ctx context.Context, in *ListAuditLogsRequest, opts ...grpc.CallOption) (*ListAuditLogsResponse, error) {
	out := new(ListAuditLogsResponse)
	if err := c.cc.Invoke(ctx, AuditService_ListAuditLogs_FullMethodName, in, out, append([]grpc.CallOption{codec.CallOption()}, opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}
