package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	auditv1 "geoqueue/backend/api/audit/v1"
	"geoqueue/backend/internal/audit/domain"
	auditrepo "geoqueue/backend/internal/audit/repository"
	"geoqueue/backend/internal/server/interceptors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Server implements AuditService for staff review of audit logs.
type Server struct {
	auditv1.UnimplementedAuditServiceServer
	repo auditrepo.Repository
}

// NewServer returns a new Audit gRPC server. Pass nil repo for stub (Unimplemented).
func NewServer(repo auditrepo.Repository) *Server {
	return &Server{repo: repo}
}

// ListAuditLogs returns a page of the site's audit logs, newest first.
// Staff scoped to a site may only list that site; unscoped staff must name one.
func (s *Server) ListAuditLogs(ctx context.Context, req *auditv1.ListAuditLogsRequest) (*auditv1.ListAuditLogsResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method ListAuditLogs not implemented")
	}
	staffID, ok := interceptors.GetStaffID(ctx)
	if !ok || staffID == "" {
		return nil, status.Error(codes.Unauthenticated, "staff authentication required")
	}
	scope, _ := interceptors.GetSiteID(ctx)
	siteID := req.SiteId
	switch {
	case siteID == "":
		siteID = scope
	case scope != "" && siteID != scope:
		return nil, status.Error(codes.PermissionDenied, "site is outside the caller's scope")
	}
	if siteID == "" {
		return nil, status.Error(codes.InvalidArgument, "site_id is required")
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	list, err := s.repo.ListBySite(ctx, siteID, limit, offset, auditrepo.Filter{
		ActorID:  req.ActorId,
		Action:   req.Action,
		Resource: req.Resource,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	logs := make([]*auditv1.AuditLog, 0, len(list))
	for _, a := range list {
		logs = append(logs, auditLogToResponse(a))
	}
	resp := &auditv1.ListAuditLogsResponse{Logs: logs}
	if int32(len(list)) == limit {
		resp.NextOffset = offset + limit
	}
	return resp, nil
}

func auditLogToResponse(a *domain.AuditLog) *auditv1.AuditLog {
	return &auditv1.AuditLog{
		Id:        a.ID,
		SiteId:    a.SiteID,
		ActorId:   a.ActorID,
		Action:    a.Action,
		Resource:  a.Resource,
		Ip:        a.IP,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
	}
}
