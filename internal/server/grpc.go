package server

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	auditv1 "geoqueue/backend/api/audit/v1"
	ticketv1 "geoqueue/backend/api/ticket/v1"

	audithandler "geoqueue/backend/internal/audit/handler"
	auditrepo "geoqueue/backend/internal/audit/repository"
	healthhandler "geoqueue/backend/internal/health/handler"
	tickethandler "geoqueue/backend/internal/ticket/handler"
	"geoqueue/backend/internal/ticket/service"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Allocator serves AllocateTicket. If nil, the RPC returns Unimplemented.
	Allocator *service.Allocator
	// Verifier serves VerifyTicket. If nil, the RPC returns Unimplemented.
	Verifier *service.Verifier
	// Stats serves GetTodayStats. If nil, the RPC returns Unimplemented.
	Stats *service.Stats
	// AuditRepo is the audit log repository for AuditService. If nil, ListAuditLogs returns Unimplemented.
	AuditRepo auditrepo.Repository
	// HealthPinger is used by the health service for readiness (e.g. *db.DB). If nil, the store is not probed.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by the health service for readiness (the OPA evaluator). If nil, it is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - geoqueue.ticket.v1.TicketService → internal/ticket/handler
//   - geoqueue.audit.v1.AuditService   → internal/audit/handler
//   - grpc.health.v1.Health            → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	ticketv1.RegisterTicketServiceServer(s, tickethandler.NewServer(deps.Allocator, deps.Verifier, deps.Stats))
	auditv1.RegisterAuditServiceServer(s, audithandler.NewServer(deps.AuditRepo))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))
}

// PublicMethods are the RPCs callable without a staff token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		ticketv1.TicketService_AllocateTicket_FullMethodName: true,
		healthpb.Health_Check_FullMethodName:                 true,
		healthpb.Health_Watch_FullMethodName:                 true,
	}
}

// UnobservedMethods are skipped by the audit and telemetry interceptors.
func UnobservedMethods() map[string]bool {
	return map[string]bool{
		healthpb.Health_Check_FullMethodName:              true,
		healthpb.Health_Watch_FullMethodName:              true,
		auditv1.AuditService_ListAuditLogs_FullMethodName: true,
	}
}
