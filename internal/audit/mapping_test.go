package audit

import "testing"

func TestParseFullMethod(t *testing.T) {
	tests := []struct {
		fullMethod   string
		wantAction   string
		wantResource string
	}{
		{"/geoqueue.ticket.v1.TicketService/AllocateTicket", "allocate", "ticket"},
		{"/geoqueue.ticket.v1.TicketService/VerifyTicket", "verify", "ticket"},
		{"/geoqueue.ticket.v1.TicketService/GetTodayStats", "get", "ticket"},
		{"/geoqueue.audit.v1.AuditService/ListAuditLogs", "list", "audit"},
		{"/geoqueue.ticket.v1.TicketService/Ping", "ping", "ticket"},
		{"/geoqueue.ticket.v1.TicketService/Get", "get", "ticket"},
		{"/NoPackage/Method", "method", "unknown"},
		{"/pkg.Service/Method", "method", "unknown"},
		{"no-slash", "unknown", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.fullMethod, func(t *testing.T) {
			ar := ParseFullMethod(tt.fullMethod)
			if ar.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", ar.Action, tt.wantAction)
			}
			if ar.Resource != tt.wantResource {
				t.Errorf("resource = %q, want %q", ar.Resource, tt.wantResource)
			}
		})
	}
}
