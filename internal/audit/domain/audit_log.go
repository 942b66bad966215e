package domain

import "time"

// AuditLog represents an audit event. ActorID is the staff member, empty for public calls.
type AuditLog struct {
	ID        string
	SiteID    string
	ActorID   string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the ticket engine itself.
const (
	ActionTicketUsed = "ticket_used"
	ResourceTicket   = "ticket"
)
