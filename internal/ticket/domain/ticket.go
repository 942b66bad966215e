package domain

import (
	"time"

	devicedomain "geoqueue/backend/internal/device/domain"
)

// Status is the lifecycle state of a ticket. The only transition is ACTIVE to USED.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusUsed   Status = "USED"
)

// Ticket is one day-scoped admission ticket at a site.
type Ticket struct {
	ID             string
	SiteID         string
	Day            string
	Sequence       int
	IdentityClaim  string
	StrictFP       string
	StableFP       string
	NetworkAddress string
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Status         Status
	CreatedAt      time.Time
	UsedAt         *time.Time
}

// Device returns the device identity recorded when the ticket was issued.
func (t *Ticket) Device() devicedomain.Identity {
	return devicedomain.Identity{Strict: t.StrictFP, Stable: t.StableFP, NetworkAddress: t.NetworkAddress}
}

// TicketView is what the verification surface returns for a ticket.
type TicketView struct {
	ID            string
	Sequence      int
	IdentityClaim string
	SiteID        string
	SiteName      string
	Status        Status
	Day           string
	CreatedAt     time.Time
	UsedAt        *time.Time
	// Valid is true when the ticket belongs to today and was ACTIVE before this lookup.
	Valid bool
	// AlreadyUsed is true when the ticket was USED before this lookup.
	AlreadyUsed bool
}

// SiteStats counts one site's tickets for a day.
type SiteStats struct {
	SiteID   string
	SiteName string
	Day      string
	Total    int
	Active   int
	Used     int
}
