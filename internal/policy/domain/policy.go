package domain

import "time"

// Policy is a site-level admission policy written in Rego.
type Policy struct {
	ID        string
	SiteID    string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
