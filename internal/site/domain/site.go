package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Site is a physical location with a registered center point and admission radius.
// Read-only to the admission core; created by administrative seeding.
type Site struct {
	ID           string
	Name         string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	CreatedAt    time.Time
}

var (
	ErrSiteIDRequired   = errors.New("site id is required")
	ErrSiteNameRequired = errors.New("site name is required")
	ErrSiteCenter       = errors.New("site center is out of range")
	ErrSiteRadius       = errors.New("site radius must be positive")
)

// Validate checks the invariants a stored site must satisfy.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrSiteIDRequired
	}
	if strings.TrimSpace(s.Name) == "" {
		return ErrSiteNameRequired
	}
	if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) ||
		s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return ErrSiteCenter
	}
	if !(s.RadiusMeters > 0) || math.IsInf(s.RadiusMeters, 0) {
		return ErrSiteRadius
	}
	return nil
}
