// Package geofence decides whether a claimed position is inside a site's admission radius,
// crediting the client's reported positioning accuracy up to a fixed cap.
package geofence

import (
	"math"

	sitedomain "geoqueue/backend/internal/site/domain"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine distance.
const EarthRadiusMeters = 6371000.0

// DefaultAccuracyCapMeters bounds how much reported accuracy a client can claim.
const DefaultAccuracyCapMeters = 150.0

// Verdict is the outcome of a proximity evaluation. A denial is a Verdict with Admit false,
// never an error, so callers can show both distances to the applicant.
type Verdict struct {
	Admit                    bool
	DistanceMeters           float64
	EffectiveDistanceMeters  float64
	AccuracyAdjustmentMeters float64
	RadiusMeters             float64
}

// Gate evaluates claimed positions against a site geofence.
type Gate struct {
	capMeters float64
}

// NewGate returns a Gate that clamps reported accuracy to [0, capMeters].
// A non-positive cap falls back to DefaultAccuracyCapMeters.
func NewGate(capMeters float64) *Gate {
	if capMeters <= 0 || math.IsNaN(capMeters) || math.IsInf(capMeters, 0) {
		capMeters = DefaultAccuracyCapMeters
	}
	return &Gate{capMeters: capMeters}
}

// CapMeters returns the accuracy cap in effect.
func (g *Gate) CapMeters() float64 { return g.capMeters }

// Evaluate computes the haversine distance from (lat, lon) to the site center, subtracts the
// clamped accuracy (floored at zero) and admits iff the result is within the site radius.
func (g *Gate) Evaluate(lat, lon float64, site *sitedomain.Site, reportedAccuracyMeters float64) Verdict {
	return g.EvaluateWithCap(lat, lon, site, reportedAccuracyMeters, g.capMeters)
}

// EvaluateWithCap is Evaluate with a per-call accuracy cap (e.g. from a site admission policy).
// A non-positive cap uses the gate's own cap.
func (g *Gate) EvaluateWithCap(lat, lon float64, site *sitedomain.Site, reportedAccuracyMeters, capMeters float64) Verdict {
	if capMeters <= 0 || math.IsNaN(capMeters) || math.IsInf(capMeters, 0) {
		capMeters = g.capMeters
	}
	adjustment := ClampAccuracy(reportedAccuracyMeters, capMeters)
	distance := Distance(lat, lon, site.Latitude, site.Longitude)
	effective := math.Max(0, distance-adjustment)
	return Verdict{
		Admit:                    effective <= site.RadiusMeters,
		DistanceMeters:           distance,
		EffectiveDistanceMeters:  effective,
		AccuracyAdjustmentMeters: adjustment,
		RadiusMeters:             site.RadiusMeters,
	}
}

// ClampAccuracy clamps a reported accuracy into [0, capMeters]. NaN counts as zero.
func ClampAccuracy(accuracy, capMeters float64) float64 {
	if math.IsNaN(accuracy) || accuracy < 0 {
		return 0
	}
	return math.Min(accuracy, capMeters)
}

// Distance returns the great-circle distance in meters between two WGS84 points (haversine).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// ValidCoordinates reports whether lat/lon are finite and within [-90, 90] / [-180, 180].
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
