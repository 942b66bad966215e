// Package device derives the three-signal device identity from client-submitted attributes.
package device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"geoqueue/backend/internal/device/domain"
	"geoqueue/backend/internal/security"
)

// ErrIncompleteAttributes is returned when a required attribute is missing.
var ErrIncompleteAttributes = errors.New("device attributes incomplete")

// IncompleteError lists the missing attributes. It matches ErrIncompleteAttributes with errors.Is.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncompleteAttributes, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncompleteAttributes }

// Resolver computes fingerprints. It is stateless and safe for concurrent use.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve validates attrs and returns the device identity with networkAddress as the third signal.
func (r *Resolver) Resolve(attrs domain.Attributes, networkAddress string) (domain.Identity, error) {
	if missing := attrs.MissingRequired(); len(missing) > 0 {
		return domain.Identity{}, &IncompleteError{Missing: missing}
	}
	return domain.Identity{
		Strict:         StrictFingerprint(attrs),
		Stable:         StableFingerprint(attrs),
		NetworkAddress: strings.TrimSpace(networkAddress),
	}, nil
}

// StrictFingerprint covers the agent string, so two browsers on one device differ.
func StrictFingerprint(a domain.Attributes) string {
	return security.Digest(a.UserAgent, a.Platform, a.ScreenResolution, a.Timezone, a.Language)
}

// StableFingerprint leaves out the agent string, so it is shared by every agent on one device.
func StableFingerprint(a domain.Attributes) string {
	return security.Digest(
		a.Platform,
		a.ScreenResolution,
		a.Timezone,
		a.Language,
		itoa(a.ColorDepth),
		itoa(a.HardwareConcurrency),
		ftoa(a.DeviceMemory),
		itoa(a.MaxTouchPoints),
		a.CanvasSignature,
	)
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func ftoa(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
