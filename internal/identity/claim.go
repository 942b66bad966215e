// Package identity validates the identity claim an applicant asserts when requesting a ticket.
// Claims are checked for shape only; nothing here authenticates them.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultClaimPattern accepts a sixteen-digit claim.
const DefaultClaimPattern = `^[0-9]{16}$`

// ErrInvalidClaim is returned when a claim does not match the configured pattern.
var ErrInvalidClaim = errors.New("identity claim has an invalid format")

var separators = strings.NewReplacer(" ", "", "-", "", "\t", "")

type ClaimValidator struct {
	pattern *regexp.Regexp
}

// NewClaimValidator compiles pattern; an empty pattern uses DefaultClaimPattern.
func NewClaimValidator(pattern string) (*ClaimValidator, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultClaimPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("identity: claim pattern: %w", err)
	}
	return &ClaimValidator{pattern: re}, nil
}

// Normalize trims the claim and strips spaces and dashes.
func Normalize(claim string) string {
	return separators.Replace(strings.TrimSpace(claim))
}

// Validate returns the normalized claim, or ErrInvalidClaim.
func (v *ClaimValidator) Validate(claim string) (string, error) {
	n := Normalize(claim)
	if n == "" || !v.pattern.MatchString(n) {
		return "", ErrInvalidClaim
	}
	return n, nil
}

// Mask hides all but the last four characters, for logs and audit metadata.
func Mask(claim string) string {
	if len(claim) <= 4 {
		return strings.Repeat("*", len(claim))
	}
	return strings.Repeat("*", len(claim)-4) + claim[len(claim)-4:]
}
