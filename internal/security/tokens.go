package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigningDisabled is returned by IssueStaff on a verify-only provider.
	ErrSigningDisabled = errors.New("token signing key not configured")
)

// StaffClaims are the JWT claims of a verifier (staff) token. Subject is the staff member id.
// SiteID scopes the token to one site; empty means all sites.
type StaffClaims struct {
	jwt.RegisteredClaims
	SiteID string `json:"site_id,omitempty"`
}

// TokenProvider issues and validates staff tokens with RS256 or ES256.
// A provider built without a private key can only validate.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewTokenProvider returns a TokenProvider. privateKey may be nil for a verify-only provider (the server).
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// IssueStaff issues a staff token for staffID, optionally scoped to siteID.
func (p *TokenProvider) IssueStaff(staffID, siteID string) (token string, expiresAt time.Time, err error) {
	if p.privateKey == nil {
		return "", time.Time{}, ErrSigningDisabled
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   staffID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SiteID: siteID,
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidToken
	}
	token, err = jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	return token, expiresAt, err
}

// ValidateStaff parses and validates a staff token (signature, exp, iss, aud).
// Returns the staff id and site scope.
func (p *TokenProvider) ValidateStaff(tokenString string) (staffID, siteID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &StaffClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithIssuer(p.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*StaffClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	if !slices.Contains([]string(claims.Audience), p.audience) {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.SiteID, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
