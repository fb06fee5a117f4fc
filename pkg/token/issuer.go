package token

import (
	"fmt"

	"github.com/cuioss/cui-jwt-sub016/pkg/jwks"
)

// JWKSSourceKind names which of the four mutually-exclusive JWKS
// sources an IssuerConfig uses (spec §9 Open Question c: "Mixed
// JWKS-source configuration on a single issuer is ambiguous; spec
// forbids it").
type JWKSSourceKind int

const (
	SourceNone JWKSSourceKind = iota
	SourceHTTP
	SourceFile
	SourceInline
	SourceWellKnown
)

// IssuerConfig is the trusted-issuer record (spec §3).
type IssuerConfig struct {
	Name              string
	Enabled           bool
	IssuerIdentifier  string
	ExpectedClientID  string
	ExpectedAudiences map[string]struct{}
	Algorithms        map[string]struct{}
	ClaimSubOptional  bool

	JWKSSource JWKSSourceKind
	JWKSURL    string
	WellKnownURL string
	JWKSFilePath string
	JWKSInline   string

	KeycloakDefaultRolesEnabled  bool
	KeycloakDefaultGroupsEnabled bool

	Loader jwks.Loader
}

// Validate enforces the IssuerConfig invariants that don't depend on
// other issuers (uniqueness of issuer-identifier across the validator's
// set is checked by the facade, pkg/jwtvalidator).
func (c IssuerConfig) Validate() error {
	if c.IssuerIdentifier == "" {
		return NewValidationError(EventConfigurationInvalid, "issuer-identifier must be set", nil)
	}

	sources := 0
	if c.JWKSURL != "" {
		sources++
	}
	if c.WellKnownURL != "" {
		sources++
	}
	if c.JWKSFilePath != "" {
		sources++
	}
	if c.JWKSInline != "" {
		sources++
	}
	if sources != 1 {
		return NewValidationError(EventConfigurationInvalid,
			fmt.Sprintf("issuer %q must set exactly one of jwks.http.url, jwks.http.well-known-url, jwks.file-path, jwks.inline (got %d)", c.Name, sources), nil)
	}
	return nil
}

// DefaultAlgorithms is spec §6's documented default allowlist.
func DefaultAlgorithms() map[string]struct{} {
	return map[string]struct{}{
		"RS256": {}, "RS384": {}, "RS512": {},
		"ES256": {}, "ES384": {}, "ES512": {},
		"PS256": {}, "PS384": {}, "PS512": {},
	}
}

// ResolveIssuer selects the enabled IssuerConfig whose IssuerIdentifier
// exactly matches the iss claim (spec §4.9).
func ResolveIssuer(iss string, configs []IssuerConfig) (IssuerConfig, error) {
	if iss == "" {
		return IssuerConfig{}, NewValidationError(EventClaimMissingClaim, "missing iss claim", nil)
	}
	for _, c := range configs {
		if !c.Enabled {
			continue // disabled issuer configs are invisible, spec §4.9
		}
		if c.IssuerIdentifier == iss {
			return c, nil
		}
	}
	return IssuerConfig{}, NewValidationError(EventClaimIssuerNotConfigured,
		fmt.Sprintf("no enabled issuer configured for iss=%q", iss), nil)
}
