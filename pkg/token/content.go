package token

import "github.com/cuioss/cui-jwt-sub016/pkg/claims"

// AccessTokenContent is the typed projection of a validated access
// token (spec §3).
type AccessTokenContent struct {
	Claims    map[string]claims.Value
	RawToken  string
	IssuerName string
}

// Subject is a convenience accessor for the mandatory sub claim.
func (c AccessTokenContent) Subject() string { return c.Claims["sub"].AsString() }

// Scopes returns the OAuth scope claim's sorted members, if present.
func (c AccessTokenContent) Scopes() []string { return c.Claims["scope"].AsStringList() }

// IDTokenContent is the typed projection of a validated ID token. It
// additionally exposes aud and azp (spec §3).
type IDTokenContent struct {
	Claims     map[string]claims.Value
	RawToken   string
	IssuerName string
}

func (c IDTokenContent) Subject() string     { return c.Claims["sub"].AsString() }
func (c IDTokenContent) Audiences() []string  { return c.Claims["aud"].AsStringList() }
func (c IDTokenContent) AuthorizedParty() string { return c.Claims["azp"].AsString() }

// RefreshTokenContent carries at most a best-effort parsed claim map and
// the opaque raw form (spec §3, §4.12). It never fails to construct.
type RefreshTokenContent struct {
	Claims   map[string]claims.Value
	RawToken string
}
