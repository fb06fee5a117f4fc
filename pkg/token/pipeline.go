package token

import (
	"time"

	"github.com/cuioss/cui-jwt-sub016/pkg/claims"
	"github.com/cuioss/cui-jwt-sub016/pkg/counter"
)

// Pipeline orchestrates C9→C10→C11→C12→project for one token type. It
// is a pure function of its inputs plus the injected collaborators
// (issuer configs, counter) and holds no mutable state between calls
// (spec §4.12).
type Pipeline struct {
	Issuers       []IssuerConfig
	ParserOptions ParserOptions
	ClaimOptions  ClaimValidationOptions
	Counter       *counter.Counter
	Now           func() time.Time
}

func (p Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// CreateAccessToken runs the full pipeline and projects an
// AccessTokenContent (spec §4.12).
func (p Pipeline) CreateAccessToken(raw string) (AccessTokenContent, error) {
	content, err := p.validate(raw, AccessToken)
	if err != nil {
		return AccessTokenContent{}, err
	}
	return AccessTokenContent{Claims: content.claims, RawToken: raw, IssuerName: content.issuerName}, nil
}

// CreateIDToken runs the full pipeline plus audience/azp enforcement and
// projects an IDTokenContent (spec §4.12).
func (p Pipeline) CreateIDToken(raw string) (IDTokenContent, error) {
	content, err := p.validate(raw, IDToken)
	if err != nil {
		return IDTokenContent{}, err
	}
	return IDTokenContent{Claims: content.claims, RawToken: raw, IssuerName: content.issuerName}, nil
}

// CreateRefreshToken attempts a best-effort parse; it never returns an
// error for well-formed input (opaque tokens pass through unmodified,
// spec §4.12 scenario 6).
func (p Pipeline) CreateRefreshToken(raw string) RefreshTokenContent {
	parsed, err := Parse(raw, p.ParserOptions)
	if err != nil {
		return RefreshTokenContent{Claims: map[string]claims.Value{}, RawToken: raw}
	}
	claimMap := projectStandardClaims(parsed.Payload, IssuerConfig{})
	return RefreshTokenContent{Claims: claimMap, RawToken: raw}
}

type pipelineResult struct {
	claims     map[string]claims.Value
	issuerName string
}

func (p Pipeline) validate(raw string, kind TokenKind) (pipelineResult, error) {
	parsed, err := Parse(raw, p.ParserOptions)
	if err != nil {
		p.record(err)
		return pipelineResult{}, err
	}
	p.record(NewValidationError(EventTokenStructureSuccess, "parsed", nil))

	issClaim, _ := parsed.Payload["iss"].(string)
	issuer, err := ResolveIssuer(issClaim, p.Issuers)
	if err != nil {
		p.record(err)
		return pipelineResult{}, err
	}

	if err := p.verifySignature(parsed, issuer); err != nil {
		p.record(err)
		return pipelineResult{}, err
	}
	p.record(NewValidationError(EventSignatureValid, "verified", nil))

	if err := ValidateClaims(parsed.Payload, issuer, kind, p.ClaimOptions, p.now(), p.Counter); err != nil {
		p.record(err)
		return pipelineResult{}, err
	}
	p.record(NewValidationError(EventClaimSuccess, "validated", nil))

	return pipelineResult{
		claims:     projectStandardClaims(parsed.Payload, issuer),
		issuerName: issuer.Name,
	}, nil
}

func (p Pipeline) verifySignature(parsed *ParsedJWT, issuer IssuerConfig) error {
	alg, _ := parsed.Header["alg"].(string)
	kid, _ := parsed.Header["kid"].(string)

	if issuer.Loader == nil {
		return NewValidationError(EventSignatureMissingKey, "issuer has no JWKS loader configured", nil)
	}
	keyInfo, ok := issuer.Loader.GetKey(kid)
	if !ok {
		return NewValidationError(EventSignatureMissingKey, "no key available for kid", nil)
	}

	return VerifySignature(parsed.SigningInput, parsed.Signature, alg, kid, issuer.Algorithms, keyInfo)
}

func (p Pipeline) record(err error) {
	if p.Counter == nil {
		return
	}
	recordAndWrap(p.Counter, err)
}

// projectStandardClaims builds the typed claim map shared by all three
// token-type projections, applying C8 mappers and the per-issuer
// Keycloak mapper overrides (spec §4.7).
func projectStandardClaims(payload map[string]any, issuer IssuerConfig) map[string]claims.Value {
	out := make(map[string]claims.Value, 10)

	mustMap := func(m claims.Mapper, name string) claims.Value {
		v, err := m.Map(payload, name)
		if err != nil {
			return claims.EmptyString()
		}
		return v
	}

	out["iss"] = mustMap(claims.Identity, "iss")
	out["sub"] = mustMap(claims.Identity, "sub")
	out["exp"] = mustMap(claims.DateTime, "exp")
	out["iat"] = mustMap(claims.DateTime, "iat")
	out["nbf"] = mustMap(claims.DateTime, "nbf")
	out["aud"] = mustMap(claims.StringList, "aud")
	out["azp"] = mustMap(claims.Identity, "azp")
	out["scope"] = mustMap(claims.Scope, "scope")

	if issuer.KeycloakDefaultRolesEnabled {
		out["roles"] = mustMap(claims.KeycloakDefaultRoles, "roles")
	}
	if issuer.KeycloakDefaultGroupsEnabled {
		out["groups"] = mustMap(claims.KeycloakDefaultGroups, "groups")
	}

	return out
}
