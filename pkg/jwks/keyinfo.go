package jwks

import (
	"crypto"
	"time"
)

// NoKidSentinel indexes keys that lack a "kid" member. Spec §3: "Keys
// lacking a kid are indexed under a reserved sentinel and selected only
// when the JWT also lacks a kid."
const NoKidSentinel = "__no_kid__"

// Algorithm is the safelisted JWS algorithm family. "none" is rejected
// categorically and therefore has no constant here.
type Algorithm string

const (
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
	PS256 Algorithm = "PS256"
	PS384 Algorithm = "PS384"
	PS512 Algorithm = "PS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
)

// SafeAlgorithms is the closed safelist from spec §3.
var SafeAlgorithms = map[Algorithm]struct{}{
	RS256: {}, RS384: {}, RS512: {},
	PS256: {}, PS384: {}, PS512: {},
	ES256: {}, ES384: {}, ES512: {},
}

// IsSafe reports whether alg is on the safelist. "none" (and anything
// unrecognized) is unsafe.
func IsSafe(alg string) bool {
	_, ok := SafeAlgorithms[Algorithm(alg)]
	return ok
}

// Family groups algorithms that share a key type, used by the signature
// verifier to detect a kid/alg family mismatch (spec §9 Open Question b).
func (a Algorithm) Family() string {
	switch a {
	case RS256, RS384, RS512, PS256, PS384, PS512:
		return "RSA"
	case ES256, ES384, ES512:
		return "EC"
	default:
		return ""
	}
}

// KeyInfo is one verification key resolved from a JWKS document.
type KeyInfo struct {
	Kid       string
	Algorithm Algorithm
	PublicKey crypto.PublicKey
	NotBefore *time.Time
	NotAfter  *time.Time
}

// KeySet maps kid to KeyInfo, the parsed form of one JWKS document.
type KeySet map[string]KeyInfo

// Get returns the key for kid, falling back to the no-kid sentinel when
// kid is empty, per spec §3.
func (ks KeySet) Get(kid string) (KeyInfo, bool) {
	if kid == "" {
		ki, ok := ks[NoKidSentinel]
		return ki, ok
	}
	ki, ok := ks[kid]
	return ki, ok
}
