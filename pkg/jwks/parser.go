package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

const (
	// DefaultMaxKeys and DefaultMaxDocumentBytes implement spec §4.4's
	// "per-document maximum key count (default 50) and maximum document
	// size (default 64 KiB)".
	DefaultMaxKeys          = 50
	DefaultMaxDocumentBytes = 64 * 1024
)

// InvalidContentError reports a JWKS document the parser refuses to
// accept (malformed JSON, oversized, unsupported key type, alg=none).
type InvalidContentError struct {
	Reason string
}

func (e *InvalidContentError) Error() string { return "invalid JWKS content: " + e.Reason }

type jwkDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA
	N string `json:"n"`
	E string `json:"e"`
	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// ParserOptions bounds the parser's memory use.
type ParserOptions struct {
	MaxKeys          int
	MaxDocumentBytes int
}

// DefaultParserOptions returns the spec-documented defaults.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{MaxKeys: DefaultMaxKeys, MaxDocumentBytes: DefaultMaxDocumentBytes}
}

// Parse decodes a JWKS document into a KeySet indexed by kid.
func Parse(body []byte, opts ParserOptions) (KeySet, error) {
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = DefaultMaxKeys
	}
	if len(body) > opts.MaxDocumentBytes {
		return nil, &InvalidContentError{Reason: fmt.Sprintf("document size %d exceeds limit %d", len(body), opts.MaxDocumentBytes)}
	}

	var doc jwkDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &InvalidContentError{Reason: "malformed JSON: " + err.Error()}
	}
	if len(doc.Keys) > opts.MaxKeys {
		return nil, &InvalidContentError{Reason: fmt.Sprintf("key count %d exceeds limit %d", len(doc.Keys), opts.MaxKeys)}
	}

	out := make(KeySet, len(doc.Keys))
	for i, k := range doc.Keys {
		if k.Kty == "" {
			return nil, &InvalidContentError{Reason: fmt.Sprintf("key %d: missing kty", i)}
		}
		if k.Alg == "none" {
			return nil, &InvalidContentError{Reason: fmt.Sprintf("key %d: alg=none is rejected", i)}
		}

		keyInfo, err := decodeKey(k)
		if err != nil {
			return nil, &InvalidContentError{Reason: fmt.Sprintf("key %d: %v", i, err)}
		}

		index := k.Kid
		if index == "" {
			index = NoKidSentinel
		}
		// Last entry wins on kid collision (spec §8 boundary behavior).
		// No security event is counted for a collision, here or in the
		// loaders; the loaders hold no counter.
		out[index] = keyInfo
	}

	return out, nil
}

func decodeKey(k jwk) (KeyInfo, error) {
	switch k.Kty {
	case "RSA":
		pub, alg, err := decodeRSA(k)
		if err != nil {
			return KeyInfo{}, err
		}
		return KeyInfo{Kid: k.Kid, Algorithm: alg, PublicKey: pub}, nil
	case "EC":
		pub, alg, err := decodeEC(k)
		if err != nil {
			return KeyInfo{}, err
		}
		return KeyInfo{Kid: k.Kid, Algorithm: alg, PublicKey: pub}, nil
	default:
		return KeyInfo{}, fmt.Errorf("unsupported kty %q", k.Kty)
	}
}

func decodeRSA(k jwk) (*rsa.PublicKey, Algorithm, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, "", fmt.Errorf("invalid n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, "", fmt.Errorf("invalid e: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, "", fmt.Errorf("n/e must be non-empty")
	}

	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}

	alg := Algorithm(k.Alg)
	if alg == "" {
		alg = RS256 // spec: kid strongly preferred, alg may be absent from the JWK entry itself
	}
	if !IsSafe(string(alg)) || alg.Family() != "RSA" {
		return nil, "", fmt.Errorf("unsupported/unsafe alg %q for kty RSA", alg)
	}
	return pub, alg, nil
}

func decodeEC(k jwk) (*ecdsa.PublicKey, Algorithm, error) {
	curve, alg, err := ecCurveAndAlg(k.Crv)
	if err != nil {
		return nil, "", err
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, "", fmt.Errorf("invalid x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, "", fmt.Errorf("invalid y: %w", err)
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if k.Alg != "" {
		alg = Algorithm(k.Alg)
	}
	if !IsSafe(string(alg)) || alg.Family() != "EC" {
		return nil, "", fmt.Errorf("unsupported/unsafe alg %q for kty EC", alg)
	}
	return pub, alg, nil
}

func ecCurveAndAlg(crv string) (elliptic.Curve, Algorithm, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), ES256, nil
	case "P-384":
		return elliptic.P384(), ES384, nil
	case "P-521":
		return elliptic.P521(), ES512, nil
	default:
		return nil, "", fmt.Errorf("unsupported crv %q", crv)
	}
}
