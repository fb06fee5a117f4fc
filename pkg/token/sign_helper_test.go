package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/cuioss/cui-jwt-sub016/pkg/jwks"
)

// issueRS256 builds a compact JWT signed with privKey, returning the raw
// token alongside a jwks.KeyInfo the signature verifier can check
// against.
func issueRS256(t *testing.T, kid string, header map[string]any, payload map[string]any) (string, jwks.KeyInfo) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	if header == nil {
		header = map[string]any{}
	}
	header["alg"] = "RS256"
	if kid != "" {
		header["kid"] = kid
	}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)

	method := jwtlib.GetSigningMethod("RS256")
	sigBytes, err := method.Sign(signingInput, key)
	require.NoError(t, err)

	raw := signingInput + "." + base64.RawURLEncoding.EncodeToString(sigBytes)

	return raw, jwks.KeyInfo{Kid: kid, Algorithm: jwks.RS256, PublicKey: &key.PublicKey}
}
