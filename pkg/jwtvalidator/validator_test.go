package jwtvalidator_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuioss/cui-jwt-sub016/pkg/counter"
	"github.com/cuioss/cui-jwt-sub016/pkg/jwks"
	"github.com/cuioss/cui-jwt-sub016/pkg/jwtvalidator"
	"github.com/cuioss/cui-jwt-sub016/pkg/token"
)

// issueRS256 mirrors pkg/token's internal test helper since unexported
// pipeline internals aren't visible across package boundaries here.
func issueRS256(t *testing.T, kid string, payload map[string]any) (string, jwks.KeyInfo) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	header := map[string]any{"alg": "RS256", "kid": kid}
	headerJSON, _ := json.Marshal(header)
	payloadJSON, _ := json.Marshal(payload)
	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)

	sigBytes, err := jwtlib.GetSigningMethod("RS256").Sign(signingInput, key)
	require.NoError(t, err)

	raw := signingInput + "." + base64.RawURLEncoding.EncodeToString(sigBytes)
	return raw, jwks.KeyInfo{Kid: kid, Algorithm: jwks.RS256, PublicKey: &key.PublicKey}
}

type fixedLoader struct{ keys map[string]jwks.KeyInfo }

func (f *fixedLoader) GetKey(kid string) (jwks.KeyInfo, bool) { ki, ok := f.keys[kid]; return ki, ok }
func (f *fixedLoader) CurrentStatus() jwks.Status             { return jwks.OK }
func (f *fixedLoader) InitAsync(ctx context.Context) <-chan jwks.Status {
	ch := make(chan jwks.Status, 1)
	ch <- jwks.OK
	return ch
}
func (f *fixedLoader) Close() {}

func newTestIssuer(loader *fixedLoader) token.IssuerConfig {
	return token.IssuerConfig{
		Name:             "idp",
		Enabled:          true,
		IssuerIdentifier: "https://idp",
		Algorithms:       token.DefaultAlgorithms(),
		JWKSURL:          "https://idp/jwks",
		Loader:           loader,
	}
}

func TestValidatorCreateAccessTokenCachesOnSuccess(t *testing.T) {
	now := time.Now().UTC()
	raw, keyInfo := issueRS256(t, "k1", map[string]any{
		"iss": "https://idp", "sub": "u1",
		"exp": float64(now.Add(time.Minute).Unix()),
		"iat": float64(now.Unix()),
	})
	loader := &fixedLoader{keys: map[string]jwks.KeyInfo{"k1": keyInfo}}

	v, err := jwtvalidator.New([]token.IssuerConfig{newTestIssuer(loader)})
	require.NoError(t, err)

	_, err = v.CreateAccessToken(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Counter().Get(counter.Cache, "CACHE_MISS"))

	_, err = v.CreateAccessToken(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Counter().Get(counter.Cache, "CACHE_HIT"),
		"second call for the same raw token must be served from cache")
}

func TestValidatorRejectsDuplicateIssuerIdentifiers(t *testing.T) {
	loader := &fixedLoader{}
	a := newTestIssuer(loader)
	b := newTestIssuer(loader)
	b.Name = "idp-2"

	_, err := jwtvalidator.New([]token.IssuerConfig{a, b})
	require.Error(t, err)
}

func TestValidatorRequiresAtLeastOneIssuer(t *testing.T) {
	_, err := jwtvalidator.New(nil)
	require.Error(t, err)
}

func TestValidatorRejectsInvalidIssuerConfig(t *testing.T) {
	bad := token.IssuerConfig{Name: "bad", IssuerIdentifier: "https://idp"} // no JWKS source
	_, err := jwtvalidator.New([]token.IssuerConfig{bad})
	require.Error(t, err)
}

func TestValidatorCreateIdTokenNotCached(t *testing.T) {
	now := time.Now().UTC()
	raw, keyInfo := issueRS256(t, "k1", map[string]any{
		"iss": "https://idp", "sub": "u1", "aud": "c1",
		"exp": float64(now.Add(time.Minute).Unix()),
		"iat": float64(now.Unix()),
	})
	loader := &fixedLoader{keys: map[string]jwks.KeyInfo{"k1": keyInfo}}
	issuer := newTestIssuer(loader)
	issuer.ExpectedAudiences = map[string]struct{}{"c1": {}}

	v, err := jwtvalidator.New([]token.IssuerConfig{issuer})
	require.NoError(t, err)

	content, err := v.CreateIdToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", content.Subject())
	assert.EqualValues(t, 0, v.Counter().Get(counter.Cache, "CACHE_HIT"))
}

func TestValidatorCreateRefreshTokenNeverErrors(t *testing.T) {
	loader := &fixedLoader{}
	v, err := jwtvalidator.New([]token.IssuerConfig{newTestIssuer(loader)})
	require.NoError(t, err)

	content := v.CreateRefreshToken("opaque")
	assert.Equal(t, "opaque", content.RawToken)
}

func TestValidatorShutdownClosesLoaders(t *testing.T) {
	loader := &fixedLoader{}
	v, err := jwtvalidator.New([]token.IssuerConfig{newTestIssuer(loader)})
	require.NoError(t, err)
	require.NoError(t, v.Shutdown(context.Background()))
}

func TestValidatorCacheDisabledWithZeroCapacity(t *testing.T) {
	now := time.Now().UTC()
	raw, keyInfo := issueRS256(t, "k1", map[string]any{
		"iss": "https://idp", "sub": "u1",
		"exp": float64(now.Add(time.Minute).Unix()),
		"iat": float64(now.Unix()),
	})
	loader := &fixedLoader{keys: map[string]jwks.KeyInfo{"k1": keyInfo}}

	v, err := jwtvalidator.New([]token.IssuerConfig{newTestIssuer(loader)}, jwtvalidator.WithCacheCapacity(0))
	require.NoError(t, err)

	_, err = v.CreateAccessToken(raw)
	require.NoError(t, err)
	_, err = v.CreateAccessToken(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.Counter().Get(counter.Cache, "CACHE_MISS"), "disabled cache must miss every time")
}
