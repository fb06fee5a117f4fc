package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuioss/cui-jwt-sub016/pkg/token"
)

func TestResolveIssuerMatches(t *testing.T) {
	configs := []token.IssuerConfig{
		{Name: "a", Enabled: true, IssuerIdentifier: "https://idp-a"},
		{Name: "b", Enabled: true, IssuerIdentifier: "https://idp-b"},
	}
	got, err := token.ResolveIssuer("https://idp-b", configs)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)
}

func TestResolveIssuerMissingClaim(t *testing.T) {
	_, err := token.ResolveIssuer("", nil)
	require.Error(t, err)
	var ve *token.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, token.EventClaimMissingClaim, ve.EventType)
}

func TestResolveIssuerNotConfigured(t *testing.T) {
	configs := []token.IssuerConfig{{Name: "a", Enabled: true, IssuerIdentifier: "https://idp-a"}}
	_, err := token.ResolveIssuer("https://other", configs)
	require.Error(t, err)
	var ve *token.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, token.EventClaimIssuerNotConfigured, ve.EventType)
}

func TestResolveIssuerSkipsDisabled(t *testing.T) {
	configs := []token.IssuerConfig{{Name: "a", Enabled: false, IssuerIdentifier: "https://idp-a"}}
	_, err := token.ResolveIssuer("https://idp-a", configs)
	require.Error(t, err, "disabled issuer configs must be invisible")
}

func TestIssuerConfigValidateRejectsMixedSources(t *testing.T) {
	c := token.IssuerConfig{
		IssuerIdentifier: "https://idp",
		JWKSURL:          "https://idp/jwks",
		JWKSInline:       `{"keys":[]}`,
	}
	err := c.Validate()
	require.Error(t, err)
}

func TestIssuerConfigValidateRequiresOneSource(t *testing.T) {
	c := token.IssuerConfig{IssuerIdentifier: "https://idp"}
	err := c.Validate()
	require.Error(t, err)
}

func TestIssuerConfigValidateAcceptsSingleSource(t *testing.T) {
	c := token.IssuerConfig{IssuerIdentifier: "https://idp", JWKSURL: "https://idp/jwks"}
	require.NoError(t, c.Validate())
}
