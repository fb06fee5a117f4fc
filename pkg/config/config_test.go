package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuioss/cui-jwt-sub016/pkg/config"
)

func TestDecodeIssuerAppliesDefaultsAndValidates(t *testing.T) {
	raw := map[string]any{
		"enabled":           true,
		"issuer-identifier": "https://idp",
		"jwks": map[string]any{
			"http": map[string]any{"url": "https://idp/jwks"},
		},
	}

	cfg, refresh, err := config.DecodeIssuer("idp", raw)
	require.NoError(t, err)
	assert.Equal(t, "idp", cfg.Name)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://idp/jwks", cfg.JWKSURL)
	assert.Equal(t, 600*time.Second, refresh, "unset refresh-interval-seconds must fall back to spec default")
	assert.Len(t, cfg.Algorithms, 9, "unset algorithms must fall back to the full default allowlist")
}

func TestDecodeIssuerRejectsMixedJWKSSources(t *testing.T) {
	raw := map[string]any{
		"issuer-identifier": "https://idp",
		"jwks": map[string]any{
			"http":      map[string]any{"url": "https://idp/jwks"},
			"file-path": "/etc/jwks.json",
		},
	}
	_, _, err := config.DecodeIssuer("idp", raw)
	require.Error(t, err)
}

func TestDecodeIssuerCustomRefreshInterval(t *testing.T) {
	raw := map[string]any{
		"issuer-identifier": "https://idp",
		"jwks": map[string]any{
			"http":                       map[string]any{"url": "https://idp/jwks"},
			"refresh-interval-seconds":   45,
		},
	}
	_, refresh, err := config.DecodeIssuer("idp", raw)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, refresh)
}

func TestDecodeIssuerKeycloakMappers(t *testing.T) {
	raw := map[string]any{
		"issuer-identifier": "https://idp",
		"jwks": map[string]any{
			"inline": `{"keys":[]}`,
		},
		"keycloak": map[string]any{
			"mappers": map[string]any{
				"default-roles":  map[string]any{"enabled": true},
				"default-groups": map[string]any{"enabled": true},
			},
		},
	}
	cfg, _, err := config.DecodeIssuer("idp", raw)
	require.NoError(t, err)
	assert.True(t, cfg.KeycloakDefaultRolesEnabled)
	assert.True(t, cfg.KeycloakDefaultGroupsEnabled)
}

func TestDecodeParserAppliesDefaults(t *testing.T) {
	parserOpts, claimOpts, err := config.DecodeParser(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 8192, parserOpts.MaxTokenSizeBytes)
	assert.Equal(t, 30*time.Second, claimOpts.Leeway)
	assert.True(t, claimOpts.ValidateExpiration)
}

func TestDecodeParserOverrides(t *testing.T) {
	_, claimOpts, err := config.DecodeParser(map[string]any{
		"leeway-seconds":      5,
		"validate-not-before": false,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, claimOpts.Leeway)
	assert.False(t, claimOpts.ValidateNotBefore)
}

func TestDecodeCacheAppliesDefaults(t *testing.T) {
	capacity, skew, err := config.DecodeCache(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 500, capacity)
	assert.Equal(t, 10*time.Second, skew)
}

func TestDecodeCacheOverrides(t *testing.T) {
	capacity, skew, err := config.DecodeCache(map[string]any{"capacity": 0, "expiry-skew-seconds": 60})
	require.NoError(t, err)
	assert.Equal(t, 0, capacity)
	assert.Equal(t, 60*time.Second, skew)
}

func TestDecodeRetryAppliesDefaults(t *testing.T) {
	s, err := config.DecodeRetry(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 5, s.MaxAttempts)
	assert.Equal(t, 2.0, s.Multiplier)
}

func TestDecodeRetryOverrides(t *testing.T) {
	s, err := config.DecodeRetry(map[string]any{
		"initial-delay-ms": 100,
		"max-delay-ms":     2000,
		"multiplier":       1.5,
		"max-attempts":     3,
	})
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, s.InitialDelay)
	assert.Equal(t, 2*time.Second, s.MaxDelay)
	assert.Equal(t, 1.5, s.Multiplier)
	assert.Equal(t, 3, s.MaxAttempts)
}
