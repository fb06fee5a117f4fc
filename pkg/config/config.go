// Package config decodes the dotted-key configuration schema (spec §6)
// into the typed structs pkg/token, pkg/cache, and pkg/retry consume. It
// stays decoupled from any specific config source (env, file, koanf,
// viper); callers hand it a map[string]any already assembled by their
// own config framework.
package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/cuioss/cui-jwt-sub016/pkg/retry"
	"github.com/cuioss/cui-jwt-sub016/pkg/token"
)

// IssuerSchema mirrors spec §6's per-issuer dotted-key schema
// (`oauth.issuers.<name>.*`) for mapstructure decoding.
type IssuerSchema struct {
	Enabled           bool     `mapstructure:"enabled"`
	IssuerIdentifier  string   `mapstructure:"issuer-identifier"`
	ExpectedClientID  string   `mapstructure:"expected-client-id"`
	ExpectedAudience  []string `mapstructure:"expected-audience"`
	Algorithms        []string `mapstructure:"algorithms"`
	ClaimSubOptional  bool     `mapstructure:"claim-sub-optional"`

	JWKS struct {
		HTTP struct {
			URL           string `mapstructure:"url"`
			WellKnownURL  string `mapstructure:"well-known-url"`
		} `mapstructure:"http"`
		FilePath string `mapstructure:"file-path"`
		Inline   string `mapstructure:"inline"`

		RefreshIntervalSeconds int `mapstructure:"refresh-interval-seconds"`
	} `mapstructure:"jwks"`

	Keycloak struct {
		Mappers struct {
			DefaultRoles struct {
				Enabled bool `mapstructure:"enabled"`
			} `mapstructure:"default-roles"`
			DefaultGroups struct {
				Enabled bool `mapstructure:"enabled"`
			} `mapstructure:"default-groups"`
		} `mapstructure:"mappers"`
	} `mapstructure:"keycloak"`
}

// DecodeIssuer decodes raw (one `oauth.issuers.<name>` subtree) into an
// IssuerConfig named name, plus the configured JWKS refresh interval
// (spec §6's jwks.refresh-interval-seconds, default 600s) for callers
// that go on to build an HTTP-backed pkg/jwks.Loader. It leaves loader
// construction itself to the caller: IssuerConfig.Loader is nil; wire it
// with pkg/jwks before passing the result to jwtvalidator.New.
func DecodeIssuer(name string, raw map[string]any) (token.IssuerConfig, time.Duration, error) {
	var schema IssuerSchema
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &schema,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return token.IssuerConfig{}, 0, fmt.Errorf("config: building decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return token.IssuerConfig{}, 0, fmt.Errorf("config: decoding issuer %q: %w", name, err)
	}

	algorithms := token.DefaultAlgorithms()
	if len(schema.Algorithms) > 0 {
		algorithms = make(map[string]struct{}, len(schema.Algorithms))
		for _, a := range schema.Algorithms {
			algorithms[a] = struct{}{}
		}
	}

	audiences := make(map[string]struct{}, len(schema.ExpectedAudience))
	for _, a := range schema.ExpectedAudience {
		audiences[a] = struct{}{}
	}

	cfg := token.IssuerConfig{
		Name:                        name,
		Enabled:                     schema.Enabled,
		IssuerIdentifier:            schema.IssuerIdentifier,
		ExpectedClientID:            schema.ExpectedClientID,
		ExpectedAudiences:           audiences,
		Algorithms:                  algorithms,
		ClaimSubOptional:            schema.ClaimSubOptional,
		JWKSURL:                     schema.JWKS.HTTP.URL,
		WellKnownURL:                schema.JWKS.HTTP.WellKnownURL,
		JWKSFilePath:                schema.JWKS.FilePath,
		JWKSInline:                  schema.JWKS.Inline,
		KeycloakDefaultRolesEnabled: schema.Keycloak.Mappers.DefaultRoles.Enabled,
		KeycloakDefaultGroupsEnabled: schema.Keycloak.Mappers.DefaultGroups.Enabled,
	}

	if err := cfg.Validate(); err != nil {
		return token.IssuerConfig{}, 0, err
	}
	return cfg, schema.RefreshInterval(), nil
}

// RefreshInterval returns the configured JWKS refresh interval, falling
// back to spec §6's 600s default when unset or non-positive.
func (s IssuerSchema) RefreshInterval() time.Duration {
	if s.JWKS.RefreshIntervalSeconds <= 0 {
		return 600 * time.Second
	}
	return time.Duration(s.JWKS.RefreshIntervalSeconds) * time.Second
}

// ParserSchema mirrors spec §6's `parser.*` keys.
type ParserSchema struct {
	MaxTokenSizeBytes int  `mapstructure:"max-token-size-bytes"`
	LeewaySeconds     int  `mapstructure:"leeway-seconds"`
	ValidateExpiration bool `mapstructure:"validate-expiration"`
	ValidateNotBefore  bool `mapstructure:"validate-not-before"`
	ValidateIssuedAt   bool `mapstructure:"validate-issued-at"`
}

// DecodeParser decodes the `parser.*` subtree into C9/C12 options.
func DecodeParser(raw map[string]any) (token.ParserOptions, token.ClaimValidationOptions, error) {
	schema := ParserSchema{
		MaxTokenSizeBytes:  token.DefaultMaxTokenSizeBytes,
		LeewaySeconds:      int(token.DefaultLeeway / time.Second),
		ValidateExpiration: true,
		ValidateNotBefore:  true,
		ValidateIssuedAt:   true,
	}
	if err := mapstructure.Decode(raw, &schema); err != nil {
		return token.ParserOptions{}, token.ClaimValidationOptions{}, fmt.Errorf("config: decoding parser options: %w", err)
	}

	parserOpts := token.DefaultParserOptions()
	if schema.MaxTokenSizeBytes > 0 {
		parserOpts.MaxTokenSizeBytes = schema.MaxTokenSizeBytes
	}

	claimOpts := token.ClaimValidationOptions{
		Leeway:              time.Duration(schema.LeewaySeconds) * time.Second,
		ValidateExpiration:  schema.ValidateExpiration,
		ValidateNotBefore:   schema.ValidateNotBefore,
		ValidateIssuedAt:    schema.ValidateIssuedAt,
	}
	return parserOpts, claimOpts, nil
}

// CacheSchema mirrors spec §6's `cache.*` keys.
type CacheSchema struct {
	Capacity           int `mapstructure:"capacity"`
	ExpirySkewSeconds  int `mapstructure:"expiry-skew-seconds"`
}

// DecodeCache decodes the `cache.*` subtree into (capacity, skew).
func DecodeCache(raw map[string]any) (int, time.Duration, error) {
	schema := CacheSchema{Capacity: 500, ExpirySkewSeconds: 10}
	if err := mapstructure.Decode(raw, &schema); err != nil {
		return 0, 0, fmt.Errorf("config: decoding cache options: %w", err)
	}
	return schema.Capacity, time.Duration(schema.ExpirySkewSeconds) * time.Second, nil
}

// RetrySchema mirrors spec §6's `retry.*` keys.
type RetrySchema struct {
	InitialDelayMS int     `mapstructure:"initial-delay-ms"`
	MaxDelayMS     int     `mapstructure:"max-delay-ms"`
	Multiplier     float64 `mapstructure:"multiplier"`
	MaxAttempts    int     `mapstructure:"max-attempts"`
}

// DecodeRetry decodes the `retry.*` subtree into a retry.Strategy.
func DecodeRetry(raw map[string]any) (retry.Strategy, error) {
	def := retry.DefaultStrategy()
	schema := RetrySchema{
		InitialDelayMS: int(def.InitialDelay / time.Millisecond),
		MaxDelayMS:     int(def.MaxDelay / time.Millisecond),
		Multiplier:     def.Multiplier,
		MaxAttempts:    def.MaxAttempts,
	}
	if err := mapstructure.Decode(raw, &schema); err != nil {
		return retry.Strategy{}, fmt.Errorf("config: decoding retry options: %w", err)
	}
	return retry.Strategy{
		InitialDelay: time.Duration(schema.InitialDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(schema.MaxDelayMS) * time.Millisecond,
		Multiplier:   schema.Multiplier,
		MaxAttempts:  schema.MaxAttempts,
	}, nil
}
