// Package jwtvalidator is the public entry point for bearer token
// validation (spec §4.14): it owns the configured issuers, the security
// counter, and the access-token cache, and exposes the three typed
// creation operations.
package jwtvalidator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cuioss/cui-jwt-sub016/pkg/cache"
	"github.com/cuioss/cui-jwt-sub016/pkg/counter"
	"github.com/cuioss/cui-jwt-sub016/pkg/token"
)

// Validator is the public facade over the validation pipeline. It is
// effectively immutable after construction and safe for concurrent use
// by multiple callers (spec §4.14, §5).
type Validator struct {
	pipeline token.Pipeline
	cache    *cache.AccessTokenCache
	counter  *counter.Counter
	logger   *zap.Logger
	issuers  []token.IssuerConfig
}

// Option configures a Validator at construction.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	parserOptions  token.ParserOptions
	claimOptions   token.ClaimValidationOptions
	cacheCapacity  int
	cacheSkew      time.Duration
	counter        *counter.Counter
	now            func() time.Time
}

// WithLogger injects a zap logger for structured diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithParserOptions overrides the default C9 parser limits.
func WithParserOptions(p token.ParserOptions) Option {
	return func(o *options) { o.parserOptions = p }
}

// WithClaimValidationOptions overrides the default C12 leeway/flags.
func WithClaimValidationOptions(c token.ClaimValidationOptions) Option {
	return func(o *options) { o.claimOptions = c }
}

// WithCacheCapacity overrides the default access-token cache capacity
// (spec §6 cache.capacity); 0 disables caching.
func WithCacheCapacity(n int) Option {
	return func(o *options) { o.cacheCapacity = n }
}

// WithCacheExpirySkew overrides the default cache expiry skew (spec §6
// cache.expiry-skew-seconds).
func WithCacheExpirySkew(d time.Duration) Option {
	return func(o *options) { o.cacheSkew = d }
}

// WithCounter injects a pre-existing counter, e.g. one shared across
// multiple validator instances for aggregate reporting.
func WithCounter(c *counter.Counter) Option {
	return func(o *options) { o.counter = c }
}

// withClock overrides the time source; unexported, tests only.
func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New constructs a Validator over the given issuer configs (spec §4.14).
// Each config is validated (C10's Validate, exactly one JWKS source) and
// issuer identifiers must be unique across the set.
func New(issuers []token.IssuerConfig, opts ...Option) (*Validator, error) {
	if len(issuers) == 0 {
		return nil, fmt.Errorf("jwtvalidator: at least one issuer must be configured")
	}

	o := &options{
		parserOptions: token.DefaultParserOptions(),
		claimOptions:  token.DefaultClaimValidationOptions(),
		cacheCapacity: cache.DefaultCapacity,
		cacheSkew:     cache.DefaultExpirySkew,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.counter == nil {
		o.counter = counter.New()
	}

	seen := make(map[string]struct{}, len(issuers))
	for _, iss := range issuers {
		if err := iss.Validate(); err != nil {
			return nil, fmt.Errorf("jwtvalidator: issuer %q: %w", iss.Name, err)
		}
		if _, dup := seen[iss.IssuerIdentifier]; dup {
			return nil, fmt.Errorf("jwtvalidator: duplicate issuer identifier %q", iss.IssuerIdentifier)
		}
		seen[iss.IssuerIdentifier] = struct{}{}
	}

	c, err := cache.New(o.cacheCapacity, cache.WithExpirySkew(o.cacheSkew))
	if err != nil {
		return nil, fmt.Errorf("jwtvalidator: building access-token cache: %w", err)
	}

	pipeline := token.Pipeline{
		Issuers:       issuers,
		ParserOptions: o.parserOptions,
		ClaimOptions:  o.claimOptions,
		Counter:       o.counter,
		Now:           o.now,
	}

	return &Validator{pipeline: pipeline, cache: c, counter: o.counter, logger: o.logger, issuers: issuers}, nil
}

// CreateAccessToken validates raw as an access token, consulting the
// cache first (spec §4.13: cache short-circuits before C9 on a hit).
func (v *Validator) CreateAccessToken(raw string) (token.AccessTokenContent, error) {
	if content, ok := v.cache.Get(raw); ok {
		v.counter.Increment(counter.Cache, "CACHE_HIT")
		return content, nil
	}
	v.counter.Increment(counter.Cache, "CACHE_MISS")

	content, err := v.pipeline.CreateAccessToken(raw)
	if err != nil {
		return token.AccessTokenContent{}, err
	}

	if exp := content.Claims["exp"].AsTime(); !exp.IsZero() {
		v.cache.Put(raw, content, exp)
	}
	return content, nil
}

// CreateIdToken validates raw as an ID token. ID tokens are not cached:
// they are typically consumed once at sign-in (spec §4.13 scopes the
// cache to access tokens only).
func (v *Validator) CreateIdToken(raw string) (token.IDTokenContent, error) {
	return v.pipeline.CreateIDToken(raw)
}

// CreateRefreshToken performs a best-effort, never-failing parse of an
// opaque or structured refresh token.
func (v *Validator) CreateRefreshToken(raw string) token.RefreshTokenContent {
	return v.pipeline.CreateRefreshToken(raw)
}

// Counter exposes the validator's security event counter for reporting.
func (v *Validator) Counter() *counter.Counter { return v.counter }

// Shutdown tears down every issuer's JWKS loader, cancelling background
// refreshes (spec §4.14).
func (v *Validator) Shutdown(ctx context.Context) error {
	for _, iss := range v.issuers {
		if iss.Loader != nil {
			iss.Loader.Close()
		}
	}
	return nil
}
