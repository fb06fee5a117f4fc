package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cuioss/cui-jwt-sub016/pkg/httpres"
	"github.com/cuioss/cui-jwt-sub016/pkg/resilient"
)

// Discovery is the subset of an OIDC discovery document this library
// needs (spec §4.6).
type Discovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func discoveryConverter(body []byte) (Discovery, error) {
	var d Discovery
	if err := json.Unmarshal(body, &d); err != nil {
		return Discovery{}, err
	}
	if d.Issuer == "" || d.JWKSURI == "" {
		return Discovery{}, fmt.Errorf("discovery document missing issuer or jwks_uri")
	}
	return d, nil
}

// ResolveDiscovery fetches and validates an OIDC discovery document,
// rejecting an issuer mismatch as CONFIGURATION_ERROR (spec §4.6).
func ResolveDiscovery(ctx context.Context, discoveryURL string) (Discovery, error) {
	h := resilient.New(discoveryURL, discoveryConverter)
	res := h.Load(ctx, "")
	if res.State != httpres.Valid {
		return Discovery{}, res.Err()
	}

	expectedIssuer, err := issuerFromDiscoveryURL(discoveryURL)
	if err != nil {
		return Discovery{}, err
	}
	if !urlEqual(res.Content.Issuer, expectedIssuer) {
		return Discovery{}, &httpres.ResultError{
			Category: httpres.ConfigurationError,
			Detail:   fmt.Sprintf("discovery issuer %q does not match expected %q", res.Content.Issuer, expectedIssuer),
		}
	}
	return res.Content, nil
}

// issuerFromDiscoveryURL strips the well-known suffix to recover the
// scheme+host(+path) the issuer claim must match.
func issuerFromDiscoveryURL(discoveryURL string) (string, error) {
	const suffix = "/.well-known/openid-configuration"
	trimmed := strings.TrimSuffix(discoveryURL, suffix)
	if trimmed == discoveryURL {
		// Non-standard discovery path; fall back to scheme+host only.
		u, err := url.Parse(discoveryURL)
		if err != nil {
			return "", err
		}
		return u.Scheme + "://" + u.Host, nil
	}
	return trimmed, nil
}

func urlEqual(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// WellKnownHTTPLoader first resolves the discovery document to obtain
// the JWKS URL, then behaves exactly as HTTPLoader (spec §4.5).
type WellKnownHTTPLoader struct {
	discoveryURL string
	opts         HTTPLoaderOptions

	mu       sync.Mutex
	delegate *HTTPLoader
	status   atomic.Int32

	gateMu sync.Mutex
	gate   *initGate
}

// NewWellKnownHTTPLoader builds a loader resolving discoveryURL lazily
// on first InitAsync call.
func NewWellKnownHTTPLoader(discoveryURL string, opts HTTPLoaderOptions) *WellKnownHTTPLoader {
	l := &WellKnownHTTPLoader{discoveryURL: discoveryURL, opts: opts.withDefaults()}
	l.status.Store(int32(Undefined))
	return l
}

func (l *WellKnownHTTPLoader) GetKey(kid string) (KeyInfo, bool) {
	l.mu.Lock()
	d := l.delegate
	l.mu.Unlock()
	if d == nil {
		return KeyInfo{}, false
	}
	return d.GetKey(kid)
}

func (l *WellKnownHTTPLoader) CurrentStatus() Status {
	l.mu.Lock()
	d := l.delegate
	l.mu.Unlock()
	if d == nil {
		return Status(l.status.Load())
	}
	return d.CurrentStatus()
}

func (l *WellKnownHTTPLoader) InitAsync(ctx context.Context) <-chan Status {
	l.gateMu.Lock()
	if l.gate == nil {
		l.gate = newInitGate()
	}
	gate := l.gate
	l.gateMu.Unlock()

	if gate.start() {
		return gate.subscribe(ctx)
	}

	l.status.Store(int32(Loading))
	go func() {
		discovery, err := ResolveDiscovery(ctx, l.discoveryURL)
		if err != nil {
			l.status.Store(int32(ErrorStatus))
			gate.finish(ErrorStatus)
			return
		}

		delegate := NewHTTPLoader(discovery.JWKSURI, l.opts)
		l.mu.Lock()
		l.delegate = delegate
		l.mu.Unlock()

		status := <-delegate.InitAsync(ctx)
		gate.finish(status)
	}()
	return gate.subscribe(ctx)
}

func (l *WellKnownHTTPLoader) Close() {
	l.mu.Lock()
	d := l.delegate
	l.mu.Unlock()
	if d != nil {
		d.Close()
	}
}

var _ Loader = (*WellKnownHTTPLoader)(nil)
