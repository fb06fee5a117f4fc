package jwks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cuioss/cui-jwt-sub016/pkg/httpres"
	"github.com/cuioss/cui-jwt-sub016/pkg/resilient"
)

// DefaultRefreshInterval matches spec §6's
// jwks.refresh-interval-seconds default of 600s (10 min).
const DefaultRefreshInterval = 10 * time.Minute

// HTTPLoaderOptions configures an HTTPLoader.
type HTTPLoaderOptions struct {
	RefreshInterval time.Duration
	ParserOptions   ParserOptions
	Logger          *zap.Logger
}

func (o HTTPLoaderOptions) withDefaults() HTTPLoaderOptions {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.ParserOptions.MaxKeys <= 0 && o.ParserOptions.MaxDocumentBytes <= 0 {
		o.ParserOptions = DefaultParserOptions()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// HTTPLoader fetches a JWKS document over HTTP, refreshing it on an
// interval using ETag-driven conditional GET (spec §4.5).
type HTTPLoader struct {
	handler *resilient.Handler[[]byte]
	opts    HTTPLoaderOptions

	status atomic.Int32
	keys   atomic.Pointer[KeySet]
	etag   atomic.Pointer[string]

	gateMu sync.Mutex
	gate   *initGate

	closeOnce  sync.Once
	stop       chan struct{}
	refreshCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewHTTPLoader builds a loader for url, starting in Undefined.
func NewHTTPLoader(url string, opts HTTPLoaderOptions) *HTTPLoader {
	opts = opts.withDefaults()
	l := newHTTPLoader(opts)
	l.handler = resilient.New(url, func(body []byte) ([]byte, error) { return body, nil })
	return l
}

// newHTTPLoaderWithHandler lets the well-known loader inject a handler
// whose URL was resolved from the discovery document.
func newHTTPLoaderWithHandler(handler *resilient.Handler[[]byte], opts HTTPLoaderOptions) *HTTPLoader {
	opts = opts.withDefaults()
	l := newHTTPLoader(opts)
	l.handler = handler
	return l
}

func newHTTPLoader(opts HTTPLoaderOptions) *HTTPLoader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &HTTPLoader{
		opts:       opts,
		stop:       make(chan struct{}),
		refreshCtx: ctx,
		cancel:     cancel,
	}
	l.status.Store(int32(Undefined))
	return l
}

func (l *HTTPLoader) GetKey(kid string) (KeyInfo, bool) {
	if Status(l.status.Load()) != OK {
		return KeyInfo{}, false
	}
	ks := l.keys.Load()
	if ks == nil {
		return KeyInfo{}, false
	}
	return (*ks).Get(kid)
}

func (l *HTTPLoader) CurrentStatus() Status { return Status(l.status.Load()) }

// InitAsync transitions Undefined→Loading and fetches. Concurrent
// callers share the same completion signal; only the first does work.
func (l *HTTPLoader) InitAsync(ctx context.Context) <-chan Status {
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
		status := l.fetchOnce(ctx)
		gate.finish(status)
		if status == OK {
			l.startBackgroundRefresh()
		}
	}()
	return gate.subscribe(ctx)
}

func (l *HTTPLoader) fetchOnce(ctx context.Context) Status {
	var etag string
	if p := l.etag.Load(); p != nil {
		etag = *p
	}

	res := l.handler.Load(ctx, etag)
	switch {
	case res.State == httpres.Valid && res.Unchanged:
		// 304: existing key map retained, status stays/returns OK.
		l.status.Store(int32(OK))
		return OK
	case res.State == httpres.Valid:
		ks, err := Parse(res.Content, l.opts.ParserOptions)
		if err != nil {
			l.opts.Logger.Warn("jwks parse failed", zap.Error(err))
			l.status.Store(int32(ErrorStatus))
			return ErrorStatus
		}
		if len(ks) == 0 {
			l.opts.Logger.Warn("jwks document contained zero keys")
			l.status.Store(int32(ErrorStatus))
			return ErrorStatus
		}
		l.keys.Store(&ks)
		etagCopy := res.ETag
		l.etag.Store(&etagCopy)
		l.status.Store(int32(OK))
		return OK
	default:
		l.opts.Logger.Warn("jwks fetch failed", zap.Stringer("category", res.Category), zap.String("detail", res.Detail))
		l.status.Store(int32(ErrorStatus))
		return ErrorStatus
	}
}

func (l *HTTPLoader) startBackgroundRefresh() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.opts.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				// The existing key snapshot keeps serving GetKey lock-free
				// for the whole fetch+retry window; status is not flipped
				// to Loading here, only updated once fetchOnce settles on
				// OK or ERROR (spec §5: a concurrent token validation
				// observes the old or new snapshot, never neither).
				l.fetchOnce(l.refreshCtx)
			}
		}
	}()
}

// Close cancels background refresh, including any fetch and retry sleep
// currently in flight, then waits for the refresh goroutine to exit.
// Safe to call more than once.
func (l *HTTPLoader) Close() {
	l.closeOnce.Do(func() {
		close(l.stop)
		l.cancel()
	})
	l.wg.Wait()
}

var _ Loader = (*HTTPLoader)(nil)
