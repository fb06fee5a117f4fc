package jwks

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Status is the observable lifecycle state of a JWKS source (spec §3).
type Status int

const (
	Undefined Status = iota
	Loading
	OK
	ErrorStatus
)

func (s Status) String() string {
	switch s {
	case Undefined:
		return "UNDEFINED"
	case Loading:
		return "LOADING"
	case OK:
		return "OK"
	case ErrorStatus:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Loader is the capability common to all four JWKS source variants
// (spec §9 Polymorphism: "a small trait/interface, not open inheritance").
type Loader interface {
	// GetKey returns the key for kid (or the no-kid sentinel entry when
	// kid is empty), or false if the loader is not OK or the key is
	// unknown.
	GetKey(kid string) (KeyInfo, bool)
	// CurrentStatus reports the loader's lifecycle state.
	CurrentStatus() Status
	// InitAsync triggers (or joins) initialization. File/inline loaders
	// resolve it synchronously and immediately; the HTTP loader resolves
	// it once the first fetch completes.
	InitAsync(ctx context.Context) <-chan Status
	// Close tears down background refresh goroutines. A no-op for
	// file/inline loaders.
	Close()
}

// staticLoader backs the file and inline variants: resolved exactly once
// at construction, never refreshes.
type staticLoader struct {
	status atomic.Int32
	keys   atomic.Pointer[KeySet]
}

func newStaticLoader(body []byte, parserOpts ParserOptions, logger *zap.Logger, sourceName string) *staticLoader {
	l := &staticLoader{}
	ks, err := Parse(body, parserOpts)
	switch {
	case err != nil:
		logger.Warn("jwks load failed", zap.String("source", sourceName), zap.Error(err))
		l.status.Store(int32(ErrorStatus))
	case len(ks) == 0:
		// Open Question (a): zero keys is ERROR, not an empty OK.
		logger.Warn("jwks document contained zero keys", zap.String("source", sourceName))
		l.status.Store(int32(ErrorStatus))
	default:
		l.keys.Store(&ks)
		l.status.Store(int32(OK))
	}
	return l
}

func (l *staticLoader) GetKey(kid string) (KeyInfo, bool) {
	if Status(l.status.Load()) != OK {
		return KeyInfo{}, false
	}
	ks := l.keys.Load()
	if ks == nil {
		return KeyInfo{}, false
	}
	return (*ks).Get(kid)
}

func (l *staticLoader) CurrentStatus() Status { return Status(l.status.Load()) }

func (l *staticLoader) InitAsync(ctx context.Context) <-chan Status {
	ch := make(chan Status, 1)
	ch <- l.CurrentStatus()
	close(ch)
	return ch
}

func (l *staticLoader) Close() {}

// NewFileLoader reads a JWKS document once from path at construction.
func NewFileLoader(path string, parserOpts ParserOptions, logger *zap.Logger) Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	body, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("jwks file read failed", zap.String("path", path), zap.Error(err))
		l := &staticLoader{}
		l.status.Store(int32(ErrorStatus))
		return l
	}
	return newStaticLoader(body, parserOpts, logger, "file:"+path)
}

// NewInlineLoader parses a caller-supplied JWKS string at construction.
func NewInlineLoader(inline string, parserOpts ParserOptions, logger *zap.Logger) Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newStaticLoader([]byte(inline), parserOpts, logger, "inline")
}

// initGate coordinates concurrent InitAsync calls so only the first
// triggers work; everyone shares the same completion signal (spec §4.5).
type initGate struct {
	mu      sync.Mutex
	started bool
	done    chan struct{}
	result  Status
}

func newInitGate() *initGate {
	return &initGate{done: make(chan struct{})}
}

// start reports whether initialization was already started. If it
// returns true the caller must not redo the work; it should instead wait
// on subscribe().
func (g *initGate) start() (alreadyStarted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return true
	}
	g.started = true
	return false
}

func (g *initGate) finish(status Status) {
	g.mu.Lock()
	g.result = status
	g.mu.Unlock()
	close(g.done)
}

func (g *initGate) subscribe(ctx context.Context) <-chan Status {
	ch := make(chan Status, 1)
	go func() {
		select {
		case <-g.done:
			g.mu.Lock()
			res := g.result
			g.mu.Unlock()
			ch <- res
		case <-ctx.Done():
			ch <- Loading
		}
		close(ch)
	}()
	return ch
}
