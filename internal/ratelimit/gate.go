package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultBuffer is added to every computed wait so the oldest request has
// actually left the window when the waiter wakes up.
const DefaultBuffer = 100 * time.Millisecond

// Gate admits at most limit requests in any trailing window. Admission hands
// out a Reservation; only reservations that are recorded enter the window,
// so failed requests do not count against the quota.
//
// All state is guarded by one mutex. Waiters sleep until either the oldest
// timestamp expires or another reservation resolves, then re-evaluate.
type Gate struct {
	mu      sync.Mutex
	window  *Window
	limit   int
	pending int
	changed chan struct{}

	buffer time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithBuffer overrides DefaultBuffer.
func WithBuffer(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.buffer = d
		}
	}
}

// WithLogger sets the logger used for wait notices.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate creates a gate allowing limit requests per window. A limit below
// one is treated as one.
func NewGate(limit int, window time.Duration, opts ...Option) *Gate {
	if limit < 1 {
		limit = 1
	}
	g := &Gate{
		window:  NewWindow(window),
		limit:   limit,
		changed: make(chan struct{}),
		buffer:  DefaultBuffer,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until issuing one more request stays within the quota, then
// returns a reservation the caller must resolve with Record or Cancel.
// It returns the context error if ctx ends first.
func (g *Gate) Acquire(ctx context.Context) (*Reservation, error) {
	waited := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g.mu.Lock()
		now := g.now()
		g.window.Prune(now)
		if g.window.Len()+g.pending < g.limit {
			g.pending++
			g.mu.Unlock()
			return &Reservation{gate: g}, nil
		}

		changed := g.changed
		var expiry <-chan time.Time
		var timer *time.Timer
		if wait := g.window.WaitTime(now, g.buffer); g.window.Len() > 0 && wait > 0 {
			level := slog.LevelInfo
			if waited {
				level = slog.LevelDebug
			}
			waited = true
			g.logger.Log(ctx, level, "rate limit reached, waiting",
				"wait_seconds", wait.Round(100*time.Millisecond).Seconds(),
				"in_window", g.window.Len(),
				"in_flight", g.pending)
			timer = time.NewTimer(wait)
			expiry = timer.C
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
		case <-changed:
		case <-expiry:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Snapshot returns the timestamps currently counted against the quota.
func (g *Gate) Snapshot() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window.Prune(g.now())
	return g.window.Snapshot()
}

// InFlight returns the number of unresolved reservations.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *Gate) resolve(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending--
	if success {
		g.window.Add(g.now())
	}
	close(g.changed)
	g.changed = make(chan struct{})
}

// Reservation is an admitted request slot. Resolving it more than once is a no-op.
type Reservation struct {
	gate *Gate
	once sync.Once
}

// Record counts the request against the window at the current time.
func (r *Reservation) Record() {
	r.once.Do(func() { r.gate.resolve(true) })
}

// Cancel frees the slot without counting the request.
func (r *Reservation) Cancel() {
	r.once.Do(func() { r.gate.resolve(false) })
}
