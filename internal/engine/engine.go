// Package engine runs the periodic synchronization loop that reconciles
// entitled client addresses into the kernel filter sets.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"grimm.is/warden/internal/clock"
	"grimm.is/warden/internal/entitle"
	"grimm.is/warden/internal/logging"
	"grimm.is/warden/internal/metrics"
)

// State is the daemon lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Source yields the addresses currently entitled to each tier.
type Source interface {
	StandardAddresses(ctx context.Context) ([]string, error)
	VIPAddresses(ctx context.Context) ([]string, error)
}

// Filter is the kernel-facing side of the loop.
type Filter interface {
	EnsureBootstrap() error
	ReplaceSet(tier entitle.Tier, addrs []string) (int, error)
	ClearSet(tier entitle.Tier) error
}

// Options configures the sync loop.
type Options struct {
	// Interval is the cadence of standard-tier syncs.
	Interval time.Duration
	// VIPEvery runs a VIP sync every Nth tick.
	VIPEvery uint64
	// Set names, used only for metrics labels.
	WhitelistSet string
	VIPSet       string
}

// Engine drives the sync loop. One engine runs one loop; all filter
// mutations happen on that goroutine.
type Engine struct {
	source  Source
	filter  Filter
	opts    Options
	clock   clock.Clock
	logger  *logging.Logger
	metrics *metrics.Registry

	state atomic.Int32
	ticks uint64
}

// New creates an engine. Interval and VIPEvery must be positive.
func New(source Source, filter Filter, opts Options, clk clock.Clock, logger *logging.Logger) (*Engine, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", opts.Interval)
	}
	if opts.VIPEvery == 0 {
		return nil, fmt.Errorf("vip cadence must be positive")
	}
	if opts.WhitelistSet == "" {
		opts.WhitelistSet = "whitelist"
	}
	if opts.VIPSet == "" {
		opts.VIPSet = "vip"
	}
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		source:  source,
		filter:  filter,
		opts:    opts,
		clock:   clk,
		logger:  logger.WithComponent("engine"),
		metrics: metrics.Get(),
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	e.metrics.State.Set(float64(s))
}

// Run executes the sync loop until ctx is cancelled. A bootstrap failure is
// fatal and returned; per-cycle failures are logged and the loop continues,
// leaving the previous set contents in place until the next attempt.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateStarting)
	e.logger.Info("starting", "interval", e.opts.Interval, "vip_every", e.opts.VIPEvery)

	if err := e.filter.EnsureBootstrap(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	// Prime both sets before the first tick so enforcement does not wait a
	// full interval after boot.
	e.syncTier(ctx, entitle.TierVIP)
	e.syncTier(ctx, entitle.TierStandard)

	e.setState(StateRunning)
	e.logger.Info("running")

	started := e.clock.Now()
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.setState(StateStopping)
			e.logger.Info("stopping", "ticks", atomic.LoadUint64(&e.ticks))
			return nil
		case <-ticker.C:
			e.metrics.Uptime.Set(e.clock.Since(started).Seconds())
			e.tick(ctx)
		}
	}
}

// tick runs one scheduled cycle: standard every interval, VIP on every
// VIPEvery-th interval.
func (e *Engine) tick(ctx context.Context) {
	tick := atomic.AddUint64(&e.ticks, 1)
	e.syncTier(ctx, entitle.TierStandard)
	if tick%e.opts.VIPEvery == 0 {
		e.syncTier(ctx, entitle.TierVIP)
	}
}

// Ticks returns how many intervals have elapsed since the loop started.
func (e *Engine) Ticks() uint64 {
	return atomic.LoadUint64(&e.ticks)
}

// syncTier runs one full cycle for a tier: evaluate entitlement, then
// atomically replace the tier's set. Any failure leaves the set untouched.
func (e *Engine) syncTier(ctx context.Context, tier entitle.Tier) {
	start := e.clock.Now()
	set := e.opts.WhitelistSet
	if tier == entitle.TierVIP {
		set = e.opts.VIPSet
	}

	addrs, err := e.tierAddresses(ctx, tier)
	if err != nil {
		e.logger.Error("sync skipped", "tier", tier, "error", err)
		e.metrics.RecordSyncError(string(tier), "store")
		e.metrics.RecordSync(string(tier), set, 0, e.clock.Since(start), err)
		return
	}

	n, err := e.reconcile(tier, addrs)
	if err != nil {
		e.logger.Error("sync failed", "tier", tier, "error", err)
		e.metrics.RecordSyncError(string(tier), "filter")
		e.metrics.RecordSync(string(tier), set, 0, e.clock.Since(start), err)
		return
	}

	e.metrics.RecordSync(string(tier), set, n, e.clock.Since(start), nil)
	e.logger.Debug("synced", "tier", tier, "addresses", n)
}

func (e *Engine) tierAddresses(ctx context.Context, tier entitle.Tier) ([]string, error) {
	if tier == entitle.TierVIP {
		return e.source.VIPAddresses(ctx)
	}
	return e.source.StandardAddresses(ctx)
}

// reconcile applies the desired membership. An empty desired set clears
// rather than replaces, since a replace with zero elements is a no-op batch
// on some kernels.
func (e *Engine) reconcile(tier entitle.Tier, addrs []string) (int, error) {
	if len(addrs) == 0 {
		return 0, e.filter.ClearSet(tier)
	}
	return e.filter.ReplaceSet(tier, addrs)
}
