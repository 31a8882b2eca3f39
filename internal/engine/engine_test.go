package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/warden/internal/entitle"
)

type fakeSource struct {
	mu       sync.Mutex
	standard []string
	vip      []string
	err      error
}

func (f *fakeSource) StandardAddresses(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.standard, f.err
}

func (f *fakeSource) VIPAddresses(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vip, f.err
}

type fakeFilter struct {
	mu           sync.Mutex
	bootstrapErr error
	replaceErr   error
	bootstraps   int
	replaces     map[entitle.Tier][]int // lengths passed per tier, in order
	clears       map[entitle.Tier]int
}

func newFakeFilter() *fakeFilter {
	return &fakeFilter{
		replaces: make(map[entitle.Tier][]int),
		clears:   make(map[entitle.Tier]int),
	}
}

func (f *fakeFilter) EnsureBootstrap() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstraps++
	return f.bootstrapErr
}

func (f *fakeFilter) ReplaceSet(tier entitle.Tier, addrs []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.replaces[tier] = append(f.replaces[tier], len(addrs))
	return len(addrs), nil
}

func (f *fakeFilter) ClearSet(tier entitle.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears[tier]++
	return nil
}

func (f *fakeFilter) replaceCount(tier entitle.Tier) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replaces[tier])
}

func testEngine(t *testing.T, source Source, filter Filter) *Engine {
	t.Helper()
	e, err := New(source, filter, Options{
		Interval: 5 * time.Millisecond,
		VIPEvery: 6,
	}, nil, nil)
	require.NoError(t, err)
	return e
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(&fakeSource{}, newFakeFilter(), Options{Interval: 0, VIPEvery: 6}, nil, nil)
	assert.Error(t, err)

	_, err = New(&fakeSource{}, newFakeFilter(), Options{Interval: time.Second, VIPEvery: 0}, nil, nil)
	assert.Error(t, err)
}

func TestRunBootstrapFailureIsFatal(t *testing.T) {
	filter := newFakeFilter()
	filter.bootstrapErr = errors.New("netlink: permission denied")

	e := testEngine(t, &fakeSource{}, filter)
	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap")
}

func TestRunPrimesBothSetsBeforeFirstTick(t *testing.T) {
	source := &fakeSource{
		standard: []string{"10.0.0.1", "10.0.0.2"},
		vip:      []string{"10.0.1.1"},
	}
	filter := newFakeFilter()

	e, err := New(source, filter, Options{
		Interval: time.Hour, // never ticks during the test
		VIPEvery: 6,
	}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return filter.replaceCount(entitle.TierStandard) == 1 &&
			filter.replaceCount(entitle.TierVIP) == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int{2}, filter.replaces[entitle.TierStandard])
	assert.Equal(t, []int{1}, filter.replaces[entitle.TierVIP])
}

func TestTickCadence(t *testing.T) {
	source := &fakeSource{
		standard: []string{"10.0.0.1"},
		vip:      []string{"10.0.1.1"},
	}
	filter := newFakeFilter()
	e := testEngine(t, source, filter)

	for i := 0; i < 12; i++ {
		e.tick(context.Background())
	}

	// Standard syncs every tick, VIP on ticks 6 and 12.
	assert.Equal(t, 12, filter.replaceCount(entitle.TierStandard))
	assert.Equal(t, 2, filter.replaceCount(entitle.TierVIP))
	assert.Equal(t, uint64(12), e.Ticks())
}

func TestTickStoreErrorLeavesFilterUntouched(t *testing.T) {
	source := &fakeSource{err: errors.New("store unavailable: database is locked")}
	filter := newFakeFilter()
	e := testEngine(t, source, filter)

	for i := 0; i < 6; i++ {
		e.tick(context.Background())
	}

	assert.Zero(t, filter.replaceCount(entitle.TierStandard))
	assert.Zero(t, filter.replaceCount(entitle.TierVIP))
	assert.Zero(t, filter.clears[entitle.TierStandard])
}

func TestTickFilterErrorDoesNotStopLoop(t *testing.T) {
	source := &fakeSource{standard: []string{"10.0.0.1"}, vip: []string{"10.0.1.1"}}
	filter := newFakeFilter()
	filter.replaceErr = errors.New("netlink receive: no such file or directory")
	e := testEngine(t, source, filter)

	e.tick(context.Background())
	e.tick(context.Background())

	// Failures recover once the backend does.
	filter.mu.Lock()
	filter.replaceErr = nil
	filter.mu.Unlock()
	e.tick(context.Background())

	assert.Equal(t, 1, filter.replaceCount(entitle.TierStandard))
	assert.Equal(t, uint64(3), e.Ticks())
}

func TestTickEmptyEntitlementClearsSet(t *testing.T) {
	source := &fakeSource{standard: nil, vip: nil}
	filter := newFakeFilter()
	e := testEngine(t, source, filter)

	for i := 0; i < 6; i++ {
		e.tick(context.Background())
	}

	assert.Zero(t, filter.replaceCount(entitle.TierStandard))
	assert.Equal(t, 6, filter.clears[entitle.TierStandard])
	assert.Equal(t, 1, filter.clears[entitle.TierVIP])
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source := &fakeSource{standard: []string{"10.0.0.1"}}
	filter := newFakeFilter()
	e := testEngine(t, source, filter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return e.State() == StateRunning
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancel")
	}
	assert.Equal(t, StateStopping, e.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", State(7).String())
}
