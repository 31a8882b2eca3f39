// Package entitle decides which client addresses are currently entitled to
// pass the packet filter, and under which tier.
package entitle

import (
	"context"
	"fmt"
	"time"

	"grimm.is/warden/internal/clock"
	"grimm.is/warden/internal/logging"
	"grimm.is/warden/internal/store"
	"grimm.is/warden/internal/validation"
)

// Tier identifies which filter set an address belongs to.
type Tier string

const (
	// TierStandard is quota/billing-gated and time-bounded.
	TierStandard Tier = "standard"
	// TierVIP is unconditional and permanent until explicitly revoked.
	TierVIP Tier = "vip"
)

// Policy holds the billing knobs for standard-tier entitlement.
type Policy struct {
	// FreeQuotaBytes is the usage threshold below which no balance is needed.
	FreeQuotaBytes int64
	// PricePerByte is the overage price for each byte beyond the free quota.
	PricePerByte float64
	// RecencyWindow bounds how old a client's last activity may be.
	RecencyWindow time.Duration
}

// Entitled reports whether a user qualifies for standard-tier access.
// VIPs always qualify. Otherwise usage within the free quota qualifies, and
// beyond it the account balance must cover the overage. The subtraction is
// guarded so the overage term is never negative.
func (p Policy) Entitled(u store.UserRecord) bool {
	if u.VIP {
		return true
	}
	if u.DataUsed <= p.FreeQuotaBytes {
		return true
	}
	over := u.DataUsed - p.FreeQuotaBytes
	return float64(over)*p.PricePerByte <= u.Balance
}

// UserSource is the query surface the evaluator needs from the user store.
type UserSource interface {
	RecentActive(ctx context.Context, since time.Time) ([]store.UserRecord, error)
	VIPs(ctx context.Context) ([]store.UserRecord, error)
}

// Evaluator computes per-tier decision sets from the user store.
type Evaluator struct {
	source UserSource
	policy Policy
	clock  clock.Clock
	logger *logging.Logger
}

// NewEvaluator creates an evaluator over the given user source.
func NewEvaluator(source UserSource, policy Policy, clk clock.Clock, logger *logging.Logger) *Evaluator {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Evaluator{
		source: source,
		policy: policy,
		clock:  clk,
		logger: logger.WithComponent("entitle"),
	}
}

// StandardAddresses returns the deduplicated, validated set of addresses
// entitled under the standard tier. A store failure is returned as-is; the
// caller must not mutate filter state on error.
func (e *Evaluator) StandardAddresses(ctx context.Context) ([]string, error) {
	since := e.clock.Now().Add(-e.policy.RecencyWindow)
	users, err := e.source.RecentActive(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	addrs := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if !e.policy.Entitled(u) {
			continue
		}
		if !validation.IsIPv4(u.LastIP) {
			e.logger.Warn("dropping invalid address", "user", u.Username, "addr", u.LastIP)
			continue
		}
		if _, dup := seen[u.LastIP]; dup {
			continue
		}
		seen[u.LastIP] = struct{}{}
		addrs = append(addrs, u.LastIP)
	}
	return addrs, nil
}

// VIPAddresses returns the deduplicated, validated set of VIP addresses.
// No recency or billing filter applies.
func (e *Evaluator) VIPAddresses(ctx context.Context) ([]string, error) {
	users, err := e.source.VIPs(ctx)
	if err != nil {
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	addrs := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if !validation.IsIPv4(u.LastIP) {
			e.logger.Warn("dropping invalid address", "user", u.Username, "addr", u.LastIP)
			continue
		}
		if _, dup := seen[u.LastIP]; dup {
			continue
		}
		seen[u.LastIP] = struct{}{}
		addrs = append(addrs, u.LastIP)
	}
	return addrs, nil
}
