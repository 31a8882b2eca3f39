//go:build linux
// +build linux

package netfilter

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/nftables"

	"grimm.is/warden/internal/entitle"
	"grimm.is/warden/internal/logging"
	"grimm.is/warden/internal/validation"
)

// Options configures the filter objects the manager owns.
type Options struct {
	Table        string
	WhitelistSet string
	VIPSet       string
	Port         uint16
	// WhitelistTTL is the per-element lifetime of the timed whitelist set.
	// Entries not refreshed by a subsequent replace expire on their own.
	WhitelistTTL time.Duration
}

// Manager owns the daemon's nftables objects. All mutations go through the
// single engine loop, so no internal locking is needed beyond the set cache.
type Manager struct {
	conn   NFTConn
	opts   Options
	logger *logging.Logger

	mu    sync.Mutex
	table *nftables.Table
	sets  map[string]*nftables.Set
}

// NewManager creates a manager over the given connection.
func NewManager(conn NFTConn, opts Options, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		conn:   conn,
		opts:   opts,
		logger: logger.WithComponent("netfilter"),
		sets:   make(map[string]*nftables.Set),
	}
}

// setName maps an entitlement tier to its set name.
func (m *Manager) setName(tier entitle.Tier) string {
	if tier == entitle.TierVIP {
		return m.opts.VIPSet
	}
	return m.opts.WhitelistSet
}

// EnsureBootstrap idempotently creates the table, chain, sets, and port rules.
// Existing objects are left untouched; a failure here means no rule
// enforcement would exist, so callers must treat it as fatal.
func (m *Manager) EnsureBootstrap() error {
	for _, name := range []string{m.opts.Table, m.opts.WhitelistSet, m.opts.VIPSet} {
		if err := validation.ValidateSetName(name); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
	}

	table, created, err := m.ensureTable()
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	chain, chainCreated, err := m.ensureChain(table)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	setsCreated, err := m.ensureSets(table)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if created || chainCreated || setsCreated {
		if err := m.conn.Flush(); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
		m.logger.Info("created filter structures",
			"table", m.opts.Table, "port", m.opts.Port)
	}

	installed, err := m.ensureRules(table, chain)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if installed {
		if err := m.conn.Flush(); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
		m.logger.Info("installed port rules", "port", m.opts.Port)
	}

	return nil
}

// ensureTable finds or creates the inet table.
func (m *Manager) ensureTable() (*nftables.Table, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.table != nil {
		return m.table, false, nil
	}

	tables, err := m.conn.ListTables()
	if err != nil {
		return nil, false, fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == m.opts.Table && t.Family == nftables.TableFamilyINet {
			m.table = t
			return t, false, nil
		}
	}

	t := m.conn.AddTable(&nftables.Table{
		Name:   m.opts.Table,
		Family: nftables.TableFamilyINet,
	})
	m.table = t
	return t, true, nil
}

// ensureChain finds or creates the inbound filter chain.
func (m *Manager) ensureChain(table *nftables.Table) (*nftables.Chain, bool, error) {
	chains, err := m.conn.ListChains()
	if err != nil {
		return nil, false, fmt.Errorf("failed to list chains: %w", err)
	}
	for _, c := range chains {
		if c.Name == chainName && c.Table != nil && c.Table.Name == table.Name {
			return c, false, nil
		}
	}

	c := m.conn.AddChain(&nftables.Chain{
		Name:     chainName,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
	})
	return c, true, nil
}

// ensureSets finds or creates the two address sets.
func (m *Manager) ensureSets(table *nftables.Table) (bool, error) {
	existing, err := m.conn.GetSets(table)
	if err != nil {
		return false, fmt.Errorf("failed to get sets: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byName := make(map[string]*nftables.Set, len(existing))
	for _, s := range existing {
		byName[s.Name] = s
	}

	created := false

	if s, ok := byName[m.opts.WhitelistSet]; ok {
		m.sets[s.Name] = s
	} else {
		s := &nftables.Set{
			Name:       m.opts.WhitelistSet,
			Table:      table,
			KeyType:    nftables.TypeIPAddr,
			HasTimeout: true,
			Timeout:    m.opts.WhitelistTTL,
		}
		if err := m.conn.AddSet(s, nil); err != nil {
			return false, fmt.Errorf("failed to add set %s: %w", s.Name, err)
		}
		m.sets[s.Name] = s
		created = true
	}

	if s, ok := byName[m.opts.VIPSet]; ok {
		m.sets[s.Name] = s
	} else {
		s := &nftables.Set{
			Name:    m.opts.VIPSet,
			Table:   table,
			KeyType: nftables.TypeIPAddr,
		}
		if err := m.conn.AddSet(s, nil); err != nil {
			return false, fmt.Errorf("failed to add set %s: %w", s.Name, err)
		}
		m.sets[s.Name] = s
		created = true
	}

	return created, nil
}

// ensureRules installs the three ordered port rules if the chain is empty:
// accept if source is in the VIP set, accept if in the whitelist set, drop.
func (m *Manager) ensureRules(table *nftables.Table, chain *nftables.Chain) (bool, error) {
	rules, err := m.conn.GetRules(table, chain)
	if err != nil {
		return false, fmt.Errorf("failed to get rules: %w", err)
	}
	if len(rules) > 0 {
		return false, nil
	}

	m.mu.Lock()
	vip := m.sets[m.opts.VIPSet]
	wl := m.sets[m.opts.WhitelistSet]
	m.mu.Unlock()

	m.conn.AddRule(&nftables.Rule{
		Table: table,
		Chain: chain,
		Exprs: acceptFromSetExprs(m.opts.Port, vip),
	})
	m.conn.AddRule(&nftables.Rule{
		Table: table,
		Chain: chain,
		Exprs: acceptFromSetExprs(m.opts.Port, wl),
	})
	m.conn.AddRule(&nftables.Rule{
		Table: table,
		Chain: chain,
		Exprs: dropPortExprs(m.opts.Port),
	})

	return true, nil
}

// getSet returns a cached set reference or finds it in the kernel.
func (m *Manager) getSet(name string) (*nftables.Set, error) {
	m.mu.Lock()
	if s, ok := m.sets[name]; ok {
		m.mu.Unlock()
		return s, nil
	}
	table := m.table
	m.mu.Unlock()

	if table == nil {
		return nil, fmt.Errorf("table %s not bootstrapped", m.opts.Table)
	}

	sets, err := m.conn.GetSets(table)
	if err != nil {
		return nil, fmt.Errorf("failed to get sets: %w", err)
	}
	for _, s := range sets {
		if s.Name == name {
			m.mu.Lock()
			m.sets[name] = s
			m.mu.Unlock()
			return s, nil
		}
	}

	return nil, fmt.Errorf("set %s not found", name)
}

// ReplaceSet atomically replaces the membership of a tier's set: flush plus
// insert of all members, committed as one transaction. The kernel either
// applies the whole batch or rejects it; no partial state is observable.
func (m *Manager) ReplaceSet(tier entitle.Tier, addrs []string) (int, error) {
	set, err := m.getSet(m.setName(tier))
	if err != nil {
		return 0, fmt.Errorf("reconcile failed: %w", err)
	}

	elems := make([]nftables.SetElement, 0, len(addrs))
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil || ip.To4() == nil {
			return 0, fmt.Errorf("reconcile failed: invalid address %q for set %s", a, set.Name)
		}
		elems = append(elems, nftables.SetElement{Key: ip.To4()})
	}

	m.conn.FlushSet(set)
	if err := m.conn.SetAddElements(set, elems); err != nil {
		return 0, fmt.Errorf("reconcile failed: %w", err)
	}
	if err := m.conn.Flush(); err != nil {
		return 0, fmt.Errorf("reconcile failed: %w", err)
	}

	return len(elems), nil
}

// ClearSet removes every element from a tier's set.
func (m *Manager) ClearSet(tier entitle.Tier) error {
	set, err := m.getSet(m.setName(tier))
	if err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	m.conn.FlushSet(set)
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	return nil
}

// CountSet returns the current membership count of a tier's set. This is an
// observability read only; reconciliation never depends on it.
func (m *Manager) CountSet(tier entitle.Tier) (int, error) {
	set, err := m.getSet(m.setName(tier))
	if err != nil {
		return 0, err
	}

	elems, err := m.conn.GetSetElements(set)
	if err != nil {
		return 0, fmt.Errorf("failed to get elements: %w", err)
	}

	n := 0
	for _, e := range elems {
		if !e.IntervalEnd {
			n++
		}
	}
	return n, nil
}
