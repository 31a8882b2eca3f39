//go:build linux
// +build linux

package netfilter

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/nftables"
	"github.com/stretchr/testify/mock"
)

// MockConn is a mock implementation of NFTConn for testing. It keeps
// in-memory object state so tests can assert final set membership, and an
// operation log so tests can assert transaction ordering.
type MockConn struct {
	mock.Mock
	mu sync.Mutex

	tables   map[string]*nftables.Table
	chains   map[string]*nftables.Chain
	rules    map[string][]*nftables.Rule
	sets     map[string]*nftables.Set
	elements map[string][]nftables.SetElement

	// Ops records each mutating call in order, e.g. "flushset:whitelist",
	// "add:whitelist:3", "commit".
	Ops []string
}

// NewMockConn creates a new mock nftables connection.
func NewMockConn() *MockConn {
	return &MockConn{
		tables:   make(map[string]*nftables.Table),
		chains:   make(map[string]*nftables.Chain),
		rules:    make(map[string][]*nftables.Rule),
		sets:     make(map[string]*nftables.Set),
		elements: make(map[string][]nftables.SetElement),
	}
}

func (m *MockConn) AddTable(t *nftables.Table) *nftables.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(t)
	m.tables[t.Name] = t
	m.Ops = append(m.Ops, "addtable:"+t.Name)
	return t
}

func (m *MockConn) ListTables() ([]*nftables.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Table), args.Error(1)
	}
	tables := make([]*nftables.Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	return tables, args.Error(1)
}

func (m *MockConn) AddChain(c *nftables.Chain) *nftables.Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(c)
	m.chains[c.Table.Name+"/"+c.Name] = c
	m.Ops = append(m.Ops, "addchain:"+c.Name)
	return c
}

func (m *MockConn) ListChains() ([]*nftables.Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Chain), args.Error(1)
	}
	chains := make([]*nftables.Chain, 0, len(m.chains))
	for _, c := range m.chains {
		chains = append(chains, c)
	}
	return chains, args.Error(1)
}

func (m *MockConn) AddRule(r *nftables.Rule) *nftables.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(r)
	key := r.Table.Name + "/" + r.Chain.Name
	m.rules[key] = append(m.rules[key], r)
	m.Ops = append(m.Ops, "addrule:"+key)
	return r
}

func (m *MockConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(t, c)
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Rule), args.Error(1)
	}
	return m.rules[t.Name+"/"+c.Name], args.Error(1)
}

func (m *MockConn) AddSet(s *nftables.Set, vals []nftables.SetElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(s, vals)
	m.sets[s.Name] = s
	m.Ops = append(m.Ops, "addset:"+s.Name)
	return args.Error(0)
}

func (m *MockConn) GetSets(t *nftables.Table) ([]*nftables.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(t)
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Set), args.Error(1)
	}
	sets := make([]*nftables.Set, 0, len(m.sets))
	for _, s := range m.sets {
		if s.Table != nil && s.Table.Name == t.Name {
			sets = append(sets, s)
		}
	}
	return sets, args.Error(1)
}

func (m *MockConn) GetSetElements(s *nftables.Set) ([]nftables.SetElement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(s)
	if args.Get(0) != nil {
		return args.Get(0).([]nftables.SetElement), args.Error(1)
	}
	return m.elements[s.Name], args.Error(1)
}

func (m *MockConn) SetAddElements(s *nftables.Set, vals []nftables.SetElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(s, vals)
	if args.Error(0) == nil {
		m.elements[s.Name] = append(m.elements[s.Name], vals...)
	}
	m.Ops = append(m.Ops, fmt.Sprintf("add:%s:%d", s.Name, len(vals)))
	return args.Error(0)
}

func (m *MockConn) FlushSet(s *nftables.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(s)
	m.elements[s.Name] = nil
	m.Ops = append(m.Ops, "flushset:"+s.Name)
}

func (m *MockConn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	m.Ops = append(m.Ops, "commit")
	return args.Error(0)
}

// SetMembers returns the current membership of a set as dotted-quad strings.
func (m *MockConn) SetMembers(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]string, 0, len(m.elements[name]))
	for _, e := range m.elements[name] {
		members = append(members, net.IP(e.Key).String())
	}
	return members
}

// RuleCount returns how many rules exist in the given table/chain.
func (m *MockConn) RuleCount(table, chain string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules[table+"/"+chain])
}
