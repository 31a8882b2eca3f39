//go:build linux
// +build linux

// Package netfilter manages the kernel packet-filter objects the daemon
// reconciles against: one inet table, one inbound chain, and two dynamic
// address sets guarding the protected UDP port.
package netfilter

import (
	"github.com/google/nftables"
)

// NFTConn abstracts the nftables.Conn operations the daemon uses.
// This interface allows mocking nftables operations in tests.
type NFTConn interface {
	// Table operations
	AddTable(t *nftables.Table) *nftables.Table
	ListTables() ([]*nftables.Table, error)

	// Chain operations
	AddChain(c *nftables.Chain) *nftables.Chain
	ListChains() ([]*nftables.Chain, error)

	// Rule operations
	AddRule(r *nftables.Rule) *nftables.Rule
	GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error)

	// Set operations
	AddSet(s *nftables.Set, vals []nftables.SetElement) error
	GetSets(t *nftables.Table) ([]*nftables.Set, error)
	GetSetElements(s *nftables.Set) ([]nftables.SetElement, error)
	SetAddElements(s *nftables.Set, vals []nftables.SetElement) error
	FlushSet(s *nftables.Set)

	// Commit changes
	Flush() error
}

// RealConn wraps the actual nftables.Conn for production use.
type RealConn struct {
	conn *nftables.Conn
}

// NewRealConn creates a RealConn wrapping an nftables.Conn.
func NewRealConn(conn *nftables.Conn) *RealConn {
	return &RealConn{conn: conn}
}

func (r *RealConn) AddTable(t *nftables.Table) *nftables.Table {
	return r.conn.AddTable(t)
}

func (r *RealConn) ListTables() ([]*nftables.Table, error) {
	return r.conn.ListTables()
}

func (r *RealConn) AddChain(c *nftables.Chain) *nftables.Chain {
	return r.conn.AddChain(c)
}

func (r *RealConn) ListChains() ([]*nftables.Chain, error) {
	return r.conn.ListChains()
}

func (r *RealConn) AddRule(rule *nftables.Rule) *nftables.Rule {
	return r.conn.AddRule(rule)
}

func (r *RealConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	return r.conn.GetRules(t, c)
}

func (r *RealConn) AddSet(s *nftables.Set, vals []nftables.SetElement) error {
	return r.conn.AddSet(s, vals)
}

func (r *RealConn) GetSets(t *nftables.Table) ([]*nftables.Set, error) {
	return r.conn.GetSets(t)
}

func (r *RealConn) GetSetElements(s *nftables.Set) ([]nftables.SetElement, error) {
	return r.conn.GetSetElements(s)
}

func (r *RealConn) SetAddElements(s *nftables.Set, vals []nftables.SetElement) error {
	return r.conn.SetAddElements(s, vals)
}

func (r *RealConn) FlushSet(s *nftables.Set) {
	r.conn.FlushSet(s)
}

func (r *RealConn) Flush() error {
	return r.conn.Flush()
}
