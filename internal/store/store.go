// Package store provides read-only access to the user database.
//
// The database is owned by an external ingestion/billing pipeline; the daemon
// only ever issues the two fixed query shapes below and never mutates rows.
// The driver is modernc.org/sqlite (pure Go, no CGO).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// UserRecord mirrors one row of the users table.
type UserRecord struct {
	Username string
	LastIP   string
	LastSeen time.Time
	VIP      bool
	DataUsed int64
	Balance  float64
}

// Store wraps the user database handle.
type Store struct {
	db *sql.DB
}

// Open opens the user database at path. The file must already exist; the
// daemon does not create or migrate the users table.
func Open(path string) (*Store, error) {
	dsn := path + "?_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to user database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecentActive returns the standard-tier candidate rows: every user with a
// non-null, non-empty last_ip whose last_seen is at or after since. Billing
// entitlement is evaluated by the caller.
func (s *Store) RecentActive(ctx context.Context, since time.Time) ([]UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, last_ip, last_seen, is_vip, data_used, account_balance
		FROM users
		WHERE last_ip IS NOT NULL AND last_ip != ''
		  AND last_seen >= ?
	`, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// VIPs returns every VIP row with a usable last_ip. VIP entitlement carries
// no recency filter: presence persists until the flag is revoked.
func (s *Store) VIPs(ctx context.Context) ([]UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, last_ip, last_seen, is_vip, data_used, account_balance
		FROM users
		WHERE is_vip = 1
		  AND last_ip IS NOT NULL AND last_ip != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vip users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]UserRecord, error) {
	var users []UserRecord
	for rows.Next() {
		var (
			u        UserRecord
			lastSeen int64
			vip      int
		)
		if err := rows.Scan(&u.Username, &u.LastIP, &lastSeen, &vip, &u.DataUsed, &u.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.LastSeen = time.Unix(lastSeen, 0).UTC()
		u.VIP = vip != 0
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user rows: %w", err)
	}
	return users, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
