package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure-Go driver, no CGO
)

// SQLiteStore persists accounts in a single table with the record JSON in a
// value column, mirroring how the desktop client stores its state.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// NewSQLiteStore opens (and creates if missing) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err = db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// List loads every stored account, dropping disabled ones.
func (s *SQLiteStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, value FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var id, value string
		if err = rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		var acc Account
		if err = json.Unmarshal([]byte(value), &acc); err != nil {
			log.Warnf("account %s unparsable in sqlite: %v", id, err)
			continue
		}
		if acc.Token == nil || !acc.IsActive {
			continue
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}

// Save upserts the account row.
func (s *SQLiteStore) Save(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, value) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value",
		acc.ID, string(data))
	return err
}

// Delete removes the account row.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
