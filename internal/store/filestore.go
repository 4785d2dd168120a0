package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FileStore keeps one JSON file per account under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// List reads every *.json account file, skipping unparsable files and
// disabled accounts.
func (s *FileStore) List(_ context.Context) ([]*Account, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read accounts dir: %w", err)
	}
	accounts := make([]*Account, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			log.Warnf("account file %s unreadable: %v", entry.Name(), err)
			continue
		}
		var acc Account
		if err = json.Unmarshal(data, &acc); err != nil {
			log.Warnf("account file %s unparsable: %v", entry.Name(), err)
			continue
		}
		if acc.ID == "" || acc.Token == nil || !acc.IsActive {
			continue
		}
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

// Save writes the account file atomically via rename.
func (s *FileStore) Save(_ context.Context, acc *Account) error {
	data, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(acc.ID) + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(acc.ID))
}

// Delete removes the account file.
func (s *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
