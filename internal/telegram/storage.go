package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotd/td/session"
)

// FileSessionStorage persists one provider session as a JSON file keyed by
// the account phone number. Writes are atomic and unreadable files degrade to
// session.ErrNotFound so a corrupted session forces re-authentication instead
// of a crash loop.
type FileSessionStorage struct {
	path string
}

// NewFileSessionStorage creates the storage directory and derives the session
// file path for the given phone number.
func NewFileSessionStorage(dir, phone string) (*FileSessionStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("new session storage: empty directory")
	}
	if phone == "" {
		return nil, fmt.Errorf("new session storage: empty phone")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("new session storage: create directory: %w", err)
	}

	return &FileSessionStorage{
		path: filepath.Join(dir, sanitizePhone(phone)+".session.json"),
	}, nil
}

// Path returns the backing file path.
func (s *FileSessionStorage) Path() string {
	return s.path
}

// LoadSession implements session.Storage. Missing, empty, or structurally
// invalid files report session.ErrNotFound.
func (s *FileSessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if len(data) == 0 || !json.Valid(data) {
		return nil, session.ErrNotFound
	}
	return data, nil
}

// StoreSession implements session.Storage with a temp-file-and-rename write
// so a crash mid-write never leaves a truncated session behind.
func (s *FileSessionStorage) StoreSession(_ context.Context, data []byte) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store session: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store session: rename: %w", err)
	}
	return nil
}

// Remove deletes the persisted session, if any.
func (s *FileSessionStorage) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// sanitizePhone strips everything but digits so phone input variants map to
// the same session file.
func sanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "session"
	}
	return b.String()
}
