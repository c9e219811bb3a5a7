package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/civicvoice/civicvoice/client-go/internal/models"
)

// FileStore keeps each key as a JSON document in its own file under dir.
// Writes go through a temp file and rename so a concurrent reader never sees
// a torn document; the last writer wins, which matches the documented
// multi-process semantics.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory (0700) if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string { return filepath.Join(s.dir, key) }

func (s *FileStore) write(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, s.path(key))
}

func (s *FileStore) read(key string, v interface{}) (bool, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	return s.write(tokensKey, pair)
}

func (s *FileStore) LoadTokens(ctx context.Context) (models.TokenPair, bool, error) {
	var pair models.TokenPair
	ok, err := s.read(tokensKey, &pair)
	return pair, ok, err
}

func (s *FileStore) SaveUser(ctx context.Context, u *models.UserIdentity) error {
	return s.write(userKey, u)
}

func (s *FileStore) LoadUser(ctx context.Context) (*models.UserIdentity, bool, error) {
	var u models.UserIdentity
	ok, err := s.read(userKey, &u)
	if !ok || err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	for _, key := range []string{tokensKey, userKey} {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
