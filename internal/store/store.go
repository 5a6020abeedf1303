// Package store persists small JSON records on disk, one file per key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// RepositoryKey holds the saved repository credentials.
const RepositoryKey = "s3Config"

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store is the persistence used by the message handlers.
type Store interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// FileStore keeps each key in <Dir>/<key>.json.
type FileStore struct {
	Dir string
	// StrictPerms, when true, also tightens a pre-existing directory to
	// 0700. New directories are always 0700 and records always 0600, since
	// records may contain passwords.
	StrictPerms bool
}

// DefaultDir is the per-user configuration directory for jusia.
func DefaultDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "jusia")
	}
	return ".jusia"
}

func (s *FileStore) ensureDir() error {
	if s == nil || s.Dir == "" {
		return errors.New("store dir not configured")
	}
	if err := os.MkdirAll(s.Dir, dirPerm); err != nil {
		return err
	}
	if s.StrictPerms {
		if info, err := os.Stat(s.Dir); err == nil && info.Mode()&0o777 != dirPerm {
			_ = os.Chmod(s.Dir, dirPerm)
		}
	}
	return nil
}

func (s *FileStore) pathFor(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

// Get decodes the record under key into v. It reports false when the key
// has never been written.
func (s *FileStore) Get(_ context.Context, key string, v any) (bool, error) {
	if err := s.ensureDir(); err != nil {
		return false, err
	}
	p, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Put writes v under key. The file is replaced atomically.
func (s *FileStore) Put(_ context.Context, key string, v any) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, p)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
