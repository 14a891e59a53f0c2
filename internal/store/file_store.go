package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tbman/internal/types"
)

// FileSessionStore persists sessions as a JSON array so the file stays
// hand-editable. The layout matches the records users may write by hand:
// title plus paths, with id and port filled in by the manager.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Path() string {
	return s.path
}

func (s *FileSessionStore) Close() error {
	return nil
}

func (s *FileSessionStore) Load(ctx context.Context) ([]*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*types.Session{}, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []*types.Session{}, nil
	}

	var sessions []*types.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, &CorruptError{Path: s.path, Err: err}
	}
	out := make([]*types.Session, 0, len(sessions))
	for _, session := range sessions {
		if session == nil {
			continue
		}
		out = append(out, session.Clone())
	}
	return out, nil
}

func (s *FileSessionStore) Save(ctx context.Context, sessions []*types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessions == nil {
		sessions = []*types.Session{}
	}
	return writeJSONAtomic(s.path, sessions)
}

// writeJSONAtomic writes v to a temporary file in the target directory and
// renames it over path, so a crash mid-write never leaves a truncated file
// under the canonical name.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	file, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(file.Name())
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
