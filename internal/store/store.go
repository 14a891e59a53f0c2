package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tbman/internal/types"
)

const (
	BackendFile  = "file"
	BackendBbolt = "bbolt"
)

// SessionStore is the durable record of session definitions. Load returns
// sessions in their persisted order; Save atomically replaces the whole
// list. Hand-edited records may lack id or port; stores return them as-is
// and the manager assigns the missing fields.
type SessionStore interface {
	Load(ctx context.Context) ([]*types.Session, error)
	Save(ctx context.Context, sessions []*types.Session) error
	Path() string
	Close() error
}

// CorruptError marks a persisted file whose content could not be parsed.
// Callers must surface it and refuse to overwrite the file.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("session store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err stems from an unparseable store file.
func IsCorrupt(err error) bool {
	var corrupt *CorruptError
	return errors.As(err, &corrupt)
}

// Open returns the session store for the configured backend.
func Open(backend, path string) (SessionStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session store path is required")
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileSessionStore(path), nil
	case BackendBbolt:
		return NewBboltSessionStore(path)
	default:
		return nil, errors.New("unsupported session store backend: " + backend)
	}
}
