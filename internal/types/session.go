package types

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	// SessionStatusDefined means the session exists but no process has been
	// started for it since the daemon came up.
	SessionStatusDefined  SessionStatus = "defined"
	SessionStatusStarting SessionStatus = "starting"
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusStopped  SessionStatus = "stopped"
	SessionStatusCrashed  SessionStatus = "crashed"
)

// Session is a named group of log directories served by one TensorBoard
// process on one port. ID and Port are stable across daemon restarts so
// bookmarked URLs stay valid.
type Session struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Paths     []string   `json:"paths"`
	Port      int        `json:"port"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copy := *s
	copy.Paths = append([]string{}, s.Paths...)
	return &copy
}

// URL is the address the session's TensorBoard listens on.
func (s *Session) URL(host string) string {
	if s == nil || s.Port <= 0 {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// SessionInfo is a session plus its liveness, as reported by listings.
// Status is computed on demand and never persisted.
type SessionInfo struct {
	Session
	Status SessionStatus `json:"status"`
	URL    string        `json:"url,omitempty"`
	PID    int           `json:"pid,omitempty"`
}

// ReconcileOutcome reports the per-session result of startup reconciliation.
type ReconcileOutcome struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Port      int    `json:"port"`
	Err       string `json:"error,omitempty"`
}

func (o ReconcileOutcome) OK() bool {
	return o.Err == ""
}
