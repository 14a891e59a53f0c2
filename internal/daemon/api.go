package daemon

import (
	"context"

	"tbman/internal/logging"
)

type API struct {
	Version  string
	Manager  *Manager
	Logger   logging.Logger
	Shutdown func(context.Context) error
}

type CreateSessionRequest struct {
	Title string   `json:"title"`
	Paths []string `json:"paths"`
	// Start spawns the process right after creation, matching the original
	// single-step launch flow.
	Start bool `json:"start,omitempty"`
}

type UpdateSessionRequest struct {
	Title *string  `json:"title,omitempty"`
	Paths []string `json:"paths,omitempty"`
}
