package client

import "tbman/internal/types"

type SessionsResponse struct {
	Sessions []types.SessionInfo `json:"sessions"`
}

type CreateSessionRequest struct {
	Title string   `json:"title"`
	Paths []string `json:"paths"`
	Start bool     `json:"start,omitempty"`
}

type UpdateSessionRequest struct {
	Title *string  `json:"title,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
	PID     int    `json:"pid"`
}
