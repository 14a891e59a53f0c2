package daemon

import (
	"context"
	"errors"
	"strings"

	"tbman/internal/logging"
	"tbman/internal/manager"
	"tbman/internal/store"
	"tbman/internal/types"
)

// SessionService adapts the session manager to the API, translating the
// core error taxonomy into service errors with HTTP-mappable kinds.
type SessionService struct {
	manager *Manager
	logger  logging.Logger
}

// Manager is the slice of the core the API depends on.
type Manager = manager.Manager

func NewSessionService(mgr *Manager, logger logging.Logger) *SessionService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionService{manager: mgr, logger: logger}
}

func (s *SessionService) List(ctx context.Context) ([]types.SessionInfo, error) {
	if s.manager == nil {
		return nil, unavailableError("session manager not available", nil)
	}
	return s.manager.ListSessions(ctx), nil
}

func (s *SessionService) Get(ctx context.Context, id string) (types.SessionInfo, error) {
	if s.manager == nil {
		return types.SessionInfo{}, unavailableError("session manager not available", nil)
	}
	if strings.TrimSpace(id) == "" {
		return types.SessionInfo{}, invalidError("session id is required", nil)
	}
	info, err := s.manager.GetSession(ctx, id)
	if err != nil {
		return types.SessionInfo{}, mapManagerError(err)
	}
	return info, nil
}

func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*types.Session, error) {
	if s.manager == nil {
		return nil, unavailableError("session manager not available", nil)
	}
	session, err := s.manager.CreateSession(ctx, req.Title, req.Paths)
	if err != nil {
		return nil, mapManagerError(err)
	}
	if req.Start {
		if err := s.manager.StartSession(ctx, session.ID); err != nil {
			// The session exists; the caller can retry the start.
			return session, mapManagerError(err)
		}
	}
	return session, nil
}

func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) error {
	if s.manager == nil {
		return unavailableError("session manager not available", nil)
	}
	if strings.TrimSpace(id) == "" {
		return invalidError("session id is required", nil)
	}
	if req.Title == nil && req.Paths == nil {
		return invalidError("nothing to update", nil)
	}
	if err := s.manager.UpdateSession(ctx, id, req.Title, req.Paths); err != nil {
		return mapManagerError(err)
	}
	return nil
}

func (s *SessionService) Start(ctx context.Context, id string) error {
	if s.manager == nil {
		return unavailableError("session manager not available", nil)
	}
	if strings.TrimSpace(id) == "" {
		return invalidError("session id is required", nil)
	}
	if err := s.manager.StartSession(ctx, id); err != nil {
		return mapManagerError(err)
	}
	return nil
}

func (s *SessionService) Stop(ctx context.Context, id string) error {
	if s.manager == nil {
		return unavailableError("session manager not available", nil)
	}
	if strings.TrimSpace(id) == "" {
		return invalidError("session id is required", nil)
	}
	if err := s.manager.StopSession(ctx, id); err != nil {
		return mapManagerError(err)
	}
	return nil
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	if s.manager == nil {
		return unavailableError("session manager not available", nil)
	}
	if strings.TrimSpace(id) == "" {
		return invalidError("session id is required", nil)
	}
	if err := s.manager.DeleteSession(ctx, id); err != nil {
		return mapManagerError(err)
	}
	return nil
}

func mapManagerError(err error) error {
	var (
		invalidPath *manager.InvalidPathError
		notFound    *manager.NotFoundError
		exhausted   *manager.PortExhaustionError
		spawn       *manager.SpawnError
	)
	switch {
	case errors.As(err, &invalidPath):
		return invalidError(err.Error(), err)
	case errors.As(err, &notFound):
		return notFoundError(err.Error(), err)
	case errors.As(err, &exhausted):
		return conflictError(err.Error(), err)
	case errors.As(err, &spawn):
		return unavailableError(err.Error(), err)
	case store.IsCorrupt(err):
		return unavailableError(err.Error(), err)
	default:
		return unavailableError(err.Error(), err)
	}
}
