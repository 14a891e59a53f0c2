package manager

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tbman/internal/logging"
	"tbman/internal/store"
	"tbman/internal/types"
)

// Manager owns the session table and is the single writer of the session
// store. Long operations (start, stop, delete) serialize per session on
// opMu; table and field access is guarded by mu. opMu is always acquired
// before mu, and listings take only mu so they stay non-blocking.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	order    []string
	closed   bool

	store  store.SessionStore
	ports  *PortAllocator
	sup    *Supervisor
	host   string
	logger logging.Logger
}

type sessionState struct {
	opMu sync.Mutex

	// The fields below are guarded by Manager.mu.
	session *types.Session
	handle  *Handle
	status  types.SessionStatus
	deleted bool
}

// New loads the persisted session list and builds the in-memory table. A
// hand-edited file may omit id or port; both are assigned here and written
// back once. A corrupt store aborts construction so the file is never
// overwritten with a reset list.
func New(ctx context.Context, st store.SessionStore, ports *PortAllocator, sup *Supervisor, host string, logger logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	m := &Manager{
		sessions: make(map[string]*sessionState),
		store:    st,
		ports:    ports,
		sup:      sup,
		host:     host,
		logger:   logger,
	}

	persisted, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}

	assigned := false
	used := map[int]struct{}{}
	for _, session := range persisted {
		if session.Port > 0 {
			used[session.Port] = struct{}{}
		}
	}
	claimed := map[int]struct{}{}
	for _, session := range persisted {
		session.Paths = dedupePaths(session.Paths)
		if strings.TrimSpace(session.ID) == "" {
			session.ID = uuid.NewString()
			assigned = true
		}
		if _, dup := claimed[session.Port]; session.Port > 0 && dup {
			// A hand-edited file may list the same port twice; the
			// first session keeps it, later ones get a fresh one.
			session.Port = 0
		}
		if session.Port <= 0 {
			port, err := ports.Allocate(used)
			if err != nil {
				return nil, err
			}
			session.Port = port
			used[port] = struct{}{}
			assigned = true
		}
		claimed[session.Port] = struct{}{}
		m.sessions[session.ID] = &sessionState{
			session: session,
			status:  types.SessionStatusDefined,
		}
		m.order = append(m.order, session.ID)
	}

	if assigned {
		m.mu.Lock()
		err := m.persistLocked(ctx)
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CreateSession validates the paths, allocates a port and persists the new
// session. The process is not started.
func (m *Manager) CreateSession(ctx context.Context, title string, paths []string) (*types.Session, error) {
	resolved, err := ValidatePaths(paths)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	port, err := m.ports.Allocate(m.usedPortsLocked())
	if err != nil {
		return nil, err
	}
	session := &types.Session{
		ID:    uuid.NewString(),
		Title: strings.TrimSpace(title),
		Paths: resolved,
		Port:  port,
	}
	now := nowUTC()
	session.CreatedAt = &now

	m.sessions[session.ID] = &sessionState{
		session: session,
		status:  types.SessionStatusDefined,
	}
	m.order = append(m.order, session.ID)
	if err := m.persistLocked(ctx); err != nil {
		delete(m.sessions, session.ID)
		m.order = m.order[:len(m.order)-1]
		return nil, err
	}

	m.logger.Info("session_created",
		logging.F("session_id", session.ID),
		logging.F("title", session.Title),
		logging.F("port", session.Port),
	)
	return session.Clone(), nil
}

// UpdateSession changes title and/or paths. A nil field is left untouched.
// Changing paths invalidates the current symlink tree; the running process,
// if any, keeps serving the old tree until the session is restarted.
func (m *Manager) UpdateSession(ctx context.Context, id string, title *string, paths []string) error {
	state, err := m.getState(id)
	if err != nil {
		return err
	}
	state.opMu.Lock()
	defer state.opMu.Unlock()

	var resolved []string
	if paths != nil {
		resolved, err = ValidatePaths(paths)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if state.deleted {
		return &NotFoundError{ID: id}
	}
	if title != nil {
		state.session.Title = strings.TrimSpace(*title)
	}
	if resolved != nil {
		state.session.Paths = resolved
	}
	return m.persistLocked(ctx)
}

// StartSession builds the symlink tree and spawns the process. Starting an
// already running session is a no-op. A spawn failure leaves the session in
// the crashed state with no process and no tree on disk.
func (m *Manager) StartSession(ctx context.Context, id string) error {
	state, err := m.getState(id)
	if err != nil {
		return err
	}
	state.opMu.Lock()
	defer state.opMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if state.deleted {
		m.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	if state.handle != nil && m.sup.Alive(state.handle) {
		m.mu.Unlock()
		return nil
	}
	stale := state.handle
	state.handle = nil
	session := state.session.Clone()
	m.mu.Unlock()

	// A previous process may have crashed and left its tree behind.
	if stale != nil {
		_ = m.sup.Stop(stale)
	}

	logdir, err := BuildLogdir(session.Paths)
	if err != nil {
		return err
	}

	m.mu.Lock()
	state.status = types.SessionStatusStarting
	m.mu.Unlock()

	handle, err := m.sup.Start(session.ID, session.Title, logdir, session.Port)
	if err != nil {
		_ = RemoveLogdir(logdir)
		m.mu.Lock()
		state.status = types.SessionStatusCrashed
		m.mu.Unlock()
		m.logger.Error("session_start_failed",
			logging.F("session_id", session.ID),
			logging.F("error", err),
		)
		return err
	}

	m.mu.Lock()
	state.handle = handle
	state.status = types.SessionStatusRunning
	m.mu.Unlock()

	m.logger.Info("session_started",
		logging.F("session_id", session.ID),
		logging.F("port", session.Port),
		logging.F("pid", handle.PID()),
		logging.F("logdir", logdir),
	)
	return nil
}

// StopSession terminates the session's process if one is running. Stopping
// a stopped session is a no-op.
func (m *Manager) StopSession(ctx context.Context, id string) error {
	state, err := m.getState(id)
	if err != nil {
		return err
	}
	state.opMu.Lock()
	defer state.opMu.Unlock()

	m.mu.Lock()
	if state.deleted {
		m.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	handle := state.handle
	state.handle = nil
	state.status = types.SessionStatusStopped
	m.mu.Unlock()

	if handle != nil {
		if err := m.sup.Stop(handle); err != nil {
			return err
		}
		m.logger.Info("session_stopped", logging.F("session_id", id))
	}
	return nil
}

// DeleteSession stops the process if running, removes the session from the
// store and releases its port.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	state, err := m.getState(id)
	if err != nil {
		return err
	}
	state.opMu.Lock()
	defer state.opMu.Unlock()

	m.mu.Lock()
	if state.deleted {
		m.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	state.deleted = true
	handle := state.handle
	state.handle = nil
	index := indexOf(m.order, id)
	delete(m.sessions, id)
	m.order = removeID(m.order, id)
	if err := m.persistLocked(ctx); err != nil {
		// The store still holds the session, so keep the table entry;
		// otherwise a restart would resurrect a session we reported gone.
		state.deleted = false
		state.handle = handle
		m.sessions[id] = state
		m.order = insertID(m.order, index, id)
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if handle != nil {
		_ = m.sup.Stop(handle)
	}
	m.logger.Info("session_deleted", logging.F("session_id", id))
	return nil
}

// ListSessions returns a best-effort snapshot with liveness computed on
// demand, so a process that died silently shows up as crashed on the next
// listing.
func (m *Manager) ListSessions(ctx context.Context) []types.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.SessionInfo, 0, len(m.order))
	for _, id := range m.order {
		state, ok := m.sessions[id]
		if !ok {
			continue
		}
		out = append(out, m.infoLocked(state))
	}
	return out
}

// GetSession returns one session with its liveness.
func (m *Manager) GetSession(ctx context.Context, id string) (types.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return types.SessionInfo{}, &NotFoundError{ID: id}
	}
	return m.infoLocked(state), nil
}

func (m *Manager) infoLocked(state *sessionState) types.SessionInfo {
	if state.status == types.SessionStatusRunning && !m.sup.Alive(state.handle) {
		state.status = types.SessionStatusCrashed
		m.logger.Warn("session_crash_detected", logging.F("session_id", state.session.ID))
	}
	info := types.SessionInfo{
		Session: *state.session.Clone(),
		Status:  state.status,
		URL:     state.session.URL(m.host),
	}
	if state.status == types.SessionStatusRunning {
		info.PID = state.handle.PID()
	}
	return info
}

// Reconcile re-spawns a process for every persisted session, restoring the
// pre-restart state of the world. Failures are isolated per session and
// never abort the remaining ones. Cancelling ctx stops the sweep between
// sessions so a shutdown does not keep spawning children.
func (m *Manager) Reconcile(ctx context.Context) []types.ReconcileOutcome {
	m.mu.Lock()
	ids := append([]string{}, m.order...)
	m.mu.Unlock()

	outcomes := make([]types.ReconcileOutcome, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		outcome := types.ReconcileOutcome{SessionID: id}
		m.mu.Lock()
		if state, ok := m.sessions[id]; ok {
			outcome.Title = state.session.Title
			outcome.Port = state.session.Port
		}
		m.mu.Unlock()

		if err := m.StartSession(ctx, id); err != nil {
			outcome.Err = err.Error()
			m.logger.Error("reconcile_session_failed",
				logging.F("session_id", id),
				logging.F("error", err),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// StopAll stops every running session. Used on daemon shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := append([]string{}, m.order...)
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.StopSession(ctx, id); err != nil {
			m.logger.Warn("stop_all_session_failed",
				logging.F("session_id", id),
				logging.F("error", err),
			)
		}
	}
}

// Close stops all processes and releases the store. The manager is marked
// closed first, so a start racing the shutdown either finishes before its
// session is stopped or fails with ErrManagerClosed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.StopAll(ctx)
	return m.store.Close()
}

func (m *Manager) getState(id string) (*sessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return state, nil
}

func (m *Manager) usedPortsLocked() map[int]struct{} {
	used := make(map[int]struct{}, len(m.sessions))
	for _, state := range m.sessions {
		if state.session.Port > 0 {
			used[state.session.Port] = struct{}{}
		}
	}
	return used
}

func (m *Manager) persistLocked(ctx context.Context) error {
	sessions := make([]*types.Session, 0, len(m.order))
	for _, id := range m.order {
		if state, ok := m.sessions[id]; ok {
			sessions = append(sessions, state.session.Clone())
		}
	}
	if err := m.store.Save(ctx, sessions); err != nil {
		m.logger.Error("store_save_failed", logging.F("error", err))
		return err
	}
	return nil
}

func dedupePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := map[string]struct{}{}
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return len(ids)
}

func insertID(ids []string, index int, id string) []string {
	if index > len(ids) {
		index = len(ids)
	}
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}
