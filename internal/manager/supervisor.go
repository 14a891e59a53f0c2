package manager

import (
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"tbman/internal/logging"
)

const (
	defaultReadyWait  = 3 * time.Second
	readyPollInterval = 50 * time.Millisecond
	terminateWait     = 3 * time.Second
	killWait          = 2 * time.Second
)

// Handle represents one live TensorBoard process. Handles live only in
// memory; they are never persisted. The handle owns its logdir: the symlink
// tree is removed when the process stops.
type Handle struct {
	SessionID string
	Port      int
	RootDir   string

	process *os.Process
	done    chan struct{}
}

// PID returns the OS process id, or 0 when the process never started.
func (h *Handle) PID() int {
	if h == nil || h.process == nil {
		return 0
	}
	return h.process.Pid
}

// Supervisor spawns and terminates TensorBoard processes. It is the only
// component allowed to signal them.
type Supervisor struct {
	command   string
	host      string
	readyWait time.Duration
	outputDir string
	logger    logging.Logger
}

func NewSupervisor(command, host string, readyWait time.Duration, logger logging.Logger) *Supervisor {
	if command == "" {
		command = "tensorboard"
	}
	if host == "" {
		host = "localhost"
	}
	if readyWait <= 0 {
		readyWait = defaultReadyWait
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Supervisor{command: command, host: host, readyWait: readyWait, logger: logger}
}

// SetOutputDir makes the supervisor append child stdout/stderr to
// <dir>/<session-id>.log instead of discarding it.
func (s *Supervisor) SetOutputDir(dir string) {
	s.outputDir = dir
}

// Start launches TensorBoard against rootDir on port and waits, for at most
// the ready window, until the port accepts connections. A process that
// exits inside the window fails with SpawnError; one that is alive but not
// yet serving when the window closes is considered started, since large log
// directories can delay the first bind.
func (s *Supervisor) Start(sessionID, title, rootDir string, port int) (*Handle, error) {
	if _, err := exec.LookPath(s.command); err != nil {
		return nil, &SpawnError{Command: s.command, Err: err}
	}

	args := []string{
		"--host", s.host,
		"--logdir", rootDir,
		"--port", strconv.Itoa(port),
		"--window_title", title,
	}
	cmd := exec.Command(s.command, args...)
	output, err := s.openOutput(sessionID)
	if err != nil {
		return nil, err
	}
	if output != nil {
		cmd.Stdout = output
		cmd.Stderr = output
	}

	if err := cmd.Start(); err != nil {
		if output != nil {
			_ = output.Close()
		}
		return nil, &SpawnError{Command: s.command, Err: err}
	}

	handle := &Handle{
		SessionID: sessionID,
		Port:      port,
		RootDir:   rootDir,
		process:   cmd.Process,
		done:      make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		if output != nil {
			_ = output.Close()
		}
		close(handle.done)
	}()

	s.logger.Info("process_spawned",
		logging.F("session_id", sessionID),
		logging.F("pid", handle.PID()),
		logging.F("port", port),
	)

	if err := s.waitReady(handle); err != nil {
		return nil, err
	}
	return handle, nil
}

func (s *Supervisor) waitReady(handle *Handle) error {
	deadline := time.Now().Add(s.readyWait)
	for {
		select {
		case <-handle.done:
			return &SpawnError{Command: s.command, Err: errors.New("process exited during startup")}
		case <-time.After(readyPollInterval):
		}
		if s.portServing(handle.Port) {
			return nil
		}
		if time.Now().After(deadline) {
			return nil
		}
	}
}

func (s *Supervisor) portServing(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.dialHost(), strconv.Itoa(port)), readyPollInterval)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (s *Supervisor) dialHost() string {
	switch s.host {
	case "0.0.0.0", "::":
		return "127.0.0.1"
	default:
		return s.host
	}
}

// Stop terminates the process gracefully, escalates to SIGKILL after a
// bounded wait, then removes the handle's logdir. Stopping an already
// stopped handle is a no-op.
func (s *Supervisor) Stop(handle *Handle) error {
	if handle == nil {
		return nil
	}
	defer func() {
		_ = RemoveLogdir(handle.RootDir)
	}()

	if !s.Alive(handle) {
		return nil
	}

	_ = signalTerminate(handle.process)
	select {
	case <-handle.done:
		return nil
	case <-time.After(terminateWait):
	}

	s.logger.Warn("process_kill_escalation",
		logging.F("session_id", handle.SessionID),
		logging.F("pid", handle.PID()),
	)
	_ = signalKill(handle.process)
	select {
	case <-handle.done:
	case <-time.After(killWait):
	}
	return nil
}

// Alive is a non-blocking liveness probe. Probe cadence is the caller's
// concern; the supervisor runs no background poller.
func (s *Supervisor) Alive(handle *Handle) bool {
	if handle == nil || handle.process == nil {
		return false
	}
	select {
	case <-handle.done:
		return false
	default:
		return true
	}
}

func (s *Supervisor) openOutput(sessionID string) (*os.File, error) {
	if s.outputDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(s.outputDir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(s.outputDir, sessionID+".log")
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
