package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tbmanclient "tbman/internal/client"
	"tbman/internal/types"
)

func TestDaemonCommandKillFlag(t *testing.T) {
	var calls []string
	cmd := NewDaemonCommand(
		&bytes.Buffer{},
		func(background bool, storePath string) error {
			calls = append(calls, "run")
			if background {
				calls = append(calls, "background")
			}
			return nil
		},
		func() error {
			calls = append(calls, "kill")
			return nil
		},
	)

	if err := cmd.Run([]string{"--kill"}); err != nil {
		t.Fatalf("expected kill run to succeed, got err=%v", err)
	}
	if strings.Join(calls, ",") != "kill" {
		t.Fatalf("unexpected call order: %v", calls)
	}
}

func TestDaemonCommandForceKillsFirst(t *testing.T) {
	var calls []string
	cmd := NewDaemonCommand(
		&bytes.Buffer{},
		func(background bool, storePath string) error {
			calls = append(calls, "run")
			return nil
		},
		func() error {
			calls = append(calls, "kill")
			return nil
		},
	)

	if err := cmd.Run([]string{"--force"}); err != nil {
		t.Fatalf("expected force run to succeed, got err=%v", err)
	}
	if strings.Join(calls, ",") != "kill,run" {
		t.Fatalf("unexpected call order: %v", calls)
	}
}

func TestDaemonCommandForwardsStoreOverride(t *testing.T) {
	var gotStore string
	cmd := NewDaemonCommand(
		&bytes.Buffer{},
		func(background bool, storePath string) error {
			gotStore = storePath
			return nil
		},
		func() error { return nil },
	)

	if err := cmd.Run([]string{"--store", "/tmp/custom.json"}); err != nil {
		t.Fatalf("expected daemon run to succeed, got err=%v", err)
	}
	if gotStore != "/tmp/custom.json" {
		t.Fatalf("unexpected store override: %q", gotStore)
	}
}

func TestCreateCommandSendsAbsolutePaths(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{
		createSessionResp: &types.Session{ID: "session-123"},
	}
	cmd := NewCreateCommand(stdout, &bytes.Buffer{}, fixedFactory(fake))

	err := cmd.Run([]string{
		"--title", "mnist",
		"--path", "runs/mnist",
		"--start",
		"runs/extra",
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got err=%v", err)
	}
	if fake.ensureDaemonCalls != 1 {
		t.Fatalf("expected ensure daemon once, got %d", fake.ensureDaemonCalls)
	}
	if len(fake.createRequests) != 1 {
		t.Fatalf("expected one create request, got %d", len(fake.createRequests))
	}
	req := fake.createRequests[0]
	if req.Title != "mnist" || !req.Start {
		t.Fatalf("unexpected create request basics: %#v", req)
	}
	if len(req.Paths) != 2 {
		t.Fatalf("expected two paths, got %#v", req.Paths)
	}
	for _, path := range req.Paths {
		if !filepath.IsAbs(path) {
			t.Fatalf("expected absolute path, got %q", path)
		}
	}
	if got := stdout.String(); got != "session-123\n" {
		t.Fatalf("unexpected stdout: %q", got)
	}
}

func TestCreateCommandDefaultsTitleToFirstDir(t *testing.T) {
	fake := &fakeCommandClient{
		createSessionResp: &types.Session{ID: "s"},
	}
	cmd := NewCreateCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run([]string{"/data/runs/mnist"}); err != nil {
		t.Fatalf("expected create to succeed, got err=%v", err)
	}
	if len(fake.createRequests) != 1 || fake.createRequests[0].Title != "mnist" {
		t.Fatalf("unexpected create requests: %#v", fake.createRequests)
	}
}

func TestCreateCommandRequiresPath(t *testing.T) {
	cmd := NewCreateCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedFactory(&fakeCommandClient{}))
	err := cmd.Run([]string{"--title", "empty"})
	if err == nil || !strings.Contains(err.Error(), "log directory") {
		t.Fatalf("expected path validation error, got %v", err)
	}
}

func TestPSCommandPrintsSessions(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{
		sessionsResp: []types.SessionInfo{
			{
				Session: types.Session{ID: "s1", Title: "mnist", Port: 8412},
				Status:  types.SessionStatusRunning,
				URL:     "http://localhost:8412",
				PID:     42,
			},
		},
	}
	cmd := NewPSCommand(stdout, &bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run(nil); err != nil {
		t.Fatalf("expected ps to succeed, got err=%v", err)
	}
	if fake.ensureDaemonCalls != 1 {
		t.Fatalf("expected ensure daemon once, got %d", fake.ensureDaemonCalls)
	}
	if fake.listSessionsCalls != 1 {
		t.Fatalf("expected list sessions once, got %d", fake.listSessionsCalls)
	}
	out := stdout.String()
	if !strings.Contains(out, "ID") || !strings.Contains(out, "STATUS") || !strings.Contains(out, "PORT") {
		t.Fatalf("expected header in output, got %q", out)
	}
	if !strings.Contains(out, "s1") || !strings.Contains(out, "mnist") || !strings.Contains(out, "8412") {
		t.Fatalf("expected session row in output, got %q", out)
	}
}

func TestStartCommandPrintsURL(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{
		getSessionResp: &types.SessionInfo{
			Session: types.Session{ID: "s1", Port: 8412},
			Status:  types.SessionStatusRunning,
			URL:     "http://localhost:8412",
		},
	}
	cmd := NewStartCommand(stdout, &bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run([]string{"s1"}); err != nil {
		t.Fatalf("expected start to succeed, got err=%v", err)
	}
	if fake.startSessionCalls != 1 || fake.startSessionID != "s1" {
		t.Fatalf("unexpected start call details: calls=%d id=%q", fake.startSessionCalls, fake.startSessionID)
	}
	if got := stdout.String(); got != "http://localhost:8412\n" {
		t.Fatalf("unexpected stdout: %q", got)
	}
}

func TestStartCommandRequiresID(t *testing.T) {
	cmd := NewStartCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedFactory(&fakeCommandClient{}))
	err := cmd.Run(nil)
	if err == nil || !strings.Contains(err.Error(), "session id") {
		t.Fatalf("expected id validation error, got %v", err)
	}
}

func TestStopCommandStopsSession(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{}
	cmd := NewStopCommand(stdout, &bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run([]string{"s1"}); err != nil {
		t.Fatalf("expected stop to succeed, got err=%v", err)
	}
	if fake.stopSessionCalls != 1 || fake.stopSessionID != "s1" {
		t.Fatalf("unexpected stop call details: calls=%d id=%q", fake.stopSessionCalls, fake.stopSessionID)
	}
	if got := stdout.String(); got != "ok\n" {
		t.Fatalf("unexpected stdout: %q", got)
	}
}

func TestRMCommandDeletesEachSession(t *testing.T) {
	fake := &fakeCommandClient{}
	cmd := NewRMCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run([]string{"s1", "s2"}); err != nil {
		t.Fatalf("expected rm to succeed, got err=%v", err)
	}
	if len(fake.deletedIDs) != 2 || fake.deletedIDs[0] != "s1" || fake.deletedIDs[1] != "s2" {
		t.Fatalf("unexpected deleted ids: %#v", fake.deletedIDs)
	}
}

func TestUpdateCommandSendsPartialRequest(t *testing.T) {
	fake := &fakeCommandClient{}
	cmd := NewUpdateCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run([]string{"--title", "renamed", "s1"}); err != nil {
		t.Fatalf("expected update to succeed, got err=%v", err)
	}
	if len(fake.updateRequests) != 1 {
		t.Fatalf("expected one update request, got %d", len(fake.updateRequests))
	}
	req := fake.updateRequests[0]
	if req.Title == nil || *req.Title != "renamed" {
		t.Fatalf("unexpected title: %#v", req.Title)
	}
	if len(req.Paths) != 0 {
		t.Fatalf("expected no paths, got %#v", req.Paths)
	}
	if fake.updateSessionID != "s1" {
		t.Fatalf("unexpected session id: %q", fake.updateSessionID)
	}
}

func TestUpdateCommandRequiresChange(t *testing.T) {
	cmd := NewUpdateCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedFactory(&fakeCommandClient{}))
	err := cmd.Run([]string{"s1"})
	if err == nil || !strings.Contains(err.Error(), "--title or --path") {
		t.Fatalf("expected change validation error, got %v", err)
	}
}

func TestUICommandEnsuresDaemonAndRunsUI(t *testing.T) {
	fake := &fakeCommandClient{}
	cmd := NewUICommand(&bytes.Buffer{}, fixedFactory(fake))

	if err := cmd.Run(nil); err != nil {
		t.Fatalf("expected ui command to succeed, got err=%v", err)
	}
	if fake.ensureDaemonCalls != 1 {
		t.Fatalf("expected ensure daemon once, got %d", fake.ensureDaemonCalls)
	}
	if fake.runUICalls != 1 {
		t.Fatalf("expected ui runner once, got %d", fake.runUICalls)
	}
}

func TestKillDaemonTreatsMissingDaemonAsSuccess(t *testing.T) {
	fake := &fakeCommandClient{
		shutdownErr: errors.New("dial tcp 127.0.0.1:8093: connect: connection refused"),
	}
	if err := killDaemonWithFactory(fixedFactory(fake)); err != nil {
		t.Fatalf("expected missing daemon to be treated as success, got err=%v", err)
	}
}

func fixedFactory(fake *fakeCommandClient) clientFactory {
	return func() (commandClient, error) {
		return fake, nil
	}
}

type fakeCommandClient struct {
	ensureDaemonErr   error
	ensureDaemonCalls int

	listSessionsErr   error
	listSessionsCalls int
	sessionsResp      []types.SessionInfo

	getSessionErr  error
	getSessionResp *types.SessionInfo

	createSessionErr  error
	createSessionResp *types.Session
	createRequests    []tbmanclient.CreateSessionRequest

	updateSessionErr error
	updateRequests   []tbmanclient.UpdateSessionRequest
	updateSessionID  string

	deleteSessionErr error
	deletedIDs       []string

	startSessionErr   error
	startSessionCalls int
	startSessionID    string

	stopSessionErr   error
	stopSessionCalls int
	stopSessionID    string

	shutdownErr error
	healthErr   error
	healthResp  *tbmanclient.HealthResponse
	runUIErr    error
	runUICalls  int
}

func (f *fakeCommandClient) EnsureDaemon(context.Context) error {
	f.ensureDaemonCalls++
	return f.ensureDaemonErr
}

func (f *fakeCommandClient) Health(context.Context) (*tbmanclient.HealthResponse, error) {
	return f.healthResp, f.healthErr
}

func (f *fakeCommandClient) ListSessions(context.Context) ([]types.SessionInfo, error) {
	f.listSessionsCalls++
	return f.sessionsResp, f.listSessionsErr
}

func (f *fakeCommandClient) GetSession(context.Context, string) (*types.SessionInfo, error) {
	if f.getSessionErr != nil {
		return nil, f.getSessionErr
	}
	if f.getSessionResp == nil {
		return nil, errors.New("getSessionResp not configured")
	}
	return f.getSessionResp, nil
}

func (f *fakeCommandClient) CreateSession(_ context.Context, req tbmanclient.CreateSessionRequest) (*types.Session, error) {
	f.createRequests = append(f.createRequests, req)
	if f.createSessionErr != nil {
		return nil, f.createSessionErr
	}
	if f.createSessionResp == nil {
		return nil, errors.New("createSessionResp not configured")
	}
	return f.createSessionResp, nil
}

func (f *fakeCommandClient) UpdateSession(_ context.Context, id string, req tbmanclient.UpdateSessionRequest) error {
	f.updateSessionID = id
	f.updateRequests = append(f.updateRequests, req)
	return f.updateSessionErr
}

func (f *fakeCommandClient) DeleteSession(_ context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteSessionErr
}

func (f *fakeCommandClient) StartSession(_ context.Context, id string) error {
	f.startSessionCalls++
	f.startSessionID = id
	return f.startSessionErr
}

func (f *fakeCommandClient) StopSession(_ context.Context, id string) error {
	f.stopSessionCalls++
	f.stopSessionID = id
	return f.stopSessionErr
}

func (f *fakeCommandClient) ShutdownDaemon(context.Context) error {
	return f.shutdownErr
}

func (f *fakeCommandClient) RunUI() error {
	f.runUICalls++
	return f.runUIErr
}
