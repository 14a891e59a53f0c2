//go:build !windows

package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tbman/internal/manager"
	"tbman/internal/store"
	"tbman/internal/types"
)

const testToken = "test-token"

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tensorboard")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, script string) *httptest.Server {
	t.Helper()
	st := store.NewFileSessionStore(filepath.Join(t.TempDir(), "sessions.json"))
	alloc := manager.NewPortAllocator(38000, 39000)
	sup := manager.NewSupervisor(writeStub(t, script), "localhost", 200*time.Millisecond, nil)

	mgr, err := manager.New(context.Background(), st, alloc, sup, "localhost", nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() {
		mgr.StopAll(context.Background())
	})

	api := &API{Version: "test", Manager: mgr}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	server := httptest.NewServer(TokenAuthMiddleware(testToken, mux))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func createTestSession(t *testing.T, server *httptest.Server, title string, paths []string) types.Session {
	t.Helper()
	resp, body := doRequest(t, server, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		Title: title,
		Paths: paths,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var session types.Session
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t, "sleep 30")
	dir := t.TempDir()

	session := createTestSession(t, server, "mnist", []string{dir})
	if session.ID == "" || session.Port < 38000 || session.Port >= 39000 {
		t.Fatalf("unexpected session: %#v", session)
	}

	// List shows the defined session.
	resp, body := doRequest(t, server, http.MethodGet, "/v1/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var list struct {
		Sessions []types.SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Status != types.SessionStatusDefined {
		t.Fatalf("unexpected list: %#v", list.Sessions)
	}

	// Start, then the single-session view reports running with a URL.
	resp, body = doRequest(t, server, http.MethodPost, "/v1/sessions/"+session.ID+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	resp, body = doRequest(t, server, http.MethodGet, "/v1/sessions/"+session.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Status != types.SessionStatusRunning || info.PID <= 0 {
		t.Fatalf("unexpected info: %#v", info)
	}
	if info.URL != fmt.Sprintf("http://localhost:%d", session.Port) {
		t.Fatalf("unexpected url: %q", info.URL)
	}

	// Stop and delete.
	resp, body = doRequest(t, server, http.MethodPost, "/v1/sessions/"+session.ID+"/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	resp, body = doRequest(t, server, http.MethodDelete, "/v1/sessions/"+session.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	resp, _ = doRequest(t, server, http.MethodGet, "/v1/sessions/"+session.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateSessionWithStartFlag(t *testing.T) {
	server := newTestServer(t, "sleep 30")
	dir := t.TempDir()

	resp, body := doRequest(t, server, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		Title: "mnist",
		Paths: []string{dir},
		Start: true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var session types.Session
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	resp, body = doRequest(t, server, http.MethodGet, "/v1/sessions/"+session.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Status != types.SessionStatusRunning {
		t.Fatalf("expected running, got %s", info.Status)
	}
}

func TestCreateSessionInvalidPathReturns400(t *testing.T) {
	server := newTestServer(t, "sleep 30")

	resp, body := doRequest(t, server, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		Title: "mnist",
		Paths: []string{filepath.Join(t.TempDir(), "missing")},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
	}
}

func TestCreateSessionMalformedBodyReturns400(t *testing.T) {
	server := newTestServer(t, "sleep 30")

	req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/sessions", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	server := newTestServer(t, "sleep 30")

	resp, _ := doRequest(t, server, http.MethodGet, "/v1/sessions/no-such-id", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, server, http.MethodPost, "/v1/sessions/no-such-id/start", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateSessionRequiresChanges(t *testing.T) {
	server := newTestServer(t, "sleep 30")
	session := createTestSession(t, server, "mnist", []string{t.TempDir()})

	resp, body := doRequest(t, server, http.MethodPatch, "/v1/sessions/"+session.ID, UpdateSessionRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
	}

	title := "renamed"
	resp, body = doRequest(t, server, http.MethodPatch, "/v1/sessions/"+session.ID, UpdateSessionRequest{Title: &title})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, server, http.MethodGet, "/v1/sessions/"+session.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Title != "renamed" {
		t.Fatalf("expected renamed title, got %q", info.Title)
	}
}

func TestSpawnFailureReturns500(t *testing.T) {
	server := newTestServer(t, "exit 1")
	session := createTestSession(t, server, "mnist", []string{t.TempDir()})

	resp, body := doRequest(t, server, http.MethodPost, "/v1/sessions/"+session.ID+"/start", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", resp.StatusCode, body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, "sleep 30")

	resp, _ := doRequest(t, server, http.MethodPut, "/v1/sessions", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	session := createTestSession(t, server, "mnist", []string{t.TempDir()})
	resp, _ = doRequest(t, server, http.MethodGet, "/v1/sessions/"+session.ID+"/start", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET start, got %d", resp.StatusCode)
	}
}
