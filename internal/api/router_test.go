package api

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
	"sqpplus/internal/provision"
	"sqpplus/internal/script"
	"sqpplus/internal/shell"
	"sqpplus/internal/storage"
	"sqpplus/internal/ws"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type stubExec struct {
	present map[string]bool
}

func (s stubExec) LookPath(name string) (string, error) {
	if s.present[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%w: %s", shell.ErrNotFound, name)
}

func (s stubExec) Run(ctx context.Context, cmd shell.Command) (*shell.Result, error) {
	return &shell.Result{}, nil
}

func (s stubExec) Pipe(ctx context.Context, dir string, from, to shell.Command) (*shell.Result, error) {
	return &shell.Result{}, os.WriteFile(filepath.Join(dir, script.SteamCMDExeName), nil, 0755)
}

func newTestAPI(t *testing.T, present ...string) (*httptest.Server, string) {
	t.Helper()
	store, err := storage.NewGormStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if len(present) == 0 {
		present = []string{"wget", "tar", "screen"}
	}
	exec := stubExec{present: map[string]bool{}}
	for _, p := range present {
		exec.present[p] = true
	}

	base := filepath.Join(t.TempDir(), "games")
	api := &Server{
		Provisioner: provision.NewProvisioner(store, exec, nil, provision.Options{}),
		HubManager:  ws.NewHubManager(ws.DefaultHistorySize, time.Minute, nil),
		Log:         zap.NewNop(),
	}

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv, base
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func deployBodyFor(base, name string) map[string]string {
	return map[string]string{"name": name, "basePath": base, "rconSecret": "hunter2"}
}

func TestDeployAndLookup(t *testing.T) {
	srv, base := newTestAPI(t)

	resp, body := postJSON(t, srv.URL+"/servers", deployBodyFor(base, "alpha"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "hunter2") {
		t.Error("Secret must not be returned")
	}

	var inst struct {
		Name         string `json:"name"`
		InstancePath string `json:"instancePath"`
		GamePort     int    `json:"gamePort"`
		MaxPlayers   int    `json:"maxPlayers"`
	}
	if err := json.Unmarshal(body, &inst); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if inst.InstancePath != filepath.Join(base, "alpha") || inst.GamePort != 7787 || inst.MaxPlayers != 80 {
		t.Errorf("Defaults not applied: %+v", inst)
	}

	get, err := http.Get(srv.URL + "/servers/alpha")
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("GET /servers/alpha = %d", get.StatusCode)
	}

	missing, err := http.Get(srv.URL + "/servers/nope")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("GET /servers/nope = %d, want 404", missing.StatusCode)
	}

	list, err := http.Get(srv.URL + "/servers")
	if err != nil {
		t.Fatal(err)
	}
	defer list.Body.Close()
	var all []map[string]any
	json.NewDecoder(list.Body).Decode(&all)
	if len(all) != 1 {
		t.Errorf("Expected one listed server, got %d", len(all))
	}
}

func TestDeployRequiresBasePath(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp, body := postJSON(t, srv.URL+"/servers", map[string]string{"name": "alpha", "rconSecret": "hunter2"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Fields map[string][]string `json:"fields"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if msgs := payload.Fields["basePath"]; len(msgs) != 1 || msgs[0] != "Base Installation Path is required." {
		t.Errorf("basePath messages = %v", msgs)
	}
}

func TestDeployValidationEchoesValues(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp, body := postJSON(t, srv.URL+"/servers", map[string]string{
		"name":       "bad name",
		"basePath":   "relative/path",
		"gamePort":   "70000",
		"rconSecret": "hunter2",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	var payload struct {
		Errors []string          `json:"errors"`
		Values map[string]string `json:"values"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if len(payload.Errors) != 3 {
		t.Errorf("Expected 3 errors, got %v", payload.Errors)
	}
	if payload.Values["name"] != "bad name" || payload.Values["gamePort"] != "70000" {
		t.Errorf("Entered values not echoed: %v", payload.Values)
	}
	if _, ok := payload.Values["rconSecret"]; ok {
		t.Error("Secret must not be echoed")
	}
}

func TestDeployConflict(t *testing.T) {
	srv, base := newTestAPI(t)

	if resp, body := postJSON(t, srv.URL+"/servers", deployBodyFor(base, "alpha")); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first deploy: %d %s", resp.StatusCode, body)
	}
	if resp, _ := postJSON(t, srv.URL+"/servers", deployBodyFor(base, "alpha")); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
}

func TestDeleteServer(t *testing.T) {
	srv, base := newTestAPI(t)
	postJSON(t, srv.URL+"/servers", deployBodyFor(base, "alpha"))

	del := func() int {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/servers/alpha?purge=true", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := del(); code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", code)
	}
	if code := del(); code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", code)
	}
}

func TestDependencies(t *testing.T) {
	srv, _ := newTestAPI(t, "curl", "tar")

	resp, err := http.Get(srv.URL + "/dependencies")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var report struct {
		Downloader string   `json:"downloader"`
		Missing    []string `json:"missing"`
		Message    string   `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&report)
	if report.Downloader != "curl" {
		t.Errorf("Downloader = %q, want curl", report.Downloader)
	}
	if len(report.Missing) != 1 || report.Missing[0] != "screen" {
		t.Errorf("Missing = %v, want [screen]", report.Missing)
	}
	if !strings.Contains(report.Message, "screen") {
		t.Errorf("Message lacks install hint: %q", report.Message)
	}
}

func TestDeployStreamsProgress(t *testing.T) {
	srv, base := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress/req-42"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	body := deployBodyFor(base, "alpha")
	body["requestId"] = "req-42"
	if resp, out := postJSON(t, srv.URL+"/servers", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("deploy: %d %s", resp.StatusCode, out)
	}

	var last struct {
		State    string `json:"state"`
		Progress int    `json:"progress"`
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		json.Unmarshal(msg, &last)
	}
	if last.State != string(provision.StateDone) || last.Progress != 100 {
		t.Errorf("Unexpected final event: %+v", last)
	}
}

func TestCORSPreflightAndMetrics(t *testing.T) {
	srv, base := newTestAPI(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/servers", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Unexpected preflight response: %d %v", resp.StatusCode, resp.Header)
	}

	postJSON(t, srv.URL+"/servers", deployBodyFor(base, "alpha"))
	m, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Body.Close()
	out, _ := io.ReadAll(m.Body)
	if !strings.Contains(string(out), "sqpplus_deployments_total") {
		t.Error("Deployment counter not exported")
	}
}
