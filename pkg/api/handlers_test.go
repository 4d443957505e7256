package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openlio/liocfg/pkg/configstore"
	"github.com/openlio/liocfg/pkg/logging"
	"github.com/openlio/liocfg/pkg/target"
)

const testConfig = `storage fileio disk vm1 {
    path /store/vm1.img
    size 1MB
}
`

func newTestServer(t *testing.T) (*Server, *configstore.Store) {
	t.Helper()
	store, err := configstore.New(configstore.Options{
		Backend:  target.NewMemBackend(),
		SavePath: filepath.Join(t.TempDir(), "save.lio"),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Config{
		Addr:     "127.0.0.1:0",
		Store:    store,
		EventBuf: logging.NewEventBuffer(16),
	})
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func setBody(t *testing.T, text string) string {
	t.Helper()
	data, err := json.Marshal(ConfigRequest{Text: text})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decodeResponse(t, w); !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
}

func TestConfigHandlers(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))
	if w.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d: %s", w.Code, w.Body)
	}

	w = doRequest(t, srv, "GET", "/api/config", "")
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]any)
	text := data["config"].(string)
	if !strings.Contains(text, "disk vm1") || !strings.Contains(text, "size 1.0MB") {
		t.Errorf("unexpected config dump: %q", text)
	}
	if !strings.Contains(text, "buffered yes") {
		t.Errorf("default attribute missing: %q", text)
	}

	// The nodefault filter drops attributes still at their default.
	w = doRequest(t, srv, "GET", "/api/config?filter=nodefault", "")
	resp = decodeResponse(t, w)
	text = resp.Data.(map[string]any)["config"].(string)
	if strings.Contains(text, "buffered") {
		t.Errorf("nodefault filter kept a default attribute: %q", text)
	}

	w = doRequest(t, srv, "DELETE", "/api/config", `{"pattern":"storage .*"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body)
	}
	w = doRequest(t, srv, "GET", "/api/config", "")
	resp = decodeResponse(t, w)
	if text := resp.Data.(map[string]any)["config"].(string); text != "" {
		t.Errorf("expected empty config after delete, got %q", text)
	}
}

func TestConfigSetErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		body string
		code int
	}{
		{"{not json", http.StatusBadRequest},
		{`{"text":""}`, http.StatusBadRequest},
		{setBody(t, "storage nope disk d1 path /x"), http.StatusBadRequest},
		{setBody(t, "storage {"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := doRequest(t, srv, "POST", "/api/config", tt.body)
		if w.Code != tt.code {
			t.Errorf("%q: expected %d, got %d: %s", tt.body, tt.code, w.Code, w.Body)
		}
		if resp := decodeResponse(t, w); resp.Success || resp.Error == "" {
			t.Errorf("%q: expected an error response, got %+v", tt.body, resp)
		}
	}
}

func TestUndoHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "POST", "/api/undo", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("undo on fresh store: expected 409, got %d", w.Code)
	}

	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))
	w = doRequest(t, srv, "POST", "/api/undo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("undo: expected 200, got %d: %s", w.Code, w.Body)
	}
}

func TestSearchHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))

	w := doRequest(t, srv, "GET", "/api/search", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing pattern: expected 400, got %d", w.Code)
	}

	w = doRequest(t, srv, "GET", "/api/search?pattern=storage+.*+disk+.*", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", w.Code, w.Body)
	}
	resp := decodeResponse(t, w)
	paths := resp.Data.([]any)
	if len(paths) != 1 || paths[0].(string) != "storage fileio disk vm1" {
		t.Errorf("unexpected search result %v", paths)
	}
}

func TestStatusHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))

	w := doRequest(t, srv, "GET", "/api/status", "")
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]any)
	if data["snapshot_depth"].(float64) != 2 {
		t.Errorf("expected depth 2, got %v", data["snapshot_depth"])
	}
	objects := data["objects"].(map[string]any)
	if objects["disk"].(float64) != 1 {
		t.Errorf("unexpected object counts %v", objects)
	}
	if data["backend_live"].(bool) {
		t.Error("backend_live must be false in tests")
	}
}

func TestApplyAndDiffHandlers(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))

	w := doRequest(t, srv, "POST", "/api/apply", `{"mode":"bruteforce"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("apply: expected 200, got %d: %s", w.Code, w.Body)
	}
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]any)
	if data["applied"].(float64) != data["total"].(float64) {
		t.Errorf("apply incomplete: %v", data)
	}
	if data["applied"].(float64) != 3 {
		t.Errorf("expected 3 steps (clear + 2 creates), got %v", data["applied"])
	}

	w = doRequest(t, srv, "GET", "/api/diff", "")
	if w.Code != http.StatusOK {
		t.Fatalf("diff: expected 200, got %d: %s", w.Code, w.Body)
	}
	resp = decodeResponse(t, w)
	summary := resp.Data.(map[string]any)["summary"].(string)
	if summary != "0 created, 0 removed, 0 major, 0 minor" {
		t.Errorf("expected a converged diff, got %q", summary)
	}
}

func TestApplyHandlerBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "POST", "/api/apply", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d: %s", w.Code, w.Body)
	}
	if resp := decodeResponse(t, w); resp.Success || resp.Error == "" {
		t.Errorf("expected an error response, got %+v", resp)
	}

	// An empty body still selects the incremental mode.
	w = doRequest(t, srv, "POST", "/api/apply", "")
	if w.Code != http.StatusOK {
		t.Fatalf("empty body: expected 200, got %d: %s", w.Code, w.Body)
	}
}

func TestVerifyHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))

	w := doRequest(t, srv, "GET", "/api/verify", "")
	resp := decodeResponse(t, w)
	problems := resp.Data.(map[string]any)
	if _, ok := problems["missing paths"]; !ok {
		t.Errorf("expected a missing-path problem, got %v", problems)
	}
}

func TestHistoryHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))

	w := doRequest(t, srv, "GET", "/api/history", "")
	resp := decodeResponse(t, w)
	entries := resp.Data.([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	entry := entries[0].(map[string]any)
	if !strings.HasPrefix(entry["op"].(string), "set ") {
		t.Errorf("unexpected history op %v", entry["op"])
	}
}

func TestEventsHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.eventBuf.Add(logging.EventRecord{Level: "INFO", Msg: "something happened"})
	srv.eventBuf.Add(logging.EventRecord{Level: "INFO", Msg: "apply step"})

	w := doRequest(t, srv, "GET", "/api/events?match=apply", "")
	if w.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	events := resp.Data.([]any)
	if len(events) != 1 {
		t.Fatalf("expected 1 matching event, got %d", len(events))
	}
	if events[0].(map[string]any)["msg"].(string) != "apply step" {
		t.Errorf("unexpected event %v", events[0])
	}
}

func TestMetricsHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, "POST", "/api/config", setBody(t, testConfig))

	w := doRequest(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, metric := range []string{
		"liocfg_commits_total 1",
		"liocfg_snapshots 2",
		`liocfg_objects{class="disk"} 1`,
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %q:\n%s", metric, body)
		}
	}
}
