package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snipsense/internal/agent"
	"snipsense/internal/analysis"
	"snipsense/internal/config"
	"snipsense/internal/ops"
	"snipsense/internal/promptlog"
	"snipsense/internal/secret"
	"snipsense/internal/snippet"
	"snipsense/internal/stats"
)

// testEnv creates an ops environment over temp storage.
func testEnv(t *testing.T) *ops.Env {
	t.Helper()
	dir := t.TempDir()

	statsStore, err := stats.Open(dir)
	if err != nil {
		t.Fatalf("failed to open stats store: %v", err)
	}
	t.Cleanup(func() { statsStore.Close() })

	return &ops.Env{
		Cfg:     config.DefaultConfig(),
		DataDir: dir,
		Log:     promptlog.NewStore(dir),
		Stats:   statsStore,
		Secrets: secret.NewFile(dir),
	}
}

func newTestHandler(t *testing.T, env *ops.Env, ag Agent, hub *Hub) http.Handler {
	t.Helper()
	return NewServer(env, ag, hub, "test", "127.0.0.1", 0).Handler
}

func seedRun(t *testing.T, env *ops.Env) {
	t.Helper()
	run := &stats.Run{
		ID:              "01RUNWEB",
		StartedAt:       1700000000,
		FinishedAt:      1700000010,
		DurationMS:      10000,
		EntryCount:      6,
		ClusterCount:    2,
		SuggestionCount: 1,
	}
	suggestions := []stats.Suggestion{{
		ID:          "01SUGWEB",
		RunID:       "01RUNWEB",
		Trigger:     "-writeemail",
		Replacement: "Write a professional email",
		SourceTexts: []string{"write an email to the team"},
		Confidence:  0.85,
		CreatedAt:   1700000010,
	}}
	if err := env.Stats.InsertRun(run, suggestions); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootRedirectsToStatus(t *testing.T) {
	h := newTestHandler(t, testEnv(t), nil, nil)

	rec := get(t, h, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/status" {
		t.Errorf("Location = %q, want /status", loc)
	}
}

func TestStatusPage(t *testing.T) {
	env := testEnv(t)
	h := newTestHandler(t, env, nil, nil)

	rec := get(t, h, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Prompt log") {
		t.Error("status page missing prompt log card")
	}
	if !strings.Contains(body, "missing") {
		t.Error("status page should flag the missing credential")
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRunsPage(t *testing.T) {
	env := testEnv(t)
	seedRun(t, env)
	h := newTestHandler(t, env, nil, nil)

	rec := get(t, h, "/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/runs/01RUNWEB") {
		t.Error("runs page missing link to the seeded run")
	}
}

func TestRunDetailPage(t *testing.T) {
	env := testEnv(t)
	seedRun(t, env)
	h := newTestHandler(t, env, nil, nil)

	rec := get(t, h, "/runs/01RUNWEB")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	// The markdown report is rendered to HTML.
	if !strings.Contains(body, "<code>-writeemail</code>") {
		t.Error("run detail missing rendered trigger")
	}
	if !strings.Contains(body, "Write a professional email") {
		t.Error("run detail missing replacement text")
	}
}

func TestRunDetailNotFound(t *testing.T) {
	h := newTestHandler(t, testEnv(t), nil, nil)

	rec := get(t, h, "/runs/does-not-exist")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRunDetailNotFoundJSON(t *testing.T) {
	h := newTestHandler(t, testEnv(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if payload.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", payload.Error.Code)
	}
}

func TestSuggestionsPage(t *testing.T) {
	env := testEnv(t)
	seedRun(t, env)
	h := newTestHandler(t, env, nil, nil)

	rec := get(t, h, "/suggestions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "-writeemail") {
		t.Error("suggestions page missing the seeded suggestion")
	}

	// Filtered to an unknown run: empty, not an error.
	rec = get(t, h, "/suggestions?run_id=unknown")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "-writeemail") {
		t.Error("filter should exclude the seeded suggestion")
	}
}

func TestAnalyzeStandalone(t *testing.T) {
	env := testEnv(t)
	if err := env.Secrets.Set("sk-test"); err != nil {
		t.Fatal(err)
	}
	if err := env.Log.Append(promptlog.Entry{Text: "summarize this long report for me", Source: promptlog.SourceManual}); err != nil {
		t.Fatal(err)
	}
	env.Run = func(context.Context) (*analysis.Result, error) {
		return &analysis.Result{RunID: "01RUNHTTP", EntryCount: 1}, nil
	}
	h := newTestHandler(t, env, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var out ops.AnalyzeOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if out.Result.RunID != "01RUNHTTP" {
		t.Errorf("RunID = %s", out.Result.RunID)
	}
}

type fakeAgent struct {
	calls int
	err   error
}

func (f *fakeAgent) AnalyzeNow() error {
	f.calls++
	return f.err
}

func TestAnalyzeWithLiveAgent(t *testing.T) {
	env := testEnv(t)
	ag := &fakeAgent{}
	h := newTestHandler(t, env, ag, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if ag.calls != 1 {
		t.Errorf("AnalyzeNow calls = %d, want 1", ag.calls)
	}
}

func TestEventsUnavailableStandalone(t *testing.T) {
	h := newTestHandler(t, testEnv(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestBroadcastDoesNotBlockOnStalledClient(t *testing.T) {
	hub := NewHub()

	// Register a connection with a full backlog and no writer draining it.
	stalled := &websocket.Conn{}
	send := make(chan []byte, 1)
	send <- []byte("{}")
	hub.mu.Lock()
	hub.conns[stalled] = send
	hub.mu.Unlock()

	done := make(chan struct{})
	go func() {
		hub.OnStateChange(agent.StateAnalyzing, true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stalled client")
	}

	// The stalled client is cut loose rather than queued behind.
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}
	<-send // the old backlog is still readable
	if _, ok := <-send; ok {
		t.Error("send channel should be closed after the drop")
	}
}

func TestEventsBroadcast(t *testing.T) {
	env := testEnv(t)
	hub := NewHub()
	defer hub.Close()

	srv := httptest.NewServer(newTestHandler(t, env, nil, hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("client never registered")
	}

	hub.OnStateChange(agent.StateAnalyzing, true)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}
	var frame struct {
		Type      string `json:"type"`
		State     string `json:"state"`
		Analyzing bool   `json:"analyzing"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("event is not JSON: %v", err)
	}
	if frame.Type != "state" || frame.State != "analyzing" || !frame.Analyzing {
		t.Errorf("frame = %+v", frame)
	}

	hub.OnSuggestions([]snippet.Suggestion{{Trigger: "-fixbug", Replacement: "Fix this bug"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading suggestions event: %v", err)
	}
	var sframe struct {
		Type        string               `json:"type"`
		Suggestions []snippet.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(payload, &sframe); err != nil {
		t.Fatalf("event is not JSON: %v", err)
	}
	if sframe.Type != "suggestions" || len(sframe.Suggestions) != 1 {
		t.Errorf("frame = %+v", sframe)
	}
}
