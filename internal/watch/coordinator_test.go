package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"snipsense/internal/config"
	"snipsense/internal/promptlog"
)

// fakeProcProbe reports a switchable process-presence flag.
type fakeProcProbe struct{ up atomic.Bool }

func (f *fakeProcProbe) Running(context.Context, string) (bool, error) {
	return f.up.Load(), nil
}

// fakeWinProbe reports a switchable focus flag.
type fakeWinProbe struct {
	active atomic.Bool
	title  string
}

func (f *fakeWinProbe) Active(context.Context, string) (bool, string, error) {
	return f.active.Load(), f.title, nil
}

// fakeBackend delivers test-scripted events and records session brackets.
type fakeBackend struct {
	mode   Mode
	events chan Event

	mu       sync.Mutex
	sessions []string
	stopped  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{mode: ModeNative, events: make(chan Event, 64)}
}

func (f *fakeBackend) Mode() Mode { return f.mode }

func (f *fakeBackend) Start() (<-chan Event, error) { return f.events, nil }

func (f *fakeBackend) SessionStart() {
	f.mu.Lock()
	f.sessions = append(f.sessions, "start")
	f.mu.Unlock()
}

func (f *fakeBackend) SessionEnd() {
	f.mu.Lock()
	f.sessions = append(f.sessions, "end")
	f.mu.Unlock()
}

func (f *fakeBackend) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.events)
	}
}

func (f *fakeBackend) send(events ...Event) {
	for _, e := range events {
		f.events <- e
	}
}

func chars(s string) []Event {
	var evs []Event
	for _, r := range s {
		evs = append(evs, Event{Kind: EventChar, Char: r})
	}
	return evs
}

// newTestCoordinator wires fakes with millisecond polling.
func newTestCoordinator(t *testing.T) (*Coordinator, *promptlog.Store, *fakeProcProbe, *fakeWinProbe, *fakeBackend) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.TargetProcess = "testapp"

	store := promptlog.NewStore(t.TempDir())
	proc := &fakeProcProbe{}
	win := &fakeWinProbe{title: "Test Window"}
	backend := newFakeBackend()

	c := New(cfg, store, proc, win, backend)
	c.coarseEvery = 5 * time.Millisecond
	c.fineEvery = 5 * time.Millisecond
	c.idleFlush = 30 * time.Millisecond

	t.Cleanup(c.Stop)
	return c, store, proc, win, backend
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func entryCount(t *testing.T, store *promptlog.Store) int {
	t.Helper()
	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestCoordinator_CapturesSubmittedPrompt(t *testing.T) {
	c, store, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	backend.send(chars("explain this stack trace")...)
	backend.send(Event{Kind: EventSubmit})

	waitFor(t, "captured entry", func() bool { return entryCount(t, store) == 1 })

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	e := entries[0]
	if e.Text != "explain this stack trace" {
		t.Errorf("Text = %q", e.Text)
	}
	if e.Source != promptlog.SourceCapture {
		t.Errorf("Source = %q", e.Source)
	}
	if e.WindowTitle != "Test Window" || e.ProcessName != "testapp" {
		t.Errorf("context = %q / %q", e.WindowTitle, e.ProcessName)
	}
}

func TestCoordinator_BackspaceEditsBuffer(t *testing.T) {
	c, store, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	backend.send(chars("explain this codez")...)
	backend.send(Event{Kind: EventBackspace})
	backend.send(Event{Kind: EventSubmit})

	waitFor(t, "captured entry", func() bool { return entryCount(t, store) == 1 })

	entries, _ := store.Entries()
	if entries[0].Text != "explain this code" {
		t.Errorf("Text = %q", entries[0].Text)
	}
}

func TestCoordinator_NoiseDiscarded(t *testing.T) {
	c, store, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	backend.send(chars("aaaaaaaaaaaaaaaaaaaa")...)
	backend.send(Event{Kind: EventSubmit})
	// A prompt after the noise proves the noise was evaluated and dropped,
	// not stuck in the buffer.
	backend.send(chars("explain this stack trace")...)
	backend.send(Event{Kind: EventSubmit})

	waitFor(t, "captured entry", func() bool { return entryCount(t, store) == 1 })

	entries, _ := store.Entries()
	if entries[0].Text != "explain this stack trace" {
		t.Errorf("Text = %q", entries[0].Text)
	}
}

func TestCoordinator_CancelDiscardsBuffer(t *testing.T) {
	c, store, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	backend.send(chars("explain this stack trace")...)
	backend.send(Event{Kind: EventCancel})
	waitFor(t, "buffer cleared", func() bool { return c.Status().BufferLen == 0 })

	if n := entryCount(t, store); n != 0 {
		t.Errorf("entries = %d, want 0 after cancel", n)
	}
}

func TestCoordinator_FlushOnWindowDeactivate(t *testing.T) {
	c, store, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	backend.send(chars("summarize the meeting notes")...)
	waitFor(t, "buffered text", func() bool { return c.Status().BufferLen > 0 })

	win.active.Store(false)
	waitFor(t, "flushed entry", func() bool { return entryCount(t, store) == 1 })

	if c.Status().TargetActive {
		t.Error("TargetActive should be false after focus loss")
	}
}

func TestCoordinator_IdleFlush(t *testing.T) {
	c, store, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	backend.send(chars("write a test for the parser")...)
	// No submit: the inactivity timeout must flush it.
	waitFor(t, "idle-flushed entry", func() bool { return entryCount(t, store) == 1 })
}

func TestCoordinator_ProcessExitTearsDownSession(t *testing.T) {
	c, _, proc, win, backend := newTestCoordinator(t)
	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "capture session", func() bool { return c.Status().TargetActive })

	proc.up.Store(false)
	waitFor(t, "session teardown", func() bool {
		s := c.Status()
		return !s.ProcessRunning && !s.TargetActive
	})

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.sessions) < 2 || backend.sessions[len(backend.sessions)-1] != "end" {
		t.Errorf("sessions = %v, want trailing end", backend.sessions)
	}
}

func TestCoordinator_SamplerInjectsEntries(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TargetProcess = "testapp"

	store := promptlog.NewStore(t.TempDir())
	proc := &fakeProcProbe{}
	win := &fakeWinProbe{}
	sampler := NewSampler(5*time.Millisecond, nil)

	c := New(cfg, store, proc, win, sampler)
	c.coarseEvery = 5 * time.Millisecond
	c.fineEvery = 5 * time.Millisecond
	t.Cleanup(c.Stop)

	proc.up.Store(true)
	win.active.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if c.Status().CaptureMode != ModeSampler {
		t.Errorf("CaptureMode = %q, want sampler", c.Status().CaptureMode)
	}

	waitFor(t, "sample entries", func() bool { return entryCount(t, store) >= 2 })

	entries, _ := store.Entries()
	if entries[0].Source != promptlog.SourceSample {
		t.Errorf("Source = %q, want sample", entries[0].Source)
	}
}

func TestCoordinator_ManualLog(t *testing.T) {
	c, store, _, _, _ := newTestCoordinator(t)

	if err := c.ManualLog("explain the release process", "notes"); err != nil {
		t.Fatalf("ManualLog: %v", err)
	}
	if err := c.ManualLog("   ", ""); err == nil {
		t.Error("ManualLog with blank text should fail")
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != promptlog.SourceManual {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCoordinator_StopIdempotent(t *testing.T) {
	c, _, proc, _, _ := newTestCoordinator(t)
	proc.up.Store(true)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Stop()
	c.Stop()

	if c.Status().Running {
		t.Error("Running after Stop")
	}
}
