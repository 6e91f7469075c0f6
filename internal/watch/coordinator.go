// Package watch is the capture side of the agent: a two-tier polling state
// machine that detects the target application and window, buffers raw input
// while the window is focused, and appends prompt-like buffers to the prompt
// log. The coarse tier polls for process presence; the fine tier, only alive
// while the process runs, polls window focus.
package watch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"snipsense/internal/config"
	"snipsense/internal/promptlog"
)

// Status is a snapshot of the coordinator for the status surfaces.
type Status struct {
	Running        bool   `json:"running"`
	ProcessRunning bool   `json:"process_running"`
	TargetActive   bool   `json:"target_active"`
	CaptureMode    Mode   `json:"capture_mode"`
	BufferLen      int    `json:"buffer_len"`
	WindowTitle    string `json:"window_title,omitempty"`
}

// Coordinator owns all capture state. Nothing outside this package mutates
// it; timer callbacks and the event consumer re-lock before every touch.
type Coordinator struct {
	cfg     *config.Config
	logbook *promptlog.Store
	proc    ProcessProbe
	win     WindowProbe
	backend Backend

	// Poll cadences, derived from config in New. Tests shorten these.
	coarseEvery time.Duration
	fineEvery   time.Duration
	idleFlush   time.Duration

	timeNow func() time.Time

	mu           sync.Mutex
	running      bool
	processUp    bool
	windowActive bool
	capturing    bool
	windowTitle  string
	buf          []rune
	lastEvent    time.Time

	stopCoarse chan struct{}
	stopFine   chan struct{}
	wg         sync.WaitGroup
	fineWG     sync.WaitGroup
}

// New creates a coordinator over the given probes and backend.
func New(cfg *config.Config, logbook *promptlog.Store, proc ProcessProbe, win WindowProbe, backend Backend) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		logbook:     logbook,
		proc:        proc,
		win:         win,
		backend:     backend,
		coarseEvery: time.Duration(cfg.ProcessPollSeconds) * time.Second,
		fineEvery:   time.Duration(cfg.WindowPollSeconds) * time.Second,
		idleFlush:   time.Duration(cfg.IdleFlushSeconds) * time.Second,
		timeNow:     time.Now,
	}
}

// Start begins the coarse poll and the backend event stream. Calling Start on
// a running coordinator is a no-op.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCoarse = make(chan struct{})
	c.mu.Unlock()

	events, err := c.backend.Start()
	if err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("start capture backend: %w", err)
	}

	if c.backend.Mode() == ModeSampler {
		log.Printf("watch: capture running in sampler mode; real input capture unavailable")
	}

	c.wg.Add(2)
	go c.eventLoop(events)
	go c.coarseLoop()
	return nil
}

// Stop tears down both timers, flushes and disables capture, and resets
// state. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCoarse)
	c.stopFineLocked()
	c.disableCaptureLocked(true)
	c.processUp = false
	c.windowActive = false
	c.windowTitle = ""
	c.mu.Unlock()

	c.backend.Stop()
	c.fineWG.Wait()
	c.wg.Wait()
}

// Status returns a snapshot of the capture state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:        c.running,
		ProcessRunning: c.processUp,
		TargetActive:   c.windowActive,
		CaptureMode:    c.backend.Mode(),
		BufferLen:      len(c.buf),
		WindowTitle:    c.windowTitle,
	}
}

// ManualLog appends text directly to the prompt log, bypassing capture and
// its heuristics. Used by the CLI and MCP surfaces.
func (c *Coordinator) ManualLog(text, windowTitle string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("text must not be empty")
	}
	return c.logbook.Append(promptlog.Entry{
		Timestamp:   c.timeNow().UTC(),
		Text:        text,
		Source:      promptlog.SourceManual,
		WindowTitle: windowTitle,
	})
}

// coarseLoop is the slow tier: is the target process running at all?
func (c *Coordinator) coarseLoop() {
	defer c.wg.Done()

	c.checkProcess()
	ticker := time.NewTicker(c.coarseEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCoarse:
			return
		case <-ticker.C:
			c.checkProcess()
		}
	}
}

func (c *Coordinator) checkProcess() {
	ctx, cancel := context.WithTimeout(context.Background(), c.coarseEvery)
	defer cancel()

	up, err := c.proc.Running(ctx, c.cfg.TargetProcess)
	if err != nil {
		log.Printf("watch: process probe: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || up == c.processUp {
		return
	}
	c.processUp = up

	if up {
		log.Printf("watch: %s is running; starting window polling", c.cfg.TargetProcess)
		c.startFineLocked()
	} else {
		log.Printf("watch: %s exited; stopping window polling", c.cfg.TargetProcess)
		c.stopFineLocked()
		c.disableCaptureLocked(true)
		c.windowActive = false
		c.windowTitle = ""
	}
}

// startFineLocked starts the fast tier. Caller holds c.mu.
func (c *Coordinator) startFineLocked() {
	if c.stopFine != nil {
		return
	}
	c.stopFine = make(chan struct{})
	c.fineWG.Add(1)
	go c.fineLoop(c.stopFine)
}

// stopFineLocked stops the fast tier. Caller holds c.mu.
func (c *Coordinator) stopFineLocked() {
	if c.stopFine == nil {
		return
	}
	close(c.stopFine)
	c.stopFine = nil
}

// fineLoop is the fast tier: window focus and buffer-inactivity flushing.
func (c *Coordinator) fineLoop(stop <-chan struct{}) {
	defer c.fineWG.Done()

	ticker := time.NewTicker(c.fineEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.checkWindow()
			c.flushIfIdle()
		}
	}
}

func (c *Coordinator) checkWindow() {
	ctx, cancel := context.WithTimeout(context.Background(), c.fineEvery)
	defer cancel()

	active, title, err := c.win.Active(ctx, c.cfg.TargetProcess)
	if err != nil {
		log.Printf("watch: window probe: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.windowTitle = title
	if active == c.windowActive {
		return
	}
	c.windowActive = active

	if active {
		c.capturing = true
		c.buf = nil
		c.lastEvent = c.timeNow()
		c.backend.SessionStart()
	} else {
		c.disableCaptureLocked(true)
	}
}

// flushIfIdle evaluates the buffer when typing has paused long enough.
func (c *Coordinator) flushIfIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || len(c.buf) == 0 {
		return
	}
	if c.timeNow().Sub(c.lastEvent) >= c.idleFlush {
		c.flushBufferLocked()
	}
}

// eventLoop consumes the backend stream for the life of the coordinator.
// Events arriving outside a capture session are dropped.
func (c *Coordinator) eventLoop(events <-chan Event) {
	defer c.wg.Done()
	for e := range events {
		c.handleEvent(e)
	}
}

func (c *Coordinator) handleEvent(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return
	}

	switch e.Kind {
	case EventChar:
		c.buf = append(c.buf, e.Char)
		c.lastEvent = c.timeNow()
	case EventBackspace:
		if len(c.buf) > 0 {
			c.buf = c.buf[:len(c.buf)-1]
		}
		c.lastEvent = c.timeNow()
	case EventSubmit:
		c.flushBufferLocked()
	case EventCancel:
		c.buf = nil
	case EventSample:
		// Sampler mode: synthetic prompts skip the buffer entirely.
		c.appendLocked(e.Text, promptlog.SourceSample)
	}
}

// disableCaptureLocked ends the capture session, optionally evaluating any
// pending buffer first. Caller holds c.mu.
func (c *Coordinator) disableCaptureLocked(flush bool) {
	if !c.capturing {
		return
	}
	if flush {
		c.flushBufferLocked()
	}
	c.buf = nil
	c.capturing = false
	c.backend.SessionEnd()
}

// flushBufferLocked evaluates and clears the buffer. Caller holds c.mu.
func (c *Coordinator) flushBufferLocked() {
	text := strings.TrimSpace(string(c.buf))
	c.buf = nil
	if text == "" {
		return
	}
	if !Evaluate(text, c.cfg.MinPromptChars, c.cfg.MinDistinctRunes) {
		return
	}
	c.appendLocked(text, promptlog.SourceCapture)
}

// appendLocked writes one entry to the prompt log. Write failures are fatal
// to this entry only, never to the coordinator. Caller holds c.mu.
func (c *Coordinator) appendLocked(text, source string) {
	err := c.logbook.Append(promptlog.Entry{
		Timestamp:   c.timeNow().UTC(),
		Text:        text,
		Source:      source,
		WindowTitle: c.windowTitle,
		ProcessName: c.cfg.TargetProcess,
	})
	if err != nil {
		log.Printf("watch: log append failed: %v", err)
	}
}
