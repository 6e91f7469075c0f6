// Package agent holds the application controller: the state machine that
// gates monitoring and analysis on credential and permission checks,
// schedules runs, enforces single-flight execution, and recovers from
// errors. It alone has transition authority over the global state; every
// other component reads it through Snapshot or requests work through the
// exported operations.
package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"snipsense/internal/analysis"
	"snipsense/internal/config"
	"snipsense/internal/errors"
	"snipsense/internal/permission"
	"snipsense/internal/promptlog"
	"snipsense/internal/secret"
	"snipsense/internal/snippet"
	"snipsense/internal/watch"
)

// State is the controller's global state.
type State string

const (
	StateStarting            State = "starting"
	StateConfigurationNeeded State = "configuration-needed"
	StatePermissionNeeded    State = "permission-needed"
	StateIdle                State = "idle"
	StateAnalyzing           State = "analyzing"
	StateError               State = "error"
)

// Observer receives controller events. Observers are invoked with the
// controller lock held and must not call back into the controller; a
// panicking observer is recovered and logged, never allowed to corrupt the
// state machine.
type Observer interface {
	// OnStateChange fires on every (state, analyzing) change.
	OnStateChange(state State, analyzing bool)

	// OnSuggestions fires when a run completes, with the possibly-empty
	// suggestion list. An empty list still fires: completing with zero
	// suggestions is distinct from not completing.
	OnSuggestions(suggestions []snippet.Suggestion)
}

// CaptureMonitor is the capture coordinator as the controller sees it.
type CaptureMonitor interface {
	Start() error
	Stop()
	Status() watch.Status
}

// RunFunc executes one analysis pipeline run with the given credential.
type RunFunc func(ctx context.Context, apiKey string) (*analysis.Result, error)

// Snapshot is a read-only view of the controller for the status surfaces.
type Snapshot struct {
	State        State        `json:"state"`
	Analyzing    bool         `json:"analyzing"`
	LastAnalysis time.Time    `json:"last_analysis"`
	Capture      watch.Status `json:"capture"`
}

// defaultOneShotAfter is the delay before the post-startup log-size check.
const defaultOneShotAfter = time.Minute

// Controller is the application state machine.
type Controller struct {
	cfg     *config.Config
	secrets secret.Store
	perm    permission.Monitor
	monitor CaptureMonitor
	logbook *promptlog.Store
	run     RunFunc

	// Timer cadences, derived from config in New. Tests shorten these.
	analysisEvery time.Duration
	oneShotAfter  time.Duration
	errorRetry    time.Duration

	mu           sync.Mutex
	state        State
	analyzing    bool
	lastAnalysis time.Time
	monitoring   bool
	closed       bool

	observers map[int]Observer
	nextObsID int

	stopSchedule chan struct{}
	permStop     func()
	errorTimer   *time.Timer
}

// New creates a controller in the starting state. Call Bootstrap to begin.
func New(cfg *config.Config, secrets secret.Store, perm permission.Monitor, monitor CaptureMonitor, logbook *promptlog.Store, run RunFunc) *Controller {
	return &Controller{
		cfg:           cfg,
		secrets:       secrets,
		perm:          perm,
		monitor:       monitor,
		logbook:       logbook,
		run:           run,
		analysisEvery: time.Duration(cfg.AnalysisIntervalMinutes) * time.Minute,
		oneShotAfter:  defaultOneShotAfter,
		errorRetry:    time.Duration(cfg.ErrorRetrySeconds) * time.Second,
		state:         StateStarting,
		observers:     make(map[int]Observer),
	}
}

// Bootstrap evaluates credential and permission and moves to the right
// state: configuration-needed, permission-needed, or idle (which starts
// monitoring and the analysis schedule).
func (c *Controller) Bootstrap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = false
	c.bootstrapLocked()
}

func (c *Controller) bootstrapLocked() {
	if c.closed {
		return
	}

	if !c.secrets.Has() {
		c.stopPermissionWatchLocked()
		c.stopMonitoringLocked()
		c.setStateLocked(StateConfigurationNeeded)
		return
	}

	if !c.perm.Granted() {
		c.stopMonitoringLocked()
		c.setStateLocked(StatePermissionNeeded)
		c.startPermissionWatchLocked()
		c.perm.Request()
		return
	}

	c.stopPermissionWatchLocked()
	c.startMonitoringLocked()
	c.setStateLocked(StateIdle)
}

// Subscribe registers an observer and returns its unsubscribe function.
func (c *Controller) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = o
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Snapshot returns the current controller and capture state.
func (c *Controller) Snapshot() Snapshot {
	capture := c.monitor.Status()

	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:        c.state,
		Analyzing:    c.analyzing,
		LastAnalysis: c.lastAnalysis,
		Capture:      capture,
	}
}

// AnalyzeNow is the explicit manual trigger. It fails when a run is already
// in flight (single-flight) or the controller is not idle.
func (c *Controller) AnalyzeNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.analyzing {
		return errors.NewAnalysisActive()
	}
	if c.closed || c.state != StateIdle {
		return errors.NewInvalidRequest(fmt.Sprintf("agent is not idle (state: %s)", c.state))
	}
	c.beginRunLocked()
	return nil
}

// SetCredential stores a new credential and re-runs the bootstrap as if from
// starting.
func (c *Controller) SetCredential(value string) error {
	if err := c.secrets.Set(value); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(StateStarting)
	c.bootstrapLocked()
	return nil
}

// ClearCredential deletes the credential and re-runs the bootstrap, which
// lands in configuration-needed.
func (c *Controller) ClearCredential() error {
	if err := c.secrets.Delete(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(StateStarting)
	c.bootstrapLocked()
	return nil
}

// Close stops every timer and the capture coordinator and resets to
// starting. Safe to call repeatedly. An in-flight run is not interrupted; it
// finishes and finds the controller closed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopErrorTimerLocked()
	c.stopPermissionWatchLocked()
	c.stopMonitoringLocked()
	c.setStateLocked(StateStarting)
}

// startMonitoringLocked starts the capture coordinator and the analysis
// schedule. The monitoring flag makes repeated grant callbacks harmless: the
// timers start exactly once. Caller holds c.mu.
func (c *Controller) startMonitoringLocked() {
	if c.monitoring {
		return
	}
	c.monitoring = true

	if err := c.monitor.Start(); err != nil {
		log.Printf("agent: starting capture: %v", err)
	}

	c.stopSchedule = make(chan struct{})
	go c.scheduleLoop(c.stopSchedule)
}

// stopMonitoringLocked stops the schedule and the coordinator. Caller holds
// c.mu.
func (c *Controller) stopMonitoringLocked() {
	if !c.monitoring {
		return
	}
	c.monitoring = false
	close(c.stopSchedule)
	c.stopSchedule = nil
	c.monitor.Stop()
}

// scheduleLoop owns the two analysis triggers: the recurring timer and the
// one-shot post-startup check gated on the log holding enough entries.
func (c *Controller) scheduleLoop(stop <-chan struct{}) {
	oneShot := time.NewTimer(c.oneShotAfter)
	defer oneShot.Stop()
	ticker := time.NewTicker(c.analysisEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-oneShot.C:
			n, err := c.logbook.Count()
			if err != nil {
				log.Printf("agent: startup check: %v", err)
				continue
			}
			if n < c.cfg.MinEntriesForAnalysis {
				log.Printf("agent: startup check: %d entries, below minimum %d; skipping", n, c.cfg.MinEntriesForAnalysis)
				continue
			}
			c.tryScheduledRun("startup check")
		case <-ticker.C:
			c.tryScheduledRun("scheduled")
		}
	}
}

// tryScheduledRun starts a run if the controller is idle. Scheduled triggers
// that land while busy or in error are dropped, not queued.
func (c *Controller) tryScheduledRun(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.analyzing || c.state != StateIdle {
		return
	}
	log.Printf("agent: starting analysis (%s)", reason)
	c.beginRunLocked()
}

// beginRunLocked flips the single-flight guard and launches the pipeline.
// The guard is set before any suspension point. Caller holds c.mu.
func (c *Controller) beginRunLocked() {
	c.analyzing = true
	c.setStateLocked(StateAnalyzing)
	go c.runPipeline()
}

// runPipeline executes one run and applies the completion transition:
// idle on success or absorbed failure, error only when something escapes the
// invocation wrapper.
func (c *Controller) runPipeline() {
	res, err := c.invoke()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyzing = false
	c.lastAnalysis = time.Now()

	if c.closed {
		c.setStateLocked(StateStarting)
		return
	}

	// A credential change or permission flip mid-run has already moved the
	// machine elsewhere; leave that state in place. Completed work is still
	// reported.
	if c.state != StateAnalyzing {
		if err != nil {
			log.Printf("agent: analysis failed: %v", err)
			return
		}
		c.notifySuggestionsLocked(res.Suggestions)
		return
	}

	if err != nil {
		log.Printf("agent: analysis failed: %v", err)
		c.setStateLocked(StateError)
		c.startErrorRecoveryLocked()
		return
	}

	c.setStateLocked(StateIdle)
	c.notifySuggestionsLocked(res.Suggestions)
}

// invoke wraps the pipeline call so that a panic becomes an error instead of
// taking the process down.
func (c *Controller) invoke() (res *analysis.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline panic: %v", p)
		}
	}()

	key, err := c.secrets.Get()
	if err != nil {
		return nil, err
	}
	return c.run(context.Background(), key)
}

// startErrorRecoveryLocked arms (or re-arms) the auto-recovery timer: after
// the retry delay the controller re-bootstraps out of the error state.
// Caller holds c.mu.
func (c *Controller) startErrorRecoveryLocked() {
	c.stopErrorTimerLocked()
	c.errorTimer = time.AfterFunc(c.errorRetry, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.state != StateError {
			return
		}
		log.Printf("agent: recovering from error state")
		c.bootstrapLocked()
	})
}

func (c *Controller) stopErrorTimerLocked() {
	if c.errorTimer != nil {
		c.errorTimer.Stop()
		c.errorTimer = nil
	}
}

// startPermissionWatchLocked begins polling for the permission grant. On
// grant the bootstrap re-runs, which re-checks the credential too. Caller
// holds c.mu.
func (c *Controller) startPermissionWatchLocked() {
	if c.permStop != nil {
		return
	}
	c.permStop = c.perm.Watch(func(granted bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if granted {
			c.bootstrapLocked()
		} else if c.state == StateIdle || c.state == StateAnalyzing {
			c.stopMonitoringLocked()
			c.setStateLocked(StatePermissionNeeded)
		}
	})
}

func (c *Controller) stopPermissionWatchLocked() {
	if c.permStop != nil {
		c.permStop()
		c.permStop = nil
	}
}

// setStateLocked records a state change and notifies observers. Caller holds
// c.mu.
func (c *Controller) setStateLocked(s State) {
	if s == c.state {
		return
	}
	log.Printf("agent: state %s -> %s", c.state, s)
	c.state = s

	for _, o := range c.observers {
		notifyState(o, s, c.analyzing)
	}
}

func (c *Controller) notifySuggestionsLocked(suggestions []snippet.Suggestion) {
	for _, o := range c.observers {
		notifySuggestions(o, suggestions)
	}
}

// notifyState calls one observer, containing any panic.
func notifyState(o Observer, s State, analyzing bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("agent: observer panic on state change: %v", p)
		}
	}()
	o.OnStateChange(s, analyzing)
}

// notifySuggestions calls one observer, containing any panic.
func notifySuggestions(o Observer, suggestions []snippet.Suggestion) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("agent: observer panic on suggestions: %v", p)
		}
	}()
	o.OnSuggestions(suggestions)
}
