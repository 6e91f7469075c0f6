// Package permission models the OS input-monitoring permission the capture
// backend needs. The desktop shell owns the real grant dialog; this package
// only answers "is it granted" and watches for changes.
package permission

import (
	"log"
	"os/exec"
	"sync"
	"time"
)

// Monitor reports whether the OS permission is granted and notifies on
// changes.
type Monitor interface {
	// Granted reports the current grant state.
	Granted() bool

	// Request asks the OS to prompt the user. Best-effort; the answer
	// arrives through Granted/Watch, not a return value.
	Request()

	// Watch invokes onChange with the new state whenever the grant flips.
	// The returned stop function is idempotent.
	Watch(onChange func(granted bool)) (stop func())
}

// Auto is always granted. It is the default on headless installs where no
// OS-level input-monitoring permission exists.
type Auto struct{}

func (Auto) Granted() bool { return true }

func (Auto) Request() {}

func (Auto) Watch(func(bool)) func() { return func() {} }

// Probe shells out to a configured command whose exit status reports the
// grant: exit 0 means granted. Watch polls on a fixed interval.
type Probe struct {
	// Argv is the probe command. Empty means never granted.
	Argv []string

	// RequestArgv, if set, is run by Request to open the OS settings pane.
	RequestArgv []string

	// PollInterval is the Watch cadence. Zero means 2s.
	PollInterval time.Duration
}

func (p *Probe) Granted() bool {
	if len(p.Argv) == 0 {
		return false
	}
	cmd := exec.Command(p.Argv[0], p.Argv[1:]...)
	return cmd.Run() == nil
}

func (p *Probe) Request() {
	if len(p.RequestArgv) == 0 {
		return
	}
	if err := exec.Command(p.RequestArgv[0], p.RequestArgv[1:]...).Run(); err != nil {
		log.Printf("permission: request command failed: %v", err)
	}
}

func (p *Probe) Watch(onChange func(granted bool)) func() {
	interval := p.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	stopCh := make(chan struct{})
	var once sync.Once

	go func() {
		last := p.Granted()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				now := p.Granted()
				if now != last {
					last = now
					onChange(now)
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopCh) })
	}
}
