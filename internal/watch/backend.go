package watch

import (
	"bufio"
	"encoding/json"
	"log"
	"net"
	"sync"
	"time"
	"unicode/utf8"
)

// Mode identifies the capture mechanism in use.
type Mode string

const (
	// ModeNative means real key events arrive from the OS capture shim.
	ModeNative Mode = "native"

	// ModeSampler means capture is degraded: synthetic sample prompts are
	// injected on a fixed interval while a session is active.
	ModeSampler Mode = "sampler"
)

// EventKind classifies raw input events.
type EventKind string

const (
	EventChar      EventKind = "char"
	EventBackspace EventKind = "backspace"
	EventSubmit    EventKind = "submit"
	EventCancel    EventKind = "cancel"
	EventSample    EventKind = "sample"
)

// Event is one raw input event from a backend.
type Event struct {
	Kind EventKind
	Char rune   // set for EventChar
	Text string // set for EventSample
}

// Backend is the raw-input capture capability. It is selected once at
// startup and never re-probed: either the native shim socket is reachable
// then, or the agent runs on the sampler for its whole lifetime.
type Backend interface {
	Mode() Mode

	// Start begins event delivery. The channel is closed when the backend
	// stops or its source dries up.
	Start() (<-chan Event, error)

	// SessionStart and SessionEnd bracket the intervals during which the
	// target window is focused.
	SessionStart()
	SessionEnd()

	Stop()
}

// SelectBackend probes the native capture socket once and falls back to the
// sampler when it is absent or unreachable.
func SelectBackend(socketPath string, sampleEvery time.Duration) Backend {
	if socketPath != "" {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			return newNative(conn)
		}
		log.Printf("watch: capture socket %s unreachable (%v); falling back to sampler", socketPath, err)
	} else {
		log.Printf("watch: no capture socket configured; using sampler (degraded capture)")
	}
	return NewSampler(sampleEvery, nil)
}

// shimEvent is the wire form of one key event from the capture shim:
// newline-framed JSON like {"kind":"char","char":"a"}.
type shimEvent struct {
	Kind string `json:"kind"`
	Char string `json:"char,omitempty"`
}

// Native reads key events from the OS capture shim over a unix socket.
type Native struct {
	conn   net.Conn
	events chan Event
	once   sync.Once
}

func newNative(conn net.Conn) *Native {
	return &Native{conn: conn, events: make(chan Event, 64)}
}

func (n *Native) Mode() Mode { return ModeNative }

func (n *Native) Start() (<-chan Event, error) {
	go n.readLoop()
	return n.events, nil
}

func (n *Native) readLoop() {
	defer close(n.events)

	scanner := bufio.NewScanner(n.conn)
	for scanner.Scan() {
		var se shimEvent
		if err := json.Unmarshal(scanner.Bytes(), &se); err != nil {
			log.Printf("watch: bad shim event: %v", err)
			continue
		}

		switch EventKind(se.Kind) {
		case EventChar:
			if se.Char == "" {
				continue
			}
			r, _ := utf8.DecodeRuneInString(se.Char)
			n.events <- Event{Kind: EventChar, Char: r}
		case EventBackspace, EventSubmit, EventCancel:
			n.events <- Event{Kind: EventKind(se.Kind)}
		default:
			log.Printf("watch: unknown shim event kind %q", se.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("watch: capture socket read ended: %v", err)
	}
}

func (n *Native) SessionStart() {}
func (n *Native) SessionEnd()   {}

func (n *Native) Stop() {
	n.once.Do(func() { n.conn.Close() })
}

// defaultSamples are the synthetic prompts the sampler cycles through. They
// are deliberately prompt-like so the downstream pipeline stays exercisable
// without real capture.
var defaultSamples = []string{
	"explain what this function does",
	"write a unit test for the parser",
	"summarize the changes in this diff",
	"fix the off by one error in the loop",
	"explain what this function does please",
	"write a commit message for these changes",
}

// Sampler is the fallback backend: while a session is active it emits one
// synthetic sample prompt per interval.
type Sampler struct {
	every   time.Duration
	samples []string

	events chan Event
	stopCh chan struct{}
	once   sync.Once

	mu     sync.Mutex
	active bool
	next   int
}

// NewSampler creates a sampler emitting every interval. A zero interval
// defaults to 30s; nil samples use the built-in set.
func NewSampler(every time.Duration, samples []string) *Sampler {
	if every <= 0 {
		every = 30 * time.Second
	}
	if len(samples) == 0 {
		samples = defaultSamples
	}
	return &Sampler{
		every:   every,
		samples: samples,
		events:  make(chan Event, 8),
		stopCh:  make(chan struct{}),
	}
}

func (s *Sampler) Mode() Mode { return ModeSampler }

func (s *Sampler) Start() (<-chan Event, error) {
	go s.loop()
	return s.events, nil
}

func (s *Sampler) loop() {
	defer close(s.events)

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.active {
				s.mu.Unlock()
				continue
			}
			text := s.samples[s.next%len(s.samples)]
			s.next++
			s.mu.Unlock()

			select {
			case s.events <- Event{Kind: EventSample, Text: text}:
			case <-s.stopCh:
				return
			}
		}
	}
}

func (s *Sampler) SessionStart() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

func (s *Sampler) SessionEnd() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

func (s *Sampler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}
