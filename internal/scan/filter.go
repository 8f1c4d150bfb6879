package scan

import (
	"strings"
	"sync"
	"time"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// State of the ingestion filter.
type State int

const (
	Idle State = iota
	Scanning
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Filter is the Idle -> Scanning -> Cooldown -> Idle state machine.
// At most one scan is accepted until the previous one has been resolved
// and its cooldown has elapsed.
type Filter struct {
	mu       sync.Mutex
	cooldown time.Duration
	state    State
	until    time.Time
}

func NewFilter(cooldown time.Duration) *Filter {
	return &Filter{cooldown: cooldown}
}

// Offer reports whether ev is accepted for resolution.
// Empty payloads and anything arriving outside Idle are dropped.
func (f *Filter) Offer(ev model.ScanEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advance(ev.ObservedAt)
	if f.state != Idle || strings.TrimSpace(ev.RawPayload) == "" {
		return false
	}
	f.state = Scanning
	return true
}

// Resolved ends the in-flight scan at now, whatever its outcome, and starts the cooldown.
func (f *Filter) Resolved(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Scanning {
		return
	}
	f.state = Cooldown
	f.until = now.Add(f.cooldown)
	f.advance(now)
}

// State returns the state as observed at now.
func (f *Filter) State(now time.Time) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advance(now)
	return f.state
}

func (f *Filter) advance(now time.Time) {
	if f.state == Cooldown && !now.Before(f.until) {
		f.state = Idle
	}
}
