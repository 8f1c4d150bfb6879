// Package notice keeps the transient, auto-expiring messages shown to the operator.
package notice

import (
	"slices"
	"sync"
	"time"

	"github.com/ahinestrog/frontcounter/internal/model"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Error   Level = "error"
)

type Notice struct {
	ID        uint64     `json:"id"`
	Level     Level      `json:"level"`
	Kind      model.Kind `json:"kind,omitempty"`
	Text      string     `json:"text"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Board holds notices until they expire. Nothing is ever retried from here.
type Board struct {
	mu    sync.Mutex
	now   func() time.Time
	seq   uint64
	items []Notice
}

func NewBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{now: now}
}

func (b *Board) Post(level Level, text string, ttl time.Duration) Notice {
	return b.post(Notice{Level: level, Text: text}, ttl)
}

// Fail posts err as an error notice tagged with its taxonomy kind.
func (b *Board) Fail(err error, ttl time.Duration) Notice {
	return b.post(Notice{Level: Error, Kind: model.KindOf(err), Text: err.Error()}, ttl)
}

func (b *Board) post(n Notice, ttl time.Duration) Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.pruneLocked(now)
	b.seq++
	n.ID = b.seq
	n.ExpiresAt = now.Add(ttl)
	b.items = append(b.items, n)
	return n
}

func (b *Board) pruneLocked(now time.Time) {
	b.items = slices.DeleteFunc(b.items, func(n Notice) bool { return !now.Before(n.ExpiresAt) })
}

// Active returns the notices that have not yet expired, oldest first.
func (b *Board) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(b.now())
	out := make([]Notice, len(b.items))
	copy(out, b.items)
	return out
}
