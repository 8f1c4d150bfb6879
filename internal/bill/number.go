package bill

import (
	"strconv"
	"sync"
	"time"
)

// DefaultPrefix is prepended to the epoch-millisecond bill number.
const DefaultPrefix = "BILL-"

// NumberGenerator issues bill numbers of the form prefix + epoch milliseconds.
// Numbers are strictly increasing within one generator, so two bills cleared
// within the same millisecond still differ.
type NumberGenerator struct {
	mu     sync.Mutex
	prefix string
	now    func() time.Time
	last   int64
}

func NewNumberGenerator(prefix string, now func() time.Time) *NumberGenerator {
	if now == nil {
		now = time.Now
	}
	return &NumberGenerator{prefix: prefix, now: now}
}

func (g *NumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return g.prefix + strconv.FormatInt(ms, 10)
}
