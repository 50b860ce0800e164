package gateway

import (
	"strconv"
	"sync"
	"time"
)

// sequencer hands out millisecond timestamps as sequence ids, bumped by one
// whenever the clock has not moved past the last id issued.
type sequencer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newSequencer() *sequencer {
	return &sequencer{now: time.Now}
}

func (q *sequencer) next() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.now().UnixMilli()
	if n <= q.last {
		n = q.last + 1
	}
	q.last = n
	return strconv.FormatInt(n, 10)
}
