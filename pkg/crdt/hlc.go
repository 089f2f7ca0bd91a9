package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Результаты сравнения
const (
	Lower   = -1
	Equal   = 0
	Greater = 1
)

// Timestamp is a hybrid logical clock value.
// WallTime is in nanoseconds (UnixNano). NodeID breaks ties between replicas,
// so two timestamps produced by different replicas never compare Equal.
type Timestamp struct {
	WallTime int64     `json:"wall_time"`
	Counter  uint32    `json:"counter"`
	NodeID   uuid.UUID `json:"node_id"`
}

func (t Timestamp) Before(other Timestamp) bool { return Compare(t, other) == Lower }
func (t Timestamp) After(other Timestamp) bool  { return Compare(t, other) == Greater }
func (t Timestamp) String() string {
	return fmt.Sprintf("%s::%d::%s",
		time.Unix(0, t.WallTime).UTC().Format(time.RFC3339Nano),
		t.Counter, t.NodeID)
}

// Compare orders timestamps by wall time, then counter, then node id.
func Compare(a, b Timestamp) int {
	if a.WallTime < b.WallTime {
		return Lower
	}
	if a.WallTime > b.WallTime {
		return Greater
	}
	if a.Counter < b.Counter {
		return Lower
	}
	if a.Counter > b.Counter {
		return Greater
	}
	return bytes.Compare(a.NodeID[:], b.NodeID[:])
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var aux struct {
		WallTime *int64     `json:"wall_time"`
		Counter  *uint32    `json:"counter"`
		NodeID   *uuid.UUID `json:"node_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("timestamp: %v", err)
	}
	if aux.WallTime == nil || aux.Counter == nil || aux.NodeID == nil {
		return invalidState("timestamp %s: missing field", data)
	}
	t.WallTime = *aux.WallTime
	t.Counter = *aux.Counter
	t.NodeID = *aux.NodeID
	return nil
}

// TimeSource supplies wall clock readings to a Clock.
type TimeSource interface {
	Now() time.Time
}

// TimeSourceFunc adapts a function to TimeSource.
type TimeSourceFunc func() time.Time

func (f TimeSourceFunc) Now() time.Time { return f() }

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// SystemTime reads time.Now.
var SystemTime TimeSource = systemTime{}

type ClockOption func(*Clock)

// WithTimeSource replaces the wall clock used by Tick and Observe.
func WithTimeSource(src TimeSource) ClockOption {
	return func(c *Clock) {
		c.source = src
	}
}

// приватная структура состояния, на которую будем держать atomic.Pointer
type pair struct {
	wall    int64
	counter uint32
}

// Clock is the HLC generator owned by one replica. It is safe for concurrent
// use: state is swapped with CAS on an atomic.Pointer.
type Clock struct {
	nodeID uuid.UUID
	source TimeSource
	st     atomic.Pointer[pair]
	offset atomic.Int64 // nanoseconds, for tests and simulations
}

// NewClock returns a clock at the current wall reading with counter 0.
func NewClock(nodeID uuid.UUID, opts ...ClockOption) *Clock {
	c := &Clock{
		nodeID: nodeID,
		source: SystemTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.st.Store(&pair{wall: c.nowNano()})
	return c
}

// RestoreClock returns a clock for ts.NodeID that continues from ts.
// Later ticks are strictly greater than ts even if the wall clock went back.
func RestoreClock(ts Timestamp, opts ...ClockOption) *Clock {
	c := &Clock{
		nodeID: ts.NodeID,
		source: SystemTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.st.Store(&pair{wall: ts.WallTime, counter: ts.Counter})
	return c
}

// WithOffset shifts the wall clock (simulations / tests). Zero resets it.
func (c *Clock) WithOffset(offset time.Duration) *Clock {
	c.offset.Store(int64(offset))
	return c
}

func (c *Clock) NodeID() uuid.UUID { return c.nodeID }

func (c *Clock) nowNano() int64 {
	off := time.Duration(c.offset.Load())
	return c.source.Now().Add(off).UnixNano()
}

func (c *Clock) stamp(p *pair) Timestamp {
	return Timestamp{WallTime: p.wall, Counter: p.counter, NodeID: c.nodeID}
}

// Current returns the last issued timestamp without advancing the clock.
func (c *Clock) Current() Timestamp {
	return c.stamp(c.st.Load())
}

// Tick advances the clock and returns the new timestamp. If the wall clock
// moved forward the counter resets to zero, otherwise the counter is bumped.
// The result is strictly greater than anything this clock returned before.
// Tick panics with ErrClockOverflow if the counter is exhausted within one
// wall clock reading.
func (c *Clock) Tick() Timestamp {
	for {
		now := c.nowNano()
		p := c.st.Load()

		var next pair
		if now > p.wall {
			next.wall = now
			next.counter = 0
		} else {
			next.wall = p.wall
			next.counter = bump(p.counter)
		}

		if c.st.CompareAndSwap(p, &next) {
			return c.stamp(&next)
		}
	}
}

// Observe folds a remote timestamp into the clock and returns the new local
// timestamp, which is greater than both remote and every earlier local value.
func (c *Clock) Observe(remote Timestamp) Timestamp {
	for {
		now := c.nowNano()
		p := c.st.Load()

		wall := max(p.wall, now, remote.WallTime)

		var counter uint32
		switch {
		case wall == p.wall && wall == remote.WallTime:
			counter = bump(max(p.counter, remote.Counter))
		case wall == p.wall:
			counter = bump(p.counter)
		case wall == remote.WallTime:
			counter = bump(remote.Counter)
		default:
			// wall clock is ahead of both
			counter = 0
		}

		next := &pair{wall: wall, counter: counter}
		if c.st.CompareAndSwap(p, next) {
			return c.stamp(next)
		}
	}
}

func bump(counter uint32) uint32 {
	if counter == math.MaxUint32 {
		panic(ErrClockOverflow)
	}
	return counter + 1
}
