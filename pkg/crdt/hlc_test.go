package crdt

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	node1 = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	node2 = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	node3 = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

// manualTime is a TimeSource the test moves by hand.
type manualTime struct {
	mu  sync.Mutex
	now int64
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Unix(0, m.now)
}

func (m *manualTime) Set(nanos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = nanos
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    Timestamp
		b    Timestamp
		want int
	}{
		{
			name: "a walltime < b walltime",
			a:    Timestamp{WallTime: 100, Counter: 5, NodeID: node2},
			b:    Timestamp{WallTime: 200, Counter: 3, NodeID: node1},
			want: Lower,
		},
		{
			name: "a walltime > b walltime",
			a:    Timestamp{WallTime: 300, Counter: 1, NodeID: node1},
			b:    Timestamp{WallTime: 200, Counter: 10, NodeID: node2},
			want: Greater,
		},
		{
			name: "equal walltime, a counter < b counter",
			a:    Timestamp{WallTime: 100, Counter: 3, NodeID: node3},
			b:    Timestamp{WallTime: 100, Counter: 5, NodeID: node1},
			want: Lower,
		},
		{
			name: "equal walltime, a counter > b counter",
			a:    Timestamp{WallTime: 100, Counter: 7, NodeID: node1},
			b:    Timestamp{WallTime: 100, Counter: 5, NodeID: node2},
			want: Greater,
		},
		{
			name: "equal walltime and counter, a node < b node",
			a:    Timestamp{WallTime: 100, Counter: 5, NodeID: node1},
			b:    Timestamp{WallTime: 100, Counter: 5, NodeID: node2},
			want: Lower,
		},
		{
			name: "equal walltime and counter, a node > b node",
			a:    Timestamp{WallTime: 100, Counter: 5, NodeID: node3},
			b:    Timestamp{WallTime: 100, Counter: 5, NodeID: node2},
			want: Greater,
		},
		{
			name: "completely equal timestamps",
			a:    Timestamp{WallTime: 100, Counter: 5, NodeID: node1},
			b:    Timestamp{WallTime: 100, Counter: 5, NodeID: node1},
			want: Equal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Compare(tc.a, tc.b)
			if got != tc.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
			if back := Compare(tc.b, tc.a); back != -tc.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tc.b, tc.a, back, -tc.want)
			}
		})
	}
}

func TestCompare_FieldPrecedence(t *testing.T) {
	// each clock wins on one field and loses on the later ones
	byWall := Timestamp{WallTime: 2, Counter: 0, NodeID: node1}
	byCounter := Timestamp{WallTime: 1, Counter: 9, NodeID: node1}
	byNode := Timestamp{WallTime: 1, Counter: 0, NodeID: node3}

	if !byWall.After(byCounter) || !byWall.After(byNode) {
		t.Errorf("wall time must dominate counter and node id")
	}
	if !byCounter.After(byNode) {
		t.Errorf("counter must dominate node id")
	}
	if !byNode.Before(byCounter) {
		t.Errorf("Before is not the inverse of After")
	}
}

func TestClock_New(t *testing.T) {
	src := &manualTime{now: 1000}
	c := NewClock(node1, WithTimeSource(src))

	got := c.Current()
	want := Timestamp{WallTime: 1000, Counter: 0, NodeID: node1}
	if got != want {
		t.Errorf("Current() = %v, want %v", got, want)
	}
	if c.NodeID() != node1 {
		t.Errorf("NodeID() = %v, want %v", c.NodeID(), node1)
	}
}

func TestClock_Tick(t *testing.T) {
	tests := []struct {
		name  string
		walls []int64 // wall reading before each tick
		want  []Timestamp
	}{
		{
			name:  "wall clock advances",
			walls: []int64{2000, 3000},
			want: []Timestamp{
				{WallTime: 2000, Counter: 0, NodeID: node1},
				{WallTime: 3000, Counter: 0, NodeID: node1},
			},
		},
		{
			name:  "wall clock stalls",
			walls: []int64{1000, 1000, 1000},
			want: []Timestamp{
				{WallTime: 1000, Counter: 1, NodeID: node1},
				{WallTime: 1000, Counter: 2, NodeID: node1},
				{WallTime: 1000, Counter: 3, NodeID: node1},
			},
		},
		{
			name:  "wall clock goes backwards",
			walls: []int64{5000, 4000, 4500},
			want: []Timestamp{
				{WallTime: 5000, Counter: 0, NodeID: node1},
				{WallTime: 5000, Counter: 1, NodeID: node1},
				{WallTime: 5000, Counter: 2, NodeID: node1},
			},
		},
		{
			name:  "counter resets once wall clock catches up",
			walls: []int64{1000, 1001},
			want: []Timestamp{
				{WallTime: 1000, Counter: 1, NodeID: node1},
				{WallTime: 1001, Counter: 0, NodeID: node1},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &manualTime{now: 1000}
			c := NewClock(node1, WithTimeSource(src))

			prev := c.Current()
			for i, wall := range tc.walls {
				src.Set(wall)
				got := c.Tick()
				if got != tc.want[i] {
					t.Errorf("Tick() #%d = %v, want %v", i, got, tc.want[i])
				}
				if !got.After(prev) {
					t.Errorf("Tick() #%d = %v is not after %v", i, got, prev)
				}
				prev = got
			}
		})
	}
}

func TestClock_TickMonotonicWithRealTime(t *testing.T) {
	c := NewClock(node1)
	prev := c.Tick()
	for i := 0; i < 10_000; i++ {
		next := c.Tick()
		if !next.After(prev) {
			t.Fatalf("Tick() = %v, not after %v", next, prev)
		}
		prev = next
	}
}

func TestClock_WithOffset(t *testing.T) {
	src := &manualTime{now: 1000}
	c := NewClock(node1, WithTimeSource(src)).WithOffset(time.Duration(500))

	got := c.Tick()
	if got.WallTime != 1500 {
		t.Errorf("Tick().WallTime = %d, want 1500", got.WallTime)
	}
}

func TestClock_Overflow(t *testing.T) {
	src := &manualTime{now: 1000}
	c := RestoreClock(Timestamp{WallTime: 1000, Counter: math.MaxUint32, NodeID: node1}, WithTimeSource(src))

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrClockOverflow) {
			t.Errorf("Tick() panic = %v, want %v", r, ErrClockOverflow)
		}
	}()
	c.Tick()
	t.Errorf("Tick() did not panic on counter overflow")
}

func TestClock_Restore(t *testing.T) {
	src := &manualTime{now: 10}
	last := Timestamp{WallTime: 1000, Counter: 4, NodeID: node2}
	c := RestoreClock(last, WithTimeSource(src))

	got := c.Tick()
	want := Timestamp{WallTime: 1000, Counter: 5, NodeID: node2}
	if got != want {
		t.Errorf("Tick() after restore = %v, want %v", got, want)
	}
}

func TestClock_Observe(t *testing.T) {
	tests := []struct {
		name   string
		local  Timestamp
		remote Timestamp
		wall   int64
		want   Timestamp
	}{
		{
			name:   "remote in the future",
			local:  Timestamp{WallTime: 100, Counter: 3, NodeID: node1},
			remote: Timestamp{WallTime: 500, Counter: 7, NodeID: node2},
			wall:   200,
			want:   Timestamp{WallTime: 500, Counter: 8, NodeID: node1},
		},
		{
			name:   "remote in the past",
			local:  Timestamp{WallTime: 300, Counter: 2, NodeID: node1},
			remote: Timestamp{WallTime: 100, Counter: 9, NodeID: node2},
			wall:   200,
			want:   Timestamp{WallTime: 300, Counter: 3, NodeID: node1},
		},
		{
			name:   "same wall time takes the larger counter",
			local:  Timestamp{WallTime: 300, Counter: 2, NodeID: node1},
			remote: Timestamp{WallTime: 300, Counter: 6, NodeID: node2},
			wall:   100,
			want:   Timestamp{WallTime: 300, Counter: 7, NodeID: node1},
		},
		{
			name:   "wall clock ahead of both",
			local:  Timestamp{WallTime: 300, Counter: 2, NodeID: node1},
			remote: Timestamp{WallTime: 400, Counter: 6, NodeID: node2},
			wall:   900,
			want:   Timestamp{WallTime: 900, Counter: 0, NodeID: node1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &manualTime{now: tc.wall}
			c := RestoreClock(tc.local, WithTimeSource(src))

			got := c.Observe(tc.remote)
			if got != tc.want {
				t.Errorf("Observe(%v) = %v, want %v", tc.remote, got, tc.want)
			}
			if !c.Tick().After(tc.remote) {
				t.Errorf("Tick() after Observe is not after remote %v", tc.remote)
			}
		})
	}
}

func TestClock_ConcurrentTicks(t *testing.T) {
	c := NewClock(node1, WithTimeSource(&manualTime{now: 1}))

	const goroutines, perGoroutine = 8, 500
	results := make(chan Timestamp, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- c.Tick()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[Timestamp]struct{})
	for ts := range results {
		if _, dup := seen[ts]; dup {
			t.Fatalf("Tick() returned %v twice", ts)
		}
		seen[ts] = struct{}{}
	}
	if got := c.Current().Counter; got != goroutines*perGoroutine {
		t.Errorf("Current().Counter = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestTimestamp_JSON(t *testing.T) {
	ts := Timestamp{WallTime: 1234, Counter: 5, NodeID: node2}

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Timestamp
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != ts {
		t.Errorf("Unmarshal() = %v, want %v", got, ts)
	}

	invalid := []string{
		`{"counter":1,"node_id":"00000000-0000-0000-0000-000000000001"}`,
		`{"wall_time":1,"node_id":"00000000-0000-0000-0000-000000000001"}`,
		`{"wall_time":1,"counter":1}`,
		`{"wall_time":1,"counter":1,"node_id":"not-a-uuid"}`,
		`[]`,
	}
	for _, in := range invalid {
		var ts Timestamp
		if err := json.Unmarshal([]byte(in), &ts); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Unmarshal(%s) error = %v, want %v", in, err, ErrInvalidState)
		}
	}
}
