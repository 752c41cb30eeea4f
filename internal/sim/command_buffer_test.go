package sim

import "testing"

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: "a"},
		{ActorID: "b"},
		{ActorID: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	// Push again to ensure the indices wrap correctly.
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 commands after wraparound, got %d", len(wrapped))
	}
	if wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
}

func TestCommandBufferKeepsArrivalOrder(t *testing.T) {
	buffer := NewCommandBuffer(8, nil)
	kinds := []CommandKind{CommandSelect, CommandMove, CommandMove, CommandAttack}
	for i, kind := range kinds {
		if !buffer.Push(Command{ActorID: "p1", Kind: kind, OriginTick: uint64(i)}) {
			t.Fatalf("push %d failed", i)
		}
	}
	drained := buffer.Drain()
	if len(drained) != len(kinds) {
		t.Fatalf("expected %d commands, got %d", len(kinds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.Kind != kinds[i] || cmd.OriginTick != uint64(i) {
			t.Fatalf("command %d out of order: %+v", i, cmd)
		}
	}
}

func TestCommandBufferOverflowMetric(t *testing.T) {
	counters := newRecordingCounters()
	buffer := NewCommandBuffer(1, counters)
	if !buffer.Push(Command{ActorID: "one"}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{ActorID: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	if got := counters.added[commandBufferOverflowMetricKey]; got != 1 {
		t.Fatalf("expected one overflow increment, got %d", got)
	}
	if got := counters.stored[commandBufferOccupancyMetricKey]; got != 1 {
		t.Fatalf("expected occupancy gauge 1, got %d", got)
	}
	buffer.Drain()
	if got := counters.stored[commandBufferOccupancyMetricKey]; got != 0 {
		t.Fatalf("expected occupancy gauge 0 after drain, got %d", got)
	}
}

type recordingCounters struct {
	added  map[string]uint64
	stored map[string]uint64
}

func newRecordingCounters() *recordingCounters {
	return &recordingCounters{
		added:  make(map[string]uint64),
		stored: make(map[string]uint64),
	}
}

func (c *recordingCounters) Add(key string, delta uint64) { c.added[key] += delta }
func (c *recordingCounters) Store(key string, val uint64) { c.stored[key] = val }
