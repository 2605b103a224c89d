// ABOUTME: Tests for the bounded SPSC command queue
// ABOUTME: Covers FIFO order, backpressure drops and allocation-free operation
package mixer

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(8)
	for i := 1; i <= 5; i++ {
		if !q.Push(Command{Op: OpSetBusGain, Handle: Handle(i)}) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
	}

	var seen []Handle
	n := q.DrainInto(func(cmd *Command) {
		seen = append(seen, cmd.Handle)
	})
	if n != 5 {
		t.Errorf("expected 5 drained, got %d", n)
	}
	for i, h := range seen {
		if h != Handle(i+1) {
			t.Errorf("position %d: expected handle %d, got %d", i, i+1, h)
		}
	}
}

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(8)

	accepted := 0
	rejected := 0
	for i := 0; i < 13; i++ {
		if q.Push(Command{Op: OpSetBusGain, Handle: Handle(i)}) {
			accepted++
		} else {
			rejected++
		}
	}
	if accepted != 8 {
		t.Errorf("expected 8 accepted, got %d", accepted)
	}
	if rejected != 5 {
		t.Errorf("expected 5 rejected, got %d", rejected)
	}
	if got := q.Dropped(); got != 5 {
		t.Errorf("expected dropped counter 5, got %d", got)
	}

	var seen []Handle
	q.DrainInto(func(cmd *Command) {
		seen = append(seen, cmd.Handle)
	})
	if len(seen) != 8 {
		t.Fatalf("expected all 8 accepted commands observed, got %d", len(seen))
	}
	for i, h := range seen {
		if h != Handle(i) {
			t.Errorf("position %d: expected handle %d, got %d", i, i, h)
		}
	}
}

func TestQueueDrainExactlyOnce(t *testing.T) {
	q := NewQueue(4)
	q.Push(Command{Op: OpSetBusGain})

	if n := q.DrainInto(func(*Command) {}); n != 1 {
		t.Errorf("expected 1 on first drain, got %d", n)
	}
	if n := q.DrainInto(func(*Command) {}); n != 0 {
		t.Errorf("expected 0 on second drain, got %d", n)
	}
}

func TestQueueReusableAfterDrain(t *testing.T) {
	q := NewQueue(4)
	for round := 0; round < 10; round++ {
		for i := 0; i < 4; i++ {
			if !q.Push(Command{Op: OpSetBusGain}) {
				t.Fatalf("round %d: push %d failed", round, i)
			}
		}
		if q.Push(Command{Op: OpSetBusGain}) {
			t.Fatalf("round %d: push beyond capacity succeeded", round)
		}
		if n := q.DrainInto(func(*Command) {}); n != 4 {
			t.Fatalf("round %d: expected 4 drained, got %d", round, n)
		}
	}
	if got := q.Dropped(); got != 10 {
		t.Errorf("expected 10 drops, got %d", got)
	}
}

func TestQueueCapacityRounding(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		expected int
	}{
		{"zero", 0, 2},
		{"one", 1, 2},
		{"exact power", 256, 256},
		{"rounds up", 300, 512},
		{"small odd", 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.capacity)
			if got := q.Cap(); got != tt.expected {
				t.Errorf("expected capacity %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestQueueClearsSlotsAfterDrain(t *testing.T) {
	q := NewQueue(4)
	buf := monoBuffer("clank", 8, 1)
	q.Push(Command{Op: OpPlaySound, Buffer: buf})
	q.DrainInto(func(*Command) {})

	for i := range q.cmds {
		if q.cmds[i].Buffer != nil {
			t.Fatal("expected drained slot to release its buffer reference")
		}
	}
}

func TestQueueNoAllocations(t *testing.T) {
	q := NewQueue(64)
	cmd := Command{Op: OpSetBusGain, Gain: 0.5}
	nop := func(*Command) {}

	allocs := testing.AllocsPerRun(100, func() {
		for i := 0; i < 32; i++ {
			q.Push(cmd)
		}
		q.DrainInto(nop)
	})
	if allocs != 0 {
		t.Errorf("expected 0 allocations per push/drain cycle, got %v", allocs)
	}
}
