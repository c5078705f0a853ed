package events

import "testing"

type testEvent string

func (e testEvent) EventType() string { return string(e) }

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe("a", 4)
	c, cancelC := b.Subscribe("c", 4)
	defer cancelC()

	b.Emit(testEvent("puzzle.solved"))
	if got := (<-a).EventType(); got != "puzzle.solved" {
		t.Fatalf("subscriber a got %q", got)
	}
	if got := (<-c).EventType(); got != "puzzle.solved" {
		t.Fatalf("subscriber c got %q", got)
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatalf("expected channel to be closed after cancel")
	}
	b.Emit(testEvent("after"))
	if got := (<-c).EventType(); got != "after" {
		t.Fatalf("subscriber c got %q", got)
	}
}

func TestBroadcasterDropsForSlowSubscribers(t *testing.T) {
	b := NewBroadcaster()
	var dropped []string
	b.SetDropHandler(func(name string) { dropped = append(dropped, name) })
	_, cancel := b.Subscribe("slow", 1)
	defer cancel()

	b.Emit(testEvent("one"))
	b.Emit(testEvent("two"))
	if len(dropped) != 1 || dropped[0] != "slow" {
		t.Fatalf("expected one drop for slow, got %v", dropped)
	}
}

func TestBufferDrain(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent("x"))
	buf.Emit(nil)
	if got := buf.Drain(); len(got) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(got))
	}
	buf.Emit(testEvent("y"))
	buf.Reset()
	if got := buf.Drain(); len(got) != 0 {
		t.Fatalf("expected reset buffer to be empty, got %d", len(got))
	}
}

func TestEmitterFuncForwards(t *testing.T) {
	var got []string
	var emitter Emitter = EmitterFunc(func(evt Event) { got = append(got, evt.EventType()) })
	emitter.Emit(testEvent("puzzle.instantiated"))
	EmitterFunc(nil).Emit(testEvent("ignored"))
	NoopEmitter{}.Emit(testEvent("ignored"))
	if len(got) != 1 || got[0] != "puzzle.instantiated" {
		t.Fatalf("unexpected forwarded events %v", got)
	}
}
