package trace

import (
	"dpl/internal/bytecode"
	"encoding/json"
	"testing"
)

func TestNilBroadcasterEmitAndCloseAreNoops(t *testing.T) {
	var b *Broadcaster
	// Must not panic: the VM's hot path calls Emit unconditionally when a
	// Tracer is configured, but a caller that never requested tracing
	// passes a nil *Broadcaster through the same Tracer interface.
	b.Emit(0, bytecode.OpAdd, 1)
	if err := b.Close(); err != nil {
		t.Fatalf("Close on nil broadcaster: %v", err)
	}
}

func TestEmitWithNoClientsDoesNotPanic(t *testing.T) {
	b := NewBroadcaster("127.0.0.1:0")
	defer b.Close()
	b.Emit(3, bytecode.OpPushNumber, 2)
}

func TestEventMarshalsOpName(t *testing.T) {
	ev := Event{IP: 5, Op: bytecode.OpAdd.String(), StackDepth: 2}
	if ev.Op != "ADD" {
		t.Fatalf("got %q want ADD", ev.Op)
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != `{"ip":5,"op":"ADD","stack_depth":2}` {
		t.Fatalf("got %s", raw)
	}
}
