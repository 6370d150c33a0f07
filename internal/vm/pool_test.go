package vm

import "testing"

func TestAcquireReleaseBalancesRefcount(t *testing.T) {
	pool := NewPool()
	s := pool.NewString("hello")
	if s.Cell.Refcount != 1 {
		t.Fatalf("expected refcount 1 after allocation, got %d", s.Cell.Refcount)
	}
	pool.Acquire(s)
	if s.Cell.Refcount != 2 {
		t.Fatalf("expected refcount 2 after Acquire, got %d", s.Cell.Refcount)
	}
	pool.Release(s)
	if s.Cell.Refcount != 1 {
		t.Fatalf("expected refcount 1 after one Release, got %d", s.Cell.Refcount)
	}
	pool.Release(s)
	if s.Cell.Refcount != 0 {
		t.Fatalf("expected refcount 0 after final Release, got %d", s.Cell.Refcount)
	}
}

func TestReleasedCellMovesToFreedList(t *testing.T) {
	pool := NewPool()
	s := pool.NewString("hello")
	cell := s.Cell
	pool.Release(s)
	if pool.allocated == cell {
		t.Fatal("expected the cell to leave the allocated list once its refcount hit zero")
	}
	if pool.freed != cell {
		t.Fatal("expected the cell to be linked onto the freed list")
	}
}

func TestFreedCellIsReusedWhenCapacitySuffices(t *testing.T) {
	pool := NewPool()
	first := pool.NewString("0123456789")
	firstCell := first.Cell
	pool.Release(first)

	second := pool.NewString("ab")
	if second.Cell != firstCell {
		t.Fatal("expected a freed cell with sufficient capacity to be reused")
	}
	if string(second.Cell.Bytes) != "ab" {
		t.Fatalf("got %q want %q", second.Cell.Bytes, "ab")
	}
}

func TestAcquireReleaseIgnoreInlineValues(t *testing.T) {
	pool := NewPool()
	n := NumberValue(1)
	b := BooleanValue(true)
	// Inline Number/Boolean values carry no Cell; Acquire/Release must be
	// no-ops rather than nil-dereference.
	pool.Acquire(n)
	pool.Release(n)
	pool.Acquire(b)
	pool.Release(b)
}
