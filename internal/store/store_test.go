package store

import (
	"path/filepath"
	"testing"

	"dpl/internal/bytecode"
)

func testProgram() *bytecode.Program {
	pool := bytecode.NewConstantsPool()
	off := pool.AddNumber(42)
	code := bytecode.NewChunk()
	code.WriteOp(bytecode.OpPushNumber)
	code.WriteU64(off)
	return bytecode.NewProgram(0, pool.Bytes, code.Code)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "programs.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPutThenGetRoundTrips(t *testing.T) {
	st := openTestStore(t)
	prog := testProgram()

	entry, err := st.Put(prog)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := st.Get(entry.ContentHash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Code) != string(prog.Code) {
		t.Fatal("code mismatch after round-trip")
	}
	if string(got.Constants) != string(prog.Constants) {
		t.Fatal("constants mismatch after round-trip")
	}
	if !got.HasMeta {
		t.Fatal("expected Get to populate HasMeta")
	}
}

func TestPutIsIdempotentByContentHash(t *testing.T) {
	st := openTestStore(t)
	prog := testProgram()

	first, err := st.Put(prog)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := st.Put(prog)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first.ContentHash != second.ContentHash {
		t.Fatal("expected identical programs to content-address to the same hash")
	}

	entries, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one row after two Puts of the same program, got %d", len(entries))
	}
}

func TestGetUnknownHashErrors(t *testing.T) {
	st := openTestStore(t)
	var hash [32]byte
	if _, err := st.Get(hash); err == nil {
		t.Fatal("expected an error for an unknown content hash")
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	st := openTestStore(t)
	pool1 := bytecode.NewConstantsPool()
	pool1.AddNumber(1)
	p1 := bytecode.NewProgram(0, pool1.Bytes, []byte{byte(bytecode.OpReturn)})

	pool2 := bytecode.NewConstantsPool()
	pool2.AddNumber(2)
	p2 := bytecode.NewProgram(0, pool2.Bytes, []byte{byte(bytecode.OpReturn), byte(bytecode.OpReturn)})

	if _, err := st.Put(p1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := st.Put(p2); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
