package bytecode

import (
	"bytes"
	"testing"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func TestWriteReadRoundTrip(t *testing.T) {
	pool := NewConstantsPool()
	off := pool.AddNumber(42)
	code := NewChunk()
	code.WriteOp(OpPushNumber)
	code.WriteU64(off)
	code.WriteOp(OpReturn)

	p := NewProgram(0, pool.Bytes, code.Code)
	raw, err := Bytes(p)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	got, warnings, err := Read(bytesReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got.Version != FormatVersion {
		t.Fatalf("got version %d want %d", got.Version, FormatVersion)
	}
	if got.EntryIP != 0 {
		t.Fatalf("got entry %d want 0", got.EntryIP)
	}
	if string(got.Code) != string(code.Code) {
		t.Fatalf("code mismatch")
	}
	if ReadNumber(got.Constants, off) != 42 {
		t.Fatalf("constants mismatch")
	}
	if got.HasMeta {
		t.Fatal("expected no META chunk when HasMeta was never set")
	}
}

func TestWriteReadRoundTripWithMeta(t *testing.T) {
	p := NewProgram(0, nil, []byte{byte(OpReturn)})
	p.HasMeta = true
	p.BuildID = [16]byte{1, 2, 3}
	p.ContentHash = ComputeContentHash(p)

	raw, err := Bytes(p)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got, _, err := Read(bytesReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.HasMeta {
		t.Fatal("expected META chunk to round-trip")
	}
	if got.BuildID != p.BuildID {
		t.Fatalf("got build id %x want %x", got.BuildID, p.BuildID)
	}
	if got.ContentHash != p.ContentHash {
		t.Fatalf("got content hash %x want %x", got.ContentHash, p.ContentHash)
	}
}

func TestReadIgnoresUnknownChunkTags(t *testing.T) {
	p := NewProgram(0, nil, []byte{byte(OpReturn)})
	raw, err := Bytes(p)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	// Append a well-formed but unrecognized trailing chunk.
	raw = append(raw, 'X', 'T', 'R', 'A')
	raw = append(raw, 3, 0, 0, 0, 0, 0, 0, 0, 'f', 'o', 'o')

	got, warnings, err := Read(bytesReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	if string(got.Code) != string(p.Code) {
		t.Fatal("expected CODE chunk to still parse despite the trailing unknown chunk")
	}
}

func TestContentHashIsDeterministic(t *testing.T) {
	p1 := NewProgram(0, []byte("abc"), []byte{1, 2, 3})
	p2 := NewProgram(0, []byte("abc"), []byte{1, 2, 3})
	if ComputeContentHash(p1) != ComputeContentHash(p2) {
		t.Fatal("expected identical constants+code to hash identically")
	}
	p3 := NewProgram(0, []byte("abd"), []byte{1, 2, 3})
	if ComputeContentHash(p1) == ComputeContentHash(p3) {
		t.Fatal("expected different constants to change the hash")
	}
}
