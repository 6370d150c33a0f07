package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Chunk tags, always 4 bytes, per spec.md §6/§4.7.
var (
	tagHead = [4]byte{'H', 'E', 'A', 'D'}
	tagCons = [4]byte{'C', 'O', 'N', 'S'}
	tagCode = [4]byte{'C', 'O', 'D', 'E'}
	tagMeta = [4]byte{'M', 'E', 'T', 'A'}
)

// Write serializes p as a sequence of `[tag:4][len:u64][bytes:len]`
// chunks: HEAD, CONS, CODE and, if HasMeta, META.
func Write(w io.Writer, p *Program) error {
	if err := writeChunk(w, tagHead, encodeHead(p)); err != nil {
		return err
	}
	if err := writeChunk(w, tagCons, p.Constants); err != nil {
		return err
	}
	if err := writeChunk(w, tagCode, p.Code); err != nil {
		return err
	}
	if p.HasMeta {
		if err := writeChunk(w, tagMeta, encodeMeta(p)); err != nil {
			return err
		}
	}
	return nil
}

func encodeHead(p *Program) []byte {
	buf := make([]byte, 9)
	buf[0] = p.Version
	binary.LittleEndian.PutUint64(buf[1:], p.EntryIP)
	return buf
}

func encodeMeta(p *Program) []byte {
	buf := make([]byte, 48)
	copy(buf[0:16], p.BuildID[:])
	copy(buf[16:48], p.ContentHash[:])
	return buf
}

func writeChunk(w io.Writer, tag [4]byte, payload []byte) error {
	if _, err := w.Write(tag[:]); err != nil {
		return err
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Read deserializes a Program, ignoring any chunk tag it doesn't
// recognize (forward compatibility, spec.md §4.7) but warning about it
// through the returned warnings slice.
func Read(r io.Reader) (p *Program, warnings []string, err error) {
	p = &Program{}
	var sawHead, sawCons, sawCode bool
	for {
		var tag [4]byte
		_, err := io.ReadFull(r, tag[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, warnings, err
		}
		var lenBuf [8]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, warnings, err
		}
		length := binary.LittleEndian.Uint64(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, warnings, err
		}
		switch tag {
		case tagHead:
			if len(payload) < 9 {
				return nil, warnings, fmt.Errorf("truncated HEAD chunk")
			}
			p.Version = payload[0]
			p.EntryIP = binary.LittleEndian.Uint64(payload[1:9])
			sawHead = true
		case tagCons:
			p.Constants = payload
			sawCons = true
		case tagCode:
			p.Code = payload
			sawCode = true
		case tagMeta:
			if len(payload) >= 48 {
				copy(p.BuildID[:], payload[0:16])
				copy(p.ContentHash[:], payload[16:48])
				p.HasMeta = true
			}
		default:
			warnings = append(warnings, fmt.Sprintf("ignoring unknown chunk tag %q", tag))
		}
	}
	if !sawHead || !sawCons || !sawCode {
		return nil, warnings, fmt.Errorf("program missing required HEAD/CONS/CODE chunk")
	}
	return p, warnings, nil
}

// ComputeContentHash hashes a program's constants+code with BLAKE2b-256,
// used by internal/store to content-address the compiled-program cache
// (SPEC_FULL §3, §10).
func ComputeContentHash(p *Program) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(p.Constants)
	h.Write(p.Code)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Bytes serializes p into an in-memory buffer, a convenience for the
// store and for tests.
func Bytes(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
