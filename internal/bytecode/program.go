package bytecode

// FormatVersion is the HEAD chunk's version byte. Bump when the opcode
// ABI changes in a way that breaks old CODE chunks.
const FormatVersion = 1

// Program is a fully linked, directly executable unit: a constants
// buffer and a code buffer, plus the entry offset where execution
// begins (after all user-function bodies, per spec.md §4.6).
type Program struct {
	Version   byte
	EntryIP   uint64
	Constants []byte
	Code      []byte

	// BuildID and ContentHash are additive identity metadata (SPEC_FULL §3)
	// carried in an optional META chunk; neither affects execution.
	BuildID     [16]byte
	ContentHash [32]byte
	HasMeta     bool

	// FuncNames maps a user function's begin_ip to its source name.
	// Debug-only: populated by the compiler, consulted by the VM's fault
	// path when a runtime error attaches a call stack (SPEC_FULL §11);
	// never read by the VM's execution loop itself.
	FuncNames map[uint64]string
}

func NewProgram(entryIP uint64, constants, code []byte) *Program {
	return &Program{Version: FormatVersion, EntryIP: entryIP, Constants: constants, Code: code}
}
