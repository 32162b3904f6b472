package tm

import "unsafe"

// dispatch is the Method Group's pluggable concurrency-control strategy:
// each of SpecSW, SglSW, IrrevocSW, IrrevocAboSW, BFHW, and LiteHW
// implements it. The orchestrator (methodGroup) never open-codes a
// strategy; it only calls through this interface, matching the
// original's gtm_dispatch pure-virtual base.
type dispatch interface {
	// name identifies the dispatch for logging and the per-dispatch
	// started/committed debug counters ("SpecSW", "SglSW", ...).
	name() string

	// begin is called with the thread's nesting already incremented and
	// is responsible for acquiring whatever locks/counters the strategy
	// needs and publishing the thread's state bits.
	begin(t *Thread)

	// load reads size bytes at addr under modifier mod, returning a copy
	// the caller may read freely.
	load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte
	// store writes value (size bytes) to addr under modifier mod.
	store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier)

	memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier)
	memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier)

	// tryCommit attempts to commit the current transaction. It returns
	// NoRestart on success, or a RestartReason the caller should restart
	// with.
	tryCommit(t *Thread) RestartReason

	// rollback aborts the current transaction. cp is non-nil for a
	// closed-nested abort (restore to checkpoint); nil for an outermost
	// abort. Dispatches that can never roll back (SglSW, IrrevocSW, BFHW,
	// LiteHW) call fatalf.
	rollback(t *Thread, cp *checkpoint)

	// canRunUninstrumented reports whether this dispatch may execute the
	// transaction's uninstrumented code path (SglSW, IrrevocSW, LiteHW).
	canRunUninstrumented() bool
	// canRestart reports whether trycommit/validate failures funnel into
	// a restart, as opposed to being fatal.
	canRestart() bool
}

// readValue is a small helper shared by dispatch load() implementations
// that read directly from memory (no instrumentation): it copies size
// bytes starting at addr into a freshly allocated slice.
func readValue(addr unsafe.Pointer, size uintptr) []byte {
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(addr), size))
	return out
}

// writeValue is the matching direct-write helper.
func writeValue(addr unsafe.Pointer, value []byte) {
	copy(unsafe.Slice((*byte)(addr), len(value)), value)
}
