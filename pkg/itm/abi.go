// Package itm is the external ABI surface of the runtime: the small set of entry points a compiler's
// transactional-memory code generation would call directly
// (ITM_beginTransaction, ITM_commitTransaction, ITM_LU4, ITM_WU4, ...).
// Per-type load/store glue is expressed once, generically, with Go
// generics rather than per-type/per-modifier code generation, matching
// the Design Notes guidance in : "none of this logic belongs in
// the core."
package itm

import (
	"fmt"
	"unsafe"

	"github.com/karlcbalzer/Parallbrid/internal/tm"
)

// Properties mirrors tm.Properties for callers that only import this
// package.
type Properties = tm.Properties

const (
	PropHasNoAbort        = tm.PropHasNoAbort
	PropDoesGoIrrevocable = tm.PropDoesGoIrrevocable
	PropInstrumentedCode  = tm.PropInstrumentedCode
	PropUninstrumentedCode = tm.PropUninstrumentedCode
	PropReadOnly          = tm.PropReadOnly
	PropUndoLogCode       = tm.PropUndoLogCode
)

// Modifier mirrors tm.LSModifier.
type Modifier = tm.LSModifier

const (
	ModR   = tm.ModR
	ModRaR = tm.ModRaR
	ModRaW = tm.ModRaW
	ModRfW = tm.ModRfW
	ModW   = tm.ModW
	ModWaR = tm.ModWaR
	ModWaW = tm.ModWaW
)

// Attempt mirrors tm.Attempt: the retry bookkeeping pkg/gotm threads
// through BeginTransaction on every (re)try.
type Attempt = tm.Attempt

// BeginTransaction is ITM_beginTransaction: start (or nest into) a
// transaction on the calling goroutine.
func BeginTransaction(prop Properties, uninstrumented bool, at Attempt) *tm.Thread {
	return tm.Begin(prop, uninstrumented, at)
}

// CommitTransaction is ITM_commitTransaction.
func CommitTransaction(t *tm.Thread) { tm.Commit(t) }

// CommitTransactionEH is ITM_commitTransactionEH: commit, then re-raise
// the in-flight Go panic value eh so the caller's unwind continues.
func CommitTransactionEH(t *tm.Thread, eh any) { tm.CommitEH(t, eh) }

// AbortTransaction is ITM_abortTransaction.
func AbortTransaction(t *tm.Thread, outer bool) { tm.Abort(t, outer) }

// InTransaction is ITM_inTransaction.
func InTransaction() bool { return tm.InTransaction() }

// GetTransactionId is ITM_getTransactionId.
func GetTransactionId() uint64 { return tm.GetTransactionID() }

// ChangeTransactionMode is ITM_changeTransactionMode.
func ChangeTransactionMode(t *tm.Thread, irrevocable bool) {
	tm.ChangeTransactionMode(t, irrevocable)
}

// Load reads a T from addr under the given access modifier, inside the
// transaction owned by t. It is the generic replacement for the
// per-width/per-type _ITM_LU1.._ITM_LD functions.
func Load[T any](t *tm.Thread, addr *T, mod Modifier) T {
	var zero T
	size := unsafe.Sizeof(zero)
	b := t.Load(unsafe.Pointer(addr), size, mod)
	return *(*T)(unsafe.Pointer(&b[0]))
}

// Store writes a T to addr under the given access modifier.
func Store[T any](t *tm.Thread, addr *T, v T, mod Modifier) {
	size := unsafe.Sizeof(v)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	t.Store(unsafe.Pointer(addr), b, mod)
}

// Memcpy is ITM_memcpyRnWt: transfer size bytes from src to dst with no
// assumption the regions overlap.
func Memcpy(t *tm.Thread, dst, src unsafe.Pointer, size uintptr, dstMod, srcMod Modifier) {
	t.Memtransfer(dst, src, size, false, dstMod, srcMod)
}

// Memmove is ITM_memmoveRnWt: like Memcpy, but the regions may overlap.
func Memmove(t *tm.Thread, dst, src unsafe.Pointer, size uintptr, dstMod, srcMod Modifier) {
	t.Memtransfer(dst, src, size, true, dstMod, srcMod)
}

// Memset is ITM_memsetW: fill size bytes at dst with c.
func Memset(t *tm.Thread, dst unsafe.Pointer, c byte, size uintptr, mod Modifier) {
	t.Memset(dst, c, size, mod)
}

// libraryVersion is the ABI version this package implements, returned by
// LibraryVersion and used by VersionCompatible.
const libraryVersion = "1.0.0-invalbrid"

// LibraryVersion is _ITM_libraryVersion.
func LibraryVersion() string { return libraryVersion }

// VersionCompatible is _ITM_versionCompatible: reports whether a caller
// compiled against `want` can link against this library.
func VersionCompatible(want string) bool { return want == libraryVersion }

// EffectiveConfig returns the retry budgets the runtime is currently
// configured with (ITM_CONFIG_FILE, or the built-in defaults).
func EffectiveConfig() tm.Config { return tm.EffectiveConfig() }

// ReleaseThread deregisters the calling goroutine's Thread Record. Call it
// once a long-running worker goroutine is about to exit; see
// tm.ReleaseThread for why Go has no automatic hook for this.
func ReleaseThread() { tm.ReleaseThread() }

// Error formats a RestartReason the way a compiler runtime would surface
// an uncaught restart to a diagnostic log.
func Error(reason tm.RestartReason) error {
	if reason == tm.NoRestart {
		return nil
	}
	return fmt.Errorf("transaction restart: %s", reason)
}
