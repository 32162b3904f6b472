package tm

import "unsafe"

// undoLogEntry captures the value that was at addr *before* an in-place
// write, so rollback can restore it: an address plus a plain byte-slice
// copy of the prior value, with no persistent-heap pointer to swizzle.
type undoLogEntry struct {
	addr unsafe.Pointer
	prior []byte
}

// undoLog is the append-only undo buffer used by IrrevocAboSW. The
// Thread.abiUndoLog buffer has this type but nothing writes to it. Unlike
// writeLog, stores are applied in place
// immediately; the log exists purely so abort can restore memory.
type undoLog struct {
	entries []undoLogEntry
}

// log snapshots the `size` bytes currently at ptr (the value about to be
// overwritten) before the caller performs the in-place write.
func (u *undoLog) log(ptr unsafe.Pointer, size uintptr) {
	prior := make([]byte, size)
	copy(prior, asBytes(ptr, size))
	u.entries = append(u.entries, undoLogEntry{addr: ptr, prior: prior})
}

// rollback replays prior values newest-first down to untilSize, then
// truncates the log.
func (u *undoLog) rollback(untilSize int) {
	for i := len(u.entries) - 1; i >= untilSize; i-- {
		e := u.entries[i]
		copy(asBytes(e.addr, uintptr(len(e.prior))), e.prior)
	}
	u.entries = u.entries[:untilSize]
}

// commit discards the log: the in-place writes are already live, so there
// is nothing left to do.
func (u *undoLog) commit() { u.entries = u.entries[:0] }

func (u *undoLog) size() int { return len(u.entries) }

func (u *undoLog) clear() { u.entries = u.entries[:0] }
