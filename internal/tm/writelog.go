package tm

import "unsafe"

// writeLogEntry is one (address, length, bytes) record in a speculative
// write log. Loads are not recorded here.
type writeLogEntry struct {
	addr  unsafe.Pointer
	value []byte
}

// writeLog is the append-only buffer SpecSW buffers its speculative writes
// into before they are replayed to memory at commit.
type writeLog struct {
	entries []writeLogEntry
}

// asBytes reinterprets the size bytes at ptr as a byte slice, for
// treating a typed address as a raw buffer.
func asBytes(ptr unsafe.Pointer, size uintptr) []byte {
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}

// log appends a (addr, value) record, copying `size` bytes starting at
// value into the log. Returns the stored copy so callers can keep a
// direct reference to it.
func (l *writeLog) log(addr unsafe.Pointer, value unsafe.Pointer, size uintptr) []byte {
	buf := make([]byte, size)
	copy(buf, asBytes(value, size))
	l.entries = append(l.entries, writeLogEntry{addr: addr, value: buf})
	return buf
}

// find returns the most recently logged value for addr, for the
// read-your-own-writes check every load performs before falling through
// to a direct memory read.
func (l *writeLog) find(addr unsafe.Pointer, size uintptr) ([]byte, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.addr == addr && uintptr(len(e.value)) == size {
			return e.value, true
		}
	}
	return nil, false
}

// logMemset appends a record whose value is `size` copies of c.
func (l *writeLog) logMemset(addr unsafe.Pointer, c byte, size uintptr) {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = c
	}
	l.entries = append(l.entries, writeLogEntry{addr: addr, value: buf})
}

// commit replays every record to memory in program order.
func (l *writeLog) commit() {
	for _, e := range l.entries {
		copy(asBytes(e.addr, uintptr(len(e.value))), e.value)
	}
}

// rollback truncates the log to untilSize entries, discarding the rest
// without replaying them.
func (l *writeLog) rollback(untilSize int) {
	l.entries = l.entries[:untilSize]
}

func (l *writeLog) size() int { return len(l.entries) }

func (l *writeLog) clear() { l.entries = l.entries[:0] }
