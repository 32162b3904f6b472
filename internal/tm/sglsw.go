package tm

import "unsafe"

// sglSW is the single-writer serial dispatch: begin
// acquires full serial+irrevocable access up front, so load/store run
// completely uninstrumented and commit is just releasing the lock.
// Grounded on invalbrid-m-sglsw.cc.
type sglSW struct{}

func newSglSW() *sglSW { return &sglSW{} }

func (d *sglSW) name() string { return "SglSW" }

func (d *sglSW) begin(t *Thread) {
	g := globalMG()
	g.serialLock.writerLock()
	g.commitMu.Lock()
	g.commitSequence.Add(1)
	t.state = StateSerial | StateIrrevocable
	t.sharedState.Store(t.state)
}

func (d *sglSW) load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	return readValue(addr, size)
}

func (d *sglSW) store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier) {
	writeValue(addr, value)
}

func (d *sglSW) memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	copy(asBytes(dst, size), asBytes(src, size))
}

func (d *sglSW) memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	buf := asBytes(dst, size)
	for i := range buf {
		buf[i] = c
	}
}

func (d *sglSW) tryCommit(t *Thread) RestartReason {
	g := globalMG()
	g.commitSequence.Add(1)
	g.commitMu.Unlock()
	g.serialLock.writerUnlock()
	t.state = 0
	t.sharedState.Store(0)
	return NoRestart
}

func (d *sglSW) rollback(t *Thread, cp *checkpoint) {
	fatalf("SglSW transactions cannot roll back")
}

func (d *sglSW) canRunUninstrumented() bool { return true }
func (d *sglSW) canRestart() bool           { return false }
