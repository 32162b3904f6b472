package tm

import "unsafe"

// irrevocSW is the serial-with-write-tracking dispatch:
// like SglSW it runs under the exclusive commit lock, but it still records
// its write set in a bloom filter so invalidatePeers can warn software
// (SpecSW) peers whose read or write sets intersect it at commit. Writes are direct (no undo),
// so it can never roll back. Grounded on invalbrid-m-irrevocsw.cc.
type irrevocSW struct{}

func newIrrevocSW() *irrevocSW { return &irrevocSW{} }

func (d *irrevocSW) name() string { return "IrrevocSW" }

func (d *irrevocSW) begin(t *Thread) {
	g := globalMG()
	g.serialLock.writerLock()
	g.commitMu.Lock()
	td := t.ensureTxData()
	td.clear()
	t.state = StateSerial | StateIrrevocable | StateSoftware
	t.sharedState.Store(t.state)
}

func (d *irrevocSW) load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	return readValue(addr, size)
}

func (d *irrevocSW) store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier) {
	td := t.ensureTxData()
	td.writeset.addAddress(addr, uintptr(len(value)))
	writeValue(addr, value)
}

func (d *irrevocSW) memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	td := t.ensureTxData()
	td.writeset.addAddress(dst, size)
	copy(asBytes(dst, size), asBytes(src, size))
}

func (d *irrevocSW) memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	td := t.ensureTxData()
	td.writeset.addAddress(dst, size)
	buf := asBytes(dst, size)
	for i := range buf {
		buf[i] = c
	}
}

func (d *irrevocSW) tryCommit(t *Thread) RestartReason {
	g := globalMG()
	td := t.ensureTxData()

	invalidatePeers(t, &td.writeset)

	td.clear()
	g.commitMu.Unlock()
	g.serialLock.writerUnlock()
	t.state = 0
	t.sharedState.Store(0)
	return NoRestart
}

func (d *irrevocSW) rollback(t *Thread, cp *checkpoint) {
	fatalf("IrrevocSW transactions cannot roll back")
}

func (d *irrevocSW) canRunUninstrumented() bool { return true }
func (d *irrevocSW) canRestart() bool           { return false }
