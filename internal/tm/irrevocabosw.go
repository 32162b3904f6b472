package tm

import "unsafe"

// irrevocAboSW is the serial, abortable dispatch: it runs
// under the exclusive commit lock like IrrevocSW, but writes are preceded
// by an undo-log snapshot so an explicit abort can restore memory.
// Grounded on parallbrid-m-serialabosw.cc.
type irrevocAboSW struct{}

func newIrrevocAboSW() *irrevocAboSW { return &irrevocAboSW{} }

func (d *irrevocAboSW) name() string { return "IrrevocAboSW" }

func (d *irrevocAboSW) begin(t *Thread) {
	g := globalMG()
	g.serialLock.writerLock()
	g.commitMu.Lock()
	td := t.ensureTxData()
	td.clear()
	if td.undoLog == nil {
		td.undoLog = &undoLog{}
	}
	td.undoLog.clear()
	td.logSize = 0
	t.state = StateSerial | StateSoftware
	t.sharedState.Store(t.state)
}

func (d *irrevocAboSW) load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	return readValue(addr, size)
}

func (d *irrevocAboSW) store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier) {
	td := t.ensureTxData()
	td.writeset.addAddress(addr, uintptr(len(value)))
	td.undoLog.log(addr, uintptr(len(value)))
	td.logSize = td.undoLog.size()
	writeValue(addr, value)
}

func (d *irrevocAboSW) memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	d.store(t, dst, readValue(src, size), dstMod)
}

func (d *irrevocAboSW) memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = c
	}
	d.store(t, dst, buf, mod)
}

func (d *irrevocAboSW) tryCommit(t *Thread) RestartReason {
	g := globalMG()
	td := t.ensureTxData()

	invalidatePeers(t, &td.writeset)
	td.undoLog.commit()

	td.clear()
	g.commitMu.Unlock()
	g.serialLock.writerUnlock()
	t.state = 0
	t.sharedState.Store(0)
	return NoRestart
}

// rollback is parallbrid-m-serialabosw.cc's rollback(cp): with a
// checkpoint it restores the saved transaction data and truncates the
// undo log back to the checkpoint's log_size (a closed-nested abort);
// without one it unrolls the whole log, releases the commit lock, and
// clears (an outermost abort).
func (d *irrevocAboSW) rollback(t *Thread, cp *checkpoint) {
	td := t.ensureTxData()
	if cp != nil {
		td.undoLog.rollback(cp.txData.logSize)
		td.load(cp.txData)
		return
	}

	td.undoLog.rollback(0)
	g := globalMG()
	g.commitMu.Unlock()
	g.serialLock.writerUnlock()
	t.state = 0
	t.sharedState.Store(0)
	td.clear()
}

func (d *irrevocAboSW) canRunUninstrumented() bool { return false }
func (d *irrevocAboSW) canRestart() bool           { return false }
