package tm

import "unsafe"

// bfhw is the hardware-speculation dispatch: the actual
// isolation comes from the HTM region itself; a plain (non-atomic) bloom
// filter records the write set purely so trycommit can warn concurrently
// running SpecSW readers after the hardware region has already closed.
// Grounded on invalbrid-m-bfhw.cc.
type bfhw struct{}

func newBFHW() *bfhw { return &bfhw{} }

func (d *bfhw) name() string { return "BFHW" }

func (d *bfhw) begin(t *Thread) {
	g := globalMG()
	g.serialLock.readerLock()
	_, ok := g.htm.Begin(func() {
		// Subscribe to sw_cnt inside the hardware region: on real HTM
		// hardware, any concurrent non-transactional write to this
		// location aborts the region automatically. The software
		// emulation has no such conflict detection, so this is a
		// documentation-only read.
		_ = g.swCount.Load()
	})
	if !ok {
		g.serialLock.readerUnlock()
		restartBeginFailure(t, RestartTryAgain)
		return
	}
	t.ensureHWTxData().writeset.clear()
	t.state = StateHardware
	t.sharedState.Store(t.state)
}

func (d *bfhw) load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	return readValue(addr, size)
}

func (d *bfhw) store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier) {
	td := t.ensureHWTxData()
	td.writeset.addAddress(addr, uintptr(len(value)))
	writeValue(addr, value)
}

func (d *bfhw) memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	td := t.ensureHWTxData()
	td.writeset.addAddress(dst, size)
	copy(asBytes(dst, size), asBytes(src, size))
}

func (d *bfhw) memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	td := t.ensureHWTxData()
	td.writeset.addAddress(dst, size)
	buf := asBytes(dst, size)
	for i := range buf {
		buf[i] = c
	}
}

// tryCommit is invalbrid-m-bfhw.cc's trycommit(): close the hardware
// region first, then — outside of it, under the thread-list reader lock —
// warn any peer currently running SpecSW whose readset intersects our
// writeset. Only the read-intersection branch is active: the original
// comments out the writeset-vs-writeset check, and describes
// only LOCKED_READ for this dispatch.
func (d *bfhw) tryCommit(t *Thread) RestartReason {
	g := globalMG()
	hd := t.ensureHWTxData()

	g.hwPostCommit.Add(1)
	g.htm.Commit()

	if !hd.writeset.empty() {
		g.forEachPeer(t, func(peer *Thread) {
			if peer.sharedState.Load()&StateSoftware == 0 {
				return
			}
			pd := peer.txData.Load()
			if pd == nil {
				return
			}
			if hd.writeset.intersects(&pd.readset) {
				pd.invalidReason.Store(int32(RestartLockedRead))
				pd.invalid.Store(true)
			}
		})
	}

	// Decrement the post-commit fence inside a fresh (short) hardware
	// region so SpecSW validators reading hw_post_commit never observe a
	// torn update, retrying if that inner region itself aborts.
	for {
		if _, ok := g.htm.Begin(nil); ok {
			g.hwPostCommit.Add(-1)
			g.htm.Commit()
			break
		}
	}

	hd.writeset.clear()
	t.state = 0
	t.sharedState.Store(0)
	g.serialLock.readerUnlock()
	return NoRestart
}

func (d *bfhw) rollback(t *Thread, cp *checkpoint) {
	fatalf("BFHW transactions cannot roll back")
}

func (d *bfhw) canRunUninstrumented() bool { return false }
func (d *bfhw) canRestart() bool           { return false }
