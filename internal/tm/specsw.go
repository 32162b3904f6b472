package tm

import "unsafe"

// specSW is the speculative software dispatch: readers
// optimistically track their read/write sets in bloom filters and a
// speculative write log, validating against any concurrently-committing
// peer; writers replay their log and invalidate peers only at commit
// time. Grounded on invalbrid-m-specsw.cc.
type specSW struct{}

func newSpecSW() *specSW { return &specSW{} }

func (d *specSW) name() string { return "SpecSW" }

func (d *specSW) begin(t *Thread) {
	g := globalMG()
	// Hold the serial lock's reader side for the whole transaction: a
	// SglSW/IrrevocSW/IrrevocAboSW writer takes the writer side and
	// writes directly to memory, so a concurrent SpecSW transaction's
	// own direct reads (and its eventual write-log replay) must not
	// overlap one.
	g.serialLock.readerLock()
	g.swCount.Add(1)
	for g.commitSequence.Load()&1 == 1 {
		cpuRelax()
	}
	td := t.ensureTxData()
	td.clear()
	td.localCommitSequence = g.commitSequence.Load()
	if td.writeLog == nil {
		td.writeLog = &writeLog{}
	}
	t.state = StateSoftware
	t.sharedState.Store(t.state)
}

// validate implements the four-stage check in invalbrid-m-specsw.cc's
// validate(): a commit-in-flight parity check, an intersection test
// against the currently-committing peer's write set, a wait for any HW
// post-commit fence, and finally the asynchronously-delivered
// invalid_reason.
func (d *specSW) validate(t *Thread) RestartReason {
	g := globalMG()
	td := t.ensureTxData()

	if g.commitSequence.Load()&1 == 1 {
		return RestartTryAgain
	}

	if committer := g.committingTx.Load(); committer != nil && committer != t {
		if cd := committer.txData.Load(); cd != nil {
			if td.readset.intersects(&cd.writeset) {
				return RestartValidateRead
			}
			if td.writeset.intersects(&cd.writeset) {
				return RestartValidateWrite
			}
		}
	}

	for g.hwPostCommit.Load() != 0 {
		cpuRelax()
	}

	if td.invalid.Load() {
		return RestartReason(td.invalidReason.Load())
	}
	return NoRestart
}

func (d *specSW) load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	td := t.ensureTxData()

	if v, ok := td.writeLog.find(addr, size); ok {
		return v
	}

	out := readValue(addr, size)
	td.readset.addAddress(addr, size)
	if reason := d.validate(t); reason != NoRestart {
		Restart(t, reason)
	}
	return out
}

func (d *specSW) store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier) {
	td := t.ensureTxData()
	td.writeset.addAddress(addr, uintptr(len(value)))
	td.writeLog.log(addr, unsafe.Pointer(&value[0]), uintptr(len(value)))
	td.logSize = td.writeLog.size()
	if reason := d.validate(t); reason != NoRestart {
		Restart(t, reason)
	}
}

func (d *specSW) memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	v := d.load(t, src, size, srcMod)
	d.store(t, dst, v, dstMod)
}

func (d *specSW) memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	v := make([]byte, size)
	for i := range v {
		v[i] = c
	}
	d.store(t, dst, v, mod)
}

// invalidatePeers is invalbrid-m-specsw.cc's invalidate(): for every peer
// with an active transaction whose readset or writeset intersects our
// writeset, mark it invalid with the matching Locked* reason. Shared by
// every dispatch that writes directly to memory under the commit lock
// (IrrevocSW, IrrevocAboSW) as well as SpecSW itself.
func invalidatePeers(t *Thread, writeset *bloomFilter) {
	globalMG().forEachPeer(t, func(peer *Thread) {
		if peer.sharedState.Load()&StateSoftware == 0 {
			return
		}
		pd := peer.txData.Load()
		if pd == nil {
			return
		}
		if writeset.intersects(&pd.writeset) {
			pd.invalidReason.Store(int32(RestartLockedWrite))
			pd.invalid.Store(true)
			return
		}
		if writeset.intersects(&pd.readset) {
			pd.invalidReason.Store(int32(RestartLockedRead))
			pd.invalid.Store(true)
		}
	})
}

func (d *specSW) tryCommit(t *Thread) RestartReason {
	g := globalMG()
	td := t.ensureTxData()

	if td.writeset.empty() {
		// read-only fast path: no commit lock needed, just a final validate.
		// On failure the caller's Restart runs rollback, which releases
		// sw_cnt and the serial lock's reader side.
		reason := d.validate(t)
		if reason != NoRestart {
			return reason
		}
		td.clear()
		g.swCount.Add(-1)
		g.serialLock.readerUnlock()
		return NoRestart
	}

	g.commitMu.Lock()
	g.committingTx.Store(t)

	reason := d.validate(t)
	if reason != NoRestart {
		g.committingTx.Store(nil)
		g.commitMu.Unlock()
		return reason
	}

	td.writeLog.commit()
	invalidatePeers(t, &td.writeset)

	g.committingTx.Store(nil)
	g.commitMu.Unlock()

	td.clear()
	g.swCount.Add(-1)
	g.serialLock.readerUnlock()
	return NoRestart
}

func (d *specSW) rollback(t *Thread, cp *checkpoint) {
	td := t.ensureTxData()
	if cp != nil && cp.txData != nil {
		td.load(cp.txData)
		if td.writeLog != nil {
			td.writeLog.rollback(cp.txData.logSize)
		}
		return
	}
	td.clear()
	g := globalMG()
	g.swCount.Add(-1)
	g.serialLock.readerUnlock()
}

func (d *specSW) canRunUninstrumented() bool { return false }
func (d *specSW) canRestart() bool           { return true }
