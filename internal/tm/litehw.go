package tm

import "unsafe"

// liteHW is the lite hardware dispatch: the simplest of the
// six. It wraps the whole transaction in a single hardware region with no
// software instrumentation at all — no bloom filters, no logs — relying
// entirely on the HTM region's own isolation. It is selected only for
// uninstrumented code paths that never need read/write-set bookkeeping
// (and so, unlike BFHW, never needs to warn SpecSW peers after the fact).
type liteHW struct{}

func newLiteHW() *liteHW { return &liteHW{} }

func (d *liteHW) name() string { return "LiteHW" }

func (d *liteHW) begin(t *Thread) {
	g := globalMG()
	g.serialLock.readerLock()
	if _, ok := g.htm.Begin(nil); !ok {
		g.serialLock.readerUnlock()
		restartBeginFailure(t, RestartTryAgain)
		return
	}
	t.state = StateHardware
	t.sharedState.Store(t.state)
}

func (d *liteHW) load(t *Thread, addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	return readValue(addr, size)
}

func (d *liteHW) store(t *Thread, addr unsafe.Pointer, value []byte, mod LSModifier) {
	writeValue(addr, value)
}

func (d *liteHW) memtransfer(t *Thread, dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	copy(asBytes(dst, size), asBytes(src, size))
}

func (d *liteHW) memset(t *Thread, dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	buf := asBytes(dst, size)
	for i := range buf {
		buf[i] = c
	}
}

func (d *liteHW) tryCommit(t *Thread) RestartReason {
	g := globalMG()
	g.htm.Commit()
	t.state = 0
	t.sharedState.Store(0)
	g.serialLock.readerUnlock()
	return NoRestart
}

func (d *liteHW) rollback(t *Thread, cp *checkpoint) {
	fatalf("LiteHW transactions cannot roll back")
}

func (d *liteHW) canRunUninstrumented() bool { return true }
func (d *liteHW) canRestart() bool           { return false }
