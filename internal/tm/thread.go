package tm

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/jtolds/gls"
)

// State bits for Thread.state / Thread.sharedState.
const (
	StateSerial      uint32 = 0x1
	StateIrrevocable uint32 = 0x2
	StateSoftware    uint32 = 0x4
	StateHardware    uint32 = 0x8
)

// tidBlockSize is the size of the block of transaction ids a thread
// allocates at once from the global counter, to avoid an atomic operation
// on a shared cacheline for every begin.
const tidBlockSize = 1 << 16

var globalTID atomic.Uint64

// allocAction is one entry of the malloc/free undo-action log: a
// simplified, paired stand-in for the original's
// aa_tree<uintptr_t, gtm_alloc_action>.
type allocAction struct {
	addr      uintptr
	free      func()
	allocated bool
}

// allocLog tracks pending allocation actions for the current (possibly
// nested) transaction, merged into the parent on nested commit and
// reverted in LIFO order on abort.
type allocLog struct {
	actions []allocAction
}

func (l *allocLog) record(addr uintptr, free func()) {
	l.actions = append(l.actions, allocAction{addr: addr, free: free, allocated: true})
}

func (l *allocLog) forget(addr uintptr) {
	l.actions = append(l.actions, allocAction{addr: addr, allocated: false})
}

// commit discards allocation entries (the memory stays live) and runs the
// free callback for deallocation entries, from mark onward.
func (l *allocLog) commit(mark int) {
	for _, a := range l.actions[mark:] {
		if !a.allocated && a.free != nil {
			a.free()
		}
	}
	l.actions = l.actions[:mark]
}

// rollback undoes allocation entries (runs their free callback) and
// discards deallocation entries, from mark onward, newest first.
func (l *allocLog) rollback(mark int) {
	for i := len(l.actions) - 1; i >= mark; i-- {
		a := l.actions[i]
		if a.allocated && a.free != nil {
			a.free()
		}
	}
	l.actions = l.actions[:mark]
}

func (l *allocLog) mark() int { return len(l.actions) }

// dispatchCounters tracks per-dispatch started/committed counts, gated
// behind ITM_DEBUG; ported from tx_types_started / tx_types_committed in
// libitm_i.h.
type dispatchCounters struct {
	started   map[string]uint32
	committed map[string]uint32
}

func newDispatchCounters() *dispatchCounters {
	return &dispatchCounters{started: map[string]uint32{}, committed: map[string]uint32{}}
}

// Thread is the per-goroutine Thread Record: state flags,
// nesting stack, undo log, dispatch pointer, and a handle to Transaction
// Data. It is looked up through goroutine-local storage (see
// currentThread below), the Go analogue of the pthread-TLS slot in the
// original's tls.h.
type Thread struct {
	id       uint64
	localTID uint64

	nesting uint32
	prop    Properties
	state   uint32

	dispatch dispatch

	txData   atomic.Pointer[txData]
	hwTxData atomic.Pointer[hwTxData]

	parentTxns []checkpoint

	abiUndoLog undoLog
	allocLog   allocLog

	restartTotal  uint32
	restartReason [numRestartReasons]uint32

	counters *dispatchCounters

	// sharedState/sharedDataLock mirror state for other threads to read
	// during validation/invalidation.
	sharedState    atomic.Uint32
	sharedDataLock rwSpinLock

	ehInFlight any
}

func newThread() *Thread {
	t := &Thread{counters: newDispatchCounters()}
	return t
}

// ensureTxData lazily allocates SW transaction data the first time the
// thread needs it, matching the `if (unlikely(tx->tx_data == 0))` guards
// scattered across the dispatches.
func (t *Thread) ensureTxData() *txData {
	if d := t.txData.Load(); d != nil {
		return d
	}
	d := newTxData()
	t.txData.Store(d)
	return d
}

func (t *Thread) ensureHWTxData() *hwTxData {
	if d := t.hwTxData.Load(); d != nil {
		return d
	}
	d := newHWTxData()
	t.hwTxData.Store(d)
	return d
}

func (t *Thread) nextID(cfg *globalState) uint64 {
	if t.localTID&(tidBlockSize-1) != 0 {
		id := t.localTID
		t.localTID++
		return id
	}
	id := globalTID.Add(tidBlockSize) - tidBlockSize
	t.localTID = id + 1
	return id
}

// Load, Store, Memtransfer, and Memset are the raw byte-level calling
// convention the compiler ABI package (pkg/itm) targets. They simply forward to the active dispatch; a restart is
// signalled by a panicked restartSignal, not a return value.
func (t *Thread) Load(addr unsafe.Pointer, size uintptr, mod LSModifier) []byte {
	return t.dispatch.load(t, addr, size, mod)
}

func (t *Thread) Store(addr unsafe.Pointer, value []byte, mod LSModifier) {
	t.dispatch.store(t, addr, value, mod)
}

func (t *Thread) Memtransfer(dst, src unsafe.Pointer, size uintptr, mayOverlap bool, dstMod, srcMod LSModifier) {
	t.dispatch.memtransfer(t, dst, src, size, mayOverlap, dstMod, srcMod)
}

func (t *Thread) Memset(dst unsafe.Pointer, c byte, size uintptr, mod LSModifier) {
	t.dispatch.memset(t, dst, c, size, mod)
}

// recordDispatchStart/recordDispatchCommit implement the dispatchCounters.
func (t *Thread) recordDispatchStart(name string) {
	if debugEnabled() {
		t.counters.started[name]++
	}
}

func (t *Thread) recordDispatchCommit(name string) {
	if debugEnabled() {
		t.counters.committed[name]++
	}
}

// --- goroutine-local lookup -------------------------------------------------

var (
	glsMgr       = gls.NewContextManager()
	threadKey    = "invalbrid-thread"
	threadsMu    sync.Mutex
	threadsByGID = map[uint64]*Thread{}
)

// currentGoroutineID resolves a stable identifier for the calling
// goroutine. It is the Go replacement for pthread_self()-keyed TLS: Go has
// no first-class goroutine handle, so jtolds/gls's stack-trace-based
// lookup (the same primitive that backs its Go() helper, used elsewhere in
// the pack by launix-de-memcp's storage package) stands in for it.
func currentGoroutineID() uint64 {
	gid, ok := glsMgr.GetValue(threadKey)
	if ok {
		return gid.(uint64)
	}
	id, err := gls.GetGoroutineId()
	if err != nil {
		fatalf("resolving goroutine-local thread record failed: %v", err)
	}
	return id
}

// currentThread returns the calling goroutine's Thread Record, lazily
// creating and registering it on first use.
func currentThread() *Thread {
	gid := currentGoroutineID()

	threadsMu.Lock()
	t, ok := threadsByGID[gid]
	threadsMu.Unlock()
	if ok {
		return t
	}

	t = newThread()
	threadsMu.Lock()
	threadsByGID[gid] = t
	threadsMu.Unlock()
	globalMG().registerThread(t)
	return t
}

// ReleaseThread deregisters the calling goroutine's Thread Record and
// drops its logs/filters. Go has no goroutine-exit hook to call this
// automatically the way a pthread destructor key would, so callers that
// spin up a long-running pool of worker goroutines should call this once
// a worker is retired.
func ReleaseThread() {
	gid := currentGoroutineID()
	threadsMu.Lock()
	t, ok := threadsByGID[gid]
	delete(threadsByGID, gid)
	threadsMu.Unlock()
	if !ok {
		return
	}
	if t.nesting > 0 {
		fatalf("thread exit while a transaction is still active")
	}
	globalMG().deregisterThread(t)
}
