package tm

import (
	"sync"
	"sync/atomic"
)

// globalState is the Method Group's shared data: the commit lock, commit sequence parity counter, the
// count of in-flight software transactions, the currently-committing
// thread pointer SpecSW validates against, the HW post-commit fence, the
// reader-writer lock backing acquire/release serial access, and the list
// of registered threads.
type globalState struct {
	commitMu sync.Mutex

	commitSequence atomic.Uint32
	swCount        atomic.Int32
	hwPostCommit   atomic.Int32

	committingTx atomic.Pointer[Thread]

	serialLock    rwSpinLock
	threadListMu  rwSpinLock
	threads       []*Thread

	htm HTM
	cfg Config

	defaultDispatch func() dispatch
}

var (
	mgOnce sync.Once
	mg     *globalState
)

// globalMG returns the process-wide Method Group singleton, constructing
// it (and reading ITM_DEFAULT_METHOD_GROUP / ITM_CONFIG_FILE) on first
// use, matching set_default_method_group()'s one-time initialization in
// beginend.cc.
func globalMG() *globalState {
	mgOnce.Do(func() {
		parseMethodGroupEnv()
		g := &globalState{
			htm: newSoftwareHTM(),
			cfg: loadConfig(),
		}
		g.defaultDispatch = func() dispatch { return newSpecSW() }
		mg = g
	})
	return mg
}

// EffectiveConfig returns the process-wide retry budgets currently in
// effect, for diagnostics (cmd/gotmctl's doctor subcommand).
func EffectiveConfig() Config {
	return globalMG().cfg
}

func (g *globalState) registerThread(t *Thread) {
	g.threadListMu.writerLock()
	defer g.threadListMu.writerUnlock()
	g.threads = append(g.threads, t)
}

func (g *globalState) deregisterThread(t *Thread) {
	g.threadListMu.writerLock()
	defer g.threadListMu.writerUnlock()
	for i, other := range g.threads {
		if other == t {
			g.threads = append(g.threads[:i], g.threads[i+1:]...)
			return
		}
	}
}

// forEachPeer runs fn for every registered thread other than self, holding
// the thread-list reader lock — used by invalidatePeers and by BFHW's
// post-commit invalidation.
func (g *globalState) forEachPeer(self *Thread, fn func(*Thread)) {
	g.threadListMu.readerLock()
	defer g.threadListMu.readerUnlock()
	for _, other := range g.threads {
		if other == self {
			continue
		}
		fn(other)
	}
}

// Attempt carries the retry history an outer loop (pkg/gotm.Atomically)
// has accumulated for the transaction it is about to (re)start, so Begin
// can implement escalation path instead of always retrying
// the same dispatch.
type Attempt struct {
	N          int
	LastReason RestartReason
	PreferHW   bool
}

// Begin starts a new (possibly nested) transaction on the calling
// goroutine. uninstrumented
// reports whether the compiler-generated call site only has an
// uninstrumented code path available, steering dispatch selection toward
// a serial strategy when true.
func Begin(prop Properties, uninstrumented bool, at Attempt) *Thread {
	if prop.has(PropUndoLogCode) {
		fatalf("undo-log code generation is not supported")
	}

	t := currentThread()
	g := globalMG()

	if t.nesting > 0 {
		// An irrevocable nested request can't proceed speculatively
		// underneath a parent that isn't already running irrevocably:
		// restart the whole stack so the outer Begin re-selects a
		// dispatch that goes irrevocable from the start.
		if prop.has(PropDoesGoIrrevocable) && t.state&StateIrrevocable == 0 {
			Restart(t, RestartSerialIrr)
		}

		if prop.has(PropHasNoAbort) {
			// A no-abort nested transaction can never roll back on its
			// own, so there is nothing a checkpoint would protect:
			// flatten it into the parent instead of pushing one.
			if uninstrumented && !t.dispatch.canRunUninstrumented() {
				if t.state&StateIrrevocable != 0 {
					// Already serial: swap in place rather than unwind.
					t.dispatch = newSglSW()
				} else {
					Restart(t, RestartUninstrumentedCodepath)
				}
			}
			t.nesting++
			t.prop = prop
			return t
		}

		// Closed nesting: push a checkpoint and keep the same dispatch.
		cp := checkpoint{
			disp:      t.dispatch,
			nesting:   t.nesting,
			prop:      t.prop,
			allocMark: t.allocLog.mark(),
			id:        t.id,
		}
		if d := t.txData.Load(); d != nil {
			cp.txData = d.save()
		}
		t.parentTxns = append(t.parentTxns, cp)
		t.nesting++
		t.prop = prop
		return t
	}

	t.id = t.nextID(g)
	t.nesting = 1
	t.prop = prop

	d := selectDispatch(g, prop, uninstrumented, at)
	t.dispatch = d
	t.recordDispatchStart(d.name())
	d.begin(t)
	return t
}

// selectDispatch implements the dispatch-selection table: an
// irrevocable request, a SERIAL_IRR restart, a live SglSW, or
// exhaustion of the configured software-retry budget all go serial
// (SglSW, or IrrevocSW when the irrevocable request can tolerate
// concurrent SpecSW readers and some are already running); a
// transaction whose only compiled code path is uninstrumented runs
// LiteHW under hardware preference (see preferHW), the serial fallback
// once the software-retry budget is exhausted, and IrrevocSW (keeps
// write-set tracking for SpecSW peers' benefit) otherwise; otherwise
// speculative software (or, when the
// caller both opted into hardware and can tolerate never aborting, and
// the hardware-retry budget is not yet exhausted, BFHW/LiteHW) is tried
// first. BFHW/LiteHW never roll back, so they are only ever offered to
// a PropHasNoAbort request — anything else that wants hardware still
// has to go through a restart-capable dispatch first.
func selectDispatch(g *globalState, prop Properties, uninstrumented bool, at Attempt) dispatch {
	serialFallback := func() dispatch {
		if prop.has(PropHasNoAbort) {
			return newSglSW()
		}
		return newIrrevocAboSW()
	}
	preferHW := func() bool {
		return at.PreferHW && prop.has(PropHasNoAbort) && at.N < g.cfg.HWRestarts
	}

	switch {
	case prop.has(PropDoesGoIrrevocable):
		if prop.has(PropHasNoAbort) && (prop.has(PropInstrumentedCode) || prop.has(PropReadOnly)) && g.swCount.Load() > 0 {
			return newIrrevocSW()
		}
		return newSglSW()
	case at.LastReason == RestartSerialIrr:
		return serialFallback()
	case g.commitSequence.Load()&1 == 1:
		// An SglSW is mid-transaction: everyone else waits behind the
		// same serial fallback rather than speculating against memory
		// a serial writer owns outright.
		return serialFallback()
	case uninstrumented && !prop.has(PropInstrumentedCode):
		if preferHW() {
			return newLiteHW()
		}
		if at.N >= g.cfg.SWRestarts {
			return serialFallback()
		}
		return newIrrevocSW()
	case preferHW():
		return newBFHW()
	case at.N >= g.cfg.SWRestarts:
		return serialFallback()
	default:
		return newSpecSW()
	}
}

// Commit attempts to commit the innermost transaction, restarting the
// caller via a panicked restartSignal on failure.
func Commit(t *Thread) {
	if t.nesting > 1 {
		// Closed-nested commit: merge into parent, nothing to validate
		// yet — the outermost commit will do the real work.
		t.nesting--
		// The nested allocation actions stay in the log as the parent's.
		cp := t.parentTxns[len(t.parentTxns)-1]
		t.parentTxns = t.parentTxns[:len(t.parentTxns)-1]
		t.prop = cp.prop
		return
	}

	reason := t.dispatch.tryCommit(t)
	if reason != NoRestart {
		Restart(t, reason)
		return
	}
	t.recordDispatchCommit(t.dispatch.name())
	t.allocLog.commit(0)
	t.nesting = 0
	t.dispatch = nil
}

// CommitEH is the exception-propagating variant used when the
// transactional region is exited via a Go panic instead of normal return
//: the underlying panic value is restored
// after a successful commit so the caller's defer/recover chain keeps
// unwinding.
func CommitEH(t *Thread, eh any) {
	Commit(t)
	if eh != nil {
		panic(eh)
	}
}

// Abort aborts the innermost transaction. outerAbort forces unwinding all
// the way to the outermost transaction even if called from a nested one
// (the GTM_abortTransaction "outer" flag).
func Abort(t *Thread, outerAbort bool) {
	if t.prop.has(PropHasNoAbort) {
		fatalf("abort requested on a no-abort transaction")
	}

	if t.nesting > 1 && !outerAbort {
		cp := t.parentTxns[len(t.parentTxns)-1]
		t.parentTxns = t.parentTxns[:len(t.parentTxns)-1]
		t.dispatch.rollback(t, &cp)
		t.nesting--
		t.dispatch = cp.disp
		t.prop = cp.prop
		t.allocLog.rollback(cp.allocMark)
		panic(abortSignal{outerAbort: false})
	}

	for len(t.parentTxns) > 0 {
		cp := t.parentTxns[len(t.parentTxns)-1]
		t.parentTxns = t.parentTxns[:len(t.parentTxns)-1]
		t.allocLog.rollback(cp.allocMark)
	}
	t.dispatch.rollback(t, nil)
	t.nesting = 0
	t.dispatch = nil
	panic(abortSignal{outerAbort: true})
}

// CleanupAfterPanic rolls back the calling thread's entire transaction
// stack without itself panicking, for use by an orchestration boundary
// that caught a panic it does not recognize (neither a restartSignal nor
// an abortSignal) and is about to re-raise it once the engine's own state
// has been unwound cleanly.
func CleanupAfterPanic(t *Thread) {
	if t.nesting == 0 {
		return
	}
	for len(t.parentTxns) > 0 {
		cp := t.parentTxns[len(t.parentTxns)-1]
		t.parentTxns = t.parentTxns[:len(t.parentTxns)-1]
		t.allocLog.rollback(cp.allocMark)
	}
	if t.dispatch != nil {
		t.dispatch.rollback(t, nil)
	}
	t.nesting = 0
	t.dispatch = nil
}

// restartBeginFailure signals a restart from inside a dispatch's begin(),
// before any speculative state exists to roll back — used by the
// hardware dispatches when the underlying HTM region itself fails to
// open, rather than going through Restart (which would call the
// dispatch's rollback, fatal for BFHW/LiteHW).
func restartBeginFailure(t *Thread, reason RestartReason) {
	if int(reason) < len(t.restartReason) {
		t.restartReason[reason]++
	}
	t.restartTotal++
	t.nesting = 0
	t.dispatch = nil
	panic(restartSignal{reason: reason})
}

// Restart aborts the current transaction stack and signals the
// orchestration boundary (pkg/gotm) to re-run the user closure from the
// outermost begin — the idiomatic replacement for a non-local jump back
// to the retry loop.
func Restart(t *Thread, reason RestartReason) {
	if int(reason) < len(t.restartReason) {
		t.restartReason[reason]++
	}
	t.restartTotal++

	for len(t.parentTxns) > 0 {
		cp := t.parentTxns[len(t.parentTxns)-1]
		t.parentTxns = t.parentTxns[:len(t.parentTxns)-1]
		t.allocLog.rollback(cp.allocMark)
	}
	if t.dispatch != nil {
		t.dispatch.rollback(t, nil)
	}
	t.nesting = 0
	t.dispatch = nil
	panic(restartSignal{reason: reason})
}

// InTransaction reports whether the calling goroutine is currently inside
// a transaction.
func InTransaction() bool {
	return currentThread().nesting > 0
}

// GetTransactionID returns the id of the calling goroutine's current
// transaction, or 0 outside of one.
func GetTransactionID() uint64 {
	t := currentThread()
	if t.nesting == 0 {
		return 0
	}
	return t.id
}

// ChangeTransactionMode upgrades the calling thread's in-flight
// transaction to serial/irrevocable mode if it is not already, as
// required by an ITM_changeTransactionMode call the compiler emits around an
// irrevocable block. Today the only
// supported target mode is irrevocable.
func ChangeTransactionMode(t *Thread, irrevocable bool) {
	if !irrevocable {
		return
	}
	if t.prop.has(PropDoesGoIrrevocable) {
		return
	}
	AcquireSerialAccess(t, true)
	t.prop |= PropDoesGoIrrevocable
	t.state |= StateIrrevocable
	t.sharedState.Store(t.state)
}

// AcquireSerialAccess and ReleaseSerialAccess arbitrate exclusive serial
// execution against the pool of ordinary (reader-side) transactions using
// the Reader-Writer Atomic Lock component: a transaction
// going serial takes the writer side, and waits for all current readers
// (concurrent SW/HW transactions) to finish.
func AcquireSerialAccess(t *Thread, retryUntilSuccess bool) {
	g := globalMG()
	g.serialLock.writerLock()
	t.state |= StateSerial
	t.sharedState.Store(t.state)
	_ = retryUntilSuccess
}

func ReleaseSerialAccess(t *Thread) {
	g := globalMG()
	t.state &^= StateSerial
	t.sharedState.Store(t.state)
	g.serialLock.writerUnlock()
}
