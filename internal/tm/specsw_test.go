package tm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runInNewGoroutine executes fn on a freshly spawned goroutine and blocks
// until it returns, giving each call its own Thread Record the way
// currentThread's goroutine-keyed lookup expects.
func runInNewGoroutine(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
}

func TestSpecSWReadOnlyCommitDoesNotTakeCommitLock(t *testing.T) {
	var x int64 = 5

	runInNewGoroutine(t, func() {
		thread := Begin(PropReadOnly, false, Attempt{})
		v := thread.Load(ptrOf(&x), 8, ModR)
		assert.Equal(t, int64(5), asInt64(v))
		// Hold the commit lock across Commit: a read-only commit that
		// tried to take it would block here forever.
		g := globalMG()
		g.commitMu.Lock()
		Commit(thread)
		g.commitMu.Unlock()
		ReleaseThread()
	})
}

func TestSpecSWStoreThenLoadSeesOwnWrite(t *testing.T) {
	var x int64 = 1

	runInNewGoroutine(t, func() {
		thread := Begin(0, false, Attempt{})
		thread.Store(ptrOf(&x), int64Bytes(99), ModW)
		got := thread.Load(ptrOf(&x), 8, ModR)
		assert.Equal(t, int64(99), asInt64(got), "a transaction must observe its own speculative writes")
		Commit(thread)
		ReleaseThread()
	})

	assert.Equal(t, int64(99), x)
}

func TestSelectDispatchEscalatesAfterRetryBudget(t *testing.T) {
	g := &globalState{cfg: Config{SWRestarts: 2, HWRestarts: 2}}

	d := selectDispatch(g, PropInstrumentedCode, false, Attempt{N: 0})
	require.Equal(t, "SpecSW", d.name())

	d = selectDispatch(g, PropInstrumentedCode, false, Attempt{N: 2})
	require.Equal(t, "IrrevocAboSW", d.name())

	d = selectDispatch(g, PropInstrumentedCode|PropHasNoAbort, false, Attempt{N: 2})
	require.Equal(t, "SglSW", d.name())
}

func TestSelectDispatchIrrevocableWithoutNoAbortUsesSglSW(t *testing.T) {
	g := &globalState{cfg: Config{SWRestarts: 5, HWRestarts: 5}}
	d := selectDispatch(g, PropDoesGoIrrevocable, false, Attempt{})
	assert.Equal(t, "SglSW", d.name())
}

// TestSelectDispatchIrrevocableNoAbortWithLiveSWUsesIrrevocSW covers the
// row that keeps write-set tracking instead of taking the SglSW fast
// path: a no-abort irrevocable request that can tolerate concurrent
// SpecSW readers (it is read-only here) and finds some already running.
func TestSelectDispatchIrrevocableNoAbortWithLiveSWUsesIrrevocSW(t *testing.T) {
	g := &globalState{cfg: Config{SWRestarts: 5, HWRestarts: 5}}
	g.swCount.Add(1)
	d := selectDispatch(g, PropDoesGoIrrevocable|PropHasNoAbort|PropReadOnly, false, Attempt{})
	assert.Equal(t, "IrrevocSW", d.name())
}

// TestSelectDispatchPreferHardwareRequiresNoAbort covers the guard that
// keeps an abortable request off the non-rollbackable hardware
// dispatches: hardware preference alone must not be enough.
func TestSelectDispatchPreferHardwareRequiresNoAbort(t *testing.T) {
	g := &globalState{cfg: Config{SWRestarts: 5, HWRestarts: 5}}
	d := selectDispatch(g, PropInstrumentedCode, false, Attempt{PreferHW: true})
	assert.Equal(t, "SpecSW", d.name())

	d = selectDispatch(g, PropInstrumentedCode|PropHasNoAbort, false, Attempt{PreferHW: true})
	assert.Equal(t, "BFHW", d.name())
}

func TestSelectDispatchUninstrumentedPrefersIrrevocSW(t *testing.T) {
	g := &globalState{cfg: Config{SWRestarts: 5, HWRestarts: 5}}
	d := selectDispatch(g, 0, true, Attempt{})
	assert.Equal(t, "IrrevocSW", d.name())
}
