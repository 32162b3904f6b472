package gotm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/karlcbalzer/Parallbrid/pkg/gotm"
	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

// TestLoadStoreRoundTrip is the basic sanity check: a value written
// inside a transaction is visible once that transaction commits.
func TestLoadStoreRoundTrip(t *testing.T) {
	var x int64

	err := gotm.Atomically(func(tx *gotm.Tx) error {
		gotm.Store(tx, &x, 42)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), x)
}

// TestReadOnlyParallelism covers read-only SpecSW parallelism: many
// goroutines reading the same memory concurrently never conflict with
// each other.
func TestReadOnlyParallelism(t *testing.T) {
	x := int64(7)

	var g errgroup.Group
	results := make([]int64, 50)
	for i := 0; i < len(results); i++ {
		i := i
		g.Go(func() error {
			defer itm.ReleaseThread()
			return gotm.Atomically(func(tx *gotm.Tx) error {
				results[i] = gotm.Load(tx, &x)
				return nil
			}, gotm.ReadOnly())
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results {
		assert.Equal(t, int64(7), r)
	}
}

// TestWriterWriterConflictStillConverges covers a writer-writer SpecSW
// conflict: concurrent increments to a shared counter may restart each
// other, but every increment is eventually observed.
func TestWriterWriterConflictStillConverges(t *testing.T) {
	var counter int64
	const workers, perWorker = 16, 50

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			defer itm.ReleaseThread()
			for i := 0; i < perWorker; i++ {
				err := gotm.Atomically(func(tx *gotm.Tx) error {
					v := gotm.Load(tx, &counter)
					gotm.Store(tx, &counter, v+1)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(workers*perWorker), counter)
}

// TestDisjointWritersUnderHardwarePreference covers HTM-SW coexistence: a
// mix of hardware-preferring and ordinary software transactions touching
// disjoint memory all commit cleanly.
func TestDisjointWritersUnderHardwarePreference(t *testing.T) {
	counters := make([]int64, 8)

	var g errgroup.Group
	for i := range counters {
		i := i
		g.Go(func() error {
			defer itm.ReleaseThread()
			opts := []gotm.Option{}
			if i%2 == 0 {
				opts = append(opts, gotm.PreferHardware(), gotm.NoAbort())
			}
			for n := 0; n < 20; n++ {
				err := gotm.Atomically(func(tx *gotm.Tx) error {
					v := gotm.Load(tx, &counters[i])
					gotm.Store(tx, &counters[i], v+1)
					return nil
				}, opts...)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, c := range counters {
		assert.Equal(t, int64(20), c)
	}
}

// TestExplicitAbortLeavesMemoryUntouched: a closure that calls Tx.Abort
// sees ErrAborted and its writes never become visible.
func TestExplicitAbortLeavesMemoryUntouched(t *testing.T) {
	x := int64(1)

	err := gotm.Atomically(func(tx *gotm.Tx) error {
		gotm.Store(tx, &x, 99)
		tx.Abort(true)
		return nil // unreachable: Abort unwinds via panic/recover
	})
	require.ErrorIs(t, err, gotm.ErrAborted)
	assert.Equal(t, int64(1), x, "an aborted transaction's writes must not become visible")
}

// TestErrorReturnAbortsTransaction: returning a non-nil error from the
// closure aborts the transaction and the error is propagated to the
// caller.
func TestErrorReturnAbortsTransaction(t *testing.T) {
	x := int64(1)
	boom := errors.New("boom")

	err := gotm.Atomically(func(tx *gotm.Tx) error {
		gotm.Store(tx, &x, 2)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), x)
}

// TestNestedTransactionAbortUnwindsOnlyToCheckpoint covers nested abort:
// an inner Nested transaction that aborts restores only the
// memory it touched after the checkpoint; the outer transaction's own
// prior write survives.
func TestNestedTransactionAbortUnwindsOnlyToCheckpoint(t *testing.T) {
	var outer, inner int64

	err := gotm.Atomically(func(tx *gotm.Tx) error {
		gotm.Store(tx, &outer, 10)

		nerr := tx.Nested(func(ntx *gotm.Tx) error {
			gotm.Store(ntx, &inner, 20)
			ntx.Abort(false)
			return nil
		})
		assert.ErrorIs(t, nerr, gotm.ErrAborted)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), outer)
	assert.Equal(t, int64(0), inner)
}
