package tm

import "sync/atomic"

// txData is the per-thread Transaction Data object: the bloom filters, logs, and invalidation
// state shared between a thread's dispatch and any peer that needs to
// validate or invalidate it. It is lazily allocated on first use and
// reused (cleared, not freed) across the thread's subsequent
// transactions.
type txData struct {
	readset  bloomFilter
	writeset bloomFilter

	writeLog *writeLog
	undoLog  *undoLog

	logSize int

	localCommitSequence uint32

	// invalidReason/invalid are set by a committing peer under the
	// commit lock and read by the owning thread at validate()/store();
	// atomics give the memory order this handoff requires (release on
	// the writer side, acquire on the reader side).
	invalid       atomic.Bool
	invalidReason atomic.Int32 // holds a RestartReason
}

func newTxData() *txData {
	d := &txData{}
	d.invalidReason.Store(int32(NoRestart))
	return d
}

// clear resets the transaction data between transactions.
func (d *txData) clear() {
	d.readset.clear()
	d.writeset.clear()
	if d.writeLog != nil {
		d.writeLog.clear()
	}
	if d.undoLog != nil {
		d.undoLog.clear()
	}
	d.logSize = 0
	d.invalid.Store(false)
	d.invalidReason.Store(int32(NoRestart))
}

// save produces an immutable snapshot for a checkpoint: bloom filters,
// log_size, and local_commit_sequence, but deliberately *not*
// invalid_reason — excluding it avoids losing an invalidation delivered
// between save and a later load.
func (d *txData) save() *txDataSnapshot {
	s := &txDataSnapshot{logSize: d.logSize, localCommitSequence: d.localCommitSequence}
	s.readset.set(&d.readset)
	s.writeset.set(&d.writeset)
	return s
}

// load restores a previously saved snapshot, used by rollback(cp) on a
// closed-nested abort.
func (d *txData) load(s *txDataSnapshot) {
	d.readset.set(&s.readset)
	d.writeset.set(&s.writeset)
	d.logSize = s.logSize
	d.localCommitSequence = s.localCommitSequence
}

// txDataSnapshot is the saved-copy part of a Checkpoint.
type txDataSnapshot struct {
	readset             bloomFilter
	writeset            bloomFilter
	logSize             int
	localCommitSequence uint32
}

// hwTxData is the Transaction Data (HW) object: a single HW bloom filter
// for a BFHW transaction's write set.
type hwTxData struct {
	writeset hwBloomFilter
}

func newHWTxData() *hwTxData { return &hwTxData{} }

// checkpoint is the snapshot taken on entry to a closed-nested
// transaction: enough state to resume the parent after the nested
// transaction aborts, plus the allocation-action bookkeeping.
type checkpoint struct {
	disp       dispatch
	nesting    uint32
	prop       Properties
	txData     *txDataSnapshot
	allocMark  int
	id         uint64
}
