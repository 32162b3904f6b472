// Package gotm is the idiomatic, non-compiler-facing entry point to the
// runtime: an Atomically retry loop that replaces the non-local jump
// (GTM_longjmp / setjmp) the original runtime uses to resume at the
// transaction's entry point after a restart. Go has no equivalent of
// setjmp/longjmp across arbitrary stack frames, so a restart here simply
// means "run the closure again" — the user closure itself is required to
// be idempotent up to the point it touches transactional memory, exactly
// as a compiler-instrumented transactional block would be.
package gotm

import (
	"errors"

	"github.com/karlcbalzer/Parallbrid/internal/tm"
	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

// ErrAborted is returned by Atomically when the closure calls Tx.Abort.
// A closure that returns a non-nil error also aborts the transaction, and
// Atomically returns that error instead.
var ErrAborted = errors.New("gotm: transaction aborted")

// Options configures a call to Atomically.
type Options struct {
	ReadOnly       bool
	NoAbort        bool
	Uninstrumented bool
	PreferHardware bool
}

// Option mutates an Options value; see ReadOnly, NoAbort, Uninstrumented,
// and PreferHardware.
type Option func(*Options)

// ReadOnly hints that the closure never writes transactional memory,
// letting SpecSW use its lock-free commit fast path.
func ReadOnly() Option { return func(o *Options) { o.ReadOnly = true } }

// NoAbort declares the closure never calls Tx.Abort, which is required
// before the runtime will ever select SglSW, IrrevocSW in place of
// SglSW, or either hardware dispatch (BFHW, LiteHW) under
// PreferHardware — none of those can roll back.
func NoAbort() Option { return func(o *Options) { o.NoAbort = true } }

// Uninstrumented declares the closure has no instrumented (bloom-filter
// tracked) code path available. It then runs under IrrevocSW or a serial
// fallback, or under LiteHW when PreferHardware and NoAbort are also set.
func Uninstrumented() Option { return func(o *Options) { o.Uninstrumented = true } }

// PreferHardware opts the closure into the hardware dispatches (BFHW,
// LiteHW) before falling back to software, within the configured
// hw_restarts budget (see ITM_CONFIG_FILE). Has no effect unless NoAbort is also set,
// since neither hardware dispatch can roll back.
func PreferHardware() Option { return func(o *Options) { o.PreferHardware = true } }

// Tx is the handle a closure passed to Atomically uses to read/write
// transactional memory and to request an explicit abort.
type Tx struct {
	thread *tm.Thread
}

// Abort unwinds the current (possibly nested) transaction. If called from
// within a nested transaction it unwinds only to the parent unless outer
// is true.
func (tx *Tx) Abort(outer bool) {
	tm.Abort(tx.thread, outer)
}

// Nested runs fn as a closed-nested transaction sharing tx's dispatch; an
// abort inside fn unwinds only to the point Nested was called, matching
// closed-nesting checkpoint semantics.
func (tx *Tx) Nested(fn func(*Tx) error) (err error) {
	tm.Begin(0, false, tm.Attempt{})
	defer func() {
		if r := recover(); r != nil {
			if _, ok := tm.AsAbort(r); ok {
				err = ErrAborted
				return
			}
			panic(r)
		}
	}()
	if err = fn(tx); err != nil {
		tx.Abort(false)
	}
	tm.Commit(tx.thread)
	return err
}

// Load generically reads a T from addr inside tx (see pkg/itm.Load for
// the raw ABI this builds on).
func Load[T any](tx *Tx, addr *T) T {
	return itm.Load(tx.thread, addr, itm.ModR)
}

// Store generically writes v to addr inside tx.
func Store[T any](tx *Tx, addr *T, v T) {
	itm.Store(tx.thread, addr, v, itm.ModW)
}

// Atomically runs fn exactly-once-observably: if fn returns nil and the
// dispatch's commit succeeds, the effects become visible atomically: if
// the runtime detects a conflict, fn is re-run from the top with an
// escalated dispatch, exactly as many times as needed (bounded by
// ITM_CONFIG_FILE's sw_restarts/hw_restarts, after which the runtime
// falls back to SglSW/IrrevocAboSW, which cannot fail to commit).
func Atomically(fn func(tx *Tx) error, opts ...Option) error {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	prop := tm.Properties(0)
	if o.ReadOnly {
		prop |= tm.PropReadOnly
	}
	if o.NoAbort {
		prop |= tm.PropHasNoAbort
	}
	if o.Uninstrumented {
		prop |= tm.PropUninstrumentedCode
	} else {
		prop |= tm.PropInstrumentedCode
	}

	at := tm.Attempt{PreferHW: o.PreferHardware}
	for {
		committed, reason, err := attempt(prop, o.Uninstrumented, at, fn)
		if committed {
			return err
		}
		at.N++
		at.LastReason = reason
	}
}

func attempt(prop tm.Properties, uninstrumented bool, at tm.Attempt, fn func(*Tx) error) (committed bool, reason tm.RestartReason, fnErr error) {
	thread := tm.Begin(prop, uninstrumented, at)
	tx := &Tx{thread: thread}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rr, ok := tm.AsRestart(r); ok {
			committed, reason = false, rr
			return
		}
		if _, ok := tm.AsAbort(r); ok {
			committed = true
			if fnErr == nil {
				fnErr = ErrAborted
			}
			return
		}
		tm.CleanupAfterPanic(thread)
		panic(r)
	}()

	if err := fn(tx); err != nil {
		fnErr = err
		tx.Abort(true)
	}
	tm.Commit(thread)
	return true, tm.NoRestart, fnErr
}
