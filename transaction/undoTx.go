// Package transaction is a reflect-based convenience wrapper around the
// generic ABI in pkg/itm, for callers that only have an interface{} and a
// runtime reflect.Type at the call site instead of compile-time type
// information. The per-type glue this avoids putting in the core engine
// lives here instead, at the edge; pkg/gotm's generic Atomically is the
// idiomatic entry point for ordinary Go call sites with static types.
package transaction

import (
	"errors"
	"reflect"
	"unsafe"

	"github.com/karlcbalzer/Parallbrid/internal/tm"
	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

// TX is a manually-driven transaction handle: Begin/Log/End/Abort follow
// an undo-log lifecycle, down to nested Begin/End pairs only taking
// effect on the outermost call — Log stages its write through the
// runtime's dispatch (bloom filter + write/undo log) rather than an
// external raw mutation, since this engine requires every transactional
// write go through Store so SpecSW's speculation stays sound.
type TX struct {
	thread *tm.Thread
	depth  int
}

// New returns an unstarted transaction handle.
func New() *TX { return &TX{} }

// Begin starts, or nests into, a transaction on the calling goroutine.
func (t *TX) Begin() error {
	prop := itm.PropInstrumentedCode
	t.thread = itm.BeginTransaction(prop, false, itm.Attempt{})
	t.depth++
	return nil
}

// Log stages a write of newValue to *addr, type-erased: addr must be a
// pointer, and newValue's dynamic type must match the pointer's element
// type.
func (t *TX) Log(addr interface{}, newValue interface{}) error {
	if t.thread == nil {
		return errors.New("transaction: Log: no transaction in progress, call Begin first")
	}

	v := reflect.ValueOf(addr)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("transaction: Log: addr must be a non-nil pointer")
	}
	elemType := v.Type().Elem()

	nv := reflect.ValueOf(newValue)
	if nv.Type() != elemType {
		return errors.New("transaction: Log: newValue's type does not match *addr's element type")
	}

	// reflect.ValueOf(newValue) is not addressable, so copy it into a
	// freshly allocated value of the same type first.
	tmp := reflect.New(elemType)
	tmp.Elem().Set(nv)

	size := elemType.Size()
	buf := append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(tmp.Pointer())), size)...)

	t.thread.Store(unsafe.Pointer(v.Pointer()), buf, tm.ModW)
	return nil
}

// End commits the transaction. For a nested Begin/End pair, only the
// outermost End actually commits.
func (t *TX) End() error {
	if t.thread == nil || t.depth == 0 {
		return errors.New("transaction: End: no transaction to commit")
	}
	t.depth--
	itm.CommitTransaction(t.thread)
	if t.depth == 0 {
		t.thread = nil
	}
	return nil
}

// Abort unwinds the transaction, discarding every staged Log call.
func (t *TX) Abort() error {
	if t.thread == nil {
		return errors.New("transaction: Abort: no transaction in progress")
	}
	defer func() {
		recover() // AbortTransaction signals via panic; the caller only wants the side effect
		t.thread = nil
		t.depth = 0
	}()
	itm.AbortTransaction(t.thread, true)
	return nil
}
