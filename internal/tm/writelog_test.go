package tm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLogCommitReplaysInOrder(t *testing.T) {
	var a, b int64 = 1, 2
	var l writeLog

	v := int64(42)
	l.log(unsafe.Pointer(&a), unsafe.Pointer(&v), unsafe.Sizeof(v))
	v2 := int64(43)
	l.log(unsafe.Pointer(&b), unsafe.Pointer(&v2), unsafe.Sizeof(v2))

	l.commit()
	assert.Equal(t, int64(42), a)
	assert.Equal(t, int64(43), b)
}

func TestWriteLogFindReturnsMostRecentWrite(t *testing.T) {
	var a int64
	var l writeLog

	_, ok := l.find(unsafe.Pointer(&a), unsafe.Sizeof(a))
	assert.False(t, ok, "an address with no logged write is not found")

	v := int64(7)
	l.log(unsafe.Pointer(&a), unsafe.Pointer(&v), unsafe.Sizeof(v))
	got, ok := l.find(unsafe.Pointer(&a), unsafe.Sizeof(a))
	require.True(t, ok)
	assert.Equal(t, int64(7), *(*int64)(unsafe.Pointer(&got[0])))

	v2 := int64(8)
	l.log(unsafe.Pointer(&a), unsafe.Pointer(&v2), unsafe.Sizeof(v2))
	got2, ok := l.find(unsafe.Pointer(&a), unsafe.Sizeof(a))
	require.True(t, ok)
	assert.Equal(t, int64(8), *(*int64)(unsafe.Pointer(&got2[0])), "find must return the newest write, not the first")
}

func TestWriteLogRollbackDiscardsTail(t *testing.T) {
	var a int64
	var l writeLog

	v1 := int64(1)
	l.log(unsafe.Pointer(&a), unsafe.Pointer(&v1), unsafe.Sizeof(v1))
	mark := l.size()
	v2 := int64(2)
	l.log(unsafe.Pointer(&a), unsafe.Pointer(&v2), unsafe.Sizeof(v2))

	l.rollback(mark)
	assert.Equal(t, mark, l.size())

	l.commit()
	assert.Equal(t, int64(1), a)
}

func TestUndoLogRollbackRestoresNewestFirst(t *testing.T) {
	var a int64 = 1
	var u undoLog

	u.log(unsafe.Pointer(&a), unsafe.Sizeof(a))
	a = 2
	u.log(unsafe.Pointer(&a), unsafe.Sizeof(a))
	a = 3

	u.rollback(0)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, 0, u.size())
}

func TestUndoLogRollbackToCheckpoint(t *testing.T) {
	var a int64 = 1
	var u undoLog

	u.log(unsafe.Pointer(&a), unsafe.Sizeof(a))
	a = 2
	mark := u.size()
	u.log(unsafe.Pointer(&a), unsafe.Sizeof(a))
	a = 3

	u.rollback(mark)
	assert.Equal(t, int64(2), a)
	assert.Equal(t, mark, u.size())
}
