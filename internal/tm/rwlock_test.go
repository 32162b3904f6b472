package tm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRWSpinLockExcludesWriters(t *testing.T) {
	var l rwSpinLock
	var mu sync.Mutex
	inCritical := false

	l.writerLock()
	mu.Lock()
	inCritical = true
	mu.Unlock()
	done := make(chan struct{})
	go func() {
		l.writerLock()
		mu.Lock()
		assert.False(t, inCritical)
		mu.Unlock()
		l.writerUnlock()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	inCritical = false
	mu.Unlock()
	l.writerUnlock()
	<-done
}

func TestRWSpinLockAllowsConcurrentReaders(t *testing.T) {
	var l rwSpinLock
	l.readerLock()
	l.readerLock()
	assert.Equal(t, int32(2), l.readers.Load())
	l.readerUnlock()
	l.readerUnlock()
	assert.Equal(t, int32(0), l.readers.Load())
}

func TestRWSpinLockWriterWaitsForReaders(t *testing.T) {
	var l rwSpinLock
	l.readerLock()

	acquired := make(chan struct{})
	go func() {
		l.writerLock()
		close(acquired)
		l.writerUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("writer acquired the lock while a reader held it")
	case <-time.After(20 * time.Millisecond):
	}

	l.readerUnlock()
	<-acquired
}
