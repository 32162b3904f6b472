package itm_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/karlcbalzer/Parallbrid/internal/tm"
	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

// TestLoadStoreGenericRoundTrip exercises the generic Load/Store pair
// directly against the ABI, outside pkg/gotm's retry loop, the way a
// single-attempt irrevocable caller would use it.
func TestLoadStoreGenericRoundTrip(t *testing.T) {
	defer itm.ReleaseThread()
	var x int64 = 5

	tx := itm.BeginTransaction(itm.PropDoesGoIrrevocable, false, itm.Attempt{})
	v := itm.Load(tx, &x, itm.ModR)
	assert.Equal(t, int64(5), v)
	itm.Store(tx, &x, 9, itm.ModW)
	itm.CommitTransaction(tx)

	assert.Equal(t, int64(9), x)
}

// TestMemcpyAndMemsetAndMemmove exercises the block-transfer entry points.
func TestMemcpyAndMemsetAndMemmove(t *testing.T) {
	defer itm.ReleaseThread()
	src := [4]byte{1, 2, 3, 4}
	var dst [4]byte
	var zeroed [4]byte

	tx := itm.BeginTransaction(itm.PropDoesGoIrrevocable, false, itm.Attempt{})
	itm.Memcpy(tx, unsafe.Pointer(&dst), unsafe.Pointer(&src), 4, itm.ModW, itm.ModR)
	itm.Memset(tx, unsafe.Pointer(&zeroed), 0xFF, 4, itm.ModW)
	itm.CommitTransaction(tx)

	assert.Equal(t, src, dst)
	assert.Equal(t, [4]byte{0xFF, 0xFF, 0xFF, 0xFF}, zeroed)
}

func TestMemmoveOverlappingRegion(t *testing.T) {
	defer itm.ReleaseThread()
	buf := [5]byte{1, 2, 3, 4, 5}

	tx := itm.BeginTransaction(itm.PropDoesGoIrrevocable, false, itm.Attempt{})
	itm.Memmove(tx, unsafe.Pointer(&buf[0]), unsafe.Pointer(&buf[1]), 4, itm.ModW, itm.ModR)
	itm.CommitTransaction(tx)

	assert.Equal(t, [5]byte{2, 3, 4, 5, 5}, buf)
}

func TestVersionCompatible(t *testing.T) {
	assert.True(t, itm.VersionCompatible(itm.LibraryVersion()))
	assert.False(t, itm.VersionCompatible("0.0.0-nonexistent"))
}

func TestEffectiveConfigHasPositiveBudgets(t *testing.T) {
	cfg := itm.EffectiveConfig()
	assert.Greater(t, cfg.SWRestarts, 0)
	assert.Greater(t, cfg.HWRestarts, 0)
}

func TestErrorFormatsNonNilReasonOnly(t *testing.T) {
	assert.NoError(t, itm.Error(tm.NoRestart))
	assert.Error(t, itm.Error(tm.RestartTryAgain))
}
