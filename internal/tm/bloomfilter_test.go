package tm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomFilterEmptyAndClear(t *testing.T) {
	var f bloomFilter
	assert.True(t, f.empty())

	var x int64
	f.addAddress(unsafe.Pointer(&x), unsafe.Sizeof(x))
	assert.False(t, f.empty())

	f.clear()
	assert.True(t, f.empty())
}

func TestBloomFilterIntersectsOwnAddress(t *testing.T) {
	var a, b bloomFilter
	var x, y int64

	a.addAddress(unsafe.Pointer(&x), unsafe.Sizeof(x))
	b.addAddress(unsafe.Pointer(&x), unsafe.Sizeof(x))
	assert.True(t, a.intersects(&b), "filters covering the same address must report an intersection")

	var c bloomFilter
	c.addAddress(unsafe.Pointer(&y), unsafe.Sizeof(y))
	// Not asserting non-intersection here: bloom filters may false-positive
	// by design. Only the no-false-negative direction is a
	// hard invariant, exercised above.
	_ = c
}

func TestBloomFilterSetCopiesBits(t *testing.T) {
	var src, dst bloomFilter
	var x int64
	src.addAddress(unsafe.Pointer(&x), unsafe.Sizeof(x))

	dst.set(&src)
	assert.True(t, dst.intersects(&src))
}

func TestHWBloomFilterIntersectsSWFilter(t *testing.T) {
	var hw hwBloomFilter
	var sw bloomFilter
	var x int32
	hw.addAddress(unsafe.Pointer(&x), unsafe.Sizeof(x))
	sw.addAddress(unsafe.Pointer(&x), unsafe.Sizeof(x))

	require.True(t, hw.intersects(&sw))
	require.True(t, sw.intersectsHW(&hw))
}

func TestAddressHashDeterministic(t *testing.T) {
	var x int64
	h1 := addressHash(unsafe.Pointer(&x))
	h2 := addressHash(unsafe.Pointer(&x))
	assert.Equal(t, h1, h2)
}
