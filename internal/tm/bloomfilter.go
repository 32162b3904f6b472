package tm

import (
	"sync/atomic"
	"unsafe"
)

// bloomFilterLength is the bloom filter width in bits.
const bloomFilterLength = 1024

// bloomFilterBlocks is the number of 64-bit words needed to hold
// bloomFilterLength bits.
const bloomFilterBlocks = (bloomFilterLength + 63) / 64

// sipMixConst is a fixed, odd, not-very-regular mix of 1s and 0s used to
// seed the address hash below. Ported from the sc_const constant in
// original_source/libitm/bloomfilter.cc (a Jenkins SpookyHash derivative).
const sipMixConst = 0xdeadbeefdeadbeef

func rot64(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}

// shortEnd mixes h0..h3 so that h0 ends up a hash of all four inputs. This
// is the "ShortEnd" finalization round from the original bloomfilter.cc,
// unchanged: a fixed sequence of rotate/xor/add rounds.
func shortEnd(h0, h1, h2, h3 uint64) uint64 {
	h3 ^= h2
	h2 = rot64(h2, 15)
	h3 += h2
	h0 ^= h3
	h3 = rot64(h3, 52)
	h0 += h3
	h1 ^= h0
	h0 = rot64(h0, 26)
	h1 += h0
	h2 ^= h1
	h1 = rot64(h1, 51)
	h2 += h1
	h3 ^= h2
	h2 = rot64(h2, 28)
	h3 += h2
	h0 ^= h3
	h3 = rot64(h3, 9)
	h0 += h3
	h1 ^= h0
	h0 = rot64(h0, 47)
	h1 += h0
	h2 ^= h1
	h1 = rot64(h1, 54)
	h2 += h1
	h3 ^= h2
	h2 = rot64(h2, 32)
	h3 += h2
	h0 ^= h3
	h3 = rot64(h3, 25)
	h0 += h3
	h1 ^= h0
	h0 = rot64(h0, 63)
	h1 += h0
	return h0
}

// addressHash hashes a single byte address, the way spooky_hash() in
// bloomfilter.cc hashes a (void*).
func addressHash(ptr unsafe.Pointer) uint64 {
	var a, b uint64
	c := uint64(sipMixConst)
	d := uint64(sipMixConst)
	d += uint64(unsafe.Sizeof(ptr)) << 56
	c += uint64(uintptr(ptr))
	return shortEnd(a, b, c, d)
}

// bloomFilter is the software variant: atomic words so concurrent readers
// (validate()) and the owning thread (add_address) can race safely. Bits
// are only ever set, never cleared, until clear() runs between
// transactions (a monotonicity invariant: once set, a bit is never cleared
// until the owning transaction's next begin).
type bloomFilter struct {
	bf [bloomFilterBlocks]atomic.Uint64
}

// addAddress hashes every byte address in [ptr, ptr+size) and sets the
// corresponding bit. Mirrors bloomfilter::add_address.
func (f *bloomFilter) addAddress(ptr unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	var tmp [bloomFilterBlocks]uint64
	base := uintptr(ptr)
	for j := uintptr(0); j < size; j++ {
		h := addressHash(unsafe.Pointer(base + j))
		bit := h % bloomFilterLength
		tmp[bit/64] |= 1 << (bit % 64)
	}
	for i := range tmp {
		if tmp[i] != 0 {
			f.bf[i].Or(tmp[i])
		}
	}
}

// set copies other's bits into f (bloomfilter::set).
func (f *bloomFilter) set(other *bloomFilter) {
	for i := range f.bf {
		f.bf[i].Store(other.bf[i].Load())
	}
}

// intersects returns true iff any block has a non-zero bitwise AND with
// other (bloomfilter::intersects). False positives are possible by design;
// false negatives are not.
func (f *bloomFilter) intersects(other *bloomFilter) bool {
	for i := range f.bf {
		if f.bf[i].Load()&other.bf[i].Load() != 0 {
			return true
		}
	}
	return false
}

// intersectsHW checks a software filter against a hardware (non-atomic)
// writeset, used during BFHW post-commit invalidation.
func (f *bloomFilter) intersectsHW(other *hwBloomFilter) bool {
	for i := range f.bf {
		if f.bf[i].Load()&other.bf[i] != 0 {
			return true
		}
	}
	return false
}

func (f *bloomFilter) empty() bool {
	for i := range f.bf {
		if f.bf[i].Load() != 0 {
			return false
		}
	}
	return true
}

func (f *bloomFilter) clear() {
	for i := range f.bf {
		f.bf[i].Store(0)
	}
}

// hwBloomFilter is the hardware variant: plain words, because the
// surrounding HTM region already provides isolation.
type hwBloomFilter struct {
	bf [bloomFilterBlocks]uint64
}

func (f *hwBloomFilter) addAddress(ptr unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	base := uintptr(ptr)
	for j := uintptr(0); j < size; j++ {
		h := addressHash(unsafe.Pointer(base + j))
		bit := h % bloomFilterLength
		f.bf[bit/64] |= 1 << (bit % 64)
	}
}

// intersects checks the hardware writeset against a software filter
// (plain-vs-atomic AND, since the HW variant has no atomics of its own).
func (f *hwBloomFilter) intersects(other *bloomFilter) bool {
	for i := range f.bf {
		if f.bf[i]&other.bf[i].Load() != 0 {
			return true
		}
	}
	return false
}

func (f *hwBloomFilter) empty() bool {
	for _, w := range f.bf {
		if w != 0 {
			return false
		}
	}
	return true
}

func (f *hwBloomFilter) clear() {
	for i := range f.bf {
		f.bf[i] = 0
	}
}
