package tm

import "unsafe"

func ptrOf(p *int64) unsafe.Pointer { return unsafe.Pointer(p) }

func int64Bytes(v int64) []byte {
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(&v)), 8)...)
}

func asInt64(b []byte) int64 {
	return *(*int64)(unsafe.Pointer(&b[0]))
}
