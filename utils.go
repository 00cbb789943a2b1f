package kumitate

import "unsafe"

// memCopy copies size bytes from src to dst using built-in copy for performance.
func memCopy(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	dstBytes := unsafe.Slice((*byte)(dst), size)
	srcBytes := unsafe.Slice((*byte)(src), size)
	copy(dstBytes, srcBytes)
}

// memZero clears size bytes at p.
func memZero(p unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	clear(unsafe.Slice((*byte)(p), size))
}
