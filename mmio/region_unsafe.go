// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import (
	"encoding/binary"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// Device registers are little-endian. Loads through a pointer use the
// host byte order, so values are swapped on big-endian hosts.
var hostLittleEndian = func() bool {
	x := uint16(1)

	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func aligned(p unsafe.Pointer, n uintptr) bool {
	return uintptr(p)%n == 0
}

// The accessors below must not be inlined or merged by the compiler, each
// call is exactly one access of the given width.

//go:noinline
func load8(b []byte, off uint64) uint8 {
	return *(*uint8)(unsafe.Pointer(&b[off]))
}

//go:noinline
func store8(b []byte, off uint64, v uint8) {
	*(*uint8)(unsafe.Pointer(&b[off])) = v
}

//go:noinline
func load16(b []byte, off uint64) uint16 {
	p := unsafe.Pointer(&b[off])
	if !aligned(p, 2) {
		return binary.LittleEndian.Uint16(b[off:])
	}

	v := *(*uint16)(p)
	if !hostLittleEndian {
		v = bits.ReverseBytes16(v)
	}

	return v
}

//go:noinline
func store16(b []byte, off uint64, v uint16) {
	p := unsafe.Pointer(&b[off])
	if !aligned(p, 2) {
		binary.LittleEndian.PutUint16(b[off:], v)

		return
	}

	if !hostLittleEndian {
		v = bits.ReverseBytes16(v)
	}
	*(*uint16)(p) = v
}

func load32(b []byte, off uint64) uint32 {
	p := unsafe.Pointer(&b[off])
	if !aligned(p, 4) {
		return binary.LittleEndian.Uint32(b[off:])
	}

	v := atomic.LoadUint32((*uint32)(p))
	if !hostLittleEndian {
		v = bits.ReverseBytes32(v)
	}

	return v
}

func store32(b []byte, off uint64, v uint32) {
	p := unsafe.Pointer(&b[off])
	if !aligned(p, 4) {
		binary.LittleEndian.PutUint32(b[off:], v)

		return
	}

	if !hostLittleEndian {
		v = bits.ReverseBytes32(v)
	}
	atomic.StoreUint32((*uint32)(p), v)
}

func load64(b []byte, off uint64) uint64 {
	p := unsafe.Pointer(&b[off])
	if !aligned(p, 8) {
		return binary.LittleEndian.Uint64(b[off:])
	}

	v := atomic.LoadUint64((*uint64)(p))
	if !hostLittleEndian {
		v = bits.ReverseBytes64(v)
	}

	return v
}

func store64(b []byte, off uint64, v uint64) {
	p := unsafe.Pointer(&b[off])
	if !aligned(p, 8) {
		binary.LittleEndian.PutUint64(b[off:], v)

		return
	}

	if !hostLittleEndian {
		v = bits.ReverseBytes64(v)
	}
	atomic.StoreUint64((*uint64)(p), v)
}
