// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmio maps a window of physical memory and gives bounds checked
// access to it.
package mmio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"system-transparency.org/nvtrust/sterror"
)

// Region is a shared read/write mapping of size bytes of a file starting
// at a physical address. All accessors are little-endian and check
// off+width against the size before touching the mapping.
type Region struct {
	// mu guards the mapping against Close. Accesses themselves are not
	// serialised by Region.
	mu   sync.RWMutex
	mem  []byte
	view []byte
	phys uint64
}

// Map maps size bytes of f starting at phys. phys does not need to be
// page aligned. f can be closed after Map returns.
func Map(f *os.File, phys, size uint64) (*Region, error) {
	if size == 0 {
		return nil, sterror.E(ErrScope, ErrOpMap, ErrMap, "zero size")
	}

	pageSize := uint64(os.Getpagesize())
	base := phys &^ (pageSize - 1)
	delta := phys - base

	if size > uint64(maxInt)-delta {
		return nil, sterror.E(ErrScope, ErrOpMap, ErrMap, fmt.Sprintf("size 0x%x too large", size))
	}

	mem, err := unix.Mmap(int(f.Fd()), int64(base), int(delta+size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, sterror.E(ErrScope, ErrOpMap, fmt.Errorf("%w: %v", ErrMap, err),
			fmt.Sprintf("%s at 0x%x+0x%x", f.Name(), phys, size))
	}

	return &Region{
		mem:  mem,
		view: mem[delta : delta+size],
		phys: phys,
	}, nil
}

const maxInt = int(^uint(0) >> 1)

// Phys returns the physical address of offset 0.
func (r *Region) Phys() uint64 {
	return r.phys
}

// Size returns the number of accessible bytes.
func (r *Region) Size() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return uint64(len(r.view))
}

// Close unmaps the region. Closing twice is a no-op.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mem == nil {
		return nil
	}

	err := unix.Munmap(r.mem)
	r.mem, r.view = nil, nil

	if err != nil {
		return sterror.E(ErrScope, ErrOpClose, err)
	}

	return nil
}

// check must be called with r.mu held.
func (r *Region) check(op sterror.Op, off, width uint64) error {
	if r.view == nil {
		return sterror.E(ErrScope, op, ErrClosed)
	}

	size := uint64(len(r.view))
	if off > size || width > size-off {
		return sterror.E(ErrScope, op, ErrOutOfRange,
			fmt.Sprintf("%d bytes at 0x%x, size 0x%x", width, off, size))
	}

	return nil
}

// Read8 reads one byte at off.
func (r *Region) Read8(off uint64) (uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpRead, off, 1); err != nil {
		return 0, err
	}

	return load8(r.view, off), nil
}

// Read16 reads a little-endian 16 bit value at off.
func (r *Region) Read16(off uint64) (uint16, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpRead, off, 2); err != nil {
		return 0, err
	}

	return load16(r.view, off), nil
}

// Read32 reads a little-endian 32 bit value at off.
func (r *Region) Read32(off uint64) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpRead, off, 4); err != nil {
		return 0, err
	}

	return load32(r.view, off), nil
}

// Read64 reads a little-endian 64 bit value at off.
func (r *Region) Read64(off uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpRead, off, 8); err != nil {
		return 0, err
	}

	return load64(r.view, off), nil
}

// Write8 writes one byte at off.
func (r *Region) Write8(off uint64, v uint8) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpWrite, off, 1); err != nil {
		return err
	}

	store8(r.view, off, v)

	return nil
}

// Write16 writes v little-endian at off.
func (r *Region) Write16(off uint64, v uint16) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpWrite, off, 2); err != nil {
		return err
	}

	store16(r.view, off, v)

	return nil
}

// Write32 writes v little-endian at off.
func (r *Region) Write32(off uint64, v uint32) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpWrite, off, 4); err != nil {
		return err
	}

	store32(r.view, off, v)

	return nil
}

// Write64 writes v little-endian at off.
func (r *Region) Write64(off uint64, v uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ErrOpWrite, off, 8); err != nil {
		return err
	}

	store64(r.view, off, v)

	return nil
}

// ReadAt implements io.ReaderAt. The copy is byte wise, use the typed
// accessors for registers.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if off < 0 {
		return 0, sterror.E(ErrScope, ErrOpRead, ErrOutOfRange, fmt.Sprintf("negative offset %d", off))
	}

	if err := r.check(ErrOpRead, uint64(off), 0); err != nil {
		return 0, err
	}

	if uint64(off) == uint64(len(r.view)) {
		return 0, io.EOF
	}

	n := copy(p, r.view[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt implements io.WriterAt. Writes that do not fit completely are
// rejected without writing anything.
func (r *Region) WriteAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if off < 0 {
		return 0, sterror.E(ErrScope, ErrOpWrite, ErrOutOfRange, fmt.Sprintf("negative offset %d", off))
	}

	if err := r.check(ErrOpWrite, uint64(off), uint64(len(p))); err != nil {
		return 0, err
	}

	return copy(r.view[off:], p), nil
}
