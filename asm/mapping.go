// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// executableMapping is an OS-backed anonymous memory region whose
// protection can be switched between RW and RX. It never allows a page to
// be writable and executable at the same time; callers are responsible for
// holding whatever lock serializes that transition (see Assembler.mu).
type executableMapping struct {
	mem mmap.MMap
}

// newExecutableMapping allocates size bytes of anonymous memory, rounded
// up by the kernel to a page multiple, with initial RX protection.
func newExecutableMapping(size int) (*executableMapping, error) {
	mem, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, &MappingAllocFailedError{Size: size, Err: err}
	}
	m := &executableMapping{mem: mem}
	if err := m.protectRX(); err != nil {
		m.mem.Unmap()
		return nil, err
	}
	return m, nil
}

// size returns the actual size of the backing mapping, which may exceed
// the size requested from newExecutableMapping (the kernel rounds up to
// page granularity).
func (m *executableMapping) size() int {
	return len(m.mem)
}

// bytes exposes the whole backing region. Callers must only read or write
// through it while holding the appropriate protection and lock.
func (m *executableMapping) bytes() []byte {
	return m.mem
}

// ptr returns a raw code pointer into the mapping at offset.
func (m *executableMapping) ptr(offset AssemblyOffset) uintptr {
	return uintptr(unsafe.Pointer(&m.mem[offset]))
}

func (m *executableMapping) protectRW() error {
	if err := unix.Mprotect(m.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return &MappingProtectionFailedError{Want: "RW", Err: err}
	}
	return nil
}

func (m *executableMapping) protectRX() error {
	if err := unix.Mprotect(m.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return &MappingProtectionFailedError{Want: "RX", Err: err}
	}
	return nil
}

func (m *executableMapping) unmap() error {
	return m.mem.Unmap()
}

// pageSize reports the platform's page granularity.
func pageSize() int {
	return unix.Getpagesize()
}

// ExecutableBuffer owns an executableMapping plus the length of the
// prefix that holds valid, committed code. Bytes in [0, length) are RX
// at rest; bytes in [length, size) are unspecified scratch space reserved
// for future commits.
type ExecutableBuffer struct {
	mapping *executableMapping
	length  int
}

// Len reports the number of committed, executable bytes.
func (b *ExecutableBuffer) Len() int {
	return b.length
}

// Bytes returns the committed prefix of the executable mapping.
func (b *ExecutableBuffer) Bytes() []byte {
	return b.mapping.bytes()[:b.length]
}

// Ptr obtains a raw code pointer into the executable memory from an
// AssemblyOffset. When an offset returned from Assembler.Offset is used,
// the resulting pointer addresses the start of the first instruction
// emitted after that call. The pointer is only valid for as long as a
// ReadGuard (see Executor) is held, or the caller otherwise knows the
// buffer cannot be grown concurrently.
func (b *ExecutableBuffer) Ptr(offset AssemblyOffset) uintptr {
	return b.mapping.ptr(offset)
}
