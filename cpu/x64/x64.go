// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x64 is the reference Relocation capability for the x86-64
// architecture, the one concrete plug-in this module ships: a PC-relative
// immediate field occupying the tail of whatever instruction contains it,
// with a 4 KiB page size.
package x64

import (
	"github.com/go-interpreter/dynasm/asm"
)

// Arch is the x86-64 Architecture plug-in.
type Arch struct{}

// Relocation returns a relocation descriptor for a patch field of the
// given width. size must be one of 1, 2, 4, 8.
func (Arch) Relocation(size int) (asm.Relocation, error) {
	switch size {
	case 1, 2, 4, 8:
		return relocation{size: size}, nil
	default:
		return nil, &asm.InvalidPatchSizeError{Size: size}
	}
}

// PageSize reports the x86-64 page granularity: 4096 bytes.
func (Arch) PageSize() int {
	return 4096
}

// relocation is a PC-relative immediate field of a fixed width, occupying
// the tail of its containing instruction (StartOffset 0, FieldOffset ==
// Size).
type relocation struct {
	size int
}

func (r relocation) Size() int        { return r.size }
func (r relocation) StartOffset() int { return 0 }
func (r relocation) FieldOffset() int { return r.size }
func (r relocation) Kind() asm.Kind   { return asm.Relative }

func (r relocation) WriteValue(buf []byte, v int64) error {
	if len(buf) != r.size {
		return &asm.InvalidPatchSizeError{Size: len(buf)}
	}
	if !fitsSigned(v, r.size) {
		return &asm.ImpossibleRelocationError{Delta: v, Size: r.size}
	}
	u := uint64(v)
	for i := 0; i < r.size; i++ {
		buf[i] = byte(u)
		u >>= 8
	}
	return nil
}

func (r relocation) ReadValue(buf []byte) int64 {
	var u uint64
	for i := r.size - 1; i >= 0; i-- {
		u = u<<8 | uint64(buf[i])
	}
	shift := uint(64 - 8*r.size)
	return int64(u<<shift) >> shift
}

func fitsSigned(v int64, size int) bool {
	switch size {
	case 1:
		return v == int64(int8(v))
	case 2:
		return v == int64(int16(v))
	case 4:
		return v == int64(int32(v))
	case 8:
		return true
	default:
		return false
	}
}
