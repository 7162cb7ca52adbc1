// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

// Kind describes how a Relocation's patched value relates to its target.
type Kind int

const (
	// Relative patches store target - PatchLoc.End.
	Relative Kind = iota
	// Absolute patches store target verbatim.
	Absolute
)

// Architecture is the plug-in supplied per target instruction set. The
// core consults it only to obtain Relocation descriptors; it never
// interprets instruction encodings itself.
type Architecture interface {
	// Relocation returns a descriptor for a patch field of the given
	// width. size must be one of 1, 2, 4, 8, or this returns
	// *InvalidPatchSizeError.
	Relocation(size int) (Relocation, error)
	// PageSize reports the platform page granularity this architecture
	// expects, e.g. 4096.
	PageSize() int
}

// Relocation describes one patch field: its width, its position within a
// larger encoded instruction, and how to read/write a signed value into
// it. The core never interprets instruction encodings; it only asks a
// Relocation how wide a field is and how to read/write a signed value
// into it.
//
// StartOffset/FieldOffset together describe where, within a larger
// encoded instruction, the patch field sits. For architectures where the
// field occupies the tail of the instruction (the common case),
// StartOffset is 0 and FieldOffset equals Size.
type Relocation interface {
	// Size reports the width of the immediate field: one of 1, 2, 4, 8.
	Size() int
	// StartOffset reports the byte offset, from the start of the
	// instruction, at which the patch field's containing region begins.
	StartOffset() int
	// FieldOffset reports the byte offset, from the start of the
	// instruction, at which the patch field itself ends.
	FieldOffset() int
	// Kind reports how the patched value is interpreted.
	Kind() Kind
	// WriteValue sign-range-checks v against Size and writes it into buf
	// (which must be exactly Size bytes) little-endian. It returns
	// *ImpossibleRelocationError if v does not fit.
	WriteValue(buf []byte, v int64) error
	// ReadValue sign-extends the little-endian value stored in buf (which
	// must be exactly Size bytes).
	ReadValue(buf []byte) int64
}
