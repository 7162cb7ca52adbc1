// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

// patchField computes the value to store at loc for a reference to target
// and writes it into field, which must be exactly loc.Size bytes long
// (field aliases the bytes [loc.End-loc.Size, loc.End) of whatever
// storage currently holds them).
func patchField(arch Architecture, field []byte, loc PatchLoc, target AssemblyOffset) error {
	reloc, err := arch.Relocation(int(loc.Size))
	if err != nil {
		return err
	}
	var value int64
	switch reloc.Kind() {
	case Absolute:
		value = int64(target)
	default: // Relative
		value = int64(target) - int64(loc.End)
	}
	if err := reloc.WriteValue(field, value); err != nil {
		return err
	}
	return nil
}

// Emitter is the contract consumed by front-end encoders driving either an
// Assembler (scratch-buffered) or a Modifier (direct-writing). It is the
// single polymorphism point of this package.
type Emitter interface {
	// Offset reports the current logical end-of-code.
	Offset() AssemblyOffset
	// Push appends one byte.
	Push(b byte)
	// PushI8 appends a one-byte little-endian encoding of value.
	PushI8(value int8)
	// PushI16 appends a two-byte little-endian encoding of value.
	PushI16(value int16)
	// PushI32 appends a four-byte little-endian encoding of value.
	PushI32(value int32)
	// PushI64 appends an eight-byte little-endian encoding of value.
	PushI64(value int64)
	// Extend appends a byte sequence.
	Extend(b []byte)
	// Align appends 0x90 padding bytes until the next offset is a
	// multiple of n. If already aligned, it is a no-op.
	Align(n int)
	// GlobalLabel records a global label definition at the current
	// offset.
	GlobalLabel(name string)
	// DynamicLabel records a dynamic label definition at the current
	// offset.
	DynamicLabel(id DynamicLabel)
	// LocalLabel records a local label definition at the current offset.
	LocalLabel(name string)
	// GlobalReloc records a relocation whose field ends at the current
	// offset, referencing a global label.
	GlobalReloc(name string, size int)
	// DynamicReloc records a relocation whose field ends at the current
	// offset, referencing a dynamic label.
	DynamicReloc(id DynamicLabel, size int)
	// ForwardReloc queues a relocation under name, to be patched against
	// the next LocalLabel(name) definition.
	ForwardReloc(name string, size int)
	// BackwardReloc immediately patches against the most recent
	// definition of name; it panics with *UnknownLocalLabelError if none
	// exists.
	BackwardReloc(name string, size int)
	// RuntimeError terminates the calling goroutine with diagnostic msg.
	RuntimeError(msg string)
}

var (
	_ Emitter = (*Assembler)(nil)
	_ Emitter = (*Modifier)(nil)
)
