// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

// Modifier is a Modifier exposed to an Alter callback, allowing in-place
// mutation of already-committed code. Unlike the Assembler it wraps,
// writes through a Modifier land directly in the live mapping at
// mapping[asmoffset] and advance asmoffset byte by byte; they never touch
// the scratch buffer (ops) and never extend the buffer's committed
// length.
type Modifier struct {
	asm *Assembler
	mem []byte
}

// Goto sets the current write position to offset. Subsequent pushes land
// at mapping[offset] and advance from there.
func (m *Modifier) Goto(offset AssemblyOffset) {
	m.asm.asmoffset = offset
}

// Check asserts that the current write position is <= offset, panicking
// with ErrAlterOverflow otherwise. It is used to bound
// edits to a reserved region.
func (m *Modifier) Check(offset AssemblyOffset) {
	if m.asm.asmoffset > offset {
		panic(ErrAlterOverflow)
	}
}

// Offset reports the Modifier's current absolute position within the
// mapping (Alter resets asmoffset to 0 at entry, so this is the mapping's
// own coordinate system).
func (m *Modifier) Offset() AssemblyOffset {
	return m.asm.asmoffset
}

// Push writes one byte directly into the mapping at the current position
// and advances it.
func (m *Modifier) Push(b byte) {
	m.mem[m.asm.asmoffset] = b
	m.asm.asmoffset++
}

// PushI8 writes a one-byte little-endian encoding of value.
func (m *Modifier) PushI8(value int8) {
	m.Push(byte(value))
}

// PushI16 writes a two-byte little-endian encoding of value.
func (m *Modifier) PushI16(value int16) {
	m.Push(byte(value))
	m.Push(byte(value >> 8))
}

// PushI32 writes a four-byte little-endian encoding of value.
func (m *Modifier) PushI32(value int32) {
	m.Push(byte(value))
	m.Push(byte(value >> 8))
	m.Push(byte(value >> 16))
	m.Push(byte(value >> 24))
}

// PushI64 writes an eight-byte little-endian encoding of value.
func (m *Modifier) PushI64(value int64) {
	m.Push(byte(value))
	m.Push(byte(value >> 8))
	m.Push(byte(value >> 16))
	m.Push(byte(value >> 24))
	m.Push(byte(value >> 32))
	m.Push(byte(value >> 40))
	m.Push(byte(value >> 48))
	m.Push(byte(value >> 56))
}

// Extend writes a byte sequence directly into the mapping.
func (m *Modifier) Extend(b []byte) {
	for _, x := range b {
		m.Push(x)
	}
}

// Align writes 0x90 padding bytes until the next position is a multiple
// of n.
func (m *Modifier) Align(n int) {
	rem := int(m.Offset()) % n
	if rem == 0 {
		return
	}
	for i := 0; i < n-rem; i++ {
		m.Push(0x90)
	}
}

// GlobalLabel records a global label definition at the current position.
func (m *Modifier) GlobalLabel(name string) {
	if err := m.asm.labels.defineGlobalLabel(name, m.Offset()); err != nil {
		panic(err)
	}
}

// DynamicLabel records a dynamic label definition at the current
// position. Redefinition of a dynamic label is rejected the same way
// whether it happens through the Assembler or through a Modifier inside
// Alter.
func (m *Modifier) DynamicLabel(id DynamicLabel) {
	if err := m.asm.labels.defineDynamicLabel(id, m.Offset()); err != nil {
		panic(err)
	}
}

// LocalLabel records a local label definition at the current position,
// immediately patching any forward references queued since the previous
// definition of name.
func (m *Modifier) LocalLabel(name string) {
	offset := m.Offset()
	for _, loc := range m.asm.labels.defineLocalLabel(name, offset) {
		if err := m.patchLoc(loc, offset); err != nil {
			panic(err)
		}
	}
}

// GlobalReloc records a relocation whose field ends at the current
// position, referencing a global label.
func (m *Modifier) GlobalReloc(name string, size int) {
	loc, err := newModifierPatchLoc(m, size)
	if err != nil {
		panic(err)
	}
	m.asm.labels.recordGlobalReloc(name, loc)
}

// DynamicReloc records a relocation whose field ends at the current
// position, referencing a dynamic label.
func (m *Modifier) DynamicReloc(id DynamicLabel, size int) {
	loc, err := newModifierPatchLoc(m, size)
	if err != nil {
		panic(err)
	}
	m.asm.labels.recordDynamicReloc(id, loc)
}

// ForwardReloc queues a relocation under name, to be patched against the
// next LocalLabel(name) definition.
func (m *Modifier) ForwardReloc(name string, size int) {
	loc, err := newModifierPatchLoc(m, size)
	if err != nil {
		panic(err)
	}
	m.asm.labels.queueLocalForwardReloc(name, loc)
}

// BackwardReloc immediately patches against the most recent definition of
// name.
func (m *Modifier) BackwardReloc(name string, size int) {
	loc, err := newModifierPatchLoc(m, size)
	if err != nil {
		panic(err)
	}
	target, ok := m.asm.labels.mostRecentLocalLabel(name)
	if !ok {
		panic(&UnknownLocalLabelError{Name: name})
	}
	if err := m.patchLoc(loc, target); err != nil {
		panic(err)
	}
}

// RuntimeError terminates the calling goroutine with the supplied
// diagnostic.
func (m *Modifier) RuntimeError(msg string) {
	panic(&RuntimeError{Msg: msg})
}

func newModifierPatchLoc(m *Modifier, size int) (PatchLoc, error) {
	if size != 1 && size != 2 && size != 4 && size != 8 {
		return PatchLoc{}, &InvalidPatchSizeError{Size: size}
	}
	return PatchLoc{End: m.Offset(), Size: uint8(size)}, nil
}

// patchLoc overwrites the bytes described by loc, directly in the live
// mapping, with a reference to target.
func (m *Modifier) patchLoc(loc PatchLoc, target AssemblyOffset) error {
	field := m.mem[int(loc.End)-int(loc.Size) : int(loc.End)]
	return patchField(m.asm.arch, field, loc, target)
}

// Alter allows mutation of already-committed code. It commits any
// pending scratch bytes, then invokes f with a Modifier positioned at the
// start of the mapping, holding the exclusive write lock and RW
// protection for the callback's duration. Any relocations f records
// (global, dynamic, or local) are resolved against the live mapping
// before Alter returns; an empty local forward-relocation queue is
// required just as it is for Commit.
func (a *Assembler) Alter(f func(*Modifier)) error {
	if err := a.Commit(); err != nil {
		return err
	}

	savedOffset := a.asmoffset
	a.asmoffset = 0

	a.mu.Lock()
	defer a.mu.Unlock()

	mapping := a.execbuffer.mapping
	if err := mapping.protectRW(); err != nil {
		a.asmoffset = savedOffset
		return err
	}

	m := &Modifier{asm: a, mem: mapping.bytes()}
	f(m)

	err := resolveRelocs(&a.labels, m.patchLoc)

	if rxErr := mapping.protectRX(); err == nil {
		err = rxErr
	}

	a.asmoffset = savedOffset
	return err
}
