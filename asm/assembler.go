// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements the runtime core of a dynamic assembler: it
// accepts a stream of emitted machine-code bytes and symbolic label
// references from an encoder front-end, assembles them into an
// executable memory region, resolves inter-instruction relocations, and
// safely publishes the result so host code may invoke the assembled
// routines while further assembly proceeds in parallel.
//
// Architecture-specific instruction encoding and the macro/DSL front-end
// that drives this API are out of scope; see the Architecture/Relocation
// interfaces and package cpu/x64 for the one reference plug-in.
package asm

import (
	"sync"
)

// defaultInitialSize is the size of the executable mapping an Assembler
// starts with when no Option overrides it.
const defaultInitialSize = 256 * 1024

// Option configures an Assembler at construction time.
type Option func(*assemblerConfig)

type assemblerConfig struct {
	initialSize int
}

// WithInitialSize overrides the initial executable mapping size. n is
// rounded up to the platform page size by the OS.
func WithInitialSize(n int) Option {
	return func(c *assemblerConfig) {
		c.initialSize = n
	}
}

// Assembler is the byte-emission target driven by an encoder front-end.
// It stages bytes in a scratch buffer and commits them into an executable
// memory region. An Assembler is not safe for concurrent use by multiple
// goroutines: the emission API mutates the Assembler and is not
// reentrant. Executors obtained from Reader may be used concurrently from
// other goroutines.
type Assembler struct {
	arch Architecture

	mu         sync.RWMutex
	execbuffer *ExecutableBuffer
	mapLen     int
	executors  int // count of live Executor handles sharing execbuffer

	asmoffset AssemblyOffset
	ops       []byte

	labels labelTables
}

// New creates an empty Assembler backed by a fresh executable mapping of
// the default initial size (256 KiB), or the size given via
// WithInitialSize.
func New(arch Architecture, opts ...Option) (*Assembler, error) {
	cfg := assemblerConfig{initialSize: defaultInitialSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	mapping, err := newExecutableMapping(cfg.initialSize)
	if err != nil {
		return nil, err
	}

	a := &Assembler{
		arch:       arch,
		execbuffer: &ExecutableBuffer{mapping: mapping, length: 0},
		mapLen:     mapping.size(),
		labels:     newLabelTables(),
	}
	return a, nil
}

// NewDynamicLabel allocates a new dynamic label that can be referenced
// and defined.
func (a *Assembler) NewDynamicLabel() DynamicLabel {
	return a.labels.newDynamicLabel()
}

// Offset reports the current logical end-of-code: the scratch buffer's
// length plus the offset at which it begins.
func (a *Assembler) Offset() AssemblyOffset {
	return a.asmoffset + AssemblyOffset(len(a.ops))
}

// Push appends one byte to the scratch buffer.
func (a *Assembler) Push(b byte) {
	a.ops = append(a.ops, b)
}

// PushI8 appends a one-byte little-endian encoding of value.
func (a *Assembler) PushI8(value int8) {
	a.Push(byte(value))
}

// PushI16 appends a two-byte little-endian encoding of value.
func (a *Assembler) PushI16(value int16) {
	a.ops = append(a.ops, byte(value), byte(value>>8))
}

// PushI32 appends a four-byte little-endian encoding of value.
func (a *Assembler) PushI32(value int32) {
	a.ops = append(a.ops, byte(value), byte(value>>8), byte(value>>16), byte(value>>24))
}

// PushI64 appends an eight-byte little-endian encoding of value.
func (a *Assembler) PushI64(value int64) {
	a.ops = append(a.ops,
		byte(value), byte(value>>8), byte(value>>16), byte(value>>24),
		byte(value>>32), byte(value>>40), byte(value>>48), byte(value>>56),
	)
}

// Extend appends a byte sequence to the scratch buffer.
func (a *Assembler) Extend(b []byte) {
	a.ops = append(a.ops, b...)
}

// Align appends 0x90 padding bytes until the next offset is a multiple of
// n. If already aligned, it is a no-op.
func (a *Assembler) Align(n int) {
	rem := int(a.Offset()) % n
	if rem == 0 {
		return
	}
	for i := 0; i < n-rem; i++ {
		a.Push(0x90)
	}
}

// GlobalLabel records a global label definition at the current offset.
// It panics with *DuplicateGlobalLabelError if name was already defined.
func (a *Assembler) GlobalLabel(name string) {
	if err := a.labels.defineGlobalLabel(name, a.Offset()); err != nil {
		panic(err)
	}
}

// DynamicLabel records a dynamic label definition at the current offset.
// It panics with *DuplicateDynamicLabelError if id was already defined.
func (a *Assembler) DynamicLabel(id DynamicLabel) {
	if err := a.labels.defineDynamicLabel(id, a.Offset()); err != nil {
		panic(err)
	}
}

// LocalLabel records a local label definition at the current offset,
// immediately patching any forward references queued since the previous
// definition of name.
func (a *Assembler) LocalLabel(name string) {
	offset := a.Offset()
	for _, loc := range a.labels.defineLocalLabel(name, offset) {
		if err := a.patchLoc(loc, offset); err != nil {
			panic(err)
		}
	}
}

// GlobalReloc records a relocation whose field ends at the current
// offset, referencing a global label defined before or after this call.
// size must be one of 1, 2, 4, 8.
func (a *Assembler) GlobalReloc(name string, size int) {
	loc, err := a.newPatchLoc(size)
	if err != nil {
		panic(err)
	}
	a.labels.recordGlobalReloc(name, loc)
}

// DynamicReloc records a relocation whose field ends at the current
// offset, referencing a dynamic label. size must be one of 1, 2, 4, 8.
func (a *Assembler) DynamicReloc(id DynamicLabel, size int) {
	loc, err := a.newPatchLoc(size)
	if err != nil {
		panic(err)
	}
	a.labels.recordDynamicReloc(id, loc)
}

// ForwardReloc queues a relocation under name, to be patched against the
// next LocalLabel(name) definition. size must be one of 1, 2, 4, 8.
func (a *Assembler) ForwardReloc(name string, size int) {
	loc, err := a.newPatchLoc(size)
	if err != nil {
		panic(err)
	}
	a.labels.queueLocalForwardReloc(name, loc)
}

// BackwardReloc immediately patches against the most recent definition of
// name. It panics with *UnknownLocalLabelError if name has no prior
// definition.
func (a *Assembler) BackwardReloc(name string, size int) {
	loc, err := a.newPatchLoc(size)
	if err != nil {
		panic(err)
	}
	target, ok := a.labels.mostRecentLocalLabel(name)
	if !ok {
		panic(&UnknownLocalLabelError{Name: name})
	}
	if err := a.patchLoc(loc, target); err != nil {
		panic(err)
	}
}

// RuntimeError terminates the calling goroutine with the supplied
// diagnostic, signaling an encoder bug.
func (a *Assembler) RuntimeError(msg string) {
	panic(&RuntimeError{Msg: msg})
}

// newPatchLoc validates size and builds a PatchLoc ending at the current
// offset.
func (a *Assembler) newPatchLoc(size int) (PatchLoc, error) {
	if size != 1 && size != 2 && size != 4 && size != 8 {
		return PatchLoc{}, &InvalidPatchSizeError{Size: size}
	}
	return PatchLoc{End: a.Offset(), Size: uint8(size)}, nil
}

// patchLoc overwrites the bytes described by loc with a reference to
// target. It always patches ops directly, so loc must lie within the
// scratch buffer; Modifier has its own patchLoc that patches the live
// mapping instead.
func (a *Assembler) patchLoc(loc PatchLoc, target AssemblyOffset) error {
	bufEnd := int(loc.End) - int(a.asmoffset)
	field := a.ops[bufEnd-int(loc.Size) : bufEnd]
	return patchField(a.arch, field, loc, target)
}

// resolveRelocs resolves every pending global/dynamic relocation, and
// checks that no local forward-relocation queue remains non-empty. patch
// is called once per (PatchLoc, target) pair; it is supplied by Commit
// (patches ops) and Modifier (patches the live mapping).
//
// Resolvability of every pending entry is checked before any entry is
// patched or any queue is drained, so a failure (an unknown label) leaves
// the tables exactly as they were: nothing is patched, and a retry after
// the caller defines the missing label sees the same pending entries.
func resolveRelocs(labels *labelTables, patch func(PatchLoc, AssemblyOffset) error) error {
	globalRelocs := labels.globalRelocs
	for _, r := range globalRelocs {
		if _, ok := labels.globalLabels[r.name]; !ok {
			return &UnknownGlobalLabelError{Name: r.name}
		}
	}
	dynamicRelocs := labels.dynamicRelocs
	for _, r := range dynamicRelocs {
		if int(r.id) >= len(labels.dynamicLabels) || labels.dynamicLabels[r.id] == nil {
			return &UnknownDynamicLabelError{ID: r.id}
		}
	}
	if name := labels.pendingLocalLabelName(); name != "" {
		return &UnknownLocalLabelError{Name: name}
	}

	for _, r := range globalRelocs {
		if err := patch(r.loc, labels.globalLabels[r.name]); err != nil {
			return err
		}
	}
	for _, r := range dynamicRelocs {
		if err := patch(r.loc, *labels.dynamicLabels[r.id]); err != nil {
			return err
		}
	}
	labels.globalRelocs = nil
	labels.dynamicRelocs = nil
	return nil
}

// Commit publishes the staged scratch bytes into the executable mapping,
// resolving every pending relocation and flipping protection so readers
// never observe writable pages. If any pending relocation references an
// undefined label, Commit returns an error and publishes nothing. If the scratch buffer is empty
// this is a no-op (commit is idempotent: commit();commit() == commit()).
func (a *Assembler) Commit() error {
	bufStart := a.asmoffset
	bufEnd := a.Offset()
	if bufStart == bufEnd {
		return nil
	}

	if err := resolveRelocs(&a.labels, a.patchLoc); err != nil {
		return err
	}

	if int(bufEnd) > a.mapLen {
		if err := a.commitGrow(bufStart, bufEnd); err != nil {
			return err
		}
	} else {
		if err := a.commitInPlace(bufStart, bufEnd); err != nil {
			return err
		}
	}

	a.ops = nil
	a.asmoffset = bufEnd
	return nil
}

// commitInPlace is the fast path: the new bytes fit within the existing
// mapping, so no reallocation is needed.
func (a *Assembler) commitInPlace(bufStart, bufEnd AssemblyOffset) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := a.execbuffer
	if err := buf.mapping.protectRW(); err != nil {
		return err
	}
	copy(buf.mapping.bytes()[bufStart:bufEnd], a.ops)
	if err := buf.mapping.protectRX(); err != nil {
		return err
	}
	if int(bufEnd) > buf.length {
		buf.length = int(bufEnd)
	}
	logger.Printf("commit: in-place [%d,%d)", bufStart, bufEnd)
	return nil
}

// commitGrow is the slow path: a new, larger mapping is allocated, the
// unchanged prefix and the new bytes are copied into it, and it is
// swapped in under the write lock, after which the old mapping is
// unmapped. Executors hold no reference to the old buffer; a ReadGuard
// holds the read lock, so acquiring the write lock first waits until
// every guard is unlocked, which is why growth commits block while a
// ReadGuard is held and why no live guard can point into the unmapped
// region.
func (a *Assembler) commitGrow(bufStart, bufEnd AssemblyOffset) error {
	newLen := a.mapLen * 2
	if int(bufEnd) > newLen {
		newLen = int(bufEnd)
	}

	newMapping, err := newExecutableMapping(newLen)
	if err != nil {
		return err
	}
	if err := newMapping.protectRW(); err != nil {
		newMapping.unmap()
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	old := a.execbuffer
	copy(newMapping.bytes()[:bufStart], old.mapping.bytes()[:bufStart])
	copy(newMapping.bytes()[bufStart:bufEnd], a.ops)

	if err := newMapping.protectRX(); err != nil {
		newMapping.unmap()
		return err
	}

	a.execbuffer = &ExecutableBuffer{mapping: newMapping, length: int(bufEnd)}
	a.mapLen = newMapping.size()
	old.mapping.unmap()

	logger.Printf("commit: grow to %d bytes", a.mapLen)
	return nil
}

// Reader returns a cloneable handle sharing ownership of the
// ExecutableBuffer. Readers may be locked from many goroutines in
// parallel; while any ReadGuard is held, growth commits block. The
// returned Executor must be released with Close when the host code no
// longer needs it, so that Finalize can later reclaim sole ownership.
func (a *Assembler) Reader() *Executor {
	a.mu.Lock()
	a.executors++
	a.mu.Unlock()
	return &Executor{asm: a}
}

// Finalize commits any remaining scratch bytes and attempts to reclaim
// sole ownership of the executable buffer. If any Executor handle
// obtained from Reader has not yet been released via Close, Finalize
// returns a nil buffer and *FinalizeLockedError, leaving the Assembler
// unchanged and still fully usable; otherwise it returns the owned
// ExecutableBuffer.
func (a *Assembler) Finalize() (*ExecutableBuffer, error) {
	if err := a.Commit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.executors > 0 {
		return nil, &FinalizeLockedError{}
	}
	return a.execbuffer, nil
}
