// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no data beyond their kind.
// ErrAlterOverflow is the value Modifier.Check panics with when it
// observes that the current write position has advanced past the checked
// offset.
var ErrAlterOverflow = errors.New("asm: alter write position overflowed checked offset")

// DuplicateGlobalLabelError is the value GlobalLabel panics with when name
// has already been defined once during the Assembler's lifetime.
type DuplicateGlobalLabelError struct {
	Name string
}

func (e *DuplicateGlobalLabelError) Error() string {
	return fmt.Sprintf("asm: duplicate global label %q", e.Name)
}

// DuplicateDynamicLabelError is the value DynamicLabel panics with when id
// has already been defined, whether from the Assembler or from a Modifier.
type DuplicateDynamicLabelError struct {
	ID DynamicLabel
}

func (e *DuplicateDynamicLabelError) Error() string {
	return fmt.Sprintf("asm: duplicate dynamic label %d", e.ID)
}

// UnknownGlobalLabelError is returned at Commit/Alter resolution time when
// a global_reloc's name has no definition.
type UnknownGlobalLabelError struct {
	Name string
}

func (e *UnknownGlobalLabelError) Error() string {
	return fmt.Sprintf("asm: unknown global label %q", e.Name)
}

// UnknownDynamicLabelError is returned at Commit/Alter resolution time
// when a dynamic_reloc's id has no definition.
type UnknownDynamicLabelError struct {
	ID DynamicLabel
}

func (e *UnknownDynamicLabelError) Error() string {
	return fmt.Sprintf("asm: unknown dynamic label %d", e.ID)
}

// UnknownLocalLabelError is the value BackwardReloc panics with when name
// has no prior definition, and is returned at Commit/Alter resolution time
// when a local forward-relocation queue is non-empty.
type UnknownLocalLabelError struct {
	Name string
}

func (e *UnknownLocalLabelError) Error() string {
	return fmt.Sprintf("asm: unknown local label %q", e.Name)
}

// ImpossibleRelocationError is returned when a signed delta does not fit
// in a relocation field's declared width.
type ImpossibleRelocationError struct {
	Delta int64
	Size  int
}

func (e *ImpossibleRelocationError) Error() string {
	return fmt.Sprintf("asm: delta %d does not fit in a %d-byte relocation field", e.Delta, e.Size)
}

// InvalidPatchSizeError is returned when a relocation size argument is not
// one of {1, 2, 4, 8}.
type InvalidPatchSizeError struct {
	Size int
}

func (e *InvalidPatchSizeError) Error() string {
	return fmt.Sprintf("asm: invalid patch size %d, want one of 1, 2, 4, 8", e.Size)
}

// MappingAllocFailedError wraps a platform failure to allocate executable
// memory.
type MappingAllocFailedError struct {
	Size int
	Err  error
}

func (e *MappingAllocFailedError) Error() string {
	return fmt.Sprintf("asm: failed to allocate %d bytes of executable memory: %v", e.Size, e.Err)
}

func (e *MappingAllocFailedError) Unwrap() error { return e.Err }

// MappingProtectionFailedError wraps a platform failure to change the
// protection of an existing mapping.
type MappingProtectionFailedError struct {
	Want string
	Err  error
}

func (e *MappingProtectionFailedError) Error() string {
	return fmt.Sprintf("asm: failed to set mapping protection to %s: %v", e.Want, e.Err)
}

func (e *MappingProtectionFailedError) Unwrap() error { return e.Err }

// FinalizeLockedError is returned by Assembler.Finalize when at least one
// Executor still shares ownership of the ExecutableBuffer. Unlike every
// other error kind here, this one is recoverable: the Assembler on which
// Finalize was called is left unchanged and is still fully usable.
type FinalizeLockedError struct{}

func (e *FinalizeLockedError) Error() string {
	return "asm: finalize: an Executor still holds the executable buffer"
}

// RuntimeError is the value passed to runtime_error by an encoder
// front-end driving the emission API; it always terminates the calling
// goroutine via panic, mirroring the fact that it signals an encoder bug
// rather than a recoverable condition.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("asm: runtime error: %s", e.Msg)
}
