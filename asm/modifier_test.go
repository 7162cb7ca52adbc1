// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm_test

import (
	"bytes"
	"testing"

	"github.com/go-interpreter/dynasm/asm"
	"github.com/go-interpreter/dynasm/cpu/x64"
)

func TestAlterPatchesImmediateInPlace(t *testing.T) {
	a := newTestAssembler(t)
	start := a.Offset()
	// MOVL $0, AX : B8 00 00 00 00
	a.Push(0xB8)
	a.PushI32(0)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	err := a.Alter(func(m *asm.Modifier) {
		m.Goto(start + 1)
		m.PushI32(42)
	})
	if err != nil {
		t.Fatalf("Alter: %v", err)
	}

	got := readBytes(t, a)
	want := []byte{0xB8, 0x2A, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("code after alter = % x, want % x", got, want)
	}
}

func TestAlterLeavesCommittedLengthUnchanged(t *testing.T) {
	a := newTestAssembler(t)
	a.Push(0xB8)
	a.PushI32(0)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	before := len(readBytes(t, a))

	if err := a.Alter(func(m *asm.Modifier) {
		m.Goto(1)
		m.PushI32(7)
	}); err != nil {
		t.Fatalf("Alter: %v", err)
	}

	after := len(readBytes(t, a))
	if before != after {
		t.Fatalf("committed length changed from %d to %d across Alter", before, after)
	}
}

func TestModifierCheckOverflowPanics(t *testing.T) {
	a := newTestAssembler(t)
	a.Push(0x90)
	a.Push(0x90)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Check should have panicked once the write position passed it")
		}
		if r != asm.ErrAlterOverflow {
			t.Fatalf("recovered %v, want asm.ErrAlterOverflow", r)
		}
	}()

	a.Alter(func(m *asm.Modifier) {
		m.Goto(0)
		m.Push(0x90)
		m.Push(0x90)
		m.Check(1)
	})
}

func TestModifierDynamicLabelDuplicateAcrossAlter(t *testing.T) {
	a := newTestAssembler(t)
	id := a.NewDynamicLabel()
	a.DynamicLabel(id)
	a.Push(0x90)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("redefining a dynamic label from within Alter should have panicked")
		}
		if _, ok := r.(*asm.DuplicateDynamicLabelError); !ok {
			t.Fatalf("recovered %T, want *asm.DuplicateDynamicLabelError", r)
		}
	}()

	a.Alter(func(m *asm.Modifier) {
		m.DynamicLabel(id)
	})
}

func TestAlterWithArchPlugin(t *testing.T) {
	// Sanity: Alter works against the real x64 plug-in, not a stub.
	a, err := asm.New(x64.Arch{})
	if err != nil {
		t.Fatalf("asm.New: %v", err)
	}
	a.Push(0x90)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := a.Alter(func(m *asm.Modifier) {
		m.Goto(0)
		m.Push(0xCC)
	}); err != nil {
		t.Fatalf("Alter: %v", err)
	}
	if got := readBytes(t, a); got[0] != 0xCC {
		t.Fatalf("byte after alter = %#x, want 0xCC", got[0])
	}
}
