// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dynasm-demo assembles a tiny x86-64 routine through the public
// asm API, commits it, inspects the resulting executable bytes, then
// alters the routine's immediate operand in place and inspects it again.
// It exists to exercise the whole public API end to end, the way
// cmd/wasm-run exercised wagon's VM end to end.
package main

import (
	"flag"
	"fmt"
	"log"

	asmpkg "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/go-interpreter/dynasm/asm"
	"github.com/go-interpreter/dynasm/cpu/x64"
)

func main() {
	log.SetPrefix("dynasm-demo: ")
	log.SetFlags(0)

	verbose := flag.Bool("v", false, "enable/disable verbose mode")
	immediate := flag.Int64("imm", 42, "immediate value the altered routine should return")
	flag.Parse()

	asm.SetDebugMode(*verbose)

	if err := run(*immediate); err != nil {
		log.Fatal(err)
	}
}

// encodeMovEAXRet uses golang-asm to build the machine code for:
//
//	MOVL $imm, AX
//	RET
//
// mirroring the way exec/internal/compile's AMD64Backend drives
// golang-asm's obj.Prog builder to produce real x86-64 bytes.
func encodeMovEAXRet(imm int64) ([]byte, error) {
	builder, err := asmpkg.NewBuilder("amd64", 2)
	if err != nil {
		return nil, err
	}

	mov := builder.NewProg()
	mov.As = x86.AMOVL
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = imm
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_AX
	builder.AddInstruction(mov)

	ret := builder.NewProg()
	ret.As = obj.ARET
	builder.AddInstruction(ret)

	return builder.Assemble(), nil
}

// hostCallback stands in for a Go function the assembled code can call
// back into; its entry address is embedded as a raw 64-bit immediate,
// the same role lib.rs's Pointer!/MutPointer! macros play.
func hostCallback() {
	fmt.Println("dynasm-demo: called back into host Go code")
}

func run(imm int64) error {
	a, err := asm.New(x64.Arch{})
	if err != nil {
		return fmt.Errorf("creating assembler: %w", err)
	}

	code, err := encodeMovEAXRet(0)
	if err != nil {
		return fmt.Errorf("encoding routine: %w", err)
	}

	start := a.Offset()
	a.GlobalLabel("return_value")
	a.Extend(code)

	// MOVABS $hostCallback, RAX : 48 B8 <8-byte absolute address>
	cbOffset := a.Offset()
	a.Push(0x48)
	a.Push(0xB8)
	a.PushI64(int64(asm.FuncAddr(hostCallback)))

	if err := a.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	reader := a.Reader()
	defer reader.Close()

	guard := reader.Lock()
	fmt.Printf("committed %d bytes at %#x: % x\n", len(code), guard.Ptr(start), guard.Bytes()[start:cbOffset])
	fmt.Printf("embedded host callback address at %#x: % x\n", guard.Ptr(cbOffset), guard.Bytes()[cbOffset:])
	guard.Unlock()

	// The MOVL $0, AX encoding above is "B8 00 00 00 00" per the x86
	// immediate-move opcode: patch the 4-byte immediate field in place.
	err = a.Alter(func(m *asm.Modifier) {
		m.Goto(start + 1)
		m.PushI32(int32(imm))
	})
	if err != nil {
		return fmt.Errorf("alter: %w", err)
	}

	guard = reader.Lock()
	fmt.Printf("altered immediate to %d: % x\n", imm, guard.Bytes()[start:start+asm.AssemblyOffset(len(code))])
	guard.Unlock()

	return nil
}
