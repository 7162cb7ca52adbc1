// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64

import (
	"testing"

	"github.com/go-interpreter/dynasm/asm"
)

func TestArchPageSize(t *testing.T) {
	if got := (Arch{}).PageSize(); got != 4096 {
		t.Fatalf("PageSize() = %d, want 4096", got)
	}
}

func TestArchRelocationInvalidSize(t *testing.T) {
	if _, err := (Arch{}).Relocation(3); err == nil {
		t.Fatal("Relocation(3) should have reported an error and didn't")
	}
}

func TestRelocationRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		reloc, err := (Arch{}).Relocation(size)
		if err != nil {
			t.Fatalf("Relocation(%d): %v", size, err)
		}
		if reloc.Size() != size {
			t.Fatalf("Size() = %d, want %d", reloc.Size(), size)
		}
		if reloc.Kind() != asm.Relative {
			t.Fatalf("Kind() = %v, want Relative", reloc.Kind())
		}
		if reloc.StartOffset() != 0 || reloc.FieldOffset() != size {
			t.Fatalf("StartOffset/FieldOffset = %d/%d, want 0/%d", reloc.StartOffset(), reloc.FieldOffset(), size)
		}

		for _, v := range []int64{0, 1, -1, 42, -42} {
			buf := make([]byte, size)
			if err := reloc.WriteValue(buf, v); err != nil {
				t.Fatalf("size %d: WriteValue(%d): %v", size, v, err)
			}
			if got := reloc.ReadValue(buf); got != v {
				t.Fatalf("size %d: round trip of %d produced %d", size, v, got)
			}
		}
	}
}

func TestRelocationWriteValueOverflow(t *testing.T) {
	reloc, err := (Arch{}).Relocation(1)
	if err != nil {
		t.Fatalf("Relocation(1): %v", err)
	}
	buf := make([]byte, 1)
	if err := reloc.WriteValue(buf, 1000); err == nil {
		t.Fatal("WriteValue(1000) into a 1-byte field should have reported an error and didn't")
	}
}

func TestRelocationWriteValueWrongBufferLen(t *testing.T) {
	reloc, err := (Arch{}).Relocation(4)
	if err != nil {
		t.Fatalf("Relocation(4): %v", err)
	}
	if err := reloc.WriteValue(make([]byte, 2), 0); err == nil {
		t.Fatal("WriteValue into a mis-sized buffer should have reported an error and didn't")
	}
}

func TestRelocationNegativeRoundTrip(t *testing.T) {
	reloc, err := (Arch{}).Relocation(2)
	if err != nil {
		t.Fatalf("Relocation(2): %v", err)
	}
	buf := make([]byte, 2)
	if err := reloc.WriteValue(buf, -4); err != nil {
		t.Fatalf("WriteValue(-4): %v", err)
	}
	// little-endian two's complement: FC FF
	if buf[0] != 0xFC || buf[1] != 0xFF {
		t.Fatalf("encoding of -4 = % x, want fc ff", buf)
	}
	if got := reloc.ReadValue(buf); got != -4 {
		t.Fatalf("ReadValue = %d, want -4", got)
	}
}
