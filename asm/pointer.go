// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "reflect"

// FuncAddr returns the entry address of a Go function value, suitable for
// embedding as an absolute immediate in assembled machine code (e.g. to
// call back into host code). Labels and relocations only resolve offsets
// within the assembled code, so such an address is pushed directly
// rather than through a label. fn must be a func value.
func FuncAddr(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
