// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"io"
	"log"
	"os"
)

var logger *log.Logger

func init() {
	logger = log.New(io.Discard, "", log.Lshortfile)
}

// SetDebugMode enables or disables verbose logging of commit/alter/growth
// activity to stderr. It is intended for diagnosing encoder front-ends
// during development, never for control flow.
func SetDebugMode(v bool) {
	w := io.Discard
	if v {
		w = os.Stderr
	}
	logger.SetOutput(w)
}
