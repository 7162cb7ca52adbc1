// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm_test

import (
	"sync"
	"testing"

	"github.com/go-interpreter/dynasm/asm"
)

func TestExecutorSharedAcrossGoroutines(t *testing.T) {
	a := newTestAssembler(t)
	a.Push(0x90)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := a.Reader()
	defer reader.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := reader.Lock()
			defer g.Unlock()
			if len(g.Bytes()) != 1 {
				t.Errorf("Bytes() len = %d, want 1", len(g.Bytes()))
			}
		}()
	}
	wg.Wait()
}

func TestExecutorCloseIsIdempotent(t *testing.T) {
	a := newTestAssembler(t)
	reader := a.Reader()
	reader.Close()
	reader.Close() // must not double-decrement the executor count

	if _, err := a.Finalize(); err != nil {
		t.Fatalf("Finalize after two Close calls: %v", err)
	}
}

func TestReaderSurvivesGrowth(t *testing.T) {
	a := newTestAssembler(t, asm.WithInitialSize(64))
	a.Extend(make([]byte, 16))
	if err := a.Commit(); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	reader := a.Reader()
	defer reader.Close()
	g := reader.Lock()
	oldLen := len(g.Bytes())
	g.Unlock()

	a.Extend(make([]byte, 4096))
	if err := a.Commit(); err != nil {
		t.Fatalf("growth commit: %v", err)
	}

	g2 := reader.Lock()
	defer g2.Unlock()
	if len(g2.Bytes()) <= oldLen {
		t.Fatalf("Bytes() len = %d after growth, want more than %d", len(g2.Bytes()), oldLen)
	}
}
