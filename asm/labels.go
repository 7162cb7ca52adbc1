// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

// AssemblyOffset is a byte offset from the start of the logical assembled
// code region. Scratch and committed regions share one monotonic
// coordinate system.
type AssemblyOffset uint64

// DynamicLabel is an opaque identity allocated from a monotonically
// increasing counter. Two distinct allocations are never equal.
type DynamicLabel uint64

// PatchLoc identifies the bytes to overwrite with an encoded label
// reference: the end offset of the relocation field, plus its width in
// bytes. The field itself occupies [End-Size, End).
//
// Note the convention preserved from the source this runtime is modeled
// on: a backward local reference builds its PatchLoc from the offset at
// the call site, so the relocation is taken to sit at the tail of the
// most recently emitted bytes. Encoders must call BackwardReloc/
// ForwardReloc/GlobalReloc/DynamicReloc only after having already pushed
// the bytes of the field they describe.
type PatchLoc struct {
	End  AssemblyOffset
	Size uint8
}

// globalRelocEntry pairs a pending patch location with the label name it
// references.
type globalRelocEntry struct {
	loc  PatchLoc
	name string
}

// dynamicRelocEntry pairs a pending patch location with the dynamic label
// id it references.
type dynamicRelocEntry struct {
	loc PatchLoc
	id  DynamicLabel
}

// labelTables holds every label/relocation table owned by an Assembler.
// Forward references form a bipartite relationship (many patches may
// reference one label by name/id); this is represented as two parallel
// tables keyed by name/id rather than any cyclic object graph.
type labelTables struct {
	globalLabels map[string]AssemblyOffset
	globalRelocs []globalRelocEntry

	dynamicLabels []*AssemblyOffset // nil entry means undefined
	dynamicRelocs []dynamicRelocEntry

	localLabels        map[string]AssemblyOffset
	localForwardRelocs map[string][]PatchLoc
}

func newLabelTables() labelTables {
	return labelTables{
		globalLabels:       make(map[string]AssemblyOffset),
		localLabels:        make(map[string]AssemblyOffset),
		localForwardRelocs: make(map[string][]PatchLoc),
	}
}

// newDynamicLabel allocates and returns a fresh DynamicLabel identity.
func (t *labelTables) newDynamicLabel() DynamicLabel {
	id := DynamicLabel(len(t.dynamicLabels))
	t.dynamicLabels = append(t.dynamicLabels, nil)
	return id
}

// defineGlobalLabel records a global label definition at offset. It
// returns DuplicateGlobalLabelError if name was already defined.
func (t *labelTables) defineGlobalLabel(name string, offset AssemblyOffset) error {
	if _, ok := t.globalLabels[name]; ok {
		return &DuplicateGlobalLabelError{Name: name}
	}
	t.globalLabels[name] = offset
	return nil
}

func (t *labelTables) recordGlobalReloc(name string, loc PatchLoc) {
	t.globalRelocs = append(t.globalRelocs, globalRelocEntry{loc: loc, name: name})
}

// defineDynamicLabel records a dynamic label definition at offset. It
// returns DuplicateDynamicLabelError if id was already defined (this
// applies uniformly whether called from the Assembler or from a Modifier
// during Alter).
func (t *labelTables) defineDynamicLabel(id DynamicLabel, offset AssemblyOffset) error {
	if t.dynamicLabels[id] != nil {
		return &DuplicateDynamicLabelError{ID: id}
	}
	off := offset
	t.dynamicLabels[id] = &off
	return nil
}

func (t *labelTables) recordDynamicReloc(id DynamicLabel, loc PatchLoc) {
	t.dynamicRelocs = append(t.dynamicRelocs, dynamicRelocEntry{loc: loc, id: id})
}

// defineLocalLabel records a (re)definition of a local label at offset.
// Any patch sites queued under name since the previous definition are
// returned so the caller can patch them immediately; the "most recent"
// backward-reference target for name is updated to offset.
func (t *labelTables) defineLocalLabel(name string, offset AssemblyOffset) []PatchLoc {
	pending := t.localForwardRelocs[name]
	delete(t.localForwardRelocs, name)
	t.localLabels[name] = offset
	return pending
}

// queueLocalForwardReloc queues loc to be patched on the next definition
// of name.
func (t *labelTables) queueLocalForwardReloc(name string, loc PatchLoc) {
	t.localForwardRelocs[name] = append(t.localForwardRelocs[name], loc)
}

// mostRecentLocalLabel returns the most recent definition of name, for
// resolving a backward reference immediately.
func (t *labelTables) mostRecentLocalLabel(name string) (AssemblyOffset, bool) {
	off, ok := t.localLabels[name]
	return off, ok
}

// pendingLocalLabelName returns the name of an arbitrary local label that
// still has a non-empty forward-relocation queue, or "" if none remain.
// It is an error for this to be non-empty at commit/alter resolution
// time.
func (t *labelTables) pendingLocalLabelName() string {
	for name, relocs := range t.localForwardRelocs {
		if len(relocs) > 0 {
			return name
		}
	}
	return ""
}

// takeGlobalRelocs drains and returns the pending global relocation
// queue.
func (t *labelTables) takeGlobalRelocs() []globalRelocEntry {
	relocs := t.globalRelocs
	t.globalRelocs = nil
	return relocs
}

// takeDynamicRelocs drains and returns the pending dynamic relocation
// queue.
func (t *labelTables) takeDynamicRelocs() []dynamicRelocEntry {
	relocs := t.dynamicRelocs
	t.dynamicRelocs = nil
	return relocs
}
