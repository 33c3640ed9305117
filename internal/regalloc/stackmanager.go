package regalloc

// StackManager lays out a function's register-spill frame into byte
// offsets, per spec.md §4.8: "alloc(size) returns an offset, coalescing
// free slots where possible; free(offset) merges adjacent free regions."
// It is scoped to one function and used only by this package's spill
// handling — user-declared locals keep using ir.FunctionDef.AllocStack's
// own id space and are never laid out here.
type StackManager struct {
	free []freeRegion // sorted by offset, disjoint, non-adjacent
	size int64        // high-water mark; the frame's final required size

	// slots remembers every id ever allocated, by offset and size, even
	// after Free returns it to the free list — a spilled register's
	// earlier load/store instructions still need to resolve their id to
	// an offset during codegen.
	slots map[int]slot
}

type freeRegion struct {
	offset, size int64
}

type slot struct {
	offset, size int64
}

// NewStackManager returns an empty frame manager.
func NewStackManager() *StackManager {
	return &StackManager{slots: map[int]slot{}}
}

// Alloc reserves size bytes for id, reusing the first free region at
// least that large before growing the frame, and returns the assigned
// byte offset. Allocation order is stable (first-fit over free regions in
// offset order, then growth at the end) so layout is reproducible.
func (sm *StackManager) Alloc(id int, size int64) int64 {
	for i, r := range sm.free {
		if r.size < size {
			continue
		}
		offset := r.offset
		sm.slots[id] = slot{offset, size}
		if r.size == size {
			sm.free = append(sm.free[:i], sm.free[i+1:]...)
		} else {
			sm.free[i] = freeRegion{offset + size, r.size - size}
		}
		return offset
	}
	offset := sm.size
	sm.size += size
	sm.slots[id] = slot{offset, size}
	return offset
}

// Free returns id's region to the free list, merging it with any
// byte-adjacent free region so fragmentation stays bounded by the number
// of currently-live allocations.
func (sm *StackManager) Free(id int) {
	s, ok := sm.slots[id]
	if !ok {
		return
	}
	region := freeRegion{s.offset, s.size}

	inserted := false
	merged := make([]freeRegion, 0, len(sm.free)+1)
	for _, r := range sm.free {
		if !inserted && region.offset < r.offset {
			merged = append(merged, region)
			inserted = true
		}
		merged = append(merged, r)
	}
	if !inserted {
		merged = append(merged, region)
	}
	sm.free = coalesceAdjacent(merged)
}

func coalesceAdjacent(regions []freeRegion) []freeRegion {
	if len(regions) < 2 {
		return regions
	}
	out := make([]freeRegion, 0, len(regions))
	cur := regions[0]
	for _, r := range regions[1:] {
		if cur.offset+cur.size == r.offset {
			cur.size += r.size
			continue
		}
		out = append(out, cur)
		cur = r
	}
	return append(out, cur)
}

// Offset returns the byte offset id was assigned, whether or not it has
// since been freed.
func (sm *StackManager) Offset(id int) (int64, bool) {
	s, ok := sm.slots[id]
	return s.offset, ok
}

// Size returns the total frame size required: the high-water mark across
// every Alloc call so far.
func (sm *StackManager) Size() int64 { return sm.size }
