package ir

// Interval is the live range of one virtual register, expressed as
// instruction indices into the owning CodeHolder: the register is live on
// [Start, End]. Linear-scan allocation (internal/regalloc) walks registers
// sorted by Start and expires those whose End has passed, per spec.md
// §4.7's chosen allocation strategy.
type Interval struct {
	Reg        int
	Start, End int
}

// LivenessData is the per-function liveness result: live-in/live-out
// register sets per instruction, and the coalesced per-register intervals
// linear-scan consumes directly. The teacher's backend/lir computes a
// LiveNode dependency graph per instruction for its graph-coloring
// allocator (src/ir/lir/live.go); this package keeps that per-instruction
// "what's live here" shape but reduces it to flat intervals since linear
// scan needs start/end points, not a full interference graph.
type LivenessData struct {
	// LiveIn[i] / LiveOut[i] hold the registers live immediately before/after
	// instruction i, indexed into Instructions.
	LiveIn  []map[int]bool
	LiveOut []map[int]bool

	Intervals []Interval // sorted by Start
}

// computeLiveness runs backward dataflow over the CFG to a fixpoint, then
// reduces the per-instruction live sets to per-register intervals.
func computeLiveness(instrs []Instruction, cfg *ControlFlowGraph) *LivenessData {
	n := len(instrs)
	ld := &LivenessData{
		LiveIn:  make([]map[int]bool, n),
		LiveOut: make([]map[int]bool, n),
	}
	for i := range instrs {
		ld.LiveIn[i] = map[int]bool{}
		ld.LiveOut[i] = map[int]bool{}
	}
	if n == 0 {
		return ld
	}

	changed := true
	for changed {
		changed = false
		for i := n - 1; i >= 0; i-- {
			ins := instrs[i]

			out := map[int]bool{}
			if b := cfg.BlockOf(i); b != nil && i == b.End-1 {
				for _, succ := range b.Succ {
					sb := cfg.Blocks[succ]
					for r := range ld.LiveIn[sb.Start] {
						out[r] = true
					}
				}
			} else if i+1 < n {
				for r := range ld.LiveIn[i+1] {
					out[r] = true
				}
			}

			in := map[int]bool{}
			for r := range out {
				in[r] = true
			}
			if res, ok := ins.Result(); ok && res.IsRegister() {
				delete(in, res.Reg)
			}
			for _, u := range ins.Uses() {
				if u.IsRegister() {
					in[u.Reg] = true
				}
			}

			if !mapEq(in, ld.LiveIn[i]) || !mapEq(out, ld.LiveOut[i]) {
				changed = true
				ld.LiveIn[i] = in
				ld.LiveOut[i] = out
			}
		}
	}

	ld.Intervals = reduceIntervals(n, ld.LiveIn, ld.LiveOut)
	return ld
}

func mapEq(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// reduceIntervals collapses per-instruction live-in/live-out sets into one
// [start, end] interval per register: start is the earliest instruction
// where the register is live-in or live-out, end the latest.
func reduceIntervals(n int, liveIn, liveOut []map[int]bool) []Interval {
	bounds := map[int]*Interval{}
	touch := func(reg, idx int) {
		iv, ok := bounds[reg]
		if !ok {
			iv = &Interval{Reg: reg, Start: idx, End: idx}
			bounds[reg] = iv
			return
		}
		if idx < iv.Start {
			iv.Start = idx
		}
		if idx > iv.End {
			iv.End = idx
		}
	}
	for i := 0; i < n; i++ {
		for r := range liveIn[i] {
			touch(r, i)
		}
		for r := range liveOut[i] {
			touch(r, i)
		}
	}
	out := make([]Interval, 0, len(bounds))
	for _, iv := range bounds {
		out = append(out, *iv)
	}
	sortIntervals(out)
	return out
}

func sortIntervals(a []Interval) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1].Start > a[j].Start; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}

// IntervalFor returns the Interval for reg, if the register appears in the
// function body.
func (ld *LivenessData) IntervalFor(reg int) (Interval, bool) {
	for _, iv := range ld.Intervals {
		if iv.Reg == reg {
			return iv, true
		}
	}
	return Interval{}, false
}
