// Package regalloc implements the linear-scan register allocator of
// spec.md §4.7: lower the compiler's unbounded virtual registers onto a
// fixed N general-purpose + M floating-point physical bank, spilling to a
// per-function stack frame laid out by StackManager when pressure exceeds
// the budget.
//
// Grounded on the teacher's backend/lir.AllocateRegisters
// (src/backend/lir/regalloc.go): this package keeps its "compute liveness,
// then assign physical registers, reporting spill failure" two-phase
// shape, but the algorithm itself is linear-scan over ir.LivenessData's
// flat Interval list rather than the teacher's graph-colouring over a
// register interference graph — this IR already reduces liveness to
// [start,end] ranges (see internal/ir's Interval doc comment), which is
// exactly linear-scan's native input and would require re-deriving an
// interference graph to use the teacher's algorithm as-is.
package regalloc

import (
	"sort"

	"github.com/tsnlang/tsn/internal/ir"
	"github.com/tsnlang/tsn/internal/types"
)

// Options is the physical register budget, per spec.md §4.7: N
// general-purpose + M floating-point registers. When NumFP is 0, every
// value (floating or not) is allocated out of the general-purpose bank;
// the VM still tells gp from fp storage apart by each Value's own Type,
// never by which numbered register holds it.
type Options struct {
	NumGP int
	NumFP int
}

type bank int

const (
	bankGP bank = iota
	bankFP
)

// scratchRegs is how many physical registers per bank are held back from
// ordinary allocation, reserved for reloading spilled operands right
// before the instruction that needs them. Two is enough for any
// instruction in this IR (at most two source operands plus one
// destination, and the destination's reload only happens after its
// sources have already been consumed).
const scratchRegs = 2

type liveEntry struct {
	reg  int
	end  int
	bank bank
	phys int
}

// Allocate lowers every virtual register fd uses onto opts' physical
// budget, rewriting fd's instructions in place. typeReg is used to declare
// the single anonymous "spill frame" blob type backing any registers that
// had to be spilled; it may be nil if the caller already knows fd will
// never spill (Allocate does not consult it unless spilling occurs).
func Allocate(fd *ir.FunctionDef, opts Options, typeReg *types.TypeRegistry) {
	liveness := fd.Code.Liveness()
	intervals := append([]ir.Interval(nil), liveness.Intervals...)
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })

	banks := classifyBanks(fd, intervals)
	usableGP := maxInt(opts.NumGP-scratchRegs, 0)
	usableFP := maxInt(opts.NumFP-scratchRegs, 0)

	freeGP := freePool(usableGP)
	freeFP := freePool(usableFP)

	var active []liveEntry
	physOf := map[int]int{}
	spilled := map[int]bool{}

	expire := func(start int) {
		kept := active[:0]
		for _, a := range active {
			if a.end < start {
				if a.bank == bankGP {
					freeGP = append(freeGP, a.phys)
				} else {
					freeFP = append(freeFP, a.phys)
				}
				continue
			}
			kept = append(kept, a)
		}
		active = kept
	}

	for _, iv := range intervals {
		expire(iv.Start)

		b := banks[iv.Reg]
		if opts.NumFP == 0 {
			b = bankGP
		}
		pool := &freeGP
		if b == bankFP {
			pool = &freeFP
		}

		if n := len(*pool); n > 0 {
			pr := (*pool)[n-1]
			*pool = (*pool)[:n-1]
			physOf[iv.Reg] = pr
			active = append(active, liveEntry{reg: iv.Reg, end: iv.End, bank: b, phys: pr})
			sort.Slice(active, func(i, j int) bool { return active[i].end < active[j].end })
			continue
		}

		worst := -1
		for i, a := range active {
			if a.bank != b {
				continue
			}
			if worst == -1 || a.end > active[worst].end {
				worst = i
			}
		}

		if worst != -1 && active[worst].end > iv.End {
			victim := active[worst]
			spilled[victim.reg] = true
			delete(physOf, victim.reg)
			physOf[iv.Reg] = victim.phys
			active[worst] = liveEntry{reg: iv.Reg, end: iv.End, bank: b, phys: victim.phys}
			sort.Slice(active, func(i, j int) bool { return active[i].end < active[j].end })
		} else {
			spilled[iv.Reg] = true
		}
	}

	if len(spilled) == 0 {
		rewrite(fd, physOf, nil, nil, Options{})
		return
	}
	rewrite(fd, physOf, spilled, typeReg, Options{NumGP: opts.NumGP, NumFP: opts.NumFP})
}

// classifyBanks scans every operand of every instruction once to learn
// each register's bank (floating-point values always carry their type on
// every occurrence, so the first sighting is authoritative).
func classifyBanks(fd *ir.FunctionDef, intervals []ir.Interval) map[int]bank {
	banks := make(map[int]bank, len(intervals))
	note := func(v ir.Value) {
		if v.Kind != ir.VRegister {
			return
		}
		if _, ok := banks[v.Reg]; ok {
			return
		}
		if v.IsFloating() {
			banks[v.Reg] = bankFP
		} else {
			banks[v.Reg] = bankGP
		}
	}
	for _, p := range fd.Params {
		note(p)
	}
	for _, ins := range fd.Code.Instructions {
		for i := 0; i < ins.NumOps; i++ {
			note(ins.Operands[i])
		}
	}
	return banks
}

func freePool(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = n - 1 - i // pop from the end (LIFO); order within a bank is arbitrary
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
