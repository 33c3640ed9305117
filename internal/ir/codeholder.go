package ir

// CodeHolder owns one function's linear instruction buffer together with
// the derived structures every later pass needs: a label index, the
// control-flow graph, and liveness data. Per spec.md §4.5, the CFG and
// liveness are derived data, not source of truth — any pass that mutates
// Instructions must call Invalidate before handing the CodeHolder to the
// next stage, and the next reader calls CFG()/Liveness() to get a rebuilt
// (or cached) view. This mirrors the teacher's pattern of Module.Functions()
// being rebuilt from a dirty instruction list rather than kept in lockstep
// by every mutator (src/ir/lir/live.go computes liveness fresh per call).
type CodeHolder struct {
	Instructions []Instruction

	nextLabel int
	labelPos  map[int]int // label id -> index into Instructions, rebuilt lazily

	cfg     *ControlFlowGraph
	liveness *LivenessData
	dirty   bool
}

func newCodeHolder() *CodeHolder {
	return &CodeHolder{labelPos: map[int]int{}, dirty: true}
}

func (ch *CodeHolder) append(ins Instruction) {
	ch.Instructions = append(ch.Instructions, ins)
	ch.dirty = true
}

func (ch *CodeHolder) newLabel() int {
	id := ch.nextLabel
	ch.nextLabel++
	return id
}

// Invalidate marks all derived structures stale. Call after any in-place
// edit to Instructions (optimizer passes splice/delete instructions
// directly).
func (ch *CodeHolder) Invalidate() { ch.dirty = true }

// rebuildAll recomputes the label index, CFG, and liveness data from
// Instructions. It is idempotent: calling it when ch.dirty is false is a
// no-op, so callers can invoke it defensively before every read.
func (ch *CodeHolder) rebuildAll() {
	if !ch.dirty {
		return
	}
	ch.labelPos = make(map[int]int, len(ch.labelPos))
	for i, ins := range ch.Instructions {
		if ins.Op == OpLabel {
			ch.labelPos[ins.Labels[0]] = i
		}
	}
	ch.cfg = buildCFG(ch.Instructions, ch.labelPos)
	ch.liveness = computeLiveness(ch.Instructions, ch.cfg)
	ch.dirty = false
}

// LabelPos returns the instruction index of label, if it exists.
func (ch *CodeHolder) LabelPos(label int) (int, bool) {
	ch.rebuildAll()
	i, ok := ch.labelPos[label]
	return i, ok
}

// CFG returns the function's control-flow graph, rebuilding it first if
// Instructions changed since the last rebuild.
func (ch *CodeHolder) CFG() *ControlFlowGraph {
	ch.rebuildAll()
	return ch.cfg
}

// Liveness returns the function's liveness data, rebuilding it first if
// Instructions changed since the last rebuild.
func (ch *CodeHolder) Liveness() *LivenessData {
	ch.rebuildAll()
	return ch.liveness
}

// Replace swaps ch.Instructions wholesale (an optimizer pass produced a new
// instruction stream) and invalidates derived data.
func (ch *CodeHolder) Replace(instrs []Instruction) {
	ch.Instructions = instrs
	ch.Invalidate()
}
