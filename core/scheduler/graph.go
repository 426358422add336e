// Package scheduler builds a dependency graph over a block's transactions
// from their predicted RW-sets, groups them into parallel-safe layers by
// a Kahn-style topological sort, and executes each layer through a
// worker pool, retrying transactions whose actual RW-set mispredicted a
// conflict (spec §4.3, §5).
package scheduler

import "github.com/permabft/chain/core/state"

// Task is one transaction's scheduling unit. Index is the transaction's
// position in the block and is the order writes must be merged in at a
// batch boundary (spec §5 "writes are merged... in TxId order").
type Task struct {
	Index     int
	Predicted *state.RWSet
}

// buildGraph returns, for every task index, the set of earlier task
// indices it conflicts with per its predicted RW-set (spec §4.3 RAW/WAW/
// WAR). Only earlier-to-later edges are recorded: conflicts are
// evaluated in increasing Index order, matching the block's canonical
// transaction order.
func buildGraph(tasks []Task) [][]int {
	deps := make([][]int, len(tasks))
	for i := 1; i < len(tasks); i++ {
		for j := 0; j < i; j++ {
			if tasks[j].Predicted.ConflictsWith(tasks[i].Predicted) {
				deps[i] = append(deps[i], j)
			}
		}
	}
	return deps
}

// layerTasks assigns each task to the earliest layer consistent with its
// dependencies (a Kahn-style longest-path layering): a task's layer is
// one past the maximum layer of anything it depends on. Tasks within a
// layer have no predicted conflict with each other and may run in
// parallel; layers execute strictly in order.
func layerTasks(tasks []Task) [][]Task {
	deps := buildGraph(tasks)
	layerOf := make([]int, len(tasks))
	maxLayer := 0
	for i := range tasks {
		l := 0
		for _, d := range deps[i] {
			if layerOf[d]+1 > l {
				l = layerOf[d] + 1
			}
		}
		layerOf[i] = l
		if l > maxLayer {
			maxLayer = l
		}
	}
	layers := make([][]Task, maxLayer+1)
	for i, t := range tasks {
		layers[layerOf[i]] = append(layers[layerOf[i]], t)
	}
	out := layers[:0]
	for _, l := range layers {
		if len(l) > 0 {
			out = append(out, l)
		}
	}
	return out
}
