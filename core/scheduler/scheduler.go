package scheduler

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/permabft/chain/core/state"
)

// ExecuteFunc runs one transaction against a fresh view of state and
// reports both the resulting StateDiff and the RW-set it actually
// touched, which may differ from the Task's predicted set.
type ExecuteFunc func(t Task) (*state.StateDiff, *state.RWSet, error)

// Scheduler turns a block's transactions into parallel batches and
// drives their execution, retrying any transaction whose actual RW-set
// mispredicted a conflict with an earlier transaction (spec §4.3
// "Misprediction handling").
type Scheduler struct {
	Workers    int
	MaxRetries int
}

// New returns a Scheduler sized to the available cores (workers <= 0)
// with the given retry bound (maxRetries <= 0 defaults to 3).
func New(workers, maxRetries int) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Scheduler{Workers: workers, MaxRetries: maxRetries}
}

// Schedule executes tasks to completion, returning one StateDiff per
// task indexed by Task.Index. Tasks are first grouped into layers by
// their predicted RW-sets (§4.3 dependency graph + Kahn-style
// layering); each layer runs concurrently against the state left by
// every prior layer. Once a layer finishes, actual RW-sets are checked
// pairwise against earlier siblings in that same layer — the only
// tasks that actually ran concurrently with each other. A mispredicted
// conflict there requeues the task, with its now-known actual RW-set
// as its new prediction, into the very next layer.
func (s *Scheduler) Schedule(tasks []Task, execute ExecuteFunc) ([]*state.StateDiff, int, error) {
	results := make([]*state.StateDiff, len(tasks))
	retries := make([]int, len(tasks))

	pending := layerTasks(tasks)
	batches := 0
	for len(pending) > 0 {
		layer := pending[0]
		pending = pending[1:]
		batches++

		diffs, actuals, err := s.runLayer(layer, execute)
		if err != nil {
			return nil, batches, err
		}

		var mispredicted []Task
		for i, task := range layer {
			// Only siblings that actually ran concurrently in this same
			// layer can be mispredicted conflicts. Lower-index tasks from
			// prior layers already completed and were applied to the
			// shared state before this layer started; their ordering is
			// correct by construction, and re-flagging them here would
			// retry a genuine dependency forever instead of resolving it.
			conflict := false
			for k := 0; k < i; k++ {
				if actuals[k] != nil && actuals[k].ConflictsWith(actuals[i]) {
					conflict = true
					break
				}
			}
			if conflict {
				if retries[task.Index] >= s.MaxRetries {
					return nil, batches, fmt.Errorf("scheduler: task %d exceeded max retries (%d) on misprediction", task.Index, s.MaxRetries)
				}
				retries[task.Index]++
				mispredicted = append(mispredicted, Task{Index: task.Index, Predicted: actuals[i]})
				continue
			}
			results[task.Index] = diffs[i]
		}
		if len(mispredicted) > 0 {
			pending = append([][]Task{mispredicted}, pending...)
		}
	}
	return results, batches, nil
}

func (s *Scheduler) runLayer(layer []Task, execute ExecuteFunc) ([]*state.StateDiff, []*state.RWSet, error) {
	diffs := make([]*state.StateDiff, len(layer))
	actuals := make([]*state.RWSet, len(layer))
	ownership := NewOwnershipTable()

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(s.Workers)
	for i, task := range layer {
		i, task := i, task
		g.Go(func() error {
			if task.Predicted != nil {
				for _, key := range task.Predicted.Writes.ToSlice() {
					ownership.Acquire(key, task.Index)
				}
			}
			diff, actual, err := execute(task)
			if err != nil {
				return fmt.Errorf("scheduler: task %d: %w", task.Index, err)
			}
			diffs[i] = diff
			actuals[i] = actual
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return diffs, actuals, nil
}
