package world

import (
	"fmt"
	"sort"

	"wildern.gg/internal/sim/deferred"
)

// ScheduledTask runs a serialized process record at a game timestamp. With an
// interval it reschedules itself after every run; without one it is deleted
// after running.
type ScheduledTask struct {
	ID        int64           `json:"id"`
	Process   deferred.Record `json:"process"`
	ExecuteAt int64           `json:"execute_at"`
	Interval  int64           `json:"interval,omitempty"`
}

func (t *ScheduledTask) Repeatable() bool { return t.Interval > 0 }

// StopRepeating makes the task one-shot; the runner deletes it after the
// current run.
func (t *ScheduledTask) StopRepeating() { t.Interval = 0 }

func (w *World) ScheduleTask(process deferred.Action, executeAt, interval int64) (*ScheduledTask, error) {
	rec, err := w.reg.Serialize(process)
	if err != nil {
		return nil, err
	}
	t := &ScheduledTask{ID: w.nextID(), Process: rec, ExecuteAt: executeAt, Interval: interval}
	w.state.tasks[t.ID] = t
	return t, nil
}

func (w *World) TaskByID(id int64) *ScheduledTask { return w.state.tasks[id] }

func (w *World) dueTasks(now int64) []*ScheduledTask {
	var out []*ScheduledTask
	for _, t := range w.state.tasks {
		if t.ExecuteAt <= now {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExecuteAt != out[j].ExecuteAt {
			return out[i].ExecuteAt < out[j].ExecuteAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RunDueTasks advances the game clock and executes every due task inside its
// own savepoint. A RetryError leaves the task pending untouched; any other
// failure aborts the pass — processes have no user to notify, so a failing
// one is a bug, not game state.
func (w *World) RunDueTasks(now int64) error {
	w.state.gameDate = now

	for _, due := range w.dueTasks(now) {
		taskID := due.ID
		err := w.withSavepoint(func() error {
			task := w.state.tasks[taskID]
			action, err := w.reg.Materialize(task.Process, map[string]any{"task_id": taskID})
			if err != nil {
				return err
			}
			proc, ok := action.(Action)
			if !ok {
				return fmt.Errorf("task %d: record %q is not performable", taskID, task.Process.Type)
			}
			_, err = proc.Perform(w)
			return err
		})
		if err != nil {
			if isRetry(err) {
				continue
			}
			return fmt.Errorf("scheduled task %d: %w", taskID, err)
		}

		// Re-resolve after the savepoint: the task may have stopped repeating
		// or deleted itself during the run.
		task, alive := w.state.tasks[taskID]
		if !alive {
			continue
		}
		if task.Repeatable() {
			task.ExecuteAt += task.Interval
		} else {
			delete(w.state.tasks, taskID)
		}
	}
	return nil
}
