package world

import (
	"fmt"

	"wildern.gg/internal/sim/deferred"
)

// TickSummary is what one scheduler pass did, for logging and observers.
type TickSummary struct {
	GameDate       int64 `json:"game_date"`
	IntentsRun     int   `json:"intents_run"`
	IntentsDone    int   `json:"intents_done"`
	ActivityGroups int   `json:"activity_groups"`
	Failures       int   `json:"failures"`
}

func (w *World) registerProcesses() {
	w.reg.Register(actProcessWork, func(_ deferred.Args, _ deferred.Args) (deferred.Action, error) {
		return &WorkProcessAction{}, nil
	})
	w.reg.Register(actProcessDecay, func(_ deferred.Args, _ deferred.Args) (deferred.Action, error) {
		return &DecayProcessAction{}, nil
	})
}

// WorkProcessAction is the recurring tick scheduler, persisted as a
// scheduled task so a resumed world keeps ticking on its own.
type WorkProcessAction struct{}

func (a *WorkProcessAction) Record() deferred.Record {
	return deferred.Record{Type: actProcessWork, Args: map[string]any{}}
}

func (a *WorkProcessAction) Perform(w *World) (Result, error) {
	_, err := w.PerformTick(w.state.gameDate)
	return done, err
}

// PerformTick runs every WORK intent once. Direct actions run each in their
// own savepoint; work-on-activity intents are grouped per activity so all of
// an activity's workers are judged against one consistent view of its shared
// requirements, then each group runs in its own savepoint.
//
// Failure classification per savepoint: RetryError rolls back and leaves the
// intent pending; a GameError rolls back and merges a notification to the
// executor (or to every worker of the group); anything else aborts the tick.
func (w *World) PerformTick(now int64) (TickSummary, error) {
	w.state.gameDate = now
	summary := TickSummary{GameDate: now}

	var groupOrder []int64
	groupWorkers := map[int64][]int64{}

	for _, in := range w.intentsOfKind(IntentWork) {
		if w.state.intents[in.ID] == nil {
			// Removed by an earlier intent this tick.
			continue
		}
		if w.state.characters[in.Executor] == nil {
			delete(w.state.intents, in.ID)
			continue
		}
		if in.Target != 0 && !w.entityExists(in.Target) {
			delete(w.state.intents, in.ID)
			continue
		}

		if in.Action.Type == actWorkOnActivity {
			if _, seen := groupWorkers[in.Target]; !seen {
				groupOrder = append(groupOrder, in.Target)
			}
			groupWorkers[in.Target] = append(groupWorkers[in.Target], in.Executor)
			continue
		}

		intentID, executor := in.ID, in.Executor
		actionDone := false
		err := w.withSavepoint(func() error {
			intent := w.state.intents[intentID]
			action, err := w.reg.Materialize(intent.Action, nil)
			if err != nil {
				return err
			}
			res, err := action.(Action).Perform(w)
			if err != nil {
				return err
			}
			actionDone = res.Done
			return nil
		})
		summary.IntentsRun++
		switch {
		case err == nil:
			if actionDone {
				delete(w.state.intents, intentID)
				summary.IntentsDone++
			}
		case isRetry(err):
			// Stays pending for the next tick.
		default:
			ge, ok := asGameError(err)
			if !ok {
				return summary, fmt.Errorf("tick %d intent %d: %w", now, intentID, err)
			}
			summary.Failures++
			w.ReportFailure(ge.Tag, ge.Params, executor)
		}
	}

	for _, activityID := range groupOrder {
		workers := groupWorkers[activityID]
		err := w.withSavepoint(func() error {
			activity := w.state.activities[activityID]
			if activity == nil {
				return nil
			}
			return w.runActivityProgress(activity, workers)
		})
		summary.ActivityGroups++
		if err != nil && !isRetry(err) {
			ge, ok := asGameError(err)
			if !ok {
				return summary, fmt.Errorf("tick %d activity %d: %w", now, activityID, err)
			}
			summary.Failures++
			for _, worker := range workers {
				w.ReportFailure(ge.Tag, ge.Params, worker)
			}
		}
	}

	if w.hooks.OnTick != nil {
		w.hooks.OnTick(summary)
	}
	return summary, nil
}
