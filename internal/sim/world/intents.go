package world

import (
	"sort"

	"wildern.gg/internal/sim/deferred"
)

// IntentKind partitions intents by the process that drives them.
type IntentKind string

const (
	IntentWork      IntentKind = "work"
	IntentCombat    IntentKind = "combat"
	IntentCombatAux IntentKind = "combat_aux"
)

// Intent is the persisted binding of an executor to a pending action. Higher
// priority runs earlier; ties break on ascending id so ordering is stable
// across ticks.
type Intent struct {
	ID       int64           `json:"id"`
	Executor int64           `json:"executor"`
	Kind     IntentKind      `json:"kind"`
	Priority int             `json:"priority"`
	Target   int64           `json:"target,omitempty"`
	Action   deferred.Record `json:"action"`
}

func (in *Intent) clone() *Intent {
	cp := *in
	cp.Action = in.Action.Clone()
	return &cp
}

// CreateIntent persists a pending action. A character holds at most one WORK
// intent: committing to a new job abandons the previous one.
func (w *World) CreateIntent(executor int64, kind IntentKind, priority int, target int64, action deferred.Action) (*Intent, error) {
	rec, err := w.reg.Serialize(action)
	if err != nil {
		return nil, err
	}
	if kind == IntentWork {
		for _, in := range w.state.intents {
			if in.Executor == executor && in.Kind == IntentWork {
				delete(w.state.intents, in.ID)
			}
		}
	}
	in := &Intent{
		ID:       w.nextID(),
		Executor: executor,
		Kind:     kind,
		Priority: priority,
		Target:   target,
		Action:   rec,
	}
	w.state.intents[in.ID] = in
	return in, nil
}

func (w *World) DeleteIntent(id int64) {
	delete(w.state.intents, id)
}

func (w *World) IntentByID(id int64) *Intent { return w.state.intents[id] }

// intentsOfKind returns intents of one kind ordered by priority descending,
// then id ascending.
func (w *World) intentsOfKind(kind IntentKind) []*Intent {
	var out []*Intent
	for _, in := range w.state.intents {
		if in.Kind == kind {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// intentsTargeting returns intents of one kind aimed at the target, by id.
func (w *World) intentsTargeting(kind IntentKind, target int64) []*Intent {
	var out []*Intent
	for _, in := range w.state.intents {
		if in.Kind == kind && in.Target == target {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// intentOf returns the executor's first intent of a kind (lowest id), or nil.
func (w *World) intentOf(executor int64, kind IntentKind) *Intent {
	var found *Intent
	for _, in := range w.state.intents {
		if in.Executor == executor && in.Kind == kind {
			if found == nil || in.ID < found.ID {
				found = in
			}
		}
	}
	return found
}
