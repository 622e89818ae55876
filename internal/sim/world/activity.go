package world

import "wildern.gg/internal/sim/deferred"

// Activity is a multi-tick, multi-party task-in-progress. It lives inside a
// container entity (a half-built cart, a scaffold, a smithy) and committed
// materials hang under it with RoleUsedFor.
type Activity struct {
	Entity
	Requirements  *Requirements     `json:"requirements"`
	TicksNeeded   float64           `json:"ticks_needed"`
	TicksLeft     float64           `json:"ticks_left"`
	QualitySum    float64           `json:"quality_sum"`
	QualityTicks  int               `json:"quality_ticks"`
	ResultActions []deferred.Record `json:"result_actions,omitempty"`
	Initiator     int64             `json:"initiator"`
}

func (a *Activity) clone() *Activity {
	cp := *a
	cp.Requirements = a.Requirements.Clone()
	if a.ResultActions != nil {
		cp.ResultActions = make([]deferred.Record, len(a.ResultActions))
		for i, r := range a.ResultActions {
			cp.ResultActions[i] = r.Clone()
		}
	}
	return &cp
}

// Quality reconstructs the tick-weighted moving quality average.
func (a *Activity) Quality() float64 {
	if a.QualityTicks == 0 {
		return 0
	}
	return a.QualitySum / float64(a.QualityTicks)
}

func (w *World) CreateActivity(in int64, req *Requirements, ticksNeeded float64, results []deferred.Record, initiator int64) *Activity {
	if req == nil {
		req = &Requirements{}
	}
	a := &Activity{
		Entity:        Entity{ID: w.nextID(), TypeName: TypeActivity, Parent: in, Role: RoleBeingIn},
		Requirements:  req,
		TicksNeeded:   ticksNeeded,
		TicksLeft:     ticksNeeded,
		ResultActions: results,
		Initiator:     initiator,
	}
	w.state.activities[a.ID] = a
	return a
}

// MutateRequirements applies an in-place edit to the activity's requirement
// map, keeping callers away from partially-updated intermediate states.
func (w *World) MutateRequirements(id int64, fn func(req *Requirements)) bool {
	a, ok := w.state.activities[id]
	if !ok {
		return false
	}
	fn(a.Requirements)
	return true
}

// DeleteActivity removes the activity and any material crumbs still
// committed to it.
func (w *World) DeleteActivity(id int64) {
	for _, it := range w.itemsUsedFor(id) {
		w.RemoveItem(it.ID)
	}
	delete(w.state.activities, id)
}
