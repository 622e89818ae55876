package world

import (
	"math"

	"wildern.gg/internal/sim/deferred"
)

// DecayProcessAction is the recurring daily decay pass, persisted as a
// scheduled task.
type DecayProcessAction struct{}

func (a *DecayProcessAction) Record() deferred.Record {
	return deferred.Record{Type: actProcessDecay, Args: map[string]any{}}
}

func (a *DecayProcessAction) Perform(w *World) (Result, error) {
	w.PerformDecay(w.state.gameDate)
	return done, nil
}

// PerformDecay ages the world by one decay interval: degradable items take
// damage, fully degraded ones crumble, abandoned activities lose progress,
// and materials committed to a rotten activity container leak back out of
// its requirements.
func (w *World) PerformDecay(now int64) {
	w.state.gameDate = now
	interval := float64(w.tune.DecayIntervalSec)

	for _, id := range sortedIDs(w.state.items) {
		it := w.state.items[id]
		// Committed materials never shed here: that would desync the
		// requirement bookkeeping. They only leak via a rotten container,
		// which un-commits what it loses.
		if it.Role == RoleUsedFor {
			continue
		}
		t, ok := w.typeByName(it.TypeName)
		if !ok || t.Lifetime <= 0 {
			continue
		}
		it.Damage = math.Min(1, it.Damage+interval/float64(t.Lifetime))
		if it.Damage < 1 {
			continue
		}
		if !t.Stackable {
			w.RemoveItem(it.ID)
			continue
		}
		shed := w.probRound(float64(it.Amount) * w.tune.DailyStackableDecay)
		if shed >= it.Amount {
			w.RemoveItem(it.ID)
		} else {
			it.Amount -= shed
		}
	}

	for _, id := range sortedIDs(w.state.activities) {
		a := w.state.activities[id]
		regain := math.Min(w.tune.BaseWorkerProgress, a.TicksNeeded)
		a.TicksLeft = math.Min(a.TicksNeeded, a.TicksLeft+regain)
		w.decayCommittedMaterials(a)
	}
}

// decayCommittedMaterials leaks material out of an activity whose container
// has fully decayed: a daily fraction of each committed pile is destroyed and
// given back to the requirement lines it once satisfied, restoring the
// left-plus-consumed-equals-needed invariant.
func (w *World) decayCommittedMaterials(a *Activity) {
	container := w.state.items[a.Parent]
	if container == nil || container.Damage < 1 {
		return
	}
	for _, it := range w.itemsUsedFor(a.ID) {
		lost := w.probRound(float64(it.Amount) * w.tune.DailyStackableDecay)
		if lost == 0 {
			continue
		}
		if lost >= it.Amount {
			lost = it.Amount
			w.RemoveItem(it.ID)
		} else {
			it.Amount -= lost
		}
		w.uncommitInput(a.Requirements, it.TypeName, float64(lost))
	}
}

// probRound rounds probabilistically: 2.3 becomes 3 thirty percent of the
// time, 2 otherwise.
func (w *World) probRound(v float64) int {
	n := int(v)
	if w.roll() < v-float64(n) {
		n++
	}
	return n
}
