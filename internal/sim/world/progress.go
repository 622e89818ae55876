package world

import (
	"fmt"
	"math"
	"sort"
)

// workerFailure is a per-worker exclusion waiting to be reported. Failures
// are buffered and reported only after the structural checks pass, so a
// rolled-back activity tick never leaks half its notifications.
type workerFailure struct {
	worker int64
	err    *GameError
}

// runActivityProgress evaluates one activity against this tick's worker
// group. Shared requirement failures return a GameError (the scheduler rolls
// back and notifies every worker); per-worker failures exclude just that
// worker and notify them individually.
func (w *World) runActivityProgress(activity *Activity, workerIDs []int64) error {
	req := activity.Requirements
	root := w.rootOf(activity.ID)

	progressRatio := 0.0
	var machineQualities, toolQualities, inputQualities []float64

	// Shared checks, fixed order.
	nearby := w.itemsNear(root)
	for _, group := range sortedNames(req.MandatoryMachines) {
		machine, score := w.bestOfGroup(nearby, group)
		if machine == nil {
			return errNoMachine(group)
		}
		machineQualities = append(machineQualities, score)
	}
	for _, group := range sortedKeys(req.OptionalMachines) {
		if machine, score := w.bestOfGroup(nearby, group); machine != nil {
			progressRatio += req.OptionalMachines[group] * score
		}
	}
	for _, target := range req.Targets {
		if !w.sameLocation(activity.ID, target) {
			return errActivityTargetTooFar(target)
		}
	}
	for _, resource := range sortedNames(req.RequiredResources) {
		if !w.resourceAvailable(root, resource) {
			return errNoResource(resource)
		}
	}
	if len(req.LocationTypes) > 0 {
		loc := w.enclosingLocation(activity.ID)
		if loc == nil || !contains(req.LocationTypes, loc.TypeName) {
			return errInvalidLocationType(req.LocationTypes)
		}
	}
	if len(req.TerrainTypes) > 0 {
		rootLoc := w.state.locations[root]
		if rootLoc == nil || !contains(req.TerrainTypes, rootLoc.Terrain) {
			return errInvalidTerrainType(req.TerrainTypes)
		}
	}
	excluded := make([]string, 0, len(req.ExcludedByEntities))
	for typeName := range req.ExcludedByEntities {
		excluded = append(excluded, typeName)
	}
	sort.Strings(excluded)
	for _, typeName := range excluded {
		if w.countEntitiesNear(root, typeName) >= req.ExcludedByEntities[typeName] {
			return errTooManyExistingEntities(typeName)
		}
	}
	for _, group := range req.inputGroupNames() {
		line := req.Input[group]
		if line.Left > 0 {
			return errNoInputMaterial(group)
		}
		if line.Quality > 0 {
			inputQualities = append(inputQualities, line.Quality)
		}
	}

	// Per-worker checks. A failing worker drops out; the rest continue.
	active := 0
	var failures []workerFailure
	for _, id := range workerIDs {
		worker := w.state.characters[id]
		if worker == nil {
			continue
		}
		bonus, samples, err := w.checkWorker(worker, activity, req)
		if err != nil {
			ge, ok := asGameError(err)
			if !ok {
				return err
			}
			failures = append(failures, workerFailure{worker: id, err: ge})
			continue
		}
		active++
		progressRatio += w.tune.BaseWorkerProgress + bonus
		toolQualities = append(toolQualities, samples...)
	}

	// Participant bounds are structural: violating them wastes the whole
	// activity tick for everyone.
	if req.MinWorkers > 0 && active < req.MinWorkers {
		return errTooFewParticipants(req.MinWorkers)
	}
	if req.MaxWorkers > 0 && active > req.MaxWorkers {
		return errTooManyParticipants(req.MaxWorkers)
	}

	for _, f := range failures {
		w.ReportFailure(f.err.Tag, f.err.Params, f.worker)
	}
	if active == 0 {
		return nil
	}

	// Quality accrual: each sample family contributes its mean once per tick.
	for _, samples := range [][]float64{machineQualities, toolQualities, inputQualities} {
		if len(samples) > 0 {
			activity.QualitySum += mean(samples)
			activity.QualityTicks++
		}
	}

	equipmentQuality := 1.0
	if combined := append(append([]float64(nil), machineQualities...), toolQualities...); len(combined) > 0 {
		equipmentQuality = mean(combined)
	}
	activity.TicksLeft -= progressRatio * math.Sqrt(math.Max(1, equipmentQuality))

	if activity.TicksLeft <= 0 {
		return w.finishActivity(activity)
	}
	return nil
}

// checkWorker validates one worker's personal prerequisites and returns their
// optional-tool progress bonus plus mandatory-tool quality samples.
func (w *World) checkWorker(worker *Character, activity *Activity, req *Requirements) (float64, []float64, error) {
	if !w.sameLocation(worker.ID, activity.ID) {
		return 0, nil, errTooFarFromActivity(activity.ID)
	}
	held := w.itemsHeldBy(worker.ID)
	var samples []float64
	for _, group := range sortedNames(req.MandatoryTools) {
		tool, score := w.bestOfGroup(held, group)
		if tool == nil {
			return 0, nil, errNoTool(group)
		}
		samples = append(samples, score)
	}
	bonus := 0.0
	for _, group := range sortedKeys(req.OptionalTools) {
		if tool, score := w.bestOfGroup(held, group); tool != nil {
			bonus += req.OptionalTools[group] * score
		}
	}
	for _, skill := range sortedKeys(req.Skills) {
		if worker.skill(skill) < req.Skills[skill] {
			return 0, nil, errTooLowSkill(skill, req.Skills[skill])
		}
	}
	return bonus, samples, nil
}

// finishActivity runs the result actions in declared order, each receiving
// the entities produced by the earlier ones, then removes the activity and
// its workers' intents.
func (w *World) finishActivity(activity *Activity) error {
	var produced []int64
	for _, rec := range activity.ResultActions {
		action, err := w.reg.Materialize(rec, map[string]any{
			"activity":           activity,
			"initiator":          activity.Initiator,
			"resulting_entities": append([]int64(nil), produced...),
		})
		if err != nil {
			return fmt.Errorf("activity %d result %q: %w", activity.ID, rec.Type, err)
		}
		res, err := action.(Action).Perform(w)
		if err != nil {
			return fmt.Errorf("activity %d result %q: %w", activity.ID, rec.Type, err)
		}
		produced = append(produced, res.Entities...)
	}
	for _, in := range w.intentsTargeting(IntentWork, activity.ID) {
		delete(w.state.intents, in.ID)
	}
	w.DeleteActivity(activity.ID)
	return nil
}

// bestOfGroup picks the candidate with the highest efficiency x quality score
// for the required group. Candidates must be pre-sorted by id so ties are
// deterministic.
func (w *World) bestOfGroup(candidates []*Item, group string) (*Item, float64) {
	var best *Item
	bestScore := 0.0
	for _, it := range candidates {
		eff := w.quantityEfficiency(group, it.TypeName)
		if eff <= 0 {
			continue
		}
		score := eff * it.Quality
		if best == nil || score > bestScore {
			best, bestScore = it, score
		}
	}
	return best, bestScore
}

func (w *World) resourceAvailable(root int64, resource string) bool {
	for _, d := range w.depositsNear(root) {
		if d.Resource == resource && d.Amount > 0 {
			return true
		}
	}
	return false
}

// countEntitiesNear counts entities of a concrete type rooted at the given
// location, across every entity family.
func (w *World) countEntitiesNear(root int64, typeName string) int {
	n := 0
	for _, it := range w.state.items {
		if it.TypeName == typeName && w.rootOf(it.ID) == root {
			n++
		}
	}
	for _, l := range w.state.locations {
		if l.TypeName == typeName && w.rootOf(l.ID) == root {
			n++
		}
	}
	for _, c := range w.state.characters {
		if c.TypeName == typeName && w.rootOf(c.ID) == root {
			n++
		}
	}
	return n
}

func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func mean(samples []float64) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
