package world

import (
	"fmt"
	"sort"

	"wildern.gg/internal/persistence/snapshot"
	"wildern.gg/internal/sim/deferred"
)

// BuildSnapshot captures the whole world in deterministic order: same state,
// same bytes.
func (w *World) BuildSnapshot() snapshot.SnapshotV1 {
	s := w.state
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			WorldID:  w.cfg.ID,
			GameDate: s.gameDate,
		},
		Seed:      w.cfg.Seed,
		Tuning:    w.tune,
		NextID:    s.nextID,
		RNGCursor: s.rngCursor,
		GameDate:  s.gameDate,
	}

	for _, name := range sortedTypeNames(w.types) {
		t := w.types[name]
		snap.Types = append(snap.Types, snapshot.EntityTypeV1{
			Name: t.Name, Stackable: t.Stackable, UnitWeight: t.UnitWeight,
			Portable: t.Portable, Lifetime: t.Lifetime,
		})
	}
	for _, name := range sortedGroupNames(w.groups) {
		g := w.groups[name]
		gv := snapshot.TypeGroupV1{Name: g.Name}
		for _, m := range g.Members {
			gv.Members = append(gv.Members, snapshot.GroupMemberV1{TypeName: m.TypeName, Efficiency: m.Efficiency})
		}
		snap.Groups = append(snap.Groups, gv)
	}

	for _, id := range sortedIDs(s.characters) {
		c := s.characters[id]
		snap.Characters = append(snap.Characters, snapshot.CharacterV1{
			EntityV1: entityV1(c.Entity), Skills: c.Skills, Damage: c.Damage,
			TravelTarget: c.TravelTarget, TravelStepsLeft: c.TravelStepsLeft,
		})
	}
	for _, id := range sortedIDs(s.items) {
		it := s.items[id]
		snap.Items = append(snap.Items, snapshot.ItemV1{
			EntityV1: entityV1(it.Entity), Amount: it.Amount, Quality: it.Quality, Damage: it.Damage,
		})
	}
	for _, id := range sortedIDs(s.locations) {
		l := s.locations[id]
		snap.Locations = append(snap.Locations, snapshot.LocationV1{EntityV1: entityV1(l.Entity), Terrain: l.Terrain})
	}
	for _, id := range sortedIDs(s.deposits) {
		d := s.deposits[id]
		snap.Deposits = append(snap.Deposits, snapshot.DepositV1{
			EntityV1: entityV1(d.Entity), Resource: d.Resource, Amount: d.Amount,
		})
	}
	for _, id := range sortedIDs(s.activities) {
		a := s.activities[id]
		av := snapshot.ActivityV1{
			EntityV1:     entityV1(a.Entity),
			Requirements: requirementsV1(a.Requirements),
			TicksNeeded:  a.TicksNeeded,
			TicksLeft:    a.TicksLeft,
			QualitySum:   a.QualitySum,
			QualityTicks: a.QualityTicks,
			Initiator:    a.Initiator,
		}
		for _, r := range a.ResultActions {
			av.ResultActions = append(av.ResultActions, recordV1(r))
		}
		snap.Activities = append(snap.Activities, av)
	}
	for _, id := range sortedIDs(s.combats) {
		c := s.combats[id]
		snap.Combats = append(snap.Combats, snapshot.CombatV1{
			EntityV1: entityV1(c.Entity), RecordedViolence: c.RecordedViolence, TaskID: c.TaskID,
		})
	}
	for _, id := range sortedIDs(s.intents) {
		in := s.intents[id]
		snap.Intents = append(snap.Intents, snapshot.IntentV1{
			ID: in.ID, Executor: in.Executor, Kind: string(in.Kind),
			Priority: in.Priority, Target: in.Target, Action: recordV1(in.Action),
		})
	}
	for _, id := range sortedIDs(s.tasks) {
		t := s.tasks[id]
		snap.Tasks = append(snap.Tasks, snapshot.TaskV1{
			ID: t.ID, Process: recordV1(t.Process), ExecuteAt: t.ExecuteAt, Interval: t.Interval,
		})
	}
	for _, id := range sortedIDs(s.notifications) {
		n := s.notifications[id]
		snap.Notifications = append(snap.Notifications, snapshot.NotificationV1{
			ID: n.ID, TitleTag: n.TitleTag, TitleParams: n.TitleParams,
			TextTag: n.TextTag, TextParams: n.TextParams,
			Count: n.Count, Recipient: n.Recipient, GameDate: n.GameDate,
		})
	}
	return snap
}

// NewFromSnapshot rebuilds a world from a capture. Every persisted action
// record must still be registered; an unknown type id is a refusal, not a
// silent drop.
func NewFromSnapshot(snap snapshot.SnapshotV1, hooks Hooks) (*World, error) {
	w := New(Config{ID: snap.Header.WorldID, Seed: snap.Seed}, snap.Tuning, hooks)

	for _, t := range snap.Types {
		w.RegisterType(EntityType{
			Name: t.Name, Stackable: t.Stackable, UnitWeight: t.UnitWeight,
			Portable: t.Portable, Lifetime: t.Lifetime,
		})
	}
	for _, g := range snap.Groups {
		members := make([]GroupMember, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, GroupMember{TypeName: m.TypeName, Efficiency: m.Efficiency})
		}
		w.RegisterGroup(TypeGroup{Name: g.Name, Members: members})
	}

	s := w.state
	for _, c := range snap.Characters {
		// Copy the maps: the snapshot may still be aliased by a live world.
		skills := cloneFloatMap(c.Skills)
		if skills == nil {
			skills = map[string]float64{}
		}
		s.characters[c.ID] = &Character{
			Entity: entityFromV1(c.EntityV1), Skills: skills, Damage: c.Damage,
			TravelTarget: c.TravelTarget, TravelStepsLeft: c.TravelStepsLeft,
		}
	}
	for _, it := range snap.Items {
		s.items[it.ID] = &Item{Entity: entityFromV1(it.EntityV1), Amount: it.Amount, Quality: it.Quality, Damage: it.Damage}
	}
	for _, l := range snap.Locations {
		s.locations[l.ID] = &Location{Entity: entityFromV1(l.EntityV1), Terrain: l.Terrain}
	}
	for _, d := range snap.Deposits {
		s.deposits[d.ID] = &ResourceDeposit{Entity: entityFromV1(d.EntityV1), Resource: d.Resource, Amount: d.Amount}
	}
	for _, a := range snap.Activities {
		av := &Activity{
			Entity:       entityFromV1(a.EntityV1),
			Requirements: requirementsFromV1(a.Requirements),
			TicksNeeded:  a.TicksNeeded,
			TicksLeft:    a.TicksLeft,
			QualitySum:   a.QualitySum,
			QualityTicks: a.QualityTicks,
			Initiator:    a.Initiator,
		}
		for _, r := range a.ResultActions {
			if !w.reg.Known(r.Type) {
				return nil, fmt.Errorf("activity %d: unknown result action %q", a.ID, r.Type)
			}
			av.ResultActions = append(av.ResultActions, recordFromV1(r))
		}
		s.activities[a.ID] = av
	}
	for _, c := range snap.Combats {
		rv := map[int64]float64{}
		for k, v := range c.RecordedViolence {
			rv[k] = v
		}
		s.combats[c.ID] = &Combat{Entity: entityFromV1(c.EntityV1), RecordedViolence: rv, TaskID: c.TaskID}
	}
	for _, in := range snap.Intents {
		if !w.reg.Known(in.Action.Type) {
			return nil, fmt.Errorf("intent %d: unknown action %q", in.ID, in.Action.Type)
		}
		s.intents[in.ID] = &Intent{
			ID: in.ID, Executor: in.Executor, Kind: IntentKind(in.Kind),
			Priority: in.Priority, Target: in.Target, Action: recordFromV1(in.Action),
		}
	}
	for _, t := range snap.Tasks {
		if !w.reg.Known(t.Process.Type) {
			return nil, fmt.Errorf("task %d: unknown process %q", t.ID, t.Process.Type)
		}
		s.tasks[t.ID] = &ScheduledTask{ID: t.ID, Process: recordFromV1(t.Process), ExecuteAt: t.ExecuteAt, Interval: t.Interval}
	}
	for _, n := range snap.Notifications {
		s.notifications[n.ID] = &Notification{
			ID: n.ID, TitleTag: n.TitleTag, TitleParams: cloneParams(n.TitleParams),
			TextTag: n.TextTag, TextParams: cloneParams(n.TextParams),
			Count: n.Count, Recipient: n.Recipient, GameDate: n.GameDate,
		}
	}

	s.nextID = snap.NextID
	s.rngCursor = snap.RNGCursor
	s.gameDate = snap.GameDate
	return w, nil
}

func entityV1(e Entity) snapshot.EntityV1 {
	return snapshot.EntityV1{ID: e.ID, TypeName: e.TypeName, Parent: e.Parent, Role: string(e.Role)}
}

func entityFromV1(e snapshot.EntityV1) Entity {
	return Entity{ID: e.ID, TypeName: e.TypeName, Parent: e.Parent, Role: Role(e.Role)}
}

func recordV1(r deferred.Record) snapshot.RecordV1 {
	cp := r.Clone()
	return snapshot.RecordV1{Type: cp.Type, Args: cp.Args}
}

func recordFromV1(r snapshot.RecordV1) deferred.Record {
	return deferred.Record{Type: r.Type, Args: r.Args}.Clone()
}

func requirementsV1(r *Requirements) snapshot.RequirementsV1 {
	if r == nil {
		return snapshot.RequirementsV1{}
	}
	out := snapshot.RequirementsV1{
		MandatoryMachines:  r.MandatoryMachines,
		OptionalMachines:   r.OptionalMachines,
		Targets:            r.Targets,
		RequiredResources:  r.RequiredResources,
		LocationTypes:      r.LocationTypes,
		TerrainTypes:       r.TerrainTypes,
		ExcludedByEntities: r.ExcludedByEntities,
		MandatoryTools:     r.MandatoryTools,
		OptionalTools:      r.OptionalTools,
		Skills:             r.Skills,
		MinWorkers:         r.MinWorkers,
		MaxWorkers:         r.MaxWorkers,
	}
	if r.Input != nil {
		out.Input = make(map[string]snapshot.InputLineV1, len(r.Input))
		for name, line := range r.Input {
			out.Input[name] = snapshot.InputLineV1{
				Needed: line.Needed, Left: line.Left, UsedType: line.UsedType, Quality: line.Quality,
			}
		}
	}
	return out
}

func requirementsFromV1(r snapshot.RequirementsV1) *Requirements {
	out := &Requirements{
		MandatoryMachines:  r.MandatoryMachines,
		OptionalMachines:   r.OptionalMachines,
		Targets:            r.Targets,
		RequiredResources:  r.RequiredResources,
		LocationTypes:      r.LocationTypes,
		TerrainTypes:       r.TerrainTypes,
		ExcludedByEntities: r.ExcludedByEntities,
		MandatoryTools:     r.MandatoryTools,
		OptionalTools:      r.OptionalTools,
		Skills:             r.Skills,
		MinWorkers:         r.MinWorkers,
		MaxWorkers:         r.MaxWorkers,
	}
	if r.Input != nil {
		out.Input = make(map[string]*InputLine, len(r.Input))
		for name, line := range r.Input {
			out.Input[name] = &InputLine{
				Needed: line.Needed, Left: line.Left, UsedType: line.UsedType, Quality: line.Quality,
			}
		}
	}
	return out.Clone()
}

func sortedIDs[T any](m map[int64]T) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedTypeNames(m map[string]*EntityType) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedGroupNames(m map[string]*TypeGroup) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
