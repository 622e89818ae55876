package world

import (
	"testing"

	"wildern.gg/internal/sim/tuning"
)

func newTestWorld() *World {
	return New(Config{ID: "test", Seed: 42}, tuning.Defaults(), Hooks{})
}

func newTestWorldTuned(tune tuning.Tuning) *World {
	return New(Config{ID: "test", Seed: 42}, tune, Hooks{})
}

// registerCraftTypes installs the small catalog the scenario tests share:
// cutting tools (axe beats hammer), timber materials (logs beat planks), and
// a scaffold container to hang activities on.
func registerCraftTypes(w *World) {
	w.RegisterType(EntityType{Name: "axe", UnitWeight: 2, Portable: true})
	w.RegisterType(EntityType{Name: "hammer", UnitWeight: 1.5, Portable: true})
	w.RegisterType(EntityType{Name: "log", Stackable: true, UnitWeight: 10})
	w.RegisterType(EntityType{Name: "plank", Stackable: true, UnitWeight: 3})
	w.RegisterType(EntityType{Name: "scaffold", UnitWeight: 50})
	w.RegisterType(EntityType{Name: "granite", Stackable: true, UnitWeight: 20})
	w.RegisterGroup(TypeGroup{Name: "cutting_tool", Members: []GroupMember{
		{TypeName: "axe", Efficiency: 1.0},
		{TypeName: "hammer", Efficiency: 0.25},
	}})
	w.RegisterGroup(TypeGroup{Name: "timber", Members: []GroupMember{
		{TypeName: "log", Efficiency: 1.0},
		{TypeName: "plank", Efficiency: 0.5},
	}})
}

// workshop is the common scenario fixture: a root location with a scaffold
// container and an activity inside it.
type workshop struct {
	root      *Location
	container *Item
	activity  *Activity
}

func makeWorkshop(w *World, req *Requirements, ticksNeeded float64) workshop {
	root := w.CreateRootLocation("clearing", "grassland")
	container := w.CreateItem("scaffold", root.ID, 1, 1.0)
	activity := w.CreateActivity(container.ID, req, ticksNeeded, nil, 0)
	return workshop{root: root, container: container, activity: activity}
}

func joinWorker(t *testing.T, w *World, worker *Character, activity *Activity) {
	t.Helper()
	if _, err := (&JoinActivityAction{Executor: worker, Activity: activity}).Perform(w); err != nil {
		t.Fatalf("join activity: %v", err)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
