package world

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"wildern.gg/internal/persistence/snapshot"
	"wildern.gg/internal/sim/deferred"
)

func buildBusyWorld(t *testing.T) *World {
	t.Helper()
	w := newTestWorld()
	registerCraftTypes(w)

	home := w.CreateRootLocation("village", "grassland")
	quarry := w.CreateRootLocation("quarry", "hills")
	w.CreateDeposit("granite", quarry.ID, 500)

	crafter := w.CreateCharacter(home.ID)
	crafter.Skills["carpentry"] = 0.4
	rival := w.CreateCharacter(home.ID)
	w.CreateItem("axe", crafter.ID, 1, 2.0)
	logs := w.CreateItem("log", home.ID, 20, 1.0)

	container := w.CreateItem("scaffold", home.ID, 1, 1.0)
	activity := w.CreateActivity(container.ID, &Requirements{
		MandatoryTools: []string{"cutting_tool"},
		Input:          map[string]*InputLine{"timber": {Needed: 8, Left: 3, UsedType: "log"}},
		Skills:         map[string]float64{"carpentry": 0.2},
	}, 40, []deferred.Record{
		{Type: "create_item", Args: map[string]any{"item_type": "plank", "amount": 6}},
	}, crafter.ID)
	joinWorker(t, w, crafter, activity)

	if _, err := w.CreateIntent(rival.ID, IntentWork, 2, logs.ID,
		&TakeItemAction{Executor: rival, Item: logs, Amount: 5}); err != nil {
		t.Fatalf("intent: %v", err)
	}
	if _, err := w.ScheduleTask(&WorkProcessAction{}, 600, 600); err != nil {
		t.Fatalf("task: %v", err)
	}
	if _, err := (&AttackCharacterAction{Executor: crafter, Target: rival}).Perform(w); err != nil {
		t.Fatalf("attack: %v", err)
	}
	w.ReportFailure("error_no_tool_for_activity", map[string]any{"tool_name": "axe"}, rival.ID)
	w.SetGameDate(777)
	return w
}

func TestSnapshot_RoundTripIsByteStable(t *testing.T) {
	w := buildBusyWorld(t)

	snap := w.BuildSnapshot()
	path := filepath.Join(t.TempDir(), snapshot.FileName(w.GameDate()))
	if err := snapshot.WriteFile(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	resumed, err := NewFromSnapshot(loaded, Hooks{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	before, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	after, err := json.Marshal(resumed.BuildSnapshot())
	if err != nil {
		t.Fatalf("marshal resumed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("snapshot drift after resume:\n%s\nvs\n%s", before, after)
	}
}

func TestSnapshot_ResumedWorldTicksIdentically(t *testing.T) {
	a := buildBusyWorld(t)
	b, err := NewFromSnapshot(a.BuildSnapshot(), Hooks{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	for tick := int64(800); tick <= 2600; tick += 600 {
		sa, errA := a.PerformTick(tick)
		sb, errB := b.PerformTick(tick)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("tick %d: error divergence: %v vs %v", tick, errA, errB)
		}
		if sa != sb {
			t.Fatalf("tick %d: summary divergence: %+v vs %+v", tick, sa, sb)
		}
	}
	rawA, _ := json.Marshal(a.BuildSnapshot())
	rawB, _ := json.Marshal(b.BuildSnapshot())
	if !bytes.Equal(rawA, rawB) {
		t.Fatalf("worlds diverged after identical ticks")
	}
}

func TestSnapshot_UnknownRecordRefused(t *testing.T) {
	w := buildBusyWorld(t)
	snap := w.BuildSnapshot()
	snap.Intents[0].Action.Type = "ancient_forgotten_action"

	if _, err := NewFromSnapshot(snap, Hooks{}); err == nil {
		t.Fatalf("unknown action record must refuse to load")
	}
}
