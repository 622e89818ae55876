package world

import (
	"testing"

	"wildern.gg/internal/protocol"
	"wildern.gg/internal/sim/tuning"
)

func TestTick_OneShotIntentRunsAndIsDeleted(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	picker := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 5, 1.0)

	in, err := w.CreateIntent(picker.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: picker, Item: logs, Amount: 5})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	sum, err := w.PerformTick(1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sum.IntentsRun != 1 || sum.IntentsDone != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if w.IntentByID(in.ID) != nil {
		t.Fatalf("done intent must be deleted")
	}
	held := w.itemsHeldBy(picker.ID)
	if len(held) != 1 || held[0].TypeName != "log" || held[0].Amount != 5 {
		t.Fatalf("picker inventory: %+v", held)
	}
}

func TestTick_GameErrorRollsBackAndNotifies(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	picker := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 5, 1.0)

	in, err := w.CreateIntent(picker.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: picker, Item: logs, Amount: 50})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	sum, err := w.PerformTick(1)
	if err != nil {
		t.Fatalf("a game error must not abort the tick: %v", err)
	}
	if sum.Failures != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if w.IntentByID(in.ID) == nil {
		t.Fatalf("failed intent stays pending")
	}
	n := w.NotificationsFor(picker.ID)
	if len(n) != 1 || n[0].TitleTag != protocol.ErrInvalidAmount {
		t.Fatalf("want one invalid-amount notification, got %+v", n)
	}
	if got := w.ItemByID(logs.ID); got.Parent != root.ID || got.Amount != 5 {
		t.Fatalf("rollback must leave the pile untouched: %+v", got)
	}
}

func TestTick_InvalidTargetIntentIsDropped(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	picker := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 5, 1.0)

	in, err := w.CreateIntent(picker.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: picker, Item: logs, Amount: 5})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	w.RemoveItem(logs.ID)

	sum, err := w.PerformTick(1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sum.IntentsRun != 0 {
		t.Fatalf("dropped intent must not run: %+v", sum)
	}
	if w.IntentByID(in.ID) != nil {
		t.Fatalf("intent with a dead target must be dropped")
	}
}

func TestTick_UnclassifiedErrorAbortsTick(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	picker := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 5, 1.0)

	in, err := w.CreateIntent(picker.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: picker, Item: logs, Amount: 5})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	in.Action.Type = "no_such_action" // simulate a corrupt record

	if _, err := w.PerformTick(1); err == nil {
		t.Fatalf("a malformed record is a bug and must abort the tick")
	}
}

func TestTick_SecondWorkIntentReplacesFirst(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	picker := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 5, 1.0)

	first, err := w.CreateIntent(picker.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: picker, Item: logs, Amount: 1})
	if err != nil {
		t.Fatalf("first intent: %v", err)
	}
	second, err := w.CreateIntent(picker.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: picker, Item: logs, Amount: 2})
	if err != nil {
		t.Fatalf("second intent: %v", err)
	}
	if w.IntentByID(first.ID) != nil {
		t.Fatalf("a character holds at most one work intent")
	}
	if w.IntentByID(second.ID) == nil {
		t.Fatalf("replacement intent missing")
	}
}

func TestTick_PriorityOrdersExecution(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	early := w.CreateCharacter(root.ID)
	late := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 1, 1.0)

	// Both grab the same single log; only the higher priority succeeds.
	if _, err := w.CreateIntent(late.ID, IntentWork, 1, logs.ID,
		&TakeItemAction{Executor: late, Item: logs, Amount: 1}); err != nil {
		t.Fatalf("late intent: %v", err)
	}
	if _, err := w.CreateIntent(early.ID, IntentWork, 5, logs.ID,
		&TakeItemAction{Executor: early, Item: logs, Amount: 1}); err != nil {
		t.Fatalf("early intent: %v", err)
	}

	if _, err := w.PerformTick(1); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := w.itemsHeldBy(early.ID); len(got) != 1 {
		t.Fatalf("high priority intent should win the log")
	}
	if got := w.itemsHeldBy(late.ID); len(got) != 0 {
		t.Fatalf("low priority intent should lose the log")
	}
}

func TestTick_OnTickHookFires(t *testing.T) {
	var seen []TickSummary
	w := New(Config{ID: "test", Seed: 7}, tuning.Defaults(), Hooks{
		OnTick: func(s TickSummary) { seen = append(seen, s) },
	})
	if _, err := w.PerformTick(10); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(seen) != 1 || seen[0].GameDate != 10 {
		t.Fatalf("hook: %+v", seen)
	}
}
