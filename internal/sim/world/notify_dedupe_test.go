package world

import (
	"testing"

	"wildern.gg/internal/protocol"
	"wildern.gg/internal/sim/tuning"
)

func TestNotify_IdenticalFailuresCollapse(t *testing.T) {
	w := newTestWorld()
	root := w.CreateRootLocation("clearing", "grassland")
	who := w.CreateCharacter(root.ID)

	w.SetGameDate(100)
	w.ReportFailure(protocol.ErrNoToolForActivity, map[string]any{"tool_name": "axe"}, who.ID)
	w.SetGameDate(200)
	w.ReportFailure(protocol.ErrNoToolForActivity, map[string]any{"tool_name": "axe"}, who.ID)

	got := w.NotificationsFor(who.ID)
	if len(got) != 1 {
		t.Fatalf("identical failures must collapse, got %d records", len(got))
	}
	if got[0].Count != 2 || got[0].GameDate != 200 {
		t.Fatalf("merged record: count %d date %d", got[0].Count, got[0].GameDate)
	}
}

func TestNotify_DifferentParamsOrRecipientsStaySeparate(t *testing.T) {
	w := newTestWorld()
	root := w.CreateRootLocation("clearing", "grassland")
	a := w.CreateCharacter(root.ID)
	b := w.CreateCharacter(root.ID)

	w.ReportFailure(protocol.ErrNoToolForActivity, map[string]any{"tool_name": "axe"}, a.ID)
	w.ReportFailure(protocol.ErrNoToolForActivity, map[string]any{"tool_name": "hammer"}, a.ID)
	w.ReportFailure(protocol.ErrNoToolForActivity, map[string]any{"tool_name": "axe"}, b.ID)

	if got := w.NotificationsFor(a.ID); len(got) != 2 {
		t.Fatalf("different params must not merge, got %d", len(got))
	}
	if got := w.NotificationsFor(b.ID); len(got) != 1 || got[0].Count != 1 {
		t.Fatalf("different recipients must not merge, got %+v", got)
	}
}

func TestNotify_HookSeesEveryMerge(t *testing.T) {
	var fired []Notification
	w := New(Config{ID: "test", Seed: 1}, tuning.Defaults(), Hooks{
		OnNotification: func(n Notification) { fired = append(fired, n) },
	})
	root := w.CreateRootLocation("clearing", "grassland")
	who := w.CreateCharacter(root.ID)

	w.ReportFailure(protocol.ErrInvalidAmount, map[string]any{"amount": 0}, who.ID)
	w.ReportFailure(protocol.ErrInvalidAmount, map[string]any{"amount": 0}, who.ID)

	if len(fired) != 2 {
		t.Fatalf("hook fires per report, got %d", len(fired))
	}
	if fired[1].Count != 2 {
		t.Fatalf("second firing carries the merged count, got %d", fired[1].Count)
	}
}
