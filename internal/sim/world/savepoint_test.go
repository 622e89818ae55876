package world

import (
	"errors"
	"testing"
)

func TestSavepoint_RollbackRestoresEverything(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	keeper := w.CreateCharacter(root.ID)
	logs := w.CreateItem("log", root.ID, 5, 1.0)
	shop := makeWorkshop(w, &Requirements{
		Input: map[string]*InputLine{"timber": {Needed: 4, Left: 4}},
	}, 20)

	boom := errors.New("boom")
	err := w.withSavepoint(func() error {
		w.ItemByID(logs.ID).Amount = 1
		w.CharacterByID(keeper.ID).Damage = 0.9
		w.ActivityByID(shop.activity.ID).Requirements.Input["timber"].Left = 0
		w.CreateItem("plank", root.ID, 3, 1.0)
		w.ReportFailure("error_invalid_amount", nil, keeper.ID)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("withSavepoint must surface the error, got %v", err)
	}

	if got := w.ItemByID(logs.ID); got.Amount != 5 {
		t.Fatalf("item amount not restored: %d", got.Amount)
	}
	if got := w.CharacterByID(keeper.ID); got.Damage != 0 {
		t.Fatalf("character damage not restored: %v", got.Damage)
	}
	if got := w.ActivityByID(shop.activity.ID).Requirements.Input["timber"]; !almostEqual(got.Left, 4) {
		t.Fatalf("requirement line not restored: %+v", got)
	}
	if len(w.NotificationsFor(keeper.ID)) != 0 {
		t.Fatalf("notifications created inside a rolled-back savepoint must vanish")
	}
	for _, it := range w.itemsNear(root.ID) {
		if it.TypeName == "plank" {
			t.Fatalf("entity created inside a rolled-back savepoint must vanish")
		}
	}
}

func TestSavepoint_SuccessKeepsMutations(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	root := w.CreateRootLocation("clearing", "grassland")
	logs := w.CreateItem("log", root.ID, 5, 1.0)

	if err := w.withSavepoint(func() error {
		w.ItemByID(logs.ID).Amount = 2
		return nil
	}); err != nil {
		t.Fatalf("savepoint: %v", err)
	}
	if got := w.ItemByID(logs.ID); got.Amount != 2 {
		t.Fatalf("committed mutation lost: %d", got.Amount)
	}
}

func TestSavepoint_RNGCursorRollsBackForReplay(t *testing.T) {
	w := newTestWorld()

	first := 0.0
	boom := errors.New("boom")
	_ = w.withSavepoint(func() error {
		first = w.roll()
		return boom
	})
	if again := w.roll(); !almostEqual(first, again) {
		t.Fatalf("rolled-back rng must replay: %v vs %v", first, again)
	}
}
