package world

import (
	"testing"

	"wildern.gg/internal/sim/tuning"
)

func TestDecay_DegradablesTakeLifetimeDamage(t *testing.T) {
	w := newTestWorld()
	interval := w.tune.DecayIntervalSec
	w.RegisterType(EntityType{Name: "bread", Stackable: true, Lifetime: 2 * interval})
	w.RegisterType(EntityType{Name: "cart", Lifetime: 2 * interval})
	w.RegisterType(EntityType{Name: "anvil"}) // no lifetime, never decays

	root := w.CreateRootLocation("village", "grassland")
	bread := w.CreateItem("bread", root.ID, 100, 1.0)
	cart := w.CreateItem("cart", root.ID, 1, 1.0)
	anvil := w.CreateItem("anvil", root.ID, 1, 1.0)

	w.PerformDecay(interval)
	if !almostEqual(bread.Damage, 0.5) || !almostEqual(cart.Damage, 0.5) {
		t.Fatalf("half-life damage: bread %v cart %v", bread.Damage, cart.Damage)
	}
	if anvil.Damage != 0 {
		t.Fatalf("anvil must not decay")
	}

	w.PerformDecay(2 * interval)
	if w.ItemByID(cart.ID) != nil {
		t.Fatalf("fully degraded non-stackable must crumble")
	}
	// 100 * 0.01 = exactly 1 unit shed, no probabilistic remainder.
	if got := w.ItemByID(bread.ID); got == nil || got.Amount != 99 {
		t.Fatalf("stackable shedding: got %+v want amount 99", got)
	}
}

func TestDecay_AbandonedActivityLosesProgress(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	shop := makeWorkshop(w, nil, 20)
	shop.activity.TicksLeft = 10

	w.PerformDecay(w.tune.DecayIntervalSec)
	if !almostEqual(shop.activity.TicksLeft, 15) {
		t.Fatalf("ticks_left after decay: got %v want 15", shop.activity.TicksLeft)
	}

	shop.activity.TicksLeft = 18
	w.PerformDecay(2 * w.tune.DecayIntervalSec)
	if !almostEqual(shop.activity.TicksLeft, 20) {
		t.Fatalf("decay must cap at ticks_needed, got %v", shop.activity.TicksLeft)
	}
}

func TestDecay_CommittedMaterialsExemptFromShedding(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	interval := w.tune.DecayIntervalSec
	w.RegisterType(EntityType{Name: "grain", Stackable: true, Lifetime: interval})

	shop := makeWorkshop(w, &Requirements{
		Input: map[string]*InputLine{"grain": {Needed: 100, Left: 0, UsedType: "grain"}},
	}, 20)
	committed := w.CreateItem("grain", shop.activity.ID, 100, 1.0)
	committed.Role = RoleUsedFor
	loose := w.CreateItem("grain", shop.root.ID, 100, 1.0)

	w.PerformDecay(interval)

	// The loose pile ages and sheds one unit (100 * 0.01). The committed pile
	// is untouched: shedding it here would leave the requirement line claiming
	// units that no longer exist. Committed material only leaks through a
	// rotten container, which un-commits what it loses.
	if got := w.ItemByID(loose.ID); got == nil || !almostEqual(got.Damage, 1) || got.Amount != 99 {
		t.Fatalf("loose pile: got %+v want damage 1 amount 99", got)
	}
	if got := w.ItemByID(committed.ID); got == nil || got.Damage != 0 || got.Amount != 100 {
		t.Fatalf("committed pile must not age or shed under an intact container, got %+v", got)
	}
	line := shop.activity.Requirements.Input["grain"]
	if !almostEqual(line.Left, 0) || line.UsedType != "grain" {
		t.Fatalf("requirement line must stay fully consumed, got %+v", line)
	}
}

func TestDecay_RottenContainerUncommitsMaterials(t *testing.T) {
	tune := tuning.Defaults()
	tune.DailyStackableDecay = 0.05 // 100-unit pile loses exactly 5
	w := newTestWorldTuned(tune)
	registerCraftTypes(w)

	shop := makeWorkshop(w, &Requirements{
		Input: map[string]*InputLine{"timber": {Needed: 200, Left: 100, UsedType: "log"}},
	}, 20)
	shop.container.Damage = 1.0

	committed := w.CreateItem("log", shop.activity.ID, 100, 1.0)
	committed.Role = RoleUsedFor

	w.PerformDecay(w.tune.DecayIntervalSec)

	if got := w.ItemByID(committed.ID); got == nil || got.Amount != 95 {
		t.Fatalf("committed pile: got %+v want amount 95", got)
	}
	line := shop.activity.Requirements.Input["timber"]
	if !almostEqual(line.Left, 105) {
		t.Fatalf("left after un-commit: got %v want 105", line.Left)
	}
	if line.UsedType != "log" {
		t.Fatalf("partially fulfilled line keeps its type lock")
	}
}

func TestDecay_UncommitClearsTypeLockWhenLineEmpties(t *testing.T) {
	w := newTestWorld()
	registerCraftTypes(w)
	req := &Requirements{
		Input: map[string]*InputLine{"timber": {Needed: 4, Left: 2, UsedType: "log"}},
	}
	w.uncommitInput(req, "log", 2)
	line := req.Input["timber"]
	if !almostEqual(line.Left, 4) {
		t.Fatalf("left: got %v want 4", line.Left)
	}
	if line.UsedType != "" {
		t.Fatalf("fully unfulfilled line must drop its type lock")
	}
}
