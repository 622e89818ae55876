package world

import (
	"testing"

	"wildern.gg/internal/protocol"
	"wildern.gg/internal/sim/tuning"
)

func startDuel(t *testing.T, w *World) (*Character, *Character, *Combat) {
	t.Helper()
	root := w.CreateRootLocation("arena", "grassland")
	alice := w.CreateCharacter(root.ID)
	bob := w.CreateCharacter(root.ID)
	res, err := (&AttackCharacterAction{Executor: alice, Target: bob}).Perform(w)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if len(res.Entities) != 1 {
		t.Fatalf("attack should report the created combat, got %v", res.Entities)
	}
	combat := w.CombatByID(res.Entities[0])
	if combat == nil {
		t.Fatalf("missing combat entity")
	}
	return alice, bob, combat
}

func TestCombat_AttackCreatesIntentsAndRecurringTask(t *testing.T) {
	w := newTestWorld()
	alice, bob, combat := startDuel(t, w)

	if w.intentOf(alice.ID, IntentCombat) == nil || w.intentOf(bob.ID, IntentCombat) == nil {
		t.Fatalf("both fighters need a combat intent")
	}
	task := w.TaskByID(combat.TaskID)
	if task == nil {
		t.Fatalf("missing combat task")
	}
	if task.ExecuteAt != w.tune.CombatInitialDelaySec || task.Interval != w.tune.CombatIntervalSec {
		t.Fatalf("task schedule: at %d interval %d", task.ExecuteAt, task.Interval)
	}
}

func TestCombat_AttackValidation(t *testing.T) {
	w := newTestWorld()
	alice, bob, _ := startDuel(t, w)

	if _, err := (&AttackCharacterAction{Executor: alice, Target: alice}).Perform(w); err == nil {
		t.Fatalf("self-attack must fail")
	}
	_, err := (&AttackCharacterAction{Executor: alice, Target: bob}).Perform(w)
	ge, ok := asGameError(err)
	if !ok || ge.Tag != protocol.ErrAlreadyInCombat {
		t.Fatalf("want already-in-combat, got %v", err)
	}

	carol := w.CreateCharacter(w.rootOf(alice.ID))
	_, err = (&AttackCharacterAction{Executor: carol, Target: bob}).Perform(w)
	ge, ok = asGameError(err)
	if !ok || ge.Tag != protocol.ErrTargetAlreadyInCombat {
		t.Fatalf("want target-already-in-combat, got %v", err)
	}
}

func TestCombat_OffensiveRoundDamage(t *testing.T) {
	w := newTestWorld()
	alice, bob, combat := startDuel(t, w)

	if err := w.RunDueTasks(w.tune.CombatInitialDelaySec); err != nil {
		t.Fatalf("round: %v", err)
	}

	// Both offensive: base 0.1 * 1.5 each way.
	if !almostEqual(alice.Damage, 0.15) || !almostEqual(bob.Damage, 0.15) {
		t.Fatalf("damage after round: alice %v bob %v want 0.15 each", alice.Damage, bob.Damage)
	}
	if got := w.CombatByID(combat.ID).RecordedViolence[bob.ID]; !almostEqual(got, 0.15) {
		t.Fatalf("recorded violence on bob: %v", got)
	}
}

func TestCombat_DefensiveStanceHalvesIncomingDamage(t *testing.T) {
	w := newTestWorld()
	alice, bob, _ := startDuel(t, w)

	if _, err := w.SubmitStanceChange(bob, StanceDefensive); err != nil {
		t.Fatalf("stance change: %v", err)
	}
	// Round 1 consumes the aux intent after bob's turn; bob still fought
	// offensively this round.
	if err := w.RunDueTasks(w.tune.CombatInitialDelaySec); err != nil {
		t.Fatalf("round 1: %v", err)
	}
	if !almostEqual(bob.Damage, 0.15) {
		t.Fatalf("bob after round 1: %v want 0.15", bob.Damage)
	}
	// Round 2: bob defensive. Incoming 0.1*1.5/2, outgoing 0.1.
	if err := w.RunDueTasks(w.tune.CombatInitialDelaySec + w.tune.CombatIntervalSec); err != nil {
		t.Fatalf("round 2: %v", err)
	}
	if !almostEqual(bob.Damage, 0.15+0.075) {
		t.Fatalf("bob after round 2: %v want 0.225", bob.Damage)
	}
	if !almostEqual(alice.Damage, 0.15+0.1) {
		t.Fatalf("alice after round 2: %v want 0.25", alice.Damage)
	}
}

func TestCombat_EndsWhenOneSideUnableToFight(t *testing.T) {
	w := newTestWorld()
	alice, bob, combat := startDuel(t, w)

	// Rounds accumulate 0.15 per fighter: after round 4 bob has 0.6 >= 0.5
	// (alice acts first and bob never gets a fourth swing in).
	now := w.tune.CombatInitialDelaySec
	for round := 0; round < 4; round++ {
		if err := w.RunDueTasks(now); err != nil {
			t.Fatalf("round %d: %v", round+1, err)
		}
		now += w.tune.CombatIntervalSec
	}

	if !almostEqual(bob.Damage, 0.6) || !almostEqual(alice.Damage, 0.45) {
		t.Fatalf("final damage: alice %v bob %v", alice.Damage, bob.Damage)
	}
	if w.CombatByID(combat.ID) != nil {
		t.Fatalf("combat must dissolve when a side cannot fight")
	}
	if w.intentOf(alice.ID, IntentCombat) != nil || w.intentOf(bob.ID, IntentCombat) != nil {
		t.Fatalf("combat intents must be cleared with the combat")
	}
	if w.TaskByID(combat.TaskID) != nil {
		t.Fatalf("recurring combat task must stop with the combat")
	}
}

func TestCombat_RetreatLeavesAndEndsDuel(t *testing.T) {
	tune := tuning.Defaults()
	tune.RetreatChance = 1.0 // make withdrawal deterministic
	w := newTestWorldTuned(tune)
	alice, bob, combat := startDuel(t, w)

	if _, err := w.SubmitStanceChange(bob, StanceRetreat); err != nil {
		t.Fatalf("stance change: %v", err)
	}
	if err := w.RunDueTasks(w.tune.CombatInitialDelaySec); err != nil {
		t.Fatalf("round 1: %v", err)
	}
	// Round 2: bob retreats, the duel collapses.
	if err := w.RunDueTasks(w.tune.CombatInitialDelaySec + w.tune.CombatIntervalSec); err != nil {
		t.Fatalf("round 2: %v", err)
	}
	if w.intentOf(bob.ID, IntentCombat) != nil {
		t.Fatalf("retreated fighter keeps no combat intent")
	}
	if w.CombatByID(combat.ID) != nil {
		t.Fatalf("one-sided combat must end")
	}
	_ = alice
}

func TestCombat_JoinCombatTakesASide(t *testing.T) {
	w := newTestWorld()
	alice, _, combat := startDuel(t, w)

	carol := w.CreateCharacter(w.rootOf(alice.ID))
	if _, err := (&JoinCombatAction{Executor: carol, Combat: combat, Side: SideDefender}).Perform(w); err != nil {
		t.Fatalf("join combat: %v", err)
	}
	in := w.intentOf(carol.ID, IntentCombat)
	if in == nil {
		t.Fatalf("joiner needs a combat intent")
	}
	if w.combatantSide(in) != SideDefender {
		t.Fatalf("joiner on wrong side")
	}
}

func TestCombat_UnreachableFighterWithdraws(t *testing.T) {
	w := newTestWorld()
	alice, bob, combat := startDuel(t, w)

	// Bob flees the arena between rounds; nobody can target him, and he can
	// target nobody.
	elsewhere := w.CreateRootLocation("hills", "hills")
	w.moveEntity(bob.base(), elsewhere.ID, RoleBeingIn)

	if err := w.RunDueTasks(w.tune.CombatInitialDelaySec); err != nil {
		t.Fatalf("round: %v", err)
	}
	if w.intentOf(bob.ID, IntentCombat) != nil {
		t.Fatalf("out-of-range fighter must be withdrawn")
	}
	if w.CombatByID(combat.ID) != nil {
		t.Fatalf("combat must end once only one side remains")
	}
	if !almostEqual(alice.Damage, 0) && !almostEqual(bob.Damage, 0) {
		t.Fatalf("nobody should land a hit across locations")
	}
}
