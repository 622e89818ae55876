package world

import (
	"fmt"

	"wildern.gg/internal/sim/deferred"
)

// Combat is a detached entity binding its participants' COMBAT intents
// together. Fighters reference it through their intent target; the combat
// itself lives outside the location tree.
type Combat struct {
	Entity
	// RecordedViolence tracks damage dealt per victim, for aftermath logic.
	RecordedViolence map[int64]float64 `json:"recorded_violence,omitempty"`
	// TaskID is the recurring combat-round task driving this fight.
	TaskID int64 `json:"task_id,omitempty"`
}

func (c *Combat) clone() *Combat {
	cp := *c
	if c.RecordedViolence != nil {
		cp.RecordedViolence = make(map[int64]float64, len(c.RecordedViolence))
		for k, v := range c.RecordedViolence {
			cp.RecordedViolence[k] = v
		}
	}
	return &cp
}

// Combat sides and stances. Side is fixed for the fight; stance is the
// fighter's round-to-round posture.
const (
	SideAttacker = 0
	SideDefender = 1
)

const (
	StanceOffensive = "offensive"
	StanceDefensive = "defensive"
	StanceRetreat   = "retreat"
)

func validStance(s string) bool {
	return s == StanceOffensive || s == StanceDefensive || s == StanceRetreat
}

func (w *World) registerCombatActions() {
	reg := w.reg

	reg.Register(actAttackCharacter, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		target, err := w.argCharacter(args, "target")
		if err != nil {
			return nil, err
		}
		return &AttackCharacterAction{Executor: executor, Target: target}, nil
	})

	reg.Register(actJoinCombat, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		combat, err := w.argCombat(args, "combat")
		if err != nil {
			return nil, err
		}
		side, err := args.Int("side")
		if err != nil {
			return nil, err
		}
		if side != SideAttacker && side != SideDefender {
			return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: invalid side %d", "side", side)}
		}
		return &JoinCombatAction{Executor: executor, Combat: combat, Side: side}, nil
	})

	reg.Register(actChangeStance, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		stance, err := args.String("stance")
		if err != nil {
			return nil, err
		}
		if !validStance(stance) {
			return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: invalid stance %q", "stance", stance)}
		}
		return &ChangeCombatStanceAction{Executor: executor, Stance: stance}, nil
	})

	reg.Register(actFightInCombat, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		combat, err := w.argCombat(args, "combat")
		if err != nil {
			return nil, err
		}
		side, err := args.Int("side")
		if err != nil {
			return nil, err
		}
		if side != SideAttacker && side != SideDefender {
			return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: invalid side %d", "side", side)}
		}
		stance, err := args.String("stance")
		if err != nil {
			return nil, err
		}
		if !validStance(stance) {
			return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: invalid stance %q", "stance", stance)}
		}
		return &FightInCombatAction{Executor: executor, Combat: combat, Side: side, Stance: stance}, nil
	})

	reg.Register(actProcessCombat, func(args deferred.Args, injected deferred.Args) (deferred.Action, error) {
		combat, err := w.argCombat(args, "combat")
		if err != nil {
			return nil, err
		}
		taskID, _, err := injected.OptionalID("task_id")
		if err != nil {
			return nil, err
		}
		return &CombatProcessAction{Combat: combat, TaskID: taskID}, nil
	})
}

// AttackCharacterAction opens a fight: it creates the combat entity, enrols
// both characters as offensive fighters, and schedules the recurring round
// process after a short initial delay.
type AttackCharacterAction struct {
	Executor *Character
	Target   *Character
}

func (a *AttackCharacterAction) Record() deferred.Record {
	return deferred.Record{Type: actAttackCharacter, Args: map[string]any{
		"executor": a.Executor.ID,
		"target":   a.Target.ID,
	}}
}

func (a *AttackCharacterAction) Perform(w *World) (Result, error) {
	if a.Executor.ID == a.Target.ID {
		return Result{}, errCannotAttackYourself()
	}
	if w.intentOf(a.Executor.ID, IntentCombat) != nil {
		return Result{}, errAlreadyInCombat()
	}
	if w.intentOf(a.Target.ID, IntentCombat) != nil {
		return Result{}, errTargetAlreadyInCombat(a.Target.ID)
	}
	if !w.canSee(a.Executor.ID, a.Target.ID) {
		return Result{}, errEntityTooFarAway(a.Target.ID)
	}

	combat := &Combat{
		Entity:           Entity{ID: w.nextID(), TypeName: TypeCombat},
		RecordedViolence: map[int64]float64{},
	}
	w.state.combats[combat.ID] = combat

	if err := w.enrolFighter(a.Executor, combat, SideAttacker); err != nil {
		return Result{}, err
	}
	if err := w.enrolFighter(a.Target, combat, SideDefender); err != nil {
		return Result{}, err
	}

	task, err := w.ScheduleTask(&CombatProcessAction{Combat: combat},
		w.state.gameDate+w.tune.CombatInitialDelaySec, w.tune.CombatIntervalSec)
	if err != nil {
		return Result{}, err
	}
	combat.TaskID = task.ID
	return Result{Done: true, Entities: []int64{combat.ID}}, nil
}

// JoinCombatAction enters an ongoing fight on a chosen side.
type JoinCombatAction struct {
	Executor *Character
	Combat   *Combat
	Side     int
}

func (a *JoinCombatAction) Record() deferred.Record {
	return deferred.Record{Type: actJoinCombat, Args: map[string]any{
		"executor": a.Executor.ID,
		"combat":   a.Combat.ID,
		"side":     a.Side,
	}}
}

func (a *JoinCombatAction) Perform(w *World) (Result, error) {
	if w.intentOf(a.Executor.ID, IntentCombat) != nil {
		return Result{}, errAlreadyInCombat()
	}
	visible := false
	for _, in := range w.intentsTargeting(IntentCombat, a.Combat.ID) {
		if w.canSee(a.Executor.ID, in.Executor) {
			visible = true
			break
		}
	}
	if !visible {
		return Result{}, errEntityTooFarAway(a.Combat.ID)
	}
	if err := w.enrolFighter(a.Executor, a.Combat, a.Side); err != nil {
		return Result{}, err
	}
	return done, nil
}

func (w *World) enrolFighter(c *Character, combat *Combat, side int) error {
	_, err := w.CreateIntent(c.ID, IntentCombat, 1, combat.ID,
		&FightInCombatAction{Executor: c, Combat: combat, Side: side, Stance: StanceOffensive})
	return err
}

// ChangeCombatStanceAction rewrites the stance inside the executor's stored
// fight action, taking effect from the next round.
type ChangeCombatStanceAction struct {
	Executor *Character
	Stance   string
}

func (a *ChangeCombatStanceAction) Record() deferred.Record {
	return deferred.Record{Type: actChangeStance, Args: map[string]any{
		"executor": a.Executor.ID,
		"stance":   a.Stance,
	}}
}

func (a *ChangeCombatStanceAction) Perform(w *World) (Result, error) {
	in := w.intentOf(a.Executor.ID, IntentCombat)
	if in == nil {
		return Result{}, fmt.Errorf("character %d is not fighting", a.Executor.ID)
	}
	action, err := w.reg.Materialize(in.Action, nil)
	if err != nil {
		return Result{}, err
	}
	fight, ok := action.(*FightInCombatAction)
	if !ok {
		return Result{}, fmt.Errorf("intent %d: record %q is not a fight action", in.ID, in.Action.Type)
	}
	fight.Stance = a.Stance
	rec, err := w.reg.Serialize(fight)
	if err != nil {
		return Result{}, err
	}
	in.Action = rec
	return done, nil
}

// FightInCombatAction is one fighter's turn in a round: retreat roll first,
// then a hit against a random foe still able to fight.
type FightInCombatAction struct {
	Executor *Character
	Combat   *Combat
	Side     int
	Stance   string
}

func (a *FightInCombatAction) Record() deferred.Record {
	return deferred.Record{Type: actFightInCombat, Args: map[string]any{
		"executor": a.Executor.ID,
		"combat":   a.Combat.ID,
		"side":     a.Side,
		"stance":   a.Stance,
	}}
}

func (a *FightInCombatAction) Perform(w *World) (Result, error) {
	if a.Stance == StanceRetreat {
		if w.roll() < w.tune.RetreatChance {
			w.leaveCombat(a.Executor.ID, a.Combat.ID)
			return done, nil
		}
		return done, nil
	}

	foes := w.eligibleFoes(a.Combat, a.Side, a.Executor.ID)
	if len(foes) == 0 {
		return done, nil
	}
	foe := foes[int(w.roll()*float64(len(foes)))%len(foes)]

	damage := w.tune.BaseHitDamage
	if a.Stance == StanceOffensive {
		damage *= w.tune.OffensiveDamageMult
	}
	if w.combatantStance(a.Combat, foe.ID) == StanceDefensive {
		damage /= w.tune.DefensiveDamageDiv
	}
	foe.Damage += damage
	if foe.Damage > 1 {
		foe.Damage = 1
	}
	a.Combat.RecordedViolence[foe.ID] += damage
	return done, nil
}

// eligibleFoes lists the opposing side's fighters the attacker can see and
// who are still able to fight, ordered by intent id.
func (w *World) eligibleFoes(combat *Combat, side int, attacker int64) []*Character {
	var out []*Character
	for _, in := range w.intentsTargeting(IntentCombat, combat.ID) {
		if w.combatantSide(in) == side {
			continue
		}
		foe := w.state.characters[in.Executor]
		if foe == nil || !w.ableToFight(foe) {
			continue
		}
		if !w.canSee(attacker, foe.ID) {
			continue
		}
		out = append(out, foe)
	}
	return out
}

func (w *World) ableToFight(c *Character) bool {
	return c.Damage < w.tune.DamageToDefeat
}

func (w *World) combatantSide(in *Intent) int {
	side, err := deferred.Args(in.Action.Args).Int("side")
	if err != nil {
		return SideAttacker
	}
	return side
}

func (w *World) combatantStance(combat *Combat, fighter int64) string {
	for _, in := range w.intentsTargeting(IntentCombat, combat.ID) {
		if in.Executor != fighter {
			continue
		}
		stance, err := deferred.Args(in.Action.Args).String("stance")
		if err != nil {
			return StanceOffensive
		}
		return stance
	}
	return StanceOffensive
}

func (w *World) leaveCombat(fighter, combatID int64) {
	for _, in := range w.intentsTargeting(IntentCombat, combatID) {
		if in.Executor == fighter {
			delete(w.state.intents, in.ID)
		}
	}
}

// CombatProcessAction runs one round of a fight: every fighter takes a turn
// in intent order, then the fight ends if a side has nobody able to fight.
type CombatProcessAction struct {
	Combat *Combat
	TaskID int64
}

func (a *CombatProcessAction) Record() deferred.Record {
	return deferred.Record{Type: actProcessCombat, Args: map[string]any{
		"combat": a.Combat.ID,
	}}
}

func (a *CombatProcessAction) Perform(w *World) (Result, error) {
	if w.combatOver(a.Combat) {
		w.endCombat(a.Combat)
		return done, nil
	}

	targeted := map[int64]bool{}
	for _, in := range w.intentsTargeting(IntentCombat, a.Combat.ID) {
		// A retreat earlier in the round may have removed this intent.
		if w.state.intents[in.ID] == nil {
			continue
		}
		fighter := w.state.characters[in.Executor]
		if fighter == nil || !w.ableToFight(fighter) {
			continue
		}
		for _, foe := range w.eligibleFoes(a.Combat, w.combatantSide(in), fighter.ID) {
			targeted[foe.ID] = true
		}
		action, err := w.reg.Materialize(in.Action, nil)
		if err != nil {
			return Result{}, fmt.Errorf("combat %d intent %d: %w", a.Combat.ID, in.ID, err)
		}
		if _, err := action.(Action).Perform(w); err != nil {
			return Result{}, fmt.Errorf("combat %d intent %d: %w", a.Combat.ID, in.ID, err)
		}
		if err := w.runFirstAuxIntent(fighter.ID, a.Combat.ID); err != nil {
			return Result{}, err
		}
	}

	// A fighter nobody could reach this round has effectively escaped.
	for _, in := range w.intentsTargeting(IntentCombat, a.Combat.ID) {
		if w.state.intents[in.ID] == nil {
			continue
		}
		fighter := w.state.characters[in.Executor]
		if fighter == nil || !w.ableToFight(fighter) {
			continue
		}
		if !targeted[in.Executor] {
			delete(w.state.intents, in.ID)
		}
	}

	if w.combatOver(a.Combat) {
		w.endCombat(a.Combat)
	}
	return done, nil
}

// SubmitStanceChange queues a stance change as an auxiliary intent. The
// combat process consumes it right after the fighter's next turn, so a
// stance never flips while the fighter is mid-turn.
func (w *World) SubmitStanceChange(executor *Character, stance string) (*Intent, error) {
	if !validStance(stance) {
		return nil, fmt.Errorf("invalid stance %q", stance)
	}
	in := w.intentOf(executor.ID, IntentCombat)
	if in == nil {
		return nil, fmt.Errorf("character %d is not fighting", executor.ID)
	}
	return w.CreateIntent(executor.ID, IntentCombatAux, 1, in.Target,
		&ChangeCombatStanceAction{Executor: executor, Stance: stance})
}

// runFirstAuxIntent performs and consumes the fighter's oldest queued
// auxiliary action, if any. One per round, right after their turn.
func (w *World) runFirstAuxIntent(fighter, combatID int64) error {
	var first *Intent
	for _, in := range w.intentsTargeting(IntentCombatAux, combatID) {
		if in.Executor == fighter {
			first = in
			break
		}
	}
	if first == nil {
		return nil
	}
	action, err := w.reg.Materialize(first.Action, nil)
	if err != nil {
		return fmt.Errorf("combat %d aux intent %d: %w", combatID, first.ID, err)
	}
	if _, err := action.(Action).Perform(w); err != nil {
		return fmt.Errorf("combat %d aux intent %d: %w", combatID, first.ID, err)
	}
	delete(w.state.intents, first.ID)
	return nil
}

// combatOver reports whether either side has no fighter left able to fight.
func (w *World) combatOver(combat *Combat) bool {
	able := [2]int{}
	for _, in := range w.intentsTargeting(IntentCombat, combat.ID) {
		fighter := w.state.characters[in.Executor]
		if fighter == nil || !w.ableToFight(fighter) {
			continue
		}
		able[w.combatantSide(in)]++
	}
	return able[SideAttacker] == 0 || able[SideDefender] == 0
}

// endCombat dissolves the fight: all remaining combat intents are removed,
// the recurring round task stops, and the combat entity is deleted.
func (w *World) endCombat(combat *Combat) {
	for _, in := range w.intentsTargeting(IntentCombat, combat.ID) {
		delete(w.state.intents, in.ID)
	}
	for _, in := range w.intentsTargeting(IntentCombatAux, combat.ID) {
		delete(w.state.intents, in.ID)
	}
	if t := w.state.tasks[combat.TaskID]; t != nil {
		t.StopRepeating()
	}
	delete(w.state.combats, combat.ID)
}
