package world

import (
	"errors"
	"fmt"
	"math"

	"wildern.gg/internal/protocol"
	"wildern.gg/internal/sim/deferred"
)

// Action is a performable, serializable command. Perform reports whether the
// action completed (a done one-shot intent is deleted) and any entities it
// created (result actions feed these to later result actions).
type Action interface {
	deferred.Action
	Perform(w *World) (Result, error)
}

type Result struct {
	Done     bool
	Entities []int64
}

var done = Result{Done: true}

// Ticks a character needs to reach an entity in another root location.
const travelStepsPerJourney = 3

// Stable action type ids. Part of the snapshot format: renaming one breaks
// every in-flight persisted intent.
const (
	actWorkOnActivity   = "work_on_activity"
	actJoinActivity     = "join_activity"
	actAddEntity        = "add_entity_to_activity"
	actTakeItem         = "take_item"
	actDropItem         = "drop_item"
	actTravelToEntity   = "travel_to_entity"
	actTravelAndPerform = "travel_and_perform"
	actAttackCharacter  = "attack_character"
	actJoinCombat       = "join_combat"
	actChangeStance     = "change_combat_stance"
	actFightInCombat    = "fight_in_combat"
	actCreateItem       = "create_item"
	actCollectResources = "collect_resources"
	actRemoveContainer  = "remove_activity_container"
	actProcessWork      = "process.work"
	actProcessCombat    = "process.combat"
	actProcessDecay     = "process.decay"
)

func (w *World) registerActions() {
	reg := w.reg

	reg.Register(actWorkOnActivity, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		activity, err := w.argActivity(args, "activity")
		if err != nil {
			return nil, err
		}
		return &WorkOnActivityAction{Executor: executor, Activity: activity}, nil
	})

	reg.Register(actJoinActivity, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		activity, err := w.argActivity(args, "activity")
		if err != nil {
			return nil, err
		}
		return &JoinActivityAction{Executor: executor, Activity: activity}, nil
	})

	reg.Register(actAddEntity, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		item, err := w.argItem(args, "item")
		if err != nil {
			return nil, err
		}
		activity, err := w.argActivity(args, "activity")
		if err != nil {
			return nil, err
		}
		amount, err := args.IntOr("amount", 1)
		if err != nil {
			return nil, err
		}
		return &AddEntityToActivityAction{Executor: executor, Item: item, Activity: activity, Amount: amount}, nil
	})

	reg.Register(actTakeItem, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		item, err := w.argItem(args, "item")
		if err != nil {
			return nil, err
		}
		amount, err := args.IntOr("amount", 1)
		if err != nil {
			return nil, err
		}
		return &TakeItemAction{Executor: executor, Item: item, Amount: amount}, nil
	})

	reg.Register(actDropItem, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		item, err := w.argItem(args, "item")
		if err != nil {
			return nil, err
		}
		amount, err := args.IntOr("amount", 1)
		if err != nil {
			return nil, err
		}
		return &DropItemAction{Executor: executor, Item: item, Amount: amount}, nil
	})

	reg.Register(actTravelToEntity, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		target, err := w.argEntityID(args, "entity")
		if err != nil {
			return nil, err
		}
		return &TravelToEntityAction{Executor: executor, Target: target}, nil
	})

	reg.Register(actTravelAndPerform, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		executor, err := w.argCharacter(args, "executor")
		if err != nil {
			return nil, err
		}
		target, err := w.argEntityID(args, "entity")
		if err != nil {
			return nil, err
		}
		inner, err := args.Record("action")
		if err != nil {
			return nil, err
		}
		if !reg.Known(inner.Type) {
			return nil, &deferred.MalformedRecordError{Type: inner.Type, Reason: "nested action: unknown type id"}
		}
		return &TravelToEntityAndPerformAction{Executor: executor, Target: target, Inner: inner}, nil
	})

	w.registerCombatActions()
	w.registerResultActions()
	w.registerProcesses()
}

// --- factory arg helpers ---

func (w *World) argCharacter(args deferred.Args, key string) (*Character, error) {
	id, err := args.ID(key)
	if err != nil {
		return nil, err
	}
	c := w.state.characters[id]
	if c == nil {
		return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: no character %d", key, id)}
	}
	return c, nil
}

func (w *World) argItem(args deferred.Args, key string) (*Item, error) {
	id, err := args.ID(key)
	if err != nil {
		return nil, err
	}
	it := w.state.items[id]
	if it == nil {
		return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: no item %d", key, id)}
	}
	return it, nil
}

func (w *World) argActivity(args deferred.Args, key string) (*Activity, error) {
	// Result actions receive the live activity by injection.
	if a, ok := args[key].(*Activity); ok {
		return a, nil
	}
	id, err := args.ID(key)
	if err != nil {
		return nil, err
	}
	a := w.state.activities[id]
	if a == nil {
		return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: no activity %d", key, id)}
	}
	return a, nil
}

func (w *World) argCombat(args deferred.Args, key string) (*Combat, error) {
	id, err := args.ID(key)
	if err != nil {
		return nil, err
	}
	c := w.state.combats[id]
	if c == nil {
		return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: no combat %d", key, id)}
	}
	return c, nil
}

func (w *World) argEntityID(args deferred.Args, key string) (int64, error) {
	id, err := args.ID(key)
	if err != nil {
		return 0, err
	}
	if !w.entityExists(id) {
		return 0, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: no entity %d", key, id)}
	}
	return id, nil
}

// --- variants ---

// WorkOnActivityAction marks its executor as working the activity. It is
// never performed directly: the scheduler collects all of an activity's
// workers and evaluates them together against one consistent snapshot of the
// shared requirements.
type WorkOnActivityAction struct {
	Executor *Character
	Activity *Activity
}

func (a *WorkOnActivityAction) Record() deferred.Record {
	return deferred.Record{Type: actWorkOnActivity, Args: map[string]any{
		"executor": a.Executor.ID,
		"activity": a.Activity.ID,
	}}
}

func (a *WorkOnActivityAction) Perform(w *World) (Result, error) {
	return Result{}, errors.New("work_on_activity must be driven by the work process")
}

// JoinActivityAction commits a character to working an activity, replacing
// whatever job they held before.
type JoinActivityAction struct {
	Executor *Character
	Activity *Activity
}

func (a *JoinActivityAction) Record() deferred.Record {
	return deferred.Record{Type: actJoinActivity, Args: map[string]any{
		"executor": a.Executor.ID,
		"activity": a.Activity.ID,
	}}
}

func (a *JoinActivityAction) Perform(w *World) (Result, error) {
	if !w.sameLocation(a.Executor.ID, a.Activity.ID) {
		return Result{}, errTooFarFromActivity(a.Activity.ID)
	}
	_, err := w.CreateIntent(a.Executor.ID, IntentWork, 1, a.Activity.ID,
		&WorkOnActivityAction{Executor: a.Executor, Activity: a.Activity})
	if err != nil {
		return Result{}, err
	}
	return done, nil
}

// AddEntityToActivityAction commits material toward an activity's input
// requirements. The first line the item can serve takes it: quantities
// convert through the group efficiency, the line locks onto the concrete
// type, and non-stackables contribute a quality sample proportional to the
// share of the requirement they fulfil.
type AddEntityToActivityAction struct {
	Executor *Character
	Item     *Item
	Activity *Activity
	Amount   int
}

func (a *AddEntityToActivityAction) Record() deferred.Record {
	return deferred.Record{Type: actAddEntity, Args: map[string]any{
		"executor": a.Executor.ID,
		"item":     a.Item.ID,
		"activity": a.Activity.ID,
		"amount":   a.Amount,
	}}
}

func (a *AddEntityToActivityAction) Perform(w *World) (Result, error) {
	if !w.sameLocation(a.Executor.ID, a.Item.ID) {
		return Result{}, errEntityNotInInventory(a.Item.ID)
	}
	if !w.sameLocation(a.Executor.ID, a.Activity.ID) {
		return Result{}, errTooFarFromActivity(a.Activity.ID)
	}
	if a.Amount <= 0 || a.Amount > a.Item.Amount {
		return Result{}, errInvalidAmount(a.Amount)
	}

	itemType, ok := w.typeByName(a.Item.TypeName)
	if !ok {
		return Result{}, fmt.Errorf("unknown item type %q", a.Item.TypeName)
	}

	req := a.Activity.Requirements
	for _, group := range req.inputGroupNames() {
		line := req.Input[group]
		if line.UsedType != "" && line.UsedType != a.Item.TypeName {
			// A line already fed with one concrete type accepts only more
			// of the same.
			return Result{}, errOnlySpecificType(line.UsedType, group)
		}
		if line.Left == 0 {
			continue
		}
		if !w.groupContains(group, a.Item.TypeName) {
			continue
		}

		eff := w.quantityEfficiency(group, a.Item.TypeName)
		maxToAdd := int(math.Ceil(line.Left / eff))
		amountToAdd := a.Amount
		if amountToAdd > maxToAdd {
			amountToAdd = maxToAdd
		}

		if itemType.Stackable {
			w.mergeStack(a.Item, a.Activity.ID, RoleUsedFor, amountToAdd)
		} else {
			amountToAdd = 1
			w.moveEntity(a.Item.base(), a.Activity.ID, RoleUsedFor)
		}

		reduction := float64(amountToAdd) * eff
		line.Left = math.Max(0, line.Left-reduction)
		line.UsedType = a.Item.TypeName
		if !itemType.Stackable {
			addedFraction := reduction / line.Needed
			line.Quality += eff * a.Item.Quality * addedFraction
		}
		return done, nil
	}
	return Result{}, errItemNotApplicable(a.Item.ID, a.Activity.ID)
}

// TakeItemAction moves an item from the ground into the executor's inventory.
type TakeItemAction struct {
	Executor *Character
	Item     *Item
	Amount   int
}

func (a *TakeItemAction) Record() deferred.Record {
	return deferred.Record{Type: actTakeItem, Args: map[string]any{
		"executor": a.Executor.ID,
		"item":     a.Item.ID,
		"amount":   a.Amount,
	}}
}

func (a *TakeItemAction) Perform(w *World) (Result, error) {
	if !w.sameLocation(a.Executor.ID, a.Item.ID) {
		return Result{}, errEntityTooFarAway(a.Item.ID)
	}
	if a.Amount <= 0 || a.Amount > a.Item.Amount {
		return Result{}, errInvalidAmount(a.Amount)
	}
	t, _ := w.typeByName(a.Item.TypeName)
	if t != nil && t.Stackable {
		w.mergeStack(a.Item, a.Executor.ID, RoleBeingIn, a.Amount)
	} else {
		w.moveEntity(a.Item.base(), a.Executor.ID, RoleBeingIn)
	}
	return done, nil
}

// DropItemAction moves an item from the executor's inventory to the ground.
type DropItemAction struct {
	Executor *Character
	Item     *Item
	Amount   int
}

func (a *DropItemAction) Record() deferred.Record {
	return deferred.Record{Type: actDropItem, Args: map[string]any{
		"executor": a.Executor.ID,
		"item":     a.Item.ID,
		"amount":   a.Amount,
	}}
}

func (a *DropItemAction) Perform(w *World) (Result, error) {
	if !w.isInside(a.Item.ID, a.Executor.ID) {
		return Result{}, errEntityNotInInventory(a.Item.ID)
	}
	if a.Amount <= 0 || a.Amount > a.Item.Amount {
		return Result{}, errInvalidAmount(a.Amount)
	}
	ground := w.rootOf(a.Executor.ID)
	t, _ := w.typeByName(a.Item.TypeName)
	if t != nil && t.Stackable {
		w.mergeStack(a.Item, ground, RoleBeingIn, a.Amount)
	} else {
		w.moveEntity(a.Item.base(), ground, RoleBeingIn)
	}
	return done, nil
}

// TravelToEntityAction closes the distance to a target over several ticks,
// one step per tick. Done once the executor shares the target's location.
type TravelToEntityAction struct {
	Executor *Character
	Target   int64
}

func (a *TravelToEntityAction) Record() deferred.Record {
	return deferred.Record{Type: actTravelToEntity, Args: map[string]any{
		"executor": a.Executor.ID,
		"entity":   a.Target,
	}}
}

func (a *TravelToEntityAction) Perform(w *World) (Result, error) {
	arrived := w.advanceTravel(a.Executor, a.Target)
	return Result{Done: arrived}, nil
}

// advanceTravel moves a character one step toward a target, relocating them
// when the journey completes. Travel state lives on the character so
// savepoints and snapshots carry it.
func (w *World) advanceTravel(c *Character, target int64) bool {
	if w.sameLocation(c.ID, target) {
		c.TravelTarget = 0
		c.TravelStepsLeft = 0
		return true
	}
	if c.TravelTarget != target {
		c.TravelTarget = target
		c.TravelStepsLeft = travelStepsPerJourney
	}
	c.TravelStepsLeft--
	if c.TravelStepsLeft > 0 {
		return false
	}
	root := w.rootOf(target)
	if root == 0 {
		c.TravelTarget = 0
		return false
	}
	w.moveEntity(c.base(), root, RoleBeingIn)
	c.TravelTarget = 0
	return true
}

// TravelToEntityAndPerformAction chases a target and performs a nested action
// on arrival. If the target slips out of reach again between arrival and the
// nested action, the whole attempt is rolled back and silently retried next
// tick (the retry-as-intent family).
type TravelToEntityAndPerformAction struct {
	Executor *Character
	Target   int64
	Inner    deferred.Record
}

func (a *TravelToEntityAndPerformAction) Record() deferred.Record {
	return deferred.Record{Type: actTravelAndPerform, Args: map[string]any{
		"executor": a.Executor.ID,
		"entity":   a.Target,
		"action":   a.Inner,
	}}
}

func (a *TravelToEntityAndPerformAction) Perform(w *World) (Result, error) {
	if !w.sameLocation(a.Executor.ID, a.Target) {
		w.advanceTravel(a.Executor, a.Target)
		return Result{}, nil
	}
	inner, err := w.reg.Materialize(a.Inner, nil)
	if err != nil {
		return Result{}, err
	}
	res, err := inner.(Action).Perform(w)
	if err != nil {
		if ge, ok := asGameError(err); ok && ge.Tag == protocol.ErrEntityTooFarAway {
			return Result{}, &RetryError{Reason: "target moved away"}
		}
		return Result{}, err
	}
	return res, nil
}
