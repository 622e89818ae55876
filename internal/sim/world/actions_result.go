package world

import (
	"fmt"

	"wildern.gg/internal/sim/deferred"
)

// Result actions run when an activity's TicksLeft hits zero. They receive
// the live activity by injection, so the same stored record works both for
// fresh worlds and for records resumed from a snapshot.
func (w *World) registerResultActions() {
	reg := w.reg

	reg.Register(actCreateItem, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		activity, err := w.argActivity(args, "activity")
		if err != nil {
			return nil, err
		}
		typeName, err := args.String("item_type")
		if err != nil {
			return nil, err
		}
		if _, ok := w.typeByName(typeName); !ok {
			return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: unknown entity type %q", "item_type", typeName)}
		}
		amount, err := args.IntOr("amount", 1)
		if err != nil {
			return nil, err
		}
		return &CreateItemAction{Activity: activity, TypeName: typeName, Amount: amount}, nil
	})

	reg.Register(actCollectResources, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		activity, err := w.argActivity(args, "activity")
		if err != nil {
			return nil, err
		}
		resource, err := args.String("resource")
		if err != nil {
			return nil, err
		}
		if _, ok := w.typeByName(resource); !ok {
			return nil, &deferred.MalformedRecordError{Reason: fmt.Sprintf("arg %q: unknown entity type %q", "resource", resource)}
		}
		amount, err := args.IntOr("amount", 1)
		if err != nil {
			return nil, err
		}
		return &CollectGatheredResourcesAction{Activity: activity, Resource: resource, Amount: amount}, nil
	})

	reg.Register(actRemoveContainer, func(args deferred.Args, _ deferred.Args) (deferred.Action, error) {
		activity, err := w.argActivity(args, "activity")
		if err != nil {
			return nil, err
		}
		return &RemoveActivityContainerAction{Activity: activity}, nil
	})
}

// CreateItemAction turns an activity's committed materials into product: the
// new items appear beside the activity's container, carry the activity's
// accrued quality, and consume every committed material.
type CreateItemAction struct {
	Activity *Activity
	TypeName string
	Amount   int
}

func (a *CreateItemAction) Record() deferred.Record {
	return deferred.Record{Type: actCreateItem, Args: map[string]any{
		"activity":  a.Activity.ID,
		"item_type": a.TypeName,
		"amount":    a.Amount,
	}}
}

func (a *CreateItemAction) Perform(w *World) (Result, error) {
	quality := a.Activity.Quality()
	if a.Activity.QualityTicks == 0 {
		quality = 1.0
	}

	placeIn := a.Activity.Parent
	if ref, ok := w.entityByID(a.Activity.Parent); ok && ref.base().Parent != 0 {
		placeIn = ref.base().Parent
	}

	var created []int64
	t, _ := w.typeByName(a.TypeName)
	if t.Stackable {
		it := w.CreateItem(a.TypeName, placeIn, a.Amount, quality)
		created = append(created, it.ID)
	} else {
		for i := 0; i < a.Amount; i++ {
			it := w.CreateItem(a.TypeName, placeIn, 1, quality)
			created = append(created, it.ID)
		}
	}

	for _, used := range w.itemsUsedFor(a.Activity.ID) {
		w.RemoveItem(used.ID)
	}
	return Result{Done: true, Entities: created}, nil
}

// CollectGatheredResourcesAction draws from a deposit near the activity and
// piles the yield beside the container. Yield is capped by what the deposit
// still holds; an exhausted deposit disappears.
type CollectGatheredResourcesAction struct {
	Activity *Activity
	Resource string
	Amount   int
}

func (a *CollectGatheredResourcesAction) Record() deferred.Record {
	return deferred.Record{Type: actCollectResources, Args: map[string]any{
		"activity": a.Activity.ID,
		"resource": a.Resource,
		"amount":   a.Amount,
	}}
}

func (a *CollectGatheredResourcesAction) Perform(w *World) (Result, error) {
	root := w.rootOf(a.Activity.ID)
	var deposit *ResourceDeposit
	for _, d := range w.depositsNear(root) {
		if d.Resource == a.Resource && d.Amount > 0 {
			deposit = d
			break
		}
	}
	if deposit == nil {
		return Result{}, errNoResource(a.Resource)
	}

	yield := a.Amount
	if yield > deposit.Amount {
		yield = deposit.Amount
	}
	deposit.Amount -= yield
	if deposit.Amount == 0 {
		delete(w.state.deposits, deposit.ID)
	}

	placeIn := a.Activity.Parent
	if ref, ok := w.entityByID(a.Activity.Parent); ok && ref.base().Parent != 0 {
		placeIn = ref.base().Parent
	}
	it := w.CreateItem(a.Resource, placeIn, yield, 1.0)
	return Result{Done: true, Entities: []int64{it.ID}}, nil
}

// RemoveActivityContainerAction dismantles the scaffold the activity lived
// in: its contents spill out to the surrounding location and the container
// item is destroyed.
type RemoveActivityContainerAction struct {
	Activity *Activity
}

func (a *RemoveActivityContainerAction) Record() deferred.Record {
	return deferred.Record{Type: actRemoveContainer, Args: map[string]any{
		"activity": a.Activity.ID,
	}}
}

func (a *RemoveActivityContainerAction) Perform(w *World) (Result, error) {
	container := w.state.items[a.Activity.Parent]
	if container == nil {
		return done, nil
	}
	outside := container.Parent
	for _, it := range w.itemsHeldBy(container.ID) {
		w.moveEntity(it.base(), outside, RoleBeingIn)
	}
	w.moveEntity(a.Activity.base(), outside, RoleBeingIn)
	w.RemoveItem(container.ID)
	return done, nil
}
