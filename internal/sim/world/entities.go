package world

import "sort"

// Role tags the single ownership edge every non-root entity has to its
// parent: contained by it, or consumed by it as activity material.
type Role string

const (
	RoleBeingIn Role = "being_in"
	RoleUsedFor Role = "used_for"
)

// Entity is the shared base of every addressable world object. The parent
// edges form a tree rooted at a RootLocation.
type Entity struct {
	ID       int64  `json:"id"`
	TypeName string `json:"type_name"`
	Parent   int64  `json:"parent,omitempty"` // 0 only for root locations
	Role     Role   `json:"role,omitempty"`
}

func (e *Entity) base() *Entity { return e }

type entityRef interface {
	base() *Entity
}

type Character struct {
	Entity
	Skills map[string]float64 `json:"skills,omitempty"`
	Damage float64            `json:"damage"`

	// Multi-tick travel state (owned by the world so savepoint rollback and
	// snapshots cover it).
	TravelTarget    int64 `json:"travel_target,omitempty"`
	TravelStepsLeft int   `json:"travel_steps_left,omitempty"`
}

func (c *Character) skill(name string) float64 {
	return c.Skills[name]
}

type Item struct {
	Entity
	Amount  int     `json:"amount"`
	Quality float64 `json:"quality"`
	Damage  float64 `json:"damage"`
}

// Weight reports the stack's total weight for stackable types, the unit
// weight otherwise.
func (w *World) Weight(it *Item) float64 {
	t, ok := w.typeByName(it.TypeName)
	if !ok {
		return 0
	}
	if t.Stackable {
		return float64(it.Amount) * t.UnitWeight
	}
	return t.UnitWeight
}

type Location struct {
	Entity
	// Terrain is set on root locations only.
	Terrain string `json:"terrain,omitempty"`
}

func (l *Location) isRoot() bool { return l.Parent == 0 }

// ResourceDeposit is a named natural resource available around a root
// location (ore vein, clay pit, berry grove).
type ResourceDeposit struct {
	Entity
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

// --- constructors ---

func (w *World) CreateRootLocation(typeName, terrain string) *Location {
	l := &Location{Entity: Entity{ID: w.nextID(), TypeName: typeName}, Terrain: terrain}
	w.state.locations[l.ID] = l
	return l
}

func (w *World) CreateLocation(typeName string, in int64) *Location {
	l := &Location{Entity: Entity{ID: w.nextID(), TypeName: typeName, Parent: in, Role: RoleBeingIn}}
	w.state.locations[l.ID] = l
	return l
}

func (w *World) CreateCharacter(in int64) *Character {
	c := &Character{Entity: Entity{ID: w.nextID(), TypeName: TypeCharacter, Parent: in, Role: RoleBeingIn},
		Skills: map[string]float64{}}
	w.state.characters[c.ID] = c
	return c
}

func (w *World) CreateItem(typeName string, in int64, amount int, quality float64) *Item {
	it := &Item{Entity: Entity{ID: w.nextID(), TypeName: typeName, Parent: in, Role: RoleBeingIn},
		Amount: amount, Quality: quality}
	w.state.items[it.ID] = it
	return it
}

func (w *World) CreateDeposit(resource string, in int64, amount int) *ResourceDeposit {
	d := &ResourceDeposit{Entity: Entity{ID: w.nextID(), TypeName: TypeDeposit, Parent: in, Role: RoleBeingIn},
		Resource: resource, Amount: amount}
	w.state.deposits[d.ID] = d
	return d
}

// --- lookups ---

func (w *World) CharacterByID(id int64) *Character { return w.state.characters[id] }
func (w *World) ItemByID(id int64) *Item           { return w.state.items[id] }
func (w *World) LocationByID(id int64) *Location   { return w.state.locations[id] }
func (w *World) ActivityByID(id int64) *Activity   { return w.state.activities[id] }
func (w *World) CombatByID(id int64) *Combat       { return w.state.combats[id] }

func (w *World) entityByID(id int64) (entityRef, bool) {
	if c, ok := w.state.characters[id]; ok {
		return c, true
	}
	if it, ok := w.state.items[id]; ok {
		return it, true
	}
	if l, ok := w.state.locations[id]; ok {
		return l, true
	}
	if d, ok := w.state.deposits[id]; ok {
		return d, true
	}
	if a, ok := w.state.activities[id]; ok {
		return a, true
	}
	if c, ok := w.state.combats[id]; ok {
		return c, true
	}
	return nil, false
}

func (w *World) entityExists(id int64) bool {
	_, ok := w.entityByID(id)
	return ok
}

// rootOf walks parent edges up to the enclosing root location. Returns 0 for
// entities detached from any tree (combats).
func (w *World) rootOf(id int64) int64 {
	seen := 0
	for id != 0 {
		ref, ok := w.entityByID(id)
		if !ok {
			return 0
		}
		e := ref.base()
		if e.Parent == 0 {
			if _, isLoc := w.state.locations[e.ID]; isLoc {
				return e.ID
			}
			return 0
		}
		id = e.Parent
		seen++
		if seen > 1024 { // corrupt tree guard
			return 0
		}
	}
	return 0
}

// sameLocation is the proximity primitive: two entities are near each other
// when they share a root location.
func (w *World) sameLocation(a, b int64) bool {
	ra := w.rootOf(a)
	return ra != 0 && ra == w.rootOf(b)
}

// isInside reports whether entity a is in the containment chain under b.
func (w *World) isInside(a, b int64) bool {
	for a != 0 {
		ref, ok := w.entityByID(a)
		if !ok {
			return false
		}
		if ref.base().Parent == b {
			return true
		}
		a = ref.base().Parent
	}
	return false
}

// itemsHeldBy lists items contained directly by the holder, sorted by id.
func (w *World) itemsHeldBy(holder int64) []*Item {
	var out []*Item
	for _, it := range w.state.items {
		if it.Parent == holder && it.Role == RoleBeingIn {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// itemsNear lists items whose tree root is the given root location, excluding
// items held by characters (a forge on the ground is shared equipment, a
// chisel in someone's pack is not). Sorted by id.
func (w *World) itemsNear(root int64) []*Item {
	var out []*Item
	for _, it := range w.state.items {
		if w.rootOf(it.ID) != root {
			continue
		}
		if _, held := w.state.characters[it.Parent]; held {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// itemsUsedFor lists materials committed to the given consumer, sorted by id.
func (w *World) itemsUsedFor(consumer int64) []*Item {
	var out []*Item
	for _, it := range w.state.items {
		if it.Parent == consumer && it.Role == RoleUsedFor {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) depositsNear(root int64) []*ResourceDeposit {
	var out []*ResourceDeposit
	for _, d := range w.state.deposits {
		if w.rootOf(d.ID) == root {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// enclosingLocation walks up from an entity to the nearest location.
func (w *World) enclosingLocation(id int64) *Location {
	for id != 0 {
		if l, ok := w.state.locations[id]; ok {
			return l
		}
		ref, ok := w.entityByID(id)
		if !ok {
			return nil
		}
		id = ref.base().Parent
	}
	return nil
}

// RemoveItem deletes an item from the world.
func (w *World) RemoveItem(id int64) {
	delete(w.state.items, id)
}

// moveEntity reparents an entity with the given role. Movement of locations
// is not supported.
func (w *World) moveEntity(e *Entity, to int64, role Role) {
	e.Parent = to
	e.Role = role
}

// mergeStack moves `amount` units off a stackable item into the destination,
// merging with an existing pile of the same type and role when one is there.
func (w *World) mergeStack(it *Item, to int64, role Role, amount int) *Item {
	if it.Amount == amount {
		w.RemoveItem(it.ID)
	} else {
		it.Amount -= amount
	}
	for _, pile := range w.state.items {
		if pile.ID != it.ID && pile.Parent == to && pile.Role == role && pile.TypeName == it.TypeName {
			pile.Amount += amount
			return pile
		}
	}
	np := w.CreateItem(it.TypeName, to, amount, it.Quality)
	np.Role = role
	return np
}

// Built-in type names the engine itself depends on.
const (
	TypeCharacter = "character"
	TypeActivity  = "activity"
	TypeCombat    = "combat"
	TypeDeposit   = "resource_deposit"
)
