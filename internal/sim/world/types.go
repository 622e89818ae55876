package world

import "sort"

// EntityType describes one concrete kind of world object. Lifetime > 0 marks
// the type degradable: items of it accumulate damage during decay passes.
type EntityType struct {
	Name       string  `json:"name"`
	Stackable  bool    `json:"stackable"`
	UnitWeight float64 `json:"unit_weight"`
	Portable   bool    `json:"portable"`
	// Lifetime is the game-second span after which an item of this type is
	// fully degraded. 0 disables decay for the type.
	Lifetime int64 `json:"lifetime,omitempty"`
}

// GroupMember binds a concrete type into a type group with an efficiency
// factor: how well one unit of the member substitutes for one unit of the
// group (tools and machines pick the best member, input materials convert
// quantities through it).
type GroupMember struct {
	TypeName   string  `json:"type_name"`
	Efficiency float64 `json:"efficiency"`
}

// TypeGroup names an interchangeable family of types ("axe", "hammer",
// "milled_grain"). Requirements reference groups; concrete types resolve as
// single-member groups with efficiency 1.
type TypeGroup struct {
	Name    string        `json:"name"`
	Members []GroupMember `json:"members"`
}

func (w *World) RegisterType(t EntityType) {
	w.types[t.Name] = &t
}

func (w *World) RegisterGroup(g TypeGroup) {
	members := make([]GroupMember, len(g.Members))
	copy(members, g.Members)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Efficiency > members[j].Efficiency })
	g.Members = members
	w.groups[g.Name] = &g
}

func (w *World) typeByName(name string) (*EntityType, bool) {
	t, ok := w.types[name]
	return t, ok
}

// groupMembers resolves a requirement name to its member types in descending
// efficiency order. A concrete type name is its own group.
func (w *World) groupMembers(name string) []GroupMember {
	if g, ok := w.groups[name]; ok {
		return g.Members
	}
	if _, ok := w.types[name]; ok {
		return []GroupMember{{TypeName: name, Efficiency: 1.0}}
	}
	return nil
}

// quantityEfficiency says how many group units one unit of typeName is worth.
func (w *World) quantityEfficiency(groupName, typeName string) float64 {
	for _, m := range w.groupMembers(groupName) {
		if m.TypeName == typeName {
			return m.Efficiency
		}
	}
	return 0
}

// groupContains reports whether the named group accepts the concrete type.
func (w *World) groupContains(groupName, typeName string) bool {
	return w.quantityEfficiency(groupName, typeName) > 0
}
