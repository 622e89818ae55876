// Package deferred converts in-flight actions to and from persistable tagged
// records, so a half-finished intention can survive a snapshot/resume cycle
// and be picked up again by a later tick.
package deferred

import (
	"fmt"
	"sort"
)

// Record is the persisted form of an action: a stable type id plus the
// action's declared constructor arguments. Type ids are part of the snapshot
// format; renaming one breaks every in-flight persisted intent.
type Record struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// Clone returns a deep copy of the record (args maps are copied recursively).
func (r Record) Clone() Record {
	return Record{Type: r.Type, Args: cloneArgs(r.Args)}
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneArgs(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	case Record:
		return t.Clone()
	default:
		return v
	}
}

// Action is anything that can be parked across a tick boundary. Each variant
// declares its persistable arguments explicitly via Record; there is no
// reflection over struct fields.
type Action interface {
	Record() Record
}

// Factory rebuilds one action variant from its stored args merged with
// caller-injected values (injected values win).
type Factory func(args Args, injected Args) (Action, error)

// Registry maps stable type ids to factories. Registries are built per world
// so factories can close over the world state they rehydrate entities from.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(typeID string, f Factory) {
	if typeID == "" {
		panic("deferred: empty type id")
	}
	if _, dup := r.factories[typeID]; dup {
		panic(fmt.Sprintf("deferred: duplicate type id %q", typeID))
	}
	r.factories[typeID] = f
}

func (r *Registry) Known(typeID string) bool {
	_, ok := r.factories[typeID]
	return ok
}

// Types returns all registered type ids, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Serialize returns the action's record, refusing variants the registry does
// not know about (they could never be materialized again).
func (r *Registry) Serialize(a Action) (Record, error) {
	rec := a.Record()
	if !r.Known(rec.Type) {
		return Record{}, &MalformedRecordError{Type: rec.Type, Reason: "serialize: unregistered type id"}
	}
	if rec.Args == nil {
		rec.Args = map[string]any{}
	}
	return rec, nil
}

// Materialize rebuilds an action from a record. Injected args are merged over
// the stored args with precedence: a completed activity's result actions
// receive freshly created context ("activity", "initiator",
// "resulting_entities") this way.
func (r *Registry) Materialize(rec Record, injected map[string]any) (Action, error) {
	f, ok := r.factories[rec.Type]
	if !ok {
		return nil, &MalformedRecordError{Type: rec.Type, Reason: "unknown type id"}
	}
	args := Args(cloneArgs(rec.Args))
	if args == nil {
		args = Args{}
	}
	for k, v := range injected {
		args[k] = v
	}
	a, err := f(args, Args(injected))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// MalformedRecordError reports a record that cannot be turned back into an
// action: unknown type id, or args that do not satisfy the variant's
// required parameters.
type MalformedRecordError struct {
	Type   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("deferred: malformed record %q: %s", e.Type, e.Reason)
}
