package deferred

import "fmt"

// Args is the merged stored+injected argument set handed to a factory.
// Accessors tolerate the numeric widening JSON round-trips introduce
// (int64 args come back as float64 after a snapshot resume).
type Args map[string]any

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// ID reads an entity identifier argument.
func (a Args) ID(key string) (int64, error) {
	v, ok := a[key]
	if !ok {
		return 0, missing(key)
	}
	id, ok := asInt64(v)
	if !ok {
		return 0, badType(key, "entity id", v)
	}
	return id, nil
}

// OptionalID reads an entity identifier that may be absent or null.
func (a Args) OptionalID(key string) (int64, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	id, ok := asInt64(v)
	if !ok {
		return 0, false, badType(key, "entity id", v)
	}
	return id, true, nil
}

func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", missing(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", badType(key, "string", v)
	}
	return s, nil
}

func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, missing(key)
	}
	f, ok := asFloat64(v)
	if !ok {
		return 0, badType(key, "number", v)
	}
	return f, nil
}

func (a Args) Int(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, missing(key)
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, badType(key, "integer", v)
	}
	return int(n), nil
}

// IntOr reads an optional integer with a default.
func (a Args) IntOr(key string, def int) (int, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	return a.Int(key)
}

// Record reads a nested serialized action. After a JSON round-trip the nested
// record arrives as a generic map, so both shapes are accepted.
func (a Args) Record(key string) (Record, error) {
	v, ok := a[key]
	if !ok {
		return Record{}, missing(key)
	}
	switch t := v.(type) {
	case Record:
		return t, nil
	case map[string]any:
		typeID, _ := t["type"].(string)
		if typeID == "" {
			return Record{}, badType(key, "record", v)
		}
		args, _ := t["args"].(map[string]any)
		return Record{Type: typeID, Args: args}, nil
	default:
		return Record{}, badType(key, "record", v)
	}
}

func missing(key string) error {
	return &MalformedRecordError{Reason: fmt.Sprintf("missing required arg %q", key)}
}

func badType(key, want string, got any) error {
	return &MalformedRecordError{Reason: fmt.Sprintf("arg %q: want %s, got %T", key, want, got)}
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
