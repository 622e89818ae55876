package world

// Savepoints: the storage is an in-memory single-writer world, so the nested
// transaction each intent/activity/combat-round body needs maps to a
// copy-on-write snapshot of the mutable state. One actor's failure can then
// never corrupt another actor's progress already committed this tick.
//
// Pointers into world state must not be held across a savepoint boundary: a
// rollback replaces the state wholesale, so callers re-resolve entities by id
// after withSavepoint returns an error.

func (w *World) withSavepoint(fn func() error) error {
	saved := w.state.clone()
	if err := fn(); err != nil {
		w.state = saved
		return err
	}
	return nil
}

func (s *worldState) clone() *worldState {
	cp := &worldState{
		characters:    make(map[int64]*Character, len(s.characters)),
		items:         make(map[int64]*Item, len(s.items)),
		locations:     make(map[int64]*Location, len(s.locations)),
		deposits:      make(map[int64]*ResourceDeposit, len(s.deposits)),
		activities:    make(map[int64]*Activity, len(s.activities)),
		combats:       make(map[int64]*Combat, len(s.combats)),
		intents:       make(map[int64]*Intent, len(s.intents)),
		tasks:         make(map[int64]*ScheduledTask, len(s.tasks)),
		notifications: make(map[int64]*Notification, len(s.notifications)),
		nextID:        s.nextID,
		gameDate:      s.gameDate,
		rngCursor:     s.rngCursor,
	}
	for id, c := range s.characters {
		cc := *c
		cc.Skills = cloneFloatMap(c.Skills)
		cp.characters[id] = &cc
	}
	for id, it := range s.items {
		ic := *it
		cp.items[id] = &ic
	}
	for id, l := range s.locations {
		lc := *l
		cp.locations[id] = &lc
	}
	for id, d := range s.deposits {
		dc := *d
		cp.deposits[id] = &dc
	}
	for id, a := range s.activities {
		cp.activities[id] = a.clone()
	}
	for id, c := range s.combats {
		cp.combats[id] = c.clone()
	}
	for id, in := range s.intents {
		cp.intents[id] = in.clone()
	}
	for id, t := range s.tasks {
		tc := *t
		tc.Process = t.Process.Clone()
		cp.tasks[id] = &tc
	}
	for id, n := range s.notifications {
		cp.notifications[id] = n.clone()
	}
	return cp
}
