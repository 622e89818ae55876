package world

import (
	"wildern.gg/internal/sim/deferred"
	"wildern.gg/internal/sim/tuning"
)

type Config struct {
	ID   string
	Seed int64
}

// Hooks are the explicit callbacks the simulation raises instead of a global
// event registry. All are optional.
type Hooks struct {
	// OnNotification fires whenever a failure notification is created or its
	// counter bumped.
	OnNotification func(n Notification)
	// OnTick fires after every completed scheduler pass.
	OnTick func(s TickSummary)
	// CanSee overrides combat visibility. Default: same root location.
	CanSee func(w *World, viewer, target int64) bool
}

// World is a single-threaded authoritative simulation. All state must be
// accessed only from the goroutine driving the tick clock.
type World struct {
	cfg   Config
	tune  tuning.Tuning
	hooks Hooks

	reg *deferred.Registry

	// Immutable catalog data; not part of savepoints or clones.
	types  map[string]*EntityType
	groups map[string]*TypeGroup

	state *worldState
}

// worldState is the mutable persisted portion of the world: everything a
// savepoint must be able to roll back and a snapshot must capture.
type worldState struct {
	characters    map[int64]*Character
	items         map[int64]*Item
	locations     map[int64]*Location
	deposits      map[int64]*ResourceDeposit
	activities    map[int64]*Activity
	combats       map[int64]*Combat
	intents       map[int64]*Intent
	tasks         map[int64]*ScheduledTask
	notifications map[int64]*Notification

	nextID    int64
	gameDate  int64
	rngCursor int64
}

func newWorldState() *worldState {
	return &worldState{
		characters:    map[int64]*Character{},
		items:         map[int64]*Item{},
		locations:     map[int64]*Location{},
		deposits:      map[int64]*ResourceDeposit{},
		activities:    map[int64]*Activity{},
		combats:       map[int64]*Combat{},
		intents:       map[int64]*Intent{},
		tasks:         map[int64]*ScheduledTask{},
		notifications: map[int64]*Notification{},
	}
}

func New(cfg Config, tune tuning.Tuning, hooks Hooks) *World {
	w := &World{
		cfg:    cfg,
		tune:   tune,
		hooks:  hooks,
		types:  map[string]*EntityType{},
		groups: map[string]*TypeGroup{},
		state:  newWorldState(),
	}
	w.RegisterType(EntityType{Name: TypeCharacter})
	w.RegisterType(EntityType{Name: TypeActivity})
	w.RegisterType(EntityType{Name: TypeCombat})
	w.RegisterType(EntityType{Name: TypeDeposit})
	w.reg = deferred.NewRegistry()
	w.registerActions()
	return w
}

func (w *World) Config() Config           { return w.cfg }
func (w *World) Tuning() tuning.Tuning    { return w.tune }
func (w *World) GameDate() int64          { return w.state.gameDate }
func (w *World) SetGameDate(now int64)    { w.state.gameDate = now }
func (w *World) Registry() *deferred.Registry { return w.reg }

func (w *World) nextID() int64 {
	w.state.nextID++
	return w.state.nextID
}

// roll returns a deterministic uniform sample in [0,1). The cursor lives in
// world state, so savepoint rollbacks and snapshot resumes replay identical
// sequences.
func (w *World) roll() float64 {
	w.state.rngCursor++
	h := splitmix64(uint64(w.cfg.Seed) ^ uint64(w.state.rngCursor)*0x9e3779b97f4a7c15)
	return float64(h>>11) / float64(uint64(1)<<53)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// canSee applies the injected visibility range, defaulting to the
// same-root-location range.
func (w *World) canSee(viewer, target int64) bool {
	if w.hooks.CanSee != nil {
		return w.hooks.CanSee(w, viewer, target)
	}
	return w.sameLocation(viewer, target)
}
