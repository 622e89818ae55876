package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the balance constants the simulation reads every tick. All
// game math goes through here so a world can be rebalanced without a rebuild.
type Tuning struct {
	// Process intervals, in game seconds.
	WorkIntervalSec       int64 `yaml:"work_interval_sec"`
	CombatIntervalSec     int64 `yaml:"combat_interval_sec"`
	CombatInitialDelaySec int64 `yaml:"combat_initial_delay_sec"`
	DecayIntervalSec      int64 `yaml:"decay_interval_sec"`

	// Activity progress.
	BaseWorkerProgress float64 `yaml:"base_worker_progress"`

	// Combat.
	BaseHitDamage       float64 `yaml:"base_hit_damage"`
	OffensiveDamageMult float64 `yaml:"offensive_damage_mult"`
	DefensiveDamageDiv  float64 `yaml:"defensive_damage_div"`
	RetreatChance       float64 `yaml:"retreat_chance"`
	DamageToDefeat      float64 `yaml:"damage_to_defeat"`

	// Decay.
	DailyStackableDecay float64 `yaml:"daily_stackable_decay"`

	// Server operation.
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		WorkIntervalSec:       600,
		CombatIntervalSec:     30,
		CombatInitialDelaySec: 3,
		DecayIntervalSec:      86400,
		BaseWorkerProgress:    5.0,
		BaseHitDamage:         0.1,
		OffensiveDamageMult:   1.5,
		DefensiveDamageDiv:    2.0,
		RetreatChance:         0.2,
		DamageToDefeat:        0.5,
		DailyStackableDecay:   0.01,
		SnapshotEveryTicks:    100,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
