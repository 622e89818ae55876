package world

import (
	"math"
	"sort"
)

// Requirements is the typed prerequisite specification of an activity. Every
// category is optional; absent categories are skipped by the progress engine.
type Requirements struct {
	// Shared prerequisites, validated once per tick for the whole group.
	MandatoryMachines  []string              `json:"mandatory_machines,omitempty"`
	OptionalMachines   map[string]float64    `json:"optional_machines,omitempty"`
	Targets            []int64               `json:"targets,omitempty"`
	RequiredResources  []string              `json:"required_resources,omitempty"`
	LocationTypes      []string              `json:"location_types,omitempty"`
	TerrainTypes       []string              `json:"terrain_types,omitempty"`
	ExcludedByEntities map[string]int        `json:"excluded_by_entities,omitempty"`
	Input              map[string]*InputLine `json:"input,omitempty"`

	// Per-worker prerequisites.
	MandatoryTools []string           `json:"mandatory_tools,omitempty"`
	OptionalTools  map[string]float64 `json:"optional_tools,omitempty"`
	Skills         map[string]float64 `json:"skills,omitempty"`

	// Participant bounds (0 = unbounded).
	MinWorkers int `json:"min_workers,omitempty"`
	MaxWorkers int `json:"max_workers,omitempty"`
}

// InputLine tracks one material requirement. Invariant: Left summed with the
// amount already consumed equals Needed; UsedType locks the line to the first
// concrete type committed until the line returns to fully unfulfilled.
type InputLine struct {
	Needed   float64 `json:"needed"`
	Left     float64 `json:"left"`
	UsedType string  `json:"used_type,omitempty"`
	Quality  float64 `json:"quality,omitempty"`
}

func (r *Requirements) Clone() *Requirements {
	if r == nil {
		return nil
	}
	cp := *r
	cp.MandatoryMachines = append([]string(nil), r.MandatoryMachines...)
	cp.Targets = append([]int64(nil), r.Targets...)
	cp.RequiredResources = append([]string(nil), r.RequiredResources...)
	cp.LocationTypes = append([]string(nil), r.LocationTypes...)
	cp.TerrainTypes = append([]string(nil), r.TerrainTypes...)
	cp.MandatoryTools = append([]string(nil), r.MandatoryTools...)
	cp.OptionalMachines = cloneFloatMap(r.OptionalMachines)
	cp.OptionalTools = cloneFloatMap(r.OptionalTools)
	cp.Skills = cloneFloatMap(r.Skills)
	if r.ExcludedByEntities != nil {
		cp.ExcludedByEntities = make(map[string]int, len(r.ExcludedByEntities))
		for k, v := range r.ExcludedByEntities {
			cp.ExcludedByEntities[k] = v
		}
	}
	if r.Input != nil {
		cp.Input = make(map[string]*InputLine, len(r.Input))
		for k, v := range r.Input {
			line := *v
			cp.Input[k] = &line
		}
	}
	return &cp
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	cp := make(map[string]float64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// inputGroupNames returns the input line names in deterministic order.
func (r *Requirements) inputGroupNames() []string {
	names := make([]string, 0, len(r.Input))
	for name := range r.Input {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// uncommitInput gives back `amount` units of the concrete type to every line
// locked to it, in deterministic order. This is the inverse of the commit
// AddEntityToActivityAction performs: Left grows back (never past Needed) and
// the UsedType lock clears once a line is fully unfulfilled again, so any
// member type may satisfy it from scratch.
func (w *World) uncommitInput(req *Requirements, typeName string, amount float64) {
	for _, name := range req.inputGroupNames() {
		line := req.Input[name]
		if line.UsedType != typeName {
			continue
		}
		mult := w.quantityEfficiency(name, typeName)
		if mult <= 0 {
			continue
		}
		unitsUsed := line.Needed - line.Left
		unitsToRemove := math.Ceil(amount * mult)
		giveBack := math.Min(unitsToRemove, unitsUsed)
		line.Left += giveBack
		amount -= math.Min(giveBack/mult, amount)

		if line.Needed == line.Left {
			line.UsedType = ""
		}
		if amount <= 0 {
			return
		}
	}
}
