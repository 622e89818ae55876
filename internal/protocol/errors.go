package protocol

// Stable error tags carried by game-rule failures. Tags (with their params)
// are what the UI layer translates; changing one silently breaks rendering of
// persisted notifications.
const (
	// Shared activity requirements.
	ErrNoMachineForActivity     = "error_no_machine_for_activity"
	ErrActivityTargetTooFarAway = "error_activity_target_too_far_away"
	ErrNoResourceAvailable      = "error_no_resource_available"
	ErrInvalidLocationType      = "error_invalid_location_type"
	ErrInvalidTerrainType       = "error_invalid_terrain_type"
	ErrTooManyExistingEntities  = "error_too_many_existing_entities"
	ErrNoInputMaterials         = "error_no_input_materials"

	// Per-worker requirements.
	ErrTooFarFromActivity = "error_too_far_from_activity"
	ErrNoToolForActivity  = "error_no_tool_for_activity"
	ErrTooLowSkill        = "error_too_low_skill"

	// Participant bounds.
	ErrTooFewParticipants  = "error_too_few_participants"
	ErrTooManyParticipants = "error_too_many_participants"

	// Inventory / movement.
	ErrEntityTooFarAway     = "error_entity_too_far_away"
	ErrEntityNotInInventory = "error_entity_not_in_inventory"
	ErrInvalidAmount        = "error_invalid_amount"
	ErrOnlySpecificTypeUsed = "error_only_specific_type_for_group"
	ErrItemNotApplicable    = "error_item_not_applicable_for_activity"

	// Combat.
	ErrAlreadyInCombat       = "error_already_in_combat"
	ErrTargetAlreadyInCombat = "error_target_already_in_combat"
	ErrCannotAttackYourself  = "error_cannot_attack_yourself"
)

var knownTags = map[string]struct{}{
	ErrNoMachineForActivity:     {},
	ErrActivityTargetTooFarAway: {},
	ErrNoResourceAvailable:      {},
	ErrInvalidLocationType:      {},
	ErrInvalidTerrainType:       {},
	ErrTooManyExistingEntities:  {},
	ErrNoInputMaterials:         {},
	ErrTooFarFromActivity:       {},
	ErrNoToolForActivity:        {},
	ErrTooLowSkill:              {},
	ErrTooFewParticipants:       {},
	ErrTooManyParticipants:      {},
	ErrEntityTooFarAway:         {},
	ErrEntityNotInInventory:     {},
	ErrInvalidAmount:            {},
	ErrOnlySpecificTypeUsed:     {},
	ErrItemNotApplicable:        {},
	ErrAlreadyInCombat:          {},
	ErrTargetAlreadyInCombat:    {},
	ErrCannotAttackYourself:     {},
}

func IsKnownTag(tag string) bool {
	if tag == "" {
		return true
	}
	_, ok := knownTags[tag]
	return ok
}
