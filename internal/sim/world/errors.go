package world

import (
	"errors"
	"fmt"

	"wildern.gg/internal/protocol"
)

// GameError is a rule violation attributable to a player: it carries a stable
// tag plus the parameters the UI layer needs to render it. Game errors never
// corrupt state; the scheduler rolls back the failing savepoint and turns the
// error into a deduplicated notification.
type GameError struct {
	Tag    string
	Params map[string]any
}

func (e *GameError) Error() string {
	return fmt.Sprintf("%s %v", e.Tag, e.Params)
}

func gameErr(tag string, params map[string]any) *GameError {
	if params == nil {
		params = map[string]any{}
	}
	return &GameError{Tag: tag, Params: params}
}

// RetryError means "not possible right now, remain pending": the savepoint is
// rolled back, the intent stays untouched for the next tick, and nobody is
// notified.
type RetryError struct {
	Reason string
}

func (e *RetryError) Error() string {
	return "retry as intent: " + e.Reason
}

func asGameError(err error) (*GameError, bool) {
	var ge *GameError
	ok := errors.As(err, &ge)
	return ge, ok
}

func isRetry(err error) bool {
	var re *RetryError
	return errors.As(err, &re)
}

// Constructors for the rule-violation family.

func errNoMachine(machine string) error {
	return gameErr(protocol.ErrNoMachineForActivity, map[string]any{"machine_name": machine})
}

func errActivityTargetTooFar(target int64) error {
	return gameErr(protocol.ErrActivityTargetTooFarAway, map[string]any{"entity": target})
}

func errNoResource(resource string) error {
	return gameErr(protocol.ErrNoResourceAvailable, map[string]any{"resource_name": resource})
}

func errInvalidLocationType(allowed []string) error {
	return gameErr(protocol.ErrInvalidLocationType, map[string]any{"allowed_types": allowed})
}

func errInvalidTerrainType(required []string) error {
	return gameErr(protocol.ErrInvalidTerrainType, map[string]any{"required_types": required})
}

func errTooManyExistingEntities(typeName string) error {
	return gameErr(protocol.ErrTooManyExistingEntities, map[string]any{"entity_type": typeName})
}

func errNoInputMaterial(group string) error {
	return gameErr(protocol.ErrNoInputMaterials, map[string]any{"item_name": group})
}

func errTooFarFromActivity(activity int64) error {
	return gameErr(protocol.ErrTooFarFromActivity, map[string]any{"activity": activity})
}

func errNoTool(tool string) error {
	return gameErr(protocol.ErrNoToolForActivity, map[string]any{"tool_name": tool})
}

func errTooLowSkill(skill string, required float64) error {
	return gameErr(protocol.ErrTooLowSkill, map[string]any{"skill_name": skill, "required_level": required})
}

func errTooFewParticipants(min int) error {
	return gameErr(protocol.ErrTooFewParticipants, map[string]any{"min_number": min})
}

func errTooManyParticipants(max int) error {
	return gameErr(protocol.ErrTooManyParticipants, map[string]any{"max_number": max})
}

func errEntityTooFarAway(entity int64) error {
	return gameErr(protocol.ErrEntityTooFarAway, map[string]any{"entity": entity})
}

func errEntityNotInInventory(entity int64) error {
	return gameErr(protocol.ErrEntityNotInInventory, map[string]any{"entity": entity})
}

func errInvalidAmount(amount int) error {
	return gameErr(protocol.ErrInvalidAmount, map[string]any{"amount": amount})
}

func errOnlySpecificType(typeName, group string) error {
	return gameErr(protocol.ErrOnlySpecificTypeUsed, map[string]any{"item_name": typeName, "group_name": group})
}

func errItemNotApplicable(item, activity int64) error {
	return gameErr(protocol.ErrItemNotApplicable, map[string]any{"item": item, "activity": activity})
}

func errAlreadyInCombat() error {
	return gameErr(protocol.ErrAlreadyInCombat, nil)
}

func errTargetAlreadyInCombat(target int64) error {
	return gameErr(protocol.ErrTargetAlreadyInCombat, map[string]any{"character": target})
}

func errCannotAttackYourself() error {
	return gameErr(protocol.ErrCannotAttackYourself, nil)
}
