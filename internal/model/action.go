package model

import (
	"errors"
	"fmt"
)

// Action discriminates mutation requests.
type Action string

const (
	ActionCreateImmediateHalt       Action = "create-immediate-halt"
	ActionCreateScheduledHalt       Action = "create-scheduled-halt"
	ActionModifyScheduledHalt       Action = "modify-scheduled-halt"
	ActionCancelScheduledHalt       Action = "cancel-scheduled-halt"
	ActionEditScheduledHalt         Action = "edit-scheduled-halt"
	ActionExtendHalt                Action = "extend-halt"
	ActionRemainedHalt              Action = "remained-halt"
	ActionCreateImmediateResumption Action = "create-immediate-resumption"
	ActionCreateScheduledResumption Action = "create-scheduled-resumption"
	ActionCancelScheduledResumption Action = "cancel-scheduled-resumption"
	ActionProlong5Minutes           Action = "prolong-5-minutes"
	ActionConvertToRegulatory       Action = "convert-to-regulatory"
	ActionModifyHaltDetails         Action = "modify-halt-details"
)

var actions = map[Action]struct{}{
	ActionCreateImmediateHalt:       {},
	ActionCreateScheduledHalt:       {},
	ActionModifyScheduledHalt:       {},
	ActionCancelScheduledHalt:       {},
	ActionEditScheduledHalt:         {},
	ActionExtendHalt:                {},
	ActionRemainedHalt:              {},
	ActionCreateImmediateResumption: {},
	ActionCreateScheduledResumption: {},
	ActionCancelScheduledResumption: {},
	ActionProlong5Minutes:           {},
	ActionConvertToRegulatory:       {},
	ActionModifyHaltDetails:         {},
}

// Valid reports whether a is part of the mutation vocabulary.
func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

// IsCancel reports whether a cancels a scheduled halt.
func (a Action) IsCancel() bool {
	return a == ActionCancelScheduledHalt
}

// Mutation is a state-changing request: a full record payload plus an action.
type Mutation struct {
	HaltRecord
	Action Action `json:"action"`
}

// ErrMissingTarget is returned when a mutation names neither a halt nor a symbol.
var ErrMissingTarget = errors.New("mutation requires haltId or symbol")

// Validate checks the action and that the mutation identifies its target.
func (m Mutation) Validate() error {
	if !m.Action.Valid() {
		return fmt.Errorf("unknown action %q", m.Action)
	}
	if m.HaltID == "" && m.Symbol == "" {
		return ErrMissingTarget
	}
	return nil
}

// Key identifies the logical operation: the action plus haltId, or symbol
// when no halt exists yet.
func (m Mutation) Key() string {
	target := m.HaltID
	if target == "" {
		target = m.Symbol
	}
	return string(m.Action) + "|" + target
}
