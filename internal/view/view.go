// Package view holds the screen state machine of the app.
package view

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid view transition")

type State string

const (
	Landing     State = "landing"
	Merge       State = "merge"
	SplitSelect State = "split_select"
	SplitEdit   State = "split_edit"
)

type Action string

const (
	ChooseMerge  Action = "choose_merge"
	ChooseSplit  Action = "choose_split"
	OpenDocument Action = "open_document"
	Back         Action = "back"
	Reset        Action = "reset"
)

var transitions = map[State]map[Action]State{
	Landing:     {ChooseMerge: Merge, ChooseSplit: SplitSelect},
	SplitSelect: {OpenDocument: SplitEdit},
	SplitEdit:   {Back: SplitSelect},
}

// Transition returns the state reached by applying a in s. Reset is allowed
// from anywhere.
func Transition(s State, a Action) (State, error) {
	if a == Reset {
		return Landing, nil
	}
	if next, ok := transitions[s][a]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%s from %s: %w", a, s, ErrInvalidTransition)
}
