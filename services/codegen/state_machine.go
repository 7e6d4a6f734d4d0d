// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"fmt"
	"sync"
)

// =============================================================================
// RUN LIFECYCLE
// =============================================================================

// State is a stage in the generation run lifecycle.
type State string

const (
	StateReceived       State = "received"
	StatePrompting      State = "prompting"
	StateGenerating     State = "generating"
	StateTestGenerating State = "test_generating"
	StateExecuting      State = "executing"
	StateAssembling     State = "assembling"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// AllStates returns every lifecycle state.
func AllStates() []State {
	return []State{
		StateReceived, StatePrompting, StateGenerating, StateTestGenerating,
		StateExecuting, StateAssembling, StateCompleted, StateFailed,
	}
}

// IsTerminal reports whether the state ends a run.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsActive reports whether the state is mid-run.
func (s State) IsActive() bool {
	return !s.IsTerminal()
}

// StateMachine enforces the legal transitions of a single run. Skipping
// forward over optional stages (test generation, execution) is legal;
// moving backward is not, and failed may be entered from any active state.
//
// Thread Safety: safe for concurrent use; each run owns one instance.
type StateMachine struct {
	mu          sync.Mutex
	current     State
	transitions map[State]map[State]bool
	history     []State
}

// NewStateMachine builds a run lifecycle starting at received.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		current:     StateReceived,
		transitions: make(map[State]map[State]bool),
		history:     []State{StateReceived},
	}

	sm.addTransition(StateReceived, StatePrompting)
	sm.addTransition(StatePrompting, StateGenerating)
	sm.addTransition(StateGenerating, StateTestGenerating)
	sm.addTransition(StateTestGenerating, StateExecuting)
	sm.addTransition(StateExecuting, StateAssembling)
	sm.addTransition(StateAssembling, StateCompleted)

	// Optional stages can be skipped but never revisited.
	sm.addTransition(StateGenerating, StateExecuting)
	sm.addTransition(StateGenerating, StateAssembling)
	sm.addTransition(StateTestGenerating, StateAssembling)

	// Any active state can fail.
	for _, s := range AllStates() {
		if s.IsActive() {
			sm.addTransition(s, StateFailed)
		}
	}
	return sm
}

func (sm *StateMachine) addTransition(from, to State) {
	if sm.transitions[from] == nil {
		sm.transitions[from] = make(map[State]bool)
	}
	sm.transitions[from][to] = true
}

// Current returns the present state.
func (sm *StateMachine) Current() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// History returns the ordered states visited so far.
func (sm *StateMachine) History() []State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]State, len(sm.history))
	copy(out, sm.history)
	return out
}

// CanTransition reports whether moving to target is legal right now.
func (sm *StateMachine) CanTransition(target State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.transitions[sm.current][target]
}

// Transition moves the run to target or returns ErrInvalidTransition.
func (sm *StateMachine) Transition(target State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.transitions[sm.current][target] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sm.current, target)
	}
	sm.current = target
	sm.history = append(sm.history, target)
	return nil
}
