// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// Action is the pending action of a view model: what its next commit will
// attempt against the backend.
type Action int

const (
	// ActionNone means nothing can be committed. View models only carry it
	// after a successful delete, so reusing them fails loudly.
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a name such as "update" to its Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return ActionNone, nil
	case "create":
		return ActionCreate, nil
	case "update":
		return ActionUpdate, nil
	case "delete":
		return ActionDelete, nil
	}
	return ActionNone, fmt.Errorf("%w: unknown action %q", ErrContractViolation, s)
}

// Committable reports whether a commit may be attempted for a.
func (a Action) Committable() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}
