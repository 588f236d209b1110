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


package storage

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/viewstore/core"
)

// Write is the storage operation a commit resolves to once its
// precondition holds.
type Write int

const (
	// WriteNothing means the commit succeeds without touching storage.
	WriteNothing Write = iota
	// WritePut stores the record with a fresh token.
	WritePut
	// WriteDelete removes the stored record.
	WriteDelete
)

// NewToken returns a fresh concurrency token. Tokens are random UUIDs, so
// two back-to-back commits never produce the same value regardless of
// clock resolution.
func NewToken() string {
	return uuid.NewString()
}

// NewID returns a random, collision-resistant record id.
func NewID() string {
	return uuid.NewString()
}

// ValidateCommit rejects commits that no backend should see.
func ValidateCommit(collection, id string, action core.Action) error {
	if collection == "" {
		return ErrCollectionRequired
	}
	if id == "" {
		return ErrIDRequired
	}
	if !action.Committable() {
		return fmt.Errorf("%w: cannot commit pending action %s", core.ErrContractViolation, action)
	}
	return nil
}

// CheckPrecondition decides the outcome of committing action for id, given
// the currently stored record (nil when absent) and the token the caller
// read. Every adapter runs it inside whatever atomic section its engine
// offers, so the compare-and-swap rules are identical across backends:
//
//   - create: conflicts when the record exists.
//   - update: applies when the stored token equals priorToken. With no
//     prior token this is an insert-if-absent; with one, a vanished record
//     is a conflict too.
//   - delete: an absent record is already deleted and succeeds; a present
//     record is removed only when its token equals priorToken.
func CheckPrecondition(collection, id string, action core.Action, existing *Record, priorToken string) (Write, error) {
	conflict := core.NewConcurrencyError(collection, id, action)

	switch action {
	case core.ActionCreate:
		if existing != nil {
			return WriteNothing, conflict
		}
		return WritePut, nil
	case core.ActionUpdate:
		if existing == nil {
			if priorToken != "" {
				return WriteNothing, conflict
			}
			return WritePut, nil
		}
		if existing.Token != priorToken {
			return WriteNothing, conflict
		}
		return WritePut, nil
	case core.ActionDelete:
		if existing == nil {
			return WriteNothing, nil
		}
		if existing.Token != priorToken {
			return WriteNothing, conflict
		}
		return WriteDelete, nil
	default:
		return WriteNothing, fmt.Errorf("%w: cannot commit pending action %s", core.ErrContractViolation, action)
	}
}

// Stamp returns a copy of attrs prepared for storage: IDField set to id and
// TokenField set to a fresh token, which is also returned.
func Stamp(id string, attrs core.Attributes) (string, core.Attributes) {
	token := NewToken()
	stamped := attrs.Clone()
	stamped[IDField] = id
	stamped[TokenField] = token
	return token, stamped
}
