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
	"errors"
	"fmt"
)

var (
	// ErrConcurrency matches every ConcurrencyError. Use errors.Is to detect a
	// lost compare-and-swap and retry with a freshly fetched view model.
	ErrConcurrency = errors.New("concurrency conflict")

	// ErrContractViolation indicates caller misuse, such as committing a view
	// model with no pending action. It is never worth retrying.
	ErrContractViolation = errors.New("contract violation")

	// ErrPermission is returned by every mutation made through a read-only
	// repository or a view model obtained from one.
	ErrPermission = errors.New("this is a read instance, mutation is not allowed")

	// ErrNotConnected indicates an operation was issued to a backend that has
	// no open session.
	ErrNotConnected = errors.New("backend not connected")
)

// ConcurrencyError reports that a commit lost the compare-and-swap on the
// concurrency token, or that a create collided with an existing id.
type ConcurrencyError struct {
	Collection string
	ID         string
	Action     Action
}

// NewConcurrencyError returns a *ConcurrencyError for the given record.
func NewConcurrencyError(collection, id string, action Action) error {
	return &ConcurrencyError{Collection: collection, ID: id, Action: action}
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s of %s/%s: %s", e.Action, e.Collection, e.ID, ErrConcurrency)
}

// Is makes errors.Is(err, ErrConcurrency) true for any ConcurrencyError.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

// IsConcurrency reports whether err is or wraps a ConcurrencyError.
func IsConcurrency(err error) bool {
	return errors.Is(err, ErrConcurrency)
}

// ConnectionError wraps a failure to establish a backend session.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s backend: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// BackendError wraps a native storage failure that is neither a conflict
// nor a connection problem.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapBackend wraps err as a *BackendError unless it is nil or already
// carries a meaning callers can act on (conflict, contract violation,
// missing connection).
func WrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConcurrency) || errors.Is(err, ErrContractViolation) || errors.Is(err, ErrNotConnected) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
