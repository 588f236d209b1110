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
	"errors"
	"fmt"

	"github.com/poiesic/viewstore/core"
)

var (
	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrCollectionRequired indicates an operation was issued without a
	// collection name.
	ErrCollectionRequired = fmt.Errorf("%w: collection name required", core.ErrContractViolation)

	// ErrIDRequired indicates a commit was issued without a record id.
	ErrIDRequired = fmt.Errorf("%w: record id required", core.ErrContractViolation)
)
