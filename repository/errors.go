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


package repository

import (
	"fmt"

	"github.com/poiesic/viewstore/core"
)

var (
	// ErrAdapterRequired is returned when a repository is created without a
	// storage adapter.
	ErrAdapterRequired = fmt.Errorf("%w: storage adapter required", core.ErrContractViolation)

	// ErrViewModelRequired is returned when a nil view model is committed.
	ErrViewModelRequired = fmt.Errorf("%w: view model required", core.ErrContractViolation)

	// ErrDuplicateViewModel is returned when a batch holds the same view
	// model more than once.
	ErrDuplicateViewModel = fmt.Errorf("%w: view model appears twice in batch", core.ErrContractViolation)
)
