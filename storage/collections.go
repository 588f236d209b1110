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
	"context"
	"slices"
	"sync"
)

// Collections records the collection names touched through one or more
// backend sessions and which of them each session has provisioned. It is
// owned by whoever owns the sessions and handed to the adapters explicitly,
// so isolated backends in one process never share it.
//
// Touched names are shared by every adapter using the registry.
// Provisioning is tracked per owner, usually the adapter itself.
//
// The zero value is ready for use.
type Collections struct {
	mu    sync.Mutex
	names []string
	seen  map[string]struct{}
	slots map[slotKey]*provisionSlot
}

type slotKey struct {
	owner any
	name  string
}

type provisionSlot struct {
	mu   sync.Mutex
	done bool
}

// NewCollections returns an empty registry.
func NewCollections() *Collections {
	return &Collections{}
}

// Touch adds name to the registry if it is not already present.
func (c *Collections) Touch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked(name)
}

// Names returns the touched collection names in the order they were first
// seen.
func (c *Collections) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.names)
}

// Contains reports whether name has been touched.
func (c *Collections) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[name]
	return ok
}

// Provision touches name and runs fn for it unless an earlier call by the
// same owner already succeeded. Concurrent callers for the same owner and
// name wait for the one in flight and then observe its result; a failed fn
// leaves the name unprovisioned so the next call tries again. owner must be
// comparable.
func (c *Collections) Provision(ctx context.Context, owner any, name string, fn func(ctx context.Context) error) error {
	s := c.slot(owner, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	s.done = true
	return nil
}

// Provisioned reports whether owner has provisioned name successfully.
func (c *Collections) Provisioned(owner any, name string) bool {
	c.mu.Lock()
	s, ok := c.slots[slotKey{owner: owner, name: name}]
	c.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// ResetProvisioning forgets which collections owner provisioned while
// keeping the touched names. Adapters call it when their session ends and
// the provisioned state may not survive it. Other owners are unaffected.
func (c *Collections) ResetProvisioning(owner any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.slots {
		if key.owner == owner {
			delete(c.slots, key)
		}
	}
}

func (c *Collections) slot(owner any, name string) *provisionSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked(name)
	if c.slots == nil {
		c.slots = make(map[slotKey]*provisionSlot)
	}
	key := slotKey{owner: owner, name: name}
	s, ok := c.slots[key]
	if !ok {
		s = &provisionSlot{}
		c.slots[key] = s
	}
	return s
}

func (c *Collections) touchLocked(name string) {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, ok := c.seen[name]; !ok {
		c.seen[name] = struct{}{}
		c.names = append(c.names, name)
	}
}
