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

// EventType names a repository lifecycle event.
type EventType string

const (
	EventConnect    EventType = "connect"
	EventDisconnect EventType = "disconnect"
)

// Event is delivered to subscribers after a lifecycle transition.
type Event struct {
	Type       EventType
	Repository *Repository
}

// Subscribe registers fn for every lifecycle event of the session. Listeners
// run synchronously on the goroutine that caused the transition. The
// returned function removes the listener.
func (r *Repository) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Repository) emit(t EventType) {
	r.listenersMu.Lock()
	fns := make([]func(Event), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenersMu.Unlock()

	ev := Event{Type: t, Repository: r}
	for _, fn := range fns {
		fn(ev)
	}
}
