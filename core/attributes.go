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
	"strconv"
	"strings"
	"time"
)

// Attributes is the schemaless field bag of a view model. Values are JSON
// shaped: nil, bool, numbers, string, time.Time, []any and map[string]any
// (or nested Attributes). Paths address nested values with dots, and a
// numeric segment indexes into a slice: "address.lines.0".
type Attributes map[string]any

// Get returns the value at path, or nil when any segment is missing.
func (a Attributes) Get(path string) any {
	var node any = map[string]any(a)
	for _, part := range strings.Split(path, ".") {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[part]
			if !ok {
				return nil
			}
			node = v
		case Attributes:
			v, ok := n[part]
			if !ok {
				return nil
			}
			node = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil
			}
			node = n[idx]
		default:
			return nil
		}
	}
	return node
}

// Has reports whether the value at path is present and not nil.
func (a Attributes) Has(path string) bool {
	return a.Get(path) != nil
}

// Set stores value at path, creating intermediate maps as needed. A
// numeric segment that lands on a slice writes that element, growing the
// slice with nils when the index is past its end.
func (a Attributes) Set(path string, value any) {
	setPath(map[string]any(a), strings.Split(path, "."), value)
}

// Merge sets every entry of values, treating each key as a path.
func (a Attributes) Merge(values map[string]any) {
	for path, v := range values {
		a.Set(path, v)
	}
}

// Delete removes the value at path. Missing paths are ignored.
func (a Attributes) Delete(path string) {
	parts := strings.Split(path, ".")
	parent := map[string]any(a)
	if len(parts) > 1 {
		m, ok := asMap(a.Get(strings.Join(parts[:len(parts)-1], ".")))
		if !ok {
			return
		}
		parent = m
	}
	delete(parent, parts[len(parts)-1])
}

// Clone returns a deep copy of a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return Attributes(cloneValue(map[string]any(a)).(map[string]any))
}

func setPath(node any, parts []string, value any) any {
	if len(parts) == 0 {
		return value
	}
	if list, ok := node.([]any); ok {
		if idx, err := strconv.Atoi(parts[0]); err == nil && idx >= 0 {
			for len(list) <= idx {
				list = append(list, nil)
			}
			list[idx] = setPath(list[idx], parts[1:], value)
			return list
		}
	}
	m, ok := asMap(node)
	if !ok {
		m = map[string]any{}
	}
	m[parts[0]] = setPath(m[parts[0]], parts[1:], value)
	return m
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Attributes:
		return map[string]any(m), true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Attributes:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case time.Time:
		return t
	default:
		return v
	}
}
