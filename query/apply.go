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


package query

import (
	"slices"

	"github.com/poiesic/viewstore/core"
)

// Apply filters items with q, orders them by opts.Sort and then applies
// opts.Skip and opts.Limit. attrs returns the attribute map of an item.
// The result is never nil.
func Apply[T any](items []T, attrs func(T) map[string]any, q Query, opts Options) ([]T, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if len(q) > 0 {
			ok, err := Match(q, attrs(item))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, item)
	}

	if len(opts.Sort) > 0 {
		slices.SortStableFunc(out, func(a, b T) int {
			am, bm := core.Attributes(attrs(a)), core.Attributes(attrs(b))
			for _, f := range opts.Sort {
				if c := Compare(am.Get(f.Field), bm.Get(f.Field)); c != 0 {
					return c * int(f.Direction)
				}
			}
			return 0
		})
	}

	return Page(out, opts.Skip, opts.Limit), nil
}

// Page returns the window of items starting at skip holding at most limit
// elements. A zero limit means no limit.
func Page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return items[:0]
	}
	if skip > 0 {
		items = items[skip:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Compare orders two attribute values for sorting. Values of different kinds
// order as nil < numbers < strings < maps < lists < booleans < times, the
// same order MongoDB uses.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if c, ok := compareSame(a, b); ok {
		return c
	}
	return 0
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case bool:
		return 5
	}
	if _, ok := toMap(v); ok {
		return 3
	}
	if _, ok := toSlice(v); ok {
		return 4
	}
	return 6
}
