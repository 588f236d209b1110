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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupported indicates a query operator the evaluator does not know.
	ErrUnsupported = errors.New("unsupported query operator")

	// ErrInvalidQuery indicates a malformed query or options value.
	ErrInvalidQuery = errors.New("invalid query")
)

// Query is a filter over record attributes. A nil or empty Query matches
// every record.
type Query map[string]any

// Direction is a sort direction.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// SortField orders results by one attribute path.
type SortField struct {
	Field     string
	Direction Direction
}

// Options controls paging and ordering of find results. A zero Limit means
// no limit.
type Options struct {
	Skip  int
	Limit int
	Sort  []SortField
}

// Validate checks that the paging values are not negative and every sort
// field has a known direction.
func (o Options) Validate() error {
	if o.Skip < 0 || o.Limit < 0 {
		return fmt.Errorf("%w: skip and limit must not be negative", ErrInvalidQuery)
	}
	for _, f := range o.Sort {
		if f.Field == "" {
			return fmt.Errorf("%w: empty sort field", ErrInvalidQuery)
		}
		if f.Direction != Ascending && f.Direction != Descending {
			return fmt.Errorf("%w: sort direction for %q must be 1 or -1", ErrInvalidQuery, f.Field)
		}
	}
	return nil
}

// ParseSort parses a sort order written as "field:1,other:-1".
// A field without a direction sorts ascending.
func ParseSort(s string) ([]SortField, error) {
	var fields []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, found := strings.Cut(part, ":")
		f := SortField{Field: strings.TrimSpace(name), Direction: Ascending}
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(dir))
			if err != nil {
				return nil, fmt.Errorf("%w: sort direction %q", ErrInvalidQuery, dir)
			}
			f.Direction = Direction(n)
		}
		fields = append(fields, f)
	}
	opts := Options{Sort: fields}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return fields, nil
}

// SortPairs builds sort fields from [field, direction] pairs.
func SortPairs(pairs ...[2]any) ([]SortField, error) {
	fields := make([]SortField, 0, len(pairs))
	for _, p := range pairs {
		name, ok := p[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: sort field must be a string", ErrInvalidQuery)
		}
		dir, ok := toFloat(p[1])
		if !ok {
			if s, isStr := p[1].(string); isStr && strings.EqualFold(s, "desc") {
				dir = -1
			} else if isStr && strings.EqualFold(s, "asc") {
				dir = 1
			} else {
				return nil, fmt.Errorf("%w: sort direction for %q", ErrInvalidQuery, name)
			}
		}
		fields = append(fields, SortField{Field: name, Direction: Direction(int(dir))})
	}
	if err := (Options{Sort: fields}).Validate(); err != nil {
		return nil, err
	}
	return fields, nil
}
