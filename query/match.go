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
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/viewstore/core"
)

// Match reports whether doc satisfies q.
func Match(q Query, doc map[string]any) (bool, error) {
	attrs := core.Attributes(doc)
	for _, key := range sortedKeys(q) {
		cond := q[key]
		var ok bool
		var err error
		switch key {
		case "$and":
			ok, err = matchCombined(cond, doc, func(n, total int) bool { return n == total })
		case "$or":
			ok, err = matchCombined(cond, doc, func(n, _ int) bool { return n > 0 })
		case "$nor":
			ok, err = matchCombined(cond, doc, func(n, _ int) bool { return n == 0 })
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("%w: %s", ErrUnsupported, key)
			}
			ok, err = matchField(attrs.Get(key), cond)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCombined(cond any, doc map[string]any, accept func(matched, total int) bool) (bool, error) {
	subs, err := subQueries(cond)
	if err != nil {
		return false, err
	}
	matched := 0
	for _, sub := range subs {
		ok, err := Match(sub, doc)
		if err != nil {
			return false, err
		}
		if ok {
			matched++
		}
	}
	return accept(matched, len(subs)), nil
}

func subQueries(cond any) ([]Query, error) {
	items, ok := toSlice(cond)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: boolean operator needs a non-empty list of queries", ErrInvalidQuery)
	}
	subs := make([]Query, len(items))
	for i, item := range items {
		m, ok := toMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: boolean operator element %d is not a query", ErrInvalidQuery, i)
		}
		subs[i] = Query(m)
	}
	return subs, nil
}

func matchField(value, cond any) (bool, error) {
	ops, ok := operators(cond)
	if !ok {
		return equalsOrContains(value, cond), nil
	}
	for _, op := range sortedKeys(ops) {
		arg := ops[op]
		var matched bool
		switch op {
		case "$eq":
			matched = equalsOrContains(value, arg)
		case "$ne":
			matched = !equalsOrContains(value, arg)
		case "$gt":
			matched = anyCompares(value, arg, func(c int) bool { return c > 0 })
		case "$gte":
			matched = anyCompares(value, arg, func(c int) bool { return c >= 0 })
		case "$lt":
			matched = anyCompares(value, arg, func(c int) bool { return c < 0 })
		case "$lte":
			matched = anyCompares(value, arg, func(c int) bool { return c <= 0 })
		case "$in", "$nin":
			candidates, isList := toSlice(arg)
			if !isList {
				return false, fmt.Errorf("%w: %s needs a list", ErrInvalidQuery, op)
			}
			in := false
			for _, c := range candidates {
				if re, isRe := c.(*regexp.Regexp); isRe {
					in = anyString(value, re.MatchString)
				} else {
					in = equalsOrContains(value, c)
				}
				if in {
					break
				}
			}
			matched = in == (op == "$in")
		case "$regex":
			re, err := compileRegex(arg, ops["$options"])
			if err != nil {
				return false, err
			}
			matched = anyString(value, re.MatchString)
		case "$options":
			if _, hasRegex := ops["$regex"]; !hasRegex {
				return false, fmt.Errorf("%w: $options without $regex", ErrInvalidQuery)
			}
			continue
		case "$exists":
			want, isBool := arg.(bool)
			if !isBool {
				return false, fmt.Errorf("%w: $exists needs a bool", ErrInvalidQuery)
			}
			matched = (value != nil) == want
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupported, op)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// operators returns cond as an operator map when every key is an operator.
func operators(cond any) (map[string]any, bool) {
	m, ok := toMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func compileRegex(arg, options any) (*regexp.Regexp, error) {
	if re, ok := arg.(*regexp.Regexp); ok {
		return re, nil
	}
	pattern, ok := arg.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $regex needs a string pattern", ErrInvalidQuery)
	}
	if flags, _ := options.(string); flags != "" {
		var b strings.Builder
		for _, f := range flags {
			if !strings.ContainsRune("ims", f) {
				return nil, fmt.Errorf("%w: regex option %q", ErrUnsupported, f)
			}
			b.WriteRune(f)
		}
		pattern = "(?" + b.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return re, nil
}

func equalsOrContains(value, want any) bool {
	if equal(value, want) {
		return true
	}
	if list, ok := value.([]any); ok {
		for _, el := range list {
			if equal(el, want) {
				return true
			}
		}
	}
	return false
}

func anyCompares(value, arg any, accept func(int) bool) bool {
	if list, ok := value.([]any); ok {
		for _, el := range list {
			if c, ok := compareSame(el, arg); ok && accept(c) {
				return true
			}
		}
		return false
	}
	c, ok := compareSame(value, arg)
	return ok && accept(c)
}

func anyString(value any, match func(string) bool) bool {
	switch v := value.(type) {
	case string:
		return match(v)
	case []any:
		for _, el := range v {
			if s, ok := el.(string); ok && match(s) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compareSame(a, b); ok {
		return c == 0
	}
	am, aIsMap := toMap(a)
	bm, bIsMap := toMap(b)
	if aIsMap && bIsMap {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !equal(av, bv) {
				return false
			}
		}
		return true
	}
	al, aIsList := toSlice(a)
	bl, bIsList := toSlice(b)
	if aIsList && bIsList {
		return slices.EqualFunc(al, bl, equal)
	}
	return reflect.DeepEqual(a, b)
}

// compareSame compares two scalars of the same kind (number, string, bool or
// time). ok is false when the kinds differ or are not scalars.
func compareSame(a, b any) (c int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Query:
		return map[string]any(m), true
	case core.Attributes:
		return map[string]any(m), true
	}
	return nil, false
}

func toSlice(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
