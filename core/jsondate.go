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
	"bytes"
	"encoding/json"
	"regexp"
	"time"
)

// isoDate matches the string form time.Time and JavaScript's
// Date.prototype.toJSON produce.
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)

// MarshalJSON encodes v as JSON. time.Time values are written in RFC 3339
// form so UnmarshalJSON can revive them.
func MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalJSON decodes data into a generic value, turning every string that
// looks like an ISO-8601 timestamp back into a time.Time. Numbers decode as
// float64.
func UnmarshalJSON(data []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return reviveDates(v), nil
}

// UnmarshalAttributes decodes a JSON object into Attributes with dates
// revived.
func UnmarshalAttributes(data []byte) (Attributes, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return Attributes{}, nil
	}
	return Attributes(reviveDates(m).(map[string]any)), nil
}

// Snapshot returns a deep, parse-safe copy of attrs: the result of encoding
// to JSON and decoding again with dates revived.
func Snapshot(attrs Attributes) (map[string]any, error) {
	data, err := MarshalJSON(attrs)
	if err != nil {
		return nil, err
	}
	out, err := UnmarshalAttributes(data)
	if err != nil {
		return nil, err
	}
	return map[string]any(out), nil
}

func reviveDates(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = reviveDates(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = reviveDates(val)
		}
		return t
	case string:
		if !isoDate.MatchString(t) {
			return t
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
		return t
	default:
		return v
	}
}
