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
	"fmt"

	"github.com/poiesic/viewstore/core"
)

// EncodeAttributes encodes attrs as the JSON document adapters store.
func EncodeAttributes(attrs core.Attributes) ([]byte, error) {
	data, err := core.MarshalJSON(attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// DecodeRecord decodes a JSON document written by EncodeAttributes into a
// Record, reviving dates and reading id and token from their fields.
func DecodeRecord(data []byte) (*Record, error) {
	attrs, err := core.UnmarshalAttributes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return NewRecord(attrs), nil
}

// NewRecord wraps stored attributes in a Record.
func NewRecord(attrs core.Attributes) *Record {
	id, _ := attrs[IDField].(string)
	token, _ := attrs[TokenField].(string)
	return &Record{ID: id, Token: token, Attributes: attrs}
}

// RecordAttributes returns the attributes of r. It is the accessor handed to
// query.Apply by adapters that filter in process.
func RecordAttributes(r *Record) map[string]any {
	return r.Attributes
}
