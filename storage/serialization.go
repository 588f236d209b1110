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

	"github.com/mus-format/mus-go/ord"
)

// MarshalEnvelope serializes a stored record for key-value backends: the
// concurrency token followed by the JSON document. Keeping the token
// outside the document lets a compare-and-swap read it without decoding
// the body.
func MarshalEnvelope(token string, body []byte) []byte {
	doc := string(body)
	buf := make([]byte, ord.String.Size(token)+ord.String.Size(doc))
	n := ord.String.Marshal(token, buf)
	ord.String.Marshal(doc, buf[n:])
	return buf
}

// UnmarshalEnvelope deserializes bytes written by MarshalEnvelope.
func UnmarshalEnvelope(data []byte) (token string, body []byte, err error) {
	token, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: token: %v", ErrSerializationFailed, err)
	}
	doc, m, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return "", nil, fmt.Errorf("%w: body: %v", ErrSerializationFailed, err)
	}
	if n+m != len(data) {
		return "", nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n-m)
	}
	return token, []byte(doc), nil
}

// UnmarshalEnvelopeRecord deserializes an envelope and decodes its body.
func UnmarshalEnvelopeRecord(data []byte) (*Record, error) {
	token, body, err := UnmarshalEnvelope(data)
	if err != nil {
		return nil, err
	}
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	rec.Token = token
	return rec, nil
}
