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


package badger

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Key prefixes for different data types
const (
	recordPrefix   = "vmrec"
	sequencePrefix = "vmseq"
)

// collectionTag hashes a collection name to a fixed-width hex tag, so no
// collection's key prefix is a prefix of another's.
func collectionTag(collection string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(collection))
	return hex.EncodeToString(h.Sum(nil))
}

// makeCollectionPrefix generates the prefix shared by all records of a
// collection.
// Format: prefix:tag:
func makeCollectionPrefix(collection string) []byte {
	return []byte(recordPrefix + ":" + collectionTag(collection) + ":")
}

// makeRecordKey generates a key for a record by collection and ID.
// Format: prefix:tag:id
func makeRecordKey(collection, id string) []byte {
	prefix := makeCollectionPrefix(collection)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}

// makeSequenceKey generates the key of a collection's ID sequence.
func makeSequenceKey(collection string) []byte {
	return []byte(sequencePrefix + ":" + collectionTag(collection))
}
