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


// Package query holds the backend-agnostic filter and paging options
// accepted by Repository.Find, and an in-process evaluator for them.
//
// A Query is a Mongo-style map. Plain values match by equality (a slice
// field matches when any element is equal), nested maps may be addressed
// with dotted paths, and per-field operator maps support $eq, $ne, $gt,
// $gte, $lt, $lte, $in, $nin, $regex (with $options), and $exists.
// Top-level $and, $or and $nor combine sub-queries.
//
//	q := query.Query{
//	    "age":  query.Query{"$gte": 18},
//	    "$or":  []any{query.Query{"role": "admin"}, query.Query{"role": "owner"}},
//	}
//
// Operators the evaluator does not know are reported as ErrUnsupported
// instead of silently matching nothing.
package query
