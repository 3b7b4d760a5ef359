/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
)

// Specification narrows a select query, typically by adding WHERE clauses.
// Column references should be qualified with ?TableAlias to stay unambiguous
// when relations are joined.
type Specification func(q *bun.SelectQuery) *bun.SelectQuery

// Where returns a specification adding a single WHERE clause.
func Where(query string, args ...any) Specification {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(query, args...)
	}
}

// FromFilter adapts a QueryFilter. A nil filter yields a nil specification.
func FromFilter(filter *types.QueryFilter) Specification {
	if filter == nil {
		return nil
	}
	return Where(filter.Schema, filter.Args...)
}

// And combines specifications with AND, skipping nil ones. The result is nil
// when every input is nil.
func And(specs ...Specification) Specification {
	specs = compact(specs)
	if len(specs) == 0 {
		return nil
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, spec := range specs {
			q = spec(q)
		}
		return q
	}
}

// Or combines specifications with OR, each in its own group.
func Or(specs ...Specification) Specification {
	specs = compact(specs)
	if len(specs) == 0 {
		return nil
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, spec := range specs {
				q = q.WhereGroup(" OR ", spec)
			}
			return q
		})
	}
}

func (s Specification) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if s == nil {
		return q
	}
	return s(q)
}

func compact(specs []Specification) []Specification {
	out := specs[:0:0]
	for _, s := range specs {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
