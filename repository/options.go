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
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type LockMode int

const (
	LockNone LockMode = iota
	// LockPessimisticRead takes a shared row lock.
	LockPessimisticRead
	// LockPessimisticWrite takes an exclusive row lock, SELECT ... FOR UPDATE.
	LockPessimisticWrite
)

type queryOptions struct {
	lock      LockMode
	readOnly  bool
	relations []string
}

// QueryOption tunes how a finder loads its entities.
type QueryOption func(*queryOptions)

// WithLock locks the selected rows until the surrounding transaction ends.
// SQLite has no row locks and ignores it.
func WithLock(mode LockMode) QueryOption {
	return func(o *queryOptions) { o.lock = mode }
}

// ReadOnly loads entities that the persistence context never dirty-checks.
func ReadOnly() QueryOption {
	return func(o *queryOptions) { o.readOnly = true }
}

// WithRelations eagerly joins or loads the named relations in the same call.
func WithRelations(names ...string) QueryOption {
	return func(o *queryOptions) { o.relations = append(o.relations, names...) }
}

func newQueryOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o queryOptions) apply(q *bun.SelectQuery, name dialect.Name) *bun.SelectQuery {
	for _, rel := range o.relations {
		q = q.Relation(rel)
	}
	switch o.lock {
	case LockPessimisticWrite:
		if name != dialect.SQLite {
			q = q.For("UPDATE")
		}
	case LockPessimisticRead:
		if name == dialect.PG || name == dialect.MySQL {
			q = q.For("SHARE")
		}
	}
	return q
}
