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
	"context"

	"github.com/tomoncle/memberstore/persistence"
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Persistable lets an entity decide whether Save inserts or updates it.
// Entities that do not implement it are new while their primary key is zero.
type Persistable interface {
	IsNew() bool
}

// CrudRepository defines the basic operations on an entity type.
type CrudRepository[T any] interface {
	Save(ctx context.Context, entity *T) (*T, error)
	SaveAll(ctx context.Context, entities ...*T) ([]*T, error)
	FindByID(ctx context.Context, id any, opts ...QueryOption) (*T, error)
	ExistsByID(ctx context.Context, id any) (bool, error)
	FindAll(ctx context.Context, sort types.Sort) ([]*T, error)
	FindAllByIDs(ctx context.Context, ids ...any) ([]*T, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, entity *T) error
	DeleteByID(ctx context.Context, id any) error
	DeleteAll(ctx context.Context) (int64, error)
}

// PagingRepository returns pages, which carry a total count, and slices,
// which only know whether a next slice exists.
type PagingRepository[T any] interface {
	FindPage(ctx context.Context, spec Specification, pageable types.PageRequest, opts ...QueryOption) (types.Page[*T], error)
	FindSlice(ctx context.Context, spec Specification, pageable types.PageRequest, opts ...QueryOption) (types.Slice[*T], error)
}

// SpecificationExecutor runs queries built from specifications.
type SpecificationExecutor[T any] interface {
	FindOne(ctx context.Context, spec Specification, opts ...QueryOption) (*T, error)
	FindAllBySpec(ctx context.Context, spec Specification, sort types.Sort, opts ...QueryOption) ([]*T, error)
	CountBySpec(ctx context.Context, spec Specification) (int64, error)
	ExistsBySpec(ctx context.Context, spec Specification) (bool, error)
}

// QueryByExampleExecutor runs queries matching a probe entity.
type QueryByExampleExecutor[T any] interface {
	FindAllByExample(ctx context.Context, example Example[T], sort types.Sort) ([]*T, error)
	FindOneByExample(ctx context.Context, example Example[T]) (*T, error)
	CountByExample(ctx context.Context, example Example[T]) (int64, error)
}

// Repository combines every executor with named queries, set-based
// updates, upsert, transactions and access to the Bun query builders.
type Repository[T any] interface {
	CrudRepository[T]
	PagingRepository[T]
	SpecificationExecutor[T]
	QueryByExampleExecutor[T]

	FindByNamedQuery(ctx context.Context, name string, args ...any) ([]*T, error)
	UpdateWhere(ctx context.Context, set *types.QueryFilter, where *types.QueryFilter) (int64, error)
	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error

	WithTx(tx bun.Tx) Repository[T]
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error
	PersistenceContext() *persistence.Context

	DB() bun.IDB
	Table() *schema.Table
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
