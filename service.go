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

// Package memberstore offers a generic entity service over the repository
// package, bound to the process-wide database connection.
package memberstore

import (
	"context"
	"sync"

	"github.com/tomoncle/memberstore/database"
	"github.com/tomoncle/memberstore/repository"
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns the entity with id, or nil when there is none.
	Get(ctx context.Context, id any) (*T, error)

	// All returns every entity in sort order.
	All(ctx context.Context, sort types.Sort) ([]*T, error)

	// List returns the entities matching filter. A nil filter matches all.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Page returns one page of the entities matching filter with the total count.
	Page(ctx context.Context, filter *types.QueryFilter, pageable types.PageRequest) (types.Page[*T], error)

	// Slice returns one page of the entities matching filter without counting.
	Slice(ctx context.Context, filter *types.QueryFilter, pageable types.PageRequest) (types.Slice[*T], error)

	// Save inserts new entities and updates existing ones.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// UpdateWhere runs a set-based update and returns the affected row count.
	UpdateWhere(ctx context.Context, set *types.QueryFilter, where *types.QueryFilter) (int64, error)

	// Delete removes the entity with id.
	Delete(ctx context.Context, id any) error

	// DeleteAll removes every entity and returns how many were deleted.
	DeleteAll(ctx context.Context) (int64, error)

	// Transactional runs fn with a repository bound to one transaction.
	Transactional(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error

	// Repository exposes the underlying repository.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	db   bun.IDB
	opts []repository.Option
	repo repository.Repository[T]
	once sync.Once
}

// NewService returns a Service using the global database connection. The
// connection is resolved on first use, so InitDB may run afterwards.
func NewService[T any](opts ...repository.Option) Service[T] {
	return &baseServiceImpl[T]{opts: opts}
}

// NewServiceWithDB returns a Service bound to db.
func NewServiceWithDB[T any](db bun.IDB, opts ...repository.Option) Service[T] {
	return &baseServiceImpl[T]{db: db, opts: opts}
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() {
		db := s.db
		if db == nil {
			db = database.GetDB()
		}
		s.repo = repository.NewRepository[T](db, s.opts...)
	})
	return s.repo
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] {
	return s.baseRepo()
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.baseRepo().FindByID(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context, sort types.Sort) ([]*T, error) {
	return s.baseRepo().FindAll(ctx, sort)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return s.baseRepo().FindAllBySpec(ctx, repository.FromFilter(filter), nil)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, filter *types.QueryFilter, pageable types.PageRequest) (types.Page[*T], error) {
	return s.baseRepo().FindPage(ctx, repository.FromFilter(filter), pageable)
}

func (s *baseServiceImpl[T]) Slice(ctx context.Context, filter *types.QueryFilter, pageable types.PageRequest) (types.Slice[*T], error) {
	return s.baseRepo().FindSlice(ctx, repository.FromFilter(filter), pageable)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	_, err := s.baseRepo().SaveAll(ctx, model...)
	return err
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return s.baseRepo().Upsert(ctx, fields, duplicateKeys, model...)
}

func (s *baseServiceImpl[T]) UpdateWhere(ctx context.Context, set *types.QueryFilter, where *types.QueryFilter) (int64, error) {
	return s.baseRepo().UpdateWhere(ctx, set, where)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.baseRepo().DeleteByID(ctx, id)
}

func (s *baseServiceImpl[T]) DeleteAll(ctx context.Context) (int64, error) {
	return s.baseRepo().DeleteAll(ctx)
}

func (s *baseServiceImpl[T]) Transactional(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error {
	return s.baseRepo().RunInTx(ctx, fn)
}
