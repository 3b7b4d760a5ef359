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
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/memberstore/persistence"
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db    bun.IDB
	table *schema.Table
	pc    *persistence.Context
}

// Option configures a repository at construction.
type Option func(*repositoryOptions)

type repositoryOptions struct {
	pc *persistence.Context
}

// WithPersistenceContext makes loaded entities resolve to the instances
// managed by pc, and registers saved entities with it.
func WithPersistenceContext(pc *persistence.Context) Option {
	return func(o *repositoryOptions) { o.pc = pc }
}

// NewRepository returns a generic repository for T backed by db, which may
// be a *bun.DB or a bun.Tx.
func NewRepository[T any](db bun.IDB, opts ...Option) Repository[T] {
	var o repositoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &baseRepositoryImpl[T]{
		db:    db,
		table: db.Dialect().Tables().Get(reflect.TypeFor[T]()),
		pc:    o.pc,
	}
}

func (r *baseRepositoryImpl[T]) DB() bun.IDB { return r.db }

func (r *baseRepositoryImpl[T]) Table() *schema.Table { return r.table }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) PersistenceContext() *persistence.Context { return r.pc }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) dialectName() dialect.Name { return r.db.Dialect().Name() }

// WithTx returns a copy bound to tx sharing the persistence context.
func (r *baseRepositoryImpl[T]) WithTx(tx bun.Tx) Repository[T] {
	cp := *r
	cp.db = tx
	return &cp
}

// RunInTx runs fn with a repository bound to a new transaction, committing
// when fn returns nil.
func (r *baseRepositoryImpl[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
}

func (r *baseRepositoryImpl[T]) pk() (*schema.Field, error) {
	if len(r.table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrimaryKey, r.table.Name)
	}
	return r.table.PKs[0], nil
}

func (r *baseRepositoryImpl[T]) manage(entity *T, readOnly bool) *T {
	if r.pc == nil {
		return entity
	}
	if readOnly {
		return r.pc.ManageReadOnly(entity).(*T)
	}
	return r.pc.Manage(entity).(*T)
}

func (r *baseRepositoryImpl[T]) manageAll(entities []*T, readOnly bool) []*T {
	for i, e := range entities {
		entities[i] = r.manage(e, readOnly)
	}
	return entities
}

func (r *baseRepositoryImpl[T]) isNew(entity *T) bool {
	if p, ok := any(entity).(Persistable); ok {
		return p.IsNew()
	}
	strct := reflect.ValueOf(entity).Elem()
	for _, pk := range r.table.PKs {
		if !pk.HasZeroValue(strct) {
			return false
		}
	}
	return true
}

// Save inserts a new entity or updates an existing one. An update that
// matches no row falls back to an insert, which covers entities with
// application-assigned identifiers. Drivers that report changed rather than
// matched rows (MySQL) get an existence check before the insert.
func (r *baseRepositoryImpl[T]) Save(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("save %s: nil entity", r.table.Name)
	}
	if !r.isNew(entity) {
		updated, err := r.update(ctx, entity)
		if err != nil {
			return nil, err
		}
		if updated {
			r.persist(entity)
			return entity, nil
		}
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert %s: %w", r.table.Name, err)
	}
	r.persist(entity)
	return entity, nil
}

func (r *baseRepositoryImpl[T]) update(ctx context.Context, entity *T) (bool, error) {
	res, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", r.table.Name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	exists, err := r.db.NewSelect().Model(entity).WherePK().Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", r.table.Name, err)
	}
	return exists, nil
}

func (r *baseRepositoryImpl[T]) persist(entity *T) {
	if r.pc != nil {
		// entities without an identifier after the write simply stay unmanaged
		_ = r.pc.Persist(entity)
	}
}

func (r *baseRepositoryImpl[T]) SaveAll(ctx context.Context, entities ...*T) ([]*T, error) {
	saved := make([]*T, 0, len(entities))
	for _, e := range entities {
		s, err := r.Save(ctx, e)
		if err != nil {
			return saved, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}

// FindByID returns nil, nil when no row has the identifier. A managed
// instance is returned without touching the database unless the call locks
// or joins relations.
func (r *baseRepositoryImpl[T]) FindByID(ctx context.Context, id any, opts ...QueryOption) (*T, error) {
	o := newQueryOptions(opts)
	if r.pc != nil && o.lock == LockNone && len(o.relations) == 0 {
		if managed, ok := persistence.Find[T](r.pc, id); ok {
			return managed, nil
		}
	}
	pk, err := r.pk()
	if err != nil {
		return nil, err
	}

	entity := new(T)
	q := r.db.NewSelect().Model(entity).Where("?TableAlias.? = ?", bun.Ident(pk.Name), id)
	q = o.apply(q, r.dialectName())
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s by id: %w", r.table.Name, err)
	}
	return r.manage(entity, o.readOnly), nil
}

func (r *baseRepositoryImpl[T]) ExistsByID(ctx context.Context, id any) (bool, error) {
	pk, err := r.pk()
	if err != nil {
		return false, err
	}
	return r.ExistsBySpec(ctx, Where("?TableAlias.? = ?", bun.Ident(pk.Name), id))
}

func (r *baseRepositoryImpl[T]) FindAll(ctx context.Context, sort types.Sort) ([]*T, error) {
	return r.FindAllBySpec(ctx, nil, sort)
}

// FindAllByIDs returns the entities among ids that exist, in no particular
// order.
func (r *baseRepositoryImpl[T]) FindAllByIDs(ctx context.Context, ids ...any) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	pk, err := r.pk()
	if err != nil {
		return nil, err
	}
	return r.FindAllBySpec(ctx, Where("?TableAlias.? IN (?)", bun.Ident(pk.Name), bun.In(ids)), nil)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context) (int64, error) {
	return r.CountBySpec(ctx, nil)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, entity *T) error {
	if _, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", r.table.Name, err)
	}
	if r.pc != nil {
		r.pc.Detach(entity)
	}
	return nil
}

func (r *baseRepositoryImpl[T]) DeleteByID(ctx context.Context, id any) error {
	pk, err := r.pk()
	if err != nil {
		return err
	}
	_, err = r.db.NewDelete().
		Model((*T)(nil)).
		Where("? = ?", bun.Ident(pk.Name), id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s by id: %w", r.table.Name, err)
	}
	if r.pc != nil {
		if managed, ok := persistence.Find[T](r.pc, id); ok {
			r.pc.Detach(managed)
		}
	}
	return nil
}

// DeleteAll removes every row of the table and returns how many were
// deleted. Managed entities of the type are detached.
func (r *baseRepositoryImpl[T]) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all %s: %w", r.table.Name, err)
	}
	if r.pc != nil {
		r.pc.DetachType(new(T))
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T]) selectAll(spec Specification, sort types.Sort, o queryOptions, dest *[]*T) (*bun.SelectQuery, error) {
	q := r.db.NewSelect().Model(dest)
	q = spec.apply(q)
	q = o.apply(q, r.dialectName())
	return applySort(q, r.table, sort)
}

// FindPage returns one page and the total number of matching rows. The
// count query is skipped when the total follows from the content.
func (r *baseRepositoryImpl[T]) FindPage(ctx context.Context, spec Specification, pageable types.PageRequest, opts ...QueryOption) (types.Page[*T], error) {
	o := newQueryOptions(opts)
	content := make([]*T, 0, pageable.GetPageSize())
	q, err := r.selectAll(spec, pageable.GetSort(), o, &content)
	if err != nil {
		return types.Page[*T]{}, err
	}
	if err := q.Offset(pageable.GetOffset()).Limit(pageable.GetPageSize()).Scan(ctx); err != nil {
		return types.Page[*T]{}, fmt.Errorf("find %s page: %w", r.table.Name, err)
	}
	content = r.manageAll(content, o.readOnly)
	return types.NewPageWithCounter(content, pageable, func() (int64, error) {
		return r.CountBySpec(ctx, spec)
	})
}

// FindSlice fetches one row more than the page size to learn whether a
// next slice exists, and never counts.
func (r *baseRepositoryImpl[T]) FindSlice(ctx context.Context, spec Specification, pageable types.PageRequest, opts ...QueryOption) (types.Slice[*T], error) {
	o := newQueryOptions(opts)
	content := make([]*T, 0, pageable.GetPageSize()+1)
	q, err := r.selectAll(spec, pageable.GetSort(), o, &content)
	if err != nil {
		return types.Slice[*T]{}, err
	}
	if err := q.Offset(pageable.GetOffset()).Limit(pageable.GetPageSize() + 1).Scan(ctx); err != nil {
		return types.Slice[*T]{}, fmt.Errorf("find %s slice: %w", r.table.Name, err)
	}
	slice := types.NewSliceFromOverfetch(content, pageable)
	r.manageAll(slice.Content(), o.readOnly)
	return slice, nil
}

// FindOne returns nil, nil for no match and ErrNonUniqueResult when more
// than one row matches.
func (r *baseRepositoryImpl[T]) FindOne(ctx context.Context, spec Specification, opts ...QueryOption) (*T, error) {
	o := newQueryOptions(opts)
	var content []*T
	q, err := r.selectAll(spec, nil, o, &content)
	if err != nil {
		return nil, err
	}
	if err := q.Limit(2).Scan(ctx); err != nil {
		return nil, fmt.Errorf("find one %s: %w", r.table.Name, err)
	}
	switch len(content) {
	case 0:
		return nil, nil
	case 1:
		return r.manage(content[0], o.readOnly), nil
	default:
		return nil, ErrNonUniqueResult
	}
}

func (r *baseRepositoryImpl[T]) FindAllBySpec(ctx context.Context, spec Specification, sort types.Sort, opts ...QueryOption) ([]*T, error) {
	o := newQueryOptions(opts)
	content := make([]*T, 0)
	q, err := r.selectAll(spec, sort, o, &content)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find %s: %w", r.table.Name, err)
	}
	return r.manageAll(content, o.readOnly), nil
}

func (r *baseRepositoryImpl[T]) CountBySpec(ctx context.Context, spec Specification) (int64, error) {
	q := spec.apply(r.db.NewSelect().Model((*T)(nil)))
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table.Name, err)
	}
	return int64(n), nil
}

func (r *baseRepositoryImpl[T]) ExistsBySpec(ctx context.Context, spec Specification) (bool, error) {
	q := spec.apply(r.db.NewSelect().Model((*T)(nil)))
	ok, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", r.table.Name, err)
	}
	return ok, nil
}

func (r *baseRepositoryImpl[T]) FindAllByExample(ctx context.Context, example Example[T], sort types.Sort) ([]*T, error) {
	return r.FindAllBySpec(ctx, example.specification(r.table), sort)
}

func (r *baseRepositoryImpl[T]) FindOneByExample(ctx context.Context, example Example[T]) (*T, error) {
	return r.FindOne(ctx, example.specification(r.table))
}

func (r *baseRepositoryImpl[T]) CountByExample(ctx context.Context, example Example[T]) (int64, error) {
	return r.CountBySpec(ctx, example.specification(r.table))
}

// FindByNamedQuery runs the WHERE fragment registered under name.
func (r *baseRepositoryImpl[T]) FindByNamedQuery(ctx context.Context, name string, args ...any) ([]*T, error) {
	where, err := NamedQuery(name)
	if err != nil {
		return nil, err
	}
	return r.FindAllBySpec(ctx, Where(where, args...), nil)
}

// UpdateWhere issues one set-based UPDATE and returns the number of affected
// rows. A nil where updates every row. Managed entities are not refreshed:
// clear the persistence context before reading them again.
func (r *baseRepositoryImpl[T]) UpdateWhere(ctx context.Context, set *types.QueryFilter, where *types.QueryFilter) (int64, error) {
	if set == nil || set.Schema == "" {
		return 0, ErrEmptyUpdate
	}
	q := r.db.NewUpdate().Model((*T)(nil)).Set(set.Schema, set.Args...)
	if where != nil {
		q = q.Where(where.Schema, where.Args...)
	} else {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk update %s: %w", r.table.Name, err)
	}
	return res.RowsAffected()
}
