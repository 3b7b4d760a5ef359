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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomoncle/memberstore/entity"
	"github.com/tomoncle/memberstore/repository"
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
)

// MemberRepository adds the member finders to the generic repository.
type MemberRepository struct {
	repository.Repository[entity.Member]

	clearAutomatically bool
}

func NewMemberRepository(db bun.IDB, opts ...repository.Option) *MemberRepository {
	return &MemberRepository{Repository: repository.NewRepository[entity.Member](db, opts...)}
}

// ClearAutomatically returns a copy that clears the persistence context
// after every bulk update, so later reads observe the database state.
func (r *MemberRepository) ClearAutomatically() *MemberRepository {
	cp := *r
	cp.clearAutomatically = true
	return &cp
}

// WithTx returns a copy bound to tx.
func (r *MemberRepository) WithTx(tx bun.Tx) *MemberRepository {
	cp := *r
	cp.Repository = r.Repository.WithTx(tx)
	return &cp
}

func (r *MemberRepository) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, repository.Where("?TableAlias.username = ? AND ?TableAlias.age > ?", username, age), nil)
}

// FindHelloBy has no condition and returns every member.
func (r *MemberRepository) FindHelloBy(ctx context.Context) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, nil, nil)
}

// FindByUsername runs the Member.findByUsername named query.
func (r *MemberRepository) FindByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindByNamedQuery(ctx, entity.NamedQueryMemberFindByUsername, username)
}

func (r *MemberRepository) FindUser(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, repository.Where("?TableAlias.username = ? AND ?TableAlias.age = ?", username, age), nil)
}

func (r *MemberRepository) FindUsernameList(ctx context.Context) ([]string, error) {
	var names []string
	err := r.NewSelect().
		Model((*entity.Member)(nil)).
		Column("username").
		OrderExpr("?TableAlias.member_id").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("find member usernames: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// FindMemberDto reads members that have a team, flattened with the team name.
func (r *MemberRepository) FindMemberDto(ctx context.Context) ([]entity.MemberDto, error) {
	dtos := make([]entity.MemberDto, 0)
	err := r.NewSelect().
		TableExpr("member AS m").
		Join("JOIN team AS t ON t.team_id = m.team_id").
		ColumnExpr("m.member_id, m.username, t.name AS team_name").
		OrderExpr("m.member_id").
		Scan(ctx, &dtos)
	if err != nil {
		return nil, fmt.Errorf("find member dto: %w", err)
	}
	return dtos, nil
}

// FindByNames returns the members whose username is one of names.
func (r *MemberRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Member, error) {
	if len(names) == 0 {
		return []*entity.Member{}, nil
	}
	return r.FindAllBySpec(ctx, repository.Where("?TableAlias.username IN (?)", bun.In(names)), nil)
}

// FindListByUsername returns an empty slice, never nil, when nothing matches.
func (r *MemberRepository) FindListByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, MemberSpecUsername(username), nil)
}

// FindMemberByUsername returns nil, nil when no member matches and
// repository.ErrNonUniqueResult when several do.
func (r *MemberRepository) FindMemberByUsername(ctx context.Context, username string) (*entity.Member, error) {
	return r.FindOne(ctx, MemberSpecUsername(username))
}

func (r *MemberRepository) FindOptionalByUsername(ctx context.Context, username string) (*entity.Member, bool, error) {
	m, err := r.FindOne(ctx, MemberSpecUsername(username))
	if err != nil {
		return nil, false, err
	}
	return m, m != nil, nil
}

// FindByAge loads a page of members with their team. The count query does
// not join the team.
func (r *MemberRepository) FindByAge(ctx context.Context, age int, pageable types.PageRequest) (types.Page[*entity.Member], error) {
	return r.FindPage(ctx, MemberSpecAge(age), pageable, repository.WithRelations("Team"))
}

func (r *MemberRepository) FindSliceByAge(ctx context.Context, age int, pageable types.PageRequest) (types.Slice[*entity.Member], error) {
	return r.FindSlice(ctx, MemberSpecAge(age), pageable)
}

// FindListByAge honours the page bounds and sort of pageable but returns a
// plain list without counting.
func (r *MemberRepository) FindListByAge(ctx context.Context, age int, pageable types.PageRequest) ([]*entity.Member, error) {
	spec := repository.And(MemberSpecAge(age), limitOffset(pageable.GetOffset(), pageable.GetPageSize()))
	return r.FindAllBySpec(ctx, spec, pageable.GetSort())
}

// FindByPage is the hand-rolled paging query: members of age ordered by
// username descending.
func (r *MemberRepository) FindByPage(ctx context.Context, age, offset, limit int) ([]*entity.Member, error) {
	spec := repository.And(MemberSpecAge(age), limitOffset(offset, limit))
	return r.FindAllBySpec(ctx, spec, types.SortBy(types.DESC, "username"))
}

func (r *MemberRepository) TotalCount(ctx context.Context, age int) (int64, error) {
	return r.CountBySpec(ctx, MemberSpecAge(age))
}

// BulkAgePlus adds one to the age of every member at least age years old
// and returns how many rows changed. Managed members keep their old age
// unless the repository clears automatically.
func (r *MemberRepository) BulkAgePlus(ctx context.Context, age int) (int64, error) {
	n, err := r.UpdateWhere(ctx,
		types.NewQueryFilter("age = age + 1"),
		types.NewQueryFilter("age >= ?", age))
	if err != nil {
		return 0, err
	}
	logger.WithField("rows", n).Debug("bulk age update")
	if pc := r.PersistenceContext(); r.clearAutomatically && pc != nil {
		pc.Clear()
	}
	return n, nil
}

// FindAll loads every member together with its team in one query.
func (r *MemberRepository) FindAll(ctx context.Context, sort types.Sort) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, nil, sort, repository.WithRelations("Team"))
}

func (r *MemberRepository) FindMemberFetchJoin(ctx context.Context) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, nil, nil, repository.WithRelations("Team"))
}

func (r *MemberRepository) FindMemberEntityGraph(ctx context.Context) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, nil, nil, repository.WithRelations("Team"))
}

func (r *MemberRepository) FindEntityGraphByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, MemberSpecUsername(username), nil, repository.WithRelations("Team"))
}

// FindReadOnlyByUsername loads a member whose changes are never flushed.
func (r *MemberRepository) FindReadOnlyByUsername(ctx context.Context, username string) (*entity.Member, error) {
	return r.FindOne(ctx, MemberSpecUsername(username), repository.ReadOnly())
}

// FindLockByUsername selects the members FOR UPDATE. Call it inside a
// transaction; the locks are released when it ends.
func (r *MemberRepository) FindLockByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindAllBySpec(ctx, MemberSpecUsername(username), nil, repository.WithLock(repository.LockPessimisticWrite))
}

func (r *MemberRepository) FindProjectionsByUsername(ctx context.Context, username string) ([]entity.UsernameOnly, error) {
	out := make([]entity.UsernameOnly, 0)
	err := r.NewSelect().
		Model((*entity.Member)(nil)).
		Column("username").
		Where("?TableAlias.username = ?", username).
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("find username projections: %w", err)
	}
	return out, nil
}

// FindNestedProjectionsByUsername reads the username with the name of the
// member's team, if any.
func (r *MemberRepository) FindNestedProjectionsByUsername(ctx context.Context, username string) ([]entity.NestedClosedProjection, error) {
	out := make([]entity.NestedClosedProjection, 0)
	err := r.NewSelect().
		TableExpr("member AS m").
		Join("LEFT JOIN team AS t ON t.team_id = m.team_id").
		ColumnExpr("m.username, COALESCE(t.name, '') AS team_name").
		Where("m.username = ?", username).
		OrderExpr("m.member_id").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("find nested projections: %w", err)
	}
	return out, nil
}

var nativeProjectionColumns = map[string]string{
	"id":        "m.member_id",
	"member_id": "m.member_id",
	"username":  "m.username",
	"teamName":  "t.name",
	"team_name": "t.name",
}

// FindByNativeProjection pages over a hand-written member/team query. Sort
// properties must name one of the projected columns.
func (r *MemberRepository) FindByNativeProjection(ctx context.Context, pageable types.PageRequest) (types.Page[entity.MemberProjection], error) {
	q := r.NewSelect().
		TableExpr("member AS m").
		Join("LEFT JOIN team AS t ON t.team_id = m.team_id").
		ColumnExpr("m.member_id, m.username, COALESCE(t.name, '') AS team_name")
	for _, o := range pageable.GetSort() {
		col, ok := nativeProjectionColumns[o.Property]
		if !ok {
			return types.Page[entity.MemberProjection]{}, fmt.Errorf("%w: %s", repository.ErrInvalidSortProperty, o.Property)
		}
		q = q.OrderExpr(col + " " + o.Direction.Name())
	}
	if !pageable.GetSort().IsSorted() {
		q = q.OrderExpr("m.member_id")
	}

	content := make([]entity.MemberProjection, 0, pageable.GetPageSize())
	if err := q.Offset(pageable.GetOffset()).Limit(pageable.GetPageSize()).Scan(ctx, &content); err != nil {
		return types.Page[entity.MemberProjection]{}, fmt.Errorf("find native projection: %w", err)
	}
	return types.NewPageWithCounter(content, pageable, func() (int64, error) {
		n, err := r.NewSelect().TableExpr("member").Count(ctx)
		return int64(n), err
	})
}

// FindByNativeQuery runs raw SQL and returns nil, nil when no member matches.
// Rows read this way bypass the persistence context.
func (r *MemberRepository) FindByNativeQuery(ctx context.Context, username string) (*entity.Member, error) {
	m := new(entity.Member)
	err := r.DB().NewRaw("SELECT * FROM member WHERE username = ? LIMIT 1", username).Scan(ctx, m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find member by native query: %w", err)
	}
	return m, nil
}

// FindMemberCustom is the hand-written query path, built directly on the
// Bun query builder.
func (r *MemberRepository) FindMemberCustom(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	if err := r.NewSelect().Model(&members).OrderExpr("?TableAlias.member_id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("find member custom: %w", err)
	}
	return members, nil
}
