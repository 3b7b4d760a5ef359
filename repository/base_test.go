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
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberstore/persistence"
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type club struct {
	bun.BaseModel `bun:"table:club,alias:c"`

	ID   int64  `bun:"club_id,pk,autoincrement"`
	Name string `bun:"name"`
}

type person struct {
	bun.BaseModel `bun:"table:person,alias:p"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Name   string `bun:"name"`
	Age    int    `bun:"age"`
	ClubID int64  `bun:"club_id,nullzero"`
	Club   *club  `bun:"rel:belongs-to,join:club_id=club_id"`
}

type tag struct {
	bun.BaseModel `bun:"table:tag"`

	Code  string `bun:"code,pk"`
	Label string `bun:"label"`
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, model := range []any{(*club)(nil), (*person)(nil), (*tag)(nil)} {
		_, err := db.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}
	return db
}

func seedPeople(t *testing.T, repo Repository[person], ages ...int) []*person {
	t.Helper()
	people := make([]*person, len(ages))
	for i, age := range ages {
		people[i] = &person{Name: fmt.Sprintf("p%d", i+1), Age: age}
	}
	saved, err := repo.SaveAll(context.Background(), people...)
	require.NoError(t, err)
	return saved
}

func TestCrud(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))

	p, err := repo.Save(ctx, &person{Name: "kim", Age: 20})
	require.NoError(t, err)
	require.NotZero(t, p.ID)

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "kim", found.Name)

	missing, err := repo.FindByID(ctx, p.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	found.Age = 21
	_, err = repo.Save(ctx, found)
	require.NoError(t, err)
	reloaded, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 21, reloaded.Age)

	exists, err := repo.ExistsByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Delete(ctx, reloaded))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteAllDrivesCountToZero(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))
	people := seedPeople(t, repo, 10, 20, 30)

	byIDs, err := repo.FindAllByIDs(ctx, people[0].ID, people[2].ID)
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	require.NoError(t, repo.DeleteByID(ctx, people[1].ID))
	deleted, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindPage(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))
	seedPeople(t, repo, 10, 10, 10, 10, 10, 10)

	age10 := Where("?TableAlias.age = ?", 10)
	page, err := repo.FindPage(ctx, age10, types.NewPageRequest(0, 3, types.Desc("name")))
	require.NoError(t, err)
	require.Len(t, page.Content(), 3)
	assert.Equal(t, "p6", page.Content()[0].Name)
	assert.Equal(t, int64(6), page.TotalElements())
	assert.Equal(t, 2, page.TotalPages())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())

	last, err := repo.FindPage(ctx, age10, page.Pageable().Next())
	require.NoError(t, err)
	assert.Len(t, last.Content(), 3)
	assert.False(t, last.HasNext())
	assert.True(t, last.IsLast())

	beyond, err := repo.FindPage(ctx, age10, types.PageOf(5, 3))
	require.NoError(t, err)
	assert.Empty(t, beyond.Content())
	assert.Equal(t, int64(6), beyond.TotalElements())
}

type countQueries struct {
	n atomic.Int32
}

func (h *countQueries) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *countQueries) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if strings.Contains(strings.ToLower(event.Query), "count(*)") {
		h.n.Add(1)
	}
}

func TestFindPageSizes(t *testing.T) {
	cases := []struct {
		name       string
		rows, size int
		index      int
		wantLen    int
		wantPages  int
		wantCount  bool
	}{
		{"full first page", 7, 3, 0, 3, 3, true},
		{"full middle page", 7, 3, 1, 3, 3, true},
		{"partial last page", 7, 3, 2, 1, 3, false},
		{"past the last page", 7, 3, 3, 0, 3, true},
		{"exactly full last page", 6, 3, 1, 3, 2, true},
		{"single exactly full page", 5, 5, 0, 5, 1, true},
		{"short first page", 2, 5, 0, 2, 1, false},
		{"no rows", 0, 4, 0, 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			db := newTestDB(t)
			hook := &countQueries{}
			db.AddQueryHook(hook)
			repo := NewRepository[person](db)

			ages := make([]int, 0, tc.rows+2)
			for range tc.rows {
				ages = append(ages, 10)
			}
			// rows outside the filter must not reach the total
			ages = append(ages, 99, 99)
			seedPeople(t, repo, ages...)
			hook.n.Store(0)

			page, err := repo.FindPage(ctx, Where("?TableAlias.age = ?", 10),
				types.NewPageRequest(tc.index, tc.size, types.Asc("id")))
			require.NoError(t, err)

			remaining := max(tc.rows-tc.index*tc.size, 0)
			assert.Len(t, page.Content(), min(tc.size, remaining))
			assert.Len(t, page.Content(), tc.wantLen)
			assert.Equal(t, int64(tc.rows), page.TotalElements())
			assert.Equal(t, tc.wantPages, page.TotalPages())
			assert.Equal(t, tc.index+1 < tc.wantPages, page.HasNext())
			assert.Equal(t, tc.wantCount, hook.n.Load() > 0)
		})
	}
}

func TestFindSlice(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))
	seedPeople(t, repo, 1, 2, 3, 4, 5, 6, 7)

	first, err := repo.FindSlice(ctx, nil, types.NewPageRequest(0, 3, types.Asc("age")))
	require.NoError(t, err)
	assert.Len(t, first.Content(), 3)
	assert.True(t, first.HasNext())

	last, err := repo.FindSlice(ctx, nil, types.NewPageRequest(2, 3, types.Asc("age")))
	require.NoError(t, err)
	require.Len(t, last.Content(), 1)
	assert.Equal(t, 7, last.Content()[0].Age)
	assert.False(t, last.HasNext())
}

func TestInvalidSortProperty(t *testing.T) {
	repo := NewRepository[person](newTestDB(t))
	_, err := repo.FindAll(context.Background(), types.SortBy(types.ASC, "nickname"))
	assert.ErrorIs(t, err, ErrInvalidSortProperty)

	people, err := repo.FindAll(context.Background(), types.Sort{types.Desc("ID"), types.Asc("Name")})
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))
	_, err := repo.SaveAll(ctx, &person{Name: "same", Age: 1}, &person{Name: "same", Age: 2}, &person{Name: "other", Age: 3})
	require.NoError(t, err)

	_, err = repo.FindOne(ctx, Where("?TableAlias.name = ?", "same"))
	assert.ErrorIs(t, err, ErrNonUniqueResult)

	none, err := repo.FindOne(ctx, Where("?TableAlias.name = ?", "nobody"))
	require.NoError(t, err)
	assert.Nil(t, none)

	one, err := repo.FindOne(ctx, Or(Where("?TableAlias.age = ?", 3), Where("?TableAlias.age = ?", 99)))
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "other", one.Name)
}

func TestSpecificationsAndExample(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository[person](db)
	clubs := NewRepository[club](db)

	red, err := clubs.Save(ctx, &club{Name: "red"})
	require.NoError(t, err)
	_, err = repo.SaveAll(ctx,
		&person{Name: "m1", Age: 10, ClubID: red.ID},
		&person{Name: "m2", Age: 10, ClubID: red.ID},
		&person{Name: "m1", Age: 10},
	)
	require.NoError(t, err)

	spec := And(
		Where("?TableAlias.name = ?", "m1"),
		nil,
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation("Club").Where("club.name = ?", "red")
		},
	)
	result, err := repo.FindAllBySpec(ctx, spec, nil)
	require.NoError(t, err)
	assert.Len(t, result, 1)

	sample := &person{Name: "m1", Age: 99, Club: &club{Name: "red"}}
	byExample, err := repo.FindAllByExample(ctx, ExampleOf(sample, "age"), nil)
	require.NoError(t, err)
	require.Len(t, byExample, 1)
	assert.Equal(t, red.ID, byExample[0].ClubID)

	count, err := repo.CountByExample(ctx, ExampleOf(&person{Name: "m1"}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	withClub, err := repo.FindAllBySpec(ctx, nil, types.SortBy(types.ASC, "id"), WithRelations("Club"), WithLock(LockPessimisticWrite))
	require.NoError(t, err)
	require.Len(t, withClub, 3)
	require.NotNil(t, withClub[0].Club)
	assert.Equal(t, "red", withClub[0].Club.Name)
}

func TestNamedQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))
	seedPeople(t, repo, 10, 20)

	RegisterNamedQuery("person.byName", "?TableAlias.name = ?")
	result, err := repo.FindByNamedQuery(ctx, "person.byName", "p2")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 20, result[0].Age)

	_, err = repo.FindByNamedQuery(ctx, "person.unknown")
	assert.ErrorIs(t, err, ErrNamedQueryNotFound)
}

func TestBulkUpdateLeavesWorkingSetStale(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pc := persistence.New(db)
	repo := NewRepository[person](db, WithPersistenceContext(pc))
	people := seedPeople(t, repo, 10, 19, 20, 21, 30, 40)

	affected, err := repo.UpdateWhere(ctx,
		types.NewQueryFilter("age = age + 1"),
		types.NewQueryFilter("age >= ?", 20))
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)

	stale, err := repo.FindOne(ctx, Where("?TableAlias.name = ?", "p6"))
	require.NoError(t, err)
	assert.Same(t, people[5], stale)
	assert.Equal(t, 40, stale.Age)

	pc.Clear()
	fresh, err := repo.FindOne(ctx, Where("?TableAlias.name = ?", "p6"))
	require.NoError(t, err)
	assert.Equal(t, 41, fresh.Age)

	_, err = repo.UpdateWhere(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestReadOnlyEntitiesAreNotFlushed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pc := persistence.New(db)
	repo := NewRepository[person](db, WithPersistenceContext(pc))
	seedPeople(t, repo, 10)
	pc.Clear()

	p, err := repo.FindOne(ctx, Where("?TableAlias.name = ?", "p1"), ReadOnly())
	require.NoError(t, err)
	p.Age = 77
	stats, err := pc.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Updated)

	pc.Clear()
	p, err = repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	p.Age = 77
	stats, err = pc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[tag](newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, []string{"label"}, nil, &tag{Code: "a", Label: "one"}))
	require.NoError(t, repo.Upsert(ctx, []string{"label"}, []string{"code"},
		&tag{Code: "a", Label: "uno"}, &tag{Code: "b", Label: "two"}))

	a, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "uno", a.Label)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Error(t, repo.Upsert(ctx, nil, nil, a))
}

func TestAssignedIdentifierSave(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[tag](newTestDB(t))

	_, err := repo.Save(ctx, &tag{Code: "x", Label: "first"})
	require.NoError(t, err)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[person](newTestDB(t))

	err := repo.RunInTx(ctx, func(ctx context.Context, tx Repository[person]) error {
		if _, err := tx.Save(ctx, &person{Name: "tx", Age: 1}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
