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

package memberstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberstore/database"
	"github.com/tomoncle/memberstore/entity"
	"github.com/tomoncle/memberstore/repository"
	"github.com/tomoncle/memberstore/types"
)

func initTestDB(t *testing.T) {
	t.Helper()
	conn := database.DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = "file:" + t.Name() + "?mode=memory&cache=shared"
	cfg := &database.Config{
		ConnectionConfig: *conn,
		DataMigrateConfig: database.DataMigrateConfig{
			EnableMigrateOnStartup: true,
		},
	}
	_, err := database.InitDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
}

func TestServiceOverGlobalDB(t *testing.T) {
	svc := NewService[entity.Member]()
	initTestDB(t)
	ctx := context.Background()

	var members []*entity.Member
	for i, age := range []int{10, 19, 20, 21, 30, 40} {
		members = append(members, entity.NewMember(string(rune('a'+i)), age, nil))
	}
	require.NoError(t, svc.Save(ctx, members...))

	all, err := svc.All(ctx, types.SortBy(types.DESC, "age"))
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, 40, all[0].Age)

	adults, err := svc.List(ctx, types.NewQueryFilter("?TableAlias.age >= ?", 20))
	require.NoError(t, err)
	assert.Len(t, adults, 4)

	page, err := svc.Page(ctx, nil, types.NewPageRequest(1, 4, types.Asc("age")))
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.TotalElements())
	assert.Equal(t, 2, page.TotalPages())
	assert.Len(t, page.Content(), 2)

	slice, err := svc.Slice(ctx, nil, types.NewPageRequest(0, 5))
	require.NoError(t, err)
	assert.True(t, slice.HasNext())

	n, err := svc.UpdateWhere(ctx, types.NewQueryFilter("age = age + 1"), types.NewQueryFilter("age >= ?", 20))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := svc.Get(ctx, members[5].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 41, got.Age)

	require.NoError(t, svc.Delete(ctx, members[0].ID))
	got, err = svc.Get(ctx, members[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
}

func TestServiceTransactionalRollsBack(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	svc := NewService[entity.Team]()

	boom := errors.New("boom")
	err := svc.Transactional(ctx, func(ctx context.Context, repo repository.Repository[entity.Team]) error {
		if _, err := repo.Save(ctx, entity.NewTeam("teamA")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := svc.Repository().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
