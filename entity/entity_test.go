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

package entity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberstore/repository"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, model := range []any{(*Team)(nil), (*Member)(nil), (*Item)(nil)} {
		_, err := db.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}
	return db
}

func TestChangeTeamKeepsBothSides(t *testing.T) {
	teamA := &Team{ID: 1, Name: "teamA"}
	teamB := &Team{ID: 2, Name: "teamB"}

	m := NewMember("member1", 10, teamA)
	assert.Equal(t, int64(1), m.TeamID)
	assert.Equal(t, []*Member{m}, teamA.Members)

	m.ChangeTeam(teamA)
	assert.Len(t, teamA.Members, 1)

	m.ChangeTeam(teamB)
	assert.Empty(t, teamA.Members)
	assert.Equal(t, []*Member{m}, teamB.Members)
	assert.Same(t, teamB, m.Team)
	assert.Equal(t, int64(2), m.TeamID)

	m.ChangeTeam(nil)
	assert.Empty(t, teamB.Members)
	assert.Nil(t, m.Team)
	assert.Zero(t, m.TeamID)
}

func TestAuditingColumns(t *testing.T) {
	db := newTestDB(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { nowFunc = time.Now })

	teams := repository.NewRepository[Team](db)
	members := repository.NewRepository[Member](db)

	team, err := teams.Save(context.Background(), NewTeam("teamA"))
	require.NoError(t, err)
	assert.Equal(t, fixed, team.CreatedDate)
	assert.Equal(t, fixed, team.UpdatedDate)

	ctx := WithAuditor(context.Background(), "alice")
	m, err := members.Save(ctx, NewMember("member1", 10, team))
	require.NoError(t, err)
	assert.Equal(t, team.ID, m.TeamID)
	assert.Equal(t, "alice", m.CreatedBy)
	assert.Equal(t, "alice", m.LastModifiedBy)
	assert.Equal(t, fixed, m.CreatedDate)

	later := fixed.Add(time.Hour)
	nowFunc = func() time.Time { return later }
	m.ChangeUsername("member2")
	_, err = members.Save(WithAuditor(context.Background(), "bob"), m)
	require.NoError(t, err)

	found, err := members.FindByID(context.Background(), m.ID, repository.WithRelations("Team"))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "member2", found.Username)
	assert.Equal(t, "alice", found.CreatedBy)
	assert.Equal(t, "bob", found.LastModifiedBy)
	assert.True(t, found.CreatedDate.Equal(fixed))
	assert.True(t, found.LastModifiedDate.Equal(later))
	require.NotNil(t, found.Team)
	assert.Equal(t, "teamA", found.Team.Name)
}

func TestDefaultAuditorIsUUID(t *testing.T) {
	db := newTestDB(t)
	m, err := repository.NewRepository[Member](db).Save(context.Background(), NewMember("anon", 1, nil))
	require.NoError(t, err)
	assert.Len(t, m.CreatedBy, 36)

	auditorMu.RLock()
	previous := auditorAware
	auditorMu.RUnlock()
	SetAuditorAware(AuditorFunc(func(context.Context) (string, bool) { return "system", true }))
	t.Cleanup(func() { SetAuditorAware(previous) })
	assert.Equal(t, "system", currentAuditor(context.Background()))
}

func TestItemNewnessFollowsCreatedDate(t *testing.T) {
	ctx := context.Background()
	items := repository.NewRepository[Item](newTestDB(t))

	item := NewItem("A")
	assert.True(t, item.IsNew())
	_, err := items.Save(ctx, item)
	require.NoError(t, err)
	assert.False(t, item.IsNew())

	_, err = items.Save(ctx, item)
	require.NoError(t, err)
	count, err := items.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemberDto(t *testing.T) {
	m := NewMember("member1", 10, &Team{ID: 7, Name: "teamA"})
	m.ID = 3
	assert.Equal(t, MemberDto{ID: 3, Username: "member1", TeamName: "teamA"}, NewMemberDto(m))
	assert.Equal(t, "Member(id=3, username=member1, age=10)", m.String())
}
