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

// Package entity holds the Member, Team and Item models, their auditing
// columns and the projections read from them.
package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/uptrace/bun"
)

// Member belongs to at most one Team. The team_id column is the owning side
// of the association.
type Member struct {
	bun.BaseModel `bun:"table:member,alias:m"`

	ID       int64  `bun:"member_id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull" json:"username"`
	Age      int    `bun:"age,notnull" json:"age"`
	TeamID   int64  `bun:"team_id,nullzero" json:"teamId,omitempty"`
	Team     *Team  `bun:"rel:belongs-to,join:team_id=team_id" json:"-"`

	BaseEntity
}

// NewMember returns a transient member, joined to team when it is not nil.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: username, Age: age}
	if team != nil {
		m.ChangeTeam(team)
	}
	return m
}

// ChangeTeam moves the member to team, keeping both sides of the association
// in step. A nil team leaves the member without one.
func (m *Member) ChangeTeam(team *Team) {
	if m.Team != nil {
		m.Team.removeMember(m)
	}
	m.Team = team
	if team == nil {
		m.TeamID = 0
		return
	}
	m.TeamID = team.ID
	if !slices.Contains(team.Members, m) {
		team.Members = append(team.Members, m)
	}
}

var _ bun.BeforeAppendModelHook = (*Member)(nil)

// BeforeAppendModel copies the identifier of a team saved after it was
// assigned, then stamps the auditing columns.
func (m *Member) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if m.Team != nil && m.Team.ID != 0 {
		m.TeamID = m.Team.ID
	}
	return m.BaseEntity.BeforeAppendModel(ctx, query)
}

func (m *Member) ChangeUsername(username string) {
	m.Username = username
}

func (m *Member) String() string {
	return fmt.Sprintf("Member(id=%d, username=%s, age=%d)", m.ID, m.Username, m.Age)
}

type Team struct {
	bun.BaseModel `bun:"table:team,alias:t"`

	ID      int64     `bun:"team_id,pk,autoincrement" json:"id"`
	Name    string    `bun:"name,notnull" json:"name"`
	Members []*Member `bun:"rel:has-many,join:team_id=team_id" json:"-"`

	BaseTimeEntity
}

func NewTeam(name string) *Team {
	return &Team{Name: name}
}

func (t *Team) removeMember(m *Member) {
	t.Members = slices.DeleteFunc(t.Members, func(x *Member) bool { return x == m })
}

func (t *Team) String() string {
	return fmt.Sprintf("Team(id=%d, name=%s)", t.ID, t.Name)
}
