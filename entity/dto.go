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

// MemberDto is the flattened member view with its team name.
type MemberDto struct {
	ID       int64  `bun:"member_id" json:"id"`
	Username string `bun:"username" json:"username"`
	TeamName string `bun:"team_name" json:"teamName"`
}

// NewMemberDto maps a member, using the loaded team when present.
func NewMemberDto(m *Member) MemberDto {
	dto := MemberDto{ID: m.ID, Username: m.Username}
	if m.Team != nil {
		dto.TeamName = m.Team.Name
	}
	return dto
}

// UsernameOnly selects nothing but the username column.
type UsernameOnly struct {
	Username string `bun:"username" json:"username"`
}

// NestedClosedProjection reads a member's username with its team's name.
type NestedClosedProjection struct {
	Username string   `bun:"username" json:"username"`
	Team     TeamInfo `bun:"embed:team_" json:"team"`
}

type TeamInfo struct {
	Name string `bun:"name" json:"name"`
}

// MemberProjection is the row shape of the hand-written member/team query.
type MemberProjection struct {
	ID       int64  `bun:"member_id" json:"id"`
	Username string `bun:"username" json:"username"`
	TeamName string `bun:"team_name" json:"teamName"`
}
