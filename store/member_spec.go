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
	"github.com/tomoncle/memberstore/repository"
	"github.com/uptrace/bun"
)

// MemberSpecUsername matches members with exactly username.
func MemberSpecUsername(username string) repository.Specification {
	return repository.Where("?TableAlias.username = ?", username)
}

// MemberSpecTeamName joins the team and matches its name. An empty name
// yields a nil specification, which matches everything.
func MemberSpecTeamName(teamName string) repository.Specification {
	if teamName == "" {
		return nil
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Join("JOIN team AS spec_t ON spec_t.team_id = ?TableAlias.team_id").
			Where("spec_t.name = ?", teamName)
	}
}

// MemberSpecAge matches members of exactly age.
func MemberSpecAge(age int) repository.Specification {
	return repository.Where("?TableAlias.age = ?", age)
}

func limitOffset(offset, limit int) repository.Specification {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Offset(offset).Limit(limit)
	}
}
