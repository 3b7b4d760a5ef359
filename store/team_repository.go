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

	"github.com/tomoncle/memberstore/entity"
	"github.com/tomoncle/memberstore/repository"
	"github.com/uptrace/bun"
)

type TeamRepository struct {
	repository.Repository[entity.Team]
}

func NewTeamRepository(db bun.IDB, opts ...repository.Option) *TeamRepository {
	return &TeamRepository{Repository: repository.NewRepository[entity.Team](db, opts...)}
}

// FindByName returns nil, nil when no team has name.
func (r *TeamRepository) FindByName(ctx context.Context, name string) (*entity.Team, error) {
	return r.FindOne(ctx, repository.Where("?TableAlias.name = ?", name))
}

// FindWithMembers loads the team and its members in a second query.
func (r *TeamRepository) FindWithMembers(ctx context.Context, id int64) (*entity.Team, error) {
	return r.FindByID(ctx, id, repository.WithRelations("Members"))
}

// ItemRepository saves items by their assigned identifier; newness comes from
// entity.Item.IsNew.
type ItemRepository struct {
	repository.Repository[entity.Item]
}

func NewItemRepository(db bun.IDB, opts ...repository.Option) *ItemRepository {
	return &ItemRepository{Repository: repository.NewRepository[entity.Item](db, opts...)}
}
