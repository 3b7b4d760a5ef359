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
	"time"

	"github.com/uptrace/bun"
)

// Item has an application-assigned identifier, so its newness is decided by
// the created date instead of the primary key.
type Item struct {
	bun.BaseModel `bun:"table:item"`

	ID          string    `bun:"item_id,pk" json:"id"`
	CreatedDate time.Time `bun:"created_date,nullzero" json:"createdDate"`
}

func NewItem(id string) *Item {
	return &Item{ID: id}
}

// IsNew reports whether the item was never written.
func (i *Item) IsNew() bool {
	return i.CreatedDate.IsZero()
}

var _ bun.BeforeAppendModelHook = (*Item)(nil)

func (i *Item) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && i.CreatedDate.IsZero() {
		i.CreatedDate = nowFunc()
	}
	return nil
}
