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
	"fmt"
	"strings"

	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// resolveProperty maps a sort property to a column of table. Properties may
// be column names or Go field names; "id" always means the primary key.
func resolveProperty(table *schema.Table, property string) (*schema.Field, error) {
	if f := table.LookupField(property); f != nil {
		return f, nil
	}
	if strings.EqualFold(property, "id") && len(table.PKs) == 1 {
		return table.PKs[0], nil
	}
	for _, f := range table.Fields {
		if strings.EqualFold(f.GoName, property) || strings.EqualFold(f.Name, property) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q on %s", ErrInvalidSortProperty, property, table.Name)
}

// applySort appends ORDER BY clauses qualified with the table alias.
func applySort(q *bun.SelectQuery, table *schema.Table, sort types.Sort) (*bun.SelectQuery, error) {
	for _, order := range sort {
		f, err := resolveProperty(table, order.Property)
		if err != nil {
			return nil, err
		}
		if order.Direction.IsDescending() {
			q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(f.Name))
		} else {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(f.Name))
		}
	}
	return q, nil
}
