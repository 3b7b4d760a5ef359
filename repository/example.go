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
	"reflect"
	"slices"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Example matches rows whose columns equal the non-zero fields of Probe.
// A non-nil belongs-to relation on the probe joins that relation and matches
// its non-zero fields too. IgnorePaths names fields to leave out, either by
// column or Go name, with a "relation." prefix for joined fields.
type Example[T any] struct {
	Probe       *T
	IgnorePaths []string
}

// ExampleOf returns an Example for probe.
func ExampleOf[T any](probe *T, ignorePaths ...string) Example[T] {
	return Example[T]{Probe: probe, IgnorePaths: ignorePaths}
}

func (e Example[T]) specification(table *schema.Table) Specification {
	if e.Probe == nil {
		return nil
	}
	strct := reflect.ValueOf(e.Probe).Elem()
	specs := e.fieldSpecs(table, strct, nil)

	for _, rel := range table.Relations {
		if rel.Type != schema.BelongsToRelation && rel.Type != schema.HasOneRelation {
			continue
		}
		fv := strct.FieldByIndex(rel.Field.Index)
		if fv.Kind() != reflect.Ptr || fv.IsNil() || e.ignored(rel.Field, "") {
			continue
		}
		joinSpecs := e.fieldSpecs(rel.JoinTable, fv.Elem(), rel.Field)
		if len(joinSpecs) == 0 {
			continue
		}
		relName := rel.Field.GoName
		specs = append(specs, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation(relName)
		})
		specs = append(specs, joinSpecs...)
	}
	return And(specs...)
}

// fieldSpecs matches the non-zero columns of strct. Columns of a joined
// relation are qualified with the join alias, which Bun derives from the
// relation field name.
func (e Example[T]) fieldSpecs(table *schema.Table, strct reflect.Value, rel *schema.Field) []Specification {
	var specs []Specification
	for _, f := range table.Fields {
		if f.HasZeroValue(strct) {
			continue
		}
		value := f.Value(strct).Interface()
		if rel == nil {
			if !e.ignored(f, "") {
				specs = append(specs, Where("?TableAlias.? = ?", bun.Ident(f.Name), value))
			}
			continue
		}
		if !e.ignored(f, rel.Name) && !e.ignored(f, rel.GoName) {
			specs = append(specs, Where("?.? = ?", bun.Ident(rel.Name), bun.Ident(f.Name), value))
		}
	}
	return specs
}

func (e Example[T]) ignored(f *schema.Field, prefix string) bool {
	return slices.ContainsFunc(e.IgnorePaths, func(path string) bool {
		if prefix != "" {
			head, rest, ok := strings.Cut(path, ".")
			if !ok || !strings.EqualFold(head, prefix) {
				return false
			}
			path = rest
		}
		return strings.EqualFold(path, f.Name) || strings.EqualFold(path, f.GoName)
	})
}
