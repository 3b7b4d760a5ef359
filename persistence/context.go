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

package persistence

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/memberstore/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	ErrNotStructPointer = errors.New("persistence: entity must be a non-nil struct pointer")
	ErrNoIdentifier     = errors.New("persistence: entity has no identifier")
)

var logger = utils.NewLogger("PERSISTENCE")

type entityKey struct {
	typ reflect.Type
	id  string
}

type entry struct {
	entity   any
	table    *schema.Table
	snapshot []any
	readOnly bool
	removed  bool
}

// UpdateStamped is implemented by models that set columns of their own on
// every UPDATE, such as a last modified date. Flush writes those columns
// along with the dirty ones.
type UpdateStamped interface {
	UpdateStampedColumns() []string
}

// FlushStats reports the statements issued by Flush.
type FlushStats struct {
	Updated int
	Deleted int
}

// Context is the working set of one unit of work. It is safe for concurrent
// use but is meant to be owned by a single request.
type Context struct {
	db      bun.IDB
	mu      sync.Mutex
	entries map[entityKey]*entry
	order   []entityKey
}

// New returns an empty context writing through db on Flush.
func New(db bun.IDB) *Context {
	return &Context{
		db:      db,
		entries: make(map[entityKey]*entry),
	}
}

// DB returns the handle the context flushes through.
func (c *Context) DB() bun.IDB {
	return c.db
}

// Manage returns the managed instance with the identity of entity. When none
// is managed yet, entity itself becomes managed and is returned. Entities
// without a usable identifier are returned unmanaged.
func (c *Context) Manage(entity any) any {
	return c.manage(entity, false)
}

// ManageReadOnly is Manage for entities that must never be dirty-checked.
func (c *Context) ManageReadOnly(entity any) any {
	return c.manage(entity, true)
}

func (c *Context) manage(entity any, readOnly bool) any {
	key, table, err := c.keyOf(entity)
	if err != nil {
		return entity
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && !e.removed {
		return e.entity
	}
	c.put(key, &entry{entity: entity, table: table, readOnly: readOnly})
	return entity
}

// Persist makes entity the managed instance for its identity and takes a
// fresh snapshot. Repositories call it after writing the entity.
func (c *Context) Persist(entity any) error {
	key, table, err := c.keyOf(entity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	readOnly := false
	if e, ok := c.entries[key]; ok && e.entity == entity {
		readOnly = e.readOnly
	}
	c.put(key, &entry{entity: entity, table: table, readOnly: readOnly})
	return nil
}

func (c *Context) put(key entityKey, e *entry) {
	if !e.readOnly {
		e.snapshot = snapshot(e.table, e.entity)
	}
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = e
}

// Lookup returns the managed instance of type typ with the given id.
func (c *Context) Lookup(typ reflect.Type, id ...any) (any, bool) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	key := entityKey{typ: typ, id: formatID(id)}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.removed {
		return nil, false
	}
	return e.entity, true
}

// Find is the typed form of Lookup.
func Find[T any](c *Context, id ...any) (*T, bool) {
	v, ok := c.Lookup(reflect.TypeFor[T](), id...)
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// Contains reports whether entity is the managed instance for its identity.
func (c *Context) Contains(entity any) bool {
	key, _, err := c.keyOf(entity)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && !e.removed && e.entity == entity
}

// Detach stops managing entity. Pending changes are discarded.
func (c *Context) Detach(entity any) {
	key, _, err := c.keyOf(entity)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delete(key)
}

// DetachType stops managing every entity of the same type as sample.
func (c *Context) DetachType(sample any) {
	typ := reflect.TypeOf(sample)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.typ == typ {
			c.delete(key)
		}
	}
}

func (c *Context) delete(key entityKey) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Remove schedules entity for deletion on the next Flush. Until then it is
// no longer returned by Lookup.
func (c *Context) Remove(entity any) error {
	key, table, err := c.keyOf(entity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{entity: entity, table: table, readOnly: true}
		c.put(key, e)
	}
	e.removed = true
	return nil
}

// Clear detaches every managed entity.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[entityKey]*entry)
	c.order = nil
}

// Size returns the number of managed entities, including those scheduled
// for removal.
func (c *Context) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsDirty reports whether a managed entity changed since its snapshot.
func (c *Context) IsDirty(entity any) bool {
	key, _, err := c.keyOf(entity)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && len(dirtyColumns(e)) > 0
}

// Flush writes pending changes through the context's handle.
func (c *Context) Flush(ctx context.Context) (FlushStats, error) {
	return c.FlushWith(ctx, c.db)
}

// FlushWith writes the changed columns of dirty entities with an UPDATE by
// primary key and deletes removed ones, in the order they became managed.
// Columns that were not changed through the entity are left alone, so a
// stale entity never overwrites a bulk update.
func (c *Context) FlushWith(ctx context.Context, db bun.IDB) (FlushStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats FlushStats
	for _, key := range append([]entityKey(nil), c.order...) {
		e := c.entries[key]
		switch {
		case e.removed:
			if _, err := db.NewDelete().Model(e.entity).WherePK().Exec(ctx); err != nil {
				return stats, fmt.Errorf("flush delete %s: %w", e.table.Name, err)
			}
			c.delete(key)
			stats.Deleted++
		case e.readOnly:
		default:
			columns := dirtyColumns(e)
			if len(columns) == 0 {
				continue
			}
			q := db.NewUpdate().Model(e.entity).Column(updateColumns(e.entity, columns)...).WherePK()
			if _, err := q.Exec(ctx); err != nil {
				return stats, fmt.Errorf("flush update %s: %w", e.table.Name, err)
			}
			logger.WithFields(logrus.Fields{
				"table":   e.table.Name,
				"id":      key.id,
				"columns": strings.Join(columns, ","),
			}).Debug("flushed dirty entity")
			e.snapshot = snapshot(e.table, e.entity)
			stats.Updated++
		}
	}
	return stats, nil
}

func (c *Context) keyOf(entity any) (entityKey, *schema.Table, error) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return entityKey{}, nil, ErrNotStructPointer
	}
	strct := v.Elem()
	table := c.db.Dialect().Tables().Get(strct.Type())
	if len(table.PKs) == 0 {
		return entityKey{}, nil, fmt.Errorf("%w: %s has no primary key", ErrNoIdentifier, table.TypeName)
	}
	ids := make([]any, len(table.PKs))
	for i, pk := range table.PKs {
		if pk.HasZeroValue(strct) {
			return entityKey{}, nil, ErrNoIdentifier
		}
		ids[i] = pk.Value(strct).Interface()
	}
	return entityKey{typ: strct.Type(), id: formatID(ids)}, table, nil
}

func formatID(ids []any) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if v := reflect.ValueOf(id); v.Kind() == reflect.Ptr && !v.IsNil() {
			id = v.Elem().Interface()
		}
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, "|")
}

func snapshot(table *schema.Table, entity any) []any {
	strct := reflect.ValueOf(entity).Elem()
	values := make([]any, len(table.Fields))
	for i, f := range table.Fields {
		values[i] = f.Value(strct).Interface()
	}
	return values
}

func updateColumns(entity any, dirty []string) []string {
	stamped, ok := entity.(UpdateStamped)
	if !ok {
		return dirty
	}
	columns := append([]string(nil), dirty...)
	for _, name := range stamped.UpdateStampedColumns() {
		if !slices.Contains(columns, name) {
			columns = append(columns, name)
		}
	}
	return columns
}

func dirtyColumns(e *entry) []string {
	if e.readOnly || e.removed || e.snapshot == nil {
		return nil
	}
	strct := reflect.ValueOf(e.entity).Elem()
	var columns []string
	for i, f := range e.table.Fields {
		if !reflect.DeepEqual(e.snapshot[i], f.Value(strct).Interface()) {
			columns = append(columns, f.Name)
		}
	}
	return columns
}
