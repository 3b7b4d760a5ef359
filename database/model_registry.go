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

package database

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ModelRegistration is a bun model known to the migration manager. Models
// with a lower Priority are created first and dropped last.
type ModelRegistration struct {
	Model    any
	Priority int
}

// ModelRegistry keeps one registration per model type.
type ModelRegistry struct {
	mu    sync.RWMutex
	byKey map[reflect.Type]int
	items []ModelRegistration
}

var defaultRegistry = NewModelRegistry()

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{byKey: make(map[reflect.Type]int)}
}

// Register adds model, which must be a struct pointer. Registering a type
// again replaces its priority.
func (r *ModelRegistry) Register(model any, priority int) error {
	typ := reflect.TypeOf(model)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("model must be a struct pointer, got %T", model)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byKey[typ.Elem()]; ok {
		r.items[i].Priority = priority
		return nil
	}
	r.byKey[typ.Elem()] = len(r.items)
	r.items = append(r.items, ModelRegistration{Model: model, Priority: priority})
	return nil
}

// Models returns the registrations by ascending priority, keeping
// registration order among equal priorities.
func (r *ModelRegistry) Models() []ModelRegistration {
	r.mu.RLock()
	out := slices.Clone(r.items)
	r.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b ModelRegistration) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

// Instances returns the model pointers in creation order.
func (r *ModelRegistry) Instances() []any {
	models := r.Models()
	out := make([]any, len(models))
	for i, m := range models {
		out[i] = m.Model
	}
	return out
}

// RegisterModel adds a model to the process-wide registry. It panics on a
// value that is not a struct pointer, which is a programming error.
func RegisterModel(model any, priority int) {
	if err := defaultRegistry.Register(model, priority); err != nil {
		panic(err)
	}
}

func GetRegisteredModels() []ModelRegistration {
	return defaultRegistry.Models()
}

// RegisteredModelInstances returns the process-wide models ready for
// bun.DB.RegisterModel and table creation.
func RegisteredModelInstances() []any {
	return defaultRegistry.Instances()
}
