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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/memberstore/persistence"
	"github.com/uptrace/bun"
)

// AuditorAware supplies the name recorded in CreatedBy and LastModifiedBy.
type AuditorAware interface {
	CurrentAuditor(ctx context.Context) (string, bool)
}

// AuditorFunc adapts a function to AuditorAware.
type AuditorFunc func(ctx context.Context) (string, bool)

func (f AuditorFunc) CurrentAuditor(ctx context.Context) (string, bool) { return f(ctx) }

type auditorKey struct{}

var (
	auditorMu    sync.RWMutex
	auditorAware AuditorAware = AuditorFunc(func(context.Context) (string, bool) {
		return uuid.NewString(), true
	})
	nowFunc = time.Now
)

// SetAuditorAware replaces the process-wide auditor. The default records a
// random UUID for every write.
func SetAuditorAware(a AuditorAware) {
	auditorMu.Lock()
	defer auditorMu.Unlock()
	auditorAware = a
}

// WithAuditor returns a context whose writes are attributed to name. It takes
// precedence over the configured AuditorAware.
func WithAuditor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, auditorKey{}, name)
}

func currentAuditor(ctx context.Context) string {
	if name, ok := ctx.Value(auditorKey{}).(string); ok && name != "" {
		return name
	}
	auditorMu.RLock()
	a := auditorAware
	auditorMu.RUnlock()
	if a == nil {
		return ""
	}
	name, _ := a.CurrentAuditor(ctx)
	return name
}

// BaseTimeEntity records creation and update times.
type BaseTimeEntity struct {
	CreatedDate time.Time `bun:"created_date,nullzero" json:"createdDate"`
	UpdatedDate time.Time `bun:"updated_date,nullzero" json:"updatedDate"`
}

var (
	_ bun.BeforeAppendModelHook = (*BaseTimeEntity)(nil)
	_ persistence.UpdateStamped = (*BaseTimeEntity)(nil)
)

func (e *BaseTimeEntity) UpdateStampedColumns() []string {
	return []string{"updated_date"}
}

func (e *BaseTimeEntity) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := nowFunc()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.CreatedDate.IsZero() {
			e.CreatedDate = now
		}
		e.UpdatedDate = now
	case *bun.UpdateQuery:
		e.UpdatedDate = now
	}
	return nil
}

// BaseEntity records who created and last modified a row, and when.
type BaseEntity struct {
	CreatedDate      time.Time `bun:"created_date,nullzero" json:"createdDate"`
	LastModifiedDate time.Time `bun:"last_modified_date,nullzero" json:"lastModifiedDate"`
	CreatedBy        string    `bun:"created_by,nullzero" json:"createdBy"`
	LastModifiedBy   string    `bun:"last_modified_by,nullzero" json:"lastModifiedBy"`
}

var (
	_ bun.BeforeAppendModelHook = (*BaseEntity)(nil)
	_ persistence.UpdateStamped = (*BaseEntity)(nil)
)

func (e *BaseEntity) UpdateStampedColumns() []string {
	return []string{"last_modified_date", "last_modified_by"}
}

// BeforeAppendModel stamps the auditing columns. Created values are written
// once and never overwritten by later updates.
func (e *BaseEntity) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := nowFunc()
	switch query.(type) {
	case *bun.InsertQuery:
		auditor := currentAuditor(ctx)
		if e.CreatedDate.IsZero() {
			e.CreatedDate = now
		}
		if e.CreatedBy == "" {
			e.CreatedBy = auditor
		}
		e.LastModifiedDate = now
		e.LastModifiedBy = auditor
	case *bun.UpdateQuery:
		e.LastModifiedDate = now
		e.LastModifiedBy = currentAuditor(ctx)
	}
	return nil
}
