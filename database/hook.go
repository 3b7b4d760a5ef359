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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the console and slow query hooks, e.g. while
// migrations run.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var (
	hookTagColor   = color.New(color.FgCyan)
	hookErrorColor = color.New(color.BgRed, color.FgWhite)
	otherOpColor   = color.New(color.FgRed)
)

// ConsoleQueryHook prints every query colored by operation. The envName
// variable overrides the configured behaviour: "0" or empty disables, "1"
// prints failed queries only, "2" prints everything.
type ConsoleQueryHook struct {
	envName string
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*ConsoleQueryHook)(nil)

// NewConsoleQueryHook returns a hook writing to w, or stdout when w is nil.
func NewConsoleQueryHook(envName string, verbose bool, w io.Writer) *ConsoleQueryHook {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleQueryHook{envName: envName, verbose: verbose, writer: w}
}

func (h *ConsoleQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *ConsoleQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	verbose := h.verbose
	if env, ok := os.LookupEnv(h.envName); ok && h.envName != "" {
		if env == "" || env == "0" {
			return
		}
		verbose = env == "2"
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		hookTagColor.Sprintf("%8s", "[BUN]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		colorForOperation(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		args = append(args, hookErrorColor.Sprintf(" %T: %v ", event.Err, event.Err))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func colorForOperation(op string) *color.Color {
	if c, ok := operationColors[op]; ok {
		return c
	}
	return otherOpColor
}

// slowQueryHook reports successful queries slower than slowTime.
type slowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

var _ bun.QueryHook = (*slowQueryHook)(nil)

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.logger == nil || bunSqlSilentMode.Load() {
		return
	}
	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}
