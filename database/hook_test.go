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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

type recordingLogger struct {
	warns []string
}

func (r *recordingLogger) SetLevel(LogLevel)                       {}
func (r *recordingLogger) Debug(msg string, fields ...interface{}) {}
func (r *recordingLogger) Info(msg string, fields ...interface{})  {}
func (r *recordingLogger) Warn(msg string, fields ...interface{})  { r.warns = append(r.warns, msg) }
func (r *recordingLogger) Error(msg string, fields ...interface{}) {}

func TestConsoleQueryHook(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	hook := NewConsoleQueryHook("", false, &buf)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Empty(t, buf.String(), "successful queries are only printed when verbose")

	hook.AfterQuery(context.Background(), &bun.QueryEvent{
		Query:     "UPDATE member SET age = age + 1",
		StartTime: time.Now(),
		Err:       errors.New("boom"),
	})
	assert.Contains(t, buf.String(), "UPDATE member SET age = age + 1")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	EnableBunSqlSilent(true)
	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "DELETE", StartTime: time.Now(), Err: errors.New("x")})
	EnableBunSqlSilent(false)
	assert.Empty(t, buf.String())
}

func TestConsoleQueryHookEnvOverride(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	hook := NewConsoleQueryHook("MEMBERSTORE_TEST_SQL", false, &buf)

	t.Setenv("MEMBERSTORE_TEST_SQL", "2")
	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	t.Setenv("MEMBERSTORE_TEST_SQL", "0")
	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: errors.New("x")})
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	log := &recordingLogger{}
	hook := &slowQueryHook{slowTime: time.Millisecond, logger: log}

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Empty(t, log.warns)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
	assert.Len(t, log.warns, 1)
}
