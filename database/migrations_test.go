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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

func init() {
	RegisterModel((*widget)(nil), 1)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestConfig(name string) *Config {
	cfg := &Config{ConnectionConfig: *DefaultConnectionConfig()}
	cfg.ConnectionConfig.DBName = "file:" + name + "?mode=memory&cache=shared"
	cfg.ConnectionConfig.HealthCheckInterval = 0
	cfg.ConnectionConfig.SlowQueryTime = time.Second
	return cfg
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "memberstore.db", SQLiteDSN("memberstore"))
	assert.Equal(t, ":memory:", SQLiteDSN(":memory:"))
	assert.Equal(t, "file:x?mode=memory", SQLiteDSN("file:x?mode=memory"))
	assert.Equal(t, "file::memory:?cache=shared", SQLiteDSN(""))
}

func TestManagerConnectAndMigrate(t *testing.T) {
	ctx := context.Background()
	seedDir := t.TempDir()
	writeFile(t, filepath.Join(seedDir, "common", "001_widgets.sql"),
		"-- seed\nINSERT INTO widgets (id, name)\nVALUES (1, 'common');\n")
	writeFile(t, filepath.Join(seedDir, "environments", "test", "002_env.sql"),
		"INSERT INTO widgets (id, name) VALUES (2, '{{.ENVIRONMENT}}');")

	cfg := newTestConfig("migrate")
	cfg.DataInitConfig = DataInitConfig{
		AutoInitOnMigration: true,
		Filepath:            seedDir,
		Environment:         "test",
		Templated:           true,
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(GetLogger())
	require.NoError(t, manager.Connect(ctx))
	defer manager.Disconnect()

	require.NoError(t, manager.Ping(ctx))
	require.NoError(t, manager.RunMigrations(ctx))
	// applied migrations are skipped the second time
	require.NoError(t, manager.RunMigrations(ctx))

	var names []string
	require.NoError(t, manager.GetDB().NewSelect().
		Model((*widget)(nil)).
		Column("name").
		Order("id").
		Scan(ctx, &names))
	assert.Equal(t, []string{"common", "test"}, names)

	applied, err := NewMigrationManager(manager.GetDB(), cfg, nil).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "001", applied[0].Version)
	assert.Equal(t, "003", applied[1].Version)

	status := manager.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, manager.GetStats().MaxOpenConns)
}

func TestRollbackMigration(t *testing.T) {
	ctx := context.Background()
	manager := NewDatabaseManager(newTestConfig("rollback"))
	require.NoError(t, manager.Connect(ctx))
	defer manager.Disconnect()
	require.NoError(t, manager.RunMigrations(ctx))

	mm := NewMigrationManager(manager.GetDB(), nil, nil)
	require.NoError(t, mm.RollbackMigration(ctx, "001"))

	_, err := manager.GetDB().NewSelect().Model((*widget)(nil)).Count(ctx)
	assert.Error(t, err)
	assert.Error(t, mm.RollbackMigration(ctx, "999"))
}

func TestFactoryEnvOverride(t *testing.T) {
	t.Setenv("DB_TYPE", "oracle")
	_, err := NewDatabaseFactory().CreateFromConfig(newTestConfig("factory"))
	assert.ErrorContains(t, err, "unsupported database type")

	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_MAX_IDLE_CONNS", "7")
	cfg := newTestConfig("factory")
	_, err = NewDatabaseFactory().CreateFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ConnectionConfig.MaxIdleConns)

	t.Setenv("DB_CONN_MAX_LIFETIME", "90s")
	t.Setenv("DB_RECONNECT_INTERVAL", "3")
	t.Setenv("DB_PORT", "not-a-port")
	cfg = newTestConfig("factory")
	cfg.ConnectionConfig.Port = 1234
	_, err = NewDatabaseFactory().CreateFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.ConnectionConfig.ConnMaxLifetime)
	assert.Equal(t, 3*time.Second, cfg.ConnectionConfig.ReconnectInterval)
	assert.Equal(t, 1234, cfg.ConnectionConfig.Port)

	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_DRIVER", "odbc")
	_, err = NewDatabaseFactory().CreateFromConfig(newTestConfig("factory"))
	assert.ErrorContains(t, err, "unsupported postgres driver")
}

func TestInitDBLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig("global")
	cfg.DataMigrateConfig.EnableMigrateOnStartup = true

	db, err := InitDB(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, db, GetDB())
	assert.True(t, GetHealthStatus(ctx).Healthy)

	_, err = db.NewInsert().Model(&widget{Name: "a"}).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDatabaseManager())
	assert.ErrorIs(t, RunMigrations(ctx), ErrNotInitialized)
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements("-- header\nINSERT INTO a\nVALUES (1);\n\nUPDATE a SET x = 1;\nDELETE FROM a")
	assert.Equal(t, []string{
		"INSERT INTO a VALUES (1);",
		"UPDATE a SET x = 1;",
		"DELETE FROM a",
	}, stmts)
	assert.Equal(t, 12, parseFileOrder("012_seed.sql"))
	assert.Equal(t, 999, parseFileOrder("seed.sql"))
}
