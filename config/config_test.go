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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr())
	assert.Equal(t, 20, cfg.Web.DefaultPageSize)
	assert.Equal(t, 2000, cfg.Web.MaxPageSize)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.True(t, cfg.Database.MigrateOnStartup)
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=9090\nDATABASE_NAME=fromfile\nSEED_MEMBERS=100\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"SERVER_PORT", "SEED_MEMBERS"} {
			_ = os.Unsetenv(k)
		}
	})
	t.Setenv("DATABASE_NAME", "fromenv")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("DATABASE_SLOW_QUERY_TIME", "150ms")
	t.Setenv("WEB_ONE_INDEXED_PARAMETERS", "true")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Seed.Members)
	assert.Equal(t, "fromenv", cfg.Database.Name)
	assert.Equal(t, 150*time.Millisecond, cfg.Database.SlowQueryTime)
	assert.True(t, cfg.Web.OneIndexedParams)

	db := cfg.ConfigLoader()
	assert.Equal(t, "postgres", db.ConnectionConfig.Type)
	assert.Equal(t, "pgx", db.ConnectionConfig.Driver)
	assert.Equal(t, "fromenv", db.ConnectionConfig.DBName)
	assert.Equal(t, 150*time.Millisecond, db.ConnectionConfig.SlowQueryTime)
	assert.True(t, db.DataMigrateConfig.EnableForeignKey)
	assert.Equal(t, "prod", db.DataInitConfig.Environment)
	assert.True(t, db.ConnectionConfig.EnableReconnect)
}

func TestValidate(t *testing.T) {
	t.Setenv("WEB_MAX_PAGE_SIZE", "5")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web.max_page_size")
}
