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
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSNCountsMatchedRows(t *testing.T) {
	cfg := &ConnectionConfig{
		Type: "mysql", Host: "db", Port: 3306, Username: "app", Password: "p@ss:word",
		DBName: "members", ConnectTimeout: 10 * time.Second, ReadTimeout: 30 * time.Second,
	}
	parsed, err := mysql.ParseDSN(mysqlDSN(cfg))
	require.NoError(t, err)
	assert.True(t, parsed.ClientFoundRows)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "members", parsed.DBName)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &ConnectionConfig{
		Type: "postgres", Host: "db", Port: 5432, Username: "app", Password: "p@ss/word",
		DBName: "members", ConnectTimeout: 5 * time.Second,
	}
	parsed, err := pgx.ParseConfig(postgresDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "db", parsed.Host)
	assert.Equal(t, uint16(5432), parsed.Port)
	assert.Equal(t, "p@ss/word", parsed.Password)
	assert.Equal(t, "members", parsed.Database)
	assert.Equal(t, 5*time.Second, parsed.ConnectTimeout)
}

func TestNewDataSourceDrivers(t *testing.T) {
	src, err := newDataSource(&ConnectionConfig{Type: "postgres", Driver: "PGX"})
	require.NoError(t, err)
	assert.Equal(t, "pgx", src.driver)

	src, err = newDataSource(&ConnectionConfig{Type: "postgres"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", src.driver)

	src, err = newDataSource(&ConnectionConfig{Type: "sqlite", DBName: "file:x?mode=memory"})
	require.NoError(t, err)
	assert.True(t, src.single)

	_, err = newDataSource(&ConnectionConfig{Type: "oracle"})
	assert.Error(t, err)
}

func TestManagerReconnect(t *testing.T) {
	ctx := context.Background()
	manager := NewDatabaseManager(newTestConfig("reconnect"))
	require.NoError(t, manager.Connect(ctx))
	first := manager.GetDB()

	require.NoError(t, manager.Reconnect(ctx))
	assert.NotSame(t, first, manager.GetDB())
	assert.True(t, manager.HealthCheck(ctx).Healthy)

	require.NoError(t, manager.Disconnect())
	assert.Nil(t, manager.GetDB())
	status := manager.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "database not connected", status.LastError)
	assert.Error(t, manager.Ping(ctx))
}
