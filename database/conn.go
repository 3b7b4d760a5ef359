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
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

// ErrNotInitialized is returned by the process-wide helpers before InitDB.
var ErrNotInitialized = errors.New("database not initialized")

// process holds the connection shared by GetDB and the helpers below.
var process struct {
	mu      sync.RWMutex
	factory *BaseDatabaseFactory
}

func currentFactory() *BaseDatabaseFactory {
	process.mu.RLock()
	defer process.mu.RUnlock()
	return process.factory
}

// GetDB returns the process-wide bun database, or nil before InitDB.
func GetDB() *bun.DB {
	if f := currentFactory(); f != nil {
		return f.GetDB()
	}
	return nil
}

func GetDatabaseManager() AbstractDatabaseManager {
	if f := currentFactory(); f != nil {
		return f.GetManager()
	}
	return nil
}

func GetDatabaseFactory() *BaseDatabaseFactory {
	return currentFactory()
}

// InitDB connects the process-wide database. Migrations run when
// cfg.DataMigrateConfig.EnableMigrateOnStartup is set.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	return InitDatabaseWithOptions(ctx, cfg, cfg.DataMigrateConfig.EnableMigrateOnStartup)
}

// InitDatabaseWithOptions connects the process-wide database, replacing and
// closing any earlier one.
func InitDatabaseWithOptions(ctx context.Context, cfg *Config, runMigrations bool) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	if _, err := factory.CreateFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, runMigrations); err != nil {
		_ = factory.Close()
		return nil, err
	}

	process.mu.Lock()
	previous := process.factory
	process.factory = factory
	process.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	return factory.GetDB(), nil
}

// CloseDB closes the process-wide database. It is a no-op before InitDB.
func CloseDB() error {
	process.mu.Lock()
	f := process.factory
	process.factory = nil
	process.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func GetHealthStatus(ctx context.Context) *HealthStatus {
	if f := currentFactory(); f != nil {
		return f.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: ErrNotInitialized.Error()}
}

func GetDatabaseStats() *DBStats {
	if f := currentFactory(); f != nil {
		return f.GetStats()
	}
	return &DBStats{}
}

// RunMigrations migrates the process-wide database.
func RunMigrations(ctx context.Context) error {
	manager := GetDatabaseManager()
	if manager == nil {
		return ErrNotInitialized
	}
	return manager.RunMigrations(ctx)
}

// InitData runs the configured SQL seed files against the process-wide
// database.
func InitData(ctx context.Context) error {
	manager := GetDatabaseManager()
	if manager == nil {
		return ErrNotInitialized
	}
	return manager.InitData(ctx)
}
