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
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// envOverride applies one DB_* variable to a connection config. It reports
// an error when the value cannot be parsed.
type envOverride struct {
	key   string
	apply func(cfg *ConnectionConfig, value string) error
}

func stringEnv(key string, field func(*ConnectionConfig) *string) envOverride {
	return envOverride{key, func(cfg *ConnectionConfig, v string) error {
		*field(cfg) = v
		return nil
	}}
}

func intEnv(key string, field func(*ConnectionConfig) *int) envOverride {
	return envOverride{key, func(cfg *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}}
}

func boolEnv(key string, field func(*ConnectionConfig) *bool) envOverride {
	return envOverride{key, func(cfg *ConnectionConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}}
}

// durationEnv accepts Go durations ("90s", "1h") and bare numbers of seconds.
func durationEnv(key string, field func(*ConnectionConfig) *time.Duration) envOverride {
	return envOverride{key, func(cfg *ConnectionConfig, v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*field(cfg) = time.Duration(n) * time.Second
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}}
}

var connectionEnvOverrides = []envOverride{
	stringEnv("DB_TYPE", func(c *ConnectionConfig) *string { return &c.Type }),
	stringEnv("DB_DRIVER", func(c *ConnectionConfig) *string { return &c.Driver }),
	stringEnv("DB_HOST", func(c *ConnectionConfig) *string { return &c.Host }),
	intEnv("DB_PORT", func(c *ConnectionConfig) *int { return &c.Port }),
	stringEnv("DB_USERNAME", func(c *ConnectionConfig) *string { return &c.Username }),
	stringEnv("DB_PASSWORD", func(c *ConnectionConfig) *string { return &c.Password }),
	stringEnv("DB_NAME", func(c *ConnectionConfig) *string { return &c.DBName }),
	stringEnv("DB_SSLMODE", func(c *ConnectionConfig) *string { return &c.SSLMode }),
	intEnv("DB_MAX_IDLE_CONNS", func(c *ConnectionConfig) *int { return &c.MaxIdleConns }),
	intEnv("DB_MAX_OPEN_CONNS", func(c *ConnectionConfig) *int { return &c.MaxOpenConns }),
	durationEnv("DB_CONN_MAX_LIFETIME", func(c *ConnectionConfig) *time.Duration { return &c.ConnMaxLifetime }),
	boolEnv("DB_ENABLE_RECONNECT", func(c *ConnectionConfig) *bool { return &c.EnableReconnect }),
	durationEnv("DB_RECONNECT_INTERVAL", func(c *ConnectionConfig) *time.Duration { return &c.ReconnectInterval }),
	boolEnv("DB_ENABLE_QUERY_LOG", func(c *ConnectionConfig) *bool { return &c.EnableQueryLog }),
	boolEnv("DB_ENABLE_CONSOLE_LOG", func(c *ConnectionConfig) *bool { return &c.EnableConsoleLog }),
	durationEnv("DB_SLOW_QUERY_TIME", func(c *ConnectionConfig) *time.Duration { return &c.SlowQueryTime }),
}

// BaseDatabaseFactory creates the database manager and owns it for the
// lifetime of the process-wide connection.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig builds a manager for cfg. DB_* environment variables take
// precedence over the connection settings in cfg; unparsable values are
// logged and ignored.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.applyEnvOverrides(&cfg.ConnectionConfig)

	if err := cfg.ConnectionConfig.Validate(); err != nil {
		return nil, err
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	return manager, nil
}

func (f *BaseDatabaseFactory) applyEnvOverrides(cfg *ConnectionConfig) {
	for _, o := range connectionEnvOverrides {
		v, ok := os.LookupEnv(o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			f.logger.Warn("ignoring invalid environment override", "key", o.key, "error", err)
		}
	}
}

// InitializeDatabase connects and optionally runs migrations.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	f.logger.Info("database initialized", "type", f.manager.GetDB().Dialect().Name().String(), "migrated", runMigrations)
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the bun database, or nil before CreateFromConfig.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

// GetHealthStatus reports an unhealthy status while no manager exists.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
