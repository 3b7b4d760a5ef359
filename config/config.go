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

// Package config loads the application configuration from the environment,
// an optional .env file and typed defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tomoncle/memberstore/database"
)

// DefaultEnvFile is read when Load is given an empty path.
const DefaultEnvFile = ".env"

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Web      WebConfig      `mapstructure:"web"`
	Database DatabaseConfig `mapstructure:"database"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebConfig tunes how page requests are read from query parameters.
type WebConfig struct {
	DefaultPageSize  int  `mapstructure:"default_page_size"`
	MaxPageSize      int  `mapstructure:"max_page_size"`
	OneIndexedParams bool `mapstructure:"one_indexed_parameters"`
}

type DatabaseConfig struct {
	Type             string        `mapstructure:"type"`
	Driver           string        `mapstructure:"driver"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Name             string        `mapstructure:"name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	EnableQueryLog   bool          `mapstructure:"enable_query_log"`
	EnableConsoleLog bool          `mapstructure:"enable_console_log"`
	SlowQueryTime    time.Duration `mapstructure:"slow_query_time"`
	MigrateOnStartup bool          `mapstructure:"migrate_on_startup"`
	EnableForeignKey bool          `mapstructure:"enable_foreign_key"`
	ForeignKeyFile   string        `mapstructure:"foreign_key_file"`
	InitSQLPath      string        `mapstructure:"init_sql_path"`
	InitEnvironment  string        `mapstructure:"init_environment"`
	InitOnMigration  bool          `mapstructure:"init_on_migration"`
	InitSQLTemplated bool          `mapstructure:"init_sql_templated"`
}

// SeedConfig controls the demo members inserted at startup.
type SeedConfig struct {
	Members int `mapstructure:"members"`
}

var _ database.AbstractDatabaseConfigProvider = (*Config)(nil)

// Load reads envFile when it exists, without overriding variables already
// set, and decodes the result over the defaults.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("web.default_page_size", 20)
	v.SetDefault("web.max_page_size", 2000)
	v.SetDefault("web.one_indexed_parameters", false)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "memberstore")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.enable_query_log", false)
	v.SetDefault("database.enable_console_log", false)
	v.SetDefault("database.slow_query_time", 2*time.Second)
	v.SetDefault("database.migrate_on_startup", true)
	v.SetDefault("database.enable_foreign_key", true)
	v.SetDefault("database.foreign_key_file", "")
	v.SetDefault("database.init_sql_path", "")
	v.SetDefault("database.init_environment", "prod")
	v.SetDefault("database.init_on_migration", false)
	v.SetDefault("database.init_sql_templated", false)

	v.SetDefault("seed.members", 0)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Web.DefaultPageSize < 1 {
		return fmt.Errorf("web.default_page_size must be positive: %d", c.Web.DefaultPageSize)
	}
	if c.Web.MaxPageSize < c.Web.DefaultPageSize {
		return fmt.Errorf("web.max_page_size %d is below the default page size %d", c.Web.MaxPageSize, c.Web.DefaultPageSize)
	}
	if c.Seed.Members < 0 {
		return fmt.Errorf("seed.members must not be negative: %d", c.Seed.Members)
	}
	return nil
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ConfigLoader maps the database section onto the database package config.
// Settings not exposed here keep the database package defaults.
func (c *Config) ConfigLoader() *database.Config {
	conn := database.DefaultConnectionConfig()
	d := c.Database
	conn.Type = d.Type
	conn.Driver = d.Driver
	conn.Host = d.Host
	conn.Port = d.Port
	conn.Username = d.Username
	conn.Password = d.Password
	conn.DBName = d.Name
	conn.SSLMode = d.SSLMode
	conn.MaxIdleConns = d.MaxIdleConns
	conn.MaxOpenConns = d.MaxOpenConns
	conn.ConnMaxLifetime = d.ConnMaxLifetime
	conn.EnableQueryLog = d.EnableQueryLog
	conn.EnableConsoleLog = d.EnableConsoleLog
	conn.SlowQueryTime = d.SlowQueryTime

	return &database.Config{
		ConnectionConfig: *conn,
		DataMigrateConfig: database.DataMigrateConfig{
			EnableMigrateOnStartup: d.MigrateOnStartup,
			EnableForeignKey:       d.EnableForeignKey,
			ForeignKeyFile:         d.ForeignKeyFile,
		},
		DataInitConfig: database.DataInitConfig{
			AutoInitOnMigration: d.InitOnMigration,
			Filepath:            d.InitSQLPath,
			Environment:         d.InitEnvironment,
			Templated:           d.InitSQLTemplated,
		},
	}
}
