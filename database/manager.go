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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

const defaultConnectTimeout = 30 * time.Second

// dataSource is everything sql.Open and bun.NewDB need for one database type.
type dataSource struct {
	driver  string
	dsn     string
	dialect func() schema.Dialect
	// single connection pool, for in-memory sqlite
	single bool
}

func newDataSource(cfg *ConnectionConfig) (dataSource, error) {
	switch cfg.Type {
	case "mysql":
		return dataSource{
			driver:  "mysql",
			dsn:     mysqlDSN(cfg),
			dialect: func() schema.Dialect { return mysqldialect.New() },
		}, nil
	case "postgres", "postgresql":
		driver := "postgres"
		if strings.EqualFold(cfg.Driver, "pgx") {
			driver = "pgx"
		}
		return dataSource{
			driver:  driver,
			dsn:     postgresDSN(cfg),
			dialect: func() schema.Dialect { return pgdialect.New() },
		}, nil
	case "sqlite", "sqlite3":
		dsn := SQLiteDSN(cfg.DBName)
		return dataSource{
			driver:  sqliteshim.ShimName,
			dsn:     dsn,
			dialect: func() schema.Dialect { return sqlitedialect.New() },
			single:  strings.Contains(dsn, "memory"),
		}, nil
	default:
		return dataSource{}, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// mysqlDSN reports matched rather than changed rows for UPDATE, so an update
// that writes unchanged values still counts the row.
func mysqlDSN(cfg *ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.ClientFoundRows = true
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// SQLiteDSN maps a configured database name to a sqlite data source. Plain
// names become "<name>.db"; ":memory:" and "file:" URIs pass through.
func SQLiteDSN(name string) string {
	switch {
	case name == "":
		return "file::memory:?cache=shared"
	case name == ":memory:", strings.HasPrefix(name, "file:"):
		return name
	default:
		return name + ".db"
	}
}

func openDataSource(src dataSource, cfg *ConnectionConfig, logger Logger) (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open(src.driver, src.dsn)
	if err != nil {
		return nil, nil, err
	}
	if src.single {
		// an in-memory database lives only as long as its connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	db := bun.NewDB(sqlDB, src.dialect())
	if cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if cfg.EnableConsoleLog {
		db.AddQueryHook(NewConsoleQueryHook("BUN_CONSOLE", true, nil))
	}
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: cfg.SlowQueryTime, logger: logger})
	}
	db.RegisterModel(RegisteredModelInstances()...)
	return sqlDB, db, nil
}

type defaultDatabaseManager struct {
	config *Config
	logger Logger

	mu        sync.RWMutex
	db        *bun.DB
	sqlDB     *sql.DB
	lastError error
	// closed together with the connection to stop its health watcher
	stopWatch chan struct{}
	// set by Disconnect; a pending reconnect gives up
	closed bool
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun. A nil
// config falls back to DefaultConnectionConfig with migrations disabled.
func NewDatabaseManager(config *Config) AbstractDatabaseManager {
	if config == nil {
		config = &Config{ConnectionConfig: *DefaultConnectionConfig()}
	}
	return &defaultDatabaseManager{config: config, logger: GetLogger()}
}

func (dm *defaultDatabaseManager) conn() *ConnectionConfig {
	return &dm.config.ConnectionConfig
}

func (dm *defaultDatabaseManager) log() Logger {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.logger
}

func (dm *defaultDatabaseManager) connectTimeout() time.Duration {
	if t := dm.conn().ConnectTimeout; t > 0 {
		return t
	}
	return defaultConnectTimeout
}

// Connect opens and pings the database. It is a no-op while connected.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db != nil {
		return nil
	}

	cfg := dm.conn()
	src, err := newDataSource(cfg)
	if err != nil {
		dm.lastError = err
		return err
	}
	sqlDB, db, err := openDataSource(src, cfg, dm.logger)
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dm.connectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		dm.lastError = err
		_ = db.Close()
		return fmt.Errorf("ping %s database: %w", cfg.Type, err)
	}

	dm.db, dm.sqlDB, dm.lastError = db, sqlDB, nil
	dm.closed = false
	if cfg.HealthCheckInterval > 0 {
		dm.stopWatch = make(chan struct{})
		go dm.watch(dm.stopWatch, cfg.HealthCheckInterval)
	}
	dm.logger.Info("database connected", "type", cfg.Type, "driver", src.driver, "host", cfg.Host, "dbname", cfg.DBName)
	return nil
}

// Disconnect closes the connection and cancels any pending reconnect.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.closed = true
	return dm.closeLocked()
}

func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.stopWatch != nil {
		close(dm.stopWatch)
		dm.stopWatch = nil
	}
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	if err != nil {
		dm.logger.Error("close database", "error", err)
	} else {
		dm.logger.Info("database connection closed")
	}
	return err
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.mu.Lock()
	err := dm.closeLocked()
	dm.mu.Unlock()
	if err != nil {
		dm.log().Warn("reconnect: closing the old connection failed", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) isClosed() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.closed
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.RLock()
	db, sqlDB := dm.db, dm.sqlDB
	dm.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if db == nil {
		status.LastError = "database not connected"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}
	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.mu.Lock()
	dm.lastError = err
	dm.mu.Unlock()
	return status
}

// watch pings the connection every interval and, when reconnecting is
// enabled, replaces it after a failed check. It stops when stop is closed.
func (dm *defaultDatabaseManager) watch(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		healthy := dm.HealthCheck(ctx).Healthy
		cancel()
		if !healthy && dm.conn().EnableReconnect {
			// Reconnect closes stop; a new connection gets a new watcher
			dm.reconnect()
			return
		}
	}
}

func (dm *defaultDatabaseManager) reconnect() {
	cfg := dm.conn()
	for try := 1; try <= cfg.MaxReconnectTries; try++ {
		time.Sleep(cfg.ReconnectInterval)
		if dm.isClosed() {
			return
		}
		dm.log().Info("reconnecting database", "try", try)
		ctx, cancel := context.WithTimeout(context.Background(), dm.connectTimeout())
		err := dm.Reconnect(ctx)
		cancel()
		if err == nil {
			dm.log().Info("database reconnected", "try", try)
			return
		}
		dm.log().Error("reconnect failed", "error", err, "try", try)
	}
	dm.log().Error("giving up reconnecting", "tries", cfg.MaxReconnectTries)
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	return newDBStats(sqlDB.Stats())
}

func (dm *defaultDatabaseManager) migrations() (*MigrationManager, error) {
	db := dm.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return NewMigrationManager(db, dm.config, dm.log()), nil
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	mm, err := dm.migrations()
	if err != nil {
		return err
	}
	return mm.RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) InitData(ctx context.Context) error {
	mm, err := dm.migrations()
	if err != nil {
		return err
	}
	return mm.InitData(ctx)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		logger = GetLogger()
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
