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

// Command memberstore serves the member endpoints over the configured database.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/tomoncle/memberstore/config"
	"github.com/tomoncle/memberstore/database"
	_ "github.com/tomoncle/memberstore/entity"
	"github.com/tomoncle/memberstore/store"
	"github.com/tomoncle/memberstore/utils"
	"github.com/tomoncle/memberstore/web"
)

func main() {
	envFile := flag.String("env", config.DefaultEnvFile, "path of an optional .env file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := utils.NewLogger("MAIN")
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.WithError(err).Error("configuration error")
		return
	}
	utils.ConfigureConsoleLogFormat(cfg.Logging.Format)
	utils.ConfigureLogLevel(cfg.Logging.Level)

	db, err := database.InitDB(ctx, cfg.ConfigLoader())
	if err != nil {
		log.WithError(err).Error("database initialization error")
		return
	}
	defer func() {
		_ = database.CloseDB()
	}()

	if cfg.Seed.Members > 0 {
		n, err := store.SeedMembers(ctx, store.NewMemberRepository(db), cfg.Seed.Members)
		if err != nil {
			log.WithError(err).Error("seed members")
			return
		}
		log.WithField("count", n).Info("member seed finished")
	}

	resolver := web.PageableResolver{
		DefaultSize: cfg.Web.DefaultPageSize,
		MaxSize:     cfg.Web.MaxPageSize,
		OneIndexed:  cfg.Web.OneIndexedParams,
	}
	app := web.NewApp(web.NewHandler(db, resolver, database.GetDatabaseManager()), fiber.Config{
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
	})

	go func() {
		if err := app.Listen(cfg.ServerAddr()); err != nil {
			log.WithError(err).Error("failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		log.WithError(err).WithField("timeout", cfg.Server.ShutdownTimeout).Warn("server shutdown timeout")
	}
}
