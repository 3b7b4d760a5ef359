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

package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tomoncle/memberstore/persistence"
	"github.com/uptrace/bun"
)

const persistenceContextKey = "persistence-context"

// RequestLogger logs every request with its status and duration.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		reqID, _ := c.Locals("requestid").(string)
		logger.WithFields(map[string]any{
			"method":      c.Method(),
			"path":        c.OriginalURL(),
			"status":      c.Response().StatusCode(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id":  reqID,
		}).Info("http")
		return err
	}
}

// UnitOfWork gives each request its own persistence context and flushes the
// changes of managed entities when the handler succeeds.
func UnitOfWork(db bun.IDB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pc := persistence.New(db)
		c.Locals(persistenceContextKey, pc)
		if err := c.Next(); err != nil {
			return err
		}
		stats, err := pc.Flush(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}
		if stats.Updated > 0 || stats.Deleted > 0 {
			logger.WithField("updated", stats.Updated).WithField("deleted", stats.Deleted).Debug("flushed unit of work")
		}
		return nil
	}
}

func persistenceContext(c *fiber.Ctx) *persistence.Context {
	pc, _ := c.Locals(persistenceContextKey).(*persistence.Context)
	return pc
}
