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

// Package web exposes the member endpoints over HTTP.
package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/tomoncle/memberstore/database"
	"github.com/tomoncle/memberstore/entity"
	"github.com/tomoncle/memberstore/repository"
	"github.com/tomoncle/memberstore/store"
	"github.com/tomoncle/memberstore/types"
	"github.com/tomoncle/memberstore/utils"
	"github.com/uptrace/bun"
)

var logger = utils.NewLogger("WEB")

const memberLocalKey = "member"

// HealthChecker reports database health for /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) *database.HealthStatus
}

type Handler struct {
	db       bun.IDB
	pageable PageableResolver
	health   HealthChecker
}

// NewHandler serves members from db. health may be nil, in which case
// /healthz always answers OK.
func NewHandler(db bun.IDB, pageable PageableResolver, health HealthChecker) *Handler {
	return &Handler{db: db, pageable: pageable, health: health}
}

// NewApp returns a fiber app with the middleware stack and every route.
func NewApp(h *Handler, cfg fiber.Config) *fiber.App {
	app := fiber.New(cfg)
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(RequestLogger())
	h.Register(app)
	return app
}

func (h *Handler) Register(r fiber.Router) {
	r.Get("/healthz", h.Healthz)

	members := r.Group("", UnitOfWork(h.db))
	members.Get("/members/:id", h.FindMember)
	members.Get("/members2/:id", h.loadMember, h.FindMember2)
	members.Get("/members", h.List)
	members.Get("/members2", h.List2)
	members.Get("/members3", h.List3)
}

func (h *Handler) members(c *fiber.Ctx) *store.MemberRepository {
	var opts []repository.Option
	if pc := persistenceContext(c); pc != nil {
		opts = append(opts, repository.WithPersistenceContext(pc))
	}
	return store.NewMemberRepository(h.db, opts...)
}

func (h *Handler) findByIDParam(c *fiber.Ctx) (*entity.Member, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	m, err := h.members(c).FindByID(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

// FindMember answers the username of the member with the path id.
func (h *Handler) FindMember(c *fiber.Ctx) error {
	m, err := h.findByIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.SendString(m.Username)
}

// loadMember resolves the path id to a member before the route handler runs.
func (h *Handler) loadMember(c *fiber.Ctx) error {
	m, err := h.findByIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	c.Locals(memberLocalKey, m)
	return c.Next()
}

func (h *Handler) FindMember2(c *fiber.Ctx) error {
	m := c.Locals(memberLocalKey).(*entity.Member)
	return c.SendString(m.Username)
}

func (h *Handler) page(c *fiber.Ctx, def PageableDefault) (types.Page[*entity.Member], error) {
	pageable, err := h.pageable.Resolve(c, def)
	if err != nil {
		return types.Page[*entity.Member]{}, err
	}
	return h.members(c).FindPage(c.UserContext(), nil, pageable)
}

// List returns a page of members using the resolver defaults.
func (h *Handler) List(c *fiber.Ctx) error {
	page, err := h.page(c, PageableDefault{})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(page)
}

// List2 defaults to five members per page ordered by username.
func (h *Handler) List2(c *fiber.Ctx) error {
	page, err := h.page(c, PageableDefault{Size: 5, Sort: types.SortBy(types.ASC, "username")})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(page)
}

// List3 is List2 mapped to MemberDto.
func (h *Handler) List3(c *fiber.Ctx) error {
	page, err := h.page(c, PageableDefault{Size: 5, Sort: types.SortBy(types.ASC, "username")})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(types.MapPage(page, entity.NewMemberDto))
}

func (h *Handler) Healthz(c *fiber.Ctx) error {
	if h.health == nil {
		return c.SendStatus(http.StatusOK)
	}
	status := h.health.HealthCheck(c.UserContext())
	if !status.Healthy {
		return c.Status(http.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}
