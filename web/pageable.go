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
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tomoncle/memberstore/types"
)

// ErrInvalidArgument marks a request parameter that cannot be used.
var ErrInvalidArgument = errors.New("invalid argument")

// PageableDefault is the page size and sort applied when the request does
// not name them.
type PageableDefault struct {
	Size int
	Sort types.Sort
}

// PageableResolver builds page requests from the page, size and sort query
// parameters. Sort may repeat: sort=username,desc&sort=id.
type PageableResolver struct {
	DefaultSize int
	MaxSize     int
	// OneIndexed makes page=1 the first page.
	OneIndexed bool
}

// Resolve reads the page request of c. Unparsable page or size values fall
// back to the defaults; sizes above MaxSize are capped.
func (r PageableResolver) Resolve(c *fiber.Ctx, def PageableDefault) (types.PageRequest, error) {
	size := def.Size
	if size < 1 {
		size = r.DefaultSize
	}
	if n, err := strconv.Atoi(c.Query("size")); err == nil && n > 0 {
		size = n
	}
	if r.MaxSize > 0 && size > r.MaxSize {
		size = r.MaxSize
	}

	page := 0
	if n, err := strconv.Atoi(c.Query("page")); err == nil {
		page = n
		if r.OneIndexed {
			page--
		}
	}

	var params []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("sort") {
		if p := strings.TrimSpace(string(raw)); p != "" {
			params = append(params, p)
		}
	}
	sort := def.Sort
	if len(params) > 0 {
		parsed, err := types.ParseSort(params)
		if err != nil {
			return types.PageRequest{}, errors.Join(ErrInvalidArgument, err)
		}
		sort = parsed
	}
	return types.NewSortedPageRequest(page, size, sort), nil
}
