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
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/tomoncle/memberstore/repository"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorResponse(code, msg string) errorBody {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	return body
}

func writeError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	msg := "internal error"

	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, repository.ErrInvalidSortProperty):
		status = http.StatusBadRequest
		code = "INVALID_ARGUMENT"
		msg = err.Error()
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
		msg = "resource not found"
	case errors.Is(err, repository.ErrNonUniqueResult):
		status = http.StatusConflict
		code = "NON_UNIQUE"
		msg = err.Error()
	default:
		logger.WithError(err).Error("request failed")
	}

	return c.Status(status).JSON(errorResponse(code, msg))
}
