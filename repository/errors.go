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

package repository

import "errors"

var (
	// ErrNonUniqueResult is returned by single-result lookups matching more
	// than one row.
	ErrNonUniqueResult = errors.New("repository: query did not return a unique result")
	// ErrNotFound marks a required entity that is absent. Repository lookups
	// report absence as nil, nil; callers that need the entity return
	// ErrNotFound themselves.
	ErrNotFound            = errors.New("repository: entity not found")
	ErrInvalidSortProperty = errors.New("repository: invalid sort property")
	ErrNamedQueryNotFound  = errors.New("repository: named query not found")
	ErrMissingPrimaryKey   = errors.New("repository: entity has no primary key")
	ErrEmptyUpdate         = errors.New("repository: update requires a SET clause")
)
