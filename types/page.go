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

package types

import "encoding/json"

// DefaultPageSize is used when a PageRequest is built with a non-positive size.
const DefaultPageSize = 10

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// PageRequest describes a zero-based page index, a page size and ordering.
type PageRequest struct {
	page     int
	pageSize int
	sort     Sort
}

// NewPageRequest constructs a PageRequest. Negative pages are clamped to the
// first page and non-positive sizes fall back to DefaultPageSize.
func NewPageRequest(page int, pageSize int, orders ...Order) PageRequest {
	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return PageRequest{page: page, pageSize: pageSize, sort: Sort(orders)}
}

// NewSortedPageRequest constructs a PageRequest from an existing Sort.
func NewSortedPageRequest(page int, pageSize int, sort Sort) PageRequest {
	return NewPageRequest(page, pageSize, sort...)
}

// PageOf is shorthand for an unsorted PageRequest.
func PageOf(page int, pageSize int) PageRequest {
	return NewPageRequest(page, pageSize)
}

func (p PageRequest) GetPage() int { return p.page }

func (p PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		return DefaultPageSize
	}
	return p.pageSize
}

func (p PageRequest) GetOffset() int { return p.page * p.GetPageSize() }

func (p PageRequest) GetSort() Sort { return p.sort }

func (p PageRequest) HasPrevious() bool { return p.page > 0 }

func (p PageRequest) Next() PageRequest {
	return PageRequest{page: p.page + 1, pageSize: p.pageSize, sort: p.sort}
}

// Previous returns the previous page request, or the first one when p is first.
func (p PageRequest) Previous() PageRequest {
	if !p.HasPrevious() {
		return p
	}
	return PageRequest{page: p.page - 1, pageSize: p.pageSize, sort: p.sort}
}

func (p PageRequest) First() PageRequest {
	return PageRequest{page: 0, pageSize: p.pageSize, sort: p.sort}
}

// WithSort returns a copy of p ordered by sort.
func (p PageRequest) WithSort(sort Sort) PageRequest {
	return PageRequest{page: p.page, pageSize: p.pageSize, sort: sort}
}

// Page holds one page of content together with the total element count.
type Page[T any] struct {
	content  []T
	pageable PageRequest
	total    int64
}

// NewPage builds a page. Content is never nil.
func NewPage[T any](content []T, pageable PageRequest, total int64) Page[T] {
	if content == nil {
		content = make([]T, 0)
	}
	return Page[T]{content: content, pageable: pageable, total: total}
}

// NewPageWithCounter builds a page and only runs count when the total cannot be
// derived from the content itself.
func NewPageWithCounter[T any](content []T, pageable PageRequest, count func() (int64, error)) (Page[T], error) {
	size := pageable.GetPageSize()
	if pageable.GetOffset() == 0 && len(content) < size {
		return NewPage(content, pageable, int64(len(content))), nil
	}
	if len(content) != 0 && len(content) < size {
		return NewPage(content, pageable, int64(pageable.GetOffset()+len(content))), nil
	}
	total, err := count()
	if err != nil {
		return Page[T]{}, err
	}
	return NewPage(content, pageable, total), nil
}

func (p Page[T]) Content() []T { return p.content }

func (p Page[T]) Pageable() PageRequest { return p.pageable }

func (p Page[T]) Number() int { return p.pageable.GetPage() }

func (p Page[T]) Size() int { return p.pageable.GetPageSize() }

func (p Page[T]) NumberOfElements() int { return len(p.content) }

func (p Page[T]) TotalElements() int64 { return p.total }

// TotalPages is ceil(total / size).
func (p Page[T]) TotalPages() int {
	size := int64(p.Size())
	return int((p.total + size - 1) / size)
}

func (p Page[T]) HasContent() bool { return len(p.content) > 0 }

func (p Page[T]) HasNext() bool { return p.Number()+1 < p.TotalPages() }

func (p Page[T]) HasPrevious() bool { return p.Number() > 0 }

func (p Page[T]) IsFirst() bool { return !p.HasPrevious() }

func (p Page[T]) IsLast() bool { return !p.HasNext() }

// MapPage converts the content of a page keeping its metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.content))
	for i, v := range p.content {
		out[i] = fn(v)
	}
	return Page[U]{content: out, pageable: p.pageable, total: p.total}
}

type pageJSON[T any] struct {
	Content          []T      `json:"content"`
	Number           int      `json:"number"`
	Size             int      `json:"size"`
	NumberOfElements int      `json:"numberOfElements"`
	TotalElements    int64    `json:"totalElements"`
	TotalPages       int      `json:"totalPages"`
	First            bool     `json:"first"`
	Last             bool     `json:"last"`
	HasNext          bool     `json:"hasNext"`
	Sort             []string `json:"sort"`
}

func (p Page[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(pageJSON[T]{
		Content:          p.content,
		Number:           p.Number(),
		Size:             p.Size(),
		NumberOfElements: p.NumberOfElements(),
		TotalElements:    p.total,
		TotalPages:       p.TotalPages(),
		First:            p.IsFirst(),
		Last:             p.IsLast(),
		HasNext:          p.HasNext(),
		Sort:             p.pageable.GetSort().Strings(),
	})
}

// Slice holds one page of content and only knows whether another page exists.
type Slice[T any] struct {
	content  []T
	pageable PageRequest
	hasNext  bool
}

// NewSlice builds a slice from content already trimmed to the page size.
func NewSlice[T any](content []T, pageable PageRequest, hasNext bool) Slice[T] {
	if content == nil {
		content = make([]T, 0)
	}
	return Slice[T]{content: content, pageable: pageable, hasNext: hasNext}
}

// NewSliceFromOverfetch builds a slice from a query limited to size+1 rows.
// The extra row only signals that a further page exists and is dropped.
func NewSliceFromOverfetch[T any](content []T, pageable PageRequest) Slice[T] {
	size := pageable.GetPageSize()
	hasNext := len(content) > size
	if hasNext {
		content = content[:size]
	}
	return NewSlice(content, pageable, hasNext)
}

func (s Slice[T]) Content() []T { return s.content }

func (s Slice[T]) Pageable() PageRequest { return s.pageable }

func (s Slice[T]) Number() int { return s.pageable.GetPage() }

func (s Slice[T]) Size() int { return s.pageable.GetPageSize() }

func (s Slice[T]) NumberOfElements() int { return len(s.content) }

func (s Slice[T]) HasContent() bool { return len(s.content) > 0 }

func (s Slice[T]) HasNext() bool { return s.hasNext }

func (s Slice[T]) HasPrevious() bool { return s.Number() > 0 }

func (s Slice[T]) IsFirst() bool { return !s.HasPrevious() }

func (s Slice[T]) IsLast() bool { return !s.hasNext }

// MapSlice converts the content of a slice keeping its metadata.
func MapSlice[T, U any](s Slice[T], fn func(T) U) Slice[U] {
	out := make([]U, len(s.content))
	for i, v := range s.content {
		out[i] = fn(v)
	}
	return Slice[U]{content: out, pageable: s.pageable, hasNext: s.hasNext}
}
