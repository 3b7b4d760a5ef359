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

import (
	"fmt"
	"strings"
)

// ParseDirection parses "asc"/"desc" in any case. ok is false for anything else.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return ASC, true
	case "DESC":
		return DESC, true
	default:
		return ASC, false
	}
}

// Order is a single sort property with its direction.
type Order struct {
	Property  string
	Direction Direction
}

// Asc returns an ascending order for property.
func Asc(property string) Order { return Order{Property: property, Direction: ASC} }

// Desc returns a descending order for property.
func Desc(property string) Order { return Order{Property: property, Direction: DESC} }

func (o Order) String() string {
	return fmt.Sprintf("%s %s", o.Property, o.Direction.Name())
}

// Sort is an ordered list of sort properties. The zero value is unsorted.
type Sort []Order

// SortBy returns a Sort ordering every property in the same direction.
func SortBy(direction Direction, properties ...string) Sort {
	sort := make(Sort, 0, len(properties))
	for _, p := range properties {
		sort = append(sort, Order{Property: p, Direction: direction})
	}
	return sort
}

// Unsorted returns an empty Sort.
func Unsorted() Sort { return Sort{} }

// IsSorted reports whether s has at least one order.
func (s Sort) IsSorted() bool { return len(s) > 0 }

// And returns a new Sort with the orders of other appended.
func (s Sort) And(other Sort) Sort {
	out := make(Sort, 0, len(s)+len(other))
	out = append(out, s...)
	return append(out, other...)
}

// Strings renders each order as "property DIRECTION".
func (s Sort) Strings() []string {
	out := make([]string, len(s))
	for i, o := range s {
		out[i] = o.String()
	}
	return out
}

// ParseSort reads web style sort parameters. Each parameter is a comma
// separated list of properties optionally ending with a direction, e.g.
// "id,desc" or "username,age,asc".
func ParseSort(params []string) (Sort, error) {
	var sort Sort
	for _, param := range params {
		parts := strings.Split(param, ",")
		direction := ASC
		if last := len(parts) - 1; last > 0 {
			if d, ok := ParseDirection(parts[last]); ok {
				direction = d
				parts = parts[:last]
			}
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := ParseDirection(p); ok {
				return nil, fmt.Errorf("sort parameter %q has a direction without a property", param)
			}
			sort = append(sort, Order{Property: p, Direction: direction})
		}
	}
	return sort, nil
}
