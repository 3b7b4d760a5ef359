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

import (
	"fmt"
	"sync"
)

var namedQueries sync.Map

// RegisterNamedQuery stores a WHERE fragment under name, conventionally
// "<Entity>.<query>". Registering a name twice replaces the fragment.
func RegisterNamedQuery(name string, where string) {
	namedQueries.Store(name, where)
}

// NamedQuery returns the fragment registered under name.
func NamedQuery(name string) (string, error) {
	v, ok := namedQueries.Load(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNamedQueryNotFound, name)
	}
	return v.(string), nil
}
