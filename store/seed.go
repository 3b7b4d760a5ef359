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

package store

import (
	"context"
	"fmt"

	"github.com/tomoncle/memberstore/entity"
)

// SeedMembers inserts count members named user0, user1, ... with the age
// equal to their index, unless the table already has rows. It returns the
// number of members inserted.
func SeedMembers(ctx context.Context, members *MemberRepository, count int) (int, error) {
	existing, err := members.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		logger.WithField("existing", existing).Info("member table not empty, skipping seed")
		return 0, nil
	}

	batch := make([]*entity.Member, 0, count)
	for i := range count {
		batch = append(batch, entity.NewMember(fmt.Sprintf("user%d", i), i, nil))
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if _, err := members.NewInsert().Model(&batch).Exec(ctx); err != nil {
		return 0, fmt.Errorf("seed members: %w", err)
	}
	logger.WithField("count", len(batch)).Info("seeded members")
	return len(batch), nil
}
