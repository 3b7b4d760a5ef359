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
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	return newMockDBWithDialect(t, pgdialect.New())
}

func newMockDBWithDialect(t *testing.T, d schema.Dialect) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, d)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUpdateWhereIssuesSingleStatement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository[person](db)

	mock.ExpectExec(`UPDATE "person" AS "p" SET age = age \+ 1 WHERE \(age >= 20\)`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.UpdateWhere(context.Background(),
		types.NewQueryFilter("age = age + 1"),
		types.NewQueryFilter("age >= ?", 20))
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPessimisticWriteLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository[person](db)

	mock.ExpectQuery(`SELECT .* FROM "person" AS "p" WHERE \("p"\."name" = 'kim'\) LIMIT 2 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "club_id"}).AddRow(1, "kim", 20, nil))

	p, err := repo.FindOne(context.Background(),
		Where("?TableAlias.? = ?", bun.Ident("name"), "kim"),
		WithLock(LockPessimisticWrite))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 20, p.Age)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPageSkipsCountOnShortFirstPage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository[person](db)

	mock.ExpectQuery(`SELECT .* FROM "person" AS "p" ORDER BY "p"\."age" DESC LIMIT 10`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).AddRow(1, "a", 30).AddRow(2, "b", 20))

	page, err := repo.FindPage(context.Background(), nil, types.NewPageRequest(0, 10, types.Desc("age")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalElements())
	assert.Equal(t, 1, page.TotalPages())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUnchangedRowOnMySQL(t *testing.T) {
	db, mock := newMockDBWithDialect(t, mysqldialect.New())
	repo := NewRepository[tag](db)

	// MySQL reports zero changed rows when the update writes the same values.
	mock.ExpectExec("UPDATE `tag` .*SET .*`label` = 'same' WHERE .*`code` = 'x'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS \\(SELECT .* FROM `tag`.* WHERE .*`code` = 'x'").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	saved, err := repo.Save(context.Background(), &tag{Code: "x", Label: "same"})
	require.NoError(t, err)
	assert.Equal(t, "same", saved.Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMissingRowOnMySQLInserts(t *testing.T) {
	db, mock := newMockDBWithDialect(t, mysqldialect.New())
	repo := NewRepository[tag](db)

	mock.ExpectExec("UPDATE `tag`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO `tag` .*VALUES \\('y', 'new'\\)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Save(context.Background(), &tag{Code: "y", Label: "new"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
