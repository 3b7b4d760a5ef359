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

package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyConstraintSQL(t *testing.T) {
	fk := ForeignKeyConstraint{
		Table:           "member",
		Column:          "team_id",
		ReferenceTable:  "team",
		ReferenceColumn: "team_id",
		OnDelete:        "set null",
	}
	assert.Equal(t, "fk_member_team_id", fk.GenerateConstraintName())
	assert.Equal(t,
		"ALTER TABLE member ADD CONSTRAINT fk_member_team_id FOREIGN KEY (team_id) REFERENCES team(team_id) ON DELETE SET NULL",
		fk.GenerateSQL())
}

func TestForeignKeyValidation(t *testing.T) {
	fkm := &ForeignKeyManager{constraints: []ForeignKeyConstraint{
		{Table: "member", Column: "team_id", ReferenceTable: "team", ReferenceColumn: "team_id", OnDelete: "CASCADE"},
		{Table: "member", Column: "team_id", OnDelete: "EXPLODE", OnUpdate: "no action"},
	}}
	errs := fkm.ValidateConstraints()
	assert.Len(t, errs, 3)
	assert.Len(t, fkm.GetConstraintsByTable("MEMBER"), 2)
}

func TestForeignKeyYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fk", "foreign_keys.yaml")
	constraints := []ForeignKeyConstraint{
		{Table: "member", Column: "team_id", ReferenceTable: "team", ReferenceColumn: "team_id", OnDelete: "SET NULL"},
	}
	require.NoError(t, ExportForeignKeys(constraints, path))

	fkm, err := NewConfigurableForeignKeyManager(nil, path)
	require.NoError(t, err)
	assert.Equal(t, constraints, fkm.ListAllConstraints())
	assert.Equal(t, path, fkm.GetConfigPath())

	_, err = NewConfigurableForeignKeyManager(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegisterForeignKey(t *testing.T) {
	before := len(RegisteredForeignKeys())
	RegisterForeignKey(ForeignKeyConstraint{Table: "a", Column: "b_id", ReferenceTable: "b", ReferenceColumn: "id"})
	assert.Len(t, NewForeignKeyManager(nil).ListAllConstraints(), before+1)
}
