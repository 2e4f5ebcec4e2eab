/*
 * Copyright (C) 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not
 * use this file except in compliance with the License. You may obtain a copy of
 * the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
 * WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
 * License for the specific language governing permissions and limitations under
 * the License.
 */

package schemaMapping

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/utilities"
)

// DeclaredSchema is the on-disk description of keyspace objects whose column
// types should override structural inference. Types are declared in dependency
// order so later declarations may reference earlier ones.
type DeclaredSchema struct {
	Keyspace string          `yaml:"keyspace"`
	Types    []DeclaredType  `yaml:"types"`
	Tables   []DeclaredTable `yaml:"tables"`
}

type DeclaredType struct {
	Name   string          `yaml:"name"`
	Fields []DeclaredField `yaml:"fields"`
}

type DeclaredField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type DeclaredTable struct {
	Name    string          `yaml:"name"`
	Columns []DeclaredField `yaml:"columns"`
}

// LoadDeclaredSchema reads and parses a declared schema YAML file.
func LoadDeclaredSchema(path string) (*DeclaredSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read declared schema file %s: %w", path, err)
	}
	var schema DeclaredSchema
	if err = yaml.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("could not parse declared schema file %s: %w", path, err)
	}
	if schema.Keyspace == "" {
		return nil, fmt.Errorf("declared schema file %s is missing a keyspace", path)
	}
	return &schema, nil
}

// ApplyDeclaredSchema installs the declared user-defined types into the
// registry and attaches column type overrides to already registered entities.
// Tables declared for entities that were never registered are skipped with a
// warning so shared schema files can outlive any one application.
func (m *MappingContext) ApplyDeclaredSchema(schema *DeclaredSchema) error {
	keyspace := types.Keyspace(schema.Keyspace)
	for _, decl := range schema.Types {
		if decl.Name == "" {
			return fmt.Errorf("declared type in keyspace %s is missing a name", keyspace)
		}
		udt, err := m.buildDeclaredUdt(keyspace, decl)
		if err != nil {
			return err
		}
		m.installDeclaredUdt(decl.Name, udt)
	}
	for _, table := range schema.Tables {
		config, ok := m.entityForTable(keyspace, types.TableName(table.Name))
		if !ok {
			m.Logger.Warn("declared schema names a table with no registered entity",
				zap.String("keyspace", schema.Keyspace),
				zap.String("table", table.Name))
			continue
		}
		for _, column := range table.Columns {
			dt, err := utilities.ParseCqlTypeString(column.Type, m.udtLookup())
			if err != nil {
				return fmt.Errorf("declared column %s.%s.%s: %w", keyspace, table.Name, column.Name, err)
			}
			if err = m.setDeclaredType(config.GoType, types.ColumnName(column.Name), dt); err != nil {
				return fmt.Errorf("declared column %s.%s.%s: %w", keyspace, table.Name, column.Name, err)
			}
		}
	}
	return nil
}

func (m *MappingContext) buildDeclaredUdt(keyspace types.Keyspace, decl DeclaredType) (*types.UdtType, error) {
	fieldNames := make([]string, 0, len(decl.Fields))
	fieldTypes := make([]types.CqlDataType, 0, len(decl.Fields))
	for _, field := range decl.Fields {
		dt, err := utilities.ParseCqlTypeString(field.Type, m.udtLookup())
		if err != nil {
			return nil, fmt.Errorf("declared type %s field %s: %w", decl.Name, field.Name, err)
		}
		fieldNames = append(fieldNames, field.Name)
		fieldTypes = append(fieldTypes, dt)
	}
	udt, err := types.NewUdtType(keyspace, decl.Name, fieldNames, fieldTypes)
	if err != nil {
		return nil, fmt.Errorf("declared type %s: %w", decl.Name, err)
	}
	return udt, nil
}

// udtLookup adapts the registry into the parser's lookup callback. Only
// declared UDTs can satisfy a name inside a type string; Go-struct UDTs are
// resolved lazily by the type resolver instead.
func (m *MappingContext) udtLookup() utilities.UdtLookup {
	return func(name string) (types.CqlDataType, bool) {
		udt, ok := m.DeclaredUdt(name)
		if !ok {
			return nil, false
		}
		return udt, true
	}
}

func (m *MappingContext) entityForTable(keyspace types.Keyspace, table types.TableName) (*EntityConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, config := range m.entities {
		if config.Kind == KindTable && config.Keyspace == keyspace && config.Table == table {
			return config, true
		}
	}
	return nil, false
}

func lower(s string) string { return strings.ToLower(s) }
