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

// Package schemaFactory derives DDL specifications from registered entity
// mappings: the CREATE TYPE, CREATE TABLE and CREATE INDEX statements that
// would materialize an entity's schema. Generation is strict: any property
// whose column type cannot be resolved fails the whole specification with the
// entity and property named.
package schemaFactory

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/resolver"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
)

type SchemaFactory struct {
	Mapping  *schemaMapping.MappingContext
	Resolver *resolver.ColumnTypeResolver
	Logger   *zap.Logger
	// IfNotExists guards every generated statement.
	IfNotExists bool
}

func NewSchemaFactory(mapping *schemaMapping.MappingContext, res *resolver.ColumnTypeResolver, logger *zap.Logger) *SchemaFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaFactory{Mapping: mapping, Resolver: res, Logger: logger, IfNotExists: true}
}

func (f *SchemaFactory) configFor(prototype interface{}, kind schemaMapping.EntityKind) (*schemaMapping.EntityConfig, error) {
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return nil, fmt.Errorf("cannot derive a specification from a nil prototype")
	}
	config, ok := f.Mapping.EntityFor(t)
	if !ok {
		return nil, fmt.Errorf("type %s is not a registered entity", t)
	}
	if config.Kind != kind {
		return nil, fmt.Errorf("type %s is not registered with the expected mapping kind", t)
	}
	return config, nil
}

// CreateTableSpecification derives the CREATE TABLE statement for a mapped
// table entity, flattening composite key and embedded structs into columns.
func (f *SchemaFactory) CreateTableSpecification(prototype interface{}) (*TableSpecification, error) {
	config, err := f.configFor(prototype, schemaMapping.KindTable)
	if err != nil {
		return nil, err
	}
	spec := &TableSpecification{
		Keyspace:    config.Keyspace,
		Name:        config.Table,
		IfNotExists: f.IfNotExists,
	}
	type keyColumn struct {
		name       types.ColumnName
		keyType    types.KeyType
		precedence int
	}
	var keys []keyColumn
	err = f.walkColumns(config, "", func(owner *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, column types.ColumnName) error {
		dt, rErr := f.Resolver.ResolveProperty(owner, p)
		if rErr != nil {
			return fmt.Errorf("cannot create DDL for entity %s: %w", config.GoType.Name(), rErr)
		}
		if _, wErr := types.WireType(dt); wErr != nil {
			return fmt.Errorf("cannot create DDL for entity %s, property %s: %w", config.GoType.Name(), owner.Path(p), wErr)
		}
		spec.Columns = append(spec.Columns, ColumnSpecification{Name: column, Type: dt, IsStatic: p.IsStatic})
		if p.IsPrimaryKey() {
			keys = append(keys, keyColumn{name: column, keyType: p.KeyType, precedence: p.PkPrecedence})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].keyType != keys[j].keyType {
			return keys[i].keyType == types.KeyTypePartition
		}
		return keys[i].precedence < keys[j].precedence
	})
	for _, k := range keys {
		if k.keyType == types.KeyTypePartition {
			spec.PartitionKeys = append(spec.PartitionKeys, k.name)
		} else {
			spec.ClusteringKeys = append(spec.ClusteringKeys, k.name)
		}
	}
	if len(spec.PartitionKeys) == 0 {
		return nil, fmt.Errorf("cannot create DDL for entity %s: no partition key columns", config.GoType.Name())
	}
	return spec, nil
}

// CreateTypeSpecification derives the CREATE TYPE statement for a mapped
// user-defined type entity.
func (f *SchemaFactory) CreateTypeSpecification(prototype interface{}) (*TypeSpecification, error) {
	config, err := f.configFor(prototype, schemaMapping.KindUdt)
	if err != nil {
		return nil, err
	}
	spec := &TypeSpecification{
		Keyspace:    config.Keyspace,
		Name:        config.UdtName,
		IfNotExists: f.IfNotExists,
	}
	for _, p := range config.Properties {
		dt, rErr := f.Resolver.ResolveProperty(config, p)
		if rErr != nil {
			return nil, fmt.Errorf("cannot create DDL for type %s: %w", config.UdtName, rErr)
		}
		if _, wErr := types.WireType(dt); wErr != nil {
			return nil, fmt.Errorf("cannot create DDL for type %s, property %s: %w", config.UdtName, config.Path(p), wErr)
		}
		spec.Fields = append(spec.Fields, ColumnSpecification{Name: p.Column, Type: dt})
	}
	return spec, nil
}

// CreateIndexSpecification derives a CREATE INDEX statement for one column of
// a mapped table entity. An empty name lets Cassandra pick one.
func (f *SchemaFactory) CreateIndexSpecification(prototype interface{}, column types.ColumnName, name string, kind IndexKind) (*IndexSpecification, error) {
	config, err := f.configFor(prototype, schemaMapping.KindTable)
	if err != nil {
		return nil, err
	}
	var found *schemaMapping.PropertyConfig
	var owner *schemaMapping.EntityConfig
	err = f.walkColumns(config, "", func(o *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, c types.ColumnName) error {
		if c == column {
			found, owner = p, o
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("unknown column '%s' in entity %s", column, config.GoType.Name())
	}
	dt, err := f.Resolver.ResolveProperty(owner, found)
	if err != nil {
		return nil, err
	}
	if kind != IndexValues {
		if _, isMap := types.Unfrozen(dt).(*types.MapType); !isMap && kind != IndexFull {
			return nil, fmt.Errorf("index kind requires a map column, %s is %s", column, dt.String())
		}
	}
	return &IndexSpecification{
		Name:        name,
		Keyspace:    config.Keyspace,
		Table:       config.Table,
		Column:      column,
		Kind:        kind,
		IfNotExists: f.IfNotExists,
	}, nil
}

// CreateTypeSpecificationsFor collects every registered user-defined type the
// entity's columns reach, in dependency order: a UDT appears after every UDT
// it references, so statements apply cleanly in sequence.
func (f *SchemaFactory) CreateTypeSpecificationsFor(prototype interface{}) ([]*TypeSpecification, error) {
	config, err := f.configFor(prototype, schemaMapping.KindTable)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var specs []*TypeSpecification
	err = f.walkColumns(config, "", func(owner *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, _ types.ColumnName) error {
		dt, rErr := f.Resolver.ResolveProperty(owner, p)
		if rErr != nil {
			return rErr
		}
		return f.collectUdts(dt, seen, &specs)
	})
	if err != nil {
		return nil, err
	}
	return specs, nil
}

func (f *SchemaFactory) collectUdts(dt types.CqlDataType, seen map[string]bool, specs *[]*TypeSpecification) error {
	switch t := types.Unfrozen(dt).(type) {
	case *types.ListType:
		return f.collectUdts(t.ElementType(), seen, specs)
	case *types.SetType:
		return f.collectUdts(t.ElementType(), seen, specs)
	case *types.MapType:
		if err := f.collectUdts(t.KeyType(), seen, specs); err != nil {
			return err
		}
		return f.collectUdts(t.ValueType(), seen, specs)
	case *types.TupleType:
		for _, ft := range t.FieldTypes() {
			if err := f.collectUdts(ft, seen, specs); err != nil {
				return err
			}
		}
		return nil
	case *types.UdtType:
		if seen[t.Name()] {
			return nil
		}
		seen[t.Name()] = true
		// dependencies first
		for _, ft := range t.FieldTypes() {
			if err := f.collectUdts(ft, seen, specs); err != nil {
				return err
			}
		}
		spec := &TypeSpecification{Keyspace: t.Keyspace(), Name: t.Name(), IfNotExists: f.IfNotExists}
		fieldTypes := t.FieldTypes()
		for i, name := range t.FieldNames() {
			spec.Fields = append(spec.Fields, ColumnSpecification{Name: types.ColumnName(name), Type: fieldTypes[i]})
		}
		*specs = append(*specs, spec)
		return nil
	default:
		return nil
	}
}

// walkColumns visits every leaf column of the entity, descending through
// composite key and embedded structs with prefixes applied.
func (f *SchemaFactory) walkColumns(config *schemaMapping.EntityConfig, prefix string, visit func(*schemaMapping.EntityConfig, *schemaMapping.PropertyConfig, types.ColumnName) error) error {
	for _, p := range config.Properties {
		if p.IsKey || p.IsEmbedded {
			ft := p.GoType
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			nested, ok := f.Mapping.EntityFor(ft)
			if !ok {
				return fmt.Errorf("embedded field %s has no registered mapping for %s", config.Path(p), ft)
			}
			if err := f.walkColumns(nested, prefix+p.Prefix, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(config, p, types.ColumnName(prefix)+p.Column); err != nil {
			return err
		}
	}
	return nil
}
