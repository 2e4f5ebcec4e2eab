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

// Package schemaMapping maintains the registry of mapped Go entities: tables,
// user-defined types, tuple types and enums, plus type overrides loaded from a
// declared schema file. The registry is the single source of truth the
// resolver, converter and translators consult.
package schemaMapping

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

type MappingContext struct {
	Logger *zap.Logger

	mu           sync.RWMutex
	entities     map[reflect.Type]*EntityConfig
	udtsByName   map[string]*EntityConfig
	declaredUdts map[string]*types.UdtType
	enums        map[reflect.Type][]string
	enumOrdinals map[reflect.Type]map[string]int
}

func NewMappingContext(logger *zap.Logger) *MappingContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingContext{
		Logger:       logger,
		entities:     make(map[reflect.Type]*EntityConfig),
		udtsByName:   make(map[string]*EntityConfig),
		declaredUdts: make(map[string]*types.UdtType),
		enums:        make(map[reflect.Type][]string),
		enumOrdinals: make(map[reflect.Type]map[string]int),
	}
}

func prototypeType(prototype interface{}) reflect.Type {
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// RegisterTable scans the prototype struct and records it as a mapped table.
// Composite key structs reached through `key` options and embedded structs
// are scanned eagerly so their configs are available to the converter.
func (m *MappingContext) RegisterTable(keyspace types.Keyspace, table types.TableName, prototype interface{}) (*EntityConfig, error) {
	t := prototypeType(prototype)
	if t == nil {
		return nil, fmt.Errorf("cannot register a nil prototype as table %s.%s", keyspace, table)
	}
	config, err := newEntityConfig(keyspace, table, "", KindTable, t)
	if err != nil {
		return nil, err
	}
	if len(config.PartitionKeys()) == 0 && !hasKeyProperty(config) {
		return nil, fmt.Errorf("table entity %s has no partition key columns", t.Name())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entities[t]; ok {
		return existing, nil
	}
	m.entities[t] = config
	if err = m.registerNestedLocked(config); err != nil {
		delete(m.entities, t)
		return nil, err
	}
	m.Logger.Debug("registered table entity",
		zap.String("keyspace", string(keyspace)),
		zap.String("table", string(table)),
		zap.String("goType", t.String()))
	return config, nil
}

// RegisterUdt records the prototype as a mapped user-defined type. The UDT
// name is lowercased to match CQL identifier folding.
func (m *MappingContext) RegisterUdt(keyspace types.Keyspace, name string, prototype interface{}) (*EntityConfig, error) {
	t := prototypeType(prototype)
	if t == nil {
		return nil, fmt.Errorf("cannot register a nil prototype as type %s", name)
	}
	config, err := newEntityConfig(keyspace, "", name, KindUdt, t)
	if err != nil {
		return nil, err
	}
	for _, p := range config.Properties {
		if p.IsPrimaryKey() || p.IsKey || p.IsStatic {
			return nil, fmt.Errorf("user-defined type %s cannot declare key or static field %s", name, p.Name)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entities[t]; ok {
		return existing, nil
	}
	m.entities[t] = config
	m.udtsByName[lower(name)] = config
	if err = m.registerNestedLocked(config); err != nil {
		delete(m.entities, t)
		delete(m.udtsByName, lower(name))
		return nil, err
	}
	return config, nil
}

// RegisterTuple records the prototype as a mapped tuple type. Fields map by
// declaration order.
func (m *MappingContext) RegisterTuple(prototype interface{}) (*EntityConfig, error) {
	t := prototypeType(prototype)
	if t == nil {
		return nil, fmt.Errorf("cannot register a nil prototype as tuple")
	}
	config, err := newEntityConfig("", "", "", KindTuple, t)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entities[t]; ok {
		return existing, nil
	}
	m.entities[t] = config
	return config, nil
}

// RegisterEnum declares a named Go type as an enumeration mapped to text.
// The names must be given in ordinal order so values written by systems that
// persisted ordinals can still be read back.
func (m *MappingContext) RegisterEnum(prototype interface{}, names ...string) error {
	t := prototypeType(prototype)
	if t == nil {
		return fmt.Errorf("cannot register a nil prototype as enum")
	}
	if t.PkgPath() == "" {
		return fmt.Errorf("enum type %s must be a named type", t)
	}
	switch t.Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return fmt.Errorf("enum type %s must have a string or integer underlying kind, got %s", t, t.Kind())
	}
	if len(names) == 0 {
		return fmt.Errorf("enum type %s requires at least one name", t)
	}
	ordinals := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := ordinals[name]; dup {
			return fmt.Errorf("enum type %s declares name '%s' more than once", t, name)
		}
		ordinals[name] = i
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enums[t] = append([]string(nil), names...)
	m.enumOrdinals[t] = ordinals
	return nil
}

// registerNestedLocked walks a freshly scanned config and registers composite
// key and embedded structs so lookups by Go type succeed later. Caller holds
// the write lock.
func (m *MappingContext) registerNestedLocked(config *EntityConfig) error {
	for _, p := range config.Properties {
		if !p.IsKey && !p.IsEmbedded {
			continue
		}
		ft := p.GoType
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			return fmt.Errorf("embedded field %s must be a struct, got %s", config.Path(p), p.GoType)
		}
		if _, ok := m.entities[ft]; ok {
			continue
		}
		nested, err := newEntityConfig(config.Keyspace, config.Table, "", KindKey, ft)
		if err != nil {
			return err
		}
		if p.IsKey {
			for _, np := range nested.Properties {
				if !np.IsPrimaryKey() {
					return fmt.Errorf("composite key field %s.%s must carry a pk or ck option", ft.Name(), np.Name)
				}
			}
		}
		m.entities[ft] = nested
		if err = m.registerNestedLocked(nested); err != nil {
			return err
		}
	}
	return nil
}

func hasKeyProperty(config *EntityConfig) bool {
	for _, p := range config.Properties {
		if p.IsKey {
			return true
		}
	}
	return false
}

func (m *MappingContext) EntityFor(t reflect.Type) (*EntityConfig, bool) {
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.entities[t]
	return config, ok
}

func (m *MappingContext) UdtEntity(name string) (*EntityConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.udtsByName[lower(name)]
	return config, ok
}

// DeclaredUdt returns a user-defined type installed from a declared schema
// file, keyed by its lowercased name.
func (m *MappingContext) DeclaredUdt(name string) (*types.UdtType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	udt, ok := m.declaredUdts[lower(name)]
	return udt, ok
}

func (m *MappingContext) IsEnum(t reflect.Type) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.enums[t]
	return ok
}

// EnumName maps an enum value to its registered name. String-kinded enums
// carry their name directly; integer-kinded enums index into the name list.
func (m *MappingContext) EnumName(value reflect.Value) (string, error) {
	t := value.Type()
	m.mu.RLock()
	names, ok := m.enums[t]
	ordinals := m.enumOrdinals[t]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("type %s is not a registered enum", t)
	}
	if t.Kind() == reflect.String {
		name := value.String()
		if _, known := ordinals[name]; !known {
			return "", fmt.Errorf("value '%s' is not a declared name of enum %s", name, t)
		}
		return name, nil
	}
	ordinal := int(value.Int())
	if ordinal < 0 || ordinal >= len(names) {
		return "", fmt.Errorf("ordinal %d is out of range for enum %s", ordinal, t)
	}
	return names[ordinal], nil
}

// EnumValue maps a stored representation back to an enum value of type t.
// Accepts the registered name; an all-digit string additionally falls back to
// an ordinal lookup for data written by ordinal-persisting systems.
func (m *MappingContext) EnumValue(t reflect.Type, stored string) (reflect.Value, error) {
	m.mu.RLock()
	names, ok := m.enums[t]
	ordinals := m.enumOrdinals[t]
	m.mu.RUnlock()
	if !ok {
		return reflect.Value{}, fmt.Errorf("type %s is not a registered enum", t)
	}
	ordinal, known := ordinals[stored]
	if !known {
		parsed, err := parseOrdinal(stored)
		if err != nil || parsed < 0 || parsed >= len(names) {
			return reflect.Value{}, fmt.Errorf("value '%s' is not a declared name of enum %s", stored, t)
		}
		ordinal = parsed
		stored = names[parsed]
	}
	v := reflect.New(t).Elem()
	if t.Kind() == reflect.String {
		v.SetString(stored)
	} else {
		v.SetInt(int64(ordinal))
	}
	return v, nil
}

func parseOrdinal(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty ordinal")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not an ordinal: '%s'", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// Entities snapshots all registered configs, used by the schema factory.
func (m *MappingContext) Entities() []*EntityConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Values(m.entities)
}

func (m *MappingContext) installDeclaredUdt(name string, udt *types.UdtType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declaredUdts[lower(name)] = udt
}

func (m *MappingContext) setDeclaredType(goType reflect.Type, column types.ColumnName, dt types.CqlDataType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	config, ok := m.entities[goType]
	if !ok {
		return fmt.Errorf("no entity registered for %s", goType)
	}
	p, err := config.GetProperty(column)
	if err != nil {
		return err
	}
	p.DeclaredType = dt
	return nil
}
