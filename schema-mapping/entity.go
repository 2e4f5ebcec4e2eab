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
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

// EntityKind distinguishes the three mapped container shapes.
type EntityKind int

const (
	KindTable EntityKind = iota
	KindUdt
	KindTuple
	// KindKey marks a composite primary key struct discovered through a
	// `key` tag option. Its leaf columns flatten into the owning table.
	KindKey
)

// EntityConfig contains all mapping information about one Go struct type:
// which container it maps to and its ordered property descriptors. Configs
// are built once at registration and treated as read-only afterwards.
type EntityConfig struct {
	GoType     reflect.Type
	Kind       EntityKind
	Keyspace   types.Keyspace
	Table      types.TableName
	UdtName    string
	Properties []*PropertyConfig
	byColumn   map[types.ColumnName]*PropertyConfig
	byName     map[string]*PropertyConfig
}

// PropertyConfig describes a single mapped struct field.
type PropertyConfig struct {
	Name         string // Go field name
	Column       types.ColumnName
	FieldIndex   []int
	GoType       reflect.Type
	KeyType      types.KeyType
	PkPrecedence int
	IsStatic     bool
	// TypeAnnotation is the raw cqltype tag, the explicit column type
	// declaration that beats structural inference.
	TypeAnnotation string
	// DeclaredType is an override installed from a declared-schema file.
	DeclaredType types.CqlDataType
	Frozen       bool
	AsSet        bool
	IsKey        bool // composite primary key struct
	IsEmbedded   bool
	Prefix       string
	Ordinal      int // position for tuple entities
}

func (p *PropertyConfig) IsPrimaryKey() bool {
	return p.KeyType == types.KeyTypePartition || p.KeyType == types.KeyTypeClustering
}

// Path qualifies the property for error messages.
func (e *EntityConfig) Path(p *PropertyConfig) string {
	return fmt.Sprintf("%s.%s", e.GoType.Name(), p.Name)
}

func (e *EntityConfig) GetProperty(column types.ColumnName) (*PropertyConfig, error) {
	p, ok := e.byColumn[column]
	if !ok {
		return nil, fmt.Errorf("unknown column '%s' in entity %s", column, e.GoType.Name())
	}
	return p, nil
}

func (e *EntityConfig) PropertyByName(name string) (*PropertyConfig, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// PrimaryKeys returns the key properties ordered partition-before-clustering,
// then by declared precedence.
func (e *EntityConfig) PrimaryKeys() []*PropertyConfig {
	var pks []*PropertyConfig
	for _, p := range e.Properties {
		if p.IsPrimaryKey() || p.IsKey {
			pks = append(pks, p)
		}
	}
	sort.SliceStable(pks, func(i, j int) bool {
		a, b := pks[i], pks[j]
		if a.KeyType != b.KeyType {
			return a.KeyType == types.KeyTypePartition
		}
		return a.PkPrecedence < b.PkPrecedence
	})
	return pks
}

func (e *EntityConfig) PartitionKeys() []*PropertyConfig {
	var pks []*PropertyConfig
	for _, p := range e.PrimaryKeys() {
		if p.KeyType == types.KeyTypePartition {
			pks = append(pks, p)
		}
	}
	return pks
}

func newEntityConfig(keyspace types.Keyspace, table types.TableName, udtName string, kind EntityKind, t reflect.Type) (*EntityConfig, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("mapped entities must be struct types, got %s", t.Kind())
	}
	e := &EntityConfig{
		GoType:   t,
		Kind:     kind,
		Keyspace: keyspace,
		Table:    table,
		UdtName:  udtName,
		byColumn: make(map[types.ColumnName]*PropertyConfig),
		byName:   make(map[string]*PropertyConfig),
	}
	ordinal := 0
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			// unexported
			continue
		}
		p, skip, err := parseProperty(field)
		if err != nil {
			return nil, fmt.Errorf("entity %s field %s: %w", t.Name(), field.Name, err)
		}
		if skip {
			continue
		}
		p.Ordinal = ordinal
		ordinal++
		if kind == KindTuple && (p.IsKey || p.IsEmbedded || p.IsPrimaryKey()) {
			return nil, fmt.Errorf("tuple entity %s cannot declare key or embedded fields", t.Name())
		}
		if _, exists := e.byColumn[p.Column]; exists {
			return nil, fmt.Errorf("entity %s declares column '%s' more than once", t.Name(), p.Column)
		}
		e.Properties = append(e.Properties, p)
		e.byColumn[p.Column] = p
		e.byName[p.Name] = p
	}
	if len(e.Properties) == 0 {
		return nil, fmt.Errorf("entity %s has no mapped fields", t.Name())
	}
	return e, nil
}

// parseProperty reads the `cql` and `cqltype` struct tags. The cql tag holds
// the column name followed by comma separated options:
//
//	pk=N       partition key with precedence N
//	ck=N       clustering key with precedence N
//	static     static column
//	set        map a slice as a Cassandra set
//	frozen     freeze the top level collection or UDT
//	key        field is a composite primary key struct; its leaf columns flatten
//	embedded   flatten the field's struct into the parent column set
//	prefix=x   column name prefix for embedded fields
//
// The explicit column type annotation lives in its own cqltype tag because
// CQL type strings contain commas.
func parseProperty(field reflect.StructField) (*PropertyConfig, bool, error) {
	tag := field.Tag.Get("cql")
	if tag == "-" {
		return nil, true, nil
	}
	parts := strings.Split(tag, ",")
	column := parts[0]
	if column == "" {
		column = toSnakeCase(field.Name)
	}
	p := &PropertyConfig{
		Name:           field.Name,
		Column:         types.ColumnName(column),
		FieldIndex:     field.Index,
		GoType:         field.Type,
		KeyType:        types.KeyTypeRegular,
		PkPrecedence:   -1,
		TypeAnnotation: field.Tag.Get("cqltype"),
	}
	for _, opt := range parts[1:] {
		key, value, hasValue := strings.Cut(opt, "=")
		switch key {
		case "":
		case "pk":
			p.KeyType = types.KeyTypePartition
			if err := parsePrecedence(p, value, hasValue); err != nil {
				return nil, false, err
			}
		case "ck":
			p.KeyType = types.KeyTypeClustering
			if err := parsePrecedence(p, value, hasValue); err != nil {
				return nil, false, err
			}
		case "static":
			p.IsStatic = true
		case "set":
			p.AsSet = true
		case "frozen":
			p.Frozen = true
		case "key":
			p.IsKey = true
		case "embedded":
			p.IsEmbedded = true
		case "prefix":
			if !hasValue {
				return nil, false, fmt.Errorf("prefix option requires a value")
			}
			p.Prefix = value
		default:
			return nil, false, fmt.Errorf("unknown cql tag option '%s'", key)
		}
	}
	if p.IsKey && p.IsEmbedded {
		return nil, false, fmt.Errorf("a field cannot be both key and embedded")
	}
	if p.IsKey {
		ft := p.GoType
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			return nil, false, fmt.Errorf("key option requires a struct field, got %s", p.GoType)
		}
	}
	return p, false, nil
}

func parsePrecedence(p *PropertyConfig, value string, hasValue bool) error {
	if !hasValue {
		p.PkPrecedence = 1
		return nil
	}
	precedence, err := strconv.Atoi(value)
	if err != nil || precedence < 1 {
		return fmt.Errorf("key precedence must be a positive integer, got '%s'", value)
	}
	p.PkPrecedence = precedence
	return nil
}

// ColumnNameForField maps a plain struct field to its column name: the cql
// tag's name part, or the snake-cased field name. Returns "-" for fields the
// tag excludes. Projection targets use this without full registration.
func ColumnNameForField(field reflect.StructField) string {
	tag := field.Tag.Get("cql")
	if tag == "-" {
		return "-"
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return toSnakeCase(field.Name)
	}
	return name
}

func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
