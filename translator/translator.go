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

package translator

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/conversion"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/utilities"
)

// Translator holds the shared machinery of the statement mappers: entity
// lookup, flattened column resolution and filter conversion.
type Translator struct {
	Converter *conversion.EntityConverter
	Logger    *zap.Logger
}

func NewTranslator(converter *conversion.EntityConverter, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{Converter: converter, Logger: logger}
}

func (t *Translator) mapping() *schemaMapping.MappingContext {
	return t.Converter.Context.Mapping
}

func (t *Translator) configFor(prototype interface{}) (*schemaMapping.EntityConfig, error) {
	goType := reflect.TypeOf(prototype)
	for goType != nil && goType.Kind() == reflect.Ptr {
		goType = goType.Elem()
	}
	if goType == nil {
		return nil, fmt.Errorf("cannot translate statements for a nil prototype")
	}
	config, ok := t.mapping().EntityFor(goType)
	if !ok {
		return nil, fmt.Errorf("type %s is not a registered entity", goType)
	}
	if config.Kind != schemaMapping.KindTable {
		return nil, fmt.Errorf("type %s is not mapped to a table", goType)
	}
	return config, nil
}

func (t *Translator) tableRef(config *schemaMapping.EntityConfig) string {
	table := utilities.QuoteIdentifier(string(config.Table))
	if config.Keyspace == "" {
		return table
	}
	return utilities.QuoteIdentifier(string(config.Keyspace)) + "." + table
}

// flatProperty is one leaf column of an entity after composite key and
// embedded flattening.
type flatProperty struct {
	owner  *schemaMapping.EntityConfig
	prop   *schemaMapping.PropertyConfig
	column types.ColumnName
}

// flatProperties walks the entity and returns its leaf columns in property
// order, with embedded prefixes applied.
func (t *Translator) flatProperties(config *schemaMapping.EntityConfig, prefix string) ([]flatProperty, error) {
	var out []flatProperty
	for _, p := range config.Properties {
		if p.IsKey || p.IsEmbedded {
			ft := p.GoType
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			nested, ok := t.mapping().EntityFor(ft)
			if !ok {
				return nil, fmt.Errorf("embedded field %s has no registered mapping for %s", config.Path(p), ft)
			}
			flat, err := t.flatProperties(nested, prefix+p.Prefix)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
			continue
		}
		out = append(out, flatProperty{owner: config, prop: p, column: types.ColumnName(prefix) + p.Column})
	}
	return out, nil
}

// findColumn resolves a filter or assignment column against the flattened
// column set. Naming a composite key struct's own field fails fast: callers
// must address its leaf columns.
func (t *Translator) findColumn(config *schemaMapping.EntityConfig, column types.ColumnName) (flatProperty, error) {
	if strings.ContainsAny(string(column), "[]") {
		return flatProperty{}, fmt.Errorf("column '%s': addressing tuple or collection elements in a where clause is not supported", column)
	}
	for _, p := range config.Properties {
		if (p.IsKey || p.IsEmbedded) && p.Column == column {
			return flatProperty{}, fmt.Errorf("column '%s' names the composite field %s; reference its nested columns instead", column, config.Path(p))
		}
	}
	flat, err := t.flatProperties(config, "")
	if err != nil {
		return flatProperty{}, err
	}
	for _, fp := range flat {
		if fp.column == column {
			return fp, nil
		}
	}
	return flatProperty{}, fmt.Errorf("unknown column '%s' in entity %s", column, config.GoType.Name())
}

func (t *Translator) columnType(fp flatProperty) (types.CqlDataType, error) {
	return t.Converter.Context.Resolver.ResolveProperty(fp.owner, fp.prop)
}

// filterType resolves the type a filter parameter binds as. Columns mapped to
// fields the resolver cannot type statically, like interface{}, infer their
// type from the bound value's runtime shape. An IN parameter is a list of
// column values, so its inferred element type is the column type.
func (t *Translator) filterType(fp flatProperty, f Filter) (types.CqlDataType, error) {
	dt, err := t.columnType(fp)
	if err != nil {
		return nil, err
	}
	if types.Unfrozen(dt).Code() != types.UNRESOLVED || f.Value == nil {
		return dt, nil
	}
	inferred, err := t.Converter.Context.Resolver.ResolveValue(f.Value)
	if err != nil {
		return nil, fmt.Errorf("filter on %s: %w", f.Column, err)
	}
	if f.Operator == OperatorIn {
		list, ok := types.Unfrozen(inferred).(*types.ListType)
		if !ok {
			return nil, fmt.Errorf("filter on %s: IN requires a slice of values, got %T", f.Column, f.Value)
		}
		return types.Unfrozen(list.ElementType()), nil
	}
	return inferred, nil
}

// convertFilter renders one where-clause condition and converts its parameter
// with the operator's type narrowing.
func (t *Translator) convertFilter(config *schemaMapping.EntityConfig, f Filter) (string, types.GoValue, types.CqlDataType, error) {
	fp, err := t.findColumn(config, f.Column)
	if err != nil {
		return "", nil, nil, err
	}
	dt, err := t.filterType(fp, f)
	if err != nil {
		return "", nil, nil, err
	}
	quoted := utilities.QuoteIdentifier(string(f.Column))
	switch f.Operator {
	case OperatorEq, OperatorGt, OperatorGte, OperatorLt, OperatorLte:
		converted, cErr := t.Converter.Context.ToCql(dt, reflect.ValueOf(f.Value))
		if cErr != nil {
			return "", nil, nil, fmt.Errorf("filter on %s: %w", f.Column, cErr)
		}
		return fmt.Sprintf("%s %s ?", quoted, f.Operator), converted, dt, nil
	case OperatorIn:
		return t.convertInFilter(quoted, f, dt)
	case OperatorContains:
		element, nErr := containsElementType(dt)
		if nErr != nil {
			return "", nil, nil, fmt.Errorf("filter on %s: %w", f.Column, nErr)
		}
		converted, cErr := t.Converter.Context.ToCql(element, reflect.ValueOf(f.Value))
		if cErr != nil {
			return "", nil, nil, fmt.Errorf("filter on %s: %w", f.Column, cErr)
		}
		return fmt.Sprintf("%s CONTAINS ?", quoted), converted, element, nil
	case OperatorContainsKey:
		mapType, ok := types.Unfrozen(dt).(*types.MapType)
		if !ok {
			return "", nil, nil, fmt.Errorf("filter on %s: CONTAINS KEY requires a map column, got %s", f.Column, dt.String())
		}
		converted, cErr := t.Converter.Context.ToCql(mapType.KeyType(), reflect.ValueOf(f.Value))
		if cErr != nil {
			return "", nil, nil, fmt.Errorf("filter on %s: %w", f.Column, cErr)
		}
		return fmt.Sprintf("%s CONTAINS KEY ?", quoted), converted, mapType.KeyType(), nil
	default:
		return "", nil, nil, fmt.Errorf("unsupported operator '%s' on column %s", f.Operator, f.Column)
	}
}

// convertInFilter narrows IN parameters: the bind value is a list of column
// values, each element converted to the column's representation.
func (t *Translator) convertInFilter(quoted string, f Filter, dt types.CqlDataType) (string, types.GoValue, types.CqlDataType, error) {
	v := reflect.ValueOf(f.Value)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", nil, nil, fmt.Errorf("filter on %s: IN requires a non-nil collection of values", f.Column)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return "", nil, nil, fmt.Errorf("filter on %s: IN requires a slice of values, got %T", f.Column, f.Value)
	}
	converted := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		element, err := t.Converter.Context.ToCql(dt, v.Index(i))
		if err != nil {
			return "", nil, nil, fmt.Errorf("filter on %s, element %d: %w", f.Column, i, err)
		}
		converted[i] = element
	}
	return fmt.Sprintf("%s IN ?", quoted), converted, types.NewListType(dt), nil
}

func containsElementType(dt types.CqlDataType) (types.CqlDataType, error) {
	switch t := types.Unfrozen(dt).(type) {
	case *types.ListType:
		return t.ElementType(), nil
	case *types.SetType:
		return t.ElementType(), nil
	case *types.MapType:
		return t.ValueType(), nil
	default:
		return nil, fmt.Errorf("CONTAINS requires a collection column, got %s", dt.String())
	}
}

// whereClause renders all filters joined with AND.
func (t *Translator) whereClause(config *schemaMapping.EntityConfig, filters []Filter, st *Statement) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	fragments := make([]string, 0, len(filters))
	for _, f := range filters {
		fragment, param, dt, err := t.convertFilter(config, f)
		if err != nil {
			return "", err
		}
		fragments = append(fragments, fragment)
		st.Params = append(st.Params, param)
		st.ParamTypes = append(st.ParamTypes, dt)
	}
	return " WHERE " + strings.Join(fragments, " AND "), nil
}
