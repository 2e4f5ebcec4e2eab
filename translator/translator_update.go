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

// UpdateMapper generates UPDATE and DELETE statements for mapped entities.
type UpdateMapper struct {
	*Translator
}

func NewUpdateMapper(converter *conversion.EntityConverter, logger *zap.Logger) *UpdateMapper {
	return &UpdateMapper{Translator: NewTranslator(converter, logger)}
}

// Update renders an update statement from explicit assignments and filters.
func (m *UpdateMapper) Update(prototype interface{}, assignments []Assignment, filters []Filter) (*Statement, error) {
	config, err := m.configFor(prototype)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("update of %s has no assignments", config.GoType.Name())
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("update of %s has no where clause", config.GoType.Name())
	}
	st := &Statement{}
	fragments := make([]string, 0, len(assignments))
	for _, a := range assignments {
		fragment, err := m.convertAssignment(config, a, st)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}
	where, err := m.whereClause(config, filters, st)
	if err != nil {
		return nil, err
	}
	st.Query = fmt.Sprintf("UPDATE %s SET %s%s",
		m.tableRef(config), strings.Join(fragments, ", "), where)
	return st, nil
}

// UpdateEntity renders the full-row update of one entity value: every non-key
// column becomes an assignment, every key column an equality restriction.
func (m *UpdateMapper) UpdateEntity(entity interface{}) (*Statement, error) {
	config, err := m.configFor(entity)
	if err != nil {
		return nil, err
	}
	sink := &conversion.KeySplitSink{}
	sink.Assignments.OmitNil = true
	if err = m.Converter.Write(entity, sink); err != nil {
		return nil, err
	}
	if len(sink.Keys.Columns) == 0 {
		return nil, fmt.Errorf("entity %s has no primary key columns", config.GoType.Name())
	}
	if len(sink.Assignments.Columns) == 0 {
		return nil, fmt.Errorf("entity %s has no non-key columns to update", config.GoType.Name())
	}
	st := &Statement{}
	setFragments := make([]string, 0, len(sink.Assignments.Columns))
	for i, column := range sink.Assignments.Columns {
		setFragments = append(setFragments, utilities.QuoteIdentifier(string(column.Name))+" = ?")
		st.Params = append(st.Params, sink.Assignments.Values[i])
		st.ParamTypes = append(st.ParamTypes, column.CQLType)
	}
	whereFragments := make([]string, 0, len(sink.Keys.Columns))
	for i, column := range sink.Keys.Columns {
		whereFragments = append(whereFragments, utilities.QuoteIdentifier(string(column.Name))+" = ?")
		st.Params = append(st.Params, sink.Keys.Values[i])
		st.ParamTypes = append(st.ParamTypes, column.CQLType)
	}
	st.Query = fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		m.tableRef(config), strings.Join(setFragments, ", "), strings.Join(whereFragments, " AND "))
	return st, nil
}

// convertAssignment renders one SET clause and narrows its parameter type per
// action: append and remove bind collection fragments, element assignments
// bind the element type.
func (m *UpdateMapper) convertAssignment(config *schemaMapping.EntityConfig, a Assignment, st *Statement) (string, error) {
	fp, err := m.findColumn(config, a.Column)
	if err != nil {
		return "", err
	}
	if fp.prop.IsPrimaryKey() {
		return "", fmt.Errorf("cannot assign primary key column '%s'", a.Column)
	}
	dt, err := m.columnType(fp)
	if err != nil {
		return "", err
	}
	quoted := utilities.QuoteIdentifier(string(a.Column))
	bind := func(value types.GoValue, paramType types.CqlDataType) {
		st.Params = append(st.Params, value)
		st.ParamTypes = append(st.ParamTypes, paramType)
	}
	switch a.Action {
	case ActionSet:
		converted, cErr := m.Converter.Context.ToCql(dt, reflect.ValueOf(a.Value))
		if cErr != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, cErr)
		}
		bind(converted, dt)
		return quoted + " = ?", nil
	case ActionIncrement:
		if !isNumeric(dt) {
			return "", fmt.Errorf("assignment of %s: increment requires a counter or numeric column, got %s", a.Column, dt.String())
		}
		converted, cErr := m.Converter.Context.ToCql(dt, reflect.ValueOf(a.Value))
		if cErr != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, cErr)
		}
		bind(converted, dt)
		return fmt.Sprintf("%s = %s + ?", quoted, quoted), nil
	case ActionAppend, ActionPrepend:
		return m.convertCollectionMerge(quoted, a, dt, bind)
	case ActionRemove:
		return m.convertCollectionRemove(quoted, a, dt, bind)
	case ActionSetAtIndex:
		list, ok := types.Unfrozen(dt).(*types.ListType)
		if !ok {
			return "", fmt.Errorf("assignment of %s: index assignment requires a list column, got %s", a.Column, dt.String())
		}
		if a.Index < 0 {
			return "", fmt.Errorf("assignment of %s: index must not be negative", a.Column)
		}
		converted, cErr := m.Converter.Context.ToCql(list.ElementType(), reflect.ValueOf(a.Value))
		if cErr != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, cErr)
		}
		bind(int32(a.Index), types.TypeInt)
		bind(converted, list.ElementType())
		return quoted + "[?] = ?", nil
	case ActionSetAtKey:
		mapType, ok := types.Unfrozen(dt).(*types.MapType)
		if !ok {
			return "", fmt.Errorf("assignment of %s: key assignment requires a map column, got %s", a.Column, dt.String())
		}
		key, cErr := m.Converter.Context.ToCql(mapType.KeyType(), reflect.ValueOf(a.Key))
		if cErr != nil {
			return "", fmt.Errorf("assignment of %s, key: %w", a.Column, cErr)
		}
		value, cErr := m.Converter.Context.ToCql(mapType.ValueType(), reflect.ValueOf(a.Value))
		if cErr != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, cErr)
		}
		bind(key, mapType.KeyType())
		bind(value, mapType.ValueType())
		return quoted + "[?] = ?", nil
	default:
		return "", fmt.Errorf("unsupported update action %d on column %s", a.Action, a.Column)
	}
}

// convertCollectionMerge handles append and prepend. A bare element value is
// wrapped into a one-element collection so callers can pass either shape.
func (m *UpdateMapper) convertCollectionMerge(quoted string, a Assignment, dt types.CqlDataType, bind func(types.GoValue, types.CqlDataType)) (string, error) {
	value := a.Value
	switch t := types.Unfrozen(dt).(type) {
	case *types.ListType, *types.SetType:
		value = wrapElement(value)
		converted, err := m.Converter.Context.ToCql(dt, reflect.ValueOf(value))
		if err != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, err)
		}
		bind(converted, dt)
		if a.Action == ActionPrepend {
			if _, isList := t.(*types.ListType); !isList {
				return "", fmt.Errorf("assignment of %s: prepend requires a list column, got %s", a.Column, dt.String())
			}
			return fmt.Sprintf("%s = ? + %s", quoted, quoted), nil
		}
		return fmt.Sprintf("%s = %s + ?", quoted, quoted), nil
	case *types.MapType:
		if a.Action == ActionPrepend {
			return "", fmt.Errorf("assignment of %s: prepend requires a list column, got %s", a.Column, dt.String())
		}
		converted, err := m.Converter.Context.ToCql(dt, reflect.ValueOf(value))
		if err != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, err)
		}
		bind(converted, dt)
		return fmt.Sprintf("%s = %s + ?", quoted, quoted), nil
	default:
		return "", fmt.Errorf("assignment of %s: append requires a collection column, got %s", a.Column, dt.String())
	}
}

// convertCollectionRemove handles element removal. For maps the parameter is
// the set of keys to discard, the shape Cassandra expects for map subtraction.
func (m *UpdateMapper) convertCollectionRemove(quoted string, a Assignment, dt types.CqlDataType, bind func(types.GoValue, types.CqlDataType)) (string, error) {
	switch t := types.Unfrozen(dt).(type) {
	case *types.ListType, *types.SetType:
		value := wrapElement(a.Value)
		converted, err := m.Converter.Context.ToCql(dt, reflect.ValueOf(value))
		if err != nil {
			return "", fmt.Errorf("assignment of %s: %w", a.Column, err)
		}
		bind(converted, dt)
		return fmt.Sprintf("%s = %s - ?", quoted, quoted), nil
	case *types.MapType:
		keySet := types.NewSetType(t.KeyType())
		value := wrapElement(a.Value)
		converted, err := m.Converter.Context.ToCql(keySet, reflect.ValueOf(value))
		if err != nil {
			return "", fmt.Errorf("assignment of %s, keys: %w", a.Column, err)
		}
		bind(converted, keySet)
		return fmt.Sprintf("%s = %s - ?", quoted, quoted), nil
	default:
		return "", fmt.Errorf("assignment of %s: remove requires a collection column, got %s", a.Column, dt.String())
	}
}

// wrapElement lifts a bare element into a one-element slice; slices, arrays
// and maps pass through unchanged.
func wrapElement(value interface{}) interface{} {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return value
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return value
	case reflect.Invalid:
		return value
	default:
		return []interface{}{v.Interface()}
	}
}

func isNumeric(dt types.CqlDataType) bool {
	switch dt.Code() {
	case types.COUNTER, types.BIGINT, types.INT, types.SMALLINT, types.TINYINT, types.VARINT, types.FLOAT, types.DOUBLE, types.DECIMAL:
		return true
	default:
		return false
	}
}

// Delete renders a delete statement restricted by the given filters. Filters
// are required: an unrestricted delete is almost always a bug.
func (m *UpdateMapper) Delete(prototype interface{}, filters []Filter) (*Statement, error) {
	config, err := m.configFor(prototype)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("delete of %s has no where clause", config.GoType.Name())
	}
	st := &Statement{}
	where, err := m.whereClause(config, filters, st)
	if err != nil {
		return nil, err
	}
	st.Query = "DELETE FROM " + m.tableRef(config) + where
	return st, nil
}

// DeleteEntity renders the point delete for one entity value, keyed by its
// primary key columns.
func (m *UpdateMapper) DeleteEntity(entity interface{}) (*Statement, error) {
	config, err := m.configFor(entity)
	if err != nil {
		return nil, err
	}
	columns, values, err := m.Converter.GetId(entity)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("entity %s has no primary key columns", config.GoType.Name())
	}
	st := &Statement{}
	fragments := make([]string, 0, len(columns))
	for i, column := range columns {
		fragments = append(fragments, utilities.QuoteIdentifier(string(column.Name))+" = ?")
		st.Params = append(st.Params, values[i])
		st.ParamTypes = append(st.ParamTypes, column.CQLType)
	}
	st.Query = fmt.Sprintf("DELETE FROM %s WHERE %s", m.tableRef(config), strings.Join(fragments, " AND "))
	return st, nil
}
