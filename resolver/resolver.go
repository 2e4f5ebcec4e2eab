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

// Package resolver maps Go types and annotated entity properties to CQL data
// types. Resolution is deterministic: explicit declarations always win over
// structural inference, and the same input yields the same descriptor on
// every call.
package resolver

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/codec"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/utilities"
)

// maxResolveDepth stops runaway recursion through self-referential structs.
const maxResolveDepth = 32

type ColumnTypeResolver struct {
	Context     *schemaMapping.MappingContext
	Conversions *codec.CustomConversions
	Logger      *zap.Logger
}

func NewColumnTypeResolver(ctx *schemaMapping.MappingContext, conversions *codec.CustomConversions, logger *zap.Logger) *ColumnTypeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conversions == nil {
		conversions = codec.NewCustomConversions()
	}
	return &ColumnTypeResolver{
		Context:     ctx,
		Conversions: conversions,
		Logger:      logger,
	}
}

// ResolveProperty resolves the column type of one mapped property. An explicit
// declaration, either a declared schema override or a cqltype annotation,
// takes precedence over structural inference and is validated against the Go
// field's shape.
func (r *ColumnTypeResolver) ResolveProperty(entity *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig) (types.CqlDataType, error) {
	if p.DeclaredType != nil {
		if err := r.validateShape(entity, p, p.DeclaredType); err != nil {
			return nil, err
		}
		return p.DeclaredType, nil
	}
	if p.TypeAnnotation != "" {
		dt, err := utilities.ParseCqlTypeString(p.TypeAnnotation, r.udtLookup())
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", entity.Path(p), err)
		}
		if err = r.validateShape(entity, p, dt); err != nil {
			return nil, err
		}
		return dt, nil
	}
	dt, err := r.resolve(p.GoType, propertyIndicator(p), 0)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", entity.Path(p), err)
	}
	if p.AsSet {
		list, ok := types.Unfrozen(dt).(*types.ListType)
		if !ok {
			return nil, fmt.Errorf("property %s carries the set option but is not slice mapped", entity.Path(p))
		}
		var set types.CqlDataType = types.NewSetType(list.ElementType())
		// only the list's own frozen wrapper carries over; a frozen element
		// must not freeze the rebuilt set
		if types.FrozenIndicatorFor(dt).IsFrozen() {
			set = types.NewFrozenType(set)
		}
		return set, nil
	}
	return dt, nil
}

// ResolveType resolves an arbitrary Go type. The frozen indicator, when
// present, marks which positions of the resulting type tree are frozen.
func (r *ColumnTypeResolver) ResolveType(t reflect.Type, frozen *types.FrozenIndicator) (types.CqlDataType, error) {
	return r.resolve(t, frozen, 0)
}

// ResolveValue resolves the runtime shape of a value, used for filter and
// update parameters whose static type carries no information, like
// interface{}. Containers infer their element types from the first element;
// an empty container whose static element type cannot be resolved defaults
// to text.
func (r *ColumnTypeResolver) ResolveValue(value interface{}) (types.CqlDataType, error) {
	if value == nil {
		return nil, fmt.Errorf("cannot resolve the column type of a nil value")
	}
	return r.resolveValue(reflect.ValueOf(value), 0)
}

func (r *ColumnTypeResolver) resolveValue(v reflect.Value, depth int) (types.CqlDataType, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("value nests deeper than %d levels, likely a cycle", maxResolveDepth)
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot resolve the column type of a nil value")
		}
		v = v.Elem()
	}
	t := v.Type()
	if target, ok := r.Conversions.WriteTarget(t); ok {
		return target, nil
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return types.TypeBlob, nil
		}
		if v.Len() == 0 {
			return types.NewListType(freezeNested(r.staticElement(t.Elem(), depth))), nil
		}
		element, err := r.resolveValue(v.Index(0), depth+1)
		if err != nil {
			return nil, err
		}
		return types.NewListType(freezeNested(element)), nil
	case reflect.Map:
		if t.Elem() == emptyStructType {
			if v.Len() == 0 {
				return types.NewSetType(freezeNested(r.staticElement(t.Key(), depth))), nil
			}
			element, err := r.resolveValue(v.MapKeys()[0], depth+1)
			if err != nil {
				return nil, err
			}
			return types.NewSetType(freezeNested(element)), nil
		}
		if v.Len() == 0 {
			key := r.staticElement(t.Key(), depth)
			value := r.staticElement(t.Elem(), depth)
			return types.NewMapType(key, freezeNested(value)), nil
		}
		entry := v.MapKeys()[0]
		key, err := r.resolveValue(entry, depth+1)
		if err != nil {
			return nil, err
		}
		if key.IsCollection() {
			return nil, fmt.Errorf("map key types must be scalar, got %s", key.String())
		}
		value, err := r.resolveValue(v.MapIndex(entry), depth+1)
		if err != nil {
			return nil, err
		}
		return types.NewMapType(key, freezeNested(value)), nil
	}
	return r.resolve(t, nil, depth)
}

// staticElement resolves an empty container's element from its static type,
// falling back to text when the static type says nothing, like interface{}.
func (r *ColumnTypeResolver) staticElement(t reflect.Type, depth int) types.CqlDataType {
	dt, err := r.resolve(t, nil, depth+1)
	if err != nil || dt.Code() == types.UNRESOLVED {
		return types.TypeText
	}
	return dt
}

func propertyIndicator(p *schemaMapping.PropertyConfig) *types.FrozenIndicator {
	if !p.Frozen {
		return nil
	}
	return types.NewFrozenIndicator(true)
}

func (r *ColumnTypeResolver) resolve(t reflect.Type, frozen *types.FrozenIndicator, depth int) (types.CqlDataType, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("type %s nests deeper than %d levels, likely a cycle", t, maxResolveDepth)
	}
	if t == nil {
		return nil, fmt.Errorf("cannot resolve a nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if target, ok := r.Conversions.WriteTarget(t); ok {
		return target, nil
	}
	if r.Context != nil && r.Context.IsEnum(t) {
		return types.TypeText, nil
	}
	if dt, handled, err := r.resolveRegistered(t, frozen, depth); handled {
		return dt, err
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return types.TypeBlob, nil
		}
		element, err := r.resolve(t.Elem(), frozen.Nested(0), depth+1)
		if err != nil {
			return nil, err
		}
		return r.composite(types.NewListType(freezeNested(element)), frozen), nil
	case reflect.Map:
		if t.Elem() == emptyStructType {
			element, err := r.resolve(t.Key(), frozen.Nested(0), depth+1)
			if err != nil {
				return nil, err
			}
			return r.composite(types.NewSetType(freezeNested(element)), frozen), nil
		}
		key, err := r.resolve(t.Key(), frozen.Nested(0), depth+1)
		if err != nil {
			return nil, err
		}
		value, err := r.resolve(t.Elem(), frozen.Nested(1), depth+1)
		if err != nil {
			return nil, err
		}
		if key.IsCollection() {
			return nil, fmt.Errorf("map key types must be scalar, got %s", key.String())
		}
		return r.composite(types.NewMapType(key, freezeNested(value)), frozen), nil
	}
	if dt, ok := codec.CqlTypeForGoType(t); ok {
		return dt, nil
	}
	return types.NewUnresolvedType(t.String(), "no mapping registered"), nil
}

var emptyStructType = reflect.TypeOf(struct{}{})

// resolveRegistered handles Go struct types that were registered with the
// mapping context as user-defined types or tuples. Table and composite key
// entities are not column types and resolve to an unresolved marker.
func (r *ColumnTypeResolver) resolveRegistered(t reflect.Type, frozen *types.FrozenIndicator, depth int) (types.CqlDataType, bool, error) {
	if r.Context == nil {
		return nil, false, nil
	}
	entity, ok := r.Context.EntityFor(t)
	if !ok {
		return nil, false, nil
	}
	switch entity.Kind {
	case schemaMapping.KindUdt:
		udt, err := r.udtTypeFor(entity, depth)
		if err != nil {
			return nil, true, err
		}
		return r.composite(udt, frozen), true, nil
	case schemaMapping.KindTuple:
		elements := make([]types.CqlDataType, 0, len(entity.Properties))
		for _, p := range entity.Properties {
			dt, err := r.resolvePropertyAt(entity, p, depth+1)
			if err != nil {
				return nil, true, err
			}
			elements = append(elements, dt)
		}
		return r.composite(types.NewTupleType(elements...), frozen), true, nil
	default:
		return types.NewUnresolvedType(t.String(), "mapped as a table entity, not a column type"), true, nil
	}
}

func (r *ColumnTypeResolver) udtTypeFor(entity *schemaMapping.EntityConfig, depth int) (*types.UdtType, error) {
	fieldNames := make([]string, 0, len(entity.Properties))
	fieldTypes := make([]types.CqlDataType, 0, len(entity.Properties))
	for _, p := range entity.Properties {
		dt, err := r.resolvePropertyAt(entity, p, depth+1)
		if err != nil {
			return nil, err
		}
		fieldNames = append(fieldNames, string(p.Column))
		fieldTypes = append(fieldTypes, dt)
	}
	return types.NewUdtType(entity.Keyspace, entity.UdtName, fieldNames, fieldTypes)
}

// resolvePropertyAt is ResolveProperty with depth tracking for recursion
// through nested UDT and tuple entities.
func (r *ColumnTypeResolver) resolvePropertyAt(entity *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, depth int) (types.CqlDataType, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("entity %s nests deeper than %d levels, likely a cycle", entity.GoType.Name(), maxResolveDepth)
	}
	if p.DeclaredType != nil {
		return p.DeclaredType, nil
	}
	if p.TypeAnnotation != "" {
		dt, err := utilities.ParseCqlTypeString(p.TypeAnnotation, r.udtLookup())
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", entity.Path(p), err)
		}
		return dt, nil
	}
	dt, err := r.resolve(p.GoType, propertyIndicator(p), depth)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", entity.Path(p), err)
	}
	return dt, nil
}

// composite applies top level freezing from the indicator. Interior freezing
// is handled during element resolution.
func (r *ColumnTypeResolver) composite(dt types.CqlDataType, frozen *types.FrozenIndicator) types.CqlDataType {
	if frozen.IsFrozen() && !dt.IsAnyFrozen() {
		return types.NewFrozenType(dt)
	}
	return dt
}

// freezeNested wraps collections and user-defined types that appear inside
// another collection. Cassandra requires interior complex types to be frozen.
func freezeNested(dt types.CqlDataType) types.CqlDataType {
	if dt == nil {
		return dt
	}
	if dt.Code() == types.FROZEN {
		return dt
	}
	if dt.IsCollection() || dt.Code() == types.UDT || dt.Code() == types.TUPLE {
		return types.NewFrozenType(dt)
	}
	return dt
}

// validateShape cross-checks an explicit type declaration against the Go
// field it annotates, catching mismatched arities and unregistered UDTs
// before any data flows.
func (r *ColumnTypeResolver) validateShape(entity *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, dt types.CqlDataType) error {
	goType := p.GoType
	for goType.Kind() == reflect.Ptr {
		goType = goType.Elem()
	}
	if _, ok := r.Conversions.WriteTarget(goType); ok {
		return nil
	}
	switch declared := types.Unfrozen(dt).(type) {
	case *types.ListType, *types.SetType:
		if goType.Kind() != reflect.Slice && goType.Kind() != reflect.Array && goType.Kind() != reflect.Map {
			return fmt.Errorf("property %s declares %s but its Go type %s is not a collection", entity.Path(p), dt.String(), p.GoType)
		}
	case *types.MapType:
		if goType.Kind() != reflect.Map {
			return fmt.Errorf("property %s declares %s but its Go type %s is not a map", entity.Path(p), dt.String(), p.GoType)
		}
	case *types.UdtType:
		if _, registered := r.Context.UdtEntity(declared.Name()); !registered {
			if _, declaredOnly := r.Context.DeclaredUdt(declared.Name()); !declaredOnly {
				return fmt.Errorf("property %s references user-defined type '%s' which is not registered", entity.Path(p), declared.Name())
			}
		}
	case *types.TupleType:
		if goType.Kind() == reflect.Struct {
			config, ok := r.Context.EntityFor(goType)
			if !ok || config.Kind != schemaMapping.KindTuple {
				return fmt.Errorf("property %s declares %s but %s is not registered as a tuple entity", entity.Path(p), dt.String(), goType)
			}
			if len(config.Properties) != len(declared.FieldTypes()) {
				return fmt.Errorf("property %s declares a tuple of %d elements but %s has %d mapped fields", entity.Path(p), len(declared.FieldTypes()), goType, len(config.Properties))
			}
		}
	}
	return nil
}

func (r *ColumnTypeResolver) udtLookup() utilities.UdtLookup {
	return func(name string) (types.CqlDataType, bool) {
		if udt, ok := r.Context.DeclaredUdt(name); ok {
			return udt, true
		}
		entity, ok := r.Context.UdtEntity(name)
		if !ok {
			return nil, false
		}
		udt, err := r.udtTypeFor(entity, 0)
		if err != nil {
			r.Logger.Debug("could not resolve registered udt referenced by annotation",
				zap.String("udt", name), zap.Error(err))
			return nil, false
		}
		return udt, true
	}
}
