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

// Package conversion moves values between mapped Go entities and their
// Cassandra representations. The conversion context is the dispatch core:
// writes lower Go values into marshal-ready intermediates, reads coerce
// decoded intermediates back into the caller's Go types. Custom conversions
// and registered enums are consulted before any structural rule.
package conversion

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/datastax/go-cassandra-native-protocol/primitive"
	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/codec"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/resolver"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
)

type ConversionContext struct {
	Version     primitive.ProtocolVersion
	Mapping     *schemaMapping.MappingContext
	Resolver    *resolver.ColumnTypeResolver
	Conversions *codec.CustomConversions
	Logger      *zap.Logger
}

func NewConversionContext(mapping *schemaMapping.MappingContext, res *resolver.ColumnTypeResolver, version primitive.ProtocolVersion, logger *zap.Logger) *ConversionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionContext{
		Version:     version,
		Mapping:     mapping,
		Resolver:    res,
		Conversions: res.Conversions,
		Logger:      logger,
	}
}

// ToCql lowers a Go value into the intermediate representation the codec can
// marshal for the given descriptor: enum values become their names, custom
// conversion sources become their targets, mapped structs become field maps
// or ordered slices, collections convert element-wise. A nil result means the
// column is unset.
func (c *ConversionContext) ToCql(dt types.CqlDataType, v reflect.Value) (types.GoValue, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, nil
	}
	if c.Conversions.HasConverter(v.Type()) {
		converted, _, _, err := c.Conversions.ConvertToCql(v.Interface())
		return converted, err
	}
	if c.Mapping.IsEnum(v.Type()) {
		return c.Mapping.EnumName(v)
	}
	switch t := types.Unfrozen(dt).(type) {
	case *types.ListType:
		return c.sliceToCql(t.ElementType(), v)
	case *types.SetType:
		if v.Kind() == reflect.Map {
			return c.setMapToCql(t.ElementType(), v)
		}
		return c.sliceToCql(t.ElementType(), v)
	case *types.MapType:
		return c.mapToCql(t, v)
	case *types.UdtType:
		return c.udtToCql(t, v)
	case *types.TupleType:
		return c.tupleToCql(t, v)
	case types.UnresolvedType:
		_, err := types.WireType(t)
		return nil, err
	default:
		return v.Interface(), nil
	}
}

func (c *ConversionContext) sliceToCql(element types.CqlDataType, v reflect.Value) (types.GoValue, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot convert %s to a list or set", v.Type())
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return nil, nil
	}
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		converted, err := c.ToCql(element, v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}

// setMapToCql converts the map[T]struct{} set idiom into an ordered slice.
// Sorting the string form keeps the output deterministic across runs.
func (c *ConversionContext) setMapToCql(element types.CqlDataType, v reflect.Value) (types.GoValue, error) {
	if v.IsNil() {
		return nil, nil
	}
	out := make([]interface{}, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		converted, err := c.ToCql(element, iter.Key())
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
	})
	return out, nil
}

func (c *ConversionContext) mapToCql(t *types.MapType, v reflect.Value) (types.GoValue, error) {
	if v.Kind() != reflect.Map {
		return nil, fmt.Errorf("cannot convert %s to a map", v.Type())
	}
	if v.IsNil() {
		return nil, nil
	}
	out := make(map[interface{}]interface{}, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := c.ToCql(t.KeyType(), iter.Key())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		value, err := c.ToCql(t.ValueType(), iter.Value())
		if err != nil {
			return nil, fmt.Errorf("map value for key %v: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

func (c *ConversionContext) udtToCql(t *types.UdtType, v reflect.Value) (types.GoValue, error) {
	if v.Kind() == reflect.Map {
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			name := fmt.Sprint(iter.Key().Interface())
			fieldType, ok := t.FieldType(name)
			if !ok {
				return nil, fmt.Errorf("user-defined type %s has no field %s", t.Name(), name)
			}
			converted, err := c.ToCql(fieldType, iter.Value())
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			out[name] = converted
		}
		return out, nil
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot convert %s to user-defined type %s", v.Type(), t.Name())
	}
	entity, ok := c.Mapping.EntityFor(v.Type())
	if !ok || entity.Kind != schemaMapping.KindUdt {
		return nil, fmt.Errorf("type %s is not registered as user-defined type %s", v.Type(), t.Name())
	}
	out := make(map[string]interface{}, len(entity.Properties))
	for _, p := range entity.Properties {
		fieldType, found := t.FieldType(string(p.Column))
		if !found {
			return nil, fmt.Errorf("user-defined type %s has no field %s mapped by %s", t.Name(), p.Column, entity.Path(p))
		}
		converted, err := c.ToCql(fieldType, v.FieldByIndex(p.FieldIndex))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", entity.Path(p), err)
		}
		out[string(p.Column)] = converted
	}
	return out, nil
}

func (c *ConversionContext) tupleToCql(t *types.TupleType, v reflect.Value) (types.GoValue, error) {
	fieldTypes := t.FieldTypes()
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() != len(fieldTypes) {
			return nil, fmt.Errorf("tuple has %d fields but value has %d elements", len(fieldTypes), v.Len())
		}
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			converted, err := c.ToCql(fieldTypes[i], v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot convert %s to a tuple", v.Type())
	}
	entity, ok := c.Mapping.EntityFor(v.Type())
	if !ok || entity.Kind != schemaMapping.KindTuple {
		return nil, fmt.Errorf("type %s is not registered as a tuple entity", v.Type())
	}
	if len(entity.Properties) != len(fieldTypes) {
		return nil, fmt.Errorf("tuple has %d fields but %s maps %d", len(fieldTypes), v.Type(), len(entity.Properties))
	}
	out := make([]interface{}, len(fieldTypes))
	for _, p := range entity.Properties {
		converted, err := c.ToCql(fieldTypes[p.Ordinal], v.FieldByIndex(p.FieldIndex))
		if err != nil {
			return nil, fmt.Errorf("tuple field %s: %w", entity.Path(p), err)
		}
		out[p.Ordinal] = converted
	}
	return out, nil
}

// Encode lowers and marshals in one step.
func (c *ConversionContext) Encode(dt types.CqlDataType, v reflect.Value) (types.GoValue, types.RawValue, error) {
	converted, err := c.ToCql(dt, v)
	if err != nil {
		return nil, nil, err
	}
	if converted == nil {
		return nil, nil, nil
	}
	raw, err := codec.Encode(dt, c.Version, converted)
	if err != nil {
		return nil, nil, err
	}
	return converted, raw, nil
}

// FromCql decodes wire bytes and coerces the result into the target type.
func (c *ConversionContext) FromCql(dt types.CqlDataType, raw types.RawValue, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(target), nil
	}
	decoded, err := codec.DecodeValue(dt, c.Version, raw)
	if err != nil {
		return reflect.Value{}, err
	}
	return c.Coerce(decoded, dt, target)
}

// Coerce converts a decoded intermediate value into the target Go type. It is
// the read-side mirror of ToCql: names become enum values, conversion targets
// become their sources, field maps become mapped structs.
func (c *ConversionContext) Coerce(value types.GoValue, dt types.CqlDataType, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	if target.Kind() == reflect.Ptr {
		inner, err := c.Coerce(value, dt, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(target.Elem())
		out.Elem().Set(inner)
		return out, nil
	}
	if c.Conversions.HasConverter(target) {
		converted, applied, err := c.Conversions.ConvertFromCql(target, value)
		if err != nil {
			return reflect.Value{}, err
		}
		if applied {
			return reflect.ValueOf(converted), nil
		}
	}
	if c.Mapping.IsEnum(target) {
		return c.coerceEnum(value, target)
	}
	rv := reflect.ValueOf(value)
	if rv.Type() == target {
		return rv, nil
	}
	switch t := types.Unfrozen(dt).(type) {
	case *types.ListType:
		return c.coerceSequence(value, t.ElementType(), target)
	case *types.SetType:
		return c.coerceSequence(value, t.ElementType(), target)
	case *types.MapType:
		return c.coerceMap(value, t, target)
	case *types.UdtType:
		return c.coerceUdt(value, t, target)
	case *types.TupleType:
		return c.coerceTuple(value, t, target)
	}
	if rv.Type().ConvertibleTo(target) && isBasic(rv.Kind()) && isBasic(target.Kind()) {
		return rv.Convert(target), nil
	}
	if target.Kind() == reflect.Interface && rv.Type().Implements(target) {
		return rv, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot coerce %T into %s", value, target)
}

func isBasic(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// coerceEnum accepts the stored name and, for data written by systems that
// persisted ordinals, a numeric ordinal.
func (c *ConversionContext) coerceEnum(value types.GoValue, target reflect.Type) (reflect.Value, error) {
	switch v := value.(type) {
	case string:
		return c.Mapping.EnumValue(target, v)
	case int64:
		return c.Mapping.EnumValue(target, strconv.FormatInt(v, 10))
	case int32:
		return c.Mapping.EnumValue(target, strconv.FormatInt(int64(v), 10))
	case int:
		return c.Mapping.EnumValue(target, strconv.Itoa(v))
	default:
		return reflect.Value{}, fmt.Errorf("cannot read %T as enum %s", value, target)
	}
}

func (c *ConversionContext) coerceSequence(value types.GoValue, element types.CqlDataType, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("expected a decoded slice, got %T", value)
	}
	switch target.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(target, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := c.Coerce(rv.Index(i).Interface(), element, target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case reflect.Map:
		// set idiom: map[T]struct{}
		if target.Elem() != emptyStructType {
			return reflect.Value{}, fmt.Errorf("cannot read a set into %s", target)
		}
		out := reflect.MakeMapWithSize(target, rv.Len())
		empty := reflect.Zero(emptyStructType)
		for i := 0; i < rv.Len(); i++ {
			key, err := c.Coerce(rv.Index(i).Interface(), element, target.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.SetMapIndex(key, empty)
		}
		return out, nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot read a collection into %s", target)
	}
}

var emptyStructType = reflect.TypeOf(struct{}{})

func (c *ConversionContext) coerceMap(value types.GoValue, t *types.MapType, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("expected a decoded map, got %T", value)
	}
	if target.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("cannot read a map into %s", target)
	}
	out := reflect.MakeMapWithSize(target, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := c.Coerce(iter.Key().Interface(), t.KeyType(), target.Key())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("map key: %w", err)
		}
		val, err := c.Coerce(iter.Value().Interface(), t.ValueType(), target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("map value: %w", err)
		}
		out.SetMapIndex(key, val)
	}
	return out, nil
}

func (c *ConversionContext) coerceUdt(value types.GoValue, t *types.UdtType, target reflect.Type) (reflect.Value, error) {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected decoded user-defined type fields, got %T", value)
	}
	if target.Kind() == reflect.Map && target.Key().Kind() == reflect.String {
		out := reflect.MakeMapWithSize(target, len(fields))
		for name, fieldValue := range fields {
			fieldType, found := t.FieldType(name)
			if !found || fieldValue == nil {
				continue
			}
			coerced, err := c.Coerce(fieldValue, fieldType, target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", name, err)
			}
			out.SetMapIndex(reflect.ValueOf(name).Convert(target.Key()), coerced)
		}
		return out, nil
	}
	if target.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("cannot read user-defined type %s into %s", t.Name(), target)
	}
	entity, registered := c.Mapping.EntityFor(target)
	if !registered || entity.Kind != schemaMapping.KindUdt {
		return reflect.Value{}, fmt.Errorf("type %s is not registered as user-defined type %s", target, t.Name())
	}
	out := reflect.New(target).Elem()
	for _, p := range entity.Properties {
		fieldValue, present := fields[string(p.Column)]
		if !present || fieldValue == nil {
			continue
		}
		fieldType, found := t.FieldType(string(p.Column))
		if !found {
			continue
		}
		coerced, err := c.Coerce(fieldValue, fieldType, p.GoType)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", entity.Path(p), err)
		}
		out.FieldByIndex(p.FieldIndex).Set(coerced)
	}
	return out, nil
}

func (c *ConversionContext) coerceTuple(value types.GoValue, t *types.TupleType, target reflect.Type) (reflect.Value, error) {
	elements, ok := value.([]interface{})
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected decoded tuple elements, got %T", value)
	}
	fieldTypes := t.FieldTypes()
	if target == reflect.TypeOf([]interface{}(nil)) {
		return reflect.ValueOf(value), nil
	}
	if target.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("cannot read a tuple into %s", target)
	}
	entity, registered := c.Mapping.EntityFor(target)
	if !registered || entity.Kind != schemaMapping.KindTuple {
		return reflect.Value{}, fmt.Errorf("type %s is not registered as a tuple entity", target)
	}
	if len(elements) != len(entity.Properties) {
		return reflect.Value{}, fmt.Errorf("tuple has %d elements but %s maps %d fields", len(elements), target, len(entity.Properties))
	}
	out := reflect.New(target).Elem()
	for _, p := range entity.Properties {
		element := elements[p.Ordinal]
		if element == nil {
			continue
		}
		coerced, err := c.Coerce(element, fieldTypes[p.Ordinal], p.GoType)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("tuple field %s: %w", entity.Path(p), err)
		}
		out.FieldByIndex(p.FieldIndex).Set(coerced)
	}
	return out, nil
}
