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

package conversion

import (
	"fmt"
	"reflect"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
)

// EntityConverter moves whole entities between Go structs and their flattened
// column representation. Composite key structs and embedded structs flatten
// into the owning entity's column set on write and reassemble on read.
type EntityConverter struct {
	Context *ConversionContext
}

func NewEntityConverter(ctx *ConversionContext) *EntityConverter {
	return &EntityConverter{Context: ctx}
}

func (ec *EntityConverter) configFor(value reflect.Value) (*schemaMapping.EntityConfig, reflect.Value, error) {
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil, reflect.Value{}, fmt.Errorf("cannot convert a nil entity")
		}
		value = value.Elem()
	}
	config, ok := ec.Context.Mapping.EntityFor(value.Type())
	if !ok {
		return nil, reflect.Value{}, fmt.Errorf("type %s is not a registered entity", value.Type())
	}
	return config, value, nil
}

// Write flattens the entity into the sink, one call per mapped column.
func (ec *EntityConverter) Write(entity interface{}, sink Sink) error {
	config, value, err := ec.configFor(reflect.ValueOf(entity))
	if err != nil {
		return err
	}
	return ec.writeEntity(config, value, sink, "")
}

func (ec *EntityConverter) writeEntity(config *schemaMapping.EntityConfig, value reflect.Value, sink Sink, prefix string) error {
	for _, p := range config.Properties {
		field := value.FieldByIndex(p.FieldIndex)
		if p.IsKey || p.IsEmbedded {
			nested, err := ec.nestedConfig(config, p, field)
			if err != nil {
				return err
			}
			for nested.value.Kind() == reflect.Ptr {
				if nested.value.IsNil() {
					return fmt.Errorf("embedded field %s is nil", config.Path(p))
				}
				nested.value = nested.value.Elem()
			}
			if err = ec.writeEntity(nested.config, nested.value, sink, prefix+p.Prefix); err != nil {
				return err
			}
			continue
		}
		dt, err := ec.Context.Resolver.ResolveProperty(config, p)
		if err != nil {
			return err
		}
		converted, raw, err := ec.Context.Encode(dt, field)
		if err != nil {
			return fmt.Errorf("property %s: %w", config.Path(p), err)
		}
		column := columnFor(p, dt, prefix)
		if err = sink.Put(column, converted, raw); err != nil {
			return fmt.Errorf("property %s: %w", config.Path(p), err)
		}
	}
	return nil
}

type nestedEntity struct {
	config *schemaMapping.EntityConfig
	value  reflect.Value
}

func (ec *EntityConverter) nestedConfig(parent *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, field reflect.Value) (nestedEntity, error) {
	ft := p.GoType
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}
	nested, ok := ec.Context.Mapping.EntityFor(ft)
	if !ok {
		return nestedEntity{}, fmt.Errorf("embedded field %s has no registered mapping for %s", parent.Path(p), ft)
	}
	return nestedEntity{config: nested, value: field}, nil
}

func columnFor(p *schemaMapping.PropertyConfig, dt types.CqlDataType, prefix string) types.Column {
	return types.Column{
		Name:         types.ColumnName(prefix) + p.Column,
		CQLType:      dt,
		IsPrimaryKey: p.IsPrimaryKey(),
		PkPrecedence: p.PkPrecedence,
		KeyType:      p.KeyType,
		IsStatic:     p.IsStatic,
	}
}

// Read populates the target struct pointer from the provider. Columns absent
// from the provider leave their fields at the zero value.
func (ec *EntityConverter) Read(provider ValueProvider, target interface{}) error {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return fmt.Errorf("read target must be a non-nil pointer, got %T", target)
	}
	config, value, err := ec.configFor(value)
	if err != nil {
		return err
	}
	return ec.readEntity(config, value, provider, "")
}

func (ec *EntityConverter) readEntity(config *schemaMapping.EntityConfig, value reflect.Value, provider ValueProvider, prefix string) error {
	for _, p := range config.Properties {
		field := value.FieldByIndex(p.FieldIndex)
		if p.IsKey || p.IsEmbedded {
			nested, err := ec.nestedConfig(config, p, field)
			if err != nil {
				return err
			}
			target := field
			for target.Kind() == reflect.Ptr {
				if target.IsNil() {
					target.Set(reflect.New(target.Type().Elem()))
				}
				target = target.Elem()
			}
			if err = ec.readEntity(nested.config, target, provider, prefix+p.Prefix); err != nil {
				return err
			}
			continue
		}
		name := types.ColumnName(prefix) + p.Column
		raw, sourceType, present := provider.Lookup(name, p.Ordinal)
		if !present {
			continue
		}
		dt := sourceType
		if dt == nil {
			resolved, err := ec.Context.Resolver.ResolveProperty(config, p)
			if err != nil {
				return err
			}
			dt = resolved
		}
		if err := ec.readField(provider, name, p, dt, raw, field); err != nil {
			return fmt.Errorf("property %s: %w", config.Path(p), err)
		}
	}
	return nil
}

func (ec *EntityConverter) readField(provider ValueProvider, name types.ColumnName, p *schemaMapping.PropertyConfig, dt types.CqlDataType, raw types.RawValue, field reflect.Value) error {
	if raw == nil {
		// decoded-value providers carry no wire bytes
		if mp, ok := provider.(MapValueProvider); ok {
			decoded, present := mp.Decoded(name)
			if !present || decoded == nil {
				return nil
			}
			coerced, err := ec.Context.Coerce(decoded, dt, field.Type())
			if err != nil {
				return err
			}
			field.Set(coerced)
			return nil
		}
		return nil
	}
	coerced, err := ec.Context.FromCql(dt, raw, field.Type())
	if err != nil {
		return err
	}
	field.Set(coerced)
	return nil
}

// WriteUdt converts a registered UDT struct into its container value.
func (ec *EntityConverter) WriteUdt(entity interface{}) (*types.UdtValue, error) {
	config, value, err := ec.configFor(reflect.ValueOf(entity))
	if err != nil {
		return nil, err
	}
	if config.Kind != schemaMapping.KindUdt {
		return nil, fmt.Errorf("type %s is not registered as a user-defined type", value.Type())
	}
	udt, err := ec.Context.Resolver.ResolveType(value.Type(), nil)
	if err != nil {
		return nil, err
	}
	udtType, ok := types.Unfrozen(udt).(*types.UdtType)
	if !ok {
		return nil, fmt.Errorf("type %s did not resolve to a user-defined type", value.Type())
	}
	builder := NewUdtBuilder(udtType)
	if err = ec.writeEntity(config, value, builder, ""); err != nil {
		return nil, err
	}
	return builder.Value, nil
}

// ReadUdt populates a registered UDT struct pointer from a container value.
func (ec *EntityConverter) ReadUdt(value *types.UdtValue, target interface{}) error {
	return ec.Read(UdtValueProvider{Value: value}, target)
}

// WriteTuple converts a registered tuple struct into its container value.
func (ec *EntityConverter) WriteTuple(entity interface{}) (*types.TupleValue, error) {
	config, value, err := ec.configFor(reflect.ValueOf(entity))
	if err != nil {
		return nil, err
	}
	if config.Kind != schemaMapping.KindTuple {
		return nil, fmt.Errorf("type %s is not registered as a tuple entity", value.Type())
	}
	dt, err := ec.Context.Resolver.ResolveType(value.Type(), nil)
	if err != nil {
		return nil, err
	}
	tupleType, ok := types.Unfrozen(dt).(*types.TupleType)
	if !ok {
		return nil, fmt.Errorf("type %s did not resolve to a tuple", value.Type())
	}
	builder := NewTupleBuilder(tupleType)
	if err = ec.writeEntity(config, value, builder, ""); err != nil {
		return nil, err
	}
	return builder.Value, nil
}

// ReadTuple populates a registered tuple struct pointer from a container
// value.
func (ec *EntityConverter) ReadTuple(value *types.TupleValue, target interface{}) error {
	return ec.Read(TupleValueProvider{Value: value}, target)
}

// GetId extracts the entity's primary key as converted column values, in
// partition-before-clustering order. Composite key structs flatten into their
// leaf columns.
func (ec *EntityConverter) GetId(entity interface{}) ([]types.Column, []types.GoValue, error) {
	config, value, err := ec.configFor(reflect.ValueOf(entity))
	if err != nil {
		return nil, nil, err
	}
	var columns []types.Column
	var values []types.GoValue
	for _, p := range config.PrimaryKeys() {
		field := value.FieldByIndex(p.FieldIndex)
		if p.IsKey {
			nested, nErr := ec.nestedConfig(config, p, field)
			if nErr != nil {
				return nil, nil, nErr
			}
			target := field
			for target.Kind() == reflect.Ptr {
				if target.IsNil() {
					return nil, nil, fmt.Errorf("composite key field %s is nil", config.Path(p))
				}
				target = target.Elem()
			}
			// key struct fields flatten in precedence order, not in the
			// order the struct declares them
			for _, np := range nested.config.PrimaryKeys() {
				column, converted, kErr := ec.keyColumn(nested.config, np, target.FieldByIndex(np.FieldIndex))
				if kErr != nil {
					return nil, nil, kErr
				}
				columns = append(columns, column)
				values = append(values, converted)
			}
			continue
		}
		column, converted, kErr := ec.keyColumn(config, p, field)
		if kErr != nil {
			return nil, nil, kErr
		}
		columns = append(columns, column)
		values = append(values, converted)
	}
	return columns, values, nil
}

func (ec *EntityConverter) keyColumn(config *schemaMapping.EntityConfig, p *schemaMapping.PropertyConfig, field reflect.Value) (types.Column, types.GoValue, error) {
	dt, err := ec.Context.Resolver.ResolveProperty(config, p)
	if err != nil {
		return types.Column{}, nil, err
	}
	converted, _, err := ec.Context.Encode(dt, field)
	if err != nil {
		return types.Column{}, nil, fmt.Errorf("property %s: %w", config.Path(p), err)
	}
	return columnFor(p, dt, ""), converted, nil
}

// ConvertToColumnType converts a parameter value into the representation of a
// named column, used by the statement translators to bind filter and update
// arguments.
func (ec *EntityConverter) ConvertToColumnType(config *schemaMapping.EntityConfig, column types.ColumnName, value interface{}) (types.GoValue, types.CqlDataType, error) {
	p, err := config.GetProperty(column)
	if err != nil {
		return nil, nil, err
	}
	dt, err := ec.Context.Resolver.ResolveProperty(config, p)
	if err != nil {
		return nil, nil, err
	}
	converted, err := ec.Context.ToCql(dt, reflect.ValueOf(value))
	if err != nil {
		return nil, nil, fmt.Errorf("value for column %s: %w", column, err)
	}
	return converted, dt, nil
}

// ReadProjection populates a plain DTO struct from the provider, matching
// fields to columns by cql tag or snake-cased field name. Unlike Read, the
// target needs no registration; types come from the provider's metadata.
func (ec *EntityConverter) ReadProjection(provider ValueProvider, target interface{}) error {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return fmt.Errorf("projection target must be a non-nil pointer, got %T", target)
	}
	value = value.Elem()
	if value.Kind() != reflect.Struct {
		return fmt.Errorf("projection target must be a struct, got %s", value.Type())
	}
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		column := schemaMapping.ColumnNameForField(sf)
		if column == "-" {
			continue
		}
		raw, dt, present := provider.Lookup(types.ColumnName(column), i)
		if !present || dt == nil {
			continue
		}
		coerced, err := ec.Context.FromCql(dt, raw, sf.Type)
		if err != nil {
			return fmt.Errorf("projection field %s.%s: %w", t.Name(), sf.Name, err)
		}
		value.Field(i).Set(coerced)
	}
	return nil
}
