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
package types

import (
	"fmt"

	"github.com/datastax/go-cassandra-native-protocol/message"
	"github.com/datastax/go-cassandra-native-protocol/primitive"
)

// Row is the driver-side representation of one table row: ordered column
// metadata plus the raw wire bytes for each column. The entity converter
// reads from and writes into rows; it never touches a live driver session.
type Row struct {
	version  primitive.ProtocolVersion
	columns  []*message.ColumnMetadata
	colTypes []CqlDataType
	byName   map[ColumnName]int
	values   []RawValue
}

func NewRow(version primitive.ProtocolVersion) *Row {
	return &Row{
		version: version,
		byName:  make(map[ColumnName]int),
	}
}

func (r *Row) Version() primitive.ProtocolVersion {
	return r.version
}

// Set appends or replaces a column value. The descriptor must be resolvable
// because rows always carry wire metadata.
func (r *Row) Set(name ColumnName, dt CqlDataType, raw RawValue) error {
	wire, err := WireType(dt)
	if err != nil {
		return fmt.Errorf("column %s: %w", name, err)
	}
	if i, ok := r.byName[name]; ok {
		r.colTypes[i] = dt
		r.columns[i].Type = wire
		r.values[i] = raw
		return nil
	}
	r.byName[name] = len(r.columns)
	r.columns = append(r.columns, &message.ColumnMetadata{
		Name:  string(name),
		Index: int32(len(r.columns)),
		Type:  wire,
	})
	r.colTypes = append(r.colTypes, dt)
	r.values = append(r.values, raw)
	return nil
}

func (r *Row) Get(name ColumnName) (RawValue, CqlDataType, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, nil, false
	}
	return r.values[i], r.colTypes[i], true
}

func (r *Row) Has(name ColumnName) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Row) Len() int {
	return len(r.columns)
}

func (r *Row) Columns() []*message.ColumnMetadata {
	return r.columns
}

// ColumnType returns the descriptor recorded for a column.
func (r *Row) ColumnType(name ColumnName) (CqlDataType, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.colTypes[i], true
}

// UdtValue is the container representation of one user-defined type value:
// raw field bytes keyed by field name, typed by the UDT descriptor.
type UdtValue struct {
	udt    *UdtType
	fields map[string]RawValue
}

func NewUdtValue(udt *UdtType) *UdtValue {
	return &UdtValue{udt: udt, fields: make(map[string]RawValue)}
}

func (u *UdtValue) Type() *UdtType {
	return u.udt
}

func (u *UdtValue) SetField(name string, raw RawValue) error {
	if _, ok := u.udt.FieldType(name); !ok {
		return fmt.Errorf("user-defined type %s has no field %s", u.udt.Name(), name)
	}
	u.fields[name] = raw
	return nil
}

func (u *UdtValue) Field(name string) (RawValue, CqlDataType, bool) {
	dt, ok := u.udt.FieldType(name)
	if !ok {
		return nil, nil, false
	}
	raw, ok := u.fields[name]
	return raw, dt, ok
}

// TupleValue is the container representation of one tuple value: raw field
// bytes addressed by ordinal, typed by the tuple descriptor.
type TupleValue struct {
	tuple  *TupleType
	fields []RawValue
}

func NewTupleValue(tuple *TupleType) *TupleValue {
	return &TupleValue{tuple: tuple, fields: make([]RawValue, len(tuple.FieldTypes()))}
}

func (t *TupleValue) Type() *TupleType {
	return t.tuple
}

func (t *TupleValue) Len() int {
	return len(t.fields)
}

func (t *TupleValue) SetField(i int, raw RawValue) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("tuple ordinal %d out of range, tuple has %d fields", i, len(t.fields))
	}
	t.fields[i] = raw
	return nil
}

func (t *TupleValue) Field(i int) (RawValue, CqlDataType, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, nil, fmt.Errorf("tuple ordinal %d out of range, tuple has %d fields", i, len(t.fields))
	}
	return t.fields[i], t.tuple.FieldTypes()[i], nil
}
