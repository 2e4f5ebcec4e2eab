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

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

// Sink receives the flattened output of an entity write, one call per mapped
// column in property order. The converter hands every sink both the converted
// in-memory value and the encoded wire bytes so each sink keeps only what it
// needs.
type Sink interface {
	Put(column types.Column, value types.GoValue, raw types.RawValue) error
}

// MapSink collects converted values keyed by column name.
type MapSink struct {
	Values map[types.ColumnName]types.GoValue
	Types  map[types.ColumnName]types.CqlDataType
}

func NewMapSink() *MapSink {
	return &MapSink{
		Values: make(map[types.ColumnName]types.GoValue),
		Types:  make(map[types.ColumnName]types.CqlDataType),
	}
}

func (s *MapSink) Put(column types.Column, value types.GoValue, _ types.RawValue) error {
	if _, exists := s.Values[column.Name]; exists {
		return fmt.Errorf("column %s written twice", column.Name)
	}
	s.Values[column.Name] = value
	s.Types[column.Name] = column.CQLType
	return nil
}

// RowSink writes encoded bytes into a driver row.
type RowSink struct {
	Row *types.Row
}

func (s RowSink) Put(column types.Column, _ types.GoValue, raw types.RawValue) error {
	return s.Row.Set(column.Name, column.CQLType, raw)
}

// ColumnsSink collects columns and converted values in write order, the shape
// the statement translators consume. Omitting nil values lets inserts skip
// unset columns instead of writing tombstones.
type ColumnsSink struct {
	OmitNil bool
	Columns []types.Column
	Values  []types.GoValue
	Raw     []types.RawValue
}

func (s *ColumnsSink) Put(column types.Column, value types.GoValue, raw types.RawValue) error {
	if s.OmitNil && value == nil {
		return nil
	}
	s.Columns = append(s.Columns, column)
	s.Values = append(s.Values, value)
	s.Raw = append(s.Raw, raw)
	return nil
}

// KeySplitSink separates primary key columns from regular columns, the shape
// an update statement needs: regular columns become assignments, key columns
// become the where clause.
type KeySplitSink struct {
	Assignments ColumnsSink
	Keys        ColumnsSink
}

func (s *KeySplitSink) Put(column types.Column, value types.GoValue, raw types.RawValue) error {
	if column.IsPrimaryKey {
		return s.Keys.Put(column, value, raw)
	}
	return s.Assignments.Put(column, value, raw)
}

// UdtBuilder assembles a user-defined type value field by field.
type UdtBuilder struct {
	Value *types.UdtValue
}

func NewUdtBuilder(udt *types.UdtType) *UdtBuilder {
	return &UdtBuilder{Value: types.NewUdtValue(udt)}
}

func (b *UdtBuilder) Put(column types.Column, _ types.GoValue, raw types.RawValue) error {
	return b.Value.SetField(string(column.Name), raw)
}

// TupleBuilder assembles a tuple value in call order.
type TupleBuilder struct {
	Value *types.TupleValue
	next  int
}

func NewTupleBuilder(tuple *types.TupleType) *TupleBuilder {
	return &TupleBuilder{Value: types.NewTupleValue(tuple)}
}

func (b *TupleBuilder) Put(_ types.Column, _ types.GoValue, raw types.RawValue) error {
	if err := b.Value.SetField(b.next, raw); err != nil {
		return err
	}
	b.next++
	return nil
}
