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
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

// ValueProvider is the read-side source of raw column values. Row and UDT
// providers address values by column name; the tuple provider addresses them
// by ordinal and ignores the name. The returned descriptor may be nil when the
// source carries no type information of its own, in which case the caller
// falls back to the resolved property type.
type ValueProvider interface {
	Lookup(column types.ColumnName, ordinal int) (types.RawValue, types.CqlDataType, bool)
}

// RowValueProvider reads from a driver row.
type RowValueProvider struct {
	Row *types.Row
}

func (p RowValueProvider) Lookup(column types.ColumnName, _ int) (types.RawValue, types.CqlDataType, bool) {
	raw, dt, ok := p.Row.Get(column)
	return raw, dt, ok
}

// UdtValueProvider reads the fields of one user-defined type value.
type UdtValueProvider struct {
	Value *types.UdtValue
}

func (p UdtValueProvider) Lookup(column types.ColumnName, _ int) (types.RawValue, types.CqlDataType, bool) {
	raw, dt, ok := p.Value.Field(string(column))
	return raw, dt, ok
}

// TupleValueProvider reads tuple fields by position.
type TupleValueProvider struct {
	Value *types.TupleValue
}

func (p TupleValueProvider) Lookup(_ types.ColumnName, ordinal int) (types.RawValue, types.CqlDataType, bool) {
	raw, dt, err := p.Value.Field(ordinal)
	if err != nil {
		return nil, nil, false
	}
	return raw, dt, true
}

// MapValueProvider reads from already decoded column values, used when query
// results arrive as generic maps instead of wire bytes. Raw bytes are absent;
// the converter coerces the decoded values directly.
type MapValueProvider struct {
	Values map[types.ColumnName]types.GoValue
}

func (p MapValueProvider) Lookup(column types.ColumnName, _ int) (types.RawValue, types.CqlDataType, bool) {
	_, ok := p.Values[column]
	return nil, nil, ok
}

// Decoded returns the in-memory value for a column, for callers that know the
// provider holds decoded values.
func (p MapValueProvider) Decoded(column types.ColumnName) (types.GoValue, bool) {
	v, ok := p.Values[column]
	return v, ok
}
