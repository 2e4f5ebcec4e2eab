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

// Package translator turns filter criteria and update actions against mapped
// entities into parameterized CQL statements. Parameter values are converted
// to their column representation and parameter types narrowed per operator,
// e.g. CONTAINS binds an element of the collection, not the collection.
package translator

import (
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

// Operator is a comparison operator usable in a where clause.
type Operator string

const (
	OperatorEq          Operator = "="
	OperatorGt          Operator = ">"
	OperatorGte         Operator = ">="
	OperatorLt          Operator = "<"
	OperatorLte         Operator = "<="
	OperatorIn          Operator = "IN"
	OperatorContains    Operator = "CONTAINS"
	OperatorContainsKey Operator = "CONTAINS KEY"
)

// Filter is one where-clause condition: a column, an operator and the
// parameter value in caller representation.
type Filter struct {
	Column   types.ColumnName
	Operator Operator
	Value    interface{}
}

// Ordering is one ORDER BY element.
type Ordering struct {
	Column     types.ColumnName
	Descending bool
}

// Criteria describes a select against one mapped table.
type Criteria struct {
	// Columns restricts the projection; empty selects every mapped column.
	Columns        []types.ColumnName
	Filters        []Filter
	OrderBy        []Ordering
	Limit          int
	AllowFiltering bool
}

// UpdateAction enumerates the supported update assignment shapes.
type UpdateAction int

const (
	// ActionSet replaces the column value.
	ActionSet UpdateAction = iota
	// ActionIncrement adds a delta to a counter or numeric column.
	ActionIncrement
	// ActionAppend appends elements to a list, or adds to a set or map.
	ActionAppend
	// ActionPrepend prepends elements to a list.
	ActionPrepend
	// ActionRemove removes elements from a list or set, or keys from a map.
	ActionRemove
	// ActionSetAtIndex replaces a single list element by position.
	ActionSetAtIndex
	// ActionSetAtKey replaces a single map value by key.
	ActionSetAtKey
)

// Assignment is one SET clause of an update statement.
type Assignment struct {
	Column types.ColumnName
	Action UpdateAction
	Value  interface{}
	// Index addresses the element for ActionSetAtIndex.
	Index int
	// Key addresses the entry for ActionSetAtKey, in caller representation.
	Key interface{}
}

// Statement is a generated CQL statement with its ordered bind parameters.
// ParamTypes carries the narrowed column type of each parameter so callers
// can encode them for any driver.
type Statement struct {
	Query      string
	Params     []types.GoValue
	ParamTypes []types.CqlDataType
}
