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
	"strings"

	"github.com/datastax/go-cassandra-native-protocol/datatype"
)

// CqlDataType describes the shape of a Cassandra column type. Implementations
// mirror the CQL type system: scalars, list/set/map collections, tuples,
// user-defined types and the frozen modifier.
//
// DataType returns the wire type from the native protocol library. It is nil
// for unresolved descriptors and for any composite descriptor containing one;
// consumers that actually need the wire representation must go through
// WireType, which reports an actionable error instead.
type CqlDataType interface {
	// String returns the canonical CQL string representation of the type.
	String() string

	DataType() datatype.DataType
	// isCDataType is an unexported marker method to ensure only types
	// from this package can implement the interface.
	isCDataType()

	IsCollection() bool
	IsAnyFrozen() bool
	Code() CqlTypeCode
}

func IsScalar(c CqlDataType) bool {
	return !c.IsCollection() && c.Code() != TUPLE && c.Code() != UDT
}

type CqlTypeCode int

// Enumeration of all Cassandra types handled by the mapper.
const (
	// Scalars
	ASCII CqlTypeCode = iota
	VARCHAR
	BIGINT
	BLOB
	BOOLEAN
	COUNTER
	DATE
	DECIMAL
	DOUBLE
	FLOAT
	INET
	INT
	SMALLINT
	TEXT // Also used for VARCHAR
	TIME
	TIMESTAMP
	TIMEUUID
	TINYINT
	UUID
	VARINT
	// Collections
	LIST
	SET
	MAP
	// Structured
	TUPLE
	UDT
	// Other
	FROZEN
	UNRESOLVED
)

// ScalarType represents a primitive, single-value Cassandra type.
type ScalarType struct {
	code CqlTypeCode
	dt   datatype.DataType
	name string
}

func (s ScalarType) Code() CqlTypeCode {
	return s.code
}

func (s ScalarType) IsAnyFrozen() bool {
	return false
}

func (s ScalarType) DataType() datatype.DataType {
	return s.dt
}

func (s ScalarType) isCDataType() {}

func (s ScalarType) String() string {
	return s.name
}

func (s ScalarType) IsCollection() bool {
	return false
}

// Pre-defined constants for common scalar types for convenience.
var (
	TypeAscii     CqlDataType = ScalarType{name: "ascii", code: ASCII, dt: datatype.Ascii}
	TypeVarchar   CqlDataType = ScalarType{name: "varchar", code: VARCHAR, dt: datatype.Varchar}
	TypeBigint    CqlDataType = ScalarType{name: "bigint", code: BIGINT, dt: datatype.Bigint}
	TypeBlob      CqlDataType = ScalarType{name: "blob", code: BLOB, dt: datatype.Blob}
	TypeBoolean   CqlDataType = ScalarType{name: "boolean", code: BOOLEAN, dt: datatype.Boolean}
	TypeCounter   CqlDataType = ScalarType{name: "counter", code: COUNTER, dt: datatype.Counter}
	TypeDate      CqlDataType = ScalarType{name: "date", code: DATE, dt: datatype.Date}
	TypeDecimal   CqlDataType = ScalarType{name: "decimal", code: DECIMAL, dt: datatype.Decimal}
	TypeDouble    CqlDataType = ScalarType{name: "double", code: DOUBLE, dt: datatype.Double}
	TypeFloat     CqlDataType = ScalarType{name: "float", code: FLOAT, dt: datatype.Float}
	TypeInet      CqlDataType = ScalarType{name: "inet", code: INET, dt: datatype.Inet}
	TypeInt       CqlDataType = ScalarType{name: "int", code: INT, dt: datatype.Int}
	TypeSmallint  CqlDataType = ScalarType{name: "smallint", code: SMALLINT, dt: datatype.Smallint}
	TypeText      CqlDataType = ScalarType{name: "text", code: TEXT, dt: datatype.Varchar}
	TypeTime      CqlDataType = ScalarType{name: "time", code: TIME, dt: datatype.Time}
	TypeTimestamp CqlDataType = ScalarType{name: "timestamp", code: TIMESTAMP, dt: datatype.Timestamp}
	TypeTimeuuid  CqlDataType = ScalarType{name: "timeuuid", code: TIMEUUID, dt: datatype.Timeuuid}
	TypeTinyint   CqlDataType = ScalarType{name: "tinyint", code: TINYINT, dt: datatype.Tinyint}
	TypeUuid      CqlDataType = ScalarType{name: "uuid", code: UUID, dt: datatype.Uuid}
	TypeVarint    CqlDataType = ScalarType{name: "varint", code: VARINT, dt: datatype.Varint}
)

type MapType struct {
	keyType   CqlDataType
	valueType CqlDataType
	dt        datatype.DataType
}

func (m MapType) Code() CqlTypeCode {
	return MAP
}

func (m MapType) IsAnyFrozen() bool {
	return m.keyType.IsAnyFrozen() || m.valueType.IsAnyFrozen()
}

func (m MapType) KeyType() CqlDataType {
	return m.keyType
}

func (m MapType) ValueType() CqlDataType {
	return m.valueType
}

func NewMapType(keyType CqlDataType, valueType CqlDataType) *MapType {
	var dt datatype.DataType
	if keyType.DataType() != nil && valueType.DataType() != nil {
		dt = datatype.NewMapType(keyType.DataType(), valueType.DataType())
	}
	return &MapType{keyType: keyType, valueType: valueType, dt: dt}
}

func (m MapType) DataType() datatype.DataType {
	return m.dt
}

func (m MapType) isCDataType() {}

func (m MapType) String() string {
	return fmt.Sprintf("map<%s, %s>", m.keyType.String(), m.valueType.String())
}

func (m MapType) IsCollection() bool {
	return true
}

// ListType represents a Cassandra list<elementType>.
type ListType struct {
	elementType CqlDataType
	dt          datatype.DataType
}

func (l ListType) Code() CqlTypeCode {
	return LIST
}

func (l ListType) IsAnyFrozen() bool {
	return l.elementType.IsAnyFrozen()
}

func (l ListType) ElementType() CqlDataType {
	return l.elementType
}

func NewListType(elementType CqlDataType) *ListType {
	var dt datatype.DataType
	if elementType.DataType() != nil {
		dt = datatype.NewListType(elementType.DataType())
	}
	return &ListType{elementType: elementType, dt: dt}
}

func (l ListType) DataType() datatype.DataType {
	return l.dt
}

func (l ListType) isCDataType() {}

func (l ListType) String() string {
	return fmt.Sprintf("list<%s>", l.elementType.String())
}

func (l ListType) IsCollection() bool {
	return true
}

// SetType represents a Cassandra set<elementType>.
type SetType struct {
	elementType CqlDataType
	dt          datatype.DataType
}

func (s SetType) Code() CqlTypeCode {
	return SET
}

func (s SetType) IsAnyFrozen() bool {
	return s.elementType.IsAnyFrozen()
}

func NewSetType(elementType CqlDataType) *SetType {
	var dt datatype.DataType
	if elementType.DataType() != nil {
		dt = datatype.NewSetType(elementType.DataType())
	}
	return &SetType{elementType: elementType, dt: dt}
}

func (s SetType) DataType() datatype.DataType {
	return s.dt
}

func (s SetType) ElementType() CqlDataType {
	return s.elementType
}

func (s SetType) isCDataType() {}

func (s SetType) String() string {
	return fmt.Sprintf("set<%s>", s.elementType.String())
}

func (s SetType) IsCollection() bool {
	return true
}

// TupleType represents a Cassandra tuple. Tuples are always frozen in
// Cassandra so no explicit frozen wrapping is required.
type TupleType struct {
	fieldTypes []CqlDataType
	dt         datatype.DataType
}

func NewTupleType(fieldTypes ...CqlDataType) *TupleType {
	var wire []datatype.DataType
	for _, ft := range fieldTypes {
		if ft.DataType() == nil {
			wire = nil
			break
		}
		wire = append(wire, ft.DataType())
	}
	var dt datatype.DataType
	if len(wire) == len(fieldTypes) && len(wire) > 0 {
		dt = datatype.NewTupleType(wire...)
	}
	return &TupleType{fieldTypes: fieldTypes, dt: dt}
}

func (t TupleType) Code() CqlTypeCode {
	return TUPLE
}

func (t TupleType) IsAnyFrozen() bool {
	for _, ft := range t.fieldTypes {
		if ft.IsAnyFrozen() {
			return true
		}
	}
	return false
}

func (t TupleType) FieldTypes() []CqlDataType {
	return t.fieldTypes
}

func (t TupleType) DataType() datatype.DataType {
	return t.dt
}

func (t TupleType) isCDataType() {}

func (t TupleType) String() string {
	var parts []string
	for _, ft := range t.fieldTypes {
		parts = append(parts, ft.String())
	}
	return fmt.Sprintf("tuple<%s>", strings.Join(parts, ", "))
}

func (t TupleType) IsCollection() bool {
	return false
}

// UdtType represents a named Cassandra user-defined type with ordered fields.
type UdtType struct {
	keyspace   Keyspace
	name       string
	fieldNames []string
	fieldTypes []CqlDataType
	dt         datatype.DataType
}

func NewUdtType(keyspace Keyspace, name string, fieldNames []string, fieldTypes []CqlDataType) (*UdtType, error) {
	if name == "" {
		return nil, fmt.Errorf("user-defined type name is required")
	}
	if len(fieldNames) != len(fieldTypes) {
		return nil, fmt.Errorf("user-defined type %s has %d field names but %d field types", name, len(fieldNames), len(fieldTypes))
	}
	var wire []datatype.DataType
	resolved := true
	for _, ft := range fieldTypes {
		if ft.DataType() == nil {
			resolved = false
			break
		}
		wire = append(wire, ft.DataType())
	}
	u := &UdtType{keyspace: keyspace, name: name, fieldNames: fieldNames, fieldTypes: fieldTypes}
	if resolved {
		dt, err := datatype.NewUserDefinedType(string(keyspace), name, fieldNames, wire)
		if err != nil {
			return nil, fmt.Errorf("invalid user-defined type %s: %w", name, err)
		}
		u.dt = dt
	}
	return u, nil
}

func (u UdtType) Code() CqlTypeCode {
	return UDT
}

func (u UdtType) Keyspace() Keyspace {
	return u.keyspace
}

func (u UdtType) Name() string {
	return u.name
}

func (u UdtType) FieldNames() []string {
	return u.fieldNames
}

func (u UdtType) FieldTypes() []CqlDataType {
	return u.fieldTypes
}

// FieldType returns the declared type of the named field.
func (u UdtType) FieldType(field string) (CqlDataType, bool) {
	for i, n := range u.fieldNames {
		if n == field {
			return u.fieldTypes[i], true
		}
	}
	return nil, false
}

func (u UdtType) IsAnyFrozen() bool {
	for _, ft := range u.fieldTypes {
		if ft.IsAnyFrozen() {
			return true
		}
	}
	return false
}

func (u UdtType) DataType() datatype.DataType {
	return u.dt
}

func (u UdtType) isCDataType() {}

func (u UdtType) String() string {
	return u.name
}

func (u UdtType) IsCollection() bool {
	return false
}

type FrozenType struct {
	innerType CqlDataType
}

func (f FrozenType) Code() CqlTypeCode {
	return FROZEN
}

func (f FrozenType) IsAnyFrozen() bool {
	return true
}

func (f FrozenType) InnerType() CqlDataType {
	return f.innerType
}

func (f FrozenType) IsCollection() bool {
	return false
}

func (f FrozenType) DataType() datatype.DataType {
	return f.innerType.DataType()
}

func (f FrozenType) isCDataType() {}

func (f FrozenType) String() string {
	return fmt.Sprintf("frozen<%s>", f.innerType.String())
}

func NewFrozenType(inner CqlDataType) *FrozenType {
	return &FrozenType{innerType: inner}
}

// Unfrozen strips a frozen wrapper, if present.
func Unfrozen(c CqlDataType) CqlDataType {
	if f, ok := c.(*FrozenType); ok {
		return f.innerType
	}
	return c
}

// UnresolvedType marks a type the resolver could not map to a Cassandra
// column type. Construction never fails; the failure is deferred until the
// wire type is actually demanded through WireType. This keeps two-pass
// scenarios working, e.g. mutually referential user-defined types that only
// become resolvable once both are registered.
type UnresolvedType struct {
	goType string
	reason string
}

func NewUnresolvedType(goType string, reason string) UnresolvedType {
	return UnresolvedType{goType: goType, reason: reason}
}

func (u UnresolvedType) Code() CqlTypeCode {
	return UNRESOLVED
}

func (u UnresolvedType) GoType() string {
	return u.goType
}

func (u UnresolvedType) Reason() string {
	return u.reason
}

func (u UnresolvedType) IsAnyFrozen() bool {
	return false
}

func (u UnresolvedType) DataType() datatype.DataType {
	return nil
}

func (u UnresolvedType) isCDataType() {}

func (u UnresolvedType) String() string {
	return fmt.Sprintf("unresolved(%s)", u.goType)
}

func (u UnresolvedType) IsCollection() bool {
	return false
}

// WireType is the demand point for the native protocol representation of a
// descriptor. It fails with an actionable message when the descriptor, or any
// nested descriptor, is unresolved.
func WireType(c CqlDataType) (datatype.DataType, error) {
	if err := checkResolved(c); err != nil {
		return nil, err
	}
	dt := c.DataType()
	if dt == nil {
		return nil, fmt.Errorf("no wire type available for %s", c.String())
	}
	return dt, nil
}

func checkResolved(c CqlDataType) error {
	switch t := c.(type) {
	case UnresolvedType:
		return unresolvedError(t)
	case *ListType:
		return checkResolved(t.elementType)
	case *SetType:
		return checkResolved(t.elementType)
	case *MapType:
		if err := checkResolved(t.keyType); err != nil {
			return err
		}
		return checkResolved(t.valueType)
	case *TupleType:
		for _, ft := range t.fieldTypes {
			if err := checkResolved(ft); err != nil {
				return err
			}
		}
	case *UdtType:
		for i, ft := range t.fieldTypes {
			if err := checkResolved(ft); err != nil {
				return fmt.Errorf("field %s of user-defined type %s: %w", t.fieldNames[i], t.name, err)
			}
		}
	case *FrozenType:
		return checkResolved(t.innerType)
	}
	return nil
}

func unresolvedError(u UnresolvedType) error {
	msg := fmt.Sprintf("cannot resolve DataType for Go type %s", u.goType)
	if u.reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, u.reason)
	}
	return fmt.Errorf("%s; register a custom conversion or declare an explicit cqltype annotation", msg)
}
