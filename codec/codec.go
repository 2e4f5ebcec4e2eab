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

// Package codec bridges CqlDataType descriptors to the gocql marshal layer.
// It is the scalar codec registry the resolver consults, and the byte-level
// encoder/decoder the entity converter uses for container values.
package codec

import (
	"fmt"
	"math/big"
	"net"
	"reflect"
	"time"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/datastax/go-cassandra-native-protocol/primitive"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"gopkg.in/inf.v0"
)

const typeInfoCacheSize = 512

// typeInfoCache memoizes gocql.TypeInfo construction per descriptor and
// protocol version. Descriptors are immutable so cached infos never go stale;
// the LRU bound just keeps unbounded UDT registration churn in check.
var typeInfoCache *lru.Cache

func init() {
	cache, err := lru.New(typeInfoCacheSize)
	if err != nil {
		panic(err)
	}
	typeInfoCache = cache
}

// TypeInfoFor builds the gocql type info for a descriptor. Frozen wrappers
// only affect DDL so they are stripped here. Fails for descriptors containing
// unresolved types, with the same actionable message as types.WireType.
func TypeInfoFor(dt types.CqlDataType, version primitive.ProtocolVersion) (gocql.TypeInfo, error) {
	if _, err := types.WireType(dt); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d|%s", version, cacheKey(dt))
	if cached, ok := typeInfoCache.Get(key); ok {
		return cached.(gocql.TypeInfo), nil
	}
	info, err := buildTypeInfo(dt, version)
	if err != nil {
		return nil, err
	}
	typeInfoCache.Add(key, info)
	return info, nil
}

func buildTypeInfo(dt types.CqlDataType, version primitive.ProtocolVersion) (gocql.TypeInfo, error) {
	proto := byte(version)
	switch t := types.Unfrozen(dt).(type) {
	case types.ScalarType:
		gt, err := gocqlTypeForCode(t.Code())
		if err != nil {
			return nil, err
		}
		return gocql.NewNativeType(proto, gt, ""), nil
	case *types.ListType:
		elem, err := buildTypeInfo(t.ElementType(), version)
		if err != nil {
			return nil, err
		}
		return gocql.CollectionType{
			NativeType: gocql.NewNativeType(proto, gocql.TypeList, ""),
			Elem:       elem,
		}, nil
	case *types.SetType:
		elem, err := buildTypeInfo(t.ElementType(), version)
		if err != nil {
			return nil, err
		}
		return gocql.CollectionType{
			NativeType: gocql.NewNativeType(proto, gocql.TypeSet, ""),
			Elem:       elem,
		}, nil
	case *types.MapType:
		key, err := buildTypeInfo(t.KeyType(), version)
		if err != nil {
			return nil, err
		}
		elem, err := buildTypeInfo(t.ValueType(), version)
		if err != nil {
			return nil, err
		}
		return gocql.CollectionType{
			NativeType: gocql.NewNativeType(proto, gocql.TypeMap, ""),
			Key:        key,
			Elem:       elem,
		}, nil
	case *types.TupleType:
		var elems []gocql.TypeInfo
		for _, ft := range t.FieldTypes() {
			elem, err := buildTypeInfo(ft, version)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		return gocql.TupleTypeInfo{
			NativeType: gocql.NewNativeType(proto, gocql.TypeTuple, ""),
			Elems:      elems,
		}, nil
	case *types.UdtType:
		var elements []gocql.UDTField
		fieldTypes := t.FieldTypes()
		for i, name := range t.FieldNames() {
			ft, err := buildTypeInfo(fieldTypes[i], version)
			if err != nil {
				return nil, err
			}
			elements = append(elements, gocql.UDTField{Name: name, Type: ft})
		}
		return gocql.UDTTypeInfo{
			NativeType: gocql.NewNativeType(proto, gocql.TypeUDT, ""),
			KeySpace:   string(t.Keyspace()),
			Name:       t.Name(),
			Elements:   elements,
		}, nil
	default:
		return nil, fmt.Errorf("no codec for type %s", dt.String())
	}
}

// cacheKey disambiguates descriptors whose String form is not unique, e.g.
// same-named user-defined types in different keyspaces.
func cacheKey(dt types.CqlDataType) string {
	if u, ok := types.Unfrozen(dt).(*types.UdtType); ok {
		inner := ""
		for i, name := range u.FieldNames() {
			inner += fmt.Sprintf("%s:%s;", name, cacheKey(u.FieldTypes()[i]))
		}
		return fmt.Sprintf("udt:%s.%s<%s>", u.Keyspace(), u.Name(), inner)
	}
	return dt.String()
}

func gocqlTypeForCode(code types.CqlTypeCode) (gocql.Type, error) {
	switch code {
	case types.ASCII:
		return gocql.TypeAscii, nil
	case types.VARCHAR, types.TEXT:
		return gocql.TypeVarchar, nil
	case types.BIGINT:
		return gocql.TypeBigInt, nil
	case types.BLOB:
		return gocql.TypeBlob, nil
	case types.BOOLEAN:
		return gocql.TypeBoolean, nil
	case types.COUNTER:
		return gocql.TypeCounter, nil
	case types.DATE:
		return gocql.TypeDate, nil
	case types.DECIMAL:
		return gocql.TypeDecimal, nil
	case types.DOUBLE:
		return gocql.TypeDouble, nil
	case types.FLOAT:
		return gocql.TypeFloat, nil
	case types.INET:
		return gocql.TypeInet, nil
	case types.INT:
		return gocql.TypeInt, nil
	case types.SMALLINT:
		return gocql.TypeSmallInt, nil
	case types.TIME:
		return gocql.TypeTime, nil
	case types.TIMESTAMP:
		return gocql.TypeTimestamp, nil
	case types.TIMEUUID:
		return gocql.TypeTimeUUID, nil
	case types.TINYINT:
		return gocql.TypeTinyInt, nil
	case types.UUID:
		return gocql.TypeUUID, nil
	case types.VARINT:
		return gocql.TypeVarint, nil
	default:
		return 0, fmt.Errorf("no scalar codec for type code %d", code)
	}
}

// Encode serializes a Go value to Cassandra wire bytes for the given
// descriptor.
func Encode(dt types.CqlDataType, version primitive.ProtocolVersion, value any) (types.RawValue, error) {
	info, err := TypeInfoFor(dt, version)
	if err != nil {
		return nil, err
	}
	raw, err := gocql.Marshal(info, value)
	if err != nil {
		return nil, fmt.Errorf("error encoding %T as %s: %w", value, dt.String(), err)
	}
	return raw, nil
}

// Decode deserializes wire bytes into the destination pointer.
func Decode(dt types.CqlDataType, version primitive.ProtocolVersion, raw types.RawValue, dest any) error {
	info, err := TypeInfoFor(dt, version)
	if err != nil {
		return err
	}
	if err := gocql.Unmarshal(info, raw, dest); err != nil {
		return fmt.Errorf("error decoding %s into %T: %w", dt.String(), dest, err)
	}
	return nil
}

// DecodeValue deserializes wire bytes into the default Go representation for
// the descriptor, e.g. int64 for bigint or map[string]interface{} for a UDT.
func DecodeValue(dt types.CqlDataType, version primitive.ProtocolVersion, raw types.RawValue) (types.GoValue, error) {
	if raw == nil {
		return nil, nil
	}
	goType, err := GoTypeFor(dt)
	if err != nil {
		return nil, err
	}
	dest := reflect.New(goType)
	if err := Decode(dt, version, raw, dest.Interface()); err != nil {
		return nil, err
	}
	return dest.Elem().Interface(), nil
}

var (
	bytesType    = reflect.TypeOf([]byte(nil))
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	gocqlUUIDTyp = reflect.TypeOf(gocql.UUID{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	ipType       = reflect.TypeOf(net.IP(nil))
	bigIntType   = reflect.TypeOf((*big.Int)(nil))
	infDecType   = reflect.TypeOf((*inf.Dec)(nil))
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
)

// GoTypeFor returns the default Go type a value of the descriptor decodes
// into when the caller has no target type of its own.
func GoTypeFor(dt types.CqlDataType) (reflect.Type, error) {
	switch t := types.Unfrozen(dt).(type) {
	case types.ScalarType:
		return goScalarType(t.Code())
	case *types.ListType:
		elem, err := GoTypeFor(t.ElementType())
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case *types.SetType:
		elem, err := GoTypeFor(t.ElementType())
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case *types.MapType:
		key, err := GoTypeFor(t.KeyType())
		if err != nil {
			return nil, err
		}
		value, err := GoTypeFor(t.ValueType())
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(key, value), nil
	case *types.TupleType:
		return reflect.SliceOf(anyType), nil
	case *types.UdtType:
		return reflect.MapOf(reflect.TypeOf(""), anyType), nil
	default:
		return nil, fmt.Errorf("no default Go type for %s", dt.String())
	}
}

func goScalarType(code types.CqlTypeCode) (reflect.Type, error) {
	switch code {
	case types.ASCII, types.VARCHAR, types.TEXT:
		return reflect.TypeOf(""), nil
	case types.BIGINT, types.COUNTER:
		return reflect.TypeOf(int64(0)), nil
	case types.BLOB:
		return bytesType, nil
	case types.BOOLEAN:
		return reflect.TypeOf(false), nil
	case types.DATE, types.TIMESTAMP:
		return timeType, nil
	case types.DECIMAL:
		return infDecType, nil
	case types.DOUBLE:
		return reflect.TypeOf(float64(0)), nil
	case types.FLOAT:
		return reflect.TypeOf(float32(0)), nil
	case types.INET:
		return ipType, nil
	case types.INT:
		return reflect.TypeOf(int32(0)), nil
	case types.SMALLINT:
		return reflect.TypeOf(int16(0)), nil
	case types.TIME:
		return durationType, nil
	case types.TIMEUUID, types.UUID:
		return gocqlUUIDTyp, nil
	case types.TINYINT:
		return reflect.TypeOf(int8(0)), nil
	case types.VARINT:
		return bigIntType, nil
	default:
		return nil, fmt.Errorf("no default Go type for scalar code %d", code)
	}
}

// CqlTypeForGoType is the scalar lookup table used by the resolver: the
// Cassandra type a plain Go type maps to when no conversion or annotation
// overrides it. Named types fall back to their underlying kind, so e.g. a
// `type Email string` still resolves to text.
func CqlTypeForGoType(t reflect.Type) (types.CqlDataType, bool) {
	switch t {
	case bytesType:
		return types.TypeBlob, true
	case timeType:
		return types.TypeTimestamp, true
	case durationType:
		return types.TypeTime, true
	case gocqlUUIDTyp, uuidType:
		return types.TypeUuid, true
	case ipType:
		return types.TypeInet, true
	case bigIntType:
		return types.TypeVarint, true
	case infDecType:
		return types.TypeDecimal, true
	}
	switch t.Kind() {
	case reflect.String:
		return types.TypeText, true
	case reflect.Bool:
		return types.TypeBoolean, true
	case reflect.Int, reflect.Int64:
		return types.TypeBigint, true
	case reflect.Int32:
		return types.TypeInt, true
	case reflect.Int16:
		return types.TypeSmallint, true
	case reflect.Int8:
		return types.TypeTinyint, true
	case reflect.Float64:
		return types.TypeDouble, true
	case reflect.Float32:
		return types.TypeFloat, true
	default:
		return nil, false
	}
}
