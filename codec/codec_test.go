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

package codec

import (
	"reflect"
	"testing"
	"time"

	"github.com/datastax/go-cassandra-native-protocol/primitive"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/utilities"
)

const testVersion = primitive.ProtocolVersion4

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		dt    types.CqlDataType
		value any
	}{
		{name: "text", dt: types.TypeText, value: "hello"},
		{name: "bigint", dt: types.TypeBigint, value: int64(42)},
		{name: "int", dt: types.TypeInt, value: int32(-7)},
		{name: "boolean", dt: types.TypeBoolean, value: true},
		{name: "double", dt: types.TypeDouble, value: 3.5},
		{name: "blob", dt: types.TypeBlob, value: []byte{0x01, 0x02}},
		{name: "list of int", dt: utilities.ParseCqlTypeOrDie("list<int>"), value: []int32{1, 2, 3}},
		{name: "set of text", dt: utilities.ParseCqlTypeOrDie("set<text>"), value: []string{"a", "b"}},
		{name: "map", dt: utilities.ParseCqlTypeOrDie("map<text, int>"), value: map[string]int32{"a": 1}},
		{name: "frozen list", dt: utilities.ParseCqlTypeOrDie("frozen<list<int>>"), value: []int32{4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.dt, testVersion, tc.value)
			require.NoError(t, err)

			dest := reflect.New(reflect.TypeOf(tc.value))
			require.NoError(t, Decode(tc.dt, testVersion, raw, dest.Interface()))
			assert.Equal(t, tc.value, dest.Elem().Interface())
		})
	}
}

func TestDecodeValueDefaults(t *testing.T) {
	raw, err := Encode(types.TypeBigint, testVersion, int64(99))
	require.NoError(t, err)
	decoded, err := DecodeValue(types.TypeBigint, testVersion, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(99), decoded)

	listType := utilities.ParseCqlTypeOrDie("list<text>")
	raw, err = Encode(listType, testVersion, []string{"x", "y"})
	require.NoError(t, err)
	decoded, err = DecodeValue(listType, testVersion, raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, decoded)
}

func TestDecodeValueNil(t *testing.T) {
	decoded, err := DecodeValue(types.TypeText, testVersion, nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestEncodeUnresolvedFails(t *testing.T) {
	unresolved := types.NewUnresolvedType("mypkg.Widget", "no mapping registered")
	_, err := Encode(types.NewListType(unresolved), testVersion, []any{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot resolve DataType for Go type mypkg.Widget")
}

func TestTypeInfoForUdt(t *testing.T) {
	udt, err := types.NewUdtType("ks", "address", []string{"street", "zip"}, []types.CqlDataType{types.TypeText, types.TypeInt})
	require.NoError(t, err)

	info, err := TypeInfoFor(udt, testVersion)
	require.NoError(t, err)
	udtInfo, ok := info.(gocql.UDTTypeInfo)
	require.True(t, ok)
	assert.Equal(t, "ks", udtInfo.KeySpace)
	assert.Equal(t, "address", udtInfo.Name)
	require.Len(t, udtInfo.Elements, 2)
	assert.Equal(t, "street", udtInfo.Elements[0].Name)
}

func TestTypeInfoForCached(t *testing.T) {
	dt := utilities.ParseCqlTypeOrDie("map<text, frozen<list<int>>>")
	first, err := TypeInfoFor(dt, testVersion)
	require.NoError(t, err)
	second, err := TypeInfoFor(dt, testVersion)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGoTypeFor(t *testing.T) {
	tests := []struct {
		name string
		dt   types.CqlDataType
		want reflect.Type
	}{
		{name: "text", dt: types.TypeText, want: reflect.TypeOf("")},
		{name: "bigint", dt: types.TypeBigint, want: reflect.TypeOf(int64(0))},
		{name: "timestamp", dt: types.TypeTimestamp, want: reflect.TypeOf(time.Time{})},
		{name: "uuid", dt: types.TypeUuid, want: reflect.TypeOf(gocql.UUID{})},
		{name: "list", dt: utilities.ParseCqlTypeOrDie("list<int>"), want: reflect.TypeOf([]int32(nil))},
		{name: "map", dt: utilities.ParseCqlTypeOrDie("map<text, bigint>"), want: reflect.TypeOf(map[string]int64(nil))},
		{name: "tuple", dt: types.NewTupleType(types.TypeText, types.TypeInt), want: reflect.TypeOf([]any(nil))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GoTypeFor(tc.dt)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCqlTypeForGoType(t *testing.T) {
	type email string

	tests := []struct {
		name   string
		goType reflect.Type
		want   types.CqlDataType
		ok     bool
	}{
		{name: "string", goType: reflect.TypeOf(""), want: types.TypeText, ok: true},
		{name: "named string", goType: reflect.TypeOf(email("")), want: types.TypeText, ok: true},
		{name: "int", goType: reflect.TypeOf(int(0)), want: types.TypeBigint, ok: true},
		{name: "int32", goType: reflect.TypeOf(int32(0)), want: types.TypeInt, ok: true},
		{name: "bytes", goType: reflect.TypeOf([]byte(nil)), want: types.TypeBlob, ok: true},
		{name: "time", goType: reflect.TypeOf(time.Time{}), want: types.TypeTimestamp, ok: true},
		{name: "uuid", goType: reflect.TypeOf(uuid.UUID{}), want: types.TypeUuid, ok: true},
		{name: "struct", goType: reflect.TypeOf(struct{ X int }{}), want: nil, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CqlTypeForGoType(tc.goType)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestCustomConversionsDefaultUuid(t *testing.T) {
	conversions := NewCustomConversions()
	id := uuid.MustParse("5c0b4a5f-0f8a-4ab8-9f41-1d2c6a7e94b1")

	target, ok := conversions.WriteTarget(reflect.TypeOf(id))
	require.True(t, ok)
	assert.Equal(t, types.TypeUuid, target)

	converted, dt, applied, err := conversions.ConvertToCql(id)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, types.TypeUuid, dt)
	assert.Equal(t, gocql.UUID(id), converted)

	back, applied, err := conversions.ConvertFromCql(reflect.TypeOf(id), gocql.UUID(id))
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, id, back)
}

func TestCustomConversionsRegister(t *testing.T) {
	type money struct{ cents int64 }

	conversions := NewCustomConversions()
	conversions.Register(Conversion{
		GoType:  reflect.TypeOf(money{}),
		CqlType: types.TypeBigint,
		ToCql:   func(v any) (any, error) { return v.(money).cents, nil },
		FromCql: func(v any) (any, error) { return money{cents: v.(int64)}, nil },
	})

	converted, dt, applied, err := conversions.ConvertToCql(money{cents: 150})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, types.TypeBigint, dt)
	assert.Equal(t, int64(150), converted)

	back, applied, err := conversions.ConvertFromCql(reflect.TypeOf(money{}), int64(150))
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, money{cents: 150}, back)
}

func TestCustomConversionsPassThrough(t *testing.T) {
	conversions := NewCustomConversions()
	value, dt, applied, err := conversions.ConvertToCql("plain")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, dt)
	assert.Equal(t, "plain", value)
}
