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

package resolver

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/codec"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
)

func newTestResolver(t *testing.T) (*ColumnTypeResolver, *schemaMapping.MappingContext) {
	t.Helper()
	mapping := schemaMapping.NewMappingContext(zap.NewNop())
	r := NewColumnTypeResolver(mapping, codec.NewCustomConversions(), zap.NewNop())
	return r, mapping
}

func TestResolveTypeScalars(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name   string
		goType reflect.Type
		want   string
	}{
		{name: "string", goType: reflect.TypeOf(""), want: "text"},
		{name: "int64", goType: reflect.TypeOf(int64(0)), want: "bigint"},
		{name: "int32", goType: reflect.TypeOf(int32(0)), want: "int"},
		{name: "bool", goType: reflect.TypeOf(false), want: "boolean"},
		{name: "bytes", goType: reflect.TypeOf([]byte(nil)), want: "blob"},
		{name: "time", goType: reflect.TypeOf(time.Time{}), want: "timestamp"},
		{name: "pointer", goType: reflect.TypeOf((*string)(nil)), want: "text"},
		{name: "uuid via conversion", goType: reflect.TypeOf(uuid.UUID{}), want: "uuid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dt, err := r.ResolveType(tc.goType, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dt.String())
		})
	}
}

func TestResolveTypeCollections(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name   string
		goType reflect.Type
		want   string
	}{
		{name: "slice", goType: reflect.TypeOf([]string(nil)), want: "list<text>"},
		{name: "map", goType: reflect.TypeOf(map[string]int32(nil)), want: "map<text, int>"},
		{name: "set idiom", goType: reflect.TypeOf(map[string]struct{}(nil)), want: "set<text>"},
		{name: "nested slices auto freeze", goType: reflect.TypeOf([][]int32(nil)), want: "list<frozen<list<int>>>"},
		{name: "map of slices auto freezes values", goType: reflect.TypeOf(map[string][]int32(nil)), want: "map<text, frozen<list<int>>>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dt, err := r.ResolveType(tc.goType, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dt.String())
		})
	}
}

func TestResolveTypeDeterministic(t *testing.T) {
	r, _ := newTestResolver(t)
	goType := reflect.TypeOf(map[string][][]byte(nil))
	first, err := r.ResolveType(goType, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.ResolveType(goType, nil)
		require.NoError(t, err)
		assert.Equal(t, first.String(), again.String())
	}
}

func TestResolveTypeFrozenIndicator(t *testing.T) {
	r, _ := newTestResolver(t)
	ind := types.NewFrozenIndicator(true)
	dt, err := r.ResolveType(reflect.TypeOf([]string(nil)), ind)
	require.NoError(t, err)
	assert.Equal(t, "frozen<list<text>>", dt.String())
}

func TestResolveTypeUnknownStructDefersFailure(t *testing.T) {
	type unmapped struct{ X int }
	r, _ := newTestResolver(t)

	dt, err := r.ResolveType(reflect.TypeOf(unmapped{}), nil)
	require.NoError(t, err)
	assert.Equal(t, types.UNRESOLVED, dt.Code())

	_, err = types.WireType(dt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register a custom conversion or declare an explicit cqltype annotation")
}

type resolverEnum string

func TestResolveEnumAsText(t *testing.T) {
	r, mapping := newTestResolver(t)
	require.NoError(t, mapping.RegisterEnum(resolverEnum(""), "a", "b"))

	dt, err := r.ResolveType(reflect.TypeOf(resolverEnum("")), nil)
	require.NoError(t, err)
	assert.Equal(t, types.TypeText, dt)

	dt, err = r.ResolveType(reflect.TypeOf([]resolverEnum(nil)), nil)
	require.NoError(t, err)
	assert.Equal(t, "list<text>", dt.String())
}

type addressUdt struct {
	Street string `cql:"street"`
	Zip    int32  `cql:"zip"`
}

func TestResolveRegisteredUdt(t *testing.T) {
	r, mapping := newTestResolver(t)
	_, err := mapping.RegisterUdt("shop", "address", addressUdt{})
	require.NoError(t, err)

	dt, err := r.ResolveType(reflect.TypeOf(addressUdt{}), nil)
	require.NoError(t, err)
	udt, ok := types.Unfrozen(dt).(*types.UdtType)
	require.True(t, ok)
	assert.Equal(t, "address", udt.Name())
	street, ok := udt.FieldType("street")
	require.True(t, ok)
	assert.Equal(t, "text", street.String())

	// UDTs inside collections are frozen automatically
	dt, err = r.ResolveType(reflect.TypeOf([]addressUdt(nil)), nil)
	require.NoError(t, err)
	assert.Equal(t, "list<frozen<address>>", dt.String())
}

type pointTuple struct {
	Lat float64 `cql:"lat"`
	Lon float64 `cql:"lon"`
}

func TestResolveRegisteredTuple(t *testing.T) {
	r, mapping := newTestResolver(t)
	_, err := mapping.RegisterTuple(pointTuple{})
	require.NoError(t, err)

	dt, err := r.ResolveType(reflect.TypeOf(pointTuple{}), nil)
	require.NoError(t, err)
	assert.Equal(t, "tuple<double, double>", dt.String())
}

func TestResolveProperty(t *testing.T) {
	type table struct {
		ID       string            `cql:"id,pk=1"`
		Tags     []string          `cql:"tags,set"`
		Counts   []int32           `cql:"counts,frozen"`
		Metadata map[string]string `cql:"metadata" cqltype:"map<text, frozen<list<int>>>"`
	}
	r, mapping := newTestResolver(t)
	config, err := mapping.RegisterTable("shop", "things", table{})
	require.NoError(t, err)

	tests := []struct {
		column string
		want   string
	}{
		{column: "id", want: "text"},
		{column: "tags", want: "set<text>"},
		{column: "counts", want: "frozen<list<int>>"},
		{column: "metadata", want: "map<text, frozen<list<int>>>"},
	}
	for _, tc := range tests {
		t.Run(tc.column, func(t *testing.T) {
			p, err := config.GetProperty(types.ColumnName(tc.column))
			require.NoError(t, err)
			dt, err := r.ResolveProperty(config, p)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dt.String())
		})
	}
}

func TestResolvePropertyAnnotationShapeMismatch(t *testing.T) {
	type table struct {
		ID   string `cql:"id,pk=1"`
		Tags string `cql:"tags" cqltype:"list<text>"`
	}
	r, mapping := newTestResolver(t)
	config, err := mapping.RegisterTable("shop", "bad", table{})
	require.NoError(t, err)

	p, err := config.GetProperty("tags")
	require.NoError(t, err)
	_, err = r.ResolveProperty(config, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a collection")
}

func TestResolvePropertyAnnotationArgCount(t *testing.T) {
	type table struct {
		ID   string            `cql:"id,pk=1"`
		Meta map[string]string `cql:"meta" cqltype:"map<text>"`
	}
	r, mapping := newTestResolver(t)
	config, err := mapping.RegisterTable("shop", "bad", table{})
	require.NoError(t, err)

	p, err := config.GetProperty("meta")
	require.NoError(t, err)
	_, err = r.ResolveProperty(config, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 2 types but found 1")
}

func TestResolvePropertyUnregisteredUdtAnnotation(t *testing.T) {
	type table struct {
		ID   string `cql:"id,pk=1"`
		Home string `cql:"home" cqltype:"frozen<address>"`
	}
	r, mapping := newTestResolver(t)
	config, err := mapping.RegisterTable("shop", "bad", table{})
	require.NoError(t, err)

	p, err := config.GetProperty("home")
	require.NoError(t, err)
	_, err = r.ResolveProperty(config, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown data type name: 'address'")
}

func TestResolvePropertySetOptionFreezing(t *testing.T) {
	type table struct {
		ID     string       `cql:"id,pk=1"`
		Tags   []string     `cql:"tags,set,frozen"`
		Places []addressUdt `cql:"places,set"`
	}
	r, mapping := newTestResolver(t)
	_, err := mapping.RegisterUdt("shop", "address", addressUdt{})
	require.NoError(t, err)
	config, err := mapping.RegisterTable("shop", "things", table{})
	require.NoError(t, err)

	p, err := config.GetProperty("tags")
	require.NoError(t, err)
	dt, err := r.ResolveProperty(config, p)
	require.NoError(t, err)
	assert.Equal(t, "frozen<set<text>>", dt.String())

	// frozen elements do not freeze the set itself
	p, err = config.GetProperty("places")
	require.NoError(t, err)
	dt, err = r.ResolveProperty(config, p)
	require.NoError(t, err)
	assert.Equal(t, "set<frozen<address>>", dt.String())
}

func TestResolvePropertySetOptionRequiresSlice(t *testing.T) {
	type table struct {
		ID   string `cql:"id,pk=1"`
		Oops string `cql:"oops,set"`
	}
	r, mapping := newTestResolver(t)
	config, err := mapping.RegisterTable("shop", "bad", table{})
	require.NoError(t, err)

	p, err := config.GetProperty("oops")
	require.NoError(t, err)
	_, err = r.ResolveProperty(config, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set option but is not slice mapped")
}

func TestResolveValue(t *testing.T) {
	r, _ := newTestResolver(t)

	dt, err := r.ResolveValue("hello")
	require.NoError(t, err)
	assert.Equal(t, types.TypeText, dt)

	dt, err = r.ResolveValue([]int64{1})
	require.NoError(t, err)
	assert.Equal(t, "list<bigint>", dt.String())

	_, err = r.ResolveValue(nil)
	require.Error(t, err)
}

// Containers of interface{} carry no static element type; the first element
// decides, and the descriptor must reach a wire type.
func TestResolveValueFirstElementInference(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{name: "list from first element", value: []interface{}{int64(7)}, want: "list<bigint>"},
		{name: "nested list freezes inner", value: []interface{}{[]interface{}{int32(1)}}, want: "list<frozen<list<int>>>"},
		{name: "map from first entry", value: map[string]interface{}{"a": int64(1)}, want: "map<text, bigint>"},
		{name: "set idiom", value: map[interface{}]struct{}{"a": {}}, want: "set<text>"},
		{name: "pointer element", value: []interface{}{new(string)}, want: "list<text>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dt, err := r.ResolveValue(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dt.String())
			_, err = types.WireType(dt)
			require.NoError(t, err)
		})
	}
}

func TestResolveValueEmptyContainerDefaults(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{name: "empty interface list", value: []interface{}{}, want: "list<text>"},
		{name: "empty interface map", value: map[interface{}]interface{}{}, want: "map<text, text>"},
		{name: "empty interface set", value: map[interface{}]struct{}{}, want: "set<text>"},
		{name: "empty typed list keeps static type", value: []int32{}, want: "list<int>"},
		{name: "empty typed map keeps static types", value: map[string]int64{}, want: "map<text, bigint>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dt, err := r.ResolveValue(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dt.String())
		})
	}
}

func TestResolveValueNilElement(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.ResolveValue([]interface{}{nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil value")
}

func TestResolveDepthGuard(t *testing.T) {
	type node struct {
		Children []map[string][]map[string][][][]string
	}
	r, _ := newTestResolver(t)
	// deep but bounded nesting resolves fine
	_, err := r.ResolveType(reflect.TypeOf(node{}.Children), nil)
	require.NoError(t, err)
}
