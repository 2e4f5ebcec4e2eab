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

package schemaMapping

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

type orderKey struct {
	TenantID string `cql:"tenant_id,pk=1"`
	OrderID  int64  `cql:"order_id,ck=1"`
}

type order struct {
	Key      orderKey          `cql:"key,key"`
	Status   string            `cql:"status"`
	Tags     []string          `cql:"tags,set"`
	Internal string            `cql:"-"`
	Metadata map[string]string `cql:"metadata" cqltype:"map<text, text>"`
	Note     string
}

func TestRegisterTableScansTags(t *testing.T) {
	m := NewMappingContext(zap.NewNop())
	config, err := m.RegisterTable("shop", "orders", order{})
	require.NoError(t, err)

	assert.Equal(t, KindTable, config.Kind)
	assert.Equal(t, types.Keyspace("shop"), config.Keyspace)
	assert.Equal(t, types.TableName("orders"), config.Table)

	key, err := config.GetProperty("key")
	require.NoError(t, err)
	assert.True(t, key.IsKey)

	tags, err := config.GetProperty("tags")
	require.NoError(t, err)
	assert.True(t, tags.AsSet)

	metadata, err := config.GetProperty("metadata")
	require.NoError(t, err)
	assert.Equal(t, "map<text, text>", metadata.TypeAnnotation)

	// untagged fields default to their snake-cased name
	note, err := config.GetProperty("note")
	require.NoError(t, err)
	assert.Equal(t, "Note", note.Name)

	_, err = config.GetProperty("internal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column 'internal'")
}

func TestRegisterTableRegistersKeyStruct(t *testing.T) {
	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterTable("shop", "orders", &order{})
	require.NoError(t, err)

	nested, ok := m.EntityFor(reflect.TypeOf(orderKey{}))
	require.True(t, ok)
	assert.Equal(t, KindKey, nested.Kind)

	pks := nested.PrimaryKeys()
	require.Len(t, pks, 2)
	assert.Equal(t, types.ColumnName("tenant_id"), pks[0].Column)
	assert.Equal(t, types.KeyTypePartition, pks[0].KeyType)
	assert.Equal(t, types.ColumnName("order_id"), pks[1].Column)
	assert.Equal(t, types.KeyTypeClustering, pks[1].KeyType)
}

func TestRegisterTableWithoutPartitionKey(t *testing.T) {
	type keyless struct {
		Name string `cql:"name"`
	}
	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterTable("shop", "keyless", keyless{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no partition key columns")
}

func TestRegisterTableDuplicateColumn(t *testing.T) {
	type dup struct {
		A string `cql:"same,pk=1"`
		B string `cql:"same"`
	}
	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterTable("shop", "dup", dup{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares column 'same' more than once")
}

func TestRegisterTableBadTagOption(t *testing.T) {
	type bad struct {
		A string `cql:"a,pk=1,bogus"`
	}
	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterTable("shop", "bad", bad{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cql tag option 'bogus'")
}

func TestRegisterTableBadPrecedence(t *testing.T) {
	type bad struct {
		A string `cql:"a,pk=zero"`
	}
	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterTable("shop", "bad", bad{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key precedence must be a positive integer")
}

func TestPrimaryKeyOrdering(t *testing.T) {
	type wide struct {
		C string `cql:"c,ck=2"`
		B string `cql:"b,ck=1"`
		P string `cql:"p,pk=1"`
		Q string `cql:"q,pk=2"`
		V string `cql:"v"`
	}
	m := NewMappingContext(zap.NewNop())
	config, err := m.RegisterTable("shop", "wide", wide{})
	require.NoError(t, err)

	var got []types.ColumnName
	for _, p := range config.PrimaryKeys() {
		got = append(got, p.Column)
	}
	assert.Equal(t, []types.ColumnName{"p", "q", "b", "c"}, got)
}

func TestRegisterUdt(t *testing.T) {
	type address struct {
		Street string `cql:"street"`
		Zip    int32  `cql:"zip"`
	}
	m := NewMappingContext(zap.NewNop())
	config, err := m.RegisterUdt("shop", "Address", address{})
	require.NoError(t, err)
	assert.Equal(t, KindUdt, config.Kind)

	// lookup is case folded like CQL identifiers
	byName, ok := m.UdtEntity("address")
	require.True(t, ok)
	assert.Equal(t, config, byName)
}

func TestRegisterUdtRejectsKeys(t *testing.T) {
	type bad struct {
		ID string `cql:"id,pk=1"`
	}
	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterUdt("shop", "bad", bad{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot declare key or static field")
}

func TestRegisterTuple(t *testing.T) {
	type coordinates struct {
		Lat float64 `cql:"lat"`
		Lon float64 `cql:"lon"`
	}
	m := NewMappingContext(zap.NewNop())
	config, err := m.RegisterTuple(coordinates{})
	require.NoError(t, err)
	require.Len(t, config.Properties, 2)
	assert.Equal(t, 0, config.Properties[0].Ordinal)
	assert.Equal(t, 1, config.Properties[1].Ordinal)
}

type orderStatus string

func TestEnumRoundTrip(t *testing.T) {
	m := NewMappingContext(zap.NewNop())
	require.NoError(t, m.RegisterEnum(orderStatus(""), "pending", "shipped", "delivered"))

	name, err := m.EnumName(reflect.ValueOf(orderStatus("shipped")))
	require.NoError(t, err)
	assert.Equal(t, "shipped", name)

	back, err := m.EnumValue(reflect.TypeOf(orderStatus("")), "shipped")
	require.NoError(t, err)
	assert.Equal(t, orderStatus("shipped"), back.Interface())

	// ordinal fallback for data written by ordinal-persisting systems
	back, err = m.EnumValue(reflect.TypeOf(orderStatus("")), "2")
	require.NoError(t, err)
	assert.Equal(t, orderStatus("delivered"), back.Interface())
}

type priority int

func TestIntEnum(t *testing.T) {
	m := NewMappingContext(zap.NewNop())
	require.NoError(t, m.RegisterEnum(priority(0), "low", "high"))

	name, err := m.EnumName(reflect.ValueOf(priority(1)))
	require.NoError(t, err)
	assert.Equal(t, "high", name)

	back, err := m.EnumValue(reflect.TypeOf(priority(0)), "high")
	require.NoError(t, err)
	assert.Equal(t, priority(1), back.Interface())
}

func TestEnumErrors(t *testing.T) {
	m := NewMappingContext(zap.NewNop())
	require.NoError(t, m.RegisterEnum(orderStatus(""), "pending"))

	_, err := m.EnumName(reflect.ValueOf(orderStatus("unknown")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a declared name")

	_, err = m.EnumValue(reflect.TypeOf(orderStatus("")), "9")
	require.Error(t, err)

	err = m.RegisterEnum("", "anonymous")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a named type")

	err = m.RegisterEnum(priority(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least one name")
}

func TestDeclaredSchema(t *testing.T) {
	yaml := `
keyspace: shop
types:
  - name: address
    fields:
      - name: street
        type: text
      - name: zip
        type: int
  - name: person
    fields:
      - name: home
        type: frozen<address>
tables:
  - name: orders
    columns:
      - name: metadata
        type: map<text, frozen<list<int>>>
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	m := NewMappingContext(zap.NewNop())
	_, err := m.RegisterTable("shop", "orders", order{})
	require.NoError(t, err)

	schema, err := LoadDeclaredSchema(path)
	require.NoError(t, err)
	require.NoError(t, m.ApplyDeclaredSchema(schema))

	address, ok := m.DeclaredUdt("address")
	require.True(t, ok)
	assert.Equal(t, "address", address.Name())

	person, ok := m.DeclaredUdt("person")
	require.True(t, ok)
	home, ok := person.FieldType("home")
	require.True(t, ok)
	assert.Equal(t, "frozen<address>", home.String())

	config, _ := m.EntityFor(reflect.TypeOf(order{}))
	metadata, err := config.GetProperty("metadata")
	require.NoError(t, err)
	require.NotNil(t, metadata.DeclaredType)
	assert.Equal(t, "map<text, frozen<list<int>>>", metadata.DeclaredType.String())
}

func TestDeclaredSchemaMissingKeyspace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables: []"), 0o644))
	_, err := LoadDeclaredSchema(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a keyspace")
}

func TestColumnNameForField(t *testing.T) {
	type sample struct {
		UserName string `cql:"user_name"`
		Plain    string
		Skipped  string `cql:"-"`
	}
	st := reflect.TypeOf(sample{})
	assert.Equal(t, "user_name", ColumnNameForField(st.Field(0)))
	assert.Equal(t, "plain", ColumnNameForField(st.Field(1)))
	assert.Equal(t, "-", ColumnNameForField(st.Field(2)))
}
