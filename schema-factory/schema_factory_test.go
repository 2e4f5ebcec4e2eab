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

package schemaFactory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/codec"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/resolver"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
)

type geoPoint struct {
	Lat float64 `cql:"lat"`
	Lon float64 `cql:"lon"`
}

type venue struct {
	Name     string   `cql:"name"`
	Location geoPoint `cql:"location,frozen"`
}

type placeKey struct {
	Country string `cql:"country,pk=1"`
	City    string `cql:"city,pk=2"`
	PlaceID int64  `cql:"place_id,ck=1"`
}

type place struct {
	Key      placeKey          `cql:"key,key"`
	Venue    venue             `cql:"venue"`
	Tags     map[string]string `cql:"tags"`
	Capacity int32             `cql:"capacity"`
	Region   string            `cql:"region,static"`
}

func newFactory(t *testing.T) *SchemaFactory {
	t.Helper()
	mapping := schemaMapping.NewMappingContext(zap.NewNop())
	_, err := mapping.RegisterUdt("travel", "geo_point", geoPoint{})
	require.NoError(t, err)
	_, err = mapping.RegisterUdt("travel", "venue_info", venue{})
	require.NoError(t, err)
	_, err = mapping.RegisterTable("travel", "places", place{})
	require.NoError(t, err)
	res := resolver.NewColumnTypeResolver(mapping, codec.NewCustomConversions(), zap.NewNop())
	return NewSchemaFactory(mapping, res, zap.NewNop())
}

func TestCreateTableSpecification(t *testing.T) {
	factory := newFactory(t)
	spec, err := factory.CreateTableSpecification(place{})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS travel.places (\n"+
		"  country text,\n"+
		"  city text,\n"+
		"  place_id bigint,\n"+
		"  venue venue_info,\n"+
		"  tags map<text, text>,\n"+
		"  capacity int,\n"+
		"  region text STATIC,\n"+
		"  PRIMARY KEY ((country, city), place_id)\n"+
		");",
		spec.ToCql())
}

func TestCreateTableSpecificationOptions(t *testing.T) {
	factory := newFactory(t)
	factory.IfNotExists = false
	spec, err := factory.CreateTableSpecification(place{})
	require.NoError(t, err)
	spec.Options = []string{"CLUSTERING ORDER BY (place_id DESC)", "comment = 'venues'"}
	cql := spec.ToCql()
	assert.Contains(t, cql, "CREATE TABLE travel.places (")
	assert.Contains(t, cql, ") WITH CLUSTERING ORDER BY (place_id DESC) AND comment = 'venues';")
}

func TestCreateTableSpecificationKeyOrdering(t *testing.T) {
	factory := newFactory(t)
	spec, err := factory.CreateTableSpecification(place{})
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "city"}, columnNames(spec.PartitionKeys))
	assert.Equal(t, []string{"place_id"}, columnNames(spec.ClusteringKeys))
}

func TestCreateTableSpecificationWithoutPartitionKey(t *testing.T) {
	type seqKey struct {
		Seq int64 `cql:"seq,ck=1"`
	}
	type journal struct {
		Key  seqKey `cql:"key,key"`
		Body string `cql:"body"`
	}
	mapping := schemaMapping.NewMappingContext(zap.NewNop())
	_, err := mapping.RegisterTable("travel", "journal", journal{})
	require.NoError(t, err)
	res := resolver.NewColumnTypeResolver(mapping, codec.NewCustomConversions(), zap.NewNop())
	factory := NewSchemaFactory(mapping, res, zap.NewNop())

	_, err = factory.CreateTableSpecification(journal{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no partition key columns")
}

func TestCreateTableSpecificationUnresolvableColumn(t *testing.T) {
	type opaque struct{ X int }
	type badRow struct {
		ID   int64  `cql:"id,pk=1"`
		Data opaque `cql:"data"`
	}
	mapping := schemaMapping.NewMappingContext(zap.NewNop())
	_, err := mapping.RegisterTable("travel", "bad_rows", badRow{})
	require.NoError(t, err)
	res := resolver.NewColumnTypeResolver(mapping, codec.NewCustomConversions(), zap.NewNop())
	factory := NewSchemaFactory(mapping, res, zap.NewNop())

	_, err = factory.CreateTableSpecification(badRow{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot create DDL for entity badRow")
	assert.Contains(t, err.Error(), "register a custom conversion")
}

func TestCreateTableSpecificationWrongKind(t *testing.T) {
	factory := newFactory(t)
	_, err := factory.CreateTableSpecification(venue{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered with the expected mapping kind")
}

func TestCreateTypeSpecification(t *testing.T) {
	factory := newFactory(t)
	spec, err := factory.CreateTypeSpecification(venue{})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TYPE IF NOT EXISTS travel.venue_info (\n"+
		"  name text,\n"+
		"  location frozen<geo_point>\n"+
		");",
		spec.ToCql())
}

func TestCreateTypeSpecificationsForOrdersDependencies(t *testing.T) {
	factory := newFactory(t)
	specs, err := factory.CreateTypeSpecificationsFor(place{})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "geo_point", specs[0].Name)
	assert.Equal(t, "venue_info", specs[1].Name)
	assert.Contains(t, specs[1].ToCql(), "location frozen<geo_point>")
}

func TestCreateIndexSpecification(t *testing.T) {
	factory := newFactory(t)

	spec, err := factory.CreateIndexSpecification(place{}, "capacity", "places_by_capacity", IndexValues)
	require.NoError(t, err)
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS places_by_capacity ON travel.places (capacity);", spec.ToCql())

	spec, err = factory.CreateIndexSpecification(place{}, "tags", "", IndexKeys)
	require.NoError(t, err)
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS ON travel.places (KEYS(tags));", spec.ToCql())

	spec, err = factory.CreateIndexSpecification(place{}, "tags", "", IndexEntries)
	require.NoError(t, err)
	assert.Contains(t, spec.ToCql(), "ENTRIES(tags)")
}

func TestCreateIndexSpecificationKindErrors(t *testing.T) {
	factory := newFactory(t)

	_, err := factory.CreateIndexSpecification(place{}, "capacity", "", IndexKeys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a map column")

	_, err = factory.CreateIndexSpecification(place{}, "nope", "", IndexValues)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column 'nope'")
}

func columnNames(names []types.ColumnName) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, string(n))
	}
	return out
}
