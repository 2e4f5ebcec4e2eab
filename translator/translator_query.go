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

package translator

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/conversion"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	schemaMapping "github.com/cassandra-ecosystem/cassandra-object-mapper/schema-mapping"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/utilities"
)

// QueryMapper generates SELECT and INSERT statements for mapped entities.
type QueryMapper struct {
	*Translator
}

func NewQueryMapper(converter *conversion.EntityConverter, logger *zap.Logger) *QueryMapper {
	return &QueryMapper{Translator: NewTranslator(converter, logger)}
}

// Select renders a select statement for the prototype's table. An empty
// criteria selects every mapped column with no restriction.
func (m *QueryMapper) Select(prototype interface{}, criteria Criteria) (*Statement, error) {
	config, err := m.configFor(prototype)
	if err != nil {
		return nil, err
	}
	projection, err := m.projection(config, criteria.Columns)
	if err != nil {
		return nil, err
	}
	st := &Statement{}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(projection)
	sb.WriteString(" FROM ")
	sb.WriteString(m.tableRef(config))
	where, err := m.whereClause(config, criteria.Filters, st)
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)
	if len(criteria.OrderBy) > 0 {
		orderings := make([]string, 0, len(criteria.OrderBy))
		for _, o := range criteria.OrderBy {
			if _, err = m.findColumn(config, o.Column); err != nil {
				return nil, err
			}
			direction := " ASC"
			if o.Descending {
				direction = " DESC"
			}
			orderings = append(orderings, utilities.QuoteIdentifier(string(o.Column))+direction)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderings, ", "))
	}
	if criteria.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(criteria.Limit))
	}
	if criteria.AllowFiltering {
		sb.WriteString(" ALLOW FILTERING")
	}
	st.Query = sb.String()
	return st, nil
}

// SelectByID renders the point lookup for one entity: every primary key
// column of the value becomes an equality restriction.
func (m *QueryMapper) SelectByID(entity interface{}) (*Statement, error) {
	config, err := m.configFor(entity)
	if err != nil {
		return nil, err
	}
	columns, values, err := m.Converter.GetId(entity)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("entity %s has no primary key columns", config.GoType.Name())
	}
	projection, err := m.projection(config, nil)
	if err != nil {
		return nil, err
	}
	st := &Statement{}
	fragments := make([]string, 0, len(columns))
	for i, column := range columns {
		fragments = append(fragments, utilities.QuoteIdentifier(string(column.Name))+" = ?")
		st.Params = append(st.Params, values[i])
		st.ParamTypes = append(st.ParamTypes, column.CQLType)
	}
	st.Query = fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		projection, m.tableRef(config), strings.Join(fragments, " AND "))
	return st, nil
}

// projection renders the column list: the requested columns validated against
// the entity, or every flattened mapped column when none are requested.
func (m *QueryMapper) projection(config *schemaMapping.EntityConfig, columns []types.ColumnName) (string, error) {
	if len(columns) == 0 {
		flat, err := m.flatProperties(config, "")
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(flat))
		for _, fp := range flat {
			names = append(names, utilities.QuoteIdentifier(string(fp.column)))
		}
		return strings.Join(names, ", "), nil
	}
	names := make([]string, 0, len(columns))
	for _, column := range columns {
		if _, err := m.findColumn(config, column); err != nil {
			return "", err
		}
		names = append(names, utilities.QuoteIdentifier(string(column)))
	}
	return strings.Join(names, ", "), nil
}

// InsertOptions tunes insert statement generation.
type InsertOptions struct {
	IfNotExists bool
	// TTLSeconds adds USING TTL when positive.
	TTLSeconds int
}

// Insert renders the insert for one entity value. Nil columns are omitted so
// unset properties do not write tombstones.
func (m *QueryMapper) Insert(entity interface{}, opts InsertOptions) (*Statement, error) {
	config, err := m.configFor(entity)
	if err != nil {
		return nil, err
	}
	sink := &conversion.ColumnsSink{OmitNil: true}
	if err = m.Converter.Write(entity, sink); err != nil {
		return nil, err
	}
	if len(sink.Columns) == 0 {
		return nil, fmt.Errorf("entity %s has no values to insert", config.GoType.Name())
	}
	names := make([]string, 0, len(sink.Columns))
	markers := make([]string, 0, len(sink.Columns))
	st := &Statement{}
	for i, column := range sink.Columns {
		names = append(names, utilities.QuoteIdentifier(string(column.Name)))
		markers = append(markers, "?")
		st.Params = append(st.Params, sink.Values[i])
		st.ParamTypes = append(st.ParamTypes, column.CQLType)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		m.tableRef(config), strings.Join(names, ", "), strings.Join(markers, ", "))
	if opts.IfNotExists {
		sb.WriteString(" IF NOT EXISTS")
	}
	if opts.TTLSeconds > 0 {
		sb.WriteString(" USING TTL ?")
		st.Params = append(st.Params, int32(opts.TTLSeconds))
		st.ParamTypes = append(st.ParamTypes, types.TypeInt)
	}
	st.Query = sb.String()
	return st, nil
}
