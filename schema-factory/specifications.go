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
	"fmt"
	"strings"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/cassandra-ecosystem/cassandra-object-mapper/utilities"
)

// ColumnSpecification is one column of a generated DDL statement.
type ColumnSpecification struct {
	Name     types.ColumnName
	Type     types.CqlDataType
	IsStatic bool
}

// TableSpecification is a renderable CREATE TABLE statement. Partition and
// clustering keys are ordered by declared precedence.
type TableSpecification struct {
	Keyspace       types.Keyspace
	Name           types.TableName
	IfNotExists    bool
	Columns        []ColumnSpecification
	PartitionKeys  []types.ColumnName
	ClusteringKeys []types.ColumnName
	// Options are rendered verbatim into the WITH clause.
	Options []string
}

func (s *TableSpecification) ToCql() string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualify(string(s.Keyspace), string(s.Name)))
	sb.WriteString(" (")
	for _, column := range s.Columns {
		sb.WriteString("\n  ")
		sb.WriteString(utilities.QuoteIdentifier(string(column.Name)))
		sb.WriteString(" ")
		sb.WriteString(column.Type.String())
		if column.IsStatic {
			sb.WriteString(" STATIC")
		}
		sb.WriteString(",")
	}
	sb.WriteString("\n  PRIMARY KEY (")
	sb.WriteString(renderKeys(s.PartitionKeys, s.ClusteringKeys))
	sb.WriteString(")\n)")
	if len(s.Options) > 0 {
		sb.WriteString(" WITH ")
		sb.WriteString(strings.Join(s.Options, " AND "))
	}
	sb.WriteString(";")
	return sb.String()
}

func renderKeys(partition, clustering []types.ColumnName) string {
	quoted := func(names []types.ColumnName) []string {
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, utilities.QuoteIdentifier(string(n)))
		}
		return out
	}
	pk := strings.Join(quoted(partition), ", ")
	if len(partition) > 1 {
		pk = "(" + pk + ")"
	}
	if len(clustering) == 0 {
		return pk
	}
	return pk + ", " + strings.Join(quoted(clustering), ", ")
}

// TypeSpecification is a renderable CREATE TYPE statement.
type TypeSpecification struct {
	Keyspace    types.Keyspace
	Name        string
	IfNotExists bool
	Fields      []ColumnSpecification
}

func (s *TypeSpecification) ToCql() string {
	var sb strings.Builder
	sb.WriteString("CREATE TYPE ")
	if s.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualify(string(s.Keyspace), s.Name))
	sb.WriteString(" (")
	for i, field := range s.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n  ")
		sb.WriteString(utilities.QuoteIdentifier(string(field.Name)))
		sb.WriteString(" ")
		sb.WriteString(field.Type.String())
	}
	sb.WriteString("\n);")
	return sb.String()
}

// IndexKind selects the indexed part of a collection column.
type IndexKind int

const (
	// IndexValues indexes scalar columns and collection values.
	IndexValues IndexKind = iota
	// IndexKeys indexes map keys.
	IndexKeys
	// IndexEntries indexes map entries.
	IndexEntries
	// IndexFull indexes a frozen collection as a whole.
	IndexFull
)

// IndexSpecification is a renderable CREATE INDEX statement.
type IndexSpecification struct {
	Name        string
	Keyspace    types.Keyspace
	Table       types.TableName
	Column      types.ColumnName
	Kind        IndexKind
	IfNotExists bool
}

func (s *IndexSpecification) ToCql() string {
	target := utilities.QuoteIdentifier(string(s.Column))
	switch s.Kind {
	case IndexKeys:
		target = fmt.Sprintf("KEYS(%s)", target)
	case IndexEntries:
		target = fmt.Sprintf("ENTRIES(%s)", target)
	case IndexFull:
		target = fmt.Sprintf("FULL(%s)", target)
	}
	var sb strings.Builder
	sb.WriteString("CREATE INDEX ")
	if s.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	if s.Name != "" {
		sb.WriteString(utilities.QuoteIdentifier(s.Name))
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "ON %s (%s);", qualify(string(s.Keyspace), string(s.Table)), target)
	return sb.String()
}

func qualify(keyspace, name string) string {
	quoted := utilities.QuoteIdentifier(name)
	if keyspace == "" {
		return quoted
	}
	return utilities.QuoteIdentifier(keyspace) + "." + quoted
}
