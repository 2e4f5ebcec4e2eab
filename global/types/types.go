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
	"github.com/datastax/go-cassandra-native-protocol/message"
)

// Keyspace - a Cassandra keyspace name
type Keyspace string

// TableName - a Cassandra table name
type TableName string

// ColumnName - a Cassandra column name
type ColumnName string

// GoValue - a plain Golang value
type GoValue any

// RawValue - a value serialized to Cassandra wire bytes
type RawValue []byte

// KeyType classifies a column's role in the primary key.
type KeyType string

const (
	KeyTypePartition  KeyType = "partition"
	KeyTypeClustering KeyType = "clustering"
	KeyTypeRegular    KeyType = "regular"
)

// Column describes a single mapped table column.
type Column struct {
	Name         ColumnName
	CQLType      CqlDataType
	IsPrimaryKey bool
	PkPrecedence int
	KeyType      KeyType
	IsStatic     bool
	Metadata     message.ColumnMetadata
}
