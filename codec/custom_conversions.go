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
	"fmt"
	"reflect"
	"sync"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Conversion is a user-registered override describing how one Go type maps to
// a Cassandra column type. ToCql produces a value the codec can encode for
// CqlType; FromCql turns the decoded default value back into the Go type.
type Conversion struct {
	GoType  reflect.Type
	CqlType types.CqlDataType
	ToCql   func(v any) (any, error)
	FromCql func(v any) (any, error)
}

// CustomConversions is the registry of override converters. It is queried
// before any structural type inference, so a registered conversion always
// wins over reflection. Registration is expected to happen at startup;
// lookups are safe for concurrent use.
type CustomConversions struct {
	mu       sync.RWMutex
	byGoType map[reflect.Type]Conversion
}

func NewCustomConversions() *CustomConversions {
	c := &CustomConversions{byGoType: make(map[reflect.Type]Conversion)}
	// google/uuid values are persisted through the gocql uuid codec.
	c.Register(Conversion{
		GoType:  uuidType,
		CqlType: types.TypeUuid,
		ToCql: func(v any) (any, error) {
			u, ok := v.(uuid.UUID)
			if !ok {
				return nil, fmt.Errorf("expected uuid.UUID, got %T", v)
			}
			return gocql.UUID(u), nil
		},
		FromCql: func(v any) (any, error) {
			u, ok := v.(gocql.UUID)
			if !ok {
				return nil, fmt.Errorf("expected gocql.UUID, got %T", v)
			}
			return uuid.UUID(u), nil
		},
	})
	return c
}

func (c *CustomConversions) Register(conv Conversion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byGoType[conv.GoType] = conv
}

func (c *CustomConversions) HasConverter(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byGoType[t]
	return ok
}

// WriteTarget returns the Cassandra type a registered conversion writes the
// given Go type as.
func (c *CustomConversions) WriteTarget(t reflect.Type) (types.CqlDataType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conv, ok := c.byGoType[t]
	if !ok {
		return nil, false
	}
	return conv.CqlType, true
}

// ConvertToCql applies the registered write conversion for the value's type.
// The second return reports whether a conversion applied.
func (c *CustomConversions) ConvertToCql(v any) (any, types.CqlDataType, bool, error) {
	if v == nil {
		return nil, nil, false, nil
	}
	c.mu.RLock()
	conv, ok := c.byGoType[reflect.TypeOf(v)]
	c.mu.RUnlock()
	if !ok {
		return v, nil, false, nil
	}
	converted, err := conv.ToCql(v)
	if err != nil {
		return nil, nil, true, fmt.Errorf("custom conversion of %T failed: %w", v, err)
	}
	return converted, conv.CqlType, true, nil
}

// ConvertFromCql applies the registered read conversion producing the target
// Go type, if one is registered.
func (c *CustomConversions) ConvertFromCql(target reflect.Type, v any) (any, bool, error) {
	c.mu.RLock()
	conv, ok := c.byGoType[target]
	c.mu.RUnlock()
	if !ok {
		return v, false, nil
	}
	converted, err := conv.FromCql(v)
	if err != nil {
		return nil, true, fmt.Errorf("custom conversion to %s failed: %w", target, err)
	}
	return converted, true, nil
}
