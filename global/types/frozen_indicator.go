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

// FrozenIndicator mirrors the nesting structure of a declared column type and
// records at which levels the frozen modifier applies. Child index 0 is the
// element type of a list/set or the key type of a map, index 1 is the map
// value type. Indicators are built once per property at resolution time and
// are immutable afterwards.
type FrozenIndicator struct {
	frozen bool
	nested []*FrozenIndicator
}

func NewFrozenIndicator(frozen bool, nested ...*FrozenIndicator) *FrozenIndicator {
	return &FrozenIndicator{frozen: frozen, nested: nested}
}

// FrozenIndicatorFor derives the indicator tree from a fully parsed type
// declaration, recording where frozen<> wrappers appear.
func FrozenIndicatorFor(dt CqlDataType) *FrozenIndicator {
	frozen := false
	if f, ok := dt.(*FrozenType); ok {
		frozen = true
		dt = f.InnerType()
	}
	switch t := dt.(type) {
	case *ListType:
		return NewFrozenIndicator(frozen, FrozenIndicatorFor(t.ElementType()))
	case *SetType:
		return NewFrozenIndicator(frozen, FrozenIndicatorFor(t.ElementType()))
	case *MapType:
		return NewFrozenIndicator(frozen, FrozenIndicatorFor(t.KeyType()), FrozenIndicatorFor(t.ValueType()))
	default:
		return NewFrozenIndicator(frozen)
	}
}

// IsFrozen reports whether this nesting level is frozen. A nil indicator is
// never frozen, which lets callers pass nil when no markers were declared.
func (f *FrozenIndicator) IsFrozen() bool {
	return f != nil && f.frozen
}

// Nested returns the indicator for the given type argument index, or nil when
// no marker was declared below this level.
func (f *FrozenIndicator) Nested(index int) *FrozenIndicator {
	if f == nil || index < 0 || index >= len(f.nested) {
		return nil
	}
	return f.nested[index]
}
