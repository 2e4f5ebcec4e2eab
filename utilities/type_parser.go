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

package utilities

import (
	"fmt"
	"strings"

	"github.com/cassandra-ecosystem/cassandra-object-mapper/global/types"
)

// UdtLookup resolves a user-defined type name found in a type declaration.
type UdtLookup func(name string) (types.CqlDataType, bool)

var scalarTypesByName = map[string]types.CqlDataType{
	"ascii":     types.TypeAscii,
	"bigint":    types.TypeBigint,
	"blob":      types.TypeBlob,
	"boolean":   types.TypeBoolean,
	"counter":   types.TypeCounter,
	"date":      types.TypeDate,
	"decimal":   types.TypeDecimal,
	"double":    types.TypeDouble,
	"float":     types.TypeFloat,
	"inet":      types.TypeInet,
	"int":       types.TypeInt,
	"smallint":  types.TypeSmallint,
	"text":      types.TypeText,
	"time":      types.TypeTime,
	"timestamp": types.TypeTimestamp,
	"timeuuid":  types.TypeTimeuuid,
	"tinyint":   types.TypeTinyint,
	"uuid":      types.TypeUuid,
	"varchar":   types.TypeVarchar,
	"varint":    types.TypeVarint,
}

func ParseCqlTypeOrDie(typeStr string) types.CqlDataType {
	t, err := ParseCqlTypeString(typeStr, nil)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseCqlTypeString converts the string representation of a Cassandra data
// type, e.g. "text" or "map<text, frozen<list<int>>>", into a CqlDataType.
// Names that are not built-in types are resolved through the optional udts
// lookup. Shape validation behaves like Cassandra: list/set/frozen take
// exactly one type argument, map takes exactly two, map keys must be scalar
// and unfrozen collections cannot nest.
func ParseCqlTypeString(input string, udts UdtLookup) (types.CqlDataType, error) {
	p := &typeParser{input: strings.ToLower(strings.ReplaceAll(input, " ", "")), udts: udts}
	dt, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("unexpected trailing characters %q in type '%s'", p.input[p.pos:], input)
	}
	return dt, nil
}

type typeParser struct {
	input string
	pos   int
	udts  UdtLookup
}

func (p *typeParser) parseType() (types.CqlDataType, error) {
	name := p.readName()
	if name == "" {
		return nil, fmt.Errorf("missing type name in '%s'", p.input)
	}
	var args []types.CqlDataType
	if p.peek() == '<' {
		p.pos++
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, fmt.Errorf("failed to extract type for '%s': %w", p.input, err)
			}
			args = append(args, arg)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		if p.peek() != '>' {
			return nil, fmt.Errorf("missing closing type bracket in: '%s'", p.input)
		}
		p.pos++
	}
	return p.buildType(name, args)
}

func (p *typeParser) buildType(name string, args []types.CqlDataType) (types.CqlDataType, error) {
	switch name {
	case "frozen":
		if err := p.validateArgCount(name, args, 1); err != nil {
			return nil, err
		}
		inner := args[0]
		if !inner.IsCollection() && inner.Code() != types.UDT {
			return nil, fmt.Errorf("frozen types must be a collection or user-defined type: '%s'", p.input)
		}
		return types.NewFrozenType(inner), nil
	case "list":
		if err := p.validateArgCount(name, args, 1); err != nil {
			return nil, err
		}
		if args[0].IsCollection() {
			return nil, fmt.Errorf("lists cannot contain collections unless they are frozen")
		}
		return types.NewListType(args[0]), nil
	case "set":
		if err := p.validateArgCount(name, args, 1); err != nil {
			return nil, err
		}
		if args[0].IsCollection() {
			return nil, fmt.Errorf("sets cannot contain collections unless they are frozen")
		}
		return types.NewSetType(args[0]), nil
	case "map":
		if err := p.validateArgCount(name, args, 2); err != nil {
			return nil, err
		}
		if args[0].IsCollection() {
			return nil, fmt.Errorf("map key types must be scalar")
		}
		if args[1].IsCollection() {
			return nil, fmt.Errorf("map values cannot be collections unless they are frozen")
		}
		return types.NewMapType(args[0], args[1]), nil
	case "tuple":
		if len(args) == 0 {
			return nil, fmt.Errorf("tuple requires at least one type argument in: '%s'", p.input)
		}
		return types.NewTupleType(args...), nil
	default:
		if len(args) != 0 {
			return nil, fmt.Errorf("type '%s' does not take type arguments in: '%s'", name, p.input)
		}
		if scalar, ok := scalarTypesByName[name]; ok {
			return scalar, nil
		}
		if p.udts != nil {
			if udt, ok := p.udts(name); ok {
				return udt, nil
			}
		}
		return nil, fmt.Errorf("unknown data type name: '%s' in type '%s'", name, p.input)
	}
}

func (p *typeParser) validateArgCount(name string, args []types.CqlDataType, expected int) error {
	if len(args) == 0 {
		return fmt.Errorf("data type definition missing in: '%s'", p.input)
	}
	if len(args) != expected {
		return fmt.Errorf("expected exactly %d types but found %d in: '%s'", expected, len(args), p.input)
	}
	return nil
}

func (p *typeParser) readName() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '<' || c == '>' || c == ',' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}
