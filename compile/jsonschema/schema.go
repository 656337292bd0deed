/*
Package jsonschema compiles a JSON Schema document (2020-12 style, the
subset relevant for constrained generation) into the internal grammar
representation.

Supported: the seven core types, allOf/anyOf/oneOf, const, enum, in-document
$ref resolution, properties/required/additionalProperties, items with
minItems/maxItems, numeric bounds lowered to exact decimal regexes, string
pattern/minLength/maxLength, and the common format names. Unsatisfiable
schemas are detected eagerly and reported with deterministic messages.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'steer.compile'.
func tracer() tracing.Trace {
	return tracing.Select("steer.compile")
}

// --- Order-preserving JSON values -------------------------------------------

// Go maps do not preserve key order, but the order of schema properties is
// the order in which the grammar will require object members. We therefore
// parse schema documents into an order-preserving object type.

// object is a JSON object with remembered key order.
type object struct {
	keys []string
	vals map[string]interface{}
}

func (o *object) get(key string) (interface{}, bool) {
	v, ok := o.vals[key]
	return v, ok
}

func (o *object) has(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// parseDocument parses raw JSON into object/[]interface{}/json.Number/
// string/bool/nil values.
func parseDocument(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("trailing content after JSON document")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{vals: make(map[string]interface{})}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key := keyTok.(string)
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.vals[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.vals[key] = val
			}
			if _, err := dec.Token(); err != nil { // closing }
				return nil, err
			}
			return obj, nil
		case '[':
			var arr []interface{}
			for dec.More() {
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

// serialize renders a parsed value back to compact canonical JSON; used for
// const and enum literals.
func serialize(v interface{}) string {
	var sb strings.Builder
	writeValue(&sb, v)
	return sb.String()
}

func writeValue(sb *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if t {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case json.Number:
		sb.WriteString(t.String())
	case string:
		b, _ := json.Marshal(t)
		sb.Write(b)
	case []interface{}:
		sb.WriteString("[")
		for i, e := range t {
			if i > 0 {
				sb.WriteString(",")
			}
			writeValue(sb, e)
		}
		sb.WriteString("]")
	case *object:
		sb.WriteString("{")
		for i, k := range t.keys {
			if i > 0 {
				sb.WriteString(",")
			}
			b, _ := json.Marshal(k)
			sb.Write(b)
			sb.WriteString(":")
			writeValue(sb, t.vals[k])
		}
		sb.WriteString("}")
	}
}

// --- $ref resolution --------------------------------------------------------

// resolvePointer walks an in-document JSON pointer reference ("#", or
// "#/$defs/Node" style).
func resolvePointer(root interface{}, ref string) (interface{}, error) {
	if !strings.HasPrefix(ref, "#") {
		return nil, fmt.Errorf("only in-document $ref is supported, cannot resolve %q", ref)
	}
	ptr := strings.TrimPrefix(ref, "#")
	if ptr == "" {
		return root, nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, fmt.Errorf("invalid $ref %q", ref)
	}
	node := root
	for _, tok := range strings.Split(ptr[1:], "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		obj, ok := node.(*object)
		if !ok {
			return nil, fmt.Errorf("$ref %q does not resolve to a schema", ref)
		}
		next, ok := obj.get(tok)
		if !ok {
			return nil, fmt.Errorf("$ref %q not found", ref)
		}
		node = next
	}
	return node, nil
}
