package jsonschema

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

// Options configures the schema compilation.
type Options struct {
	// StrictOneOf rejects oneOf instead of coercing it to anyOf. The
	// default coercion drops the exclusivity check, which a generator
	// cannot enforce anyway, and logs a warning.
	StrictOneOf bool
}

// schema keys which carry only annotations and are skipped silently
var annotationKeys = map[string]bool{
	"$schema": true, "$id": true, "$comment": true, "$defs": true,
	"definitions": true, "title": true, "description": true, "default": true,
	"examples": true, "deprecated": true, "readOnly": true, "writeOnly": true,
}

type schemaCompiler struct {
	b       *grammar.Builder
	eng     *rx.Engine
	nc      numCompiler
	prefix  string
	root    interface{}
	opts    Options
	refs    map[string]string // $ref target → non-terminal name
	lits    map[string]string // literal text → class name
	counter int
	jsonSym string // generic JSON value non-terminal, lazily built
}

// CompileInto lowers a JSON Schema document into the given builder. Symbol
// names are prefixed; the name of the start symbol is returned.
func CompileInto(b *grammar.Builder, eng *rx.Engine, prefix string, raw []byte, opts Options) (string, error) {
	root, err := parseDocument(raw)
	if err != nil {
		return "", steer.WrapError(steer.GrammarParseError, "invalid JSON Schema document: %v", err)
	}
	c := &schemaCompiler{
		b:      b,
		eng:    eng,
		nc:     numCompiler{eng: eng},
		prefix: prefix,
		root:   root,
		opts:   opts,
		refs:   make(map[string]string),
		lits:   make(map[string]string),
	}
	if !b.HasSkip() {
		ws, _ := eng.ParsePattern(`[ \t\n\r]+`)
		b.SetSkip(ws)
	}
	start := prefix + "start"
	if err := c.schemaInto(root, start); err != nil {
		if _, ok := err.(*steer.Error); ok {
			return "", err
		}
		return "", steer.WrapError(steer.GrammarParseError, "%v", err)
	}
	return start, nil
}

func (c *schemaCompiler) fresh(hint string) string {
	c.counter++
	return fmt.Sprintf("%s_%s%d", c.prefix, hint, c.counter)
}

func (c *schemaCompiler) unsat(format string, args ...interface{}) error {
	return steer.WrapError(steer.UnsatisfiableSchema, "unsatisfiable schema: "+format, args...)
}

// schemaInto creates the rules of non-terminal name for the given schema
// value.
func (c *schemaCompiler) schemaInto(s interface{}, name string) error {
	switch sch := s.(type) {
	case bool:
		if !sch {
			return c.unsat("schema false matches nothing")
		}
		c.b.LHS(name).N(c.jsonValue()).End()
		return nil
	case *object:
		return c.objectSchemaInto(sch, name)
	}
	return fmt.Errorf("schema must be an object or boolean, found %T", s)
}

func (c *schemaCompiler) objectSchemaInto(sch *object, name string) error {
	if ref, ok := sch.get("$ref"); ok {
		return c.refInto(ref, name)
	}
	if allOf, ok := sch.get("allOf"); ok {
		merged, err := c.mergeAllOf(sch, allOf)
		if err != nil {
			return err
		}
		return c.schemaInto(merged, name)
	}
	if anyOf, ok := sch.get("anyOf"); ok {
		return c.unionInto(sch, anyOf, "anyOf", name)
	}
	if oneOf, ok := sch.get("oneOf"); ok {
		if c.opts.StrictOneOf {
			return fmt.Errorf("oneOf is not supported in strict mode, use anyOf")
		}
		tracer().Infof("coercing oneOf to anyOf, exclusivity is not enforced")
		return c.unionInto(sch, oneOf, "oneOf", name)
	}
	if cv, ok := sch.get("const"); ok {
		c.b.LHS(name).Sym(c.litTerminal(serialize(cv))).End()
		return nil
	}
	if ev, ok := sch.get("enum"); ok {
		values, ok := ev.([]interface{})
		if !ok || len(values) == 0 {
			return fmt.Errorf("enum must be a non-empty array")
		}
		for _, v := range values {
			c.b.LHS(name).Sym(c.litTerminal(serialize(v))).End()
		}
		return nil
	}
	types, err := c.schemaTypes(sch)
	if err != nil {
		return err
	}
	if types == nil {
		// annotation-only schema admits any JSON value
		c.b.LHS(name).N(c.jsonValue()).End()
		return nil
	}
	for _, t := range types {
		if err := c.typeInto(sch, t, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *schemaCompiler) schemaTypes(sch *object) ([]string, error) {
	tv, ok := sch.get("type")
	if !ok {
		return nil, nil
	}
	switch t := tv.(type) {
	case string:
		return []string{t}, nil
	case []interface{}:
		var types []string
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("type array must contain strings")
			}
			types = append(types, s)
		}
		return types, nil
	}
	return nil, fmt.Errorf("type must be a string or an array of strings")
}

func (c *schemaCompiler) refInto(ref interface{}, name string) error {
	refStr, ok := ref.(string)
	if !ok {
		return fmt.Errorf("$ref must be a string")
	}
	target, registered := c.refs[refStr]
	if !registered {
		target = c.fresh("ref")
		c.refs[refStr] = target // register first, recursive schemas terminate here
		resolved, err := resolvePointer(c.root, refStr)
		if err != nil {
			return err
		}
		if err := c.schemaInto(resolved, target); err != nil {
			return err
		}
	}
	c.b.LHS(name).N(target).End()
	return nil
}

func (c *schemaCompiler) unionInto(sch *object, list interface{}, key, name string) error {
	subs, ok := list.([]interface{})
	if !ok || len(subs) == 0 {
		return fmt.Errorf("%s must be a non-empty array", key)
	}
	for _, sub := range subs {
		branch := c.fresh("alt")
		if err := c.schemaInto(sub, branch); err != nil {
			return err
		}
		c.b.LHS(name).N(branch).End()
	}
	return nil
}

// --- Types ------------------------------------------------------------------

func (c *schemaCompiler) typeInto(sch *object, typeName, name string) error {
	switch typeName {
	case "null":
		c.b.LHS(name).Sym(c.litTerminal("null")).End()
		return nil
	case "boolean":
		c.b.LHS(name).Sym(c.litTerminal("true")).End()
		c.b.LHS(name).Sym(c.litTerminal("false")).End()
		return nil
	case "integer", "number":
		id, err := c.numberRx(sch, typeName == "integer")
		if err != nil {
			return err
		}
		cls := c.b.DeclareTerminal(c.fresh("num"), id)
		c.b.LHS(name).Sym(c.b.Symbol(cls.Name)).End()
		return nil
	case "string":
		id, err := c.stringRx(sch)
		if err != nil {
			return err
		}
		cls := c.b.DeclareTerminal(c.fresh("str"), id)
		c.b.LHS(name).Sym(c.b.Symbol(cls.Name)).End()
		return nil
	case "array":
		return c.arrayInto(sch, name)
	case "object":
		return c.objInto(sch, name)
	}
	return fmt.Errorf("unsupported type %q", typeName)
}

// --- Numbers ----------------------------------------------------------------

// boundInt reads an integer-valued numeric bound.
func (c *schemaCompiler) boundInt(sch *object, key string) (*int64, error) {
	v, ok := sch.get(key)
	if !ok {
		return nil, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	if i, err := num.Int64(); err == nil {
		return &i, nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) {
		return nil, fmt.Errorf("only integer-valued %s is supported, found %s", key, num)
	}
	i := int64(f)
	return &i, nil
}

func (c *schemaCompiler) numberRx(sch *object, integer bool) (rx.NodeId, error) {
	min, err := c.boundInt(sch, "minimum")
	if err != nil {
		return rx.NoNode, err
	}
	max, err := c.boundInt(sch, "maximum")
	if err != nil {
		return rx.NoNode, err
	}
	exMin, err := c.boundInt(sch, "exclusiveMinimum")
	if err != nil {
		return rx.NoNode, err
	}
	exMax, err := c.boundInt(sch, "exclusiveMaximum")
	if err != nil {
		return rx.NoNode, err
	}
	if min != nil && max != nil && *min > *max {
		return rx.NoNode, c.unsat("minimum (%d) is greater than maximum (%d)", *min, *max)
	}
	if integer {
		lo, hi := min, max
		exclusive := false
		if exMin != nil {
			v := *exMin + 1
			if lo == nil || v > *lo {
				lo = &v
			}
			exclusive = true
		}
		if exMax != nil {
			v := *exMax - 1
			if hi == nil || v < *hi {
				hi = &v
			}
			exclusive = true
		}
		if lo != nil && hi != nil && *lo > *hi {
			if exclusive {
				return rx.NoNode, c.unsat("empty integer interval between exclusive bounds")
			}
			return rx.NoNode, c.unsat("minimum (%d) is greater than maximum (%d)", *lo, *hi)
		}
		return c.nc.integerRangeRx(lo, hi), nil
	}
	lo, loExcl := min, false
	if exMin != nil && (lo == nil || *exMin >= *lo) {
		lo, loExcl = exMin, true
	}
	hi, hiExcl := max, false
	if exMax != nil && (hi == nil || *exMax <= *hi) {
		hi, hiExcl = exMax, true
	}
	if lo != nil && hi != nil {
		if *lo > *hi || (*lo == *hi && (loExcl || hiExcl)) {
			return rx.NoNode, c.unsat("empty interval between numeric bounds")
		}
	}
	return c.nc.numberRangeRx(lo, hi, loExcl, hiExcl), nil
}

// --- Strings ----------------------------------------------------------------

func (c *schemaCompiler) intOpt(sch *object, key string) (*int, error) {
	v, ok := sch.get(key)
	if !ok {
		return nil, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	i, err := num.Int64()
	if err != nil || i < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", key)
	}
	n := int(i)
	return &n, nil
}

// stringChar matches one JSON string character: any unescaped rune or an
// escape sequence.
func (c *schemaCompiler) stringChar() rx.NodeId {
	unescaped := c.eng.Union(
		c.eng.RuneRange(0x20, 0x21),
		c.eng.RuneRange(0x23, 0x5B),
		c.eng.RuneRange(0x5D, 0x10FFFF),
	)
	var simple rx.ByteSet
	for _, b := range []byte{'"', '\\', '/', 'b', 'f', 'n', 'r', 't'} {
		simple.Add(b)
	}
	hex := c.eng.Union(
		c.eng.ClassRange('0', '9'),
		c.eng.ClassRange('a', 'f'),
		c.eng.ClassRange('A', 'F'),
	)
	escape := c.eng.Concat(c.eng.Byte('\\'), c.eng.Union(
		c.eng.Class(simple),
		c.eng.Concat(c.eng.Byte('u'), c.eng.Repeat(hex, 4, 4)),
	))
	return c.eng.Union(unescaped, escape)
}

func (c *schemaCompiler) stringRx(sch *object) (rx.NodeId, error) {
	minLen, err := c.intOpt(sch, "minLength")
	if err != nil {
		return rx.NoNode, err
	}
	maxLen, err := c.intOpt(sch, "maxLength")
	if err != nil {
		return rx.NoNode, err
	}
	if minLen != nil && maxLen != nil && *minLen > *maxLen {
		return rx.NoNode, c.unsat("minLength (%d) is greater than maxLength (%d)", *minLen, *maxLen)
	}
	quote := c.eng.Byte('"')
	if pv, ok := sch.get("pattern"); ok {
		pat, ok := pv.(string)
		if !ok {
			return rx.NoNode, fmt.Errorf("pattern must be a string")
		}
		if minLen != nil || maxLen != nil {
			return rx.NoNode, fmt.Errorf("pattern cannot be combined with minLength/maxLength")
		}
		body, err := c.eng.ParsePattern(pat)
		if err != nil {
			return rx.NoNode, err
		}
		return c.eng.Concat(quote, body, quote), nil
	}
	if fv, ok := sch.get("format"); ok {
		format, ok := fv.(string)
		if !ok {
			return rx.NoNode, fmt.Errorf("format must be a string")
		}
		if minLen != nil || maxLen != nil {
			return rx.NoNode, fmt.Errorf("format cannot be combined with minLength/maxLength")
		}
		pat, known := lookupFormat(format)
		if !known {
			tracer().Infof("unknown string format %q, generating unconstrained strings", format)
			pat = `.*`
		}
		body, err := c.eng.ParsePattern(pat)
		if err != nil {
			return rx.NoNode, err
		}
		return c.eng.Concat(quote, body, quote), nil
	}
	lo := 0
	if minLen != nil {
		lo = *minLen
	}
	hi := -1
	if maxLen != nil {
		hi = *maxLen
	}
	return c.eng.Concat(quote, c.eng.Repeat(c.stringChar(), lo, hi), quote), nil
}

// --- Arrays -----------------------------------------------------------------

func (c *schemaCompiler) arrayInto(sch *object, name string) error {
	minItems, err := c.intOpt(sch, "minItems")
	if err != nil {
		return err
	}
	maxItems, err := c.intOpt(sch, "maxItems")
	if err != nil {
		return err
	}
	lo := 0
	if minItems != nil {
		lo = *minItems
	}
	hi := -1
	if maxItems != nil {
		hi = *maxItems
	}
	if hi >= 0 && lo > hi {
		return c.unsat("minItems (%d) is greater than maxItems (%d)", lo, hi)
	}
	elem := c.fresh("item")
	items, hasItems := sch.get("items")
	if !hasItems {
		items = true
	}
	if err := c.schemaInto(items, elem); err != nil {
		return err
	}
	lb, rb := c.litTerminal("["), c.litTerminal("]")
	comma := c.litTerminal(",")
	if lo == 0 {
		c.b.LHS(name).Sym(lb).Sym(rb).End()
	}
	if hi == 0 {
		return nil
	}
	// tail_k continues an array which already holds k elements
	effMin := lo
	if effMin < 1 {
		effMin = 1
	}
	tail := func(k int) string { return fmt.Sprintf("%s_t%d", name, k) }
	c.b.LHS(name).Sym(lb).N(elem).N(tail(1)).End()
	if hi < 0 {
		for k := 1; k < effMin; k++ {
			c.b.LHS(tail(k)).Sym(comma).N(elem).N(tail(k + 1)).End()
		}
		c.b.LHS(tail(effMin)).Sym(rb).End()
		c.b.LHS(tail(effMin)).Sym(comma).N(elem).N(tail(effMin)).End()
		return nil
	}
	for k := 1; k <= hi; k++ {
		if k >= effMin {
			c.b.LHS(tail(k)).Sym(rb).End()
		}
		if k < hi {
			c.b.LHS(tail(k)).Sym(comma).N(elem).N(tail(k + 1)).End()
		}
	}
	return nil
}

// --- Objects ----------------------------------------------------------------

func (c *schemaCompiler) objInto(sch *object, name string) error {
	var props *object
	if pv, ok := sch.get("properties"); ok {
		p, ok := pv.(*object)
		if !ok {
			return fmt.Errorf("properties must be an object")
		}
		props = p
	} else {
		props = &object{vals: map[string]interface{}{}}
	}
	required := make(map[string]bool)
	if rv, ok := sch.get("required"); ok {
		list, ok := rv.([]interface{})
		if !ok {
			return fmt.Errorf("required must be an array")
		}
		for _, r := range list {
			s, ok := r.(string)
			if !ok {
				return fmt.Errorf("required must contain strings")
			}
			required[s] = true
		}
	}
	ap := interface{}(true)
	if av, ok := sch.get("additionalProperties"); ok {
		ap = av
	}
	// unsatisfiability: a required property whose schema is false
	for _, p := range props.keys {
		if sub, _ := props.get(p); sub == false && required[p] {
			return c.unsat("required property %q has schema false", p)
		}
	}
	for p := range required {
		if !props.has(p) {
			if apBool, isBool := ap.(bool); isBool && !apBool {
				return c.unsat("required property %q is not declared and additionalProperties is false", p)
			}
		}
	}
	// property value non-terminals, in declaration order
	valueSyms := make(map[string]string)
	for _, p := range props.keys {
		sub, _ := props.get(p)
		if sub == false && !required[p] {
			continue // never present
		}
		v := c.fresh("prop")
		if err := c.schemaInto(sub, v); err != nil {
			return err
		}
		valueSyms[p] = v
	}
	var apValue string
	apAllowed := true
	switch a := ap.(type) {
	case bool:
		apAllowed = a
		if a {
			apValue = c.jsonValue()
		}
	default:
		apValue = c.fresh("ap")
		if err := c.schemaInto(ap, apValue); err != nil {
			return err
		}
	}
	lb, rb := c.litTerminal("{"), c.litTerminal("}")
	comma, colon := c.litTerminal(","), c.litTerminal(":")
	jstr := c.jsonStringTerminal()
	// chain(i, seen): members for properties i…, given whether a member has
	// been emitted already; memoized so the chain stays linear
	chains := make(map[[2]int]string)
	var chain func(i int, seen bool) string
	chain = func(i int, seen bool) string {
		si := 0
		if seen {
			si = 1
		}
		if sym, ok := chains[[2]int{i, si}]; ok {
			return sym
		}
		sym := fmt.Sprintf("%s_m%d_%d", name, i, si)
		chains[[2]int{i, si}] = sym
		// skip properties whose value can never appear
		for i < len(props.keys) {
			if _, ok := valueSyms[props.keys[i]]; ok {
				break
			}
			i++
		}
		if i >= len(props.keys) {
			c.b.LHS(sym).Sym(rb).End()
			if apAllowed {
				more := sym + "_ap"
				rbm := c.b.LHS(sym)
				if seen {
					rbm.Sym(comma)
				}
				rbm.Sym(jstr).Sym(colon).N(apValue).N(more).End()
				c.b.LHS(more).Sym(rb).End()
				c.b.LHS(more).Sym(comma).Sym(jstr).Sym(colon).N(apValue).N(more).End()
			}
			return sym
		}
		p := props.keys[i]
		if !required[p] {
			c.b.LHS(sym).N(chain(i+1, seen)).End()
		}
		rbm := c.b.LHS(sym)
		if seen {
			rbm.Sym(comma)
		}
		rbm.Sym(c.litTerminal(serialize(p))).Sym(colon).N(valueSyms[p]).N(chain(i+1, true)).End()
		return sym
	}
	c.b.LHS(name).Sym(lb).N(chain(0, false)).End()
	return nil
}

// --- Shared pieces ----------------------------------------------------------

// litTerminal declares (or reuses) a terminal class matching a literal
// text, e.g. a punctuation mark, "null", or a serialized const.
func (c *schemaCompiler) litTerminal(text string) *grammar.Symbol {
	if name, ok := c.lits[text]; ok {
		return c.b.Symbol(name)
	}
	name := c.prefix + text
	if c.b.Symbol(name) != nil {
		name = c.fresh("lit")
	}
	c.b.DeclareTerminal(name, c.eng.Literal([]byte(text)))
	c.lits[text] = name
	return c.b.Symbol(name)
}

// jsonStringTerminal declares the generic JSON string class.
func (c *schemaCompiler) jsonStringTerminal() *grammar.Symbol {
	key := "\x00jstring"
	if name, ok := c.lits[key]; ok {
		return c.b.Symbol(name)
	}
	quote := c.eng.Byte('"')
	id := c.eng.Concat(quote, c.eng.Star(c.stringChar()), quote)
	name := c.prefix + "JSTRING"
	c.b.DeclareTerminal(name, id)
	c.lits[key] = name
	return c.b.Symbol(name)
}

// jsonValue lazily builds the grammar of arbitrary JSON values and returns
// its non-terminal.
func (c *schemaCompiler) jsonValue() string {
	if c.jsonSym != "" {
		return c.jsonSym
	}
	v := c.prefix + "_jsonvalue"
	c.jsonSym = v
	jstr := c.jsonStringTerminal()
	jnum := c.b.DeclareTerminal(c.prefix+"JNUMBER", c.nc.numberRangeRx(nil, nil, false, false))
	lb, rb := c.litTerminal("["), c.litTerminal("]")
	ob, cb := c.litTerminal("{"), c.litTerminal("}")
	comma, colon := c.litTerminal(","), c.litTerminal(":")
	c.b.LHS(v).Sym(jstr).End()
	c.b.LHS(v).Sym(c.b.Symbol(jnum.Name)).End()
	c.b.LHS(v).Sym(c.litTerminal("true")).End()
	c.b.LHS(v).Sym(c.litTerminal("false")).End()
	c.b.LHS(v).Sym(c.litTerminal("null")).End()
	arr, obj := v+"_arr", v+"_obj"
	c.b.LHS(v).N(arr).End()
	c.b.LHS(v).N(obj).End()
	c.b.LHS(arr).Sym(lb).Sym(rb).End()
	c.b.LHS(arr).Sym(lb).N(v + "_elems").End()
	c.b.LHS(v + "_elems").N(v).Sym(rb).End()
	c.b.LHS(v + "_elems").N(v).Sym(comma).N(v + "_elems").End()
	c.b.LHS(obj).Sym(ob).Sym(cb).End()
	c.b.LHS(obj).Sym(ob).N(v + "_members").End()
	c.b.LHS(v + "_members").Sym(jstr).Sym(colon).N(v).Sym(cb).End()
	c.b.LHS(v + "_members").Sym(jstr).Sym(colon).N(v).Sym(comma).N(v + "_members").End()
	return v
}

// --- allOf merging ----------------------------------------------------------

// mergeAllOf merges the members of an allOf list, together with the
// sibling keys of the carrying schema, into one flat schema object.
func (c *schemaCompiler) mergeAllOf(sch *object, allOf interface{}) (*object, error) {
	list, ok := allOf.([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("allOf must be a non-empty array")
	}
	merged := &object{vals: map[string]interface{}{}}
	for _, k := range sch.keys {
		if k == "allOf" {
			continue
		}
		v, _ := sch.get(k)
		merged.keys = append(merged.keys, k)
		merged.vals[k] = v
	}
	for _, member := range list {
		resolved := member
		if obj, isObj := member.(*object); isObj {
			if ref, hasRef := obj.get("$ref"); hasRef {
				refStr, ok := ref.(string)
				if !ok {
					return nil, fmt.Errorf("$ref must be a string")
				}
				r, err := resolvePointer(c.root, refStr)
				if err != nil {
					return nil, err
				}
				resolved = r
			}
		}
		obj, isObj := resolved.(*object)
		if !isObj {
			if resolved == false {
				return nil, c.unsat("allOf member is false")
			}
			continue // true member constrains nothing
		}
		var err error
		merged, err = c.mergeTwo(merged, obj)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func (c *schemaCompiler) mergeTwo(a, b *object) (*object, error) {
	out := &object{vals: map[string]interface{}{}}
	for _, k := range a.keys {
		out.keys = append(out.keys, k)
		out.vals[k] = a.vals[k]
	}
	for _, k := range b.keys {
		if annotationKeys[k] {
			continue
		}
		bv := b.vals[k]
		av, has := out.vals[k]
		if !has {
			out.keys = append(out.keys, k)
			out.vals[k] = bv
			continue
		}
		mv, err := c.mergeKey(k, av, bv)
		if err != nil {
			return nil, err
		}
		out.vals[k] = mv
	}
	return out, nil
}

func (c *schemaCompiler) mergeKey(key string, a, b interface{}) (interface{}, error) {
	switch key {
	case "minimum", "exclusiveMinimum", "minLength", "minItems":
		return maxNumber(a, b)
	case "maximum", "exclusiveMaximum", "maxLength", "maxItems":
		return minNumber(a, b)
	case "required":
		al, aok := a.([]interface{})
		bl, bok := b.([]interface{})
		if !aok || !bok {
			return nil, fmt.Errorf("required must be an array")
		}
		seen := make(map[interface{}]bool)
		var union []interface{}
		for _, v := range append(append([]interface{}{}, al...), bl...) {
			if !seen[v] {
				seen[v] = true
				union = append(union, v)
			}
		}
		return union, nil
	case "properties", "items":
		ao, aok := a.(*object)
		bo, bok := b.(*object)
		if key == "items" {
			if aok && bok {
				return c.mergeTwo(ao, bo)
			}
			return nil, fmt.Errorf("cannot merge items schemas in allOf")
		}
		if !aok || !bok {
			return nil, fmt.Errorf("properties must be an object")
		}
		out := &object{vals: map[string]interface{}{}}
		for _, k := range ao.keys {
			out.keys = append(out.keys, k)
			out.vals[k] = ao.vals[k]
		}
		for _, k := range bo.keys {
			bv := bo.vals[k]
			if av, has := out.vals[k]; has {
				avo, aIsObj := av.(*object)
				bvo, bIsObj := bv.(*object)
				if !aIsObj || !bIsObj {
					return nil, fmt.Errorf("conflicting definitions for property %q in allOf", k)
				}
				m, err := c.mergeTwo(avo, bvo)
				if err != nil {
					return nil, err
				}
				out.vals[k] = m
				continue
			}
			out.keys = append(out.keys, k)
			out.vals[k] = bv
		}
		return out, nil
	case "type", "pattern", "format", "const":
		if serialize(a) != serialize(b) {
			return nil, fmt.Errorf("conflicting %q in allOf: %s vs %s", key, serialize(a), serialize(b))
		}
		return a, nil
	case "additionalProperties":
		// the stricter side wins
		if a == false || b == false {
			return false, nil
		}
		return a, nil
	}
	if serialize(a) == serialize(b) {
		return a, nil
	}
	return nil, fmt.Errorf("cannot merge %q in allOf", key)
}

func maxNumber(a, b interface{}) (interface{}, error) {
	af, bf, err := twoFloats(a, b)
	if err != nil {
		return nil, err
	}
	if af >= bf {
		return a, nil
	}
	return b, nil
}

func minNumber(a, b interface{}) (interface{}, error) {
	af, bf, err := twoFloats(a, b)
	if err != nil {
		return nil, err
	}
	if af <= bf {
		return a, nil
	}
	return b, nil
}

func twoFloats(a, b interface{}) (float64, float64, error) {
	an, aok := a.(json.Number)
	bn, bok := b.(json.Number)
	if !aok || !bok {
		return 0, 0, fmt.Errorf("numeric bound is not a number")
	}
	af, err := an.Float64()
	if err != nil {
		return 0, 0, err
	}
	bf, err := bn.Float64()
	if err != nil {
		return 0, 0, err
	}
	return af, bf, nil
}
