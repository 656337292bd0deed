package larkc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

// Compiler lowers a parsed grammar source into the internal representation.
// Terminals compile to interned regexes, rules to context-free productions;
// anonymous literals become terminals of their own, deduplicated by source
// text. Helper non-terminals carry the repetition operators.
type compiler struct {
	b          *grammar.Builder
	eng        *rx.Engine
	prefix     string
	resolve    func(string) (string, error)
	rules      map[string]RuleDef
	tokens     map[string]TokenDef
	tokenRx    map[string]rx.NodeId
	inProgress map[string]bool
	anon       map[string]string // source text → declared class name
	classNames map[string]bool
	helpers    int
}

// CompileInto lowers a Lark-like grammar source into the given builder. All
// symbol names are prefixed (for subgrammar composition); the name of the
// grammar's start symbol is returned. resolve maps grammar references
// (@name atoms) to the start symbol of another subgrammar; it may be nil.
func CompileInto(b *grammar.Builder, eng *rx.Engine, prefix, src string,
	resolve func(string) (string, error)) (string, error) {
	//
	items, err := parseSource(src)
	if err != nil {
		return "", steer.WrapError(steer.GrammarParseError, "%v", err)
	}
	c := &compiler{
		b:          b,
		eng:        eng,
		prefix:     prefix,
		resolve:    resolve,
		rules:      make(map[string]RuleDef),
		tokens:     make(map[string]TokenDef),
		tokenRx:    make(map[string]rx.NodeId),
		inProgress: make(map[string]bool),
		anon:       make(map[string]string),
		classNames: make(map[string]bool),
	}
	if err := c.execute(items); err != nil {
		if _, ok := err.(*steer.Error); ok {
			return "", err
		}
		return "", steer.WrapError(steer.GrammarParseError, "%v", err)
	}
	return c.prefix + "start", nil
}

func (c *compiler) execute(items []Item) error {
	// pass 1: index definitions, expand imports
	for _, item := range items {
		switch it := item.(type) {
		case RuleDef:
			if _, dup := c.rules[it.Name]; dup {
				c.rules[it.Name] = RuleDef{
					Name:  it.Name,
					Attrs: c.rules[it.Name].Attrs,
					Exp:   append(c.rules[it.Name].Exp, it.Exp...),
					Line:  c.rules[it.Name].Line,
				}
				continue
			}
			c.rules[it.Name] = it
		case TokenDef:
			if _, dup := c.tokens[it.Name]; dup {
				return fmt.Errorf("line %d: duplicate terminal %q", it.Line, it.Name)
			}
			c.tokens[it.Name] = it
		case ImportDef:
			name, def, err := commonImport(it)
			if err != nil {
				return err
			}
			if _, dup := c.tokens[name]; dup {
				return fmt.Errorf("line %d: duplicate terminal %q", it.Line, name)
			}
			c.tokens[name] = def
		}
	}
	if _, ok := c.rules["start"]; !ok {
		return fmt.Errorf("grammar has no start rule")
	}
	// pass 2: declare terminal classes, in source order
	for _, item := range items {
		switch it := item.(type) {
		case TokenDef:
			if err := c.declareToken(it.Name); err != nil {
				return err
			}
		case ImportDef:
			name, _, err := commonImport(it)
			if err != nil {
				return err
			}
			if err := c.declareToken(name); err != nil {
				return err
			}
		}
	}
	// pass 3: %ignore statements become the skip regex
	skip := rx.NoNode
	for _, item := range items {
		ig, ok := item.(IgnoreDef)
		if !ok {
			continue
		}
		id, err := c.tokenExpansions(ig.Exp)
		if err != nil {
			return err
		}
		if skip == rx.NoNode {
			skip = id
		} else {
			skip = c.eng.Union(skip, id)
		}
	}
	if skip != rx.NoNode {
		c.b.SetSkip(skip)
	}
	// pass 4: lower rules, in source order
	for _, item := range items {
		rd, ok := item.(RuleDef)
		if !ok {
			continue
		}
		merged, pending := c.rules[rd.Name]
		if !pending { // merged continuation defs compile once
			continue
		}
		if err := c.doRule(merged); err != nil {
			return err
		}
		delete(c.rules, rd.Name)
	}
	return nil
}

// commonImport resolves %import common.NAME into a synthetic TokenDef.
func commonImport(it ImportDef) (string, TokenDef, error) {
	parts := strings.Split(it.Path, ".")
	if len(parts) != 2 || parts[0] != "common" {
		return "", TokenDef{}, fmt.Errorf("line %d: cannot import %q, only common.* is available",
			it.Line, it.Path)
	}
	pat, ok := lookupCommonRegex(parts[1])
	if !ok {
		return "", TokenDef{}, fmt.Errorf("line %d: unknown common terminal %q", it.Line, parts[1])
	}
	name := parts[1]
	if it.Alias != "" {
		name = it.Alias
	}
	def := TokenDef{
		Name: name,
		Exp:  Expansions{{Atom{Value: RegexLit{Pattern: pat}}}},
		Line: it.Line,
	}
	return name, def, nil
}

// --- Terminal lowering ------------------------------------------------------

// doToken compiles the regex of a named terminal, detecting circular
// definitions.
func (c *compiler) doToken(name string) (rx.NodeId, error) {
	if id, ok := c.tokenRx[name]; ok {
		return id, nil
	}
	if c.inProgress[name] {
		return rx.NoNode, fmt.Errorf("circular reference in token %q definition", name)
	}
	def, ok := c.tokens[name]
	if !ok {
		return rx.NoNode, fmt.Errorf("token %q not found", name)
	}
	c.inProgress[name] = true
	id, err := c.tokenExpansions(def.Exp)
	delete(c.inProgress, name)
	if err != nil {
		return rx.NoNode, err
	}
	c.tokenRx[name] = id
	return id, nil
}

// declareToken declares the lexeme class of a named terminal, applying its
// attributes.
func (c *compiler) declareToken(name string) error {
	id, err := c.doToken(name)
	if err != nil {
		return err
	}
	cls := c.b.DeclareTerminal(c.prefix+name, id)
	c.classNames[c.prefix+name] = true
	return c.applyAttrs(cls, c.tokens[name].Attrs, name)
}

// tokenExpansions lowers expansions in terminal context to a regex.
func (c *compiler) tokenExpansions(exp Expansions) (rx.NodeId, error) {
	alts := make([]rx.NodeId, 0, len(exp))
	for _, alt := range exp {
		seq := make([]rx.NodeId, 0, len(alt))
		for _, atom := range alt {
			id, err := c.tokenAtom(atom.Value)
			if err != nil {
				return rx.NoNode, err
			}
			switch atom.Rep {
			case RepOpt:
				id = c.eng.Optional(id)
			case RepStar:
				id = c.eng.Star(id)
			case RepPlus:
				id = c.eng.Concat(id, c.eng.Star(id))
			case RepRange:
				id = c.eng.Repeat(id, atom.RepMin, atom.RepMax)
			}
			seq = append(seq, id)
		}
		alts = append(alts, c.eng.Concat(seq...))
	}
	return c.eng.Union(alts...), nil
}

func (c *compiler) tokenAtom(v Value) (rx.NodeId, error) {
	switch val := v.(type) {
	case StringLit:
		return c.stringRx(val)
	case RegexLit:
		return c.regexRx(val)
	case RangeLit:
		return c.rangeRx(val)
	case NameRef:
		if isTokenName(val.Name) {
			return c.doToken(val.Name)
		}
		return rx.NoNode, fmt.Errorf("rule %q cannot be used inside a terminal", val.Name)
	case GrammarRef:
		return rx.NoNode, fmt.Errorf("grammar references (like %q) cannot be used as terminals",
			"@"+val.Ref)
	case Group:
		return c.tokenExpansions(val.Exp)
	case Maybe:
		id, err := c.tokenExpansions(val.Exp)
		if err != nil {
			return rx.NoNode, err
		}
		return c.eng.Optional(id), nil
	}
	return rx.NoNode, fmt.Errorf("unsupported atom in terminal context")
}

func (c *compiler) stringRx(val StringLit) (rx.NodeId, error) {
	if !val.Insensitive {
		return c.eng.Literal([]byte(val.Text)), nil
	}
	// fold ASCII letters; other bytes match verbatim
	seq := make([]rx.NodeId, 0, len(val.Text))
	for i := 0; i < len(val.Text); i++ {
		b := val.Text[i]
		switch {
		case b >= 'a' && b <= 'z':
			var set rx.ByteSet
			set.Add(b)
			set.Add(b - 'a' + 'A')
			seq = append(seq, c.eng.Class(set))
		case b >= 'A' && b <= 'Z':
			var set rx.ByteSet
			set.Add(b)
			set.Add(b - 'A' + 'a')
			seq = append(seq, c.eng.Class(set))
		default:
			seq = append(seq, c.eng.Byte(b))
		}
	}
	return c.eng.Concat(seq...), nil
}

func (c *compiler) regexRx(val RegexLit) (rx.NodeId, error) {
	var flags strings.Builder
	for _, f := range val.Flags {
		switch f {
		case 'l':
			return rx.NoNode, fmt.Errorf("l-flag is not supported in regexes")
		case 'i', 's', 'm':
			flags.WriteRune(f)
		default:
			return rx.NoNode, fmt.Errorf("unsupported regex flag %q", string(f))
		}
	}
	pat := val.Pattern
	if flags.Len() > 0 {
		pat = "(?" + flags.String() + ")" + pat
	}
	id, err := c.eng.ParsePattern(pat)
	if err != nil {
		return rx.NoNode, fmt.Errorf("invalid regex /%s/: %v", val.Pattern, err)
	}
	return id, nil
}

func (c *compiler) rangeRx(val RangeLit) (rx.NodeId, error) {
	lo := []rune(val.Lo)
	hi := []rune(val.Hi)
	if len(lo) != 1 {
		return rx.NoNode, fmt.Errorf("range start must be a single character")
	}
	if len(hi) != 1 {
		return rx.NoNode, fmt.Errorf("range end must be a single character")
	}
	if lo[0] > hi[0] {
		return rx.NoNode, fmt.Errorf("invalid range order: %q..%q", val.Lo, val.Hi)
	}
	return c.eng.RuneRange(lo[0], hi[0]), nil
}

// --- Rule lowering ----------------------------------------------------------

// doRule lowers all alternations of a parser rule.
func (c *compiler) doRule(rd RuleDef) error {
	if len(rd.Attrs) > 0 {
		return c.doAttributedRule(rd)
	}
	name := c.prefix + rd.Name
	for _, alt := range rd.Exp {
		rb := c.b.LHS(name)
		for _, atom := range alt {
			if err := c.appendAtom(rb, atom); err != nil {
				return fmt.Errorf("line %d: %v", rd.Line, err)
			}
		}
		rb.End()
	}
	return nil
}

// appendAtom lowers one atom of a rule body onto the rule being built,
// introducing helper non-terminals for groups and repetitions.
func (c *compiler) appendAtom(rb *grammar.RuleBuilder, atom Atom) error {
	sym, err := c.atomSymbol(atom.Value)
	if err != nil {
		return err
	}
	switch atom.Rep {
	case RepNone:
		rb.Sym(sym)
	case RepOpt:
		h := c.helperName()
		c.b.LHS(h).Sym(sym).End()
		c.b.LHS(h).End()
		rb.N(h)
	case RepStar:
		h := c.helperName()
		c.b.LHS(h).N(h).Sym(sym).End()
		c.b.LHS(h).End()
		rb.N(h)
	case RepPlus:
		h := c.helperName()
		c.b.LHS(h).N(h).Sym(sym).End()
		c.b.LHS(h).Sym(sym).End()
		rb.N(h)
	case RepRange:
		h := c.helperName()
		if atom.RepMax < 0 {
			star := c.helperName()
			c.b.LHS(star).N(star).Sym(sym).End()
			c.b.LHS(star).End()
			hb := c.b.LHS(h)
			for i := 0; i < atom.RepMin; i++ {
				hb.Sym(sym)
			}
			hb.N(star).End()
		} else {
			// one alternative per admitted count
			for k := atom.RepMin; k <= atom.RepMax; k++ {
				hb := c.b.LHS(h)
				for i := 0; i < k; i++ {
					hb.Sym(sym)
				}
				hb.End()
			}
		}
		rb.N(h)
	}
	return nil
}

// atomSymbol resolves an atom value to a grammar symbol.
func (c *compiler) atomSymbol(v Value) (*grammar.Symbol, error) {
	switch val := v.(type) {
	case NameRef:
		if isTokenName(val.Name) {
			if err := c.needToken(val.Name); err != nil {
				return nil, err
			}
			return c.symbolByName(c.prefix + val.Name)
		}
		if _, ok := c.rules[val.Name]; !ok {
			if sym, err := c.symbolByName(c.prefix + val.Name); err == nil {
				return sym, nil // rule already compiled
			}
			return nil, fmt.Errorf("rule %q not found", val.Name)
		}
		return c.nonterminal(c.prefix + val.Name), nil
	case StringLit:
		id, err := c.stringRx(val)
		if err != nil {
			return nil, err
		}
		return c.anonTerminal(val.Text, id)
	case RegexLit:
		id, err := c.regexRx(val)
		if err != nil {
			return nil, err
		}
		return c.anonTerminal("/"+val.Pattern+"/"+val.Flags, id)
	case RangeLit:
		id, err := c.rangeRx(val)
		if err != nil {
			return nil, err
		}
		return c.anonTerminal(val.Lo+".."+val.Hi, id)
	case GrammarRef:
		if c.resolve == nil {
			return nil, fmt.Errorf("grammar reference @%s outside a top-level grammar", val.Ref)
		}
		start, err := c.resolve(val.Ref)
		if err != nil {
			return nil, err
		}
		return c.nonterminal(start), nil
	case Group:
		h := c.helperName()
		for _, alt := range val.Exp {
			rb := c.b.LHS(h)
			for _, atom := range alt {
				if err := c.appendAtom(rb, atom); err != nil {
					return nil, err
				}
			}
			rb.End()
		}
		return c.nonterminal(h), nil
	case Maybe:
		h := c.helperName()
		for _, alt := range val.Exp {
			rb := c.b.LHS(h)
			for _, atom := range alt {
				if err := c.appendAtom(rb, atom); err != nil {
					return nil, err
				}
			}
			rb.End()
		}
		c.b.LHS(h).End()
		return c.nonterminal(h), nil
	}
	return nil, fmt.Errorf("unsupported atom in rule context")
}

// needToken makes sure the class of a named terminal has been declared.
func (c *compiler) needToken(name string) error {
	if c.classNames[c.prefix+name] {
		return nil
	}
	if _, ok := c.tokens[name]; !ok {
		return fmt.Errorf("token %q not found", name)
	}
	return c.declareToken(name)
}

// anonTerminal declares (or reuses) a terminal class for an anonymous
// literal in a rule body.
func (c *compiler) anonTerminal(text string, id rx.NodeId) (*grammar.Symbol, error) {
	if name, ok := c.anon[text]; ok {
		return c.symbolByName(name)
	}
	name := c.prefix + text
	if c.classNames[name] {
		name = fmt.Sprintf("%s__anon_%d", c.prefix, len(c.anon))
	}
	c.b.DeclareTerminal(name, id)
	c.classNames[name] = true
	c.anon[text] = name
	return c.symbolByName(name)
}

func (c *compiler) helperName() string {
	c.helpers++
	return fmt.Sprintf("%s_h%d", c.prefix, c.helpers)
}

// nonterminal returns the builder's non-terminal symbol of the given name.
func (c *compiler) nonterminal(name string) *grammar.Symbol {
	return c.b.Nonterminal(name)
}

func (c *compiler) symbolByName(name string) (*grammar.Symbol, error) {
	if sym := c.b.Symbol(name); sym != nil {
		return sym, nil
	}
	return nil, fmt.Errorf("internal: symbol %q vanished", name)
}

func isTokenName(name string) bool {
	return name[0] >= 'A' && name[0] <= 'Z' || name[0] == '_' && len(name) > 1 && name[1] >= 'A' && name[1] <= 'Z'
}

// --- Attributes -------------------------------------------------------------

// doAttributedRule lowers a rule carrying bracketed attributes. The
// attributes configure the lexeme the rule generates, so the rule body
// must lower to a single regex; it gets a lexeme class of its own, since
// a referenced named terminal may be shared by rules with different
// attributes.
func (c *compiler) doAttributedRule(rd RuleDef) error {
	if len(rd.Exp) != 1 || len(rd.Exp[0]) != 1 || rd.Exp[0][0].Rep != RepNone {
		return fmt.Errorf("line %d: attributes on rule %q require a single-terminal body",
			rd.Line, rd.Name)
	}
	id, err := c.tokenAtom(rd.Exp[0][0].Value)
	if err != nil {
		return fmt.Errorf("line %d: %v", rd.Line, err)
	}
	name := c.prefix + rd.Name + "_lex"
	if c.classNames[name] {
		name = fmt.Sprintf("%s__anon_%d", c.prefix, len(c.anon))
	}
	cls := c.b.DeclareTerminal(name, id)
	c.classNames[name] = true
	if err := c.applyAttrs(cls, rd.Attrs, rd.Name); err != nil {
		return fmt.Errorf("line %d: %v", rd.Line, err)
	}
	c.b.LHS(c.prefix + rd.Name).Sym(c.b.Symbol(name)).End()
	return nil
}

// applyAttrs decorates a lexeme class. Unknown attributes are rejected at
// compile time.
func (c *compiler) applyAttrs(cls *grammar.LexemeClass, attrs []Attr, owner string) error {
	for _, attr := range attrs {
		switch attr.Name {
		case "capture":
			if attr.Value == "" {
				cls.Capture = owner
			} else {
				cls.Capture = attr.Value
			}
		case "max_tokens":
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid max_tokens value %q", attr.Value)
			}
			cls.MaxTokens = n
		case "temperature":
			f, err := strconv.ParseFloat(attr.Value, 32)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid temperature value %q", attr.Value)
			}
			cls.Temperature = float32(f)
		case "lazy":
			cls.Lazy = true
		case "contextual":
			cls.Contextual = true
		case "stop":
			id, err := c.attrRx(attr.Value)
			if err != nil {
				return err
			}
			cls.Stop = id
			cls.Lazy = true // generate-until-stop terminals emit at the first match
		default:
			return fmt.Errorf("unknown attribute %q on %q", attr.Name, owner)
		}
	}
	return nil
}

// attrRx compiles a stop= attribute value, either a string or a regex
// literal.
func (c *compiler) attrRx(value string) (rx.NodeId, error) {
	if value == "" {
		return rx.NoNode, fmt.Errorf("stop attribute requires a value")
	}
	if value[0] == '"' {
		id, err := c.stringRx(stringLit(value))
		if err != nil {
			return rx.NoNode, err
		}
		return id, nil
	}
	if value[0] == '/' {
		pat := value[1:]
		if i := strings.LastIndexByte(pat, '/'); i >= 0 {
			pat = pat[:i]
		}
		id, err := c.eng.ParsePattern(pat)
		if err != nil {
			return rx.NoNode, fmt.Errorf("invalid stop regex %s: %v", value, err)
		}
		return id, nil
	}
	return rx.NoNode, fmt.Errorf("stop attribute must be a string or regex literal")
}
