package larkc

import (
	"fmt"
	"strconv"
	"strings"
)

// parseSource parses a grammar source into a list of top-level items. The
// parser is a plain recursive descent over the scanned tokens; alternation
// continuation lines starting with | belong to the preceding statement.
type sourceParser struct {
	toks []token
	pos  int
}

func parseSource(src string) ([]Item, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &sourceParser{toks: toks}
	var items []Item
	for {
		p.skipNewlines()
		if p.peek().typ == tokEOF {
			return items, nil
		}
		item, err := p.statement()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (p *sourceParser) peek() token {
	return p.toks[p.pos]
}

func (p *sourceParser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *sourceParser) expect(typ int, what string) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, fmt.Errorf("line %d: expected %s, found %s", t.line, what, t)
	}
	return t, nil
}

func (p *sourceParser) skipNewlines() {
	for p.peek().typ == tokNewline {
		p.next()
	}
}

// atExpansionEnd is true at a newline NOT followed by a continuation pipe.
func (p *sourceParser) atExpansionEnd() bool {
	if p.peek().typ == tokEOF {
		return true
	}
	if p.peek().typ != tokNewline {
		return false
	}
	i := p.pos
	for i < len(p.toks) && p.toks[i].typ == tokNewline {
		i++
	}
	return p.toks[i].typ != tokPipe
}

func (p *sourceParser) statement() (Item, error) {
	t := p.next()
	switch t.typ {
	case tokImport:
		return p.importDef(t)
	case tokIgnore:
		exp, err := p.expansions(nil)
		if err != nil {
			return nil, err
		}
		return IgnoreDef{Exp: exp, Line: t.line}, nil
	case tokRule, tokToken:
		attrs, err := p.attrs()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		exp, err := p.expansions(nil)
		if err != nil {
			return nil, err
		}
		if t.typ == tokRule {
			return RuleDef{Name: t.text, Attrs: attrs, Exp: exp, Line: t.line}, nil
		}
		return TokenDef{Name: t.text, Attrs: attrs, Exp: exp, Line: t.line}, nil
	}
	return nil, fmt.Errorf("line %d: expected a rule, terminal or directive, found %s", t.line, t)
}

func (p *sourceParser) importDef(t token) (Item, error) {
	var path strings.Builder
	name, err := p.expect(tokRule, "an import path")
	if err != nil {
		return nil, err
	}
	path.WriteString(name.text)
	for p.peek().typ == tokDot {
		p.next()
		part := p.next()
		if part.typ != tokRule && part.typ != tokToken {
			return nil, fmt.Errorf("line %d: expected name after '.', found %s", part.line, part)
		}
		path.WriteString(".")
		path.WriteString(part.text)
	}
	alias := ""
	if p.peek().typ == tokArrow {
		p.next()
		a, err := p.expect(tokToken, "an alias name")
		if err != nil {
			return nil, err
		}
		alias = a.text
	}
	return ImportDef{Path: path.String(), Alias: alias, Line: t.line}, nil
}

// attrs parses an optional attribute list in brackets.
func (p *sourceParser) attrs() ([]Attr, error) {
	if p.peek().typ != tokLbracket {
		return nil, nil
	}
	p.next()
	var attrs []Attr
	for {
		name := p.next()
		if name.typ != tokRule && name.typ != tokToken {
			return nil, fmt.Errorf("line %d: expected attribute name, found %s", name.line, name)
		}
		attr := Attr{Name: name.text}
		if p.peek().typ == tokEquals {
			p.next()
			val := p.next()
			switch val.typ {
			case tokNumber, tokRule, tokToken, tokString, tokRegex:
				attr.Value = val.text
			default:
				return nil, fmt.Errorf("line %d: expected attribute value, found %s", val.line, val)
			}
			// join decimal fractions, which scan as NUMBER '.' NUMBER
			if val.typ == tokNumber && p.peek().typ == tokDot {
				p.next()
				frac, err := p.expect(tokNumber, "a fraction")
				if err != nil {
					return nil, err
				}
				attr.Value += "." + frac.text
			}
		}
		attrs = append(attrs, attr)
		sep := p.next()
		if sep.typ == tokRbracket {
			return attrs, nil
		}
		if sep.typ != tokComma {
			return nil, fmt.Errorf("line %d: expected ',' or ']' in attribute list, found %s", sep.line, sep)
		}
	}
}

// expansions parses  alternation (| alternation)*  up to an expansion end.
// stop, if non-zero, ends the expansion at a closing delimiter.
func (p *sourceParser) expansions(stop []int) (Expansions, error) {
	var exp Expansions
	for {
		alt, err := p.alternation(stop)
		if err != nil {
			return nil, err
		}
		exp = append(exp, alt)
		if p.atExpansionEnd() {
			return exp, nil
		}
		if isStop(p.peek().typ, stop) {
			return exp, nil
		}
		p.skipNewlines()
		if p.peek().typ == tokPipe {
			p.next()
			continue
		}
		return nil, fmt.Errorf("line %d: expected '|' or end of rule, found %s", p.peek().line, p.peek())
	}
}

func isStop(typ int, stop []int) bool {
	for _, s := range stop {
		if typ == s {
			return true
		}
	}
	return false
}

// alternation parses a sequence of suffixed atoms. An empty alternation is
// allowed and denotes ε.
func (p *sourceParser) alternation(stop []int) (Alternation, error) {
	alt := Alternation{}
	for {
		t := p.peek()
		if t.typ == tokNewline || t.typ == tokEOF || t.typ == tokPipe || isStop(t.typ, stop) {
			return alt, nil
		}
		atom, err := p.atom()
		if err != nil {
			return nil, err
		}
		if err := p.repSuffix(&atom); err != nil {
			return nil, err
		}
		alt = append(alt, atom)
	}
}

func (p *sourceParser) atom() (Atom, error) {
	t := p.next()
	switch t.typ {
	case tokRule, tokToken:
		return Atom{Value: NameRef{Name: t.text}}, nil
	case tokGrammar:
		return Atom{Value: GrammarRef{Ref: t.text[1:]}}, nil
	case tokString:
		lit := stringLit(t.text)
		if p.peek().typ == tokDotDot {
			p.next()
			hi, err := p.expect(tokString, "a range end string")
			if err != nil {
				return Atom{}, err
			}
			return Atom{Value: RangeLit{Lo: lit.Text, Hi: stringLit(hi.text).Text}}, nil
		}
		return Atom{Value: lit}, nil
	case tokRegex:
		pat := t.text[1:]
		flags := ""
		if i := strings.LastIndexByte(pat, '/'); i >= 0 {
			flags = pat[i+1:]
			pat = pat[:i]
		}
		return Atom{Value: RegexLit{Pattern: pat, Flags: flags}}, nil
	case tokLparen:
		exp, err := p.expansions([]int{tokRparen})
		if err != nil {
			return Atom{}, err
		}
		if _, err := p.expect(tokRparen, "')'"); err != nil {
			return Atom{}, err
		}
		return Atom{Value: Group{Exp: exp}}, nil
	case tokLbracket:
		exp, err := p.expansions([]int{tokRbracket})
		if err != nil {
			return Atom{}, err
		}
		if _, err := p.expect(tokRbracket, "']'"); err != nil {
			return Atom{}, err
		}
		return Atom{Value: Maybe{Exp: exp}}, nil
	}
	return Atom{}, fmt.Errorf("line %d: unexpected %s in expansion", t.line, t)
}

func stringLit(text string) StringLit {
	insensitive := false
	if strings.HasSuffix(text, "i") {
		insensitive = true
		text = text[:len(text)-1]
	}
	return StringLit{Text: unquoteString(text), Insensitive: insensitive}
}

// repSuffix parses an optional repetition suffix: ? * + or {n}, {n,}, {n,m}.
func (p *sourceParser) repSuffix(atom *Atom) error {
	switch p.peek().typ {
	case tokQuest:
		p.next()
		atom.Rep = RepOpt
	case tokStar:
		p.next()
		atom.Rep = RepStar
	case tokPlus:
		p.next()
		atom.Rep = RepPlus
	case tokLbrace:
		open := p.next()
		min, err := p.expect(tokNumber, "a repeat count")
		if err != nil {
			return err
		}
		lo, _ := strconv.Atoi(min.text)
		hi := lo
		if p.peek().typ == tokComma {
			p.next()
			hi = -1
			if p.peek().typ == tokNumber {
				h, _ := strconv.Atoi(p.next().text)
				hi = h
			}
		}
		if _, err := p.expect(tokRbrace, "'}'"); err != nil {
			return err
		}
		if hi >= 0 && hi < lo {
			return fmt.Errorf("line %d: invalid repeat bounds {%d,%d}", open.line, lo, hi)
		}
		atom.Rep = RepRange
		atom.RepMin = lo
		atom.RepMax = hi
	}
	return nil
}
