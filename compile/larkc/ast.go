/*
Package larkc compiles a Lark-like surface grammar syntax into the internal
grammar representation.

The surface syntax covers rules (lower-case names), terminals (upper-case
names), string and regex literals, character ranges, grouping, the usual
repetition operators, per-rule attributes in brackets, %ignore, and
%import of named common terminals:

	start: value+
	value: object | STRING
	STRING[capture=str]: /"[^"]*"/
	%import common.WS
	%ignore WS

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package larkc

import "github.com/npillmayer/schuko/tracing"

// tracer traces with key 'steer.compile'.
func tracer() tracing.Trace {
	return tracing.Select("steer.compile")
}

// --- Surface AST ------------------------------------------------------------

// Item is one top-level statement of a grammar source.
type Item interface{ item() }

// RuleDef is a parser rule:  name[attrs]: expansions
type RuleDef struct {
	Name  string
	Attrs []Attr
	Exp   Expansions
	Line  int
}

// TokenDef is a terminal definition:  NAME[attrs]: expansions
type TokenDef struct {
	Name  string
	Attrs []Attr
	Exp   Expansions
	Line  int
}

// IgnoreDef is a %ignore statement.
type IgnoreDef struct {
	Exp  Expansions
	Line int
}

// ImportDef is a %import statement, e.g. %import common.INT.
type ImportDef struct {
	Path  string // dotted path, e.g. "common.INT"
	Alias string // alias after ->, or "" for the last path element
	Line  int
}

func (RuleDef) item()   {}
func (TokenDef) item()  {}
func (IgnoreDef) item() {}
func (ImportDef) item() {}

// Attr is a per-rule attribute in brackets, e.g. max_tokens=32 or capture.
type Attr struct {
	Name  string
	Value string // raw value text, "" for bare attributes
}

// Expansions is an alternation of sequences.
type Expansions []Alternation

// Alternation is a sequence of (possibly repeat-suffixed) atoms.
type Alternation []Atom

// Atom is one expression atom with an optional repetition suffix.
type Atom struct {
	Value  Value
	Rep    RepKind
	RepMin int // for RepRange
	RepMax int // for RepRange, -1 = unbounded
}

// RepKind is a repetition suffix kind.
type RepKind int

// Repetition suffixes.
const (
	RepNone  RepKind = iota
	RepOpt           // ?
	RepStar          // *
	RepPlus          // +
	RepRange         // {n,m}
)

// Value is the payload of an atom.
type Value interface{ value() }

// NameRef references a rule or terminal by name.
type NameRef struct {
	Name string
}

// StringLit is a quoted string literal, optionally case-insensitive.
type StringLit struct {
	Text        string // unescaped text
	Insensitive bool
}

// RegexLit is a /…/ literal with flags.
type RegexLit struct {
	Pattern string
	Flags   string
}

// RangeLit is a character range "a".."z".
type RangeLit struct {
	Lo string
	Hi string
}

// GrammarRef references another subgrammar, e.g. @schema.
type GrammarRef struct {
	Ref string
}

// Group is a parenthesized sub-expression.
type Group struct {
	Exp Expansions
}

// Maybe is a bracketed optional sub-expression.
type Maybe struct {
	Exp Expansions
}

func (NameRef) value()    {}
func (StringLit) value()  {}
func (RegexLit) value()   {}
func (RangeLit) value()   {}
func (GrammarRef) value() {}
func (Group) value()      {}
func (Maybe) value()      {}
