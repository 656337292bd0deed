/*
Package grammar holds the internal grammar representation of the engine:
context-free rules over terminal and non-terminal symbols, where terminals
reference lexeme classes carrying byte-level regexes and per-lexeme
properties.

Grammars are constructed through a Builder and are immutable afterwards;
one compiled grammar may be shared by any number of parsers.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package grammar

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer/rx"
)

// tracer traces with key 'steer.grammar'.
func tracer() tracing.Trace {
	return tracing.Select("steer.grammar")
}

// --- Symbols ----------------------------------------------------------------

// Symbol is a grammar symbol, either a terminal referencing a lexeme class
// or a non-terminal.
type Symbol struct {
	Name   string
	Class  int // lexeme class index for terminals, -1 for non-terminals
	serial int // creation order, used for stable dumps
}

// IsTerminal returns true if the symbol references a lexeme class.
func (A *Symbol) IsTerminal() bool {
	return A.Class >= 0
}

func (A *Symbol) String() string {
	if A.IsTerminal() {
		return A.Name
	}
	return "<" + A.Name + ">"
}

// --- Lexeme classes ---------------------------------------------------------

// NoTemperature marks a lexeme class without a temperature hint.
const NoTemperature float32 = -1

// LexemeClass is a declared terminal: a body regex plus auxiliary
// properties. The class index (its position in declaration order) doubles
// as the deterministic tie-break: when two classes match the same lexeme,
// the lower index wins.
type LexemeClass struct {
	Index       int
	Name        string
	Body        rx.NodeId // regex for the lexeme body
	Stop        rx.NodeId // optional stop regex ("generate until"), NoNode if absent
	Lazy        bool      // emit at the first nullable state instead of munching on
	Contextual  bool      // trailing context matters for this terminal
	Capture     string    // capture name for progress records, "" if none
	MaxTokens   int       // cap on tokens spent inside one lexeme, 0 = unlimited
	Temperature float32   // per-lexeme sampling temperature hint, NoTemperature if unset
}

// --- Rules and items --------------------------------------------------------

// Rule is a context-free production A → α₁ … αₖ. An empty right-hand side
// denotes an ε-production.
type Rule struct {
	Serial int // order of appearance in the grammar
	LHS    *Symbol
	rhs    []*Symbol
}

// RHS returns the right-hand side of the rule.
func (r *Rule) RHS() []*Symbol {
	return r.rhs
}

// IsEpsilon returns true for ε-productions.
func (r *Rule) IsEpsilon() bool {
	return len(r.rhs) == 0
}

func (r *Rule) String() string {
	s := r.LHS.Name + " →"
	for _, sym := range r.rhs {
		s += " " + sym.String()
	}
	if r.IsEpsilon() {
		s += " ε"
	}
	return s
}

// Item is an Earley item: a rule with a dot position and an origin index,
// usually written [A→α•β, j]. Items are value types; identity of the
// contained rule pointer plus dot and origin decides equality.
type Item struct {
	rule   *Rule
	dot    int
	Origin uint64
}

// NullItem is the invalid item.
var NullItem = Item{}

// StartItem returns the dot-at-front item for a rule.
func StartItem(r *Rule) Item {
	return Item{rule: r, dot: 0}
}

// Rule returns the rule of the item.
func (i Item) Rule() *Rule {
	return i.rule
}

// Dot returns the dot position of the item.
func (i Item) Dot() int {
	return i.dot
}

// PeekSymbol returns the symbol right after the dot, or nil if the dot is
// behind the complete right-hand side.
func (i Item) PeekSymbol() *Symbol {
	if i.rule == nil || i.dot >= len(i.rule.rhs) {
		return nil
	}
	return i.rule.rhs[i.dot]
}

// Completed returns true if the dot is behind the complete right-hand side.
func (i Item) Completed() bool {
	return i.rule != nil && i.dot >= len(i.rule.rhs)
}

// Advance moves the dot one symbol to the right. Advancing past the end
// returns NullItem.
func (i Item) Advance() Item {
	if i.rule == nil || i.dot >= len(i.rule.rhs) {
		return NullItem
	}
	return Item{rule: i.rule, dot: i.dot + 1, Origin: i.Origin}
}

func (i Item) String() string {
	if i.rule == nil {
		return "[<null>]"
	}
	s := "[" + i.rule.LHS.Name + " →"
	for k, sym := range i.rule.rhs {
		if k == i.dot {
			s += " •"
		}
		s += " " + sym.String()
	}
	if i.dot >= len(i.rule.rhs) {
		s += " •"
	}
	return fmt.Sprintf("%s, %d]", s, i.Origin)
}

// --- Grammar ----------------------------------------------------------------

// Grammar is the compiled, immutable grammar: rules, the symbol registry,
// the lexeme classes with their regexes, a start symbol and an optional
// skip regex woven in between lexemes. Rule 0 is always the augmented start
// rule S′ → S.
type Grammar struct {
	Name    string
	rules   []*Rule
	symbols *treemap.Map // name → *Symbol
	symlist []*Symbol    // symbols in creation order
	classes []*LexemeClass
	start   *Symbol
	Skip    rx.NodeId // regex for ignorable byte runs, rx.NoNode if none
	rxe     *rx.Engine
	epsilon map[*Symbol]bool // non-terminals deriving ε
}

// Rx returns the regex engine all lexeme regexes are interned in.
func (g *Grammar) Rx() *rx.Engine {
	return g.rxe
}

// Rule returns rule number n. Rule(0) is the augmented start rule.
func (g *Grammar) Rule(n int) *Rule {
	if n < 0 || n >= len(g.rules) {
		return nil
	}
	return g.rules[n]
}

// RuleCount returns the number of rules, including the start rule.
func (g *Grammar) RuleCount() int {
	return len(g.rules)
}

// Start returns the user-level start symbol (the RHS of rule 0).
func (g *Grammar) Start() *Symbol {
	return g.start
}

// SymbolByName looks up a symbol by name.
func (g *Grammar) SymbolByName(name string) *Symbol {
	if sym, ok := g.symbols.Get(name); ok {
		return sym.(*Symbol)
	}
	return nil
}

// Class returns the lexeme class with the given index.
func (g *Grammar) Class(index int) *LexemeClass {
	if index < 0 || index >= len(g.classes) {
		return nil
	}
	return g.classes[index]
}

// ClassCount returns the number of declared lexeme classes.
func (g *Grammar) ClassCount() int {
	return len(g.classes)
}

// EachSymbol calls f for every symbol of the grammar, in creation order.
func (g *Grammar) EachSymbol(f func(A *Symbol)) {
	for _, sym := range g.symlist {
		f(sym)
	}
}

// FindNonTermRules collects the start items [B→•α, 0] for all rules with
// left-hand side B.
func (g *Grammar) FindNonTermRules(B *Symbol) []Item {
	var items []Item
	for _, r := range g.rules {
		if r.LHS == B {
			items = append(items, StartItem(r))
		}
	}
	return items
}

// DerivesEpsilon returns true if non-terminal A derives the empty string.
func (g *Grammar) DerivesEpsilon(A *Symbol) bool {
	return g.epsilon[A]
}

// Dump logs the grammar at debug level.
func (g *Grammar) Dump() {
	tracer().Debugf("grammar %q with %d rules, %d classes", g.Name, len(g.rules), len(g.classes))
	for _, r := range g.rules {
		tracer().Debugf("  %d: %s", r.Serial, r)
	}
	for _, c := range g.classes {
		tracer().Debugf("  class %d: %s", c.Index, c.Name)
	}
}

// analyze computes the ε-derivation fixpoint.
func (g *Grammar) analyze() {
	g.epsilon = make(map[*Symbol]bool)
	for changed := true; changed; {
		changed = false
		for _, r := range g.rules {
			if g.epsilon[r.LHS] {
				continue
			}
			derives := true
			for _, sym := range r.rhs {
				if sym.IsTerminal() || !g.epsilon[sym] {
					derives = false
					break
				}
			}
			if derives {
				g.epsilon[r.LHS] = true
				changed = true
			}
		}
	}
}
