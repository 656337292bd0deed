package grammar

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/rx"
)

// Builder constructs grammars. Clients declare lexeme classes, then add
// rules in a fluent manner:
//
//	b := grammar.NewBuilder("Expressions", eng)
//	b.DeclareTerminal("number", numRx)
//	b.DeclareTerminal("+", plusRx)
//	b.LHS("Sum").N("Sum").T("+").N("Product").End()
//	b.LHS("Sum").N("Product").End()
//	b.SetStart("Sum")
//	g, err := b.Grammar()
//
// Symbols come into existence on first use; Grammar() validates that every
// non-terminal in use has at least one rule, which allows recursive and
// forward references without a separate patching step.
type Builder struct {
	g       *Grammar
	serial  int
	errors  []error
	started bool
}

// NewBuilder creates a grammar builder. All lexeme regexes must be interned
// in the given regex engine.
func NewBuilder(name string, eng *rx.Engine) *Builder {
	return &Builder{
		g: &Grammar{
			Name:    name,
			symbols: treemap.NewWithStringComparator(),
			rxe:     eng,
			Skip:    rx.NoNode,
		},
	}
}

// DeclareTerminal declares a lexeme class under the given name and creates
// the terminal symbol referencing it. Classes are numbered in declaration
// order; this order is the lexer's tie-break. The returned class may be
// decorated with properties before the grammar is finalized.
func (b *Builder) DeclareTerminal(name string, body rx.NodeId) *LexemeClass {
	if sym := b.g.SymbolByName(name); sym != nil {
		b.errors = append(b.errors, fmt.Errorf("duplicate symbol %q", name))
		return b.g.classes[sym.Class]
	}
	cls := &LexemeClass{
		Index:       len(b.g.classes),
		Name:        name,
		Body:        body,
		Stop:        rx.NoNode,
		MaxTokens:   0,
		Temperature: NoTemperature,
	}
	b.g.classes = append(b.g.classes, cls)
	b.symbol(name, cls.Index)
	return cls
}

// SetSkip declares the skip regex σ, matched and discarded between lexemes.
func (b *Builder) SetSkip(skip rx.NodeId) {
	b.g.Skip = skip
}

// HasSkip returns true if a skip regex has been declared.
func (b *Builder) HasSkip() bool {
	return b.g.Skip != rx.NoNode
}

// SetStart declares the start symbol.
func (b *Builder) SetStart(name string) {
	b.g.start = b.nonterminal(name)
}

func (b *Builder) symbol(name string, class int) *Symbol {
	sym := &Symbol{Name: name, Class: class, serial: b.serial}
	b.serial++
	b.g.symbols.Put(name, sym)
	b.g.symlist = append(b.g.symlist, sym)
	return sym
}

func (b *Builder) nonterminal(name string) *Symbol {
	if sym := b.g.SymbolByName(name); sym != nil {
		return sym
	}
	return b.symbol(name, -1)
}

// Symbol looks up an already existing symbol by name.
func (b *Builder) Symbol(name string) *Symbol {
	return b.g.SymbolByName(name)
}

// Nonterminal returns the non-terminal with the given name, creating it on
// first use. Rules for it may be added later; Grammar() validates that at
// least one exists.
func (b *Builder) Nonterminal(name string) *Symbol {
	return b.nonterminal(name)
}

// Class returns the declared lexeme class with the given index.
func (b *Builder) Class(index int) *LexemeClass {
	return b.g.Class(index)
}

// LHS starts a new rule for the given non-terminal.
func (b *Builder) LHS(name string) *RuleBuilder {
	sym := b.nonterminal(name)
	if sym.IsTerminal() {
		b.errors = append(b.errors, fmt.Errorf("terminal %q cannot have rules", name))
	}
	return &RuleBuilder{b: b, lhs: sym}
}

// RuleBuilder accumulates the right-hand side of one rule.
type RuleBuilder struct {
	b   *Builder
	lhs *Symbol
	rhs []*Symbol
}

// N appends a non-terminal to the right-hand side.
func (rb *RuleBuilder) N(name string) *RuleBuilder {
	sym := rb.b.nonterminal(name)
	if sym.IsTerminal() {
		rb.b.errors = append(rb.b.errors, fmt.Errorf("symbol %q is a terminal, use T()", name))
	}
	rb.rhs = append(rb.rhs, sym)
	return rb
}

// T appends a terminal to the right-hand side. The lexeme class must have
// been declared.
func (rb *RuleBuilder) T(name string) *RuleBuilder {
	sym := rb.b.g.SymbolByName(name)
	if sym == nil || !sym.IsTerminal() {
		rb.b.errors = append(rb.b.errors, fmt.Errorf("terminal %q has not been declared", name))
		return rb
	}
	rb.rhs = append(rb.rhs, sym)
	return rb
}

// Sym appends an already resolved symbol to the right-hand side.
func (rb *RuleBuilder) Sym(sym *Symbol) *RuleBuilder {
	rb.rhs = append(rb.rhs, sym)
	return rb
}

// End finalizes the rule and hands it to the grammar. A rule without
// right-hand side symbols is an ε-production.
func (rb *RuleBuilder) End() *Rule {
	r := &Rule{
		Serial: len(rb.b.g.rules) + 1, // rule 0 is reserved for S′ → S
		LHS:    rb.lhs,
		rhs:    rb.rhs,
	}
	rb.b.g.rules = append(rb.b.g.rules, r)
	return r
}

// Grammar validates and finalizes the grammar. The augmented start rule
// S′ → S is created as rule 0.
func (b *Builder) Grammar() (*Grammar, error) {
	if len(b.errors) > 0 {
		return nil, steer.WrapError(steer.GrammarParseError, "grammar %q: %v", b.g.Name, b.errors[0])
	}
	if b.g.start == nil {
		return nil, steer.WrapError(steer.GrammarParseError, "grammar %q has no start symbol", b.g.Name)
	}
	defined := make(map[*Symbol]bool)
	for _, r := range b.g.rules {
		defined[r.LHS] = true
	}
	for _, sym := range b.g.symlist {
		if !sym.IsTerminal() && !defined[sym] {
			return nil, steer.WrapError(steer.GrammarParseError,
				"grammar %q: no rule for non-terminal %q", b.g.Name, sym.Name)
		}
	}
	// augment: rule 0 is S′ → S
	super := &Symbol{Name: "S′", Class: -1, serial: b.serial}
	b.serial++
	start := &Rule{Serial: 0, LHS: super, rhs: []*Symbol{b.g.start}}
	b.g.symlist = append(b.g.symlist, super)
	b.g.rules = append([]*Rule{start}, b.g.rules...)
	for i, r := range b.g.rules {
		r.Serial = i
	}
	b.g.analyze()
	tracer().Infof("grammar %q: %d rules, %d lexeme classes", b.g.Name, len(b.g.rules), len(b.g.classes))
	return b.g, nil
}
