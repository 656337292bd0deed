/*
Package parser implements an incremental Earley parser.

Earleys algorithm for parsing ambiguous grammars has been known since 1968.
A very accessible and practical discussion has been done by Loup Vaillant
in a superb blog series (http://loup-vaillant.fr/tutorials/earley-parsing/).

In contrast to a classical run-to-EOF Earley parser, this parser is driven
one lexeme at a time by the constrained-decoding loop: the mask builder
probes candidate continuations against cloned cursors, the sequence
controller commits lexemes as tokens arrive, and token healing occasionally
takes a step back. The parser therefore exposes Advance, Checkpoint and
Rollback rather than a Parse method.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package parser

import (
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/grammar/iteratable"
)

// tracer traces with key 'steer.parser'.
func tracer() tracing.Trace {
	return tracing.Select("steer.parser")
}

// Parser is an incremental Earley parser over lexeme symbols. Create one
// with parser.New(...).
//
// Earley parsers operate by constructing a sequence of item sets, one per
// input symbol. Elements of these sets are Earley items [A→α•β, j]: a
// grammar rule, a dot position, and the index j of the set the rule's
// recognition started in. Every set is closed under prediction and
// completion.
type Parser struct {
	g      *grammar.Grammar
	states []*iteratable.Set // one closed item set per accepted lexeme
	limits steer.ParserLimits
	total  int // items created over the lifetime of the sequence
}

// New creates and initializes an Earley parser for a grammar. State 0 is
// the closure of { [S′→•S, 0] }.
func New(g *grammar.Grammar, limits steer.ParserLimits) (*Parser, error) {
	p := &Parser{
		g:      g,
		states: make([]*iteratable.Set, 0, 64),
		limits: limits,
	}
	S0 := iteratable.NewSet(0)
	S0.Add(grammar.StartItem(g.Rule(0)))
	p.states = append(p.states, S0)
	if err := p.closure(S0, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// Cursor marks a parser position for later rollback.
type Cursor int

// Checkpoint returns a cursor for the current position.
func (p *Parser) Checkpoint() Cursor {
	return Cursor(len(p.states))
}

// Rollback truncates the parse back to a previously obtained cursor. Item
// sets are immutable once closed, so forks sharing older sets are not
// disturbed.
func (p *Parser) Rollback(c Cursor) {
	if int(c) < 1 || int(c) > len(p.states) {
		return
	}
	p.states = p.states[:c]
}

// Fork clones the parser. The clone shares all existing (immutable) item
// sets with the original; both sides may advance independently afterwards.
func (p *Parser) Fork() *Parser {
	return &Parser{
		g:      p.g,
		states: append([]*iteratable.Set(nil), p.states...),
		limits: p.limits,
		total:  p.total,
	}
}

// Grammar returns the grammar the parser operates on.
func (p *Parser) Grammar() *grammar.Grammar {
	return p.g
}

// Position returns the number of lexemes accepted so far.
func (p *Parser) Position() int {
	return len(p.states) - 1
}

func (p *Parser) current() *iteratable.Set {
	return p.states[len(p.states)-1]
}

// Advance feeds one lexeme class to the parser. It returns false if no
// parse extends by that class; the parser state is unchanged in that case.
// An error is only returned when a ParserLimits budget is exceeded.
func (p *Parser) Advance(class int) (bool, error) {
	i := len(p.states) - 1
	S := p.current()
	S1 := iteratable.NewSet(0)
	// Scanner: if [A→…•a…, j] is in Si and a is our lexeme, add [A→…a•…, j]
	S.Each(func(e interface{}) {
		item := e.(grammar.Item)
		if a := item.PeekSymbol(); a != nil && a.IsTerminal() && a.Class == class {
			S1.Add(item.Advance())
		}
	})
	if S1.Empty() {
		tracer().Debugf("lexeme class %d rejected at position %d", class, i)
		return false, nil
	}
	p.states = append(p.states, S1)
	if err := p.closure(S1, uint64(i+1)); err != nil {
		p.states = p.states[:len(p.states)-1]
		return false, err
	}
	return true, nil
}

// closure completes set Si under the Predictor and Completer operations.
// The set acts as its own work queue: items added during the iteration are
// visited as well.
func (p *Parser) closure(S *iteratable.Set, i uint64) error {
	S.IterateOnce()
	for S.Next() {
		item := S.Item().(grammar.Item)
		if B := item.PeekSymbol(); B != nil && !B.IsTerminal() {
			p.predict(S, item, B, i)
		} else if item.Completed() {
			p.complete(S, item)
		}
		if p.limits.MaxItemsPerStep > 0 && S.Size() > p.limits.MaxItemsPerStep {
			return steer.WrapError(steer.ParserLimitsExceeded,
				"more than %d Earley items in one step", p.limits.MaxItemsPerStep)
		}
	}
	p.total += S.Size()
	if p.limits.MaxTotalItems > 0 && p.total > p.limits.MaxTotalItems {
		return steer.WrapError(steer.ParserLimitsExceeded,
			"more than %d Earley items in sequence", p.limits.MaxTotalItems)
	}
	dumpState(p.states, i)
	return nil
}

// Predictor: if [A→…•B…, j] is in Si, add [B→•α, i] for all rules B→α.
// If B is nullable, also add [A→…B•…, j] (Aycock/Horspool).
func (p *Parser) predict(S *iteratable.Set, item grammar.Item, B *grammar.Symbol, i uint64) {
	for _, startitem := range p.g.FindNonTermRules(B) {
		startitem.Origin = i
		S.Add(startitem)
	}
	if p.g.DerivesEpsilon(B) {
		if adv := item.Advance(); adv != grammar.NullItem {
			S.Add(adv)
		}
	}
}

// Completer: if [A→…•, j] is in Si, add [B→…A•…, k] for all items
// [B→…•A…, k] in Sj.
func (p *Parser) complete(S *iteratable.Set, item grammar.Item) {
	A, j := item.Rule().LHS, item.Origin
	Sj := p.states[j]
	Sj.Each(func(e interface{}) {
		jtem := e.(grammar.Item)
		if jtem.PeekSymbol() == A {
			if jadv := jtem.Advance(); jadv != grammar.NullItem {
				S.Add(jadv)
			}
		}
	})
}

// IsAccepting returns true if the input seen so far is a complete sentence
// of the grammar, i.e. the current set contains a completed start rule
// originating at 0.
func (p *Parser) IsAccepting() bool {
	acc := false
	p.current().Each(func(e interface{}) {
		item := e.(grammar.Item)
		if item.Completed() && item.Origin == 0 && item.Rule().Serial == 0 {
			acc = true
		}
	})
	return acc
}

// PredictedTerminals returns the lexeme classes which may legally appear
// next, in ascending class order.
func (p *Parser) PredictedTerminals() []int {
	set := treeset.NewWith(utils.IntComparator)
	p.current().Each(func(e interface{}) {
		item := e.(grammar.Item)
		if a := item.PeekSymbol(); a != nil && a.IsTerminal() {
			set.Add(a.Class)
		}
	})
	classes := make([]int, 0, set.Size())
	for _, v := range set.Values() {
		classes = append(classes, v.(int))
	}
	return classes
}

// SameState reports whether two parsers are in the same state, i.e. their
// current item sets are equal. Used by tests for rollback determinism.
func (p *Parser) SameState(other *Parser) bool {
	return p.current().Equals(other.current())
}
