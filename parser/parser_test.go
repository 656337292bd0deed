package parser

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

// We use a small unambiguous expression grammar for testing. It is slightly
// adapted from
//
//	http://loup-vaillant.fr/tutorials/earley-parsing/recogniser
//
// This way we will be able to follow the examples there.
//
//	Sum     = Sum     '+' Product
//	        | Product
//	Product = Product '*' Factor
//	        | Factor
//	Factor  = '(' Sum ')'
//	        | number
//
// Lexeme classes: number=0, '+'=1, '*'=2, '('=3, ')'=4.
func makeGrammar(t *testing.T) *grammar.Grammar {
	eng := rx.NewEngine(0)
	b := grammar.NewBuilder("Expressions", eng)
	num, err := eng.ParsePattern(`[0-9]+`)
	if err != nil {
		t.Fatal(err)
	}
	b.DeclareTerminal("number", num)
	b.DeclareTerminal("+", eng.Byte('+'))
	b.DeclareTerminal("*", eng.Byte('*'))
	b.DeclareTerminal("(", eng.Byte('('))
	b.DeclareTerminal(")", eng.Byte(')'))
	b.LHS("Sum").N("Sum").T("+").N("Product").End()
	b.LHS("Sum").N("Product").End()
	b.LHS("Product").N("Product").T("*").N("Factor").End()
	b.LHS("Product").N("Factor").End()
	b.LHS("Factor").T("(").N("Sum").T(")").End()
	b.LHS("Factor").T("number").End()
	b.SetStart("Sum")
	g, err := b.Grammar()
	if err != nil {
		t.Fatal(err)
	}
	return g
}

const (
	clNumber = iota
	clPlus
	clTimes
	clLparen
	clRparen
)

func advanceAll(t *testing.T, p *Parser, classes ...int) {
	for n, c := range classes {
		ok, err := p.Advance(c)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("lexeme #%d (class %d) rejected", n, c)
		}
	}
}

func TestParserAccept(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	inputs := [][]int{
		{clNumber},
		{clNumber, clPlus, clNumber},
		{clNumber, clTimes, clNumber},
		{clNumber, clPlus, clNumber, clTimes, clNumber},
		{clLparen, clNumber, clPlus, clNumber, clRparen, clTimes, clNumber},
	}
	for n, input := range inputs {
		p, err := New(makeGrammar(t), steer.DefaultLimits())
		if err != nil {
			t.Fatal(err)
		}
		advanceAll(t, p, input...)
		if !p.IsAccepting() {
			t.Errorf("valid input #%d not accepted", n+1)
		}
	}
}

func TestParserReject(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	p, err := New(makeGrammar(t), steer.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	advanceAll(t, p, clNumber)
	if ok, _ := p.Advance(clNumber); ok {
		t.Errorf("'number number' should be rejected")
	}
	// the rejection must not have altered the parser state
	if !p.IsAccepting() {
		t.Errorf("parser should still accept after a rejected advance")
	}
}

func TestPartialInputNotAccepting(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	p, err := New(makeGrammar(t), steer.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	advanceAll(t, p, clNumber, clPlus)
	if p.IsAccepting() {
		t.Errorf("'number +' is not a sentence")
	}
}

func TestPredictedTerminals(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	p, err := New(makeGrammar(t), steer.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	pred := p.PredictedTerminals()
	want := []int{clNumber, clLparen}
	if len(pred) != 2 || pred[0] != clNumber || pred[1] != clLparen {
		t.Errorf("at start, predicted terminals should be %v, got %v", want, pred)
	}
	advanceAll(t, p, clNumber)
	pred = p.PredictedTerminals()
	if len(pred) != 2 || pred[0] != clPlus || pred[1] != clTimes {
		t.Errorf("after number, predicted terminals should be [+ *], got %v", pred)
	}
}

func TestRollbackDeterminism(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	σ := []int{clNumber, clPlus, clNumber, clTimes, clNumber}
	for k := 0; k <= len(σ); k++ {
		p, err := New(makeGrammar(t), steer.DefaultLimits())
		if err != nil {
			t.Fatal(err)
		}
		advanceAll(t, p, σ[:k]...)
		cursor := p.Checkpoint()
		q := p.Fork()
		advanceAll(t, p, σ[k:]...)
		p.Rollback(cursor)
		if !p.SameState(q) {
			t.Errorf("rollback to prefix length %d does not reproduce the prefix state", k)
		}
	}
}

func TestForkIsolation(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	p, err := New(makeGrammar(t), steer.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	advanceAll(t, p, clNumber)
	q := p.Fork()
	advanceAll(t, p, clPlus, clNumber)
	advanceAll(t, q, clTimes, clNumber)
	if !p.IsAccepting() || !q.IsAccepting() {
		t.Errorf("both forks should accept their respective inputs")
	}
	if p.Position() != 3 || q.Position() != 3 {
		t.Errorf("fork positions off: %d and %d", p.Position(), q.Position())
	}
}

func TestItemsPerStepLimit(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.parser")
	defer teardown()
	//
	limits := steer.DefaultLimits()
	limits.MaxItemsPerStep = 2
	_, err := New(makeGrammar(t), limits)
	if err == nil {
		t.Fatal("expected limit violation building the start state")
	}
	if e, ok := err.(*steer.Error); !ok || e.Kind != steer.ParserLimitsExceeded {
		t.Errorf("expected ParserLimitsExceeded, got %v", err)
	}
}
