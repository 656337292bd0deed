package lexer

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

// a small grammar with identifiers, integers, one keyword and blanks
func testSpec(t *testing.T) *Spec {
	eng := rx.NewEngine(0)
	b := grammar.NewBuilder("lexing", eng)
	ifRx := eng.Literal([]byte("if"))
	identRx, err := eng.ParsePattern(`[a-z][a-z0-9]*`)
	if err != nil {
		t.Fatal(err)
	}
	intRx, err := eng.ParsePattern(`[0-9]+`)
	if err != nil {
		t.Fatal(err)
	}
	b.DeclareTerminal("if", ifRx)       // class 0
	b.DeclareTerminal("ident", identRx) // class 1
	b.DeclareTerminal("int", intRx)     // class 2
	b.LHS("S").T("if").T("ident").T("int").End()
	b.SetStart("S")
	skip, err := eng.ParsePattern(`[ \t]+`)
	if err != nil {
		t.Fatal(err)
	}
	b.SetSkip(skip)
	g, err := b.Grammar()
	if err != nil {
		t.Fatal(err)
	}
	return NewSpec(g, 0)
}

// feed pushes a string and collects emitted classes, restarting lexemes
// with the given admissible set.
func feed(t *testing.T, lx *Lexer, admissible []int, input string) []int {
	var classes []int
	lx.StartLexeme(admissible)
	for i := 0; i < len(input); {
		outcome, em := lx.PushByte(input[i])
		switch outcome {
		case Dead:
			t.Fatalf("lexer died at byte %d of %q", i, input)
		case Lexeme:
			if em.Class != SkipClass {
				classes = append(classes, em.Class)
			}
			lx.StartLexeme(admissible)
			if !em.Unread {
				i++
			}
		default:
			i++
		}
	}
	if em, ok := lx.FlushLexeme(); ok && em.Class != SkipClass {
		classes = append(classes, em.Class)
	}
	return classes
}

func TestLexemeBoundaries(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.lexer")
	defer teardown()
	//
	spec := testSpec(t)
	lx := New(spec)
	classes := feed(t, lx, []int{0, 1, 2}, "if foo42 127")
	want := []int{0, 1, 2}
	if len(classes) != len(want) {
		t.Fatalf("expected %v, got %v", want, classes)
	}
	for i := range want {
		if classes[i] != want[i] {
			t.Errorf("lexeme %d: expected class %d, got %d", i, want[i], classes[i])
		}
	}
}

func TestTieBreakIsDeclarationOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.lexer")
	defer teardown()
	//
	// "if" matches both the keyword (class 0) and ident (class 1);
	// the earlier declared class must win, on every run.
	spec := testSpec(t)
	for run := 0; run < 20; run++ {
		lx := New(spec)
		classes := feed(t, lx, []int{0, 1, 2}, "if ")
		if len(classes) != 1 || classes[0] != 0 {
			t.Fatalf("run %d: keyword should win over ident, got %v", run, classes)
		}
	}
}

func TestMaximalMunch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.lexer")
	defer teardown()
	//
	// "iffy" starts like the keyword but must end up one ident lexeme
	spec := testSpec(t)
	lx := New(spec)
	classes := feed(t, lx, []int{0, 1, 2}, "iffy ")
	if len(classes) != 1 || classes[0] != 1 {
		t.Errorf("'iffy' should be one ident, got %v", classes)
	}
}

func TestDeadInput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.lexer")
	defer teardown()
	//
	spec := testSpec(t)
	lx := New(spec)
	lx.StartLexeme([]int{2}) // only integers admissible
	outcome, _ := lx.PushByte('x')
	if outcome != Dead {
		t.Errorf("pushing 'x' with only integers admissible should be Dead, got %v", outcome)
	}
}

func TestForcedByte(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.lexer")
	defer teardown()
	//
	eng := rx.NewEngine(0)
	b := grammar.NewBuilder("forced", eng)
	b.DeclareTerminal("abc", eng.Literal([]byte("abc")))
	b.LHS("S").T("abc").End()
	b.SetStart("S")
	g, err := b.Grammar()
	if err != nil {
		t.Fatal(err)
	}
	lx := New(NewSpec(g, 0))
	lx.StartLexeme([]int{0})
	if fb, ok := lx.ForcedByte(); !ok || fb != 'a' {
		t.Errorf("expected forced byte 'a', got %q/%v", fb, ok)
	}
	lx.PushByte('a')
	if fb, ok := lx.ForcedByte(); !ok || fb != 'b' {
		t.Errorf("expected forced byte 'b', got %q/%v", fb, ok)
	}
}

func TestSnapshotRestore(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.lexer")
	defer teardown()
	//
	spec := testSpec(t)
	lx := New(spec)
	lx.StartLexeme([]int{0, 1, 2})
	lx.PushByte('i')
	snap := lx.Snapshot()
	lx.PushByte('f')
	lx.PushByte('f')
	lx.Restore(snap)
	if lx.Bytes() != 1 {
		t.Errorf("restored lexer should be 1 byte in, is %d", lx.Bytes())
	}
	// after 'i', both keyword and ident are still live; ident is nullable
	if cls, ok := lx.PendingClass(); !ok || cls != 1 {
		t.Errorf("after 'i' the pending winner should be ident, got %d/%v", cls, ok)
	}
}
