package larkc

import (
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

func compileSource(t *testing.T, src string) (*grammar.Grammar, error) {
	t.Helper()
	eng := rx.NewEngine(0)
	b := grammar.NewBuilder("test", eng)
	start, err := CompileInto(b, eng, "", src, nil)
	if err != nil {
		return nil, err
	}
	b.SetStart(start)
	return b.Grammar()
}

func mustCompile(t *testing.T, src string) *grammar.Grammar {
	t.Helper()
	g, err := compileSource(t, src)
	if err != nil {
		t.Fatalf("grammar should compile, got: %v", err)
	}
	return g
}

func TestCompileLiteralRule(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g := mustCompile(t, `start: "abc"`)
	if g.ClassCount() != 1 {
		t.Errorf("expected 1 anonymous terminal class, got %d", g.ClassCount())
	}
	if g.Start().Name != "start" {
		t.Errorf("start symbol should be 'start', is %q", g.Start().Name)
	}
}

func TestCompileAlternativesAndRepetition(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g := mustCompile(t, `
start: foo{3,5}
foo: "a" | "b"
`)
	// helper non-terminal carries the {3,5} repetition: 3 alternatives
	reps := 0
	for i := 0; i < g.RuleCount(); i++ {
		if strings.HasPrefix(g.Rule(i).LHS.Name, "_h") {
			reps++
		}
	}
	if reps != 3 {
		t.Errorf("foo{3,5} should expand to 3 helper alternatives, got %d", reps)
	}
}

func TestCompileTokenDefsAndImports(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g := mustCompile(t, `
start: INT PAIR
PAIR: LETTER LETTER
LETTER: /[a-z]/
%import common.INT
%ignore WS
%import common.WS
`)
	if g.Skip == rx.NoNode {
		t.Errorf("%%ignore should install a skip regex")
	}
	if g.SymbolByName("PAIR") == nil || g.SymbolByName("INT") == nil {
		t.Errorf("token symbols missing")
	}
}

func TestCompileAttributes(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g := mustCompile(t, `
start: name
name[capture, max_tokens=12, temperature=0.7]: NAME
NAME: /[a-z]+/
`)
	// the attributed rule mints a lexeme class of its own
	sym := g.SymbolByName("name_lex")
	if sym == nil || !sym.IsTerminal() {
		t.Fatalf("attributed rule should mint a terminal class")
	}
	cls := g.Class(sym.Class)
	if cls.Capture != "name" {
		t.Errorf("capture name should default to the rule name, got %q", cls.Capture)
	}
	if cls.MaxTokens != 12 {
		t.Errorf("max_tokens should be 12, got %d", cls.MaxTokens)
	}
	if cls.Temperature < 0.69 || cls.Temperature > 0.71 {
		t.Errorf("temperature should be 0.7, got %v", cls.Temperature)
	}
}

func TestCompileStopAttribute(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g := mustCompile(t, `
start: TEXT
TEXT[stop="END"]: /[a-z ]+/
`)
	cls := g.Class(g.SymbolByName("TEXT").Class)
	if cls.Stop == rx.NoNode {
		t.Errorf("stop regex should be set")
	}
	if !cls.Lazy {
		t.Errorf("generate-until-stop terminals should be lazy")
	}
}

func TestCompileRejections(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"circular tokens", "start: A\nA: B\nB: A", "circular reference"},
		{"undefined token", "start: MISSING", "not found"},
		{"undefined rule", "start: nothere", "not found"},
		{"inverted range", `start: X` + "\n" + `X: "z".."a"`, "invalid range order"},
		{"multichar range", `start: X` + "\n" + `X: "ab".."c"`, "single character"},
		{"grammar ref in terminal", "start: X\nX: @other", "cannot be used as terminals"},
		{"rule in terminal", "start: X\nX: start", "inside a terminal"},
		{"unknown attribute", "start: x\nx[frobnicate]: Y\nY: /[a-z]/", "unknown attribute"},
		{"locale flag", `start: X` + "\n" + `X: /abc/l`, "l-flag"},
		{"no start", `foo: "a"`, "no start rule"},
		{"inverted repeat", `start: "a"{5,3}`, "invalid repeat bounds"},
	}
	for _, tc := range cases {
		_, err := compileSource(t, tc.src)
		if err == nil {
			t.Errorf("%s: grammar should be rejected", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.msg) {
			t.Errorf("%s: error %q should mention %q", tc.name, err, tc.msg)
		}
	}
}
