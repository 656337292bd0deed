package compile

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/steer"
)

func TestFromLark(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g, err := FromLark(`start: "a" "b"`)
	if err != nil {
		t.Fatal(err)
	}
	if g.Start() == nil || g.Start().Name != "start" {
		t.Errorf("start symbol wrong: %v", g.Start())
	}
}

func TestFromJSONSchema(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	g, err := FromJSONSchema([]byte(`{"type":"boolean"}`))
	if err != nil {
		t.Fatal(err)
	}
	if g.SymbolByName("true") == nil || g.SymbolByName("false") == nil {
		t.Errorf("boolean literals missing from grammar")
	}
}

func TestGrammarReference(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	tl := TopLevelGrammar{
		Grammars: []GrammarSpec{
			{Lark: `start: "<" @sub ">"`},
			{Name: "sub", JSONSchema: []byte(`{"type":"integer","minimum":0,"maximum":9}`)},
		},
		StartGrammar: 0,
		Caps:         steer.InferenceCaps{FFTokens: true},
	}
	g, err := Compile(tl)
	if err != nil {
		t.Fatal(err)
	}
	if g.SymbolByName("sub.start") == nil {
		t.Errorf("referenced subgrammar should contribute prefixed symbols")
	}
}

func TestUnknownGrammarReference(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	tl := TopLevelGrammar{
		Grammars: []GrammarSpec{{Lark: `start: @nothere`}},
	}
	if _, err := Compile(tl); err == nil {
		t.Errorf("unknown grammar reference should be rejected")
	}
}

func TestEmptyTopLevel(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.compile")
	defer teardown()
	//
	if _, err := Compile(TopLevelGrammar{}); err == nil {
		t.Errorf("empty top-level grammar should be rejected")
	}
}
