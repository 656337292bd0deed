package seq

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/compile"
	"github.com/npillmayer/steer/toktrie"
)

// byteVocab is a vocabulary with one token per byte value (token id b+1)
// plus token 0 as EOS.
func byteVocab(t *testing.T) *toktrie.Trie {
	t.Helper()
	toks := [][]byte{{}}
	for b := 0; b < 256; b++ {
		toks = append(toks, []byte{byte(b)})
	}
	trie, err := toktrie.New(steer.Vocab{Size: uint32(len(toks)), EOS: 0}, toks)
	if err != nil {
		t.Fatal(err)
	}
	return trie
}

func tokOf(b byte) steer.TokenId {
	return steer.TokenId(b) + 1
}

func larkEngine(t *testing.T, src string) *Engine {
	t.Helper()
	g, err := compile.FromLark(src)
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(g, byteVocab(t))
}

func schemaEngine(t *testing.T, schema string) *Engine {
	t.Helper()
	g, err := compile.FromJSONSchema([]byte(schema))
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(g, byteVocab(t))
}

// checkOracle asserts accept/reject verdicts of the grammar over byte
// strings.
func checkOracle(t *testing.T, e *Engine, accepts, rejects []string) {
	t.Helper()
	for _, input := range accepts {
		ok, err := e.Accepts([]byte(input))
		if err != nil {
			t.Fatalf("oracle error on %q: %v", input, err)
		}
		if !ok {
			t.Errorf("input %q should be accepted", input)
		}
	}
	for _, input := range rejects {
		ok, err := e.Accepts([]byte(input))
		if err != nil {
			t.Fatalf("oracle error on %q: %v", input, err)
		}
		if ok {
			t.Errorf("input %q should be rejected", input)
		}
	}
}

// driveMask plays a whole accepted input against a fresh controller,
// byte-token by byte-token, asserting that every byte is admitted by the
// returned masks (or consumed by a forced splice), and that the sequence
// can terminate at the end.
func driveMask(t *testing.T, e *Engine, input string) {
	t.Helper()
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	remaining := []byte(input)
	for steps := 0; ; steps++ {
		if steps > 4*len(input)+16 {
			t.Fatalf("mask drive for %q does not terminate", input)
		}
		step, err := ctl.ComputeMask()
		if err != nil {
			t.Fatalf("ComputeMask on %q (%d bytes left): %v", input, len(remaining), err)
		}
		if step.IsStop() {
			if len(remaining) > 0 {
				t.Fatalf("premature stop on %q with %d bytes left", input, len(remaining))
			}
			return
		}
		if step.IsSplice() {
			ff := e.Trie().Decode(step.FFTokens)
			if len(ff) > len(remaining) || string(remaining[:len(ff)]) != string(ff) {
				t.Fatalf("splice %q does not prefix remaining input %q", ff, remaining)
			}
			remaining = remaining[len(ff):]
			if _, err := ctl.CommitToken(nil); err != nil {
				t.Fatal(err)
			}
			continue
		}
		// a mask: if input is exhausted, EOS must be allowed
		if len(remaining) == 0 {
			eos := e.Trie().Vocab().EOS
			if !step.Mask.IsAllowed(eos) {
				t.Fatalf("input %q consumed but EOS not allowed", input)
			}
			res, err := ctl.CommitToken(&eos)
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsStop() || res.Stop != steer.StopEOS {
				t.Fatalf("committing EOS should stop with eos, got %s", res)
			}
			return
		}
		tok := tokOf(remaining[0])
		if !step.Mask.IsAllowed(tok) {
			t.Fatalf("byte %q of %q not allowed by mask", remaining[0], input)
		}
		res, err := ctl.CommitToken(&tok)
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsSplice() {
			t.Fatalf("commit should report a splice, got %s", res)
		}
		ff := e.Trie().Decode(res.FFTokens)
		if len(ff) > len(remaining) || string(remaining[:len(ff)]) != string(ff) {
			t.Fatalf("commit splice %q does not prefix remaining %q", ff, remaining)
		}
		remaining = remaining[len(ff):]
	}
}

// --- Scenario G1: literal ---------------------------------------------------

func TestScenarioG1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, `start: "abc"`)
	checkOracle(t, e, []string{"abc"}, []string{"ab", "abcd", "", "xbc"})
	driveMask(t, e, "abc")
}

// --- Scenario G2: integer range ---------------------------------------------

func TestScenarioG2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := schemaEngine(t, `{"type":"integer","minimum":-100,"maximum":100}`)
	checkOracle(t, e,
		[]string{"0", "-100", "100", "42", "-7"},
		[]string{"-101", "101", "1.0", "007", "--1", ""})
	driveMask(t, e, "-100")
	driveMask(t, e, "42")
}

// --- Scenario G3: bounded array ---------------------------------------------

func TestScenarioG3(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := schemaEngine(t, `{"type":"array","items":{"type":"integer"},"minItems":2,"maxItems":4}`)
	checkOracle(t, e,
		[]string{"[1,2]", "[1,2,3,4]", "[1, 2, 3]"},
		[]string{"[1]", "[1,2,3,4,5]", "[]", "[1,2,"})
	driveMask(t, e, "[1,2]")
	driveMask(t, e, "[10,20,30,40]")
}

// --- Scenario G4: unicode any-chars -----------------------------------------

func TestScenarioG4(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, `start: /.../ "abc" /.../`)
	checkOracle(t, e,
		[]string{"abcabcabc", "🔵🟠✅abc❌🟠🔵", "xyzabcxyz"},
		[]string{"aaabcccc", "🔵🟠abc🟠🔵", "abcabc"})
	driveMask(t, e, "abcabcabc")
	driveMask(t, e, "🔵🟠✅abc❌🟠🔵")
}

// --- Scenario G5: bounded rule repetition -----------------------------------

func TestScenarioG5(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, "start: foo{3,5}\nfoo: \"a\" | \"b\"")
	checkOracle(t, e,
		[]string{"aba", "aaaaa", "bbb", "abab"},
		[]string{"aa", "aaaaaa", "", "abc"})
	driveMask(t, e, "aba")
	driveMask(t, e, "aaaaa")
}

// --- Scenario G6: recursive linked list -------------------------------------

const linkedListSchema = `{
	"$ref": "#/$defs/A",
	"$defs": {
		"A": {
			"type": "object",
			"properties": {
				"my_str": {"type": "string"},
				"next": {"anyOf": [{"$ref": "#/$defs/A"}, {"type": "null"}]}
			},
			"required": ["my_str", "next"],
			"additionalProperties": false
		}
	}
}`

func TestScenarioG6(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := schemaEngine(t, linkedListSchema)
	checkOracle(t, e,
		[]string{
			`{"my_str":"a","next":null}`,
			`{"my_str":"a","next":{"my_str":"b","next":{"my_str":"c","next":null}}}`,
			`{"my_str": "a", "next": null}`,
		},
		[]string{
			`{"my_str":1,"next":null}`,
			`{"my_str":"a","next":"second"}`,
			`{"my_str":"a"}`,
			`{}`,
		})
	driveMask(t, e, `{"my_str":"x","next":{"my_str":"y","next":null}}`)
}

// --- Controller protocol ----------------------------------------------------

func TestProtocolViolations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, `start: "ab" | "cd"`)
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	// commit before any mask
	if _, err := ctl.CommitToken(nil); err == nil {
		t.Fatal("CommitToken before ComputeMask should be a contract violation")
	}
	// controller is poisoned now
	if _, err := ctl.ComputeMask(); err == nil {
		t.Fatal("poisoned controller should keep failing")
	}
	// fresh controller: double ComputeMask
	ctl, _ = NewController(e)
	if _, err := ctl.ComputeMask(); err != nil {
		t.Fatal(err)
	}
	if _, err := ctl.ComputeMask(); err == nil {
		t.Fatal("ComputeMask twice in a row should be a contract violation")
	}
	// fresh controller: token outside the mask
	ctl, _ = NewController(e)
	step, err := ctl.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	if step.Mask == nil {
		t.Fatalf("expected a mask over {a,c}, got %s", step)
	}
	bad := tokOf('x')
	if _, err := ctl.CommitToken(&bad); err == nil {
		t.Fatal("committing a token outside the mask should be a contract violation")
	}
}

func TestDelayedStopReportsSampledToken(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, `start: "x" | "y"`)
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	step, err := ctl.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	if step.Mask == nil {
		t.Fatalf("expected mask, got %s", step)
	}
	tok := tokOf('x')
	res, err := ctl.CommitToken(&tok)
	if err != nil {
		t.Fatal(err)
	}
	// the final sampled token must still be reported…
	if !res.IsSplice() || len(res.FFTokens) == 0 || res.FFTokens[0] != tok {
		t.Fatalf("sampled token must be reported in the commit splice, got %s", res)
	}
	// …and the stop arrives on the next ComputeMask
	step, err = ctl.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	if !step.IsStop() || step.Stop != steer.StopAccept {
		t.Fatalf("expected delayed Stop(accept), got %s", step)
	}
}

func TestHealingIdempotence(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	g, err := compile.FromLark(`start: WORD
WORD: /[a-z]+/`)
	if err != nil {
		t.Fatal(err)
	}
	toks := [][]byte{{}, []byte("a"), []byte("b"), []byte("c"), []byte("ab"), []byte("abc"), []byte("bc")}
	trie, err := toktrie.New(steer.Vocab{Size: uint32(len(toks)), EOS: 0}, toks)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(g, trie)
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	prompt := []steer.TokenId{1, 2, 3} // "a" "b" "c"
	healed, err := ctl.ProcessPrompt(prompt)
	if err != nil {
		t.Fatal(err)
	}
	if string(trie.Decode(healed)) != "abc" {
		t.Fatalf("healed prompt must decode to the same bytes, got %q", trie.Decode(healed))
	}
	// the healed tail is re-tokenized greedily: "a"+"bc" → "a","bc"
	if len(healed) != 2 || healed[0] != 1 || healed[1] != 6 {
		t.Errorf("expected healed prompt [1 6], got %v", healed)
	}
	// the byte-level state is intact: generation may continue with letters
	step, err := ctl.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	if step.Mask == nil || !step.Mask.IsAllowed(1) || !step.Mask.IsAllowed(0) {
		t.Errorf("after healing, both continuing and stopping must be possible, got %s", step)
	}
}

func TestDeepCloneIndependence(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, "start: foo{3,5}\nfoo: \"a\" | \"b\"")
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	step, err := ctl.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	tok := tokOf('a')
	if step.Mask == nil || !step.Mask.IsAllowed(tok) {
		t.Fatalf("expected mask allowing 'a', got %s", step)
	}
	if _, err := ctl.CommitToken(&tok); err != nil {
		t.Fatal(err)
	}
	clone := ctl.DeepClone()
	// advance original two more steps; the clone must not move
	for i := 0; i < 2; i++ {
		if _, err := ctl.ComputeMask(); err != nil {
			t.Fatal(err)
		}
		if _, err := ctl.CommitToken(&tok); err != nil {
			t.Fatal(err)
		}
	}
	step, err = clone.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	if step.Mask == nil {
		t.Fatalf("clone should still await its second token, got %s", step)
	}
	if step.Mask.IsAllowed(0) {
		t.Errorf("clone at 1 of 3 lexemes must not allow EOS yet")
	}
}

func TestMaxTokensStop(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	g, err := compile.FromLark(`start: WORD
WORD: /[a-z]+/`)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(g, byteVocab(t), WithMaxTokens(3))
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	tok := tokOf('q')
	for i := 0; i < 3; i++ {
		if _, err := ctl.ComputeMask(); err != nil {
			t.Fatal(err)
		}
		if _, err := ctl.CommitToken(&tok); err != nil {
			t.Fatal(err)
		}
	}
	step, err := ctl.ComputeMask()
	if err != nil {
		t.Fatal(err)
	}
	if !step.IsStop() || step.Stop != steer.StopMaxTokens {
		t.Fatalf("expected Stop(max_tokens), got %s", step)
	}
}

func TestCaptureProgress(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.seq")
	defer teardown()
	//
	e := larkEngine(t, `start: key ":" val
key[capture=k]: NAME
val[capture=v]: NAME
NAME: /[a-z]+/`)
	checkOracle(t, e, []string{"ab:cd"}, []string{"ab:", ":cd"})
	ctl, err := NewController(e)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range []byte("ab:cd") {
		if _, err := ctl.ComputeMask(); err != nil {
			t.Fatal(err)
		}
		tok := tokOf(b)
		if _, err := ctl.CommitToken(&tok); err != nil {
			t.Fatal(err)
		}
	}
	outputs := ctl.FlushProgress()
	var captured []ParserOutput
	for _, o := range outputs {
		if o.Name != "" {
			captured = append(captured, o)
		}
	}
	if len(captured) != 1 || captured[0].Name != "k" || captured[0].Bytes != "ab" {
		t.Errorf("expected capture k=\"ab\" after the colon closed it, got %+v", captured)
	}
}
