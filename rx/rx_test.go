package rx

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// match steps a state over input and reports whether the final state is
// nullable.
func match(eng *Engine, s NodeId, input string) bool {
	for i := 0; i < len(input); i++ {
		s = eng.Step(s, input[i])
		if eng.Dead(s) {
			return false
		}
	}
	return eng.Nullable(s)
}

func TestLiteral(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	abc := eng.Literal([]byte("abc"))
	if !match(eng, abc, "abc") {
		t.Errorf("'abc' should match abc")
	}
	for _, bad := range []string{"", "ab", "abcd", "abd"} {
		if match(eng, abc, bad) {
			t.Errorf("%q should not match abc", bad)
		}
	}
}

func TestHashConsing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	a := eng.Literal([]byte("xy"))
	b := eng.Concat(eng.Byte('x'), eng.Byte('y'))
	if a != b {
		t.Errorf("structurally equal expressions should intern to the same id, got %d and %d", a, b)
	}
	u1 := eng.Union(a, eng.Byte('z'))
	u2 := eng.Union(eng.Byte('z'), b)
	if u1 != u2 {
		t.Errorf("unions should be order-independent after normalization")
	}
}

func TestDerivativeOfStar(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	ab := eng.Star(eng.Union(eng.Byte('a'), eng.Byte('b')))
	for _, good := range []string{"", "a", "b", "abba", "aaaa"} {
		if !match(eng, ab, good) {
			t.Errorf("%q should match (a|b)*", good)
		}
	}
	if match(eng, ab, "abc") {
		t.Errorf("'abc' should not match (a|b)*")
	}
	// stepping (a|b)* by 'a' must come back to the same state
	if d := eng.Step(ab, 'a'); d != ab {
		t.Errorf("∂a((a|b)*) should be (a|b)* itself, got a different state")
	}
}

func TestRepeatBounds(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	r := eng.Repeat(eng.Byte('a'), 2, 4)
	for n, want := range map[int]bool{0: false, 1: false, 2: true, 3: true, 4: true, 5: false} {
		in := ""
		for i := 0; i < n; i++ {
			in += "a"
		}
		if got := match(eng, r, in); got != want {
			t.Errorf("a{2,4} on %d × 'a': got %v, want %v", n, got, want)
		}
	}
	if r2 := eng.Repeat(eng.Byte('a'), 3, -1); !match(eng, r2, "aaaaa") || match(eng, r2, "aa") {
		t.Errorf("a{3,} mismatch")
	}
}

func TestDeadIsIdentity(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	abc := eng.Literal([]byte("abc"))
	s := eng.Step(abc, 'x')
	if !eng.Dead(s) {
		t.Errorf("stepping 'abc' by 'x' should be dead")
	}
	if s != eng.Empty() {
		t.Errorf("all dead states should collapse to ∅")
	}
}

func TestForcedByte(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	abc := eng.Literal([]byte("abc"))
	if b, ok := eng.ForcedByte(abc); !ok || b != 'a' {
		t.Errorf("'abc' should force byte 'a', got %q/%v", b, ok)
	}
	s := eng.Step(abc, 'a')
	if b, ok := eng.ForcedByte(s); !ok || b != 'b' {
		t.Errorf("after 'a', 'abc' should force byte 'b', got %q/%v", b, ok)
	}
	alt := eng.Union(eng.Literal([]byte("ax")), eng.Literal([]byte("bx")))
	if _, ok := eng.ForcedByte(alt); ok {
		t.Errorf("ax|bx should not force a first byte")
	}
}

func TestParsePattern(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	id, err := eng.ParsePattern(`[a-z]+[0-9]{2}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, good := range []string{"ab12", "z00"} {
		if !match(eng, id, good) {
			t.Errorf("%q should match [a-z]+[0-9]{2}", good)
		}
	}
	for _, bad := range []string{"12", "ab1", "ab123", "AB12"} {
		if match(eng, id, bad) {
			t.Errorf("%q should not match [a-z]+[0-9]{2}", bad)
		}
	}
}

func TestParsePatternUnicode(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	id, err := eng.ParsePattern(`...`)
	if err != nil {
		t.Fatal(err)
	}
	// any-char counts code points, not bytes
	if !match(eng, id, "🔵🟠✅") {
		t.Errorf("three emoji should match three any-chars")
	}
	if match(eng, id, "🔵🟠") {
		t.Errorf("two emoji should not match three any-chars")
	}
	if !match(eng, id, "a🟠c") {
		t.Errorf("mixed-width input should match three any-chars")
	}
}

func TestParsePatternRejects(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.rx")
	defer teardown()
	//
	eng := NewEngine(0)
	for _, pat := range []string{`a\bb`, `(?m)^a$`} {
		if _, err := eng.ParsePattern(pat); err == nil {
			t.Errorf("pattern %q should be rejected", pat)
		}
	}
}
