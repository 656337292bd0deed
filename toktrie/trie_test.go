package toktrie

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/steer"
)

func testTrie(t *testing.T) *Trie {
	// token 0 = EOS (no bytes)
	toks := [][]byte{
		{},              // 0 eos
		[]byte("a"),     // 1
		[]byte("b"),     // 2
		[]byte("ab"),    // 3
		[]byte("abc"),   // 4
		[]byte("bcd"),   // 5
		[]byte(" "),     // 6
		[]byte("hello"), // 7
	}
	trie, err := New(steer.Vocab{Size: uint32(len(toks)), EOS: 0}, toks)
	if err != nil {
		t.Fatal(err)
	}
	return trie
}

func TestTrieLookup(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.toktrie")
	defer teardown()
	//
	trie := testTrie(t)
	n, ok := trie.WalkPrefix([]byte("ab"))
	if !ok {
		t.Fatal("prefix 'ab' should be in the trie")
	}
	if tok, ok := trie.TokenAt(n); !ok || tok != 3 {
		t.Errorf("expected token 3 at 'ab', got %d/%v", tok, ok)
	}
	if _, ok := trie.WalkPrefix([]byte("abx")); ok {
		t.Errorf("prefix 'abx' should not be in the trie")
	}
	if !trie.IsSpecial(0) || trie.IsSpecial(1) {
		t.Errorf("special flags wrong")
	}
}

func TestTrieChildren(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.toktrie")
	defer teardown()
	//
	trie := testTrie(t)
	var bytes []byte
	trie.EachChild(Root, func(b byte, child NodeId) bool {
		bytes = append(bytes, b)
		return true
	})
	if diff := cmp.Diff([]byte(" abh"), bytes); diff != "" {
		t.Errorf("root children out of order (-want +got):\n%s", diff)
	}
}

func TestGreedyTokenize(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.toktrie")
	defer teardown()
	//
	trie := testTrie(t)
	got := trie.GreedyTokenize([]byte("abcb ab"))
	want := []steer.TokenId{4, 2, 6, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("greedy tokenization differs (-want +got):\n%s", diff)
	}
	if decoded := string(trie.Decode(got)); decoded != "abcb ab" {
		t.Errorf("decode(tokenize(s)) = %q, want original", decoded)
	}
}

func TestDuplicateTokenRejected(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "steer.toktrie")
	defer teardown()
	//
	_, err := New(steer.Vocab{Size: 2}, [][]byte{[]byte("x"), []byte("x")})
	if err == nil {
		t.Errorf("duplicate byte expansions should be rejected")
	}
}
