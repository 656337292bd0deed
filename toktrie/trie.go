/*
Package toktrie implements a trie over the raw byte expansions of a
tokenizer vocabulary.

The trie is the pivot of mask computation: a depth-first traversal from the
root, carrying a regex/lexer state alongside the trie node, visits every
byte sequence of the vocabulary in O(trie size) and lets the mask builder
prune whole subtrees as soon as the carried state dies.

The trie is immutable after construction and may be shared between any
number of readers.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package toktrie

import (
	"fmt"
	"sort"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer"
)

// tracer traces with key 'steer.toktrie'.
func tracer() tracing.Trace {
	return tracing.Select("steer.toktrie")
}

// NodeId identifies a trie node. The root is node 0.
type NodeId uint32

// Root is the NodeId of the trie root.
const Root NodeId = 0

type node struct {
	token int32  // token id ending at this node, or -1
	edges []edge // outgoing edges, sorted by byte
}

type edge struct {
	b  byte
	to NodeId
}

// Trie is a byte trie over a token vocabulary. Each token id appears at
// exactly one node, at the end of that token's byte expansion. Tokens with
// an empty byte expansion (EOS and other specials) are never part of the
// walkable trie; they carry no surface form and are only ever allowed
// explicitly.
type Trie struct {
	nodes   []node
	bytes   [][]byte // token id → byte expansion
	special []bool   // token id → has no byte expansion
	vocab   steer.Vocab
}

// New builds a trie from the byte expansions of all vocabulary tokens,
// indexed by token id. tokenBytes must have vocab.Size entries.
func New(vocab steer.Vocab, tokenBytes [][]byte) (*Trie, error) {
	if uint32(len(tokenBytes)) != vocab.Size {
		return nil, fmt.Errorf("vocabulary size %d does not match %d token expansions",
			vocab.Size, len(tokenBytes))
	}
	trie := &Trie{
		nodes:   []node{{token: -1}},
		bytes:   tokenBytes,
		special: make([]bool, vocab.Size),
		vocab:   vocab,
	}
	for id, bs := range tokenBytes {
		if len(bs) == 0 {
			trie.special[id] = true
			continue
		}
		n := Root
		for _, b := range bs {
			n = trie.findOrAddEdge(n, b)
		}
		if trie.nodes[n].token >= 0 {
			return nil, fmt.Errorf("duplicate byte expansion %q for tokens %d and %d",
				bs, trie.nodes[n].token, id)
		}
		trie.nodes[n].token = int32(id)
	}
	for i := range trie.nodes {
		edges := trie.nodes[i].edges
		sort.Slice(edges, func(a, b int) bool { return edges[a].b < edges[b].b })
	}
	tracer().Infof("token trie with %d nodes over %d tokens", len(trie.nodes), vocab.Size)
	return trie, nil
}

func (trie *Trie) findOrAddEdge(n NodeId, b byte) NodeId {
	for _, e := range trie.nodes[n].edges {
		if e.b == b {
			return e.to
		}
	}
	to := NodeId(len(trie.nodes))
	trie.nodes = append(trie.nodes, node{token: -1})
	trie.nodes[n].edges = append(trie.nodes[n].edges, edge{b: b, to: to})
	return to
}

// Vocab returns the vocabulary metadata the trie was built for.
func (trie *Trie) Vocab() steer.Vocab {
	return trie.vocab
}

// NodeCount returns the number of trie nodes.
func (trie *Trie) NodeCount() int {
	return len(trie.nodes)
}

// TokenAt returns the token id ending at node n, if any.
func (trie *Trie) TokenAt(n NodeId) (steer.TokenId, bool) {
	t := trie.nodes[n].token
	if t < 0 {
		return 0, false
	}
	return steer.TokenId(t), true
}

// IsSpecial returns true for tokens without a byte expansion.
func (trie *Trie) IsSpecial(t steer.TokenId) bool {
	return uint32(t) < trie.vocab.Size && trie.special[t]
}

// BytesFor returns the byte expansion of token t.
func (trie *Trie) BytesFor(t steer.TokenId) []byte {
	if uint32(t) >= trie.vocab.Size {
		return nil
	}
	return trie.bytes[t]
}

// EachChild calls f for every outgoing edge of node n, in byte order.
// Iteration stops early if f returns false.
func (trie *Trie) EachChild(n NodeId, f func(b byte, child NodeId) bool) {
	for _, e := range trie.nodes[n].edges {
		if !f(e.b, e.to) {
			return
		}
	}
}

// Child returns the child of n along byte b, if present.
func (trie *Trie) Child(n NodeId, b byte) (NodeId, bool) {
	edges := trie.nodes[n].edges
	i := sort.Search(len(edges), func(i int) bool { return edges[i].b >= b })
	if i < len(edges) && edges[i].b == b {
		return edges[i].to, true
	}
	return 0, false
}

// WalkPrefix walks the trie along the given bytes and returns the node
// reached, if the whole prefix is present.
func (trie *Trie) WalkPrefix(prefix []byte) (NodeId, bool) {
	n := Root
	for _, b := range prefix {
		var ok bool
		if n, ok = trie.Child(n, b); !ok {
			return 0, false
		}
	}
	return n, true
}

// Decode concatenates the byte expansions of a token sequence.
func (trie *Trie) Decode(tokens []steer.TokenId) []byte {
	var out []byte
	for _, t := range tokens {
		out = append(out, trie.BytesFor(t)...)
	}
	return out
}

// GreedyTokenize splits input into tokens by longest match at every
// position. This is a fallback for re-tokenizing healed prompt bytes; it is
// not guaranteed to reproduce the tokenizer's canonical segmentation.
// Bytes not covered by any token are dropped with a warning.
func (trie *Trie) GreedyTokenize(input []byte) []steer.TokenId {
	var out []steer.TokenId
	pos := 0
	for pos < len(input) {
		n := Root
		lastTok := int32(-1)
		lastLen := 0
		for i := pos; i < len(input); i++ {
			var ok bool
			if n, ok = trie.Child(n, input[i]); !ok {
				break
			}
			if t := trie.nodes[n].token; t >= 0 {
				lastTok = t
				lastLen = i - pos + 1
			}
		}
		if lastTok < 0 {
			tracer().Errorf("greedy tokenizer: no token covers byte 0x%02x, dropping", input[pos])
			pos++
			continue
		}
		out = append(out, steer.TokenId(lastTok))
		pos += lastLen
	}
	return out
}
