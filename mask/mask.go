/*
Package mask computes per-step allow-masks over a token vocabulary.

The builder walks the token trie depth-first, carrying the lexer candidate
set and an Earley cursor alongside the trie node. A whole subtree is pruned
as soon as the lexer dies; crossing a lexeme boundary forks the Earley
cursor and feeds it the closed lexeme, pruning the branch if the parser
rejects. Every vocabulary byte sequence is thus visited at most once, and
memoization of (trie node, lexer signature) pairs cuts repeated subtrees.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package mask

import (
	"github.com/cnf/structhash"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/lexer"
	"github.com/npillmayer/steer/parser"
	"github.com/npillmayer/steer/toktrie"
)

// tracer traces with key 'steer.mask'.
func tracer() tracing.Trace {
	return tracing.Select("steer.mask")
}

// AllowBias is an optional shortcut provider: serving integrations may
// precompute token subsets whose membership is fully determined by a lexer
// signature, replacing a subtree traversal by a bitwise OR.
type AllowBias interface {
	Precomputed(signature string) (*steer.BitSet, bool)
}

// Builder computes allow-masks. One builder serves one sequence; it keeps
// scratch state between steps but no committed state.
type Builder struct {
	trie *toktrie.Trie
	spec *lexer.Spec
	caps steer.InferenceCaps
	bias AllowBias
	lx   *lexer.Lexer // scratch lexer, Restore()d per walk state
}

// NewBuilder creates a mask builder over a token trie and a lexer spec.
// bias may be nil.
func NewBuilder(trie *toktrie.Trie, spec *lexer.Spec, caps steer.InferenceCaps, bias AllowBias) *Builder {
	return &Builder{
		trie: trie,
		spec: spec,
		caps: caps,
		bias: bias,
		lx:   lexer.New(spec),
	}
}

// walk states, kept on an explicit stack
type wstate struct {
	node    toktrie.NodeId
	snap    lexer.Snapshot
	cursor  *parser.Parser
	crossed uint64 // hash over the lexeme classes fed on this branch
}

// Compute produces the step result for the current (parser, lexer) state:
// a sampling mask, an unconditional splice if the grammar forces tokens and
// the runtime accepts them, or a stop.
func (b *Builder) Compute(p *parser.Parser, lx *lexer.Lexer) (steer.Step, error) {
	canStop := b.canStopNow(p, lx)
	M, err := b.computeMask(p, lx)
	if err != nil {
		return steer.Step{}, err
	}
	if b.spec.Rx().Overflow() {
		return steer.Step{}, steer.WrapError(steer.ParserLimitsExceeded,
			"regex state budget exhausted during mask computation")
	}
	if M.Count() == 0 {
		// grammar admits no further bytes
		if canStop {
			return steer.StopStep(steer.StopAccept), nil
		}
		return steer.Step{}, steer.WrapError(steer.InternalError,
			"no viable next token: vocabulary cannot extend the current prefix")
	}
	eos := b.trie.Vocab().EOS
	if canStop {
		M.Set(eos)
	}
	if b.caps.FFTokens && b.caps.ConditionalFFTokens {
		if t, ok := M.Singleton(); ok && t != eos {
			ff, err := b.unrollForced(p, lx, t)
			if err != nil {
				return steer.Step{}, err
			}
			return steer.SpliceStep(0, ff), nil
		}
	}
	return steer.MaskStep(M, b.temperature(p, lx)), nil
}

// computeMask is the core trie walk.
func (b *Builder) computeMask(p *parser.Parser, lx *lexer.Lexer) (*steer.BitSet, error) {
	M := steer.NewBitSet(b.trie.Vocab().Size)
	root := wstate{node: toktrie.Root, snap: lx.Snapshot(), cursor: p}
	if b.bias != nil {
		if pre, ok := b.bias.Precomputed(sigKey(root)); ok {
			M.Or(pre)
			return M, nil
		}
	}
	visited := make(map[string]bool)
	stack := []wstate{root}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		key := sigKey(w)
		if visited[key] {
			continue
		}
		visited[key] = true
		b.lx.Restore(w.snap)
		_, pendingOK := b.lx.PendingClass()
		if !pendingOK {
			if forced, ok := b.lx.ForcedByte(); ok {
				// every other byte kills the whole candidate set and no
				// lexeme can be emitted, so siblings need not be visited
				if child, ok := b.trie.Child(w.node, forced); ok {
					if next, ok := b.stepByte(w, forced, child); ok {
						if t, isTok := b.trie.TokenAt(child); isTok {
							M.Set(t)
						}
						stack = append(stack, next)
					}
				}
				continue
			}
		}
		live := b.lx.LiveBytes()
		b.trie.EachChild(w.node, func(byt byte, child toktrie.NodeId) bool {
			if !pendingOK && !live.Has(byt) {
				return true // byte would kill the lexer and nothing can be emitted
			}
			next, ok := b.stepByte(w, byt, child)
			if !ok {
				return true
			}
			if t, isTok := b.trie.TokenAt(child); isTok {
				M.Set(t)
			}
			stack = append(stack, next)
			return true
		})
	}
	return M, nil
}

// stepByte advances one walk state by one byte, resolving lexeme boundaries
// by forking the Earley cursor. ok=false prunes the branch.
func (b *Builder) stepByte(w wstate, byt byte, child toktrie.NodeId) (wstate, bool) {
	b.lx.Restore(w.snap)
	cursor := w.cursor
	crossed := w.crossed
	for hop := 0; ; hop++ {
		if hop > 8 {
			tracer().Errorf("lexeme boundary loop while stepping byte 0x%02x", byt)
			return wstate{}, false
		}
		outcome, em := b.lx.PushByte(byt)
		switch outcome {
		case lexer.Running:
			return wstate{node: child, snap: b.lx.Snapshot(), cursor: cursor, crossed: crossed}, true
		case lexer.Dead:
			return wstate{}, false
		case lexer.Lexeme:
			if em.Class != lexer.SkipClass {
				fork := cursor.Fork()
				if ok, err := fork.Advance(em.Class); err != nil || !ok {
					return wstate{}, false
				}
				cursor = fork
				crossed = crossed*31 + uint64(em.Class) + 1
			} else {
				crossed = crossed * 31
			}
			b.lx.StartLexeme(cursor.PredictedTerminals())
			if !em.Unread {
				return wstate{node: child, snap: b.lx.Snapshot(), cursor: cursor, crossed: crossed}, true
			}
			// the byte was unread: re-push it against the fresh lexeme
		}
	}
}

// sigKey builds the memoization key of a walk state: trie node plus the
// sorted candidate signature of the lexer plus the branch's lexeme history.
// Hash-consed regex state ids make the signature cheap and exact.
func sigKey(w wstate) string {
	key, err := structhash.Hash(struct {
		Node    uint32
		Sig     interface{}
		Crossed uint64
	}{
		Node:    uint32(w.node),
		Sig:     w.snap.Sig(),
		Crossed: w.crossed,
	}, 1)
	if err != nil {
		panic(err) // no reason for this to happen, but API demands it
	}
	return key
}

// canStopNow decides whether the sequence may terminate here: any open
// lexeme must have a pending winner, and feeding it must leave the parser
// accepting.
func (b *Builder) canStopNow(p *parser.Parser, lx *lexer.Lexer) bool {
	if lx.AtBoundary() {
		return p.IsAccepting()
	}
	c, ok := lx.PendingClass()
	if !ok {
		return false
	}
	if c == lexer.SkipClass {
		return p.IsAccepting()
	}
	fork := p.Fork()
	if ok, err := fork.Advance(c); err != nil || !ok {
		return false
	}
	return fork.IsAccepting()
}

// temperature picks the sampling temperature hint: the open lexeme's class
// wins, otherwise the first admissible class carrying a hint.
func (b *Builder) temperature(p *parser.Parser, lx *lexer.Lexer) float32 {
	g := b.spec.Grammar()
	if c, ok := lx.PendingClass(); ok && c != lexer.SkipClass {
		if t := g.Class(c).Temperature; t != grammar.NoTemperature {
			return t
		}
	}
	for _, c := range p.PredictedTerminals() {
		if t := g.Class(c).Temperature; t != grammar.NoTemperature {
			return t
		}
	}
	return 0
}

// maximum number of tokens collected into one unconditional splice
const maxForced = 16

// unrollForced follows a deterministic continuation: as long as the mask
// stays a singleton, the next token is forced and appended to the splice.
// The walk operates on forks; the caller's state is not advanced.
func (b *Builder) unrollForced(p *parser.Parser, lx *lexer.Lexer, first steer.TokenId) ([]steer.TokenId, error) {
	ff := []steer.TokenId{first}
	cursor := p.Fork()
	scratch := lexer.New(b.spec)
	scratch.Restore(lx.Snapshot())
	for len(ff) < maxForced {
		var ok bool
		cursor, ok = b.appendTokenBytes(cursor, scratch, ff[len(ff)-1])
		if !ok {
			return nil, steer.WrapError(steer.InternalError,
				"forced token %d does not extend the parse", ff[len(ff)-1])
		}
		M, err := b.computeMask(cursor, scratch)
		if err != nil {
			return nil, err
		}
		if b.canStopNow(cursor, scratch) {
			break
		}
		t, single := M.Singleton()
		if !single {
			break
		}
		ff = append(ff, t)
	}
	return ff, nil
}

// appendTokenBytes feeds the byte expansion of a token into a (parser,
// lexer) pair, resolving boundaries. Used for forced-splice unrolling.
func (b *Builder) appendTokenBytes(p *parser.Parser, lx *lexer.Lexer, t steer.TokenId) (*parser.Parser, bool) {
	bytes := b.trie.BytesFor(t)
	cursor := p
	for i := 0; i < len(bytes); {
		outcome, em := lx.PushByte(bytes[i])
		switch outcome {
		case lexer.Running:
			i++
		case lexer.Dead:
			return nil, false
		case lexer.Lexeme:
			if em.Class != lexer.SkipClass {
				fork := cursor.Fork()
				if ok, err := fork.Advance(em.Class); err != nil || !ok {
					return nil, false
				}
				cursor = fork
			}
			lx.StartLexeme(cursor.PredictedTerminals())
			if !em.Unread {
				i++
			}
		}
	}
	return cursor, true
}
