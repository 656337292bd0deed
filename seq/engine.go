/*
Package seq exposes the per-sequence state machine used by LLM serving
runtimes.

An Engine bundles the immutable pieces (compiled grammar, token trie,
lexer spec, capabilities and limits) and mints Controllers, one per
generated sequence. The controller enforces the strict call protocol
ProcessPrompt ≺ ComputeMask ≺ CommitToken ≺ ComputeMask ≺ …, heals the
prompt tail, applies forced-token splices and reports captured regions.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package seq

import (
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/lexer"
	"github.com/npillmayer/steer/mask"
	"github.com/npillmayer/steer/parser"
	"github.com/npillmayer/steer/toktrie"
)

// tracer traces with key 'steer.seq'.
func tracer() tracing.Trace {
	return tracing.Select("steer.seq")
}

// Engine bundles the immutable parts of a constraint: grammar, trie, lexer
// spec, capabilities and limits. Engines are shared by any number of
// controllers.
type Engine struct {
	g         *grammar.Grammar
	trie      *toktrie.Trie
	spec      *lexer.Spec
	caps      steer.InferenceCaps
	limits    steer.ParserLimits
	maxTokens int // per-sequence token budget, 0 = unlimited
	bias      mask.AllowBias
}

// Option configures an engine.
type Option func(e *Engine)

// WithCaps declares the runtime's inference capabilities.
func WithCaps(caps steer.InferenceCaps) Option {
	return func(e *Engine) {
		e.caps = caps
	}
}

// WithLimits bounds the work per mask computation.
func WithLimits(limits steer.ParserLimits) Option {
	return func(e *Engine) {
		e.limits = limits
	}
}

// WithMaxTokens bounds the total number of committed tokens per sequence.
func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		e.maxTokens = n
	}
}

// WithAllowBias installs a precomputed-mask provider.
func WithAllowBias(bias mask.AllowBias) Option {
	return func(e *Engine) {
		e.bias = bias
	}
}

// NewEngine creates an engine for a compiled grammar over a token trie.
func NewEngine(g *grammar.Grammar, trie *toktrie.Trie, opts ...Option) *Engine {
	e := &Engine{
		g:      g,
		trie:   trie,
		caps:   steer.InferenceCaps{Backtrack: true, FFTokens: true, ConditionalFFTokens: true},
		limits: steer.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.spec = lexer.NewSpec(g, e.limits.MaxLexemeBytes)
	return e
}

// Grammar returns the compiled grammar of the engine.
func (e *Engine) Grammar() *grammar.Grammar {
	return e.g
}

// Trie returns the token trie of the engine.
func (e *Engine) Trie() *toktrie.Trie {
	return e.trie
}

// Caps returns the configured inference capabilities.
func (e *Engine) Caps() steer.InferenceCaps {
	return e.caps
}

// --- Byte feeding -----------------------------------------------------------

// emitted is a closed lexeme observed while feeding bytes.
type emitted struct {
	class int
	text  []byte
}

// feedState is the mutable (parser, lexer) pair bytes are pushed into,
// plus the byte buffer of the open lexeme.
type feedState struct {
	spec *lexer.Spec
	p    *parser.Parser
	lx   *lexer.Lexer
	buf  []byte // bytes of the open lexeme
}

// newFeedState creates a feed state at the grammar start.
func (e *Engine) newFeedState() (*feedState, error) {
	p, err := parser.New(e.g, e.limits)
	if err != nil {
		return nil, err
	}
	lx := lexer.New(e.spec)
	lx.StartLexeme(p.PredictedTerminals())
	return &feedState{spec: e.spec, p: p, lx: lx}, nil
}

// clone duplicates a feed state; both sides evolve independently.
func (fs *feedState) clone() *feedState {
	lx := lexer.New(fs.spec)
	lx.Restore(fs.lx.Snapshot())
	return &feedState{
		spec: fs.spec,
		p:    fs.p.Fork(),
		lx:   lx,
		buf:  append([]byte(nil), fs.buf...),
	}
}

// pushByte feeds one byte, resolving lexeme boundaries. Emissions of
// non-skip lexemes are appended to out. ok=false means the grammar rejects
// the byte.
func (fs *feedState) pushByte(b byte, out *[]emitted) (bool, error) {
	for hop := 0; ; hop++ {
		if hop > 8 {
			return false, steer.WrapError(steer.InternalError, "lexeme boundary loop on byte 0x%02x", b)
		}
		outcome, em := fs.lx.PushByte(b)
		switch outcome {
		case lexer.Running:
			fs.buf = append(fs.buf, b)
			return true, nil
		case lexer.Dead:
			return false, nil
		case lexer.Lexeme:
			text := fs.buf
			if !em.Unread {
				text = append(text, b)
			}
			if em.Class != lexer.SkipClass {
				ok, err := fs.p.Advance(em.Class)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
				if out != nil {
					*out = append(*out, emitted{class: em.Class, text: append([]byte(nil), text...)})
				}
			}
			fs.buf = fs.buf[:0]
			fs.lx.StartLexeme(fs.p.PredictedTerminals())
			if !em.Unread {
				return true, nil
			}
		}
	}
}

// pushBytes feeds a byte sequence.
func (fs *feedState) pushBytes(bytes []byte, out *[]emitted) (bool, error) {
	for _, b := range bytes {
		ok, err := fs.pushByte(b, out)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// flush closes the open lexeme at end of input, if any.
func (fs *feedState) flush(out *[]emitted) (bool, error) {
	if fs.lx.AtBoundary() {
		return true, nil
	}
	em, ok := fs.lx.FlushLexeme()
	if !ok {
		return false, nil
	}
	if em.Class != lexer.SkipClass {
		ok, err := fs.p.Advance(em.Class)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if out != nil {
			*out = append(*out, emitted{class: em.Class, text: append([]byte(nil), fs.buf...)})
		}
	}
	fs.buf = fs.buf[:0]
	fs.lx.StartLexeme(fs.p.PredictedTerminals())
	return true, nil
}

// Accepts runs the grammar over a byte string, the oracle used by tests
// and the REPL: true means the input is a complete sentence.
func (e *Engine) Accepts(input []byte) (bool, error) {
	fs, err := e.newFeedState()
	if err != nil {
		return false, err
	}
	if ok, err := fs.pushBytes(input, nil); err != nil || !ok {
		return false, err
	}
	if ok, err := fs.flush(nil); err != nil || !ok {
		return false, err
	}
	return fs.p.IsAccepting(), nil
}
