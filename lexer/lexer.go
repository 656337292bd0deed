/*
Package lexer maintains the set of candidate terminals while bytes are
appended, and decides where lexeme boundaries fall.

The lexer holds, for every terminal lexically admissible at the current
parser position, the derivative of that terminal's regex under the bytes
consumed since the last boundary. When a byte kills the whole candidate set,
the previous position was the end of a lexeme: the pending winner is
emitted and the byte is unread. Ties between nullable candidates are broken
deterministically by declaration order, earliest declared wins. A skip
regex, if declared, takes part as an implicit lowest-priority terminal whose
emissions are discarded.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package lexer

import (
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

// tracer traces with key 'steer.lexer'.
func tracer() tracing.Trace {
	return tracing.Select("steer.lexer")
}

// SkipClass is the pseudo class index of the skip terminal.
const SkipClass = -1

const noPending = -2

// Spec is the compiled, immutable lexer configuration derived from a
// grammar: per class the start state of its effective regex (body, or body
// followed by the stop regex for generate-until-stop terminals).
type Spec struct {
	g           *grammar.Grammar
	eng         *rx.Engine
	startStates []rx.NodeId
	maxBytes    int
}

// NewSpec compiles the lexer configuration for a grammar. maxLexemeBytes
// bounds the length of a single lexeme; 0 means unbounded.
func NewSpec(g *grammar.Grammar, maxLexemeBytes int) *Spec {
	spec := &Spec{
		g:        g,
		eng:      g.Rx(),
		maxBytes: maxLexemeBytes,
	}
	for i := 0; i < g.ClassCount(); i++ {
		cls := g.Class(i)
		state := cls.Body
		if cls.Stop != rx.NoNode {
			state = spec.eng.Concat(cls.Body, cls.Stop)
		}
		spec.startStates = append(spec.startStates, state)
	}
	return spec
}

// Grammar returns the grammar the spec was compiled from.
func (spec *Spec) Grammar() *grammar.Grammar {
	return spec.g
}

// Rx returns the regex engine of the underlying grammar.
func (spec *Spec) Rx() *rx.Engine {
	return spec.eng
}

func (spec *Spec) isLazy(class int) bool {
	if class == SkipClass {
		return false
	}
	return spec.g.Class(class).Lazy
}

// candidate is one (lexeme class, regex state) pair of the candidate set.
type candidate struct {
	class int
	state rx.NodeId
}

// Lexer is the mutable lexing state of one sequence: the candidate set and
// the pending winner since the last lexeme boundary. Lexers are cheap to
// snapshot, which the mask builder relies on.
type Lexer struct {
	spec    *Spec
	cand    []candidate
	pending int // class nullable at the current position, or noPending
	nbytes  int // bytes since the last boundary
}

// New creates a lexer for the given spec. StartLexeme must be called before
// bytes are pushed.
func New(spec *Spec) *Lexer {
	return &Lexer{spec: spec, pending: noPending}
}

// Outcome is the verdict of pushing one byte.
type Outcome int

// Outcomes of Lexer.PushByte.
const (
	Running Outcome = iota // byte consumed, lexeme still open
	Lexeme                 // a lexeme boundary was found
	Dead                   // no candidate left and nothing to emit
)

// Emission describes an emitted lexeme.
type Emission struct {
	Class  int  // emitted lexeme class, or SkipClass
	Unread bool // the triggering byte was not consumed and must be re-pushed
}

// StartLexeme resets the candidate set for a fresh lexeme. admissible lists
// the lexeme classes the parser can accept at this position, in ascending
// index order. The skip terminal joins implicitly.
func (lx *Lexer) StartLexeme(admissible []int) {
	lx.cand = lx.cand[:0]
	for _, class := range admissible {
		lx.cand = append(lx.cand, candidate{class: class, state: lx.spec.startStates[class]})
	}
	if lx.spec.g.Skip != rx.NoNode {
		lx.cand = append(lx.cand, candidate{class: SkipClass, state: lx.spec.g.Skip})
	}
	lx.pending = noPending
	lx.nbytes = 0
}

// Live returns true if at least one candidate is alive.
func (lx *Lexer) Live() bool {
	return len(lx.cand) > 0
}

// PendingClass returns the class that would be emitted if the input ended
// here, which may be SkipClass; ok is false if no candidate can end here.
func (lx *Lexer) PendingClass() (int, bool) {
	if lx.pending == noPending {
		return 0, false
	}
	return lx.pending, true
}

// Bytes returns the number of bytes consumed since the last boundary.
func (lx *Lexer) Bytes() int {
	return lx.nbytes
}

// PushByte advances every candidate by b. If the candidate set dies, the
// pending winner is emitted with Unread=true and the caller restarts the
// lexeme and re-pushes b. A lazy winner emits immediately with the byte
// consumed.
func (lx *Lexer) PushByte(b byte) (Outcome, Emission) {
	if lx.spec.maxBytes > 0 && lx.nbytes >= lx.spec.maxBytes {
		tracer().Errorf("lexeme exceeds %d bytes", lx.spec.maxBytes)
		return Dead, Emission{}
	}
	eng := lx.spec.eng
	next := lx.cand[:0]
	for _, c := range lx.cand {
		s := eng.Step(c.state, b)
		if !eng.Dead(s) {
			next = append(next, candidate{class: c.class, state: s})
		}
	}
	if len(next) == 0 {
		lx.cand = next
		if lx.pending == noPending {
			return Dead, Emission{}
		}
		return Lexeme, Emission{Class: lx.pending, Unread: true}
	}
	lx.cand = next
	lx.nbytes++
	lx.pending = lx.winner()
	if lx.pending != noPending && lx.spec.isLazy(lx.pending) {
		return Lexeme, Emission{Class: lx.pending, Unread: false}
	}
	return Running, Emission{}
}

// winner determines the nullable candidate with the best priority:
// declared classes by ascending index, the skip terminal last.
func (lx *Lexer) winner() int {
	eng := lx.spec.eng
	best := noPending
	for _, c := range lx.cand {
		if !eng.Nullable(c.state) {
			continue
		}
		if best == noPending {
			best = c.class
			continue
		}
		if better(c.class, best) {
			best = c.class
		}
	}
	return best
}

// better compares class priorities; skip loses against every declared class.
func better(a, b int) bool {
	if a == SkipClass {
		return false
	}
	if b == SkipClass {
		return true
	}
	return a < b
}

// FlushLexeme emits the pending winner at end of input, if any.
func (lx *Lexer) FlushLexeme() (Emission, bool) {
	if lx.pending == noPending {
		return Emission{}, false
	}
	return Emission{Class: lx.pending, Unread: false}, true
}

// AtBoundary returns true if no bytes have been consumed since the last
// boundary.
func (lx *Lexer) AtBoundary() bool {
	return lx.nbytes == 0
}

// ForcedByte returns the single byte every live candidate agrees on, if all
// other bytes would kill the whole candidate set.
func (lx *Lexer) ForcedByte() (byte, bool) {
	if len(lx.cand) == 1 {
		return lx.spec.eng.ForcedByte(lx.cand[0].state)
	}
	return lx.LiveBytes().Single()
}

// LiveBytes returns the set of bytes which keep at least one candidate
// alive.
func (lx *Lexer) LiveBytes() rx.ByteSet {
	eng := lx.spec.eng
	var union rx.ByteSet
	for _, c := range lx.cand {
		union = union.Union(eng.FirstBytes(c.state))
	}
	return union
}

// Snapshot captures the lexer state for later restoration. Snapshots are
// value copies; restoring one does not disturb other snapshots.
func (lx *Lexer) Snapshot() Snapshot {
	return Snapshot{
		cand:    append([]candidate(nil), lx.cand...),
		pending: lx.pending,
		nbytes:  lx.nbytes,
	}
}

// Snapshot is a saved lexer state.
type Snapshot struct {
	cand    []candidate
	pending int
	nbytes  int
}

// Restore resets the lexer to a snapshot.
func (lx *Lexer) Restore(s Snapshot) {
	lx.cand = append(lx.cand[:0], s.cand...)
	lx.pending = s.pending
	lx.nbytes = s.nbytes
}

// Sig exposes the candidate pairs of a snapshot for memo keys.
func (s Snapshot) Sig() []struct {
	Class int
	State uint32
} {
	sig := make([]struct {
		Class int
		State uint32
	}, len(s.cand))
	for i, c := range s.cand {
		sig[i].Class = c.class
		sig[i].State = uint32(c.state)
	}
	return sig
}
