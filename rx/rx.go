/*
Package rx implements a byte-level regular expression engine based on
Brzozowski derivatives.

Expressions are built through an Engine, which interns every node
(hash-consing): structurally equal expressions collapse to the same NodeId,
so identity of ids decides semantic equality. A NodeId doubles as a DFA
state: stepping a state by an input byte is taking the derivative of the
expression, which is again an interned node. Derivatives are cached, which
over time materializes exactly the reachable part of the DFA.

Semantics are byte-level: UTF-8 input is handled by lowering rune ranges to
alternations of byte sequences, the engine itself never interprets code
points.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package rx

import (
	"sort"

	"github.com/cnf/structhash"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'steer.rx'.
func tracer() tracing.Trace {
	return tracing.Select("steer.rx")
}

// NodeId is an interned handle for a regex expression, and at the same time
// a DFA state handle. The zero value is invalid.
type NodeId uint32

// NoNode is the invalid NodeId.
const NoNode NodeId = 0

type op int8

const (
	opEmpty   op = iota // ∅, the empty language
	opEpsilon           // ε, the empty string
	opClass             // a set of bytes
	opConcat            // sequence of sub-expressions
	opUnion             // alternation of sub-expressions
	opStar              // Kleene closure of Args[0]
)

// Node is the interned representation of a regex expression. Fields are
// exported for hashing only; clients treat nodes as opaque and use NodeIds.
type Node struct {
	Op   op
	Set  ByteSet  // for opClass
	Args []NodeId // children, for opConcat/opUnion/opStar
}

// Engine is an arena of interned regex nodes plus the derivative cache.
// An Engine is not safe for concurrent mutation; parser factories sharing
// one must serialize access.
type Engine struct {
	nodes      []Node
	ids        map[string]NodeId
	deriv      map[derivKey]NodeId
	nullable   []int8   // memo per node: 0 unknown, 1 false, 2 true
	first      []ByteSet
	firstKnown []bool
	maxStates  int
	overflow   bool
}

type derivKey struct {
	N NodeId
	B byte
}

// NewEngine creates an empty regex engine. maxStates bounds the number of
// interned nodes; 0 means unbounded.
func NewEngine(maxStates int) *Engine {
	eng := &Engine{
		nodes:     make([]Node, 1, 256), // nodes[0] is NoNode
		ids:       make(map[string]NodeId),
		deriv:     make(map[derivKey]NodeId),
		maxStates: maxStates,
	}
	eng.nullable = append(eng.nullable, 0)
	eng.first = append(eng.first, ByteSet{})
	eng.firstKnown = append(eng.firstKnown, false)
	return eng
}

// Overflow reports whether the engine has exceeded its state budget. Once
// set, newly created nodes degenerate to the empty language and results are
// unusable.
func (eng *Engine) Overflow() bool {
	return eng.overflow
}

// StateCount returns the number of interned nodes.
func (eng *Engine) StateCount() int {
	return len(eng.nodes) - 1
}

func (eng *Engine) node(id NodeId) *Node {
	return &eng.nodes[id]
}

// intern stores a node, deduplicating against all previously stored nodes.
func (eng *Engine) intern(n Node) NodeId {
	key, err := structhash.Hash(n, 1)
	if err != nil {
		panic(err) // no reason for this to happen, but API demands it
	}
	if id, ok := eng.ids[key]; ok {
		return id
	}
	if eng.maxStates > 0 && len(eng.nodes) >= eng.maxStates {
		if !eng.overflow {
			tracer().Errorf("regex state budget exceeded (%d states)", eng.maxStates)
			eng.overflow = true
		}
		return eng.Empty()
	}
	id := NodeId(len(eng.nodes))
	eng.nodes = append(eng.nodes, n)
	eng.nullable = append(eng.nullable, 0)
	eng.first = append(eng.first, ByteSet{})
	eng.firstKnown = append(eng.firstKnown, false)
	eng.ids[key] = id
	return id
}

// --- Constructors -----------------------------------------------------------

// Empty returns ∅, the expression matching nothing. It is the only dead
// state of the engine.
func (eng *Engine) Empty() NodeId {
	return eng.intern(Node{Op: opEmpty})
}

// Epsilon returns ε, the expression matching exactly the empty string.
func (eng *Engine) Epsilon() NodeId {
	return eng.intern(Node{Op: opEpsilon})
}

// Class returns an expression matching any single byte of the given set.
func (eng *Engine) Class(set ByteSet) NodeId {
	if set.IsEmpty() {
		return eng.Empty()
	}
	return eng.intern(Node{Op: opClass, Set: set})
}

// ClassRange returns an expression matching a single byte in [lo, hi].
func (eng *Engine) ClassRange(lo, hi byte) NodeId {
	var set ByteSet
	set.AddRange(lo, hi)
	return eng.Class(set)
}

// Byte returns an expression matching exactly the given byte.
func (eng *Engine) Byte(b byte) NodeId {
	return eng.ClassRange(b, b)
}

// Literal returns an expression matching exactly the given byte sequence.
func (eng *Engine) Literal(bytes []byte) NodeId {
	args := make([]NodeId, len(bytes))
	for i, b := range bytes {
		args[i] = eng.Byte(b)
	}
	return eng.Concat(args...)
}

// Concat returns the sequence of the given expressions. Nested
// concatenations are flattened, ε-children dropped; a single ∅ child
// collapses the whole sequence to ∅.
func (eng *Engine) Concat(args ...NodeId) NodeId {
	flat := make([]NodeId, 0, len(args))
	empty := eng.Empty()
	eps := eng.Epsilon()
	for _, a := range args {
		if a == empty {
			return empty
		}
		if a == eps {
			continue
		}
		if n := eng.node(a); n.Op == opConcat {
			flat = append(flat, n.Args...)
		} else {
			flat = append(flat, a)
		}
	}
	switch len(flat) {
	case 0:
		return eps
	case 1:
		return flat[0]
	}
	return eng.intern(Node{Op: opConcat, Args: flat})
}

// Union returns the alternation of the given expressions. Nested unions are
// flattened, ∅-children dropped, duplicates removed and byte classes merged,
// all of which keeps derivative state sets small and comparable.
func (eng *Engine) Union(args ...NodeId) NodeId {
	flat := make([]NodeId, 0, len(args))
	empty := eng.Empty()
	var classes ByteSet
	haveClass := false
	for _, a := range args {
		a := a
		stack := []NodeId{a}
		for len(stack) > 0 {
			x := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if x == empty {
				continue
			}
			n := eng.node(x)
			switch n.Op {
			case opUnion:
				stack = append(stack, n.Args...)
			case opClass:
				classes = classes.Union(n.Set)
				haveClass = true
			default:
				flat = append(flat, x)
			}
		}
	}
	if haveClass {
		flat = append(flat, eng.Class(classes))
	}
	sort.Slice(flat, func(i, j int) bool { return flat[i] < flat[j] })
	uniq := flat[:0]
	var last NodeId
	for i, a := range flat {
		if i == 0 || a != last {
			uniq = append(uniq, a)
		}
		last = a
	}
	switch len(uniq) {
	case 0:
		return empty
	case 1:
		return uniq[0]
	}
	return eng.intern(Node{Op: opUnion, Args: append([]NodeId(nil), uniq...)})
}

// Star returns the Kleene closure of e.
func (eng *Engine) Star(e NodeId) NodeId {
	if e == eng.Empty() || e == eng.Epsilon() {
		return eng.Epsilon()
	}
	if n := eng.node(e); n.Op == opStar {
		return e
	}
	return eng.intern(Node{Op: opStar, Args: []NodeId{e}})
}

// Optional returns e | ε.
func (eng *Engine) Optional(e NodeId) NodeId {
	return eng.Union(eng.Epsilon(), e)
}

// Repeat returns e{min,max}. A negative max means unbounded. Bounded
// repetitions are expanded into nested optionals at construction time, so
// the derivative logic never sees counters.
func (eng *Engine) Repeat(e NodeId, min, max int) NodeId {
	if min < 0 {
		min = 0
	}
	if max >= 0 && max < min {
		return eng.Empty()
	}
	head := make([]NodeId, 0, min+1)
	for i := 0; i < min; i++ {
		head = append(head, e)
	}
	if max < 0 {
		head = append(head, eng.Star(e))
		return eng.Concat(head...)
	}
	// right-fold the optional tail: (e (e (…)?)?)?
	tail := eng.Epsilon()
	for i := 0; i < max-min; i++ {
		tail = eng.Optional(eng.Concat(e, tail))
	}
	head = append(head, tail)
	return eng.Concat(head...)
}
