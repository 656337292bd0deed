package rx

// Derivative computation. For expression r and byte b, the derivative
// ∂b(r) is the expression of all strings s with b·s ∈ L(r). Stepping a
// state is taking a derivative; since derivatives of interned expressions
// are interned expressions again, the (state, byte) → state table emerges
// lazily and is cached.

// Step returns the derivative of state s with respect to byte b.
func (eng *Engine) Step(s NodeId, b byte) NodeId {
	key := derivKey{N: s, B: b}
	if d, ok := eng.deriv[key]; ok {
		return d
	}
	d := eng.derive(s, b)
	eng.deriv[key] = d
	return d
}

func (eng *Engine) derive(s NodeId, b byte) NodeId {
	n := eng.node(s)
	switch n.Op {
	case opEmpty, opEpsilon:
		return eng.Empty()
	case opClass:
		if n.Set.Has(b) {
			return eng.Epsilon()
		}
		return eng.Empty()
	case opConcat:
		return eng.deriveConcat(n.Args, b)
	case opUnion:
		args := make([]NodeId, len(n.Args))
		for i, a := range n.Args {
			args[i] = eng.Step(a, b)
		}
		return eng.Union(args...)
	case opStar:
		inner := n.Args[0]
		return eng.Concat(eng.Step(inner, b), s)
	}
	return eng.Empty()
}

// ∂b(r·t) = ∂b(r)·t  |  nullable(r) ? ∂b(t) : ∅
func (eng *Engine) deriveConcat(args []NodeId, b byte) NodeId {
	head := args[0]
	rest := args[1:]
	d := eng.Concat(append([]NodeId{eng.Step(head, b)}, rest...)...)
	if !eng.Nullable(head) {
		return d
	}
	var dRest NodeId
	if len(rest) == 1 {
		dRest = eng.Step(rest[0], b)
	} else {
		dRest = eng.deriveConcat(rest, b)
	}
	return eng.Union(d, dRest)
}

// Nullable returns true if state s accepts the empty string, i.e. if a
// lexeme may end here.
func (eng *Engine) Nullable(s NodeId) bool {
	switch eng.nullable[s] {
	case 1:
		return false
	case 2:
		return true
	}
	n := eng.node(s)
	var null bool
	switch n.Op {
	case opEpsilon, opStar:
		null = true
	case opEmpty, opClass:
		null = false
	case opConcat:
		null = true
		for _, a := range n.Args {
			if !eng.Nullable(a) {
				null = false
				break
			}
		}
	case opUnion:
		for _, a := range n.Args {
			if eng.Nullable(a) {
				null = true
				break
			}
		}
	}
	if null {
		eng.nullable[s] = 2
	} else {
		eng.nullable[s] = 1
	}
	return null
}

// Dead returns true if state s matches nothing at all, now or later. The
// constructors normalize every empty language to ∅, so deadness is an
// identity check.
func (eng *Engine) Dead(s NodeId) bool {
	return s == eng.Empty()
}

// FirstBytes returns the set of bytes b for which Step(s, b) is live.
func (eng *Engine) FirstBytes(s NodeId) ByteSet {
	if eng.firstKnown[s] {
		return eng.first[s]
	}
	n := eng.node(s)
	var set ByteSet
	switch n.Op {
	case opEmpty, opEpsilon:
		// empty set
	case opClass:
		set = n.Set
	case opConcat:
		for _, a := range n.Args {
			set = set.Union(eng.FirstBytes(a))
			if !eng.Nullable(a) {
				break
			}
		}
	case opUnion:
		for _, a := range n.Args {
			set = set.Union(eng.FirstBytes(a))
		}
	case opStar:
		set = eng.FirstBytes(n.Args[0])
	}
	eng.first[s] = set
	eng.firstKnown[s] = true
	return set
}

// ForcedByte returns the single byte which keeps state s alive, if exactly
// one such byte exists.
func (eng *Engine) ForcedByte(s NodeId) (byte, bool) {
	return eng.FirstBytes(s).Single()
}
