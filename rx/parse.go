package rx

import (
	"fmt"
	"regexp/syntax"
	"unicode"
	"unicode/utf8"
)

// ParsePattern compiles a textual regular expression into an interned
// expression. The pattern uses Go regexp syntax; it is matched against the
// whole input (anchored), so ^ and $ at the edges are no-ops. Word
// boundaries, line anchors and locale-dependent constructs are rejected.
func (eng *Engine) ParsePattern(pattern string) (NodeId, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return NoNode, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return eng.fromSyntax(re)
}

func (eng *Engine) fromSyntax(re *syntax.Regexp) (NodeId, error) {
	switch re.Op {
	case syntax.OpNoMatch:
		return eng.Empty(), nil
	case syntax.OpEmptyMatch, syntax.OpBeginText, syntax.OpEndText:
		return eng.Epsilon(), nil
	case syntax.OpBeginLine, syntax.OpEndLine:
		return NoNode, fmt.Errorf("line anchors are not supported in byte-level regexes")
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return NoNode, fmt.Errorf("word boundaries are not supported in byte-level regexes")
	case syntax.OpLiteral:
		args := make([]NodeId, 0, len(re.Rune))
		for _, r := range re.Rune {
			if re.Flags&syntax.FoldCase != 0 {
				args = append(args, eng.foldedRune(r))
			} else {
				args = append(args, eng.rune1(r))
			}
		}
		return eng.Concat(args...), nil
	case syntax.OpCharClass:
		var alts []NodeId
		for i := 0; i+1 < len(re.Rune); i += 2 {
			alts = append(alts, eng.RuneRange(re.Rune[i], re.Rune[i+1]))
		}
		return eng.Union(alts...), nil
	case syntax.OpAnyCharNotNL:
		return eng.Union(eng.RuneRange(0, '\n'-1), eng.RuneRange('\n'+1, unicode.MaxRune)), nil
	case syntax.OpAnyChar:
		return eng.RuneRange(0, unicode.MaxRune), nil
	case syntax.OpCapture:
		return eng.fromSyntax(re.Sub[0])
	case syntax.OpConcat, syntax.OpAlternate:
		args := make([]NodeId, len(re.Sub))
		for i, sub := range re.Sub {
			a, err := eng.fromSyntax(sub)
			if err != nil {
				return NoNode, err
			}
			args[i] = a
		}
		if re.Op == syntax.OpConcat {
			return eng.Concat(args...), nil
		}
		return eng.Union(args...), nil
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		sub, err := eng.fromSyntax(re.Sub[0])
		if err != nil {
			return NoNode, err
		}
		switch re.Op {
		case syntax.OpStar:
			return eng.Star(sub), nil
		case syntax.OpPlus:
			return eng.Concat(sub, eng.Star(sub)), nil
		case syntax.OpQuest:
			return eng.Optional(sub), nil
		default:
			return eng.Repeat(sub, re.Min, re.Max), nil
		}
	}
	return NoNode, fmt.Errorf("unsupported regex construct %v", re.Op)
}

// rune1 returns an expression matching the UTF-8 encoding of a single rune.
func (eng *Engine) rune1(r rune) NodeId {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	return eng.Literal(buf[:n])
}

// foldedRune matches any case-variant of r.
func (eng *Engine) foldedRune(r rune) NodeId {
	alts := []NodeId{eng.rune1(r)}
	for v := unicode.SimpleFold(r); v != r; v = unicode.SimpleFold(v) {
		alts = append(alts, eng.rune1(v))
	}
	return eng.Union(alts...)
}

// RuneRange returns an expression matching the UTF-8 encodings of all runes
// in [lo, hi]. Ranges are split at encoding-length boundaries and at the
// surrogate gap, then lowered recursively to byte-class sequences.
func (eng *Engine) RuneRange(lo, hi rune) NodeId {
	if lo > hi {
		return eng.Empty()
	}
	segments := [][2]rune{
		{0x0000, 0x007F},
		{0x0080, 0x07FF},
		{0x0800, 0xD7FF},
		{0xE000, 0xFFFF},
		{0x10000, unicode.MaxRune},
	}
	var alts []NodeId
	for _, seg := range segments {
		l, h := lo, hi
		if l < seg[0] {
			l = seg[0]
		}
		if h > seg[1] {
			h = seg[1]
		}
		if l > h {
			continue
		}
		var lb, hb [utf8.UTFMax]byte
		n := utf8.EncodeRune(lb[:], l)
		utf8.EncodeRune(hb[:], h)
		alts = append(alts, eng.byteSeqRange(lb[:n], hb[:n]))
	}
	return eng.Union(alts...)
}

// byteSeqRange matches all byte sequences between lo and hi (inclusive,
// compared lexicographically), where lo and hi have the same length and
// continuation positions range over 0x80–0xBF.
func (eng *Engine) byteSeqRange(lo, hi []byte) NodeId {
	if len(lo) == 1 {
		return eng.ClassRange(lo[0], hi[0])
	}
	if lo[0] == hi[0] {
		return eng.Concat(eng.Byte(lo[0]), eng.byteSeqRange(lo[1:], hi[1:]))
	}
	minCont := contBytes(len(lo)-1, 0x80)
	maxCont := contBytes(len(lo)-1, 0xBF)
	alts := []NodeId{
		eng.Concat(eng.Byte(lo[0]), eng.byteSeqRange(lo[1:], maxCont)),
	}
	if lo[0]+1 <= hi[0]-1 {
		alts = append(alts,
			eng.Concat(eng.ClassRange(lo[0]+1, hi[0]-1), eng.byteSeqRange(minCont, maxCont)))
	}
	alts = append(alts, eng.Concat(eng.Byte(hi[0]), eng.byteSeqRange(minCont, hi[1:])))
	return eng.Union(alts...)
}

func contBytes(n int, b byte) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = b
	}
	return s
}
