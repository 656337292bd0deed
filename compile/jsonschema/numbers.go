package jsonschema

import (
	"strconv"

	"github.com/npillmayer/steer/rx"
)

// Numeric range lowering: integer and decimal bounds compile to byte-level
// regexes accepting exactly the admitted decimal forms: leading sign, no
// leading zeros except "0" itself, an optional fraction for numbers, never
// a trailing dot.

// numCompiler builds the digit-level building blocks.
type numCompiler struct {
	eng *rx.Engine
}

func (nc numCompiler) d09() rx.NodeId { return nc.eng.ClassRange('0', '9') }
func (nc numCompiler) d19() rx.NodeId { return nc.eng.ClassRange('1', '9') }

// exact matches the digit string s verbatim.
func (nc numCompiler) exact(s string) rx.NodeId {
	return nc.eng.Literal([]byte(s))
}

// anyN matches exactly n arbitrary digits.
func (nc numCompiler) anyN(n int) rx.NodeId {
	if n <= 0 {
		return nc.eng.Epsilon()
	}
	return nc.eng.Repeat(nc.d09(), n, n)
}

// digitRange matches one digit in [lo, hi]; empty if lo > hi.
func (nc numCompiler) digitRange(lo, hi byte) rx.NodeId {
	if lo > hi || lo > '9' || hi < '0' {
		return nc.eng.Empty()
	}
	return nc.eng.ClassRange(lo, hi)
}

// sufGe matches digit strings of length len(s) that compare ≥ s. Leading
// zeros are fine here; the strings are suffixes at a fixed position.
func (nc numCompiler) sufGe(s string) rx.NodeId {
	if s == "" {
		return nc.eng.Epsilon()
	}
	return nc.eng.Union(
		nc.eng.Concat(nc.eng.Byte(s[0]), nc.sufGe(s[1:])),
		nc.eng.Concat(nc.digitRange(s[0]+1, '9'), nc.anyN(len(s)-1)),
	)
}

// sufLe matches digit strings of length len(s) that compare ≤ s.
func (nc numCompiler) sufLe(s string) rx.NodeId {
	if s == "" {
		return nc.eng.Epsilon()
	}
	return nc.eng.Union(
		nc.eng.Concat(nc.eng.Byte(s[0]), nc.sufLe(s[1:])),
		nc.eng.Concat(nc.digitRange('0', s[0]-1), nc.anyN(len(s)-1)),
	)
}

// intGe matches canonical decimal integers ≥ s (s itself canonical).
func (nc numCompiler) intGe(s string) rx.NodeId {
	if s == "0" {
		return nc.eng.Union(
			nc.eng.Byte('0'),
			nc.eng.Concat(nc.d19(), nc.eng.Star(nc.d09())),
		)
	}
	longer := nc.eng.Concat(nc.d19(), nc.eng.Repeat(nc.d09(), len(s), -1))
	return nc.eng.Union(nc.sufGe(s), longer)
}

// intLe matches canonical decimal integers ≤ s.
func (nc numCompiler) intLe(s string) rx.NodeId {
	if len(s) == 1 {
		return nc.digitRange('0', s[0])
	}
	var shorter rx.NodeId
	if len(s) == 2 {
		shorter = nc.digitRange('0', '9')
	} else {
		shorter = nc.eng.Union(
			nc.eng.Byte('0'),
			nc.eng.Concat(nc.d19(), nc.eng.Repeat(nc.d09(), 0, len(s)-2)),
		)
	}
	sameLen := nc.eng.Union(
		nc.eng.Concat(nc.eng.Byte(s[0]), nc.sufLe(s[1:])),
		nc.eng.Concat(nc.digitRange('1', s[0]-1), nc.anyN(len(s)-1)),
	)
	return nc.eng.Union(shorter, sameLen)
}

// intBetween matches canonical decimal integers in [lo, hi], both canonical
// and lo ≤ hi numerically.
func (nc numCompiler) intBetween(lo, hi string) rx.NodeId {
	if len(lo) == len(hi) {
		return nc.sameLenBetween(lo, hi)
	}
	alts := []rx.NodeId{nc.sufGe(lo)} // lo is canonical, no leading zero issue
	for l := len(lo) + 1; l < len(hi); l++ {
		alts = append(alts, nc.eng.Concat(nc.d19(), nc.anyN(l-1)))
	}
	alts = append(alts, nc.eng.Union(
		nc.eng.Concat(nc.eng.Byte(hi[0]), nc.sufLe(hi[1:])),
		nc.eng.Concat(nc.digitRange('1', hi[0]-1), nc.anyN(len(hi)-1)),
	))
	return nc.eng.Union(alts...)
}

func (nc numCompiler) sameLenBetween(lo, hi string) rx.NodeId {
	if lo == hi {
		return nc.exact(lo)
	}
	if len(lo) == 1 {
		return nc.digitRange(lo[0], hi[0])
	}
	i := 0
	for lo[i] == hi[i] {
		i++
	}
	prefix := nc.exact(lo[:i])
	branches := []rx.NodeId{
		nc.eng.Concat(nc.eng.Byte(lo[i]), nc.sufGe(lo[i+1:])),
		nc.eng.Concat(nc.digitRange(lo[i]+1, hi[i]-1), nc.anyN(len(lo)-i-1)),
		nc.eng.Concat(nc.eng.Byte(hi[i]), nc.sufLe(hi[i+1:])),
	}
	return nc.eng.Concat(prefix, nc.eng.Union(branches...))
}

func fmtInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// integerRangeRx matches canonical integers in the given (possibly open)
// interval. nil bounds are unbounded.
func (nc numCompiler) integerRangeRx(lo, hi *int64) rx.NodeId {
	switch {
	case lo == nil && hi == nil:
		return nc.eng.Union(
			nc.eng.Byte('0'),
			nc.eng.Concat(nc.eng.Optional(nc.eng.Byte('-')), nc.d19(), nc.eng.Star(nc.d09())),
		)
	case lo == nil:
		return nc.leRx(*hi)
	case hi == nil:
		return nc.geRx(*lo)
	default:
		return nc.betweenRx(*lo, *hi)
	}
}

// geRx matches canonical integers ≥ lo.
func (nc numCompiler) geRx(lo int64) rx.NodeId {
	if lo <= 0 {
		neg := nc.eng.Empty()
		if lo < 0 {
			neg = nc.eng.Concat(nc.eng.Byte('-'), nc.intBetween("1", fmtInt(-lo)))
		}
		return nc.eng.Union(neg, nc.intGe("0"))
	}
	return nc.intGe(fmtInt(lo))
}

// leRx matches canonical integers ≤ hi.
func (nc numCompiler) leRx(hi int64) rx.NodeId {
	if hi >= 0 {
		allNeg := nc.eng.Concat(nc.eng.Byte('-'), nc.d19(), nc.eng.Star(nc.d09()))
		return nc.eng.Union(allNeg, nc.intLe(fmtInt(hi)))
	}
	return nc.eng.Concat(nc.eng.Byte('-'), nc.intGe(fmtInt(-hi)))
}

// betweenRx matches canonical integers in [lo, hi], lo ≤ hi.
func (nc numCompiler) betweenRx(lo, hi int64) rx.NodeId {
	switch {
	case lo >= 0:
		return nc.intBetween(fmtInt(lo), fmtInt(hi))
	case hi <= 0:
		neg := nc.eng.Concat(nc.eng.Byte('-'), nc.intBetween(fmtInt(maxInt64(1, -hi)), fmtInt(-lo)))
		if hi == 0 {
			return nc.eng.Union(neg, nc.eng.Byte('0'))
		}
		return neg
	default: // lo < 0 < hi
		neg := nc.eng.Concat(nc.eng.Byte('-'), nc.intBetween("1", fmtInt(-lo)))
		return nc.eng.Union(neg, nc.intBetween("0", fmtInt(hi)))
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// --- Decimal numbers --------------------------------------------------------

// fracAny is an optional fraction: (\.[0-9]+)?
func (nc numCompiler) fracAny() rx.NodeId {
	return nc.eng.Optional(nc.eng.Concat(nc.eng.Byte('.'), nc.d09(), nc.eng.Star(nc.d09())))
}

// fracZero is an optional all-zero fraction: (\.0+)?
func (nc numCompiler) fracZero() rx.NodeId {
	z := nc.eng.Byte('0')
	return nc.eng.Optional(nc.eng.Concat(nc.eng.Byte('.'), z, nc.eng.Star(z)))
}

// fracPos is a mandatory strictly positive fraction: \.0*[1-9][0-9]*
func (nc numCompiler) fracPos() rx.NodeId {
	return nc.eng.Concat(
		nc.eng.Byte('.'),
		nc.eng.Star(nc.eng.Byte('0')),
		nc.d19(),
		nc.eng.Star(nc.d09()),
	)
}

// numberRangeRx matches decimal forms (sign, integer part, optional
// fraction) with values inside the given interval. Bounds must be
// integer-valued; nil means unbounded. The exclusive flags apply to the
// corresponding bound.
func (nc numCompiler) numberRangeRx(lo, hi *int64, loExcl, hiExcl bool) rx.NodeId {
	if lo == nil && hi == nil {
		mantissa := nc.eng.Concat(nc.integerRangeRx(nil, nil), nc.fracAny())
		exp := nc.eng.Optional(nc.eng.Concat(
			nc.eng.Union(nc.eng.Byte('e'), nc.eng.Byte('E')),
			nc.eng.Optional(nc.eng.Union(nc.eng.Byte('+'), nc.eng.Byte('-'))),
			nc.d09(), nc.eng.Star(nc.d09()),
		))
		return nc.eng.Concat(mantissa, exp)
	}
	alts := []rx.NodeId{}
	// zero, if admitted
	zeroOK := (lo == nil || *lo < 0 || (*lo == 0 && !loExcl)) &&
		(hi == nil || *hi > 0 || (*hi == 0 && !hiExcl))
	if zeroOK {
		alts = append(alts, nc.eng.Concat(nc.eng.Byte('0'), nc.fracZero()))
	}
	// positive decimals: magnitude bounds [max(lo,0), hi]
	if hi == nil || *hi > 0 || (*hi == 0 && !hiExcl) {
		var pl *int64
		ple := true // exclusive zero: value must be > 0
		if lo != nil && *lo > 0 {
			pl, ple = lo, loExcl
		}
		alts = append(alts, nc.posDecimals(pl, hi, ple, hiExcl))
	}
	// negative decimals: -m with magnitude m in [max(-hi,0), -lo]
	if lo == nil || *lo < 0 {
		var ml, mh *int64
		mle := true
		if hi != nil && *hi < 0 {
			m := -*hi
			ml, mle = &m, hiExcl
		}
		if lo != nil {
			m := -*lo
			mh = &m
		}
		alts = append(alts, nc.eng.Concat(nc.eng.Byte('-'), nc.posDecimals(ml, mh, mle, loExcl)))
	}
	return nc.eng.Union(alts...)
}

// posDecimals matches unsigned decimal forms with strictly positive value
// in the interval given by lo/hi (nil = unbounded, both bounds ≥ 0). The
// cases split on the integer part d of the form d(.f)?:
//
//	d strictly inside the bounds  → any fraction
//	d == lo, exclusive bound      → fraction must be positive
//	d == 0 and lo ≤ 0             → "0" plus a positive fraction, value ∈ (0,1)
//	d == hi, inclusive bound      → fraction must be all zeros
func (nc numCompiler) posDecimals(lo, hi *int64, loExcl, hiExcl bool) rx.NodeId {
	if hi != nil && *hi <= 0 {
		return nc.eng.Empty()
	}
	loVal := int64(0)
	if lo != nil {
		loVal = *lo
	}
	var alts []rx.NodeId
	// value in (0, 1): integer part 0 with a positive fraction
	if loVal == 0 {
		alts = append(alts, nc.eng.Concat(nc.eng.Byte('0'), nc.fracPos()))
	}
	// integer parts admitting any fraction
	dLo := maxInt64(loVal, 1)
	if loExcl && lo != nil && loVal >= 1 {
		dLo = loVal + 1
	}
	if hi == nil {
		alts = append(alts, nc.eng.Concat(nc.intGe(fmtInt(dLo)), nc.fracAny()))
	} else if dLo <= *hi-1 {
		alts = append(alts, nc.eng.Concat(nc.intBetween(fmtInt(dLo), fmtInt(*hi-1)), nc.fracAny()))
	}
	// integer part exactly at an exclusive lower bound
	if lo != nil && loVal >= 1 && loExcl && (hi == nil || loVal < *hi) {
		alts = append(alts, nc.eng.Concat(nc.exact(fmtInt(loVal)), nc.fracPos()))
	}
	// integer part exactly at an inclusive upper bound
	if hi != nil && !hiExcl && !(loExcl && lo != nil && loVal >= *hi) {
		alts = append(alts, nc.eng.Concat(nc.exact(fmtInt(*hi)), nc.fracZero()))
	}
	return nc.eng.Union(alts...)
}
