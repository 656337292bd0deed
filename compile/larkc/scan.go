package larkc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// Token types of the surface grammar scanner.
const (
	tokEOF = iota
	tokNewline
	tokRule    // lower-case name
	tokToken   // upper-case name
	tokString  // "…" with optional i-flag
	tokRegex   // /…/flags
	tokNumber  // decimal integer
	tokGrammar // @name grammar reference
	tokImport  // %import
	tokIgnore  // %ignore
	tokColon
	tokPipe
	tokLparen
	tokRparen
	tokLbracket
	tokRbracket
	tokLbrace
	tokRbrace
	tokQuest
	tokStar
	tokPlus
	tokComma
	tokEquals
	tokDot
	tokDotDot
	tokArrow
)

// token is one scanned surface token.
type token struct {
	typ  int
	text string
	line int
}

func (t token) String() string {
	if t.typ == tokEOF {
		return "end of input"
	}
	if t.typ == tokNewline {
		return "newline"
	}
	return fmt.Sprintf("%q", t.text)
}

var lexerOnce sync.Once
var surfaceLexer *lexmachine.Lexer
var lexerErr error

// mkToken wraps a scanned match into a token value.
func mkToken(typ int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return token{typ: typ, text: string(m.Bytes), line: m.StartLine}, nil
	}
}

// skip is an action which ignores the scanned match.
func skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// buildLexer compiles the DFA for the surface grammar tokens, once.
func buildLexer() (*lexmachine.Lexer, error) {
	lexerOnce.Do(func() {
		lx := lexmachine.NewLexer()
		lx.Add([]byte(`//[^\n]*`), skip)
		lx.Add([]byte(`[ \t\r]+`), skip)
		lx.Add([]byte(`\n`), mkToken(tokNewline))
		lx.Add([]byte(`%import`), mkToken(tokImport))
		lx.Add([]byte(`%ignore`), mkToken(tokIgnore))
		lx.Add([]byte(`[a-z_][a-z0-9_]*`), mkToken(tokRule))
		lx.Add([]byte(`[A-Z_][A-Z0-9_]*`), mkToken(tokToken))
		lx.Add([]byte(`"(\\.|[^"\\])*"i?`), mkToken(tokString))
		lx.Add([]byte(`/(\\.|[^/\\])+/[a-z]*`), mkToken(tokRegex))
		lx.Add([]byte(`[0-9]+`), mkToken(tokNumber))
		lx.Add([]byte(`@[a-zA-Z_][a-zA-Z0-9_.]*`), mkToken(tokGrammar))
		lx.Add([]byte(`:`), mkToken(tokColon))
		lx.Add([]byte(`\|`), mkToken(tokPipe))
		lx.Add([]byte(`\(`), mkToken(tokLparen))
		lx.Add([]byte(`\)`), mkToken(tokRparen))
		lx.Add([]byte(`\[`), mkToken(tokLbracket))
		lx.Add([]byte(`\]`), mkToken(tokRbracket))
		lx.Add([]byte(`\{`), mkToken(tokLbrace))
		lx.Add([]byte(`\}`), mkToken(tokRbrace))
		lx.Add([]byte(`\?`), mkToken(tokQuest))
		lx.Add([]byte(`\*`), mkToken(tokStar))
		lx.Add([]byte(`\+`), mkToken(tokPlus))
		lx.Add([]byte(`,`), mkToken(tokComma))
		lx.Add([]byte(`=`), mkToken(tokEquals))
		lx.Add([]byte(`\.\.`), mkToken(tokDotDot))
		lx.Add([]byte(`\.`), mkToken(tokDot))
		lx.Add([]byte(`->`), mkToken(tokArrow))
		if err := lx.Compile(); err != nil {
			tracer().Errorf("error compiling surface grammar DFA: %v", err)
			lexerErr = err
			return
		}
		surfaceLexer = lx
	})
	return surfaceLexer, lexerErr
}

// scan tokenizes a grammar source. A final newline is appended so that the
// last statement is always terminated.
func scan(src string) ([]token, error) {
	lx, err := buildLexer()
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	s, err := lx.Scanner([]byte(src))
	if err != nil {
		return nil, err
	}
	var toks []token
	for {
		tok, err, eof := s.Next()
		if eof {
			break
		}
		if err != nil {
			if ui, is := err.(*machines.UnconsumedInput); is {
				return nil, fmt.Errorf("unexpected character %q in line %d",
					string(ui.Text[ui.StartTC:ui.FailTC]), ui.StartLine)
			}
			return nil, err
		}
		if tok == nil {
			continue
		}
		toks = append(toks, tok.(token))
	}
	toks = append(toks, token{typ: tokEOF, line: lastLine(toks)})
	return toks, nil
}

func lastLine(toks []token) int {
	if len(toks) == 0 {
		return 1
	}
	return toks[len(toks)-1].line
}

// unquoteString unescapes a "…" literal; the trailing i-flag has been
// split off by the caller.
func unquoteString(text string) string {
	body := text[1 : len(text)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String()
}
