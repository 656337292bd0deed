package larkc

// lookupCommonRegex resolves %import common.NAME to a regex pattern. The
// set mirrors the terminals grammar authors reach for most often.
func lookupCommonRegex(name string) (string, bool) {
	pat, ok := commonRegexes[name]
	return pat, ok
}

var commonRegexes = map[string]string{
	"DIGIT":          `[0-9]`,
	"HEXDIGIT":       `[0-9a-fA-F]`,
	"INT":            `[0-9]+`,
	"SIGNED_INT":     `[+-]?[0-9]+`,
	"DECIMAL":        `[0-9]+\.[0-9]+|\.[0-9]+`,
	"NUMBER":         `[0-9]+(\.[0-9]+)?`,
	"SIGNED_NUMBER":  `[+-]?[0-9]+(\.[0-9]+)?`,
	"FLOAT":          `[0-9]+\.[0-9]+([eE][+-]?[0-9]+)?`,
	"LCASE_LETTER":   `[a-z]`,
	"UCASE_LETTER":   `[A-Z]`,
	"LETTER":         `[A-Za-z]`,
	"WORD":           `[A-Za-z]+`,
	"CNAME":          `[_A-Za-z][_A-Za-z0-9]*`,
	"ESCAPED_STRING": `"(\\.|[^"\\])*"`,
	"WS_INLINE":      `[ \t]+`,
	"WS":             `[ \t\n\r]+`,
	"CR":             `\r`,
	"LF":             `\n`,
	"NEWLINE":        `(\r?\n)+`,
}
