/*
Package compile lowers top-level grammar specifications into the internal
grammar representation.

A top-level specification carries one or more subgrammars, each given as a
Lark-like source text (package compile/larkc) or a JSON Schema document
(package compile/jsonschema). Subgrammars may reference each other; all of
them are lowered into one internal grammar. Symbol names of referenced
subgrammars are prefixed by the subgrammar's name; those of the start
grammar are not.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package compile

import (
	"encoding/json"
	"fmt"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/compile/jsonschema"
	"github.com/npillmayer/steer/compile/larkc"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/rx"
)

// tracer traces with key 'steer.compile'.
func tracer() tracing.Trace {
	return tracing.Select("steer.compile")
}

// GrammarSpec is one subgrammar of a top-level specification. Exactly one
// of the payload fields must be set.
type GrammarSpec struct {
	Name       string          `json:"name,omitempty"`
	Lark       string          `json:"lark_grammar,omitempty"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// TopLevelGrammar is the external grammar input structure.
type TopLevelGrammar struct {
	Grammars     []GrammarSpec       `json:"grammars"`
	StartGrammar int                 `json:"start_grammar"`
	Caps         steer.InferenceCaps `json:"inference_caps"`
}

// FromLark compiles a single Lark-like grammar source.
func FromLark(src string) (*grammar.Grammar, error) {
	return Compile(TopLevelGrammar{
		Grammars: []GrammarSpec{{Lark: src}},
		Caps:     steer.InferenceCaps{Backtrack: true, FFTokens: true, ConditionalFFTokens: true},
	})
}

// FromJSONSchema compiles a single JSON Schema document.
func FromJSONSchema(schema []byte) (*grammar.Grammar, error) {
	return Compile(TopLevelGrammar{
		Grammars: []GrammarSpec{{JSONSchema: schema}},
		Caps:     steer.InferenceCaps{Backtrack: true, FFTokens: true, ConditionalFFTokens: true},
	})
}

// Compile lowers a top-level grammar into one internal grammar. The start
// symbol is the start of the grammar selected by StartGrammar; other
// subgrammars are reachable through grammar references.
func Compile(tl TopLevelGrammar) (*grammar.Grammar, error) {
	if len(tl.Grammars) == 0 {
		return nil, steer.WrapError(steer.GrammarParseError, "top-level grammar carries no subgrammars")
	}
	if tl.StartGrammar < 0 || tl.StartGrammar >= len(tl.Grammars) {
		return nil, steer.WrapError(steer.GrammarParseError,
			"start_grammar %d out of range (%d grammars)", tl.StartGrammar, len(tl.Grammars))
	}
	eng := rx.NewEngine(steer.DefaultLimits().MaxRxStates)
	b := grammar.NewBuilder(grammarName(tl.Grammars[tl.StartGrammar], tl.StartGrammar), eng)
	compiled := make(map[int]string) // grammar index → start symbol name
	var lower func(index int) (string, error)
	lower = func(index int) (string, error) {
		if start, ok := compiled[index]; ok {
			return start, nil
		}
		if index < 0 || index >= len(tl.Grammars) {
			return "", steer.WrapError(steer.GrammarParseError, "grammar reference @%d out of range", index)
		}
		gs := tl.Grammars[index]
		prefix := ""
		if index != tl.StartGrammar {
			prefix = fmt.Sprintf("%s.", grammarName(gs, index))
		}
		compiled[index] = "" // cycle guard: references during compilation are an error
		resolve := func(ref string) (string, error) {
			target, err := refIndex(tl, ref)
			if err != nil {
				return "", err
			}
			if start, ok := compiled[target]; ok {
				if start == "" {
					return "", steer.WrapError(steer.GrammarParseError,
						"circular grammar reference @%s", ref)
				}
				return start, nil
			}
			return lower(target)
		}
		var start string
		var err error
		switch {
		case gs.Lark != "":
			start, err = larkc.CompileInto(b, eng, prefix, gs.Lark, resolve)
		case len(gs.JSONSchema) > 0:
			start, err = jsonschema.CompileInto(b, eng, prefix, gs.JSONSchema, jsonschema.Options{})
		default:
			err = steer.WrapError(steer.GrammarParseError,
				"subgrammar %d carries neither Lark source nor JSON Schema", index)
		}
		if err != nil {
			return "", err
		}
		compiled[index] = start
		return start, nil
	}
	start, err := lower(tl.StartGrammar)
	if err != nil {
		return nil, err
	}
	b.SetStart(start)
	g, err := b.Grammar()
	if err != nil {
		return nil, err
	}
	tracer().Infof("compiled top-level grammar: %d rules, %d classes", g.RuleCount(), g.ClassCount())
	return g, nil
}

func grammarName(gs GrammarSpec, index int) string {
	if gs.Name != "" {
		return gs.Name
	}
	return fmt.Sprintf("g%d", index)
}

// refIndex resolves a grammar reference, either "@2" style by index or by
// subgrammar name.
func refIndex(tl TopLevelGrammar, ref string) (int, error) {
	for i, gs := range tl.Grammars {
		if gs.Name == ref || grammarName(gs, i) == ref {
			return i, nil
		}
	}
	var index int
	if _, err := fmt.Sscanf(ref, "%d", &index); err == nil && index >= 0 && index < len(tl.Grammars) {
		return index, nil
	}
	return 0, steer.WrapError(steer.GrammarParseError, "unknown grammar reference @%s", ref)
}
