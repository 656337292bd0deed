package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"

	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/compile"
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/seq"
	"github.com/npillmayer/steer/toktrie"
)

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

// tracer traces with key 'steer.seq'.
func tracer() tracing.Trace {
	return tracing.Select("steer.seq")
}

// main() starts an interactive CLI, where users may load a grammar (a
// Lark-like source file or a JSON Schema) and probe it: enter a line to
// test acceptance, or use commands to inspect the byte-level masks the
// engine would hand to an LLM runtime. It is intended as a sandbox during
// grammar development, with a single-byte demo vocabulary standing in for
// a real tokenizer.
func main() {
	gtrace.SyntaxTracer = gologadapter.New()
	tlevel := flag.String("trace", "Info", "Trace level [Debug|Info|Error]")
	flag.Parse()
	tracer().SetTraceLevel(traceLevel(*tlevel))
	pterm.Info.Println("Welcome to the steer grammar sandbox")
	if flag.NArg() < 1 {
		pterm.Error.Println("usage: steerepl [-trace level] grammar-file")
		os.Exit(1)
	}
	eng, err := loadEngine(flag.Arg(0))
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(2)
	}
	pterm.Info.Printf("grammar %s loaded: %d rules, %d lexeme classes\n",
		flag.Arg(0), eng.Grammar().RuleCount(), eng.Grammar().ClassCount())
	repl, err := readline.New("steer> ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	defer repl.Close()
	tracer().Infof("Quit with <ctrl>D")
	for {
		line, err := repl.Readline()
		if err != nil { // io.EOF on ctrl-D
			if err != io.EOF && err != readline.ErrInterrupt {
				tracer().Errorf(err.Error())
			}
			break
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == ":quit":
			return
		case line == ":help":
			printHelp()
		case strings.HasPrefix(line, ":mask"):
			arg := strings.TrimSpace(strings.TrimPrefix(line, ":mask"))
			showMask(eng, arg)
		default:
			checkAccept(eng, line)
		}
	}
}

func printHelp() {
	pterm.Info.Println("enter a line to test acceptance against the grammar")
	pterm.Info.Println(":mask [prefix]   show the bytes admitted after a prefix")
	pterm.Info.Println(":help            this text")
	pterm.Info.Println(":quit            leave the sandbox")
}

// loadEngine compiles a grammar file and wires it to a demo vocabulary of
// one token per byte value.
func loadEngine(path string) (*seq.Engine, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g *grammar.Grammar
	if strings.HasSuffix(path, ".json") {
		g, err = compile.FromJSONSchema(src)
	} else {
		g, err = compile.FromLark(string(src))
	}
	if err != nil {
		return nil, err
	}
	toks := [][]byte{{}}
	for b := 0; b < 256; b++ {
		toks = append(toks, []byte{byte(b)})
	}
	trie, err := toktrie.New(steer.Vocab{Size: uint32(len(toks)), EOS: 0}, toks)
	if err != nil {
		return nil, err
	}
	return seq.NewEngine(g, trie), nil
}

// checkAccept runs the oracle over one input line.
func checkAccept(eng *seq.Engine, input string) {
	ok, err := eng.Accepts([]byte(input))
	switch {
	case err != nil:
		pterm.Error.Println(err.Error())
	case ok:
		pterm.Success.Printf("accepted: %q\n", input)
	default:
		pterm.Warning.Printf("rejected: %q\n", input)
	}
}

// showMask walks a prefix and prints the admitted next bytes.
func showMask(eng *seq.Engine, prefix string) {
	ctl, err := seq.NewController(eng)
	if err != nil {
		pterm.Error.Println(err.Error())
		return
	}
	for i := 0; i < len(prefix); i++ {
		step, err := ctl.ComputeMask()
		if err != nil {
			pterm.Error.Println(err.Error())
			return
		}
		if step.IsStop() {
			pterm.Warning.Printf("grammar stops before byte %d of %q\n", i, prefix)
			return
		}
		if step.IsSplice() {
			forced := ""
			for _, t := range step.FFTokens {
				forced += string(eng.Trie().BytesFor(t))
			}
			if !strings.HasPrefix(prefix[i:], forced) {
				pterm.Warning.Printf("grammar forces %q, which diverges from the prefix\n", forced)
				return
			}
			i += len(forced) - 1
			if _, err := ctl.CommitToken(nil); err != nil {
				pterm.Error.Println(err.Error())
				return
			}
			continue
		}
		tok := steer.TokenId(prefix[i]) + 1
		if !step.Mask.IsAllowed(tok) {
			pterm.Warning.Printf("byte %q at position %d is not admitted\n", prefix[i], i)
			return
		}
		if _, err := ctl.CommitToken(&tok); err != nil {
			pterm.Error.Println(err.Error())
			return
		}
	}
	step, err := ctl.ComputeMask()
	if err != nil {
		pterm.Error.Println(err.Error())
		return
	}
	if step.IsStop() {
		pterm.Info.Printf("after %q the grammar stops (%s)\n", prefix, step.Stop)
		return
	}
	if step.IsSplice() {
		forced := ""
		for _, t := range step.FFTokens {
			forced += string(eng.Trie().BytesFor(t))
		}
		pterm.Info.Printf("after %q the grammar forces %q\n", prefix, forced)
		return
	}
	var allowed []string
	for b := 0; b < 256; b++ {
		if step.Mask.IsAllowed(steer.TokenId(b) + 1) {
			allowed = append(allowed, fmt.Sprintf("%q", byte(b)))
		}
	}
	if step.Mask.IsAllowed(eng.Trie().Vocab().EOS) {
		allowed = append(allowed, "<eos>")
	}
	pterm.Info.Printf("after %q: %d admitted: %s\n", prefix, len(allowed), strings.Join(allowed, " "))
}

func traceLevel(l string) tracing.TraceLevel {
	switch strings.ToLower(l) {
	case "debug":
		return tracing.LevelDebug
	case "error":
		return tracing.LevelError
	}
	return tracing.LevelInfo
}
