/*
Package steer is a grammar-constrained decoding engine for LLM inference.

Steer computes, at every generation step, the set of tokenizer tokens whose
byte-level expansion is consistent with a user-supplied formal grammar. An
LLM serving runtime samples a next token from the intersection of the model's
logits and steer's allow-mask; steer then advances its internal state by the
committed token and returns control for the next step. Package structure is
as follows:

■ rx: Package rx implements a byte-level regex engine based on Brzozowski
derivatives, with hash-consed states.

■ toktrie: Package toktrie implements a trie over the raw byte expansions of a
tokenizer vocabulary.

■ grammar: Package grammar holds the internal grammar representation,
i.e. context-free rules, terminals with associated regexes, and per-symbol
properties, together with a fluent grammar builder.

■ lexer: Package lexer maintains the set of candidate terminals while bytes
are appended, and decides where lexeme boundaries fall.

■ parser: Package parser implements an incremental Earley parser with
checkpointing and bounded rollback.

■ mask: Package mask walks the token trie against the combined lexer/parser
state and produces the per-step allow-mask and forced-token splices.

■ compile: Package compile lowers top-level grammar specifications, either
a Lark-like surface syntax (compile/larkc) or a JSON Schema document
(compile/jsonschema), into the internal representation.

■ seq: Package seq exposes the per-sequence state machine used by serving
runtimes: ProcessPrompt, ComputeMask, CommitToken.

The base package contains data types which are used throughout all the other
packages.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package steer
