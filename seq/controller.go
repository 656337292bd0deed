package seq

import (
	"github.com/npillmayer/steer"
	"github.com/npillmayer/steer/lexer"
	"github.com/npillmayer/steer/mask"
)

// healWindow is the number of trailing prompt tokens re-tokenized during
// token healing.
const healWindow = 2

// ctlState is the controller's protocol state.
type ctlState int

const (
	stateFresh ctlState = iota
	stateAwaitingMask
	stateAwaitingCommit
	stateStopped
)

func (s ctlState) String() string {
	switch s {
	case stateFresh:
		return "Fresh"
	case stateAwaitingMask:
		return "AwaitingMask"
	case stateAwaitingCommit:
		return "AwaitingCommit"
	case stateStopped:
		return "Stopped"
	}
	return "Invalid"
}

// Controller is the per-sequence state machine. The call protocol is
// strict:
//
//	ctl.ProcessPrompt(prompt)        // optional, Fresh only
//	for {
//	    step := ctl.ComputeMask()    // mask, splice or stop
//	    …sample…
//	    step = ctl.CommitToken(tok)  // echoes the commit as a splice
//	}
//
// Contract violations (wrong call order, a token outside the mask, calls
// after a stop) poison the controller: the violation is returned, and
// every later call returns it again.
type Controller struct {
	eng         *Engine
	fs          *feedState
	mb          *mask.Builder
	state       ctlState
	lastStep    steer.Step
	delayedStop bool
	ntokens     int // committed tokens
	lexTokens   int // tokens inside the open lexeme, for per-class caps
	rep         reporter
	err         error // poison
}

// NewController creates a fresh controller on an engine.
func NewController(eng *Engine) (*Controller, error) {
	fs, err := eng.newFeedState()
	if err != nil {
		return nil, err
	}
	return &Controller{
		eng:   eng,
		fs:    fs,
		mb:    mask.NewBuilder(eng.trie, eng.spec, eng.caps, eng.bias),
		state: stateFresh,
	}, nil
}

// DeepClone produces an independent controller sharing only the immutable
// engine (grammar, trie, regex tables). Useful for speculative decoding.
func (ctl *Controller) DeepClone() *Controller {
	clone := &Controller{
		eng:         ctl.eng,
		fs:          ctl.fs.clone(),
		mb:          mask.NewBuilder(ctl.eng.trie, ctl.eng.spec, ctl.eng.caps, ctl.eng.bias),
		state:       ctl.state,
		lastStep:    ctl.lastStep,
		delayedStop: ctl.delayedStop,
		ntokens:     ctl.ntokens,
		lexTokens:   ctl.lexTokens,
		rep:         reporter{offset: ctl.rep.offset, stopped: ctl.rep.stopped},
		err:         ctl.err,
	}
	clone.rep.pending = append(clone.rep.pending, ctl.rep.pending...)
	return clone
}

// violation poisons the controller with a ContractViolation.
func (ctl *Controller) violation(format string, args ...interface{}) error {
	ctl.err = steer.WrapError(steer.ContractViolation, format, args...)
	ctl.state = stateStopped
	tracer().Errorf("%v", ctl.err)
	return ctl.err
}

// fail poisons the controller with a non-contract error and stops the
// sequence.
func (ctl *Controller) fail(err error) error {
	ctl.err = err
	ctl.state = stateStopped
	if serr, ok := err.(*steer.Error); ok && serr.Kind == steer.ParserLimitsExceeded {
		ctl.lastStep = steer.StopStep(steer.StopLimit)
		ctl.rep.recordStop(steer.StopLimit)
	}
	tracer().Errorf("%v", err)
	return err
}

// ProcessPrompt feeds the prompt and returns it healed: the byte-level
// parser state afterwards equals the state reached by the exact prompt
// bytes, while the trailing healWindow tokens are re-tokenized so that
// token boundaries line up with the grammar's lexeme boundaries.
func (ctl *Controller) ProcessPrompt(prompt []steer.TokenId) ([]steer.TokenId, error) {
	if ctl.err != nil {
		return nil, ctl.err
	}
	if ctl.state != stateFresh {
		return nil, ctl.violation("ProcessPrompt() in state %s", ctl.state)
	}
	ctl.state = stateAwaitingMask
	keep := len(prompt) - healWindow
	if keep < 0 {
		keep = 0
	}
	healed := append([]steer.TokenId(nil), prompt[:keep]...)
	if ok, err := ctl.consumeBytes(ctl.eng.trie.Decode(prompt[:keep])); err != nil {
		return nil, ctl.fail(err)
	} else if !ok {
		return nil, ctl.fail(steer.WrapError(steer.GrammarParseError,
			"prompt is not consistent with the grammar"))
	}
	tail := ctl.eng.trie.Decode(prompt[keep:])
	if ok, err := ctl.consumeBytes(tail); err != nil {
		return nil, ctl.fail(err)
	} else if !ok {
		return nil, ctl.fail(steer.WrapError(steer.GrammarParseError,
			"prompt tail is not consistent with the grammar"))
	}
	healed = append(healed, ctl.eng.trie.GreedyTokenize(tail)...)
	tracer().Infof("prompt healed: %d → %d tokens", len(prompt), len(healed))
	return healed, nil
}

// ComputeMask computes the step result for the next sampling step.
func (ctl *Controller) ComputeMask() (steer.Step, error) {
	if ctl.err != nil {
		return steer.Step{}, ctl.err
	}
	switch ctl.state {
	case stateFresh:
		ctl.state = stateAwaitingMask // implicit empty prompt
	case stateAwaitingMask:
		// regular step
	case stateAwaitingCommit:
		return steer.Step{}, ctl.violation("CommitToken() not called before ComputeMask()")
	case stateStopped:
		return steer.Step{}, ctl.violation("ComputeMask() called after stop")
	}
	if ctl.delayedStop {
		ctl.delayedStop = false
		return ctl.stopWith(steer.StopAccept), nil
	}
	if ctl.eng.maxTokens > 0 && ctl.ntokens >= ctl.eng.maxTokens {
		return ctl.stopWith(steer.StopMaxTokens), nil
	}
	step, err := ctl.mb.Compute(ctl.fs.p, ctl.fs.lx)
	if err != nil {
		return steer.Step{}, ctl.fail(err)
	}
	if step.IsStop() {
		return ctl.stopWith(step.Stop), nil
	}
	if step.IsSplice() {
		// unconditional splice: apply the forced tokens right away; the
		// runtime appends them verbatim and calls CommitToken(nil)
		for _, t := range step.FFTokens {
			if ok, err := ctl.applyToken(t); err != nil {
				return steer.Step{}, ctl.fail(err)
			} else if !ok {
				return steer.Step{}, ctl.fail(steer.WrapError(steer.InternalError,
					"forced token %d does not extend the parse", t))
			}
		}
	}
	ctl.lastStep = step
	ctl.state = stateAwaitingCommit
	return step, nil
}

// CommitToken commits the sampled token (nil after a splice result) and
// reports the resulting splice, including any further tokens the grammar
// forces. After a stop result no further call is allowed.
func (ctl *Controller) CommitToken(sampled *steer.TokenId) (steer.Step, error) {
	if ctl.err != nil {
		return steer.Step{}, ctl.err
	}
	if ctl.state != stateAwaitingCommit {
		return steer.Step{}, ctl.violation("CommitToken() in state %s", ctl.state)
	}
	if ctl.lastStep.IsSplice() {
		// tokens were already applied by ComputeMask
		ctl.ntokens += len(ctl.lastStep.FFTokens)
		ctl.state = stateAwaitingMask
		return ctl.lastStep, nil
	}
	// a mask was returned, so a sampled token is required
	if sampled == nil {
		return steer.Step{}, ctl.violation("sampled token is required when a mask was returned")
	}
	tok := *sampled
	if !ctl.lastStep.Mask.IsAllowed(tok) {
		return steer.Step{}, ctl.violation("sampled token %d was not allowed by the mask", tok)
	}
	if tok == ctl.eng.trie.Vocab().EOS {
		step := ctl.stopWith(steer.StopEOS)
		return step, nil
	}
	if ok, err := ctl.applyToken(tok); err != nil {
		return steer.Step{}, ctl.fail(err)
	} else if !ok {
		return steer.Step{}, ctl.fail(steer.WrapError(steer.InternalError,
			"token %d allowed by mask but rejected by parser", tok))
	}
	ctl.ntokens++
	result := []steer.TokenId{tok}
	if ctl.eng.caps.FFTokens && ctl.eng.caps.ConditionalFFTokens {
		// see whether committing forces a deterministic continuation
		next, err := ctl.mb.Compute(ctl.fs.p, ctl.fs.lx)
		if err != nil {
			return steer.Step{}, ctl.fail(err)
		}
		switch {
		case next.IsStop():
			// report the sampled token now, stop on the next ComputeMask
			ctl.delayedStop = true
		case next.IsSplice():
			for _, t := range next.FFTokens {
				if ok, err := ctl.applyToken(t); err != nil {
					return steer.Step{}, ctl.fail(err)
				} else if !ok {
					return steer.Step{}, ctl.fail(steer.WrapError(steer.InternalError,
						"forced token %d does not extend the parse", t))
				}
			}
			ctl.ntokens += len(next.FFTokens)
			result = append(result, next.FFTokens...)
		}
	}
	ctl.lastStep = steer.SpliceStep(0, result)
	ctl.state = stateAwaitingMask
	return ctl.lastStep, nil
}

// FlushProgress hands out the progress records accumulated since the last
// flush.
func (ctl *Controller) FlushProgress() []ParserOutput {
	return ctl.rep.flush()
}

// IsStopped returns true once the controller reached its terminal state.
func (ctl *Controller) IsStopped() bool {
	return ctl.state == stateStopped
}

func (ctl *Controller) stopWith(reason steer.StopReason) steer.Step {
	ctl.state = stateStopped
	ctl.lastStep = steer.StopStep(reason)
	ctl.rep.recordStop(reason)
	tracer().Infof("sequence stopped: %s", reason)
	return ctl.lastStep
}

// --- Token and byte application ---------------------------------------------

// applyToken feeds one committed token's bytes into the sequence state,
// honoring per-class token caps and recording captures.
func (ctl *Controller) applyToken(t steer.TokenId) (bool, error) {
	if ctl.eng.trie.IsSpecial(t) {
		return false, steer.WrapError(steer.InternalError,
			"special token %d cannot be applied to the parse", t)
	}
	if err := ctl.enforceLexemeCap(); err != nil {
		return false, err
	}
	ok, err := ctl.consumeBytes(ctl.eng.trie.BytesFor(t))
	if err != nil || !ok {
		return ok, err
	}
	ctl.lexTokens++
	return true, nil
}

// enforceLexemeCap closes the open lexeme when its class's max-tokens cap
// is reached, provided it can close here.
func (ctl *Controller) enforceLexemeCap() error {
	if ctl.fs.lx.AtBoundary() {
		ctl.lexTokens = 0
		return nil
	}
	class, ok := ctl.fs.lx.PendingClass()
	if !ok || class == lexer.SkipClass {
		return nil
	}
	cap := ctl.eng.g.Class(class).MaxTokens
	if cap == 0 || ctl.lexTokens < cap {
		return nil
	}
	tracer().Infof("lexeme class %d reached its cap of %d tokens, closing", class, cap)
	var out []emitted
	if ok, err := ctl.fs.flush(&out); err != nil {
		return err
	} else if !ok {
		return steer.WrapError(steer.InternalError, "cannot close capped lexeme")
	}
	ctl.recordEmissions(out)
	ctl.lexTokens = 0
	return nil
}

// consumeBytes feeds bytes and records lexeme emissions.
func (ctl *Controller) consumeBytes(bytes []byte) (bool, error) {
	var out []emitted
	ok, err := ctl.fs.pushBytes(bytes, &out)
	ctl.recordEmissions(out)
	if err != nil || !ok {
		return ok, err
	}
	return true, nil
}

func (ctl *Controller) recordEmissions(out []emitted) {
	for _, em := range out {
		cls := ctl.eng.g.Class(em.class)
		ctl.rep.recordLexeme(cls.Capture, em.text)
		ctl.lexTokens = 0
	}
}
