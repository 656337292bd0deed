package parser

import (
	"github.com/npillmayer/steer/grammar"
	"github.com/npillmayer/steer/grammar/iteratable"
)

// dumpState logs the items of state Si at debug level.
func dumpState(states []*iteratable.Set, i uint64) {
	if int(i) >= len(states) {
		return
	}
	tracer().Debugf("--- state %03d -----------", i)
	states[i].Each(func(e interface{}) {
		item := e.(grammar.Item)
		tracer().Debugf("    %s", item)
	})
	tracer().Debugf("-------------------------")
}
