package seq

import (
	"encoding/json"

	"github.com/npillmayer/steer"
)

// ParserOutput is one progress record handed back to the runtime: a
// captured region, or the terminal stop marker.
type ParserOutput struct {
	Name    string   `json:"name,omitempty"`
	Bytes   string   `json:"bytes,omitempty"`
	Offset  int      `json:"offset,omitempty"`
	LogProb *float64 `json:"log_prob,omitempty"`
	Stop    string   `json:"stop,omitempty"`
}

// MarshalProgress renders progress records as JSON lines.
func MarshalProgress(outputs []ParserOutput) string {
	s := ""
	for _, o := range outputs {
		b, err := json.Marshal(o)
		if err != nil {
			continue
		}
		s += string(b) + "\n"
	}
	return s
}

// reporter accumulates progress records per controller. Captured regions
// are recorded when a capture-flagged lexeme closes; the stop record is
// appended once when the sequence terminates.
type reporter struct {
	pending []ParserOutput
	offset  int // committed bytes so far
	stopped bool
}

// recordLexeme notes a closed lexeme; captured classes produce a record.
func (r *reporter) recordLexeme(captureName string, text []byte) {
	if captureName != "" {
		r.pending = append(r.pending, ParserOutput{
			Name:   captureName,
			Bytes:  string(text),
			Offset: r.offset,
		})
	}
	r.offset += len(text)
}

// recordStop appends the terminal stop record, once.
func (r *reporter) recordStop(reason steer.StopReason) {
	if r.stopped {
		return
	}
	r.stopped = true
	r.pending = append(r.pending, ParserOutput{Stop: reason.String()})
}

// flush hands out and clears the accumulated records.
func (r *reporter) flush() []ParserOutput {
	out := r.pending
	r.pending = nil
	return out
}
