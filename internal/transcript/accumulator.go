// Package transcript accumulates streamed speech-to-text results.
package transcript

import (
	"strings"
)

// Segment is one recognised span. Partial segments are provisional and are
// superseded by the next partial or by a commit.
type Segment struct {
	Text    string
	IsFinal bool
}

// Accumulator holds the committed segments of one session plus the latest
// partial. It is not safe for concurrent use; the owning session guards it.
type Accumulator struct {
	committed []string
	partial   string
}

// Reset drops everything. Sessions call it on start only.
func (a *Accumulator) Reset() {
	a.committed = nil
	a.partial = ""
}

// SetPartial replaces the provisional text.
func (a *Accumulator) SetPartial(text string) {
	a.partial = text
}

// Commit appends a final segment and clears the partial it supersedes.
// Whitespace-only commits are ignored so the joined text never gains stray
// separators.
func (a *Accumulator) Commit(text string) bool {
	a.partial = ""
	if strings.TrimSpace(text) == "" {
		return false
	}
	a.committed = append(a.committed, text)
	return true
}

// Text joins the committed segments with a single space, in arrival order.
func (a *Accumulator) Text() string {
	return strings.Join(a.committed, " ")
}

func (a *Accumulator) Partial() string {
	return a.partial
}

// Segments lists committed segments followed by the live partial, if any.
func (a *Accumulator) Segments() []Segment {
	out := make([]Segment, 0, len(a.committed)+1)
	for _, text := range a.committed {
		out = append(out, Segment{Text: text, IsFinal: true})
	}
	if a.partial != "" {
		out = append(out, Segment{Text: a.partial})
	}
	return out
}
