package query

import "sync/atomic"

// Sequencer issues increasing tokens for overlapping page pulls so that a
// caller can drop results that were overtaken by a newer request.
//
//	tok := seq.Next()
//	page, err := query.Fetch(ctx, src, req)
//	if !seq.IsCurrent(tok) {
//		return // stale
//	}
type Sequencer struct {
	last atomic.Uint64
}

// Next returns a token newer than every token issued before.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// IsCurrent reports whether tok is the most recently issued token.
func (s *Sequencer) IsCurrent(tok uint64) bool {
	return s.last.Load() == tok
}
