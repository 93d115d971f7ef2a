// Package idgen hands out monotonically increasing identifiers.
package idgen

import "sync/atomic"

// Sequencer provides monotonically increasing sequence numbers starting at 1.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// NextID returns the next sequence number as a signed id.
func (s *Sequencer) NextID() int64 { return int64(s.n.Add(1)) }

// Last returns the most recently issued number, or 0 if none was issued.
func (s *Sequencer) Last() uint64 { return s.n.Load() }
