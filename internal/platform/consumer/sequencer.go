package consumer

import "sync"

// sequencer enforces the "no commit skips ahead of an in-flight
// predecessor" rule from spec §4.9: offsets commit in the order messages
// were fetched, not the order their handlers happen to finish.
// Each fetched message is assigned a monotonic sequence number; complete
// runs its commit callback immediately if it is next in line, otherwise it
// buffers the callback until its turn arrives.
type sequencer struct {
	mu      sync.Mutex
	nextSeq uint64
	nextRun uint64
	pending map[uint64]func()
}

func newSequencer() *sequencer {
	return &sequencer{pending: make(map[uint64]func())}
}

func (s *sequencer) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// abandon releases a sequence number that was allocated but will never be
// completed (e.g. the run loop is shutting down before dispatch).
func (s *sequencer) abandon(seq uint64) {
	s.complete(seq, func() {})
}

// complete registers fn as ready to run for seq, then drains the pending
// map for as long as the next expected sequence number is ready.
func (s *sequencer) complete(seq uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[seq] = fn
	for {
		next, ok := s.pending[s.nextRun]
		if !ok {
			return
		}
		delete(s.pending, s.nextRun)
		s.nextRun++
		s.mu.Unlock()
		next()
		s.mu.Lock()
	}
}
