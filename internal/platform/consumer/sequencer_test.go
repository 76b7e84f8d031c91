package consumer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencer_RunsInOrderRegardlessOfCompletionOrder(t *testing.T) {
	s := newSequencer()
	var order []int
	var mu sync.Mutex

	seq0 := s.next()
	seq1 := s.next()
	seq2 := s.next()

	// Complete out of order: 2, then 0, then 1.
	s.complete(seq2, func() {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})
	assert.Empty(t, order, "seq2 must not run before seq0 and seq1 complete")

	s.complete(seq0, func() {
		mu.Lock()
		order = append(order, 0)
		mu.Unlock()
	})
	assert.Equal(t, []int{0}, order, "only seq0 should have run")

	s.complete(seq1, func() {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	assert.Equal(t, []int{0, 1, 2}, order, "seq1 completing should drain seq2 too")
}

func TestSequencer_AbandonReleasesSlotWithoutRunning(t *testing.T) {
	s := newSequencer()
	var ran bool

	seq0 := s.next()
	seq1 := s.next()

	s.abandon(seq0)
	s.complete(seq1, func() { ran = true })

	assert.True(t, ran)
}

func TestSequencer_SingleSequenceRunsImmediately(t *testing.T) {
	s := newSequencer()
	seq := s.next()
	var ran bool
	s.complete(seq, func() { ran = true })
	assert.True(t, ran)
}
