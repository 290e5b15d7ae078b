package bf

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// loopStack holds the source positions of the loops currently being executed.
// It is backed by one buffer of fixed capacity and never grows.
type loopStack struct {
	positions []int
	depth     int
}

// newLoopStack allocates a stack for capacity loops. limit caps the capacity
// when positive.
func newLoopStack(capacity, limit int) (s *loopStack, err error) {
	if limit > 0 && capacity > limit {
		return nil, &ResourceAcquisitionError{Capacity: capacity, Cause: errLoopLimit}
	}
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = &ResourceAcquisitionError{Capacity: capacity, Cause: fmt.Errorf("%v", r)}
		}
	}()
	return &loopStack{positions: make([]int, capacity)}, nil
}

func (s *loopStack) push(pos int) {
	s.positions[s.depth] = pos
	s.depth++
}

func (s *loopStack) pop() (int, bool) {
	if s.depth == 0 {
		return 0, false
	}
	s.depth--
	return s.positions[s.depth], true
}

func (s *loopStack) release() {
	s.positions = nil
	s.depth = 0
}

// skipLoop returns the position of the ']' matching the '[' at open.
func skipLoop(source []byte, open int) (int, error) {
	depth := 1
	for j := open + 1; j < len(source); j++ {
		switch Command(source[j]) {
		case LoopStart:
			depth++
		case LoopEnd:
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, fmt.Errorf("loop at position %d is never closed: %w", open, errdefs.ErrInvalidArgument)
}
