package bf

// Validate checks that the program has as many '[' as ']' and returns the
// number of '['. Nesting order is not checked here.
func Validate(source []byte) (int, error) {
	open, closed := 0, 0
	for _, c := range source {
		switch Command(c) {
		case LoopStart:
			open++
		case LoopEnd:
			closed++
		}
	}
	if open != closed {
		return 0, &UnbalancedBracketsError{Open: open, Close: closed}
	}
	return open, nil
}
