package bf

// Command is a single source byte. Only the eight instruction bytes have an
// effect; everything else is a comment.
type Command byte

const (
	Increment Command = '+'
	Decrement Command = '-'
	Left      Command = '<'
	Right     Command = '>'
	Output    Command = '.'
	Input     Command = ','
	LoopStart Command = '['
	LoopEnd   Command = ']'
)

// IsInstruction reports whether c is one of the eight instructions.
func (c Command) IsInstruction() bool {
	switch c {
	case Increment, Decrement, Left, Right, Output, Input, LoopStart, LoopEnd:
		return true
	default:
		return false
	}
}

func (c Command) String() string {
	switch c {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	case Left:
		return "left"
	case Right:
		return "right"
	case Output:
		return "output"
	case Input:
		return "input"
	case LoopStart:
		return "loop start"
	case LoopEnd:
		return "loop end"
	default:
		return "comment"
	}
}

// PreLex strips everything but the instructions from the source.
func PreLex(source []byte) []byte {
	result := make([]byte, 0, len(source))
	for _, c := range source {
		if Command(c).IsInstruction() {
			result = append(result, c)
		}
	}
	return result
}
