package bf

// DefaultTapeSize is the number of cells on a tape unless configured otherwise.
const DefaultTapeSize = 30_720

// Tape is a fixed ring of byte cells with a single data pointer. The pointer
// wraps at both ends, so it is always in [0, Len()).
type Tape struct {
	cells []uint8
	ptr   int
}

// NewTape returns a zeroed tape of size cells. A non-positive size selects
// DefaultTapeSize.
func NewTape(size int) *Tape {
	if size <= 0 {
		size = DefaultTapeSize
	}
	return &Tape{cells: make([]uint8, size)}
}

func (t *Tape) Len() int {
	return len(t.cells)
}

func (t *Tape) Pointer() int {
	return t.ptr
}

func (t *Tape) Read() uint8 {
	return t.cells[t.ptr]
}

func (t *Tape) Write(v uint8) {
	t.cells[t.ptr] = v
}

func (t *Tape) Increment() {
	t.cells[t.ptr]++
}

func (t *Tape) Decrement() {
	t.cells[t.ptr]--
}

func (t *Tape) MoveRight() {
	if t.ptr == len(t.cells)-1 {
		t.ptr = 0
	} else {
		t.ptr++
	}
}

func (t *Tape) MoveLeft() {
	if t.ptr == 0 {
		t.ptr = len(t.cells) - 1
	} else {
		t.ptr--
	}
}

// At returns the cell at index j, wrapped into range. Negative indices count
// back from the end of the tape.
func (t *Tape) At(j int) uint8 {
	return t.cells[wrapIndex(j, len(t.cells))]
}

// invalid reports whether the pointer sits on the one-past-the-end address.
// Moves wrap before reaching it, so this never holds for a tape driven only
// through its methods.
func (t *Tape) invalid() bool {
	return t.ptr == len(t.cells)
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
