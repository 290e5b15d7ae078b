package bf

import (
	"context"
	"io"

	"github.com/containerd/log"
)

type Option func(*Interpreter)

// WithTapeSize sets the number of tape cells. Non-positive sizes select
// DefaultTapeSize.
func WithTapeSize(size int) Option {
	return func(i *Interpreter) {
		i.tapeSize = size
	}
}

// WithMaxLoopDepth refuses to run programs with more than n loops. Zero means
// no limit.
func WithMaxLoopDepth(n int) Option {
	return func(i *Interpreter) {
		i.maxLoopDepth = n
	}
}

// Interpreter executes a single program. Every call to Run starts from a
// fresh tape; nothing carries over between runs.
type Interpreter struct {
	Program      []byte
	Input        io.Reader
	Output       io.Writer
	tapeSize     int
	maxLoopDepth int

	// tape of the last successful run
	tape *Tape
}

// NewInterpreter returns an interpreter for program. A nil input behaves as an
// empty stream and a nil output discards everything.
func NewInterpreter(program []byte, input io.Reader, output io.Writer, opts ...Option) *Interpreter {
	i := &Interpreter{
		Program:  program,
		Input:    input,
		Output:   output,
		tapeSize: DefaultTapeSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Tape returns the tape left by the last successful run, or nil if the
// interpreter has not run or the last run failed.
func (i *Interpreter) Tape() *Tape {
	return i.tape
}

// At indexes the tape of the last successful run. See Tape.At.
func (i *Interpreter) At(j int) uint8 {
	if i.tape == nil {
		return 0
	}
	return i.tape.At(j)
}

// Run validates the program and executes it to the end or to the first error.
// The context only carries the logger; a run cannot be interrupted.
func (i *Interpreter) Run(ctx context.Context) error {
	i.tape = nil

	loops, err := Validate(i.Program)
	if err != nil {
		return err
	}

	stack, err := newLoopStack(loops, i.maxLoopDepth)
	if err != nil {
		return err
	}
	defer stack.release()

	tape := NewTape(i.tapeSize)

	logger := log.G(ctx).WithFields(log.Fields{
		"source": len(i.Program),
		"loops":  loops,
		"tape":   tape.Len(),
	})
	logger.Debug("running program")

	steps, err := i.execute(tape, stack)
	if err != nil {
		logger.WithError(err).WithField("steps", steps).Debug("run aborted")
		return err
	}

	i.tape = tape
	logger.WithField("steps", steps).Debug("program finished")
	return nil
}

func (i *Interpreter) execute(tape *Tape, stack *loopStack) (int, error) {
	src := i.Program
	steps := 0
	for cursor := 0; cursor < len(src); cursor++ {
		c := Command(src[cursor])
		if !c.IsInstruction() {
			continue
		}
		steps++

		switch c {
		case Increment:
			if tape.invalid() {
				return steps, &InvalidAddressError{Operation: "incrementing value at", Address: tape.Pointer()}
			}
			tape.Increment()
		case Decrement:
			if tape.invalid() {
				return steps, &InvalidAddressError{Operation: "decrementing value at", Address: tape.Pointer()}
			}
			tape.Decrement()
		case Right:
			tape.MoveRight()
		case Left:
			tape.MoveLeft()
		case Output:
			if tape.invalid() {
				return steps, &InvalidAddressError{Operation: "reading from", Address: tape.Pointer()}
			}
			if err := i.writeByte(tape.Read()); err != nil {
				return steps, outputError(err)
			}
		case Input:
			if tape.invalid() {
				return steps, &InvalidAddressError{Operation: "writing to", Address: tape.Pointer()}
			}
			b, err := i.readByte()
			if err == io.EOF {
				// cell keeps its value
				break
			}
			if err != nil {
				return steps, inputError(err)
			}
			tape.Write(b)
		case LoopStart:
			if tape.invalid() {
				return steps, &InvalidAddressError{Operation: "reading from", Address: tape.Pointer()}
			}
			if tape.Read() != 0 {
				stack.push(cursor)
				break
			}
			end, err := skipLoop(src, cursor)
			if err != nil {
				return steps, err
			}
			cursor = end
		case LoopEnd:
			start, ok := stack.pop()
			if !ok {
				return steps, ErrUnexpectedLoopEnd
			}
			// land on the '[' again so its condition is re-evaluated
			cursor = start - 1
		}
	}
	return steps, nil
}

func (i *Interpreter) readByte() (byte, error) {
	if i.Input == nil {
		return 0, io.EOF
	}
	if br, ok := i.Input.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	if _, err := io.ReadFull(i.Input, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (i *Interpreter) writeByte(b byte) error {
	if i.Output == nil {
		return nil
	}
	if bw, ok := i.Output.(io.ByteWriter); ok {
		return bw.WriteByte(b)
	}
	_, err := i.Output.Write([]byte{b})
	return err
}
