package bf_test

import (
	"testing"

	"github.com/MarcinKonowalczyk/runbf/bf"
	"github.com/MarcinKonowalczyk/runbf/utils"
)

func TestTape_DefaultSize(t *testing.T) {
	utils.AssertEqual(t, bf.NewTape(0).Len(), bf.DefaultTapeSize)
	utils.AssertEqual(t, bf.NewTape(-5).Len(), 30_720)
}

func TestTape_PointerWraparound(t *testing.T) {
	for _, size := range []int{1, 2, 7, 256, bf.DefaultTapeSize} {
		tape := bf.NewTape(size)
		tape.MoveLeft()
		utils.AssertEqual(t, tape.Pointer(), size-1)
		tape.MoveRight()
		utils.AssertEqual(t, tape.Pointer(), 0)

		for range size {
			tape.MoveRight()
		}
		utils.AssertEqual(t, tape.Pointer(), 0)
	}
}

func TestTape_CellWraparound(t *testing.T) {
	tape := bf.NewTape(4)
	tape.Write(255)
	tape.Increment()
	utils.AssertEqual(t, tape.Read(), 0)
	tape.Decrement()
	utils.AssertEqual(t, tape.Read(), 255)
}

func TestTape_CellsAreIndependent(t *testing.T) {
	tape := bf.NewTape(4)
	tape.Write(7)
	tape.MoveRight()
	tape.Increment()
	tape.MoveRight()
	utils.AssertEqual(t, tape.Read(), 0)
	utils.AssertEqual(t, tape.At(0), 7)
	utils.AssertEqual(t, tape.At(1), 1)
	utils.AssertEqual(t, tape.At(-3), 1)
	utils.AssertEqual(t, tape.At(8), 7)
}
