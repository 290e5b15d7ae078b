package bf_test

import (
	"testing"

	"github.com/MarcinKonowalczyk/runbf/bf"
	"github.com/MarcinKonowalczyk/runbf/utils"
)

func TestPreLex(t *testing.T) {
	input := "++\n\n--<    >.,[hello sailor]"
	expected := "++--<>.,[]"
	result := bf.PreLex([]byte(input))
	utils.AssertEqual(t, string(result), expected)
}

func TestCommand_IsInstruction(t *testing.T) {
	for _, c := range []byte("+-<>.,[]") {
		utils.Assert(t, bf.Command(c).IsInstruction(), string(c)+" is not an instruction")
	}
	for _, c := range []byte(" a#\n\x00{}") {
		utils.Assert(t, !bf.Command(c).IsInstruction(), string(c)+" is an instruction")
	}
}

func TestCommand_String(t *testing.T) {
	utils.AssertEqual(t, bf.LoopStart.String(), "loop start")
	utils.AssertEqual(t, bf.Command('x').String(), "comment")
}
