package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcinKonowalczyk/runbf/cli"
	"github.com/MarcinKonowalczyk/runbf/utils"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runMain(args []string, stdin string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := cli.Main(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMain_Positional(t *testing.T) {
	path := writeFile(t, t.TempDir(), "echo.bf", "read then write: ,.")
	code, stdout, stderr := runMain([]string{path}, "A")
	utils.AssertEqual(t, code, 0)
	utils.AssertEqual(t, stdout, "A")
	utils.AssertEqual(t, stderr, "")
}

func TestMain_FileFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "echo.bf", ",.")
	code, stdout, _ := runMain([]string{"-file", path}, "z")
	utils.AssertEqual(t, code, 0)
	utils.AssertEqual(t, stdout, "z")
}

func TestMain_NoFilename(t *testing.T) {
	code, _, stderr := runMain(nil, "")
	utils.AssertEqual(t, code, 1)
	utils.AssertEqual(t, stderr, "bfi: Expected source file filename.\n")
}

func TestMain_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.bf")
	code, _, stderr := runMain([]string{path}, "")
	utils.AssertEqual(t, code, 1)
	utils.AssertEqual(t, stderr, "bfi: file '"+path+"' open failed: no such file or directory.\n")
}

func TestMain_Unbalanced(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.bf", "+.]")
	code, stdout, stderr := runMain([]string{path}, "")
	utils.AssertEqual(t, code, 1)
	utils.AssertEqual(t, stdout, "")
	utils.Assert(t, strings.HasPrefix(stderr, "bfi: unequal amount of opening and closing brackets"), "unexpected diagnostic: "+stderr)
}

func TestMain_PartialOutputIsFlushed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.bf", "++++++++[>++++++++<-]>+.][")
	code, stdout, stderr := runMain([]string{path}, "")
	utils.AssertEqual(t, code, 1)
	utils.AssertEqual(t, stdout, "A")
	utils.AssertEqual(t, stderr, "bfi: unexpected end of loop.\n")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestMain_OutputError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.bf", "+.")
	for _, args := range [][]string{{path}, {"-strip", path}} {
		var stderr bytes.Buffer
		code := cli.Main(context.Background(), args, strings.NewReader(""), failingWriter{}, &stderr)
		utils.AssertEqual(t, code, 1)
		utils.AssertEqual(t, stderr.String(), "bfi: writing output: disk full.\n")
	}
}

func TestMain_Strip(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.bf", "add two: ++ and print .\n")
	code, stdout, _ := runMain([]string{"-strip", path}, "")
	utils.AssertEqual(t, code, 0)
	utils.AssertEqual(t, stdout, "++.\n")
}

func TestMain_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bfi.toml", "tape-size = 2\n")
	// on a two cell tape the third cell is the first one again
	prog := writeFile(t, dir, "prog.bf", "+>>.")
	code, stdout, _ := runMain([]string{"-config", cfg, prog}, "")
	utils.AssertEqual(t, code, 0)
	utils.AssertEqual(t, stdout, "\x01")

	// flags win over the file
	code, stdout, _ = runMain([]string{"-config", cfg, "-tape-size", "3", prog}, "")
	utils.AssertEqual(t, code, 0)
	utils.AssertEqual(t, stdout, "\x00")
}

func TestMain_InvalidConfig(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "prog.bf", "+")
	code, _, stderr := runMain([]string{"-tape-size", "-4", prog}, "")
	utils.AssertEqual(t, code, 1)
	utils.Assert(t, strings.Contains(stderr, "tape size -4 is negative"), "unexpected diagnostic: "+stderr)
}
