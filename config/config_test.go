package config_test

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/MarcinKonowalczyk/runbf/bf"
	"github.com/MarcinKonowalczyk/runbf/config"
	"github.com/MarcinKonowalczyk/runbf/utils"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfig_Default(t *testing.T) {
	cfg := config.Default()
	utils.AssertDeepEqual(t, &config.Config{TapeSize: 30_720, LogFormat: "text"}, cfg)
	utils.AssertNoError(t, cfg.Validate())
}

func TestConfig_LoadTOML(t *testing.T) {
	path := writeFile(t, "bfi.toml", "tape-size = 16\ndebug = true\n")
	cfg, err := config.Load(path)
	utils.AssertNoError(t, err)
	utils.AssertDeepEqual(t, &config.Config{TapeSize: 16, Debug: true, LogFormat: "text"}, cfg)
}

func TestConfig_LoadYAML(t *testing.T) {
	path := writeFile(t, "bfi.yaml", "max-loop-depth: 64\nlog-format: json\n")
	cfg, err := config.Load(path)
	utils.AssertNoError(t, err)
	utils.AssertDeepEqual(t, &config.Config{TapeSize: 30_720, MaxLoopDepth: 64, LogFormat: "json"}, cfg)
}

func TestConfig_LoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	utils.AssertErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(writeFile(t, "bfi.ini", "tape-size=1"))
	utils.Assert(t, errdefs.IsInvalidArgument(err), "unknown extension accepted")

	_, err = config.Load(writeFile(t, "bfi.toml", "tape-size = \"big\""))
	utils.AssertError(t, err)
}

func TestConfig_FlagsOverrideFile(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "bfi.toml", "tape-size = 16\n"))
	utils.AssertNoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	utils.AssertNoError(t, fs.Parse([]string{"-max-loop-depth", "3"}))
	utils.AssertEqual(t, cfg.TapeSize, 16)
	utils.AssertEqual(t, cfg.MaxLoopDepth, 3)

	utils.AssertNoError(t, fs.Parse([]string{"-tape-size", "8"}))
	utils.AssertEqual(t, cfg.TapeSize, 8)
}

func TestConfig_Validate(t *testing.T) {
	for _, cfg := range []config.Config{
		{TapeSize: -1, LogFormat: "text"},
		{MaxLoopDepth: -1, LogFormat: "text"},
		{LogFormat: "xml"},
	} {
		err := cfg.Validate()
		utils.Assert(t, errdefs.IsInvalidArgument(err), "invalid config accepted")
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := &config.Config{TapeSize: 2, MaxLoopDepth: 1}
	interpreter := bf.NewInterpreter([]byte(">>+"), nil, nil, cfg.Options()...)
	utils.AssertNoError(t, interpreter.Run(context.Background()))
	utils.AssertEqual(t, interpreter.At(0), 1)

	err := bf.Run(context.Background(), []byte("[][]"), nil, nil, cfg.Options()...)
	utils.Assert(t, err != nil && strings.Contains(err.Error(), "loop stack"), "loop limit not applied")
}
