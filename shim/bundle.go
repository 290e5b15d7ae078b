package shim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const configFilename = "config.json"

// Bundle annotations that tune the interpreter of a task.
const (
	AnnotationTapeSize     = "io.containerd.bf.tape-size"
	AnnotationMaxLoopDepth = "io.containerd.bf.max-loop-depth"
)

// InterpreterMode is the first argument the shim passes to itself to run a
// script instead of serving the task API.
const InterpreterMode = "brainfuck"

var scriptExtensions = map[string]bool{
	".bf":        true,
	".b":         true,
	".brainfuck": true,
}

// Bundle is the part of an OCI bundle the shim needs to run a task.
type Bundle struct {
	// Root is the absolute path of the rootfs
	Root string
	// Script is the entrypoint, relative to Root
	Script       string
	TapeSize     int
	MaxLoopDepth int
}

// ReadBundle reads config.json from the bundle directory at path.
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(path, configFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found: %w", configFilename, errdefs.ErrNotFound)
		}
		return nil, err
	}

	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configFilename, err)
	}

	if spec.Root == nil || spec.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s: %w", configFilename, errdefs.ErrInvalidArgument)
	}
	root := spec.Root.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(path, root)
	}

	if spec.Process == nil || len(spec.Process.Args) != 1 {
		n := 0
		if spec.Process != nil {
			n = len(spec.Process.Args)
		}
		return nil, fmt.Errorf("incorrect number of args in the CMD. Expected 1, got %d: %w", n, errdefs.ErrInvalidArgument)
	}

	script := spec.Process.Args[0]
	if !scriptExtensions[filepath.Ext(script)] {
		return nil, fmt.Errorf("entry point (%s) is not a .bf file: %w", script, errdefs.ErrInvalidArgument)
	}

	if _, err := os.Stat(filepath.Join(root, script)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s does not exist: %w", script, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("checking script %s: %w", script, err)
	}

	b := &Bundle{
		Root:   root,
		Script: script,
	}
	if b.TapeSize, err = intAnnotation(spec.Annotations, AnnotationTapeSize); err != nil {
		return nil, err
	}
	if b.MaxLoopDepth, err = intAnnotation(spec.Annotations, AnnotationMaxLoopDepth); err != nil {
		return nil, err
	}
	return b, nil
}

func intAnnotation(annotations map[string]string, key string) (int, error) {
	v, ok := annotations[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("annotation %s=%q is not a non-negative integer: %w", key, v, errdefs.ErrInvalidArgument)
	}
	return n, nil
}

func (b *Bundle) FullPath() string {
	return filepath.Join(b.Root, b.Script)
}

// CommandArgs are the arguments for running the bundle's script with the shim
// binary in interpreter mode.
func (b *Bundle) CommandArgs() []string {
	args := []string{InterpreterMode, "-file", b.FullPath()}
	if b.TapeSize > 0 {
		args = append(args, "-tape-size", strconv.Itoa(b.TapeSize))
	}
	if b.MaxLoopDepth > 0 {
		args = append(args, "-max-loop-depth", strconv.Itoa(b.MaxLoopDepth))
	}
	return args
}

// InterpreterArgs reports whether args select interpreter mode and returns
// the remaining arguments for the interpreter. The mode has to come first so
// that shim flags (a task id, say) are never mistaken for it.
func InterpreterArgs(args []string) ([]string, bool) {
	if len(args) == 0 || args[0] != InterpreterMode {
		return args, false
	}
	return args[1:], true
}
