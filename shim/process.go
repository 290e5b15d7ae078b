package shim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/fifo"
	"github.com/containerd/log"
)

// startStoppedScript stops itself before exec'ing its arguments, so the
// interpreter exists (and has a pid) after Create but only runs after Start.
const startStoppedScript = `#!/bin/sh
kill -STOP $$
exec "$@"
`

const startStoppedFilename = "start-stopped.sh"

const commandWaitDelay = 100 * time.Millisecond

const (
	stopTimeout      = 5 * time.Second
	stopPollInterval = 2 * time.Millisecond
)

// process is the interpreter process of one task.
type process struct {
	pid     int
	started bool

	// done is cancelled once the process has been reaped
	done       context.Context
	exitTime   time.Time
	exitStatus int

	stdin  string
	stdout string
	stderr string
}

func (p *process) exited() bool {
	return p.done.Err() != nil
}

func (p *process) String() string {
	if p.exited() {
		return fmt.Sprintf("pid:%d, exitTime:%s, exitStatus:%d", p.pid, p.exitTime.Format(time.RFC3339), p.exitStatus)
	}
	return fmt.Sprintf("pid:%d running", p.pid)
}

// exitStatus converts a wait result into a shell style exit status.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 255
	}
	if state.Exited() {
		return state.ExitCode()
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return exitCodeSignal + int(ws.Signal())
	}
	return 255
}

// connectStdio wires the task's stdio FIFOs to cmd. Empty paths are left
// unconnected. Stderr falls back to the stdout FIFO. The returned FIFOs must
// be closed once cmd.Wait has returned.
func connectStdio(ctx context.Context, cmd *exec.Cmd, stdin, stdout, stderr string) (closers []io.Closer, retErr error) {
	defer func() {
		if retErr != nil {
			closeAll(ctx, closers)
			closers = nil
		}
	}()

	if stderr == "" {
		stderr = stdout
	}

	if stdout != "" {
		fw, err := openFifo(ctx, stdout, syscall.O_WRONLY)
		if err != nil {
			return closers, err
		}
		closers = append(closers, fw)
		cmd.Stdout = fw
		if stderr == stdout {
			cmd.Stderr = fw
		}
	}

	if stderr != "" && stderr != stdout {
		fw, err := openFifo(ctx, stderr, syscall.O_WRONLY)
		if err != nil {
			return closers, err
		}
		closers = append(closers, fw)
		cmd.Stderr = fw
	}

	if stdin != "" {
		fr, err := openFifo(ctx, stdin, syscall.O_RDONLY)
		if err != nil {
			return closers, err
		}
		closers = append(closers, fr)
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return closers, fmt.Errorf("getting stdin pipe: %w", err)
		}
		go func() {
			defer pipe.Close()
			if _, err := io.Copy(pipe, fr); err != nil {
				log.G(ctx).WithError(err).Debugf("stopped copying fifo %s to stdin pipe", stdin)
			}
		}()
	}
	return closers, nil
}

func closeAll(ctx context.Context, closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.G(ctx).WithError(err).Warn("failed to close fifo")
		}
	}
}

func openFifo(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	ok, err := fifo.IsFifo(path)
	if err != nil {
		return nil, fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("file %s is not a fifo", path)
	}
	f, err := fifo.OpenFifo(ctx, path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}

// waitStopped polls the state of pid until the start-stopped script has
// stopped itself, so that a SIGCONT sent afterwards cannot be lost. A process
// that exits (or is reaped) first also ends the wait.
func waitStopped(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		state, err := procState(pid)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		switch state {
		case 'T', 't', 'Z', 'X':
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process %d did not stop within %s (state %c): %w", pid, timeout, state, errdefs.ErrUnavailable)
		}
		time.Sleep(stopPollInterval)
	}
}

// procState returns the state letter from /proc/<pid>/stat.
func procState(pid int) (byte, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, err
	}
	return parseProcState(data)
}

// parseProcState extracts the state from a stat line, "pid (comm) S ...".
// comm may itself contain spaces and parentheses, so scan from the last ')'.
func parseProcState(stat []byte) (byte, error) {
	i := bytes.LastIndexByte(stat, ')')
	if i < 0 || i+2 >= len(stat) {
		return 0, fmt.Errorf("malformed stat line %q", stat)
	}
	return stat[i+2], nil
}
