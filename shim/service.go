package shim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	taskAPI "github.com/containerd/containerd/api/runtime/task/v2"
	tasktypes "github.com/containerd/containerd/api/types/task"
	"github.com/containerd/containerd/protobuf"
	ptypes "github.com/containerd/containerd/v2/pkg/protobuf/types"
	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/containerd/v2/pkg/shutdown"
	"github.com/containerd/containerd/v2/plugins"
	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"
	"github.com/containerd/ttrpc"
	"google.golang.org/protobuf/types/known/anypb"
)

func init() {
	registry.Register(&plugin.Registration{
		Type: plugins.TTRPCPlugin,
		ID:   "task",
		Requires: []plugin.Type{
			plugins.InternalPlugin,
		},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			ss, err := ic.GetByID(plugins.InternalPlugin, "shutdown")
			if err != nil {
				return nil, err
			}
			return newTaskService(ss.(shutdown.Service)), nil
		},
	})
}

// taskService runs one interpreter process per task.
type taskService struct {
	mu       sync.RWMutex
	procs    map[string]*process
	shutdown shutdown.Service
}

func newTaskService(sd shutdown.Service) *taskService {
	return &taskService{
		procs:    make(map[string]*process, 1),
		shutdown: sd,
	}
}

var (
	_ taskAPI.TaskService = &taskService{}
	_ shim.TTRPCService   = &taskService{}
)

// RegisterTTRPC allows TTRPC services to be registered with the underlying server
func (s *taskService) RegisterTTRPC(server *ttrpc.Server) error {
	taskAPI.RegisterTaskService(server, s)
	return nil
}

// get returns the process of task id. The caller must hold s.mu.
func (s *taskService) get(id string) (*process, error) {
	p, ok := s.procs[id]
	if !ok {
		return nil, fmt.Errorf("task %s not created: %w", id, errdefs.ErrNotFound)
	}
	return p, nil
}

func (s *taskService) doneContext(id string) (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return p.done, nil
}

// Create starts the task's interpreter in a stopped state.
func (s *taskService) Create(ctx context.Context, r *taskAPI.CreateTaskRequest) (*taskAPI.CreateTaskResponse, error) {
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("id", r.ID))
	log.G(ctx).Debug("create")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.procs[r.ID]; ok {
		return nil, fmt.Errorf("task %s: %w", r.ID, errdefs.ErrAlreadyExists)
	}

	bundle, err := ReadBundle(r.Bundle)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	script := filepath.Join(r.Bundle, startStoppedFilename)
	if err := os.WriteFile(script, []byte(startStoppedScript), 0755); err != nil {
		return nil, fmt.Errorf("writing %s: %w", startStoppedFilename, err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("getting executable of current process: %w", err)
	}

	// Not tied to ctx, which ends with this request.
	cmd := exec.Command("/bin/sh", append([]string{script, self}, bundle.CommandArgs()...)...)
	cmd.WaitDelay = commandWaitDelay

	stdio, err := connectStdio(ctx, cmd, r.Stdin, r.Stdout, r.Stderr)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		closeAll(ctx, stdio)
		return nil, fmt.Errorf("running init command: %w", err)
	}
	pid := cmd.Process.Pid

	// Start may only continue the script once it has stopped itself.
	if err := waitStopped(pid, stopTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		closeAll(ctx, stdio)
		return nil, fmt.Errorf("waiting for init process %d to stop: %w", pid, err)
	}

	done, markDone := context.WithCancel(context.Background())
	s.procs[r.ID] = &process{
		pid:    pid,
		done:   done,
		stdin:  r.Stdin,
		stdout: r.Stdout,
		stderr: r.Stderr,
	}
	go s.reap(ctx, r.ID, cmd, stdio, markDone)

	if err := writePidFile(filepath.Join(r.Bundle, initPidFile), pid); err != nil {
		log.G(ctx).WithError(err).Warn("failed to write pid file")
	}

	log.G(ctx).WithField("script", bundle.FullPath()).Debugf("created init process %d", pid)
	return &taskAPI.CreateTaskResponse{
		Pid: uint32(pid),
	}, nil
}

// reap waits for the process of task id, records its exit and shuts the shim
// down once every task has exited.
func (s *taskService) reap(ctx context.Context, id string, cmd *exec.Cmd, stdio []io.Closer, markDone context.CancelFunc) {
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
			log.G(ctx).WithError(err).Errorf("failed to wait for init process %d", pid)
		}
	}
	closeAll(ctx, stdio)
	status := exitStatus(cmd.ProcessState)
	log.G(ctx).Debugf("init process %d exited with status %d", pid, status)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.procs[id]; ok {
		p.exitStatus = status
		p.exitTime = time.Now()
	} else {
		log.G(ctx).Error("failed to write final status of done init process: task was removed")
	}
	markDone()

	for _, p := range s.procs {
		if !p.exited() {
			return
		}
	}
	log.G(ctx).Debug("all processes exited, shutting down the shim")
	s.shutdown.Shutdown()
}

// Start continues the stopped interpreter.
func (s *taskService) Start(ctx context.Context, r *taskAPI.StartRequest) (*taskAPI.StartResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("start")

	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}
	if p.started {
		return nil, fmt.Errorf("task %s already started: %w", r.ID, errdefs.ErrFailedPrecondition)
	}

	if err := syscall.Kill(p.pid, syscall.SIGCONT); err != nil {
		return nil, fmt.Errorf("continuing init process %d: %w", p.pid, err)
	}
	p.started = true

	return &taskAPI.StartResponse{
		Pid: uint32(p.pid),
	}, nil
}

// Delete forgets an exited task.
func (s *taskService) Delete(ctx context.Context, r *taskAPI.DeleteRequest) (*taskAPI.DeleteResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("delete")

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}
	if !p.exited() {
		return nil, errdefs.ErrFailedPrecondition.WithMessage(fmt.Sprintf("init process %d is not done yet", p.pid))
	}
	delete(s.procs, r.ID)

	return &taskAPI.DeleteResponse{
		Pid:        uint32(p.pid),
		ExitStatus: uint32(p.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(p.exitTime),
	}, nil
}

// Exec an additional process inside the container
func (s *taskService) Exec(ctx context.Context, r *taskAPI.ExecProcessRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Exec (task)")
}

// ResizePty of a process
func (s *taskService) ResizePty(ctx context.Context, r *taskAPI.ResizePtyRequest) (*ptypes.Empty, error) {
	return &ptypes.Empty{}, nil
}

// State returns runtime state of a process
func (s *taskService) State(ctx context.Context, r *taskAPI.StateRequest) (*taskAPI.StateResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}

	return &taskAPI.StateResponse{
		ID:         r.ID,
		Pid:        uint32(p.pid),
		Status:     p.status(),
		Stdin:      p.stdin,
		Stdout:     p.stdout,
		Stderr:     p.stderr,
		ExitStatus: uint32(p.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(p.exitTime),
	}, nil
}

func (p *process) status() tasktypes.Status {
	switch {
	case p.exited():
		return tasktypes.Status_STOPPED
	case p.started:
		return tasktypes.Status_RUNNING
	default:
		return tasktypes.Status_CREATED
	}
}

// Pause the container
func (s *taskService) Pause(ctx context.Context, r *taskAPI.PauseRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Pause (task)")
}

// Resume the container
func (s *taskService) Resume(ctx context.Context, r *taskAPI.ResumeRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Resume (task)")
}

// Kill sends r.Signal (SIGKILL when unset) to the interpreter. For SIGKILL it
// also waits for the process to be reaped.
func (s *taskService) Kill(ctx context.Context, r *taskAPI.KillRequest) (*ptypes.Empty, error) {
	log.G(ctx).WithField("id", r.ID).Debugf("kill signal %d", r.Signal)

	sig := syscall.Signal(r.Signal)
	if sig == 0 {
		sig = syscall.SIGKILL
	}

	s.mu.RLock()
	p, err := s.get(r.ID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	pid, done, exited := p.pid, p.done, p.exited()
	s.mu.RUnlock()

	if exited {
		log.G(ctx).Warnf("task already exited: %s", r.ID)
		return &ptypes.Empty{}, nil
	}

	if err := syscall.Kill(pid, sig); err != nil {
		log.G(ctx).WithError(err).Errorf("failed to send %s to init process %d", sig, pid)
		return nil, fmt.Errorf("sending %s to init process: %w", sig, err)
	}

	if sig == syscall.SIGKILL {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done.Done():
		}
	}
	return &ptypes.Empty{}, nil
}

// Pids returns all pids inside the container
func (s *taskService) Pids(ctx context.Context, r *taskAPI.PidsRequest) (*taskAPI.PidsResponse, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Pids (task)")
}

// CloseIO of a process
func (s *taskService) CloseIO(ctx context.Context, r *taskAPI.CloseIORequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("CloseIO (task)")
}

// Checkpoint the container
func (s *taskService) Checkpoint(ctx context.Context, r *taskAPI.CheckpointTaskRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Checkpoint (task)")
}

// Connect returns shim information of the underlying service
func (s *taskService) Connect(ctx context.Context, r *taskAPI.ConnectRequest) (*taskAPI.ConnectResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}

	return &taskAPI.ConnectResponse{
		ShimPid: uint32(os.Getpid()),
		TaskPid: uint32(p.pid),
	}, nil
}

// Shutdown is called after the underlying resources of the shim are cleaned up and the service can be stopped
func (s *taskService) Shutdown(ctx context.Context, r *taskAPI.ShutdownRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("shutdown")
	s.shutdown.Shutdown()
	return &ptypes.Empty{}, nil
}

// Stats returns empty stats; the interpreter exposes none.
func (s *taskService) Stats(ctx context.Context, r *taskAPI.StatsRequest) (*taskAPI.StatsResponse, error) {
	return &taskAPI.StatsResponse{
		Stats: &anypb.Any{},
	}, nil
}

// Update the live container
func (s *taskService) Update(ctx context.Context, r *taskAPI.UpdateTaskRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Update (task)")
}

// Wait for a process to exit
func (s *taskService) Wait(ctx context.Context, r *taskAPI.WaitRequest) (*taskAPI.WaitResponse, error) {
	done, err := s.doneContext(r.ID)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.get(r.ID)
	if err != nil {
		return nil, fmt.Errorf("task was removed: %w", err)
	}

	return &taskAPI.WaitResponse{
		ExitStatus: uint32(p.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(p.exitTime),
	}, nil
}
