// Package scheduler runs a graph.DAG to completion: a ready-queue loop
// (not otto-rs's or pit's level-barrier approach — see below) that
// launches tasks as their dependencies complete, under separate I/O
// and CPU class semaphores.
//
// Grounded on pit's internal/engine/executor.go (executeDAG/executeTask
// shape: per-task goroutine, log file plus optional tee, env
// construction, hasUpstreamFailure-style dependency guard) generalized
// from its level-by-level topoSort into a true ready-queue per spec,
// and otto-rs's src/executor/scheduler.rs (TaskStatus/TaskType
// vocabulary, io_limit/cpu_limit class caps). The class semaphores use
// golang.org/x/sync/semaphore (a distr1-distri transitive dependency)
// instead of pit's single unweighted `chan struct{}` concurrency gate,
// since otto needs two independently-sized pools, not one.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/druarnfield/otto/internal/action"
	"github.com/druarnfield/otto/internal/engine"
	"github.com/druarnfield/otto/internal/graph"
	"github.com/druarnfield/otto/internal/outputrouter"
	"github.com/druarnfield/otto/internal/store"
	"github.com/druarnfield/otto/internal/workspace"
)

// Options configures a single run.
type Options struct {
	IOLimit  int // shared by ClassIO and ClassNetwork tasks
	CPULimit int
	User     string
	// TimeoutOverride, if non-zero, replaces every class's default
	// timeout (but not a task's own explicit TimeoutSeconds).
	TimeoutOverride time.Duration
}

// TaskOutcome is one task's terminal record, returned in Scheduler.Run's result.
type TaskOutcome struct {
	Name     string
	Status   engine.TaskStatus
	ExitCode int
	Err      error
}

// Scheduler executes every task in a DAG to completion.
type Scheduler struct {
	dag    *graph.DAG
	ws     *workspace.Workspace
	ap     *action.Processor
	router *outputrouter.Router
	st     *store.Store // nil disables StateStore recording (graceful degradation)
	runID  int64
	opts   Options

	ioSem  *semaphore.Weighted
	cpuSem *semaphore.Weighted

	mu        sync.Mutex
	outcomes  map[string]TaskOutcome
}

func New(dag *graph.DAG, ws *workspace.Workspace, ap *action.Processor, router *outputrouter.Router, st *store.Store, runID int64, opts Options) *Scheduler {
	if opts.IOLimit <= 0 {
		opts.IOLimit = 1
	}
	if opts.CPULimit <= 0 {
		opts.CPULimit = 1
	}
	return &Scheduler{
		dag:      dag,
		ws:       ws,
		ap:       ap,
		router:   router,
		st:       st,
		runID:    runID,
		opts:     opts,
		ioSem:    semaphore.NewWeighted(int64(opts.IOLimit)),
		cpuSem:   semaphore.NewWeighted(int64(opts.CPULimit)),
		outcomes: make(map[string]TaskOutcome),
	}
}

type completionEvent struct {
	name string
	outc TaskOutcome
}

// Run drives the ready-queue loop to completion and returns the
// overall run status plus every task's terminal outcome.
func (s *Scheduler) Run(ctx context.Context) (engine.RunStatus, map[string]TaskOutcome) {
	tasks := s.dag.Tasks()
	total := len(tasks)

	blockedDeps := make(map[string]int, total)
	dependents := make(map[string][]string, total)
	for name, t := range tasks {
		blockedDeps[name] = len(t.TaskDeps)
		for _, dep := range t.TaskDeps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, n := range blockedDeps {
		if n == 0 {
			ready = append(ready, name)
		}
	}

	events := make(chan completionEvent, total)
	outstanding := 0
	failed := false

	for outstanding > 0 || (len(ready) > 0 && !failed) {
		for len(ready) > 0 && !failed {
			name := ready[0]
			ready = ready[1:]
			outstanding++
			go func(name string) {
				outc := s.runTask(ctx, tasks[name])
				events <- completionEvent{name: name, outc: outc}
			}(name)
		}

		if outstanding == 0 {
			break
		}

		ev := <-events
		outstanding--
		s.mu.Lock()
		s.outcomes[ev.name] = ev.outc
		s.mu.Unlock()

		if ev.outc.Status == engine.TaskCompleted || ev.outc.Status == engine.TaskSkipped {
			for _, d := range dependents[ev.name] {
				blockedDeps[d]--
				if blockedDeps[d] == 0 {
					ready = append(ready, d)
				}
			}
		} else {
			failed = true
		}
	}

	status := engine.RunSuccess
	if failed || len(s.outcomes) != total {
		status = engine.RunFailed
	}
	return status, s.outcomes
}

// runTask executes a single task under its class semaphore, handling
// the dependency re-check, skip decision, spawn, timeout, and
// StateStore recording described in spec §4.4.
func (s *Scheduler) runTask(ctx context.Context, t *engine.Task) TaskOutcome {
	for _, dep := range t.TaskDeps {
		s.mu.Lock()
		depOutc, ok := s.outcomes[dep]
		s.mu.Unlock()
		if !ok || (depOutc.Status != engine.TaskCompleted && depOutc.Status != engine.TaskSkipped) {
			return TaskOutcome{Name: t.Name, Status: engine.TaskFailed, Err: engine.NewTaskError(engine.ErrDependency, t.Name, fmt.Errorf("predecessor %q did not complete", dep))}
		}
	}

	class := Classify(t.Action)
	sem := s.cpuSem
	if class.usesIOSemaphore() {
		sem = s.ioSem
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return TaskOutcome{Name: t.Name, Status: engine.TaskFailed, Err: engine.NewTaskError(engine.ErrSpawn, t.Name, err)}
	}
	defer sem.Release(1)

	var runID int64
	var taskRowID int64
	if s.st != nil {
		runID = s.runID
	}

	if ShouldSkip(t) {
		if s.st != nil {
			if _, err := s.st.RecordTaskSkipped(runID, t.Name, ""); err != nil {
				log.Printf("otto: recording skipped task %q: %v", t.Name, err)
			}
		}
		return TaskOutcome{Name: t.Name, Status: engine.TaskSkipped}
	}

	if err := s.ws.EnsureTaskDir(t.Name); err != nil {
		return TaskOutcome{Name: t.Name, Status: engine.TaskFailed, Err: err}
	}

	predecessors := t.TaskDeps
	pa, err := s.ap.Process(t, predecessors)
	if err != nil {
		return TaskOutcome{Name: t.Name, Status: engine.TaskFailed, Err: err}
	}

	timeout := class.DefaultTimeout()
	if s.opts.TimeoutOverride > 0 {
		timeout = s.opts.TimeoutOverride
	}
	if t.TimeoutSeconds > 0 {
		timeout = time.Duration(t.TimeoutSeconds) * time.Second
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ts := time.Now().Unix()
	stdoutPath := s.ws.StdoutLogPath(t.Name, ts)
	stderrPath := s.ws.StderrLogPath(t.Name, ts)

	if s.st != nil {
		taskRowID, err = s.st.RecordTaskStart(runID, t.Name, pa.Hash, stdoutPath, stderrPath, pa.ScriptPath)
		if err != nil {
			log.Printf("otto: recording start of task %q: %v", t.Name, err)
		}
	}

	exitCode, runErr := s.spawn(taskCtx, t.Name, pa, stdoutPath, stderrPath)

	status := engine.TaskCompleted
	if runErr != nil {
		status = engine.TaskFailed
	}
	if s.st != nil && taskRowID != 0 {
		if err := s.st.RecordTaskComplete(taskRowID, exitCode, status); err != nil {
			log.Printf("otto: recording completion of task %q: %v", t.Name, err)
		}
	}

	return TaskOutcome{Name: t.Name, Status: status, ExitCode: exitCode, Err: runErr}
}

// spawn runs the materialized script with a cleared, re-populated
// environment, tees its output through the OutputRouter, and enforces
// ctx's deadline by killing the process on timeout.
func (s *Scheduler) spawn(ctx context.Context, taskName string, pa *action.ProcessedAction, stdoutPath, stderrPath string) (int, error) {
	cmd := exec.CommandContext(ctx, pa.Interpreter, pa.ScriptPath)
	cmd.Dir = s.ws.TaskDir(taskName)
	cmd.Env = s.buildEnv(taskName)

	stdoutW, err := outputrouter.OpenTaskWriter(s.router, taskName, outputrouter.Stdout, stdoutPath)
	if err != nil {
		return -1, err
	}
	defer stdoutW.Close()
	stderrW, err := outputrouter.OpenTaskWriter(s.router, taskName, outputrouter.Stderr, stderrPath)
	if err != nil {
		return -1, err
	}
	defer stderrW.Close()

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return -1, engine.NewTaskError(engine.ErrTimeout, taskName, fmt.Errorf("task exceeded its timeout"))
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if asExitError(runErr, &exitErr) {
			return exitErr.ExitCode(), engine.NewTaskError(engine.ErrExit, taskName, fmt.Errorf("exit code %d", exitErr.ExitCode()))
		}
		return -1, engine.NewTaskError(engine.ErrSpawn, taskName, runErr)
	}
	return 0, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// buildEnv clears the process environment and re-populates it with
// exactly the task's declared envs plus otto's own OTTO_* variables —
// no ambient inheritance, per spec.md §6 and §4.4-5c.
func (s *Scheduler) buildEnv(taskName string) []string {
	t := s.dag.Tasks()[taskName]
	env := make([]string, 0, len(t.Envs)+5)
	for k, v := range t.Envs {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"OTTO_TASK="+taskName,
		"OTTO_TASK_DIR="+s.ws.TaskDir(taskName),
		"OTTO_WORKSPACE="+s.ws.ProjectDir(),
		"OTTO_TASKS_DIR="+s.ws.TasksDir(),
		"OTTO_USER="+s.opts.User,
	)
	return env
}
