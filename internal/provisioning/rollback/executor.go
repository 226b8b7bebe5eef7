package rollback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/metrics"
	"github.com/imamik/oscp/internal/resource"
)

// Command is one reversible step of an operation.
type Command interface {
	Name() string
	Execute(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Step adapts a pair of closures to Command. A nil Undo means the step has
// nothing to compensate.
type Step struct {
	Label string
	Do    func(ctx context.Context) error
	Undo  func(ctx context.Context) error
}

func (s Step) Name() string { return s.Label }

func (s Step) Execute(ctx context.Context) error {
	if s.Do == nil {
		return nil
	}
	return s.Do(ctx)
}

func (s Step) Rollback(ctx context.Context) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx)
}

// Entry records one compensation that ran.
type Entry struct {
	Command string
	Err     error
}

// Journal records the completed commands of one Run and the compensations
// that were executed for them.
type Journal struct {
	mu        sync.Mutex
	completed []string
	undone    []Entry
}

// Completed returns the names of the commands that executed successfully,
// in order.
func (j *Journal) Completed() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.completed...)
}

// Compensations returns the rollbacks that ran, newest command first.
func (j *Journal) Compensations() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.undone...)
}

func (j *Journal) complete(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed = append(j.completed, name)
}

func (j *Journal) compensate(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undone = append(j.undone, e)
}

// Executor runs commands with compensation.
type Executor struct {
	log logr.Logger
}

// NewExecutor creates an executor.
func NewExecutor(log logr.Logger) *Executor {
	return &Executor{log: log.WithName("rollback")}
}

// Run executes cmds in order. Before each command it checks ctx; a cancelled
// context or a failing command rolls back the completed commands in reverse
// order. Run returns the failing command's error unchanged, or an
// OperationCancelled error wrapping the context error.
func (e *Executor) Run(ctx context.Context, cmds ...Command) error {
	_, err := e.RunJournal(ctx, cmds...)
	return err
}

// RunJournal is Run that also returns the journal of what happened.
func (e *Executor) RunJournal(ctx context.Context, cmds ...Command) (*Journal, error) {
	journal := &Journal{}
	done := make([]Command, 0, len(cmds))

	for i, cmd := range cmds {
		name := fmt.Sprintf("%s (%d/%d)", cmd.Name(), i+1, len(cmds))

		if err := ctx.Err(); err != nil {
			e.log.Info("cancelled before command", "command", name)
			e.rollback(ctx, journal, done)
			return journal, resource.NewCancelled(cmd.Name(), err)
		}

		start := time.Now()
		if err := cmd.Execute(ctx); err != nil {
			e.log.Info("command failed, rolling back", "command", name, "error", err.Error(), "completed", len(done))
			e.rollback(ctx, journal, done)
			return journal, err
		}
		e.log.V(1).Info("command completed", "command", name, "duration", time.Since(start).Round(time.Millisecond))
		done = append(done, cmd)
		journal.complete(cmd.Name())
	}
	return journal, nil
}

func (e *Executor) rollback(ctx context.Context, journal *Journal, done []Command) {
	detached := context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		cmd := done[i]
		err := cmd.Rollback(detached)
		metrics.RecordRollback(cmd.Name(), err)
		journal.compensate(Entry{Command: cmd.Name(), Err: err})
		if err != nil {
			e.log.Error(err, "rollback failed", "command", cmd.Name())
			continue
		}
		e.log.Info("rolled back", "command", cmd.Name())
	}
}
