package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name used in logs and errors.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner runs multiple Runnables sharing one context.
// When any of them returns, the rest are cancelled.
type Runner struct {
	Context context.Context

	cancel   context.CancelFunc
	count    int
	resultCh chan runResult
	exitCh   chan struct{}
}

type runResult struct {
	name string
	err  error
}

// NewRunner creates a runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner derived from ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context:  ctx,
		cancel:   cancel,
		resultCh: make(chan runResult),
		exitCh:   make(chan struct{}),
	}
}

// HandleSignals cancels the runner on Ctrl-C or SIGTERM. A second signal
// makes Wait return without waiting for the runners.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Stop cancels all runners.
func (r *Runner) Stop() {
	r.cancel()
}

// Go starts runners in the background.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := fmt.Sprintf("#%d", r.count)
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.count++
		glog.V(4).Infof("start %s", name)
		go func(runner Runnable, name string) {
			err := runner.Run(r.Context)
			glog.V(4).Infof("%s stopped: %v", name, err)
			r.resultCh <- runResult{name: name, err: err}
		}(runner, name)
	}
	return r
}

// Wait waits for all runners and aggregates their errors. Cancellation
// is not reported as an error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for ; r.count > 0; r.count-- {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case res := <-r.resultCh:
			r.cancel()
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				errs.Add(fmt.Errorf("%s: %w", res.name, res.err))
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn which doesn't accept a context.
// onCancel is called only when ctx is done first, and is expected to
// make fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser runs fn and closes closer when fn returns or ctx
// is done, whichever happens first.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	closed := false
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
