package app

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/errors"
	"github.com/wippyai/shard-runtime/shard"
)

// Options configures an App before it runs.
type Options struct {
	// Name identifies the app in logs. Defaults to "App".
	Name string

	// Description is free-form help text.
	Description string

	// SMP is the shard count. Zero or less means one shard per CPU.
	SMP int
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "App"
	}
	if o.SMP <= 0 {
		o.SMP = runtime.NumCPU()
	}
	return o
}

// App boots a shard runtime, runs a main function on shard 0, and
// shuts the runtime down when it returns. One app runs per process at
// a time.
type App struct {
	opts Options
}

// New creates an app with the given options, applying defaults for
// unset fields.
func New(opts Options) *App {
	return &App{opts: opts.withDefaults()}
}

// Options returns the app's effective options.
func (a *App) Options() Options {
	return a.opts
}

// stopGrace bounds how long shutdown waits for queued tasks to drain.
const stopGrace = 30 * time.Second

var running atomic.Bool

// RunInt starts the runtime, runs fn as a task on shard 0, and returns
// its exit status after shutting down. Starting a second app while one
// is running is a reported error.
func (a *App) RunInt(ctx context.Context, fn func(ctx context.Context) (int, error)) (int, error) {
	if !running.CompareAndSwap(false, true) {
		return 1, errors.AlreadyRunning()
	}
	defer running.Store(false)

	rt, err := shard.NewRuntime(a.opts.SMP)
	if err != nil {
		return 1, err
	}
	if err := rt.Start(ctx); err != nil {
		return 1, err
	}

	Logger().Info("app started",
		zap.String("name", a.opts.Name),
		zap.Int("shards", rt.Count()))

	code, runErr := shard.Submit(rt, 0, fn).Await(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	stopErr := rt.Stop(stopCtx)

	Logger().Info("app finished",
		zap.String("name", a.opts.Name),
		zap.Int("code", code),
		zap.Error(runErr))

	if runErr != nil {
		if code == 0 {
			code = 1
		}
		return code, runErr
	}
	return code, stopErr
}

// RunVoid is RunInt for main functions without an exit status.
func (a *App) RunVoid(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := a.RunInt(ctx, func(ctx context.Context) (int, error) {
		return 0, fn(ctx)
	})
	return err
}
