package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/app"
	"github.com/wippyai/shard-runtime/clock"
	"github.com/wippyai/shard-runtime/distributed"
	"github.com/wippyai/shard-runtime/future"
	"github.com/wippyai/shard-runtime/guest"
	"github.com/wippyai/shard-runtime/logger"
	"github.com/wippyai/shard-runtime/metrics"
	"github.com/wippyai/shard-runtime/shard"
	"github.com/wippyai/shard-runtime/timer"
)

func main() {
	var (
		shards      = flag.Int("shards", 0, "Shard count (0 = one per CPU)")
		metricsPort = flag.Int("metrics", 0, "Expose Prometheus metrics on this port (0 = off)")
		duration    = flag.Duration("for", 3*time.Second, "How long to run the demo workload")
		wasmFile    = flag.String("wasm", "", "Wasm module whose exports run as cross-shard closures")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		z, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer z.Sync()
		wireLoggers(z)
	}

	if *interactive {
		if err := runInteractive(*shards); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*shards, *metricsPort, *duration, *wasmFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func wireLoggers(z *zap.Logger) {
	logger.SetBase(z)
	app.SetLogger(z.Named("app"))
	shard.SetLogger(z.Named("shard"))
	timer.SetLogger(z.Named("timer"))
	future.SetLogger(z.Named("future"))
	distributed.SetLogger(z.Named("distributed"))
}

// pinger is the demo per-shard service: each instance counts the
// pings that reached its shard.
type pinger struct {
	count int
}

func (p *pinger) Ping(ctx context.Context) (int, error) {
	p.count++
	return p.count, nil
}

func (p *pinger) Stop(ctx context.Context) error {
	return nil
}

func run(shards, metricsPort int, duration time.Duration, wasmFile string) error {
	a := app.New(app.Options{
		Name:        "shardtop",
		Description: "shard runtime demo workload",
		SMP:         shards,
	})

	return a.RunVoid(context.Background(), func(ctx context.Context) error {
		self, _ := shard.FromContext(ctx)
		rt := self.Runtime()

		if metricsPort != 0 {
			if err := metrics.Register(rt); err != nil {
				return err
			}
			go func() {
				if err := metrics.StartServer(metricsPort); err != nil {
					fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
				}
			}()
		}

		svc, err := distributed.Start(ctx, rt, func(ctx context.Context) (*pinger, error) {
			return &pinger{}, nil
		})
		if err != nil {
			return err
		}
		defer svc.Stop(context.Background())

		if wasmFile != "" {
			if err := runGuest(ctx, rt, wasmFile); err != nil {
				return err
			}
		}

		fmt.Printf("shardtop: %d shards, running for %v\n", rt.Count(), duration)

		svcTimer, err := timer.ForShard(ctx, clock.Steady)
		if err != nil {
			return err
		}

		deadline := time.Now().Add(duration)
		for time.Now().Before(deadline) {
			if _, err := distributed.MapAll(ctx, svc, func(ctx context.Context, p *pinger) (int, error) {
				return p.Ping(ctx)
			}).Await(ctx); err != nil {
				return err
			}
			if err := timer.Sleep(ctx, svcTimer, 10*time.Millisecond); err != nil {
				return err
			}
		}

		counts, err := distributed.MapAll(ctx, svc, func(ctx context.Context, p *pinger) (int, error) {
			return p.count, nil
		}).Await(ctx)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Printf("%-6s %10s %10s %10s %8s\n", "shard", "executed", "submits", "pings", "queue")
		for i := 0; i < rt.Count(); i++ {
			s, _ := rt.Shard(i)
			st := s.Stats()
			fmt.Printf("%-6d %10d %10d %10d %8d\n",
				i, st.TasksExecuted, st.CrossSubmits, counts[i], st.QueueDepth)
		}
		return nil
	})
}

func runGuest(ctx context.Context, rt *shard.Runtime, wasmFile string) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	mod, err := guest.Load(ctx, data)
	if err != nil {
		return err
	}
	defer mod.Close(context.Background())

	fmt.Printf("guest exports: %v\n", mod.Exports())
	for _, name := range mod.Exports() {
		for i := 0; i < rt.Count(); i++ {
			c, err := mod.Closure(name)
			if err != nil {
				return err
			}
			v, err := rt.SubmitTo(i, c).Await(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("  %s on shard %d -> %v\n", name, i, v)
		}
	}
	return nil
}
