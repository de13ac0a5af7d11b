package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/delaneyj/liveprop/dispatch"
	"github.com/delaneyj/liveprop/property"
	"github.com/delaneyj/liveprop/signal"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	iterationsKey = "iterations"
	cpuProfileKey = "cpuprofile"
)

var (
	observerCounts = []int{1, 10, 100, 1_000}
	workerCounts   = []int{1, 4, 16}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure property notification and post latency",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    iterationsKey,
				Usage:   "Samples per scenario",
				Value:   1_000,
				Sources: cli.EnvVars("LIVEPROP_BENCH_ITERATIONS"),
			},
			&cli.StringFlag{
				Name:    cpuProfileKey,
				Usage:   "Write a CPU profile to this file",
				Sources: cli.EnvVars("LIVEPROP_BENCH_CPUPROFILE"),
			},
		},
		Action: benchmark,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func benchmark(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Int(iterationsKey))
	if iters <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", iterationsKey, iters)
	}

	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("starting cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkSet(iters, false)

	benchmarkSet(iters, true)
	return benchmarkPost(ctx, iters)
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendCalc(tbl table.Writer, name string, calc *tachymeter.Metrics) {
	tbl.AppendRows([]table.Row{
		{
			name,
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
		},
	})
}

func benchmarkSet(iters int, shouldRender bool) {
	tbl := newTable("SetValue")

	for _, n := range observerCounts {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})

		p := property.New(0)
		conns := make([]*signal.Connection, n)
		for i := range conns {
			conns[i] = p.Observe(func(int) {})
		}

		for i := 0; i < iters; i++ {
			start := time.Now()
			p.SetValue(p.Value() + 1)
			tach.AddTime(time.Since(start))
		}

		for _, conn := range conns {
			conn.Cancel()
		}
		appendCalc(tbl, fmt.Sprintf("set: %d observers", n), tach.Calc())
	}

	if shouldRender {
		tbl.Render()
	}
}

type sample struct {
	worker int
	seq    int
	sent   time.Time
}

func benchmarkPost(ctx context.Context, iters int) error {
	tbl := newTable("PostValue")

	for _, workers := range workerCounts {
		perWorker := max(iters/workers, 1)
		tach := tachymeter.New(&tachymeter.Config{Size: perWorker * workers})

		loop := dispatch.NewLoop()
		p := property.NewLive(sample{}, property.WithDispatcher(loop))
		conn := p.Observe(func(s sample) {
			tach.AddTime(time.Since(s.sent))
		})

		runDone := make(chan error, 1)
		go func() { runDone <- loop.Run(ctx) }()

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					p.PostValueForced(sample{worker: w, seq: i, sent: time.Now()})
				}
			}()
		}
		wg.Wait()
		loop.TrySubmit(func() { loop.Close() })

		if err := <-runDone; err != nil {
			return fmt.Errorf("running loop for %d workers: %w", workers, err)
		}
		conn.Cancel()

		appendCalc(tbl, fmt.Sprintf("post: %d goroutines", workers), tach.Calc())
	}

	tbl.Render()
	return nil
}
