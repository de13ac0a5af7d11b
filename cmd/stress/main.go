package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/liveprop/dispatch"
	"github.com/delaneyj/liveprop/property"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/petermattis/goid"
	"github.com/urfave/cli/v3"
)

const (
	repeatsKey = "repeats"
	scaleKey   = "scale"
)

type stressConfig struct {
	name      string // friendly name for the scenario, should be unique
	workers   int    // goroutines posting concurrently
	posts     int    // posts per worker
	observers int    // observers on the property
}

var stressConfigs = []stressConfig{
	{name: "single writer", workers: 1, posts: 100_000, observers: 1},
	{name: "fan in", workers: 16, posts: 20_000, observers: 4},
	{name: "wide fan out", workers: 4, posts: 5_000, observers: 256},
	{name: "many writers", workers: 256, posts: 1_000, observers: 2},
}

func main() {
	cmd := &cli.Command{
		Name:  "stress",
		Usage: "Post from many goroutines and verify delivery on the main context",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    repeatsKey,
				Usage:   "Runs per scenario, the fastest is reported",
				Value:   3,
				Sources: cli.EnvVars("LIVEPROP_STRESS_REPEATS"),
			},
			&cli.FloatFlag{
				Name:    scaleKey,
				Usage:   "Multiplier applied to posts per worker",
				Value:   1,
				Sources: cli.EnvVars("LIVEPROP_STRESS_SCALE"),
			},
		},
		Action: stress,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func stress(ctx context.Context, cmd *cli.Command) error {
	log.Print("Starting liveprop stress run, please wait...")
	defer log.Print("Finished liveprop stress run")

	repeats := int(cmd.Int(repeatsKey))
	if repeats <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", repeatsKey, repeats)
	}
	scale := cmd.Float(scaleKey)
	if scale <= 0 {
		return fmt.Errorf("--%s must be positive, got %v", scaleKey, scale)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"scenario", "workers", "posts", "observers",
		"notifications", "time", "postRate", "goroutines", "fifo",
	})

	var failures []error
	for _, cfg := range stressConfigs {
		cfg.posts = max(int(float64(cfg.posts)*scale), 1)

		best := &stressResult{duration: time.Hour}
		for i := 0; i < repeats; i++ {
			log.Printf("Running '%s', iteration %d/%d %d%%", cfg.name, i+1, repeats, (i+1)*100/repeats)
			res, err := runStress(ctx, cfg)
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", cfg.name, err))
				if res != nil {
					best = res
				}
				break
			}
			if res.duration < best.duration {
				best = res
			}
		}

		total := int64(cfg.workers * cfg.posts)
		postRate := float64(total) / best.duration.Seconds()
		elapsed := best.duration.Round(time.Microsecond).String()

		table.Append([]string{
			cfg.name,                           // scenario
			fmt.Sprint(cfg.workers),            // workers
			humanize.Comma(total),              // posts
			fmt.Sprint(cfg.observers),          // observers
			humanize.Comma(best.notifications), // notifications
			elapsed,                            // time
			humanize.Comma(int64(postRate)),    // postRate
			fmt.Sprint(best.goroutines),        // goroutines
			fmt.Sprint(best.fifo),              // fifo
		})
	}
	table.Render()

	return errors.Join(failures...)
}

type event struct {
	worker int
	seq    int
}

type stressResult struct {
	duration      time.Duration
	notifications int64
	goroutines    int
	fifo          bool
}

func runStress(ctx context.Context, cfg stressConfig) (*stressResult, error) {
	loop := dispatch.NewLoop()
	defer loop.Close()
	p := property.NewLive(event{worker: -1, seq: -1}, property.WithDispatcher(loop))

	// Everything below is only touched by observers, on the loop goroutine.
	goroutines := mapset.NewSet[int64]()
	lastSeq := make([]int, cfg.workers)
	received := make([]*xxhash.Digest, cfg.workers)
	for w := range received {
		lastSeq[w] = -1
		received[w] = xxhash.New()
	}
	fifo := true
	var notifications int64

	check := p.Observe(func(e event) {
		goroutines.Add(goid.Get())
		if e.seq != lastSeq[e.worker]+1 {
			fifo = false
		}
		lastSeq[e.worker] = e.seq
		writeSeq(received[e.worker], e.seq)
		notifications++
	})
	defer check.Cancel()
	for i := 1; i < cfg.observers; i++ {
		conn := p.Observe(func(event) {
			goroutines.Add(goid.Get())
			notifications++
		})
		defer conn.Cancel()
	}

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx) }()

	start := time.Now()
	expected := make([]uint64, cfg.workers)
	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := xxhash.New()
			for seq := 0; seq < cfg.posts; seq++ {
				p.PostValue(event{worker: w, seq: seq})
				writeSeq(d, seq)
			}
			expected[w] = d.Sum64()
		}()
	}
	wg.Wait()
	loop.TrySubmit(func() { loop.Close() })
	if err := <-runDone; err != nil {
		return nil, fmt.Errorf("running loop: %w", err)
	}

	res := &stressResult{
		duration:      time.Since(start),
		notifications: notifications,
		goroutines:    goroutines.Cardinality(),
		fifo:          fifo,
	}

	want := int64(cfg.workers * cfg.posts * cfg.observers)
	switch {
	case res.notifications != want:
		return res, fmt.Errorf("got %d notifications, want %d", res.notifications, want)
	case res.goroutines != 1:
		return res, fmt.Errorf("observers ran on %d goroutines, want 1", res.goroutines)
	case !res.fifo:
		return res, errors.New("posts from one worker were applied out of order")
	}
	for w := range expected {
		if got := received[w].Sum64(); got != expected[w] {
			return res, fmt.Errorf("worker %d: delivered digest %x, want %x", w, got, expected[w])
		}
	}
	return res, nil
}

func writeSeq(d *xxhash.Digest, seq int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seq))
	d.Write(buf[:])
}
