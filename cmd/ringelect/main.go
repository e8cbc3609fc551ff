package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/panjf2000/ants/v2"

	"github.com/danl5/ringelect"
	"github.com/danl5/ringelect/pkg/config"
	"github.com/danl5/ringelect/pkg/log"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/monitoring"
)

type CLI struct {
	Processes     int    `short:"n" help:"Number of processes in the ring."`
	ScalingFactor int    `short:"s" help:"Derive uids as ((rank+1)*factor) mod N. Must exceed N and be coprime to it."`
	Algorithm     string `short:"a" enum:",doubling,unidirectional" default:"" help:"Election protocol (doubling or unidirectional)."`
	Passthrough   bool   `short:"p" help:"Single initiator with randomly drawn relays."`
	Verbose       bool   `short:"v" help:"Print the counts of every participant."`
	Config        string `short:"c" type:"path" help:"YAML or JSON configuration file."`
	Seed          int64  `help:"Seed for uid and relay draws."`
	Transport     string `enum:",memory,rpc" default:"" help:"Ring transport (memory or rpc)."`
	BasePort      int    `help:"First port of the local rpc endpoints."`
	Metrics       string `help:"Serve prometheus metrics on this address."`
	Trials        int    `default:"1" help:"Number of elections to run."`
	Workers       int    `default:"4" help:"Elections running at the same time."`
	LogLevel      string `default:"warn" help:"Log level (debug, info, warn, error)."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("ringelect"),
		kong.Description("Leader election on a simulated ring of processes."))

	logger := log.NewLogger(log.ParseLevel(cli.LogLevel))
	cfg, err := cli.config()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ringelect:", err)
		os.Exit(1)
	}

	if cfg.MetricsAddress != "" {
		srv := monitoring.ServeMetrics(cfg.MetricsAddress, logger)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, cli.Trials, cli.Workers, logger); err != nil {
		fmt.Fprintln(os.Stderr, "ringelect:", err)
		stop()
		os.Exit(1)
	}
}

// config layers the defaults, the config file and the flags, in that order.
func (c *CLI) config() (*config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		if err := config.Load(c.Config, cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", c.Config, err)
		}
	}

	if c.Processes != 0 {
		cfg.ProcessCount = c.Processes
	}
	if c.ScalingFactor != 0 {
		cfg.ScalingFactor = c.ScalingFactor
	}
	if c.Algorithm != "" {
		cfg.Algorithm = model.Algorithm(c.Algorithm)
	}
	if c.Seed != 0 {
		cfg.Seed = c.Seed
	}
	if c.Transport != "" {
		cfg.Transport = c.Transport
	}
	if c.BasePort != 0 {
		cfg.BasePort = c.BasePort
	}
	if c.Metrics != "" {
		cfg.MetricsAddress = c.Metrics
	}
	cfg.Passthrough = cfg.Passthrough || c.Passthrough
	cfg.Verbose = cfg.Verbose || c.Verbose

	if c.Trials < 1 {
		return nil, fmt.Errorf("trials must be positive, got %d", c.Trials)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type trial struct {
	result *model.Result
	err    error
}

// run executes the trials on a worker pool and prints them in order. Trial
// i draws with seed+i.
func run(ctx context.Context, cfg *config.Config, trials, workers int, logger *slog.Logger) error {
	if cfg.Transport == config.TransportRPC || workers < 1 {
		// rpc trials would compete for the same ports
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return err
	}
	defer pool.Release()

	results := make([]trial, trials)
	var wg sync.WaitGroup
	for i := 0; i < trials; i++ {
		i := i
		trialCfg := *cfg
		trialCfg.Seed = cfg.Seed + int64(i)

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i].result, results[i].err = elect(ctx, &trialCfg, logger)
		})
		if err != nil {
			wg.Done()
			results[i].err = err
		}
	}
	wg.Wait()

	for i, t := range results {
		if t.err != nil {
			return fmt.Errorf("trial %d: %w", i, t.err)
		}
		report(os.Stdout, t.result, cfg.Verbose)
	}
	return nil
}

func elect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*model.Result, error) {
	e, err := ringelect.NewElect(cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.Run(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("trial finished", "election", result.ID, "seed", cfg.Seed, "took", time.Since(start).String())
	return result, nil
}

func report(w io.Writer, result *model.Result, verbose bool) {
	fmt.Fprintf(w, "Leader: rank=%d, id=%d, trcvd=%d, tsent=%d\n",
		result.LeaderRank, result.LeaderUID, result.Totals.Received, result.Totals.Sent)
	if !verbose {
		return
	}
	for _, o := range result.Outcomes {
		if !o.Reported {
			continue
		}
		leader := 0
		if o.IsLeader() {
			leader = 1
		}
		fmt.Fprintf(w, "rank=%d, id=%d, leader=%d, mrcvd=%d, msent=%d\n",
			o.Rank, o.UID, leader, o.Tally.Received, o.Tally.Sent)
	}
}
