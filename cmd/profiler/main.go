// Command profiler runs a hardware profiling pass for one node of a
// distributed inference group, prints the resulting DeviceProfile as JSON,
// and can exchange profiles with other nodes over NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/infermesh/profiler/pkg/compute"
	"github.com/infermesh/profiler/pkg/exchange"
	"github.com/infermesh/profiler/pkg/logger"
	"github.com/infermesh/profiler/pkg/profiler"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("profiler failed: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to profiler config file (JSON)")
	rank := flag.Uint("rank", 0, "Rank of this node in the distributed group")
	testFile := flag.String("test-file", "", "Disk bandwidth fixture path (overrides config)")
	threads := flag.Int("threads", 0, "Backend thread count (overrides config; 0 = all cores)")
	natsURL := flag.String("nats-url", nats.DefaultURL, "NATS server URL for profile exchange")
	publish := flag.Bool("publish", false, "Publish this node's profile after the pass")
	collect := flag.Int("collect", 0, "Collect this many profiles as coordinator (0 = off)")
	collectTimeout := flag.Duration("collect-timeout", 30*time.Second, "Deadline for profile collection")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Debug = logCfg.Debug || *debug
	logCfg.Output = "stderr" // keep stdout clean for the JSON result

	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}

	logr := logger.NewGlobal()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if *testFile != "" {
		cfg.TestFilePath = *testFile
	}

	if *threads > 0 {
		cfg.Threads = *threads
	}

	ctx := context.Background()

	prober := profiler.New(cfg, compute.NewLocal(), logr)
	profile := prober.Profile(ctx, uint32(*rank))

	if err := emitJSON(profile); err != nil {
		return err
	}

	if !*publish && *collect <= 0 {
		return nil
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	ex := exchange.New(nc, logr)

	if *publish {
		if err := ex.Publish(profile); err != nil {
			return err
		}
	}

	if *collect > 0 {
		collectCtx, cancel := context.WithTimeout(ctx, *collectTimeout)
		defer cancel()

		profiles, err := ex.Collect(collectCtx, *collect)
		if errors.Is(err, exchange.ErrIncomplete) {
			logr.Warn().Err(err).Msg("collection incomplete; emitting partial set")
		} else if err != nil {
			return err
		}

		if err := emitJSON(profiles); err != nil {
			return err
		}
	}

	return nil
}

func loadConfig(path string) (profiler.Config, error) {
	var cfg profiler.Config

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return nil
}
