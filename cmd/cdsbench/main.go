// Command cdsbench is the smoke/benchmark CLI for this module's three
// concurrent set implementations: it loads a TOML workload config,
// builds the selected structure, hammers it from a configurable number
// of goroutines and logs a throughput summary.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/semihalev/zlog/v2"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "cdsbench.toml", "location of the workload config file, generated if not found")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "OPTIONS:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "USAGE:")
	fmt.Fprintln(os.Stderr, "./cdsbench -config=cdsbench.toml")
}

func levelFromString(s string) zlog.Level {
	switch s {
	case "debug":
		return zlog.LevelDebug
	case "warn":
		return zlog.LevelWarn
	case "error":
		return zlog.LevelError
	case "crit":
		return zlog.LevelFatal
	default:
		return zlog.LevelInfo
	}
}

func setupLogger(level string) {
	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(levelFromString(level))
	zlog.SetDefault(logger)
}

func main() {
	flag.Parse()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cdsbench: "+err.Error())
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	zlog.Info("starting cdsbench",
		zlog.String("structure", cfg.Structure),
		zlog.String("variant", cfg.Variant),
		zlog.String("reclamation", cfg.ReclamationScheme),
		zlog.Int("threads", cfg.Threads),
		zlog.Int("ops_per_thread", cfg.OpsPerThread),
		zlog.Int("key_space", cfg.KeySpace))

	s, err := buildStructure(cfg)
	if err != nil {
		zlog.Error("failed to build structure", zlog.String("error", err.Error()))
		os.Exit(1)
	}

	start := time.Now()
	res := runWorkload(s, cfg)
	elapsed := time.Since(start)

	totalOps := int64(cfg.Threads * cfg.OpsPerThread)
	var opsPerSec float64
	if elapsed > 0 {
		opsPerSec = float64(totalOps) / elapsed.Seconds()
	}

	zlog.Info("cdsbench run complete",
		zlog.String("structure", cfg.Structure),
		zlog.Int("total_ops", int(totalOps)),
		zlog.Int("inserts", int(res.inserts)),
		zlog.Int("erases", int(res.erases)),
		zlog.Int("contains", int(res.contains)),
		zlog.Int("final_len", int(res.finalLen)),
		zlog.String("elapsed", elapsed.String()),
		zlog.String("ops_per_sec", fmt.Sprintf("%.0f", opsPerSec)))
}
