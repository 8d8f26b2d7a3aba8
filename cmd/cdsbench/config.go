package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config describes one benchmark/smoke run: which structure to drive,
// its construction options, and the workload shape.
type Config struct {
	// Structure selects which component to exercise: "list",
	// "splitlist", or "skiplist".
	Structure string
	// Variant selects the list/split-list flavor: "michael" or "lazy".
	// Ignored for Structure = "skiplist" (always lock-free).
	Variant string
	// ReclamationScheme selects the SMR backend: "hp" or "epoch".
	ReclamationScheme string
	// LoadFactor is splitlist's load-factor construction option;
	// ignored for the other structures.
	LoadFactor float64
	// InitialCapacity is splitlist's starting bucket count.
	InitialCapacity uint64
	// KeySpace is the number of distinct integer keys the workload
	// draws from.
	KeySpace int
	// Threads is the number of concurrent goroutines driving the
	// workload.
	Threads int
	// OpsPerThread is how many operations each goroutine runs, rotating
	// through insert, contains and erase.
	OpsPerThread int
	// LogLevel is one of zlog's level names ("debug", "info", "warn",
	// "error", "crit").
	LogLevel string
}

var defaultConfig = `# cdsbench workload configuration

# structure to benchmark: "list", "splitlist", or "skiplist"
structure = "splitlist"

# list/split-list flavor: "michael" (lock-free) or "lazy" (per-node locks)
variant = "michael"

# SMR backend: "hp" (hazard pointers) or "epoch"
reclamationscheme = "hp"

# splitlist-only construction options
loadfactor = 1.0
initialcapacity = 16

# workload shape
keyspace = 100000
threads = 8
opsperthread = 20000

# zlog level: debug, info, warn, error, crit
loglevel = "info"
`

// LoadConfig reads path, generating a default config file there first
// if it does not yet exist.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := generateConfig(path); err != nil {
			return cfg, err
		}
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("could not load config: %s", err)
	}
	cfg = cfg.withDefaults()
	return cfg, nil
}

func generateConfig(path string) error {
	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}

func (c Config) withDefaults() Config {
	if c.Structure == "" {
		c.Structure = "splitlist"
	}
	if c.Variant == "" {
		c.Variant = "michael"
	}
	if c.ReclamationScheme == "" {
		c.ReclamationScheme = "hp"
	}
	if c.LoadFactor <= 0 {
		c.LoadFactor = 1.0
	}
	if c.InitialCapacity == 0 {
		c.InitialCapacity = 16
	}
	if c.KeySpace <= 0 {
		c.KeySpace = 100_000
	}
	if c.Threads <= 0 {
		c.Threads = 8
	}
	if c.OpsPerThread <= 0 {
		c.OpsPerThread = 20_000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}
