package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/hashfn"
	"github.com/gaarutyunov/cds-go/list"
	"github.com/gaarutyunov/cds-go/skiplist"
	"github.com/gaarutyunov/cds-go/smr/epoch"
	"github.com/gaarutyunov/cds-go/smr/hp"
	"github.com/gaarutyunov/cds-go/splitlist"
)

// structure is the minimal surface common to list.List, splitlist.Set
// and skiplist.SkipList the workload driver needs, so the same
// goroutine fan-out loop in runWorkload exercises whichever component
// cfg.Structure selected.
type structure interface {
	Insert(key uint64, value uint64) (bool, error)
	Contains(key uint64) (bool, error)
	Erase(key uint64, f func(value uint64)) (bool, error)
	Len() int64
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func encodeUint64(k uint64) []byte {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(k >> (8 * i))
	}
	return buf[:]
}

// buildStructure wires a structure matching cfg.Structure/Variant/
// ReclamationScheme, covering list (Michael and Lazy), splitlist
// (over both, both SMR backends) and skiplist (always lock-free).
func buildStructure(cfg Config) (structure, error) {
	switch cfg.Structure {
	case "list":
		return buildList(cfg)
	case "splitlist":
		return buildSplitList(cfg)
	case "skiplist":
		return buildSkipList(cfg)
	default:
		return nil, fmt.Errorf("unknown structure %q", cfg.Structure)
	}
}

func buildList(cfg Config) (structure, error) {
	opts := list.Options[uint64]{Compare: cmpUint64}
	switch cfg.Variant {
	case "lazy":
		switch cfg.ReclamationScheme {
		case "epoch":
			dom := epoch.NewDomain[list.LazyNode[uint64, uint64]]()
			return list.NewLazyList[uint64, uint64](dom, opts), nil
		default:
			dom := hp.NewDomain[list.LazyNode[uint64, uint64]](0, 0)
			return list.NewLazyList[uint64, uint64](dom, opts), nil
		}
	default:
		switch cfg.ReclamationScheme {
		case "epoch":
			dom := epoch.NewDomain[list.MichaelNode[uint64, uint64]]()
			return list.NewMichaelList[uint64, uint64](dom, opts), nil
		default:
			dom := hp.NewDomain[list.MichaelNode[uint64, uint64]](0, 0)
			return list.NewMichaelList[uint64, uint64](dom, opts), nil
		}
	}
}

func buildSplitList(cfg Config) (structure, error) {
	opts := splitlist.Options[uint64]{
		Compare:         cmpUint64,
		Hash:            hashfn.Default(),
		EncodeKey:       encodeUint64,
		LoadFactor:      cfg.LoadFactor,
		InitialCapacity: cfg.InitialCapacity,
	}
	switch cfg.Variant {
	case "lazy":
		if cfg.ReclamationScheme == "epoch" {
			return splitlist.NewLazySetEpoch[uint64, uint64](opts)
		}
		return splitlist.NewLazySetHP[uint64, uint64](0, 0, opts)
	default:
		if cfg.ReclamationScheme == "epoch" {
			return splitlist.NewMichaelSetEpoch[uint64, uint64](opts)
		}
		return splitlist.NewMichaelSetHP[uint64, uint64](0, 0, opts)
	}
}

func buildSkipList(cfg Config) (structure, error) {
	opts := skiplist.Options[uint64]{Compare: cmpUint64}
	switch cfg.ReclamationScheme {
	case "epoch":
		dom := epoch.NewDomain[skiplist.Node[uint64, uint64]]()
		return skiplist.NewSkipList[uint64, uint64](dom, opts)
	default:
		dom := hp.NewDomain[skiplist.Node[uint64, uint64]](0, 0)
		return skiplist.NewSkipList[uint64, uint64](dom, opts)
	}
}

// result summarizes one workload run's outcome for the final log line.
type result struct {
	inserts  int64
	erases   int64
	contains int64
	finalLen int64
}

// runWorkload drives cfg.Threads goroutines, each performing
// cfg.OpsPerThread operations (rotating insert, contains, erase) over a
// shared keyspace of cfg.KeySpace distinct keys.
func runWorkload(s structure, cfg Config) result {
	var inserts, erases, contains int64
	var wg sync.WaitGroup
	for t := 0; t < cfg.Threads; t++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rngState := seed*2654435761 + 1
			for i := 0; i < cfg.OpsPerThread; i++ {
				rngState = rngState*6364136223846793005 + 1442695040888963407
				key := rngState % uint64(cfg.KeySpace)

				switch i % 3 {
				case 0:
					if ok, _ := s.Insert(key, key); ok {
						atomic.AddInt64(&inserts, 1)
					}
				case 1:
					if ok, _ := s.Contains(key); ok {
						atomic.AddInt64(&contains, 1)
					}
				default:
					if ok, _ := s.Erase(key, nil); ok {
						atomic.AddInt64(&erases, 1)
					}
				}
			}
		}(uint64(t + 1))
	}
	wg.Wait()
	return result{inserts: inserts, erases: erases, contains: contains, finalLen: s.Len()}
}
