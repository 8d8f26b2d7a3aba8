// Package cdsstat is the optional statistics sink for splitlist and
// skiplist. It mirrors list.Counter's enabled/disabled shape: a
// Recorder interface with a Prometheus-backed implementation and a
// no-op default, so a caller that never asks for statistics pays
// nothing for them.
package cdsstat

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the event sink every splitlist.Set and skiplist.SkipList
// reports into. Every method is safe for concurrent use.
type Recorder interface {
	IncInsert()
	IncErase()
	IncFind()
	IncCASRetry()
	IncHelpedUnlink()
	IncBucketSplit()
	IncGuardExhaustion()
	IncInitContention()
}

// NoneRecorder discards every event; the default when a constructor's
// options omit a recorder.
type NoneRecorder struct{}

func (NoneRecorder) IncInsert()          {}
func (NoneRecorder) IncErase()           {}
func (NoneRecorder) IncFind()            {}
func (NoneRecorder) IncCASRetry()        {}
func (NoneRecorder) IncHelpedUnlink()    {}
func (NoneRecorder) IncBucketSplit()     {}
func (NoneRecorder) IncGuardExhaustion() {}
func (NoneRecorder) IncInitContention()  {}

// Stats is the Prometheus-backed recorder: one prometheus.Counter per
// event, MustRegister'd at construction against whatever registerer
// the caller supplies.
type Stats struct {
	inserts          prometheus.Counter
	erases           prometheus.Counter
	finds            prometheus.Counter
	casRetries       prometheus.Counter
	helpedUnlinks    prometheus.Counter
	bucketSplits     prometheus.Counter
	guardExhaustions prometheus.Counter
	initContention   prometheus.Counter
}

// New registers a fresh set of counters against reg and returns a
// Stats reporting into them. Pass prometheus.DefaultRegisterer for
// process-wide metrics, or a prometheus.NewRegistry() for an isolated
// instance (tests, multiple structures side by side).
func New(reg prometheus.Registerer, namePrefix string) *Stats {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name: namePrefix + "_" + name,
			Help: help,
		})
		reg.MustRegister(c)
		return c
	}
	return &Stats{
		inserts:          counter("inserts_total", "Number of successful inserts."),
		erases:           counter("erases_total", "Number of successful erases."),
		finds:            counter("finds_total", "Number of successful finds."),
		casRetries:       counter("cas_retries_total", "Number of CAS retries during traversal."),
		helpedUnlinks:    counter("helped_unlinks_total", "Number of nodes physically unlinked while helping."),
		bucketSplits:     counter("bucket_splits_total", "Number of bucket-table capacity doublings."),
		guardExhaustions: counter("guard_exhaustions_total", "Number of operations that failed to reserve an SMR guard."),
		initContention:   counter("init_contention_total", "Number of bucket-init busy-wait retries."),
	}
}

// NewRegistry builds an isolated prometheus.Registry plus a Stats
// registered against it, for tests that want counters without
// touching the global default registry.
func NewRegistry(namePrefix string) (*prometheus.Registry, *Stats) {
	reg := prometheus.NewRegistry()
	return reg, New(reg, namePrefix)
}

func (s *Stats) IncInsert()          { s.inserts.Inc() }
func (s *Stats) IncErase()           { s.erases.Inc() }
func (s *Stats) IncFind()            { s.finds.Inc() }
func (s *Stats) IncCASRetry()        { s.casRetries.Inc() }
func (s *Stats) IncHelpedUnlink()    { s.helpedUnlinks.Inc() }
func (s *Stats) IncBucketSplit()     { s.bucketSplits.Inc() }
func (s *Stats) IncGuardExhaustion() { s.guardExhaustions.Inc() }
func (s *Stats) IncInitContention()  { s.initContention.Inc() }
