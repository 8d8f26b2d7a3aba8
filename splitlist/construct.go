package splitlist

import (
	"github.com/gaarutyunov/cds-go/list"
	"github.com/gaarutyunov/cds-go/smr"
	"github.com/gaarutyunov/cds-go/smr/epoch"
	"github.com/gaarutyunov/cds-go/smr/hp"
)

// NewMichaelSet builds a Set backed by a Michael-list shared ordered
// list and an expandable (segmented) bucket table — the default
// lock-free split-set combination.
//
// domain must have been constructed as a domain over this package's
// own internal split-ordered key type, which no caller outside this
// package can name directly; use NewMichaelSetHP or NewMichaelSetEpoch
// instead unless the caller lives in this package (as the tests do).
func NewMichaelSet[K any, V any](domain smr.Domain[list.MichaelNode[splitOrderKey[K], V]], opts Options[K]) (*Set[K, V], error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	shared := list.NewMichaelList[splitOrderKey[K], V](domain, list.Options[splitOrderKey[K]]{
		Compare: compositeCompare(opts.Compare),
	})
	table := NewExpandableTable[V](1024, 512)
	return NewSet[K, V](shared, table, opts)
}

// NewLazySet builds a Set backed by a Lazy-list shared ordered list
// and an expandable bucket table, for deployments that prefer the
// optimistic per-node-locked variant under the split index.
//
// Same domain-naming caveat as NewMichaelSet applies; external callers
// should use NewLazySetHP or NewLazySetEpoch.
func NewLazySet[K any, V any](domain smr.Domain[list.LazyNode[splitOrderKey[K], V]], opts Options[K]) (*Set[K, V], error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	shared := list.NewLazyList[splitOrderKey[K], V](domain, list.Options[splitOrderKey[K]]{
		Compare: compositeCompare(opts.Compare),
	})
	table := NewExpandableTable[V](1024, 512)
	return NewSet[K, V](shared, table, opts)
}

// NewMichaelSetHP builds a Michael-list-backed Set over a fresh
// hazard-pointer domain, without requiring the caller to name this
// package's unexported split-ordered key type — the constructor
// external packages (e.g. cmd/cdsbench) should call.
func NewMichaelSetHP[K any, V any](maxRecords, guardsPerRecord int, opts Options[K]) (*Set[K, V], error) {
	dom := hp.NewDomain[list.MichaelNode[splitOrderKey[K], V]](maxRecords, guardsPerRecord)
	return NewMichaelSet[K, V](dom, opts)
}

// NewMichaelSetEpoch is NewMichaelSetHP's epoch-reclamation counterpart.
func NewMichaelSetEpoch[K any, V any](opts Options[K]) (*Set[K, V], error) {
	dom := epoch.NewDomain[list.MichaelNode[splitOrderKey[K], V]]()
	return NewMichaelSet[K, V](dom, opts)
}

// NewLazySetHP is NewMichaelSetHP's Lazy-list counterpart.
func NewLazySetHP[K any, V any](maxRecords, guardsPerRecord int, opts Options[K]) (*Set[K, V], error) {
	dom := hp.NewDomain[list.LazyNode[splitOrderKey[K], V]](maxRecords, guardsPerRecord)
	return NewLazySet[K, V](dom, opts)
}

// NewLazySetEpoch is NewLazySetHP's epoch-reclamation counterpart.
func NewLazySetEpoch[K any, V any](opts Options[K]) (*Set[K, V], error) {
	dom := epoch.NewDomain[list.LazyNode[splitOrderKey[K], V]]()
	return NewLazySet[K, V](dom, opts)
}
