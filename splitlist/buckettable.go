package splitlist

import (
	"errors"
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/list"
)

// ErrBucketsExhausted is returned when a bucket index falls outside a
// table's maximum addressable capacity, or the dummy-node pool cannot
// satisfy a bucket initialization.
var ErrBucketsExhausted = errors.New("splitlist: bucket table exhausted")

// Table is the bucket-table contract: a map from bucket index to that
// bucket's dummy-node anchor, lazily populated as buckets are first
// touched.
type Table[V any] interface {
	// Load returns the anchor stored at bucket, or nil if that bucket
	// has not been initialized yet.
	Load(bucket uint64) *list.Anchor[V]
	// Store publishes anchor at bucket. Only initBucket calls this,
	// once the bucket's dummy node is reachable in the list; racing
	// initializers of one bucket each store an anchor to that same node.
	Store(bucket uint64, anchor *list.Anchor[V])
	// EnsureCapacity grows the table (if it is expandable) so that
	// bucket is addressable, or reports ErrBucketsExhausted.
	EnsureCapacity(bucket uint64) error
	// Cap reports the largest bucket index + 1 currently addressable.
	Cap() uint64
}

// StaticTable is the flat variant: a single preallocated, fixed-size
// array. EnsureCapacity never grows it.
type StaticTable[V any] struct {
	slots []atomic.Pointer[list.Anchor[V]]
}

func NewStaticTable[V any](capacity uint64) *StaticTable[V] {
	if capacity == 0 {
		capacity = 1
	}
	return &StaticTable[V]{slots: make([]atomic.Pointer[list.Anchor[V]], capacity)}
}

func (t *StaticTable[V]) Load(bucket uint64) *list.Anchor[V] {
	return t.slots[bucket].Load()
}

func (t *StaticTable[V]) Store(bucket uint64, anchor *list.Anchor[V]) {
	t.slots[bucket].Store(anchor)
}

func (t *StaticTable[V]) EnsureCapacity(bucket uint64) error {
	if bucket >= uint64(len(t.slots)) {
		return ErrBucketsExhausted
	}
	return nil
}

func (t *StaticTable[V]) Cap() uint64 { return uint64(len(t.slots)) }

// segment is one fixed-size slice of bucket slots, allocated on first
// touch.
type segment[V any] struct {
	slots []atomic.Pointer[list.Anchor[V]]
}

// ExpandableTable is the segmented variant: a preallocated top-level
// array of segment pointers, each segment allocated lazily. Two
// concurrent EnsureCapacity calls touching the same never-yet-allocated
// segment race to CAS their freshly built segment into the shared
// slot; the loser discards its allocation and uses the winner's.
type ExpandableTable[V any] struct {
	segments    []atomic.Pointer[segment[V]]
	segmentSize uint64
}

// NewExpandableTable builds a table addressing up to maxSegments *
// segmentSize buckets, allocating segments of segmentSize slots as
// buckets within them are first touched.
func NewExpandableTable[V any](maxSegments, segmentSize uint64) *ExpandableTable[V] {
	if segmentSize == 0 {
		segmentSize = 512
	}
	if maxSegments == 0 {
		maxSegments = 1024
	}
	return &ExpandableTable[V]{
		segments:    make([]atomic.Pointer[segment[V]], maxSegments),
		segmentSize: segmentSize,
	}
}

func (t *ExpandableTable[V]) index(bucket uint64) (segIdx, slotIdx uint64) {
	return bucket / t.segmentSize, bucket % t.segmentSize
}

func (t *ExpandableTable[V]) Load(bucket uint64) *list.Anchor[V] {
	segIdx, slotIdx := t.index(bucket)
	seg := t.segments[segIdx].Load()
	if seg == nil {
		return nil
	}
	return seg.slots[slotIdx].Load()
}

func (t *ExpandableTable[V]) Store(bucket uint64, anchor *list.Anchor[V]) {
	segIdx, slotIdx := t.index(bucket)
	seg := t.segments[segIdx].Load()
	seg.slots[slotIdx].Store(anchor)
}

func (t *ExpandableTable[V]) EnsureCapacity(bucket uint64) error {
	segIdx, _ := t.index(bucket)
	if segIdx >= uint64(len(t.segments)) {
		return ErrBucketsExhausted
	}
	if t.segments[segIdx].Load() != nil {
		return nil
	}
	fresh := &segment[V]{slots: make([]atomic.Pointer[list.Anchor[V]], t.segmentSize)}
	t.segments[segIdx].CompareAndSwap(nil, fresh)
	return nil
}

func (t *ExpandableTable[V]) Cap() uint64 {
	return uint64(len(t.segments)) * t.segmentSize
}
