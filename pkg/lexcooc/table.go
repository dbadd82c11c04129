// Package lexcooc implements the concurrent lexical co-occurrence cache:
// per-word marginal counts and joint (src,tgt) counts, built once during
// index initialization and then read continuously by the scorer.
package lexcooc

import (
	"sync"
	"sync/atomic"
)

// NullID is the distinguished id representing "unaligned" on either side of
// a co-occurrence pair.
const NullID int64 = -1

// Table is a concurrent multiset of lexical co-occurrence statistics.
// Writers only ever increment; there is no decrement or removal, so every
// counter is monotone and readers never observe a value go backwards.
//
// The outer layer is a sync.Map keyed by id, holding a per-id inner
// *sync.Map keyed by partner id, holding an *atomic.Int64 count — a plain
// nested concurrent map of atomic counters, not a transactional structure,
// because increment-only semantics never need compare-and-swap across keys.
type Table struct {
	srcMarginal sync.Map // int64(id) -> *atomic.Int64
	tgtMarginal sync.Map // int64(id) -> *atomic.Int64
	joint       sync.Map // int64(srcID) -> *sync.Map{int64(tgtID) -> *atomic.Int64}

	ids         sync.Map // int64(id) -> struct{}, presence set of every real id the table has seen
	distinctIDs atomic.Int64
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

func loadOrStoreCounter(m *sync.Map, key int64) *atomic.Int64 {
	if v, ok := m.Load(key); ok {
		return v.(*atomic.Int64)
	}
	c := new(atomic.Int64)
	actual, _ := m.LoadOrStore(key, c)
	return actual.(*atomic.Int64)
}

func loadCounter(m *sync.Map, key int64) int64 {
	v, ok := m.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// markID records id (if genuine, i.e. not NullID) in the distinct-id
// presence set, bumping distinctIDs the first time any given id is seen.
func (t *Table) markID(id int64) {
	if id == NullID {
		return
	}
	if _, loaded := t.ids.LoadOrStore(id, struct{}{}); !loaded {
		t.distinctIDs.Add(1)
	}
}

// DistinctIDs returns the number of distinct real (non-NullID) ids the
// table has recorded on either side, for Stats reporting.
func (t *Table) DistinctIDs() int64 {
	return t.distinctIDs.Load()
}

// IncrSrcMarginal adds delta to the source-side marginal count of id.
func (t *Table) IncrSrcMarginal(id int64, delta int64) {
	t.markID(id)
	loadOrStoreCounter(&t.srcMarginal, id).Add(delta)
}

// IncrTgtMarginal adds delta to the target-side marginal count of id.
func (t *Table) IncrTgtMarginal(id int64, delta int64) {
	t.markID(id)
	loadOrStoreCounter(&t.tgtMarginal, id).Add(delta)
}

// AddCooc records one co-occurrence between source id a and target id b,
// incrementing their joint count by one. Either side may be NullID to
// record an unaligned occurrence.
func (t *Table) AddCooc(a, b int64) {
	t.markID(a)
	t.markID(b)
	innerAny, _ := t.joint.LoadOrStore(a, &sync.Map{})
	inner := innerAny.(*sync.Map)
	loadOrStoreCounter(inner, b).Add(1)
}

// Joint returns the recorded joint count for (a, b).
func (t *Table) Joint(a, b int64) int64 {
	innerAny, ok := t.joint.Load(a)
	if !ok {
		return 0
	}
	return loadCounter(innerAny.(*sync.Map), b)
}

// SrcMarginal returns the source-side marginal count for id.
func (t *Table) SrcMarginal(id int64) int64 {
	return loadCounter(&t.srcMarginal, id)
}

// TgtMarginal returns the target-side marginal count for id.
func (t *Table) TgtMarginal(id int64) int64 {
	return loadCounter(&t.tgtMarginal, id)
}
