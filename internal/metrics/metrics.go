// Package metrics wires the item layer's named counters to
// github.com/rcrowley/go-metrics, promoted here from the teacher repo's
// load-test-only dependency (integration_test/load_test.go) to the
// production metrics sink spec.md §6 requires.
package metrics

import "github.com/rcrowley/go-metrics"

// Sink is the counter bag the item layer emits increments/decrements on.
// Field names match spec.md §6 exactly.
type Sink struct {
	Registry metrics.Registry

	ItemReq        metrics.Counter
	ItemReqEx      metrics.Counter
	ItemLink       metrics.Counter
	ItemUnlink     metrics.Counter
	ItemRemove     metrics.Counter
	ItemCurr       metrics.Counter
	ItemKeyvalByte metrics.Counter
	ItemValByte    metrics.Counter
}

// New registers every item-layer counter in a fresh registry.
func New() *Sink {
	return NewWithRegistry(metrics.NewRegistry())
}

func NewWithRegistry(r metrics.Registry) *Sink {
	get := func(name string) metrics.Counter {
		return metrics.GetOrRegisterCounter(name, r)
	}
	return &Sink{
		Registry:       r,
		ItemReq:        get("item_req"),
		ItemReqEx:      get("item_req_ex"),
		ItemLink:       get("item_link"),
		ItemUnlink:     get("item_unlink"),
		ItemRemove:     get("item_remove"),
		ItemCurr:       get("item_curr"),
		ItemKeyvalByte: get("item_keyval_byte"),
		ItemValByte:    get("item_val_byte"),
	}
}

func (s *Sink) incr(c metrics.Counter, n int64) {
	if s == nil {
		return
	}
	c.Inc(n)
}

func (s *Sink) decr(c metrics.Counter, n int64) {
	if s == nil {
		return
	}
	c.Dec(n)
}

func (s *Sink) IncrReq()               { s.incr(s.ItemReq, 1) }
func (s *Sink) IncrReqEx()             { s.incr(s.ItemReqEx, 1) }
func (s *Sink) IncrLink()              { s.incr(s.ItemLink, 1) }
func (s *Sink) IncrUnlink()            { s.incr(s.ItemUnlink, 1) }
func (s *Sink) IncrRemove()            { s.incr(s.ItemRemove, 1) }
func (s *Sink) IncrCurr()              { s.incr(s.ItemCurr, 1) }
func (s *Sink) DecrCurr()              { s.decr(s.ItemCurr, 1) }
func (s *Sink) IncrKeyvalByte(n int64) { s.incr(s.ItemKeyvalByte, n) }
func (s *Sink) DecrKeyvalByte(n int64) { s.decr(s.ItemKeyvalByte, n) }
func (s *Sink) IncrValByte(n int64)    { s.incr(s.ItemValByte, n) }
func (s *Sink) DecrValByte(n int64)    { s.decr(s.ItemValByte, n) }
