package knowledge

import (
	"context"
	"sync"
	"sync/atomic"
)

// Holder publishes the current knowledge base. Readers call Current and keep
// using the snapshot they got; Reload and Swap replace the whole structure.
type Holder struct {
	current atomic.Pointer[KnowledgeBase]
	loader  *Loader

	mu         sync.Mutex // serializes reloads
	lastReport LoadReport
	onSwap     []func(*KnowledgeBase, LoadReport)
}

// NewHolder loads the initial snapshot with loader.
func NewHolder(ctx context.Context, loader *Loader) *Holder {
	h := &Holder{loader: loader}
	kb, report := loader.Load(ctx)
	h.current.Store(kb)
	h.lastReport = report
	return h
}

// NewStaticHolder wraps a fixed knowledge base. Reload keeps it unchanged.
func NewStaticHolder(kb *KnowledgeBase) *Holder {
	h := &Holder{}
	h.current.Store(kb)
	h.lastReport = LoadReport{Source: kb.Source()}
	return h
}

// Current returns the published snapshot.
func (h *Holder) Current() *KnowledgeBase {
	return h.current.Load()
}

// Report returns the report of the most recent load.
func (h *Holder) Report() LoadReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastReport
}

// OnSwap registers fn to be called after each published snapshot change.
func (h *Holder) OnSwap(fn func(*KnowledgeBase, LoadReport)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSwap = append(h.onSwap, fn)
}

// Reload probes the sources again and publishes the result.
func (h *Holder) Reload(ctx context.Context) LoadReport {
	if h.loader == nil {
		return h.Report()
	}
	kb, report := h.loader.Load(ctx)
	h.publish(kb, report)
	return report
}

// Swap publishes kb directly.
func (h *Holder) Swap(kb *KnowledgeBase) {
	h.publish(kb, LoadReport{Source: kb.Source()})
}

func (h *Holder) publish(kb *KnowledgeBase, report LoadReport) {
	h.mu.Lock()
	h.current.Store(kb)
	h.lastReport = report
	hooks := append([]func(*KnowledgeBase, LoadReport){}, h.onSwap...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(kb, report)
	}
}
