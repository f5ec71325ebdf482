package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is a single 24h-volume reading taken during one scan cycle.
type Sample struct {
	Timestamp time.Time
	Volume    decimal.Decimal
}

// HistoryStore keeps an insertion-ordered volume history per symbol.
//
// A single scan cycle is the only writer; dashboard reads may happen
// concurrently, so every access goes through the RWMutex and reads
// return copies rather than the underlying slices.
type HistoryStore struct {
	mtx    sync.RWMutex
	series map[string][]Sample
}

// NewHistoryStore constructs an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{series: make(map[string][]Sample)}
}

// Record appends a sample to the symbol's history, creating the history on
// first sight. Samples with negative volume are malformed and dropped.
func (h *HistoryStore) Record(symbol string, sample Sample) {
	if symbol == "" || sample.Volume.IsNegative() {
		return
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.series[symbol] = append(h.series[symbol], sample)
}

// IsFirstObservation reports whether no sample has been recorded for the
// symbol yet. Callers must check this before recording the current sample.
func (h *HistoryStore) IsFirstObservation(symbol string) bool {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.series[symbol]) == 0
}

// HistoryWithin returns copies of the symbol's samples with
// timestamp >= now-window, preserving insertion order. Unknown symbols
// yield an empty slice.
func (h *HistoryStore) HistoryWithin(symbol string, window time.Duration, now time.Time) []Sample {
	cutoff := now.Add(-window)

	h.mtx.RLock()
	defer h.mtx.RUnlock()

	samples := h.series[symbol]
	result := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !s.Timestamp.Before(cutoff) {
			result = append(result, s)
		}
	}
	return result
}

// History returns a copy of the symbol's full stored history.
func (h *HistoryStore) History(symbol string) ([]Sample, bool) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	samples, ok := h.series[symbol]
	if !ok {
		return nil, false
	}
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out, true
}

// Prune drops, for every symbol, samples older than now-retention. Symbols
// left with no samples are removed entirely so they regain first-observation
// semantics.
func (h *HistoryStore) Prune(retention time.Duration, now time.Time) {
	cutoff := now.Add(-retention)

	h.mtx.Lock()
	defer h.mtx.Unlock()

	for symbol, samples := range h.series {
		kept := samples[:0]
		for _, s := range samples {
			if !s.Timestamp.Before(cutoff) {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(h.series, symbol)
			continue
		}
		h.series[symbol] = kept
	}
}

// Snapshot deep-copies the full store contents for persistence or display.
func (h *HistoryStore) Snapshot() map[string][]Sample {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	snap := make(map[string][]Sample, len(h.series))
	for symbol, samples := range h.series {
		out := make([]Sample, len(samples))
		copy(out, samples)
		snap[symbol] = out
	}
	return snap
}

// Restore replaces the store contents wholesale, e.g. from persisted state.
func (h *HistoryStore) Restore(histories map[string][]Sample) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.series = make(map[string][]Sample, len(histories))
	for symbol, samples := range histories {
		if symbol == "" || len(samples) == 0 {
			continue
		}
		out := make([]Sample, len(samples))
		copy(out, samples)
		h.series[symbol] = out
	}
}

// Reset discards every stored history.
func (h *HistoryStore) Reset() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.series = make(map[string][]Sample)
}

// Symbols lists tracked symbols in lexical order.
func (h *HistoryStore) Symbols() []string {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	symbols := make([]string, 0, len(h.series))
	for symbol := range h.series {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// SymbolCount reports how many symbols currently have history.
func (h *HistoryStore) SymbolCount() int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.series)
}
