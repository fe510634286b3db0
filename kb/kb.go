package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/model"
)

// ErrTLEExists indicates a reference TLE is already registered for a satellite.
var ErrTLEExists = errors.New("reference TLE already exists")

// entry holds the orbit derived from a satellite's reference TLE.
type entry struct {
	orbit model.OrbitSummary
	err   error
}

// KnowledgeBase is an in-memory, thread-safe store of per-satellite
// reference orbital elements and the orbital context derived from them.
type KnowledgeBase struct {
	mu      sync.RWMutex
	entries map[int]*entry
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{entries: make(map[int]*entry)}
}

// AddTLE registers a TLE and derives its orbit. The first TLE for a
// satellite wins; later ones return ErrTLEExists. A TLE whose orbit cannot be
// derived is still stored, with regime UNKNOWN and the derivation error.
func (kb *KnowledgeBase) AddTLE(tle model.ReferenceTLE) error {
	orbit, derr := core.OrbitFromTLE(tle)

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.entries[tle.SatNo]; exists {
		return fmt.Errorf("satellite %d: %w", tle.SatNo, ErrTLEExists)
	}
	kb.entries[tle.SatNo] = &entry{orbit: orbit, err: derr}
	return derr
}

// Load registers every TLE, skipping duplicates. It returns the number of
// TLEs registered and the per-satellite derivation errors.
func (kb *KnowledgeBase) Load(tles []model.ReferenceTLE) (int, map[int]error) {
	added := 0
	failures := make(map[int]error)
	for _, tle := range tles {
		err := kb.AddTLE(tle)
		if errors.Is(err, ErrTLEExists) {
			continue
		}
		added++
		if err != nil {
			failures[tle.SatNo] = err
		}
	}
	return added, failures
}

// Summaries returns one orbit summary per requested satellite, in ascending
// satellite order. Satellites without a TLE are reported as NO_TLE.
func (kb *KnowledgeBase) Summaries(satNos []int) []model.OrbitSummary {
	ids := append([]int(nil), satNos...)
	sort.Ints(ids)

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]model.OrbitSummary, 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		if e, ok := kb.entries[id]; ok {
			out = append(out, e.orbit)
			continue
		}
		out = append(out, model.OrbitSummary{SatNo: id, Regime: model.RegimeNoTLE})
	}
	return out
}
