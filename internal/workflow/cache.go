package workflow

import (
	"encoding/json"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/licitaflow/stagegate/internal/domain"
)

// EvaluationCache memoizes precondition results keyed by a digest of the
// full stage snapshot. Any change to the snapshot produces a new key, and
// registering a rule on the evaluator empties the cache.
type EvaluationCache struct {
	Evaluator *PreconditionEvaluator
	// MaxEntries bounds the cache; when reached the cache is cleared.
	MaxEntries int

	mu         sync.Mutex
	entries    map[uint64]domain.Precondition
	hits       int
	generation uint64
}

// NewEvaluationCache creates a cache in front of the given evaluator.
func NewEvaluationCache(ev *PreconditionEvaluator, maxEntries int) *EvaluationCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &EvaluationCache{
		Evaluator:  ev,
		MaxEntries: maxEntries,
		entries:    make(map[uint64]domain.Precondition),
		generation: ev.Generation(),
	}
}

// Evaluate returns the cached result for the stage, computing it on a miss.
func (c *EvaluationCache) Evaluate(stage domain.Stage) domain.Precondition {
	key, err := stageKey(stage)
	if err != nil {
		return c.Evaluator.Evaluate(stage)
	}

	gen := c.Evaluator.Generation()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.entries = make(map[uint64]domain.Precondition)
		c.generation = gen
	}
	if res, ok := c.entries[key]; ok {
		c.hits++
		return res
	}
	if len(c.entries) >= c.MaxEntries {
		c.entries = make(map[uint64]domain.Precondition)
	}
	res := c.Evaluator.Evaluate(stage)
	c.entries[key] = res
	return res
}

// Hits returns the number of lookups served from the cache.
func (c *EvaluationCache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Len returns the number of cached results.
func (c *EvaluationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func stageKey(stage domain.Stage) (uint64, error) {
	data, err := json.Marshal(stage)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
