package resilience

import (
	"golang.org/x/sync/singleflight"
)

// Executor combines the result cache with single-flight coalescing:
// a cache hit short-circuits the computation entirely, and concurrent
// callers with the same fingerprint share one underlying call.
type Executor struct {
	cache *Cache
	group singleflight.Group
}

// NewExecutor wraps cache with single-flight discipline.
func NewExecutor(cache *Cache) *Executor {
	return &Executor{cache: cache}
}

// Do returns the output for (stage, input), computing it at most once
// per fingerprint across concurrent callers. The second return reports
// whether the value came from cache.
func (e *Executor) Do(stage string, input interface{}, compute func() (interface{}, error)) (interface{}, bool, error) {
	fp, err := Fingerprint(stage, input)
	if err != nil {
		return nil, false, err
	}
	if v, ok := e.cache.Get(fp); ok {
		return v, true, nil
	}

	v, err, shared := e.group.Do(fp, func() (interface{}, error) {
		// a racing caller may have populated the cache already
		if v, ok := e.cache.Get(fp); ok {
			return v, nil
		}
		out, err := compute()
		if err != nil {
			return nil, err
		}
		e.cache.Put(fp, out)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, shared, nil
}

// Invalidate drops the cached output for (stage, input).
func (e *Executor) Invalidate(stage string, input interface{}) {
	if fp, err := Fingerprint(stage, input); err == nil {
		e.cache.Invalidate(fp)
	}
}
