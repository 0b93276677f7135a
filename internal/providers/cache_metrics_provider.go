package providers

import "carebot/internal/structures"

// MetricsCacheProvider layers hit/miss accounting over a cache. Both the
// admin response cache and the classifier verdict cache read through it, so
// the counters cover every cached lookup in the process.
type MetricsCacheProvider struct {
	inner   CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *MetricsCacheProvider) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits()
	} else {
		c.metrics.IncCacheMisses()
	}
	return val, ok
}

func (c *MetricsCacheProvider) Set(key string, value []byte) {
	c.inner.Set(key, value)
}

// NewInstrumentedCacheProvider builds the cache the rest of the process
// uses. The accounting layer only goes on when both the cache and metrics
// are enabled: a noop cache would report nothing but misses, and a noop
// metrics provider discards the counts.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	inner := NewCacheProvider(conf, logger)
	if !conf.Cache.Enabled || !conf.Metrics.Enabled {
		return inner
	}
	return &MetricsCacheProvider{
		inner:   inner,
		metrics: metrics,
	}
}
