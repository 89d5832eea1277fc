// Package metrics provides the coordinator's metrics collector.
// Snapshots are periodically written to Redis so dashboards can read them
// without talking to the service directly.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// TTL is how long metrics stay in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// Snapshot is the point-in-time view of a collector.
type Snapshot struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"`

	RequestsReceived  uint64 `json:"requests_received"`
	RequestsProcessed uint64 `json:"requests_processed"`
	RequestErrors     uint64 `json:"request_errors"`

	RequestsPerSecond   float64 `json:"requests_per_second"`
	AvgRequestLatencyNs float64 `json:"avg_request_latency_ns"`

	// Domain counters such as emergencies_triggered or deliveries_failed.
	Counters map[string]uint64 `json:"counters,omitempty"`
}

// Collector collects and reports metrics for the service.
// All record methods are safe for concurrent use.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	requestsReceived  atomic.Uint64
	requestsProcessed atomic.Uint64
	requestErrors     atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	// rate state, only touched by the reporting goroutine and GetSnapshot
	rateMu             sync.Mutex
	lastReportTime     time.Time
	lastProcessedCount uint64

	countersMu sync.RWMutex
	counters   map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector. redisClient may be nil, in which
// case the collector only keeps in-process counters.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		counters:       make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting and waits for the final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived increments the requests received counter.
func (c *Collector) RecordReceived() {
	c.requestsReceived.Add(1)
}

// RecordProcessed increments the processed counter and tracks latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.requestsProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordError increments the request errors counter.
func (c *Collector) RecordError() {
	c.requestErrors.Add(1)
}

// IncrementCustom increments a named domain counter.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a named domain counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.countersMu.RLock()
	counter, exists := c.counters[name]
	c.countersMu.RUnlock()

	if !exists {
		c.countersMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.counters[name]; !exists {
			counter = &atomic.Uint64{}
			c.counters[name] = counter
		}
		c.countersMu.Unlock()
	}
	counter.Add(value)
}

// Counter returns the current value of a named domain counter.
func (c *Collector) Counter(name string) uint64 {
	c.countersMu.RLock()
	defer c.countersMu.RUnlock()
	if counter, ok := c.counters[name]; ok {
		return counter.Load()
	}
	return 0
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *Snapshot {
	now := time.Now().UTC()
	processed := c.requestsProcessed.Load()

	c.rateMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(processed-c.lastProcessedCount) / elapsed
	}
	c.rateMu.Unlock()

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.countersMu.RLock()
	counters := make(map[string]uint64, len(c.counters))
	for name, counter := range c.counters {
		counters[name] = counter.Load()
	}
	c.countersMu.RUnlock()

	return &Snapshot{
		ServiceName:         c.serviceName,
		StartedAt:           c.startedAt,
		LastUpdated:         now,
		Status:              "healthy",
		RequestsReceived:    c.requestsReceived.Load(),
		RequestsProcessed:   processed,
		RequestErrors:       c.requestErrors.Load(),
		RequestsPerSecond:   rate,
		AvgRequestLatencyNs: avgLatencyNs,
		Counters:            counters,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snap := c.GetSnapshot()

	c.rateMu.Lock()
	c.lastReportTime = snap.LastUpdated
	c.lastProcessedCount = snap.RequestsProcessed
	c.rateMu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}
