package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/lightrelay/internal/infrastructure/config"
)

const (
	pingTimeout = 10 * time.Second

	// Used when the config leaves batching unset.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Stats counts what the relay handed to the telemetry store.
type Stats struct {
	FleetColors   uint64 `json:"fleet_colors"`
	Commands      uint64 `json:"commands"`
	DeviceLinks   uint64 `json:"device_links"`
	Dropped       uint64 `json:"dropped"`        // points offered after Close
	BatchFailures uint64 `json:"batch_failures"` // batches the server rejected
}

// Client is the relay's telemetry sink. Points are queued on the
// non-blocking write API and sent in batches; a command never waits for
// InfluxDB.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Batch failures arrive asynchronously through SetOnError.
type Client struct {
	influx influxdb2.Client
	writer api.WriteAPI

	fleetColors   atomic.Uint64
	commands      atomic.Uint64
	deviceLinks   atomic.Uint64
	dropped       atomic.Uint64
	batchFailures atomic.Uint64

	// mu orders writes against Close; the writer must not see a point
	// after it has been closed.
	mu      sync.RWMutex
	closed  bool
	onError func(err error)
}

// Connect pings the server and opens a batching writer on cfg.Org and
// cfg.Bucket.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrTelemetryDisabled
	}

	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(uint(flush.Milliseconds())), //nolint:gosec // positive by construction
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	healthy, err := influx.Ping(ctx)
	if err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnreachable, cfg.URL, err)
	}
	if !healthy {
		influx.Close()
		return nil, fmt.Errorf("%w: %s", ErrStoreNotReady, cfg.URL)
	}

	c := &Client{
		influx: influx,
		writer: influx.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.watchBatches(c.writer.Errors())
	return c, nil
}

// watchBatches forwards rejected batches until the writer closes its
// error channel.
func (c *Client) watchBatches(errs <-chan error) {
	for err := range errs {
		c.batchFailures.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrTelemetryWrite, err))
		}
	}
}

// SetOnError sets the callback for rejected batches. The error wraps
// ErrTelemetryWrite.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// enqueue hands p to the writer and counts it, or counts it as dropped
// once the client is closed.
func (c *Client) enqueue(counter *atomic.Uint64, p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.writer == nil || c.closed {
		c.dropped.Add(1)
		return
	}
	c.writer.WritePoint(p)
	counter.Add(1)
}

// Stats returns the point counters.
func (c *Client) Stats() Stats {
	return Stats{
		FleetColors:   c.fleetColors.Load(),
		Commands:      c.commands.Load(),
		DeviceLinks:   c.deviceLinks.Load(),
		Dropped:       c.dropped.Load(),
		BatchFailures: c.batchFailures.Load(),
	}
}

// Close sends the queued points and releases the client. Points written
// afterwards are dropped. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.influx == nil || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writer.Flush()
	c.influx.Close()
	return nil
}
