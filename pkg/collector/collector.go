package collector

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults applied by New when the corresponding Config field is zero
const (
	DefaultBatchSize     = 5
	DefaultFlushInterval = 1 * time.Second
	DefaultMaxQueueSize  = 100
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultEndpoint      = "http://localhost:8080/track"
	DefaultInitialPath   = "/"
)

// Config configures one collector instance
type Config struct {
	// SiteID identifies the tracked site; required
	SiteID string

	// Endpoint is the collection URL; defaults to DefaultEndpoint
	Endpoint string

	// DisableAutoTrack suppresses the initial pageview recorded on startup
	DisableAutoTrack bool

	// SPA enables route-change tracking for single-page applications
	SPA bool

	// Debug enables verbose logging when no Logger is supplied
	Debug bool

	// BatchSize is the event count that triggers an immediate flush
	BatchSize int

	// FlushInterval is the partial-batch flush deadline
	FlushInterval time.Duration

	// MaxQueueSize caps buffered events; further events are dropped
	MaxQueueSize int

	// MaxRetries bounds re-send attempts per batch
	MaxRetries int

	// RetryDelay is the base backoff unit between re-send attempts
	RetryDelay time.Duration

	// InitialPath is the path of the auto-tracked startup pageview
	InitialPath string

	// Beacon overrides the fire-and-forget primitive; nil uses the
	// built-in background sender
	Beacon BeaconSender

	// HTTPClient overrides the synchronous fallback client
	HTTPClient *http.Client

	// Logger overrides the collector's logger
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.InitialPath == "" {
		c.InitialPath = DefaultInitialPath
	}
	return c
}

type msgKind int

const (
	msgNotify msgKind = iota
	msgConnectivity
	msgResult
	msgRetryDue
	msgFlush
	msgClose
)

type message struct {
	kind    msgKind
	online  bool
	batch   *Batch
	outcome DeliveryOutcome
	done    chan struct{}
}

// Collector buffers tracked events and delivers them in batches. All
// batching, timing and retry state is owned by a single run-loop goroutine;
// public methods communicate with it through a mailbox, so they are safe to
// call from any goroutine and never block on network I/O.
type Collector struct {
	cfg       Config
	queue     *EventQueue
	transport *Transport
	retries   *retryManager
	log       *zap.Logger

	mailbox chan message
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// run-loop state, touched only by run()
	online     bool
	inFlight   bool
	timer      *time.Timer
	timerArmed bool
}

// New creates and starts a collector. When auto-tracking is enabled (the
// default) an initial pageview for InitialPath is recorded immediately.
func New(cfg Config) (*Collector, error) {
	if cfg.SiteID == "" {
		return nil, fmt.Errorf("collector: SiteID is required")
	}
	cfg = cfg.withDefaults()

	log := cfg.Logger
	if log == nil {
		if cfg.Debug {
			log = zap.Must(zap.NewDevelopment())
		} else {
			log = zap.NewNop()
		}
	}

	beacon := cfg.Beacon
	if beacon == nil {
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		beacon = &httpBeacon{client: client}
	}

	c := &Collector{
		cfg:       cfg,
		queue:     NewEventQueue(cfg.MaxQueueSize),
		transport: NewTransport(cfg.SiteID, cfg.Endpoint, beacon, cfg.HTTPClient, log),
		retries:   newRetryManager(cfg.MaxRetries, cfg.RetryDelay),
		log:       log,
		mailbox:   make(chan message, 128),
		closed:    make(chan struct{}),
		online:    true,
	}

	c.timer = time.NewTimer(time.Hour)
	if !c.timer.Stop() {
		<-c.timer.C
	}

	c.wg.Add(1)
	go c.run()

	if !cfg.DisableAutoTrack {
		c.Page(cfg.InitialPath, "")
	}

	return c, nil
}

// Page records a pageview. It returns false when the event was dropped
// because the buffer is full or the collector is closed.
func (c *Collector) Page(path, referrer string) bool {
	return c.enqueue(Event{
		Path:      path,
		Referrer:  referrer,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Track records a custom event with optional attributes
func (c *Collector) Track(eventType, path string, attributes map[string]interface{}) bool {
	return c.enqueue(Event{
		Type:       eventType,
		Path:       path,
		Attributes: attributes,
		Timestamp:  time.Now().UnixMilli(),
	})
}

// RouteChange records a pageview for a client-side navigation. It is a
// no-op unless SPA mode is enabled.
func (c *Collector) RouteChange(path string) bool {
	if !c.cfg.SPA {
		return false
	}
	return c.Page(path, "")
}

// SetOnline informs the collector of a connectivity change. Going online
// schedules every held batch for a re-send; going offline stops delivery
// attempts without discarding anything.
func (c *Collector) SetOnline(online bool) {
	c.post(message{kind: msgConnectivity, online: online})
}

// Flush delivers everything currently buffered using only the
// fire-and-forget primitive, mirroring a page-unload flush. It blocks until
// the run loop has handed every batch to the beacon.
func (c *Collector) Flush() {
	done := make(chan struct{})
	if !c.post(message{kind: msgFlush, done: done}) {
		return
	}
	select {
	case <-done:
	case <-c.closed:
	}
}

// Close flushes buffered events beacon-only and stops the run loop.
// Subsequent Track and Page calls return false.
func (c *Collector) Close() {
	c.once.Do(func() {
		select {
		case c.mailbox <- message{kind: msgClose}:
		case <-c.closed:
		}
		c.wg.Wait()
	})
}

// Pending returns the number of buffered events not yet cut into a batch;
// it is a monitoring aid, not a synchronization primitive.
func (c *Collector) Pending() int {
	return c.queue.Len()
}

func (c *Collector) enqueue(e Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	if !c.queue.Add(e) {
		c.log.Debug("event dropped, buffer full",
			zap.String("path", e.Path),
			zap.Int("max_queue_size", c.cfg.MaxQueueSize))
		return false
	}

	c.post(message{kind: msgNotify})
	return true
}

func (c *Collector) post(msg message) bool {
	select {
	case c.mailbox <- msg:
		return true
	case <-c.closed:
		return false
	}
}

func (c *Collector) run() {
	defer c.wg.Done()
	defer close(c.closed)

	for {
		select {
		case <-c.timer.C:
			c.timerArmed = false
			c.dispatch(true)

		case msg := <-c.mailbox:
			switch msg.kind {
			case msgNotify:
				if c.queue.Len() >= c.cfg.BatchSize {
					c.dispatch(true)
				} else if !c.timerArmed {
					c.armTimer()
				}

			case msgConnectivity:
				c.handleConnectivity(msg.online)

			case msgResult:
				c.handleResult(msg.batch, msg.outcome)

			case msgRetryDue:
				c.retries.markReady(msg.batch)
				c.dispatch(false)

			case msgFlush:
				c.unloadFlush()
				close(msg.done)

			case msgClose:
				c.unloadFlush()
				return
			}
		}
	}
}

// dispatch starts at most one delivery. Ready retries go first so older
// events reach the server before newer ones; a fresh batch is cut from the
// queue otherwise. drainPartial permits a below-threshold batch (timer
// expiry and post-delivery catch-up), and an empty queue is a no-op.
func (c *Collector) dispatch(drainPartial bool) {
	if c.inFlight {
		return
	}

	if c.online {
		if b := c.retries.popReady(); b != nil {
			c.sendAsync(b)
			return
		}
		// an earlier batch still in its backoff window must reach the
		// server before any fresh batch; newer events keep queueing and
		// are picked up when the retry resolves
		if c.retries.pending() > 0 {
			c.rearmIfPending()
			return
		}
	}

	if !drainPartial && c.queue.Len() < c.cfg.BatchSize {
		c.rearmIfPending()
		return
	}

	events := c.queue.Drain(c.cfg.BatchSize)
	if len(events) == 0 {
		return
	}
	batch := &Batch{Events: events, CreatedAt: time.Now()}

	if !c.online {
		// no delivery attempt while offline; the batch waits intact
		c.retries.hold(batch)
		c.rearmIfPending()
		return
	}

	c.sendAsync(batch)
}

// sendAsync runs the blocking transport call off the run loop so timers and
// incoming events keep being processed during delivery
func (c *Collector) sendAsync(batch *Batch) {
	c.inFlight = true
	go func() {
		outcome := c.transport.Send(batch)
		c.post(message{kind: msgResult, batch: batch, outcome: outcome})
	}()
}

func (c *Collector) handleResult(batch *Batch, outcome DeliveryOutcome) {
	c.inFlight = false

	if outcome == Delivered {
		c.log.Debug("batch delivered",
			zap.Int("events", len(batch.Events)),
			zap.Int("retry_count", batch.RetryCount))
	} else {
		c.handleFailure(batch)
	}

	// pick up whatever accumulated while this batch was in flight
	c.dispatch(false)
	c.rearmIfPending()
}

func (c *Collector) handleFailure(batch *Batch) {
	if c.retries.exhausted(batch) {
		// data is lost here and nowhere else
		c.log.Warn("batch dropped after retry exhaustion",
			zap.Int("events", len(batch.Events)),
			zap.Int("retry_count", batch.RetryCount))
		return
	}

	delay := c.retries.backoff(batch)
	batch.RetryCount++

	if !c.online {
		c.retries.hold(batch)
		return
	}

	c.scheduleRetry(batch, delay)
}

func (c *Collector) scheduleRetry(batch *Batch, delay time.Duration) {
	c.retries.markScheduled()
	c.log.Debug("batch retry scheduled",
		zap.Int("retry_count", batch.RetryCount),
		zap.Duration("delay", delay))
	time.AfterFunc(delay, func() {
		c.post(message{kind: msgRetryDue, batch: batch})
	})
}

func (c *Collector) handleConnectivity(online bool) {
	wasOnline := c.online
	c.online = online

	if !online || wasOnline {
		return
	}

	for _, b := range c.retries.takeWaiting() {
		c.scheduleRetry(b, c.retries.backoff(b))
	}
	c.dispatch(false)
}

// unloadFlush hands everything still buffered to the fire-and-forget
// primitive in one pass: held and ready retries first, then a single batch
// with the full remaining queue. The batch-size cap does not apply here;
// there is no second chance after unload.
func (c *Collector) unloadFlush() {
	var batches []*Batch
	batches = append(batches, c.retries.takeReady()...)
	batches = append(batches, c.retries.takeWaiting()...)

	if events := c.queue.Drain(c.queue.Len()); len(events) > 0 {
		batches = append(batches, &Batch{Events: events, CreatedAt: time.Now()})
	}

	for _, b := range batches {
		if c.transport.SendBeaconOnly(b) == Failed {
			c.log.Debug("unload flush batch lost", zap.Int("events", len(b.Events)))
		}
	}
}

func (c *Collector) armTimer() {
	c.timer.Reset(c.cfg.FlushInterval)
	c.timerArmed = true
}

func (c *Collector) rearmIfPending() {
	if !c.timerArmed && c.queue.Len() > 0 {
		c.armTimer()
	}
}
