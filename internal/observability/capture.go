package observability

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// EventSource is the observer-registration capability a Capture subscribes
// to. Handlers receive raw event notifications; the cancel function removes
// the subscription.
type EventSource interface {
	Subscribe(handler func(eventType, source string, payload any)) (cancel func())
}

// LocalEventSource is an in-process EventSource that fans notifications out
// to all registered handlers.
type LocalEventSource struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(eventType, source string, payload any)
}

// NewLocalEventSource creates an empty in-process event source.
func NewLocalEventSource() *LocalEventSource {
	return &LocalEventSource{handlers: make(map[int]func(eventType, source string, payload any))}
}

// Subscribe registers a handler and returns a cancel function that removes it.
func (s *LocalEventSource) Subscribe(handler func(eventType, source string, payload any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// Emit delivers an event notification to every registered handler.
func (s *LocalEventSource) Emit(eventType, source string, payload any) {
	s.mu.Lock()
	handlers := make([]func(eventType, source string, payload any), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(eventType, source, payload)
	}
}

// CaptureOptions configures a per-session Capture.
type CaptureOptions struct {
	// OutputDir is where the session log file is created. Created (with
	// parents) if absent.
	OutputDir string
	// Buffering enables in-memory buffering with asynchronous flushes.
	// When disabled every event is written synchronously.
	Buffering bool
	// FlushInterval is the periodic flush cadence when buffering is
	// enabled. Defaults to one second.
	FlushInterval time.Duration
	// MaxBufferSize triggers an asynchronous flush when the buffer
	// reaches it. Defaults to 100.
	MaxBufferSize int
	// Filter, when set, decides which events are persisted. Rejected
	// events are dropped but still counted as seen.
	Filter func(Event) bool
}

// CaptureStats is a snapshot of capture counters.
type CaptureStats struct {
	Seen     int64 `json:"seen"`
	Captured int64 `json:"captured"`
	Dropped  int64 `json:"dropped"`
	Flushed  int64 `json:"flushed"`
}

// Capture buffers events for one session and flushes them to an append-only
// JSONL log file. Exactly one Capture owns a session's log; independent
// sessions run concurrently without coordination.
type Capture struct {
	sessionID string
	source    EventSource
	opts      CaptureOptions

	// flushMu serializes flushes so a timer-driven and a size-driven
	// flush can never interleave partial buffers. mu guards the buffer
	// and lifecycle state; it is never held across file I/O, so
	// CaptureEvent cannot block on a flush in progress.
	flushMu sync.Mutex
	mu      sync.Mutex
	buffer  []Event
	file    *os.File
	path    string
	seq     int64
	started bool
	stopped bool

	unsubscribe func()
	ticker      *time.Ticker
	done        chan struct{}

	seen     atomic.Int64
	captured atomic.Int64
	dropped  atomic.Int64
	flushed  atomic.Int64
}

// NewCapture creates a Capture for the given session. source may be nil when
// events are fed directly through CaptureEvent.
func NewCapture(sessionID string, source EventSource, opts CaptureOptions) *Capture {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = 100
	}
	return &Capture{
		sessionID: sessionID,
		source:    source,
		opts:      opts,
	}
}

// LogFileName returns the deterministic log file name for a session created
// at the given time.
func LogFileName(sessionID string, created time.Time) string {
	return fmt.Sprintf("swarm-%s-%d.jsonl", sessionID, created.UnixMilli())
}

// Start creates the output directory, opens the session log file in append
// mode, subscribes to the event source, and starts the flush timer when
// buffering is enabled. Directory or file creation failure is fatal to the
// session. Starting an already started Capture is a no-op.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("starting capture for %s: creating output dir: %w", c.sessionID, err)
	}

	path := filepath.Join(c.opts.OutputDir, LogFileName(c.sessionID, time.Now().UTC()))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path built from managed output dir
	if err != nil {
		return fmt.Errorf("starting capture for %s: opening log file: %w", c.sessionID, err)
	}

	c.file = f
	c.path = path
	c.started = true
	c.stopped = false

	if c.source != nil {
		c.unsubscribe = c.source.Subscribe(c.CaptureEvent)
	}

	if c.opts.Buffering {
		c.ticker = time.NewTicker(c.opts.FlushInterval)
		c.done = make(chan struct{})
		go c.flushLoop(c.ticker, c.done)
	}

	return nil
}

func (c *Capture) flushLoop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = c.Flush() // write errors retry on the next tick
		}
	}
}

// LogPath returns the path of the session log file, empty before Start.
func (c *Capture) LogPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// CaptureEvent records one event. It never blocks on I/O when buffering is
// enabled: the event is appended to the in-memory buffer and the call
// returns. Reaching MaxBufferSize triggers an asynchronous flush.
func (c *Capture) CaptureEvent(eventType, source string, payload any) {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}

	c.seen.Add(1)

	if eventType == "" {
		eventType = EventTypeUnknown
	}

	c.seq++
	ev := Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: c.sessionID,
		Source:    source,
		Payload:   payload,
		Metadata:  &EventMetadata{Sequence: c.seq},
	}

	if c.opts.Filter != nil && !c.opts.Filter(ev) {
		c.dropped.Add(1)
		c.mu.Unlock()
		return
	}

	c.captured.Add(1)
	c.buffer = append(c.buffer, ev)
	full := len(c.buffer) >= c.opts.MaxBufferSize
	c.mu.Unlock()

	if !c.opts.Buffering {
		_ = c.Flush()
		return
	}
	if full {
		go func() { _ = c.Flush() }()
	}
}

// Flush takes and clears the buffer under a single critical section and
// writes each event as one JSON line in arrival order. An event whose
// payload cannot be serialized is replaced by a synthetic error event. On a
// write failure the unwritten remainder is returned to the front of the
// buffer for retry on the next flush; events are never dropped while the
// process is alive.
func (c *Capture) Flush() error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch := c.buffer
	c.buffer = nil
	file := c.file
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if file == nil {
		c.requeue(batch)
		return fmt.Errorf("flushing events for %s: log file not open", c.sessionID)
	}

	for i, ev := range batch {
		line, err := json.Marshal(ev)
		if err != nil {
			// Unserializable payload: record the failure as an
			// event instead of crashing capture.
			line, err = json.Marshal(serializationErrorEvent(ev, err))
			if err != nil {
				continue
			}
		}
		line = append(line, '\n')
		if _, werr := file.Write(line); werr != nil {
			c.requeue(batch[i:])
			return fmt.Errorf("flushing events for %s: %w", c.sessionID, werr)
		}
		c.flushed.Add(1)
	}

	return nil
}

// requeue returns unwritten events to the front of the buffer, preserving
// arrival order ahead of anything captured since the flush began.
func (c *Capture) requeue(events []Event) {
	c.mu.Lock()
	c.buffer = append(append([]Event{}, events...), c.buffer...)
	c.mu.Unlock()
}

func serializationErrorEvent(original Event, err error) Event {
	return Event{
		Timestamp: original.Timestamp,
		EventType: "error",
		SessionID: original.SessionID,
		Source:    original.Source,
		Payload: map[string]any{
			"reason":       "payload serialization failed",
			"originalType": original.EventType,
			"error":        err.Error(),
		},
		Metadata: original.Metadata,
	}
}

// Stop halts the flush timer, unsubscribes from the event source, performs
// one final flush, and closes the log file. It is idempotent, and a Stop
// before Start is a no-op. The final flush is a single bounded attempt: a
// write failure is reported rather than retried forever.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	ticker, done, unsubscribe := c.ticker, c.done, c.unsubscribe
	c.ticker, c.done, c.unsubscribe = nil, nil, nil
	c.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(done)
	}
	if unsubscribe != nil {
		unsubscribe()
	}

	flushErr := c.Flush()

	c.mu.Lock()
	file := c.file
	c.file = nil
	c.mu.Unlock()

	var closeErr error
	if file != nil {
		closeErr = file.Close()
	}

	if flushErr != nil {
		return fmt.Errorf("stopping capture for %s: final flush: %w", c.sessionID, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("stopping capture for %s: closing log: %w", c.sessionID, closeErr)
	}
	return nil
}

// Stats returns a snapshot of the capture counters.
func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		Seen:     c.seen.Load(),
		Captured: c.captured.Load(),
		Dropped:  c.dropped.Load(),
		Flushed:  c.flushed.Load(),
	}
}

// BufferedCount returns the number of events awaiting flush.
func (c *Capture) BufferedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}
