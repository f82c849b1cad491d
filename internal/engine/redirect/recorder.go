package redirect

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClickEvent is the analytics payload emitted once per routed request that
// resolved to a link record. Written asynchronously, never read back here.
type ClickEvent struct {
	ID        string
	LinkID    string
	Domain    string
	Key       string
	URL       string // resolved destination, empty for bare domains
	Root      bool
	Timestamp time.Time
	IP        string
	UserAgent string
	Country   string
	City      string
	Device    string
	OS        string
	Browser   string
	Referrer  string
	Bot       bool
}

// ClickSink is the durable analytics store. Writes are append-only and
// may fail; the recorder never retries.
type ClickSink interface {
	WriteClick(ctx context.Context, ev *ClickEvent) error
}

// ClickRecorder decouples click persistence from the response path with a
// bounded queue drained by a fixed worker pool. Record never blocks: when
// the queue is full the event is dropped and counted. Delivery is
// best-effort; a click lost under overload never delays a redirect.
type ClickRecorder struct {
	sink    ClickSink
	queue   chan *ClickEvent
	wg      sync.WaitGroup
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func NewClickRecorder(sink ClickSink, workers, queueSize int, writeTimeout time.Duration, logger zerolog.Logger) *ClickRecorder {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 4096
	}
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}

	r := &ClickRecorder{
		sink:    sink,
		queue:   make(chan *ClickEvent, queueSize),
		timeout: writeTimeout,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Record schedules a click write and returns immediately. Safe to call
// after the HTTP response has been sent; the worker pool outlives the
// request.
func (r *ClickRecorder) Record(ev *ClickEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		clicksDroppedTotal.Inc()
		return
	}

	select {
	case r.queue <- ev:
		r.mu.Unlock()
		clicksRecordedTotal.Inc()
	default:
		r.mu.Unlock()
		clicksDroppedTotal.Inc()
		r.logger.Warn().Str("link_id", ev.LinkID).Msg("click queue full, event dropped")
	}
}

func (r *ClickRecorder) worker() {
	defer r.wg.Done()
	for ev := range r.queue {
		r.write(ev)
	}
}

func (r *ClickRecorder) write(ev *ClickEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("recovered from panic in click sink")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.WriteClick(ctx, ev); err != nil {
		// Swallowed: recording failures never surface or retry here.
		r.logger.Error().Err(err).Str("link_id", ev.LinkID).Msg("failed to record click")
	}
}

// Close stops accepting events and drains the queue, bounded by ctx.
func (r *ClickRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
