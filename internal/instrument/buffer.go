package instrument

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Sink receives flushed batches.
type Sink interface {
	Write(batch []Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(batch []Event) error

func (f SinkFunc) Write(batch []Event) error { return f(batch) }

// LogSink writes one JSON line per event.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Write(batch []Event) error {
	for _, e := range batch {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if s.Logger != nil {
			s.Logger.Printf("EVENT: %s", b)
		} else {
			log.Printf("EVENT: %s", b)
		}
	}
	return nil
}

// EventBuffer collects events in memory and flushes them to a sink on a
// timer or when full.
type EventBuffer struct {
	mu       sync.Mutex
	events   []Event
	sink     Sink
	maxSize  int
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

// NewEventBuffer creates a buffer that flushes every flushIntervalMs or when
// maxSize events are queued.
func NewEventBuffer(sink Sink, maxSize int, flushIntervalMs int) *EventBuffer {
	if maxSize <= 0 {
		maxSize = 500
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 1000
	}
	eb := &EventBuffer{
		sink:    sink,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	eb.ticker = time.NewTicker(time.Duration(flushIntervalMs) * time.Millisecond)
	go eb.run()
	return eb
}

func (eb *EventBuffer) run() {
	for {
		select {
		case <-eb.done:
			return
		case <-eb.ticker.C:
			eb.Flush()
		}
	}
}

// Enqueue adds an event. A full buffer triggers an asynchronous flush.
func (eb *EventBuffer) Enqueue(event Event) {
	eb.mu.Lock()
	eb.events = append(eb.events, event)
	shouldFlush := len(eb.events) >= eb.maxSize
	eb.mu.Unlock()
	if shouldFlush {
		go eb.Flush()
	}
}

// Len returns the number of queued events.
func (eb *EventBuffer) Len() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.events)
}

// Flush hands every queued event to the sink.
func (eb *EventBuffer) Flush() {
	eb.mu.Lock()
	if len(eb.events) == 0 {
		eb.mu.Unlock()
		return
	}
	batch := eb.events
	eb.events = nil
	eb.mu.Unlock()

	if err := eb.sink.Write(batch); err != nil {
		log.Printf("ERROR: event buffer flush (%d events): %v", len(batch), err)
	}
}

// Stop halts the background ticker and flushes remaining events.
func (eb *EventBuffer) Stop() {
	eb.stopOnce.Do(func() {
		eb.ticker.Stop()
		close(eb.done)
		eb.Flush()
	})
}
