package instrument

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	parentSpanIDKey
	instrumenterKey
	actorIDKey
)

// Instrumenter starts spans and emits one-shot business events.
type Instrumenter interface {
	StartSpan(ctx context.Context, source, component, action string) (context.Context, Span)
	EmitBusinessEvent(ctx context.Context, action, model, recordID string, metadata map[string]any)
}

// Span is one timed operation.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	SetEntity(model, recordID string)
	TraceID() string
	SpanID() string
}

// Event is one finished span or business event.
type Event struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	EventType    string         `json:"event_type"`
	Source       string         `json:"source"`
	Component    string         `json:"component"`
	Action       string         `json:"action"`
	Model        string         `json:"model,omitempty"`
	RecordID     string         `json:"record_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	DurationMs   *float64       `json:"duration_ms,omitempty"`
	Status       string         `json:"status,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newUUID() string {
	return uuid.New().String()
}

// WithTraceID sets the trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func withParentSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, spanID)
}

func getParentSpanID(ctx context.Context) string {
	if v, ok := ctx.Value(parentSpanIDKey).(string); ok {
		return v
	}
	return ""
}

// WithInstrumenter sets the instrumenter in the context.
func WithInstrumenter(ctx context.Context, inst Instrumenter) context.Context {
	return context.WithValue(ctx, instrumenterKey, inst)
}

// GetInstrumenter returns the instrumenter from the context, or a no-op one.
func GetInstrumenter(ctx context.Context) Instrumenter {
	if v, ok := ctx.Value(instrumenterKey).(Instrumenter); ok {
		return v
	}
	return Noop()
}

// WithActorID records the acting user on the context for later events.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

func getActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey).(string); ok {
		return v
	}
	return ""
}

// Tracer enqueues finished spans and business events on an EventBuffer.
type Tracer struct {
	buffer *EventBuffer
}

func NewTracer(buffer *EventBuffer) *Tracer {
	return &Tracer{buffer: buffer}
}

// StartSpan creates a span; spans started from the returned context are its children.
func (t *Tracer) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	span := &spanImpl{
		traceID:      GetTraceID(ctx),
		spanID:       newUUID(),
		parentSpanID: getParentSpanID(ctx),
		source:       source,
		component:    component,
		action:       action,
		actorID:      getActorID(ctx),
		startTime:    time.Now(),
		buffer:       t.buffer,
	}
	return withParentSpanID(ctx, span.spanID), span
}

func (t *Tracer) EmitBusinessEvent(ctx context.Context, action, model, recordID string, metadata map[string]any) {
	t.buffer.Enqueue(Event{
		TraceID:      GetTraceID(ctx),
		SpanID:       newUUID(),
		ParentSpanID: getParentSpanID(ctx),
		EventType:    "business",
		Source:       "business",
		Component:    "engine",
		Action:       action,
		Model:        model,
		RecordID:     recordID,
		ActorID:      getActorID(ctx),
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	})
}

type spanImpl struct {
	mu           sync.Mutex
	traceID      string
	spanID       string
	parentSpanID string
	source       string
	component    string
	action       string
	model        string
	recordID     string
	actorID      string
	status       string
	startTime    time.Time
	metadata     map[string]any
	buffer       *EventBuffer
	ended        bool
}

func (s *spanImpl) TraceID() string { return s.traceID }
func (s *spanImpl) SpanID() string  { return s.spanID }

func (s *spanImpl) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *spanImpl) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	s.metadata[key] = value
}

func (s *spanImpl) SetEntity(model, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	if recordID != "" {
		s.recordID = recordID
	}
}

func (s *spanImpl) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true

	durationMs := float64(time.Since(s.startTime).Microseconds()) / 1000.0
	s.buffer.Enqueue(Event{
		TraceID:      s.traceID,
		SpanID:       s.spanID,
		ParentSpanID: s.parentSpanID,
		EventType:    "system",
		Source:       s.source,
		Component:    s.component,
		Action:       s.action,
		Model:        s.model,
		RecordID:     s.recordID,
		ActorID:      s.actorID,
		DurationMs:   &durationMs,
		Status:       s.status,
		Metadata:     s.metadata,
		CreatedAt:    s.startTime,
	})
}
