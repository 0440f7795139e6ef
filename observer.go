package kick

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer receives framework lifecycle events.
// Events are CloudEvents v1.0.
type Observer interface {
	// OnEvent is called for every event the observer subscribed to.
	// Observers should return quickly; delivery is asynchronous unless the
	// subject was built for synchronous delivery.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject maintains observers and notifies them of events.
type Subject interface {
	// RegisterObserver subscribes observer to the given event types, or to
	// every event when none are given.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes observer. Unknown observers are ignored.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers event to every interested observer.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers describes the registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event types emitted by the framework, in reverse domain notation.
const (
	EventTypeAppCreated           = "com.kick.app.created"
	EventTypeAppInitialized       = "com.kick.app.initialized"
	EventTypeAppStarted           = "com.kick.app.started"
	EventTypeAppStopped           = "com.kick.app.stopped"
	EventTypeModuleLoaded         = "com.kick.module.loaded"
	EventTypeMiddlewareRegistered = "com.kick.middleware.registered"
	EventTypeControllerMapped     = "com.kick.controller.mapped"
	EventTypeRouteRegistered      = "com.kick.route.registered"
	EventTypeStateChanged         = "com.kick.state.changed"
	EventTypeError                = "com.kick.error"
)

// CloudEvent is an alias for the CloudEvents Event type.
type CloudEvent = cloudevents.Event

// NewCloudEvent builds an event with a time-ordered id. Metadata entries
// become CloudEvents extensions.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// FunctionalObserver adapts a function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer from a handler function.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) *FunctionalObserver {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string { return f.id }

type syncNotifyCtxKey struct{}

// WithSynchronousNotification asks the subject to deliver inline instead of
// spawning goroutines.
func WithSynchronousNotification(ctx context.Context) context.Context {
	return context.WithValue(ctx, syncNotifyCtxKey{}, true)
}

// IsSynchronousNotification reports whether ctx requests inline delivery.
func IsSynchronousNotification(ctx context.Context) bool {
	v, _ := ctx.Value(syncNotifyCtxKey{}).(bool)
	return v
}

type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// EventSubject is the framework's Subject. Observers are notified in
// registration order.
type EventSubject struct {
	source      string
	logger      Logger
	synchronous bool

	mu        sync.RWMutex
	observers []*observerRegistration
}

// NewEventSubject creates a subject stamping events with source. When
// synchronous is true every notification is delivered inline.
func NewEventSubject(source string, logger Logger, synchronous bool) *EventSubject {
	if logger == nil {
		logger = NopLogger()
	}
	return &EventSubject{source: source, logger: logger, synchronous: synchronous}
}

func (s *EventSubject) RegisterObserver(observer Observer, eventTypes ...string) error {
	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := &observerRegistration{observer: observer, eventTypes: types, registeredAt: time.Now()}
	for i, existing := range s.observers {
		if existing.observer.ObserverID() == observer.ObserverID() {
			s.observers[i] = reg
			return nil
		}
	}
	s.observers = append(s.observers, reg)
	s.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

func (s *EventSubject) UnregisterObserver(observer Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.observers {
		if existing.observer.ObserverID() == observer.ObserverID() {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			s.logger.Debug("Observer unregistered", "observerID", observer.ObserverID())
			return nil
		}
	}
	return nil
}

func (s *EventSubject) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		s.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}

	s.mu.RLock()
	targets := make([]*observerRegistration, 0, len(s.observers))
	for _, reg := range s.observers {
		if len(reg.eventTypes) > 0 && !reg.eventTypes[event.Type()] {
			continue
		}
		targets = append(targets, reg)
	}
	s.mu.RUnlock()

	inline := s.synchronous || IsSynchronousNotification(ctx)
	for _, reg := range targets {
		if inline {
			s.deliver(ctx, reg, event)
			continue
		}
		go s.deliver(ctx, reg, event)
	}
	return nil
}

func (s *EventSubject) deliver(ctx context.Context, reg *observerRegistration, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Observer panicked", "observerID", reg.observer.ObserverID(), "event", event.Type(), "panic", r)
		}
	}()
	if err := reg.observer.OnEvent(ctx, event); err != nil {
		s.logger.Error("Observer error", "observerID", reg.observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

func (s *EventSubject) GetObservers() []ObserverInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := make([]ObserverInfo, 0, len(s.observers))
	for _, reg := range s.observers {
		types := make([]string, 0, len(reg.eventTypes))
		for t := range reg.eventTypes {
			types = append(types, t)
		}
		info = append(info, ObserverInfo{ID: reg.observer.ObserverID(), EventTypes: types, RegisteredAt: reg.registeredAt})
	}
	return info
}

// emit builds and delivers an event, logging delivery failures.
func (s *EventSubject) emit(ctx context.Context, eventType string, data map[string]any) {
	if s == nil {
		return
	}
	if err := s.NotifyObservers(ctx, NewCloudEvent(eventType, s.source, data, nil)); err != nil {
		s.logger.Error("Failed to notify observers", "event", eventType, "error", err)
	}
}
