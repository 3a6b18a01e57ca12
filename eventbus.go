package plotforge

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// EventCallback handles one delivered event. Callbacks run synchronously on
// the emitter's call stack; an error or panic from one callback is absorbed
// into a warning on the emit result and never reaches the emitter or the
// remaining callbacks.
type EventCallback func(ctx context.Context, event cloudevents.Event) error

// EventRecord is one entry of the bus's append-only log: a CloudEvents
// envelope plus a strictly increasing sequence number assigned at emit
// time.
type EventRecord struct {
	Sequence uint64            `json:"sequence"`
	Envelope cloudevents.Event `json:"envelope"`
}

// Type returns the record's event type.
func (r EventRecord) Type() string { return r.Envelope.Type() }

// Source returns the module that emitted the record.
func (r EventRecord) Source() string { return r.Envelope.Source() }

// Time returns the emit timestamp.
func (r EventRecord) Time() time.Time { return r.Envelope.Time() }

// EventFilter selects a view of the event log. Zero-valued fields match
// everything; Limit > 0 keeps only the newest entries.
type EventFilter struct {
	Type   string
	Source string
	Since  time.Time
	Limit  int
}

// listenerEntry is one (listener name, callback) registration for an event
// type. Entries keep their registration-order position when a listener
// re-subscribes under the same name.
type listenerEntry struct {
	name         string
	callback     EventCallback
	registeredAt time.Time
}

// EventBus is a synchronous in-process publish/subscribe mechanism with an
// append-only event log. It is owned by an engine instance rather than
// shared process-wide; the mutex makes it safe to share with the module
// directory watcher goroutine.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[string][]listenerEntry
	log       []EventRecord
	seq       uint64
	logger    Logger
}

// NewEventBus creates an empty event bus.
func NewEventBus(logger Logger) *EventBus {
	return &EventBus{
		listeners: make(map[string][]listenerEntry),
		logger:    logger,
	}
}

// Subscribe registers a callback under (eventType, listenerName). A second
// registration under the same pair overwrites the callback in place,
// keeping the original position in delivery order.
func (b *EventBus) Subscribe(eventType, listenerName string, callback EventCallback) error {
	if eventType == "" {
		return ErrEventTypeEmpty
	}
	if listenerName == "" {
		return ErrListenerNameEmpty
	}
	if callback == nil {
		return fmt.Errorf("%w: listener %q", ErrCallbackNil, listenerName)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.listeners[eventType]
	for i := range entries {
		if entries[i].name == listenerName {
			entries[i].callback = callback
			b.logger.Debug("Listener re-registered", "eventType", eventType, "listener", listenerName)
			return nil
		}
	}
	b.listeners[eventType] = append(entries, listenerEntry{
		name:         listenerName,
		callback:     callback,
		registeredAt: time.Now(),
	})
	b.logger.Debug("Listener registered", "eventType", eventType, "listener", listenerName)
	return nil
}

// Unsubscribe removes the (eventType, listenerName) registration. It is a
// no-op when the registration does not exist.
func (b *EventBus) Unsubscribe(eventType, listenerName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.listeners[eventType]
	for i := range entries {
		if entries[i].name == listenerName {
			b.listeners[eventType] = append(entries[:i], entries[i+1:]...)
			b.logger.Debug("Listener unregistered", "eventType", eventType, "listener", listenerName)
			return
		}
	}
}

// Emit appends one record to the event log — regardless of subscriber
// count — and synchronously invokes every current subscriber for the type
// in registration order. Each invocation is isolated: an error or panic is
// converted to a warning on the returned result and the remaining
// listeners still run.
func (b *EventBus) Emit(ctx context.Context, eventType string, payload any, source string) *Result {
	result, err := NewResult("event.emit", WithModule(source))
	if err != nil {
		// Unreachable with a literal operation name, kept for symmetry.
		r := &Result{Status: StatusFailed, Operation: "event.emit"}
		r.AddError(err.Error())
		return r
	}
	if eventType == "" {
		result.AddError(ErrEventTypeEmpty.Error())
		return result
	}

	envelope := newEnvelope(eventType, source, payload)

	b.mu.Lock()
	b.seq++
	record := EventRecord{Sequence: b.seq, Envelope: envelope}
	b.log = append(b.log, record)
	entries := append([]listenerEntry(nil), b.listeners[eventType]...)
	b.mu.Unlock()

	result.Data = record
	for _, entry := range entries {
		if err := b.deliver(ctx, entry, envelope); err != nil {
			b.logger.Warn("Listener failed", "eventType", eventType, "listener", entry.name, "error", err)
			result.AddWarning(fmt.Sprintf("listener %q: %v", entry.name, err))
		}
	}
	return result
}

// EmitAsync is a fire-and-forget alias for Emit. Delivery is deliberately
// identical to Emit — synchronous, on the caller's stack — to preserve the
// engine's single-threaded execution model; the returned result is simply
// meant to be discarded.
func (b *EventBus) EmitAsync(ctx context.Context, eventType string, payload any, source string) *Result {
	return b.Emit(ctx, eventType, payload, source)
}

// deliver invokes one callback, converting a panic into an error.
func (b *EventBus) deliver(ctx context.Context, entry listenerEntry, event cloudevents.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return entry.callback(ctx, event)
}

// EventLog returns a filtered, optionally tail-truncated view of the
// append-only log. A nil filter returns a copy of the full log.
func (b *EventBus) EventLog(filter *EventFilter) []EventRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	view := make([]EventRecord, 0, len(b.log))
	for _, record := range b.log {
		if filter != nil {
			if filter.Type != "" && record.Type() != filter.Type {
				continue
			}
			if filter.Source != "" && record.Source() != filter.Source {
				continue
			}
			if !filter.Since.IsZero() && record.Time().Before(filter.Since) {
				continue
			}
		}
		view = append(view, record)
	}
	if filter != nil && filter.Limit > 0 && len(view) > filter.Limit {
		view = view[len(view)-filter.Limit:]
	}
	return view
}

// SubscriberCount returns the number of listeners registered for the type.
func (b *EventBus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[eventType])
}

// newEnvelope builds a CloudEvents envelope with a UUIDv7 id (time-ordered
// uniqueness), falling back to v4 if v7 generation fails.
func newEnvelope(eventType, source string, payload any) cloudevents.Event {
	event := cloudevents.NewEvent()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	event.SetID(id.String())
	if source == "" {
		source = "engine"
	}
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if payload != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, payload)
	}
	return event
}
