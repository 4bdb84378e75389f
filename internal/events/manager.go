// Package events emits system events as structured log lines and fans them
// out to in-process subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	DeviationsDetected   EventType = "DEVIATIONS_DETECTED"
	RebalancePlanCreated EventType = "REBALANCE_PLAN_CREATED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler receives emitted events. Handlers run synchronously on the
// emitting goroutine.
type Handler func(Event)

// Manager handles event emission and logging
type Manager struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	log         zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		subscribers: make(map[EventType][]Handler),
		log:         log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers handler for eventType
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[eventType] = append(m.subscribers[eventType], handler)
}

// Emit emits an event and returns it
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) Event {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		m.log.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to marshal event")
		eventJSON = []byte("{}")
	}
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.mu.RLock()
	handlers := append([]Handler(nil), m.subscribers[eventType]...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}

	return event
}

// EmitTyped emits an event from typed data
func (m *Manager) EmitTyped(module string, data EventData) Event {
	return m.Emit(data.EventType(), module, toMap(data))
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) Event {
	return m.EmitTyped(module, &ErrorData{Error: err.Error(), Context: context})
}

func toMap(data EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return out
}
