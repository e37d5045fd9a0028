package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event raised during a deployment transaction.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// AppID is the associated application/deployment id, if applicable.
	AppID string `json:"app_id,omitempty"`

	// ComponentID is the associated component instance id, if applicable.
	ComponentID string `json:"component_id,omitempty"`

	// DeviceID is the associated device id, if applicable.
	DeviceID string `json:"device_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeDeploymentStarted    = "deployment.started"
	EventTypeDeploymentCompleted  = "deployment.completed"
	EventTypeDeploymentFailed     = "deployment.failed"
	EventTypeComponentLoadStarted = "component.load_started"
	EventTypeComponentLoaded      = "component.loaded"
	EventTypeComponentLoadFailed  = "component.load_failed"
	EventTypeDeviceUsageChanged   = "device.usage_changed"
	EventTypePolicyViolation      = "policy.violation"
	EventTypeRollback             = "deployment.rolled_back"
	EventTypeError                = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishDeploymentStarted publishes a deployment started event.
func (ep *EventPublisher) PublishDeploymentStarted(appID, user string) error {
	return ep.Publish(Event{
		Type:    EventTypeDeploymentStarted,
		Source:  "deploy",
		AppID:   appID,
		Message: fmt.Sprintf("deployment %s started by %s", appID, user),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"user": user,
		},
	})
}

// PublishDeploymentCompleted publishes a deployment completed event.
func (ep *EventPublisher) PublishDeploymentCompleted(appID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeDeploymentCompleted,
		Source:  "deploy",
		AppID:   appID,
		Message: fmt.Sprintf("deployment %s completed with status: %s", appID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishDeploymentFailed publishes a deployment failed event.
func (ep *EventPublisher) PublishDeploymentFailed(appID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeDeploymentFailed,
		Source:  "deploy",
		AppID:   appID,
		Message: fmt.Sprintf("deployment %s failed: %s", appID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishComponentLoadStarted publishes a component load-and-execute started event.
func (ep *EventPublisher) PublishComponentLoadStarted(appID, componentID, deviceID string) error {
	return ep.Publish(Event{
		Type:        EventTypeComponentLoadStarted,
		Source:      "deploy",
		AppID:       appID,
		ComponentID: componentID,
		DeviceID:    deviceID,
		Message:     fmt.Sprintf("component %s loading onto device %s", componentID, deviceID),
		Level:       EventLevelInfo,
	})
}

// PublishComponentLoaded publishes a component loaded/executed event.
func (ep *EventPublisher) PublishComponentLoaded(appID, componentID, deviceID string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeComponentLoaded,
		Source:      "deploy",
		AppID:       appID,
		ComponentID: componentID,
		DeviceID:    deviceID,
		Message:     fmt.Sprintf("component %s loaded onto device %s", componentID, deviceID),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishComponentLoadFailed publishes a component load/execute failure event.
func (ep *EventPublisher) PublishComponentLoadFailed(appID, componentID, deviceID, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeComponentLoadFailed,
		Source:      "deploy",
		AppID:       appID,
		ComponentID: componentID,
		DeviceID:    deviceID,
		Message:     fmt.Sprintf("component %s failed to load onto device %s: %s", componentID, deviceID, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishDeviceUsageChanged publishes a device usage state transition event.
func (ep *EventPublisher) PublishDeviceUsageChanged(deviceID, oldState, newState string) error {
	return ep.Publish(Event{
		Type:     EventTypeDeviceUsageChanged,
		Source:   "deploy",
		DeviceID: deviceID,
		Message:  fmt.Sprintf("device %s usage state changed from %s to %s", deviceID, oldState, newState),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"old_state": oldState,
			"new_state": newState,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(appID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy_engine",
		AppID:   appID,
		Message: fmt.Sprintf("deployment %s denied by policy %s: %s", appID, policyName, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// PublishRollback publishes a deployment rollback event.
func (ep *EventPublisher) PublishRollback(appID, step, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRollback,
		Source:  "deploy",
		AppID:   appID,
		Message: fmt.Sprintf("deployment %s rolling back step %s: %s", appID, step, reason),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"step": step,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	// Flush a partial batch every FlushInterval
	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush ticks every FlushInterval until shutdown; it flushes
// nothing itself, since processEvents flushes partial batches on its own
// ticker.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Flushing is done by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByAppID creates a filter that only allows events for a specific deployment.
func FilterByAppID(appID string) EventFilter {
	return func(event Event) bool {
		return event.AppID == appID
	}
}

// FilterByDeviceID creates a filter that only allows events for a specific device.
func FilterByDeviceID(deviceID string) EventFilter {
	return func(event Event) bool {
		return event.DeviceID == deviceID
	}
}
