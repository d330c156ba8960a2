package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trialclock/go/internal/timer"
)

// TimerEvent is the envelope pushed to WebSocket clients and published to
// NATS for every change of a run.
type TimerEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RunID     string          `json:"run_id"`    // Run UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of timer event
type EventType string

const (
	EventTypeRunCreated     EventType = "RunCreated"
	EventTypeRenderUpdated  EventType = "RenderUpdated"
	EventTypeSegmentExpired EventType = "SegmentExpired"
	EventTypeRunClosed      EventType = "RunClosed"
)

// RunCreatedPayload announces a new run.
type RunCreatedPayload struct {
	RunID         string    `json:"run_id"`
	LeftTeam      string    `json:"left_team"`
	RightTeam     string    `json:"right_team,omitempty"`
	Parties       int       `json:"parties"`
	AllowOvertime bool      `json:"allow_overtime"`
	Segments      int       `json:"segments"`
	CreatedAt     time.Time `json:"created_at"`
}

// SegmentExpiredPayload is emitted once when a bounded segment reaches zero.
type SegmentExpiredPayload struct {
	SegmentID   int64     `json:"segment_id"`
	SegmentName string    `json:"segment_name"`
	Party       string    `json:"party"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// RunClosedPayload marks a run as torn down.
type RunClosedPayload struct {
	RunID    string    `json:"run_id"`
	ClosedAt time.Time `json:"closed_at"`
}

// Factory stamps events with ids and timestamps from a clock.
type Factory struct {
	clock clockwork.Clock
}

// NewFactory creates a factory. A nil clock means the real clock.
func NewFactory(clock clockwork.Clock) *Factory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Factory{clock: clock}
}

// Now is the factory's notion of the current time.
func (f *Factory) Now() time.Time {
	return f.clock.Now().UTC()
}

// New wraps payload in an envelope for runID.
func (f *Factory) New(runID uuid.UUID, eventType EventType, payload any) (*TimerEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &TimerEvent{
		ID:        uuid.New().String(),
		RunID:     runID.String(),
		Type:      eventType,
		Timestamp: f.Now(),
		Data:      data,
	}, nil
}

// Render wraps a render state.
func (f *Factory) Render(runID uuid.UUID, state timer.RenderState) (*TimerEvent, error) {
	return f.New(runID, EventTypeRenderUpdated, state)
}

// Derived returns the extra events a render state implies beyond
// RenderUpdated. prev is the state before the change.
func (f *Factory) Derived(runID uuid.UUID, prev, next timer.RenderState) []*TimerEvent {
	if prev.Expired || !next.Expired || next.Active == nil {
		return nil
	}
	ev, err := f.New(runID, EventTypeSegmentExpired, SegmentExpiredPayload{
		SegmentID:   next.Active.ID,
		SegmentName: next.Active.Name,
		Party:       string(next.Party),
		ExpiredAt:   f.Now(),
	})
	if err != nil {
		return nil
	}
	return []*TimerEvent{ev}
}

// ParseEventPayload parses event data into the matching payload struct.
func ParseEventPayload(event *TimerEvent) (any, error) {
	switch event.Type {
	case EventTypeRenderUpdated:
		var payload timer.RenderState
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRunCreated:
		var payload RunCreatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSegmentExpired:
		var payload SegmentExpiredPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRunClosed:
		var payload RunClosedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
