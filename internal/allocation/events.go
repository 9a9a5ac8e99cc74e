package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	EventDoctorRegistered  = "DOCTOR_REGISTERED"
	EventDoctorDelayed     = "DOCTOR_DELAYED"
	EventDoctorResumed     = "DOCTOR_RESUMED"
	EventTokenQueued       = "TOKEN_QUEUED"
	EventTokenAssigned     = "TOKEN_ASSIGNED"
	EventTokenRequeued     = "TOKEN_REQUEUED"
	EventTokenReshuffled   = "TOKEN_RESHUFFLED"
	EventTokenCancelled    = "TOKEN_CANCELLED"
	EventTokenNoShow       = "TOKEN_NO_SHOW"
	EventTokenCompleted    = "TOKEN_COMPLETED"
	EventEmergencyAdmitted = "EMERGENCY_ADMITTED"
)

type Event struct {
	EventType string         `json:"event_type"`
	DoctorID  uuid.UUID      `json:"doctor_id"`
	TokenID   *uuid.UUID     `json:"token_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventSink receives events after the mutation that produced them has been
// committed and the doctor's lock released.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// EventHistory reads back events recorded by a durable sink.
type EventHistory interface {
	RecentEvents(ctx context.Context, doctorID uuid.UUID, limit int) ([]Event, error)
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) error { return nil }
