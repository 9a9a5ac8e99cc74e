package allocation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the engine's entry point. It owns the arena of doctors and
// tokens and serializes every mutation per doctor; different doctors never
// contend with each other.
type Service struct {
	mu      sync.RWMutex
	ledgers map[uuid.UUID]*ledger
	order   []uuid.UUID
	owners  map[uuid.UUID]uuid.UUID

	sink    EventSink
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		ledgers: make(map[uuid.UUID]*ledger),
		owners:  make(map[uuid.UUID]uuid.UUID),
		sink:    nopSink{},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterDoctorInput struct {
	ID           uuid.UUID
	Name         string
	Specialty    string
	WorkStart    string // "HH:MM"
	WorkEnd      string // "HH:MM"
	SlotDuration time.Duration
	SlotCapacity int
	// Zero means unset: one emergency per slot, no daily cap.
	EmergencyPerSlot int
	EmergencyPerDay  int
}

// RegisterDoctor creates a doctor and generates today's slot grid.
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Doctor, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: doctor name is required", ErrInvalidInput)
	}
	if in.EmergencyPerSlot < 0 || in.EmergencyPerDay < 0 {
		return nil, fmt.Errorf("%w: emergency ceilings must not be negative", ErrInvalidInput)
	}
	start, err := ParseClock(in.WorkStart)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(in.WorkEnd)
	if err != nil {
		return nil, err
	}

	cfg := DoctorConfig{
		Hours:            WorkingHours{Start: start, End: end},
		SlotDuration:     in.SlotDuration,
		SlotCapacity:     in.SlotCapacity,
		EmergencyPerSlot: 1,
		EmergencyPerDay:  Unbounded,
	}
	if in.EmergencyPerSlot > 0 {
		cfg.EmergencyPerSlot = Ceiling(in.EmergencyPerSlot)
	}
	if in.EmergencyPerDay > 0 {
		cfg.EmergencyPerDay = Ceiling(in.EmergencyPerDay)
	}

	now := s.now()
	slots, err := GenerateSlots(now, cfg.Hours, cfg.SlotDuration, cfg.SlotCapacity)
	if err != nil {
		return nil, fmt.Errorf("generate slots: %w", err)
	}

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	d := &Doctor{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		Specialty: strings.TrimSpace(in.Specialty),
		Config:    cfg,
		Slots:     slots,
		Day:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		CreatedAt: now,
	}

	s.mu.Lock()
	if _, exists := s.ledgers[id]; exists {
		s.mu.Unlock()
		return nil, ErrDoctorExists
	}
	l := newLedger(d, s.now)
	s.ledgers[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.logger.Info().
		Str("doctor_id", id.String()).
		Str("name", d.Name).
		Int("slots", len(slots)).
		Msg("doctor registered")

	s.publish(ctx, []Event{{
		EventType: EventDoctorRegistered,
		DoctorID:  id,
		Payload: map[string]any{
			"name":          d.Name,
			"specialty":     d.Specialty,
			"slots":         len(slots),
			"slot_capacity": cfg.SlotCapacity,
		},
		CreatedAt: now,
	}})

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doctor.snapshot(), nil
}

type SubmitTokenInput struct {
	DoctorID    uuid.UUID
	PatientName string
	PatientAge  int
	Class       string
	Flexibility string
}

// Admission is the result of submitting a token.
type Admission struct {
	Token   Token
	Outcome Outcome
	Moved   *Move
}

// SubmitToken scores a new token, queues it and tries to seat it at once.
// Emergency tokens go through the quota governor instead.
func (s *Service) SubmitToken(ctx context.Context, in SubmitTokenInput) (*Admission, error) {
	class, err := ParseTokenClass(in.Class)
	if err != nil {
		return nil, err
	}
	flex, err := ParseFlexibility(in.Flexibility)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.PatientName) == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrInvalidInput)
	}
	if in.PatientAge < 0 {
		return nil, fmt.Errorf("%w: patient age must not be negative", ErrInvalidInput)
	}

	var adm Admission
	err = s.withDoctor(ctx, in.DoctorID, func(l *ledger) error {
		now := s.now()
		t := &Token{
			ID:          uuid.New(),
			PatientName: strings.TrimSpace(in.PatientName),
			PatientAge:  in.PatientAge,
			Class:       class,
			DoctorID:    l.doctor.ID,
			Flexibility: flex,
			ArrivedAt:   now,
		}
		l.tokens[t.ID] = t

		s.mu.Lock()
		s.owners[t.ID] = l.doctor.ID
		s.mu.Unlock()

		if class == ClassEmergency {
			outcome, mv, err := l.admitEmergency(t)
			if err != nil {
				return err
			}
			adm.Outcome, adm.Moved = outcome, mv
		} else {
			t.Priority = Score(class, now)
			l.enqueue(t)
			l.drainQueue()
			adm.Outcome = OutcomeQueued
			if t.State == StateAssigned {
				adm.Outcome = OutcomeAssigned
			}
		}
		adm.Token = t.snapshot()
		s.metrics.observeQueue(l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit token: %w", err)
	}

	s.metrics.admitted(class, adm.Outcome, adm.Moved != nil)
	ev := s.logger.Info()
	if class == ClassEmergency {
		ev = s.logger.Warn()
	}
	ev.Str("token_id", adm.Token.ID.String()).
		Str("doctor_id", in.DoctorID.String()).
		Str("class", string(class)).
		Str("outcome", string(adm.Outcome)).
		Msg("token submitted")

	return &adm, nil
}

// CancelToken cancels a queued, requeued or assigned token.
func (s *Service) CancelToken(ctx context.Context, id uuid.UUID) (*Token, error) {
	return s.disrupt(ctx, id, "cancel", (*ledger).cancel)
}

// MarkNoShow closes an assigned token whose patient did not turn up.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Token, error) {
	return s.disrupt(ctx, id, "no_show", (*ledger).noShow)
}

// CompleteToken closes an assigned token after the consultation.
func (s *Service) CompleteToken(ctx context.Context, id uuid.UUID) (*Token, error) {
	return s.disrupt(ctx, id, "complete", (*ledger).complete)
}

func (s *Service) disrupt(ctx context.Context, id uuid.UUID, kind string, op func(*ledger, *Token) (int, error)) (*Token, error) {
	var (
		out      Token
		backfill int
	)
	err := s.withToken(ctx, id, func(l *ledger, t *Token) error {
		n, err := op(l, t)
		if err != nil {
			return err
		}
		backfill = n
		out = t.snapshot()
		s.metrics.observeQueue(l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s token: %w", kind, err)
	}

	s.metrics.disrupted(kind, 0)
	s.logger.Info().
		Str("token_id", id.String()).
		Str("state", string(out.State)).
		Int("backfilled", backfill).
		Msg(kind + " handled")
	return &out, nil
}

// DelayOutcome reports a delay in terms of token IDs.
type DelayOutcome struct {
	DoctorID         uuid.UUID
	FirstBlockedSlot int
	Displaced        []uuid.UUID
	Reassigned       int
	StillQueued      int
}

// ApplyDelay blocks the doctor's slots affected by a delay of the given
// length and requeues their occupants.
func (s *Service) ApplyDelay(ctx context.Context, doctorID uuid.UUID, d time.Duration) (*DelayOutcome, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: delay must be positive", ErrInvalidInput)
	}

	out := DelayOutcome{DoctorID: doctorID}
	err := s.withDoctor(ctx, doctorID, func(l *ledger) error {
		res := l.delay(d)
		out.FirstBlockedSlot = res.FirstBlockedSlot
		out.Reassigned = res.Reassigned
		out.StillQueued = res.StillQueued
		out.Displaced = make([]uuid.UUID, 0, len(res.Displaced))
		for _, t := range res.Displaced {
			out.Displaced = append(out.Displaced, t.ID)
		}
		s.metrics.observeQueue(l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply delay: %w", err)
	}

	s.metrics.disrupted("delay", len(out.Displaced))
	s.logger.Warn().
		Str("doctor_id", doctorID.String()).
		Dur("delay", d).
		Int("first_blocked_slot", out.FirstBlockedSlot).
		Int("displaced", len(out.Displaced)).
		Int("reassigned", out.Reassigned).
		Msg("doctor delayed")
	return &out, nil
}

// ResumeDoctor lifts delay blocks and backfills the reopened slots.
func (s *Service) ResumeDoctor(ctx context.Context, doctorID uuid.UUID) (unblocked, assigned int, err error) {
	err = s.withDoctor(ctx, doctorID, func(l *ledger) error {
		unblocked, assigned = l.resume()
		s.metrics.observeQueue(l)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("resume doctor: %w", err)
	}
	s.metrics.disrupted("resume", 0)
	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Int("unblocked", unblocked).
		Int("assigned", assigned).
		Msg("doctor resumed")
	return unblocked, assigned, nil
}

func (s *Service) GetToken(ctx context.Context, id uuid.UUID) (*Token, error) {
	var out Token
	err := s.withToken(ctx, id, func(_ *ledger, t *Token) error {
		out = t.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var out *Doctor
	err := s.withDoctor(ctx, id, func(l *ledger) error {
		out = l.doctor.snapshot()
		return nil
	})
	return out, err
}

// ListDoctors returns every doctor in registration order.
func (s *Service) ListDoctors(ctx context.Context) []Doctor {
	s.mu.RLock()
	ids := append([]uuid.UUID(nil), s.order...)
	s.mu.RUnlock()

	out := make([]Doctor, 0, len(ids))
	for _, id := range ids {
		if d, err := s.GetDoctor(ctx, id); err == nil {
			out = append(out, *d)
		}
	}
	return out
}

// Slots returns a read-only copy of the doctor's slot ledger.
func (s *Service) Slots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	var out []Slot
	err := s.withDoctor(ctx, doctorID, func(l *ledger) error {
		out = make([]Slot, len(l.doctor.Slots))
		for i, sl := range l.doctor.Slots {
			out[i] = sl.snapshot()
		}
		return nil
	})
	return out, err
}

// Queue returns the doctor's waiting tokens in priority order.
func (s *Service) Queue(ctx context.Context, doctorID uuid.UUID) ([]Token, error) {
	var out []Token
	err := s.withDoctor(ctx, doctorID, func(l *ledger) error {
		ids := l.queue.PeekAll()
		out = make([]Token, len(ids))
		for i, id := range ids {
			out[i] = l.tokens[id].snapshot()
		}
		return nil
	})
	return out, err
}

type DoctorSummary struct {
	DoctorID           uuid.UUID
	Slots              int
	AvailableSlots     int
	FullSlots          int
	BlockedSlots       int
	Capacity           int
	Occupied           int
	QueueLength        int
	EmergencyQuotaUsed int
	Tokens             map[TokenState]int
}

func (s *Service) Summary(ctx context.Context, doctorID uuid.UUID) (*DoctorSummary, error) {
	out := DoctorSummary{DoctorID: doctorID, Tokens: make(map[TokenState]int)}
	err := s.withDoctor(ctx, doctorID, func(l *ledger) error {
		for _, sl := range l.doctor.Slots {
			out.Slots++
			out.Capacity += sl.Capacity
			out.Occupied += len(sl.Occupants)
			out.EmergencyQuotaUsed += sl.EmergencyCount
			switch sl.Status {
			case SlotAvailable:
				out.AvailableSlots++
			case SlotFull:
				out.FullSlots++
			case SlotBlocked:
				out.BlockedSlots++
			}
		}
		out.QueueLength = l.queue.Len()
		for _, t := range l.tokens {
			out.Tokens[t.State]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) ledger(id uuid.UUID) (*ledger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[id]
	return l, ok
}

// withDoctor runs fn under the doctor's lock and publishes the events it
// produced once the lock is released.
func (s *Service) withDoctor(ctx context.Context, doctorID uuid.UUID, fn func(l *ledger) error) error {
	l, ok := s.ledger(doctorID)
	if !ok {
		return ErrDoctorNotFound
	}

	l.mu.Lock()
	err := fn(l)
	events := l.takeEvents()
	l.mu.Unlock()

	s.publish(ctx, events)
	return err
}

func (s *Service) withToken(ctx context.Context, id uuid.UUID, fn func(l *ledger, t *Token) error) error {
	s.mu.RLock()
	doctorID, ok := s.owners[id]
	s.mu.RUnlock()
	if !ok {
		return ErrTokenNotFound
	}
	return s.withDoctor(ctx, doctorID, func(l *ledger) error {
		t, ok := l.tokens[id]
		if !ok {
			return ErrTokenNotFound
		}
		return fn(l, t)
	})
}

func (s *Service) publish(ctx context.Context, events []Event) {
	for _, ev := range events {
		if err := s.sink.Publish(ctx, ev); err != nil {
			s.logger.Error().
				Err(err).
				Str("event_type", ev.EventType).
				Str("doctor_id", ev.DoctorID.String()).
				Msg("failed to publish event")
		}
	}
}

func (t *Token) snapshot() Token {
	out := *t
	out.SlotIndex = copyPtr(t.SlotIndex)
	out.AssignedAt = copyPtr(t.AssignedAt)
	out.CompletedAt = copyPtr(t.CompletedAt)
	return out
}

func (s *Slot) snapshot() Slot {
	out := *s
	out.Occupants = append([]uuid.UUID(nil), s.Occupants...)
	return out
}

func (d *Doctor) snapshot() *Doctor {
	out := *d
	out.Slots = make([]*Slot, len(d.Slots))
	for i, sl := range d.Slots {
		cp := sl.snapshot()
		out.Slots[i] = &cp
	}
	return &out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
