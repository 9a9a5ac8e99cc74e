package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
)

type RegisterDoctorRequest struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name"`
	Specialty        string `json:"specialty"`
	WorkStart        string `json:"work_start"`
	WorkEnd          string `json:"work_end"`
	SlotMinutes      int    `json:"slot_minutes,omitempty"`
	SlotCapacity     int    `json:"slot_capacity,omitempty"`
	EmergencyPerSlot int    `json:"emergency_per_slot,omitempty"`
	EmergencyPerDay  int    `json:"emergency_per_day,omitempty"`
}

type SubmitTokenRequest struct {
	DoctorID    string `json:"doctor_id"`
	PatientName string `json:"patient_name"`
	PatientAge  int    `json:"patient_age"`
	Class       string `json:"class"`
	Flexibility string `json:"flexibility,omitempty"`
}

type DelayRequest struct {
	Minutes int `json:"minutes"`
}

type DoctorResponse struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Specialty        string         `json:"specialty,omitempty"`
	Day              string         `json:"day"`
	WorkStart        string         `json:"work_start"`
	WorkEnd          string         `json:"work_end"`
	SlotMinutes      int            `json:"slot_minutes"`
	SlotCapacity     int            `json:"slot_capacity"`
	EmergencyPerSlot int            `json:"emergency_per_slot"`
	EmergencyPerDay  int            `json:"emergency_per_day"` // -1 when unbounded
	SlotCount        int            `json:"slot_count"`
	Slots            []SlotResponse `json:"slots,omitempty"`
}

type SlotResponse struct {
	Index          int         `json:"index"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Capacity       int         `json:"capacity"`
	Occupants      []uuid.UUID `json:"occupants"`
	Status         string      `json:"status"`
	EmergencyCount int         `json:"emergency_count"`
}

type TokenResponse struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	PatientName string     `json:"patient_name"`
	PatientAge  int        `json:"patient_age"`
	Class       string     `json:"class"`
	State       string     `json:"state"`
	Priority    float64    `json:"priority"`
	Flexibility string     `json:"flexibility,omitempty"`
	SlotIndex   *int       `json:"slot_index,omitempty"`
	ArrivedAt   time.Time  `json:"arrived_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type AdmissionResponse struct {
	Token   TokenResponse    `json:"token"`
	Outcome string           `json:"outcome"`
	Moved   *allocation.Move `json:"moved,omitempty"`
}

type DelayResponse struct {
	DoctorID         uuid.UUID   `json:"doctor_id"`
	FirstBlockedSlot *int        `json:"first_blocked_slot,omitempty"`
	Displaced        []uuid.UUID `json:"displaced"`
	Reassigned       int         `json:"reassigned"`
	StillQueued      int         `json:"still_queued"`
}

type ResumeResponse struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Unblocked int       `json:"unblocked"`
	Assigned  int       `json:"assigned"`
}

type SummaryResponse struct {
	DoctorID           uuid.UUID      `json:"doctor_id"`
	Slots              int            `json:"slots"`
	AvailableSlots     int            `json:"available_slots"`
	FullSlots          int            `json:"full_slots"`
	BlockedSlots       int            `json:"blocked_slots"`
	Capacity           int            `json:"capacity"`
	Occupied           int            `json:"occupied"`
	QueueLength        int            `json:"queue_length"`
	EmergencyQuotaUsed int            `json:"emergency_quota_used"`
	Tokens             map[string]int `json:"tokens"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toDoctorResponse(d *allocation.Doctor, withSlots bool) DoctorResponse {
	cfg := d.Config
	resp := DoctorResponse{
		ID:               d.ID,
		Name:             d.Name,
		Specialty:        d.Specialty,
		Day:              d.Day.Format(time.DateOnly),
		WorkStart:        clock(cfg.Hours.Start),
		WorkEnd:          clock(cfg.Hours.End),
		SlotMinutes:      int(cfg.SlotDuration / time.Minute),
		SlotCapacity:     cfg.SlotCapacity,
		EmergencyPerSlot: int(cfg.EmergencyPerSlot),
		EmergencyPerDay:  int(cfg.EmergencyPerDay),
		SlotCount:        len(d.Slots),
	}
	if withSlots {
		resp.Slots = make([]SlotResponse, len(d.Slots))
		for i, s := range d.Slots {
			resp.Slots[i] = toSlotResponse(*s)
		}
	}
	return resp
}

func toSlotResponse(s allocation.Slot) SlotResponse {
	occ := s.Occupants
	if occ == nil {
		occ = []uuid.UUID{}
	}
	return SlotResponse{
		Index:          s.Index,
		Start:          s.Start,
		End:            s.End,
		Capacity:       s.Capacity,
		Occupants:      occ,
		Status:         string(s.Status),
		EmergencyCount: s.EmergencyCount,
	}
}

func toTokenResponse(t allocation.Token) TokenResponse {
	return TokenResponse{
		ID:          t.ID,
		DoctorID:    t.DoctorID,
		PatientName: t.PatientName,
		PatientAge:  t.PatientAge,
		Class:       string(t.Class),
		State:       string(t.State),
		Priority:    t.Priority,
		Flexibility: t.Flexibility.String(),
		SlotIndex:   t.SlotIndex,
		ArrivedAt:   t.ArrivedAt,
		AssignedAt:  t.AssignedAt,
		CompletedAt: t.CompletedAt,
	}
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
