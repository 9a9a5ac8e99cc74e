package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
)

// SlotDefaults fill in slot length and capacity when a registration omits them.
type SlotDefaults struct {
	Duration time.Duration
	Capacity int
}

func registerDoctorHandler(svc *allocation.Service, defaults SlotDefaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var id uuid.UUID
		if req.ID != "" {
			parsed, err := uuid.Parse(req.ID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
				return
			}
			id = parsed
		}

		in := allocation.RegisterDoctorInput{
			ID:               id,
			Name:             req.Name,
			Specialty:        req.Specialty,
			WorkStart:        req.WorkStart,
			WorkEnd:          req.WorkEnd,
			SlotDuration:     time.Duration(req.SlotMinutes) * time.Minute,
			SlotCapacity:     req.SlotCapacity,
			EmergencyPerSlot: req.EmergencyPerSlot,
			EmergencyPerDay:  req.EmergencyPerDay,
		}
		if req.SlotMinutes == 0 {
			in.SlotDuration = defaults.Duration
		}
		if req.SlotCapacity == 0 {
			in.SlotCapacity = defaults.Capacity
		}

		d, err := svc.RegisterDoctor(r.Context(), in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDoctorResponse(d, true))
	}
}

func listDoctorsHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors := svc.ListDoctors(r.Context())
		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i], false))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		d, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(d, true))
	}
}

func slotsHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		slots, err := svc.Slots(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp := make([]SlotResponse, len(slots))
		for i, s := range slots {
			resp[i] = toSlotResponse(s)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func queueHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		queue, err := svc.Queue(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp := make([]TokenResponse, len(queue))
		for i, t := range queue {
			resp[i] = toTokenResponse(t)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func summaryHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		sum, err := svc.Summary(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		tokens := make(map[string]int, len(sum.Tokens))
		for state, n := range sum.Tokens {
			tokens[string(state)] = n
		}
		writeJSON(w, http.StatusOK, SummaryResponse{
			DoctorID:           sum.DoctorID,
			Slots:              sum.Slots,
			AvailableSlots:     sum.AvailableSlots,
			FullSlots:          sum.FullSlots,
			BlockedSlots:       sum.BlockedSlots,
			Capacity:           sum.Capacity,
			Occupied:           sum.Occupied,
			QueueLength:        sum.QueueLength,
			EmergencyQuotaUsed: sum.EmergencyQuotaUsed,
			Tokens:             tokens,
		})
	}
}

func delayHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		var req DelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		out, err := svc.ApplyDelay(r.Context(), id, time.Duration(req.Minutes)*time.Minute)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := DelayResponse{
			DoctorID:    out.DoctorID,
			Displaced:   out.Displaced,
			Reassigned:  out.Reassigned,
			StillQueued: out.StillQueued,
		}
		if out.FirstBlockedSlot >= 0 {
			first := out.FirstBlockedSlot
			resp.FirstBlockedSlot = &first
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func resumeHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		unblocked, assigned, err := svc.ResumeDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ResumeResponse{DoctorID: id, Unblocked: unblocked, Assigned: assigned})
	}
}

func eventsHandler(svc *allocation.Service, history allocation.EventHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		if _, err := svc.GetDoctor(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			limit = n
		}

		events, err := history.RecentEvents(r.Context(), id, limit)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if events == nil {
			events = []allocation.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func submitTokenHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		adm, err := svc.SubmitToken(r.Context(), allocation.SubmitTokenInput{
			DoctorID:    doctorID,
			PatientName: req.PatientName,
			PatientAge:  req.PatientAge,
			Class:       req.Class,
			Flexibility: req.Flexibility,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, AdmissionResponse{
			Token:   toTokenResponse(adm.Token),
			Outcome: string(adm.Outcome),
			Moved:   adm.Moved,
		})
	}
}

func getTokenHandler(svc *allocation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_token_id")
		if !ok {
			return
		}
		t, err := svc.GetToken(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTokenResponse(*t))
	}
}

// tokenTransitionHandler serves cancel, no-show and complete, which share
// the same request and response shape.
func tokenTransitionHandler(apply func(context.Context, uuid.UUID) (*allocation.Token, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_token_id")
		if !ok {
			return
		}
		t, err := apply(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTokenResponse(*t))
	}
}

func pathID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, allocation.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", err.Error())
	case errors.Is(err, allocation.ErrDoctorExists):
		writeError(w, http.StatusConflict, "doctor_exists", err.Error())
	case errors.Is(err, allocation.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, allocation.ErrUnknownClass):
		writeError(w, http.StatusBadRequest, "unknown_class", err.Error())
	case errors.Is(err, allocation.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
