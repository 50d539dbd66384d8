package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medisched/slot-scheduling/internal/scheduling"
)

func createSlotHandler(registry *scheduling.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		locationID, err := uuid.Parse(req.LocationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "location_id must be a valid UUID")
			return
		}

		slot, err := registry.CreateSlot(r.Context(), providerID, locationID, req.StartTime, req.EndTime, scheduling.SlotKind(req.Kind))
		if err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func bulkCreateSlotsHandler(registry *scheduling.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkCreateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		locationID, err := uuid.Parse(req.LocationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "location_id must be a valid UUID")
			return
		}

		tmpl, err := toTemplate(req.Template)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
			return
		}

		result, err := registry.BulkCreateFromTemplate(r.Context(), providerID, locationID, req.From, req.To, tmpl)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		resp := BulkCreateSlotsResponse{
			Created:   result.Created,
			Conflicts: make([]SlotConflictResponse, 0, len(result.Conflicts)),
		}
		for _, c := range result.Conflicts {
			resp.Conflicts = append(resp.Conflicts, SlotConflictResponse{
				StartTime: c.StartTime,
				EndTime:   c.EndTime,
			})
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func queryAvailableSlotsHandler(registry *scheduling.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
			return
		}

		to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
			return
		}

		slots, err := registry.QueryAvailable(r.Context(), providerID, from, to)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func blockSlotHandler(registry *scheduling.Registry) http.HandlerFunc {
	return slotTransitionHandler(registry.Block)
}

func unblockSlotHandler(registry *scheduling.Registry) http.HandlerFunc {
	return slotTransitionHandler(registry.Unblock)
}

func slotTransitionHandler(op func(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := op(r.Context(), id)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func toSlotResponse(s *scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		LocationID: s.LocationID,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Kind:       string(s.Kind),
		Status:     string(s.Status),
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func toTemplate(req TemplateRequest) (scheduling.WeeklyTemplate, error) {
	tmpl := scheduling.WeeklyTemplate{
		Blocks:     make(map[time.Weekday][]scheduling.TimeBlock),
		SlotLength: time.Duration(req.SlotLengthMinutes) * time.Minute,
		Kind:       scheduling.SlotKind(req.Kind),
	}

	for name, blocks := range req.Blocks {
		day, ok := weekdays[name]
		if !ok {
			return scheduling.WeeklyTemplate{}, fmt.Errorf("unknown weekday %q", name)
		}
		for _, b := range blocks {
			tmpl.Blocks[day] = append(tmpl.Blocks[day], scheduling.TimeBlock{Start: b.Start, End: b.End})
		}
	}

	return tmpl, nil
}

func handleSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, scheduling.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "invalid_kind", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTemplate):
		writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
	case errors.Is(err, scheduling.ErrSlotOverlap):
		writeError(w, http.StatusConflict, "slot_overlap", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
