package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/slot-scheduling/internal/scheduling"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := scheduling.NewMemoryRepository()
	registry := scheduling.NewRegistry(repo, zerolog.Nop())
	coordinator := scheduling.NewCoordinator(registry, repo, scheduling.NopNotifier{}, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Registry:    registry,
		Coordinator: coordinator,
		Env:         "test",
		Version:     "test",
		Logger:      zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createTestSlot(t *testing.T, srv *httptest.Server, providerID uuid.UUID, hoursAhead int) SlotResponse {
	t.Helper()
	start := time.Now().Add(time.Duration(hoursAhead) * time.Hour).UTC()
	resp := postJSON(t, srv, "/slots", CreateSlotRequest{
		ProviderID: providerID.String(),
		LocationID: uuid.New().String(),
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		Kind:       "in_person",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[SlotResponse](t, resp)
}

func TestSlotEndpoints(t *testing.T) {
	srv := newTestServer(t)
	providerID := uuid.New()

	slot := createTestSlot(t, srv, providerID, 24)
	assert.Equal(t, "available", slot.Status)

	t.Run("invalid range rejected", func(t *testing.T) {
		start := time.Now().Add(24 * time.Hour).UTC()
		resp := postJSON(t, srv, "/slots", CreateSlotRequest{
			ProviderID: providerID.String(),
			LocationID: uuid.New().String(),
			StartTime:  start,
			EndTime:    start.Add(-time.Hour),
			Kind:       "in_person",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("overlap rejected with conflict", func(t *testing.T) {
		resp := postJSON(t, srv, "/slots", CreateSlotRequest{
			ProviderID: providerID.String(),
			LocationID: uuid.New().String(),
			StartTime:  slot.StartTime.Add(10 * time.Minute),
			EndTime:    slot.EndTime.Add(10 * time.Minute),
			Kind:       "in_person",
		})
		body := decode[ErrorResponse](t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "slot_overlap", body.Error)
	})

	t.Run("query available", func(t *testing.T) {
		from := time.Now().UTC().Format(time.RFC3339)
		to := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
		resp, err := http.Get(fmt.Sprintf("%s/providers/%s/slots?from=%s&to=%s", srv.URL, providerID, from, to))
		require.NoError(t, err)
		slots := decode[[]SlotResponse](t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, slots, 1)
		assert.Equal(t, slot.ID, slots[0].ID)
	})

	t.Run("bulk create from template", func(t *testing.T) {
		otherProvider := uuid.New()
		day := time.Now().UTC().AddDate(0, 0, 3).Truncate(24 * time.Hour)
		resp := postJSON(t, srv, "/slots/bulk", BulkCreateSlotsRequest{
			ProviderID: otherProvider.String(),
			LocationID: uuid.New().String(),
			From:       day,
			To:         day.Add(time.Hour),
			Template: TemplateRequest{
				Blocks: map[string][]TemplateBlock{
					weekdayName(day.Weekday()): {{Start: "09:00", End: "10:00"}},
				},
				SlotLengthMinutes: 30,
				Kind:              "teleconsult",
			},
		})
		body := decode[BulkCreateSlotsResponse](t, resp)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, 2, body.Created)
		assert.Empty(t, body.Conflicts)
	})
	t.Run("block and unblock", func(t *testing.T) {
		target := createTestSlot(t, srv, uuid.New(), 72)

		resp := postJSON(t, srv, "/slots/"+target.ID.String()+"/block", nil)
		blocked := decode[SlotResponse](t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "blocked", blocked.Status)

		// A blocked slot cannot be booked.
		resp = postJSON(t, srv, "/appointments", CreateAppointmentRequest{
			SlotID:    target.ID.String(),
			PatientID: uuid.New().String(),
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp = postJSON(t, srv, "/slots/"+target.ID.String()+"/unblock", nil)
		restored := decode[SlotResponse](t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "available", restored.Status)
	})
}

func weekdayName(d time.Weekday) string {
	names := map[time.Weekday]string{
		time.Sunday: "sunday", time.Monday: "monday", time.Tuesday: "tuesday",
		time.Wednesday: "wednesday", time.Thursday: "thursday",
		time.Friday: "friday", time.Saturday: "saturday",
	}
	return names[d]
}

func TestAppointmentEndpoints(t *testing.T) {
	srv := newTestServer(t)
	providerID := uuid.New()
	patientA := uuid.New()
	patientB := uuid.New()

	slot := createTestSlot(t, srv, providerID, 24)

	resp := postJSON(t, srv, "/appointments", CreateAppointmentRequest{
		SlotID:    slot.ID.String(),
		PatientID: patientA.String(),
	})
	appt := decode[AppointmentResponse](t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, slot.ID, appt.SlotID)

	t.Run("double booking conflicts", func(t *testing.T) {
		resp := postJSON(t, srv, "/appointments", CreateAppointmentRequest{
			SlotID:    slot.ID.String(),
			PatientID: patientB.String(),
		})
		body := decode[ErrorResponse](t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "slot_unavailable", body.Error)
	})

	t.Run("invalid patient id", func(t *testing.T) {
		resp := postJSON(t, srv, "/appointments", CreateAppointmentRequest{
			SlotID:    slot.ID.String(),
			PatientID: "not-a-uuid",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown slot", func(t *testing.T) {
		resp := postJSON(t, srv, "/appointments", CreateAppointmentRequest{
			SlotID:    uuid.New().String(),
			PatientID: patientA.String(),
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("get appointment", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/appointments/" + appt.ID.String())
		require.NoError(t, err)
		got := decode[AppointmentResponse](t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, appt.ID, got.ID)
	})

	t.Run("cancel then rebook", func(t *testing.T) {
		resp := postJSON(t, srv, "/appointments/"+appt.ID.String()+"/cancel", nil)
		cancelled := decode[AppointmentResponse](t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "cancelled", cancelled.Status)

		// Cancelling again is a conflict.
		resp = postJSON(t, srv, "/appointments/"+appt.ID.String()+"/cancel", nil)
		body := decode[ErrorResponse](t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "already_terminal", body.Error)

		resp = postJSON(t, srv, "/appointments", CreateAppointmentRequest{
			SlotID:    slot.ID.String(),
			PatientID: patientB.String(),
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})
}

func TestRescheduleEndpoint(t *testing.T) {
	srv := newTestServer(t)
	providerID := uuid.New()
	patientID := uuid.New()

	oldSlot := createTestSlot(t, srv, providerID, 24)
	newSlot := createTestSlot(t, srv, providerID, 48)

	resp := postJSON(t, srv, "/appointments", CreateAppointmentRequest{
		SlotID:    oldSlot.ID.String(),
		PatientID: patientID.String(),
	})
	appt := decode[AppointmentResponse](t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv, "/appointments/"+appt.ID.String()+"/reschedule", RescheduleAppointmentRequest{
		NewSlotID: newSlot.ID.String(),
	})
	moved := decode[AppointmentResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, newSlot.ID, moved.SlotID)
	assert.NotEqual(t, appt.ID, moved.ID)

	t.Run("old appointment is terminal", func(t *testing.T) {
		resp := postJSON(t, srv, "/appointments/"+appt.ID.String()+"/confirm", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}
