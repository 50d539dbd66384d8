package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Coordinator composes slot reservation and appointment persistence into
// atomic user-facing operations. It never leaves a booked slot without a
// live appointment, or a live appointment pointing at a non-booked slot.
type Coordinator struct {
	registry *Registry
	appts    AppointmentRepository
	notifier Notifier
	log      zerolog.Logger
}

func NewCoordinator(registry *Registry, appts AppointmentRepository, notifier Notifier, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		appts:    appts,
		notifier: notifier,
		log:      log.With().Str("component", "booking_coordinator").Logger(),
	}
}

// CreateAppointment reserves the slot and persists a pending appointment
// referencing it. If persistence fails after the reservation won, the
// reservation is rolled back on a cancellation-proof context so a client
// timeout can never strand a booked slot.
func (c *Coordinator) CreateAppointment(ctx context.Context, patientID, slotID uuid.UUID, reason *string) (*Appointment, error) {
	slot, err := c.registry.Reserve(ctx, slotID)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:         uuid.New(),
		SlotID:     slot.ID,
		PatientID:  patientID,
		ProviderID: slot.ProviderID,
		Status:     StatusPending,
		Reason:     reason,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
	}

	created, err := c.appts.CreatePending(ctx, appt)
	if err != nil {
		rbCtx := context.WithoutCancel(ctx)
		if rbErr := c.registry.Release(rbCtx, slot.ID); rbErr != nil {
			c.log.Error().Err(rbErr).Str("slot_id", slot.ID.String()).Msg("rollback release failed, slot left for sweeper")
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	c.logEvent(ctx, EventAppointmentBooked, &created.ID, &slot.ID, map[string]any{
		"patient_id": patientID.String(),
		"start_time": slot.StartTime,
	})
	c.notify(ctx, EventAppointmentBooked, created)

	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (c *Coordinator) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := c.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(appt.Status) {
		return nil, ErrAlreadyTerminal
	}
	if !CanTransition(appt.Status, StatusConfirmed) {
		return nil, ErrInvalidTransition
	}

	updated, err := c.appts.UpdateAppointmentStatus(ctx, id, appt.Status, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	c.logEvent(ctx, EventAppointmentConfirmed, &updated.ID, &updated.SlotID, nil)
	c.notify(ctx, EventAppointmentConfirmed, updated)

	return updated, nil
}

// CancelAppointment terminally cancels the appointment and returns its
// slot to available while the window is still ahead; a past slot is left
// booked for the sweeper.
func (c *Coordinator) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := c.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(appt.Status) {
		return nil, ErrAlreadyTerminal
	}

	updated, err := c.appts.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyTerminal
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	// The cancel is committed; the release must happen even if the caller
	// has already gone away.
	relCtx := context.WithoutCancel(ctx)
	if err := c.registry.Release(relCtx, updated.SlotID); err != nil {
		c.log.Error().Err(err).Str("slot_id", updated.SlotID.String()).Msg("release after cancel failed, slot left for sweeper")
	}

	c.logEvent(ctx, EventAppointmentCancelled, &updated.ID, &updated.SlotID, nil)
	c.notify(ctx, EventAppointmentCancelled, updated)

	return updated, nil
}

// RescheduleAppointment moves a booking to a new slot. The new slot is
// reserved first: if that fails, nothing has changed and the caller just
// gets the error. After the new reservation wins, any failure rolls it
// back before returning so the original booking survives intact.
func (c *Coordinator) RescheduleAppointment(ctx context.Context, id, newSlotID uuid.UUID) (*Appointment, error) {
	appt, err := c.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(appt.Status) {
		return nil, ErrAlreadyTerminal
	}

	newSlot, err := c.registry.Reserve(ctx, newSlotID)
	if err != nil {
		return nil, err
	}

	rollback := func(stage string, cause error) {
		rbCtx := context.WithoutCancel(ctx)
		if rbErr := c.registry.Release(rbCtx, newSlot.ID); rbErr != nil {
			c.log.Error().Err(rbErr).Str("slot_id", newSlot.ID.String()).Msg("reschedule rollback release failed, slot left for sweeper")
		}
		c.log.Warn().Err(cause).Str("appointment_id", id.String()).Str("stage", stage).Msg("reschedule rolled back")
	}

	replacement := &Appointment{
		ID:         uuid.New(),
		SlotID:     newSlot.ID,
		PatientID:  appt.PatientID,
		ProviderID: newSlot.ProviderID,
		Status:     StatusPending,
		Reason:     appt.Reason,
		StartTime:  newSlot.StartTime,
		EndTime:    newSlot.EndTime,
	}

	created, err := c.appts.CreatePending(ctx, replacement)
	if err != nil {
		rollback("create_replacement", err)
		return nil, fmt.Errorf("create rescheduled appointment: %w", err)
	}

	if _, err := c.appts.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusRescheduled); err != nil {
		// The old appointment raced to a terminal state; undo everything.
		rbCtx := context.WithoutCancel(ctx)
		if _, termErr := c.appts.UpdateAppointmentStatus(rbCtx, created.ID, StatusPending, StatusCancelled); termErr != nil {
			c.log.Error().Err(termErr).Str("appointment_id", created.ID.String()).Msg("failed to cancel replacement during rollback")
		}
		rollback("mark_rescheduled", err)
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyTerminal
		}
		return nil, fmt.Errorf("mark appointment rescheduled: %w", err)
	}

	relCtx := context.WithoutCancel(ctx)
	if err := c.registry.Release(relCtx, appt.SlotID); err != nil {
		c.log.Error().Err(err).Str("slot_id", appt.SlotID.String()).Msg("release of old slot failed, slot left for sweeper")
	}

	c.logEvent(ctx, EventAppointmentRescheduled, &created.ID, &newSlot.ID, map[string]any{
		"previous_appointment_id": appt.ID.String(),
		"previous_slot_id":        appt.SlotID.String(),
	})
	c.notify(ctx, EventAppointmentRescheduled, created)

	return created, nil
}

// CompleteAppointment marks a confirmed appointment as completed.
func (c *Coordinator) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := c.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(appt.Status) {
		return nil, ErrAlreadyTerminal
	}
	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, ErrInvalidTransition
	}

	updated, err := c.appts.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	c.logEvent(ctx, EventAppointmentCompleted, &updated.ID, &updated.SlotID, nil)
	c.notify(ctx, EventAppointmentCompleted, updated)

	return updated, nil
}

// GetAppointment loads an appointment by id.
func (c *Coordinator) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return c.appts.GetAppointmentByID(ctx, id)
}

func (c *Coordinator) logEvent(ctx context.Context, eventType string, appointmentID, slotID *uuid.UUID, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			c.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
			data = nil
		}
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		SlotID:        slotID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := c.appts.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		c.log.Error().Err(err).Str("event", eventType).Msg("failed to insert event log")
	}
}

func (c *Coordinator) notify(ctx context.Context, event string, appt *Appointment) {
	payload := map[string]any{
		"appointment_id": appt.ID.String(),
		"slot_id":        appt.SlotID.String(),
		"patient_id":     appt.PatientID.String(),
		"provider_id":    appt.ProviderID.String(),
		"status":         string(appt.Status),
		"start_time":     appt.StartTime,
	}
	if err := c.notifier.Notify(context.WithoutCancel(ctx), event, payload); err != nil {
		c.log.Warn().Err(err).Str("event", event).Msg("notify failed")
	}
}
