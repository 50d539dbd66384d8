package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateSlotRequest struct {
	ProviderID string    `json:"provider_id"`
	LocationID string    `json:"location_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Kind       string    `json:"kind"`
}

type TemplateBlock struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type TemplateRequest struct {
	// Blocks keys are lowercase weekday names ("monday" .. "sunday").
	Blocks            map[string][]TemplateBlock `json:"blocks"`
	SlotLengthMinutes int                        `json:"slot_length_minutes"`
	Kind              string                     `json:"kind"`
}

type BulkCreateSlotsRequest struct {
	ProviderID string          `json:"provider_id"`
	LocationID string          `json:"location_id"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Template   TemplateRequest `json:"template"`
}

type SlotResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	LocationID uuid.UUID `json:"location_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
}

type SlotConflictResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type BulkCreateSlotsResponse struct {
	Created   int                    `json:"created"`
	Conflicts []SlotConflictResponse `json:"conflicts"`
}

type CreateAppointmentRequest struct {
	SlotID    string  `json:"slot_id"`
	PatientID string  `json:"patient_id"`
	Reason    *string `json:"reason,omitempty"`
}

type RescheduleAppointmentRequest struct {
	NewSlotID string `json:"new_slot_id"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	SlotID     uuid.UUID `json:"slot_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Status     string    `json:"status"`
	Reason     *string   `json:"reason,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
