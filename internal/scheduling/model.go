package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBlocked   SlotStatus = "blocked"
	SlotBooked    SlotStatus = "booked"
	SlotRetired   SlotStatus = "retired"
)

type SlotKind string

const (
	KindInPerson    SlotKind = "in_person"
	KindTeleconsult SlotKind = "teleconsult"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusNoShow      AppointmentStatus = "no_show"
)

// Slot is a bookable time window for one provider at one location.
type Slot struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	LocationID uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Kind       SlotKind
	Status     SlotStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Elapsed reports whether the slot's window has fully passed.
func (s *Slot) Elapsed(now time.Time) bool {
	return s.EndTime.Before(now)
}

// Appointment is a patient's claim on a slot. StartTime and EndTime are
// copied from the slot at booking time so they survive slot retirement.
type Appointment struct {
	ID         uuid.UUID
	SlotID     uuid.UUID
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Status     AppointmentStatus
	Reason     *string
	StartTime  time.Time
	EndTime    time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeBlock is one contiguous working window within a day, "HH:MM" local
// to the template's location, half-open.
type TimeBlock struct {
	Start string
	End   string
}

// WeeklyTemplate describes a provider's recurring weekly availability.
// Blocks maps weekday to the working windows on that day; each window is
// chopped into SlotLength-sized slots of the given kind.
type WeeklyTemplate struct {
	Blocks     map[time.Weekday][]TimeBlock
	SlotLength time.Duration
	Kind       SlotKind
}

// SlotConflict reports one template expansion that was skipped because it
// overlapped an existing slot.
type SlotConflict struct {
	StartTime time.Time
	EndTime   time.Time
}

// BulkCreateResult is the outcome of a weekly-template expansion. Partial
// success is the normal case: Created counts slots written, Conflicts
// lists the windows that were skipped.
type BulkCreateResult struct {
	Created   int
	Conflicts []SlotConflict
}

// EventLog is an audit record written after successful booking operations.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	SlotID        *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
