package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange        = errors.New("invalid time range")
	ErrInvalidKind         = errors.New("invalid slot kind")
	ErrInvalidTemplate     = errors.New("invalid weekly template")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotOverlap         = errors.New("slot overlaps an existing slot")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAlreadyTerminal     = errors.New("appointment is already in a terminal state")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// SlotRepository contains all slot storage interactions. Every status
// change goes through a conditional write: the update applies only if the
// stored status still matches the expected one, so two racing callers can
// never both win.
type SlotRepository interface {
	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// FindOverlapping returns available/booked slots for the provider
	// whose [start,end) window intersects the given one.
	FindOverlapping(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]Slot, error)

	// ListAvailable returns available slots intersecting [from,to) whose
	// start is still in the future.
	ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error)

	// UpdateSlotStatus is the check-and-set primitive. Returns
	// ErrSlotNotFound when no row matched id+from, without distinguishing
	// a missing slot from a lost race; callers disambiguate if they care.
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error)

	// ReleaseSlot transitions booked->available only while the slot's end
	// is still after now. Reports whether the transition applied; a past
	// or non-booked slot is a silent no-op.
	ReleaseSlot(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// ListElapsed returns slots in the given status whose end is before
	// the cutoff. Used by the sweeper.
	ListElapsed(ctx context.Context, status SlotStatus, before time.Time) ([]Slot, error)
}

// AppointmentRepository contains all appointment storage interactions.
type AppointmentRepository interface {
	CreatePending(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetActiveForSlot returns the pending or confirmed appointment
	// referencing the slot, or ErrAppointmentNotFound.
	GetActiveForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus is the conditional transition: applies only
	// while the stored status equals from, otherwise ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
