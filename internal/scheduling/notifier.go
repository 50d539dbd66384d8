package scheduling

import "context"

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventSlotRetired            = "SLOT_RETIRED"
)

// Notifier is informed after a booking operation commits. It is
// fire-and-forget: a Notify failure is logged by the caller and never
// rolls back the operation.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event string, payload map[string]any) error {
	return nil
}
