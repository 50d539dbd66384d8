package scheduling

// appointmentTransitions is the full appointment state machine. Terminal
// statuses have no outgoing edges. The sweeper may no-show a pending
// appointment whose slot elapsed before anyone confirmed it.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusRescheduled, StatusNoShow},
	StatusConfirmed: {StatusCancelled, StatusRescheduled, StatusCompleted, StatusNoShow},
}

// IsTerminal reports whether no further transitions are permitted.
func IsTerminal(s AppointmentStatus) bool {
	switch s {
	case StatusCancelled, StatusRescheduled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
