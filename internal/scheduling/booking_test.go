package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *Registry, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	registry := NewRegistry(repo, zerolog.Nop())
	coord := NewCoordinator(registry, repo, NopNotifier{}, zerolog.Nop())
	return coord, registry, repo
}

func mustCreateSlot(t *testing.T, registry *Registry, providerID uuid.UUID, hoursAhead int) *Slot {
	t.Helper()
	start, end := futureWindow(hoursAhead, 30*time.Minute)
	slot, err := registry.CreateSlot(context.Background(), providerID, uuid.New(), start, end, KindInPerson)
	require.NoError(t, err)
	return slot
}

func TestCreateAppointment(t *testing.T) {
	coord, registry, repo := newTestCoordinator(t)
	ctx := context.Background()
	providerID := uuid.New()
	patientA := uuid.New()
	patientB := uuid.New()

	slot := mustCreateSlot(t, registry, providerID, 24)

	reason := "annual checkup"
	appt, err := coord.CreateAppointment(ctx, patientA, slot.ID, &reason)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, slot.ID, appt.SlotID)
	assert.Equal(t, providerID, appt.ProviderID)
	assert.Equal(t, slot.StartTime, appt.StartTime, "start is copied from the slot")
	assert.Equal(t, slot.EndTime, appt.EndTime)

	got, err := repo.GetSlotByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, got.Status)

	t.Run("second patient loses the slot", func(t *testing.T) {
		_, err := coord.CreateAppointment(ctx, patientB, slot.ID, nil)
		assert.ErrorIs(t, err, ErrSlotUnavailable)

		_, err = repo.GetActiveForSlot(ctx, slot.ID)
		require.NoError(t, err, "the winner's appointment is untouched")
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := coord.CreateAppointment(ctx, patientA, uuid.New(), nil)
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestCreateAppointmentConcurrent(t *testing.T) {
	coord, registry, _ := newTestCoordinator(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, registry, uuid.New(), 24)

	const callers = 40

	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking must succeed")
}

// failingApptRepo forces CreatePending to fail so the reservation
// rollback path is exercised.
type failingApptRepo struct {
	AppointmentRepository
}

func (f *failingApptRepo) CreatePending(ctx context.Context, appt *Appointment) (*Appointment, error) {
	return nil, errors.New("storage down")
}

func TestCreateAppointmentRollsBackReservation(t *testing.T) {
	repo := NewMemoryRepository()
	registry := NewRegistry(repo, zerolog.Nop())
	coord := NewCoordinator(registry, &failingApptRepo{AppointmentRepository: repo}, NopNotifier{}, zerolog.Nop())
	ctx := context.Background()

	slot := mustCreateSlot(t, registry, uuid.New(), 24)

	_, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotUnavailable)

	got, err := repo.GetSlotByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, got.Status, "failed persistence must release the reservation")
}

func TestConfirmAppointment(t *testing.T) {
	coord, registry, _ := newTestCoordinator(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, registry, uuid.New(), 24)
	appt, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
	require.NoError(t, err)

	confirmed, err := coord.ConfirmAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	t.Run("double confirm rejected", func(t *testing.T) {
		_, err := coord.ConfirmAppointment(ctx, appt.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		_, err := coord.ConfirmAppointment(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})
}

func TestCancelAppointment(t *testing.T) {
	coord, registry, repo := newTestCoordinator(t)
	ctx := context.Background()
	providerID := uuid.New()

	slot := mustCreateSlot(t, registry, providerID, 24)
	appt, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
	require.NoError(t, err)

	cancelled, err := coord.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	got, err := repo.GetSlotByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, got.Status, "future slot becomes bookable again")

	t.Run("cancel is terminal", func(t *testing.T) {
		_, err := coord.CancelAppointment(ctx, appt.ID)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
	})

	t.Run("slot is rebookable by another patient", func(t *testing.T) {
		other, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, other.Status)
		assert.NotEqual(t, appt.ID, other.ID)
	})

	t.Run("past slot left for the sweeper", func(t *testing.T) {
		pastSlot := &Slot{
			ID:         uuid.New(),
			ProviderID: providerID,
			LocationID: uuid.New(),
			StartTime:  time.Now().Add(-2 * time.Hour),
			EndTime:    time.Now().Add(-90 * time.Minute),
			Kind:       KindInPerson,
			Status:     SlotAvailable,
		}
		require.NoError(t, repo.CreateSlot(ctx, pastSlot))

		pastAppt, err := coord.CreateAppointment(ctx, uuid.New(), pastSlot.ID, nil)
		require.NoError(t, err)

		_, err = coord.CancelAppointment(ctx, pastAppt.ID)
		require.NoError(t, err)

		got, err := repo.GetSlotByID(ctx, pastSlot.ID)
		require.NoError(t, err)
		assert.Equal(t, SlotBooked, got.Status, "a past slot is never returned to available")
	})
}

func TestRescheduleAppointment(t *testing.T) {
	coord, registry, repo := newTestCoordinator(t)
	ctx := context.Background()
	providerID := uuid.New()
	patientID := uuid.New()

	oldSlot := mustCreateSlot(t, registry, providerID, 24)
	newSlot := mustCreateSlot(t, registry, providerID, 48)

	appt, err := coord.CreateAppointment(ctx, patientID, oldSlot.ID, nil)
	require.NoError(t, err)

	moved, err := coord.RescheduleAppointment(ctx, appt.ID, newSlot.ID)
	require.NoError(t, err)

	assert.NotEqual(t, appt.ID, moved.ID, "reschedule spawns a new appointment")
	assert.Equal(t, newSlot.ID, moved.SlotID)
	assert.Equal(t, patientID, moved.PatientID)
	assert.Equal(t, StatusPending, moved.Status)
	assert.Equal(t, newSlot.StartTime, moved.StartTime)

	old, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, old.Status)

	oldGot, err := repo.GetSlotByID(ctx, oldSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, oldGot.Status)

	newGot, err := repo.GetSlotByID(ctx, newSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, newGot.Status)
}

func TestRescheduleToBookedSlotChangesNothing(t *testing.T) {
	coord, registry, repo := newTestCoordinator(t)
	ctx := context.Background()
	providerID := uuid.New()

	slotA := mustCreateSlot(t, registry, providerID, 24)
	slotB := mustCreateSlot(t, registry, providerID, 48)

	appt, err := coord.CreateAppointment(ctx, uuid.New(), slotA.ID, nil)
	require.NoError(t, err)

	// Another patient holds slot B.
	_, err = coord.CreateAppointment(ctx, uuid.New(), slotB.ID, nil)
	require.NoError(t, err)

	_, err = coord.RescheduleAppointment(ctx, appt.ID, slotB.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	unchanged, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, unchanged.Status)
	assert.Equal(t, slotA.ID, unchanged.SlotID)

	slotAGot, err := repo.GetSlotByID(ctx, slotA.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, slotAGot.Status)
}

func TestRescheduleRollsBackNewReservation(t *testing.T) {
	repo := NewMemoryRepository()
	registry := NewRegistry(repo, zerolog.Nop())
	coord := NewCoordinator(registry, repo, NopNotifier{}, zerolog.Nop())
	ctx := context.Background()
	providerID := uuid.New()

	oldSlot := mustCreateSlot(t, registry, providerID, 24)
	newSlot := mustCreateSlot(t, registry, providerID, 48)

	appt, err := coord.CreateAppointment(ctx, uuid.New(), oldSlot.ID, nil)
	require.NoError(t, err)

	// Replacement persistence fails after the new reservation won,
	// forcing the post-reservation rollback path.
	failing := &failingApptRepo{AppointmentRepository: repo}
	coordFailing := NewCoordinator(registry, failing, NopNotifier{}, zerolog.Nop())

	_, err = coordFailing.RescheduleAppointment(ctx, appt.ID, newSlot.ID)
	require.Error(t, err)

	newGot, err := repo.GetSlotByID(ctx, newSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, newGot.Status, "failed reschedule must release the new slot")

	unchanged, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, unchanged.Status)

	oldGot, err := repo.GetSlotByID(ctx, oldSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, oldGot.Status)
}

func TestCompleteAppointment(t *testing.T) {
	coord, registry, _ := newTestCoordinator(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, registry, uuid.New(), 24)
	appt, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
	require.NoError(t, err)

	t.Run("pending cannot complete", func(t *testing.T) {
		_, err := coord.CompleteAppointment(ctx, appt.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	_, err = coord.ConfirmAppointment(ctx, appt.ID)
	require.NoError(t, err)

	completed, err := coord.CompleteAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	t.Run("completed is terminal", func(t *testing.T) {
		_, err := coord.CancelAppointment(ctx, appt.ID)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
	})
}

func TestBookingWritesEventLog(t *testing.T) {
	coord, registry, repo := newTestCoordinator(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, registry, uuid.New(), 24)
	appt, err := coord.CreateAppointment(ctx, uuid.New(), slot.ID, nil)
	require.NoError(t, err)

	_, err = coord.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)

	events := repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
	assert.Equal(t, EventAppointmentCancelled, events[1].EventType)
	require.NotNil(t, events[0].AppointmentID)
	assert.Equal(t, appt.ID, *events[0].AppointmentID)
}
