package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory implementation of SlotRepository and
// AppointmentRepository. Status transitions are check-and-set under one
// mutex, giving the same single-winner semantics as the conditional
// Postgres updates. Used by tests and local development.
type MemoryRepository struct {
	mu     sync.Mutex
	slots  map[uuid.UUID]Slot
	appts  map[uuid.UUID]Appointment
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots: make(map[uuid.UUID]Slot),
		appts: make(map[uuid.UUID]Appointment),
	}
}

// Slot methods

func (m *MemoryRepository) CreateSlot(ctx context.Context, slot *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.slots {
		if existing.ProviderID != slot.ProviderID {
			continue
		}
		if existing.Status != SlotAvailable && existing.Status != SlotBooked {
			continue
		}
		if existing.StartTime.Before(slot.EndTime) && slot.StartTime.Before(existing.EndTime) {
			return ErrSlotOverlap
		}
	}

	now := time.Now()
	stored := *slot
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.slots[stored.ID] = stored

	slot.CreatedAt = now
	slot.UpdatedAt = now
	return nil
}

func (m *MemoryRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) FindOverlapping(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Slot
	for _, s := range m.slots {
		if s.ProviderID != providerID {
			continue
		}
		if s.Status != SlotAvailable && s.Status != SlotBooked {
			continue
		}
		if s.StartTime.Before(end) && start.Before(s.EndTime) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MemoryRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var result []Slot
	for _, s := range m.slots {
		if s.ProviderID != providerID || s.Status != SlotAvailable {
			continue
		}
		if !s.StartTime.After(now) {
			continue
		}
		if s.StartTime.Before(to) && from.Before(s.EndTime) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MemoryRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || s.Status != from {
		return nil, ErrSlotNotFound
	}

	s.Status = to
	s.UpdatedAt = time.Now()
	m.slots[id] = s
	return &s, nil
}

func (m *MemoryRepository) ReleaseSlot(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || s.Status != SlotBooked || !s.EndTime.After(now) {
		return false, nil
	}

	s.Status = SlotAvailable
	s.UpdatedAt = time.Now()
	m.slots[id] = s
	return true, nil
}

func (m *MemoryRepository) ListElapsed(ctx context.Context, status SlotStatus, before time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Slot
	for _, s := range m.slots {
		if s.Status == status && s.EndTime.Before(before) {
			result = append(result, s)
		}
	}
	return result, nil
}

// Appointment methods

func (m *MemoryRepository) CreatePending(ctx context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stored := *appt
	stored.Status = StatusPending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.appts[stored.ID] = stored

	return &stored, nil
}

func (m *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) GetActiveForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.appts {
		if a.SlotID == slotID && (a.Status == StatusPending || a.Status == StatusConfirmed) {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	m.appts[id] = a
	return &a, nil
}

func (m *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the audit log, oldest first.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}
