package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository implements SlotRepository and AppointmentRepository on
// Postgres. The slots table carries an exclusion constraint on
// (provider_id, tstzrange(start_time, end_time)) restricted to
// available/booked rows, so overlap rejection holds even when two inserts
// race past the application-level check.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.LocationID,
		&s.StartTime,
		&s.EndTime,
		&s.Kind,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reason *string

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.ProviderID,
		&a.Status,
		&reason,
		&a.StartTime,
		&a.EndTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Reason = reason
	return &a, nil
}

func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 23P01 exclusion_violation, 23505 unique_violation
	return pgErr.Code == "23P01" || pgErr.Code == "23505"
}

// Slot methods

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, provider_id, location_id, start_time, end_time, kind, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, slot.ID, slot.ProviderID, slot.LocationID, slot.StartTime, slot.EndTime, slot.Kind, slot.Status)
	if err != nil {
		if isOverlapViolation(err) {
			return ErrSlotOverlap
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, location_id, start_time, end_time, kind, status, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) FindOverlapping(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, location_id, start_time, end_time, kind, status, created_at, updated_at
		FROM slots
		WHERE provider_id = $1
		  AND status IN ('available', 'booked')
		  AND start_time < $3
		  AND end_time > $2
	`, providerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, location_id, start_time, end_time, kind, status, created_at, updated_at
		FROM slots
		WHERE provider_id = $1
		  AND status = 'available'
		  AND start_time < $3
		  AND end_time > $2
		  AND start_time > now()
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, provider_id, location_id, start_time, end_time, kind, status, created_at, updated_at
	`, id, to, from)

	return scanSlot(row)
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET status = 'available',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'booked'
		  AND end_time > $2
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ListElapsed(ctx context.Context, status SlotStatus, before time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, location_id, start_time, end_time, kind, status, created_at, updated_at
		FROM slots
		WHERE status = $1
		  AND end_time < $2
		ORDER BY end_time
	`, status, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Appointment methods

func (r *PgRepository) CreatePending(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, provider_id, status, reason, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, now(), now())
		RETURNING id, slot_id, patient_id, provider_id, status, reason, start_time, end_time, created_at, updated_at
	`, appt.ID, appt.SlotID, appt.PatientID, appt.ProviderID, appt.Reason, appt.StartTime, appt.EndTime)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, slot_id, patient_id, provider_id, status, reason, start_time, end_time, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, slot_id, patient_id, provider_id, status, reason, start_time, end_time, created_at, updated_at
		FROM appointments
		WHERE slot_id = $1
		  AND status IN ('pending', 'confirmed')
	`, slotID)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, slot_id, patient_id, provider_id, status, reason, start_time, end_time, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, slot_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
