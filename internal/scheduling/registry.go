package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry owns the slot inventory and the reserve/release primitive that
// all booking logic depends on. Slot status never changes outside this
// type and the sweeper, and both only apply conditional transitions.
type Registry struct {
	slots SlotRepository
	log   zerolog.Logger
}

func NewRegistry(slots SlotRepository, log zerolog.Logger) *Registry {
	return &Registry{
		slots: slots,
		log:   log.With().Str("component", "slot_registry").Logger(),
	}
}

// CreateSlot adds a single available slot for the provider. The overlap
// check here gives a clean error for the common case; the storage layer's
// exclusion constraint is the backstop for racing inserts.
func (r *Registry) CreateSlot(ctx context.Context, providerID, locationID uuid.UUID, start, end time.Time, kind SlotKind) (*Slot, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}
	if kind != KindInPerson && kind != KindTeleconsult {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	overlapping, err := r.slots.FindOverlapping(ctx, providerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if len(overlapping) > 0 {
		return nil, ErrSlotOverlap
	}

	slot := &Slot{
		ID:         uuid.New(),
		ProviderID: providerID,
		LocationID: locationID,
		StartTime:  start,
		EndTime:    end,
		Kind:       kind,
		Status:     SlotAvailable,
	}

	if err := r.slots.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	return slot, nil
}

// BulkCreateFromTemplate expands a weekly template over [from,to] into
// individual slots. Candidates that collide with existing slots are
// skipped and reported; a conflict never aborts the batch.
func (r *Registry) BulkCreateFromTemplate(ctx context.Context, providerID, locationID uuid.UUID, from, to time.Time, tmpl WeeklyTemplate) (*BulkCreateResult, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}

	now := time.Now()
	if to.Before(now) {
		return nil, fmt.Errorf("%w: range is entirely in the past", ErrInvalidRange)
	}

	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	result := &BulkCreateResult{}

	for _, c := range tmpl.expand(from, to, now) {
		overlapping, err := r.slots.FindOverlapping(ctx, providerID, c.StartTime, c.EndTime)
		if err != nil {
			return nil, fmt.Errorf("check overlap: %w", err)
		}
		if len(overlapping) > 0 {
			result.Conflicts = append(result.Conflicts, c)
			continue
		}

		slot := &Slot{
			ID:         uuid.New(),
			ProviderID: providerID,
			LocationID: locationID,
			StartTime:  c.StartTime,
			EndTime:    c.EndTime,
			Kind:       tmpl.Kind,
			Status:     SlotAvailable,
		}

		err = r.slots.CreateSlot(ctx, slot)
		if errors.Is(err, ErrSlotOverlap) {
			// Lost a race with a concurrent insert; report, keep going.
			result.Conflicts = append(result.Conflicts, c)
			continue
		}
		if err != nil {
			return nil, err
		}

		result.Created++
	}

	r.log.Info().
		Str("provider_id", providerID.String()).
		Int("created", result.Created).
		Int("conflicts", len(result.Conflicts)).
		Msg("bulk slot creation complete")

	return result, nil
}

// QueryAvailable lists the provider's future available slots intersecting
// [from,to). Read-only.
func (r *Registry) QueryAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	return r.slots.ListAvailable(ctx, providerID, from, to)
}

// Reserve atomically transitions the slot available->booked. Exactly one
// of N concurrent callers succeeds; the rest get ErrSlotUnavailable.
func (r *Registry) Reserve(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := r.slots.UpdateSlotStatus(ctx, slotID, SlotAvailable, SlotBooked)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	// The conditional write matched nothing: either the slot does not
	// exist or someone else holds it.
	if _, getErr := r.slots.GetSlotByID(ctx, slotID); getErr != nil {
		if errors.Is(getErr, ErrSlotNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("load slot: %w", getErr)
	}
	return nil, ErrSlotUnavailable
}

// Block takes an available slot out of circulation without retiring it,
// for provider absences or administrative holds. A booked slot cannot be
// blocked; cancel its appointment first.
func (r *Registry) Block(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := r.slots.UpdateSlotStatus(ctx, slotID, SlotAvailable, SlotBlocked)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("block slot: %w", err)
	}

	if _, getErr := r.slots.GetSlotByID(ctx, slotID); getErr != nil {
		if errors.Is(getErr, ErrSlotNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("load slot: %w", getErr)
	}
	return nil, ErrSlotUnavailable
}

// Unblock returns a blocked slot to the available pool.
func (r *Registry) Unblock(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := r.slots.UpdateSlotStatus(ctx, slotID, SlotBlocked, SlotAvailable)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("unblock slot: %w", err)
	}

	if _, getErr := r.slots.GetSlotByID(ctx, slotID); getErr != nil {
		if errors.Is(getErr, ErrSlotNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("load slot: %w", getErr)
	}
	return nil, ErrSlotUnavailable
}

// Release transitions the slot booked->available, unless its window has
// already passed; a past slot stays booked for the sweeper to retire.
func (r *Registry) Release(ctx context.Context, slotID uuid.UUID) error {
	applied, err := r.slots.ReleaseSlot(ctx, slotID, time.Now())
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !applied {
		r.log.Debug().Str("slot_id", slotID.String()).Msg("release skipped, slot past or not booked")
	}
	return nil
}
