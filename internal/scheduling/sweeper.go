package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper reclaims slots whose time window elapsed without administrative
// action. It shares no lock with live booking traffic: every transition it
// applies is the same conditional write the registry uses, so a stale
// precondition just skips the row until the next cycle.
type Sweeper struct {
	slots    SlotRepository
	appts    AppointmentRepository
	notifier Notifier
	interval time.Duration

	// grace delays no-showing a booked slot past its end time, so a
	// patient is not penalized the instant the window closes.
	grace time.Duration

	log zerolog.Logger
}

func NewSweeper(slots SlotRepository, appts AppointmentRepository, notifier Notifier, interval, grace time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		slots:    slots,
		appts:    appts,
		notifier: notifier,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "sweeper").Logger(),
	}
}

// SweepStats summarizes one sweep cycle.
type SweepStats struct {
	RetiredIdle   int // elapsed available slots retired
	RetiredBooked int // elapsed booked slots retired
	NoShows       int // appointments marked no_show
	Skipped       int // rows whose precondition no longer held
	Failures      int // rows that errored and were left for the next cycle
}

// Run executes a sweep immediately, then on every interval tick until the
// context is cancelled. Each slot transition is independently atomic, so a
// mid-sweep shutdown is safe.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Dur("grace", s.grace).Msg("sweeper started")

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	stats := s.SweepOnce(runCtx)
	s.log.Info().
		Int("retired_idle", stats.RetiredIdle).
		Int("retired_booked", stats.RetiredBooked).
		Int("no_shows", stats.NoShows).
		Int("skipped", stats.Skipped).
		Int("failures", stats.Failures).
		Dur("took", time.Since(start)).
		Msg("sweep complete")
}

// SweepOnce performs a single cycle. Failures on individual slots are
// counted and logged; one bad row never aborts the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepStats {
	now := time.Now()
	var stats SweepStats

	s.sweepIdle(ctx, now, &stats)
	s.sweepBooked(ctx, now, &stats)

	return stats
}

// sweepIdle retires elapsed slots nobody ever booked.
func (s *Sweeper) sweepIdle(ctx context.Context, now time.Time, stats *SweepStats) {
	elapsed, err := s.slots.ListElapsed(ctx, SlotAvailable, now)
	if err != nil {
		s.log.Error().Err(err).Msg("list elapsed available slots failed")
		stats.Failures++
		return
	}

	for _, slot := range elapsed {
		_, err := s.slots.UpdateSlotStatus(ctx, slot.ID, SlotAvailable, SlotRetired)
		if errors.Is(err, ErrSlotNotFound) {
			// A booking won the race after we listed; next cycle.
			stats.Skipped++
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("slot_id", slot.ID.String()).Msg("retire idle slot failed")
			stats.Failures++
			continue
		}

		stats.RetiredIdle++
		s.notify(ctx, EventSlotRetired, slot.ID.String())
	}
}

// sweepBooked no-shows the live appointment of each elapsed booked slot
// (unless a caller already completed it), then retires the slot.
func (s *Sweeper) sweepBooked(ctx context.Context, now time.Time, stats *SweepStats) {
	elapsed, err := s.slots.ListElapsed(ctx, SlotBooked, now.Add(-s.grace))
	if err != nil {
		s.log.Error().Err(err).Msg("list elapsed booked slots failed")
		stats.Failures++
		return
	}

	for _, slot := range elapsed {
		appt, err := s.appts.GetActiveForSlot(ctx, slot.ID)
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			// Completed or otherwise terminal; nothing to mark.
		case err != nil:
			s.log.Error().Err(err).Str("slot_id", slot.ID.String()).Msg("load active appointment failed")
			stats.Failures++
			continue
		default:
			_, err := s.appts.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusNoShow)
			if errors.Is(err, ErrAppointmentNotFound) {
				// The appointment changed under us; re-examine next cycle.
				stats.Skipped++
				continue
			}
			if err != nil {
				s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("mark no_show failed")
				stats.Failures++
				continue
			}
			stats.NoShows++
			s.notify(ctx, EventAppointmentNoShow, appt.ID.String())
		}

		_, err = s.slots.UpdateSlotStatus(ctx, slot.ID, SlotBooked, SlotRetired)
		if errors.Is(err, ErrSlotNotFound) {
			stats.Skipped++
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("slot_id", slot.ID.String()).Msg("retire booked slot failed")
			stats.Failures++
			continue
		}

		stats.RetiredBooked++
		s.notify(ctx, EventSlotRetired, slot.ID.String())
	}
}

func (s *Sweeper) notify(ctx context.Context, event, id string) {
	if err := s.notifier.Notify(ctx, event, map[string]any{"id": id}); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("notify failed")
	}
}
