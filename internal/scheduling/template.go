package scheduling

import (
	"fmt"
	"time"
)

// Validate checks the template's blocks and slot length. Block times are
// "HH:MM"; each block must be non-empty and chop evenly or leave a
// remainder shorter than one slot.
func (t WeeklyTemplate) Validate() error {
	if t.SlotLength <= 0 {
		return fmt.Errorf("%w: slot length must be positive", ErrInvalidTemplate)
	}
	if t.Kind != KindInPerson && t.Kind != KindTeleconsult {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidKind, t.Kind)
	}
	if len(t.Blocks) == 0 {
		return fmt.Errorf("%w: no blocks", ErrInvalidTemplate)
	}

	for day, blocks := range t.Blocks {
		for _, b := range blocks {
			start, err := parseHHMM(b.Start)
			if err != nil {
				return fmt.Errorf("%w: %s start: %v", ErrInvalidTemplate, day, err)
			}
			end, err := parseHHMM(b.End)
			if err != nil {
				return fmt.Errorf("%w: %s end: %v", ErrInvalidTemplate, day, err)
			}
			if !end.After(start) {
				return fmt.Errorf("%w: %s block %s-%s has no duration", ErrInvalidTemplate, day, b.Start, b.End)
			}
		}
	}

	return nil
}

// expand produces candidate slot windows for every day in [from,to],
// dropping candidates that start at or before now. The caller checks each
// candidate for overlap before inserting.
func (t WeeklyTemplate) expand(from, to, now time.Time) []SlotConflict {
	var candidates []SlotConflict

	startDay := from.Truncate(24 * time.Hour)
	endDay := to.Truncate(24 * time.Hour)

	for day := startDay; !day.After(endDay); day = day.Add(24 * time.Hour) {
		blocks, ok := t.Blocks[day.Weekday()]
		if !ok {
			continue
		}

		for _, b := range blocks {
			startTOD, _ := parseHHMM(b.Start)
			endTOD, _ := parseHHMM(b.End)

			year, month, dayNum := day.Date()
			blockStart := time.Date(year, month, dayNum, startTOD.Hour(), startTOD.Minute(), 0, 0, day.Location())
			blockEnd := time.Date(year, month, dayNum, endTOD.Hour(), endTOD.Minute(), 0, 0, day.Location())

			for s := blockStart; !s.Add(t.SlotLength).After(blockEnd); s = s.Add(t.SlotLength) {
				if !s.After(now) {
					continue
				}
				candidates = append(candidates, SlotConflict{
					StartTime: s,
					EndTime:   s.Add(t.SlotLength),
				})
			}
		}
	}

	return candidates
}

// parseHHMM accepts "HH:MM" with optional trailing seconds/fraction.
func parseHHMM(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("invalid time string: %s", s)
	}
	tt, err := time.Parse("15:04", s[:5])
	if err != nil {
		return time.Time{}, err
	}
	return tt, nil
}
