package alarm

import "time"

// Next returns the eligible record that rings soonest after now, and when.
// A record due in now's own minute counts as already passed. Ties go to
// the earlier record in recs, matching the engine's scan order.
func Next(recs []Record, now time.Time) (Record, time.Time, bool) {
	var (
		best   Record
		bestAt time.Time
		found  bool
	)
	minute := now.Truncate(time.Minute)
	for _, r := range recs {
		if !r.Eligible() {
			continue
		}
		for d := 0; d <= 7; d++ {
			day := now.AddDate(0, 0, d)
			at := time.Date(day.Year(), day.Month(), day.Day(), r.Hour, r.Minute, 0, 0, now.Location())
			if !at.After(minute) {
				continue
			}
			if !r.Days.OneShot() && !r.Days.Has(at.Weekday()) {
				continue
			}
			if !found || at.Before(bestAt) {
				best, bestAt, found = r, at, true
			}
			break
		}
	}
	return best, bestAt, found
}
