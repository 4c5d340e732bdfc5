package progress

import "time"

const dayFormat = "2006-01-02"

// Streak computes the current consecutive-day streak from a list of active
// days (YYYY-MM-DD, newest first). A streak is alive if the most recent
// active day is today or yesterday; otherwise it is 0.
func Streak(days []string, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	today := now.UTC().Truncate(24 * time.Hour)
	head, err := time.Parse(dayFormat, days[0])
	if err != nil {
		return 0
	}

	gap := int(today.Sub(head).Hours() / 24)
	if gap > 1 {
		return 0
	}

	streak := 1
	prev := head
	for _, d := range days[1:] {
		cur, err := time.Parse(dayFormat, d)
		if err != nil {
			break
		}
		if int(prev.Sub(cur).Hours()/24) != 1 {
			break
		}
		streak++
		prev = cur
	}
	return streak
}
