package progress

import (
	"testing"
	"time"
)

func TestStreak(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		days []string
		want int
	}{
		{"empty", nil, 0},
		{"today only", []string{"2026-08-30"}, 1},
		{"three consecutive ending today", []string{"2026-08-30", "2026-08-29", "2026-08-28"}, 3},
		{"ending yesterday still alive", []string{"2026-08-29", "2026-08-28"}, 2},
		{"broken two days ago", []string{"2026-08-28", "2026-08-27"}, 0},
		{"gap inside run", []string{"2026-08-30", "2026-08-29", "2026-08-27"}, 2},
		{"bad date", []string{"not-a-date"}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Streak(tc.days, now); got != tc.want {
				t.Errorf("Streak(%v) = %d, want %d", tc.days, got, tc.want)
			}
		})
	}
}
