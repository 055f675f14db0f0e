// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import "testing"

func TestVelocity(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		history []DatedScore
		asOf    string
		want    float64
	}{
		{
			name:    "rising over the week",
			current: 82.5,
			history: []DatedScore{
				{Date: "2026-03-05", Score: 70},
				{Date: "2026-03-07", Score: 75},
				{Date: "2026-03-08", Score: 82.5},
			},
			asOf: "2026-03-08",
			want: 12.5,
		},
		{
			name:    "falling",
			current: 60,
			history: []DatedScore{
				{Date: "2026-03-06", Score: 71.25},
				{Date: "2026-03-08", Score: 60},
			},
			asOf: "2026-03-08",
			want: -11.25,
		},
		{
			name:    "stale history outside the window ignored",
			current: 90,
			history: []DatedScore{
				{Date: "2026-02-10", Score: 20},
				{Date: "2026-03-08", Score: 90},
			},
			asOf: "2026-03-08",
			want: 0,
		},
		{
			name:    "oldest in-window score is the baseline",
			current: 50,
			history: []DatedScore{
				{Date: "2026-03-07", Score: 48},
				{Date: "2026-03-03", Score: 40},
				{Date: "2026-03-08", Score: 50},
			},
			asOf: "2026-03-08",
			want: 10,
		},
		{
			name:    "single observation has no movement",
			current: 55,
			history: []DatedScore{{Date: "2026-03-08", Score: 55}},
			asOf:    "2026-03-08",
			want:    0,
		},
		{
			name:    "no history",
			current: 55,
			asOf:    "2026-03-08",
			want:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Velocity(tt.current, tt.history, tt.asOf); got != tt.want {
				t.Errorf("Velocity = %v, want %v", got, tt.want)
			}
		})
	}
}
