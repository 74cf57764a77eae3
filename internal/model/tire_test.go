package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from TireStatus
		to   TireStatus
		want bool
	}{
		{"available to reserved", StatusAvailable, StatusReserved, true},
		{"available to mounted", StatusAvailable, StatusMounted, true},
		{"available to defective", StatusAvailable, StatusDefective, true},
		{"available to retired", StatusAvailable, StatusRetired, true},
		{"reserved to mounted", StatusReserved, StatusMounted, true},
		{"reserved back to available", StatusReserved, StatusAvailable, true},
		{"mounted to available", StatusMounted, StatusAvailable, true},
		{"mounted to retired", StatusMounted, StatusRetired, false},
		{"mounted to reserved", StatusMounted, StatusReserved, false},
		{"mounted to defective", StatusMounted, StatusDefective, false},
		{"defective to available", StatusDefective, StatusAvailable, true},
		{"defective to retired", StatusDefective, StatusRetired, true},
		{"defective to mounted", StatusDefective, StatusMounted, false},
		{"retired is terminal", StatusRetired, StatusAvailable, false},
		{"retired to mounted", StatusRetired, StatusMounted, false},
		{"same status allowed", StatusMounted, StatusMounted, true},
		{"unknown status", TireStatus("bogus"), StatusAvailable, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestAgeInWeeks(t *testing.T) {
	now := time.Date(2023, time.January, 16, 12, 0, 0, 0, time.UTC)

	tire := &Tire{ManufactureWeek: 1, ManufactureYear: 2023}
	assert.Equal(t, 2, tire.AgeInWeeks(now))

	noStamp := &Tire{}
	assert.Equal(t, -1, noStamp.AgeInWeeks(now))

	partial := &Tire{ManufactureYear: 2023}
	assert.Equal(t, -1, partial.AgeInWeeks(now))

	future := &Tire{ManufactureWeek: 40, ManufactureYear: 2023}
	assert.Equal(t, 0, future.AgeInWeeks(now))
}
