package domain

import (
	"testing"
	"time"
)

func TestConversation_ReusableAt(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	testCases := []struct {
		name string
		conv *Conversation
		want bool
	}{
		{"nil", nil, false},
		{"active recent", &Conversation{Status: StatusActive, LastActivity: now.Add(-time.Hour)}, true},
		{"active just inside", &Conversation{Status: StatusActive, LastActivity: now.Add(-window + time.Second)}, true},
		{"active at boundary", &Conversation{Status: StatusActive, LastActivity: now.Add(-window)}, false},
		{"active stale", &Conversation{Status: StatusActive, LastActivity: now.Add(-25 * time.Hour)}, false},
		{"escalated recent", &Conversation{Status: StatusEscalated, LastActivity: now}, false},
		{"resolved recent", &Conversation{Status: StatusResolved, LastActivity: now}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.conv.ReusableAt(now, window); got != tc.want {
				t.Errorf("ReusableAt = %v, want %v", got, tc.want)
			}
		})
	}
}
