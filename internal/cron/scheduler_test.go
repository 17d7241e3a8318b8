package cron

import (
	"strings"
	"testing"
	"time"

	"qwqvpn/internal/panel"
)

func TestReminderText(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	warn := 3 * 24 * time.Hour
	gb := int64(1) << 30

	tests := []struct {
		name string
		acc  panel.PanelUser
		want string // substring, "" means no reminder
	}{
		{
			name: "monthly expiring inside window",
			acc:  panel.PanelUser{Status: "active", ExpireAt: now.Add(48 * time.Hour).Unix()},
			want: "expires in 3 day(s)",
		},
		{
			name: "monthly far from expiry",
			acc:  panel.PanelUser{Status: "active", ExpireAt: now.Add(20 * 24 * time.Hour).Unix()},
			want: "",
		},
		{
			name: "monthly already lapsed",
			acc:  panel.PanelUser{Status: "active", ExpireAt: now.Add(-time.Hour).Unix()},
			want: "",
		},
		{
			name: "monthly without expiry",
			acc:  panel.PanelUser{Status: "active"},
			want: "",
		},
		{
			name: "traffic below ten percent",
			acc:  panel.PanelUser{Status: "active", DataLimit: 100 * gb, UsedTraffic: 95 * gb},
			want: "less than 10%",
		},
		{
			name: "traffic plenty left",
			acc:  panel.PanelUser{Status: "active", DataLimit: 100 * gb, UsedTraffic: 50 * gb},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reminderText(&tt.acc, now, warn)
			if tt.want == "" {
				if got != "" {
					t.Errorf("unexpected reminder: %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("reminder %q missing %q", got, tt.want)
			}
		})
	}
}
