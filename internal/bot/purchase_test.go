package bot

import (
	"strings"
	"testing"
	"time"

	"qwqvpn/internal/subscription"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    subscription.PlanKind
		qty     int
		id      int64
		wantErr bool
	}{
		{"monthly", "monthly:3:123456", subscription.PlanMonthly, 3, 123456, false},
		{"traffic", "traffic:20:42", subscription.PlanTraffic, 20, 42, false},
		{"unknown kind", "weekly:1:42", "", 0, 0, true},
		{"missing part", "monthly:3", "", 0, 0, true},
		{"bad quantity", "monthly:x:42", "", 0, 0, true},
		{"bad id", "monthly:3:abc", "", 0, 0, true},
		{"empty", "", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, qty, id, err := parsePayload(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePayload: %v", err)
			}
			if kind != tt.kind || qty != tt.qty || id != tt.id {
				t.Errorf("got %s/%d/%d, want %s/%d/%d", kind, qty, id, tt.kind, tt.qty, tt.id)
			}
		})
	}
}

func TestRenderViewMonthly(t *testing.T) {
	expire := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	v := &subscription.View{
		PlanKind:        subscription.PlanMonthly,
		Active:          true,
		ExpireAt:        &expire,
		MonthsRemaining: 1,
		AccessURL:       "https://p/sub/x",
	}

	out := renderView(v)
	for _, want := range []string{"monthly", "01.04.2026", "Status: active", "https://p/sub/x"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered card missing %q:\n%s", want, out)
		}
	}
}

func TestRenderViewTraffic(t *testing.T) {
	limit := 10.0
	v := &subscription.View{
		PlanKind: subscription.PlanTraffic,
		Active:   false,
		UsedGB:   9.5,
		LimitGB:  &limit,
	}

	out := renderView(v)
	for _, want := range []string{"traffic", "9.50 / 10.00 GB", "Status: inactive"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered card missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Access link") {
		t.Error("card without a URL should not render an access link section")
	}
}
