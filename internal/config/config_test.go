package config

import "testing"

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int64
	}{
		{"empty", "", nil},
		{"single", "123", []int64{123}},
		{"multiple with spaces", "1, 2 ,3", []int64{1, 2, 3}},
		{"skips garbage", "1,abc,,2", []int64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseIDList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestStaffChecks(t *testing.T) {
	cfg := BotConfig{
		AdminIDs:   []int64{10},
		SupportIDs: []int64{10, 20},
	}

	if !cfg.IsAdmin(10) || cfg.IsAdmin(20) {
		t.Error("IsAdmin misclassified")
	}
	// Support means support-only: an admin listed in both is not "support".
	if cfg.IsSupport(10) {
		t.Error("admin should not count as support-only")
	}
	if !cfg.IsSupport(20) {
		t.Error("support id not recognized")
	}
	if !cfg.HasSupportAccess(10) || !cfg.HasSupportAccess(20) || cfg.HasSupportAccess(30) {
		t.Error("HasSupportAccess misclassified")
	}
}
