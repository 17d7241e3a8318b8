package subscription

import (
	"math"
	"time"

	"qwqvpn/internal/panel"
)

// PlanKind discriminates the two mutually exclusive plan families. An
// account with a positive data limit is a traffic plan; everything else is
// treated as monthly. The data limit is the single authoritative
// discriminator everywhere in this package.
type PlanKind string

const (
	PlanMonthly PlanKind = "monthly"
	PlanTraffic PlanKind = "traffic"
)

const bytesPerGB = int64(1) << 30

// View is a read-only projection of a panel account, recomputed from the
// remote state on every read and never persisted.
type View struct {
	Username        string
	PlanKind        PlanKind
	Active          bool
	Status          string
	ExpireAt        *time.Time
	UsedGB          float64
	LimitGB         *float64 // nil = unlimited
	AccessURL       string
	MonthsRemaining int // 0 = no estimate
}

// KindOf classifies a panel account by plan kind.
func KindOf(acc *panel.PanelUser) PlanKind {
	if acc.DataLimit > 0 {
		return PlanTraffic
	}
	return PlanMonthly
}

// NewView builds a View from a panel account and an optionally resolved
// access URL. accessURL may be empty when resolution was skipped or
// degraded.
func NewView(acc *panel.PanelUser, accessURL string, now time.Time) *View {
	v := &View{
		Username:  acc.Username,
		PlanKind:  KindOf(acc),
		Active:    acc.Status == "active",
		Status:    acc.Status,
		UsedGB:    roundGB(acc.UsedTraffic),
		AccessURL: accessURL,
	}

	if acc.DataLimit > 0 {
		limit := roundGB(acc.DataLimit)
		v.LimitGB = &limit
	}

	if acc.ExpireAt > 0 {
		expire := time.Unix(acc.ExpireAt, 0)
		v.ExpireAt = &expire
		if expire.After(now) {
			days := expire.Sub(now).Hours() / 24
			months := int(math.Round(days / 30))
			if months < 1 {
				months = 1
			}
			v.MonthsRemaining = months
		}
	}

	return v
}

func roundGB(bytes int64) float64 {
	return math.Round(float64(bytes)/float64(bytesPerGB)*100) / 100
}
