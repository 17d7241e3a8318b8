package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"qwqvpn/internal/config"
	"qwqvpn/internal/identity"
	"qwqvpn/internal/panel"
	"qwqvpn/internal/subscription"
)

// Notifier delivers a plain-text message to a Telegram user. Implemented by
// the bot layer.
type Notifier interface {
	Notify(telegramID int64, text string) error
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	ids      *identity.Store
	panel    panel.Client
	notifier Notifier
	logger   *zap.Logger
}

// New creates a new cron scheduler.
func New(cfg *config.Config, ids *identity.Store, panelClient panel.Client, notifier Notifier, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		ids:      ids,
		panel:    panelClient,
		notifier: notifier,
		logger:   logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Expiry reminders - daily at 12:00
	s.cron.AddFunc("0 0 12 * * *", func() {
		s.logger.Debug("Running: expiry reminders")
		s.expiryReminders()
	})

	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// expiryReminders warns monthly-plan users whose subscription expires
// within the configured window, and traffic-plan users running low on data.
func (s *Scheduler) expiryReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	users, err := s.ids.ListAll()
	if err != nil {
		s.logger.Error("expiry sweep: failed to list users", zap.Error(err))
		return
	}

	warnWindow := time.Duration(s.cfg.Cron.ExpiryWarnDays) * 24 * time.Hour
	now := time.Now()

	for _, u := range users {
		acc, err := s.panel.GetUser(ctx, u.MarzbanUsername)
		if err != nil {
			s.logger.Warn("expiry sweep: panel fetch failed",
				zap.String("username", u.MarzbanUsername), zap.Error(err))
			continue
		}
		if acc == nil || acc.Status != "active" {
			continue
		}

		if text := reminderText(acc, now, warnWindow); text != "" {
			if err := s.notifier.Notify(u.TelegramID, text); err != nil {
				s.logger.Warn("expiry sweep: notify failed",
					zap.Int64("telegram_id", u.TelegramID), zap.Error(err))
			}
		}
	}
}

func reminderText(acc *panel.PanelUser, now time.Time, warnWindow time.Duration) string {
	switch subscription.KindOf(acc) {
	case subscription.PlanMonthly:
		if acc.ExpireAt == 0 {
			return ""
		}
		expire := time.Unix(acc.ExpireAt, 0)
		if expire.Before(now) || expire.Sub(now) > warnWindow {
			return ""
		}
		days := int(expire.Sub(now).Hours()/24) + 1
		return fmt.Sprintf("Your subscription expires in %d day(s), on %s. Renew it to keep access.",
			days, expire.Format("02.01.2006"))

	case subscription.PlanTraffic:
		remaining := acc.DataLimit - acc.UsedTraffic
		if remaining > acc.DataLimit/10 {
			return ""
		}
		return "You have less than 10% of your traffic left. Top up to keep access."
	}
	return ""
}
