package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"qwqvpn/internal/identity"
	"qwqvpn/internal/panel"
)

// Purchase quantity bounds.
const (
	MinMonths = 1
	MaxMonths = 12
	MinGB     = 1
	MaxGB     = 100
)

// ErrorKind tags the failure class of an Outcome. NotFound and PlanConflict
// are expected business outcomes; the other kinds are operational failures.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindPlanConflict       ErrorKind = "plan_conflict"
	KindPanelFailure       ErrorKind = "panel_failure"
	KindPersistenceFailure ErrorKind = "persistence_failure"
	KindInvalidIntent      ErrorKind = "invalid_intent"
)

// Intent is a single purchase request: months for monthly plans, gigabytes
// for traffic plans. Transient, never persisted.
type Intent struct {
	TelegramID int64
	Kind       PlanKind
	Quantity   int
}

// Outcome is the normalized result of a purchase or view request.
type Outcome struct {
	Success     bool
	View        *View
	ErrorKind   ErrorKind
	ErrorDetail string
}

func failure(kind ErrorKind, detail string) Outcome {
	return Outcome{ErrorKind: kind, ErrorDetail: detail}
}

// Service reconciles purchase intents against the remote panel account.
// The panel is the single source of truth for plan state; the local store
// only carries the identity mapping and an advisory plan-kind cache.
type Service struct {
	panel  panel.Client
	ids    *identity.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(panelClient panel.Client, ids *identity.Store, logger *zap.Logger) *Service {
	return &Service{
		panel:  panelClient,
		ids:    ids,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetView returns the user's current subscription state. A missing remote
// account is a normal outcome, not an error. URL resolution failure
// degrades the view instead of failing the read; the URL is a convenience
// field, not account existence.
func (s *Service) GetView(ctx context.Context, telegramID int64) Outcome {
	username := s.ids.Username(telegramID)

	acc, err := s.panel.GetUser(ctx, username)
	if err != nil {
		s.logger.Error("failed to fetch panel account",
			zap.String("username", username), zap.Error(err))
		return failure(KindPanelFailure, err.Error())
	}
	if acc == nil {
		return failure(KindNotFound, "subscription not found")
	}

	accessURL, err := s.panel.GetSubscriptionLink(ctx, username)
	if err != nil {
		s.logger.Warn("subscription link unavailable, degrading view",
			zap.String("username", username), zap.Error(err))
		accessURL = ""
	}

	return Outcome{Success: true, View: NewView(acc, accessURL, s.now())}
}

// Purchase applies a purchase intent against the account's current remote
// state: create when absent, extend or top up when compatible, reject on a
// plan-kind conflict. Conflicts are decided on the fresh panel state, never
// on the cached plan kind.
func (s *Service) Purchase(ctx context.Context, intent Intent) Outcome {
	if err := validateIntent(intent); err != nil {
		return failure(KindInvalidIntent, err.Error())
	}

	record, err := s.ids.GetOrCreate(intent.TelegramID)
	if err != nil {
		s.logger.Error("failed to load local user record",
			zap.Int64("telegram_id", intent.TelegramID), zap.Error(err))
		return failure(KindPersistenceFailure, err.Error())
	}
	username := record.MarzbanUsername

	acc, err := s.panel.GetUser(ctx, username)
	if err != nil {
		s.logger.Error("failed to fetch panel account before purchase",
			zap.String("username", username), zap.Error(err))
		return failure(KindPanelFailure, err.Error())
	}

	switch intent.Kind {
	case PlanMonthly:
		err = s.applyMonthly(ctx, username, intent, acc)
	case PlanTraffic:
		err = s.applyTraffic(ctx, username, intent, acc)
	default:
		return failure(KindInvalidIntent, fmt.Sprintf("unknown plan kind %q", intent.Kind))
	}
	if err != nil {
		if conflict, ok := err.(*conflictError); ok {
			return failure(KindPlanConflict, conflict.Error())
		}
		s.logger.Error("panel write failed during purchase",
			zap.String("username", username), zap.Error(err))
		return failure(KindPanelFailure, err.Error())
	}

	// The cache is written only after the remote write is confirmed, so a
	// failed panel call never leaves the local store ahead of the panel.
	if err := s.ids.SetPlanCache(intent.TelegramID, string(intent.Kind)); err != nil {
		s.logger.Error("failed to persist plan cache after purchase",
			zap.Int64("telegram_id", intent.TelegramID), zap.Error(err))
		return failure(KindPersistenceFailure, err.Error())
	}

	// Re-fetch to return authoritative post-write values.
	acc, err = s.panel.GetUser(ctx, username)
	if err != nil {
		s.logger.Error("failed to re-fetch panel account after purchase",
			zap.String("username", username), zap.Error(err))
		return failure(KindPanelFailure, err.Error())
	}
	if acc == nil {
		return failure(KindPanelFailure, "account missing after successful write")
	}

	accessURL, err := s.panel.GetSubscriptionLink(ctx, username)
	if err != nil {
		s.logger.Error("failed to resolve access URL after purchase",
			zap.String("username", username), zap.Error(err))
		return failure(KindPanelFailure, err.Error())
	}

	s.logger.Info("purchase applied",
		zap.Int64("telegram_id", intent.TelegramID),
		zap.String("plan", string(intent.Kind)),
		zap.Int("quantity", intent.Quantity))

	return Outcome{Success: true, View: NewView(acc, accessURL, s.now())}
}

// ResolveAccessURL refreshes the durable link for an account, independent
// of a purchase.
func (s *Service) ResolveAccessURL(ctx context.Context, username string) (string, error) {
	return s.panel.GetSubscriptionLink(ctx, username)
}

type conflictError struct{ msg string }

func (e *conflictError) Error() string { return e.msg }

func (s *Service) applyMonthly(ctx context.Context, username string, intent Intent, acc *panel.PanelUser) error {
	now := s.now()
	addDays := 30 * intent.Quantity

	if acc == nil {
		expire := now.AddDate(0, 0, addDays)
		_, err := s.panel.CreateUser(ctx, panel.CreateUserRequest{
			Username:       username,
			ExpireAt:       expire.Unix(),
			DataLimit:      0,
			DataLimitReset: "no_reset",
			Status:         "active",
			Note:           fmt.Sprintf("Monthly plan %dm, Telegram ID: %d", intent.Quantity, intent.TelegramID),
		})
		return err
	}

	if KindOf(acc) == PlanTraffic {
		return &conflictError{msg: "account holds a traffic plan; time cannot be purchased until staff clears the plan"}
	}

	// Extend additively while the current expiry is still in the future;
	// a lapsed or never-set expiry restarts the clock from now.
	base := now
	if acc.ExpireAt > 0 {
		if current := time.Unix(acc.ExpireAt, 0); current.After(now) {
			base = current
		}
	}
	expire := base.AddDate(0, 0, addDays).Unix()

	_, err := s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{
		ExpireAt: &expire,
		Status:   "active",
	})
	return err
}

func (s *Service) applyTraffic(ctx context.Context, username string, intent Intent, acc *panel.PanelUser) error {
	addBytes := int64(intent.Quantity) * bytesPerGB

	if acc == nil {
		_, err := s.panel.CreateUser(ctx, panel.CreateUserRequest{
			Username:       username,
			DataLimit:      addBytes,
			DataLimitReset: "no_reset",
			Status:         "active",
			Note:           fmt.Sprintf("Traffic plan %dGB, Telegram ID: %d", intent.Quantity, intent.TelegramID),
		})
		return err
	}

	if KindOf(acc) == PlanMonthly && acc.ExpireAt > 0 {
		return &conflictError{msg: "account holds a monthly plan; traffic cannot be purchased until staff clears the plan"}
	}

	newLimit := acc.DataLimit + addBytes
	_, err := s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{
		DataLimit: &newLimit,
		Status:    "active",
	})
	return err
}

func validateIntent(intent Intent) error {
	switch intent.Kind {
	case PlanMonthly:
		if intent.Quantity < MinMonths || intent.Quantity > MaxMonths {
			return fmt.Errorf("months must be between %d and %d", MinMonths, MaxMonths)
		}
	case PlanTraffic:
		if intent.Quantity < MinGB || intent.Quantity > MaxGB {
			return fmt.Errorf("gigabytes must be between %d and %d", MinGB, MaxGB)
		}
	default:
		return fmt.Errorf("unknown plan kind %q", intent.Kind)
	}
	return nil
}
