package identity

import (
	"fmt"
	"time"

	"qwqvpn/internal/models"
	"qwqvpn/internal/repository"
)

// Store maps Telegram identities to remote panel account names. The account
// name is derived deterministically and written once; the cached
// subscription type is advisory only and never drives entitlement checks.
type Store struct {
	users  *repository.UserRepository
	prefix string
}

func NewStore(users *repository.UserRepository, prefix string) *Store {
	if prefix == "" {
		prefix = "qwqvpn"
	}
	return &Store{users: users, prefix: prefix}
}

// Username derives the remote account name for a Telegram ID without
// touching the store. Read paths use this so a plain view never creates
// local records as a side effect.
func (s *Store) Username(telegramID int64) string {
	return fmt.Sprintf("%s_%d", s.prefix, telegramID)
}

// GetOrCreate returns the local record for the Telegram ID, creating it on
// first contact. Idempotent; an existing MarzbanUsername is never
// overwritten.
func (s *Store) GetOrCreate(telegramID int64) (*models.BotUser, error) {
	user, err := s.users.FindByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.BotUser{
		TelegramID:      telegramID,
		MarzbanUsername: s.Username(telegramID),
		CreatedAt:       time.Now(),
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetPlanCache records the last purchased plan kind. Callers must treat the
// remote account as authoritative; this value only seeds menu rendering.
func (s *Store) SetPlanCache(telegramID int64, kind string) error {
	if _, err := s.GetOrCreate(telegramID); err != nil {
		return err
	}
	return s.users.UpdateSubscriptionType(telegramID, kind)
}

// ListAll returns every known bot user, for broadcast and cron sweeps.
func (s *Store) ListAll() ([]models.BotUser, error) {
	return s.users.FindAll()
}
