package repository

import (
	"errors"

	"gorm.io/gorm"

	"qwqvpn/internal/models"
)

// UserRepository handles all bot user database operations.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByTelegramID finds a user by Telegram ID. Returns (nil, nil) when the
// user does not exist.
func (r *UserRepository) FindByTelegramID(telegramID int64) (*models.BotUser, error) {
	var user models.BotUser
	err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByMarzbanUsername finds a user by the remote account name.
func (r *UserRepository) FindByMarzbanUsername(username string) (*models.BotUser, error) {
	var user models.BotUser
	err := r.db.Where("marzban_username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.BotUser) error {
	return r.db.Create(user).Error
}

// UpdateSubscriptionType updates the cached plan kind.
func (r *UserRepository) UpdateSubscriptionType(telegramID int64, subType string) error {
	return r.db.Model(&models.BotUser{}).
		Where("telegram_id = ?", telegramID).
		Update("subscription_type", subType).Error
}

// UpdateStep updates the user's conversation step.
func (r *UserRepository) UpdateStep(telegramID int64, step string) error {
	return r.db.Model(&models.BotUser{}).
		Where("telegram_id = ?", telegramID).
		Update("step", step).Error
}

// FindAll returns every bot user, used by broadcast and cron sweeps.
func (r *UserRepository) FindAll() ([]models.BotUser, error) {
	var users []models.BotUser
	err := r.db.Order("created_at").Find(&users).Error
	return users, err
}

// Count returns the total number of bot users.
func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.BotUser{}).Count(&count).Error
	return count, err
}
