package models

import "time"

// BotUser maps to the `bot_users` table.
// Primary key is the Telegram ID; MarzbanUsername is derived from it once
// at first contact and never rewritten afterwards.
type BotUser struct {
	TelegramID       int64     `gorm:"column:telegram_id;primaryKey" json:"telegram_id"`
	MarzbanUsername  string    `gorm:"column:marzban_username;uniqueIndex;size:100" json:"marzban_username"`
	SubscriptionType string    `gorm:"column:subscription_type;size:20" json:"subscription_type"`
	Step             string    `gorm:"column:step;size:100" json:"step"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
}

func (BotUser) TableName() string {
	return "bot_users"
}
