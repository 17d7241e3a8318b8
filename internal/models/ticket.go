package models

import "time"

// Ticket statuses.
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketClosed     = "closed"
)

// SupportTicket maps to the `support_tickets` table.
type SupportTicket struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"column:user_id;index" json:"user_id"`
	UserName  string    `gorm:"column:user_name;size:200" json:"user_name"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
	Response  string    `gorm:"column:response;type:text" json:"response"`
	Status    string    `gorm:"column:status;size:20;default:open" json:"status"`
	Tracking  string    `gorm:"column:tracking;size:50" json:"tracking"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SupportTicket) TableName() string {
	return "support_tickets"
}
