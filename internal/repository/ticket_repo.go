package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"qwqvpn/internal/models"
)

// TicketRepository handles support ticket database operations.
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Save inserts a new ticket and fills in its generated ID.
func (r *TicketRepository) Save(ticket *models.SupportTicket) error {
	return r.db.Create(ticket).Error
}

// FindByUser returns the user's most recent tickets.
func (r *TicketRepository) FindByUser(userID int64, limit int) ([]models.SupportTicket, error) {
	if limit <= 0 {
		limit = 5
	}
	var tickets []models.SupportTicket
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	return tickets, err
}

// FindByID returns a single ticket owned by the given user.
func (r *TicketRepository) FindByID(ticketID uint, userID int64) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := r.db.Where("id = ? AND user_id = ?", ticketID, userID).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindByIDAny returns a ticket regardless of owner, for staff screens.
func (r *TicketRepository) FindByIDAny(ticketID uint) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := r.db.Where("id = ?", ticketID).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindAll returns tickets newest-first, optionally limited.
func (r *TicketRepository) FindAll(limit int) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	q := r.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&tickets).Error
	return tickets, err
}

// CountOpenByUser counts the user's currently open tickets.
func (r *TicketRepository) CountOpenByUser(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&models.SupportTicket{}).
		Where("user_id = ? AND status = ?", userID, models.TicketOpen).
		Count(&count).Error
	return count, err
}

// CountByStatus counts all tickets in the given status.
func (r *TicketRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.SupportTicket{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// UpdateStatus sets the ticket status. Returns false when no row matched.
func (r *TicketRepository) UpdateStatus(ticketID uint, status string) (bool, error) {
	res := r.db.Model(&models.SupportTicket{}).
		Where("id = ?", ticketID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// UpdateResponse stores the staff reply on the ticket.
func (r *TicketRepository) UpdateResponse(ticketID uint, response string) (bool, error) {
	res := r.db.Model(&models.SupportTicket{}).
		Where("id = ?", ticketID).
		Updates(map[string]interface{}{
			"response":   response,
			"updated_at": time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}
