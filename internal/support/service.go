package support

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qwqvpn/internal/models"
	"qwqvpn/internal/repository"
)

// MaxOpenTickets caps the number of simultaneously open tickets per user.
const MaxOpenTickets = 3

// Service owns the support ticket workflow.
type Service struct {
	tickets *repository.TicketRepository
	logger  *zap.Logger
}

func NewService(tickets *repository.TicketRepository, logger *zap.Logger) *Service {
	return &Service{tickets: tickets, logger: logger}
}

// Create files a new ticket. Returns (nil, nil) when the user already has
// MaxOpenTickets open tickets; the quota refusal is a normal outcome.
func (s *Service) Create(userID int64, userName, message string) (*models.SupportTicket, error) {
	open, err := s.tickets.CountOpenByUser(userID)
	if err != nil {
		return nil, err
	}
	if open >= MaxOpenTickets {
		s.logger.Warn("open ticket quota reached",
			zap.Int64("user_id", userID), zap.Int64("open", open))
		return nil, nil
	}

	ticket := &models.SupportTicket{
		UserID:    userID,
		UserName:  userName,
		Message:   message,
		Status:    models.TicketOpen,
		Tracking:  uuid.New().String()[:8],
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.tickets.Save(ticket); err != nil {
		return nil, err
	}

	s.logger.Info("support ticket created",
		zap.Uint("ticket_id", ticket.ID), zap.Int64("user_id", userID))
	return ticket, nil
}

// ListByUser returns the user's recent tickets.
func (s *Service) ListByUser(userID int64) ([]models.SupportTicket, error) {
	return s.tickets.FindByUser(userID, 10)
}

// Get returns a ticket only when it belongs to the given user.
func (s *Service) Get(ticketID uint, userID int64) (*models.SupportTicket, error) {
	return s.tickets.FindByID(ticketID, userID)
}

// GetForStaff returns a ticket regardless of owner.
func (s *Service) GetForStaff(ticketID uint) (*models.SupportTicket, error) {
	return s.tickets.FindByIDAny(ticketID)
}

// ListAll returns tickets for the staff overview.
func (s *Service) ListAll(limit int) ([]models.SupportTicket, error) {
	return s.tickets.FindAll(limit)
}

// Stats returns open/in-progress/closed counts.
func (s *Service) Stats() (open, inProgress, closed int64, err error) {
	if open, err = s.tickets.CountByStatus(models.TicketOpen); err != nil {
		return
	}
	if inProgress, err = s.tickets.CountByStatus(models.TicketInProgress); err != nil {
		return
	}
	closed, err = s.tickets.CountByStatus(models.TicketClosed)
	return
}

// Close marks the ticket closed.
func (s *Service) Close(ticketID uint) (bool, error) {
	return s.tickets.UpdateStatus(ticketID, models.TicketClosed)
}

// Reopen marks the ticket open again.
func (s *Service) Reopen(ticketID uint) (bool, error) {
	return s.tickets.UpdateStatus(ticketID, models.TicketOpen)
}

// SetStatus sets an arbitrary ticket status.
func (s *Service) SetStatus(ticketID uint, status string) (bool, error) {
	return s.tickets.UpdateStatus(ticketID, status)
}

// Reply stores the staff response and closes the ticket.
func (s *Service) Reply(ticketID uint, response string) (bool, error) {
	ok, err := s.tickets.UpdateResponse(ticketID, response)
	if err != nil || !ok {
		return ok, err
	}
	return s.tickets.UpdateStatus(ticketID, models.TicketClosed)
}

// FormatListForUser renders the user's ticket list.
func (s *Service) FormatListForUser(tickets []models.SupportTicket) string {
	if len(tickets) == 0 {
		return "You have no support requests yet."
	}

	var b strings.Builder
	b.WriteString("Your support requests:\n\n")
	for _, t := range tickets {
		marker := "[open]"
		if t.Status == models.TicketClosed {
			marker = "[closed]"
		}
		preview := t.Message
		if len(preview) > 35 {
			preview = preview[:35] + "..."
		}
		fmt.Fprintf(&b, "%s #%d — %s (%s)\n", marker, t.ID, preview, t.CreatedAt.Format("02.01 15:04"))
	}
	b.WriteString("\nTap a request number to open it.")
	return b.String()
}

// FormatDetails renders a single ticket for its owner.
func (s *Service) FormatDetails(t *models.SupportTicket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request #%d\n\n", t.ID)
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Updated: %s\n", t.UpdatedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Status: %s\n\n", strings.ToUpper(t.Status))
	fmt.Fprintf(&b, "Message:\n%s\n\n", t.Message)

	if t.Response != "" {
		fmt.Fprintf(&b, "Support reply:\n%s\n\n", t.Response)
	}
	if t.Status == models.TicketOpen {
		b.WriteString("Support has not replied yet.\n")
	} else if t.Status == models.TicketClosed {
		b.WriteString("This request is closed. Thank you!\n")
	}
	return b.String()
}

// FormatForStaff renders the notification sent to staff on a new ticket.
func (s *Service) FormatForStaff(t *models.SupportTicket) string {
	return fmt.Sprintf(
		"New support request #%d\n\nUser: @%s\nID: %d\nMessage:\n%s\n\nTime: %s",
		t.ID, t.UserName, t.UserID, t.Message, t.CreatedAt.Format("02.01.2006 15:04"))
}
