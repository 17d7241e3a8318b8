package bot

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"qwqvpn/internal/models"
	"qwqvpn/internal/support"
)

func (b *Bot) showSupportMenu(c tele.Context) error {
	return c.Edit("Support. What would you like to do?", b.supportMenu())
}

func (b *Bot) startTicketCreation(c tele.Context) error {
	telegramID := c.Sender().ID
	_ = b.users.UpdateStep(telegramID, "ticket_message")
	return c.Send("Describe your problem in one message:")
}

// handleTicketMessage files a new ticket from the user's text and notifies
// staff.
func (b *Bot) handleTicketMessage(c tele.Context, text string) error {
	telegramID := c.Sender().ID
	_ = b.users.UpdateStep(telegramID, "none")

	if text == "" {
		return c.Send("The message is empty, please try again.")
	}

	ticket, err := b.supportSvc.Create(telegramID, c.Sender().Username, text)
	if err != nil {
		b.logger.Error("Failed to create ticket", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return c.Send("Could not create the request right now. Please try again later.")
	}
	if ticket == nil {
		return c.Send(
			"You already have " + strconv.Itoa(support.MaxOpenTickets) +
				" open requests. Please wait for a reply before creating another one.")
	}

	b.notifyStaff(b.supportSvc.FormatForStaff(ticket))

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("My requests", "support_list")))
	return c.Send("Request #"+strconv.FormatUint(uint64(ticket.ID), 10)+" created. We will reply soon.", menu)
}

func (b *Bot) showUserTickets(c tele.Context) error {
	telegramID := c.Sender().ID

	tickets, err := b.supportSvc.ListByUser(telegramID)
	if err != nil {
		b.logger.Error("Failed to list tickets", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return c.Send("Could not load your requests right now.")
	}

	ids := make([]uint, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return c.Edit(b.supportSvc.FormatListForUser(tickets), b.ticketListMenu(ids))
}

func (b *Bot) showTicketDetails(c tele.Context, data string) error {
	telegramID := c.Sender().ID

	ticketID, err := parseTicketID(data, "ticket_")
	if err != nil {
		return nil
	}

	ticket, err := b.supportSvc.Get(ticketID, telegramID)
	if err != nil {
		b.logger.Error("Failed to load ticket", zap.Uint("ticket_id", ticketID), zap.Error(err))
		return c.Send("Could not load the request right now.")
	}
	if ticket == nil {
		return c.Send("Request not found.")
	}

	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	if ticket.Status != models.TicketClosed {
		rows = append(rows, menu.Row(
			menu.Data("Close request", "ticket_close_"+strconv.FormatUint(uint64(ticket.ID), 10))))
	}
	rows = append(rows, menu.Row(menu.Data("Back", "support_list")))
	menu.Inline(rows...)

	return c.Edit(b.supportSvc.FormatDetails(ticket), menu)
}

func (b *Bot) closeOwnTicket(c tele.Context, data string) error {
	telegramID := c.Sender().ID

	ticketID, err := parseTicketID(data, "ticket_close_")
	if err != nil {
		return nil
	}

	// Only the owner may close through this path.
	ticket, err := b.supportSvc.Get(ticketID, telegramID)
	if err != nil || ticket == nil {
		return c.Send("Request not found.")
	}

	if _, err := b.supportSvc.Close(ticketID); err != nil {
		b.logger.Error("Failed to close ticket", zap.Uint("ticket_id", ticketID), zap.Error(err))
		return c.Send("Could not close the request right now.")
	}
	return c.Edit("Request closed. Thank you!", b.supportMenu())
}

// handleTicketReply stores a staff reply typed after pressing the reply
// button on a ticket.
func (b *Bot) handleTicketReply(c tele.Context, step, text string) error {
	telegramID := c.Sender().ID
	_ = b.users.UpdateStep(telegramID, "none")

	if !b.cfg.Bot.HasSupportAccess(telegramID) {
		return nil
	}

	ticketID, err := parseTicketID(step, "ticket_reply_")
	if err != nil {
		return c.Send("Could not identify the request.")
	}

	ticket, err := b.supportSvc.GetForStaff(ticketID)
	if err != nil || ticket == nil {
		return c.Send("Request not found.")
	}

	if _, err := b.supportSvc.Reply(ticketID, text); err != nil {
		b.logger.Error("Failed to store ticket reply", zap.Uint("ticket_id", ticketID), zap.Error(err))
		return c.Send("Could not save the reply.")
	}

	// Deliver the reply to the ticket owner.
	reply := "Support replied to your request #" + strconv.FormatUint(uint64(ticketID), 10) + ":\n\n" + text
	if err := b.Notify(ticket.UserID, reply); err != nil {
		b.logger.Warn("Failed to deliver ticket reply",
			zap.Int64("user_id", ticket.UserID), zap.Error(err))
	}

	return c.Send("Reply sent, request closed.")
}

// notifyStaff fans a message out to every configured staff chat.
func (b *Bot) notifyStaff(text string) {
	seen := make(map[int64]bool)
	for _, id := range append(append([]int64{}, b.cfg.Bot.AdminIDs...), b.cfg.Bot.SupportIDs...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := b.Notify(id, text); err != nil {
			b.logger.Warn("Failed to notify staff", zap.Int64("staff_id", id), zap.Error(err))
		}
	}
}

func parseTicketID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}
