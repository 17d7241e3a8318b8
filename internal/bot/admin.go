package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"qwqvpn/internal/models"
)

func (b *Bot) handleAdminPanel(c tele.Context) error {
	if !b.cfg.Bot.HasSupportAccess(c.Sender().ID) {
		return nil
	}
	return c.Send("Admin panel:", b.adminMenu())
}

func (b *Bot) handleAdminCallback(c tele.Context, data string) error {
	telegramID := c.Sender().ID
	if !b.cfg.Bot.HasSupportAccess(telegramID) {
		return nil
	}

	switch {
	case data == "admin_menu":
		return c.Edit("Admin panel:", b.adminMenu())
	case data == "admin_tickets":
		return b.showTicketAdmin(c)
	case strings.HasPrefix(data, "admin_ticket_"):
		return b.showTicketForStaff(c, data)
	case strings.HasPrefix(data, "admin_ttoggle_"):
		return b.toggleTicketStatus(c, data)
	case strings.HasPrefix(data, "admin_treply_"):
		return b.startTicketStaffReply(c, data)
	}

	// The remaining screens read from the panel API and are admin-only.
	if !b.cfg.Bot.IsAdmin(telegramID) {
		return nil
	}

	switch {
	case data == "admin_stats":
		return b.showSystemStats(c)
	case strings.HasPrefix(data, "admin_users_"):
		return b.showPanelUsers(c, data)
	case strings.HasPrefix(data, "admin_user_"):
		return b.showPanelUser(c, strings.TrimPrefix(data, "admin_user_"))
	case strings.HasPrefix(data, "admin_ureset_"):
		return b.resetPanelUserTraffic(c, strings.TrimPrefix(data, "admin_ureset_"))
	case strings.HasPrefix(data, "admin_urevoke_"):
		return b.revokePanelUserLink(c, strings.TrimPrefix(data, "admin_urevoke_"))
	case strings.HasPrefix(data, "admin_udel_"):
		return b.deletePanelUser(c, strings.TrimPrefix(data, "admin_udel_"))
	case strings.HasPrefix(data, "admin_admins_"):
		return b.showPanelAdmins(c, data)
	case data == "admin_aadd":
		return b.startAdminCreation(c)
	case strings.HasPrefix(data, "admin_adm_"):
		return b.showPanelAdmin(c, strings.TrimPrefix(data, "admin_adm_"))
	case strings.HasPrefix(data, "admin_apass_"):
		return b.startAdminPasswordReset(c, strings.TrimPrefix(data, "admin_apass_"))
	case strings.HasPrefix(data, "admin_adel_"):
		return b.deletePanelAdmin(c, strings.TrimPrefix(data, "admin_adel_"))
	case data == "admin_nodes":
		return b.showPanelNodes(c)
	}
	return nil
}

// ── Panel screens ─────────────────────────────────────────────────────

func (b *Bot) showSystemStats(c tele.Context) error {
	stats, err := b.panel.GetSystemStats(context.Background())
	if err != nil {
		b.logger.Error("Failed to fetch system stats", zap.Error(err))
		return c.Send("Panel is not responding.")
	}

	localUsers, _ := b.users.Count()

	var sb strings.Builder
	sb.WriteString("System stats:\n\n")
	fmt.Fprintf(&sb, "Bot users: %d\n", localUsers)
	for _, key := range []string{"total_user", "users_active", "online_users", "incoming_bandwidth", "outgoing_bandwidth"} {
		if v, ok := stats[key]; ok {
			fmt.Fprintf(&sb, "%s: %v\n", key, v)
		}
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("Back", "admin_menu")))
	return c.Edit(sb.String(), menu)
}

func (b *Bot) showPanelUsers(c tele.Context, data string) error {
	page, _ := strconv.Atoi(strings.TrimPrefix(data, "admin_users_"))
	perPage := b.cfg.Paging.UsersPerPage

	result, err := b.panel.GetUsers(context.Background(), page*perPage, perPage, "")
	if err != nil {
		b.logger.Error("Failed to list panel users", zap.Error(err))
		return c.Send("Panel is not responding.")
	}

	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, u := range result.Users {
		label := fmt.Sprintf("%s [%s] %.2f GB", u.Username, u.Status, float64(u.UsedTraffic)/(1<<30))
		rows = append(rows, menu.Row(menu.Data(label, "admin_user_"+u.Username)))
	}
	rows = append(rows,
		pageNav(menu, "admin_users", page, result.Total, perPage),
		menu.Row(menu.Data("Back", "admin_menu")),
	)
	menu.Inline(rows...)

	text := fmt.Sprintf("Panel users (%d total), page %d:", result.Total, page+1)
	return c.Edit(text, menu)
}

func (b *Bot) showPanelUser(c tele.Context, username string) error {
	acc, err := b.panel.GetUser(context.Background(), username)
	if err != nil {
		b.logger.Error("Failed to fetch panel user", zap.String("username", username), zap.Error(err))
		return c.Send("Panel is not responding.")
	}
	if acc == nil {
		return c.Send("Account not found on the panel.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nStatus: %s\nUsed: %.2f GB\n", acc.Username, acc.Status,
		float64(acc.UsedTraffic)/(1<<30))
	if acc.DataLimit > 0 {
		fmt.Fprintf(&sb, "Limit: %.2f GB\n", float64(acc.DataLimit)/(1<<30))
	}
	if acc.ExpireAt > 0 {
		fmt.Fprintf(&sb, "Expires: %s\n", time.Unix(acc.ExpireAt, 0).Format("02.01.2006 15:04"))
	}
	if acc.Note != "" {
		fmt.Fprintf(&sb, "Note: %s\n", acc.Note)
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data("Reset traffic", "admin_ureset_"+username),
			menu.Data("Revoke link", "admin_urevoke_"+username),
		),
		menu.Row(menu.Data("Delete account", "admin_udel_"+username)),
		menu.Row(menu.Data("Back", "admin_users_0")),
	)
	return c.Edit(sb.String(), menu)
}

func (b *Bot) resetPanelUserTraffic(c tele.Context, username string) error {
	if err := b.panel.ResetTraffic(context.Background(), username); err != nil {
		b.logger.Error("Failed to reset traffic", zap.String("username", username), zap.Error(err))
		return c.Send("Could not reset traffic.")
	}
	return b.showPanelUser(c, username)
}

func (b *Bot) revokePanelUserLink(c tele.Context, username string) error {
	url, err := b.panel.RevokeSubscription(context.Background(), username)
	if err != nil {
		b.logger.Error("Failed to revoke subscription", zap.String("username", username), zap.Error(err))
		return c.Send("Could not revoke the subscription link.")
	}
	return c.Send("Link revoked. New link:\n" + url)
}

func (b *Bot) deletePanelUser(c tele.Context, username string) error {
	if err := b.panel.DeleteUser(context.Background(), username); err != nil {
		b.logger.Error("Failed to delete panel user", zap.String("username", username), zap.Error(err))
		return c.Send("Could not delete the account.")
	}
	b.logger.Info("Panel account deleted by staff",
		zap.String("username", username), zap.Int64("staff_id", c.Sender().ID))
	return c.Edit("Account "+username+" deleted.", b.adminMenu())
}

func (b *Bot) showPanelAdmins(c tele.Context, data string) error {
	page, _ := strconv.Atoi(strings.TrimPrefix(data, "admin_admins_"))
	perPage := b.cfg.Paging.AdminsPerPage

	admins, err := b.panel.GetAdmins(context.Background(), page*perPage, perPage, "")
	if err != nil {
		b.logger.Error("Failed to list panel admins", zap.Error(err))
		return c.Send("Panel is not responding.")
	}

	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, a := range admins {
		role := "admin"
		if a.IsSudo {
			role = "sudo"
		}
		rows = append(rows, menu.Row(menu.Data(
			fmt.Sprintf("%s (%s)", a.Username, role), "admin_adm_"+a.Username)))
	}
	rows = append(rows,
		menu.Row(menu.Data("Add admin", "admin_aadd")),
		menu.Row(menu.Data("Back", "admin_menu")),
	)
	menu.Inline(rows...)

	return c.Edit(fmt.Sprintf("Panel admins, page %d:", page+1), menu)
}

func (b *Bot) showPanelAdmin(c tele.Context, username string) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data("Set password", "admin_apass_"+username),
			menu.Data("Delete", "admin_adel_"+username),
		),
		menu.Row(menu.Data("Back", "admin_admins_0")),
	)
	return c.Edit("Admin: "+username, menu)
}

func (b *Bot) startAdminCreation(c tele.Context) error {
	_ = b.users.UpdateStep(c.Sender().ID, "admin_create")
	return c.Send("Send the new admin as: <username> <password> [sudo]")
}

func (b *Bot) startAdminPasswordReset(c tele.Context, username string) error {
	_ = b.users.UpdateStep(c.Sender().ID, "admin_pass_"+username)
	return c.Send("Send the new password for " + username + ":")
}

func (b *Bot) deletePanelAdmin(c tele.Context, username string) error {
	if err := b.panel.DeleteAdmin(context.Background(), username); err != nil {
		b.logger.Error("Failed to delete admin", zap.String("username", username), zap.Error(err))
		return c.Send("Could not delete the admin.")
	}
	return c.Edit("Admin "+username+" deleted.", b.adminMenu())
}

// handleAdminCreate consumes the "<username> <password> [sudo]" message
// typed after pressing Add admin.
func (b *Bot) handleAdminCreate(c tele.Context, text string) error {
	telegramID := c.Sender().ID
	_ = b.users.UpdateStep(telegramID, "none")

	if !b.cfg.Bot.IsAdmin(telegramID) {
		return nil
	}

	parts := strings.Fields(text)
	if len(parts) < 2 {
		return c.Send("Expected: <username> <password> [sudo]")
	}
	isSudo := len(parts) > 2 && strings.EqualFold(parts[2], "sudo")

	if err := b.panel.CreateAdmin(context.Background(), parts[0], parts[1], isSudo); err != nil {
		b.logger.Error("Failed to create admin", zap.String("username", parts[0]), zap.Error(err))
		return c.Send("Could not create the admin.")
	}
	return c.Send("Admin " + parts[0] + " created.")
}

// handleAdminPassword consumes the new password typed after Set password.
func (b *Bot) handleAdminPassword(c tele.Context, step, text string) error {
	telegramID := c.Sender().ID
	_ = b.users.UpdateStep(telegramID, "none")

	if !b.cfg.Bot.IsAdmin(telegramID) {
		return nil
	}

	username := strings.TrimPrefix(step, "admin_pass_")
	if err := b.panel.ModifyAdmin(context.Background(), username, text, false); err != nil {
		b.logger.Error("Failed to update admin password",
			zap.String("username", username), zap.Error(err))
		return c.Send("Could not update the password.")
	}
	return c.Send("Password updated for " + username + ".")
}

func (b *Bot) showPanelNodes(c tele.Context) error {
	nodes, err := b.panel.GetNodes(context.Background())
	if err != nil {
		b.logger.Error("Failed to list nodes", zap.Error(err))
		return c.Send("Panel is not responding.")
	}

	var sb strings.Builder
	sb.WriteString("Nodes:\n\n")
	if len(nodes) == 0 {
		sb.WriteString("No nodes configured.\n")
	}
	for _, n := range nodes {
		name, _ := n["name"].(string)
		addr, _ := n["address"].(string)
		status, _ := n["status"].(string)
		fmt.Fprintf(&sb, "%s (%s) — %s\n", name, addr, status)
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("Back", "admin_menu")))
	return c.Edit(sb.String(), menu)
}

// ── Ticket administration ─────────────────────────────────────────────

func (b *Bot) showTicketAdmin(c tele.Context) error {
	open, inProgress, closed, err := b.supportSvc.Stats()
	if err != nil {
		b.logger.Error("Failed to load ticket stats", zap.Error(err))
		return c.Send("Could not load tickets.")
	}

	tickets, err := b.supportSvc.ListAll(10)
	if err != nil {
		b.logger.Error("Failed to list tickets", zap.Error(err))
		return c.Send("Could not load tickets.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Tickets: %d open, %d in progress, %d closed.\n\nLatest:\n",
		open, inProgress, closed)
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, t := range tickets {
		rows = append(rows, menu.Row(menu.Data(
			fmt.Sprintf("#%d [%s] %s", t.ID, t.Status, t.UserName),
			fmt.Sprintf("admin_ticket_%d", t.ID))))
	}
	rows = append(rows, menu.Row(menu.Data("Back", "admin_menu")))
	menu.Inline(rows...)

	return c.Edit(sb.String(), menu)
}

func (b *Bot) showTicketForStaff(c tele.Context, data string) error {
	ticketID, err := parseTicketID(data, "admin_ticket_")
	if err != nil {
		return nil
	}

	ticket, err := b.supportSvc.GetForStaff(ticketID)
	if err != nil || ticket == nil {
		return c.Send("Ticket not found.")
	}

	idStr := strconv.FormatUint(uint64(ticketID), 10)
	menu := &tele.ReplyMarkup{}
	toggleLabel := "Close"
	if ticket.Status == models.TicketClosed {
		toggleLabel = "Reopen"
	}
	menu.Inline(
		menu.Row(
			menu.Data("Reply", "admin_treply_"+idStr),
			menu.Data(toggleLabel, "admin_ttoggle_"+idStr),
		),
		menu.Row(menu.Data("Back", "admin_tickets")),
	)

	return c.Edit(b.supportSvc.FormatDetails(ticket), menu)
}

func (b *Bot) toggleTicketStatus(c tele.Context, data string) error {
	ticketID, err := parseTicketID(data, "admin_ttoggle_")
	if err != nil {
		return nil
	}

	ticket, err := b.supportSvc.GetForStaff(ticketID)
	if err != nil || ticket == nil {
		return c.Send("Ticket not found.")
	}

	if ticket.Status == models.TicketClosed {
		_, err = b.supportSvc.Reopen(ticketID)
	} else {
		_, err = b.supportSvc.Close(ticketID)
	}
	if err != nil {
		b.logger.Error("Failed to toggle ticket", zap.Uint("ticket_id", ticketID), zap.Error(err))
		return c.Send("Could not update the ticket.")
	}

	return b.showTicketForStaff(c, "admin_ticket_"+strconv.FormatUint(uint64(ticketID), 10))
}

func (b *Bot) startTicketStaffReply(c tele.Context, data string) error {
	ticketID, err := parseTicketID(data, "admin_treply_")
	if err != nil {
		return nil
	}

	_ = b.users.UpdateStep(c.Sender().ID, "ticket_reply_"+strconv.FormatUint(uint64(ticketID), 10))
	return c.Send("Type your reply to ticket #" + strconv.FormatUint(uint64(ticketID), 10) + ":")
}
