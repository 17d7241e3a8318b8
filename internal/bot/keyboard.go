package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v3"
)

// mainMenu builds the main inline menu. Admins get an extra row.
func (b *Bot) mainMenu(telegramID int64) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	rows := []tele.Row{
		menu.Row(menu.Data("Buy subscription", "buy")),
		menu.Row(menu.Data("My subscription", "my_sub")),
		menu.Row(menu.Data("Support", "support_menu")),
	}
	if b.cfg.Bot.IsAdmin(telegramID) {
		rows = append(rows, menu.Row(menu.Data("Admin panel", "admin_menu")))
	}

	menu.Inline(rows...)
	return menu
}

// planMenu offers the two plan families.
func (b *Bot) planMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("Monthly subscription", "choose_monthly")),
		menu.Row(menu.Data("Traffic package", "choose_traffic")),
		menu.Row(menu.Data("Back", "main_menu")),
	)
	return menu
}

// subscriptionMenu follows the "my subscription" card; the top action
// matches the user's current plan kind.
func (b *Bot) subscriptionMenu(planKind string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	var topRow tele.Row
	switch planKind {
	case "monthly":
		topRow = menu.Row(menu.Data("Extend subscription", "choose_monthly"))
	case "traffic":
		topRow = menu.Row(menu.Data("Buy more traffic", "choose_traffic"))
	default:
		topRow = menu.Row(menu.Data("Buy subscription", "buy"))
	}

	menu.Inline(
		topRow,
		menu.Row(menu.Data("Refresh access link", "refresh_link")),
		menu.Row(menu.Data("Back", "main_menu")),
	)
	return menu
}

// supportMenu is the support landing screen.
func (b *Bot) supportMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("New request", "support_new")),
		menu.Row(menu.Data("My requests", "support_list")),
		menu.Row(menu.Data("Back", "main_menu")),
	)
	return menu
}

// ticketListMenu renders one button per ticket.
func (b *Bot) ticketListMenu(ticketIDs []uint) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, id := range ticketIDs {
		rows = append(rows, menu.Row(
			menu.Data(fmt.Sprintf("Request #%d", id), fmt.Sprintf("ticket_%d", id))))
	}
	rows = append(rows, menu.Row(menu.Data("Back", "support_menu")))
	menu.Inline(rows...)
	return menu
}

// adminMenu is the staff landing screen.
func (b *Bot) adminMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("System stats", "admin_stats")),
		menu.Row(menu.Data("Panel users", "admin_users_0")),
		menu.Row(menu.Data("Panel admins", "admin_admins_0")),
		menu.Row(menu.Data("Nodes", "admin_nodes")),
		menu.Row(menu.Data("Support tickets", "admin_tickets")),
		menu.Row(menu.Data("Back", "main_menu")),
	)
	return menu
}

// pageNav builds previous/next navigation for paged admin lists.
func pageNav(menu *tele.ReplyMarkup, prefix string, page, total, perPage int) tele.Row {
	var btns []tele.Btn
	if page > 0 {
		btns = append(btns, menu.Data("« Prev", fmt.Sprintf("%s_%d", prefix, page-1)))
	}
	if (page+1)*perPage < total {
		btns = append(btns, menu.Data("Next »", fmt.Sprintf("%s_%d", prefix, page+1)))
	}
	return menu.Row(btns...)
}
