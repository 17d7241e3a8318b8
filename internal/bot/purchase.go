package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"qwqvpn/internal/subscription"
)

const planConflictText = "Your account holds a different plan type. " +
	"Switching between monthly and traffic plans requires staff help — please contact support."

// showPlanOptions renders the purchase entry screen. When the user already
// holds a plan, the incompatible option is hidden up front; the engine
// still enforces the conflict on the fresh panel state at purchase time.
func (b *Bot) showPlanOptions(c tele.Context) error {
	outcome := b.subs.GetView(context.Background(), c.Sender().ID)

	if outcome.Success {
		kind := string(outcome.View.PlanKind)
		text := "You already have a subscription.\n\n" + renderView(outcome.View)
		return c.Edit(text, b.subscriptionMenu(kind))
	}

	text := fmt.Sprintf(
		"Choose a plan:\n\n"+
			"Monthly — unlimited data, %d⭐ per month.\n"+
			"Traffic — no expiry, %d⭐ per GB.",
		b.cfg.Plans.StarsPerMonth, b.cfg.Plans.StarsPerGB)
	return c.Edit(text, b.planMenu())
}

func (b *Bot) startMonthlyPurchase(c tele.Context) error {
	telegramID := c.Sender().ID

	if kind, ok := b.currentPlanKind(telegramID); ok && kind == subscription.PlanTraffic {
		return c.Send(planConflictText)
	}

	_ = b.users.UpdateStep(telegramID, "months_input")
	return c.Send(fmt.Sprintf(
		"How many months? (%d–%d)\n\nPrice: %d⭐ per month.",
		subscription.MinMonths, subscription.MaxMonths, b.cfg.Plans.StarsPerMonth))
}

func (b *Bot) startTrafficPurchase(c tele.Context) error {
	telegramID := c.Sender().ID

	if kind, ok := b.currentPlanKind(telegramID); ok && kind == subscription.PlanMonthly {
		return c.Send(planConflictText)
	}

	_ = b.users.UpdateStep(telegramID, "traffic_input")
	return c.Send(fmt.Sprintf(
		"How many gigabytes? (%d–%d)\n\nPrice: %d⭐ per GB.",
		subscription.MinGB, subscription.MaxGB, b.cfg.Plans.StarsPerGB))
}

// currentPlanKind peeks at the live panel state for UI gating. The second
// return is false when the user has no account or the panel is unreachable;
// gating then falls through to the engine's own check.
func (b *Bot) currentPlanKind(telegramID int64) (subscription.PlanKind, bool) {
	outcome := b.subs.GetView(context.Background(), telegramID)
	if !outcome.Success {
		return "", false
	}
	return outcome.View.PlanKind, true
}

func (b *Bot) handleMonthsInput(c tele.Context, text string) error {
	telegramID := c.Sender().ID

	months, err := strconv.Atoi(text)
	if err != nil || months < subscription.MinMonths || months > subscription.MaxMonths {
		return c.Send(fmt.Sprintf("Please enter a number between %d and %d.",
			subscription.MinMonths, subscription.MaxMonths))
	}

	_ = b.users.UpdateStep(telegramID, "none")
	return b.sendStarsInvoice(c, subscription.PlanMonthly, months)
}

func (b *Bot) handleTrafficInput(c tele.Context, text string) error {
	telegramID := c.Sender().ID

	gb, err := strconv.Atoi(text)
	if err != nil || gb < subscription.MinGB || gb > subscription.MaxGB {
		return c.Send(fmt.Sprintf("Please enter a number between %d and %d.",
			subscription.MinGB, subscription.MaxGB))
	}

	_ = b.users.UpdateStep(telegramID, "none")
	return b.sendStarsInvoice(c, subscription.PlanTraffic, gb)
}

// sendStarsInvoice issues a Telegram Stars (XTR) invoice. The payload
// carries the full purchase intent so the payment handler needs no
// conversation state.
func (b *Bot) sendStarsInvoice(c tele.Context, kind subscription.PlanKind, quantity int) error {
	telegramID := c.Sender().ID

	var title, description string
	var total int
	switch kind {
	case subscription.PlanMonthly:
		title = fmt.Sprintf("Monthly subscription, %d month(s)", quantity)
		description = "Unlimited data for the paid period."
		total = quantity * b.cfg.Plans.StarsPerMonth
	case subscription.PlanTraffic:
		title = fmt.Sprintf("Traffic package, %d GB", quantity)
		description = "Data package with no expiry."
		total = quantity * b.cfg.Plans.StarsPerGB
	}

	invoice := &tele.Invoice{
		Title:       title,
		Description: description,
		Payload:     fmt.Sprintf("%s:%d:%d", kind, quantity, telegramID),
		Currency:    "XTR",
		Prices:      []tele.Price{{Label: title, Amount: total}},
	}
	return c.Send(invoice)
}

// handleCheckout answers the pre-checkout query. The plan conflict is
// re-checked here so a stale invoice cannot charge a user whose plan kind
// changed since the invoice was issued.
func (b *Bot) handleCheckout(c tele.Context) error {
	pcq := c.PreCheckoutQuery()
	kind, _, telegramID, err := parsePayload(pcq.Payload)
	if err != nil {
		b.logger.Warn("malformed pre-checkout payload", zap.String("payload", pcq.Payload))
		return c.Accept("Invalid purchase request. Please start over.")
	}

	if current, ok := b.currentPlanKind(telegramID); ok && current != kind {
		return c.Accept(planConflictText)
	}

	return c.Accept()
}

// handlePayment fulfills a successful Stars payment.
func (b *Bot) handlePayment(c tele.Context) error {
	payment := c.Message().Payment
	if payment == nil {
		return nil
	}

	kind, quantity, telegramID, err := parsePayload(payment.Payload)
	if err != nil {
		b.logger.Error("malformed payment payload", zap.String("payload", payment.Payload))
		return c.Send("Payment received but the purchase could not be identified. Please contact support.")
	}

	outcome := b.subs.Purchase(context.Background(), subscription.Intent{
		TelegramID: telegramID,
		Kind:       kind,
		Quantity:   quantity,
	})

	return b.sendPurchaseResult(c, outcome)
}

func (b *Bot) sendPurchaseResult(c tele.Context, outcome subscription.Outcome) error {
	if outcome.Success {
		text := "Payment accepted, your subscription is ready!\n\n" + renderView(outcome.View)
		return c.Send(text, b.subscriptionMenu(string(outcome.View.PlanKind)))
	}

	switch outcome.ErrorKind {
	case subscription.KindPlanConflict:
		return c.Send(planConflictText)
	default:
		return c.Send("The purchase did not take effect. Please try again later or contact support.")
	}
}

// showMySubscription renders the current subscription card.
func (b *Bot) showMySubscription(c tele.Context) error {
	outcome := b.subs.GetView(context.Background(), c.Sender().ID)

	if !outcome.Success {
		if outcome.ErrorKind == subscription.KindNotFound {
			return c.Edit("You have no subscription yet.", b.planMenu())
		}
		return c.Send("Could not load your subscription right now. Please try again later.")
	}

	return c.Edit(renderView(outcome.View), b.subscriptionMenu(string(outcome.View.PlanKind)))
}

// refreshAccessLink re-resolves the access URL on demand.
func (b *Bot) refreshAccessLink(c tele.Context) error {
	telegramID := c.Sender().ID
	username := b.ids.Username(telegramID)

	url, err := b.subs.ResolveAccessURL(context.Background(), username)
	if err != nil {
		return c.Send("The access link is not ready yet. Please try again in a minute.")
	}
	return c.Send("Your access link:\n" + url)
}

func renderView(v *subscription.View) string {
	var sb strings.Builder

	status := "inactive"
	if v.Active {
		status = "active"
	}

	switch v.PlanKind {
	case subscription.PlanMonthly:
		sb.WriteString("Plan: monthly subscription\n")
		if v.ExpireAt != nil {
			fmt.Fprintf(&sb, "Valid until: %s\n", v.ExpireAt.Format("02.01.2006 15:04"))
		}
		if v.MonthsRemaining > 0 {
			fmt.Fprintf(&sb, "About %d month(s) remaining\n", v.MonthsRemaining)
		}
	case subscription.PlanTraffic:
		sb.WriteString("Plan: traffic package\n")
		if v.LimitGB != nil {
			fmt.Fprintf(&sb, "Traffic: %.2f / %.2f GB\n", v.UsedGB, *v.LimitGB)
		}
	}
	fmt.Fprintf(&sb, "Status: %s\n", status)

	if v.AccessURL != "" {
		fmt.Fprintf(&sb, "\nAccess link:\n%s", v.AccessURL)
	}
	return sb.String()
}

func parsePayload(payload string) (subscription.PlanKind, int, int64, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("payload %q: want 3 parts", payload)
	}

	kind := subscription.PlanKind(parts[0])
	if kind != subscription.PlanMonthly && kind != subscription.PlanTraffic {
		return "", 0, 0, fmt.Errorf("payload %q: unknown plan kind", payload)
	}

	quantity, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("payload %q: bad quantity: %w", payload, err)
	}
	telegramID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("payload %q: bad telegram id: %w", payload, err)
	}

	return kind, quantity, telegramID, nil
}
