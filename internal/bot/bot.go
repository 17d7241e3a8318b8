package bot

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"qwqvpn/internal/config"
	"qwqvpn/internal/identity"
	"qwqvpn/internal/panel"
	"qwqvpn/internal/repository"
	"qwqvpn/internal/subscription"
	"qwqvpn/internal/support"
)

// Bot wraps the telebot instance and handlers.
type Bot struct {
	tb         *tele.Bot
	webhook    *tele.Webhook
	useWebhook bool
	cfg        *config.Config
	subs       *subscription.Service
	ids        *identity.Store
	supportSvc *support.Service
	panel      panel.Client
	users      *repository.UserRepository
	logger     *zap.Logger
}

// Deps bundles everything the bot handlers need.
type Deps struct {
	Subs       *subscription.Service
	Ids        *identity.Store
	Support    *support.Service
	Panel      panel.Client
	Users      *repository.UserRepository
}

// New creates and configures a new Bot instance.
func New(cfg *config.Config, deps *Deps, logger *zap.Logger) (*Bot, error) {
	useWebhook := strings.TrimSpace(cfg.Bot.WebhookURL) != ""

	var poller tele.Poller
	var webhook *tele.Webhook
	if useWebhook {
		webhook = &tele.Webhook{
			Listen:   "", // mounted on Echo instead of telebot's own server
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
		poller = webhook
	} else {
		poller = &tele.LongPoller{Timeout: 10 * time.Second}
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	b := &Bot{
		tb:         tb,
		webhook:    webhook,
		useWebhook: useWebhook,
		cfg:        cfg,
		subs:       deps.Subs,
		ids:        deps.Ids,
		supportSvc: deps.Support,
		panel:      deps.Panel,
		users:      deps.Users,
		logger:     logger,
	}

	b.registerHandlers()

	return b, nil
}

// WebhookHandler returns the webhook handler for mounting on Echo.
// Returns nil when running in long-polling mode.
func (b *Bot) WebhookHandler() http.Handler {
	return b.webhook
}

// Start begins polling/webhook processing.
func (b *Bot) Start() {
	if b.useWebhook {
		b.logger.Info("Starting Telegram bot", zap.String("mode", "webhook"), zap.String("webhook_url", b.cfg.Bot.WebhookURL))
	} else {
		// Long polling requires any leftover webhook to be removed first.
		if err := b.tb.RemoveWebhook(true); err != nil {
			b.logger.Warn("Failed to remove webhook before long polling", zap.Error(err))
		}
		b.logger.Info("Starting Telegram bot", zap.String("mode", "polling"))
	}
	b.tb.Start()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() {
	b.tb.Stop()
}

// Notify delivers a plain-text message to a user, for cron reminders.
func (b *Bot) Notify(telegramID int64, text string) error {
	_, err := b.tb.Send(&tele.User{ID: telegramID}, text)
	return err
}

// registerHandlers sets up all bot message and callback handlers.
func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/admin", b.handleAdminPanel)
	b.tb.Handle(tele.OnText, b.handleText)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
	b.tb.Handle(tele.OnCheckout, b.handleCheckout)
	b.tb.Handle(tele.OnPayment, b.handlePayment)
}

// ── /start ────────────────────────────────────────────────────────────

func (b *Bot) handleStart(c tele.Context) error {
	telegramID := c.Sender().ID

	if _, err := b.ids.GetOrCreate(telegramID); err != nil {
		b.logger.Error("Failed to create user record", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}

	_ = b.users.UpdateStep(telegramID, "none")

	text := "Welcome to QWQ VPN!\n\n" +
		"Fast and stable access, paid with Telegram Stars.\n" +
		"Choose an option below to get started."
	return c.Send(text, b.mainMenu(telegramID))
}

// ── Text routing ──────────────────────────────────────────────────────

func (b *Bot) handleText(c tele.Context) error {
	telegramID := c.Sender().ID

	user, err := b.users.FindByTelegramID(telegramID)
	if err != nil {
		b.logger.Error("Failed to load user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if user == nil {
		return c.Send("Please use /start first.")
	}

	text := strings.TrimSpace(c.Message().Text)

	switch {
	case user.Step == "months_input":
		return b.handleMonthsInput(c, text)
	case user.Step == "traffic_input":
		return b.handleTrafficInput(c, text)
	case user.Step == "ticket_message":
		return b.handleTicketMessage(c, text)
	case strings.HasPrefix(user.Step, "ticket_reply_"):
		return b.handleTicketReply(c, user.Step, text)
	case user.Step == "admin_create":
		return b.handleAdminCreate(c, text)
	case strings.HasPrefix(user.Step, "admin_pass_"):
		return b.handleAdminPassword(c, user.Step, text)
	default:
		return c.Send("Use the menu below.", b.mainMenu(telegramID))
	}
}

// ── Callback routing ──────────────────────────────────────────────────

func (b *Bot) handleCallback(c tele.Context) error {
	telegramID := c.Sender().ID
	data := strings.TrimPrefix(c.Callback().Data, "\f")

	_ = c.Respond()

	switch {
	case data == "main_menu":
		_ = b.users.UpdateStep(telegramID, "none")
		return c.Edit("Main menu:", b.mainMenu(telegramID))

	case data == "buy":
		return b.showPlanOptions(c)
	case data == "choose_monthly":
		return b.startMonthlyPurchase(c)
	case data == "choose_traffic":
		return b.startTrafficPurchase(c)

	case data == "my_sub":
		return b.showMySubscription(c)
	case data == "refresh_link":
		return b.refreshAccessLink(c)

	case data == "support_menu":
		return b.showSupportMenu(c)
	case data == "support_new":
		return b.startTicketCreation(c)
	case data == "support_list":
		return b.showUserTickets(c)
	case strings.HasPrefix(data, "ticket_close_"):
		return b.closeOwnTicket(c, data)
	case strings.HasPrefix(data, "ticket_"):
		return b.showTicketDetails(c, data)

	case strings.HasPrefix(data, "admin_"):
		return b.handleAdminCallback(c, data)
	}

	return nil
}
