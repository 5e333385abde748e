package telegram

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/sticker-shop/internal/payment"
)

const sendTimeout = 10 * time.Second

// modalView draws a chat's payment flow into a single message. Render only
// records the latest view; run applies it, so the flow lock is never held
// across a Telegram round trip.
type modalView struct {
	bot    *Bot
	chatID int64
	wake   chan struct{}

	mu        sync.Mutex
	pending   *payment.View
	messageID int
	lastKey   string
	lastEdit  time.Time
}

func newModalView(b *Bot, chatID int64) *modalView {
	return &modalView{
		bot:    b,
		chatID: chatID,
		wake:   make(chan struct{}, 1),
	}
}

// Render implements payment.Presenter
func (m *modalView) Render(v payment.View) {
	m.mu.Lock()
	m.pending = &v
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *modalView) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			m.flush(ctx)
		}
	}
}

func (m *modalView) flush(ctx context.Context) {
	m.mu.Lock()
	v := m.pending
	m.pending = nil
	if v == nil {
		m.mu.Unlock()
		return
	}

	// countdown-only changes are throttled
	key := stableKey(*v)
	if key == m.lastKey && time.Since(m.lastEdit) < m.bot.cfg.CountdownEditEvery {
		m.mu.Unlock()
		return
	}
	msgID := m.messageID
	m.mu.Unlock()

	if msgID == 0 && !v.Open {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	text := ModalText(*v)
	keyboard := ModalKeyboard(*v, m.bot.tonAPI != nil)

	if msgID == 0 {
		msg, err := m.bot.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      m.chatID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: keyboard,
		})
		if err != nil {
			m.bot.log.Error("send payment modal", "chat_id", m.chatID, "error", err)
			return
		}
		msgID = msg.ID
	} else {
		_, err := m.bot.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      m.chatID,
			MessageID:   msgID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: keyboard,
		})
		if err != nil {
			m.bot.log.Warn("edit payment modal", "chat_id", m.chatID, "message_id", msgID, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v.Open {
		m.messageID = msgID
	} else {
		m.messageID = 0
	}
	m.lastKey = key
	m.lastEdit = time.Now()
}

// stableKey identifies a view ignoring its countdown
func stableKey(v payment.View) string {
	if v.Invoice != nil {
		inv := *v.Invoice
		inv.Countdown = ""
		v.Invoice = &inv
	}
	return fmt.Sprintf("%s|%t|%t|%t|%v", ModalText(v), v.HashEnabled, v.SubmitEnabled, v.RefreshEnabled, v.Options)
}

// chatHost is the payment.Host for one Telegram chat.
type chatHost struct {
	bot    *Bot
	chatID int64

	mu   sync.Mutex
	user payment.User
}

func (h *chatHost) setUser(u *models.User) {
	if u == nil {
		return
	}
	h.mu.Lock()
	h.user = payment.User{ID: u.ID, Username: u.Username}
	h.mu.Unlock()
}

func (h *chatHost) User() *payment.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.user.ID == 0 {
		return nil
	}
	u := h.user
	return &u
}

// OpenInvoice hands the checkout page to the buyer as a URL button
func (h *chatHost) OpenInvoice(url string) error {
	ctx, cancel := context.WithTimeout(h.bot.context(), sendTimeout)
	defer cancel()

	_, err := h.bot.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      h.chatID,
		Text:        "💳 Complete your purchase on the secure checkout page 👇",
		ReplyMarkup: CheckoutKeyboard(url),
	})
	return err
}

// Copy sends the value as a monospace message, which Telegram copies on tap
func (h *chatHost) Copy(text string) error {
	ctx, cancel := context.WithTimeout(h.bot.context(), sendTimeout)
	defer cancel()

	_, err := h.bot.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    h.chatID,
		Text:      "<code>" + html.EscapeString(text) + "</code>",
		ParseMode: models.ParseModeHTML,
	})
	return err
}
