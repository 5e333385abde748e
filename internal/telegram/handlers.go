package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/config"
	"github.com/suspectuso/sticker-shop/internal/payment"
	"github.com/suspectuso/sticker-shop/internal/storefront"
	"github.com/suspectuso/sticker-shop/internal/tonapi"
)

// tonviewer/tonscan links carry the hash as 64 hex chars
var hashRegex = regexp.MustCompile(`[0-9a-fA-F]{64}`)

// Bot is the storefront: catalog listing plus one payment modal per chat
type Bot struct {
	bot      *bot.Bot
	cfg      *config.Config
	api      *backend.Client
	tonAPI   *tonapi.Client
	sessions *SessionManager
	log      *slog.Logger

	mu     sync.RWMutex
	runCtx context.Context
}

// New creates the storefront bot. tonAPI may be nil, which hides
// "Find my transfer".
func New(cfg *config.Config, api *backend.Client, tonAPI *tonapi.Client, log *slog.Logger) (*Bot, error) {
	b := &Bot{
		cfg:      cfg,
		api:      api,
		tonAPI:   tonAPI,
		sessions: NewSessionManager(),
		log:      log,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.callbackHandler),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot

	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.startHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start ", bot.MatchTypePrefix, b.startHandler)

	return b, nil
}

// Start starts the bot polling
func (b *Bot) Start(ctx context.Context) {
	b.mu.Lock()
	b.runCtx = ctx
	b.mu.Unlock()

	go b.EvictLoop(ctx, time.Minute)
	b.bot.Start(ctx)
}

// EvictLoop periodically drops chats idle for longer than SessionIdleTTL
func (b *Bot) EvictLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.evictIdle()
		}
	}
}

func (b *Bot) evictIdle() int {
	evicted := b.sessions.Evict(b.cfg.SessionIdleTTL)
	for _, s := range evicted {
		s.close()
	}
	if len(evicted) > 0 {
		b.log.Info("idle chats evicted", "count", len(evicted), "remaining", b.sessions.Len())
	}
	return len(evicted)
}

func (b *Bot) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.runCtx == nil {
		return context.Background()
	}
	return b.runCtx
}

// session returns the chat's session, wiring its flow on first use
func (b *Bot) session(chatID int64, from *models.User) *ChatSession {
	s := b.sessions.GetOrCreate(chatID, func() *ChatSession {
		ctx, stop := context.WithCancel(b.context())
		view := newModalView(b, chatID)
		go view.run(ctx)

		host := &chatHost{bot: b, chatID: chatID}
		return &ChatSession{
			View: view,
			Flow: payment.New(payment.Deps{
				Backend:   b.api,
				Presenter: view,
				Host:      host,
				Clipboard: host,
				Log:       b.log.With("chat_id", chatID),
			}),
			host: host,
			stop: stop,
		}
	})
	s.host.setUser(from)
	return s
}

// --- Handlers ---

func (b *Bot) startHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	b.session(chatID, update.Message.From)

	cat := b.loadCatalog(ctx, chatID)
	b.sendMessage(ctx, chatID, CatalogText(cat, b.api.BaseURL()), CatalogKeyboard(cat.Items(b.api.BaseURL())))
}

// loadCatalog is one storefront page load: fresh stickers and configs
func (b *Bot) loadCatalog(ctx context.Context, chatID int64) *storefront.Catalog {
	cat := storefront.Load(ctx, b.api, b.log)
	b.sessions.SetCatalog(chatID, cat)
	b.log.Info("catalog loaded",
		"chat_id", chatID,
		"stickers", len(cat.Stickers),
		"card", cat.Configs.Payment != nil,
		"ton", cat.Configs.Ton != nil,
	)
	return cat
}

// defaultHandler treats free text as the transaction hash of a pending invoice
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	s := b.sessions.Get(chatID)
	if s == nil || s.Flow.Snapshot().Invoice == nil {
		b.sendMessage(ctx, chatID, "Send /start to browse sticker packs.", nil)
		return
	}

	hash := extractHash(update.Message.Text)
	if notice := flowNotice(s.Flow.Confirm(ctx, hash)); notice != "" {
		b.sendMessage(ctx, chatID, notice, nil)
	}
}

func (b *Bot) callbackHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	if cb.Message.Message == nil {
		return
	}
	chatID := cb.Message.Message.Chat.ID
	data := cb.Data
	s := b.session(chatID, &cb.From)

	var notice string
	switch {
	case data == cbCatalog:
		b.showCatalog(ctx, cb)
	case strings.HasPrefix(data, cbBuyPrefix):
		notice = b.handleBuy(chatID, s, data)
	case data == cbPayPrefix+string(payment.MethodCard):
		notice = flowNotice(s.Flow.PayWithCard(ctx))
	case data == cbPayPrefix+string(payment.MethodTon):
		notice = flowNotice(s.Flow.PayWithTon(ctx))
	case strings.HasPrefix(data, cbCopyPrefix):
		notice = flowNotice(s.Flow.Copy(payment.Field(strings.TrimPrefix(data, cbCopyPrefix))))
	case data == cbTonRefresh:
		notice = flowNotice(s.Flow.Refresh(ctx))
	case data == cbTonFind:
		notice = b.handleFind(ctx, s)
	case data == cbClose:
		s.Flow.Close()
	case data == cbNoop:
		notice = busyNotice
	default:
		b.log.Warn("unknown callback", "data", data, "chat_id", chatID)
	}

	tgBot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
		Text:            notice,
	})
}

func (b *Bot) showCatalog(ctx context.Context, cb *models.CallbackQuery) {
	cat := b.loadCatalog(ctx, cb.Message.Message.Chat.ID)
	b.editMessage(ctx, cb.Message, CatalogText(cat, b.api.BaseURL()), CatalogKeyboard(cat.Items(b.api.BaseURL())))
}

func (b *Bot) handleBuy(chatID int64, s *ChatSession, data string) string {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, cbBuyPrefix), 10, 64)
	if err != nil {
		return ""
	}

	cat := b.sessions.Catalog(chatID)
	if cat == nil {
		return "Send /start to reload the catalog."
	}
	sticker, ok := cat.Find(id)
	if !ok {
		return "This sticker is no longer available."
	}

	s.Flow.Open(sticker, cat.Configs)
	return ""
}

// handleFind looks the transfer up on-chain and confirms it with its hash
func (b *Bot) handleFind(ctx context.Context, s *ChatSession) string {
	if b.tonAPI == nil {
		return ""
	}

	inv := s.Flow.Snapshot().Invoice
	if inv == nil {
		return "Generate an invoice first."
	}

	events, err := b.tonAPI.GetEvents(ctx, tonapi.NormalizeAddress(inv.WalletAddress), b.cfg.TonLookupLimit)
	if err != nil {
		b.log.Warn("lookup transfer", "invoice_id", inv.Key(), "wallet", tonapi.ShortAddr(inv.WalletAddress, 6), "error", err)
		return "Unable to reach the TON network. Try again shortly."
	}

	hash, ok := tonapi.FindPayment(events, inv.WalletAddress, inv.Comment, inv.AmountNanoton)
	if !ok {
		return "No matching transfer found yet."
	}

	b.log.Info("transfer found", "invoice_id", inv.Key(), "tx_hash", hash)
	return flowNotice(s.Flow.Confirm(ctx, hash))
}

// --- Helpers ---

const busyNotice = "Please wait, still working on it..."

// flowNotice turns a rejected flow action into a callback toast. Failures the
// modal already shows map to "".
func flowNotice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, payment.ErrBusy):
		return busyNotice
	case errors.Is(err, payment.ErrClosed):
		return "This payment window is closed."
	case errors.Is(err, payment.ErrTerminal):
		return "Payment already confirmed."
	case errors.Is(err, payment.ErrUnavailable):
		return "This payment method is not available."
	default:
		return ""
	}
}

func extractHash(text string) string {
	text = strings.TrimSpace(text)
	if m := hashRegex.FindString(text); m != "" {
		return m
	}
	return text
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		b.log.Error("send message", "error", err)
	}
}

func (b *Bot) editMessage(ctx context.Context, msg models.MaybeInaccessibleMessage, text string, keyboard *models.InlineKeyboardMarkup) {
	if msg.Message == nil {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    msg.Message.Chat.ID,
		MessageID: msg.Message.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.EditMessageText(ctx, params)
	if err != nil {
		b.log.Error("edit message", "error", err)
	}
}
