package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/suspectuso/sticker-shop/internal/backend"
)

var (
	ErrBusy        = errors.New("request already in flight")
	ErrNoInvoice   = errors.New("no active invoice")
	ErrClosed      = errors.New("payment flow closed")
	ErrStale       = errors.New("response for a discarded session")
	ErrUnavailable = errors.New("payment method unavailable")
	ErrTerminal    = errors.New("invoice already confirmed")
)

// Phase is the position of the flow in its state machine
type Phase int

const (
	Closed Phase = iota
	ChoosingMethod
	TonPending
	TonConfirmed
	TonExpired
	TonError
)

func (p Phase) String() string {
	switch p {
	case ChoosingMethod:
		return "choosing_method"
	case TonPending:
		return "ton_pending"
	case TonConfirmed:
		return "ton_confirmed"
	case TonExpired:
		return "ton_expired"
	case TonError:
		return "ton_error"
	default:
		return "closed"
	}
}

// Method is a payment rail offered for a sticker
type Method string

const (
	MethodCard Method = "card"
	MethodTon  Method = "ton"
)

// StatusKind styles the inline status line
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusError
	StatusSuccess
)

// Field is a copyable invoice value
type Field string

const (
	FieldWallet  Field = "wallet"
	FieldComment Field = "comment"
)

const tickEvery = time.Second

// Backend is the subset of the API client the flow needs
type Backend interface {
	CreateCheckout(ctx context.Context, r backend.PurchaseRequest) (*backend.Checkout, error)
	CreateTonInvoice(ctx context.Context, r backend.PurchaseRequest) (*backend.Invoice, error)
	TonInvoice(ctx context.Context, id int64) (*backend.Invoice, error)
	ConfirmTonPayment(ctx context.Context, invoiceID int64, txHash string) (*backend.Invoice, error)
}

// Configs are the capability descriptors fetched once per storefront load
type Configs struct {
	Payment *backend.PaymentConfig
	Ton     *backend.TonConfig
}

// User is the buyer identity supplied by the host
type User struct {
	ID       int64
	Username string
}

// Host is the embedding messenger, when there is one.
type Host interface {
	User() *User
	OpenInvoice(url string) error
}

// URLOpener opens a checkout page outside the host.
type URLOpener interface {
	OpenURL(url string) error
}

// Clipboard receives copied invoice values.
type Clipboard interface {
	Copy(text string) error
}

// Presenter draws a View. It is called with the flow locked and must not
// call back into the flow.
type Presenter interface {
	Render(v View)
}

// State is the complete flow context. Nothing outside it survives Close.
type State struct {
	Phase      Phase
	Sticker    *backend.Sticker
	Currency   string
	Methods    []Method
	Invoice    *backend.Invoice
	Remaining  time.Duration
	Status     string
	StatusKind StatusKind
	Copied     Field

	// in-flight controls
	CardPending bool
	Creating    bool
	Submitting  bool
	Refreshing  bool

	// Session increases on every open, close and new invoice; async
	// results are applied only while it still matches.
	Session uint64
}

// Deps wires a Flow. Host, Opener and Clipboard are optional.
type Deps struct {
	Backend   Backend
	Presenter Presenter
	Host      Host
	Opener    URLOpener
	Clipboard Clipboard
	Clock     Clock
	Scheduler Scheduler
	Log       *slog.Logger
}

// Flow is the payment modal: method choice, card checkout and the TON
// invoice lifecycle for one buyer.
type Flow struct {
	backend   Backend
	presenter Presenter
	host      Host
	opener    URLOpener
	clipboard Clipboard
	clock     Clock
	scheduler Scheduler
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	timer   Timer
	timerID uint64
}

// New creates a closed payment flow
func New(d Deps) *Flow {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Scheduler == nil {
		d.Scheduler = TickerScheduler{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Flow{
		backend:   d.Backend,
		presenter: d.Presenter,
		host:      d.Host,
		opener:    d.Opener,
		clipboard: d.Clipboard,
		clock:     d.Clock,
		scheduler: d.Scheduler,
		log:       d.Log,
	}
}

// Snapshot returns a copy of the current state
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// View returns the rendering of the current state
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Render(f.state)
}

// Open shows the modal for a sticker, discarding whatever was open before.
func (f *Flow) Open(s backend.Sticker, cfg Configs) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reset()

	fallback := ""
	if cfg.Payment != nil {
		fallback = cfg.Payment.Currency
	}
	cur := s.CurrencyOr(fallback)

	var methods []Method
	if cfg.Payment != nil && cur != backend.CurrencyTON {
		methods = append(methods, MethodCard)
	}
	if cur == backend.CurrencyTON && cfg.Ton != nil {
		methods = append(methods, MethodTon)
	}

	f.state.Phase = ChoosingMethod
	f.state.Sticker = &s
	f.state.Currency = cur
	f.state.Methods = methods
	if len(methods) == 0 {
		f.setStatus("No payment methods are available for this sticker yet.", StatusError)
	}

	f.log.Debug("payment flow opened", "sticker_id", s.ID, "currency", cur, "methods", len(methods))
	f.render()
}

// Close dismisses the modal. The countdown stops and the invoice reference
// is dropped; in-flight responses become stale.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Phase == Closed {
		return
	}
	f.reset()
	f.render()
}

func (f *Flow) reset() {
	f.stopTimer()
	f.state = State{Phase: Closed, Session: f.state.Session + 1}
}

func (f *Flow) offers(m Method) bool {
	for _, have := range f.state.Methods {
		if have == m {
			return true
		}
	}
	return false
}

func (f *Flow) purchase() backend.PurchaseRequest {
	r := backend.PurchaseRequest{StickerID: f.state.Sticker.ID, TelegramUserID: "unknown"}
	if f.host == nil {
		return r
	}
	if u := f.host.User(); u != nil {
		r.TelegramUserID = strconv.FormatInt(u.ID, 10)
		if u.Username != "" {
			email := u.Username
			r.Email = &email
		}
	}
	return r
}

// PayWithCard creates a checkout session and hands the URL to the host, or
// to the URL opener when there is no host.
func (f *Flow) PayWithCard(ctx context.Context) error {
	f.mu.Lock()
	if f.state.Phase == Closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if !f.offers(MethodCard) {
		f.mu.Unlock()
		return ErrUnavailable
	}
	if f.state.CardPending {
		f.mu.Unlock()
		return ErrBusy
	}
	f.state.CardPending = true
	session := f.state.Session
	req := f.purchase()
	f.render()
	f.mu.Unlock()

	co, err := f.backend.CreateCheckout(ctx, req)

	f.mu.Lock()
	if f.state.Session != session {
		f.mu.Unlock()
		f.log.Debug("dropping stale checkout response", "session", session)
		return ErrStale
	}
	if err != nil {
		defer f.mu.Unlock()
		f.state.CardPending = false
		f.log.Warn("create checkout", "sticker_id", req.StickerID, "error", err)
		f.setStatus(backend.Message(err), StatusError)
		f.render()
		return err
	}
	f.mu.Unlock()

	// the host call is a messenger round trip; keep it outside the lock
	err = f.openCheckout(co.CheckoutURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Session != session {
		return ErrStale
	}
	f.state.CardPending = false

	if err != nil {
		f.log.Warn("open checkout", "error", err)
		f.setStatus("Unable to open checkout page.", StatusError)
		f.render()
		return err
	}

	f.setStatus("Checkout opened.", StatusInfo)
	f.render()
	return nil
}

func (f *Flow) openCheckout(url string) error {
	if f.host != nil {
		return f.host.OpenInvoice(url)
	}
	if f.opener != nil {
		return f.opener.OpenURL(url)
	}
	return errors.New("no way to open checkout url")
}

// PayWithTon requests a fresh invoice. Any previous invoice and its
// countdown are discarded first.
func (f *Flow) PayWithTon(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case f.state.Phase == Closed:
		f.mu.Unlock()
		return ErrClosed
	case f.state.Phase == TonConfirmed:
		f.mu.Unlock()
		return ErrTerminal
	case !f.offers(MethodTon):
		f.mu.Unlock()
		return ErrUnavailable
	case f.state.Creating:
		f.mu.Unlock()
		return ErrBusy
	}

	f.stopTimer()
	f.state.Invoice = nil
	f.state.Remaining = 0
	f.state.Submitting = false
	f.state.Refreshing = false
	f.state.Session++
	f.state.Creating = true
	f.setStatus("Generating invoice...", StatusInfo)
	session := f.state.Session
	req := f.purchase()
	f.render()
	f.mu.Unlock()

	inv, err := f.backend.CreateTonInvoice(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Session != session {
		f.log.Debug("dropping stale invoice", "session", session)
		return ErrStale
	}
	f.state.Creating = false

	if err != nil {
		f.log.Warn("create ton invoice", "sticker_id", req.StickerID, "error", err)
		f.state.Phase = TonError
		f.setStatus(backend.Message(err), StatusError)
		f.render()
		return err
	}

	f.log.Info("ton invoice created", "invoice_id", inv.Key(), "expires_at", inv.ExpiresAt)
	f.state.Phase = TonPending
	f.state.Invoice = inv
	f.setStatus("Invoice generated. Awaiting payment.", StatusInfo)
	f.startCountdown()
	f.render()
	return nil
}

// Confirm submits the buyer's transaction hash for the active invoice.
func (f *Flow) Confirm(ctx context.Context, txHash string) error {
	f.mu.Lock()
	inv, err := f.invoiceControl(f.state.Submitting)
	if err != nil {
		f.mu.Unlock()
		return err
	}

	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		f.setStatus("Enter the TON transaction hash.", StatusError)
		f.render()
		f.mu.Unlock()
		return backend.NewValidation("Enter the TON transaction hash.")
	}

	f.state.Submitting = true
	f.setStatus("Verifying payment on-chain...", StatusInfo)
	session := f.state.Session
	f.render()
	f.mu.Unlock()

	updated, err := f.backend.ConfirmTonPayment(ctx, inv.Key(), txHash)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Session != session {
		f.log.Debug("dropping stale confirmation", "session", session)
		return ErrStale
	}
	f.state.Submitting = false
	if f.state.Phase == TonConfirmed {
		return nil
	}

	if err != nil {
		f.log.Warn("confirm ton payment", "invoice_id", inv.Key(), "error", err)
		f.setStatus(backend.Message(err), StatusError)
		f.render()
		return err
	}

	f.apply(updated, "Payment not confirmed yet. Try again in a moment.")
	f.render()
	return nil
}

// Refresh asks the backend for the invoice's current status.
func (f *Flow) Refresh(ctx context.Context) error {
	f.mu.Lock()
	inv, err := f.invoiceControl(f.state.Refreshing)
	if err != nil {
		f.mu.Unlock()
		return err
	}

	f.state.Refreshing = true
	f.setStatus("Checking invoice status...", StatusInfo)
	session := f.state.Session
	f.render()
	f.mu.Unlock()

	updated, err := f.backend.TonInvoice(ctx, inv.Key())

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Session != session {
		f.log.Debug("dropping stale refresh", "session", session)
		return ErrStale
	}
	f.state.Refreshing = false
	if f.state.Phase == TonConfirmed {
		return nil
	}

	if err != nil {
		f.log.Warn("refresh ton invoice", "invoice_id", inv.Key(), "error", err)
		f.setStatus(backend.Message(err), StatusError)
		f.render()
		return err
	}

	f.apply(updated, "Invoice is still pending.")
	f.render()
	return nil
}

// invoiceControl checks that the submit/refresh controls are usable.
func (f *Flow) invoiceControl(inFlight bool) (*backend.Invoice, error) {
	switch {
	case f.state.Phase == Closed:
		return nil, ErrClosed
	case f.state.Phase == TonConfirmed:
		return nil, ErrTerminal
	case f.state.Invoice == nil:
		f.setStatus("Generate an invoice first.", StatusError)
		f.render()
		return nil, ErrNoInvoice
	case inFlight:
		return nil, ErrBusy
	}
	return f.state.Invoice, nil
}

// apply adopts a server invoice record. The server's status always wins
// over the local countdown.
func (f *Flow) apply(inv *backend.Invoice, pendingMsg string) {
	f.state.Invoice = inv

	switch inv.State() {
	case backend.InvoiceConfirmed:
		f.stopTimer()
		f.state.Phase = TonConfirmed
		f.state.Submitting = false
		f.state.Refreshing = false
		f.setStatus("Payment confirmed! Your sticker pack will unlock shortly.", StatusSuccess)
		f.log.Info("ton invoice confirmed", "invoice_id", inv.Key())
	case backend.InvoiceExpired:
		f.stopTimer()
		f.state.Phase = TonExpired
		f.state.Remaining = 0
		f.setStatus("Invoice expired. Generate a new one to try again.", StatusError)
	default:
		f.state.Phase = TonPending
		f.setStatus(pendingMsg, StatusInfo)
		f.startCountdown()
	}
}

// Copy hands an invoice value to the clipboard. Failures only change the
// status line.
func (f *Flow) Copy(field Field) error {
	f.mu.Lock()
	inv := f.state.Invoice
	if inv == nil {
		f.mu.Unlock()
		return ErrNoInvoice
	}

	var text string
	switch field {
	case FieldWallet:
		text = inv.WalletAddress
	case FieldComment:
		text = inv.Comment
	default:
		f.mu.Unlock()
		return errors.New("unknown field")
	}
	session := f.state.Session
	f.mu.Unlock()

	err := errors.New("no clipboard")
	if f.clipboard != nil {
		err = f.clipboard.Copy(strings.TrimSpace(text))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Session != session {
		return ErrStale
	}

	if err != nil {
		f.log.Debug("copy to clipboard", "field", field, "error", err)
		f.setStatus("Unable to copy to clipboard.", StatusError)
		f.render()
		return err
	}

	f.state.Copied = field
	f.render()
	return nil
}

func (f *Flow) setStatus(msg string, kind StatusKind) {
	f.state.Status = msg
	f.state.StatusKind = kind
	f.state.Copied = ""
}

func (f *Flow) render() {
	if f.presenter != nil {
		f.presenter.Render(Render(f.state))
	}
}

// --- Countdown ---

// startCountdown replaces any running timer with one for the active invoice.
func (f *Flow) startCountdown() {
	f.stopTimer()

	if f.state.Invoice == nil || f.state.Invoice.ExpiresAt.IsZero() {
		f.state.Remaining = 0
		return
	}

	f.state.Remaining = f.remaining()
	if f.state.Remaining <= 0 {
		f.expireLocally()
		return
	}

	f.timerID++
	id := f.timerID
	f.timer = f.scheduler.Every(tickEvery, func() { f.tick(id) })
}

func (f *Flow) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Flow) remaining() time.Duration {
	return f.state.Invoice.ExpiresAt.Sub(f.clock.Now())
}

func (f *Flow) tick(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id != f.timerID || f.timer == nil || f.state.Phase != TonPending {
		return
	}

	f.state.Remaining = f.remaining()
	if f.state.Remaining <= 0 {
		f.expireLocally()
	}
	f.render()
}

func (f *Flow) expireLocally() {
	f.stopTimer()
	f.state.Remaining = 0
	f.state.Phase = TonExpired
	f.setStatus("Invoice expired. Generate a new one to try again.", StatusError)
	f.log.Debug("ton invoice expired locally", "invoice_id", f.state.Invoice.Key())
}
