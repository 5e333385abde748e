package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/session"
)

// Mode is the dashboard's position in its state machine
type Mode int

const (
	LoggedOut Mode = iota
	Idle
	Editing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	default:
		return "logged_out"
	}
}

// StatusKind styles the status banner
type StatusKind string

const (
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

const sessionExpired = "Your session expired. Please log in again."

var ErrDeclined = errors.New("delete not confirmed")

// Backend is the subset of the API client the dashboard drives
type Backend interface {
	Login(ctx context.Context, username, password string) (*backend.Token, error)
	ListStickers(ctx context.Context, includeInactive bool) ([]backend.Sticker, error)
	CreateSticker(ctx context.Context, f backend.StickerFields) (*backend.Sticker, error)
	UpdateSticker(ctx context.Context, id int64, f backend.StickerFields) (*backend.Sticker, error)
	SetStickerActive(ctx context.Context, id int64, active bool) (*backend.Sticker, error)
	DeleteSticker(ctx context.Context, id int64) error
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Presenter draws a View after every transition.
type Presenter interface {
	Render(v View)
}

// State is the whole dashboard context
type State struct {
	Mode       Mode
	EditingID  int64
	Form       StickerForm
	Stickers   []backend.Sticker
	Status     string
	StatusKind StatusKind
}

// Dashboard is the admin console: login, sticker list and the create/edit
// form. Calls are serialized, one operator action at a time.
type Dashboard struct {
	api       Backend
	store     session.Store
	presenter Presenter
	validate  *validator.Validate
	username  string
	log       *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a logged-out dashboard
func New(api Backend, store session.Store, presenter Presenter, username string, log *slog.Logger) *Dashboard {
	if log == nil {
		log = slog.Default()
	}
	d := &Dashboard{
		api:       api,
		store:     store,
		presenter: presenter,
		validate:  validator.New(),
		username:  username,
		log:       log,
	}
	d.resetForm()
	return d
}

// Snapshot returns a copy of the current state
func (d *Dashboard) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Init restores a stored session, if any, and loads the list.
func (d *Dashboard) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.token(); !ok {
		d.state.Mode = LoggedOut
		d.render()
		return nil
	}

	d.state.Mode = Idle
	err := d.reload(ctx)
	d.render()
	return err
}

// Login exchanges the password for a token and opens the dashboard.
func (d *Dashboard) Login(ctx context.Context, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clearStatus()
	token, err := d.api.Login(ctx, d.username, password)
	if err != nil {
		d.log.Warn("admin login", "error", err)
		d.setStatus("Invalid password", StatusError)
		d.render()
		return err
	}

	if err := d.store.Save(token.AccessToken); err != nil {
		d.log.Error("save session token", "error", err)
		d.setStatus("Unable to store session.", StatusError)
		d.render()
		return fmt.Errorf("save token: %w", err)
	}

	d.log.Info("admin logged in")
	d.resetForm()
	d.state.Mode = Idle
	d.setStatus("Logged in successfully.", StatusSuccess)
	err = d.reload(ctx)
	d.render()
	return err
}

// Logout forgets the token and returns to the login view.
func (d *Dashboard) Logout() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.store.Clear()
	if err != nil {
		d.log.Error("clear session token", "error", err)
	}
	d.resetForm()
	d.state.Mode = LoggedOut
	d.state.Stickers = nil
	d.setStatus("You have been logged out.", StatusInfo)
	d.render()
	return err
}

// Reload fetches the full sticker list, inactive ones included.
func (d *Dashboard) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.reload(ctx)
	d.render()
	return err
}

// StartEdit pre-fills the form with a sticker and switches to editing.
func (d *Dashboard) StartEdit(s backend.Sticker) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Mode == LoggedOut {
		return
	}

	d.state.Mode = Editing
	d.state.EditingID = s.ID
	d.state.Form = FormFromSticker(s)
	d.setStatus(fmt.Sprintf("Editing “%s”. Make changes and click Update sticker.", s.Name), StatusInfo)
	d.render()
}

// CancelEdit drops the form without saving.
func (d *Dashboard) CancelEdit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Mode != Editing {
		return
	}
	d.resetForm()
	d.setStatus("Edit cancelled.", StatusInfo)
	d.render()
}

// Submit validates the form and creates or updates a sticker. Invalid
// input never reaches the backend.
func (d *Dashboard) Submit(ctx context.Context, form StickerForm) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.token(); !ok {
		d.expire()
		d.render()
		return backend.ErrUnauthorized
	}

	editing := d.state.Mode == Editing
	fields, err := form.fields(d.validate, editing)
	if err != nil {
		d.state.Form = form
		d.setStatus(backend.Message(err), StatusError)
		d.render()
		return err
	}

	if editing {
		_, err = d.api.UpdateSticker(ctx, d.state.EditingID, fields)
	} else {
		_, err = d.api.CreateSticker(ctx, fields)
	}
	if err != nil {
		return d.fail("save sticker", err)
	}

	if editing {
		d.log.Info("sticker updated", "sticker_id", d.state.EditingID)
		d.setStatus("Sticker updated successfully.", StatusSuccess)
	} else {
		d.log.Info("sticker created", "name", fields.Name)
		d.setStatus("Sticker created successfully.", StatusSuccess)
	}
	d.resetForm()
	err = d.reload(ctx)
	d.render()
	return err
}

// Toggle flips a sticker between active and inactive.
func (d *Dashboard) Toggle(ctx context.Context, s backend.Sticker) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.token(); !ok {
		d.expire()
		d.render()
		return backend.ErrUnauthorized
	}

	if _, err := d.api.SetStickerActive(ctx, s.ID, !s.Active); err != nil {
		return d.fail("toggle sticker", err)
	}

	if err := d.reload(ctx); err != nil {
		d.render()
		return err
	}
	if s.Active {
		d.setStatus("Sticker deactivated.", StatusSuccess)
	} else {
		d.setStatus("Sticker activated.", StatusSuccess)
	}
	d.render()
	return nil
}

// Delete removes a sticker after the operator confirms.
func (d *Dashboard) Delete(ctx context.Context, s backend.Sticker, c Confirmer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.token(); !ok {
		d.expire()
		d.render()
		return backend.ErrUnauthorized
	}

	if !c.Confirm(fmt.Sprintf("Delete %s? This cannot be undone.", s.Name)) {
		return ErrDeclined
	}

	if err := d.api.DeleteSticker(ctx, s.ID); err != nil {
		return d.fail("delete sticker", err)
	}

	d.log.Info("sticker deleted", "sticker_id", s.ID)
	if err := d.reload(ctx); err != nil {
		d.render()
		return err
	}
	d.setStatus("Sticker deleted.", StatusSuccess)
	d.render()
	return nil
}

// reload refreshes the list; it leaves rendering to the caller.
func (d *Dashboard) reload(ctx context.Context) error {
	if _, ok := d.token(); !ok {
		return nil
	}

	stickers, err := d.api.ListStickers(ctx, true)
	if err != nil {
		if backend.IsUnauthorized(err) {
			d.expire()
			return err
		}
		d.log.Warn("load stickers", "error", err)
		d.setStatus(backend.Message(err), StatusError)
		return err
	}

	d.state.Stickers = stickers
	return nil
}

// fail reports a failed mutation; 401/403 ends the session.
func (d *Dashboard) fail(op string, err error) error {
	if backend.IsUnauthorized(err) {
		d.expire()
	} else {
		d.log.Warn(op, "error", err)
		d.setStatus(backend.Message(err), StatusError)
	}
	d.render()
	return err
}

func (d *Dashboard) expire() {
	if err := d.store.Clear(); err != nil {
		d.log.Error("clear session token", "error", err)
	}
	d.log.Info("admin session expired")
	d.resetForm()
	d.state.Mode = LoggedOut
	d.state.Stickers = nil
	d.setStatus(sessionExpired, StatusError)
}

func (d *Dashboard) token() (string, bool) {
	token, ok, err := d.store.Load()
	if err != nil {
		d.log.Error("load session token", "error", err)
		return "", false
	}
	return token, ok
}

func (d *Dashboard) resetForm() {
	if d.state.Mode == Editing {
		d.state.Mode = Idle
	}
	d.state.EditingID = 0
	d.state.Form = StickerForm{Currency: "usd", Active: true}
}

func (d *Dashboard) setStatus(msg string, kind StatusKind) {
	d.state.Status = msg
	d.state.StatusKind = kind
}

func (d *Dashboard) clearStatus() {
	d.state.Status = ""
	d.state.StatusKind = ""
}

func (d *Dashboard) render() {
	if d.presenter != nil {
		d.presenter.Render(Render(d.state))
	}
}

// FormFromSticker pre-fills the edit form.
func FormFromSticker(s backend.Sticker) StickerForm {
	f := StickerForm{
		Name:     s.Name,
		Price:    strconv.FormatInt(s.PriceCents, 10),
		Currency: s.Currency,
		Active:   s.Active,
	}
	if s.Description != nil {
		f.Description = *s.Description
	}
	return f
}

// normalizeCurrency applies the form default.
func normalizeCurrency(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return "usd"
	}
	return c
}
