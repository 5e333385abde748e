package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/session"
)

/* ──────────────────────────────── fake backend ──────────────────────────────── */

type shop struct {
	mu       sync.Mutex
	token    string
	nextID   int64
	stickers []backend.Sticker
	requests int
	expired  bool
}

func (s *shop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	if r.URL.Path == "/admin/login" {
		r.ParseForm()
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(backend.Token{AccessToken: s.token, TokenType: "bearer"})
		return
	}

	if s.expired || r.Header.Get("Authorization") != "Bearer "+s.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/stickers/":
		json.NewEncoder(w).Encode(s.stickers)
	case r.Method == http.MethodPost && r.URL.Path == "/stickers/":
		r.ParseMultipartForm(1 << 20)
		price, _ := strconv.ParseInt(r.FormValue("price_cents"), 10, 64)
		s.nextID++
		st := backend.Sticker{
			ID:         s.nextID,
			Name:       r.FormValue("name"),
			PriceCents: price,
			Currency:   r.FormValue("currency"),
			Active:     r.FormValue("active") == "true",
		}
		s.stickers = append(s.stickers, st)
		json.NewEncoder(w).Encode(st)
	case strings.HasPrefix(r.URL.Path, "/stickers/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/stickers/"), 10, 64)
		idx := -1
		for i := range s.stickers {
			if s.stickers[i].ID == id {
				idx = i
			}
		}
		if idx < 0 {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Sticker not found"}`))
			return
		}
		switch r.Method {
		case http.MethodDelete:
			s.stickers = append(s.stickers[:idx], s.stickers[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPatch:
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				var body struct{ Active *bool }
				json.NewDecoder(r.Body).Decode(&body)
				if body.Active != nil {
					s.stickers[idx].Active = *body.Active
				}
			} else {
				r.ParseMultipartForm(1 << 20)
				s.stickers[idx].Name = r.FormValue("name")
				desc := r.FormValue("description")
				s.stickers[idx].Description = &desc
				s.stickers[idx].PriceCents, _ = strconv.ParseInt(r.FormValue("price_cents"), 10, 64)
			}
			json.NewEncoder(w).Encode(s.stickers[idx])
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *shop) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

type recorder struct{ views []View }

func (r *recorder) Render(v View) { r.views = append(r.views, v) }
func (r *recorder) last() View    { return r.views[len(r.views)-1] }

type answer bool

func (a answer) Confirm(string) bool { return bool(a) }

type harness struct {
	shop  *shop
	store *session.Memory
	view  *recorder
	dash  *Dashboard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		shop:  &shop{token: "tok"},
		store: session.NewMemory(),
		view:  &recorder{},
	}
	srv := httptest.NewServer(h.shop)
	t.Cleanup(srv.Close)

	api := backend.NewClient(srv.URL, h.store, nil)
	h.dash = New(api, h.store, h.view, "admin", nil)
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.dash.Login(context.Background(), "hunter2"))
}

/* ──────────────────────────────── tests ──────────────────────────────── */

func TestLoginCreateAndList(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	tok, ok, _ := h.store.Load()
	require.True(t, ok)
	require.Equal(t, "tok", tok)
	require.Equal(t, Idle, h.dash.Snapshot().Mode)
	require.Equal(t, "No stickers yet. Create your first sticker above.", h.view.last().Empty)

	err := h.dash.Submit(context.Background(), StickerForm{Name: "Cat", Price: "500", Currency: "usd", Active: true})
	require.NoError(t, err)

	v := h.view.last()
	require.True(t, v.LoggedIn)
	require.Equal(t, "Sticker created successfully.", v.Status)
	require.Len(t, v.Items, 1)
	require.Equal(t, "Cat", v.Items[0].Name)
	require.Equal(t, "5.00 USD", v.Items[0].Price)
	require.Equal(t, "Active", v.Items[0].Badge)
	require.Empty(t, v.Empty)
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)

	err := h.dash.Login(context.Background(), "wrong")
	require.Error(t, err)

	v := h.view.last()
	require.False(t, v.LoggedIn)
	require.Equal(t, "Invalid password", v.Status)
	require.Equal(t, StatusError, v.StatusKind)
	_, ok, _ := h.store.Load()
	require.False(t, ok)
}

func TestInitRestoresSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save("tok"))
	h.shop.stickers = []backend.Sticker{{ID: 1, Name: "Cat", PriceCents: 500, Currency: "usd"}}

	require.NoError(t, h.dash.Init(context.Background()))
	v := h.view.last()
	require.True(t, v.LoggedIn)
	require.Equal(t, "Inactive", v.Items[0].Badge)
	require.Equal(t, "Activate", v.Items[0].ToggleLabel)
}

func TestInitWithoutSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.dash.Init(context.Background()))
	require.False(t, h.view.last().LoggedIn)
	require.Zero(t, h.shop.count())
}

func TestInvalidFormNeverReachesBackend(t *testing.T) {
	cases := []struct {
		form StickerForm
		msg  string
	}{
		{StickerForm{Name: "   ", Price: "500"}, "Name is required."},
		{StickerForm{Name: "Cat", Price: "0"}, "Price must be a positive whole number."},
		{StickerForm{Name: "Cat", Price: "-5"}, "Price must be a positive whole number."},
		{StickerForm{Name: "Cat", Price: "5.5"}, "Price must be a positive whole number."},
		{StickerForm{Name: "Cat", Price: "abc"}, "Price must be a positive whole number."},
		{StickerForm{Name: "Cat", Price: ""}, "Price must be a positive whole number."},
		{StickerForm{Name: "Cat", Price: "5", Currency: "dollars!"}, "Currency must be a short code such as usd or ton."},
	}

	h := newHarness(t)
	h.login(t)

	for _, tc := range cases {
		before := h.shop.count()
		err := h.dash.Submit(context.Background(), tc.form)
		require.ErrorIs(t, err, backend.ErrValidation)
		require.Equal(t, tc.msg, h.view.last().Status)
		require.Equal(t, before, h.shop.count())
	}
}

func TestEditFlow(t *testing.T) {
	h := newHarness(t)
	desc := "meow"
	h.shop.stickers = []backend.Sticker{{ID: 4, Name: "Cat", Description: &desc, PriceCents: 500, Currency: "usd", Active: true}}
	h.login(t)

	h.dash.StartEdit(h.shop.stickers[0])
	s := h.dash.Snapshot()
	require.Equal(t, Editing, s.Mode)
	require.Equal(t, int64(4), s.EditingID)
	require.Equal(t, StickerForm{Name: "Cat", Description: "meow", Price: "500", Currency: "usd", Active: true}, s.Form)
	require.Equal(t, "Edit sticker", h.view.last().FormTitle)
	require.Equal(t, "Update sticker", h.view.last().SubmitLabel)

	form := s.Form
	form.Name = "Big Cat"
	form.Description = ""
	form.Price = "700"
	require.NoError(t, h.dash.Submit(context.Background(), form))

	s = h.dash.Snapshot()
	require.Equal(t, Idle, s.Mode)
	require.Zero(t, s.EditingID)
	require.Equal(t, "Sticker updated successfully.", s.Status)
	require.Equal(t, "Big Cat", s.Stickers[0].Name)
	require.Equal(t, "", *s.Stickers[0].Description)
	require.Equal(t, "Create sticker", h.view.last().FormTitle)
}

func TestCancelEdit(t *testing.T) {
	h := newHarness(t)
	h.shop.stickers = []backend.Sticker{{ID: 4, Name: "Cat", PriceCents: 500, Currency: "usd"}}
	h.login(t)

	h.dash.StartEdit(h.shop.stickers[0])
	h.dash.CancelEdit()

	s := h.dash.Snapshot()
	require.Equal(t, Idle, s.Mode)
	require.Equal(t, "Edit cancelled.", s.Status)
	require.Equal(t, StickerForm{Currency: "usd", Active: true}, s.Form)
}

func TestToggle(t *testing.T) {
	h := newHarness(t)
	h.shop.stickers = []backend.Sticker{{ID: 1, Name: "Cat", PriceCents: 500, Currency: "usd", Active: true}}
	h.login(t)

	require.NoError(t, h.dash.Toggle(context.Background(), h.dash.Snapshot().Stickers[0]))
	v := h.view.last()
	require.Equal(t, "Sticker deactivated.", v.Status)
	require.True(t, v.Items[0].Inactive)

	require.NoError(t, h.dash.Toggle(context.Background(), h.dash.Snapshot().Stickers[0]))
	require.Equal(t, "Sticker activated.", h.view.last().Status)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	h.shop.stickers = []backend.Sticker{{ID: 1, Name: "Cat", PriceCents: 500, Currency: "usd"}}
	h.login(t)
	st := h.dash.Snapshot().Stickers[0]

	before := h.shop.count()
	require.ErrorIs(t, h.dash.Delete(context.Background(), st, answer(false)), ErrDeclined)
	require.Equal(t, before, h.shop.count())

	require.NoError(t, h.dash.Delete(context.Background(), st, answer(true)))
	require.Equal(t, "Sticker deleted.", h.view.last().Status)
	require.Empty(t, h.dash.Snapshot().Stickers)
}

func TestNotFoundKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	err := h.dash.Delete(context.Background(), backend.Sticker{ID: 99, Name: "Ghost"}, answer(true))
	require.ErrorIs(t, err, backend.ErrNotFound)

	v := h.view.last()
	require.True(t, v.LoggedIn)
	require.Equal(t, "Sticker not found", v.Status)
	_, ok, _ := h.store.Load()
	require.True(t, ok)
}

func TestUnauthorizedLogsOut(t *testing.T) {
	h := newHarness(t)
	h.shop.stickers = []backend.Sticker{{ID: 1, Name: "Cat", PriceCents: 500, Currency: "usd", Active: true}}
	h.login(t)
	h.dash.StartEdit(h.shop.stickers[0])

	h.shop.expired = true
	err := h.dash.Toggle(context.Background(), h.shop.stickers[0])
	require.ErrorIs(t, err, backend.ErrUnauthorized)

	_, ok, _ := h.store.Load()
	require.False(t, ok)

	s := h.dash.Snapshot()
	require.Equal(t, LoggedOut, s.Mode)
	require.Zero(t, s.EditingID)

	v := h.view.last()
	require.False(t, v.LoggedIn)
	require.Equal(t, "Your session expired. Please log in again.", v.Status)
	require.Equal(t, StatusError, v.StatusKind)
}

func TestUnauthorizedOnReload(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.shop.expired = true

	require.ErrorIs(t, h.dash.Reload(context.Background()), backend.ErrUnauthorized)
	require.False(t, h.view.last().LoggedIn)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	require.NoError(t, h.dash.Logout())
	v := h.view.last()
	require.False(t, v.LoggedIn)
	require.Equal(t, "You have been logged out.", v.Status)
	_, ok, _ := h.store.Load()
	require.False(t, ok)

	before := h.shop.count()
	require.ErrorIs(t, h.dash.Submit(context.Background(), StickerForm{Name: "Cat", Price: "1"}), backend.ErrUnauthorized)
	require.Equal(t, before, h.shop.count())
}
