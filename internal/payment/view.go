package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/tonapi"
)

// View is what a presenter draws for one State
type View struct {
	Open     bool
	Phase    Phase
	Title    string
	Subtitle string
	Options  []Option
	Invoice  *InvoiceView

	Status     string
	StatusKind StatusKind

	HashEnabled    bool
	SubmitEnabled  bool
	RefreshEnabled bool
}

// Option is one payment method button
type Option struct {
	Method   Method
	Label    string
	Hint     string
	Disabled bool
}

// InvoiceView is the TON invoice panel
type InvoiceView struct {
	ID        int64
	Wallet    string
	Amount    string
	Comment   string
	Countdown string
	Copied    Field
}

// Render maps a flow state to its view. It has no side effects.
func Render(s State) View {
	if s.Phase == Closed || s.Sticker == nil {
		return View{}
	}

	v := View{
		Open:       true,
		Phase:      s.Phase,
		Title:      s.Sticker.Name,
		Subtitle:   backend.FormatPrice(*s.Sticker, s.Currency),
		Status:     s.Status,
		StatusKind: s.StatusKind,
	}

	for _, m := range s.Methods {
		switch m {
		case MethodCard:
			v.Options = append(v.Options, Option{
				Method:   m,
				Label:    "Pay with card",
				Hint:     "Secure checkout powered by Stripe.",
				Disabled: s.CardPending,
			})
		case MethodTon:
			v.Options = append(v.Options, Option{
				Method:   m,
				Label:    "Pay with TON",
				Hint:     "Send a quick on-chain transfer to complete your order.",
				Disabled: s.Creating || s.Phase == TonConfirmed,
			})
		}
	}

	if inv := s.Invoice; inv != nil {
		ton := tonapi.FormatNano(inv.AmountNanoton, 3)
		v.Subtitle = fmt.Sprintf("Send %s %s from your TON wallet.", ton, strings.ToUpper(s.Currency))
		v.Invoice = &InvoiceView{
			ID:        inv.Key(),
			Wallet:    inv.WalletAddress,
			Amount:    fmt.Sprintf("%s TON (%d nanotons)", ton, inv.AmountNanoton),
			Comment:   inv.Comment,
			Countdown: countdown(s, inv),
			Copied:    s.Copied,
		}

		live := s.Phase != TonConfirmed
		v.HashEnabled = live
		v.SubmitEnabled = live && !s.Submitting
		v.RefreshEnabled = live && !s.Refreshing
	}

	return v
}

func countdown(s State, inv *backend.Invoice) string {
	switch {
	case s.Phase == TonExpired:
		return "Expired"
	case inv.ExpiresAt.IsZero():
		return ""
	default:
		return FormatRemaining(s.Remaining)
	}
}

// FormatRemaining renders a countdown as "4m 05s".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}
