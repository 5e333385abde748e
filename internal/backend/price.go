package backend

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyTON marks stickers priced in nanotons.
const CurrencyTON = "ton"

// CurrencyOr returns the sticker's lowercase currency, falling back to
// fallback and then to usd.
func (s Sticker) CurrencyOr(fallback string) string {
	switch {
	case s.Currency != "":
		return strings.ToLower(s.Currency)
	case fallback != "":
		return strings.ToLower(fallback)
	default:
		return "usd"
	}
}

// FormatPrice renders a price for display: "1.500 TON" for nanoton prices,
// "5.00 USD" for everything else.
func FormatPrice(s Sticker, fallbackCurrency string) string {
	cur := s.CurrencyOr(fallbackCurrency)
	if cur == CurrencyTON {
		return decimal.New(s.PriceCents, -9).StringFixed(3) + " TON"
	}
	return decimal.New(s.PriceCents, -2).StringFixed(2) + " " + strings.ToUpper(cur)
}
