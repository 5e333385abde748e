package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/sticker-shop/internal/payment"
	"github.com/suspectuso/sticker-shop/internal/storefront"
	"github.com/suspectuso/sticker-shop/internal/tonapi"
)

// Callback data
const (
	cbBuyPrefix   = "buy:"
	cbPayPrefix   = "pay:"
	cbCopyPrefix  = "copy:"
	cbTonRefresh  = "ton_refresh"
	cbTonFind     = "ton_find"
	cbClose       = "close"
	cbCatalog     = "catalog"
	cbNoop        = "noop"
	closedMessage = "Payment window closed."
)

// CatalogKeyboard returns one "Choose payment" button per sticker
func CatalogKeyboard(items []storefront.Item) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, it := range items {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: fmt.Sprintf("%s · %s", it.Name, it.Price), CallbackData: fmt.Sprintf("%s%d", cbBuyPrefix, it.ID)},
		})
	}

	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "🔄 Reload", CallbackData: cbCatalog},
	})

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CatalogText renders the storefront listing
func CatalogText(cat *storefront.Catalog, baseURL string) string {
	if cat.Empty != "" {
		return html.EscapeString(cat.Empty)
	}

	lines := []string{"🛍 <b>Sticker packs</b>", ""}
	for _, it := range cat.Items(baseURL) {
		line := fmt.Sprintf("• <b>%s</b> — %s", html.EscapeString(it.Name), html.EscapeString(it.Price))
		if it.Description != "" {
			line += "\n  <i>" + html.EscapeString(it.Description) + "</i>"
		}
		if it.ImageURL != "" {
			line += fmt.Sprintf("\n  <a href='%s'>preview</a>", html.EscapeString(it.ImageURL))
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "Choose a pack below 👇")
	return strings.Join(lines, "\n")
}

// ModalText renders the payment modal
func ModalText(v payment.View) string {
	if !v.Open {
		return closedMessage
	}

	lines := []string{
		"💳 <b>" + html.EscapeString(v.Title) + "</b>",
		html.EscapeString(v.Subtitle),
	}

	if inv := v.Invoice; inv != nil {
		wallet := inv.Wallet
		if strings.HasPrefix(wallet, "0:") || strings.HasPrefix(wallet, "-1:") {
			wallet = tonapi.RawToFriendly(wallet)
		}
		lines = append(lines,
			"",
			"Wallet: <code>"+html.EscapeString(wallet)+"</code>",
			"Amount: <b>"+html.EscapeString(inv.Amount)+"</b>",
			"Comment: <code>"+html.EscapeString(inv.Comment)+"</code>",
		)
		if inv.Countdown != "" {
			lines = append(lines, "Expires in: <b>"+inv.Countdown+"</b>")
		}
		if inv.Copied != "" {
			lines = append(lines, "📋 Copied!")
		}
	}

	if v.Status != "" {
		lines = append(lines, "", statusIcon(v.StatusKind)+" "+html.EscapeString(v.Status))
	}

	if v.Invoice != nil && v.HashEnabled && v.SubmitEnabled {
		lines = append(lines, "", "After paying, send the transaction hash here as a message.")
	}

	return strings.Join(lines, "\n")
}

func statusIcon(k payment.StatusKind) string {
	switch k {
	case payment.StatusError:
		return "❌"
	case payment.StatusSuccess:
		return "✅"
	default:
		return "ℹ️"
	}
}

// ModalKeyboard returns the controls of the payment modal
func ModalKeyboard(v payment.View, canFind bool) *models.InlineKeyboardMarkup {
	if !v.Open {
		return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}}
	}

	var rows [][]models.InlineKeyboardButton

	for _, o := range v.Options {
		if o.Disabled {
			rows = append(rows, []models.InlineKeyboardButton{{Text: "⏳ " + o.Label, CallbackData: cbNoop}})
			continue
		}
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: o.Label, CallbackData: cbPayPrefix + string(o.Method)},
		})
	}

	if v.Invoice != nil {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "📋 Copy wallet", CallbackData: cbCopyPrefix + string(payment.FieldWallet)},
			{Text: "📋 Copy comment", CallbackData: cbCopyPrefix + string(payment.FieldComment)},
		})

		var controls []models.InlineKeyboardButton
		if v.RefreshEnabled {
			controls = append(controls, models.InlineKeyboardButton{Text: "🔄 Check status", CallbackData: cbTonRefresh})
		}
		if canFind && v.SubmitEnabled {
			controls = append(controls, models.InlineKeyboardButton{Text: "🔎 Find my transfer", CallbackData: cbTonFind})
		}
		if len(controls) > 0 {
			rows = append(rows, controls)
		}
	}

	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "✖️ Close", CallbackData: cbClose},
	})

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CheckoutKeyboard opens a card checkout page outside the chat
func CheckoutKeyboard(url string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "💳 Open checkout", URL: url},
			},
		},
	}
}
