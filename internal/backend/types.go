package backend

import (
	"strconv"
	"time"
)

// Sticker is a catalog item as returned by /stickers/
type Sticker struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"` // minor units; nanotons for TON
	Currency    string    `json:"currency"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Token is the login response
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// PaymentConfig describes the card (Stripe) rail
type PaymentConfig struct {
	StripePublishableKey *string `json:"stripe_publishable_key"`
	Currency             string  `json:"currency"`
}

// TonConfig describes the TON rail
type TonConfig struct {
	WalletAddress     string `json:"wallet_address"`
	InvoiceTTLSeconds int    `json:"invoice_ttl_seconds"`
}

// InvoiceStatus is the server-side state of a TON invoice
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceConfirmed InvoiceStatus = "confirmed"
	InvoiceExpired   InvoiceStatus = "expired"
)

// Invoice covers both invoice shapes the backend returns: the creation
// response (invoice_id) and the full record (id).
type Invoice struct {
	InvoiceID       int64         `json:"invoice_id,omitempty"`
	ID              int64         `json:"id,omitempty"`
	WalletAddress   string        `json:"wallet_address"`
	AmountNanoton   int64         `json:"amount_nanoton"`
	Currency        string        `json:"currency,omitempty"`
	Comment         string        `json:"comment"`
	Status          InvoiceStatus `json:"status,omitempty"`
	TransactionHash *string       `json:"transaction_hash,omitempty"`
	ExpiresAt       time.Time     `json:"expires_at"`
}

// Key returns the identifier used for refresh and confirm calls.
func (i *Invoice) Key() int64 {
	if i.InvoiceID != 0 {
		return i.InvoiceID
	}
	return i.ID
}

// State normalizes the status; unknown and empty values count as pending.
func (i *Invoice) State() InvoiceStatus {
	switch i.Status {
	case InvoiceConfirmed, InvoiceExpired:
		return i.Status
	default:
		return InvoicePending
	}
}

// PurchaseRequest is the payload for checkout and TON invoice creation
type PurchaseRequest struct {
	StickerID      int64   `json:"sticker_id"`
	TelegramUserID string  `json:"telegram_user_id"`
	Email          *string `json:"email,omitempty"`
}

// Checkout is the card checkout session
type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id,omitempty"`
}

// Upload is an image attached to a sticker form
type Upload struct {
	Filename string
	Data     []byte
}

// StickerFields are the multipart fields sent on create and update
type StickerFields struct {
	Name        string
	Description *string
	PriceCents  int64
	Currency    string
	Active      bool
	Image       *Upload
}

func (f StickerFields) values() map[string]string {
	v := map[string]string{
		"name":        f.Name,
		"price_cents": strconv.FormatInt(f.PriceCents, 10),
		"currency":    f.Currency,
		"active":      strconv.FormatBool(f.Active),
	}
	if f.Description != nil {
		v["description"] = *f.Description
	}
	return v
}

type confirmRequest struct {
	InvoiceID       int64  `json:"invoice_id"`
	TransactionHash string `json:"transaction_hash"`
}

type errorBody struct {
	Detail any `json:"detail"`
}
