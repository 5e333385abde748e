package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TokenSource yields the bearer token, if any, for each request.
type TokenSource interface {
	Load() (string, bool, error)
}

// Client talks to the sticker shop backend. Every method issues exactly one
// HTTP request and never retries.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a backend client. tokens may be nil for anonymous use.
func NewClient(baseURL string, tokens TokenSource, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		// expiry is server-defined; callers bound requests with ctx
		httpClient: &http.Client{},
		log:        log,
	}
}

// BaseURL returns the backend root, used to resolve image paths.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type payload struct {
	body        io.Reader
	contentType string
}

func jsonPayload(v any) (*payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return &payload{body: bytes.NewReader(data), contentType: "application/json"}, nil
}

func formPayload(v url.Values) *payload {
	return &payload{
		body:        strings.NewReader(v.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
}

func multipartPayload(fields map[string]string, file *Upload) (*payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if file != nil {
		part, err := w.CreateFormFile("image", file.Filename)
		if err != nil {
			return nil, fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return &payload{body: &buf, contentType: w.FormDataContentType()}, nil
}

// doRequest performs one call and decodes the JSON response into out.
// fallback is the user-facing message when the backend gives no detail.
func (c *Client) doRequest(ctx context.Context, method, path string, p *payload, out any, fallback string) error {
	var body io.Reader
	if p != nil {
		body = p.body
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: KindNetwork, Detail: fallback, Err: fmt.Errorf("create request: %w", err)}
	}

	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if p != nil {
		req.Header.Set("Content-Type", p.contentType)
	}
	if c.tokens != nil {
		token, ok, err := c.tokens.Load()
		if err != nil {
			c.log.Warn("load session token", "error", err)
		} else if ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("backend request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return &Error{Kind: KindNetwork, Detail: fallback, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Detail: fallback, Err: fmt.Errorf("read body: %w", err)}
	}

	c.log.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "request_id", reqID)

	if resp.StatusCode >= 400 {
		return &Error{
			Kind:   classify(resp.StatusCode),
			Status: resp.StatusCode,
			Detail: detail(data, fallback),
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Detail: fallback, Err: fmt.Errorf("unmarshal: %w", err)}
	}
	return nil
}

func detail(data []byte, fallback string) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}
	if s, ok := body.Detail.(string); ok && s != "" {
		return s
	}
	return fallback
}

// --- Auth ---

// Login exchanges admin credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{"username": {username}, "password": {password}}

	var token Token
	if err := c.doRequest(ctx, http.MethodPost, "/admin/login", formPayload(form), &token, "Invalid password"); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &Error{Kind: KindServer, Detail: "Invalid password"}
	}
	return &token, nil
}

// --- Stickers ---

// ListStickers returns the catalog; inactive items only when includeInactive.
func (c *Client) ListStickers(ctx context.Context, includeInactive bool) ([]Sticker, error) {
	path := "/stickers/"
	if includeInactive {
		path += "?include_inactive=true"
	}

	var stickers []Sticker
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &stickers, "Unable to load stickers"); err != nil {
		return nil, err
	}
	return stickers, nil
}

// CreateSticker uploads a new sticker.
func (c *Client) CreateSticker(ctx context.Context, f StickerFields) (*Sticker, error) {
	p, err := multipartPayload(f.values(), f.Image)
	if err != nil {
		return nil, err
	}

	var s Sticker
	if err := c.doRequest(ctx, http.MethodPost, "/stickers/", p, &s, "Unable to save sticker"); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSticker replaces the editable fields of a sticker.
func (c *Client) UpdateSticker(ctx context.Context, id int64, f StickerFields) (*Sticker, error) {
	p, err := multipartPayload(f.values(), f.Image)
	if err != nil {
		return nil, err
	}

	var s Sticker
	if err := c.doRequest(ctx, http.MethodPatch, "/stickers/"+strconv.FormatInt(id, 10), p, &s, "Unable to save sticker"); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetStickerActive flips only the visibility flag.
func (c *Client) SetStickerActive(ctx context.Context, id int64, active bool) (*Sticker, error) {
	p, err := jsonPayload(map[string]bool{"active": active})
	if err != nil {
		return nil, err
	}

	var s Sticker
	if err := c.doRequest(ctx, http.MethodPatch, "/stickers/"+strconv.FormatInt(id, 10), p, &s, "Unable to update sticker"); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSticker removes a sticker.
func (c *Client) DeleteSticker(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, "/stickers/"+strconv.FormatInt(id, 10), nil, nil, "Unable to delete sticker")
}

// --- Payments ---

// PaymentConfig returns the card rail descriptor, or nil when the backend
// does not offer it.
func (c *Client) PaymentConfig(ctx context.Context) (*PaymentConfig, error) {
	var cfg PaymentConfig
	err := c.doRequest(ctx, http.MethodGet, "/payments/config", nil, &cfg, "Unable to load payment config")
	if absent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TonConfig returns the TON rail descriptor, or nil when TON is not configured.
func (c *Client) TonConfig(ctx context.Context) (*TonConfig, error) {
	var cfg TonConfig
	err := c.doRequest(ctx, http.MethodGet, "/payments/ton/config", nil, &cfg, "Unable to load TON config")
	if absent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// absent reports an HTTP-level refusal, which for config endpoints means
// the rail is switched off rather than the call failing.
func absent(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Status >= 400
}

// CreateCheckout starts a card checkout session.
func (c *Client) CreateCheckout(ctx context.Context, r PurchaseRequest) (*Checkout, error) {
	p, err := jsonPayload(r)
	if err != nil {
		return nil, err
	}

	var co Checkout
	if err := c.doRequest(ctx, http.MethodPost, "/payments/checkout", p, &co, "Unable to create checkout session"); err != nil {
		return nil, err
	}
	return &co, nil
}

// CreateTonInvoice asks the backend for a new TON invoice.
func (c *Client) CreateTonInvoice(ctx context.Context, r PurchaseRequest) (*Invoice, error) {
	p, err := jsonPayload(r)
	if err != nil {
		return nil, err
	}

	var inv Invoice
	if err := c.doRequest(ctx, http.MethodPost, "/payments/ton/invoice", p, &inv, "Unable to create TON invoice"); err != nil {
		return nil, err
	}
	return &inv, nil
}

// TonInvoice fetches the current state of an invoice.
func (c *Client) TonInvoice(ctx context.Context, id int64) (*Invoice, error) {
	var inv Invoice
	if err := c.doRequest(ctx, http.MethodGet, "/payments/ton/invoice/"+strconv.FormatInt(id, 10), nil, &inv, "Unable to refresh invoice"); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ConfirmTonPayment submits a transaction hash for an invoice.
func (c *Client) ConfirmTonPayment(ctx context.Context, invoiceID int64, txHash string) (*Invoice, error) {
	p, err := jsonPayload(confirmRequest{InvoiceID: invoiceID, TransactionHash: txHash})
	if err != nil {
		return nil, err
	}

	var inv Invoice
	if err := c.doRequest(ctx, http.MethodPost, "/payments/ton/confirm", p, &inv, "Unable to confirm TON payment"); err != nil {
		return nil, err
	}
	return &inv, nil
}
