package tonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo/ton"
	"golang.org/x/time/rate"
)

// Client is a TonAPI HTTP client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	limiter *rate.Limiter
}

// NewClient creates a new TonAPI client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1), // ~4 RPS
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// GetEvents returns recent events for an account
func (c *Client) GetEvents(ctx context.Context, address string, limit int) ([]Event, error) {
	path := fmt.Sprintf("/accounts/%s/events?limit=%d", address, limit)
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp EventsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return resp.Events, nil
}

// FindPayment returns the event id (the transaction hash) of the first
// successful incoming transfer to wallet carrying comment and at least minNano.
func FindPayment(events []Event, wallet, comment string, minNano int64) (string, bool) {
	walletRaw := NormalizeAddress(wallet)
	comment = strings.TrimSpace(comment)

	for _, ev := range events {
		if ev.IsScam || ev.EventID == "" {
			continue
		}
		for _, action := range ev.Actions {
			if action.Type != "TonTransfer" || action.TonTransfer == nil {
				continue
			}
			if action.Status != "" && action.Status != "ok" {
				continue
			}

			tt := action.TonTransfer
			if NormalizeAddress(tt.Recipient.Address) != walletRaw {
				continue
			}
			if strings.TrimSpace(tt.Comment) != comment || tt.Amount < minNano {
				continue
			}
			return ev.EventID, true
		}
	}
	return "", false
}

// --- Address Utilities ---

// FormatNano renders a nanoTON amount with the given number of decimals
func FormatNano(nano int64, places int32) string {
	return decimal.New(nano, -9).StringFixed(places)
}

// RawToFriendly converts raw address (0:...) to friendly format (UQ.../EQ...)
func RawToFriendly(raw string) string {
	if raw == "" {
		return ""
	}

	acc, err := ton.ParseAccountID(raw)
	if err != nil {
		return raw
	}

	// bounceable, URL-safe
	return acc.ToHuman(true, false)
}

// NormalizeAddress converts any address format to raw (0:...)
func NormalizeAddress(addr string) string {
	if addr == "" {
		return ""
	}

	acc, err := ton.ParseAccountID(addr)
	if err != nil {
		return addr
	}

	return acc.String()
}

// ShortAddr returns a shortened address for display
func ShortAddr(addr string, n int) string {
	if addr == "" {
		return "unknown"
	}
	if len(addr) < n*2+3 {
		return addr
	}
	return addr[:n] + "..." + addr[len(addr)-n:]
}
