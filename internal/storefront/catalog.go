package storefront

import (
	"context"
	"log/slog"

	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/payment"
	"golang.org/x/sync/errgroup"
)

const emptyMessage = "No stickers available yet."

// Backend is the subset of the API client the storefront reads
type Backend interface {
	ListStickers(ctx context.Context, includeInactive bool) ([]backend.Sticker, error)
	PaymentConfig(ctx context.Context) (*backend.PaymentConfig, error)
	TonConfig(ctx context.Context) (*backend.TonConfig, error)
}

// Catalog is one page load of the storefront: the active stickers and the
// payment capabilities, both fixed until the next Load.
type Catalog struct {
	Stickers []backend.Sticker
	Configs  payment.Configs

	// Empty is set when there is nothing to show; it carries the fetch
	// error text when the sticker list failed.
	Empty string
}

// Item is a rendered catalog entry
type Item struct {
	ID          int64
	Name        string
	Description string
	Price       string
	ImageURL    string
}

// Load fetches stickers and both payment configs concurrently. Config
// failures degrade to "rail absent"; a sticker failure degrades to an
// empty state. Nothing is retried.
func Load(ctx context.Context, api Backend, log *slog.Logger) *Catalog {
	var (
		stickers []backend.Sticker
		cat      Catalog
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stickers, err = api.ListStickers(gctx, false)
		return err
	})
	g.Go(func() error {
		cfg, err := api.PaymentConfig(gctx)
		if err != nil {
			log.Warn("load payment config", "error", err)
			return nil
		}
		cat.Configs.Payment = cfg
		return nil
	})
	g.Go(func() error {
		cfg, err := api.TonConfig(gctx)
		if err != nil {
			log.Warn("load ton config", "error", err)
			return nil
		}
		cat.Configs.Ton = cfg
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("load stickers", "error", err)
		cat.Empty = backend.Message(err)
		return &cat
	}

	cat.Stickers = stickers
	if len(stickers) == 0 {
		cat.Empty = emptyMessage
	}
	return &cat
}

// Find returns the sticker with id from this page load.
func (c *Catalog) Find(id int64) (backend.Sticker, bool) {
	for _, s := range c.Stickers {
		if s.ID == id {
			return s, true
		}
	}
	return backend.Sticker{}, false
}

// Items renders the catalog entries. baseURL resolves relative image paths.
func (c *Catalog) Items(baseURL string) []Item {
	fallback := ""
	if c.Configs.Payment != nil {
		fallback = c.Configs.Payment.Currency
	}

	items := make([]Item, 0, len(c.Stickers))
	for _, s := range c.Stickers {
		it := Item{
			ID:    s.ID,
			Name:  s.Name,
			Price: backend.FormatPrice(s, fallback),
		}
		if s.Description != nil {
			it.Description = *s.Description
		}
		if s.ImageURL != nil && *s.ImageURL != "" {
			it.ImageURL = baseURL + *s.ImageURL
		}
		items = append(items, it)
	}
	return items
}
