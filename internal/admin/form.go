package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/suspectuso/sticker-shop/internal/backend"
)

// StickerForm is the raw create/edit form input.
type StickerForm struct {
	Name        string
	Description string
	Price       string // whole minor units
	Currency    string
	Active      bool
	Image       *backend.Upload
}

type stickerInput struct {
	Name       string `validate:"required,max=255"`
	PriceCents int64  `validate:"gt=0"`
	Currency   string `validate:"required,max=8,alpha"`
}

var fieldMessages = map[string]string{
	"Name":       "Name is required.",
	"PriceCents": "Price must be a positive whole number.",
	"Currency":   "Currency must be a short code such as usd or ton.",
}

// fields validates the form and builds the request fields. The description
// is always sent on update so it can be cleared.
func (f StickerForm) fields(v *validator.Validate, editing bool) (backend.StickerFields, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(f.Price), 10, 64)
	if err != nil {
		price = 0
	}

	in := stickerInput{
		Name:       strings.TrimSpace(f.Name),
		PriceCents: price,
		Currency:   normalizeCurrency(f.Currency),
	}
	if err := v.Struct(in); err != nil {
		return backend.StickerFields{}, validationError(err)
	}

	out := backend.StickerFields{
		Name:       in.Name,
		PriceCents: in.PriceCents,
		Currency:   in.Currency,
		Active:     f.Active,
		Image:      f.Image,
	}
	if desc := strings.TrimSpace(f.Description); desc != "" || editing {
		out.Description = &desc
	}
	return out, nil
}

// validationError reports the first failing field, in declaration order.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return backend.NewValidation(err.Error())
	}

	field := verrs[0].Field()
	if field == "Name" && verrs[0].Tag() == "max" {
		return backend.NewValidation("Name must be at most 255 characters.")
	}
	if msg, ok := fieldMessages[field]; ok {
		return backend.NewValidation(msg)
	}
	return backend.NewValidation(verrs[0].Error())
}
