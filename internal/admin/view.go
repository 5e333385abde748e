package admin

import (
	"github.com/suspectuso/sticker-shop/internal/backend"
)

const emptyList = "No stickers yet. Create your first sticker above."

// View is what a presenter draws for one State
type View struct {
	LoggedIn    bool
	FormTitle   string
	SubmitLabel string
	Editing     bool
	Form        StickerForm
	Items       []Item
	Empty       string
	Status      string
	StatusKind  StatusKind
}

// Item is one row of the sticker list
type Item struct {
	ID          int64
	Name        string
	Description string
	Price       string
	Badge       string
	Inactive    bool
	ToggleLabel string
	ImagePath   string
}

// Render maps a dashboard state to its view
func Render(s State) View {
	v := View{
		Status:     s.Status,
		StatusKind: s.StatusKind,
	}
	if s.Mode == LoggedOut {
		return v
	}

	v.LoggedIn = true
	v.Form = s.Form
	v.FormTitle = "Create sticker"
	v.SubmitLabel = "Save sticker"
	if s.Mode == Editing {
		v.Editing = true
		v.FormTitle = "Edit sticker"
		v.SubmitLabel = "Update sticker"
	}

	if len(s.Stickers) == 0 {
		v.Empty = emptyList
		return v
	}

	for _, st := range s.Stickers {
		it := Item{
			ID:          st.ID,
			Name:        st.Name,
			Price:       backend.FormatPrice(st, ""),
			Badge:       "Active",
			ToggleLabel: "Deactivate",
		}
		if !st.Active {
			it.Badge = "Inactive"
			it.Inactive = true
			it.ToggleLabel = "Activate"
		}
		if st.Description != nil {
			it.Description = *st.Description
		}
		if st.ImageURL != nil {
			it.ImagePath = *st.ImageURL
		}
		v.Items = append(v.Items, it)
	}
	return v
}
