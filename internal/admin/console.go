package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/suspectuso/sticker-shop/internal/backend"
)

const consoleHelp = `Commands:
  login <password>   log in as the configured admin
  list               reload the sticker list
  save               create a sticker, or update the one being edited
  edit <id>          load a sticker into the form
  cancel             leave edit mode
  toggle <id>        activate or deactivate a sticker
  delete <id>        delete a sticker
  logout             forget the stored session
  help               show this help
  quit               exit`

// Console is a line-oriented front end for the Dashboard. It is also the
// dashboard's Presenter and Confirmer.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole reads commands from in and draws to out
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

// Render implements Presenter
func (c *Console) Render(v View) {
	if v.Status != "" {
		fmt.Fprintf(c.out, "[%s] %s\n", v.StatusKind, v.Status)
	}
	if !v.LoggedIn {
		fmt.Fprintln(c.out, "Admin login required. Use: login <password>")
		return
	}

	fmt.Fprintf(c.out, "\n== %s ==\n", v.FormTitle)
	if v.Editing {
		fmt.Fprintf(c.out, "name=%q price=%s currency=%s active=%t\n", v.Form.Name, v.Form.Price, v.Form.Currency, v.Form.Active)
	}

	if v.Empty != "" {
		fmt.Fprintln(c.out, v.Empty)
		return
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTATUS\tIMAGE")
	for _, it := range v.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Price, it.Badge, it.ImagePath)
	}
	tw.Flush()
}

// Confirm implements Confirmer
func (c *Console) Confirm(prompt string) bool {
	answer, ok := c.prompt(prompt+" [y/N]", "n")
	return ok && strings.EqualFold(answer, "y")
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, d *Dashboard) error {
	if err := d.Init(ctx); err != nil && !errors.Is(err, backend.ErrUnauthorized) {
		fmt.Fprintln(c.out, "Failed to load stickers:", backend.Message(err))
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			return c.in.Err()
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(c.in.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(c.out, consoleHelp)
		case "login":
			d.Login(ctx, arg)
		case "logout":
			d.Logout()
		case "list":
			d.Reload(ctx)
		case "cancel":
			d.CancelEdit()
		case "save":
			c.save(ctx, d)
		case "edit", "toggle", "delete":
			s, ok := c.lookup(d, arg)
			if !ok {
				continue
			}
			switch cmd {
			case "edit":
				d.StartEdit(s)
			case "toggle":
				d.Toggle(ctx, s)
			case "delete":
				if errors.Is(d.Delete(ctx, s, c), ErrDeclined) {
					fmt.Fprintln(c.out, "Delete cancelled.")
				}
			}
		default:
			fmt.Fprintf(c.out, "Unknown command %q. Type help for a list.\n", cmd)
		}
	}
}

func (c *Console) lookup(d *Dashboard, arg string) (backend.Sticker, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintln(c.out, "Usage: <command> <sticker id>")
		return backend.Sticker{}, false
	}
	for _, s := range d.Snapshot().Stickers {
		if s.ID == id {
			return s, true
		}
	}
	fmt.Fprintf(c.out, "No sticker with id %d in the list.\n", id)
	return backend.Sticker{}, false
}

// save prompts for every form field, defaulting to the current form.
func (c *Console) save(ctx context.Context, d *Dashboard) {
	f := d.Snapshot().Form

	var ok bool
	if f.Name, ok = c.prompt("Name", f.Name); !ok {
		return
	}
	if f.Description, ok = c.prompt("Description (- to clear)", f.Description); !ok {
		return
	}
	if f.Description == "-" {
		f.Description = ""
	}
	if f.Price, ok = c.prompt("Price (minor units)", f.Price); !ok {
		return
	}
	if f.Currency, ok = c.prompt("Currency", normalizeCurrency(f.Currency)); !ok {
		return
	}

	active := "y"
	if !f.Active {
		active = "n"
	}
	if active, ok = c.prompt("Active [y/n]", active); !ok {
		return
	}
	f.Active = strings.EqualFold(active, "y")

	path, ok := c.prompt("Image file (optional)", "")
	if !ok {
		return
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(c.out, "Cannot read image:", err)
			return
		}
		f.Image = &backend.Upload{Filename: filepath.Base(path), Data: data}
	}

	d.Submit(ctx, f)
}

// prompt reads one line; an empty answer keeps def. ok is false on EOF.
func (c *Console) prompt(label, def string) (string, bool) {
	if def != "" {
		fmt.Fprintf(c.out, "%s (%s): ", label, def)
	} else {
		fmt.Fprintf(c.out, "%s: ", label)
	}
	if !c.in.Scan() {
		return "", false
	}
	if v := strings.TrimSpace(c.in.Text()); v != "" {
		return v, true
	}
	return def, true
}
