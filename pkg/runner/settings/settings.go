// Package settings provides runners that show and change the streamer
// settings.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/config"
)

// Show prints the current settings.
type Show struct {
	Service *app.Service
	JSON    bool
	Out     io.Writer
}

func (n *Show) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not show settings, no service")
	}
	cfg, err := n.Service.Settings()
	if err != nil {
		return err
	}
	return render(orOutput(n.Out), cfg, n.JSON)
}

// Set assigns key/value pairs and saves the result in one update.
type Set struct {
	Service *app.Service
	Pairs   [][2]string
	JSON    bool
	Out     io.Writer
}

func (n *Set) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not set settings, no service")
	}
	if len(n.Pairs) == 0 {
		return errors.New("nothing to set")
	}
	cfg, err := n.Service.UpdateSettings(ctx, func(c *config.Config) error {
		for _, p := range n.Pairs {
			if err := c.Set(p[0], p[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return render(orOutput(n.Out), cfg, n.JSON)
}

// Login stores the app id issued by the submission site.
type Login struct {
	Service *app.Service
	AppID   string
	Site    string
	Out     io.Writer
}

func (n *Login) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not log in, no service")
	}
	cfg, err := n.Service.Authenticate(ctx, n.AppID)
	if err != nil {
		return err
	}
	out := orOutput(n.Out)
	_, _ = fmt.Fprintln(out, "App id saved.")
	if u := cfg.SubmissionURL(n.Site); u != "" {
		_, _ = fmt.Fprintf(out, "Viewers submit levels at %s\n", u)
	}
	return nil
}

func render(out io.Writer, cfg config.Config, asJSON bool) error {
	if asJSON {
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("app_id"), mask(cfg.AppID))
	tbl.AddRow(bold.Sprint(config.KeyStreamerName), cfg.StreamerName)
	tbl.AddRow(bold.Sprint(config.KeyBgType), string(cfg.BgType))
	tbl.AddRow(bold.Sprint(config.KeyBgColor1), cfg.BgColor1)
	tbl.AddRow(bold.Sprint(config.KeyBgColor2), cfg.BgColor2)
	tbl.AddRow(bold.Sprint(config.KeyBgImage), cfg.BgImage)
	tbl.AddRow(bold.Sprint(config.KeySubmitMessage), cfg.SubmitMessage)
	tbl.AddRow(bold.Sprint(config.KeyOfflineMessage), cfg.OfflineMessage)
	tbl.AddRow(bold.Sprint(config.KeyShowDonate), cfg.ShowDonate)
	tbl.AddRow(bold.Sprint(config.KeyLengths), join(cfg.Filters.Lengths))
	tbl.AddRow(bold.Sprint(config.KeyDifficulties), join(cfg.Filters.Difficulties))
	tbl.AddRow(bold.Sprint(config.KeyRated), string(cfg.Filters.Rated))
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(out, tbl)
	return nil
}

func join[T fmt.Stringer](items []T) string {
	if len(items) == 0 {
		return color.New(color.Faint, color.Italic).Sprint("none")
	}
	parts := make([]string, 0, len(items))
	for _, i := range items {
		parts = append(parts, i.String())
	}
	return strings.Join(parts, ", ")
}

// mask hides all but the last four characters of the app id.
func mask(id string) string {
	if id == "" {
		return color.New(color.Faint, color.Italic).Sprint("not set")
	}
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}

func orOutput(w io.Writer) io.Writer {
	if w == nil {
		return color.Output
	}
	return w
}
