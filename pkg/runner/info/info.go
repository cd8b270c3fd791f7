// Package info provides runners that describe the local state.
package info

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/store"
)

// Info prints where the data lives and a status summary.
type Info struct {
	Settings *store.Settings
	Service  *app.Service
	JSON     bool
	Out      io.Writer
}

func (n *Info) Do(ctx context.Context) error {
	if n.Service == nil || n.Settings == nil {
		return errors.New("can not report status, no service")
	}

	st, err := n.Service.Status(n.Settings.Site)
	if err != nil {
		return err
	}

	out := n.Out
	if out == nil {
		out = color.Output
	}
	if n.JSON {
		b, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}

	if override := os.Getenv("LEVELREQ_CONFIG_PATH"); override != "" {
		_, _ = fmt.Fprintln(out, "LEVELREQ_CONFIG_PATH found on env, using", override)
	}

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Data path"), n.Settings.Path)
	tbl.AddRow(bold.Sprint("Endpoint"), n.Settings.Endpoint)
	if st.Authenticated {
		tbl.AddRow(bold.Sprint("Logged in"), color.GreenString("yes"))
	} else {
		tbl.AddRow(bold.Sprint("Logged in"), color.YellowString("no, run `levelreq login`"))
	}
	if st.StreamerName != "" {
		tbl.AddRow(bold.Sprint("Streamer"), st.StreamerName)
	}
	if st.SubmissionURL != "" {
		tbl.AddRow(bold.Sprint("Submit at"), st.SubmissionURL)
	}
	tbl.AddRow(bold.Sprint("Queued"), st.Queued)
	tbl.AddRow(bold.Sprint("Admitted"), st.Admitted)
	tbl.AddRow(bold.Sprint("Flagged"), st.Flagged)
	tbl.AddRow(bold.Sprint("History"), st.Archived)
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(out, tbl)
	return nil
}

// Message prints the chat reply for a submitted level.
type Message struct {
	Service *app.Service
	ID      string
	Out     io.Writer
}

func (n *Message) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not render message, no service")
	}
	msg, err := n.Service.SubmitMessage(n.ID)
	if err != nil {
		return err
	}
	out := n.Out
	if out == nil {
		out = color.Output
	}
	_, err = fmt.Fprintln(out, msg)
	return err
}
