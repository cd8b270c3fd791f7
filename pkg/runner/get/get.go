// Package get provides runners that print the queue, the history or a single
// level.
package get

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/printers"
)

// Source selects which list Get prints.
type Source string

const (
	Queue   Source = "queue"
	History Source = "history"
)

// Get prints one of the level lists.
type Get struct {
	Service  *app.Service
	Source   Source
	Filtered bool
	ShowID   bool
	JSON     bool
	Out      io.Writer
}

func (n *Get) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not get, no service")
	}

	var (
		records []level.Record
		title   string
		err     error
	)
	switch n.Source {
	case "", Queue:
		title = "Queue"
		if n.Filtered {
			title = "Queue (filtered)"
			records, err = n.Service.Admitted()
		} else {
			records, err = n.Service.Queue()
		}
	case History:
		title = "History"
		records, err = n.Service.History()
	default:
		return fmt.Errorf("unknown list %q", n.Source)
	}
	if err != nil {
		return err
	}

	out := orOutput(n.Out)
	if n.JSON {
		return writeJSON(out, records)
	}

	pp := printers.PrettyPrint{ShowID: n.ShowID, Out: out}
	pp.NewLine()
	pp.TitleWithCount(title, len(records))
	pp.Levels(records...)
	return nil
}

// Show prints every field of one queued level.
type Show struct {
	Service *app.Service
	ID      string
	JSON    bool
	Out     io.Writer
}

func (n *Show) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not show, no service")
	}
	r, err := n.Service.Find(n.ID)
	if err != nil {
		return err
	}

	out := orOutput(n.Out)
	if n.JSON {
		return writeJSON(out, r)
	}
	pp := printers.PrettyPrint{Out: out}
	pp.NewLine()
	pp.Title(r.Title())
	pp.Level(r)
	return nil
}

func orOutput(w io.Writer) io.Writer {
	if w == nil {
		return color.Output
	}
	return w
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
