// Package remove provides runners that take levels off the queue.
package remove

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/printers"
)

// Delete moves one level from the queue to the history.
type Delete struct {
	ID      string
	Service *app.Service
	Out     io.Writer
}

func (n *Delete) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not delete, no service")
	}

	r, err := n.Service.Delete(ctx, n.ID)
	if err != nil {
		return err
	}

	out := n.Out
	if out == nil {
		out = color.Output
	}
	_, _ = fmt.Fprintf(out, "\nDeleted %s\n", r.Title())

	queue, err := n.Service.Queue()
	if err != nil {
		return err
	}
	pp := printers.PrettyPrint{Out: out}
	pp.NewLine()
	pp.TitleWithCount("Queue", len(queue))
	pp.Levels(queue...)
	return nil
}

// Clear moves the whole queue to the history.
type Clear struct {
	Service *app.Service
	Out     io.Writer
}

func (n *Clear) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not clear, no service")
	}

	cleared, err := n.Service.Clear(ctx)
	if err != nil {
		return err
	}

	out := n.Out
	if out == nil {
		out = color.Output
	}
	switch len(cleared) {
	case 0:
		_, _ = fmt.Fprintln(out, "Queue already empty.")
	case 1:
		_, _ = fmt.Fprintln(out, "Cleared 1 level.")
	default:
		_, _ = fmt.Fprintf(out, "Cleared %d levels.\n", len(cleared))
	}
	return nil
}
