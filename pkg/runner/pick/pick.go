// Package pick provides the random level runner.
package pick

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/printers"
)

// Random prints a uniformly chosen queued level. With Delete set the level
// is also moved to the history, like playing it on stream.
type Random struct {
	Service *app.Service
	Delete  bool
	Out     io.Writer
}

func (n *Random) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not pick, no service")
	}

	r, err := n.Service.PickRandom()
	if err != nil {
		return err
	}

	out := n.Out
	if out == nil {
		out = color.Output
	}
	pp := printers.PrettyPrint{Out: out}
	pp.NewLine()
	pp.Title(r.Title())
	pp.Level(r)

	if n.Delete {
		if _, err := n.Service.Delete(ctx, r.ID); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, "Moved to history.")
	}
	return nil
}
