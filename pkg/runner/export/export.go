// Package export provides the runner that writes the plain text queue export.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/level"
)

// Export writes the queue (or the admitted part of it) to File, or to Out
// when File is empty.
type Export struct {
	Service  *app.Service
	File     string
	Filtered bool
	Out      io.Writer
}

func (n *Export) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not export, no service")
	}

	var (
		records []level.Record
		err     error
	)
	if n.Filtered {
		records, err = n.Service.Admitted()
	} else {
		records, err = n.Service.Queue()
	}
	if err != nil {
		return err
	}

	out := n.Out
	if out == nil {
		out = color.Output
	}
	if n.File == "" {
		return app.ExportTo(out, records)
	}

	path, err := homedir.Expand(n.File)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := app.ExportTo(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Exported %d levels to %s\n", len(records), path)
	return nil
}
