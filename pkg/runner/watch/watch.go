// Package watch provides a read-only viewer that reprints the queue when
// another process changes the data directory.
package watch

import (
	"context"
	"errors"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/printers"
	"tableflip.dev/levelreq/pkg/store"
)

// Watch prints the queue and history documents as they change on disk. It
// never writes.
type Watch struct {
	Persistence store.Persistence
	ShowID      bool
	Logger      logrus.FieldLogger
	Out         io.Writer
}

func (n *Watch) Do(ctx context.Context) error {
	if n.Persistence == nil {
		return errors.New("can not watch, no persistence")
	}
	log := logging.OrDiscard(n.Logger).WithField("component", "watch")
	out := n.Out
	if out == nil {
		out = color.Output
	}
	pp := printers.PrettyPrint{ShowID: n.ShowID, Out: out}

	events, err := n.Persistence.Watch(ctx)
	if err != nil {
		return err
	}

	n.print(&pp, store.DocQueue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.WithField("document", ev.Document).Debug("document changed")
			n.print(&pp, ev.Document)
		}
	}
}

func (n *Watch) print(pp *printers.PrettyPrint, doc store.Document) {
	switch doc {
	case store.DocQueue:
		queue := n.Persistence.LoadQueue()
		pp.NewLine()
		pp.TitleWithCount("Queue", len(queue))
		pp.Levels(queue...)
	case store.DocHistory:
		history := n.Persistence.LoadHistory()
		pp.NewLine()
		pp.TitleWithCount("History", len(history))
		pp.Levels(history...)
	case "":
		n.print(pp, store.DocQueue)
		n.print(pp, store.DocHistory)
	}
}
