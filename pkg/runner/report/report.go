// Package report provides the runner that reports a level to the site
// moderators.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"tableflip.dev/levelreq/pkg/app"
)

// Report sends a moderation report for a queued level. When Reason is empty
// and Prompt is set the reason is asked for interactively.
type Report struct {
	Service *app.Service
	ID      string
	Reason  string
	Prompt  bool
	Out     io.Writer
}

func (n *Report) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not report, no service")
	}

	r, err := n.Service.Find(n.ID)
	if err != nil {
		return err
	}

	reason := strings.TrimSpace(n.Reason)
	if reason == "" && n.Prompt {
		prompt := promptui.Prompt{
			Label: fmt.Sprintf("Why report %s", r.Title()),
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return app.ErrEmptyReason
				}
				return nil
			},
		}
		if reason, err = prompt.Run(); err != nil {
			return err
		}
	}

	if err := n.Service.Report(ctx, r.ID, reason); err != nil {
		return err
	}

	out := n.Out
	if out == nil {
		out = color.Output
	}
	_, _ = fmt.Fprintf(out, "Reported %s.\n", r.Title())
	return nil
}
