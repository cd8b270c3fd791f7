// Package poll provides the foreground runner that keeps the queue in sync
// with the submission site until interrupted.
package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/printers"
	"tableflip.dev/levelreq/pkg/syncer"
)

// DonateNotice is shown once on the first run.
const DonateNotice = "Enjoying levelreq? Consider supporting the submission site. This notice is shown only once."

// Poll runs the sync loop and prints the queue whenever it changes.
type Poll struct {
	Service  *app.Service
	Interval time.Duration
	ShowID   bool
	// NoDonate turns the donation notice off for good.
	NoDonate bool

	// MetricsAddr, when set, serves Gatherer on /metrics.
	MetricsAddr string
	Gatherer    prometheus.Gatherer
	// OnMetricsListening is called with the bound metrics address.
	OnMetricsListening func(net.Addr)

	Logger logrus.FieldLogger
	Out    io.Writer
}

func (n *Poll) Do(ctx context.Context) error {
	if n.Service == nil || n.Service.Sync == nil {
		return errors.New("can not poll, no service")
	}
	log := logging.OrDiscard(n.Logger).WithField("component", "poll")
	out := n.Out
	if out == nil {
		out = color.Output
	}
	pp := printers.PrettyPrint{ShowID: n.ShowID, Out: out}

	cfg, err := n.Service.Settings()
	if err != nil {
		return err
	}
	if !cfg.Authenticated() {
		_, _ = color.New(color.FgYellow).Fprintln(out, "No app id set; the queue will not sync until you run `levelreq login`.")
	}
	if n.NoDonate {
		if err := n.Service.DisableDonationPrompt(); err != nil {
			return err
		}
	}
	if show, err := n.Service.TakeDonationPrompt(); err != nil {
		log.WithError(err).Warn("donation notice")
	} else if show {
		_, _ = color.New(color.Faint).Fprintln(out, DonateNotice)
	}

	if n.MetricsAddr != "" {
		if err := n.serveMetrics(ctx, log); err != nil {
			return err
		}
	}

	sync := n.Service.Sync
	sync.StartPolling(n.Interval)
	defer sync.StopPolling()

	queue := sync.Snapshot().Queue
	pp.NewLine()
	pp.TitleWithCount("Queue", len(queue))
	pp.Levels(queue...)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-sync.Changes():
			n.render(&pp, out, ch)
		}
	}
}

func (n *Poll) render(pp *printers.PrettyPrint, out io.Writer, ch syncer.Change) {
	faint := color.New(color.Faint)
	_, _ = faint.Fprintf(out, "%s  %s\n", time.Now().Format(time.Kitchen), ch.Reason)
	for _, r := range ch.Superseded {
		_, _ = faint.Fprintf(out, "  removed on the site: %s\n", r.Title())
	}
	if ch.Reason == syncer.ReasonConfig {
		return
	}
	pp.TitleWithCount("Queue", len(ch.State.Queue))
	pp.Levels(ch.State.Queue...)
}

func (n *Poll) serveMetrics(ctx context.Context, log logrus.FieldLogger) error {
	gatherer := n.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", n.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	if n.OnMetricsListening != nil {
		n.OnMetricsListening(ln.Addr())
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return nil
}
