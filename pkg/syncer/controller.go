// Package syncer owns the live queue and history. It reconciles them with the
// submission site on a background poll and serializes every local change
// against that poll.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/metrics"
	"tableflip.dev/levelreq/pkg/remote"
	"tableflip.dev/levelreq/pkg/store"
)

var (
	// ErrNotAuthenticated is returned by RefreshNow when no app id is set.
	ErrNotAuthenticated = errors.New("syncer: no app id configured")
	// ErrDuplicateID is returned by Mutate when fn leaves two queue records
	// with the same id.
	ErrDuplicateID = errors.New("syncer: duplicate id in queue")
	// ErrHistoryRewritten is returned by Mutate when fn changes or drops
	// records already in the history. History only grows at the end.
	ErrHistoryRewritten = errors.New("syncer: history is append-only")
)

// DefaultPollInterval is used when StartPolling is given a non-positive
// interval.
const DefaultPollInterval = 3 * time.Second

const defaultStopWait = remote.DefaultTimeout

// Tick results recorded on the sync ticks metric.
const (
	tickReplaced  = "replaced"
	tickUnchanged = "unchanged"
	tickFailed    = "failed"
	tickSkipped   = "skipped"
	tickDiscarded = "discarded"
)

// State is a copy of the queue and history. Values handed out by the
// Controller never alias its own slices.
type State struct {
	Queue   []level.Record
	History []level.Record
}

// Clone deep copies s.
func (s State) Clone() State {
	return State{
		Queue:   level.Clone(s.Queue),
		History: level.Clone(s.History),
	}
}

// Reason says what produced a Change.
type Reason string

const (
	ReasonPoll    Reason = "poll"
	ReasonRefresh Reason = "refresh"
	ReasonMutate  Reason = "mutate"
	ReasonConfig  Reason = "config"
)

// Change is published whenever the queue, history or config changes.
// Superseded lists queue records dropped because the remote snapshot no
// longer held them; they are not moved to history.
type Change struct {
	Reason     Reason
	State      State
	Superseded []level.Record
}

// Options configures a Controller.
type Options struct {
	Store   store.Persistence
	Remote  remote.Remote
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
	// StopWait bounds how long StopPolling waits for the poll goroutine.
	// Zero uses the remote's request timeout when it reports one.
	StopWait time.Duration
}

// Controller is the single writer of the queue, history and config.
type Controller struct {
	store    store.Persistence
	remote   remote.Remote
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	stopWait time.Duration

	mu     sync.Mutex
	state  State
	config config.Config
	// epoch changes on every StartPolling and StopPolling. A tick only
	// applies its fetch when the epoch it started under is still current.
	epoch uint64

	changes chan Change

	pollMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New loads the persisted documents and returns a Controller that is not yet
// polling.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("syncer: no persistence configured")
	}
	if opts.Remote == nil {
		return nil, errors.New("syncer: no remote configured")
	}
	stopWait := opts.StopWait
	if t, ok := opts.Remote.(interface{ Timeout() time.Duration }); ok && stopWait <= 0 {
		stopWait = t.Timeout()
	}
	if stopWait <= 0 {
		stopWait = defaultStopWait
	}
	c := &Controller{
		store:    opts.Store,
		remote:   opts.Remote,
		log:      logging.OrDiscard(opts.Logger).WithField("component", "syncer"),
		metrics:  metrics.OrNoop(opts.Metrics),
		stopWait: stopWait,
		changes:  make(chan Change, 1),
	}

	queue, dropped := level.Dedupe(opts.Store.LoadQueue())
	if dropped > 0 {
		c.log.WithField("dropped", dropped).Warn("dropped duplicate queue ids on load")
	}
	c.state = State{Queue: queue, History: level.Clone(opts.Store.LoadHistory())}
	c.config = opts.Store.LoadConfig()
	c.updateGaugesLocked()
	return c, nil
}

// Snapshot returns a copy of the current queue and history.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Config returns a copy of the current settings.
func (c *Controller) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Clone()
}

// SetConfig persists cfg and makes it current. The in-memory config is only
// replaced when the save succeeds.
func (c *Controller) SetConfig(cfg config.Config) error {
	_, err := c.UpdateConfig(func(current *config.Config) error {
		*current = cfg.Clone()
		return nil
	})
	return err
}

// UpdateConfig applies fn to a copy of the settings under the lock and
// persists the result. An error from fn leaves the settings untouched and is
// returned as is.
func (c *Controller) UpdateConfig(fn func(*config.Config) error) (config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	work := c.config.Clone()
	if err := fn(&work); err != nil {
		return config.Config{}, err
	}
	work = work.Clone()
	if err := c.store.SaveConfig(work); err != nil {
		return config.Config{}, err
	}
	c.config = work
	c.publishLocked(Change{Reason: ReasonConfig, State: c.state.Clone()})
	return work.Clone(), nil
}

// Changes delivers change notifications to a single consumer. Only the
// latest undelivered Change is kept.
func (c *Controller) Changes() <-chan Change {
	return c.changes
}

// Mutate runs fn on a working copy of the state while holding the lock, so
// no poll tick can interleave. Changed documents are persisted (history
// first, then queue) and the copy becomes current only when every save
// succeeds. An error from fn discards the copy. fn must not call back into
// the Controller.
func (c *Controller) Mutate(fn func(*State) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	work := c.state.Clone()
	if err := fn(&work); err != nil {
		return err
	}
	if _, dropped := level.Dedupe(work.Queue); dropped > 0 {
		return ErrDuplicateID
	}
	if len(work.History) < len(c.state.History) ||
		!level.Equal(work.History[:len(c.state.History)], c.state.History) {
		return ErrHistoryRewritten
	}
	work = work.Clone()

	historyChanged := !level.Equal(work.History, c.state.History)
	queueChanged := !level.Equal(work.Queue, c.state.Queue)
	if !historyChanged && !queueChanged {
		return nil
	}

	if historyChanged {
		if err := c.store.SaveHistory(work.History); err != nil {
			return err
		}
	}
	if queueChanged {
		if err := c.store.SaveQueue(work.Queue); err != nil {
			if historyChanged {
				if rerr := c.store.SaveHistory(c.state.History); rerr != nil {
					c.log.WithError(rerr).Error("restore history after failed queue save")
				}
			}
			return err
		}
	}

	c.state = work
	c.updateGaugesLocked()
	c.publishLocked(Change{Reason: ReasonMutate, State: c.state.Clone()})
	return nil
}

// RefreshNow fetches the remote queue once and applies it like a poll tick,
// but reports failures to the caller.
func (c *Controller) RefreshNow(ctx context.Context) error {
	cfg := c.Config()
	if !cfg.Authenticated() {
		return ErrNotAuthenticated
	}
	fetched, err := c.remote.FetchQueue(ctx, cfg.AppID)
	if err != nil {
		return err
	}
	if _, err := c.apply(0, cfg.AppID, fetched, ReasonRefresh); err != nil {
		return fmt.Errorf("syncer: save refreshed queue: %w", err)
	}
	return nil
}

// StartPolling begins the background reconciliation loop. The first tick
// runs immediately. Calling it while already polling does nothing.
func (c *Controller) StartPolling(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if c.cancel != nil {
		return
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.log.WithField("interval", interval).Debug("polling started")
	go c.loop(ctx, epoch, interval, done)
}

// StopPolling cancels the loop. It is safe to call from any goroutine and
// more than once. A fetch still in flight is allowed to finish, but its
// result is discarded.
func (c *Controller) StopPolling() {
	c.pollMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.pollMu.Unlock()
	if cancel == nil {
		return
	}

	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
	cancel()

	select {
	case <-done:
	case <-time.After(c.stopWait):
		c.log.Debug("poll loop still finishing a remote call")
	}
	c.log.Debug("polling stopped")
}

// Polling reports whether the background loop is running.
func (c *Controller) Polling() bool {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	return c.cancel != nil
}

func (c *Controller) loop(ctx context.Context, epoch uint64, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.tick(ctx, epoch)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick is one background reconciliation. Failures are logged and never
// surface.
func (c *Controller) tick(ctx context.Context, epoch uint64) {
	if ctx.Err() != nil {
		return
	}
	cfg := c.Config()
	if !cfg.Authenticated() {
		c.metrics.SyncTicks.WithLabelValues(tickSkipped).Inc()
		return
	}
	// In-flight calls outlive StopPolling; the epoch check drops their result.
	callCtx := context.WithoutCancel(ctx)
	log := c.log.WithField("action", "poll")

	fetched, err := c.remote.FetchQueue(callCtx, cfg.AppID)
	switch {
	case err != nil:
		c.metrics.SyncTicks.WithLabelValues(tickFailed).Inc()
		log.WithError(err).Debug("fetch failed, keeping local queue")
	default:
		result, err := c.apply(epoch, cfg.AppID, fetched, ReasonPoll)
		if err != nil {
			result = tickFailed
			log.WithError(err).Warn("save fetched queue")
		}
		c.metrics.SyncTicks.WithLabelValues(result).Inc()
	}

	if c.current(epoch) {
		c.remote.Heartbeat(callCtx, cfg.AppID)
	}
}

func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

// apply replaces the queue with fetched when they differ. An epoch of zero
// skips the staleness check. The fetch is also dropped when the app id
// changed while it was in flight.
func (c *Controller) apply(epoch uint64, appID string, fetched []level.Record, reason Reason) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != 0 && epoch != c.epoch {
		return tickDiscarded, nil
	}
	if c.config.AppID != appID {
		return tickDiscarded, nil
	}
	if level.Equal(c.state.Queue, fetched) {
		return tickUnchanged, nil
	}

	next := level.Clone(fetched)
	if err := c.store.SaveQueue(next); err != nil {
		return tickFailed, err
	}
	superseded := supersededBy(c.state.Queue, next)
	c.state.Queue = next
	c.metrics.Superseded.Add(float64(len(superseded)))
	c.updateGaugesLocked()
	if len(superseded) > 0 {
		c.log.WithField("count", len(superseded)).Info("remote queue dropped local records")
	}
	c.publishLocked(Change{Reason: reason, State: c.state.Clone(), Superseded: superseded})
	return tickReplaced, nil
}

// supersededBy lists the records of prev whose ids are absent from next.
func supersededBy(prev, next []level.Record) []level.Record {
	ids := make(map[string]struct{}, len(next))
	for _, r := range next {
		ids[r.ID] = struct{}{}
	}
	var out []level.Record
	for _, r := range prev {
		if _, ok := ids[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// publishLocked hands ch to the consumer, replacing any undelivered Change.
// Callers hold c.mu, so there is a single sender.
func (c *Controller) publishLocked(ch Change) {
	for {
		select {
		case c.changes <- ch:
			return
		default:
		}
		select {
		case <-c.changes:
		default:
		}
	}
}

func (c *Controller) updateGaugesLocked() {
	c.metrics.QueueLength.Set(float64(len(c.state.Queue)))
	c.metrics.HistoryLength.Set(float64(len(c.state.History)))
}
