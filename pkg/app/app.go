package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/filter"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/remote"
	"tableflip.dev/levelreq/pkg/syncer"
)

// Service provides the queue actions shared by the CLI and the MCP server.
// Every change goes through Sync so it cannot interleave with a poll tick.
type Service struct {
	Sync   *syncer.Controller
	Remote remote.Remote
	// Rand picks random levels; nil uses the global source.
	Rand   *rand.Rand
	Logger logrus.FieldLogger
}

var (
	ErrNotFound    = errors.New("app: level not found in queue")
	ErrEmptyQueue  = errors.New("app: queue is empty")
	ErrEmptyReason = errors.New("app: report reason is empty")
	ErrEmptyAppID  = errors.New("app: app id is empty")

	errNoSync   = errors.New("app: no sync controller configured")
	errNoRemote = errors.New("app: no remote configured")
)

func (s *Service) log() logrus.FieldLogger {
	return logging.OrDiscard(s.Logger).WithField("component", "app")
}

// Queue returns a copy of the live queue in submission order.
func (s *Service) Queue() ([]level.Record, error) {
	if s.Sync == nil {
		return nil, errNoSync
	}
	return s.Sync.Snapshot().Queue, nil
}

// History returns a copy of the history, oldest first.
func (s *Service) History() ([]level.Record, error) {
	if s.Sync == nil {
		return nil, errNoSync
	}
	return s.Sync.Snapshot().History, nil
}

// Admitted returns the queued levels the configured filters let through.
func (s *Service) Admitted() ([]level.Record, error) {
	if s.Sync == nil {
		return nil, errNoSync
	}
	return filter.Apply(s.Sync.Snapshot().Queue, s.Sync.Config().Filters), nil
}

// Find returns the queued level with id.
func (s *Service) Find(id string) (level.Record, error) {
	queue, err := s.Queue()
	if err != nil {
		return level.Record{}, err
	}
	i := level.Index(queue, id)
	if i < 0 {
		return level.Record{}, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(id))
	}
	return queue[i], nil
}

// Delete moves the level with id from the queue to the end of the history,
// then pushes the new queue to the site.
func (s *Service) Delete(ctx context.Context, id string) (level.Record, error) {
	if s.Sync == nil {
		return level.Record{}, errNoSync
	}
	id = strings.TrimSpace(id)
	var (
		removed level.Record
		queue   []level.Record
	)
	err := s.Sync.Mutate(func(st *syncer.State) error {
		i := level.Index(st.Queue, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		removed = st.Queue[i]
		st.Queue = append(st.Queue[:i], st.Queue[i+1:]...)
		st.History = append(st.History, removed)
		queue = level.Clone(st.Queue)
		return nil
	})
	if err != nil {
		return level.Record{}, err
	}
	s.log().WithField("id", removed.ID).Info("level removed")
	s.pushQueue(ctx, queue)
	return removed, nil
}

// Clear moves every queued level to the history in queue order and pushes
// the now empty queue. Clearing an empty queue does nothing.
func (s *Service) Clear(ctx context.Context) ([]level.Record, error) {
	if s.Sync == nil {
		return nil, errNoSync
	}
	var cleared []level.Record
	err := s.Sync.Mutate(func(st *syncer.State) error {
		cleared = level.Clone(st.Queue)
		st.History = append(st.History, st.Queue...)
		st.Queue = []level.Record{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(cleared) > 0 {
		s.log().WithField("count", len(cleared)).Info("queue cleared")
		s.pushQueue(ctx, []level.Record{})
	}
	return cleared, nil
}

// PickRandom returns a uniformly chosen queued level without changing the
// queue.
func (s *Service) PickRandom() (level.Record, error) {
	queue, err := s.Queue()
	if err != nil {
		return level.Record{}, err
	}
	if len(queue) == 0 {
		return level.Record{}, ErrEmptyQueue
	}
	return queue[s.intN(len(queue))], nil
}

func (s *Service) intN(n int) int {
	if s.Rand != nil {
		return s.Rand.IntN(n)
	}
	return rand.IntN(n)
}

// Report sends a moderation report for a queued level. The remote outcome
// is returned unchanged and the queue is not touched.
func (s *Service) Report(ctx context.Context, id, reason string) error {
	r, err := s.Find(id)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyReason
	}
	if s.Remote == nil {
		return errNoRemote
	}
	if err := s.Remote.Report(ctx, r.ID, reason); err != nil {
		return err
	}
	s.log().WithField("id", r.ID).Info("level reported")
	return nil
}

// Refresh fetches the site's queue now and reports any failure.
func (s *Service) Refresh(ctx context.Context) error {
	if s.Sync == nil {
		return errNoSync
	}
	return s.Sync.RefreshNow(ctx)
}

func (s *Service) pushQueue(ctx context.Context, queue []level.Record) {
	if s.Remote == nil {
		return
	}
	cfg := s.Sync.Config()
	if !cfg.Authenticated() {
		return
	}
	s.Remote.PushQueue(ctx, cfg.AppID, queue)
}
