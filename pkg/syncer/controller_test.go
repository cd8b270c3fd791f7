package syncer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/metrics"
	"tableflip.dev/levelreq/pkg/remote"
	"tableflip.dev/levelreq/pkg/store"
)

type memoryPersistence struct {
	mu          sync.Mutex
	config      config.Config
	queue       []level.Record
	history     []level.Record
	queueSaves  int
	historySave int
	configSaves int
	failQueue   error
	failHistory error
}

func newMemoryPersistence(queue ...level.Record) *memoryPersistence {
	cfg := config.Default()
	cfg.AppID = "app-1"
	return &memoryPersistence{config: cfg, queue: level.Clone(queue), history: []level.Record{}}
}

func (m *memoryPersistence) BasePath() string { return "" }

func (m *memoryPersistence) LoadConfig() config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

func (m *memoryPersistence) LoadQueue() []level.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return level.Clone(m.queue)
}

func (m *memoryPersistence) LoadHistory() []level.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return level.Clone(m.history)
}

func (m *memoryPersistence) SaveConfig(cfg config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configSaves++
	m.config = cfg.Clone()
	return nil
}

func (m *memoryPersistence) SaveQueue(queue []level.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failQueue != nil {
		return m.failQueue
	}
	m.queueSaves++
	m.queue = level.Clone(queue)
	return nil
}

func (m *memoryPersistence) SaveHistory(history []level.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failHistory != nil {
		return m.failHistory
	}
	m.historySave++
	m.history = level.Clone(history)
	return nil
}

func (m *memoryPersistence) Watch(ctx context.Context) (<-chan store.Event, error) {
	return nil, errors.New("not supported")
}

type fakeRemote struct {
	mu         sync.Mutex
	queue      []level.Record
	fetchErr   error
	fetches    int
	heartbeats int
	// gate, when set, blocks FetchQueue until it is closed; entered is
	// signalled once the fetch is waiting.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) setQueue(q []level.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = level.Clone(q)
}

func (f *fakeRemote) FetchQueue(ctx context.Context, appID string) ([]level.Record, error) {
	f.mu.Lock()
	f.fetches++
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return level.Clone(f.queue), nil
}

func (f *fakeRemote) PushQueue(ctx context.Context, appID string, queue []level.Record) {}

func (f *fakeRemote) PushConfig(ctx context.Context, appID string, view config.RemoteView) {}

func (f *fakeRemote) Heartbeat(ctx context.Context, appID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
}

func (f *fakeRemote) Report(ctx context.Context, levelID, reason string) error { return nil }

func (f *fakeRemote) counts() (fetches, heartbeats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.heartbeats
}

var (
	tower     = level.Record{ID: "A1", Name: "Tower", Difficulty: level.Hard, Length: level.Short}
	bloodbath = level.Record{ID: "B2", Name: "Bloodbath", Difficulty: level.ExtremeDemon, Length: level.Long, Rated: true}
	sonic     = level.Record{ID: "C3", Name: "Sonic Wave", Difficulty: level.ExtremeDemon, Length: level.Long, Rated: true}
)

func newTestController(t *testing.T, p store.Persistence, r remote.Remote) (*Controller, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	c, err := New(Options{Store: p, Remote: r, Metrics: m, StopWait: time.Second})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(c.StopPolling)
	return c, m
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Remote: &fakeRemote{}}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := New(Options{Store: newMemoryPersistence()}); err == nil {
		t.Fatalf("expected error without remote")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c, _ := newTestController(t, newMemoryPersistence(tower), &fakeRemote{})
	snap := c.Snapshot()
	snap.Queue[0].Name = "changed"
	if c.Snapshot().Queue[0].Name != "Tower" {
		t.Fatalf("snapshot aliased controller state")
	}
}

func TestTickReplacesQueueWhenRemoteDiffers(t *testing.T) {
	p := newMemoryPersistence(tower)
	r := &fakeRemote{queue: []level.Record{tower, bloodbath}}
	c, m := newTestController(t, p, r)

	c.tick(context.Background(), 0)

	if got := c.Snapshot().Queue; !level.Equal(got, []level.Record{tower, bloodbath}) {
		t.Fatalf("queue not replaced: %+v", got)
	}
	if !level.Equal(p.LoadQueue(), []level.Record{tower, bloodbath}) {
		t.Fatalf("replaced queue not persisted")
	}
	if _, hb := r.counts(); hb != 1 {
		t.Fatalf("expected heartbeat on authenticated tick, got %d", hb)
	}
	if v := testutil.ToFloat64(m.SyncTicks.WithLabelValues(tickReplaced)); v != 1 {
		t.Fatalf("expected replaced tick metric, got %v", v)
	}

	select {
	case ch := <-c.Changes():
		if ch.Reason != ReasonPoll || len(ch.State.Queue) != 2 {
			t.Fatalf("unexpected change: %+v", ch)
		}
	default:
		t.Fatalf("expected a change event")
	}
}

func TestTickWithSameQueueDoesNotWrite(t *testing.T) {
	p := newMemoryPersistence(tower, bloodbath)
	r := &fakeRemote{queue: []level.Record{tower, bloodbath}}
	c, m := newTestController(t, p, r)

	c.tick(context.Background(), 0)

	if p.queueSaves != 0 || p.historySave != 0 {
		t.Fatalf("identical poll must not write, got %d queue saves", p.queueSaves)
	}
	if v := testutil.ToFloat64(m.SyncTicks.WithLabelValues(tickUnchanged)); v != 1 {
		t.Fatalf("expected unchanged tick metric, got %v", v)
	}
	select {
	case ch := <-c.Changes():
		t.Fatalf("unexpected change event %+v", ch)
	default:
	}
}

func TestTickUnreachableLeavesFilesUntouched(t *testing.T) {
	base := t.TempDir()
	p, err := store.Load(locator(base), nil)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	cfg := config.Default()
	cfg.AppID = "app-1"
	if err := p.SaveConfig(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if err := p.SaveQueue([]level.Record{tower}); err != nil {
		t.Fatalf("save queue: %v", err)
	}
	if err := p.SaveHistory([]level.Record{bloodbath}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	before := readDocuments(t, base)

	r := &fakeRemote{fetchErr: remote.ErrUnreachable}
	c, _ := newTestController(t, p, r)
	c.tick(context.Background(), 0)

	snap := c.Snapshot()
	if !level.Equal(snap.Queue, []level.Record{tower}) || !level.Equal(snap.History, []level.Record{bloodbath}) {
		t.Fatalf("state changed on unreachable tick: %+v", snap)
	}
	after := readDocuments(t, base)
	for name, data := range before {
		if !bytes.Equal(data, after[name]) {
			t.Fatalf("%s changed on unreachable tick", name)
		}
	}
}

func TestTickSkipsWhenUnauthenticated(t *testing.T) {
	p := newMemoryPersistence(tower)
	p.config.AppID = ""
	r := &fakeRemote{queue: []level.Record{bloodbath}}
	c, _ := newTestController(t, p, r)

	c.tick(context.Background(), 0)

	if fetches, hb := r.counts(); fetches != 0 || hb != 0 {
		t.Fatalf("unauthenticated tick must not call remote: %d fetches %d heartbeats", fetches, hb)
	}
}

func TestRefreshNowSurfacesErrors(t *testing.T) {
	p := newMemoryPersistence(tower)
	rejected := &remote.RejectedError{Action: remote.ActionFetch, StatusCode: 500}
	r := &fakeRemote{fetchErr: rejected}
	c, _ := newTestController(t, p, r)

	if err := c.RefreshNow(context.Background()); !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if !level.Equal(c.Snapshot().Queue, []level.Record{tower}) {
		t.Fatalf("failed refresh changed the queue")
	}

	p.config.AppID = ""
	c2, _ := newTestController(t, p, r)
	if err := c2.RefreshNow(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRefreshNowReportsSaveFailure(t *testing.T) {
	p := newMemoryPersistence(tower)
	r := &fakeRemote{queue: []level.Record{bloodbath}}
	c, _ := newTestController(t, p, r)
	p.failQueue = store.ErrIO

	if err := c.RefreshNow(context.Background()); !errors.Is(err, store.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if !level.Equal(c.Snapshot().Queue, []level.Record{tower}) {
		t.Fatalf("queue must stay at last saved state")
	}
}

func TestMutateMovesRecordToHistory(t *testing.T) {
	p := newMemoryPersistence(tower, bloodbath)
	c, _ := newTestController(t, p, &fakeRemote{})

	err := c.Mutate(func(s *State) error {
		s.History = append(s.History, s.Queue[0])
		s.Queue = s.Queue[1:]
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	snap := c.Snapshot()
	if !level.Equal(snap.Queue, []level.Record{bloodbath}) || !level.Equal(snap.History, []level.Record{tower}) {
		t.Fatalf("unexpected state: %+v", snap)
	}
	if !level.Equal(p.LoadQueue(), snap.Queue) || !level.Equal(p.LoadHistory(), snap.History) {
		t.Fatalf("state not persisted")
	}
	select {
	case ch := <-c.Changes():
		if ch.Reason != ReasonMutate {
			t.Fatalf("unexpected reason %q", ch.Reason)
		}
	default:
		t.Fatalf("expected change event")
	}
}

func TestMutateErrorDiscardsWork(t *testing.T) {
	p := newMemoryPersistence(tower)
	c, _ := newTestController(t, p, &fakeRemote{})
	boom := errors.New("boom")

	err := c.Mutate(func(s *State) error {
		s.Queue = nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(c.Snapshot().Queue) != 1 || p.queueSaves != 0 {
		t.Fatalf("failed mutate must not change or save state")
	}
}

func TestMutateRejectsDuplicateIDs(t *testing.T) {
	c, _ := newTestController(t, newMemoryPersistence(tower), &fakeRemote{})
	err := c.Mutate(func(s *State) error {
		s.Queue = append(s.Queue, tower)
		return nil
	})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestMutateSaveFailureKeepsLastConsistentState(t *testing.T) {
	p := newMemoryPersistence(tower)
	c, _ := newTestController(t, p, &fakeRemote{})
	p.failQueue = store.ErrIO

	err := c.Mutate(func(s *State) error {
		s.History = append(s.History, s.Queue...)
		s.Queue = nil
		return nil
	})
	if !errors.Is(err, store.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Queue) != 1 || len(snap.History) != 0 {
		t.Fatalf("in-memory state changed after failed save: %+v", snap)
	}
	if h := p.LoadHistory(); len(h) != 0 {
		t.Fatalf("history file should be restored, got %+v", h)
	}
}

func TestSetConfigPersists(t *testing.T) {
	p := newMemoryPersistence()
	c, _ := newTestController(t, p, &fakeRemote{})
	cfg := c.Config()
	cfg.StreamerName = "Viprin"
	if err := c.SetConfig(cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if c.Config().StreamerName != "Viprin" || p.LoadConfig().StreamerName != "Viprin" {
		t.Fatalf("config not applied")
	}
}

func TestChangesKeepsLatest(t *testing.T) {
	c, _ := newTestController(t, newMemoryPersistence(tower, bloodbath), &fakeRemote{})
	for i := 0; i < 2; i++ {
		if err := c.Mutate(func(s *State) error {
			s.History = append(s.History, s.Queue[0])
			s.Queue = s.Queue[1:]
			return nil
		}); err != nil {
			t.Fatalf("mutate: %v", err)
		}
	}
	ch := <-c.Changes()
	if len(ch.State.Queue) != 0 || len(ch.State.History) != 2 {
		t.Fatalf("expected latest change, got %+v", ch.State)
	}
	select {
	case extra := <-c.Changes():
		t.Fatalf("expected a single pending change, got %+v", extra)
	default:
	}
}

// A local delete that has not reached the site is undone by the next
// successful fetch: the remote queue replaces the local one wholesale.
func TestFetchReplacesUnpushedLocalDelete(t *testing.T) {
	p := newMemoryPersistence(tower, bloodbath)
	r := &fakeRemote{queue: []level.Record{tower, bloodbath, sonic}}
	c, _ := newTestController(t, p, r)

	if err := c.Mutate(func(s *State) error {
		s.History = append(s.History, s.Queue[0])
		s.Queue = s.Queue[1:]
		return nil
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	c.tick(context.Background(), 0)

	snap := c.Snapshot()
	if !level.Equal(snap.Queue, []level.Record{tower, bloodbath, sonic}) {
		t.Fatalf("expected remote queue to win, got %+v", snap.Queue)
	}
	if !level.Equal(snap.History, []level.Record{tower}) {
		t.Fatalf("history must keep the local delete, got %+v", snap.History)
	}
}

func TestFetchDroppingRecordsReportsSuperseded(t *testing.T) {
	p := newMemoryPersistence(tower, bloodbath)
	r := &fakeRemote{queue: []level.Record{bloodbath}}
	c, m := newTestController(t, p, r)

	c.tick(context.Background(), 0)

	ch := <-c.Changes()
	if len(ch.Superseded) != 1 || ch.Superseded[0].ID != tower.ID {
		t.Fatalf("expected tower superseded, got %+v", ch.Superseded)
	}
	if len(c.Snapshot().History) != 0 {
		t.Fatalf("superseded records are not archived")
	}
	if v := testutil.ToFloat64(m.Superseded); v != 1 {
		t.Fatalf("expected superseded metric 1, got %v", v)
	}
}

func TestStopPollingDiscardsInFlightFetch(t *testing.T) {
	p := newMemoryPersistence(tower)
	r := &fakeRemote{
		queue:   []level.Record{bloodbath},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c, m := newTestController(t, p, r)

	c.StartPolling(time.Hour)
	select {
	case <-r.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("poll never fetched")
	}

	stopped := make(chan struct{})
	go func() {
		c.StopPolling()
		close(stopped)
	}()
	// Let StopPolling mark the epoch stale before the fetch returns.
	time.Sleep(50 * time.Millisecond)
	close(r.gate)

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatalf("StopPolling did not return")
	}
	if c.Polling() {
		t.Fatalf("controller still polling")
	}
	if !level.Equal(c.Snapshot().Queue, []level.Record{tower}) || p.queueSaves != 0 {
		t.Fatalf("in-flight result applied after stop")
	}
	if v := testutil.ToFloat64(m.SyncTicks.WithLabelValues(tickDiscarded)); v != 1 {
		t.Fatalf("expected discarded tick, got %v", v)
	}
	if _, hb := r.counts(); hb != 0 {
		t.Fatalf("stopped tick must not heartbeat")
	}
}

func TestStartPollingTicksImmediatelyAndIsIdempotent(t *testing.T) {
	p := newMemoryPersistence(tower)
	r := &fakeRemote{queue: []level.Record{tower, bloodbath}}
	c, _ := newTestController(t, p, r)

	c.StartPolling(time.Hour)
	c.StartPolling(time.Hour)

	select {
	case ch := <-c.Changes():
		if ch.Reason != ReasonPoll {
			t.Fatalf("unexpected reason %q", ch.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first tick did not run immediately")
	}
	c.StopPolling()
	c.StopPolling()
	if fetches, _ := r.counts(); fetches != 1 {
		t.Fatalf("expected a single loop, got %d fetches", fetches)
	}
}

func TestConcurrentMutateAndPoll(t *testing.T) {
	records := make([]level.Record, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, level.Record{ID: string(rune('a'+i%26)) + string(rune('A'+i/26)), Name: "lvl"})
	}
	p := newMemoryPersistence(records...)
	r := &fakeRemote{queue: records}
	c, _ := newTestController(t, p, r)

	c.StartPolling(time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = c.Mutate(func(s *State) error {
					if len(s.Queue) == 0 {
						return nil
					}
					s.History = append(s.History, s.Queue[0])
					s.Queue = s.Queue[1:]
					return nil
				})
			}
		}()
	}
	wg.Wait()
	c.StopPolling()

	snap := c.Snapshot()
	if _, dropped := level.Dedupe(snap.Queue); dropped != 0 {
		t.Fatalf("queue holds duplicate ids")
	}
	if !level.Equal(p.LoadQueue(), snap.Queue) || !level.Equal(p.LoadHistory(), snap.History) {
		t.Fatalf("persisted state diverged from memory")
	}
}

type locator string

func (l locator) BasePath() string { return string(l) }

func readDocuments(t *testing.T, base string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, doc := range store.Documents() {
		data, err := os.ReadFile(filepath.Join(base, doc.FileName()))
		if err != nil {
			t.Fatalf("read %s: %v", doc, err)
		}
		out[doc.FileName()] = data
	}
	return out
}

func TestMutateRejectsHistoryRewrite(t *testing.T) {
	p := newMemoryPersistence(sonic)
	p.history = []level.Record{tower, bloodbath}
	c, _ := newTestController(t, p, &fakeRemote{})

	rewrites := map[string]func(*State){
		"pruned":    func(s *State) { s.History = s.History[1:] },
		"reordered": func(s *State) { s.History[0], s.History[1] = s.History[1], s.History[0] },
		"edited":    func(s *State) { s.History[1].Name = "changed" },
		"cleared":   func(s *State) { s.History = nil },
	}
	for name, rewrite := range rewrites {
		t.Run(name, func(t *testing.T) {
			err := c.Mutate(func(s *State) error {
				rewrite(s)
				return nil
			})
			if !errors.Is(err, ErrHistoryRewritten) {
				t.Fatalf("expected ErrHistoryRewritten, got %v", err)
			}
			if !level.Equal(c.Snapshot().History, []level.Record{tower, bloodbath}) || p.historySave != 0 {
				t.Fatalf("history must be untouched")
			}
		})
	}

	err := c.Mutate(func(s *State) error {
		s.History = append(s.History, s.Queue...)
		s.Queue = nil
		return nil
	})
	if err != nil {
		t.Fatalf("appending to history should be allowed: %v", err)
	}
	if !level.Equal(c.Snapshot().History, []level.Record{tower, bloodbath, sonic}) {
		t.Fatalf("unexpected history %+v", c.Snapshot().History)
	}
}

type timedRemote struct {
	*fakeRemote
	timeout time.Duration
}

func (r timedRemote) Timeout() time.Duration { return r.timeout }

func TestStopWaitFollowsRemoteTimeout(t *testing.T) {
	c, err := New(Options{Store: newMemoryPersistence(), Remote: timedRemote{fakeRemote: &fakeRemote{}, timeout: 7 * time.Second}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.stopWait != 7*time.Second {
		t.Fatalf("stop wait = %v, want the remote timeout", c.stopWait)
	}

	c, err = New(Options{Store: newMemoryPersistence(), Remote: &fakeRemote{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.stopWait != remote.DefaultTimeout {
		t.Fatalf("stop wait = %v, want %v", c.stopWait, remote.DefaultTimeout)
	}

	c, err = New(Options{Store: newMemoryPersistence(), Remote: timedRemote{fakeRemote: &fakeRemote{}, timeout: 7 * time.Second}, StopWait: time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.stopWait != time.Second {
		t.Fatalf("explicit stop wait ignored, got %v", c.stopWait)
	}
}
