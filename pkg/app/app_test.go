package app

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/filter"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/remote"
	"tableflip.dev/levelreq/pkg/store"
	"tableflip.dev/levelreq/pkg/syncer"
)

type memoryPersistence struct {
	mu      sync.Mutex
	config  config.Config
	queue   []level.Record
	history []level.Record
	saves   int
}

func newMemoryPersistence(queue ...level.Record) *memoryPersistence {
	cfg := config.Default()
	cfg.AppID = "app-1"
	cfg.StreamerName = "Viprin"
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
	m.saves++
	m.config = cfg.Clone()
	return nil
}

func (m *memoryPersistence) SaveQueue(queue []level.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.queue = level.Clone(queue)
	return nil
}

func (m *memoryPersistence) SaveHistory(history []level.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.history = level.Clone(history)
	return nil
}

func (m *memoryPersistence) Watch(context.Context) (<-chan store.Event, error) {
	return nil, nil
}

type reportCall struct {
	id, reason string
}

type fakeRemote struct {
	mu        sync.Mutex
	pushed    [][]level.Record
	configs   []config.RemoteView
	reports   []reportCall
	reportErr error
}

func (f *fakeRemote) FetchQueue(context.Context, string) ([]level.Record, error) {
	return nil, remote.ErrUnreachable
}

func (f *fakeRemote) PushQueue(_ context.Context, _ string, queue []level.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, level.Clone(queue))
}

func (f *fakeRemote) PushConfig(_ context.Context, _ string, view config.RemoteView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, view)
}

func (f *fakeRemote) Heartbeat(context.Context, string) {}

func (f *fakeRemote) Report(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, reportCall{id: id, reason: reason})
	return f.reportErr
}

var (
	tower     = level.Record{ID: "A1", Name: "Tower", Author: "RobTop", Difficulty: level.Hard, Length: level.Short}
	bloodbath = level.Record{ID: "B2", Name: "Bloodbath", Author: "Riot", Difficulty: level.ExtremeDemon, Length: level.Long, Rated: true}
	flagged   = level.Record{ID: "C3", Name: "Spam", Author: "anon", Difficulty: level.NA, Length: level.Tiny, Flagged: true, FlagReason: "Offensive name"}
)

func newTestService(t *testing.T, p *memoryPersistence) (*Service, *fakeRemote) {
	t.Helper()
	r := &fakeRemote{}
	c, err := syncer.New(syncer.Options{Store: p, Remote: r})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return &Service{Sync: c, Remote: r, Rand: rand.New(rand.NewPCG(1, 2))}, r
}

func TestDeleteScenario(t *testing.T) {
	p := newMemoryPersistence(tower)
	svc, r := newTestService(t, p)

	removed, err := svc.Delete(context.Background(), "A1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != tower {
		t.Fatalf("unexpected removed record %+v", removed)
	}
	queue, _ := svc.Queue()
	history, _ := svc.History()
	if len(queue) != 0 || !level.Equal(history, []level.Record{tower}) {
		t.Fatalf("unexpected state queue=%+v history=%+v", queue, history)
	}
	if len(p.LoadQueue()) != 0 || !level.Equal(p.LoadHistory(), history) {
		t.Fatalf("delete not persisted")
	}
	if len(r.pushed) != 1 || len(r.pushed[0]) != 0 {
		t.Fatalf("expected empty queue push, got %+v", r.pushed)
	}
}

func TestDeleteConservesRecords(t *testing.T) {
	queue := []level.Record{tower, bloodbath, flagged}
	p := newMemoryPersistence(queue...)
	svc, _ := newTestService(t, p)
	total := len(queue)

	for _, id := range []string{"B2", "C3", "A1"} {
		before, _ := svc.Queue()
		beforeHistory, _ := svc.History()
		pos := level.Index(before, id)
		removed, err := svc.Delete(context.Background(), id)
		if err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
		after, _ := svc.Queue()
		history, _ := svc.History()
		if len(after) != len(before)-1 {
			t.Fatalf("queue should shrink by one")
		}
		if len(after)+len(history) != total {
			t.Fatalf("queue+history size changed")
		}
		if history[len(history)-1] != removed || removed != before[pos] {
			t.Fatalf("removed record not appended to history")
		}
		if !level.Equal(history[:len(history)-1], beforeHistory) {
			t.Fatalf("existing history changed")
		}
		want := append(level.Clone(before[:pos]), before[pos+1:]...)
		if !level.Equal(after, want) {
			t.Fatalf("remaining order changed: %+v", after)
		}
	}
}

func TestDeleteNotFound(t *testing.T) {
	p := newMemoryPersistence(tower)
	svc, r := newTestService(t, p)
	saves := p.saves

	if _, err := svc.Delete(context.Background(), "zz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if p.saves != saves || len(r.pushed) != 0 {
		t.Fatalf("failed delete must not save or push")
	}
}

func TestClearMatchesSequentialDeletes(t *testing.T) {
	queue := []level.Record{tower, bloodbath, flagged}

	cleared, _ := newTestService(t, newMemoryPersistence(queue...))
	moved, err := cleared.Clear(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !level.Equal(moved, queue) {
		t.Fatalf("clear returned %+v", moved)
	}

	deleted, _ := newTestService(t, newMemoryPersistence(queue...))
	for _, r := range queue {
		if _, err := deleted.Delete(context.Background(), r.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}

	a, _ := cleared.History()
	b, _ := deleted.History()
	if !level.Equal(a, b) {
		t.Fatalf("clear history %+v differs from deletes %+v", a, b)
	}
	if q, _ := cleared.Queue(); len(q) != 0 {
		t.Fatalf("queue not empty after clear")
	}
}

func TestClearEmptyQueueDoesNothing(t *testing.T) {
	p := newMemoryPersistence()
	svc, r := newTestService(t, p)
	moved, err := svc.Clear(context.Background())
	if err != nil || len(moved) != 0 {
		t.Fatalf("unexpected clear result %v %v", moved, err)
	}
	if p.saves != 0 || len(r.pushed) != 0 {
		t.Fatalf("clearing an empty queue must not save or push")
	}
}

func TestPickRandom(t *testing.T) {
	empty, _ := newTestService(t, newMemoryPersistence())
	if _, err := empty.PickRandom(); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}

	single, _ := newTestService(t, newMemoryPersistence(tower))
	for i := 0; i < 20; i++ {
		got, err := single.PickRandom()
		if err != nil || got != tower {
			t.Fatalf("single element pick returned %+v %v", got, err)
		}
	}

	queue := []level.Record{tower, bloodbath, flagged}
	svc, _ := newTestService(t, newMemoryPersistence(queue...))
	counts := map[string]int{}
	const trials = 30000
	for i := 0; i < trials; i++ {
		got, err := svc.PickRandom()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		counts[got.ID]++
	}
	for _, r := range queue {
		freq := float64(counts[r.ID]) / trials
		if freq < 0.30 || freq > 0.37 {
			t.Fatalf("frequency for %s = %.3f, want about 1/3", r.ID, freq)
		}
	}
	if q, _ := svc.Queue(); !level.Equal(q, queue) {
		t.Fatalf("pick must not change the queue")
	}
}

func TestReportRejectedSurfacesUnchanged(t *testing.T) {
	p := newMemoryPersistence(tower)
	svc, r := newTestService(t, p)
	rejected := &remote.RejectedError{Action: remote.ActionReport, StatusCode: 403, Message: "nope"}
	r.reportErr = rejected

	err := svc.Report(context.Background(), "A1", "inappropriate content")
	if err != rejected {
		t.Fatalf("expected the remote error unchanged, got %v", err)
	}
	if q, _ := svc.Queue(); !level.Equal(q, []level.Record{tower}) {
		t.Fatalf("queue changed by report")
	}
	if h, _ := svc.History(); len(h) != 0 {
		t.Fatalf("history changed by report")
	}
	if len(r.reports) != 1 || r.reports[0] != (reportCall{id: "A1", reason: "inappropriate content"}) {
		t.Fatalf("unexpected report calls %+v", r.reports)
	}
}

func TestReportValidation(t *testing.T) {
	svc, r := newTestService(t, newMemoryPersistence(tower))
	if err := svc.Report(context.Background(), "zz", "spam"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Report(context.Background(), "A1", "   "); !errors.Is(err, ErrEmptyReason) {
		t.Fatalf("expected ErrEmptyReason, got %v", err)
	}
	if len(r.reports) != 0 {
		t.Fatalf("invalid reports must not reach the remote")
	}
	if err := svc.Report(context.Background(), "A1", " spam "); err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.reports[0].reason != "spam" {
		t.Fatalf("reason not trimmed: %q", r.reports[0].reason)
	}
}

func TestAdmittedUsesFilters(t *testing.T) {
	p := newMemoryPersistence(tower, bloodbath)
	p.config.Filters = filter.Filters{
		Lengths:      []level.Length{level.Short},
		Difficulties: []level.Difficulty{level.Hard},
		Rated:        filter.Both,
	}
	svc, _ := newTestService(t, p)
	got, err := svc.Admitted()
	if err != nil {
		t.Fatalf("admitted: %v", err)
	}
	if !level.Equal(got, []level.Record{tower}) {
		t.Fatalf("unexpected admitted %+v", got)
	}
}

func TestExport(t *testing.T) {
	got := Export([]level.Record{tower, flagged})
	want := strings.Join([]string{
		"HwGDReqs Queue Export",
		strings.Repeat("=", 50),
		"",
		"1. Tower (ID: A1)",
		"   Author: RobTop",
		"   Difficulty: Hard",
		"   Length: Short",
		"",
		"2. Spam (ID: C3)",
		"   Author: anon",
		"   Difficulty: NA",
		"   Length: Tiny",
		"   Flagged: Offensive name",
		"",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected export:\n%s", got)
	}

	var buf bytes.Buffer
	if err := ExportTo(&buf, nil); err != nil {
		t.Fatalf("export to: %v", err)
	}
	if !strings.HasPrefix(buf.String(), ExportTitle) {
		t.Fatalf("missing title: %q", buf.String())
	}
}

func TestUpdateSettings(t *testing.T) {
	p := newMemoryPersistence()
	svc, r := newTestService(t, p)

	cfg, err := svc.UpdateSettings(context.Background(), func(c *config.Config) error {
		c.StreamerName = "Doggie"
		c.BgType = config.BackgroundColor
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cfg.StreamerName != "Doggie" || p.LoadConfig().BgType != config.BackgroundColor {
		t.Fatalf("settings not persisted: %+v", cfg)
	}
	if len(r.configs) != 1 || r.configs[0].StreamerName != "Doggie" {
		t.Fatalf("expected config push, got %+v", r.configs)
	}

	_, err = svc.UpdateSettings(context.Background(), func(c *config.Config) error {
		c.BgColor1 = "not-a-color"
		return nil
	})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if p.LoadConfig().BgColor1 != config.DefaultColor1 {
		t.Fatalf("invalid settings were saved")
	}
	if len(r.configs) != 1 {
		t.Fatalf("invalid settings were pushed")
	}
}

func TestAuthenticate(t *testing.T) {
	p := newMemoryPersistence()
	p.config.AppID = ""
	svc, _ := newTestService(t, p)

	if _, err := svc.Authenticate(context.Background(), "  "); !errors.Is(err, ErrEmptyAppID) {
		t.Fatalf("expected ErrEmptyAppID, got %v", err)
	}
	cfg, err := svc.Authenticate(context.Background(), " abc123 ")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if cfg.AppID != "abc123" || p.LoadConfig().AppID != "abc123" {
		t.Fatalf("app id not stored: %+v", cfg)
	}
}

func TestTakeDonationPromptOnce(t *testing.T) {
	p := newMemoryPersistence()
	svc, _ := newTestService(t, p)

	first, err := svc.TakeDonationPrompt()
	if err != nil || !first {
		t.Fatalf("expected first prompt, got %v %v", first, err)
	}
	second, err := svc.TakeDonationPrompt()
	if err != nil || second {
		t.Fatalf("prompt shown twice")
	}
	if !p.LoadConfig().DonateShown {
		t.Fatalf("shown flag not persisted")
	}

	other, _ := newTestService(t, newMemoryPersistence())
	if err := other.DisableDonationPrompt(); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if show, _ := other.TakeDonationPrompt(); show {
		t.Fatalf("disabled prompt shown")
	}
}

func TestSubmitMessage(t *testing.T) {
	p := newMemoryPersistence(tower)
	p.history = []level.Record{bloodbath}
	svc, _ := newTestService(t, p)

	got, err := svc.SubmitMessage("A1")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if got != "Okay! Tower submitted to Viprin" {
		t.Fatalf("unexpected message %q", got)
	}
	if got, _ := svc.SubmitMessage("B2"); got != "Okay! Bloodbath submitted to Viprin" {
		t.Fatalf("history lookup failed: %q", got)
	}
	if _, err := svc.SubmitMessage("zz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	p := newMemoryPersistence(tower, flagged)
	p.history = []level.Record{bloodbath}
	svc, _ := newTestService(t, p)

	st, err := svc.Status("https://example.test/")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Authenticated || st.Queued != 2 || st.Admitted != 2 || st.Flagged != 1 || st.Archived != 1 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.SubmissionURL != "https://example.test/app-1/submit" {
		t.Fatalf("unexpected url %q", st.SubmissionURL)
	}
}
