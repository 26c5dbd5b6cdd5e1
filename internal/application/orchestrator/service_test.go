package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

type stubCloner struct {
	mu         sync.Mutex
	started    int
	ensured    int
	outcome    domain.CloneOutcome
	ensureErr  error
	localPath  string
	sweepCalls int
}

func (c *stubCloner) StartInBackground(domain.RepoKey, *domain.CloneOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
}

func (c *stubCloner) EnsureCloned(context.Context, domain.RepoKey, *domain.CloneOptions) (domain.CloneOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensured++
	if c.ensureErr != nil {
		return domain.CloneOutcome{}, c.ensureErr
	}
	return c.outcome, nil
}

func (c *stubCloner) OutcomeIfAvailable(domain.RepoKey) (domain.CloneOutcome, bool) {
	return c.outcome, true
}

func (c *stubCloner) LocalPath(key domain.RepoKey) string { return c.localPath }

func (c *stubCloner) CleanupOldCheckouts(time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepCalls++
	return nil
}

type stubStore struct {
	mu           sync.Mutex
	snapshots    map[domain.RepoKey]domain.Snapshot
	explorations map[string]domain.ExplorationRecord
}

func newStubStore() *stubStore {
	return &stubStore{
		snapshots:    map[domain.RepoKey]domain.Snapshot{},
		explorations: map[string]domain.ExplorationRecord{},
	}
}

func expKey(key domain.RepoKey, mode domain.ExplorationMode) string {
	return key.String() + "#" + string(mode)
}

func (s *stubStore) PutSnapshot(key domain.RepoKey, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Owner = key.Owner
	snap.Name = key.Name
	snap.TimestampMS = time.Now().UnixMilli()
	s.snapshots[key] = snap
	return nil
}

func (s *stubStore) GetSnapshot(key domain.RepoKey) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[key]
	return snap, ok, nil
}

func (s *stubStore) PutExploration(key domain.RepoKey, mode domain.ExplorationMode, result domain.ExplorationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explorations[expKey(key, mode)] = domain.ExplorationRecord{
		Mode: mode, Result: result, TimestampMS: time.Now().UnixMilli(),
		Owner: key.Owner, Repo: key.Name,
	}
	return nil
}

func (s *stubStore) GetExploration(key domain.RepoKey, mode domain.ExplorationMode) (domain.ExplorationRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.explorations[expKey(key, mode)]
	return rec, ok, nil
}

func (s *stubStore) IsFresh(key domain.RepoKey, mode domain.ExplorationMode, maxAge time.Duration) bool {
	rec, ok, _ := s.GetExploration(key, mode)
	return ok && rec.Age(time.Now()) < maxAge
}

func (s *stubStore) ListRepositories() ([]domain.RepoSummary, error) { return nil, nil }
func (s *stubStore) PurgeOlderThan(time.Duration) (int, error)       { return 0, nil }

type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{fail: map[string]error{}}
}

func (f *stubFetcher) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *stubFetcher) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *stubFetcher) RepoInfo(context.Context, domain.RepoKey) (*domain.RepoInfo, error) {
	if err := f.record("repo_info"); err != nil {
		return nil, err
	}
	return &domain.RepoInfo{FullName: "acme/widgets", Stars: 42}, nil
}

func (f *stubFetcher) Contributors(context.Context, domain.RepoKey) ([]domain.Contributor, error) {
	if err := f.record("contributors"); err != nil {
		return nil, err
	}
	return []domain.Contributor{{Login: "alex"}}, nil
}

func (f *stubFetcher) Branches(context.Context, domain.RepoKey) ([]domain.Branch, error) {
	if err := f.record("branches"); err != nil {
		return nil, err
	}
	return []domain.Branch{{Name: "main"}}, nil
}

func (f *stubFetcher) Commits(context.Context, domain.RepoKey) (string, error) {
	if err := f.record("commits"); err != nil {
		return "", err
	}
	return "digest", nil
}

func (f *stubFetcher) KeyFiles(context.Context, domain.RepoKey) ([]domain.KeyFile, error) {
	if err := f.record("files"); err != nil {
		return nil, err
	}
	return []domain.KeyFile{{Name: "go.mod", Type: "package"}}, nil
}

func (f *stubFetcher) FileContent(_ context.Context, _ domain.RepoKey, path string) (*domain.FileContent, error) {
	if err := f.record("file_content"); err != nil {
		return nil, err
	}
	return &domain.FileContent{Path: path, Content: "body"}, nil
}

func (f *stubFetcher) Stats(context.Context, domain.RepoKey) (*domain.RepoStats, error) {
	if err := f.record("stats"); err != nil {
		return nil, err
	}
	return &domain.RepoStats{Stars: 42}, nil
}

func (f *stubFetcher) Icon(context.Context, domain.RepoKey) (string, error) {
	if err := f.record("icon"); err != nil {
		return "", err
	}
	return "data:image/png;base64,xyz", nil
}

func (f *stubFetcher) WithToken(string) ports.RepoFetcher { return f }

type stubExplorer struct {
	mu     sync.Mutex
	calls  int
	result domain.ExplorationResult
	err    error
}

func (e *stubExplorer) Explore(context.Context, string, string, domain.ExplorationMode) (domain.ExplorationResult, domain.ExplorationOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return domain.ExplorationResult{}, domain.OutcomeError, e.err
	}
	return e.result, domain.OutcomeOK, nil
}

func (e *stubExplorer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type stubBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *stubBroadcaster) Subscribe(domain.RepoKey, func(domain.Event)) func() { return func() {} }

func (b *stubBroadcaster) Publish(ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *stubBroadcaster) AwaitFirstSubscriber(context.Context, domain.RepoKey, time.Duration) error {
	return nil
}

func (b *stubBroadcaster) SubscriberCount(domain.RepoKey) int { return 1 }
func (b *stubBroadcaster) ClearTopic(domain.RepoKey)          {}

func (b *stubBroadcaster) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Type)
	}
	return out
}

func (b *stubBroadcaster) has(t domain.EventType) bool {
	for _, got := range b.types() {
		if got == t {
			return true
		}
	}
	return false
}

type stubHistory struct {
	mu      sync.Mutex
	records []domain.RequestRecord
}

func (h *stubHistory) Save(rec domain.RequestRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *stubHistory) Records(int, string) ([]domain.RequestRecord, error) { return h.records, nil }
func (h *stubHistory) Clear() error                                        { return nil }

type fixture struct {
	svc         *Service
	cloner      *stubCloner
	store       *stubStore
	fetcher     *stubFetcher
	explorer    *stubExplorer
	broadcaster *stubBroadcaster
	history     *stubHistory
}

func newFixture() *fixture {
	f := &fixture{
		cloner:      &stubCloner{outcome: domain.CloneOutcome{Success: true, LocalPath: "/tmp/x"}, localPath: "/tmp/x"},
		store:       newStubStore(),
		fetcher:     newStubFetcher(),
		explorer:    &stubExplorer{result: domain.ExplorationResult{Features: &domain.FeaturesResult{Summary: "fresh"}}},
		broadcaster: &stubBroadcaster{},
		history:     &stubHistory{},
	}
	f.svc = New(f.cloner, f.store, f.fetcher, f.explorer, f.broadcaster, f.history, nopLogger{}, 24*time.Hour)
	return f
}

// freshFirstPass pre-stores a first_pass record so the background auto-start
// takes the cached path and tests stay deterministic.
func (f *fixture) freshFirstPass(key domain.RepoKey) {
	_ = f.store.PutExploration(key, domain.ModeFirstPass, domain.ExplorationResult{
		FirstPass: &domain.FirstPassResult{Summary: "cached overview"},
	})
}

var testKey = domain.RepoKey{Owner: "acme", Name: "widgets"}

func TestProcessRejectsInvalidRequests(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Process(context.Background(), domain.InsightRequest{Owner: "", Repo: "widgets", Data: []domain.DataType{domain.DataRepoInfo}}); err == nil {
		t.Fatal("empty owner must be rejected")
	}
	if _, err := f.svc.Process(context.Background(), domain.InsightRequest{Owner: "acme", Repo: "widgets"}); err == nil {
		t.Fatal("empty data array must be rejected")
	}
	if _, err := f.svc.Process(context.Background(), domain.InsightRequest{Owner: "..", Repo: "widgets", Data: []domain.DataType{domain.DataRepoInfo}}); err == nil {
		t.Fatal("path traversal owner must be rejected")
	}
}

func TestProcessFreshRequest(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data: []domain.DataType{domain.DataRepoInfo, domain.DataContributors, domain.DataStats},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Repo == nil || resp.Repo.FullName != "acme/widgets" {
		t.Fatalf("repo info missing: %+v", resp)
	}
	if len(resp.Contributors) != 1 || resp.Stats == nil {
		t.Fatalf("items missing: %+v", resp)
	}

	if f.cloner.started != 1 {
		t.Fatalf("background clone not started: %d", f.cloner.started)
	}
	if !f.broadcaster.has(domain.EventCloneStarted) {
		t.Fatalf("clone_started not published: %v", f.broadcaster.types())
	}

	// The snapshot is persisted regardless of which items were asked for.
	snap, ok, _ := f.store.GetSnapshot(testKey)
	if !ok || snap.Repo == nil {
		t.Fatalf("snapshot not stored: ok=%v %+v", ok, snap)
	}

	if len(f.history.records) != 1 || f.history.records[0].CacheHit {
		t.Fatalf("history record wrong: %+v", f.history.records)
	}
}

func TestProcessServedFromSnapshot(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)
	_ = f.store.PutSnapshot(testKey, domain.Snapshot{
		Repo: &domain.RepoInfo{FullName: "acme/widgets"},
		Icon: "cached-icon",
	})

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data: []domain.DataType{domain.DataRepoInfo, domain.DataIcon},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Repo == nil || resp.Icon != "cached-icon" {
		t.Fatalf("snapshot content not served: %+v", resp)
	}
	if resp.Exploration == nil || len(resp.Exploration.Result) == 0 {
		t.Fatalf("stored first_pass should ride along: %+v", resp.Exploration)
	}
	if len(f.fetcher.calls) != 0 {
		t.Fatalf("no upstream calls expected on cache hit: %v", f.fetcher.calls)
	}
	if f.cloner.started != 0 {
		t.Fatal("no clone expected on cache hit")
	}
	if len(f.history.records) != 1 || !f.history.records[0].CacheHit {
		t.Fatalf("cache hit not recorded: %+v", f.history.records)
	}
}

func TestProcessCacheBypass(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)
	_ = f.store.PutSnapshot(testKey, domain.Snapshot{Icon: "stale-icon"})

	noCache := false
	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data:     []domain.DataType{domain.DataIcon},
		UseCache: &noCache,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Icon != "data:image/png;base64,xyz" {
		t.Fatalf("bypass should fetch fresh, got %q", resp.Icon)
	}
	if f.fetcher.called("icon") != 1 {
		t.Fatalf("upstream not hit: %v", f.fetcher.calls)
	}
}

func TestProcessToleratesItemFailures(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)
	f.fetcher.fail["contributors"] = errors.New("rate limited")

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data: []domain.DataType{domain.DataContributors, domain.DataRepoInfo},
	})
	if err != nil {
		t.Fatalf("item failure must not fail the request: %v", err)
	}
	if resp.Contributors != nil {
		t.Fatal("failed item should be absent")
	}
	if resp.Repo == nil {
		t.Fatal("remaining items should still be served")
	}
}

func TestExplorationServedFromFreshRecord(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)
	_ = f.store.PutExploration(testKey, domain.ModeFeatures, domain.ExplorationResult{
		Features: &domain.FeaturesResult{Summary: "stored"},
	})

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data:            []domain.DataType{domain.DataExploration},
		ExplorationMode: domain.ModeFeatures,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Exploration == nil || !strings.Contains(string(resp.Exploration.Result), "stored") {
		t.Fatalf("stored exploration not served: %+v", resp.Exploration)
	}
	if f.explorer.callCount() != 0 {
		t.Fatalf("fresh record must not trigger a run: %d", f.explorer.callCount())
	}
	if !f.broadcaster.has(domain.EventExplorationCompleted) {
		t.Fatalf("completion event missing: %v", f.broadcaster.types())
	}
}

func TestExplorationRunsInlineWhenStale(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data:            []domain.DataType{domain.DataExploration},
		ExplorationMode: domain.ModeFeatures,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Exploration == nil || !strings.Contains(string(resp.Exploration.Result), "fresh") {
		t.Fatalf("inline run result missing: %+v", resp.Exploration)
	}
	if f.explorer.callCount() != 1 {
		t.Fatalf("expected one inline run, got %d", f.explorer.callCount())
	}
	if _, ok, _ := f.store.GetExploration(testKey, domain.ModeFeatures); !ok {
		t.Fatal("inline result should be persisted")
	}
}

func TestExplorationCloneFailureYieldsViewError(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)
	f.cloner.outcome = domain.CloneOutcome{Success: false, Error: "auth failed"}

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data: []domain.DataType{domain.DataExploration},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Exploration == nil || resp.Exploration.Error == "" {
		t.Fatalf("expected view error: %+v", resp.Exploration)
	}
	if len(resp.Exploration.Result) != 0 {
		t.Fatal("view must not carry both result and error")
	}
}

func TestFileContentRequiresPath(t *testing.T) {
	f := newFixture()
	f.freshFirstPass(testKey)

	resp, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data: []domain.DataType{domain.DataFileContent},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.FileContent != nil {
		t.Fatal("missing filePath should skip the item")
	}
	if f.fetcher.called("file_content") != 0 {
		t.Fatal("no upstream call expected without a path")
	}
}

func TestBackgroundFirstPassRunsWhenStale(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Process(context.Background(), domain.InsightRequest{
		Owner: "acme", Repo: "widgets",
		Data: []domain.DataType{domain.DataRepoInfo},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The first_pass run happens on a detached goroutine.
	deadline := time.After(2 * time.Second)
	for {
		if _, ok, _ := f.store.GetExploration(testKey, domain.ModeFirstPass); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("background first_pass never stored a result")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !f.broadcaster.has(domain.EventExplorationStarted) {
		t.Fatalf("exploration_started missing: %v", f.broadcaster.types())
	}
	for {
		if f.broadcaster.has(domain.EventExplorationCompleted) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("exploration_completed missing: %v", f.broadcaster.types())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
