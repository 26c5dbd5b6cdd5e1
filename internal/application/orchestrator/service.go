// Package orchestrator coordinates one insight request end to end: cache
// short-circuit, background clone and exploration, item-by-item fetching,
// snapshot persistence, and lifecycle events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/gitscope/internal/application/explore"
	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/pkg/tasks"
	"github.com/doeshing/gitscope/internal/ports"
)

const (
	// How long a producer waits for a push subscriber before emitting a
	// cached exploration anyway. The auto-start path waits longer because
	// the client typically opens its stream right after the POST.
	awaitSubscriberSnapshot  = 5 * time.Second
	awaitSubscriberAutoStart = 10 * time.Second
)

// Service implements the request orchestration. All dependencies are
// injected; the service owns no goroutines beyond the detached tasks it
// spawns per request.
type Service struct {
	cloner      ports.CloneManager
	store       ports.ResultStore
	fetcher     ports.RepoFetcher
	explorer    ports.Explorer
	broadcaster ports.Broadcaster
	history     ports.HistoryRepository
	log         ports.Logger
	staleness   time.Duration
}

// New wires a Service.
func New(
	cloner ports.CloneManager,
	store ports.ResultStore,
	fetcher ports.RepoFetcher,
	explorer ports.Explorer,
	broadcaster ports.Broadcaster,
	history ports.HistoryRepository,
	log ports.Logger,
	staleness time.Duration,
) *Service {
	return &Service{
		cloner:      cloner,
		store:       store,
		fetcher:     fetcher,
		explorer:    explorer,
		broadcaster: broadcaster,
		history:     history,
		log:         log,
		staleness:   staleness,
	}
}

// Process handles one insight request. Individual item failures degrade the
// response instead of failing it; only an invalid request is an error.
func (s *Service) Process(ctx context.Context, req domain.InsightRequest) (domain.InsightResponse, error) {
	started := time.Now()
	key := req.Key()
	if err := key.Validate(); err != nil {
		return domain.InsightResponse{}, err
	}
	if len(req.Data) == 0 {
		return domain.InsightResponse{}, errors.New("data array is required and must not be empty")
	}

	if req.CacheAllowed() {
		if resp, ok := s.serveFromSnapshot(key); ok {
			s.recordHistory(req, started, true, nil)
			return resp, nil
		}
	} else {
		s.log.Info("cache bypass requested", map[string]interface{}{"repo": key.String()})
	}

	fetcher := s.fetcher
	if req.CloneOptions != nil && req.CloneOptions.Token != "" {
		fetcher = s.fetcher.WithToken(req.CloneOptions.Token)
	}

	s.publish(domain.Event{Type: domain.EventCloneStarted, Owner: key.Owner, Repo: key.Name})
	s.cloner.StartInBackground(key, req.CloneOptions)
	s.autoStartFirstPass(key, req.CloneOptions)

	response := domain.InsightResponse{}
	for _, item := range req.Data {
		if err := s.fetchItem(ctx, &response, fetcher, key, item, req); err != nil {
			// One broken item must not sink the rest of the request.
			s.log.Error("item fetch failed", err, map[string]interface{}{
				"repo": key.String(), "item": string(item),
			})
		}
	}

	if err := s.store.PutSnapshot(key, domain.Snapshot{
		Repo:         response.Repo,
		Contributors: response.Contributors,
		Files:        response.Files,
		Stats:        response.Stats,
		Icon:         response.Icon,
	}); err != nil {
		s.log.Error("snapshot store failed", err, map[string]interface{}{"repo": key.String()})
	}

	s.recordHistory(req, started, false, nil)
	return response, nil
}

// serveFromSnapshot answers the whole request from the stored snapshot when
// one exists. A stored first_pass exploration is re-announced on the push
// channel so a reconnecting client still receives it.
func (s *Service) serveFromSnapshot(key domain.RepoKey) (domain.InsightResponse, bool) {
	snap, ok, err := s.store.GetSnapshot(key)
	if err != nil || !ok {
		return domain.InsightResponse{}, false
	}
	s.log.Info("serving cached snapshot", map[string]interface{}{"repo": key.String()})

	resp := domain.InsightResponse{
		Repo:         snap.Repo,
		Contributors: snap.Contributors,
		Icon:         snap.Icon,
		Files:        snap.Files,
		Stats:        snap.Stats,
	}

	rec, found, err := s.store.GetExploration(key, domain.ModeFirstPass)
	if err == nil && found {
		if view := explorationView(rec.Result); view != nil {
			resp.Exploration = view
		}
		s.announceCached(key, rec, awaitSubscriberSnapshot)
	}
	return resp, true
}

// announceCached republishes a stored exploration once a push subscriber
// shows up, or after the timeout regardless. Events are fire-and-forget;
// there is nothing to do on failure beyond what the task helper logs.
func (s *Service) announceCached(key domain.RepoKey, rec domain.ExplorationRecord, wait time.Duration) {
	tasks.Go("announce-cached-exploration", s.log, func() error {
		if err := s.broadcaster.AwaitFirstSubscriber(context.Background(), key, wait); err != nil {
			s.log.Warn("no subscriber in time, emitting anyway", map[string]interface{}{
				"repo": key.String(),
			})
		}
		s.publish(domain.Event{
			Type:  domain.EventExplorationCompleted,
			Owner: key.Owner,
			Repo:  key.Name,
			Mode:  rec.Mode,
			Data:  rec.Result,
		})
		return nil
	}, nil)
}

// autoStartFirstPass kicks off the background first_pass exploration that
// accompanies every fresh request, unless a fresh record already exists, in
// which case that record is re-announced instead.
func (s *Service) autoStartFirstPass(key domain.RepoKey, opts *domain.CloneOptions) {
	if s.store.IsFresh(key, domain.ModeFirstPass, s.staleness) {
		rec, ok, err := s.store.GetExploration(key, domain.ModeFirstPass)
		if err == nil && ok {
			s.announceCached(key, rec, awaitSubscriberAutoStart)
		}
		return
	}

	s.publish(domain.Event{Type: domain.EventExplorationStarted, Owner: key.Owner, Repo: key.Name, Mode: domain.ModeFirstPass})
	tasks.Go("first-pass-exploration", s.log, func() error {
		return s.runBackgroundExploration(key, domain.ModeFirstPass, opts)
	}, func(err error) {
		s.publish(domain.Event{
			Type:  domain.EventExplorationFailed,
			Owner: key.Owner,
			Repo:  key.Name,
			Mode:  domain.ModeFirstPass,
			Error: err.Error(),
		})
	})
}

func (s *Service) runBackgroundExploration(key domain.RepoKey, mode domain.ExplorationMode, opts *domain.CloneOptions) error {
	outcome, err := s.cloner.EnsureCloned(context.Background(), key, opts)
	if err != nil {
		s.publish(domain.Event{Type: domain.EventCloneCompleted, Owner: key.Owner, Repo: key.Name, Error: err.Error()})
		return fmt.Errorf("waiting for clone: %w", err)
	}
	if !outcome.Success {
		s.publish(domain.Event{Type: domain.EventCloneCompleted, Owner: key.Owner, Repo: key.Name, Error: outcome.Error})
		return errors.New("repository clone failed")
	}
	s.publish(domain.Event{
		Type: domain.EventCloneCompleted, Owner: key.Owner, Repo: key.Name,
		Data: map[string]interface{}{"success": true, "localPath": outcome.LocalPath},
	})

	s.publish(domain.Event{
		Type: domain.EventExplorationProgress, Owner: key.Owner, Repo: key.Name, Mode: mode,
		Data: map[string]interface{}{"progress": "Running AI analysis..."},
	})

	result, _, err := s.explorer.Explore(context.Background(), explore.DefaultPrompt(mode), outcome.LocalPath, mode)
	if err != nil {
		return fmt.Errorf("background %s exploration: %w", mode, err)
	}
	if err := s.store.PutExploration(key, mode, result); err != nil {
		s.log.Error("exploration store failed", err, map[string]interface{}{"repo": key.String()})
	}
	s.publish(domain.Event{
		Type: domain.EventExplorationCompleted, Owner: key.Owner, Repo: key.Name, Mode: mode, Data: result,
	})
	return nil
}

// fetchItem resolves one requested data item into the response.
func (s *Service) fetchItem(ctx context.Context, resp *domain.InsightResponse, fetcher ports.RepoFetcher, key domain.RepoKey, item domain.DataType, req domain.InsightRequest) error {
	switch item {
	case domain.DataRepoInfo:
		info, err := fetcher.RepoInfo(ctx, key)
		if err != nil {
			return err
		}
		resp.Repo = info
	case domain.DataContributors:
		contributors, err := fetcher.Contributors(ctx, key)
		if err != nil {
			return err
		}
		resp.Contributors = contributors
	case domain.DataIcon:
		icon, err := fetcher.Icon(ctx, key)
		if err != nil {
			return err
		}
		resp.Icon = icon
	case domain.DataCommits:
		commits, err := fetcher.Commits(ctx, key)
		if err != nil {
			return err
		}
		resp.Commits = commits
	case domain.DataBranches:
		branches, err := fetcher.Branches(ctx, key)
		if err != nil {
			return err
		}
		resp.Branches = branches
	case domain.DataFiles:
		files, err := fetcher.KeyFiles(ctx, key)
		if err != nil {
			return err
		}
		resp.Files = files
	case domain.DataStats:
		stats, err := fetcher.Stats(ctx, key)
		if err != nil {
			return err
		}
		resp.Stats = stats
	case domain.DataFileContent:
		if req.FilePath == "" {
			s.log.Warn("file content requested without filePath", map[string]interface{}{"repo": key.String()})
			return nil
		}
		content, err := fetcher.FileContent(ctx, key, req.FilePath)
		if err != nil {
			return err
		}
		resp.FileContent = content
	case domain.DataExploration:
		resp.Exploration = s.resolveExploration(ctx, key, req)
	default:
		s.log.Warn("unknown data type", map[string]interface{}{"item": string(item)})
	}
	return nil
}

// resolveExploration serves the requested exploration from the store when it
// is fresh enough and runs the loop inline otherwise. Failures land in the
// view's error field, never in the request error.
func (s *Service) resolveExploration(ctx context.Context, key domain.RepoKey, req domain.InsightRequest) *domain.ExplorationView {
	mode := req.ExplorationMode
	if mode == "" {
		mode = domain.ModeFeatures
	}
	if !mode.Valid() {
		return &domain.ExplorationView{Error: fmt.Sprintf("unknown exploration mode %q", mode)}
	}

	if req.CacheAllowed() && s.store.IsFresh(key, mode, s.staleness) {
		rec, ok, err := s.store.GetExploration(key, mode)
		if err == nil && ok {
			s.publish(domain.Event{
				Type: domain.EventExplorationCompleted, Owner: key.Owner, Repo: key.Name, Mode: mode, Data: rec.Result,
			})
			return explorationView(rec.Result)
		}
	}

	outcome, err := s.cloner.EnsureCloned(ctx, key, req.CloneOptions)
	if err != nil || !outcome.Success {
		return &domain.ExplorationView{Error: "Repository not accessible for exploration"}
	}

	prompt := req.ExplorationPrompt
	if prompt == "" {
		prompt = explore.DefaultPrompt(mode)
	}
	result, _, err := s.explorer.Explore(ctx, prompt, outcome.LocalPath, mode)
	if err != nil {
		return &domain.ExplorationView{Error: fmt.Sprintf("Exploration failed: %v", err)}
	}
	if err := s.store.PutExploration(key, mode, result); err != nil {
		s.log.Error("exploration store failed", err, map[string]interface{}{"repo": key.String()})
	}
	return explorationView(result)
}

func explorationView(result domain.ExplorationResult) *domain.ExplorationView {
	payload, err := result.MarshalPayload()
	if err != nil {
		return &domain.ExplorationView{Error: fmt.Sprintf("encoding exploration result: %v", err)}
	}
	return &domain.ExplorationView{Result: payload}
}

func (s *Service) publish(ev domain.Event) {
	ev.TimestampMS = time.Now().UnixMilli()
	s.broadcaster.Publish(ev)
}

func (s *Service) recordHistory(req domain.InsightRequest, started time.Time, cacheHit bool, cause error) {
	rec := domain.RequestRecord{
		ID:         uuid.NewString(),
		Timestamp:  started,
		Owner:      req.Owner,
		Repo:       req.Repo,
		Data:       dataList(req.Data),
		CacheHit:   cacheHit,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := s.history.Save(rec); err != nil {
		s.log.Warn("history save failed", map[string]interface{}{"error": err.Error()})
	}
}

func dataList(items []domain.DataType) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += string(item)
	}
	return out
}
