// Package cloner maintains local repository checkouts. It guarantees at most
// one clone subprocess in flight per repository and lets callers either
// fire-and-forget or block until a checkout is available.
package cloner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

const defaultGrace = 5 * time.Second

// Manager implements ports.CloneManager. The in-flight map is the single
// source of truth for "is a clone running"; completed outcomes are retained
// in a bounded map for a grace period so rapid repeat requests observe a
// just-finished result instead of racing a deleted entry.
type Manager struct {
	basePath string
	grace    time.Duration
	runner   GitRunner
	log      ports.Logger

	mu       sync.Mutex
	inflight map[domain.RepoKey]*operation
	recent   map[domain.RepoKey]recentOutcome
}

type operation struct {
	done    chan struct{}
	outcome domain.CloneOutcome
}

type recentOutcome struct {
	outcome   domain.CloneOutcome
	expiresAt time.Time
}

// New builds a Manager rooted at basePath. grace <= 0 selects the default.
func New(basePath string, grace time.Duration, runner GitRunner, log ports.Logger) *Manager {
	if grace <= 0 {
		grace = defaultGrace
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Manager{
		basePath: basePath,
		grace:    grace,
		runner:   runner,
		log:      log,
		inflight: make(map[domain.RepoKey]*operation),
		recent:   make(map[domain.RepoKey]recentOutcome),
	}
}

// LocalPath implements ports.CloneManager.
func (m *Manager) LocalPath(key domain.RepoKey) string {
	return filepath.Join(m.basePath, key.Owner, key.Name)
}

// StartInBackground implements ports.CloneManager.
func (m *Manager) StartInBackground(key domain.RepoKey, opts *domain.CloneOptions) {
	m.start(key, opts)
}

// EnsureCloned implements ports.CloneManager.
func (m *Manager) EnsureCloned(ctx context.Context, key domain.RepoKey, opts *domain.CloneOptions) (domain.CloneOutcome, error) {
	if err := key.Validate(); err != nil {
		return domain.CloneOutcome{}, err
	}
	path := m.LocalPath(key)
	if checkoutValid(path) {
		return domain.CloneOutcome{Success: true, LocalPath: path}, nil
	}
	op, _ := m.start(key, opts)
	select {
	case <-op.done:
		return op.outcome, nil
	case <-ctx.Done():
		// The clone keeps running; the caller only stops waiting.
		return domain.CloneOutcome{}, ctx.Err()
	}
}

// OutcomeIfAvailable implements ports.CloneManager.
func (m *Manager) OutcomeIfAvailable(key domain.RepoKey) (domain.CloneOutcome, bool) {
	path := m.LocalPath(key)
	if checkoutValid(path) {
		return domain.CloneOutcome{Success: true, LocalPath: path}, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.inflight[key]; running {
		return domain.CloneOutcome{}, false
	}
	if rec, ok := m.recent[key]; ok && time.Now().Before(rec.expiresAt) {
		return rec.outcome, true
	}
	return domain.CloneOutcome{}, false
}

// start registers an operation for key unless one is already in flight and
// returns the live operation either way.
func (m *Manager) start(key domain.RepoKey, opts *domain.CloneOptions) (*operation, bool) {
	m.mu.Lock()
	if op, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		return op, false
	}
	op := &operation{done: make(chan struct{})}
	m.inflight[key] = op
	m.mu.Unlock()

	go func() {
		op.outcome = m.cloneRepo(key, opts)
		close(op.done)

		m.mu.Lock()
		delete(m.inflight, key)
		m.recent[key] = recentOutcome{outcome: op.outcome, expiresAt: time.Now().Add(m.grace)}
		m.pruneRecentLocked()
		m.mu.Unlock()
	}()
	return op, true
}

func (m *Manager) pruneRecentLocked() {
	now := time.Now()
	for k, rec := range m.recent {
		if now.After(rec.expiresAt) {
			delete(m.recent, k)
		}
	}
}

// cloneRepo performs one clone attempt. Failures are never retried here;
// the caller decides whether to try again.
func (m *Manager) cloneRepo(key domain.RepoKey, opts *domain.CloneOptions) domain.CloneOutcome {
	start := time.Now()
	path := m.LocalPath(key)
	fail := func(err error) domain.CloneOutcome {
		m.log.Error("clone failed", err, map[string]interface{}{"repo": key.String()})
		return domain.CloneOutcome{
			Success:    false,
			LocalPath:  path,
			Error:      scrubCredentials(err.Error(), opts),
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if checkoutValid(path) {
			m.log.Debug("checkout already present", map[string]interface{}{"repo": key.String(), "path": path})
			return domain.CloneOutcome{Success: true, LocalPath: path, DurationMS: time.Since(start).Milliseconds()}
		}
		// Empty or half-cloned directory: destroy and recreate.
		if err := os.RemoveAll(path); err != nil {
			return fail(fmt.Errorf("removing invalid checkout: %w", err))
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(fmt.Errorf("creating checkout parent: %w", err))
	}

	args := []string{"clone", "--depth", "1", "--single-branch", "--no-tags"}
	if opts != nil && opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	args = append(args, cloneURL(key, opts), path)

	m.log.Info("cloning repository", map[string]interface{}{"repo": key.String(), "path": path})
	if err := m.runner.Run(context.Background(), args); err != nil {
		return fail(err)
	}
	m.log.Info("clone completed", map[string]interface{}{
		"repo":        key.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return domain.CloneOutcome{Success: true, LocalPath: path, DurationMS: time.Since(start).Milliseconds()}
}

// CleanupOldCheckouts implements ports.CloneManager.
func (m *Manager) CleanupOldCheckouts(maxAge time.Duration) error {
	owners, err := os.ReadDir(m.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		ownerPath := filepath.Join(m.basePath, owner.Name())
		repos, err := os.ReadDir(ownerPath)
		if err != nil {
			continue
		}
		for _, repo := range repos {
			repoPath := filepath.Join(ownerPath, repo.Name())
			info, err := repo.Info()
			if err != nil || !info.IsDir() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				m.log.Info("removing stale checkout", map[string]interface{}{
					"repo": owner.Name() + "/" + repo.Name(),
				})
				_ = os.RemoveAll(repoPath)
			}
		}
	}
	return nil
}

// checkoutValid reports whether path holds a usable checkout: version
// control metadata or any files at all.
func checkoutValid(path string) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		return true
	}
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// cloneURL builds the transport URL. Credentials, when supplied, exist only
// in this string for the single invocation.
func cloneURL(key domain.RepoKey, opts *domain.CloneOptions) string {
	if opts != nil && opts.Username != "" && opts.Token != "" {
		return fmt.Sprintf("https://%s:%s@github.com/%s/%s.git", opts.Username, opts.Token, key.Owner, key.Name)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", key.Owner, key.Name)
}

// scrubCredentials strips an embedded token from subprocess error text so it
// can never reach logs or stored outcomes.
func scrubCredentials(text string, opts *domain.CloneOptions) string {
	if opts == nil || opts.Token == "" {
		return text
	}
	return strings.ReplaceAll(text, opts.Token, "***")
}

var _ ports.CloneManager = (*Manager)(nil)
