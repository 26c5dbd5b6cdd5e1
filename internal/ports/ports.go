// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// These contracts separate the application core, the request orchestration
// and the exploration loop, from concrete adapters such as the git
// subprocess cloner, the file-backed store, the GitHub REST client, and the
// model capability endpoint. The application depends only on abstractions
// declared here.
package ports

import (
	"context"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.gitscope/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// CloneManager guarantees a usable local checkout of a repository with at
// most one clone in flight per repository.
type CloneManager interface {
	// StartInBackground kicks off a clone unless one is already in flight.
	// It never blocks on the subprocess.
	StartInBackground(key domain.RepoKey, opts *domain.CloneOptions)

	// EnsureCloned returns once a checkout exists: immediately when the
	// directory is already valid, by awaiting an in-flight operation, or by
	// running a fresh clone.
	EnsureCloned(ctx context.Context, key domain.RepoKey, opts *domain.CloneOptions) (domain.CloneOutcome, error)

	// OutcomeIfAvailable reports the checkout status without waiting.
	// ok is false while a clone is still running or was never started.
	OutcomeIfAvailable(key domain.RepoKey) (outcome domain.CloneOutcome, ok bool)

	// LocalPath returns the deterministic checkout path for key.
	LocalPath(key domain.RepoKey) string

	// CleanupOldCheckouts removes checkouts untouched for longer than
	// maxAge. Advisory housekeeping, not correctness-critical.
	CleanupOldCheckouts(maxAge time.Duration) error
}

// ResultStore is the durable, file-backed cache of snapshots and
// exploration records. Staleness is evaluated at read time; the store never
// deletes on expiry by itself.
type ResultStore interface {
	PutSnapshot(key domain.RepoKey, snap domain.Snapshot) error
	GetSnapshot(key domain.RepoKey) (domain.Snapshot, bool, error)

	PutExploration(key domain.RepoKey, mode domain.ExplorationMode, result domain.ExplorationResult) error
	GetExploration(key domain.RepoKey, mode domain.ExplorationMode) (domain.ExplorationRecord, bool, error)

	// IsFresh reports whether a stored exploration is younger than maxAge.
	IsFresh(key domain.RepoKey, mode domain.ExplorationMode, maxAge time.Duration) bool

	// ListRepositories scans persisted entries and reports, per repository,
	// stored modes and the most recent exploration timestamp.
	ListRepositories() ([]domain.RepoSummary, error)

	// PurgeOlderThan deletes exploration records (never snapshots) of
	// repositories whose most recent exploration predates the cutoff.
	PurgeOlderThan(maxAge time.Duration) (int, error)
}

// Broadcaster is the process-wide publish/subscribe hub, one topic per
// repository. There is no buffering and no replay: publishing to a topic
// with zero subscribers drops the event.
type Broadcaster interface {
	// Subscribe registers fn for all events on key's topic and returns a
	// deregistration func. Registration also signals producers waiting in
	// AwaitFirstSubscriber.
	Subscribe(key domain.RepoKey, fn func(domain.Event)) (unsubscribe func())

	// Publish delivers ev synchronously to all current subscribers of its
	// topic.
	Publish(ev domain.Event)

	// AwaitFirstSubscriber returns nil as soon as key's topic has at least
	// one subscriber, or an error when none appears within timeout.
	AwaitFirstSubscriber(ctx context.Context, key domain.RepoKey, timeout time.Duration) error

	SubscriberCount(key domain.RepoKey) int
	ClearTopic(key domain.RepoKey)
}

// Message is one turn of the exploration conversation.
type Message struct {
	Role     string // "user", "assistant", "tool"
	Text     string
	ToolName string // set on tool result messages
}

// ToolSpec advertises one capability to the model.
type ToolSpec struct {
	Name        string
	Description string
	// Params maps argument name to its description. All arguments are
	// strings on the wire.
	Params map[string]string
}

// ToolCall is the model's request to invoke a capability.
type ToolCall struct {
	Name string
	Args map[string]string
}

// StepRequest is one stepping call to the model capability.
type StepRequest struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// StepResult is the model's decision for one step: a capability invocation,
// free text, or both. A result with neither means the model stopped.
type StepResult struct {
	Call *ToolCall
	Text string
}

// Stepper is the black-box model capability: given the conversation so far,
// pick a capability or produce free text. The loop never sees the wire
// protocol behind it.
type Stepper interface {
	Name() string
	Step(ctx context.Context, req StepRequest) (StepResult, error)
}

// StepperFactory builds a stepper from a model definition.
type StepperFactory interface {
	ForModel(domain.ModelDefinition) (Stepper, error)
}

// Explorer runs the bounded tool-calling loop against a checkout.
type Explorer interface {
	Explore(ctx context.Context, prompt, repoPath string, mode domain.ExplorationMode) (domain.ExplorationResult, domain.ExplorationOutcome, error)
}

// RepoFetcher exposes the cheap GitHub REST lookups. Each item is
// independently cacheable and independently failure-tolerant.
type RepoFetcher interface {
	RepoInfo(ctx context.Context, key domain.RepoKey) (*domain.RepoInfo, error)
	Contributors(ctx context.Context, key domain.RepoKey) ([]domain.Contributor, error)
	Branches(ctx context.Context, key domain.RepoKey) ([]domain.Branch, error)
	Commits(ctx context.Context, key domain.RepoKey) (string, error)
	KeyFiles(ctx context.Context, key domain.RepoKey) ([]domain.KeyFile, error)
	FileContent(ctx context.Context, key domain.RepoKey, path string) (*domain.FileContent, error)
	Stats(ctx context.Context, key domain.RepoKey) (*domain.RepoStats, error)
	Icon(ctx context.Context, key domain.RepoKey) (string, error)

	// WithToken returns a fetcher using the given token for this request
	// only; the receiver is unchanged.
	WithToken(token string) RepoFetcher
}

// HistoryRepository records processed requests for later inspection.
type HistoryRepository interface {
	Save(domain.RequestRecord) error
	Records(limit int, search string) ([]domain.RequestRecord, error)
	Clear() error
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
