package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RepoKey identifies a repository. It is a comparable value type so it can
// key in-flight maps and subscription tables directly.
type RepoKey struct {
	Owner string
	Name  string
}

// String renders the canonical "owner/name" form used in logs and topics.
func (k RepoKey) String() string {
	return k.Owner + "/" + k.Name
}

// Validate rejects keys that are empty or could escape a filesystem layout.
func (k RepoKey) Validate() error {
	if k.Owner == "" || k.Name == "" {
		return ErrInvalidRepoKey
	}
	for _, part := range []string{k.Owner, k.Name} {
		if strings.ContainsAny(part, "/\\") || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidRepoKey, part)
		}
	}
	return nil
}

// ErrInvalidRepoKey signals an unusable owner/name pair.
var ErrInvalidRepoKey = errors.New("invalid repository key")

// CloneOptions carries per-request clone parameters. Credentials are only
// embedded in the transport URL for the single clone invocation and must
// never be persisted or logged.
type CloneOptions struct {
	Branch   string `json:"branch,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

// CloneOutcome records the result of a clone attempt. It is produced exactly
// once per attempt and immutable afterwards.
type CloneOutcome struct {
	Success    bool   `json:"success"`
	LocalPath  string `json:"localPath"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}
