package config

import (
	"fmt"

	"github.com/doeshing/gitscope/internal/domain"
)

// knownProviders lists accepted model.provider values. Empty selects the
// default provider.
var knownProviders = map[string]bool{
	"":          true,
	"anthropic": true,
	"heuristic": true,
}

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if cfg.Server.HeartbeatSeconds <= 0 {
		return fmt.Errorf("server.heartbeat_seconds must be > 0")
	}
	if cfg.Clone.BasePath == "" {
		return fmt.Errorf("clone.base_path must be set")
	}
	if cfg.Clone.GraceSeconds < 0 {
		return fmt.Errorf("clone.grace_seconds must be >= 0")
	}
	if cfg.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir must be set")
	}
	if cfg.Store.StalenessHours <= 0 {
		return fmt.Errorf("store.staleness_hours must be > 0")
	}
	if cfg.GitHub.APIBase == "" {
		return fmt.Errorf("github.api_base must be set")
	}
	if cfg.Explorer.MaxSteps <= 0 {
		return fmt.Errorf("explorer.max_steps must be > 0")
	}
	if cfg.Explorer.SearchTimeoutSeconds <= 0 {
		return fmt.Errorf("explorer.search_timeout_seconds must be > 0")
	}
	if cfg.Explorer.OutputCapChars <= 0 {
		return fmt.Errorf("explorer.output_cap_chars must be > 0")
	}
	if !knownProviders[cfg.Model.Provider] {
		return fmt.Errorf("model.provider must be anthropic or heuristic, got %q", cfg.Model.Provider)
	}
	if cfg.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be > 0")
	}
	return nil
}
