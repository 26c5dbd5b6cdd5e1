package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/gitscope/assets"
	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/pkg/filesystem"
	"github.com/doeshing/gitscope/internal/ports"
)

// FileLoader loads YAML configuration from ~/.gitscope/config.yaml (overridable via GITSCOPE_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: seed the commented template so the user has
			// something readable to edit.
			if err := os.WriteFile(path, assets.DefaultConfigYAML, 0o600); err != nil {
				return domain.Config{}, err
			}
			return hydrateDefaults(defaultConfig()), nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}

	cfg = hydrateDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return l.overridePath
	}
	if custom := os.Getenv("GITSCOPE_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".gitscope", "config.yaml")
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func defaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Server: domain.ServerSettings{
			Addr:             ":3000",
			HeartbeatSeconds: 30,
		},
		Clone: domain.CloneSettings{
			BasePath:         filepath.Join(os.TempDir(), "gitscope"),
			GraceSeconds:     5,
			SweepMaxAgeHours: 72,
		},
		Store: domain.StoreSettings{
			DataDir:        filepath.Join(filesystem.UserHomeDir(), ".gitscope", "data"),
			StalenessHours: 24,
		},
		GitHub: domain.GitHubSettings{
			APIBase:         "https://api.github.com",
			TokenEnvVar:     "GITHUB_TOKEN",
			CacheTTLSeconds: 300,
		},
		Explorer: domain.ExplorerSettings{
			MaxSteps:             30,
			SearchTimeoutSeconds: 5,
			OutputCapChars:       10000,
		},
		Model: domain.ModelDefinition{
			Provider:   "anthropic",
			Endpoint:   "https://api.anthropic.com/v1/messages",
			AuthEnvVar: "ANTHROPIC_API_KEY",
			ModelID:    "claude-3-5-sonnet-20240620",
			MaxTokens:  4096,
		},
	}
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	def := defaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.HeartbeatSeconds == 0 {
		cfg.Server.HeartbeatSeconds = def.Server.HeartbeatSeconds
	}
	if cfg.Clone.BasePath == "" {
		cfg.Clone.BasePath = def.Clone.BasePath
	} else {
		cfg.Clone.BasePath = expandPath(cfg.Clone.BasePath)
	}
	if base := os.Getenv("GITSCOPE_BASE_PATH"); base != "" {
		cfg.Clone.BasePath = expandPath(base)
	}
	if cfg.Clone.GraceSeconds == 0 {
		cfg.Clone.GraceSeconds = def.Clone.GraceSeconds
	}
	if cfg.Clone.SweepMaxAgeHours == 0 {
		cfg.Clone.SweepMaxAgeHours = def.Clone.SweepMaxAgeHours
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = def.Store.DataDir
	} else {
		cfg.Store.DataDir = expandPath(cfg.Store.DataDir)
	}
	if cfg.Store.StalenessHours == 0 {
		cfg.Store.StalenessHours = def.Store.StalenessHours
	}
	if cfg.GitHub.APIBase == "" {
		cfg.GitHub.APIBase = def.GitHub.APIBase
	}
	if cfg.GitHub.TokenEnvVar == "" {
		cfg.GitHub.TokenEnvVar = def.GitHub.TokenEnvVar
	}
	if cfg.GitHub.CacheTTLSeconds == 0 {
		cfg.GitHub.CacheTTLSeconds = def.GitHub.CacheTTLSeconds
	}
	if cfg.Explorer.MaxSteps == 0 {
		cfg.Explorer.MaxSteps = def.Explorer.MaxSteps
	}
	if cfg.Explorer.SearchTimeoutSeconds == 0 {
		cfg.Explorer.SearchTimeoutSeconds = def.Explorer.SearchTimeoutSeconds
	}
	if cfg.Explorer.OutputCapChars == 0 {
		cfg.Explorer.OutputCapChars = def.Explorer.OutputCapChars
	}
	if cfg.Model.Provider == "" {
		cfg.Model = def.Model
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = def.Model.MaxTokens
	}
	return cfg
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
