package domain

// Config mirrors ~/.gitscope/config.yaml.
type Config struct {
	ConfigFormatVersion string           `yaml:"config_format_version"`
	Server              ServerSettings   `yaml:"server"`
	Clone               CloneSettings    `yaml:"clone"`
	Store               StoreSettings    `yaml:"store"`
	GitHub              GitHubSettings   `yaml:"github"`
	Explorer            ExplorerSettings `yaml:"explorer"`
	Model               ModelDefinition  `yaml:"model"`
}

// ServerSettings controls the HTTP listener and push channel.
type ServerSettings struct {
	Addr             string `yaml:"addr"`
	HeartbeatSeconds int    `yaml:"heartbeat_seconds"`
}

// CloneSettings controls the checkout area.
type CloneSettings struct {
	BasePath         string `yaml:"base_path"`
	GraceSeconds     int    `yaml:"grace_seconds"`
	SweepMaxAgeHours int    `yaml:"sweep_max_age_hours"`
}

// StoreSettings controls durable persistence and staleness.
type StoreSettings struct {
	DataDir        string `yaml:"data_dir"`
	StalenessHours int    `yaml:"staleness_hours"`
}

// GitHubSettings configures the REST fetchers.
type GitHubSettings struct {
	APIBase         string `yaml:"api_base"`
	TokenEnvVar     string `yaml:"token_env_var"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// ExplorerSettings bounds the tool-calling loop.
type ExplorerSettings struct {
	MaxSteps             int `yaml:"max_steps"`
	SearchTimeoutSeconds int `yaml:"search_timeout_seconds"`
	OutputCapChars       int `yaml:"output_cap_chars"`
}

// ModelDefinition describes the model capability endpoint.
type ModelDefinition struct {
	Provider   string `yaml:"provider"`
	Endpoint   string `yaml:"endpoint"`
	AuthEnvVar string `yaml:"auth_env_var"`
	ModelID    string `yaml:"model_id"`
	MaxTokens  int    `yaml:"max_tokens"`
}
