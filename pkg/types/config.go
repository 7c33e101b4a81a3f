package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AgentConfig holds settings for talking to the paper-search agent.
type AgentConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the agent service root (default "https://pasa-agent.ai").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// InitiateAttempts caps session-creation attempts (default 3).
	InitiateAttempts int `json:"initiate_attempts" yaml:"initiate_attempts"`

	// InitiateBackoff is the first backoff between session-creation
	// attempts; it doubles per attempt (default 1s).
	InitiateBackoff time.Duration `json:"initiate_backoff" yaml:"initiate_backoff"`

	// SessionFormat selects the session identifier generator:
	// "timestamp" (default) or "uuid".
	SessionFormat string `json:"session_format" yaml:"session_format"`
}

// PollConfig holds the polling cadence and completion thresholds.
type PollConfig struct {
	// Interval is the wait between consecutive polls (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxPolls is the standard-policy attempt budget (default 50).
	MaxPolls int `json:"max_polls" yaml:"max_polls"`

	// ThoroughMaxPolls is the thorough-policy safety bound (default 120).
	ThoroughMaxPolls int `json:"thorough_max_polls" yaml:"thorough_max_polls"`

	// ThoroughMinPolls is the minimum number of polls before the thorough
	// policy may finish (default 10).
	ThoroughMinPolls int `json:"thorough_min_polls" yaml:"thorough_min_polls"`

	// StablePolls is the stability required together with the finish flag,
	// and by the thorough policy (default 3).
	StablePolls int `json:"stable_polls" yaml:"stable_polls"`

	// ImplicitStablePolls is the stability at which the standard policy
	// finishes without the finish flag (default 5).
	ImplicitStablePolls int `json:"implicit_stable_polls" yaml:"implicit_stable_polls"`
}

// EnrichConfig holds settings for the abstract-page enrichment stage.
type EnrichConfig struct {
	HTTPConfig `yaml:",inline"`

	// Enabled controls whether records are enriched (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Concurrency bounds parallel abstract-page fetches (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// AbsBaseURL is the abstract page prefix; the paper id is appended.
	AbsBaseURL string `json:"abs_base_url,omitempty" yaml:"abs_base_url,omitempty"`
}

// DownloadConfig holds settings for the artifact download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxConcurrent bounds in-flight artifact fetches and the number of
	// request starts per second (default 5).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// PDF and Source toggle the primary-document and source-archive fetches.
	PDF    bool `json:"pdf" yaml:"pdf"`
	Source bool `json:"source" yaml:"source"`

	// OutputDir is the base directory for per-paper folders (default "downloads").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// GCSBucket stores artifacts in Google Cloud Storage instead of OutputDir.
	GCSBucket string `json:"gcs_bucket,omitempty" yaml:"gcs_bucket,omitempty"`

	// ValidatePDF counts the pages of each stored PDF and reports an
	// invalid document as a failed artifact.
	ValidatePDF bool `json:"validate_pdf" yaml:"validate_pdf"`
}

// CacheConfig holds settings for the search result cache.
type CacheConfig struct {
	// Enabled controls whether results are cached (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TTL is how long a cached result stays fresh (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// RedisAddr enables the shared Redis tier when set (e.g. "localhost:6379").
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"-" yaml:"-"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
}

// Config groups all stage configurations.
type Config struct {
	Agent    AgentConfig    `json:"agent" yaml:"agent"`
	Poll     PollConfig     `json:"poll" yaml:"poll"`
	Enrich   EnrichConfig   `json:"enrich" yaml:"enrich"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`

	// IndexPath is the SQLite history database; empty disables indexing.
	IndexPath string `json:"index_path,omitempty" yaml:"index_path,omitempty"`
}

const (
	DefaultUserAgent = "paper-fetcher/0.1"
	DefaultAgentURL  = "https://pasa-agent.ai"

	DefaultAbsBaseURL = "https://arxiv.org/abs/"
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			HTTPConfig:       HTTPConfig{Timeout: 60 * time.Second, UserAgent: DefaultUserAgent},
			BaseURL:          DefaultAgentURL,
			InitiateAttempts: 3,
			InitiateBackoff:  time.Second,
			SessionFormat:    "timestamp",
		},
		Poll: PollConfig{
			Interval:            2 * time.Second,
			MaxPolls:            50,
			ThoroughMaxPolls:    120,
			ThoroughMinPolls:    10,
			StablePolls:         3,
			ImplicitStablePolls: 5,
		},
		Enrich: EnrichConfig{
			HTTPConfig:  HTTPConfig{Timeout: 30 * time.Second, UserAgent: DefaultUserAgent},
			Enabled:     true,
			Concurrency: 4,
			AbsBaseURL:  DefaultAbsBaseURL,
		},
		Download: DownloadConfig{
			HTTPConfig:    HTTPConfig{Timeout: 60 * time.Second, UserAgent: DefaultUserAgent},
			MaxConcurrent: 5,
			PDF:           true,
			OutputDir:     "downloads",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
	}
}
