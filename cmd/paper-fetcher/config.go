// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetcher/internal/render"
	"github.com/pdiddy/paper-fetcher/internal/secrets"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Config prints the configuration that commands would run with after
merging defaults, the config file, PAPER_FETCHER_* environment variables,
and flags. Secrets are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return render.YAML(cmd.OutOrStdout(), loadConfig())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// setDefaults registers every configuration key with its default so that
// environment variables and config files can override any of them.
func setDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("agent.base_url", d.Agent.BaseURL)
	viper.SetDefault("agent.timeout", d.Agent.Timeout)
	viper.SetDefault("agent.user_agent", d.Agent.UserAgent)
	viper.SetDefault("agent.initiate_attempts", d.Agent.InitiateAttempts)
	viper.SetDefault("agent.initiate_backoff", d.Agent.InitiateBackoff)
	viper.SetDefault("agent.session_format", d.Agent.SessionFormat)

	viper.SetDefault("poll.interval", d.Poll.Interval)
	viper.SetDefault("poll.max_polls", d.Poll.MaxPolls)
	viper.SetDefault("poll.thorough_max_polls", d.Poll.ThoroughMaxPolls)
	viper.SetDefault("poll.thorough_min_polls", d.Poll.ThoroughMinPolls)
	viper.SetDefault("poll.stable_polls", d.Poll.StablePolls)
	viper.SetDefault("poll.implicit_stable_polls", d.Poll.ImplicitStablePolls)

	viper.SetDefault("enrich.enabled", d.Enrich.Enabled)
	viper.SetDefault("enrich.timeout", d.Enrich.Timeout)
	viper.SetDefault("enrich.concurrency", d.Enrich.Concurrency)
	viper.SetDefault("enrich.abs_base_url", d.Enrich.AbsBaseURL)

	viper.SetDefault("download.timeout", d.Download.Timeout)
	viper.SetDefault("download.max_concurrent", d.Download.MaxConcurrent)
	viper.SetDefault("download.pdf", d.Download.PDF)
	viper.SetDefault("download.source", d.Download.Source)
	viper.SetDefault("download.output_dir", d.Download.OutputDir)
	viper.SetDefault("download.gcs_bucket", d.Download.GCSBucket)
	viper.SetDefault("download.validate_pdf", d.Download.ValidatePDF)

	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.ttl", d.Cache.TTL)
	viper.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	viper.SetDefault("cache.redis_db", d.Cache.RedisDB)

	viper.SetDefault("index_path", d.IndexPath)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)
}

// loadConfig builds the effective configuration from viper.
func loadConfig() types.Config {
	userAgent := viper.GetString("agent.user_agent")

	return types.Config{
		Agent: types.AgentConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("agent.timeout"),
				UserAgent: userAgent,
			},
			BaseURL:          viper.GetString("agent.base_url"),
			InitiateAttempts: viper.GetInt("agent.initiate_attempts"),
			InitiateBackoff:  viper.GetDuration("agent.initiate_backoff"),
			SessionFormat:    viper.GetString("agent.session_format"),
		},
		Poll: types.PollConfig{
			Interval:            viper.GetDuration("poll.interval"),
			MaxPolls:            viper.GetInt("poll.max_polls"),
			ThoroughMaxPolls:    viper.GetInt("poll.thorough_max_polls"),
			ThoroughMinPolls:    viper.GetInt("poll.thorough_min_polls"),
			StablePolls:         viper.GetInt("poll.stable_polls"),
			ImplicitStablePolls: viper.GetInt("poll.implicit_stable_polls"),
		},
		Enrich: types.EnrichConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("enrich.timeout"),
				UserAgent: userAgent,
			},
			Enabled:     viper.GetBool("enrich.enabled"),
			Concurrency: viper.GetInt("enrich.concurrency"),
			AbsBaseURL:  viper.GetString("enrich.abs_base_url"),
		},
		Download: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("download.timeout"),
				UserAgent: userAgent,
			},
			MaxConcurrent: viper.GetInt("download.max_concurrent"),
			PDF:           viper.GetBool("download.pdf"),
			Source:        viper.GetBool("download.source"),
			OutputDir:     viper.GetString("download.output_dir"),
			GCSBucket:     viper.GetString("download.gcs_bucket"),
			ValidatePDF:   viper.GetBool("download.validate_pdf"),
		},
		Cache: types.CacheConfig{
			Enabled:       viper.GetBool("cache.enabled"),
			TTL:           viper.GetDuration("cache.ttl"),
			RedisAddr:     viper.GetString("cache.redis_addr"),
			RedisPassword: secrets.Value(loadedSecrets, secrets.RedisPassword, viper.GetString("cache.redis_password")),
			RedisDB:       viper.GetInt("cache.redis_db"),
		},
		IndexPath: viper.GetString("index_path"),
	}
}

// bindFlags binds the named flags of cmd to configuration keys. Binding
// happens when the command runs because several commands share keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// addDownloadFlags registers the flags shared by search --download and the
// download command.
func addDownloadFlags(fs *pflag.FlagSet) {
	fs.Bool("pdf", true, "download the PDF")
	fs.Bool("source", false, "download the source archive")
	fs.String("output", "", "base directory for per-paper folders (default downloads)")
	fs.String("gcs-bucket", "", "store artifacts in this GCS bucket instead of --output")
	fs.Int("concurrency", 0, "maximum concurrent fetches and request starts per second (default 5)")
	fs.Bool("validate-pdf", false, "count PDF pages and fail documents that do not parse")
	fs.String("index", "", "record results in this SQLite index")
}

var downloadFlagKeys = map[string]string{
	"pdf":          "download.pdf",
	"source":       "download.source",
	"output":       "download.output_dir",
	"gcs-bucket":   "download.gcs_bucket",
	"concurrency":  "download.max_concurrent",
	"validate-pdf": "download.validate_pdf",
	"index":        "index_path",
}
