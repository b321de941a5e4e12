// Package config loads the journal/worker configuration document from
// .mcp-commit-story/config.toml, walking up from the working directory the
// way the teacher locates .beads/config.yaml, and lets MCP_COMMIT_STORY_-
// prefixed environment variables override its keys. The standard OTEL_*
// variables are applied later, by telemetry.Resolve.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/telemetry"
)

const configFileName = "config.toml"
const configDirName = ".mcp-commit-story"

var v *viper.Viper

// Initialize sets up the viper singleton: locates .mcp-commit-story/config.toml
// by walking up from the working directory, falls back to defaults and
// environment variables when none is found, and is safe to call once at
// process startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	if path, ok := findConfigFile(); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	v.SetEnvPrefix("MCP_COMMIT_STORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return nil
}

// defaultConfigDocument is the template written by WriteDefaultConfigFile;
// it mirrors setDefaults' values so a freshly scaffolded config.toml is
// self-documenting rather than an empty file.
type defaultConfigDocument struct {
	Journal struct {
		Path                string `toml:"path"`
		LookbackHours       int    `toml:"lookback_hours"`
		FallbackWindowHours int    `toml:"fallback_window_hours"`
	} `toml:"journal"`
	Telemetry struct {
		ServiceName           string `toml:"service_name"`
		ServiceVersion        string `toml:"service_version"`
		DeploymentEnvironment string `toml:"deployment_environment"`
	} `toml:"telemetry"`
}

// WriteDefaultConfigFile scaffolds a comment-free .mcp-commit-story/config.toml
// at repoPath, for a first-run `install-hook` to drop alongside the git
// hook. It writes the journal keys and the telemetry service identity keys
// only; exporter settings and worker.timeout are left to setDefaults. It
// does not overwrite an existing file.
func WriteDefaultConfigFile(repoPath string) error {
	dir := filepath.Join(repoPath, configDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	doc := defaultConfigDocument{}
	doc.Journal.Path = "journal/daily"
	doc.Journal.LookbackHours = 48
	doc.Journal.FallbackWindowHours = 24
	doc.Telemetry.ServiceName = "mcp-commit-story"
	doc.Telemetry.ServiceVersion = "dev"
	doc.Telemetry.DeploymentEnvironment = "development"

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(doc)
}

func findConfigFile() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; ; {
		candidate := filepath.Join(dir, configDirName, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("journal.path", "journal/daily")
	v.SetDefault("journal.lookback_hours", 48)
	v.SetDefault("journal.fallback_window_hours", 24)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "mcp-commit-story")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.deployment_environment", "development")

	v.SetDefault("telemetry.exporters.console.enabled", false)
	v.SetDefault("telemetry.exporters.console.traces", true)
	v.SetDefault("telemetry.exporters.console.metrics", true)

	v.SetDefault("telemetry.exporters.otlp.enabled", false)
	v.SetDefault("telemetry.exporters.otlp.endpoint", "http://localhost:4317")
	v.SetDefault("telemetry.exporters.otlp.protocol", "grpc")
	v.SetDefault("telemetry.exporters.otlp.headers", map[string]string{})
	v.SetDefault("telemetry.exporters.otlp.timeout", 30)
	v.SetDefault("telemetry.exporters.otlp.traces", true)
	v.SetDefault("telemetry.exporters.otlp.metrics", true)

	v.SetDefault("telemetry.exporters.prometheus.enabled", false)
	v.SetDefault("telemetry.exporters.prometheus.port", 8888)
	v.SetDefault("telemetry.exporters.prometheus.endpoint", "/metrics")
	v.SetDefault("telemetry.exporters.prometheus.metrics", true)

	v.SetDefault("worker.timeout", "30s")
}

// TelemetryDocument reads the currently loaded telemetry.* section into a
// telemetry.Document, the shape telemetry.Resolve expects as its
// loaded-config-document precedence tier.
func TelemetryDocument() *telemetry.Document {
	if v == nil {
		return nil
	}
	consoleTraces := v.GetBool("telemetry.exporters.console.traces")
	consoleMetrics := v.GetBool("telemetry.exporters.console.metrics")
	otlpTraces := v.GetBool("telemetry.exporters.otlp.traces")
	otlpMetrics := v.GetBool("telemetry.exporters.otlp.metrics")
	prometheusMetrics := v.GetBool("telemetry.exporters.prometheus.metrics")

	return &telemetry.Document{
		ServiceName:    v.GetString("telemetry.service_name"),
		ServiceVersion: v.GetString("telemetry.service_version"),
		Environment:    v.GetString("telemetry.deployment_environment"),

		ConsoleEnabled: v.GetBool("telemetry.exporters.console.enabled"),
		ConsoleTraces:  &consoleTraces,
		ConsoleMetrics: &consoleMetrics,

		OTLPEnabled:  v.GetBool("telemetry.exporters.otlp.enabled"),
		OTLPEndpoint: v.GetString("telemetry.exporters.otlp.endpoint"),
		OTLPProtocol: v.GetString("telemetry.exporters.otlp.protocol"),
		OTLPHeaders:  v.GetStringMapString("telemetry.exporters.otlp.headers"),
		OTLPTimeout:  v.GetInt("telemetry.exporters.otlp.timeout"),
		OTLPTraces:   &otlpTraces,
		OTLPMetrics:  &otlpMetrics,

		PrometheusEnabled:  v.GetBool("telemetry.exporters.prometheus.enabled"),
		PrometheusPort:     v.GetInt("telemetry.exporters.prometheus.port"),
		PrometheusEndpoint: v.GetString("telemetry.exporters.prometheus.endpoint"),
		PrometheusMetrics:  &prometheusMetrics,
	}
}

// JournalPath returns the configured directory holding daily journal
// files, consumed by the recent-journal lookup in the orchestrator.
func JournalPath() string {
	if v == nil {
		return "journal/daily"
	}
	return v.GetString("journal.path")
}

// LookbackHours returns the configured multi-database lookback window.
func LookbackHours() float64 {
	if v == nil {
		return 48
	}
	return v.GetFloat64("journal.lookback_hours")
}

// WorkerTimeout returns the configured wall-clock timeout for the
// background worker.
func WorkerTimeout() time.Duration {
	if v == nil {
		return 30 * time.Second
	}
	return v.GetDuration("worker.timeout")
}

// GetString, GetBool, GetInt expose raw lookups for callers (e.g. cmd/)
// that need a config key this package has no typed accessor for yet.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}
