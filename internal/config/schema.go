package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackzampolin/songshelf/internal/lineage"
)

// Config holds songshelf configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server        ServerCfg        `mapstructure:"server" yaml:"server"`
	Orchestrator  OrchestratorCfg  `mapstructure:"orchestrator" yaml:"orchestrator"`
	Polling       PollingCfg       `mapstructure:"polling" yaml:"polling"`
	Lineage       LineageCfg       `mapstructure:"lineage" yaml:"lineage"`
	Notifications NotificationsCfg `mapstructure:"notifications" yaml:"notifications"`
	Events        EventsCfg        `mapstructure:"events" yaml:"events"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// OrchestratorCfg points at the reprocessing control plane.
type OrchestratorCfg struct {
	URL            string `mapstructure:"url" yaml:"url"` // supports ${ENV_VAR} syntax
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// PollingCfg tunes status polling of active jobs.
type PollingCfg struct {
	IntervalMS     int `mapstructure:"interval_ms" yaml:"interval_ms"`
	StallThreshold int `mapstructure:"stall_threshold" yaml:"stall_threshold"` // 0 disables stall events
	StatusAttempts int `mapstructure:"status_attempts" yaml:"status_attempts"` // reads per job per tick
	RetryDelayMS   int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
}

// LineageCfg locates the lineage batch.
type LineageCfg struct {
	// Source is a local path, file:// URI or s3://bucket/key URI.
	// Empty means {home}/lineage.json.
	Source string           `mapstructure:"source" yaml:"source"`
	S3     lineage.S3Config `mapstructure:"s3" yaml:"s3"`
}

// NotificationsCfg configures completion notifications.
type NotificationsCfg struct {
	NtfyTopic      string `mapstructure:"ntfy_topic" yaml:"ntfy_topic"` // full topic URL, supports ${ENV_VAR}
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// EventsCfg sizes the in-memory UI event log.
type EventsCfg struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Orchestrator: OrchestratorCfg{
			URL:            "${SONGSHELF_ORCHESTRATOR_URL}",
			TimeoutSeconds: 30,
		},
		Polling: PollingCfg{
			IntervalMS:     5000,
			StallThreshold: 12,
			StatusAttempts: 1,
			RetryDelayMS:   200,
		},
		Lineage: LineageCfg{
			S3: lineage.S3Config{Region: "us-east-1"},
		},
		Notifications: NotificationsCfg{
			TimeoutSeconds: 10,
		},
		Events: EventsCfg{
			Capacity: 1000,
		},
	}
}

// Validate checks that the configuration can be used to start a server.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if raw := c.OrchestratorURL(); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("orchestrator.url %q is not an absolute URL", raw))
		}
	}
	if c.Polling.IntervalMS < 0 {
		errs = append(errs, errors.New("polling.interval_ms must not be negative"))
	}
	if c.Polling.StallThreshold < 0 {
		errs = append(errs, errors.New("polling.stall_threshold must not be negative"))
	}
	if c.Polling.StatusAttempts < 0 {
		errs = append(errs, errors.New("polling.status_attempts must not be negative"))
	}
	if c.Events.Capacity < 0 {
		errs = append(errs, errors.New("events.capacity must not be negative"))
	}
	return errors.Join(errs...)
}

// OrchestratorURL returns the control plane URL with env references resolved.
func (c *Config) OrchestratorURL() string {
	return ResolveEnvVars(c.Orchestrator.URL)
}

// NtfyTopic returns the notification topic with env references resolved.
func (c *Config) NtfyTopic() string {
	return ResolveEnvVars(c.Notifications.NtfyTopic)
}

// OrchestratorTimeout returns the per-request orchestrator timeout.
func (c *Config) OrchestratorTimeout() time.Duration {
	return seconds(c.Orchestrator.TimeoutSeconds)
}

// NotificationTimeout returns the per-request notification timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return seconds(c.Notifications.TimeoutSeconds)
}

// PollInterval returns the polling interval. Zero means the tracker default.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMS) * time.Millisecond
}

// RetryDelay returns the delay between status attempts within a tick.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Polling.RetryDelayMS) * time.Millisecond
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
