package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ErrUnknownKey is returned when a config key does not exist.
var ErrUnknownKey = errors.New("unknown config key")

var envKeyReplacer = strings.NewReplacer(".", "_")

// Entry represents a single configuration setting.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Default     any    `json:"default" yaml:"default"`
	Env         string `json:"env" yaml:"env"`
	Description string `json:"description" yaml:"description"`
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

type setting struct {
	key         string
	description string
	value       func(*Config) any
}

var settings = []setting{
	{"server.host", "Interface the HTTP server binds to", func(c *Config) any { return c.Server.Host }},
	{"server.port", "Port the HTTP server listens on", func(c *Config) any { return c.Server.Port }},
	{"orchestrator.url", "Base URL of the reprocessing control plane", func(c *Config) any { return c.Orchestrator.URL }},
	{"orchestrator.timeout_seconds", "Per-request timeout for control plane calls", func(c *Config) any { return c.Orchestrator.TimeoutSeconds }},
	{"polling.interval_ms", "Status polling interval while jobs are active", func(c *Config) any { return c.Polling.IntervalMS }},
	{"polling.stall_threshold", "Consecutive failed status reads before a job is flagged stalled (0 disables)", func(c *Config) any { return c.Polling.StallThreshold }},
	{"polling.status_attempts", "Status read attempts per job per tick", func(c *Config) any { return c.Polling.StatusAttempts }},
	{"polling.retry_delay_ms", "Delay between status read attempts within a tick", func(c *Config) any { return c.Polling.RetryDelayMS }},
	{"lineage.source", "Lineage batch location: path, file:// or s3:// URI", func(c *Config) any { return c.Lineage.Source }},
	{"lineage.s3.region", "AWS region for s3:// lineage sources", func(c *Config) any { return c.Lineage.S3.Region }},
	{"lineage.s3.profile", "AWS shared config profile for s3:// lineage sources", func(c *Config) any { return c.Lineage.S3.Profile }},
	{"lineage.s3.use_path_style", "Use path-style S3 addressing (MinIO, LocalStack)", func(c *Config) any { return c.Lineage.S3.UsePathStyle }},
	{"notifications.ntfy_topic", "ntfy topic URL for completion notifications; empty logs only", func(c *Config) any { return c.Notifications.NtfyTopic }},
	{"notifications.timeout_seconds", "Timeout for notification requests", func(c *Config) any { return c.Notifications.TimeoutSeconds }},
	{"events.capacity", "Number of UI events retained in memory", func(c *Config) any { return c.Events.Capacity }},
}

// Entries returns every setting with its current and default value, sorted
// by key. Secrets referenced as ${ENV_VAR} are reported unresolved.
func (c *Config) Entries() []Entry {
	defaults := DefaultConfig()
	out := make([]Entry, 0, len(settings))
	for _, s := range settings {
		out = append(out, Entry{
			Key:         s.key,
			Value:       s.value(c),
			Default:     s.value(defaults),
			Env:         EnvPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(s.key)),
			Description: s.description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Entry returns a single setting by key.
func (c *Config) Entry(key string) (Entry, error) {
	if err := ValidateKey(key); err != nil {
		return Entry{}, err
	}
	for _, e := range c.Entries() {
		if e.Key == key {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
}
