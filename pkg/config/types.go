// Package config provides configuration loading and validation for slalog.
package config

import (
	"time"

	"github.com/ccollicutt/slalog/pkg/calendar"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// Timezone is the IANA zone activity log timestamps are written in.
	Timezone string `yaml:"timezone"`

	// BusinessHours maps weekday names to "HH:MM-HH:MM" or "closed".
	// Days not listed are closed.
	BusinessHours map[string]string `yaml:"business_hours"`

	// Holidays are dates (YYYY-MM-DD) with no business hours.
	Holidays []string `yaml:"holidays,omitempty"`

	// Severities, Criticalities, Applications and Resolvers seed the
	// catalog. Entries loaded from storage take precedence.
	Severities    map[int64]string    `yaml:"severities,omitempty"`
	Criticalities map[int64]string    `yaml:"criticalities,omitempty"`
	Applications  []ApplicationConfig `yaml:"applications,omitempty"`
	Resolvers     []string            `yaml:"resolvers,omitempty"`

	SLARules    []SLARuleConfig   `yaml:"sla_rules"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Webhooks    []WebhookConfig   `yaml:"webhooks,omitempty"`

	// Compiled values (populated during validation)
	location *time.Location
	hours    calendar.WeeklyHours
	holidays []calendar.Date
}

// ApplicationConfig is a catalog application.
type ApplicationConfig struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Criticality int64  `yaml:"criticality"`
}

// SLARuleConfig is one row of the SLA table. Severity and Criticality
// accept either a catalog id or a label.
type SLARuleConfig struct {
	Severity    string `yaml:"severity"`
	Criticality string `yaml:"criticality"`

	// Target is "HH:MM:SS" or a Go duration such as "4h".
	Target string `yaml:"target"`

	target time.Duration
}

// TargetDuration returns the parsed target (populated during validation).
func (r *SLARuleConfig) TargetDuration() time.Duration {
	return r.target
}

// EligibilityConfig holds the sentinel values that exclude or exempt
// incidents.
type EligibilityConfig struct {
	ExcludedBlockID         int64  `yaml:"excluded_block_id"`
	ExcludedResolverGroupID int64  `yaml:"excluded_resolver_group_id"`
	AlwaysOnSeverity        string `yaml:"always_on_severity"`
}

// EvaluationConfig tunes the management time computation.
type EvaluationConfig struct {
	// Fallback is charged when a non-exempt log yields zero time.
	Fallback time.Duration `yaml:"fallback"`

	// PauseKeyword marks an entry that starts a paused segment.
	PauseKeyword string `yaml:"pause_keyword"`

	// PauseOnTarget also pauses a segment whose closing entry carries
	// the keyword.
	PauseOnTarget bool `yaml:"pause_on_target"`

	// MaxSegmentSpan discards segments longer than this.
	MaxSegmentSpan time.Duration `yaml:"max_segment_span"`

	// Workers is the evaluation concurrency. Zero means one per CPU.
	Workers int `yaml:"workers"`
}

// StorageConfig selects the incident database.
type StorageConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures the application log.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile is written in Prometheus text format after each batch.
	Textfile string `yaml:"textfile,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnNonCompliant fires only when an incident breached its SLA (default).
	WebhookTriggerOnNonCompliant WebhookTrigger = "on_noncompliant"
	// WebhookTriggerAlways fires after every batch.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending compliance reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_noncompliant" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
