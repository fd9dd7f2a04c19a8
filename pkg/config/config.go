package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/slalog/pkg/calendar"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration YAML.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and compiles the calendar
// and SLA targets.
func Validate(cfg *Config) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	cfg.location = loc

	if err := validateBusinessHours(cfg); err != nil {
		return fmt.Errorf("business_hours: %w", err)
	}

	cfg.holidays = cfg.holidays[:0]
	for i, s := range cfg.Holidays {
		d, err := calendar.ParseDate(s)
		if err != nil {
			return fmt.Errorf("holidays[%d]: %w", i, err)
		}
		cfg.holidays = append(cfg.holidays, d)
	}

	if len(cfg.SLARules) == 0 {
		return errors.New("sla_rules: at least one rule is required")
	}

	for i := range cfg.SLARules {
		r := &cfg.SLARules[i]
		if err := validateSLARule(r); err != nil {
			return fmt.Errorf("sla_rules[%d] (%s/%s): %w", i, r.Severity, r.Criticality, err)
		}
	}

	for i, app := range cfg.Applications {
		if app.ID <= 0 || strings.TrimSpace(app.Name) == "" {
			return fmt.Errorf("applications[%d]: id and name are required", i)
		}
	}

	if err := validateEligibility(&cfg.Eligibility); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}

	if err := validateEvaluation(&cfg.Evaluation); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateBusinessHours(cfg *Config) error {
	var hours calendar.WeeklyHours
	var seen [7]bool

	for day, spec := range cfg.BusinessHours {
		idx, err := calendar.ParseWeekday(day)
		if err != nil {
			return err
		}
		if seen[idx] {
			return fmt.Errorf("%s: weekday listed twice", day)
		}
		seen[idx] = true

		w, err := calendar.ParseWindow(spec)
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		hours[idx] = w
	}

	cfg.hours = hours
	return calendar.New(hours, nil, cfg.location).Validate()
}

func validateSLARule(r *SLARuleConfig) error {
	if strings.TrimSpace(r.Severity) == "" {
		return errors.New("severity is required")
	}
	if strings.TrimSpace(r.Criticality) == "" {
		return errors.New("criticality is required")
	}

	d, err := ParseTarget(r.Target)
	if err != nil {
		return err
	}
	r.target = d

	return nil
}

// ParseTarget parses an SLA target given as HH:MM:SS or as a Go duration.
func ParseTarget(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("target is required")
	}

	d, err := sla.ParseHMS(s)
	if err != nil {
		var durErr error
		if d, durErr = time.ParseDuration(s); durErr != nil {
			return 0, fmt.Errorf("invalid target %q (want HH:MM:SS or a duration like 4h)", s)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("target %q must be positive", s)
	}
	return d, nil
}

func validateEligibility(e *EligibilityConfig) error {
	if e.ExcludedBlockID <= 0 {
		return errors.New("excluded_block_id is required")
	}
	if e.ExcludedResolverGroupID <= 0 {
		return errors.New("excluded_resolver_group_id is required")
	}
	if strings.TrimSpace(e.AlwaysOnSeverity) == "" {
		return errors.New("always_on_severity is required")
	}
	return nil
}

func validateEvaluation(e *EvaluationConfig) error {
	if e.Fallback < 0 {
		return fmt.Errorf("fallback must not be negative, got %s", e.Fallback)
	}
	if strings.TrimSpace(e.PauseKeyword) == "" {
		return errors.New("pause_keyword must not be empty")
	}
	if e.MaxSegmentSpan <= 0 {
		return fmt.Errorf("max_segment_span must be positive, got %s", e.MaxSegmentSpan)
	}
	if e.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", e.Workers)
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("invalid driver %q (must be sqlite or pgx)", s.Driver)
	}

	s.DSN = expandEnvVar(s.DSN)
	return nil
}

func validateLogging(l *LoggingConfig) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (must be debug, info, warn, or error)", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q (must be text or json)", l.Format)
	}

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnNonCompliant, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_noncompliant, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnNonCompliant
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVar expands ${VAR} references anywhere in s, and a whole-value
// $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}
