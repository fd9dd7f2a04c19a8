package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ccollicutt/slalog/pkg/calendar"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/sla"
)

const validConfig = `
timezone: America/Santiago
business_hours:
  lunes: "08:00-18:00"
  tuesday: "08:00-18:00"
  wednesday: "08:00-18:00"
  thursday: "08:00-18:00"
  friday: "08:00-17:00"
  saturday: closed
holidays:
  - "2024-09-18"
  - "2024-09-19"
severities:
  1: Crítica
  2: Alta
criticalities:
  1: Alta
  2: Media
applications:
  - {id: 10, name: Portal, criticality: 2}
resolvers: [jperez, " MGómez "]
sla_rules:
  - {severity: "2", criticality: media, target: "04:00:00"}
  - {severity: critica, criticality: 1, target: 2h}
eligibility:
  excluded_block_id: 5
  excluded_resolver_group_id: 15
  always_on_severity: critica
evaluation:
  fallback: 10m
  pause_on_target: true
webhooks:
  - url: https://hooks.example.com/sla
    token: ${SLALOG_TEST_TOKEN}
`

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("SLALOG_TEST_TOKEN", "secret")

	path := writeTempFile(t, "config.yaml", validConfig)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Location().String() != "America/Santiago" {
		t.Errorf("Location() = %v", cfg.Location())
	}
	if len(cfg.SLARules) != 2 {
		t.Fatalf("SLARules = %d, want 2", len(cfg.SLARules))
	}
	if got := cfg.SLARules[0].TargetDuration(); got != 4*time.Hour {
		t.Errorf("rule 0 target = %v, want 4h", got)
	}
	if got := cfg.SLARules[1].TargetDuration(); got != 2*time.Hour {
		t.Errorf("rule 1 target = %v, want 2h", got)
	}

	// Defaults survive partial sections
	if cfg.Evaluation.Fallback != 10*time.Minute {
		t.Errorf("Fallback = %v, want 10m", cfg.Evaluation.Fallback)
	}
	if cfg.Evaluation.PauseKeyword != sla.DefaultPauseKeyword {
		t.Errorf("PauseKeyword = %q", cfg.Evaluation.PauseKeyword)
	}
	if cfg.Evaluation.MaxSegmentSpan != sla.DefaultMaxSegmentSpan {
		t.Errorf("MaxSegmentSpan = %v", cfg.Evaluation.MaxSegmentSpan)
	}
	if cfg.Storage.Driver != DefaultDriver {
		t.Errorf("Driver = %q", cfg.Storage.Driver)
	}

	wh := cfg.Webhooks[0]
	if wh.Token != "secret" {
		t.Errorf("Token = %q, want expanded value", wh.Token)
	}
	if wh.Trigger != WebhookTriggerOnNonCompliant {
		t.Errorf("Trigger = %q, want default", wh.Trigger)
	}
	if wh.Timeout != DefaultWebhookTimeout {
		t.Errorf("Timeout = %v, want default", wh.Timeout)
	}
}

func TestConfig_BuildCalendar(t *testing.T) {
	cfg := mustParse(t, validConfig)
	cal := cfg.BuildCalendar()

	if cal.Location() != cfg.Location() {
		t.Error("calendar does not use the configured timezone")
	}

	hours := cal.Hours()
	if hours[0] == nil || hours[0].String() != "08:00:00-18:00:00" {
		t.Errorf("monday = %v", hours[0])
	}
	if hours[5] != nil || hours[6] != nil {
		t.Error("weekend should be closed")
	}
	if !cal.IsHoliday(calendar.Date{Year: 2024, Month: time.September, Day: 18}) {
		t.Error("2024-09-18 should be a holiday")
	}
}

func TestConfig_BuildRules(t *testing.T) {
	cfg := mustParse(t, validConfig)
	cat := cfg.Catalog()

	rules, err := cfg.BuildRules(cat)
	if err != nil {
		t.Fatalf("BuildRules() error = %v", err)
	}

	if d, ok := rules.Lookup(2, 2); !ok || d != 4*time.Hour {
		t.Errorf("Lookup(2, 2) = %v, %v", d, ok)
	}
	if d, ok := rules.Lookup(1, 1); !ok || d != 2*time.Hour {
		t.Errorf("Lookup(1, 1) = %v, %v", d, ok)
	}
	if _, ok := rules.Lookup(1, 2); ok {
		t.Error("Lookup(1, 2) should be undefined")
	}
}

func TestConfig_BuildRules_Errors(t *testing.T) {
	tests := []struct {
		name  string
		rules string
	}{
		{"unknown label", `[{severity: urgente, criticality: 1, target: 1h}]`},
		{"duplicate", `[{severity: 2, criticality: 2, target: 1h}, {severity: alta, criticality: media, target: 2h}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustParse(t, replaceRules(validConfig, tt.rules))
			if _, err := cfg.BuildRules(cfg.Catalog()); err == nil {
				t.Error("BuildRules() expected error")
			}
		})
	}

	cfg := mustParse(t, replaceRules(validConfig, `[{severity: urgente, criticality: 1, target: 1h}]`))
	_, err := cfg.BuildRules(cfg.Catalog())
	if !errors.Is(err, catalog.ErrUnknownLabel) {
		t.Errorf("BuildRules() error = %v, want ErrUnknownLabel", err)
	}
}

func TestConfig_CatalogAndSentinels(t *testing.T) {
	cfg := mustParse(t, validConfig)
	cat := cfg.Catalog()

	if !cat.IsResolver("mgomez") {
		t.Error("resolver names should be normalized")
	}
	app, ok := cat.Application(10)
	if !ok || app.CriticalityID != 2 {
		t.Errorf("Application(10) = %+v, %v", app, ok)
	}

	s := cfg.Sentinels()
	if s.ExcludedBlock != 5 || s.ExcludedResolverGroup != 15 || s.AlwaysOnSeverity != "critica" {
		t.Errorf("Sentinels() = %+v", s)
	}
}

func TestConfig_NewEvaluator(t *testing.T) {
	cfg := mustParse(t, validConfig)

	eval, err := cfg.NewEvaluator(cfg.Catalog())
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	if err := eval.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	loc := cfg.Location()
	inc := &sla.Incident{
		Ref:           "INC-1",
		SeverityID:    2,
		ApplicationID: 10,
		Log:           "04-03-2024 09:00:00, usuario, abre\n04-03-2024 10:30:00, jperez, cierra",
	}
	inc.Fill(cfg.Catalog())

	res := eval.Evaluate(inc)
	if res.Verdict != sla.VerdictCompliant {
		t.Fatalf("Verdict = %s, want compliant (%+v)", res.Verdict, res)
	}
	if res.Total != 90*time.Minute {
		t.Errorf("Total = %v, want 1h30m", res.Total)
	}
	if loc.String() != "America/Santiago" {
		t.Errorf("location = %v", loc)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", `invalid: yaml: content: [`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{"bad timezone", "America/Santiago", "Mars/Olympus", "timezone"},
		{"bad window", `lunes: "08:00-18:00"`, `lunes: "18:00-08:00"`, "business_hours"},
		{"bad weekday", `lunes: "08:00-18:00"`, `someday: "08:00-18:00"`, "business_hours"},
		{"duplicate weekday", `tuesday: "08:00-18:00"`, `martes: "08:00-18:00"
  tuesday: "08:00-18:00"`, "listed twice"},
		{"bad holiday", `"2024-09-19"`, `"19/09/2024"`, "holidays[1]"},
		{"bad target", `target: "04:00:00"`, `target: "cuatro"`, "sla_rules[0]"},
		{"zero target", `target: "04:00:00"`, `target: "00:00:00"`, "must be positive"},
		{"missing criticality", `criticality: media, `, ``, "criticality is required"},
		{"no block sentinel", "excluded_block_id: 5", "excluded_block_id: 0", "excluded_block_id"},
		{"no group sentinel", "excluded_resolver_group_id: 15", "excluded_resolver_group_id: 0", "excluded_resolver_group_id"},
		{"no always-on", "always_on_severity: critica", `always_on_severity: ""`, "always_on_severity"},
		{"negative fallback", "fallback: 10m", "fallback: -1m", "fallback"},
		{"bad webhook scheme", "https://hooks.example.com/sla", "ftp://hooks.example.com/sla", "scheme"},
		{"bad webhook trigger", "token: ${SLALOG_TEST_TOKEN}", "trigger: sometimes", "invalid trigger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Replace(validConfig, tt.old, tt.new, 1)
			if content == validConfig {
				t.Fatalf("test setup: %q not found", tt.old)
			}

			_, err := Parse([]byte(content))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NoRules(t *testing.T) {
	_, err := Parse([]byte(replaceRules(validConfig, "[]")))
	if err == nil || !strings.Contains(err.Error(), "at least one rule") {
		t.Errorf("Parse() error = %v, want missing rules", err)
	}
}

func TestValidate_AllClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BusinessHours = map[string]string{"monday": "closed"}
	cfg.SLARules = []SLARuleConfig{{Severity: "1", Criticality: "1", Target: "1h"}}
	cfg.Eligibility = EligibilityConfig{ExcludedBlockID: 5, ExcludedResolverGroupID: 15, AlwaysOnSeverity: "critica"}

	if err := Validate(cfg); !errors.Is(err, calendar.ErrNoBusinessHours) {
		t.Errorf("Validate() error = %v, want ErrNoBusinessHours", err)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"04:00:00", 4 * time.Hour, false},
		{"36:30:00", 36*time.Hour + 30*time.Minute, false},
		{"90m", 90 * time.Minute, false},
		{"", 0, true},
		{"-1h", 0, true},
		{"04:75:00", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvTimezone, "UTC")
	t.Setenv(EnvStorageDSN, "/tmp/${SLALOG_TEST_DB}.db")
	t.Setenv("SLALOG_TEST_DB", "incidents")
	t.Setenv(EnvLogLevel, "debug")

	cfg := mustParse(t, validConfig)

	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.Storage.DSN != "/tmp/incidents.db" {
		t.Errorf("DSN = %q", cfg.Storage.DSN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("SLALOG_A", "alpha")

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"plain", "plain"},
		{"${SLALOG_A}", "alpha"},
		{"$SLALOG_A", "alpha"},
		{"postgres://u:${SLALOG_A}@db/sla", "postgres://u:alpha@db/sla"},
		{"${SLALOG_UNSET_VAR}", ""},
	}

	for _, tt := range tests {
		if got := expandEnvVar(tt.input); got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func mustParse(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func replaceRules(content, rules string) string {
	start := strings.Index(content, "sla_rules:")
	end := strings.Index(content, "eligibility:")
	return content[:start] + "sla_rules: " + rules + "\n" + content[end:]
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
