package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	color.NoColor = true
}

// 2024-03-04 is a Monday.
const testIncidents = `
incidents:
  - ref: INC-1
    severity_id: 2
    application_id: 10
    resolved_at: 2024-03-04T12:00:00Z
    log: |
      04-03-2024 09:00:00, mgomez, Se asigna
      04-03-2024 12:00:00, jperez, Resuelto
  - ref: INC-2
    severity_id: 2
    application_id: 10
    resolved_at: 2024-03-05T15:00:00Z
    log: |
      04-03-2024 09:00:00, mgomez, Se asigna
      04-03-2024 15:00:00, jperez, Resuelto
  - ref: INC-3
    severity_id: 2
    application_id: 10
    block_id: 5
    resolved_at: 2024-03-06T10:00:00Z
    log: |
      04-03-2024 09:00:00, mgomez, Se asigna
`

const testConfigTemplate = `
timezone: UTC
business_hours:
  monday: "08:00-18:00"
  tuesday: "08:00-18:00"
  wednesday: "08:00-18:00"
  thursday: "08:00-18:00"
  friday: "08:00-18:00"
severities:
  1: Crítica
  2: Alta
criticalities:
  1: Alta
  2: Media
applications:
  - {id: 10, name: Portal, criticality: 2}
resolvers: [jperez]
sla_rules:
  - {severity: alta, criticality: media, target: "04:00:00"}
  - {severity: critica, criticality: media, target: "02:00:00"}
eligibility:
  excluded_block_id: 5
  excluded_resolver_group_id: 15
  always_on_severity: critica
logging:
  level: info
  file: LOGFILE
`

type testEnv struct {
	dir       string
	config    string
	incidents string
	logFile   string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	ExitCode = ExitOK
	t.Cleanup(func() { ExitCode = ExitOK })

	dir := t.TempDir()
	env := &testEnv{
		dir:       dir,
		config:    filepath.Join(dir, "sla.yaml"),
		incidents: filepath.Join(dir, "incidents.yaml"),
		logFile:   filepath.Join(dir, "logs", "slalog.log"),
	}

	cfg := strings.Replace(testConfigTemplate, "LOGFILE", env.logFile, 1) + extra
	writeFile(t, env.config, cfg)
	writeFile(t, env.incidents, testIncidents)
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// run executes cmd with args and returns what it wrote to stdout.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
