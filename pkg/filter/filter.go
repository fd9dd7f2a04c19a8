// Package filter selects incidents with expr-lang boolean expressions such as
//
//	severity == "Alta" && application startsWith "Portal"
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ccollicutt/slalog/pkg/sla"
	"github.com/ccollicutt/slalog/pkg/textnorm"
)

// Filter is a compiled incident expression.
type Filter struct {
	expression string
	program    *vm.Program
}

// New compiles an expression. Compilation type-checks it against the
// incident environment.
func New(expression string) (*Filter, error) {
	program, err := expr.Compile(expression,
		expr.Env(sampleEnv()),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return &Filter{expression: expression, program: program}, nil
}

// Match evaluates the expression against an incident.
func (f *Filter) Match(inc *sla.Incident) (bool, error) {
	result, err := expr.Run(f.program, envFor(inc))
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return bool: got %T", result)
	}
	return matched, nil
}

// Expression returns the source expression.
func (f *Filter) Expression() string {
	return f.expression
}

func sampleEnv() map[string]any {
	return map[string]any{
		"ref":               "",
		"severity":          "",
		"severity_norm":     "",
		"severity_id":       int64(0),
		"application":       "",
		"application_id":    int64(0),
		"criticality":       "",
		"criticality_id":    int64(0),
		"block_id":          int64(0),
		"resolver_group_id": int64(0),
		"resolved_at":       time.Time{},
		"resolved":          false,
		"log":               "",
		"log_lines":         0,
	}
}

func envFor(inc *sla.Incident) map[string]any {
	return map[string]any{
		"ref":               inc.Ref,
		"severity":          inc.SeverityLabel,
		"severity_norm":     textnorm.Normalize(inc.SeverityLabel),
		"severity_id":       int64(inc.SeverityID),
		"application":       inc.ApplicationName,
		"application_id":    int64(inc.ApplicationID),
		"criticality":       inc.CriticalityLabel,
		"criticality_id":    int64(inc.CriticalityID),
		"block_id":          int64(inc.BlockID),
		"resolver_group_id": int64(inc.ResolverGroupID),
		"resolved_at":       inc.ResolvedAt,
		"resolved":          !inc.ResolvedAt.IsZero(),
		"log":               inc.Log,
		"log_lines":         strings.Count(inc.Log, "\n") + 1,
	}
}
