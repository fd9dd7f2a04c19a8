package config

import (
	"fmt"
	"time"

	"github.com/ccollicutt/slalog/pkg/calendar"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// Location returns the validated timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// BuildCalendar returns the business calendar described by the config.
func (c *Config) BuildCalendar() *calendar.Calendar {
	return calendar.New(c.hours, c.holidays, c.Location())
}

// Catalog returns the catalog seeded by the config.
func (c *Config) Catalog() *catalog.Catalog {
	b := catalog.NewBuilder()
	for id, label := range c.Severities {
		b.AddSeverity(catalog.ID(id), label)
	}
	for id, label := range c.Criticalities {
		b.AddCriticality(catalog.ID(id), label)
	}
	for _, app := range c.Applications {
		b.AddApplication(catalog.Application{
			ID:            catalog.ID(app.ID),
			Name:          app.Name,
			CriticalityID: catalog.ID(app.Criticality),
		})
	}
	for _, name := range c.Resolvers {
		b.AddResolver(name)
	}
	return b.Build()
}

// BuildRules resolves the SLA table against cat. Labels that name no
// catalog entry and duplicate keys are errors.
func (c *Config) BuildRules(cat *catalog.Catalog) (sla.RuleTable, error) {
	rules := make(sla.RuleTable, len(c.SLARules))

	for i, r := range c.SLARules {
		sev, err := cat.ResolveSeverity(r.Severity)
		if err != nil {
			return nil, fmt.Errorf("sla_rules[%d]: severity: %w", i, err)
		}
		crit, err := cat.ResolveCriticality(r.Criticality)
		if err != nil {
			return nil, fmt.Errorf("sla_rules[%d]: criticality: %w", i, err)
		}

		key := sla.RuleKey{Severity: sev, Criticality: crit}
		if _, dup := rules[key]; dup {
			return nil, fmt.Errorf("sla_rules[%d]: duplicate rule for %s/%s", i, r.Severity, r.Criticality)
		}
		rules[key] = r.target
	}

	return rules, nil
}

// Sentinels returns the exclusion and always-on values.
func (c *Config) Sentinels() sla.Sentinels {
	return sla.Sentinels{
		ExcludedBlock:         catalog.ID(c.Eligibility.ExcludedBlockID),
		ExcludedResolverGroup: catalog.ID(c.Eligibility.ExcludedResolverGroupID),
		AlwaysOnSeverity:      c.Eligibility.AlwaysOnSeverity,
	}
}

// EvaluatorOptions returns the evaluator options the config implies.
func (c *Config) EvaluatorOptions() []sla.Option {
	return []sla.Option{
		sla.WithSentinels(c.Sentinels()),
		sla.WithFallback(c.Evaluation.Fallback),
		sla.WithPauseKeyword(c.Evaluation.PauseKeyword),
		sla.WithTargetPause(c.Evaluation.PauseOnTarget),
		sla.WithMaxSegmentSpan(c.Evaluation.MaxSegmentSpan),
	}
}

// NewEvaluator builds an evaluator over cat. Extra options are applied
// after the configured ones.
func (c *Config) NewEvaluator(cat *catalog.Catalog, extra ...sla.Option) (*sla.Evaluator, error) {
	rules, err := c.BuildRules(cat)
	if err != nil {
		return nil, err
	}

	opts := append(c.EvaluatorOptions(), extra...)
	return sla.NewEvaluator(c.BuildCalendar(), rules, cat, opts...), nil
}
