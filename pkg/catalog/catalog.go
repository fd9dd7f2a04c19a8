// Package catalog holds the preloaded lookup tables an evaluation batch
// reads: severity and criticality labels, applications and resolver
// usernames. A Catalog never changes after Build.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ccollicutt/slalog/pkg/textnorm"
)

// ID identifies a catalog row. The zero ID means "not set".
type ID int64

// Valid reports whether the id refers to a row.
func (id ID) Valid() bool {
	return id > 0
}

// Application is an application row with its criticality.
type Application struct {
	ID            ID     `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	CriticalityID ID     `json:"criticality_id" yaml:"criticality_id"`
}

// ErrUnknownLabel is returned when a label does not match any row.
var ErrUnknownLabel = errors.New("unknown label")

// Catalog is an immutable set of lookups.
type Catalog struct {
	severities       map[ID]string
	severityByLabel  map[string]ID
	criticalities    map[ID]string
	criticalityByKey map[string]ID
	applications     map[ID]Application
	resolvers        map[string]struct{}
}

// Builder accumulates rows for a Catalog.
type Builder struct {
	c *Catalog
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{c: empty()}
}

func empty() *Catalog {
	return &Catalog{
		severities:       make(map[ID]string),
		severityByLabel:  make(map[string]ID),
		criticalities:    make(map[ID]string),
		criticalityByKey: make(map[string]ID),
		applications:     make(map[ID]Application),
		resolvers:        make(map[string]struct{}),
	}
}

// AddSeverity registers a severity label.
func (b *Builder) AddSeverity(id ID, label string) *Builder {
	b.c.severities[id] = label
	b.c.severityByLabel[textnorm.Normalize(label)] = id
	return b
}

// AddCriticality registers an application criticality label.
func (b *Builder) AddCriticality(id ID, label string) *Builder {
	b.c.criticalities[id] = label
	b.c.criticalityByKey[textnorm.Normalize(label)] = id
	return b
}

// AddApplication registers an application.
func (b *Builder) AddApplication(app Application) *Builder {
	b.c.applications[app.ID] = app
	return b
}

// AddResolver registers a resolver username. Names are stored normalized.
func (b *Builder) AddResolver(name string) *Builder {
	if n := textnorm.Normalize(name); n != "" {
		b.c.resolvers[n] = struct{}{}
	}
	return b
}

// Build returns the catalog. The builder must not be used afterwards.
func (b *Builder) Build() *Catalog {
	c := b.c
	b.c = nil
	return c
}

// Merge returns a catalog holding every row of base, overlaid by the rows of
// overlay. Resolver sets are united.
func Merge(base, overlay *Catalog) *Catalog {
	out := empty()
	for _, c := range []*Catalog{base, overlay} {
		if c == nil {
			continue
		}
		for id, l := range c.severities {
			out.severities[id] = l
			out.severityByLabel[textnorm.Normalize(l)] = id
		}
		for id, l := range c.criticalities {
			out.criticalities[id] = l
			out.criticalityByKey[textnorm.Normalize(l)] = id
		}
		for id, a := range c.applications {
			out.applications[id] = a
		}
		for r := range c.resolvers {
			out.resolvers[r] = struct{}{}
		}
	}
	return out
}

// SeverityLabel returns the label of a severity.
func (c *Catalog) SeverityLabel(id ID) (string, bool) {
	l, ok := c.severities[id]
	return l, ok
}

// CriticalityLabel returns the label of a criticality.
func (c *Catalog) CriticalityLabel(id ID) (string, bool) {
	l, ok := c.criticalities[id]
	return l, ok
}

// Application returns an application by id.
func (c *Catalog) Application(id ID) (Application, bool) {
	a, ok := c.applications[id]
	return a, ok
}

// IsResolver reports whether name belongs to a resolver.
func (c *Catalog) IsResolver(name string) bool {
	_, ok := c.resolvers[textnorm.Normalize(name)]
	return ok
}

// Resolvers returns the normalized resolver names, sorted.
func (c *Catalog) Resolvers() []string {
	out := make([]string, 0, len(c.resolvers))
	for r := range c.resolvers {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ResolverSet returns a copy of the normalized resolver set.
func (c *Catalog) ResolverSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.resolvers))
	for r := range c.resolvers {
		out[r] = struct{}{}
	}
	return out
}

// SeverityLabels returns a copy of the severity id to label map.
func (c *Catalog) SeverityLabels() map[ID]string {
	out := make(map[ID]string, len(c.severities))
	for id, l := range c.severities {
		out[id] = l
	}
	return out
}

// CriticalityLabels returns a copy of the criticality id to label map.
func (c *Catalog) CriticalityLabels() map[ID]string {
	out := make(map[ID]string, len(c.criticalities))
	for id, l := range c.criticalities {
		out[id] = l
	}
	return out
}

// Counts returns the number of severities, criticalities, applications and
// resolvers.
func (c *Catalog) Counts() (severities, criticalities, applications, resolvers int) {
	return len(c.severities), len(c.criticalities), len(c.applications), len(c.resolvers)
}

// ResolveSeverity turns a numeric id or a label into a severity id.
func (c *Catalog) ResolveSeverity(ref string) (ID, error) {
	return resolve(ref, c.severityByLabel)
}

// ResolveCriticality turns a numeric id or a label into a criticality id.
func (c *Catalog) ResolveCriticality(ref string) (ID, error) {
	return resolve(ref, c.criticalityByKey)
}

func resolve(ref string, byLabel map[string]ID) (ID, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid id %d", n)
		}
		return ID(n), nil
	}

	id, ok := byLabel[textnorm.Normalize(ref)]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownLabel, ref)
	}
	return id, nil
}
