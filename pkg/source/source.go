// Package source reads incident snapshots from YAML or JSON files.
//
// A file holds either a bare list of incidents or a document with an
// "incidents" key:
//
//	incidents:
//	  - ref: INC000123
//	    severity_id: 2
//	    application_id: 10
//	    resolved_at: 2024-03-04T18:00:00Z
//	    log: |
//	      04-03-2024 09:00:00, mgomez, Se asigna
//	      04-03-2024 12:00:00, jperez, Resuelto
//
// JSON files are read with the same decoder.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/slalog/pkg/sla"
)

// File is the keyed form of an incident file.
type File struct {
	Incidents []*sla.Incident `yaml:"incidents"`
}

// FileSource yields the incidents of a set of files, one file at a time,
// in path order and then file order.
type FileSource struct {
	paths   []string
	pending []*sla.Incident
	refs    map[string]string // ref -> file it was read from
}

// Open creates a source over the files matching patterns.
func Open(patterns []string) (*FileSource, error) {
	paths, err := ExpandGlobs(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no incident files given")
	}

	return &FileSource{paths: paths, refs: make(map[string]string)}, nil
}

// Paths returns the files the source reads.
func (s *FileSource) Paths() []string {
	return s.paths
}

// Next returns the next incident or io.EOF.
func (s *FileSource) Next(ctx context.Context) (*sla.Incident, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.paths) == 0 {
			return nil, io.EOF
		}

		path := s.paths[0]
		s.paths = s.paths[1:]

		incidents, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, inc := range incidents {
			if prev, dup := s.refs[inc.Ref]; dup {
				return nil, fmt.Errorf("%s: incident %s already read from %s", path, inc.Ref, prev)
			}
			s.refs[inc.Ref] = path
		}
		s.pending = incidents
	}

	inc := s.pending[0]
	s.pending = s.pending[1:]
	return inc, nil
}

// Close is a no-op; files are closed as soon as they are read.
func (s *FileSource) Close() error {
	return nil
}

// ReadFile reads the incidents in one file.
func ReadFile(path string) ([]*sla.Incident, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided incident path is expected
	if err != nil {
		return nil, fmt.Errorf("reading incident file: %w", err)
	}

	incidents, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return incidents, nil
}

// Decode parses incident YAML or JSON. Every incident needs a ref.
func Decode(data []byte) ([]*sla.Incident, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing incidents: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	var incidents []*sla.Incident
	switch root := doc.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&incidents); err != nil {
			return nil, fmt.Errorf("parsing incidents: %w", err)
		}
	case yaml.MappingNode:
		var f File
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing incidents: %w", err)
		}
		incidents = f.Incidents
	default:
		return nil, errors.New("parsing incidents: expected a list or an incidents key")
	}

	for i, inc := range incidents {
		if inc == nil {
			return nil, fmt.Errorf("incidents[%d]: empty entry", i)
		}
		inc.Ref = strings.TrimSpace(inc.Ref)
		if inc.Ref == "" {
			return nil, fmt.Errorf("incidents[%d]: ref is required", i)
		}
	}

	return incidents, nil
}
