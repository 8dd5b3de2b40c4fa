// Package layers loads and validates the YAML layer definitions that drive
// multi-layer site exports.
package layers

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"geoexport/internal/domain"
)

// Statistic is the YAML form of a (field, aggregate) pair.
type Statistic struct {
	Field string `yaml:"field"`
	Func  string `yaml:"func"`
}

// Layer describes one exportable layer: its backing dataset, the output
// projection, and optional grouping, ordering, and scheduling.
type Layer struct {
	Name          string      `yaml:"name"`
	Dataset       string      `yaml:"dataset"`
	Workspace     string      `yaml:"workspace,omitempty"`
	Columns       string      `yaml:"columns"`
	GroupBy       []string    `yaml:"group_by,omitempty"`
	Statistics    []Statistic `yaml:"statistics,omitempty"`
	OrderBy       []string    `yaml:"order_by,omitempty"`
	Target        string      `yaml:"target,omitempty"` // nearest-target dataset for Distance
	IncludeArea   bool        `yaml:"include_area,omitempty"`
	AreaUnit      string      `yaml:"area_unit,omitempty"`
	UseRadius     bool        `yaml:"use_radius,omitempty"` // clip to the search radius
	KeepLayer     bool        `yaml:"keep_layer,omitempty"` // also write a permanent geometry copy
	ScheduleCron  string      `yaml:"schedule_cron,omitempty"`
	RenameAfterAg bool        `yaml:"rename_after_aggregate,omitempty"`
}

// DatasetRef returns the layer's dataset reference.
func (l Layer) DatasetRef() domain.Dataset {
	return domain.Dataset{Workspace: l.Workspace, Name: l.Dataset}
}

// DomainStatistics converts the YAML statistics to domain form.
func (l Layer) DomainStatistics() []domain.Statistic {
	out := make([]domain.Statistic, 0, len(l.Statistics))
	for _, s := range l.Statistics {
		out = append(out, domain.Statistic{
			Field: s.Field,
			Func:  domain.StatFunc(strings.ToUpper(s.Func)),
		})
	}
	return out
}

// Set is a named collection of layer definitions.
type Set struct {
	Layers []Layer `yaml:"layers"`
}

// Get returns the layer with the given name.
func (s *Set) Get(name string) (Layer, error) {
	for _, l := range s.Layers {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return Layer{}, domain.ErrNotFound("layer %q is not defined", name)
}

// Select resolves the named layers in request order. An empty request
// selects every defined layer.
func (s *Set) Select(names []string) ([]Layer, error) {
	if len(names) == 0 {
		return s.Layers, nil
	}
	out := make([]Layer, 0, len(names))
	for _, n := range names {
		l, err := s.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Load reads and validates a layer-definition file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read layer definitions: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates layer definitions from YAML.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse layer definitions: %w", err)
	}
	seen := make(map[string]bool)
	for i, l := range set.Layers {
		if l.Name == "" {
			return nil, domain.ErrValidation("layer %d: name is required", i)
		}
		if l.Dataset == "" {
			return nil, domain.ErrValidation("layer %q: dataset is required", l.Name)
		}
		if l.Columns == "" {
			return nil, domain.ErrValidation("layer %q: columns is required", l.Name)
		}
		key := strings.ToLower(l.Name)
		if seen[key] {
			return nil, domain.ErrValidation("layer %q is defined twice", l.Name)
		}
		seen[key] = true
		for _, st := range l.Statistics {
			switch domain.StatFunc(strings.ToUpper(st.Func)) {
			case domain.StatFirst, domain.StatSum, domain.StatMin, domain.StatMax, domain.StatMean, domain.StatCount:
			default:
				return nil, domain.ErrValidation("layer %q: unsupported statistic %q", l.Name, st.Func)
			}
		}
	}
	return &set, nil
}
