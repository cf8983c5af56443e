// Package curriculum holds the explicit skill registry: a tagged catalogue of
// atomic skills and their authored relations, populated from curriculum
// configuration at startup. It replaces any ad-hoc inference of skill kind or
// phase from the skill identifier itself.
package curriculum

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lexlab/tracer/internal/domain"
)

// File is the on-disk YAML shape of a curriculum.
type File struct {
	Skills []domain.SkillSpec `yaml:"skills"`
}

// Registry is an immutable, validated skill catalogue.
type Registry struct {
	specs      map[string]domain.SkillSpec
	order      []string
	dependents map[string][]string
}

// New validates the specs and builds the registry with a precomputed reverse
// prerequisite index.
func New(specs []domain.SkillSpec) (*Registry, error) {
	r := &Registry{
		specs:      make(map[string]domain.SkillSpec, len(specs)),
		dependents: make(map[string][]string),
	}
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("curriculum: skill with empty id")
		}
		if _, dup := r.specs[spec.ID]; dup {
			return nil, fmt.Errorf("curriculum: duplicate skill %q", spec.ID)
		}
		if spec.Kind != "" && !domain.ValidSkillKind(string(spec.Kind)) {
			return nil, fmt.Errorf("curriculum: skill %q has unknown kind %q", spec.ID, spec.Kind)
		}
		if spec.Kind == "" {
			spec.Kind = domain.SkillKindGPC
		}
		if spec.Difficulty < 0 || spec.Difficulty > 1 {
			return nil, fmt.Errorf("curriculum: skill %q difficulty %v outside [0,1]", spec.ID, spec.Difficulty)
		}
		r.specs[spec.ID] = spec
		r.order = append(r.order, spec.ID)
	}

	for _, spec := range specs {
		for _, pre := range spec.Prerequisites {
			if _, ok := r.specs[pre]; !ok {
				return nil, fmt.Errorf("curriculum: skill %q names unknown prerequisite %q", spec.ID, pre)
			}
			r.dependents[pre] = append(r.dependents[pre], spec.ID)
		}
	}
	return r, nil
}

// LoadYAML reads and validates a curriculum file.
func LoadYAML(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse curriculum: %w", err)
	}
	return New(f.Skills)
}

func (r *Registry) Spec(skillID string) (domain.SkillSpec, bool) {
	spec, ok := r.specs[skillID]
	return spec, ok
}

func (r *Registry) Skills() []domain.SkillSpec {
	out := make([]domain.SkillSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id])
	}
	return out
}

func (r *Registry) Dependents(skillID string) []string {
	return append([]string(nil), r.dependents[skillID]...)
}

// Len returns the number of registered skills.
func (r *Registry) Len() int {
	return len(r.order)
}

// SkillIDs returns the registered ids in curriculum order.
func (r *Registry) SkillIDs() []string {
	return append([]string(nil), r.order...)
}
