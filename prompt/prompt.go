// Package prompt holds the system prompt registry and the {{var}} template
// renderer. A Registry is always constructed and passed in by the caller;
// nothing registers at import time.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

type Spec struct {
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	System      string   `json:"system"`
	Tags        []string `json:"tags,omitempty"`
}

type Registry struct {
	mu    sync.RWMutex
	items map[string]map[string]Spec
}

func NewRegistry() *Registry {
	return &Registry{items: map[string]map[string]Spec{}}
}

func (r *Registry) Register(spec Spec) error {
	normalized, err := NormalizeSpec(spec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[normalized.Name]; !ok {
		r.items[normalized.Name] = map[string]Spec{}
	}
	r.items[normalized.Name][normalized.Version] = normalized
	return nil
}

func (r *Registry) MustRegister(spec Spec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Resolve looks up "name" or "name@version". With no version, the highest
// registered version wins.
func (r *Registry) Resolve(ref string) (Spec, bool) {
	name, version := parseRef(ref)
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.items[name]
	if !ok || len(versions) == 0 {
		return Spec{}, false
	}
	if version != "" {
		s, ok := versions[version]
		return s, ok
	}
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	sort.Strings(keys)
	return versions[keys[len(keys)-1]], true
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for name := range r.items {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func NormalizeSpec(spec Spec) (Spec, error) {
	spec.Name = strings.ToLower(strings.TrimSpace(spec.Name))
	spec.Version = strings.ToLower(strings.TrimSpace(spec.Version))
	spec.Description = strings.TrimSpace(spec.Description)
	spec.System = strings.TrimSpace(spec.System)
	if spec.Version == "" {
		spec.Version = "v1"
	}
	if spec.Name == "" {
		return Spec{}, fmt.Errorf("prompt name is required")
	}
	if spec.System == "" {
		return Spec{}, fmt.Errorf("prompt %q has empty system text", spec.Name)
	}
	if !isIdentifier(spec.Name) {
		return Spec{}, fmt.Errorf("prompt name %q must match [a-z0-9._-]", spec.Name)
	}
	if !isIdentifier(spec.Version) {
		return Spec{}, fmt.Errorf("prompt version %q must match [a-z0-9._-]", spec.Version)
	}
	return spec, nil
}

func parseRef(ref string) (name string, version string) {
	ref = strings.TrimSpace(strings.ToLower(ref))
	if ref == "" {
		return "", ""
	}
	parts := strings.SplitN(ref, "@", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(parts[0]), ""
}

var identPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

func isIdentifier(v string) bool {
	return identPattern.MatchString(v)
}
