// Package driver ties the compiler stages together: it loads wabbit.yml
// manifests, resolves program sources and records pinned dependencies in
// wabbit.lock.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestName is the file the driver looks for in a project root.
const ManifestName = "wabbit.yml"

// Manifest represents the parsed contents of wabbit.yml.
type Manifest struct {
	Path         string
	Name         string
	Version      string
	Authors      []string
	Targets      map[string]*TargetSpec
	TargetOrder  []string
	Dependencies map[string]*DependencySpec
}

// TargetSpec names a buildable program inside the project.
type TargetSpec struct {
	Name string
	Main string
}

// DependencySpec describes one entry under dependencies.
type DependencySpec struct {
	Version string
	Git     string
	Rev     string
	Tag     string
	Branch  string
	Path    string
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadManifest parses wabbit.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	for i, author := range m.Authors {
		if author == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("authors[%d] must be a non-empty string", i))
		}
	}
	for _, name := range m.TargetOrder {
		target := m.Targets[name]
		if target == nil {
			continue
		}
		if target.Main == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("target %q requires a main entrypoint", target.Name))
		} else if !strings.HasSuffix(target.Main, ".wb") {
			errs.Issues = append(errs.Issues, fmt.Sprintf("target %q entrypoint %q is not a .wb file", target.Name, target.Main))
		}
	}
	for depName, dep := range m.Dependencies {
		for _, issue := range dep.validate() {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependencies.%s: %s", depName, issue))
		}
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// ErrNoTargets reports a manifest with an empty targets section.
var ErrNoTargets = errors.New("manifest: no targets defined")

// DefaultTarget returns the first target in manifest order.
func (m *Manifest) DefaultTarget() (*TargetSpec, error) {
	if m == nil || len(m.TargetOrder) == 0 {
		return nil, ErrNoTargets
	}
	return m.Targets[m.TargetOrder[0]], nil
}

// FindTarget looks up a target by name.
func (m *Manifest) FindTarget(name string) (*TargetSpec, bool) {
	if m == nil {
		return nil, false
	}
	target, ok := m.Targets[sanitizeSegment(strings.TrimSpace(name))]
	return target, ok && target != nil
}

// MainPath resolves a target entrypoint against the manifest directory.
func (m *Manifest) MainPath(target *TargetSpec) string {
	if target == nil {
		return ""
	}
	if filepath.IsAbs(target.Main) {
		return target.Main
	}
	return filepath.Join(filepath.Dir(m.Path), target.Main)
}

func (d *DependencySpec) validate() []string {
	var errs []string
	if d == nil {
		return errs
	}
	if d.Path != "" && (d.Version != "" || d.Git != "") {
		errs = append(errs, "path overrides cannot specify version or git source")
	}
	if d.Git == "" && (d.Rev != "" || d.Tag != "" || d.Branch != "") {
		errs = append(errs, "rev, tag and branch require a git source")
	}
	if d.Version == "" && d.Git == "" && d.Path == "" {
		errs = append(errs, "must specify version, git, or path")
	}
	if d.Version != "" && !versionPattern.MatchString(strings.TrimSpace(d.Version)) {
		errs = append(errs, fmt.Sprintf("invalid version constraint %q", d.Version))
	}
	return errs
}

var versionPattern = regexp.MustCompile(`^(~>|>=|<=|>|<|=|\^)?\s*[0-9]+(\.[0-9]+){0,2}$`)

var segmentCleaner = regexp.MustCompile(`[^0-9A-Za-z_]+`)

func sanitizeSegment(name string) string {
	cleaned := segmentCleaner.ReplaceAllString(strings.TrimSpace(name), "_")
	return strings.Trim(cleaned, "_ ")
}

type manifestFile struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Authors      []string      `yaml:"authors"`
	Targets      yaml.Node     `yaml:"targets"`
	Dependencies dependencyMap `yaml:"dependencies"`
}

func (f *manifestFile) toManifest(path string) *Manifest {
	manifest := &Manifest{
		Path:         path,
		Name:         sanitizeSegment(f.Name),
		Version:      strings.TrimSpace(f.Version),
		Authors:      f.Authors,
		Targets:      make(map[string]*TargetSpec),
		Dependencies: f.Dependencies.specs,
	}
	if manifest.Dependencies == nil {
		manifest.Dependencies = make(map[string]*DependencySpec)
	}
	if f.Targets.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(f.Targets.Content); i += 2 {
			key := sanitizeSegment(f.Targets.Content[i].Value)
			if key == "" {
				continue
			}
			spec := &TargetSpec{Name: key}
			value := f.Targets.Content[i+1]
			switch value.Kind {
			case yaml.ScalarNode:
				spec.Main = strings.TrimSpace(value.Value)
			case yaml.MappingNode:
				for j := 0; j+1 < len(value.Content); j += 2 {
					if value.Content[j].Value == "main" {
						spec.Main = strings.TrimSpace(value.Content[j+1].Value)
					}
				}
			}
			manifest.Targets[key] = spec
			manifest.TargetOrder = append(manifest.TargetOrder, key)
		}
	}
	return manifest
}

// dependencyMap accepts either "name: version" shorthand or a full
// mapping with git, rev, tag, branch or path keys.
type dependencyMap struct {
	specs map[string]*DependencySpec
}

func (d *dependencyMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("dependencies must be a mapping")
	}
	d.specs = make(map[string]*DependencySpec, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := sanitizeSegment(node.Content[i].Value)
		if name == "" {
			return fmt.Errorf("dependencies must not use empty keys")
		}
		value := node.Content[i+1]
		spec := &DependencySpec{}
		switch value.Kind {
		case yaml.ScalarNode:
			spec.Version = strings.TrimSpace(value.Value)
		case yaml.MappingNode:
			var full struct {
				Version string `yaml:"version"`
				Git     string `yaml:"git"`
				Rev     string `yaml:"rev"`
				Tag     string `yaml:"tag"`
				Branch  string `yaml:"branch"`
				Path    string `yaml:"path"`
			}
			if err := value.Decode(&full); err != nil {
				return fmt.Errorf("dependency %s: %w", name, err)
			}
			spec.Version = strings.TrimSpace(full.Version)
			spec.Git = strings.TrimSpace(full.Git)
			spec.Rev = strings.TrimSpace(full.Rev)
			spec.Tag = strings.TrimSpace(full.Tag)
			spec.Branch = strings.TrimSpace(full.Branch)
			spec.Path = strings.TrimSpace(full.Path)
		default:
			return fmt.Errorf("dependency %s: unsupported value", name)
		}
		d.specs[name] = spec
	}
	return nil
}
