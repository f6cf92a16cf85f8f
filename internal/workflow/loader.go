package workflow

import (
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// FileDescriptor is the YAML shape of a workflow descriptor on disk.
// Durations are strings ("5m", "1h30m") and parse via time.ParseDuration.
type FileDescriptor struct {
	Name              string       `yaml:"name"`
	Category          string       `yaml:"category"`
	Version           string       `yaml:"version"`
	Description       string       `yaml:"description,omitempty"`
	Effects           FileEffects  `yaml:"effects"`
	Params            []FileParam  `yaml:"params,omitempty"`
	Steps             []FileStep   `yaml:"steps"`
	Parallelism       int          `yaml:"parallelism,omitempty"`
	Timeout           string       `yaml:"timeout,omitempty"`
	ContinueOnError   bool         `yaml:"continue_on_error,omitempty"`
	EstimatedDuration string       `yaml:"estimated_duration,omitempty"`
}

// FileEffects mirrors domain.EffectSet in YAML.
type FileEffects struct {
	WritesGoverned  bool `yaml:"writes_governed,omitempty"`
	WritesRuntime   bool `yaml:"writes_runtime,omitempty"`
	RequiresNetwork bool `yaml:"requires_network,omitempty"`
}

// FileParam mirrors domain.ParamSpec in YAML.
type FileParam struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required,omitempty"`
	Default     string   `yaml:"default,omitempty"`
	Enum        []string `yaml:"enum,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// FileStep mirrors domain.WorkflowStep in YAML.
type FileStep struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Needs   []string          `yaml:"needs,omitempty"`
	Config  map[string]string `yaml:"config,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"`
}

// LoadBuiltins parses and registers every embedded builtin descriptor.
// A broken builtin is a programming error and still surfaces as a normal
// diagnostic rather than a panic.
func LoadBuiltins(registry *Registry) error {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return sserrors.Wrap(err, "reading builtin descriptors")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		data, rerr := builtinFS.ReadFile("builtin/" + entry.Name())
		if rerr != nil {
			return sserrors.Wrapf(rerr, "reading builtin descriptor %s", entry.Name())
		}
		d, perr := ParseDescriptor(data)
		if perr != nil {
			return sserrors.Wrapf(perr, "builtin descriptor %s", entry.Name())
		}
		if rerr := registry.Register(d); rerr != nil {
			return sserrors.Wrapf(rerr, "builtin descriptor %s", entry.Name())
		}
	}
	return nil
}

// LoadUserDir discovers user descriptors (*.yaml, *.yml) in dir and
// registers them. A missing directory is fine; any invalid descriptor aborts
// with a diagnostic naming the file.
func LoadUserDir(registry *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserrors.Wrap(err, "reading workflows directory")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, rerr := os.ReadFile(path) //#nosec G304 -- enumerated from the runtime tree
		if rerr != nil {
			return sserrors.Wrapf(rerr, "reading descriptor %s", path)
		}
		d, perr := ParseDescriptor(data)
		if perr != nil {
			return sserrors.Wrapf(perr, "descriptor %s", path)
		}
		if rerr := registry.Register(d); rerr != nil {
			return sserrors.Wrapf(rerr, "descriptor %s", path)
		}
	}
	return nil
}

// ParseDescriptor unmarshals one YAML descriptor and converts it to the
// domain form. Validation happens at registration.
func ParseDescriptor(data []byte) (*domain.Descriptor, error) {
	var file FileDescriptor
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "yaml: %v", err)
	}
	return toDescriptor(&file)
}

// toDescriptor converts the file form into the domain form.
func toDescriptor(f *FileDescriptor) (*domain.Descriptor, error) {
	d := &domain.Descriptor{
		Name:            f.Name,
		Category:        f.Category,
		Version:         f.Version,
		Description:     f.Description,
		Parallelism:     f.Parallelism,
		ContinueOnError: f.ContinueOnError,
		Effects: domain.EffectSet{
			WritesGoverned:  f.Effects.WritesGoverned,
			WritesRuntime:   f.Effects.WritesRuntime,
			RequiresNetwork: f.Effects.RequiresNetwork,
		},
	}

	var err error
	if d.Timeout, err = parseOptionalDuration(f.Timeout); err != nil {
		return nil, sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: timeout: %v", f.Name, err)
	}
	if d.EstimatedDuration, err = parseOptionalDuration(f.EstimatedDuration); err != nil {
		return nil, sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: estimated_duration: %v", f.Name, err)
	}

	for _, p := range f.Params {
		d.Params = append(d.Params, domain.ParamSpec{
			Name:        p.Name,
			Type:        domain.ParamType(strings.ToLower(strings.TrimSpace(p.Type))),
			Required:    p.Required,
			Default:     p.Default,
			Enum:        p.Enum,
			Description: p.Description,
		})
	}

	for _, s := range f.Steps {
		step := domain.WorkflowStep{
			Name:   s.Name,
			Type:   domain.StepType(strings.ToLower(strings.TrimSpace(s.Type))),
			Needs:  s.Needs,
			Config: s.Config,
		}
		if step.Timeout, err = parseOptionalDuration(s.Timeout); err != nil {
			return nil, sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %s: timeout: %v", f.Name, s.Name, err)
		}
		d.Steps = append(d.Steps, step)
	}

	return d, nil
}

// parseOptionalDuration treats "" as zero.
func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
