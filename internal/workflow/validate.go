package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Descriptor names are lowercase snake_case; versions are dotted numerics.
var (
	workflowNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	versionRegex      = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
)

// ValidStepTypes returns every step type an executor exists for.
func ValidStepTypes() []domain.StepType {
	return []domain.StepType{
		domain.StepTypeGenerate,
		domain.StepTypeVerify,
		domain.StepTypePromptPack,
		domain.StepTypeSync,
		domain.StepTypeHuman,
		domain.StepTypeGitTag,
		domain.StepTypeDocs,
		domain.StepTypeReport,
	}
}

// IsValidStepType checks if the step type is known.
func IsValidStepType(t domain.StepType) bool {
	for _, valid := range ValidStepTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// ValidateDescriptor checks structural validity: identity fields, parameter
// schema well-formedness, and a resolvable acyclic step graph. All failures
// wrap ErrDescriptorInvalid with the offending element named.
func ValidateDescriptor(d *domain.Descriptor) error {
	if d == nil {
		return sserrors.Wrap(sserrors.ErrDescriptorInvalid, "descriptor is nil")
	}
	if !workflowNameRegex.MatchString(d.Name) {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "name %q is not lowercase snake_case", d.Name)
	}
	if strings.TrimSpace(d.Category) == "" {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: category is required", d.Name)
	}
	if !versionRegex.MatchString(d.Version) {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: version %q is not a dotted version", d.Name, d.Version)
	}
	if d.Parallelism < 0 {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: parallelism cannot be negative", d.Name)
	}
	if d.Timeout < 0 {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: timeout cannot be negative", d.Name)
	}

	if err := validateParams(d); err != nil {
		return err
	}
	if err := validateSteps(d); err != nil {
		return err
	}

	// A cycle is a structural defect the same as a bad field.
	if _, err := Linearize(d); err != nil {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: %v", d.Name, err)
	}
	return nil
}

// validateParams checks the declared parameter schema.
func validateParams(d *domain.Descriptor) error {
	seen := make(map[string]bool, len(d.Params))
	for i := range d.Params {
		p := &d.Params[i]
		if strings.TrimSpace(p.Name) == "" {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: param %d: name is required", d.Name, i)
		}
		if seen[p.Name] {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: param %q declared twice", d.Name, p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case domain.ParamTypeString, domain.ParamTypeInt, domain.ParamTypeBool, domain.ParamTypeSpecID:
		default:
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: param %q: unknown type %q", d.Name, p.Name, p.Type)
		}

		if len(p.Enum) > 0 && p.Type != domain.ParamTypeString {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: param %q: enum requires type string", d.Name, p.Name)
		}
		if p.Required && p.Default != "" {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: param %q: required params take no default", d.Name, p.Name)
		}
		if p.Default != "" {
			if err := checkParamValue(p, p.Default); err != nil {
				return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: param %q: default %v", d.Name, p.Name, err)
			}
		}
	}
	return nil
}

// validateSteps checks step identity, types, and dependency references.
func validateSteps(d *domain.Descriptor) error {
	if len(d.Steps) == 0 {
		return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: at least one step is required", d.Name)
	}

	names := make(map[string]bool, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		if strings.TrimSpace(step.Name) == "" {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %d: name is required", d.Name, i)
		}
		if names[step.Name] {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %q declared twice", d.Name, step.Name)
		}
		names[step.Name] = true

		if !IsValidStepType(step.Type) {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %q: unknown type %q", d.Name, step.Name, step.Type)
		}
		if step.Timeout < 0 {
			return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %q: timeout cannot be negative", d.Name, step.Name)
		}
	}

	for i := range d.Steps {
		step := &d.Steps[i]
		for _, dep := range step.Needs {
			if dep == step.Name {
				return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %q depends on itself", d.Name, step.Name)
			}
			if !names[dep] {
				return sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "%s: step %q needs unknown step %q", d.Name, step.Name, dep)
			}
		}
	}
	return nil
}

// checkParamValue validates one value against a parameter spec.
func checkParamValue(p *domain.ParamSpec, value string) error {
	switch p.Type {
	case domain.ParamTypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return sserrors.Wrapf(sserrors.ErrInvalidArgument, "%q is not an integer", value)
		}
	case domain.ParamTypeBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return sserrors.Wrapf(sserrors.ErrInvalidArgument, "%q is not a boolean", value)
		}
	case domain.ParamTypeSpecID:
		if _, err := domain.ParseSpecID(value); err != nil {
			return sserrors.Wrapf(sserrors.ErrInvalidArgument, "%q is not a spec id", value)
		}
	case domain.ParamTypeString:
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if value == allowed {
					return nil
				}
			}
			return sserrors.Wrapf(sserrors.ErrInvalidArgument, "%q is not one of %s", value, strings.Join(p.Enum, ", "))
		}
	}
	return nil
}

// Linearize orders the step graph topologically and returns step indexes in
// execution order. Ties (steps that become ready together) resolve in
// declaration order, so the result is deterministic. Returns ErrStepCycle
// when dependencies loop.
func Linearize(d *domain.Descriptor) ([]int, error) {
	n := len(d.Steps)
	indexOf := make(map[string]int, n)
	for i := range d.Steps {
		indexOf[d.Steps[i].Name] = i
	}

	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i := range d.Steps {
		for _, dep := range d.Steps[i].Needs {
			j, ok := indexOf[dep]
			if !ok {
				return nil, sserrors.Wrapf(sserrors.ErrDescriptorInvalid, "step %q needs unknown step %q", d.Steps[i].Name, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm with an index-ordered frontier.
	var frontier []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			frontier = append(frontier, i)
		}
	}

	order := make([]int, 0, n)
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		order = append(order, next)

		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				// Keep the frontier sorted by declaration index.
				inserted := false
				for k := range frontier {
					if dep < frontier[k] {
						frontier = append(frontier[:k], append([]int{dep}, frontier[k:]...)...)
						inserted = true
						break
					}
				}
				if !inserted {
					frontier = append(frontier, dep)
				}
			}
		}
	}

	if len(order) != n {
		var stuck []string
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				stuck = append(stuck, d.Steps[i].Name)
			}
		}
		return nil, sserrors.Wrapf(sserrors.ErrStepCycle, "involving %s", strings.Join(stuck, ", "))
	}
	return order, nil
}
