package workflow

import (
	"sort"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// ValidateInvocation checks args against the descriptor's parameter specs
// and returns a copy with defaults filled in. Unknown names, missing
// required parameters, and type or enum mismatches are all rejected before
// anything executes.
func ValidateInvocation(d *domain.Descriptor, args domain.Args) (domain.Args, error) {
	if d == nil {
		return nil, sserrors.Wrap(sserrors.ErrDescriptorInvalid, "nil descriptor")
	}

	resolved := args.Clone()
	if resolved == nil {
		resolved = domain.Args{}
	}

	for name := range resolved {
		if d.Param(name) == nil {
			return nil, sserrors.Wrapf(sserrors.ErrUnknownArgument, "%s does not accept %q", d.Name, name)
		}
	}

	for i := range d.Params {
		p := &d.Params[i]
		value, present := resolved[p.Name]
		if !present || value == "" {
			if p.Required {
				return nil, sserrors.Wrapf(sserrors.ErrMissingArgument, "%s requires %q", d.Name, p.Name)
			}
			if p.Default != "" {
				resolved[p.Name] = p.Default
			}
			continue
		}
		if err := checkParamValue(p, value); err != nil {
			return nil, sserrors.Wrapf(err, "argument %q", p.Name)
		}
	}

	return resolved, nil
}

// CheckGovernance verifies that flags grant everything the descriptor's
// effects demand. Governed writes need apply; network access needs
// allow-network. Runtime writes need no dedicated flag: every execution
// writes runtime bookkeeping, and validate-only invocations never reach
// execution at all.
func CheckGovernance(d *domain.Descriptor, flags domain.Flags) error {
	if d == nil {
		return sserrors.Wrap(sserrors.ErrDescriptorInvalid, "nil descriptor")
	}
	if d.Effects.WritesGoverned && !flags.Apply {
		return sserrors.Wrapf(sserrors.ErrApplyRequired, "%s writes governed artifacts", d.Name)
	}
	if d.Effects.RequiresNetwork && !flags.AllowNetwork {
		return sserrors.Wrapf(sserrors.ErrNetworkNotAllowed, "%s requires network access", d.Name)
	}
	return nil
}

// MissingFlags lists the universal flags the descriptor needs but flags do
// not grant, in a fixed order for stable rendering.
func MissingFlags(d *domain.Descriptor, flags domain.Flags) []string {
	var missing []string
	if d.Effects.WritesGoverned && !flags.Apply {
		missing = append(missing, "apply")
	}
	if d.Effects.RequiresNetwork && !flags.AllowNetwork {
		missing = append(missing, "allow-network")
	}
	sort.Strings(missing)
	return missing
}
