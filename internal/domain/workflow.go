package domain

import (
	"time"
)

// StepType categorizes the kind of execution a step performs.
// This determines which executor handles the step.
type StepType string

// Step type constants define the valid execution types for steps.
const (
	// StepTypeGenerate produces a governed artifact via the LLM gateway.
	StepTypeGenerate StepType = "generate"

	// StepTypeVerify runs the evidence verifier over the bundle's tasks.md.
	StepTypeVerify StepType = "verify"

	// StepTypePromptPack renders remediation prompt packs from the latest
	// verification report.
	StepTypePromptPack StepType = "prompt_pack"

	// StepTypeSync reconciles tasks.md checkboxes with verification evidence.
	StepTypeSync StepType = "sync"

	// StepTypeHuman pauses the execution awaiting approve/reject/modify.
	StepTypeHuman StepType = "human"

	// StepTypeGitTag creates an annotated release tag.
	StepTypeGitTag StepType = "git_tag"

	// StepTypeDocs assembles the bundle digest docs.md.
	StepTypeDocs StepType = "docs"

	// StepTypeReport writes the run report and summary under .spec/reports/.
	StepTypeReport StepType = "report"
)

// String returns the string representation of the StepType.
// This implements fmt.Stringer for convenient logging and debugging.
func (s StepType) String() string { return string(s) }

// ParamType constrains a workflow parameter value.
type ParamType string

// Parameter types accepted in workflow descriptors.
const (
	ParamTypeString ParamType = "string"
	ParamTypeInt    ParamType = "int"
	ParamTypeBool   ParamType = "bool"
	ParamTypeSpecID ParamType = "spec_id"
)

// ParamSpec declares one named workflow parameter.
type ParamSpec struct {
	// Name is the argument key callers pass.
	Name string `json:"name" yaml:"name"`

	// Type constrains the value.
	Type ParamType `json:"type" yaml:"type"`

	// Required rejects invocations that omit the parameter.
	Required bool `json:"required" yaml:"required"`

	// Default fills the value when omitted and not required.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`

	// Enum restricts string values to a fixed set when non-empty.
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Description documents the parameter for help output.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// EffectSet declares what an execution of the workflow may touch. The router
// refuses to recommend and the engine refuses to run a workflow whose
// required flag is absent from the invocation.
type EffectSet struct {
	// WritesGoverned means the workflow mutates specs/** and requires --apply.
	WritesGoverned bool `json:"writes_governed" yaml:"writes_governed"`

	// WritesRuntime means the workflow writes under .spec/**.
	WritesRuntime bool `json:"writes_runtime" yaml:"writes_runtime"`

	// RequiresNetwork means the workflow calls LLM providers and requires
	// --allow-network.
	RequiresNetwork bool `json:"requires_network" yaml:"requires_network"`
}

// ReadOnly reports whether the workflow declares no write effects.
func (e EffectSet) ReadOnly() bool {
	return !e.WritesGoverned && !e.WritesRuntime
}

// WorkflowStep describes a step within a workflow descriptor.
//
// Example YAML representation:
//
//	- name: verify
//	  type: verify
//	  needs: [load]
//	  timeout: 5m
type WorkflowStep struct {
	// Name uniquely identifies the step within its workflow.
	Name string `json:"name" yaml:"name"`

	// Type selects the executor (generate, verify, sync, human, ...).
	Type StepType `json:"type" yaml:"type"`

	// Needs lists step names that must complete before this one starts.
	// An empty list makes the step a root.
	Needs []string `json:"needs,omitempty" yaml:"needs,omitempty"`

	// Config carries executor-specific settings.
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`

	// Timeout bounds the step; zero inherits the workflow timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Descriptor declares one workflow: its identity, input surface, effects,
// and step graph. Descriptors are discovered by the registry at startup and
// frozen afterwards.
//
// Example YAML representation:
//
//	name: verify_tasks
//	category: verification
//	version: 1.2.0
//	description: Prove or disprove claimed task evidence on disk.
//	effects:
//	  writes_runtime: true
//	params:
//	  - name: spec
//	    type: spec_id
//	    required: true
//	steps:
//	  - name: verify
//	    type: verify
type Descriptor struct {
	// Name is the stable workflow identifier (lowercase snake_case).
	Name string `json:"name" yaml:"name"`

	// Category groups workflows for display (authoring, verification, ...).
	Category string `json:"category" yaml:"category"`

	// Version is the descriptor's semantic version.
	Version string `json:"version" yaml:"version"`

	// Description is a one-line human summary.
	Description string `json:"description" yaml:"description"`

	// Effects declares the write/network surface.
	Effects EffectSet `json:"effects" yaml:"effects"`

	// Params declares the accepted named arguments.
	Params []ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`

	// Steps is the step graph. Order matters for linearization ties.
	Steps []WorkflowStep `json:"steps" yaml:"steps"`

	// Parallelism caps concurrent steps; zero uses the engine default.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	// Timeout bounds the whole execution; zero uses the engine default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ContinueOnError keeps sibling steps running when one fails. The
	// execution still ends failed.
	ContinueOnError bool `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`

	// EstimatedDuration is the human-facing runtime estimate used by
	// recommendations.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty"`
}

// Clone returns a deep copy so registry callers can never mutate the
// registered descriptor.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := *d

	if d.Params != nil {
		out.Params = make([]ParamSpec, len(d.Params))
		copy(out.Params, d.Params)
		for i := range d.Params {
			if d.Params[i].Enum != nil {
				out.Params[i].Enum = append([]string(nil), d.Params[i].Enum...)
			}
		}
	}

	if d.Steps != nil {
		out.Steps = make([]WorkflowStep, len(d.Steps))
		copy(out.Steps, d.Steps)
		for i := range d.Steps {
			if d.Steps[i].Needs != nil {
				out.Steps[i].Needs = append([]string(nil), d.Steps[i].Needs...)
			}
			if d.Steps[i].Config != nil {
				cfg := make(map[string]string, len(d.Steps[i].Config))
				for k, v := range d.Steps[i].Config {
					cfg[k] = v
				}
				out.Steps[i].Config = cfg
			}
		}
	}

	return &out
}

// Param returns the declared spec for a parameter name, or nil when the
// descriptor does not declare it.
func (d *Descriptor) Param(name string) *ParamSpec {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i]
		}
	}
	return nil
}

// Step returns the step with the given name, or nil when absent.
func (d *Descriptor) Step(name string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].Name == name {
			return &d.Steps[i]
		}
	}
	return nil
}

// Flags is the universal flag set every workflow invocation accepts.
// Flags a workflow's effect set does not require are still legal; the engine
// only enforces the ones the effects demand.
type Flags struct {
	// Apply enables writes to governed artifacts under specs/**.
	Apply bool `json:"apply"`

	// AllowNetwork enables outbound provider calls.
	AllowNetwork bool `json:"allow_network"`

	// ValidateOnly runs validation and reporting without any writes.
	ValidateOnly bool `json:"validate_only"`

	// Out overrides the report directory under .spec/reports/.
	Out string `json:"out,omitempty"`

	// JSON switches output to machine-readable form.
	JSON bool `json:"json,omitempty"`

	// Quiet suppresses non-essential output.
	Quiet bool `json:"quiet,omitempty"`

	// Config points at an alternate configuration file.
	Config string `json:"config,omitempty"`
}

// Args is the frozen named-argument map of one invocation.
type Args map[string]string

// Clone returns a defensive copy so stored executions never alias caller
// maps.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
