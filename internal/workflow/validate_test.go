package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// validDescriptor returns a minimal valid descriptor for testing.
func validDescriptor() *domain.Descriptor {
	return &domain.Descriptor{
		Name:     "test_workflow",
		Category: "testing",
		Version:  "1.0",
		Effects:  domain.EffectSet{WritesRuntime: true},
		Params: []domain.ParamSpec{
			{Name: "spec", Type: domain.ParamTypeSpecID, Required: true},
			{Name: "mode", Type: domain.ParamTypeString, Default: "fast", Enum: []string{"fast", "full"}},
		},
		Steps: []domain.WorkflowStep{
			{Name: "work", Type: domain.StepTypeVerify, Timeout: time.Minute},
			{Name: "report", Type: domain.StepTypeReport, Needs: []string{"work"}},
		},
	}
}

func TestValidateDescriptor_Valid(t *testing.T) {
	assert.NoError(t, ValidateDescriptor(validDescriptor()))
}

func TestValidateDescriptor_Nil(t *testing.T) {
	err := ValidateDescriptor(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrDescriptorInvalid)
}

func TestValidateDescriptor_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(d *domain.Descriptor)
		contains string
	}{
		{
			name:     "uppercase name",
			mutate:   func(d *domain.Descriptor) { d.Name = "Verify_Tasks" },
			contains: "snake_case",
		},
		{
			name:     "hyphenated name",
			mutate:   func(d *domain.Descriptor) { d.Name = "verify-tasks" },
			contains: "snake_case",
		},
		{
			name:     "missing category",
			mutate:   func(d *domain.Descriptor) { d.Category = "  " },
			contains: "category",
		},
		{
			name:     "bad version",
			mutate:   func(d *domain.Descriptor) { d.Version = "v1" },
			contains: "version",
		},
		{
			name:     "negative parallelism",
			mutate:   func(d *domain.Descriptor) { d.Parallelism = -1 },
			contains: "parallelism",
		},
		{
			name:     "negative timeout",
			mutate:   func(d *domain.Descriptor) { d.Timeout = -time.Second },
			contains: "timeout",
		},
		{
			name: "duplicate param",
			mutate: func(d *domain.Descriptor) {
				d.Params = append(d.Params, domain.ParamSpec{Name: "spec", Type: domain.ParamTypeSpecID})
			},
			contains: "declared twice",
		},
		{
			name: "unknown param type",
			mutate: func(d *domain.Descriptor) {
				d.Params[0].Type = "float"
			},
			contains: "unknown type",
		},
		{
			name: "enum on non-string param",
			mutate: func(d *domain.Descriptor) {
				d.Params[0].Enum = []string{"a", "b"}
			},
			contains: "enum requires type string",
		},
		{
			name: "required param with default",
			mutate: func(d *domain.Descriptor) {
				d.Params[0].Default = "spec-feat-001-auth"
			},
			contains: "required params take no default",
		},
		{
			name: "default outside enum",
			mutate: func(d *domain.Descriptor) {
				d.Params[1].Default = "turbo"
			},
			contains: "default",
		},
		{
			name:     "no steps",
			mutate:   func(d *domain.Descriptor) { d.Steps = nil },
			contains: "at least one step",
		},
		{
			name: "duplicate step name",
			mutate: func(d *domain.Descriptor) {
				d.Steps = append(d.Steps, domain.WorkflowStep{Name: "work", Type: domain.StepTypeVerify})
			},
			contains: "declared twice",
		},
		{
			name: "unknown step type",
			mutate: func(d *domain.Descriptor) {
				d.Steps[0].Type = "shell"
			},
			contains: "unknown type",
		},
		{
			name: "negative step timeout",
			mutate: func(d *domain.Descriptor) {
				d.Steps[0].Timeout = -time.Second
			},
			contains: "timeout",
		},
		{
			name: "self dependency",
			mutate: func(d *domain.Descriptor) {
				d.Steps[0].Needs = []string{"work"}
			},
			contains: "depends on itself",
		},
		{
			name: "unknown dependency",
			mutate: func(d *domain.Descriptor) {
				d.Steps[1].Needs = []string{"missing"}
			},
			contains: "unknown step",
		},
		{
			name: "dependency cycle",
			mutate: func(d *domain.Descriptor) {
				d.Steps[0].Needs = []string{"report"}
			},
			contains: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(d)

			err := ValidateDescriptor(d)
			require.Error(t, err)
			assert.ErrorIs(t, err, sserrors.ErrDescriptorInvalid)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestIsValidStepType(t *testing.T) {
	for _, st := range ValidStepTypes() {
		assert.True(t, IsValidStepType(st), string(st))
	}
	assert.False(t, IsValidStepType("shell"))
	assert.False(t, IsValidStepType(""))
}

func TestLinearize_Chain(t *testing.T) {
	d := &domain.Descriptor{
		Steps: []domain.WorkflowStep{
			{Name: "a", Type: domain.StepTypeGenerate},
			{Name: "b", Type: domain.StepTypeGenerate, Needs: []string{"a"}},
			{Name: "c", Type: domain.StepTypeReport, Needs: []string{"b"}},
		},
	}

	order, err := Linearize(d)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestLinearize_FanOut(t *testing.T) {
	// Three independent digests, one join, one tail.
	d := &domain.Descriptor{
		Steps: []domain.WorkflowStep{
			{Name: "digest_spec", Type: domain.StepTypeDocs},
			{Name: "digest_plan", Type: domain.StepTypeDocs},
			{Name: "digest_tasks", Type: domain.StepTypeDocs},
			{Name: "assemble", Type: domain.StepTypeDocs, Needs: []string{"digest_spec", "digest_plan", "digest_tasks"}},
			{Name: "report", Type: domain.StepTypeReport, Needs: []string{"assemble"}},
		},
	}

	order, err := Linearize(d)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLinearize_DiamondKeepsDeclarationOrder(t *testing.T) {
	d := &domain.Descriptor{
		Steps: []domain.WorkflowStep{
			{Name: "root", Type: domain.StepTypeGenerate},
			{Name: "left", Type: domain.StepTypeGenerate, Needs: []string{"root"}},
			{Name: "right", Type: domain.StepTypeGenerate, Needs: []string{"root"}},
			{Name: "join", Type: domain.StepTypeReport, Needs: []string{"left", "right"}},
		},
	}

	order, err := Linearize(d)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestLinearize_IndependentStepsKeepDeclarationOrder(t *testing.T) {
	d := &domain.Descriptor{
		Steps: []domain.WorkflowStep{
			{Name: "zeta", Type: domain.StepTypeDocs},
			{Name: "alpha", Type: domain.StepTypeDocs},
			{Name: "mid", Type: domain.StepTypeDocs},
		},
	}

	order, err := Linearize(d)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestLinearize_CycleNamesStuckSteps(t *testing.T) {
	d := &domain.Descriptor{
		Steps: []domain.WorkflowStep{
			{Name: "a", Type: domain.StepTypeGenerate, Needs: []string{"b"}},
			{Name: "b", Type: domain.StepTypeGenerate, Needs: []string{"a"}},
			{Name: "c", Type: domain.StepTypeReport},
		},
	}

	_, err := Linearize(d)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrStepCycle)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}
