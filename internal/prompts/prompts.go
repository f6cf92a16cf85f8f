package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// Render executes a prompt template with the provided data and returns the
// result. The data type should match the expected type for the given prompt
// ID; see ValidateData.
//
// Example:
//
//	data := prompts.PlanDraftData{
//	    SpecID:      "spec-feat-012-user-auth",
//	    SpecContent: specDoc,
//	}
//	prompt, err := prompts.Render(prompts.PlanDraft, data)
func Render(id PromptID, data any) (string, error) {
	tmpl, err := globalRegistry.get(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Join(ErrTemplateExecution, fmt.Errorf("prompt %s: %w", id, err))
	}

	return buf.String(), nil
}

// MustRender executes a prompt template and panics on error.
// Use this only when template execution cannot fail (known-good data).
func MustRender(id PromptID, data any) string {
	result, err := Render(id, data)
	if err != nil {
		panic(fmt.Sprintf("prompts.MustRender(%s): %v", id, err))
	}
	return result
}

// List returns all registered prompt IDs in stable order.
func List() []PromptID {
	ids := globalRegistry.list()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Exists checks if a prompt ID is registered.
func Exists(id PromptID) bool {
	_, err := globalRegistry.get(id)
	return err == nil
}

// ValidateData checks that data carries the type the given prompt expects.
func ValidateData(id PromptID, data any) error {
	switch id {
	case SpecDraft:
		if _, ok := data.(SpecDraftData); !ok {
			return fmt.Errorf("%w: expected SpecDraftData, got %T", ErrInvalidData, data)
		}
	case PlanDraft:
		if _, ok := data.(PlanDraftData); !ok {
			return fmt.Errorf("%w: expected PlanDraftData, got %T", ErrInvalidData, data)
		}
	case TasksDraft:
		if _, ok := data.(TasksDraftData); !ok {
			return fmt.Errorf("%w: expected TasksDraftData, got %T", ErrInvalidData, data)
		}
	case ImplementGuide:
		if _, ok := data.(ImplementGuideData); !ok {
			return fmt.Errorf("%w: expected ImplementGuideData, got %T", ErrInvalidData, data)
		}
	case PackCategory:
		if _, ok := data.(PackCategoryData); !ok {
			return fmt.Errorf("%w: expected PackCategoryData, got %T", ErrInvalidData, data)
		}
	}
	return nil
}
