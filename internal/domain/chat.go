package domain

import (
	"strings"
	"time"
)

// TaskClass categorizes what a gateway call is for. The routing table keys
// on it to pick providers and models.
type TaskClass string

// Task classes recognized by the gateway routing table.
const (
	TaskClassChat           TaskClass = "chat"
	TaskClassCodeGeneration TaskClass = "code_generation"
	TaskClassReasoning      TaskClass = "reasoning"
	TaskClassSummarization  TaskClass = "summarization"
	TaskClassClassification TaskClass = "classification"
)

// BudgetPriority expresses what the caller wants to optimize for.
type BudgetPriority string

// Budget priorities recognized by the gateway routing table.
const (
	PriorityQuality BudgetPriority = "quality"
	PriorityCost    BudgetPriority = "cost"
	PrioritySpeed   BudgetPriority = "speed"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

// Chat roles accepted by provider adapters.
const (
	RoleSystem    ChatRole = "system"
	RoleUserMsg   ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a provider conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatRequest is one gateway invocation. Model selection is normally left to
// the routing table; Model pins a specific `<provider>/<model>` when set.
type ChatRequest struct {
	// Messages is the conversation, oldest first.
	Messages []ChatMessage `json:"messages"`

	// TaskClass drives routing table row selection.
	TaskClass TaskClass `json:"task_class"`

	// Priority drives routing within the task class.
	Priority BudgetPriority `json:"priority"`

	// Model optionally pins a normalized `<provider>/<model>` identifier,
	// bypassing the routing table.
	Model string `json:"model,omitempty"`

	// MaxTokens bounds the completion; zero uses the gateway default.
	MaxTokens int64 `json:"max_tokens,omitempty"`

	// ExpectedOutputTokens feeds the pre-flight cost estimate; zero uses a
	// conservative default.
	ExpectedOutputTokens int64 `json:"expected_output_tokens,omitempty"`

	// Metadata is recorded on the deduction transaction for audit.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PromptChars returns the total character length of all message content,
// used for token estimation.
func (r *ChatRequest) PromptChars() int {
	n := 0
	for _, m := range r.Messages {
		n += len(m.Content)
	}
	return n
}

// TokenUsage is the provider-reported token accounting for one call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// ChatResult is the gateway's response: the completion plus the accounting
// the caller was debited for.
type ChatResult struct {
	// Text is the completion content.
	Text string `json:"text"`

	// Provider is the adapter that served the call.
	Provider string `json:"provider"`

	// Model is the normalized `<provider>/<model>` identifier used.
	Model string `json:"model"`

	// Usage is the provider-reported token accounting.
	Usage TokenUsage `json:"usage"`

	// RawCostUSD is the provider cost before credit conversion.
	RawCostUSD float64 `json:"raw_cost_usd"`

	// DebitedCredits is what the caller's balance was reduced by:
	// ceil(raw_cost_usd × 1000).
	DebitedCredits int64 `json:"debited_credits"`

	// Elapsed is the provider round-trip time.
	Elapsed time.Duration `json:"elapsed_ms"`
}

// NormalizeModelID renders the canonical `<provider>/<model>` form.
func NormalizeModelID(provider, model string) string {
	return provider + "/" + model
}

// SplitModelID decomposes a normalized identifier into provider and model.
// A bare model name returns an empty provider.
func SplitModelID(id string) (provider, model string) {
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}
