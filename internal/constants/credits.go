package constants

// Credit accounting constants. Credits are integers; conversions are exact.
const (
	// CreditsPerUSD is the fixed conversion rate: 1 USD maps to exactly 1000 credits.
	CreditsPerUSD = 1000

	// DefaultMarkupRate is the default top-up markup. A user paying P USD receives
	// floor(P × 1000 / (1 + markup)) credits; the difference is retained revenue.
	// Markup is never applied to usage deductions.
	DefaultMarkupRate = 0.15
)

// User roles.
const (
	// RoleUser is the default role for registered users.
	RoleUser = "user"

	// RoleAdmin grants provider administration and adjustment transactions.
	RoleAdmin = "admin"
)

// OperatorEmail names the default local account that workflow executions
// bill LLM usage to. Bootstrap creates it as an admin account on first open
// when no account with this email exists.
const OperatorEmail = "operator@local"
