package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/store"
)

// minPasswordLength rejects trivially guessable passwords at registration.
const minPasswordLength = 8

// Accounts manages gateway user accounts: registration, authentication, and
// the top-up side of the credit ledger. Deductions happen in Gateway.Chat.
type Accounts struct {
	store      *store.Store
	markupRate float64
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// AccountsOption configures an Accounts service.
type AccountsOption func(*Accounts)

// WithAccountsLogger sets the service logger.
func WithAccountsLogger(l zerolog.Logger) AccountsOption {
	return func(a *Accounts) { a.logger = l }
}

// WithAccountsMetrics attaches Prometheus collectors.
func WithAccountsMetrics(m *metrics.Metrics) AccountsOption {
	return func(a *Accounts) { a.metrics = m }
}

// NewAccounts creates an account service with the given top-up markup rate.
func NewAccounts(st *store.Store, markupRate float64, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		store:      st,
		markupRate: markupRate,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register creates a standard user account with a zero balance.
func (a *Accounts) Register(ctx context.Context, email, password string) (*domain.User, error) {
	return a.create(ctx, email, password, constants.RoleUser)
}

// RegisterAdmin creates an admin account. Exposed for bootstrap; the store is
// local to the operator, so no actor gate applies here.
func (a *Accounts) RegisterAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	return a.create(ctx, email, password, constants.RoleAdmin)
}

func (a *Accounts) create(ctx context.Context, email, password, role string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "email %q", email)
	}
	if len(password) < minPasswordLength {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument,
			"password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, sserrors.Wrap(err, "hashing password")
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("role", user.Role).
		Msg("account registered")
	return user, nil
}

// Authenticate verifies an email/password pair. Unknown emails and wrong
// passwords both return ErrInvalidCredentials so the response does not reveal
// which accounts exist.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sserrors.ErrUserNotFound) {
			return nil, sserrors.Wrap(sserrors.ErrInvalidCredentials, "authenticating")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, sserrors.Wrap(sserrors.ErrInvalidCredentials, "authenticating")
	}
	if !user.IsActive {
		return nil, sserrors.Wrapf(sserrors.ErrUserDisabled, "%s", user.Email)
	}
	return user, nil
}

// topUpMetadata is the audit payload recorded on each top-up row.
type topUpMetadata struct {
	PaymentUSD float64 `json:"payment_usd"`
	MarkupRate float64 `json:"markup_rate"`
	RevenueUSD float64 `json:"revenue_usd"`
}

// TopUp converts a USD payment into credits at the current markup rate and
// appends the ledger row. The markup share never reaches the balance.
func (a *Accounts) TopUp(ctx context.Context, userID string, paymentUSD float64) (*domain.CreditTransaction, error) {
	credits := TopUpCredits(paymentUSD, a.markupRate)
	if credits <= 0 {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidAmount, "payment of $%.2f", paymentUSD)
	}
	metadata, err := json.Marshal(topUpMetadata{
		PaymentUSD: paymentUSD,
		MarkupRate: a.markupRate,
		RevenueUSD: TopUpRevenueUSD(paymentUSD, credits),
	})
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding top-up metadata")
	}
	txn, err := a.store.TopUp(ctx, userID, credits, metadata)
	if err != nil {
		return nil, err
	}
	a.metrics.CreditsGranted(credits)
	a.logger.Info().
		Str("user_id", userID).
		Float64("payment_usd", paymentUSD).
		Int64("credits", credits).
		Msg("top-up applied")
	return txn, nil
}

// adminMetadata is the audit payload on admin-issued ledger rows.
type adminMetadata struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// Refund returns credits to an account. Admin only; the row references the
// actor and reason for audit.
func (a *Accounts) Refund(ctx context.Context, actor *domain.User, userID string, credits int64, reason string) (*domain.CreditTransaction, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, sserrors.Wrap(sserrors.ErrAdminRequired, "issuing refunds")
	}
	metadata, err := json.Marshal(adminMetadata{Actor: actor.Email, Reason: reason})
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding refund metadata")
	}
	return a.store.Refund(ctx, userID, credits, metadata)
}

// Adjust applies an admin correction of either sign.
func (a *Accounts) Adjust(ctx context.Context, actor *domain.User, userID string, delta int64, reason string) (*domain.CreditTransaction, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, sserrors.Wrap(sserrors.ErrAdminRequired, "issuing adjustments")
	}
	metadata, err := json.Marshal(adminMetadata{Actor: actor.Email, Reason: reason})
	if err != nil {
		return nil, sserrors.Wrap(err, "encoding adjustment metadata")
	}
	return a.store.Adjust(ctx, userID, delta, metadata)
}

// SetActive enables or disables an account. Admin only.
func (a *Accounts) SetActive(ctx context.Context, actor *domain.User, userID string, active bool) error {
	if actor == nil || !actor.IsAdmin() {
		return sserrors.Wrap(sserrors.ErrAdminRequired, "toggling accounts")
	}
	return a.store.SetUserActive(ctx, userID, active)
}

// Balance returns the current credit balance for one account.
func (a *Accounts) Balance(ctx context.Context, userID string) (int64, error) {
	return a.store.Balance(ctx, userID)
}

// Transactions returns the newest ledger rows for one account.
func (a *Accounts) Transactions(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error) {
	return a.store.Transactions(ctx, userID, limit)
}

// Lookup loads an account by email.
func (a *Accounts) Lookup(ctx context.Context, email string) (*domain.User, error) {
	return a.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}
