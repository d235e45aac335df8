package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/laboutiquedemorgane/boutique-backend/pkg/db"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
)

// UniqueOrderTypeConstraint guards against double-posting the same entry
// type for the same order (payment webhooks are redelivered).
const UniqueOrderTypeConstraint = "ux_ledger_entries_order_type"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines operations against the append-only loyalty ledger.
type Service interface {
	Post(ctx context.Context, input PostEntryInput) (*models.LoyaltyLedgerEntry, error)
	PostTx(ctx context.Context, tx *gorm.DB, input PostEntryInput) (*models.LoyaltyLedgerEntry, error)
	Balance(ctx context.Context, customerID uuid.UUID) (*BalanceSummary, error)
	History(ctx context.Context, customerID uuid.UUID) ([]models.LoyaltyLedgerEntry, error)
	Replay(ctx context.Context, customerID uuid.UUID) (*ReplayResult, error)
	EarnedOnOrder(ctx context.Context, customerID, orderID uuid.UUID) (decimal.Decimal, error)
}

// PostEntryInput captures the immutable data a ledger entry requires.
// Amount is the base amount before the tier multiplier; the effective amount
// written to the ledger includes it for earning types.
type PostEntryInput struct {
	CustomerID  uuid.UUID
	OrderID     *uuid.UUID
	Type        enums.LedgerEntryType
	Account     enums.LedgerAccount
	Amount      decimal.Decimal
	Description string
}

// BalanceSummary is the cached view of both customer balances.
type BalanceSummary struct {
	CustomerID    uuid.UUID         `json:"customer_id"`
	WalletBalance decimal.Decimal   `json:"wallet_balance"`
	LoyaltyEuros  decimal.Decimal   `json:"loyalty_euros"`
	Tier          enums.LoyaltyTier `json:"tier"`
}

// ReplayResult compares ledger sums against the cached balances.
type ReplayResult struct {
	CustomerID    uuid.UUID       `json:"customer_id"`
	WalletLedger  decimal.Decimal `json:"wallet_ledger"`
	WalletCached  decimal.Decimal `json:"wallet_cached"`
	LoyaltyLedger decimal.Decimal `json:"loyalty_ledger"`
	LoyaltyCached decimal.Decimal `json:"loyalty_cached"`
	Consistent    bool            `json:"consistent"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires a ledger service with the provided repository and runner.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Post(ctx context.Context, input PostEntryInput) (*models.LoyaltyLedgerEntry, error) {
	var entry *models.LoyaltyLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		posted, err := s.PostTx(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostTx posts an entry inside an existing transaction so callers can make
// the posting atomic with their own state transition.
func (s *service) PostTx(ctx context.Context, tx *gorm.DB, input PostEntryInput) (*models.LoyaltyLedgerEntry, error) {
	if err := validatePostInput(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	profile, err := repo.FindProfile(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer profile")
	}

	amount := input.Amount
	multiplier := decimal.NewFromInt(1)
	if input.Type.IsEarning() && amount.IsPositive() {
		multiplier = profile.Tier.Multiplier()
		amount = amount.Mul(multiplier).Round(2)
	}

	// Callers pre-clamp clawbacks; re-validate so the balance can never go
	// negative even if they did not.
	if amount.IsNegative() {
		balance := profile.LoyaltyEuros
		if input.Account == enums.LedgerAccountWallet {
			balance = profile.WalletBalance
		}
		if balance.Add(amount).IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "debit would make balance negative")
		}
	}

	entry := &models.LoyaltyLedgerEntry{
		CustomerID:  input.CustomerID,
		OrderID:     input.OrderID,
		Type:        input.Type,
		Account:     input.Account,
		Amount:      amount,
		Multiplier:  multiplier,
		Tier:        profile.Tier,
		Description: input.Description,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if dbpkg.IsUniqueViolation(err, UniqueOrderTypeConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "entry already posted for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entry")
	}

	if err := repo.AdjustBalance(ctx, input.CustomerID, input.Account, amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust cached balance")
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, customerID uuid.UUID) (*BalanceSummary, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	profile, err := s.repo.FindProfile(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer profile")
	}
	return &BalanceSummary{
		CustomerID:    profile.CustomerID,
		WalletBalance: profile.WalletBalance,
		LoyaltyEuros:  profile.LoyaltyEuros,
		Tier:          profile.Tier,
	}, nil
}

func (s *service) History(ctx context.Context, customerID uuid.UUID) ([]models.LoyaltyLedgerEntry, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	entries, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return entries, nil
}

// Replay recomputes both balances from the ledger. The ledger is the source
// of truth; a mismatch means the cached columns drifted and need repair.
func (s *service) Replay(ctx context.Context, customerID uuid.UUID) (*ReplayResult, error) {
	profile, err := s.repo.FindProfile(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer profile")
	}
	wallet, err := s.repo.SumByCustomer(ctx, customerID, enums.LedgerAccountWallet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet entries")
	}
	loyalty, err := s.repo.SumByCustomer(ctx, customerID, enums.LedgerAccountLoyalty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum loyalty entries")
	}
	return &ReplayResult{
		CustomerID:    customerID,
		WalletLedger:  wallet,
		WalletCached:  profile.WalletBalance,
		LoyaltyLedger: loyalty,
		LoyaltyCached: profile.LoyaltyEuros,
		Consistent:    wallet.Equal(profile.WalletBalance) && loyalty.Equal(profile.LoyaltyEuros),
	}, nil
}

func (s *service) EarnedOnOrder(ctx context.Context, customerID, orderID uuid.UUID) (decimal.Decimal, error) {
	if customerID == uuid.Nil || orderID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "customer id and order id required")
	}
	earned, err := s.repo.SumEarnedOnOrder(ctx, customerID, orderID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum earned on order")
	}
	return earned, nil
}

func validatePostInput(input PostEntryInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", input.Type))
	}
	if !input.Account.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger account %q", input.Account))
	}
	if input.Amount.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}
