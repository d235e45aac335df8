package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
)

type fakeLedgerRepo struct {
	entries  []models.LoyaltyLedgerEntry
	profiles map[uuid.UUID]*models.CustomerProfile
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{profiles: map[uuid.UUID]*models.CustomerProfile{}}
}

func (f *fakeLedgerRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeLedgerRepo) CreateEntry(_ context.Context, entry *models.LoyaltyLedgerEntry) error {
	if entry.OrderID != nil && entry.Type == enums.LedgerEntryTypeOrderCashback {
		for _, existing := range f.entries {
			if existing.OrderID != nil && *existing.OrderID == *entry.OrderID && existing.Type == entry.Type {
				return fmt.Errorf(`duplicate key value violates unique constraint "ux_ledger_entries_order_type"`)
			}
		}
	}
	entry.ID = uuid.New()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedgerRepo) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]models.LoyaltyLedgerEntry, error) {
	var out []models.LoyaltyLedgerEntry
	for _, entry := range f.entries {
		if entry.CustomerID == customerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) SumByCustomer(_ context.Context, customerID uuid.UUID, account enums.LedgerAccount) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, entry := range f.entries {
		if entry.CustomerID == customerID && entry.Account == account {
			sum = sum.Add(entry.Amount)
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) SumEarnedOnOrder(_ context.Context, customerID, orderID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, entry := range f.entries {
		if entry.CustomerID == customerID && entry.OrderID != nil && *entry.OrderID == orderID &&
			entry.Account == enums.LedgerAccountLoyalty && entry.Amount.IsPositive() {
			sum = sum.Add(entry.Amount)
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) FindProfile(_ context.Context, customerID uuid.UUID) (*models.CustomerProfile, error) {
	profile, ok := f.profiles[customerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeLedgerRepo) AdjustBalance(_ context.Context, customerID uuid.UUID, account enums.LedgerAccount, delta decimal.Decimal) error {
	profile, ok := f.profiles[customerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if account == enums.LedgerAccountWallet {
		profile.WalletBalance = profile.WalletBalance.Add(delta)
	} else {
		profile.LoyaltyEuros = profile.LoyaltyEuros.Add(delta)
	}
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func seedProfile(repo *fakeLedgerRepo, tier enums.LoyaltyTier, loyalty string) *models.CustomerProfile {
	profile := &models.CustomerProfile{
		CustomerID:   uuid.New(),
		Email:        "morgane@example.fr",
		Tier:         tier,
		LoyaltyEuros: decimal.RequireFromString(loyalty),
	}
	repo.profiles[profile.CustomerID] = profile
	return profile
}

func TestPostAppliesTierMultiplierToEarnings(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierSilver, "0")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	orderID := uuid.New()
	entry, err := svc.Post(context.Background(), PostEntryInput{
		CustomerID:  profile.CustomerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeOrderCashback,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("4.00"),
		Description: "cashback on order",
	})
	require.NoError(t, err)

	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("5.00")), "got %s", entry.Amount)
	assert.True(t, entry.Multiplier.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, enums.LoyaltyTierSilver, entry.Tier)
	assert.True(t, repo.profiles[profile.CustomerID].LoyaltyEuros.Equal(decimal.RequireFromString("5.00")))
}

func TestPostDuplicateOrderEntryReturnsConflict(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierBronze, "0")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	orderID := uuid.New()
	input := PostEntryInput{
		CustomerID:  profile.CustomerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeOrderCashback,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("2.50"),
		Description: "cashback on order",
	}
	_, err = svc.Post(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Len(t, repo.entries, 1)
}

func TestPostDebitCannotOverdrawBalance(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierBronze, "3.00")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostEntryInput{
		CustomerID:  profile.CustomerID,
		Type:        enums.LedgerEntryTypeReturnClawback,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("-5.00"),
		Description: "clawback after return",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Empty(t, repo.entries)
}

func TestPostDebitWithinBalanceSucceeds(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierGold, "10.00")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	entry, err := svc.Post(context.Background(), PostEntryInput{
		CustomerID:  profile.CustomerID,
		Type:        enums.LedgerEntryTypeReturnClawback,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("-4.50"),
		Description: "clawback after return",
	})
	require.NoError(t, err)

	// Debits never pick up the tier multiplier.
	assert.True(t, entry.Multiplier.Equal(decimal.NewFromInt(1)))
	assert.True(t, repo.profiles[profile.CustomerID].LoyaltyEuros.Equal(decimal.RequireFromString("5.50")))
}

func TestPostUnknownCustomerReturnsNotFound(t *testing.T) {
	svc, err := NewService(newFakeLedgerRepo(), fakeTxRunner{})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostEntryInput{
		CustomerID:  uuid.New(),
		Type:        enums.LedgerEntryTypeWelcome,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("5.00"),
		Description: "welcome bonus",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestPostValidation(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierBronze, "0")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	cases := []struct {
		name  string
		input PostEntryInput
	}{
		{"missing customer", PostEntryInput{Type: enums.LedgerEntryTypeWelcome, Account: enums.LedgerAccountLoyalty, Amount: decimal.NewFromInt(1), Description: "x"}},
		{"invalid type", PostEntryInput{CustomerID: profile.CustomerID, Type: "bogus", Account: enums.LedgerAccountLoyalty, Amount: decimal.NewFromInt(1), Description: "x"}},
		{"invalid account", PostEntryInput{CustomerID: profile.CustomerID, Type: enums.LedgerEntryTypeWelcome, Account: "bogus", Amount: decimal.NewFromInt(1), Description: "x"}},
		{"zero amount", PostEntryInput{CustomerID: profile.CustomerID, Type: enums.LedgerEntryTypeWelcome, Account: enums.LedgerAccountLoyalty, Description: "x"}},
		{"missing description", PostEntryInput{CustomerID: profile.CustomerID, Type: enums.LedgerEntryTypeWelcome, Account: enums.LedgerAccountLoyalty, Amount: decimal.NewFromInt(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Post(context.Background(), tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestReplayDetectsDrift(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierBronze, "0")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostEntryInput{
		CustomerID:  profile.CustomerID,
		Type:        enums.LedgerEntryTypeWelcome,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("5.00"),
		Description: "welcome bonus",
	})
	require.NoError(t, err)

	result, err := svc.Replay(context.Background(), profile.CustomerID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)

	// Corrupt the cached balance behind the ledger's back.
	repo.profiles[profile.CustomerID].LoyaltyEuros = decimal.RequireFromString("9.99")

	result, err = svc.Replay(context.Background(), profile.CustomerID)
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.True(t, result.LoyaltyLedger.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, result.LoyaltyCached.Equal(decimal.RequireFromString("9.99")))
}

func TestEarnedOnOrderIgnoresDebits(t *testing.T) {
	repo := newFakeLedgerRepo()
	profile := seedProfile(repo, enums.LoyaltyTierBronze, "0")
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)

	orderID := uuid.New()
	_, err = svc.Post(context.Background(), PostEntryInput{
		CustomerID:  profile.CustomerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeOrderCashback,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("3.00"),
		Description: "cashback on order",
	})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostEntryInput{
		CustomerID:  profile.CustomerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeReturnClawback,
		Account:     enums.LedgerAccountLoyalty,
		Amount:      decimal.RequireFromString("-1.00"),
		Description: "clawback after return",
	})
	require.NoError(t, err)

	earned, err := svc.EarnedOnOrder(context.Background(), profile.CustomerID, orderID)
	require.NoError(t, err)
	assert.True(t, earned.Equal(decimal.RequireFromString("3.00")))
}
