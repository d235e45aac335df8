package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/repo"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// Repository manages persistence for ledger entries and the cached balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.LoyaltyLedgerEntry) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.LoyaltyLedgerEntry, error)
	SumByCustomer(ctx context.Context, customerID uuid.UUID, account enums.LedgerAccount) (decimal.Decimal, error)
	SumEarnedOnOrder(ctx context.Context, customerID, orderID uuid.UUID) (decimal.Decimal, error)
	FindProfile(ctx context.Context, customerID uuid.UUID) (*models.CustomerProfile, error)
	AdjustBalance(ctx context.Context, customerID uuid.UUID, account enums.LedgerAccount, delta decimal.Decimal) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LoyaltyLedgerEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.LoyaltyLedgerEntry, error) {
	var entries []models.LoyaltyLedgerEntry
	if err := r.DB(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByCustomer(ctx context.Context, customerID uuid.UUID, account enums.LedgerAccount) (decimal.Decimal, error) {
	var raw *string
	err := r.DB(ctx).
		Model(&models.LoyaltyLedgerEntry{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS TEXT)").
		Where("customer_id = ? AND account = ?", customerID, account).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func (r *repository) SumEarnedOnOrder(ctx context.Context, customerID, orderID uuid.UUID) (decimal.Decimal, error) {
	var raw *string
	err := r.DB(ctx).
		Model(&models.LoyaltyLedgerEntry{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS TEXT)").
		Where("customer_id = ? AND order_id = ? AND account = ? AND amount > 0", customerID, orderID, enums.LedgerAccountLoyalty).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func (r *repository) FindProfile(ctx context.Context, customerID uuid.UUID) (*models.CustomerProfile, error) {
	var profile models.CustomerProfile
	if err := r.DB(ctx).
		Where("customer_id = ?", customerID).
		First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) AdjustBalance(ctx context.Context, customerID uuid.UUID, account enums.LedgerAccount, delta decimal.Decimal) error {
	column := "loyalty_euros"
	if account == enums.LedgerAccountWallet {
		column = "wallet_balance"
	}
	return r.DB(ctx).
		Model(&models.CustomerProfile{}).
		Where("customer_id = ?", customerID).
		Update(column, gorm.Expr(column+" + ?", delta)).Error
}
