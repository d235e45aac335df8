package packages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/repo"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// Repository persists open packages and their order memberships.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, pkg *models.OpenPackage) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.OpenPackage, error)
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.OpenPackage, error)
	AddOrder(ctx context.Context, row *models.OpenPackageOrder) error
	AddWeight(ctx context.Context, packageID uuid.UUID, grams int) error
	MarkOrderPaid(ctx context.Context, packageID, orderID uuid.UUID, paidAt time.Time) (bool, error)
	SetClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) (bool, error)
	SetShipped(ctx context.Context, id uuid.UUID, finalWeightGrams int, trackingNumber string, shippedAt time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.OpenPackage, error)
	ListClosingSoon(ctx context.Context, now time.Time, within time.Duration) ([]models.OpenPackage, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindMembershipByOrder(ctx context.Context, orderID uuid.UUID) (*models.OpenPackageOrder, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository returns the GORM-backed package repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) Create(ctx context.Context, pkg *models.OpenPackage) error {
	return r.DB(ctx).Create(pkg).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.OpenPackage, error) {
	var pkg models.OpenPackage
	err := r.DB(ctx).
		Preload("Orders").
		First(&pkg, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *gormRepository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.OpenPackage, error) {
	var pkg models.OpenPackage
	err := r.DB(ctx).
		Preload("Orders").
		Where("customer_id = ? AND status = ?", customerID, enums.PackageStatusActive).
		First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *gormRepository) AddOrder(ctx context.Context, row *models.OpenPackageOrder) error {
	return r.DB(ctx).Create(row).Error
}

func (r *gormRepository) AddWeight(ctx context.Context, packageID uuid.UUID, grams int) error {
	return r.DB(ctx).
		Model(&models.OpenPackage{}).
		Where("id = ?", packageID).
		UpdateColumn("virtual_weight_grams", gorm.Expr("virtual_weight_grams + ?", grams)).Error
}

// MarkOrderPaid flips is_paid exactly once. The conditional WHERE makes the
// flip safe under webhook redelivery; false means the row was already paid.
func (r *gormRepository) MarkOrderPaid(ctx context.Context, packageID, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.OpenPackageOrder{}).
		Where("package_id = ? AND order_id = ? AND is_paid = ?", packageID, orderID, false).
		Updates(map[string]interface{}{"is_paid": true, "paid_at": paidAt})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) SetClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.OpenPackage{}).
		Where("id = ? AND status = ?", id, enums.PackageStatusActive).
		Updates(map[string]interface{}{"status": enums.PackageStatusClosed, "closed_at": closedAt})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) SetShipped(ctx context.Context, id uuid.UUID, finalWeightGrams int, trackingNumber string, shippedAt time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.OpenPackage{}).
		Where("id = ? AND status = ?", id, enums.PackageStatusClosed).
		Updates(map[string]interface{}{
			"status":             enums.PackageStatusShipped,
			"final_weight_grams": finalWeightGrams,
			"tracking_number":    trackingNumber,
			"shipped_at":         shippedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.OpenPackage, error) {
	var pkgs []models.OpenPackage
	query := r.DB(ctx).
		Where("status = ? AND closes_at <= ?", enums.PackageStatusActive, now).
		Order("closes_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (r *gormRepository) ListClosingSoon(ctx context.Context, now time.Time, within time.Duration) ([]models.OpenPackage, error) {
	var pkgs []models.OpenPackage
	err := r.DB(ctx).
		Where("status = ? AND closes_at > ? AND closes_at <= ?", enums.PackageStatusActive, now, now.Add(within)).
		Order("closes_at ASC").
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (r *gormRepository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) FindMembershipByOrder(ctx context.Context, orderID uuid.UUID) (*models.OpenPackageOrder, error) {
	var row models.OpenPackageOrder
	if err := r.DB(ctx).First(&row, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
