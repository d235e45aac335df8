package coupons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/repo"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
)

// Repository persists coupon type definitions and per-customer grants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateType(ctx context.Context, couponType *models.CouponType) error
	FindTypeByID(ctx context.Context, id uuid.UUID) (*models.CouponType, error)
	FindTypeByCode(ctx context.Context, code string) (*models.CouponType, error)
	ListTypes(ctx context.Context) ([]models.CouponType, error)
	CreateGrant(ctx context.Context, grant *models.UserCoupon) error
	FindGrant(ctx context.Context, id uuid.UUID) (*models.UserCoupon, error)
	ListGrantsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.UserCoupon, error)
	Consume(ctx context.Context, id, orderID uuid.UUID, at time.Time) (bool, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository returns the GORM-backed coupon repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) CreateType(ctx context.Context, couponType *models.CouponType) error {
	return r.DB(ctx).Create(couponType).Error
}

func (r *gormRepository) FindTypeByID(ctx context.Context, id uuid.UUID) (*models.CouponType, error) {
	var couponType models.CouponType
	if err := r.DB(ctx).First(&couponType, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &couponType, nil
}

func (r *gormRepository) FindTypeByCode(ctx context.Context, code string) (*models.CouponType, error) {
	var couponType models.CouponType
	if err := r.DB(ctx).First(&couponType, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &couponType, nil
}

func (r *gormRepository) ListTypes(ctx context.Context) ([]models.CouponType, error) {
	var types []models.CouponType
	if err := r.DB(ctx).Order("code ASC").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

func (r *gormRepository) CreateGrant(ctx context.Context, grant *models.UserCoupon) error {
	return r.DB(ctx).Create(grant).Error
}

func (r *gormRepository) FindGrant(ctx context.Context, id uuid.UUID) (*models.UserCoupon, error) {
	var grant models.UserCoupon
	if err := r.DB(ctx).First(&grant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *gormRepository) ListGrantsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.UserCoupon, error) {
	var grants []models.UserCoupon
	err := r.DB(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// Consume flips is_used exactly once. The conditional WHERE is the whole
// single-use guarantee; false means another request got there first.
func (r *gormRepository) Consume(ctx context.Context, id, orderID uuid.UUID, at time.Time) (bool, error) {
	result := r.DB(ctx).
		Model(&models.UserCoupon{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{
			"is_used":       true,
			"used_at":       at,
			"used_order_id": orderID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
