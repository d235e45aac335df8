package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/repo"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// Repository persists return requests and the order rows they settle against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.ReturnRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.ReturnRequest, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, at time.Time) (bool, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkGiftReturned(ctx context.Context, orderID uuid.UUID) (bool, error)
	FindPackageIDByOrder(ctx context.Context, orderID uuid.UUID) (*uuid.UUID, error)
}

// timestamp column written alongside each status transition.
var statusTimestampColumns = map[enums.ReturnStatus]string{
	enums.ReturnStatusReceived:  "received_at",
	enums.ReturnStatusValidated: "validated_at",
	enums.ReturnStatusCompleted: "completed_at",
	enums.ReturnStatusCancelled: "cancelled_at",
}

type gormRepository struct {
	repo.Base
}

// NewRepository returns the GORM-backed returns repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) Create(ctx context.Context, req *models.ReturnRequest) error {
	return r.DB(ctx).Create(req).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	err := r.DB(ctx).
		Preload("Items").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.ReturnRequest, error) {
	var reqs []models.ReturnRequest
	err := r.DB(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("declared_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// SetStatus performs a guarded transition. False means the row was not in
// the expected source status, so a concurrent writer won the race.
func (r *gormRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if column, ok := statusTimestampColumns[to]; ok {
		updates[column] = at
	}
	result := r.DB(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) MarkGiftReturned(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gift_returned = ?", orderID, false).
		Update("gift_returned", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) FindPackageIDByOrder(ctx context.Context, orderID uuid.UUID) (*uuid.UUID, error) {
	var row models.OpenPackageOrder
	err := r.DB(ctx).First(&row, "order_id = ?", orderID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	packageID := row.PackageID
	return &packageID, nil
}
