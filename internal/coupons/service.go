package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/laboutiquedemorgane/boutique-backend/pkg/db"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
)

// UniqueGrantConstraint prevents issuing the same coupon twice for one
// triggering event.
const UniqueGrantConstraint = "ux_user_coupons_grant"

// Service issues single-use coupons and redeems them against orders.
type Service interface {
	Issue(ctx context.Context, input IssueInput) (*models.UserCoupon, error)
	Redeem(ctx context.Context, input RedeemInput) (*models.UserCoupon, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.UserCoupon, error)
	ListTypes(ctx context.Context) ([]models.CouponType, error)
	CreateType(ctx context.Context, input CreateTypeInput) (*models.CouponType, error)
}

// IssueInput grants one coupon of the named type to a customer. SourceRef
// ties the grant to its triggering event (an order id, a game session, ...)
// so retries cannot issue twice.
type IssueInput struct {
	CustomerID   uuid.UUID
	CouponTypeID uuid.UUID
	Source       enums.CouponSource
	SourceRef    string
}

// RedeemInput consumes a coupon against an order.
type RedeemInput struct {
	CouponID   uuid.UUID
	CustomerID uuid.UUID
	OrderID    uuid.UUID
}

// CreateTypeInput defines a new coupon type in the catalog.
type CreateTypeInput struct {
	Code         string
	Label        string
	Value        string
	ValidityDays int
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the coupon service.
func NewService(repo Repository, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, logg: logg, now: now}, nil
}

func (s *service) Issue(ctx context.Context, input IssueInput) (*models.UserCoupon, error) {
	if input.CustomerID == uuid.Nil || input.CouponTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and coupon type id required")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid coupon source %q", input.Source))
	}
	if input.SourceRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source ref required")
	}

	couponType, err := s.repo.FindTypeByID(ctx, input.CouponTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon type")
	}

	now := s.now()
	grant := &models.UserCoupon{
		CustomerID:   input.CustomerID,
		CouponTypeID: couponType.ID,
		Source:       input.Source,
		SourceRef:    input.SourceRef,
		ValidUntil:   now.AddDate(0, 0, couponType.ValidityDays),
	}
	if err := s.repo.CreateGrant(ctx, grant); err != nil {
		if dbpkg.IsUniqueViolation(err, UniqueGrantConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon already issued for this event")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon grant")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"coupon_id":   grant.ID.String(),
			"coupon_code": couponType.Code,
			"source":      input.Source,
		})
		s.logg.Info(logCtx, "coupon issued")
	}
	return grant, nil
}

// Redeem consumes the coupon for an order. A coupon is spent at most once;
// expired or foreign coupons are refused.
func (s *service) Redeem(ctx context.Context, input RedeemInput) (*models.UserCoupon, error) {
	if input.CouponID == uuid.Nil || input.CustomerID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon id, customer id and order id required")
	}

	grant, err := s.repo.FindGrant(ctx, input.CouponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if grant.CustomerID != input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}

	now := s.now()
	if now.After(grant.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon has expired")
	}

	consumed, err := s.repo.Consume(ctx, grant.ID, input.OrderID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume coupon")
	}
	if !consumed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon already used")
	}

	grant.IsUsed = true
	grant.UsedAt = &now
	orderID := input.OrderID
	grant.UsedOrderID = &orderID
	return grant, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.UserCoupon, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	grants, err := s.repo.ListGrantsByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return grants, nil
}

func (s *service) ListTypes(ctx context.Context) ([]models.CouponType, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupon types")
	}
	return types, nil
}

func (s *service) CreateType(ctx context.Context, input CreateTypeInput) (*models.CouponType, error) {
	if input.Code == "" || input.Label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and label required")
	}
	value, err := parseValue(input.Value)
	if err != nil {
		return nil, err
	}
	if input.ValidityDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity days must be positive")
	}

	couponType := &models.CouponType{
		Code:         input.Code,
		Label:        input.Label,
		Value:        value,
		ValidityDays: input.ValidityDays,
	}
	if err := s.repo.CreateType(ctx, couponType); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon type")
	}
	return couponType, nil
}

func parseValue(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil || !value.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid coupon value %q", raw))
	}
	return value, nil
}
