package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/db"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

func setupCouponsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	couponTypes := `
CREATE TABLE IF NOT EXISTS coupon_types (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  label TEXT NOT NULL,
  value TEXT NOT NULL,
  validity_days INTEGER NOT NULL DEFAULT 30,
  created_at DATETIME
);`
	userCoupons := `
CREATE TABLE IF NOT EXISTS user_coupons (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  coupon_type_id TEXT NOT NULL,
  source TEXT NOT NULL,
  source_ref TEXT NOT NULL,
  valid_until DATETIME NOT NULL,
  is_used INTEGER NOT NULL DEFAULT 0,
  used_at DATETIME,
  used_order_id TEXT,
  created_at DATETIME
);`
	grantIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_user_coupons_grant
  ON user_coupons (customer_id, coupon_type_id, source, source_ref);`

	for _, stmt := range []string{couponTypes, userCoupons, grantIndex} {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func seedGrant(t *testing.T, repo Repository, customerID uuid.UUID) *models.UserCoupon {
	t.Helper()
	grant := &models.UserCoupon{
		ID:           uuid.New(),
		CustomerID:   customerID,
		CouponTypeID: uuid.New(),
		Source:       enums.CouponSourceGameWin,
		SourceRef:    uuid.NewString(),
		ValidUntil:   time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.CreateGrant(context.Background(), grant))
	return grant
}

func TestConsumeFlipsExactlyOnce(t *testing.T) {
	repo := NewRepository(setupCouponsTestDB(t))
	ctx := context.Background()
	grant := seedGrant(t, repo, uuid.New())
	orderID := uuid.New()

	consumed, err := repo.Consume(ctx, grant.ID, orderID, time.Now())
	require.NoError(t, err)
	assert.True(t, consumed)

	again, err := repo.Consume(ctx, grant.ID, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.False(t, again, "second consumption must not match any row")

	stored, err := repo.FindGrant(ctx, grant.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsUsed)
	require.NotNil(t, stored.UsedOrderID)
	assert.Equal(t, orderID, *stored.UsedOrderID, "first order keeps the coupon")
	require.NotNil(t, stored.UsedAt)
}

func TestDuplicateGrantHitsUniqueIndex(t *testing.T) {
	repo := NewRepository(setupCouponsTestDB(t))
	ctx := context.Background()
	grant := seedGrant(t, repo, uuid.New())

	dup := &models.UserCoupon{
		ID:           uuid.New(),
		CustomerID:   grant.CustomerID,
		CouponTypeID: grant.CouponTypeID,
		Source:       grant.Source,
		SourceRef:    grant.SourceRef,
		ValidUntil:   grant.ValidUntil,
	}
	err := repo.CreateGrant(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestListGrantsByCustomerScopes(t *testing.T) {
	repo := NewRepository(setupCouponsTestDB(t))
	ctx := context.Background()
	customerID := uuid.New()
	seedGrant(t, repo, customerID)
	seedGrant(t, repo, customerID)
	seedGrant(t, repo, uuid.New())

	list, err := repo.ListGrantsByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
