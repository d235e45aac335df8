package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/ledger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/config"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

type fakeReturnsRepo struct {
	requests map[uuid.UUID]*models.ReturnRequest
	orders   map[uuid.UUID]*models.Order
	packages map[uuid.UUID]uuid.UUID // order id -> package id
}

func newFakeReturnsRepo() *fakeReturnsRepo {
	return &fakeReturnsRepo{
		requests: map[uuid.UUID]*models.ReturnRequest{},
		orders:   map[uuid.UUID]*models.Order{},
		packages: map[uuid.UUID]uuid.UUID{},
	}
}

func (f *fakeReturnsRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeReturnsRepo) Create(_ context.Context, req *models.ReturnRequest) error {
	req.ID = uuid.New()
	f.requests[req.ID] = req
	return nil
}

func (f *fakeReturnsRepo) FindByID(_ context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *req
	return &copied, nil
}

func (f *fakeReturnsRepo) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	for _, req := range f.requests {
		if req.CustomerID == customerID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeReturnsRepo) SetStatus(_ context.Context, id uuid.UUID, from, to enums.ReturnStatus, at time.Time) (bool, error) {
	req, ok := f.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	stampStatus(req, to, at)
	return true, nil
}

func (f *fakeReturnsRepo) FindOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeReturnsRepo) MarkGiftReturned(_ context.Context, orderID uuid.UUID) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok || order.GiftReturned {
		return false, nil
	}
	order.GiftReturned = true
	return true, nil
}

func (f *fakeReturnsRepo) FindPackageIDByOrder(_ context.Context, orderID uuid.UUID) (*uuid.UUID, error) {
	packageID, ok := f.packages[orderID]
	if !ok {
		return nil, nil
	}
	return &packageID, nil
}

type recordedPosting struct {
	input ledger.PostEntryInput
}

type fakeSettlementLedger struct {
	postings      []recordedPosting
	earnedByOrder map[uuid.UUID]decimal.Decimal
	loyaltyEuros  decimal.Decimal
}

func (f *fakeSettlementLedger) Post(ctx context.Context, input ledger.PostEntryInput) (*models.LoyaltyLedgerEntry, error) {
	return f.PostTx(ctx, nil, input)
}

func (f *fakeSettlementLedger) PostTx(_ context.Context, _ *gorm.DB, input ledger.PostEntryInput) (*models.LoyaltyLedgerEntry, error) {
	f.postings = append(f.postings, recordedPosting{input: input})
	if input.Account == enums.LedgerAccountLoyalty {
		f.loyaltyEuros = f.loyaltyEuros.Add(input.Amount)
	}
	return &models.LoyaltyLedgerEntry{Amount: input.Amount}, nil
}

func (f *fakeSettlementLedger) Balance(context.Context, uuid.UUID) (*ledger.BalanceSummary, error) {
	return &ledger.BalanceSummary{LoyaltyEuros: f.loyaltyEuros}, nil
}

func (f *fakeSettlementLedger) History(context.Context, uuid.UUID) ([]models.LoyaltyLedgerEntry, error) {
	return nil, nil
}

func (f *fakeSettlementLedger) Replay(context.Context, uuid.UUID) (*ledger.ReplayResult, error) {
	return nil, nil
}

func (f *fakeSettlementLedger) EarnedOnOrder(_ context.Context, _, orderID uuid.UUID) (decimal.Decimal, error) {
	if earned, ok := f.earnedByOrder[orderID]; ok {
		return earned, nil
	}
	return decimal.Zero, nil
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fixture struct {
	repo    *fakeReturnsRepo
	ledger  *fakeSettlementLedger
	emitter *recordingEmitter
	now     time.Time
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newFakeReturnsRepo(),
		ledger:  &fakeSettlementLedger{earnedByOrder: map[uuid.UUID]decimal.Decimal{}},
		emitter: &recordingEmitter{},
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	loyalty, err := config.NewLoyaltyConfig("5", "69", "10")
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:    f.repo,
		Ledger:  f.ledger,
		Outbox:  f.emitter,
		Tx:      passthroughTx{},
		Returns: config.ReturnsConfig{EligibilityDays: 14},
		Loyalty: loyalty,
		Now:     func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedDeliveredOrder(customerID uuid.UUID, total, discount, loyaltyEarned string, hasGift bool, deliveredDaysAgo int) *models.Order {
	delivered := f.now.AddDate(0, 0, -deliveredDaysAgo)
	order := &models.Order{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		Number:             "CMD-1042",
		TotalAmount:        decimal.RequireFromString(total),
		DiscountAmount:     decimal.RequireFromString(discount),
		LoyaltyEarned:      decimal.RequireFromString(loyaltyEarned),
		HasPromotionalGift: hasGift,
		DeliveredAt:        &delivered,
	}
	f.repo.orders[order.ID] = order
	return order
}

func item(price string, qty int) DeclareItemInput {
	return DeclareItemInput{
		ProductID:   uuid.New(),
		ProductName: "Bougie parfumée",
		ProductSlug: "bougie-parfumee",
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(price),
	}
}

func TestDeclareFreezesRefundAmounts(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "100", "10", "2", false, 3)
	packageID := uuid.New()
	f.repo.packages[order.ID] = packageID

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("40", 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.ReturnStatusDeclared, req.Status)
	require.NotNil(t, req.PackageID)
	assert.Equal(t, packageID, *req.PackageID)
	require.Len(t, req.Items, 1)
	assert.True(t, req.Items[0].DiscountProrata.Equal(decimal.RequireFromString("4")))
	assert.True(t, req.Items[0].NetAmount.Equal(decimal.RequireFromString("35.2")))
	assert.True(t, req.TotalAmount.Equal(decimal.RequireFromString("35.2")))
	assert.True(t, req.LoyaltyRecovered.Equal(decimal.RequireFromString("0.8")))
	assert.False(t, req.GiftClawback)
	assert.Contains(t, req.Number, "RET-20260310-")

	// Declaration alone never touches the ledger.
	assert.Empty(t, f.ledger.postings)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventReturnDeclared, f.emitter.events[0].EventType)
}

func TestDeclareRejectsExpiredWindow(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "100", "0", "0", false, 15)

	_, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeRefund,
		Items:      []DeclareItemInput{item("40", 1)},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestDeclareRejectsItemsExceedingOrderTotal(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "50", "0", "2", false, 3)

	_, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("200", 1)},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	// Nothing was frozen or emitted for the rejected declaration.
	assert.Empty(t, f.repo.requests)
	assert.Empty(t, f.emitter.events)
}

func TestDeclareRejectsUndeliveredOrder(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := &models.Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Number:      "CMD-1043",
		TotalAmount: decimal.RequireFromString("50"),
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("25", 1)},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestDeclareDeductsGiftAtMostOnce(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "75", "0", "0", true, 2)

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("20", 1), item("15", 1)},
	})
	require.NoError(t, err)

	assert.True(t, req.GiftClawback)
	assert.True(t, req.GiftDeduction.Equal(decimal.RequireFromString("10")))
	// 20 - 10 gift on the first item, 15 untouched on the second.
	assert.True(t, req.TotalAmount.Equal(decimal.RequireFromString("25")), "got %s", req.TotalAmount)
}

func TestAdvanceFollowsWorkflowAndSettlesOnCompletion(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "100", "10", "2", false, 3)
	f.ledger.earnedByOrder[order.ID] = decimal.RequireFromString("2")
	f.ledger.loyaltyEuros = decimal.RequireFromString("2")

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("40", 1)},
	})
	require.NoError(t, err)
	staff := outbox.ActorRef{Role: string(enums.ActorRoleStaff)}

	received, err := f.svc.Advance(context.Background(), req.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusReceived, received.Status)
	assert.Empty(t, f.ledger.postings, "intermediate transitions post nothing")

	_, err = f.svc.Advance(context.Background(), req.ID, staff)
	require.NoError(t, err)

	completed, err := f.svc.Advance(context.Background(), req.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	require.Len(t, f.ledger.postings, 2)
	credit := f.ledger.postings[0].input
	assert.Equal(t, enums.LedgerEntryTypeReturnCredit, credit.Type)
	assert.Equal(t, enums.LedgerAccountWallet, credit.Account)
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("35.2")))

	clawback := f.ledger.postings[1].input
	assert.Equal(t, enums.LedgerEntryTypeReturnClawback, clawback.Type)
	assert.Equal(t, enums.LedgerAccountLoyalty, clawback.Account)
	assert.True(t, clawback.Amount.Equal(decimal.RequireFromString("-0.8")))

	_, err = f.svc.Advance(context.Background(), req.ID, staff)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCompletionCapsClawbackAtEarnedAndBalance(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "100", "0", "10", false, 3)
	// The order only ever earned 1.50 and the balance is down to 1.00.
	f.ledger.earnedByOrder[order.ID] = decimal.RequireFromString("1.50")
	f.ledger.loyaltyEuros = decimal.RequireFromString("1.00")

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeRefund,
		Items:      []DeclareItemInput{item("50", 1)},
	})
	require.NoError(t, err)
	assert.True(t, req.LoyaltyRecovered.Equal(decimal.RequireFromString("5")))

	staff := outbox.ActorRef{Role: string(enums.ActorRoleStaff)}
	for i := 0; i < 3; i++ {
		_, err = f.svc.Advance(context.Background(), req.ID, staff)
		require.NoError(t, err)
	}

	// Refund-type return: no wallet credit, only the capped clawback.
	require.Len(t, f.ledger.postings, 1)
	clawback := f.ledger.postings[0].input
	assert.Equal(t, enums.LedgerEntryTypeReturnClawback, clawback.Type)
	assert.True(t, clawback.Amount.Equal(decimal.RequireFromString("-1.00")), "got %s", clawback.Amount)
	assert.False(t, f.ledger.loyaltyEuros.IsNegative())
}

func TestCompletionMarksGiftReturned(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "75", "0", "0", true, 2)

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("20", 1)},
	})
	require.NoError(t, err)

	staff := outbox.ActorRef{Role: string(enums.ActorRoleStaff)}
	for i := 0; i < 3; i++ {
		_, err = f.svc.Advance(context.Background(), req.ID, staff)
		require.NoError(t, err)
	}
	assert.True(t, f.repo.orders[order.ID].GiftReturned)

	// A second return against the same order no longer deducts the gift.
	second, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("15", 1)},
	})
	require.NoError(t, err)
	assert.False(t, second.GiftClawback)
	assert.True(t, second.TotalAmount.Equal(decimal.RequireFromString("15")))
}

func TestConcurrentGiftClawbacksDebitOnlyOnce(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "75", "0", "0", true, 2)

	// Both returns are declared before either completes, so each freezes
	// the gift deduction.
	first, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("20", 1)},
	})
	require.NoError(t, err)
	second, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("20", 1)},
	})
	require.NoError(t, err)
	assert.True(t, first.GiftClawback)
	assert.True(t, second.GiftClawback)
	assert.True(t, second.TotalAmount.Equal(decimal.RequireFromString("10")))

	staff := outbox.ActorRef{Role: string(enums.ActorRoleStaff)}
	for i := 0; i < 3; i++ {
		_, err = f.svc.Advance(context.Background(), first.ID, staff)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err = f.svc.Advance(context.Background(), second.ID, staff)
		require.NoError(t, err)
	}

	require.Len(t, f.ledger.postings, 2)
	assert.True(t, f.ledger.postings[0].input.Amount.Equal(decimal.RequireFromString("10")))
	// The second settlement restores its frozen deduction: the gift was
	// already clawed back by the first.
	assert.True(t, f.ledger.postings[1].input.Amount.Equal(decimal.RequireFromString("20")))
	assert.True(t, f.repo.orders[order.ID].GiftReturned)
}

func TestCancelPostsNothing(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "100", "0", "0", false, 3)

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("40", 1)},
	})
	require.NoError(t, err)

	staff := outbox.ActorRef{Role: string(enums.ActorRoleStaff)}
	_, err = f.svc.Advance(context.Background(), req.ID, staff)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), req.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusCancelled, cancelled.Status)
	assert.Empty(t, f.ledger.postings)

	_, err = f.svc.Cancel(context.Background(), req.ID, staff)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestGetScopesToCustomer(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedDeliveredOrder(customerID, "100", "0", "0", false, 3)

	req, err := f.svc.Declare(context.Background(), DeclareInput{
		CustomerID: customerID,
		OrderID:    order.ID,
		Type:       enums.ReturnTypeCredit,
		Items:      []DeclareItemInput{item("40", 1)},
	})
	require.NoError(t, err)

	found, err := f.svc.Get(context.Background(), req.ID, customerID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)

	_, err = f.svc.Get(context.Background(), req.ID, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
