package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/ledger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/config"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the return workflow from declaration to settlement.
type Service interface {
	Declare(ctx context.Context, input DeclareInput) (*models.ReturnRequest, error)
	Advance(ctx context.Context, returnID uuid.UUID, actor outbox.ActorRef) (*models.ReturnRequest, error)
	Cancel(ctx context.Context, returnID uuid.UUID, actor outbox.ActorRef) (*models.ReturnRequest, error)
	Get(ctx context.Context, returnID, customerID uuid.UUID) (*models.ReturnRequest, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.ReturnRequest, error)
}

// DeclareItemInput is one line the customer sends back.
type DeclareItemInput struct {
	ProductID      uuid.UUID
	ProductName    string
	ProductSlug    string
	Quantity       int
	UnitPrice      decimal.Decimal
	VariationLabel *string
	ImageURL       *string
}

// DeclareInput opens a return against a delivered order.
type DeclareInput struct {
	CustomerID uuid.UUID
	OrderID    uuid.UUID
	Type       enums.ReturnType
	Items      []DeclareItemInput
}

// ServiceParams lists the collaborators NewService validates.
type ServiceParams struct {
	Repo    Repository
	Ledger  ledger.Service
	Outbox  eventEmitter
	Tx      txRunner
	Returns config.ReturnsConfig
	Loyalty config.LoyaltyConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	ledger  ledger.Service
	outbox  eventEmitter
	tx      txRunner
	returns config.ReturnsConfig
	loyalty config.LoyaltyConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the returns service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Returns.EligibilityDays <= 0 {
		return nil, fmt.Errorf("return eligibility window must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		tx:      params.Tx,
		returns: params.Returns,
		loyalty: params.Loyalty,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Declare computes every item's refund decomposition once and freezes it.
// Later transitions move status only; the amounts written here are final.
func (s *service) Declare(ctx context.Context, input DeclareInput) (*models.ReturnRequest, error) {
	if input.CustomerID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and order id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid return type %q", input.Type))
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit price cannot be negative")
		}
	}

	now := s.now()
	var created *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if order.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered")
		}
		if now.After(order.DeliveredAt.Add(s.returns.EligibilityWindow())) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return window has expired")
		}

		packageID, err := repo.FindPackageIDByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup package membership")
		}

		req := &models.ReturnRequest{
			Number:      newReturnNumber(now),
			CustomerID:  input.CustomerID,
			OrderID:     order.ID,
			OrderNumber: order.Number,
			PackageID:   packageID,
			Type:        input.Type,
			Status:      enums.ReturnStatusDeclared,
			DeclaredAt:  now,
		}

		returnedValue := decimal.Zero
		for _, item := range input.Items {
			returnedValue = returnedValue.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		if returnedValue.GreaterThan(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "declared items exceed the order total")
		}
		newTotal := order.TotalAmount.Sub(returnedValue)

		total := decimal.Zero
		loyalty := decimal.Zero
		giftDeduction := decimal.Zero
		giftClawback := false
		for i, item := range input.Items {
			linePrice := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			result := CalculateRefund(RefundInput{
				OrderTotal:          order.TotalAmount,
				ItemPrice:           linePrice,
				TotalDiscount:       order.DiscountAmount,
				LoyaltyEarned:       order.LoyaltyEarned,
				HadPromotionalGift:  order.HasPromotionalGift,
				GiftValue:           s.loyalty.GiftValue(),
				GiftThreshold:       s.loyalty.GiftThreshold(),
				NewTotalAfterReturn: newTotal,
				// The gift deduction applies at most once per return.
				GiftAlreadyReturned: order.GiftReturned || giftClawback || i > 0,
			})
			req.Items = append(req.Items, models.ReturnItem{
				ProductID:       item.ProductID,
				ProductName:     item.ProductName,
				ProductSlug:     item.ProductSlug,
				Quantity:        item.Quantity,
				UnitPrice:       item.UnitPrice,
				DiscountProrata: result.DiscountProrata,
				NetAmount:       result.FinalRefund,
				VariationLabel:  item.VariationLabel,
				ImageURL:        item.ImageURL,
			})
			total = total.Add(result.FinalRefund)
			loyalty = loyalty.Add(result.LoyaltyToRecover)
			if result.GiftDeduction.IsPositive() {
				giftClawback = true
				giftDeduction = result.GiftDeduction
			}
		}
		req.TotalAmount = total
		req.LoyaltyRecovered = loyalty
		req.GiftDeduction = giftDeduction
		req.GiftClawback = giftClawback

		if err := repo.Create(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnDeclared,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{CustomerID: input.CustomerID, Role: string(enums.ActorRoleCustomer)},
			Data:          newReturnEvent(req),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit declared event")
		}

		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"return_id":     created.ID.String(),
			"return_number": created.Number,
		})
		s.logg.Info(logCtx, "return declared")
	}
	return created, nil
}

// Advance moves the request one step along declared -> received -> validated
// -> completed. Reaching completed settles the ledger in the same transaction.
func (s *service) Advance(ctx context.Context, returnID uuid.UUID, actor outbox.ActorRef) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}

	now := s.now()
	var updated *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		req, err := repo.FindByID(ctx, returnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
		}

		next, ok := req.Status.Next()
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("no transition from %s", req.Status))
		}
		moved, err := repo.SetStatus(ctx, req.ID, req.Status, next, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance return status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return was modified concurrently")
		}
		req.Status = next
		stampStatus(req, next, now)

		if next == enums.ReturnStatusCompleted {
			if err := s.settle(ctx, tx, repo, req); err != nil {
				return err
			}
		}

		eventType := enums.EventReturnStatusChanged
		if next == enums.ReturnStatusCompleted {
			eventType = enums.EventReturnCompleted
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   req.ID,
			Actor:         &actor,
			Data:          newReturnEvent(req),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status event")
		}

		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel aborts the request from any pre-completed state. Nothing is posted.
func (s *service) Cancel(ctx context.Context, returnID uuid.UUID, actor outbox.ActorRef) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}

	now := s.now()
	var updated *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		req, err := repo.FindByID(ctx, returnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
		}
		if req.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s return", req.Status))
		}
		moved, err := repo.SetStatus(ctx, req.ID, req.Status, enums.ReturnStatusCancelled, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel return")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return was modified concurrently")
		}
		req.Status = enums.ReturnStatusCancelled
		req.CancelledAt = &now

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnStatusChanged,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   req.ID,
			Actor:         &actor,
			Data:          newReturnEvent(req),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status event")
		}

		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, returnID, customerID uuid.UUID) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	req, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if customerID != uuid.Nil && req.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	return req, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.ReturnRequest, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	reqs, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return reqs, nil
}

// settle posts the completed return to the ledger: a wallet credit for
// credit-type returns, and a loyalty clawback capped at what the order
// actually earned and at the current balance. The gift deduction sticks
// only for the return that flips the order's gift_returned flag.
func (s *service) settle(ctx context.Context, tx *gorm.DB, repo Repository, req *models.ReturnRequest) error {
	credit := req.TotalAmount
	if req.GiftClawback {
		marked, err := repo.MarkGiftReturned(ctx, req.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark gift returned")
		}
		if !marked {
			// A concurrent return settled the gift first; restore the frozen
			// deduction instead of charging it a second time.
			credit = credit.Add(req.GiftDeduction)
		}
	}

	if req.Type == enums.ReturnTypeCredit && credit.IsPositive() {
		oid := req.OrderID
		_, err := s.ledger.PostTx(ctx, tx, ledger.PostEntryInput{
			CustomerID:  req.CustomerID,
			OrderID:     &oid,
			Type:        enums.LedgerEntryTypeReturnCredit,
			Account:     enums.LedgerAccountWallet,
			Amount:      credit,
			Description: fmt.Sprintf("store credit for return %s", req.Number),
		})
		if err != nil {
			return err
		}
	}

	if req.LoyaltyRecovered.IsPositive() {
		earned, err := s.ledger.EarnedOnOrder(ctx, req.CustomerID, req.OrderID)
		if err != nil {
			return err
		}
		balance, err := s.ledger.Balance(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		clawback := decimal.Min(req.LoyaltyRecovered, earned, balance.LoyaltyEuros)
		if clawback.IsPositive() {
			oid := req.OrderID
			_, err := s.ledger.PostTx(ctx, tx, ledger.PostEntryInput{
				CustomerID:  req.CustomerID,
				OrderID:     &oid,
				Type:        enums.LedgerEntryTypeReturnClawback,
				Account:     enums.LedgerAccountLoyalty,
				Amount:      clawback.Neg(),
				Description: fmt.Sprintf("loyalty clawback for return %s", req.Number),
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func stampStatus(req *models.ReturnRequest, status enums.ReturnStatus, at time.Time) {
	switch status {
	case enums.ReturnStatusReceived:
		req.ReceivedAt = &at
	case enums.ReturnStatusValidated:
		req.ValidatedAt = &at
	case enums.ReturnStatusCompleted:
		req.CompletedAt = &at
	case enums.ReturnStatusCancelled:
		req.CancelledAt = &at
	}
}

// newReturnNumber builds a human-readable identifier such as RET-20260310-7F3A2C.
func newReturnNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("RET-%s-%s", now.Format("20060102"), suffix)
}

type returnEvent struct {
	ReturnID     uuid.UUID          `json:"returnId"`
	Number       string             `json:"number"`
	CustomerID   uuid.UUID          `json:"customerId"`
	OrderID      uuid.UUID          `json:"orderId"`
	OrderNumber  string             `json:"orderNumber"`
	Type         enums.ReturnType   `json:"type"`
	Status       enums.ReturnStatus `json:"status"`
	TotalAmount  decimal.Decimal    `json:"totalAmount"`
	GiftClawback bool               `json:"giftClawback"`
}

func newReturnEvent(req *models.ReturnRequest) returnEvent {
	return returnEvent{
		ReturnID:     req.ID,
		Number:       req.Number,
		CustomerID:   req.CustomerID,
		OrderID:      req.OrderID,
		OrderNumber:  req.OrderNumber,
		Type:         req.Type,
		Status:       req.Status,
		TotalAmount:  req.TotalAmount,
		GiftClawback: req.GiftClawback,
	}
}
