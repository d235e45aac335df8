package packages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laboutiquedemorgane/boutique-backend/internal/ledger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/config"
	dbpkg "github.com/laboutiquedemorgane/boutique-backend/pkg/db"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

// UniqueActivePackageConstraint backs the one-active-package-per-customer rule.
const UniqueActivePackageConstraint = "ux_open_packages_customer_active"

// UniquePackageOrderConstraint prevents the same order joining a package twice.
const UniquePackageOrderConstraint = "ux_open_package_orders_pkg_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the open-package lifecycle: open, aggregate, close, ship.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.OpenPackage, error)
	AddOrder(ctx context.Context, input AddOrderInput) (*models.OpenPackage, error)
	ConfirmOrderPayment(ctx context.Context, orderID uuid.UUID) error
	Close(ctx context.Context, packageID uuid.UUID, actor outbox.ActorRef) (*models.OpenPackage, error)
	AttachShipment(ctx context.Context, input ShipmentInput) (*models.OpenPackage, error)
	GetActive(ctx context.Context, customerID uuid.UUID) (*ActiveView, error)
	SweepExpired(ctx context.Context) (int, error)
	EmitClosingWarnings(ctx context.Context) (int, error)
}

// OpenInput opens a new aggregation window around a checked-out order.
type OpenInput struct {
	CustomerID        uuid.UUID
	OrderID           uuid.UUID
	ShippingMethodID  uuid.UUID
	ShippingAddressID uuid.UUID
	ShippingCostPaid  bool
}

// AddOrderInput appends an order to the customer's active package.
// PackageID, when set, must match the active package.
type AddOrderInput struct {
	CustomerID uuid.UUID
	PackageID  uuid.UUID
	OrderID    uuid.UUID
}

// ShipmentInput records the physical hand-off of a closed package.
type ShipmentInput struct {
	PackageID        uuid.UUID
	FinalWeightGrams int
	TrackingNumber   string
	Actor            outbox.ActorRef
}

// ServiceParams lists the collaborators NewService validates.
type ServiceParams struct {
	Repo     Repository
	Ledger   ledger.Service
	Outbox   eventEmitter
	Tx       txRunner
	Packages config.PackagesConfig
	Loyalty  config.LoyaltyConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	ledger   ledger.Service
	outbox   eventEmitter
	tx       txRunner
	packages config.PackagesConfig
	loyalty  config.LoyaltyConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the package lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("package repository required")
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
	if params.Packages.WindowHours <= 0 {
		return nil, fmt.Errorf("package window must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		tx:       params.Tx,
		packages: params.Packages,
		loyalty:  params.Loyalty,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Open creates the aggregation window at first checkout. The deadline is
// fixed at opened_at + window and never moves when later orders join.
func (s *service) Open(ctx context.Context, input OpenInput) (*models.OpenPackage, error) {
	if input.CustomerID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and order id required")
	}
	if input.ShippingMethodID == uuid.Nil || input.ShippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method and address required")
	}

	now := s.now()
	var created *models.OpenPackage
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindActiveByCustomer(ctx, input.CustomerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active package")
		}
		if existing != nil {
			if existing.ClosesAt.After(now) {
				return pkgerrors.New(pkgerrors.CodeConflict, "customer already has an active package")
			}
			// The previous window lapsed without a sweep; settle it first.
			if err := s.closeExpired(ctx, tx, existing, now); err != nil {
				return err
			}
		}

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

		pkg := &models.OpenPackage{
			CustomerID:         input.CustomerID,
			Status:             enums.PackageStatusActive,
			OpenedAt:           now,
			ClosesAt:           now.Add(s.packages.Window()),
			ShippingCostPaid:   input.ShippingCostPaid,
			ShippingMethodID:   input.ShippingMethodID,
			ShippingAddressID:  input.ShippingAddressID,
			VirtualWeightGrams: order.EstimatedWeightGrams,
		}
		if err := repo.Create(ctx, pkg); err != nil {
			if dbpkg.IsUniqueViolation(err, UniqueActivePackageConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "customer already has an active package")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create package")
		}

		membership := &models.OpenPackageOrder{
			PackageID:   pkg.ID,
			OrderID:     order.ID,
			AddedAt:     now,
			WeightGrams: order.EstimatedWeightGrams,
		}
		if err := repo.AddOrder(ctx, membership); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach first order")
		}
		pkg.Orders = []models.OpenPackageOrder{*membership}

		actor := &outbox.ActorRef{CustomerID: input.CustomerID, Role: string(enums.ActorRoleCustomer)}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPackageOpened,
			AggregateType: enums.AggregateOpenPackage,
			AggregateID:   pkg.ID,
			Actor:         actor,
			Data:          newPackageOpenedEvent(pkg, order),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit opened event")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPackageOrderAdded,
			AggregateType: enums.AggregateOpenPackage,
			AggregateID:   pkg.ID,
			Actor:         actor,
			Data:          newOrderAddedEvent(pkg, order, s.packages.MaxAdvisoryWeightGrams),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order added event")
		}

		created = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"package_id": created.ID.String(),
			"closes_at":  created.ClosesAt,
		})
		s.logg.Info(logCtx, "package opened")
	}
	return created, nil
}

// AddOrder appends an order to the active window. The deadline is checked
// against wall clock first: a lapsed window is settled here rather than
// waiting for the sweep, and the add is refused.
func (s *service) AddOrder(ctx context.Context, input AddOrderInput) (*models.OpenPackage, error) {
	if input.CustomerID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and order id required")
	}

	now := s.now()
	var updated *models.OpenPackage
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		pkg, err := repo.FindActiveByCustomer(ctx, input.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no active package")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active package")
		}
		if input.PackageID != uuid.Nil && pkg.ID != input.PackageID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		if !pkg.ClosesAt.After(now) {
			if err := s.closeExpired(ctx, tx, pkg, now); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "aggregation window has closed")
		}

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

		membership := &models.OpenPackageOrder{
			PackageID:   pkg.ID,
			OrderID:     order.ID,
			AddedAt:     now,
			WeightGrams: order.EstimatedWeightGrams,
		}
		if err := repo.AddOrder(ctx, membership); err != nil {
			if dbpkg.IsUniqueViolation(err, UniquePackageOrderConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already in package")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach order")
		}
		if err := repo.AddWeight(ctx, pkg.ID, order.EstimatedWeightGrams); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add order weight")
		}
		pkg.VirtualWeightGrams += order.EstimatedWeightGrams
		pkg.Orders = append(pkg.Orders, *membership)

		actor := &outbox.ActorRef{CustomerID: input.CustomerID, Role: string(enums.ActorRoleCustomer)}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPackageOrderAdded,
			AggregateType: enums.AggregateOpenPackage,
			AggregateID:   pkg.ID,
			Actor:         actor,
			Data:          newOrderAddedEvent(pkg, order, s.packages.MaxAdvisoryWeightGrams),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order added event")
		}

		updated = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ConfirmOrderPayment credits cashback for a paid order. Payment webhooks are
// retried, so the whole operation tolerates redelivery: the membership flip is
// conditional and the ledger refuses a second order_cashback entry.
func (s *service) ConfirmOrderPayment(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	now := s.now()
	cashback := order.TotalAmount.Mul(s.loyalty.CashbackRate()).Round(2)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		membership, err := repo.FindMembershipByOrder(ctx, orderID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
		}
		if membership != nil {
			if _, err := repo.MarkOrderPaid(ctx, membership.PackageID, orderID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
		}

		if cashback.IsPositive() {
			oid := orderID
			_, err = s.ledger.PostTx(ctx, tx, ledger.PostEntryInput{
				CustomerID:  order.CustomerID,
				OrderID:     &oid,
				Type:        enums.LedgerEntryTypeOrderCashback,
				Account:     enums.LedgerAccountLoyalty,
				Amount:      cashback,
				Description: fmt.Sprintf("cashback on order %s", order.Number),
			})
			if err != nil {
				// Redelivered webhook: the entry already exists, nothing to do.
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

// Close finalizes the window ahead of the deadline. Closing an already
// closed or shipped package is a no-op returning the current state.
func (s *service) Close(ctx context.Context, packageID uuid.UUID, actor outbox.ActorRef) (*models.OpenPackage, error) {
	if packageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package id required")
	}

	now := s.now()
	var closed *models.OpenPackage
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		pkg, err := repo.FindByID(ctx, packageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load package")
		}
		if actor.CustomerID != uuid.Nil && pkg.CustomerID != actor.CustomerID {
			// Foreign packages read as absent, like any other scoped lookup.
			return pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		if pkg.Status != enums.PackageStatusActive {
			closed = pkg
			return nil
		}

		ok, err := repo.SetClosed(ctx, pkg.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close package")
		}
		if ok {
			pkg.Status = enums.PackageStatusClosed
			pkg.ClosedAt = &now
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPackageClosed,
				AggregateType: enums.AggregateOpenPackage,
				AggregateID:   pkg.ID,
				Actor:         &actor,
				Data:          newPackageClosedEvent(pkg, "manual"),
				Version:       1,
				OccurredAt:    now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit closed event")
			}
		}
		closed = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// AttachShipment moves a closed package to shipped and freezes the final
// weight and tracking number. A shipped package is immutable.
func (s *service) AttachShipment(ctx context.Context, input ShipmentInput) (*models.OpenPackage, error) {
	if input.PackageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package id required")
	}
	if input.FinalWeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "final weight must be positive")
	}
	if input.TrackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	now := s.now()
	var shipped *models.OpenPackage
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		pkg, err := repo.FindByID(ctx, input.PackageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load package")
		}
		switch pkg.Status {
		case enums.PackageStatusShipped:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "package already shipped")
		case enums.PackageStatusActive:
			if pkg.ClosesAt.After(now) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "package window still open")
			}
			if err := s.closeExpired(ctx, tx, pkg, now); err != nil {
				return err
			}
		}

		ok, err := repo.SetShipped(ctx, pkg.ID, input.FinalWeightGrams, input.TrackingNumber, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ship package")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "package is not closed")
		}
		pkg.Status = enums.PackageStatusShipped
		pkg.FinalWeightGrams = &input.FinalWeightGrams
		pkg.TrackingNumber = &input.TrackingNumber
		pkg.ShippedAt = &now

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPackageShipped,
			AggregateType: enums.AggregateOpenPackage,
			AggregateID:   pkg.ID,
			Actor:         &input.Actor,
			Data:          newPackageShippedEvent(pkg),
			Version:       1,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shipped event")
		}

		shipped = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shipped, nil
}

// GetActive returns the customer-facing view of the current window. The
// deadline comparison happens here: a stored active row past its closes_at
// reads as closed with a zero countdown, whether or not the sweep ran.
func (s *service) GetActive(ctx context.Context, customerID uuid.UUID) (*ActiveView, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	pkg, err := s.repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active package")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active package")
	}

	view := NewActiveView(pkg, s.now(), s.packages.MaxAdvisoryWeightGrams)
	return &view, nil
}

// SweepExpired closes every package whose deadline has passed. Independent of
// the lazy check on reads; the sweep is what ultimately settles windows no
// request ever touched again.
func (s *service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.ListExpired(ctx, now, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired packages")
	}

	closed := 0
	for i := range expired {
		pkg := expired[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.closeExpired(ctx, tx, &pkg, now)
		})
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "package_id", pkg.ID.String())
				s.logg.Error(logCtx, "sweep failed to close package", err)
			}
			continue
		}
		closed++
	}
	return closed, nil
}

// EmitClosingWarnings queues one closing_soon event per package entering the
// warning lead. EmitIfNotExists keeps repeated sweeps from re-notifying.
func (s *service) EmitClosingWarnings(ctx context.Context) (int, error) {
	now := s.now()
	soon, err := s.repo.ListClosingSoon(ctx, now, s.packages.ClosingWarningLead())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list closing packages")
	}

	emitted := 0
	for i := range soon {
		pkg := soon[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPackageClosingSoon,
				AggregateType: enums.AggregateOpenPackage,
				AggregateID:   pkg.ID,
				Actor:         &outbox.ActorRef{Role: string(enums.ActorRoleService)},
				Data:          newClosingSoonEvent(&pkg, now),
				Version:       1,
				OccurredAt:    now,
			})
		})
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "package_id", pkg.ID.String())
				s.logg.Error(logCtx, "failed to queue closing warning", err)
			}
			continue
		}
		emitted++
	}
	return emitted, nil
}

// closeExpired settles a window whose deadline passed, inside the caller's
// transaction. Losing the conditional update race just means another request
// or the sweep already did the work.
func (s *service) closeExpired(ctx context.Context, tx *gorm.DB, pkg *models.OpenPackage, now time.Time) error {
	repo := s.repo.WithTx(tx)
	ok, err := repo.SetClosed(ctx, pkg.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close expired package")
	}
	if !ok {
		return nil
	}
	pkg.Status = enums.PackageStatusClosed
	pkg.ClosedAt = &now

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPackageClosed,
		AggregateType: enums.AggregateOpenPackage,
		AggregateID:   pkg.ID,
		Actor:         &outbox.ActorRef{Role: string(enums.ActorRoleService)},
		Data:          newPackageClosedEvent(pkg, "expired"),
		Version:       1,
		OccurredAt:    now,
	})
}
