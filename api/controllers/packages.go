package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/laboutiquedemorgane/boutique-backend/api/middleware"
	"github.com/laboutiquedemorgane/boutique-backend/api/responses"
	"github.com/laboutiquedemorgane/boutique-backend/api/validators"
	"github.com/laboutiquedemorgane/boutique-backend/internal/packages"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

type openPackagePayload struct {
	OrderID           string `json:"order_id" validate:"required,uuid"`
	ShippingMethodID  string `json:"shipping_method_id" validate:"required,uuid"`
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
	ShippingCostPaid  bool   `json:"shipping_cost_paid"`
}

type addPackageOrderPayload struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

type attachShipmentPayload struct {
	FinalWeightGrams int    `json:"final_weight_grams" validate:"required,min=1"`
	TrackingNumber   string `json:"tracking_number" validate:"required,min=3"`
}

// PackageOpen starts a new aggregation window around a checked-out order.
func PackageOpen(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload openPackagePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}
		methodID, err := uuid.Parse(payload.ShippingMethodID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method id"))
			return
		}
		addressID, err := uuid.Parse(payload.ShippingAddressID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address id"))
			return
		}

		pkg, err := svc.Open(ctx, packages.OpenInput{
			CustomerID:        customerID,
			OrderID:           orderID,
			ShippingMethodID:  methodID,
			ShippingAddressID: addressID,
			ShippingCostPaid:  payload.ShippingCostPaid,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, pkg)
	}
}

// PackageAddOrder appends an order to the customer's active package.
func PackageAddOrder(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		packageID, err := validators.ParsePathUUID(chi.URLParam(r, "packageID"), "packageID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload addPackageOrderPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		pkg, err := svc.AddOrder(ctx, packages.AddOrderInput{
			CustomerID: customerID,
			PackageID:  packageID,
			OrderID:    orderID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, pkg)
	}
}

// PackageActive returns the customer's current window with its countdown.
func PackageActive(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.GetActive(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// PackageClose closes the customer's window ahead of the deadline.
func PackageClose(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		packageID, err := validators.ParsePathUUID(chi.URLParam(r, "packageID"), "packageID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pkg, err := svc.Close(ctx, packageID, outbox.ActorRef{
			CustomerID: customerID,
			Role:       middleware.RoleFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, pkg)
	}
}

// PackageAttachShipment records the physical hand-off of a closed package.
func PackageAttachShipment(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		staffID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		packageID, err := validators.ParsePathUUID(chi.URLParam(r, "packageID"), "packageID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload attachShipmentPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pkg, err := svc.AttachShipment(ctx, packages.ShipmentInput{
			PackageID:        packageID,
			FinalWeightGrams: payload.FinalWeightGrams,
			TrackingNumber:   payload.TrackingNumber,
			Actor: outbox.ActorRef{
				CustomerID: staffID,
				Role:       middleware.RoleFromContext(ctx),
			},
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, pkg)
	}
}

func authedCustomer(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.CustomerIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid customer id")
	}
	return id, nil
}
