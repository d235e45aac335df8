package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/api/middleware"
	"github.com/laboutiquedemorgane/boutique-backend/api/responses"
	"github.com/laboutiquedemorgane/boutique-backend/api/validators"
	"github.com/laboutiquedemorgane/boutique-backend/internal/returns"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

type declareReturnItemPayload struct {
	ProductID      string  `json:"product_id" validate:"required,uuid"`
	ProductName    string  `json:"product_name" validate:"required"`
	ProductSlug    string  `json:"product_slug"`
	Quantity       int     `json:"quantity" validate:"required,min=1"`
	UnitPrice      string  `json:"unit_price" validate:"required"`
	VariationLabel *string `json:"variation_label,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`
}

type declareReturnPayload struct {
	OrderID string                     `json:"order_id" validate:"required,uuid"`
	Type    string                     `json:"type" validate:"required"`
	Items   []declareReturnItemPayload `json:"items" validate:"required,min=1,dive"`
}

// ReturnDeclare opens a return against a delivered order.
func ReturnDeclare(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload declareReturnPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		returnType, err := enums.ParseReturnType(payload.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return type"))
			return
		}

		items := make([]returns.DeclareItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			unitPrice, err := decimal.NewFromString(item.UnitPrice)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price"))
				return
			}
			items = append(items, returns.DeclareItemInput{
				ProductID:      productID,
				ProductName:    item.ProductName,
				ProductSlug:    item.ProductSlug,
				Quantity:       item.Quantity,
				UnitPrice:      unitPrice,
				VariationLabel: item.VariationLabel,
				ImageURL:       item.ImageURL,
			})
		}

		request, err := svc.Declare(ctx, returns.DeclareInput{
			CustomerID: customerID,
			OrderID:    orderID,
			Type:       returnType,
			Items:      items,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ReturnList returns the customer's return history, newest first.
func ReturnList(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListByCustomer(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// ReturnDetail returns one of the customer's returns with its lines.
func ReturnDetail(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		returnID, err := validators.ParsePathUUID(chi.URLParam(r, "returnID"), "returnID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		request, err := svc.Get(ctx, returnID, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// ReturnAdvance moves a return to its next workflow step.
func ReturnAdvance(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		staffID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		returnID, err := validators.ParsePathUUID(chi.URLParam(r, "returnID"), "returnID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		request, err := svc.Advance(ctx, returnID, outbox.ActorRef{
			CustomerID: staffID,
			Role:       middleware.RoleFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// ReturnCancel aborts a return before completion. Nothing is credited.
func ReturnCancel(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		staffID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		returnID, err := validators.ParsePathUUID(chi.URLParam(r, "returnID"), "returnID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		request, err := svc.Cancel(ctx, returnID, outbox.ActorRef{
			CustomerID: staffID,
			Role:       middleware.RoleFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}
