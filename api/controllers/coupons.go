package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/laboutiquedemorgane/boutique-backend/api/responses"
	"github.com/laboutiquedemorgane/boutique-backend/api/validators"
	"github.com/laboutiquedemorgane/boutique-backend/internal/coupons"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
)

type redeemCouponPayload struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

type issueCouponPayload struct {
	CustomerID   string `json:"customer_id" validate:"required,uuid"`
	CouponTypeID string `json:"coupon_type_id" validate:"required,uuid"`
	Source       string `json:"source" validate:"required"`
	SourceRef    string `json:"source_ref" validate:"required"`
}

type createCouponTypePayload struct {
	Code         string `json:"code" validate:"required,min=2"`
	Label        string `json:"label" validate:"required"`
	Value        string `json:"value" validate:"required"`
	ValidityDays int    `json:"validity_days" validate:"required,min=1"`
}

// CouponList returns the customer's coupons, used and unused.
func CouponList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
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

// CouponRedeem consumes a coupon against an order.
func CouponRedeem(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		couponID, err := validators.ParsePathUUID(chi.URLParam(r, "couponID"), "couponID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload redeemCouponPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		coupon, err := svc.Redeem(ctx, coupons.RedeemInput{
			CouponID:   couponID,
			CustomerID: customerID,
			OrderID:    orderID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}

// CouponIssue grants a coupon of the named type to a customer.
func CouponIssue(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload issueCouponPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		customerID, err := uuid.Parse(payload.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}
		typeID, err := uuid.Parse(payload.CouponTypeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon type id"))
			return
		}
		source, err := enums.ParseCouponSource(payload.Source)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon source"))
			return
		}

		coupon, err := svc.Issue(ctx, coupons.IssueInput{
			CustomerID:   customerID,
			CouponTypeID: typeID,
			Source:       source,
			SourceRef:    payload.SourceRef,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// CouponTypeList returns the coupon catalog.
func CouponTypeList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		list, err := svc.ListTypes(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// CouponTypeCreate adds a coupon type to the catalog.
func CouponTypeCreate(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload createCouponTypePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		couponType, err := svc.CreateType(ctx, coupons.CreateTypeInput{
			Code:         payload.Code,
			Label:        payload.Label,
			Value:        payload.Value,
			ValidityDays: payload.ValidityDays,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, couponType)
	}
}
